// Package validation wraps go-playground/validator with the identifier rules used across
// the API.
package validation

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/go-playground/validator/v10"
)

var (
	bpnlPattern = regexp.MustCompile(`^BPNL[0-9A-Z]{12}$`)
	bpnsPattern = regexp.MustCompile(`^BPNS[0-9A-Z]{12}$`)
	bpnaPattern = regexp.MustCompile(`^BPNA[0-9A-Z]{12}$`)
)

var validate = New()

// New returns a validator with the custom rules registered:
// novws rejects vertical whitespace, bpnl/bpns/bpna match business partner numbers.
func New() *validator.Validate {
	v := validator.New()
	mustRegister(v, "novws", func(fl validator.FieldLevel) bool {
		return !HasVerticalWhitespace(fl.Field().String())
	})
	mustRegister(v, "bpnl", func(fl validator.FieldLevel) bool {
		return bpnlPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "bpns", func(fl validator.FieldLevel) bool {
		return bpnsPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "bpna", func(fl validator.FieldLevel) bool {
		return bpnaPattern.MatchString(fl.Field().String())
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %s: %v", tag, err))
	}
}

// HasVerticalWhitespace covers \n, \r, \v, \f and the unicode line and paragraph separators.
func HasVerticalWhitespace(s string) bool {
	return strings.ContainsAny(s, "\n\r\v\f\u0085\u2028\u2029")
}

func IsBpnl(s string) bool {
	return bpnlPattern.MatchString(s)
}

// Struct validates v and converts failures to a 400 httperror listing the failing fields.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid request: %s", strings.Join(fields, "; "))
}

// Package policy checks partner contract offers against the usage policy we require.
package policy

import (
	"strings"
)

const (
	odrlNamespace = "http://www.w3.org/ns/odrl/2/"
	odrlPrefix    = "odrl:"
	cxPrefix      = "cx-policy:"

	FrameworkAgreement = "FrameworkAgreement"
	UsagePurpose       = "UsagePurpose"
)

// Validator accepts an offer only when it carries exactly our framework agreement and
// usage purpose constraints and nothing else.
type Validator struct {
	profile            Profile
	frameworkAgreement string
	usagePurpose       string
}

func NewValidator(profile Profile, frameworkAgreement, usagePurpose string) *Validator {
	return &Validator{
		profile:            profile,
		frameworkAgreement: frameworkAgreement,
		usagePurpose:       usagePurpose,
	}
}

func (v *Validator) Profile() Profile {
	return v.profile
}

// Validate reports whether offer, a JSON-LD ODRL policy node, is acceptable. Keys may be
// compact (odrl:permission), full IRIs or bare; operands may be strings, {"@id"} or {"@value"}.
func (v *Validator) Validate(offer map[string]any) bool {
	if offer == nil {
		return false
	}
	if !isEmpty(lookup(offer, "prohibition")) || !isEmpty(lookup(offer, "obligation")) {
		return false
	}

	permission, ok := single(lookup(offer, "permission"))
	if !ok {
		return false
	}

	constraint, ok := single(lookup(permission, "constraint"))
	if !ok {
		return false
	}

	operands, ok := lookup(constraint, "and").([]any)
	if !ok || len(operands) != 2 {
		return false
	}

	expected := map[string]string{
		FrameworkAgreement: v.frameworkAgreement,
		UsagePurpose:       v.usagePurpose,
	}
	seen := map[string]bool{}

	for _, raw := range operands {
		node, ok := unwrap(raw).(map[string]any)
		if !ok {
			return false
		}

		name, ok := v.leftOperandName(scalar(lookup(node, "leftOperand")))
		if !ok || seen[name] {
			return false
		}
		seen[name] = true

		if !isEq(scalar(lookup(node, "operator"))) {
			return false
		}
		if scalar(lookup(node, "rightOperand")) != expected[name] {
			return false
		}
	}

	return seen[FrameworkAgreement] && seen[UsagePurpose]
}

// leftOperandName maps cx-policy:X or <namespace>X to X for the two operands we accept.
func (v *Validator) leftOperandName(operand string) (string, bool) {
	for _, name := range []string{FrameworkAgreement, UsagePurpose} {
		if operand == cxPrefix+name || operand == v.profile.LeftOperand(name) {
			return name, true
		}
	}
	return "", false
}

func isEq(operator string) bool {
	return operator == odrlPrefix+"eq" || operator == odrlNamespace+"eq" || operator == "eq"
}

// lookup finds an ODRL term in node under its compact, expanded or bare key.
func lookup(node any, term string) any {
	m, ok := unwrap(node).(map[string]any)
	if !ok {
		return nil
	}
	for _, key := range []string{odrlPrefix + term, odrlNamespace + term, term} {
		if value, ok := m[key]; ok {
			return value
		}
	}
	return nil
}

// single returns the only object in value, which may be an object or a one element array.
func single(value any) (map[string]any, bool) {
	if list, ok := value.([]any); ok {
		if len(list) != 1 {
			return nil, false
		}
		value = list[0]
	}
	m, ok := value.(map[string]any)
	return m, ok && m != nil
}

// unwrap returns the element of a one element array, otherwise value.
func unwrap(value any) any {
	if list, ok := value.([]any); ok && len(list) == 1 {
		return list[0]
	}
	return value
}

// scalar reads a string operand from "x", {"@id": "x"} or {"@value": "x"}.
func scalar(value any) string {
	switch v := unwrap(value).(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		for _, key := range []string{"@id", "@value"} {
			if s, ok := v[key].(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}

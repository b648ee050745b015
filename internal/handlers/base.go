package handlers

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/validation"
)

// ParseUUID parses a UUID from a path parameter
func ParseUUID(c echo.Context, param string) (uuid.UUID, error) {
	idStr := c.Param(param)
	if idStr == "" {
		return uuid.Nil, httperror.NewHTTPError(http.StatusBadRequest, "missing "+param)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid %s: must be a valid UUID", param)
	}

	return id, nil
}

func ParseDirection(value string) (models.Direction, error) {
	d, err := models.ParseDirection(value)
	if err != nil {
		return "", BadRequest(err.Error())
	}
	return d, nil
}

func ParseAssetType(value string) (models.AssetType, error) {
	a, err := models.ParseAssetType(value)
	if err != nil {
		return "", BadRequest(err.Error())
	}
	return a, nil
}

// GetPartnerBpnl returns the BPNL the connector forwarded with the request.
func GetPartnerBpnl(c echo.Context) (string, error) {
	bpnl := appctx.GetPartnerBpnl(c.Request().Context())
	if bpnl == "" {
		return "", Unauthorized("missing Edc-Bpn header")
	}
	if !validation.IsBpnl(bpnl) {
		return "", BadRequest("invalid Edc-Bpn header")
	}
	return bpnl, nil
}

// Bind decodes the request body into v and validates it.
func Bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return BadRequest("invalid request body")
	}
	return validation.Struct(v)
}

// SuccessResponse returns a 200 OK with data
func SuccessResponse(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, data)
}

// CreatedResponse returns a 201 Created with data
func CreatedResponse(c echo.Context, data any) error {
	return c.JSON(http.StatusCreated, data)
}

// NoContentResponse returns a 204 No Content
func NoContentResponse(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

// BadRequest returns a 400 Bad Request error
func BadRequest(message string) error {
	return httperror.NewHTTPError(http.StatusBadRequest, message)
}

// Unauthorized returns a 401 Unauthorized error
func Unauthorized(message string) error {
	return httperror.NewHTTPError(http.StatusUnauthorized, message)
}

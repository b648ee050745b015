package handlers

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/erp"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/samm"
	"github.com/Ramsey-B/clover/pkg/validation"
)

type submodelProvider interface {
	ItemStock(ctx context.Context, partnerBpnl, cx string, direction models.Direction) (*samm.ItemStock, error)
	PartTypeInformation(ctx context.Context, partnerBpnl, ownMaterialNumber string) (*samm.PartTypeInformation, error)
}

type erpResponseHandler interface {
	HandleResponse(ctx context.Context, resp *erp.Response) error
}

// SubmodelHandler serves the endpoints our connector proxies for partners and the ERP
// adapter's answers.
type SubmodelHandler struct {
	provider submodelProvider
	erp      erpResponseHandler
}

func NewSubmodelHandler(provider submodelProvider, erp erpResponseHandler) *SubmodelHandler {
	return &SubmodelHandler{provider: provider, erp: erp}
}

// RegisterRoutes registers the partner facing routes. mw is applied to the submodel group.
func (h *SubmodelHandler) RegisterRoutes(e *echo.Echo, mw ...echo.MiddlewareFunc) {
	g := e.Group("/submodel", mw...)
	g.GET("/item-stock/:materialNumberCx/:direction", h.ItemStock)
	g.GET("/part-type/:materialNumber", h.PartType)

	if h.erp != nil {
		e.POST("/erp-adapter", h.ErpResponse)
	}
}

// ItemStock handles GET /submodel/item-stock/:materialNumberCx/:direction
func (h *SubmodelHandler) ItemStock(c echo.Context) error {
	ctx := c.Request().Context()

	bpnl, err := GetPartnerBpnl(c)
	if err != nil {
		return err
	}
	direction, err := ParseDirection(c.Param("direction"))
	if err != nil {
		return err
	}
	cx := c.Param("materialNumberCx")
	if cx == "" || validation.HasVerticalWhitespace(cx) {
		return BadRequest("invalid materialNumberCx")
	}

	out, err := h.provider.ItemStock(ctx, bpnl, cx, direction)
	if err != nil {
		return err
	}
	return SuccessResponse(c, out)
}

// PartType handles GET /submodel/part-type/:materialNumber
func (h *SubmodelHandler) PartType(c echo.Context) error {
	ctx := c.Request().Context()

	bpnl, err := GetPartnerBpnl(c)
	if err != nil {
		return err
	}
	materialNumber := c.Param("materialNumber")
	if materialNumber == "" || validation.HasVerticalWhitespace(materialNumber) {
		return BadRequest("invalid materialNumber")
	}

	out, err := h.provider.PartTypeInformation(ctx, bpnl, materialNumber)
	if err != nil {
		return err
	}
	return SuccessResponse(c, out)
}

// ErpResponse handles POST /erp-adapter
func (h *SubmodelHandler) ErpResponse(c echo.Context) error {
	ctx := c.Request().Context()

	var resp erp.Response
	if err := Bind(c, &resp); err != nil {
		return err
	}
	if err := h.erp.HandleResponse(ctx, &resp); err != nil {
		return err
	}
	return NoContentResponse(c)
}

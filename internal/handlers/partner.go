package handlers

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
)

type partnerStore interface {
	Create(ctx context.Context, partner *models.Partner) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Partner, error)
	List(ctx context.Context) ([]models.Partner, error)
	Update(ctx context.Context, partner *models.Partner) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// PartnerHandler manages the partner directory.
type PartnerHandler struct {
	partners partnerStore
	logger   ectologger.Logger
}

func NewPartnerHandler(partners partnerStore, logger ectologger.Logger) *PartnerHandler {
	return &PartnerHandler{partners: partners, logger: logger}
}

type PartnerRequest struct {
	Name   string        `json:"name" validate:"required,novws"`
	Bpnl   string        `json:"bpnl" validate:"required,bpnl"`
	EdcURL string        `json:"edc_url" validate:"required,url"`
	Sites  []models.Site `json:"sites" validate:"dive"`
}

type UpdatePartnerRequest struct {
	Name   string        `json:"name" validate:"required,novws"`
	EdcURL string        `json:"edc_url" validate:"required,url"`
	Sites  []models.Site `json:"sites" validate:"dive"`
}

func (h *PartnerHandler) RegisterRoutes(g *echo.Group) {
	partners := g.Group("/partners")
	partners.GET("", h.List)
	partners.POST("", h.Create)
	partners.GET("/:id", h.Get)
	partners.PUT("/:id", h.Update)
	partners.DELETE("/:id", h.Delete)
}

// Create handles POST /api/v1/partners
func (h *PartnerHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	var req PartnerRequest
	if err := Bind(c, &req); err != nil {
		return err
	}

	partner := &models.Partner{
		Name:   req.Name,
		Bpnl:   req.Bpnl,
		EdcURL: req.EdcURL,
		Sites:  database.JSONB[[]models.Site]{Data: req.Sites},
	}
	if err := h.partners.Create(ctx, partner); err != nil {
		return err
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"partner_id":   partner.ID,
		"partner_bpnl": partner.Bpnl,
	}).Info("Created partner")
	return CreatedResponse(c, partner)
}

// List handles GET /api/v1/partners
func (h *PartnerHandler) List(c echo.Context) error {
	partners, err := h.partners.List(c.Request().Context())
	if err != nil {
		return err
	}
	if partners == nil {
		partners = []models.Partner{}
	}
	return SuccessResponse(c, partners)
}

// Get handles GET /api/v1/partners/:id
func (h *PartnerHandler) Get(c echo.Context) error {
	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	partner, err := h.partners.GetByID(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return SuccessResponse(c, partner)
}

// Update handles PUT /api/v1/partners/:id
func (h *PartnerHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	var req UpdatePartnerRequest
	if err := Bind(c, &req); err != nil {
		return err
	}

	partner, err := h.partners.GetByID(ctx, id)
	if err != nil {
		return err
	}
	partner.Name = req.Name
	partner.EdcURL = req.EdcURL
	partner.Sites = database.JSONB[[]models.Site]{Data: req.Sites}
	if err := h.partners.Update(ctx, partner); err != nil {
		return err
	}
	return SuccessResponse(c, partner)
}

// Delete handles DELETE /api/v1/partners/:id
func (h *PartnerHandler) Delete(c echo.Context) error {
	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.partners.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return NoContentResponse(c)
}

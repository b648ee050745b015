package handlers

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/models"
)

type materialStore interface {
	Upsert(ctx context.Context, m *models.Material) error
	Get(ctx context.Context, ownMaterialNumber string) (*models.Material, error)
	List(ctx context.Context) ([]models.Material, error)
	UpsertRelation(ctx context.Context, rel *models.MaterialPartnerRelation) error
	ListRelationsByPartner(ctx context.Context, partnerID uuid.UUID) ([]models.MaterialPartnerRelation, error)
}

type MaterialHandler struct {
	materials materialStore
	partners  partnerStore
	logger    ectologger.Logger
}

func NewMaterialHandler(materials materialStore, partners partnerStore, logger ectologger.Logger) *MaterialHandler {
	return &MaterialHandler{materials: materials, partners: partners, logger: logger}
}

type MaterialRequest struct {
	OwnMaterialNumber string `json:"own_material_number" validate:"required,novws"`
	MaterialNumberCx  string `json:"material_number_cx" validate:"omitempty,novws"`
	Name              string `json:"name" validate:"novws"`
	MaterialFlag      bool   `json:"material_flag"`
	ProductFlag       bool   `json:"product_flag"`
}

type RelationRequest struct {
	OwnMaterialNumber       string `json:"own_material_number" validate:"required,novws"`
	PartnerSuppliesMaterial bool   `json:"partner_supplies_material"`
	PartnerBuysMaterial     bool   `json:"partner_buys_material"`
	PartnerMaterialNumber   string `json:"partner_material_number" validate:"omitempty,novws"`
	PartnerCXNumber         string `json:"partner_cx_number" validate:"omitempty,novws"`
}

func (h *MaterialHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/materials", h.List)
	g.PUT("/materials", h.Upsert)
	g.GET("/materials/:materialNumber", h.Get)
	g.GET("/partners/:id/relations", h.ListRelations)
	g.PUT("/partners/:id/relations", h.UpsertRelation)
}

// Upsert handles PUT /api/v1/materials
func (h *MaterialHandler) Upsert(c echo.Context) error {
	ctx := c.Request().Context()

	var req MaterialRequest
	if err := Bind(c, &req); err != nil {
		return err
	}
	if !req.MaterialFlag && !req.ProductFlag {
		return BadRequest("a material needs the material flag, the product flag or both")
	}

	m := &models.Material{
		OwnMaterialNumber: req.OwnMaterialNumber,
		MaterialNumberCx:  req.MaterialNumberCx,
		Name:              req.Name,
		MaterialFlag:      req.MaterialFlag,
		ProductFlag:       req.ProductFlag,
	}
	if m.MaterialNumberCx == "" {
		// keep the CX number a partner may already know
		if existing, err := h.materials.Get(ctx, m.OwnMaterialNumber); err == nil && existing.MaterialNumberCx != "" {
			m.MaterialNumberCx = existing.MaterialNumberCx
		} else {
			m.MaterialNumberCx = "urn:uuid:" + uuid.NewString()
		}
	}

	if err := h.materials.Upsert(ctx, m); err != nil {
		return err
	}
	return SuccessResponse(c, m)
}

// List handles GET /api/v1/materials
func (h *MaterialHandler) List(c echo.Context) error {
	materials, err := h.materials.List(c.Request().Context())
	if err != nil {
		return err
	}
	if materials == nil {
		materials = []models.Material{}
	}
	return SuccessResponse(c, materials)
}

// Get handles GET /api/v1/materials/:materialNumber
func (h *MaterialHandler) Get(c echo.Context) error {
	m, err := h.materials.Get(c.Request().Context(), c.Param("materialNumber"))
	if err != nil {
		return err
	}
	return SuccessResponse(c, m)
}

// UpsertRelation handles PUT /api/v1/partners/:id/relations
func (h *MaterialHandler) UpsertRelation(c echo.Context) error {
	ctx := c.Request().Context()

	partnerID, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	var req RelationRequest
	if err := Bind(c, &req); err != nil {
		return err
	}
	if !req.PartnerSuppliesMaterial && !req.PartnerBuysMaterial {
		return BadRequest("a relation needs the partner to supply, buy or both")
	}

	if _, err := h.partners.GetByID(ctx, partnerID); err != nil {
		return err
	}
	material, err := h.materials.Get(ctx, req.OwnMaterialNumber)
	if err != nil {
		return err
	}
	if req.PartnerSuppliesMaterial && !material.MaterialFlag {
		return BadRequest("partner can only supply a material flagged as material")
	}
	if req.PartnerBuysMaterial && !material.ProductFlag {
		return BadRequest("partner can only buy a material flagged as product")
	}

	rel := &models.MaterialPartnerRelation{
		OwnMaterialNumber:       req.OwnMaterialNumber,
		PartnerID:               partnerID,
		PartnerSuppliesMaterial: req.PartnerSuppliesMaterial,
		PartnerBuysMaterial:     req.PartnerBuysMaterial,
		PartnerMaterialNumber:   req.PartnerMaterialNumber,
		PartnerCXNumber:         req.PartnerCXNumber,
	}
	if err := h.materials.UpsertRelation(ctx, rel); err != nil {
		return err
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"partner_id":      partnerID,
		"material_number": rel.OwnMaterialNumber,
	}).Info("Saved material relation")
	return SuccessResponse(c, rel)
}

// ListRelations handles GET /api/v1/partners/:id/relations
func (h *MaterialHandler) ListRelations(c echo.Context) error {
	partnerID, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	relations, err := h.materials.ListRelationsByPartner(c.Request().Context(), partnerID)
	if err != nil {
		return err
	}
	if relations == nil {
		relations = []models.MaterialPartnerRelation{}
	}
	return SuccessResponse(c, relations)
}

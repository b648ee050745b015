package models

import (
	"time"

	"github.com/google/uuid"
)

type Material struct {
	OwnMaterialNumber string    `db:"own_material_number" json:"own_material_number" validate:"required"`
	MaterialNumberCx  string    `db:"material_number_cx" json:"material_number_cx"`
	Name              string    `db:"name" json:"name"`
	MaterialFlag      bool      `db:"material_flag" json:"material_flag"`
	ProductFlag       bool      `db:"product_flag" json:"product_flag"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

func (Material) TableName() string {
	return "materials"
}

// MaterialPartnerRelation gates which submodel requests are legitimate in either direction.
type MaterialPartnerRelation struct {
	OwnMaterialNumber       string    `db:"own_material_number" json:"own_material_number" validate:"required"`
	PartnerID               uuid.UUID `db:"partner_id" json:"partner_id" validate:"required"`
	PartnerSuppliesMaterial bool      `db:"partner_supplies_material" json:"partner_supplies_material"`
	PartnerBuysMaterial     bool      `db:"partner_buys_material" json:"partner_buys_material"`
	PartnerMaterialNumber   string    `db:"partner_material_number" json:"partner_material_number"`
	PartnerCXNumber         string    `db:"partner_cx_number" json:"partner_cx_number"`
	CreatedAt               time.Time `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time `db:"updated_at" json:"updated_at"`
}

func (MaterialPartnerRelation) TableName() string {
	return "material_partner_relations"
}

// Allows reports whether the relation permits an exchange in direction d. OUTBOUND data
// is held by a supplier, INBOUND data by a customer.
func (r *MaterialPartnerRelation) Allows(d Direction) bool {
	switch d {
	case DirectionOutbound:
		return r.PartnerSuppliesMaterial
	case DirectionInbound:
		return r.PartnerBuysMaterial
	default:
		return false
	}
}

package models

import (
	"fmt"

	"github.com/google/uuid"
)

// SyncKey identifies one reported data set: the partner's data of one asset type for one
// of our materials, seen in one direction.
type SyncKey struct {
	MaterialNumber string    `json:"material_number" validate:"required"`
	PartnerID      uuid.UUID `json:"partner_id" validate:"required"`
	AssetType      AssetType `json:"asset_type" validate:"required"`
	Direction      Direction `json:"direction" validate:"required"`
}

func (k SyncKey) String() string {
	return fmt.Sprintf("%s|%s|%s|%s", k.AssetType, k.PartnerID, k.MaterialNumber, k.Direction)
}

func (k SyncKey) Validate() error {
	if k.MaterialNumber == "" {
		return fmt.Errorf("sync key: material number is required")
	}
	if k.PartnerID == uuid.Nil {
		return fmt.Errorf("sync key: partner id is required")
	}
	if !k.AssetType.Valid() {
		return fmt.Errorf("sync key: unknown asset type %q", k.AssetType)
	}
	if !k.Direction.Valid() {
		return fmt.Errorf("sync key: unknown direction %q", k.Direction)
	}
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// ErpTriggerTuple tracks partner interest in one data set served from the ERP system.
// Times are epoch milliseconds.
type ErpTriggerTuple struct {
	PartnerBpnl             string    `db:"partner_bpnl" json:"partner_bpnl"`
	OwnMaterialNumber       string    `db:"own_material_number" json:"own_material_number"`
	AssetType               AssetType `db:"asset_type" json:"asset_type"`
	Direction               Direction `db:"direction" json:"direction"`
	LastPartnerRequest      int64     `db:"last_partner_request" json:"last_partner_request"`
	NextErpRequestScheduled int64     `db:"next_erp_request_scheduled" json:"next_erp_request_scheduled"`
}

func (ErpTriggerTuple) TableName() string {
	return "erp_trigger_tuples"
}

// ErpTriggerKey is the identity of an ErpTriggerTuple.
type ErpTriggerKey struct {
	PartnerBpnl       string    `json:"partner_bpnl" validate:"required"`
	OwnMaterialNumber string    `json:"own_material_number" validate:"required"`
	AssetType         AssetType `json:"asset_type" validate:"required"`
	Direction         Direction `json:"direction" validate:"required"`
}

func (t ErpTriggerTuple) Key() ErpTriggerKey {
	return ErpTriggerKey{
		PartnerBpnl:       t.PartnerBpnl,
		OwnMaterialNumber: t.OwnMaterialNumber,
		AssetType:         t.AssetType,
		Direction:         t.Direction,
	}
}

// OutgoingErpRequest is one request sent to the ERP adapter. Its ID is the request-id the
// adapter echoes in its asynchronous answer. Only ResponseCode and ResponseReceivedDate
// change after creation.
type OutgoingErpRequest struct {
	ID                   uuid.UUID  `db:"id" json:"id"`
	PartnerBpnl          string     `db:"partner_bpnl" json:"partner_bpnl"`
	OwnMaterialNumber    string     `db:"own_material_number" json:"own_material_number"`
	AssetType            AssetType  `db:"asset_type" json:"asset_type"`
	RequestType          string     `db:"request_type" json:"request_type"`
	Direction            Direction  `db:"direction" json:"direction"`
	SammVersion          string     `db:"samm_version" json:"samm_version"`
	RequestDate          time.Time  `db:"request_date" json:"request_date"`
	ResponseCode         *int       `db:"response_code" json:"response_code,omitempty"`
	ResponseReceivedDate *time.Time `db:"response_received_date" json:"response_received_date,omitempty"`
}

func (OutgoingErpRequest) TableName() string {
	return "outgoing_erp_requests"
}

func (r *OutgoingErpRequest) Answered() bool {
	return r.ResponseReceivedDate != nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Ramsey-B/clover/pkg/database"
)

// Reported records mirror a partner's own data. The rows stored for one SyncKey always
// come from a single reconciliation.

type ReportedStock struct {
	ID                  uuid.UUID       `db:"id" json:"id"`
	MaterialNumber      string          `db:"material_number" json:"material_number"`
	PartnerID           uuid.UUID       `db:"partner_id" json:"partner_id"`
	Direction           Direction       `db:"direction" json:"direction"`
	Quantity            decimal.Decimal `db:"quantity" json:"quantity"`
	MeasurementUnit     string          `db:"measurement_unit" json:"measurement_unit"`
	LocationBpns        string          `db:"location_bpns" json:"location_bpns"`
	LocationBpna        string          `db:"location_bpna" json:"location_bpna"`
	IsBlocked           bool            `db:"is_blocked" json:"is_blocked"`
	CustomerOrderNumber string          `db:"customer_order_number" json:"customer_order_number,omitempty"`
	SupplierOrderNumber string          `db:"supplier_order_number" json:"supplier_order_number,omitempty"`
	LastUpdatedOn       time.Time       `db:"last_updated_on" json:"last_updated_on"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at" fieldtag:"generated"`
}

func (ReportedStock) TableName() string {
	return "reported_stocks"
}

type ReportedDemand struct {
	ID                   uuid.UUID       `db:"id" json:"id"`
	MaterialNumber       string          `db:"material_number" json:"material_number"`
	PartnerID            uuid.UUID       `db:"partner_id" json:"partner_id"`
	Direction            Direction       `db:"direction" json:"direction"`
	Quantity             decimal.Decimal `db:"quantity" json:"quantity"`
	MeasurementUnit      string          `db:"measurement_unit" json:"measurement_unit"`
	Day                  time.Time       `db:"day" json:"day"`
	DemandCategory       string          `db:"demand_category" json:"demand_category"`
	DemandLocationBpns   string          `db:"demand_location_bpns" json:"demand_location_bpns"`
	SupplierLocationBpns string          `db:"supplier_location_bpns" json:"supplier_location_bpns,omitempty"`
	CreatedAt            time.Time       `db:"created_at" json:"created_at" fieldtag:"generated"`
}

func (ReportedDemand) TableName() string {
	return "reported_demands"
}

type ReportedDelivery struct {
	ID                  uuid.UUID       `db:"id" json:"id"`
	MaterialNumber      string          `db:"material_number" json:"material_number"`
	PartnerID           uuid.UUID       `db:"partner_id" json:"partner_id"`
	Direction           Direction       `db:"direction" json:"direction"`
	Quantity            decimal.Decimal `db:"quantity" json:"quantity"`
	MeasurementUnit     string          `db:"measurement_unit" json:"measurement_unit"`
	TrackingNumber      string          `db:"tracking_number" json:"tracking_number,omitempty"`
	Incoterm            string          `db:"incoterm" json:"incoterm,omitempty"`
	OriginBpns          string          `db:"origin_bpns" json:"origin_bpns"`
	DestinationBpns     string          `db:"destination_bpns" json:"destination_bpns"`
	DepartureType       string          `db:"departure_type" json:"departure_type"`
	DateOfDeparture     time.Time       `db:"date_of_departure" json:"date_of_departure"`
	ArrivalType         string          `db:"arrival_type" json:"arrival_type"`
	DateOfArrival       time.Time       `db:"date_of_arrival" json:"date_of_arrival"`
	CustomerOrderNumber string          `db:"customer_order_number" json:"customer_order_number,omitempty"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at" fieldtag:"generated"`
}

func (ReportedDelivery) TableName() string {
	return "reported_deliveries"
}

type ReportedProduction struct {
	ID                        uuid.UUID       `db:"id" json:"id"`
	MaterialNumber            string          `db:"material_number" json:"material_number"`
	PartnerID                 uuid.UUID       `db:"partner_id" json:"partner_id"`
	Direction                 Direction       `db:"direction" json:"direction"`
	Quantity                  decimal.Decimal `db:"quantity" json:"quantity"`
	MeasurementUnit           string          `db:"measurement_unit" json:"measurement_unit"`
	ProductionSiteBpns        string          `db:"production_site_bpns" json:"production_site_bpns"`
	EstimatedTimeOfCompletion time.Time       `db:"estimated_time_of_completion" json:"estimated_time_of_completion"`
	CustomerOrderNumber       string          `db:"customer_order_number" json:"customer_order_number,omitempty"`
	CreatedAt                 time.Time       `db:"created_at" json:"created_at" fieldtag:"generated"`
}

func (ReportedProduction) TableName() string {
	return "reported_productions"
}

// ReportedNotification stores one row per affected material of a partner notification.
type ReportedNotification struct {
	ID               uuid.UUID                `db:"id" json:"id"`
	MaterialNumber   string                   `db:"material_number" json:"material_number"`
	PartnerID        uuid.UUID                `db:"partner_id" json:"partner_id"`
	Direction        Direction                `db:"direction" json:"direction"`
	NotificationID   string                   `db:"notification_id" json:"notification_id"`
	LeadingRootCause string                   `db:"leading_root_cause" json:"leading_root_cause"`
	EffectType       string                   `db:"effect_type" json:"effect_type"`
	Status           string                   `db:"status" json:"status"`
	Text             string                   `db:"text" json:"text,omitempty"`
	AffectedSites    database.JSONB[[]string] `db:"affected_sites" json:"affected_sites"`
	StartDate        time.Time                `db:"start_date" json:"start_date"`
	ExpectedEndDate  *time.Time               `db:"expected_end_date" json:"expected_end_date,omitempty"`
	ContentChangedAt time.Time                `db:"content_changed_at" json:"content_changed_at"`
	CreatedAt        time.Time                `db:"created_at" json:"created_at" fieldtag:"generated"`
}

func (ReportedNotification) TableName() string {
	return "reported_notifications"
}

// OwnStock is our own stock of a material kept for one partner. INBOUND rows are material
// stock, OUTBOUND rows product stock.
type OwnStock struct {
	ID                  uuid.UUID       `db:"id" json:"id"`
	MaterialNumber      string          `db:"material_number" json:"material_number"`
	PartnerID           uuid.UUID       `db:"partner_id" json:"partner_id"`
	Direction           Direction       `db:"direction" json:"direction"`
	Quantity            decimal.Decimal `db:"quantity" json:"quantity"`
	MeasurementUnit     string          `db:"measurement_unit" json:"measurement_unit"`
	LocationBpns        string          `db:"location_bpns" json:"location_bpns"`
	LocationBpna        string          `db:"location_bpna" json:"location_bpna"`
	IsBlocked           bool            `db:"is_blocked" json:"is_blocked"`
	CustomerOrderNumber string          `db:"customer_order_number" json:"customer_order_number,omitempty"`
	SupplierOrderNumber string          `db:"supplier_order_number" json:"supplier_order_number,omitempty"`
	LastUpdatedOn       time.Time       `db:"last_updated_on" json:"last_updated_on"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at" fieldtag:"generated"`
}

func (OwnStock) TableName() string {
	return "own_stocks"
}

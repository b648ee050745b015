// Package samm holds the wire formats of the Catena-X aspect models exchanged with
// partners and maps them to and from stored records. Only the fields the service reads
// or writes are modelled.
package samm

import (
	"github.com/shopspring/decimal"
)

// Quantity is a value with a unit such as "unit:piece" or "unit:kilogram".
type Quantity struct {
	Value decimal.Decimal `json:"value"`
	Unit  string          `json:"unit"`
}

type OrderPositionReference struct {
	SupplierOrderID         string `json:"supplierOrderId,omitempty"`
	CustomerOrderID         string `json:"customerOrderId,omitempty"`
	CustomerOrderPositionID string `json:"customerOrderPositionId,omitempty"`
}

// ItemStock 2.0

type ItemStock struct {
	MaterialGlobalAssetID string              `json:"materialGlobalAssetId,omitempty"`
	Direction             string              `json:"direction"`
	Positions             []ItemStockPosition `json:"positions"`
}

type ItemStockPosition struct {
	OrderPositionReference *OrderPositionReference `json:"orderPositionReference,omitempty"`
	AllocatedStocks        []AllocatedStock        `json:"allocatedStocks"`
}

type AllocatedStock struct {
	Quantity              Quantity `json:"quantityOnAllocatedStock"`
	StockLocationBPNS     string   `json:"stockLocationBPNS"`
	StockLocationBPNA     string   `json:"stockLocationBPNA"`
	IsBlocked             bool     `json:"isBlocked"`
	LastUpdatedOnDateTime string   `json:"lastUpdatedOnDateTime"`
}

// PlannedProduction 2.0

type PlannedProduction struct {
	MaterialGlobalAssetID string               `json:"materialGlobalAssetId,omitempty"`
	Positions             []ProductionPosition `json:"positions"`
}

type ProductionPosition struct {
	OrderPositionReference *OrderPositionReference     `json:"orderPositionReference,omitempty"`
	Outputs                []AllocatedProductionOutput `json:"allocatedPlannedProductionOutputs"`
}

type AllocatedProductionOutput struct {
	Quantity                  Quantity `json:"plannedProductionQuantity"`
	ProductionSiteBpns        string   `json:"productionSiteBpns"`
	EstimatedTimeOfCompletion string   `json:"estimatedTimeOfCompletion"`
	LastUpdatedOnDateTime     string   `json:"lastUpdatedOnDateTime"`
}

// ShortTermMaterialDemand 1.0

type ShortTermMaterialDemand struct {
	MaterialGlobalAssetID  string         `json:"materialGlobalAssetId,omitempty"`
	MaterialNumberCustomer string         `json:"materialNumberCustomer,omitempty"`
	MaterialNumberSupplier string         `json:"materialNumberSupplier,omitempty"`
	DemandSeries           []DemandSeries `json:"demandSeries"`
}

type DemandSeries struct {
	CustomerLocation         string         `json:"customerLocation"`
	ExpectedSupplierLocation string         `json:"expectedSupplierLocation,omitempty"`
	DemandCategory           DemandCategory `json:"demandCategory"`
	Demands                  []Demand       `json:"demands"`
}

type DemandCategory struct {
	Code string `json:"demandCategoryCode"`
}

type Demand struct {
	Day    string   `json:"day"`
	Demand Quantity `json:"demand"`
}

// DeliveryInformation 2.0

type DeliveryInformation struct {
	MaterialGlobalAssetID string             `json:"materialGlobalAssetId,omitempty"`
	Positions             []DeliveryPosition `json:"positions"`
}

type DeliveryPosition struct {
	OrderPositionReference *OrderPositionReference `json:"orderPositionReference,omitempty"`
	Deliveries             []Delivery              `json:"deliveries"`
}

type Delivery struct {
	Quantity              Quantity         `json:"deliveryQuantity"`
	TrackingNumber        string           `json:"trackingNumber,omitempty"`
	Incoterm              string           `json:"incoterm,omitempty"`
	TransitLocations      TransitLocations `json:"transitLocations"`
	TransitEvents         []TransitEvent   `json:"transitEvents"`
	LastUpdatedOnDateTime string           `json:"lastUpdatedOnDateTime,omitempty"`
}

type TransitLocations struct {
	Origin      Location `json:"origin"`
	Destination Location `json:"destination"`
}

type Location struct {
	Bpns string `json:"bpnsProperty"`
	Bpna string `json:"bpnaProperty,omitempty"`
}

type TransitEvent struct {
	DateTimeOfEvent string `json:"dateTimeOfEvent"`
	EventType       string `json:"eventType"`
}

// Transit event types; departure and arrival are each either estimated or actual.
const (
	EventEstimatedDeparture = "estimated-departure"
	EventActualDeparture    = "actual-departure"
	EventEstimatedArrival   = "estimated-arrival"
	EventActualArrival      = "actual-arrival"
)

// DemandAndCapacityNotification 2.0

type DemandAndCapacityNotification struct {
	Header  NotificationHeader  `json:"header"`
	Content NotificationContent `json:"content"`
}

type NotificationHeader struct {
	MessageID   string `json:"messageId,omitempty"`
	Context     string `json:"context,omitempty"`
	SenderBpn   string `json:"senderBpn,omitempty"`
	ReceiverBpn string `json:"receiverBpn,omitempty"`
	SentDate    string `json:"sentDateTime,omitempty"`
	Version     string `json:"version,omitempty"`
}

type NotificationContent struct {
	NotificationID          string   `json:"notificationId"`
	RelatedNotificationID   string   `json:"relatedNotificationId,omitempty"`
	LeadingRootCause        string   `json:"leadingRootCause"`
	Effect                  string   `json:"effect"`
	Status                  string   `json:"status"`
	Text                    string   `json:"text,omitempty"`
	AffectedSitesSender     []string `json:"affectedSitesSender,omitempty"`
	AffectedSitesRecipient  []string `json:"affectedSitesRecipient,omitempty"`
	AffectedMaterialNumbers []string `json:"materialsAffected,omitempty"`
	StartDateOfEffect       string   `json:"startDateOfEffect"`
	ExpectedEndDateOfEffect string   `json:"expectedEndDateOfEffect,omitempty"`
	ContentChangedAt        string   `json:"contentChangedAt,omitempty"`
}

// PartTypeInformation 1.0

type PartTypeInformation struct {
	CatenaXID            string          `json:"catenaXId"`
	PartTypeInformation  PartTypeDetails `json:"partTypeInformation"`
	PartSitesInformation []PartSite      `json:"partSitesInformationAsPlanned,omitempty"`
}

type PartTypeDetails struct {
	ManufacturerPartID string `json:"manufacturerPartId"`
	NameAtManufacturer string `json:"nameAtManufacturer"`
}

type PartSite struct {
	CatenaXSiteID string `json:"catenaXsiteId"`
	Function      string `json:"function"`
}

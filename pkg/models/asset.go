package models

import (
	"fmt"
	"strings"
)

// AssetType identifies one kind of submodel exchanged with partners.
type AssetType string

const (
	AssetTypeItemStock           AssetType = "ITEM_STOCK_SUBMODEL"
	AssetTypeProduction          AssetType = "PRODUCTION_SUBMODEL"
	AssetTypeDemand              AssetType = "DEMAND_SUBMODEL"
	AssetTypeDelivery            AssetType = "DELIVERY_SUBMODEL"
	AssetTypeNotification        AssetType = "NOTIFICATION"
	AssetTypePartTypeInformation AssetType = "PART_TYPE_INFORMATION_SUBMODEL"
)

var AssetTypes = []AssetType{
	AssetTypeItemStock,
	AssetTypeProduction,
	AssetTypeDemand,
	AssetTypeDelivery,
	AssetTypeNotification,
	AssetTypePartTypeInformation,
}

var semanticIDs = map[AssetType]string{
	AssetTypeItemStock:           "urn:samm:io.catenax.item_stock:2.0.0#ItemStock",
	AssetTypeProduction:          "urn:samm:io.catenax.planned_production:2.0.0#PlannedProduction",
	AssetTypeDemand:              "urn:samm:io.catenax.short_term_material_demand:1.0.0#ShortTermMaterialDemand",
	AssetTypeDelivery:            "urn:samm:io.catenax.delivery_information:2.0.0#DeliveryInformation",
	AssetTypeNotification:        "urn:samm:io.catenax.demand_and_capacity_notification:2.0.0#DemandAndCapacityNotification",
	AssetTypePartTypeInformation: "urn:samm:io.catenax.part_type_information:1.0.0#PartTypeInformation",
}

var erpRequestTypes = map[AssetType]string{
	AssetTypeItemStock:           "ItemStock",
	AssetTypeProduction:          "PlannedProduction",
	AssetTypeDemand:              "ShortTermMaterialDemand",
	AssetTypeDelivery:            "DeliveryInformation",
	AssetTypeNotification:        "DemandAndCapacityNotification",
	AssetTypePartTypeInformation: "PartTypeInformation",
}

// SemanticID returns the SAMM aspect id advertised in connector catalogs.
func (a AssetType) SemanticID() string {
	return semanticIDs[a]
}

// ErpRequestType is the request-type parameter sent to the ERP adapter.
func (a AssetType) ErpRequestType() string {
	return erpRequestTypes[a]
}

func (a AssetType) Valid() bool {
	_, ok := semanticIDs[a]
	return ok
}

func ParseAssetType(s string) (AssetType, error) {
	a := AssetType(strings.ToUpper(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("unknown asset type %q", s)
	}
	return a, nil
}

// AssetTypeForErpRequestType reverses ErpRequestType.
func AssetTypeForErpRequestType(requestType string) (AssetType, bool) {
	for a, rt := range erpRequestTypes {
		if strings.EqualFold(rt, requestType) {
			return a, true
		}
	}
	return "", false
}

// Direction is seen from the holder of the data: INBOUND for material (bought) and
// OUTBOUND for product (sold).
type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

func (d Direction) Valid() bool {
	return d == DirectionInbound || d == DirectionOutbound
}

// Opposite is the direction the other side of an exchange sees the same material in.
func (d Direction) Opposite() Direction {
	if d == DirectionInbound {
		return DirectionOutbound
	}
	return DirectionInbound
}

func ParseDirection(s string) (Direction, error) {
	d := Direction(strings.ToUpper(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("unknown direction %q", s)
	}
	return d, nil
}

package reconcile

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/samm"
)

func ownerOf(t *Target) samm.Owner {
	return samm.Owner{
		MaterialNumber: t.Key.MaterialNumber,
		PartnerID:      t.Key.PartnerID,
		Direction:      t.Key.Direction,
	}
}

func belongs(t *Target, materialNumber string, partnerID uuid.UUID, direction models.Direction) bool {
	return materialNumber == t.Key.MaterialNumber &&
		partnerID == t.Key.PartnerID &&
		direction == t.Key.Direction
}

// checkMaterial rejects payloads that do not name the material, or name another one.
func checkMaterial(t *Target, globalAssetID string) error {
	if globalAssetID == "" {
		return fmt.Errorf("%w: payload has no materialGlobalAssetId, expected %s", ErrInconsistentData, t.CXNumber())
	}
	if globalAssetID != t.CXNumber() {
		return fmt.Errorf("%w: payload is for %s, expected %s", ErrInconsistentData, globalAssetID, t.CXNumber())
	}
	return nil
}

// ItemStock is requested per direction since a partner may hold both.
func itemStockSubPath(t *Target) string {
	return t.CXNumber() + "/" + string(t.Key.Direction)
}

func StockDomain(store Store[models.ReportedStock]) Domain[models.ReportedStock] {
	return Domain[models.ReportedStock]{
		AssetType: models.AssetTypeItemStock,
		SubPath:   itemStockSubPath,
		Parse: func(payload []byte, t *Target) ([]models.ReportedStock, error) {
			in, err := samm.Decode[samm.ItemStock](payload)
			if err != nil {
				return nil, err
			}
			if err := checkMaterial(t, in.MaterialGlobalAssetID); err != nil {
				return nil, err
			}
			if in.Direction != "" && in.Direction != string(t.Key.Direction) {
				return nil, fmt.Errorf("%w: payload direction %s", ErrInconsistentData, in.Direction)
			}
			return samm.StocksFromItemStock(in, ownerOf(t))
		},
		Matches: func(t *Target, r models.ReportedStock) bool {
			return belongs(t, r.MaterialNumber, r.PartnerID, r.Direction) && t.Partner.OwnsSite(r.LocationBpns)
		},
		Store: store,
	}
}

// DemandDomain covers demand a customer partner reports for material it buys from us.
func DemandDomain(store Store[models.ReportedDemand]) Domain[models.ReportedDemand] {
	return Domain[models.ReportedDemand]{
		AssetType:  models.AssetTypeDemand,
		Directions: []models.Direction{models.DirectionInbound},
		Parse: func(payload []byte, t *Target) ([]models.ReportedDemand, error) {
			in, err := samm.Decode[samm.ShortTermMaterialDemand](payload)
			if err != nil {
				return nil, err
			}
			if err := checkMaterial(t, in.MaterialGlobalAssetID); err != nil {
				return nil, err
			}
			return samm.DemandsFromShortTermMaterialDemand(in, ownerOf(t))
		},
		Matches: func(t *Target, r models.ReportedDemand) bool {
			return belongs(t, r.MaterialNumber, r.PartnerID, r.Direction) && t.Partner.OwnsSite(r.DemandLocationBpns)
		},
		Store: store,
	}
}

// ProductionDomain covers production a supplier partner plans for material we buy.
func ProductionDomain(store Store[models.ReportedProduction]) Domain[models.ReportedProduction] {
	return Domain[models.ReportedProduction]{
		AssetType:  models.AssetTypeProduction,
		Directions: []models.Direction{models.DirectionOutbound},
		Parse: func(payload []byte, t *Target) ([]models.ReportedProduction, error) {
			in, err := samm.Decode[samm.PlannedProduction](payload)
			if err != nil {
				return nil, err
			}
			if err := checkMaterial(t, in.MaterialGlobalAssetID); err != nil {
				return nil, err
			}
			return samm.ProductionsFromPlannedProduction(in, ownerOf(t))
		},
		Matches: func(t *Target, r models.ReportedProduction) bool {
			return belongs(t, r.MaterialNumber, r.PartnerID, r.Direction) && t.Partner.OwnsSite(r.ProductionSiteBpns)
		},
		Store: store,
	}
}

// DeliveryDomain checks the partner's end of each delivery: the origin when it supplies,
// the destination when it buys.
func DeliveryDomain(store Store[models.ReportedDelivery]) Domain[models.ReportedDelivery] {
	return Domain[models.ReportedDelivery]{
		AssetType: models.AssetTypeDelivery,
		Parse: func(payload []byte, t *Target) ([]models.ReportedDelivery, error) {
			in, err := samm.Decode[samm.DeliveryInformation](payload)
			if err != nil {
				return nil, err
			}
			if err := checkMaterial(t, in.MaterialGlobalAssetID); err != nil {
				return nil, err
			}
			return samm.DeliveriesFromDeliveryInformation(in, ownerOf(t))
		},
		Matches: func(t *Target, r models.ReportedDelivery) bool {
			site := r.DestinationBpns
			if t.Key.Direction == models.DirectionOutbound {
				site = r.OriginBpns
			}
			return belongs(t, r.MaterialNumber, r.PartnerID, r.Direction) && t.Partner.OwnsSite(site)
		},
		Store: store,
	}
}

// NotificationDomain keeps the partner's notifications that name the material.
func NotificationDomain(store Store[models.ReportedNotification]) Domain[models.ReportedNotification] {
	return Domain[models.ReportedNotification]{
		AssetType: models.AssetTypeNotification,
		Parse: func(payload []byte, t *Target) ([]models.ReportedNotification, error) {
			list, err := samm.DecodeList[samm.DemandAndCapacityNotification](payload)
			if err != nil {
				return nil, err
			}
			var out []models.ReportedNotification
			for i := range list {
				if !list[i].AffectsMaterial(t.CXNumber()) {
					continue
				}
				row, err := samm.NotificationFromDemandAndCapacity(&list[i], ownerOf(t))
				if err != nil {
					return nil, err
				}
				out = append(out, *row)
			}
			return out, nil
		},
		Matches: func(t *Target, r models.ReportedNotification) bool {
			if !belongs(t, r.MaterialNumber, r.PartnerID, r.Direction) {
				return false
			}
			for _, site := range r.AffectedSites.Data {
				if !t.Partner.OwnsSite(site) {
					return false
				}
			}
			return true
		},
		Store: store,
	}
}

// OwnStockDomain stores our own stock as answered by the ERP adapter. It has no dataspace
// source and the payload need not carry a CX id.
func OwnStockDomain(store Store[models.OwnStock]) Domain[models.OwnStock] {
	return Domain[models.OwnStock]{
		AssetType: models.AssetTypeItemStock,
		Holder:    HeldByUs,
		Parse: func(payload []byte, t *Target) ([]models.OwnStock, error) {
			in, err := samm.Decode[samm.ItemStock](payload)
			if err != nil {
				return nil, err
			}
			if in.Direction != "" && in.Direction != string(t.Key.Direction) {
				return nil, fmt.Errorf("%w: payload direction %s", ErrInconsistentData, in.Direction)
			}
			return samm.OwnStocksFromItemStock(in, ownerOf(t))
		},
		Matches: func(t *Target, r models.OwnStock) bool {
			return belongs(t, r.MaterialNumber, r.PartnerID, r.Direction)
		},
		Store: store,
	}
}

package samm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectolinq"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
)

var ErrMalformed = errors.New("malformed submodel")

// Owner names whose data a mapped record describes.
type Owner struct {
	MaterialNumber string
	PartnerID      uuid.UUID
	Direction      models.Direction
}

// ParseTime accepts RFC 3339 timestamps with or without fractional seconds and plain dates.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty timestamp", ErrMalformed)
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: bad timestamp %q", ErrMalformed, s)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func optionalTime(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	return ParseTime(s)
}

// Decode unmarshals a submodel payload.
func Decode[T any](payload []byte) (*T, error) {
	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &out, nil
}

// DecodeList accepts either a single submodel object or an array of them.
func DecodeList[T any](payload []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var out []T
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return out, nil
	}
	one, err := Decode[T](trimmed)
	if err != nil {
		return nil, err
	}
	return []T{*one}, nil
}

func orderRefs(ref *OrderPositionReference) (customer, supplier string) {
	if ref == nil {
		return "", ""
	}
	return ref.CustomerOrderID, ref.SupplierOrderID
}

// StocksFromItemStock flattens every allocated stock of in into reported stock rows.
func StocksFromItemStock(in *ItemStock, owner Owner) ([]models.ReportedStock, error) {
	var out []models.ReportedStock
	for _, pos := range in.Positions {
		customer, supplier := orderRefs(pos.OrderPositionReference)
		for _, alloc := range pos.AllocatedStocks {
			updated, err := optionalTime(alloc.LastUpdatedOnDateTime)
			if err != nil {
				return nil, err
			}
			out = append(out, models.ReportedStock{
				ID:                  uuid.New(),
				MaterialNumber:      owner.MaterialNumber,
				PartnerID:           owner.PartnerID,
				Direction:           owner.Direction,
				Quantity:            alloc.Quantity.Value,
				MeasurementUnit:     alloc.Quantity.Unit,
				LocationBpns:        alloc.StockLocationBPNS,
				LocationBpna:        alloc.StockLocationBPNA,
				IsBlocked:           alloc.IsBlocked,
				CustomerOrderNumber: customer,
				SupplierOrderNumber: supplier,
				LastUpdatedOn:       updated,
			})
		}
	}
	return out, nil
}

func ProductionsFromPlannedProduction(in *PlannedProduction, owner Owner) ([]models.ReportedProduction, error) {
	var out []models.ReportedProduction
	for _, pos := range in.Positions {
		customer, _ := orderRefs(pos.OrderPositionReference)
		for _, o := range pos.Outputs {
			eta, err := ParseTime(o.EstimatedTimeOfCompletion)
			if err != nil {
				return nil, err
			}
			out = append(out, models.ReportedProduction{
				ID:                        uuid.New(),
				MaterialNumber:            owner.MaterialNumber,
				PartnerID:                 owner.PartnerID,
				Direction:                 owner.Direction,
				Quantity:                  o.Quantity.Value,
				MeasurementUnit:           o.Quantity.Unit,
				ProductionSiteBpns:        o.ProductionSiteBpns,
				EstimatedTimeOfCompletion: eta,
				CustomerOrderNumber:       customer,
			})
		}
	}
	return out, nil
}

func DemandsFromShortTermMaterialDemand(in *ShortTermMaterialDemand, owner Owner) ([]models.ReportedDemand, error) {
	var out []models.ReportedDemand
	for _, series := range in.DemandSeries {
		for _, d := range series.Demands {
			day, err := ParseTime(d.Day)
			if err != nil {
				return nil, err
			}
			out = append(out, models.ReportedDemand{
				ID:                   uuid.New(),
				MaterialNumber:       owner.MaterialNumber,
				PartnerID:            owner.PartnerID,
				Direction:            owner.Direction,
				Quantity:             d.Demand.Value,
				MeasurementUnit:      d.Demand.Unit,
				Day:                  day,
				DemandCategory:       series.DemandCategory.Code,
				DemandLocationBpns:   series.CustomerLocation,
				SupplierLocationBpns: series.ExpectedSupplierLocation,
			})
		}
	}
	return out, nil
}

// DeliveriesFromDeliveryInformation maps each delivery and takes departure and arrival
// from its transit events. An actual event wins over an estimated one.
func DeliveriesFromDeliveryInformation(in *DeliveryInformation, owner Owner) ([]models.ReportedDelivery, error) {
	var out []models.ReportedDelivery
	for _, pos := range in.Positions {
		customer, _ := orderRefs(pos.OrderPositionReference)
		for _, d := range pos.Deliveries {
			row := models.ReportedDelivery{
				ID:                  uuid.New(),
				MaterialNumber:      owner.MaterialNumber,
				PartnerID:           owner.PartnerID,
				Direction:           owner.Direction,
				Quantity:            d.Quantity.Value,
				MeasurementUnit:     d.Quantity.Unit,
				TrackingNumber:      d.TrackingNumber,
				Incoterm:            d.Incoterm,
				OriginBpns:          d.TransitLocations.Origin.Bpns,
				DestinationBpns:     d.TransitLocations.Destination.Bpns,
				CustomerOrderNumber: customer,
			}
			for _, ev := range d.TransitEvents {
				at, err := ParseTime(ev.DateTimeOfEvent)
				if err != nil {
					return nil, err
				}
				switch ev.EventType {
				case EventActualDeparture:
					row.DepartureType, row.DateOfDeparture = ev.EventType, at
				case EventEstimatedDeparture:
					if row.DepartureType != EventActualDeparture {
						row.DepartureType, row.DateOfDeparture = ev.EventType, at
					}
				case EventActualArrival:
					row.ArrivalType, row.DateOfArrival = ev.EventType, at
				case EventEstimatedArrival:
					if row.ArrivalType != EventActualArrival {
						row.ArrivalType, row.DateOfArrival = ev.EventType, at
					}
				default:
					return nil, fmt.Errorf("%w: unknown transit event type %q", ErrMalformed, ev.EventType)
				}
			}
			if row.DepartureType == "" {
				return nil, fmt.Errorf("%w: delivery without departure event", ErrMalformed)
			}
			out = append(out, row)
		}
	}
	return out, nil
}

// NotificationFromDemandAndCapacity maps one notification. Its affected sites are the
// sender's, which are the partner's own sites.
func NotificationFromDemandAndCapacity(in *DemandAndCapacityNotification, owner Owner) (*models.ReportedNotification, error) {
	c := in.Content
	if c.NotificationID == "" {
		return nil, fmt.Errorf("%w: notificationId is required", ErrMalformed)
	}
	start, err := ParseTime(c.StartDateOfEffect)
	if err != nil {
		return nil, err
	}
	changed, err := optionalTime(c.ContentChangedAt)
	if err != nil {
		return nil, err
	}
	row := &models.ReportedNotification{
		ID:               uuid.New(),
		MaterialNumber:   owner.MaterialNumber,
		PartnerID:        owner.PartnerID,
		Direction:        owner.Direction,
		NotificationID:   c.NotificationID,
		LeadingRootCause: c.LeadingRootCause,
		EffectType:       c.Effect,
		Status:           c.Status,
		Text:             c.Text,
		AffectedSites:    database.NewJSONB(append([]string{}, c.AffectedSitesSender...)),
		StartDate:        start,
		ContentChangedAt: changed,
	}
	if c.ExpectedEndDateOfEffect != "" {
		end, err := ParseTime(c.ExpectedEndDateOfEffect)
		if err != nil {
			return nil, err
		}
		row.ExpectedEndDate = &end
	}
	return row, nil
}

// AffectsMaterial reports whether the notification names cx. A notification without
// affected materials concerns every material shared with the partner.
func (n *DemandAndCapacityNotification) AffectsMaterial(cx string) bool {
	return len(n.Content.AffectedMaterialNumbers) == 0 || ectolinq.Contains(n.Content.AffectedMaterialNumbers, cx)
}

type orderKey struct {
	customer string
	supplier string
}

// ItemStockFromOwnStock builds the ItemStock payload served to a partner. Stocks sharing an
// order reference become one position. No stocks give an empty positions list.
func ItemStockFromOwnStock(materialGlobalAssetID string, direction models.Direction, stocks []models.OwnStock) *ItemStock {
	out := &ItemStock{
		MaterialGlobalAssetID: materialGlobalAssetID,
		Direction:             string(direction),
		Positions:             []ItemStockPosition{},
	}

	index := make(map[orderKey]int)
	for _, s := range stocks {
		k := orderKey{customer: s.CustomerOrderNumber, supplier: s.SupplierOrderNumber}
		i, ok := index[k]
		if !ok {
			pos := ItemStockPosition{AllocatedStocks: []AllocatedStock{}}
			if k.customer != "" || k.supplier != "" {
				pos.OrderPositionReference = &OrderPositionReference{CustomerOrderID: k.customer, SupplierOrderID: k.supplier}
			}
			out.Positions = append(out.Positions, pos)
			i = len(out.Positions) - 1
			index[k] = i
		}
		out.Positions[i].AllocatedStocks = append(out.Positions[i].AllocatedStocks, allocatedStock(s))
	}
	return out
}

func allocatedStock(s models.OwnStock) AllocatedStock {
	return AllocatedStock{
		Quantity:              Quantity{Value: s.Quantity, Unit: s.MeasurementUnit},
		StockLocationBPNS:     s.LocationBpns,
		StockLocationBPNA:     s.LocationBpna,
		IsBlocked:             s.IsBlocked,
		LastUpdatedOnDateTime: formatTime(s.LastUpdatedOn),
	}
}

// OwnStocksFromItemStock maps an ItemStock answer of our ERP system to own stock rows.
func OwnStocksFromItemStock(in *ItemStock, owner Owner) ([]models.OwnStock, error) {
	reported, err := StocksFromItemStock(in, owner)
	if err != nil {
		return nil, err
	}
	return ectolinq.Map(reported, func(r models.ReportedStock) models.OwnStock {
		return models.OwnStock{
			ID:                  r.ID,
			MaterialNumber:      r.MaterialNumber,
			PartnerID:           r.PartnerID,
			Direction:           r.Direction,
			Quantity:            r.Quantity,
			MeasurementUnit:     r.MeasurementUnit,
			LocationBpns:        r.LocationBpns,
			LocationBpna:        r.LocationBpna,
			IsBlocked:           r.IsBlocked,
			CustomerOrderNumber: r.CustomerOrderNumber,
			SupplierOrderNumber: r.SupplierOrderNumber,
			LastUpdatedOn:       r.LastUpdatedOn,
		}
	}), nil
}

// PartTypeFor builds the PartTypeInformation we serve for one of our products.
func PartTypeFor(material *models.Material) *PartTypeInformation {
	return &PartTypeInformation{
		CatenaXID: material.MaterialNumberCx,
		PartTypeInformation: PartTypeDetails{
			ManufacturerPartID: material.OwnMaterialNumber,
			NameAtManufacturer: material.Name,
		},
	}
}

package samm

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

var owner = Owner{
	MaterialNumber: "MNR-7307-AU340474.002",
	PartnerID:      uuid.MustParse("6a8f2d1c-3b4e-4f5a-9b8c-7d6e5f4a3b2c"),
	Direction:      models.DirectionInbound,
}

const itemStockPayload = `{
  "materialGlobalAssetId": "urn:uuid:48878d48-6f1d-47f5-8ded-a441d0d879df",
  "direction": "INBOUND",
  "positions": [
    {
      "orderPositionReference": {"supplierOrderId": "M-Nbr-4711", "customerOrderId": "C-Nbr-4711", "customerOrderPositionId": "PositionId-01"},
      "allocatedStocks": [
        {"isBlocked": false, "stockLocationBPNA": "BPNA4444444444AA", "lastUpdatedOnDateTime": "2023-04-28T14:23:00.123456789+14:00",
         "quantityOnAllocatedStock": {"value": 20.0, "unit": "unit:piece"}, "stockLocationBPNS": "BPNS4444444444XX"},
        {"isBlocked": true, "stockLocationBPNA": "BPNA4444444444AA", "lastUpdatedOnDateTime": "2023-04-28T14:23:00Z",
         "quantityOnAllocatedStock": {"value": 2.5, "unit": "unit:piece"}, "stockLocationBPNS": "BPNS4444444444XX"}
      ]
    },
    {"allocatedStocks": [
      {"isBlocked": false, "stockLocationBPNA": "BPNA4444444444AA", "lastUpdatedOnDateTime": "2023-04-28T14:23:00Z",
       "quantityOnAllocatedStock": {"value": 5, "unit": "unit:piece"}, "stockLocationBPNS": "BPNS4444444444XX"}
    ]}
  ]
}`

func TestStocksFromItemStock(t *testing.T) {
	in, err := Decode[ItemStock]([]byte(itemStockPayload))
	require.NoError(t, err)

	rows, err := StocksFromItemStock(in, owner)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.True(t, decimal.NewFromInt(20).Equal(rows[0].Quantity))
	assert.Equal(t, "unit:piece", rows[0].MeasurementUnit)
	assert.Equal(t, "C-Nbr-4711", rows[0].CustomerOrderNumber)
	assert.Equal(t, "M-Nbr-4711", rows[0].SupplierOrderNumber)
	assert.Equal(t, owner.PartnerID, rows[0].PartnerID)
	assert.Equal(t, models.DirectionInbound, rows[0].Direction)
	assert.True(t, rows[1].IsBlocked)
	assert.Empty(t, rows[2].CustomerOrderNumber)
	assert.NotEqual(t, rows[0].ID, rows[1].ID)
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode[ItemStock]([]byte(`{"positions": "nope"}`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = ParseTime("yesterday")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeList(t *testing.T) {
	one, err := DecodeList[DemandAndCapacityNotification]([]byte(`{"content":{"notificationId":"a"}}`))
	require.NoError(t, err)
	require.Len(t, one, 1)

	many, err := DecodeList[DemandAndCapacityNotification]([]byte(` [{"content":{"notificationId":"a"}},{"content":{"notificationId":"b"}}]`))
	require.NoError(t, err)
	assert.Len(t, many, 2)
}

func TestDemandsFromShortTermMaterialDemand(t *testing.T) {
	in := &ShortTermMaterialDemand{DemandSeries: []DemandSeries{{
		CustomerLocation:         "BPNS000000000001",
		ExpectedSupplierLocation: "BPNS000000000002",
		DemandCategory:           DemandCategory{Code: "0001"},
		Demands: []Demand{
			{Day: "2024-05-06", Demand: Quantity{Value: decimal.NewFromInt(100), Unit: "unit:piece"}},
			{Day: "2024-05-07", Demand: Quantity{Value: decimal.NewFromInt(50), Unit: "unit:piece"}},
		},
	}}}

	rows, err := DemandsFromShortTermMaterialDemand(in, owner)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, time.Date(2024, 5, 7, 0, 0, 0, 0, time.UTC), rows[1].Day)
	assert.Equal(t, "0001", rows[0].DemandCategory)
	assert.Equal(t, "BPNS000000000001", rows[0].DemandLocationBpns)
}

func TestDeliveriesFromDeliveryInformation(t *testing.T) {
	delivery := func(events ...TransitEvent) *DeliveryInformation {
		return &DeliveryInformation{Positions: []DeliveryPosition{{Deliveries: []Delivery{{
			Quantity:         Quantity{Value: decimal.NewFromInt(10), Unit: "unit:piece"},
			TransitLocations: TransitLocations{Origin: Location{Bpns: "BPNS1"}, Destination: Location{Bpns: "BPNS2"}},
			TransitEvents:    events,
		}}}}}
	}

	t.Run("actual events win", func(t *testing.T) {
		rows, err := DeliveriesFromDeliveryInformation(delivery(
			TransitEvent{DateTimeOfEvent: "2024-05-01T08:00:00Z", EventType: EventEstimatedDeparture},
			TransitEvent{DateTimeOfEvent: "2024-05-01T09:00:00Z", EventType: EventActualDeparture},
			TransitEvent{DateTimeOfEvent: "2024-05-03T08:00:00Z", EventType: EventEstimatedArrival},
		), owner)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, EventActualDeparture, rows[0].DepartureType)
		assert.Equal(t, 9, rows[0].DateOfDeparture.Hour())
		assert.Equal(t, EventEstimatedArrival, rows[0].ArrivalType)
		assert.Equal(t, "BPNS1", rows[0].OriginBpns)
	})

	t.Run("departure is required", func(t *testing.T) {
		_, err := DeliveriesFromDeliveryInformation(delivery(
			TransitEvent{DateTimeOfEvent: "2024-05-03T08:00:00Z", EventType: EventEstimatedArrival},
		), owner)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("unknown event type", func(t *testing.T) {
		_, err := DeliveriesFromDeliveryInformation(delivery(
			TransitEvent{DateTimeOfEvent: "2024-05-03T08:00:00Z", EventType: "teleported"},
		), owner)
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestNotificationFromDemandAndCapacity(t *testing.T) {
	n := &DemandAndCapacityNotification{Content: NotificationContent{
		NotificationID:          "3a7d1e3c-6b1b-4b2b-9b6c-0a7e2f3d4c5b",
		LeadingRootCause:        "strike",
		Effect:                  "demand-reduction",
		Status:                  "open",
		AffectedSitesSender:     []string{"BPNS000000000001"},
		AffectedMaterialNumbers: []string{"urn:uuid:1"},
		StartDateOfEffect:       "2024-05-01T00:00:00Z",
		ExpectedEndDateOfEffect: "2024-05-10T00:00:00Z",
	}}

	row, err := NotificationFromDemandAndCapacity(n, owner)
	require.NoError(t, err)
	assert.Equal(t, "demand-reduction", row.EffectType)
	assert.Equal(t, []string{"BPNS000000000001"}, row.AffectedSites.Data)
	require.NotNil(t, row.ExpectedEndDate)
	assert.Equal(t, 10, row.ExpectedEndDate.Day())

	assert.True(t, n.AffectsMaterial("urn:uuid:1"))
	assert.False(t, n.AffectsMaterial("urn:uuid:2"))

	n.Content.NotificationID = ""
	_, err = NotificationFromDemandAndCapacity(n, owner)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestItemStockFromOwnStock(t *testing.T) {
	updated := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	stock := func(customer string, qty int64) models.OwnStock {
		return models.OwnStock{
			Quantity:            decimal.NewFromInt(qty),
			MeasurementUnit:     "unit:piece",
			LocationBpns:        "BPNS000000000001",
			LocationBpna:        "BPNA000000000001",
			CustomerOrderNumber: customer,
			LastUpdatedOn:       updated,
		}
	}

	t.Run("groups by order reference", func(t *testing.T) {
		out := ItemStockFromOwnStock("urn:uuid:1", models.DirectionOutbound, []models.OwnStock{
			stock("C-1", 5), stock("", 3), stock("C-1", 7),
		})
		assert.Equal(t, "OUTBOUND", out.Direction)
		require.Len(t, out.Positions, 2)
		require.NotNil(t, out.Positions[0].OrderPositionReference)
		assert.Equal(t, "C-1", out.Positions[0].OrderPositionReference.CustomerOrderID)
		assert.Len(t, out.Positions[0].AllocatedStocks, 2)
		assert.Nil(t, out.Positions[1].OrderPositionReference)
		assert.Equal(t, "2024-05-01T08:00:00Z", out.Positions[1].AllocatedStocks[0].LastUpdatedOnDateTime)
	})

	t.Run("no stock keeps an empty positions list", func(t *testing.T) {
		out := ItemStockFromOwnStock("urn:uuid:1", models.DirectionInbound, nil)
		body, err := json.Marshal(out)
		require.NoError(t, err)
		assert.JSONEq(t, `{"materialGlobalAssetId":"urn:uuid:1","direction":"INBOUND","positions":[]}`, string(body))
	})

	t.Run("round trips through the ERP mapping", func(t *testing.T) {
		out := ItemStockFromOwnStock("urn:uuid:1", models.DirectionInbound, []models.OwnStock{stock("C-1", 5)})
		rows, err := OwnStocksFromItemStock(out, owner)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.True(t, decimal.NewFromInt(5).Equal(rows[0].Quantity))
		assert.Equal(t, updated, rows[0].LastUpdatedOn)
	})
}

package submodel

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/repositories"
)

const (
	partnerBpnl = "BPNL1234567890ZZ"
	supplied    = "MNR-7307-AU340474.002"
	sold        = "MNR-8101-ID146955.001"
	partnerCX   = "urn:uuid:partner-semiconductor"
	ourCX       = "urn:uuid:own-central-control-unit"
)

var partnerID = uuid.MustParse("6a8f2d1c-3b4e-4f5a-9b8c-7d6e5f4a3b2c")

type directory struct {
	materials   map[string]*models.Material
	relations   []*models.MaterialPartnerRelation
	discoveries int
	onDiscover  func(d *directory)
}

func newDirectory() *directory {
	return &directory{
		materials: map[string]*models.Material{
			supplied: {OwnMaterialNumber: supplied, MaterialFlag: true},
			sold:     {OwnMaterialNumber: sold, MaterialNumberCx: ourCX, Name: "Central Control Unit", ProductFlag: true},
		},
		relations: []*models.MaterialPartnerRelation{
			{OwnMaterialNumber: supplied, PartnerID: partnerID, PartnerSuppliesMaterial: true, PartnerMaterialNumber: "S-1", PartnerCXNumber: partnerCX},
			{OwnMaterialNumber: sold, PartnerID: partnerID, PartnerBuysMaterial: true},
		},
	}
}

func (d *directory) GetByBpnl(_ context.Context, bpnl string) (*models.Partner, error) {
	if bpnl != partnerBpnl {
		return nil, repositories.NotFound("partner %s not found", bpnl)
	}
	return &models.Partner{ID: partnerID, Bpnl: partnerBpnl}, nil
}

func (d *directory) Get(_ context.Context, n string) (*models.Material, error) {
	if m, ok := d.materials[n]; ok {
		return m, nil
	}
	return nil, repositories.NotFound("material %s not found", n)
}

func (d *directory) GetByCXNumber(_ context.Context, cx string) (*models.Material, error) {
	for _, m := range d.materials {
		if m.MaterialNumberCx == cx {
			return m, nil
		}
	}
	return nil, repositories.NotFound("material %s not found", cx)
}

func (d *directory) GetRelation(_ context.Context, n string, id uuid.UUID) (*models.MaterialPartnerRelation, error) {
	for _, r := range d.relations {
		if r.OwnMaterialNumber == n && r.PartnerID == id {
			return r, nil
		}
	}
	return nil, repositories.NotFound("relation not found")
}

func (d *directory) GetRelationByPartnerCX(_ context.Context, id uuid.UUID, cx string) (*models.MaterialPartnerRelation, error) {
	for _, r := range d.relations {
		if r.PartnerCXNumber == cx && r.PartnerID == id {
			return r, nil
		}
	}
	return nil, repositories.NotFound("relation not found")
}

func (d *directory) Discover(_ context.Context, _ *models.Partner) error {
	d.discoveries++
	if d.onDiscover != nil {
		d.onDiscover(d)
	}
	return nil
}

type stocks map[models.SyncKey][]models.OwnStock

func (s stocks) List(_ context.Context, key models.SyncKey) ([]models.OwnStock, error) {
	return s[key], nil
}

type recorder struct {
	notified []models.ErpTriggerKey
	enqueued []models.SyncKey
}

func (r *recorder) Notify(_ context.Context, key models.ErpTriggerKey) error {
	r.notified = append(r.notified, key)
	return nil
}

func (r *recorder) EnqueueReconcile(_ context.Context, key models.SyncKey) error {
	r.enqueued = append(r.enqueued, key)
	return nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func materialStockKey() models.SyncKey {
	return models.SyncKey{MaterialNumber: supplied, PartnerID: partnerID, AssetType: models.AssetTypeItemStock, Direction: models.DirectionInbound}
}

func TestProvider_ItemStock(t *testing.T) {
	ctx := context.Background()

	t.Run("serves own stock and triggers follow-ups", func(t *testing.T) {
		dir := newDirectory()
		rec := &recorder{}
		own := stocks{materialStockKey(): {{
			MaterialNumber:  supplied,
			PartnerID:       partnerID,
			Direction:       models.DirectionInbound,
			Quantity:        decimal.NewFromInt(500),
			MeasurementUnit: "unit:piece",
			LocationBpns:    "BPNS0000000000AA",
			LastUpdatedOn:   time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		}}}
		p := NewProvider(dir, dir, own, dir, rec, rec, DefaultConfig(), testLogger())

		out, err := p.ItemStock(ctx, partnerBpnl, partnerCX, models.DirectionInbound)
		require.NoError(t, err)
		assert.Equal(t, partnerCX, out.MaterialGlobalAssetID)
		require.Len(t, out.Positions, 1)
		require.Len(t, out.Positions[0].AllocatedStocks, 1)
		assert.Equal(t, "500", out.Positions[0].AllocatedStocks[0].Quantity.Value.String())

		assert.Equal(t, []models.ErpTriggerKey{{
			PartnerBpnl:       partnerBpnl,
			OwnMaterialNumber: supplied,
			AssetType:         models.AssetTypeItemStock,
			Direction:         models.DirectionInbound,
		}}, rec.notified)

		counterpart := materialStockKey()
		counterpart.Direction = models.DirectionOutbound
		assert.Equal(t, []models.SyncKey{counterpart}, rec.enqueued)
		assert.Zero(t, dir.discoveries)
	})

	t.Run("no stock gives empty positions", func(t *testing.T) {
		dir := newDirectory()
		p := NewProvider(dir, dir, stocks{}, nil, nil, nil, Config{}, testLogger())

		out, err := p.ItemStock(ctx, partnerBpnl, ourCX, models.DirectionOutbound)
		require.NoError(t, err)

		body, err := json.Marshal(out)
		require.NoError(t, err)
		assert.JSONEq(t, `{"materialGlobalAssetId":"`+ourCX+`","direction":"OUTBOUND","positions":[]}`, string(body))
	})

	t.Run("unknown partner", func(t *testing.T) {
		dir := newDirectory()
		p := NewProvider(dir, dir, stocks{}, dir, nil, nil, Config{}, testLogger())

		_, err := p.ItemStock(ctx, "BPNL0000000000AA", partnerCX, models.DirectionInbound)
		assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
		assert.Zero(t, dir.discoveries)
	})

	t.Run("unknown material runs discovery once", func(t *testing.T) {
		dir := newDirectory()
		p := NewProvider(dir, dir, stocks{}, dir, nil, nil, Config{}, testLogger())

		_, err := p.ItemStock(ctx, partnerBpnl, "urn:uuid:nobody", models.DirectionInbound)
		assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
		assert.Equal(t, 1, dir.discoveries)
	})

	t.Run("discovery makes the material known", func(t *testing.T) {
		dir := newDirectory()
		dir.relations[0].PartnerCXNumber = ""
		dir.onDiscover = func(d *directory) { d.relations[0].PartnerCXNumber = partnerCX }
		p := NewProvider(dir, dir, stocks{}, dir, nil, nil, Config{}, testLogger())

		out, err := p.ItemStock(ctx, partnerBpnl, partnerCX, models.DirectionInbound)
		require.NoError(t, err)
		assert.Empty(t, out.Positions)
		assert.Equal(t, 1, dir.discoveries)
	})

	t.Run("direction the material is not shared in", func(t *testing.T) {
		dir := newDirectory()
		dir.relations[1].PartnerBuysMaterial = false
		p := NewProvider(dir, dir, stocks{}, nil, nil, nil, Config{}, testLogger())

		_, err := p.ItemStock(ctx, partnerBpnl, ourCX, models.DirectionOutbound)
		assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
	})

	t.Run("bad direction", func(t *testing.T) {
		dir := newDirectory()
		p := NewProvider(dir, dir, stocks{}, nil, nil, nil, Config{}, testLogger())

		_, err := p.ItemStock(ctx, partnerBpnl, ourCX, models.Direction("SIDEWAYS"))
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	})
}

func TestProvider_PartTypeInformation(t *testing.T) {
	ctx := context.Background()
	dir := newDirectory()
	p := NewProvider(dir, dir, stocks{}, nil, nil, nil, Config{}, testLogger())

	out, err := p.PartTypeInformation(ctx, partnerBpnl, sold)
	require.NoError(t, err)
	assert.Equal(t, ourCX, out.CatenaXID)
	assert.Equal(t, sold, out.PartTypeInformation.ManufacturerPartID)
	assert.Equal(t, "Central Control Unit", out.PartTypeInformation.NameAtManufacturer)

	_, err = p.PartTypeInformation(ctx, partnerBpnl, supplied)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err), "material bought from the partner")

	_, err = p.PartTypeInformation(ctx, partnerBpnl, "MNR-0000")
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}

package repositories_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/internal/testinfra"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/repositories"
)

type fixture struct {
	db        database.DB
	partners  *repositories.PartnerRepository
	materials *repositories.MaterialRepository
	partner   *models.Partner
	material  *models.Material
}

func setup(t *testing.T) *fixture {
	db := testinfra.Postgres(t)
	logger := testinfra.Logger()
	f := &fixture{
		db:        db,
		partners:  repositories.NewPartnerRepository(db, logger),
		materials: repositories.NewMaterialRepository(db, logger),
	}

	ctx := context.Background()
	f.partner = &models.Partner{
		Name:   "Supplier",
		Bpnl:   "BPNL1234567890ZZ",
		EdcURL: "https://supplier.example/api/v1/dsp",
		Sites:  database.NewJSONB([]models.Site{{Bpns: "BPNS000000000001"}}),
	}
	require.NoError(t, f.partners.Create(ctx, f.partner))

	f.material = &models.Material{OwnMaterialNumber: "MNR-7307-AU340474.002", MaterialNumberCx: "urn:uuid:own", Name: "Semiconductor", MaterialFlag: true}
	require.NoError(t, f.materials.Upsert(ctx, f.material))
	require.NoError(t, f.materials.UpsertRelation(ctx, &models.MaterialPartnerRelation{
		OwnMaterialNumber:       f.material.OwnMaterialNumber,
		PartnerID:               f.partner.ID,
		PartnerSuppliesMaterial: true,
		PartnerCXNumber:         "urn:uuid:partner",
	}))
	return f
}

func statusOf(err error) int {
	if !httperror.IsHTTPError(err) {
		return 0
	}
	return httperror.GetStatusCode(err)
}

func TestPartnerRepository(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	got, err := f.partners.GetByBpnl(ctx, "BPNL1234567890ZZ")
	require.NoError(t, err)
	assert.Equal(t, f.partner.ID, got.ID)
	assert.Equal(t, "BPNS000000000001", got.Sites.Data[0].Bpns)

	dup := &models.Partner{Name: "again", Bpnl: "BPNL1234567890ZZ", EdcURL: "https://x"}
	assert.Equal(t, http.StatusConflict, statusOf(f.partners.Create(ctx, dup)))

	_, err = f.partners.GetByBpnl(ctx, "BPNL0000000000AA")
	assert.True(t, repositories.IsNotFound(err))

	got.Name = "Renamed"
	require.NoError(t, f.partners.Update(ctx, got))
	again, err := f.partners.GetByID(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", again.Name)

	assert.Equal(t, http.StatusNotFound, statusOf(f.partners.Delete(ctx, uuid.New())))
}

func TestMaterialRepository(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	byCX, err := f.materials.GetByCXNumber(ctx, "urn:uuid:own")
	require.NoError(t, err)
	assert.Equal(t, f.material.OwnMaterialNumber, byCX.OwnMaterialNumber)

	rel, err := f.materials.GetRelationByPartnerCX(ctx, f.partner.ID, "urn:uuid:partner")
	require.NoError(t, err)
	assert.True(t, rel.PartnerSuppliesMaterial)

	require.NoError(t, f.materials.SetPartnerCXNumber(ctx, f.material.OwnMaterialNumber, f.partner.ID, "urn:uuid:new"))
	rel, err = f.materials.GetRelation(ctx, f.material.OwnMaterialNumber, f.partner.ID)
	require.NoError(t, err)
	assert.Equal(t, "urn:uuid:new", rel.PartnerCXNumber)

	_, err = f.materials.GetRelation(ctx, "unknown", f.partner.ID)
	assert.True(t, repositories.IsNotFound(err))

	rels, err := f.materials.ListRelationsByPartner(ctx, f.partner.ID)
	require.NoError(t, err)
	assert.Len(t, rels, 1)
}

func stock(f *fixture, qty int64) models.ReportedStock {
	return models.ReportedStock{
		ID:              uuid.New(),
		MaterialNumber:  f.material.OwnMaterialNumber,
		PartnerID:       f.partner.ID,
		Direction:       models.DirectionOutbound,
		Quantity:        decimal.NewFromInt(qty),
		MeasurementUnit: "unit:piece",
		LocationBpns:    "BPNS000000000001",
		LastUpdatedOn:   time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestSnapshotRepository_ReplaceAll(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	repo := repositories.NewSnapshotRepository[models.ReportedStock](f.db, testinfra.Logger())
	key := models.SyncKey{
		MaterialNumber: f.material.OwnMaterialNumber,
		PartnerID:      f.partner.ID,
		AssetType:      models.AssetTypeItemStock,
		Direction:      models.DirectionOutbound,
	}
	other := key
	other.Direction = models.DirectionInbound

	t.Run("replaces previous rows", func(t *testing.T) {
		require.NoError(t, repo.ReplaceAll(ctx, key, []models.ReportedStock{stock(f, 1), stock(f, 2)}))
		require.NoError(t, repo.ReplaceAll(ctx, key, []models.ReportedStock{stock(f, 3)}))

		rows, err := repo.List(ctx, key)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.True(t, decimal.NewFromInt(3).Equal(rows[0].Quantity))
	})

	t.Run("same input twice gives the same state", func(t *testing.T) {
		batch := []models.ReportedStock{stock(f, 4), stock(f, 5)}
		require.NoError(t, repo.ReplaceAll(ctx, key, batch))
		first, err := repo.List(ctx, key)
		require.NoError(t, err)

		require.NoError(t, repo.ReplaceAll(ctx, key, batch))
		second, err := repo.List(ctx, key)
		require.NoError(t, err)

		assert.Equal(t, len(first), len(second))
		for i := range first {
			assert.True(t, first[i].Quantity.Equal(second[i].Quantity))
		}
	})

	t.Run("other keys are untouched", func(t *testing.T) {
		inbound := stock(f, 9)
		inbound.Direction = models.DirectionInbound
		require.NoError(t, repo.ReplaceAll(ctx, other, []models.ReportedStock{inbound}))
		require.NoError(t, repo.ReplaceAll(ctx, key, nil))

		rows, err := repo.List(ctx, other)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
		rows, err = repo.List(ctx, key)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("failed insert keeps previous rows", func(t *testing.T) {
		require.NoError(t, repo.ReplaceAll(ctx, key, []models.ReportedStock{stock(f, 7)}))

		dup := stock(f, 8)
		err := repo.ReplaceAll(ctx, key, []models.ReportedStock{dup, dup})
		require.Error(t, err)

		rows, err := repo.List(ctx, key)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.True(t, decimal.NewFromInt(7).Equal(rows[0].Quantity))
	})

	t.Run("joins an outer transaction", func(t *testing.T) {
		txCtx, tx, err := f.db.GetTx(ctx, nil)
		require.NoError(t, err)
		require.NoError(t, repo.ReplaceAll(txCtx, key, []models.ReportedStock{stock(f, 11)}))
		require.NoError(t, tx.Rollback(txCtx))

		rows, err := repo.List(ctx, key)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.True(t, decimal.NewFromInt(7).Equal(rows[0].Quantity))
	})
}

func TestErpRequestRepository(t *testing.T) {
	db := testinfra.Postgres(t)
	repo := repositories.NewErpRequestRepository(db, testinfra.Logger())
	ctx := context.Background()

	req := &models.OutgoingErpRequest{
		PartnerBpnl:       "BPNL1234567890ZZ",
		OwnMaterialNumber: "MNR-1",
		AssetType:         models.AssetTypeItemStock,
		RequestType:       "ItemStock",
		Direction:         models.DirectionInbound,
		SammVersion:       "2.0",
		RequestDate:       time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, repo.Create(ctx, req))
	require.NoError(t, repo.SetResponseCode(ctx, req.ID, http.StatusCreated))

	ok, err := repo.MarkAnswered(ctx, req.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.MarkAnswered(ctx, req.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ResponseCode)
	assert.Equal(t, http.StatusCreated, *got.ResponseCode)
	assert.True(t, got.Answered())

	_, err = repo.GetByID(ctx, uuid.New())
	assert.True(t, repositories.IsNotFound(err))

	recent, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

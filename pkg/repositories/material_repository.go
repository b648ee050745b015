package repositories

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	materialsTable = "materials"
	relationsTable = "material_partner_relations"
)

var (
	materialStruct = database.NewStruct(new(models.Material))
	relationStruct = database.NewStruct(new(models.MaterialPartnerRelation))
)

// MaterialRepository stores our materials and their relations to partners.
type MaterialRepository struct {
	*Repository
}

func NewMaterialRepository(db database.DB, logger ectologger.Logger) *MaterialRepository {
	return &MaterialRepository{
		Repository: NewRepository(db, logger),
	}
}

// Upsert creates the material or updates every field but its number.
func (r *MaterialRepository) Upsert(ctx context.Context, m *models.Material) error {
	ctx, span := tracing.StartSpan(ctx, "MaterialRepository.Upsert")
	defer span.End()

	ib := database.NewInsertBuilder()
	ib.InsertInto(materialsTable).
		Cols("own_material_number", "material_number_cx", "name", "material_flag", "product_flag", "created_at", "updated_at").
		Values(m.OwnMaterialNumber, m.MaterialNumberCx, m.Name, m.MaterialFlag, m.ProductFlag, database.Now(), database.Now())
	ub := ib.OnConflict("own_material_number")
	ub.Set(
		ub.Assign("material_number_cx", database.Excluded("material_number_cx")),
		ub.Assign("name", database.Excluded("name")),
		ub.Assign("material_flag", database.Excluded("material_flag")),
		ub.Assign("product_flag", database.Excluded("product_flag")),
		ub.Assign("updated_at", database.Now()),
	)
	ib.Returning("created_at", "updated_at")

	query, args := ib.Build()
	if err := r.Conn(ctx).QueryRowContext(ctx, query, args...).Scan(&m.CreatedAt, &m.UpdatedAt); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("material_number", m.OwnMaterialNumber).Error("failed to upsert material")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to save material")
	}
	return nil
}

func (r *MaterialRepository) Get(ctx context.Context, ownMaterialNumber string) (*models.Material, error) {
	ctx, span := tracing.StartSpan(ctx, "MaterialRepository.Get")
	defer span.End()

	sb := materialStruct.SelectFrom(materialsTable)
	sb.Where(sb.Equal("own_material_number", ownMaterialNumber))

	query, args := sb.Build()
	var m models.Material
	if err := r.getOne(ctx, &m, "material "+ownMaterialNumber, query, args...); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetByCXNumber finds one of our materials by the CX id we publish for it.
func (r *MaterialRepository) GetByCXNumber(ctx context.Context, cx string) (*models.Material, error) {
	ctx, span := tracing.StartSpan(ctx, "MaterialRepository.GetByCXNumber")
	defer span.End()

	sb := materialStruct.SelectFrom(materialsTable)
	sb.Where(sb.Equal("material_number_cx", cx))

	query, args := sb.Build()
	var m models.Material
	if err := r.getOne(ctx, &m, "material "+cx, query, args...); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MaterialRepository) List(ctx context.Context) ([]models.Material, error) {
	ctx, span := tracing.StartSpan(ctx, "MaterialRepository.List")
	defer span.End()

	sb := materialStruct.SelectFrom(materialsTable)
	sb.OrderBy("own_material_number")

	query, args := sb.Build()
	var materials []models.Material
	if err := r.Conn(ctx).SelectContext(ctx, &materials, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list materials")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list materials")
	}
	return materials, nil
}

// UpsertRelation creates or replaces the relation of a material to a partner.
func (r *MaterialRepository) UpsertRelation(ctx context.Context, rel *models.MaterialPartnerRelation) error {
	ctx, span := tracing.StartSpan(ctx, "MaterialRepository.UpsertRelation")
	defer span.End()

	ib := database.NewInsertBuilder()
	ib.InsertInto(relationsTable).
		Cols("own_material_number", "partner_id", "partner_supplies_material", "partner_buys_material",
			"partner_material_number", "partner_cx_number", "created_at", "updated_at").
		Values(rel.OwnMaterialNumber, rel.PartnerID, rel.PartnerSuppliesMaterial, rel.PartnerBuysMaterial,
			rel.PartnerMaterialNumber, rel.PartnerCXNumber, database.Now(), database.Now())
	ub := ib.OnConflict("own_material_number", "partner_id")
	ub.Set(
		ub.Assign("partner_supplies_material", database.Excluded("partner_supplies_material")),
		ub.Assign("partner_buys_material", database.Excluded("partner_buys_material")),
		ub.Assign("partner_material_number", database.Excluded("partner_material_number")),
		ub.Assign("partner_cx_number", database.Excluded("partner_cx_number")),
		ub.Assign("updated_at", database.Now()),
	)
	ib.Returning("created_at", "updated_at")

	query, args := ib.Build()
	if err := r.Conn(ctx).QueryRowContext(ctx, query, args...).Scan(&rel.CreatedAt, &rel.UpdatedAt); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"material_number": rel.OwnMaterialNumber,
			"partner_id":      rel.PartnerID,
		}).Error("failed to upsert relation")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to save material relation")
	}
	return nil
}

func (r *MaterialRepository) GetRelation(ctx context.Context, ownMaterialNumber string, partnerID uuid.UUID) (*models.MaterialPartnerRelation, error) {
	ctx, span := tracing.StartSpan(ctx, "MaterialRepository.GetRelation")
	defer span.End()

	sb := relationStruct.SelectFrom(relationsTable)
	sb.Where(sb.Equal("own_material_number", ownMaterialNumber), sb.Equal("partner_id", partnerID))

	query, args := sb.Build()
	var rel models.MaterialPartnerRelation
	if err := r.getOne(ctx, &rel, "relation of "+ownMaterialNumber, query, args...); err != nil {
		return nil, err
	}
	return &rel, nil
}

// GetRelationByPartnerCX finds the relation through the CX id the partner publishes for
// the material.
func (r *MaterialRepository) GetRelationByPartnerCX(ctx context.Context, partnerID uuid.UUID, cx string) (*models.MaterialPartnerRelation, error) {
	ctx, span := tracing.StartSpan(ctx, "MaterialRepository.GetRelationByPartnerCX")
	defer span.End()

	sb := relationStruct.SelectFrom(relationsTable)
	sb.Where(sb.Equal("partner_id", partnerID), sb.Equal("partner_cx_number", cx))

	query, args := sb.Build()
	var rel models.MaterialPartnerRelation
	if err := r.getOne(ctx, &rel, "relation for "+cx, query, args...); err != nil {
		return nil, err
	}
	return &rel, nil
}

func (r *MaterialRepository) ListRelationsByPartner(ctx context.Context, partnerID uuid.UUID) ([]models.MaterialPartnerRelation, error) {
	ctx, span := tracing.StartSpan(ctx, "MaterialRepository.ListRelationsByPartner")
	defer span.End()

	sb := relationStruct.SelectFrom(relationsTable)
	sb.Where(sb.Equal("partner_id", partnerID))
	sb.OrderBy("own_material_number")

	query, args := sb.Build()
	var rels []models.MaterialPartnerRelation
	if err := r.Conn(ctx).SelectContext(ctx, &rels, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list relations")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list material relations")
	}
	return rels, nil
}

// SetPartnerCXNumber records a CX id learned through part-type discovery.
func (r *MaterialRepository) SetPartnerCXNumber(ctx context.Context, ownMaterialNumber string, partnerID uuid.UUID, cx string) error {
	ctx, span := tracing.StartSpan(ctx, "MaterialRepository.SetPartnerCXNumber")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(relationsTable).
		Set(ub.Assign("partner_cx_number", cx), ub.Assign("updated_at", database.Now())).
		Where(ub.Equal("own_material_number", ownMaterialNumber), ub.Equal("partner_id", partnerID))

	query, args := ub.Build()
	_, err := r.Conn(ctx).ExecContext(ctx, query, args...)
	return err
}

package repositories

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const partnersTable = "partners"

var partnerStruct = database.NewStruct(new(models.Partner))

// PartnerRepository handles database operations for partners
type PartnerRepository struct {
	*Repository
}

func NewPartnerRepository(db database.DB, logger ectologger.Logger) *PartnerRepository {
	return &PartnerRepository{
		Repository: NewRepository(db, logger),
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// Create creates a new partner. The BPNL is unique.
func (r *PartnerRepository) Create(ctx context.Context, partner *models.Partner) error {
	ctx, span := tracing.StartSpan(ctx, "PartnerRepository.Create")
	defer span.End()

	if partner.ID == uuid.Nil {
		partner.ID = uuid.New()
	}
	partner.Bpnl = strings.TrimSpace(partner.Bpnl)

	ib := database.NewInsertBuilder()
	ib.InsertInto(partnersTable).
		Cols("id", "name", "bpnl", "edc_url", "sites", "created_at", "updated_at").
		Values(partner.ID, partner.Name, partner.Bpnl, partner.EdcURL, partner.Sites, database.Now(), database.Now()).
		Returning("created_at", "updated_at")

	query, args := ib.Build()
	err := r.Conn(ctx).QueryRowContext(ctx, query, args...).Scan(&partner.CreatedAt, &partner.UpdatedAt)
	if isUniqueViolation(err) {
		return Conflict("partner %s already exists", partner.Bpnl)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"partner_bpnl": partner.Bpnl,
		}).Error("failed to create partner")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create partner")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"partner_id":   partner.ID,
		"partner_bpnl": partner.Bpnl,
	}).Debugf("Created %s", partnersTable)
	return nil
}

func (r *PartnerRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Partner, error) {
	ctx, span := tracing.StartSpan(ctx, "PartnerRepository.GetByID")
	defer span.End()

	sb := partnerStruct.SelectFrom(partnersTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var partner models.Partner
	if err := r.getOne(ctx, &partner, "partner "+id.String(), query, args...); err != nil {
		return nil, err
	}
	return &partner, nil
}

func (r *PartnerRepository) GetByBpnl(ctx context.Context, bpnl string) (*models.Partner, error) {
	ctx, span := tracing.StartSpan(ctx, "PartnerRepository.GetByBpnl")
	defer span.End()

	sb := partnerStruct.SelectFrom(partnersTable)
	sb.Where(sb.Equal("bpnl", strings.TrimSpace(bpnl)))

	query, args := sb.Build()
	var partner models.Partner
	if err := r.getOne(ctx, &partner, "partner "+bpnl, query, args...); err != nil {
		return nil, err
	}
	return &partner, nil
}

func (r *PartnerRepository) List(ctx context.Context) ([]models.Partner, error) {
	ctx, span := tracing.StartSpan(ctx, "PartnerRepository.List")
	defer span.End()

	sb := partnerStruct.SelectFrom(partnersTable)
	sb.OrderBy("name")

	query, args := sb.Build()
	var partners []models.Partner
	if err := r.Conn(ctx).SelectContext(ctx, &partners, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list partners")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list partners")
	}
	return partners, nil
}

// Update changes name, connector address and sites. The BPNL is immutable.
func (r *PartnerRepository) Update(ctx context.Context, partner *models.Partner) error {
	ctx, span := tracing.StartSpan(ctx, "PartnerRepository.Update")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(partnersTable).
		Set(
			ub.Assign("name", partner.Name),
			ub.Assign("edc_url", partner.EdcURL),
			ub.Assign("sites", partner.Sites),
			ub.Assign("updated_at", database.Now()),
		).
		Where(ub.Equal("id", partner.ID))

	query, args := ub.Build()
	result, err := r.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to update partner")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update partner")
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return NotFound("partner %s not found", partner.ID)
	}
	return nil
}

// Delete removes the partner; relations and reported data cascade.
func (r *PartnerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "PartnerRepository.Delete")
	defer span.End()

	db := database.NewDeleteBuilder()
	db.DeleteFrom(partnersTable).Where(db.Equal("id", id))

	query, args := db.Build()
	result, err := r.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to delete partner")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete partner")
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return NotFound("partner %s not found", id)
	}
	return nil
}

package scheduler

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const triggerTuplesTable = "erp_trigger_tuples"

var triggerTupleStruct = database.NewStruct(new(models.ErpTriggerTuple))

// TriggerRepository stores trigger tuples in Postgres. It is not scoped to a partner:
// the scheduler works across all of them.
type TriggerRepository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewTriggerRepository(db database.DB, logger ectologger.Logger) *TriggerRepository {
	return &TriggerRepository{
		db:     db,
		logger: logger,
	}
}

func whereKey(cond interface {
	Equal(field string, value any) string
}, key models.ErpTriggerKey) []string {
	return []string{
		cond.Equal("partner_bpnl", key.PartnerBpnl),
		cond.Equal("own_material_number", key.OwnMaterialNumber),
		cond.Equal("asset_type", key.AssetType),
		cond.Equal("direction", key.Direction),
	}
}

func (r *TriggerRepository) Create(ctx context.Context, t *models.ErpTriggerTuple) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "TriggerRepository.Create")
	defer span.End()

	ib := triggerTupleStruct.InsertInto(triggerTuplesTable, t)
	ib.OnConflictDoNothing()

	query, args := ib.Build()
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to insert trigger tuple")
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *TriggerRepository) TouchLastPartnerRequest(ctx context.Context, key models.ErpTriggerKey, at int64) error {
	ctx, span := tracing.StartSpan(ctx, "TriggerRepository.TouchLastPartnerRequest")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(triggerTuplesTable).Set(ub.Assign("last_partner_request", at)).Where(whereKey(ub, key)...)

	query, args := ub.Build()
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	return err
}

func (r *TriggerRepository) SetNextScheduled(ctx context.Context, key models.ErpTriggerKey, next int64) error {
	ctx, span := tracing.StartSpan(ctx, "TriggerRepository.SetNextScheduled")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(triggerTuplesTable).Set(ub.Assign("next_erp_request_scheduled", next)).Where(whereKey(ub, key)...)

	query, args := ub.Build()
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	return err
}

func (r *TriggerRepository) Delete(ctx context.Context, key models.ErpTriggerKey) error {
	ctx, span := tracing.StartSpan(ctx, "TriggerRepository.Delete")
	defer span.End()

	db := database.NewDeleteBuilder()
	db.DeleteFrom(triggerTuplesTable).Where(whereKey(db, key)...)

	query, args := db.Build()
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	return err
}

func (r *TriggerRepository) List(ctx context.Context) ([]models.ErpTriggerTuple, error) {
	ctx, span := tracing.StartSpan(ctx, "TriggerRepository.List")
	defer span.End()

	sb := triggerTupleStruct.SelectFrom(triggerTuplesTable)
	sb.OrderBy("next_erp_request_scheduled").Asc()

	query, args := sb.Build()
	var tuples []models.ErpTriggerTuple
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &tuples, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list trigger tuples")
		return nil, err
	}

	r.logger.WithContext(ctx).Debugf("Found %d trigger tuples", len(tuples))
	return tuples, nil
}

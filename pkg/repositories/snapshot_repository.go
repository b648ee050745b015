package repositories

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Snapshot is a row type whose rows for one sync key are replaced as a whole.
type Snapshot interface {
	models.ReportedStock | models.ReportedDemand | models.ReportedDelivery |
		models.ReportedProduction | models.ReportedNotification | models.OwnStock
	TableName() string
}

// SnapshotRepository stores the rows of one reported data kind. Rows are keyed by
// material number, partner and direction; the asset type is implied by the table.
type SnapshotRepository[T Snapshot] struct {
	*Repository
	table     string
	structure *database.Struct
	insert    *database.Struct
}

func NewSnapshotRepository[T Snapshot](db database.DB, logger ectologger.Logger) *SnapshotRepository[T] {
	var zero T
	structure := database.NewStruct(new(T))
	return &SnapshotRepository[T]{
		Repository: NewRepository(db, logger),
		table:      zero.TableName(),
		structure:  structure,
		insert:     structure.WithoutTag("generated"),
	}
}

func whereSyncKey(cond interface {
	Equal(field string, value any) string
}, key models.SyncKey) []string {
	return []string{
		cond.Equal("material_number", key.MaterialNumber),
		cond.Equal("partner_id", key.PartnerID),
		cond.Equal("direction", key.Direction),
	}
}

// ReplaceAll deletes the rows stored for key and inserts rows in one transaction.
func (r *SnapshotRepository[T]) ReplaceAll(ctx context.Context, key models.SyncKey, rows []T) error {
	ctx, span := tracing.StartSpan(ctx, "SnapshotRepository.ReplaceAll")
	defer span.End()

	logger := r.logger.WithContext(ctx).WithFields(map[string]any{
		"table":    r.table,
		"sync_key": key.String(),
	})

	err := r.InTx(ctx, func(ctx context.Context) error {
		del := database.NewDeleteBuilder()
		del.DeleteFrom(r.table).Where(whereSyncKey(del, key)...)
		query, args := del.Build()
		if _, err := r.Conn(ctx).ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("delete %s: %w", r.table, err)
		}

		if len(rows) == 0 {
			return nil
		}
		values := make([]any, 0, len(rows))
		for i := range rows {
			values = append(values, &rows[i])
		}
		query, args = r.insert.InsertInto(r.table, values...).Build()
		if _, err := r.Conn(ctx).ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert %s: %w", r.table, err)
		}
		return nil
	})
	if err != nil {
		logger.WithError(err).Error("Failed to replace rows")
		return err
	}

	logger.Debugf("Replaced %s with %d rows", r.table, len(rows))
	return nil
}

func (r *SnapshotRepository[T]) List(ctx context.Context, key models.SyncKey) ([]T, error) {
	ctx, span := tracing.StartSpan(ctx, "SnapshotRepository.List")
	defer span.End()

	sb := r.structure.SelectFrom(r.table)
	sb.Where(whereSyncKey(sb, key)...)
	sb.OrderBy("created_at", "id")

	query, args := sb.Build()
	var rows []T
	if err := r.Conn(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Errorf("Failed to list %s", r.table)
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list %s", r.table)
	}
	return rows, nil
}

// ListByMaterial returns the rows of every partner and direction for one material.
func (r *SnapshotRepository[T]) ListByMaterial(ctx context.Context, materialNumber string) ([]T, error) {
	ctx, span := tracing.StartSpan(ctx, "SnapshotRepository.ListByMaterial")
	defer span.End()

	sb := r.structure.SelectFrom(r.table)
	sb.Where(sb.Equal("material_number", materialNumber))
	sb.OrderBy("partner_id", "direction", "created_at")

	query, args := sb.Build()
	var rows []T
	if err := r.Conn(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Errorf("Failed to list %s", r.table)
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list %s", r.table)
	}
	return rows, nil
}

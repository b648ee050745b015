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

const erpRequestsTable = "outgoing_erp_requests"

var erpRequestStruct = database.NewStruct(new(models.OutgoingErpRequest))

// ErpRequestRepository stores requests sent to the ERP adapter.
type ErpRequestRepository struct {
	*Repository
}

func NewErpRequestRepository(db database.DB, logger ectologger.Logger) *ErpRequestRepository {
	return &ErpRequestRepository{
		Repository: NewRepository(db, logger),
	}
}

func (r *ErpRequestRepository) Create(ctx context.Context, req *models.OutgoingErpRequest) error {
	ctx, span := tracing.StartSpan(ctx, "ErpRequestRepository.Create")
	defer span.End()

	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}

	query, args := erpRequestStruct.InsertInto(erpRequestsTable, req).Build()
	if _, err := r.Conn(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("request_id", req.ID.String()).Error("failed to create erp request")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create erp request")
	}
	return nil
}

func (r *ErpRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.OutgoingErpRequest, error) {
	ctx, span := tracing.StartSpan(ctx, "ErpRequestRepository.GetByID")
	defer span.End()

	sb := erpRequestStruct.SelectFrom(erpRequestsTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var req models.OutgoingErpRequest
	if err := r.getOne(ctx, &req, "outgoing erp request "+id.String(), query, args...); err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *ErpRequestRepository) SetResponseCode(ctx context.Context, id uuid.UUID, code int) error {
	ctx, span := tracing.StartSpan(ctx, "ErpRequestRepository.SetResponseCode")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(erpRequestsTable).Set(ub.Assign("response_code", code)).Where(ub.Equal("id", id))

	query, args := ub.Build()
	_, err := r.Conn(ctx).ExecContext(ctx, query, args...)
	return err
}

// MarkAnswered stamps the response date once. The conditional update makes concurrent
// answers race on the row rather than in memory.
func (r *ErpRequestRepository) MarkAnswered(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "ErpRequestRepository.MarkAnswered")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(erpRequestsTable).
		Set(ub.Assign("response_received_date", database.Now())).
		Where(ub.Equal("id", id), ub.IsNull("response_received_date"))

	query, args := ub.Build()
	result, err := r.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListRecent returns the newest requests first.
func (r *ErpRequestRepository) ListRecent(ctx context.Context, limit int) ([]models.OutgoingErpRequest, error) {
	ctx, span := tracing.StartSpan(ctx, "ErpRequestRepository.ListRecent")
	defer span.End()

	sb := erpRequestStruct.SelectFrom(erpRequestsTable)
	sb.OrderBy("request_date").Desc().Limit(limit)

	query, args := sb.Build()
	var reqs []models.OutgoingErpRequest
	if err := r.Conn(ctx).SelectContext(ctx, &reqs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list erp requests")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list erp requests")
	}
	return reqs, nil
}

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	appctx "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/dsp"
	"github.com/Ramsey-B/clover/pkg/edr"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/reconcile"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	DefaultStream = "clover:jobs"

	JobTypeReconcile  = "reconcile"
	JobTypeErpRequest = "erp_request"
)

type ReconcileJob struct {
	Key models.SyncKey `json:"key"`
}

type ErpRequestJob struct {
	RequestID uuid.UUID `json:"request_id"`
}

type publisher interface {
	Publish(ctx context.Context, stream string, job *redis.JobMessage) (string, error)
}

// Queue publishes jobs for the Processor.
type Queue struct {
	streams publisher
	stream  string
	logger  ectologger.Logger
}

func NewQueue(streams publisher, stream string, logger ectologger.Logger) *Queue {
	if stream == "" {
		stream = DefaultStream
	}
	return &Queue{streams: streams, stream: stream, logger: logger}
}

func (q *Queue) publish(ctx context.Context, jobType, partnerBpnl string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s job: %w", jobType, err)
	}
	_, err = q.streams.Publish(ctx, q.stream, &redis.JobMessage{
		Type:        jobType,
		PartnerBpnl: partnerBpnl,
		Payload:     body,
	})
	return err
}

// EnqueueReconcile queues a reconciliation of key.
func (q *Queue) EnqueueReconcile(ctx context.Context, key models.SyncKey) error {
	ctx, span := tracing.StartSpan(ctx, "Queue.EnqueueReconcile")
	defer span.End()

	if err := key.Validate(); err != nil {
		return err
	}
	return q.publish(ctx, JobTypeReconcile, appctx.GetPartnerBpnl(ctx), ReconcileJob{Key: key})
}

// Dispatch queues sending a persisted ERP request.
func (q *Queue) Dispatch(ctx context.Context, req *models.OutgoingErpRequest) error {
	ctx, span := tracing.StartSpan(ctx, "Queue.Dispatch")
	defer span.End()

	return q.publish(ctx, JobTypeErpRequest, req.PartnerBpnl, ErpRequestJob{RequestID: req.ID})
}

func decode[T any](job *redis.JobMessage) (*T, error) {
	var out T
	if err := json.Unmarshal(job.Payload, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJobMessage, err)
	}
	return &out, nil
}

type reconciler interface {
	Reconcile(ctx context.Context, key models.SyncKey) error
}

// ReconcileHandler runs reconciliation jobs. A key already being reconciled elsewhere is
// skipped, as is a failed exchange with the partner: the reported state stays as it was
// until the next reconciliation of the key. Errors retrying cannot fix are permanent.
func ReconcileHandler(r reconciler, logger ectologger.Logger) Handler {
	return func(ctx context.Context, job *redis.JobMessage) error {
		in, err := decode[ReconcileJob](job)
		if err != nil {
			return err
		}

		err = r.Reconcile(ctx, in.Key)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, reconcile.ErrKeyBusy):
			logger.WithContext(ctx).WithField("sync_key", in.Key.String()).Debug("Skipping reconciliation, key busy")
			return nil
		case isExchangeFailure(err):
			logger.WithContext(ctx).WithError(err).WithField("sync_key", in.Key.String()).Warn("Partner exchange failed, keeping reported state")
			return nil
		case errors.Is(err, reconcile.ErrInvalidKey),
			errors.Is(err, reconcile.ErrUnknownPartner),
			errors.Is(err, reconcile.ErrUnknownMaterial),
			errors.Is(err, reconcile.ErrInconsistentData):
			return Permanent(err)
		default:
			return err
		}
	}
}

func isExchangeFailure(err error) bool {
	return errors.Is(err, dsp.ErrCatalog) ||
		errors.Is(err, dsp.ErrPolicyRejected) ||
		errors.Is(err, dsp.ErrNegotiationDeclined) ||
		errors.Is(err, dsp.ErrNegotiationTimeout) ||
		errors.Is(err, dsp.ErrTransferTimeout) ||
		errors.Is(err, edr.ErrTransport)
}

type erpRequests interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.OutgoingErpRequest, error)
}

type erpSender interface {
	Send(ctx context.Context, req *models.OutgoingErpRequest) (int, error)
}

// ErpRequestHandler sends queued ERP requests. A request the adapter already answered
// with a status is never sent again; only transport failures are retried.
func ErpRequestHandler(requests erpRequests, sender erpSender, logger ectologger.Logger) Handler {
	return func(ctx context.Context, job *redis.JobMessage) error {
		in, err := decode[ErpRequestJob](job)
		if err != nil {
			return err
		}

		req, err := requests.GetByID(ctx, in.RequestID)
		if err != nil {
			return err
		}
		if req.ResponseCode != nil {
			logger.WithContext(ctx).WithField("request_id", req.ID.String()).Debug("ERP request already sent")
			return nil
		}

		code, err := sender.Send(ctx, req)
		if err != nil && code != 0 {
			return Permanent(err)
		}
		return err
	}
}

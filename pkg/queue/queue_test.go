package queue

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/internal/testinfra"
	"github.com/Ramsey-B/clover/pkg/dsp"
	"github.com/Ramsey-B/clover/pkg/edr"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/reconcile"
	"github.com/Ramsey-B/clover/pkg/redis"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type memoryStreams struct {
	jobs []*redis.JobMessage
}

func (m *memoryStreams) Publish(_ context.Context, _ string, job *redis.JobMessage) (string, error) {
	m.jobs = append(m.jobs, job)
	return fmt.Sprintf("%d-0", len(m.jobs)), nil
}

var key = models.SyncKey{
	MaterialNumber: "MNR-7307-AU340474.002",
	PartnerID:      uuid.MustParse("6a8f2d1c-3b4e-4f5a-9b8c-7d6e5f4a3b2c"),
	AssetType:      models.AssetTypeItemStock,
	Direction:      models.DirectionOutbound,
}

type reconcilerFunc func(ctx context.Context, key models.SyncKey) error

func (f reconcilerFunc) Reconcile(ctx context.Context, key models.SyncKey) error { return f(ctx, key) }

func TestQueue_EnqueueAndHandleReconcile(t *testing.T) {
	ctx := context.Background()
	streams := &memoryStreams{}
	q := NewQueue(streams, "", testLogger())

	require.NoError(t, q.EnqueueReconcile(ctx, key))
	require.Len(t, streams.jobs, 1)
	assert.Equal(t, JobTypeReconcile, streams.jobs[0].Type)

	assert.Error(t, q.EnqueueReconcile(ctx, models.SyncKey{}), "invalid keys are not queued")
	assert.Len(t, streams.jobs, 1)

	var got models.SyncKey
	h := ReconcileHandler(reconcilerFunc(func(_ context.Context, k models.SyncKey) error {
		got = k
		return nil
	}), testLogger())
	require.NoError(t, h(ctx, streams.jobs[0]))
	assert.Equal(t, key, got)
}

func TestReconcileHandler_Errors(t *testing.T) {
	ctx := context.Background()
	streams := &memoryStreams{}
	require.NoError(t, NewQueue(streams, "", testLogger()).EnqueueReconcile(ctx, key))
	job := streams.jobs[0]

	tests := []struct {
		name      string
		err       error
		wantErr   bool
		permanent bool
	}{
		{name: "busy key is skipped", err: fmt.Errorf("run: %w", reconcile.ErrKeyBusy)},
		{name: "inconsistent data", err: reconcile.ErrInconsistentData, wantErr: true, permanent: true},
		{name: "unknown material", err: reconcile.ErrUnknownMaterial, wantErr: true, permanent: true},
		{name: "database failure is retried", err: errors.New("connection reset"), wantErr: true},
		{name: "edr transport", err: fmt.Errorf("pull: %w", edr.ErrTransport)},
		{name: "catalog", err: fmt.Errorf("pull: %w", dsp.ErrCatalog)},
		{name: "policy rejected", err: fmt.Errorf("pull: %w", dsp.ErrPolicyRejected)},
		{name: "negotiation declined", err: fmt.Errorf("pull: %w", dsp.ErrNegotiationDeclined)},
		{name: "negotiation timeout", err: fmt.Errorf("pull: %w", dsp.ErrNegotiationTimeout)},
		{name: "transfer timeout", err: fmt.Errorf("pull: %w", dsp.ErrTransferTimeout)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := ReconcileHandler(reconcilerFunc(func(context.Context, models.SyncKey) error { return tt.err }), testLogger())
			err := h(ctx, job)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.permanent, IsPermanent(err))
		})
	}

	bad := &redis.JobMessage{Type: JobTypeReconcile, Payload: []byte(`"nope"`)}
	err := ReconcileHandler(reconcilerFunc(func(context.Context, models.SyncKey) error { return nil }), testLogger())(ctx, bad)
	assert.ErrorIs(t, err, ErrInvalidJobMessage)
	assert.True(t, IsPermanent(err))
}

type erpFakes struct {
	req   *models.OutgoingErpRequest
	code  int
	err   error
	sends int
}

func (f *erpFakes) GetByID(_ context.Context, id uuid.UUID) (*models.OutgoingErpRequest, error) {
	if f.req == nil || f.req.ID != id {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "request not found")
	}
	return f.req, nil
}

func (f *erpFakes) Send(_ context.Context, _ *models.OutgoingErpRequest) (int, error) {
	f.sends++
	return f.code, f.err
}

func TestErpRequestHandler(t *testing.T) {
	ctx := context.Background()
	req := &models.OutgoingErpRequest{ID: uuid.New(), PartnerBpnl: "BPNL1234567890ZZ"}
	streams := &memoryStreams{}
	require.NoError(t, NewQueue(streams, "", testLogger()).Dispatch(ctx, req))
	job := streams.jobs[0]
	assert.Equal(t, JobTypeErpRequest, job.Type)
	assert.Equal(t, "BPNL1234567890ZZ", job.PartnerBpnl)

	t.Run("sends", func(t *testing.T) {
		f := &erpFakes{req: req, code: http.StatusAccepted}
		require.NoError(t, ErpRequestHandler(f, f, testLogger())(ctx, job))
		assert.Equal(t, 1, f.sends)
	})

	t.Run("rejection is not retried", func(t *testing.T) {
		f := &erpFakes{req: req, code: http.StatusBadRequest, err: errors.New("erp adapter answered 400")}
		err := ErpRequestHandler(f, f, testLogger())(ctx, job)
		assert.True(t, IsPermanent(err))
	})

	t.Run("transport failure is retried", func(t *testing.T) {
		f := &erpFakes{req: req, err: errors.New("dial tcp: refused")}
		err := ErpRequestHandler(f, f, testLogger())(ctx, job)
		require.Error(t, err)
		assert.False(t, IsPermanent(err))
	})

	t.Run("already sent", func(t *testing.T) {
		code := http.StatusAccepted
		sent := *req
		sent.ResponseCode = &code
		f := &erpFakes{req: &sent}
		require.NoError(t, ErpRequestHandler(f, f, testLogger())(ctx, job))
		assert.Zero(t, f.sends)
	})

	t.Run("unknown request is permanent", func(t *testing.T) {
		f := &erpFakes{}
		assert.True(t, IsPermanent(ErpRequestHandler(f, f, testLogger())(ctx, job)))
	})
}

func TestProcessor_processJob(t *testing.T) {
	p := NewProcessor(nil, nil, DefaultProcessorConfig(), testLogger())
	p.Handle("ok", func(context.Context, *redis.JobMessage) error { return nil })
	p.Handle("boom", func(context.Context, *redis.JobMessage) error { panic("boom") })

	res := p.processJob(context.Background(), &redis.JobMessage{ID: "1", Type: "ok"})
	assert.True(t, res.Success)

	res = p.processJob(context.Background(), &redis.JobMessage{ID: "2", Type: "boom"})
	assert.False(t, res.Success)
	assert.ErrorContains(t, res.Error, "panicked")

	res = p.processJob(context.Background(), &redis.JobMessage{ID: "3", Type: "other"})
	assert.ErrorIs(t, res.Error, ErrUnknownJobType)
	assert.True(t, IsPermanent(res.Error))
}

func TestProcessor_Redis(t *testing.T) {
	client := testinfra.Redis(t)
	ctx := context.Background()
	streams := redis.NewStreams(client)
	dlq := redis.NewDeadLetterQueue(client, "test:dlq", testLogger())

	cfg := DefaultProcessorConfig()
	cfg.Stream = "test:jobs"
	cfg.BlockTimeout = 100 * time.Millisecond
	p := NewProcessor(streams, dlq, cfg, testLogger())

	done := make(chan models.SyncKey, 1)
	p.Handle(JobTypeReconcile, ReconcileHandler(reconcilerFunc(func(_ context.Context, k models.SyncKey) error {
		done <- k
		return nil
	}), testLogger()))
	p.Handle(JobTypeErpRequest, func(context.Context, *redis.JobMessage) error {
		return Permanent(errors.New("adapter rejected"))
	})

	require.NoError(t, p.Start(ctx))
	t.Cleanup(func() { _ = p.Stop(context.Background()) })

	q := NewQueue(streams, cfg.Stream, testLogger())
	require.NoError(t, q.EnqueueReconcile(ctx, key))
	select {
	case got := <-done:
		assert.Equal(t, key, got)
	case <-time.After(5 * time.Second):
		t.Fatal("reconcile job was not processed")
	}

	require.NoError(t, q.Dispatch(ctx, &models.OutgoingErpRequest{ID: uuid.New()}))
	require.Eventually(t, func() bool {
		n, err := dlq.Count(ctx)
		return err == nil && n == 1
	}, 5*time.Second, 50*time.Millisecond)

	entries, err := dlq.List(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, JobTypeErpRequest, entries[0].JobType)
	assert.Equal(t, redis.DLQReasonPermanent, entries[0].Reason)
}

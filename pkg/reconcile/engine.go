// Package reconcile replaces the locally stored copy of a partner's data with what the
// partner currently publishes. One generic Engine runs per data kind.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	RouteDataspace = "dataspace"
	RouteErp       = "erp"

	DefaultTimeout = 2 * time.Minute
)

// Store holds the rows of one data kind per sync key.
type Store[T any] interface {
	ReplaceAll(ctx context.Context, key models.SyncKey, rows []T) error
	List(ctx context.Context, key models.SyncKey) ([]T, error)
}

// Domain describes one data kind to the engine.
type Domain[T any] struct {
	AssetType models.AssetType
	Holder    Holder
	// Directions the data kind is exchanged in. Empty allows both.
	Directions []models.Direction
	// SubPath is appended to the partner's submodel address. Nil means the CX number.
	SubPath func(t *Target) string
	Parse   func(payload []byte, t *Target) ([]T, error)
	// Matches reports whether a parsed row belongs to the target.
	Matches func(t *Target, row T) bool
	Store   Store[T]
}

type EventPublisher interface {
	PublishReportedChanged(ctx context.Context, evt *kafka.ReportedChangedEvent) error
}

type Config struct {
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{Timeout: DefaultTimeout}
}

type Engine[T any] struct {
	domain    Domain[T]
	resolver  TargetResolver
	source    Source
	locker    KeyLocker
	publisher EventPublisher
	cfg       Config
	logger    ectologger.Logger
}

// NewEngine creates an engine for domain. source may be nil for data kinds that only
// arrive through Apply; publisher may be nil.
func NewEngine[T any](domain Domain[T], resolver TargetResolver, source Source, locker KeyLocker, publisher EventPublisher, cfg Config, logger ectologger.Logger) *Engine[T] {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Engine[T]{
		domain:    domain,
		resolver:  resolver,
		source:    source,
		locker:    locker,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

func (e *Engine[T]) AssetType() models.AssetType {
	return e.domain.AssetType
}

func (e *Engine[T]) checkKey(key models.SyncKey) error {
	if err := key.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if key.AssetType != e.domain.AssetType {
		return fmt.Errorf("%w: %s engine got %s", ErrInvalidKey, e.domain.AssetType, key.AssetType)
	}
	if len(e.domain.Directions) > 0 && !ectolinq.Contains(e.domain.Directions, key.Direction) {
		return fmt.Errorf("%w: %s is not exchanged %s", ErrInvalidKey, key.AssetType, key.Direction)
	}
	return nil
}

// lockKey separates our own data from partner data under the same sync key.
func (e *Engine[T]) lockKey(key models.SyncKey) string {
	return e.domain.Holder.String() + ":" + key.String()
}

func (e *Engine[T]) subPath(t *Target) string {
	if e.domain.SubPath != nil {
		return e.domain.SubPath(t)
	}
	return t.CXNumber()
}

// Reconcile fetches the partner's current data for key and replaces the stored rows with
// it. A run already in flight for key makes it return ErrKeyBusy. Failures leave the
// stored rows unchanged.
func (e *Engine[T]) Reconcile(ctx context.Context, key models.SyncKey) error {
	ctx, span := tracing.StartSpan(ctx, "Engine.Reconcile")
	defer span.End()

	if err := e.checkKey(key); err != nil {
		return err
	}
	if e.source == nil {
		return fmt.Errorf("%w: %s has no dataspace source", ErrInvalidKey, key.AssetType)
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	logger := e.logger.WithContext(ctx).WithField("sync_key", key.String())
	start := time.Now()

	unlock, err := e.locker.TryLock(ctx, e.lockKey(key))
	if err != nil {
		if errors.Is(err, ErrKeyBusy) {
			logger.Debug("Reconciliation already running")
			metrics.RecordReconciliation(string(key.AssetType), "busy", 0, 0)
		}
		return err
	}
	defer unlock()

	target, err := e.resolver.Resolve(ctx, key, e.domain.Holder, true)
	if err != nil {
		logger.WithError(err).Warn("Cannot resolve reconciliation target")
		metrics.RecordReconciliation(string(key.AssetType), outcomeOf(err), 0, time.Since(start).Seconds())
		return err
	}

	payload, err := e.source.Fetch(ctx, target, key.AssetType, e.subPath(target))
	if err != nil {
		logger.WithError(err).Warn("Fetching partner data failed, keeping stored state")
		metrics.RecordReconciliation(string(key.AssetType), "fetch_error", 0, time.Since(start).Seconds())
		return err
	}

	return e.apply(ctx, target, payload, RouteDataspace, start)
}

// Apply validates payload and stores it for key. It waits for a running reconciliation of
// the same key to finish. Used for data pushed to us, such as ERP adapter answers.
func (e *Engine[T]) Apply(ctx context.Context, key models.SyncKey, payload []byte) error {
	ctx, span := tracing.StartSpan(ctx, "Engine.Apply")
	defer span.End()

	if err := e.checkKey(key); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()
	start := time.Now()

	unlock, err := e.locker.Lock(ctx, e.lockKey(key))
	if err != nil {
		return err
	}
	defer unlock()

	target, err := e.resolver.Resolve(ctx, key, e.domain.Holder, false)
	if err != nil {
		metrics.RecordReconciliation(string(key.AssetType), outcomeOf(err), 0, time.Since(start).Seconds())
		return err
	}
	return e.apply(ctx, target, payload, RouteErp, start)
}

func (e *Engine[T]) apply(ctx context.Context, target *Target, payload []byte, route string, start time.Time) error {
	key := target.Key
	logger := e.logger.WithContext(ctx).WithFields(map[string]any{
		"sync_key": key.String(),
		"route":    route,
	})

	rows, err := e.domain.Parse(payload, target)
	if err != nil {
		if !errors.Is(err, ErrInconsistentData) {
			err = fmt.Errorf("%w: %v", ErrInconsistentData, err)
		}
		logger.WithError(err).Warn("Discarding partner data")
		metrics.RecordReconciliation(string(key.AssetType), "inconsistent", 0, time.Since(start).Seconds())
		return err
	}

	for i, row := range rows {
		if !e.domain.Matches(target, row) {
			err := fmt.Errorf("%w: record %d does not belong to %s", ErrInconsistentData, i, key)
			logger.WithError(err).Warn("Discarding partner data")
			metrics.RecordReconciliation(string(key.AssetType), "inconsistent", 0, time.Since(start).Seconds())
			return err
		}
	}

	if err := e.domain.Store.ReplaceAll(ctx, key, rows); err != nil {
		logger.WithError(err).Error("Failed to store partner data")
		metrics.RecordReconciliation(string(key.AssetType), "error", 0, time.Since(start).Seconds())
		return err
	}

	metrics.RecordReconciliation(string(key.AssetType), "replaced", len(rows), time.Since(start).Seconds())
	logger.Infof("Replaced %d records", len(rows))

	if e.publisher != nil {
		evt := &kafka.ReportedChangedEvent{
			AssetType:      string(key.AssetType),
			Direction:      string(key.Direction),
			MaterialNumber: key.MaterialNumber,
			PartnerID:      key.PartnerID.String(),
			PartnerBpnl:    target.Partner.Bpnl,
			Records:        len(rows),
			Route:          route,
		}
		if err := e.publisher.PublishReportedChanged(ctx, evt); err != nil {
			logger.WithError(err).Warn("Failed to publish reported change")
		}
	}
	return nil
}

// List returns the rows stored for key.
func (e *Engine[T]) List(ctx context.Context, key models.SyncKey) ([]T, error) {
	if err := e.checkKey(key); err != nil {
		return nil, err
	}
	return e.domain.Store.List(ctx, key)
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrUnknownPartner):
		return "unknown_partner"
	case errors.Is(err, ErrUnknownMaterial):
		return "unknown_material"
	default:
		return "error"
	}
}

// Package scheduler keeps the ERP system polled for the data partners ask for.
//
// Every partner request for ERP backed data registers a trigger tuple. The scheduler fires
// one ERP request when a tuple is created and then one per refresh interval, and forgets
// tuples nobody has asked for within the stale time limit.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var (
	// ErrSchedulerAlreadyRunning is returned when trying to start an already running scheduler
	ErrSchedulerAlreadyRunning = errors.New("scheduler already running")

	// ErrSchedulerDisabled is returned by Start while the feature flag is off
	ErrSchedulerDisabled = errors.New("scheduler disabled")
)

const (
	DefaultInterval        = time.Minute
	DefaultRefreshInterval = 3 * time.Hour
	DefaultStaleTimeLimit  = 48 * time.Hour
	DefaultSammVersion     = "2.0"
	DefaultLockTTL         = 60 * time.Second

	// CycleLockKey serialises cycles across replicas
	CycleLockKey = "scheduler:erp:cycle"
)

// TriggerStore persists trigger tuples.
type TriggerStore interface {
	// Create inserts t unless a tuple with the same key exists and reports whether it did.
	Create(ctx context.Context, t *models.ErpTriggerTuple) (bool, error)
	TouchLastPartnerRequest(ctx context.Context, key models.ErpTriggerKey, at int64) error
	SetNextScheduled(ctx context.Context, key models.ErpTriggerKey, next int64) error
	Delete(ctx context.Context, key models.ErpTriggerKey) error
	List(ctx context.Context) ([]models.ErpTriggerTuple, error)
}

// RequestStore persists outgoing ERP requests.
type RequestStore interface {
	Create(ctx context.Context, req *models.OutgoingErpRequest) error
}

// RequestDispatcher sends a persisted request to the ERP adapter, normally through the job queue.
type RequestDispatcher interface {
	Dispatch(ctx context.Context, req *models.OutgoingErpRequest) error
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type Config struct {
	// Interval is how often the loop wakes
	Interval        time.Duration
	RefreshInterval time.Duration
	StaleTimeLimit  time.Duration
	SammVersion     string
	LockTTL         time.Duration
	Enabled         bool
}

func DefaultConfig() Config {
	return Config{
		Interval:        DefaultInterval,
		RefreshInterval: DefaultRefreshInterval,
		StaleTimeLimit:  DefaultStaleTimeLimit,
		SammVersion:     DefaultSammVersion,
		LockTTL:         DefaultLockTTL,
		Enabled:         true,
	}
}

// Scheduler fires ERP requests for trigger tuples. The loop runs on one goroutine and is
// started lazily by the first Notify.
type Scheduler struct {
	triggers   TriggerStore
	requests   RequestStore
	dispatcher RequestDispatcher
	locker     *redis.Locker
	clock      Clock
	config     Config
	logger     ectologger.Logger

	enabled atomic.Bool

	stopCh   chan struct{}
	stoppedC chan struct{}
	running  bool
	mu       sync.RWMutex
}

// NewScheduler creates a scheduler. locker may be nil when a single replica runs.
func NewScheduler(
	triggers TriggerStore,
	requests RequestStore,
	dispatcher RequestDispatcher,
	locker *redis.Locker,
	config Config,
	logger ectologger.Logger,
) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.RefreshInterval <= 0 {
		config.RefreshInterval = DefaultRefreshInterval
	}
	if config.StaleTimeLimit <= 0 {
		config.StaleTimeLimit = DefaultStaleTimeLimit
	}
	if config.SammVersion == "" {
		config.SammVersion = DefaultSammVersion
	}
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultLockTTL
	}

	s := &Scheduler{
		triggers:   triggers,
		requests:   requests,
		dispatcher: dispatcher,
		locker:     locker,
		clock:      systemClock{},
		config:     config,
		logger:     logger,
	}
	s.enabled.Store(config.Enabled)
	return s
}

// WithClock replaces the wall clock, for tests.
func (s *Scheduler) WithClock(clock Clock) *Scheduler {
	s.clock = clock
	return s
}

func (s *Scheduler) Enabled() bool {
	return s.enabled.Load()
}

// SetEnabled flips the feature flag. A running loop notices on its next wake and exits.
func (s *Scheduler) SetEnabled(enabled bool) {
	s.enabled.Store(enabled)
}

// Notify records a partner request for key. A new key fires one ERP request immediately.
func (s *Scheduler) Notify(ctx context.Context, key models.ErpTriggerKey) error {
	ctx, span := tracing.StartSpan(ctx, "Scheduler.Notify")
	defer span.End()

	if !s.Enabled() {
		return nil
	}

	now := s.clock.Now().UnixMilli()
	tuple := &models.ErpTriggerTuple{
		PartnerBpnl:             key.PartnerBpnl,
		OwnMaterialNumber:       key.OwnMaterialNumber,
		AssetType:               key.AssetType,
		Direction:               key.Direction,
		LastPartnerRequest:      now,
		NextErpRequestScheduled: now + s.config.RefreshInterval.Milliseconds(),
	}

	created, err := s.triggers.Create(ctx, tuple)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to register trigger tuple")
		return err
	}

	var fireErr error
	if created {
		s.logger.WithContext(ctx).WithFields(map[string]any{
			"partner_bpnl": key.PartnerBpnl,
			"material":     key.OwnMaterialNumber,
			"asset_type":   string(key.AssetType),
			"direction":    string(key.Direction),
		}).Info("Registered ERP trigger tuple")
		if fireErr = s.fire(ctx, key); fireErr != nil {
			// due again on the next wake
			if err := s.triggers.SetNextScheduled(ctx, key, now); err != nil {
				s.logger.WithContext(ctx).WithError(err).Error("Failed to reschedule trigger tuple after a failed request")
			}
		}
	} else if err := s.triggers.TouchLastPartnerRequest(ctx, key, now); err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to update last partner request")
		return err
	}

	if err := s.Start(ctx); err != nil && !errors.Is(err, ErrSchedulerAlreadyRunning) {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to start scheduler loop")
	}
	return fireErr
}

// RunOnce runs a single cycle: stale tuples are removed and due tuples fire one request each.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "Scheduler.RunOnce")
	defer span.End()

	if s.locker != nil {
		lock, err := s.locker.Acquire(ctx, CycleLockKey, s.config.LockTTL)
		if err != nil {
			if errors.Is(err, redis.ErrLockNotAcquired) {
				s.logger.WithContext(ctx).Debug("Another replica is running the scheduler cycle")
				return nil
			}
			return err
		}
		defer lock.Release(ctx)
	}

	tuples, err := s.triggers.List(ctx)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to list trigger tuples")
		return err
	}

	now := s.clock.Now().UnixMilli()
	stale := s.config.StaleTimeLimit.Milliseconds()
	fired, removed := 0, 0
	for _, tuple := range tuples {
		key := tuple.Key()
		if now-tuple.LastPartnerRequest > stale {
			if err := s.triggers.Delete(ctx, key); err != nil {
				s.logger.WithContext(ctx).WithError(err).Warn("Failed to delete stale trigger tuple")
				continue
			}
			removed++
			continue
		}
		if now < tuple.NextErpRequestScheduled {
			continue
		}
		// a failed request leaves the tuple due
		if err := s.fire(ctx, key); err != nil {
			continue
		}
		fired++
		if err := s.triggers.SetNextScheduled(ctx, key, now+s.config.RefreshInterval.Milliseconds()); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("Failed to reschedule trigger tuple")
		}
	}

	metrics.SchedulerTuples.Set(float64(len(tuples) - removed))
	s.logger.WithContext(ctx).Debugf("Scheduler cycle completed: tuples=%d fired=%d removed=%d", len(tuples), fired, removed)
	return nil
}

func (s *Scheduler) fire(ctx context.Context, key models.ErpTriggerKey) error {
	req := &models.OutgoingErpRequest{
		ID:                uuid.New(),
		PartnerBpnl:       key.PartnerBpnl,
		OwnMaterialNumber: key.OwnMaterialNumber,
		AssetType:         key.AssetType,
		RequestType:       key.AssetType.ErpRequestType(),
		Direction:         key.Direction,
		SammVersion:       s.config.SammVersion,
		RequestDate:       s.clock.Now().UTC(),
	}

	if err := s.requests.Create(ctx, req); err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to persist outgoing ERP request")
		return err
	}
	if err := s.dispatcher.Dispatch(ctx, req); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("request_id", req.ID.String()).Error("Failed to dispatch ERP request")
		return err
	}

	metrics.SchedulerFired.Inc()
	return nil
}

// Start starts the loop. It fails while the feature flag is off.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.Enabled() {
		return ErrSchedulerDisabled
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.stoppedC = make(chan struct{})
	stopCh, stoppedC := s.stopCh, s.stoppedC
	s.mu.Unlock()

	loopCtx := context.WithoutCancel(ctx)
	s.logger.WithContext(ctx).Infof("Starting ERP scheduler: interval=%s refresh=%s stale=%s",
		s.config.Interval, s.config.RefreshInterval, s.config.StaleTimeLimit)

	go s.loop(loopCtx, stopCh, stoppedC)
	return nil
}

// Stop stops the loop gracefully.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	stoppedC := s.stoppedC
	s.mu.Unlock()

	select {
	case <-stoppedC:
		s.logger.WithContext(ctx).Info("ERP scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.WithContext(ctx).Warn("ERP scheduler shutdown timed out")
		return ctx.Err()
	}
	return nil
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context, stopCh <-chan struct{}, stoppedC chan<- struct{}) {
	defer close(stoppedC)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			s.logger.WithContext(ctx).Debug("ERP scheduler loop stopping")
			return
		case <-ticker.C:
			if !s.Enabled() {
				s.mu.Lock()
				// Stop may have raced us; only clear the flag for our own run
				if s.running && s.stoppedC == stoppedC {
					s.running = false
				}
				s.mu.Unlock()
				s.logger.WithContext(ctx).Info("ERP scheduler disabled, loop exiting")
				return
			}
			if err := s.RunOnce(ctx); err != nil {
				s.logger.WithContext(ctx).WithError(err).Warn("ERP scheduler cycle failed")
			}
		}
	}
}

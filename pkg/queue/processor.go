package queue

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	appctx "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var (
	// ErrProcessorStopped is returned when the processor is stopped
	ErrProcessorStopped = errors.New("processor stopped")

	// ErrInvalidJobMessage is returned when a job message is invalid
	ErrInvalidJobMessage = errors.New("invalid job message")

	// ErrUnknownJobType is returned when no handler is registered for a job type
	ErrUnknownJobType = errors.New("unknown job type")
)

const (
	// DefaultBatchSize is the default number of messages to consume at once
	DefaultBatchSize = 10

	// DefaultBlockTimeout is how long to block waiting for messages
	DefaultBlockTimeout = 5 * time.Second

	// DefaultMaxRetries is the default number of retries for a job
	DefaultMaxRetries = 3

	// DefaultClaimInterval is how often to claim stale pending messages
	DefaultClaimInterval = 30 * time.Second

	// DefaultClaimMinIdle is the minimum idle time before claiming a message
	DefaultClaimMinIdle = 60 * time.Second
)

// Handler runs one job. Errors marked Permanent skip the remaining retries.
type Handler func(ctx context.Context, job *redis.JobMessage) error

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether retrying the job cannot help: errors marked Permanent,
// malformed jobs and 4xx httperrors.
func IsPermanent(err error) bool {
	var p *permanentError
	if errors.As(err, &p) || errors.Is(err, ErrInvalidJobMessage) || errors.Is(err, ErrUnknownJobType) {
		return true
	}
	if httperror.IsHTTPError(err) {
		code := httperror.GetStatusCode(err)
		return code >= http.StatusBadRequest && code < http.StatusInternalServerError
	}
	return false
}

// ProcessorConfig holds configuration for the job processor
type ProcessorConfig struct {
	// Stream name for the job queue
	Stream string

	// Consumer group name
	ConsumerGroup string

	// Consumer name (unique per instance)
	ConsumerName string

	// Number of messages to fetch per batch
	BatchSize int64

	// How long to block waiting for new messages
	BlockTimeout time.Duration

	// Maximum number of retries for a job
	MaxRetries int

	// How often to check for and claim stale pending messages
	ClaimInterval time.Duration

	// Minimum idle time before claiming a pending message
	ClaimMinIdle time.Duration

	// Number of worker goroutines
	WorkerCount int
}

// DefaultProcessorConfig returns the default processor configuration
func DefaultProcessorConfig() ProcessorConfig {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = uuid.New().String()[:8]
	}

	return ProcessorConfig{
		Stream:        DefaultStream,
		ConsumerGroup: "clover-workers",
		ConsumerName:  hostname,
		BatchSize:     DefaultBatchSize,
		BlockTimeout:  DefaultBlockTimeout,
		MaxRetries:    DefaultMaxRetries,
		ClaimInterval: DefaultClaimInterval,
		ClaimMinIdle:  DefaultClaimMinIdle,
		WorkerCount:   4,
	}
}

// JobResult holds the result of processing a job
type JobResult struct {
	JobID     string
	MessageID string
	Success   bool
	Error     error
	Duration  time.Duration
}

// Processor processes jobs from a Redis Streams queue
type Processor struct {
	streams  *redis.Streams
	dlq      *redis.DeadLetterQueue
	handlers map[string]Handler
	config   ProcessorConfig
	logger   ectologger.Logger

	// Channels for coordination
	stopCh   chan struct{}
	stoppedC chan struct{}
	jobsCh   chan redis.StreamMessage

	// State
	running bool
	mu      sync.RWMutex
}

// NewProcessor creates a new job processor. dlq may be nil.
func NewProcessor(
	streams *redis.Streams,
	dlq *redis.DeadLetterQueue,
	config ProcessorConfig,
	logger ectologger.Logger,
) *Processor {
	// Apply defaults
	if config.Stream == "" {
		config.Stream = DefaultStream
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.BlockTimeout <= 0 {
		config.BlockTimeout = DefaultBlockTimeout
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.ClaimInterval <= 0 {
		config.ClaimInterval = DefaultClaimInterval
	}
	if config.ClaimMinIdle <= 0 {
		config.ClaimMinIdle = DefaultClaimMinIdle
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}

	return &Processor{
		streams:  streams,
		dlq:      dlq,
		handlers: make(map[string]Handler),
		config:   config,
		logger:   logger,
		stopCh:   make(chan struct{}),
		stoppedC: make(chan struct{}),
		jobsCh:   make(chan redis.StreamMessage, config.BatchSize*2),
	}
}

// Handle registers h for jobType. Must be called before Start.
func (p *Processor) Handle(jobType string, h Handler) {
	p.handlers[jobType] = h
}

// Start starts the processor
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("processor already running")
	}
	p.running = true
	p.mu.Unlock()

	ctx, span := tracing.StartSpan(ctx, "Processor.Start")
	defer span.End()

	p.logger.WithContext(ctx).Infof("Starting job processor: stream=%s group=%s consumer=%s workers=%d",
		p.config.Stream, p.config.ConsumerGroup, p.config.ConsumerName, p.config.WorkerCount)

	// Create consumer group if it doesn't exist
	if err := p.streams.CreateConsumerGroup(ctx, p.config.Stream, p.config.ConsumerGroup); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to create consumer group")
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	// Start workers
	var wg sync.WaitGroup
	for i := 0; i < p.config.WorkerCount; i++ {
		wg.Add(1)
		go p.worker(ctx, &wg, i)
	}

	var loops sync.WaitGroup
	loops.Add(2)
	go p.consumeLoop(ctx, &loops)
	go p.claimLoop(ctx, &loops)

	// Wait for stop signal
	go func() {
		<-p.stopCh
		loops.Wait()
		close(p.jobsCh)
		wg.Wait()
		close(p.stoppedC)
	}()

	p.logger.WithContext(ctx).Info("Job processor started")
	return nil
}

// Stop stops the processor gracefully
func (p *Processor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.WithContext(ctx).Info("Stopping job processor...")

	close(p.stopCh)

	// Wait for graceful shutdown with timeout
	select {
	case <-p.stoppedC:
		p.logger.WithContext(ctx).Info("Job processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WithContext(ctx).Warn("Job processor shutdown timed out")
		return ctx.Err()
	}

	return nil
}

// IsRunning returns whether the processor is running
func (p *Processor) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// consumeLoop continuously consumes messages from the stream
func (p *Processor) consumeLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	p.logger.WithContext(ctx).Debug("Consumer loop started")

	for {
		select {
		case <-p.stopCh:
			p.logger.WithContext(ctx).Debug("Consumer loop stopping")
			return
		default:
		}

		messages, err := p.streams.Consume(
			ctx,
			p.config.Stream,
			p.config.ConsumerGroup,
			p.config.ConsumerName,
			p.config.BatchSize,
			p.config.BlockTimeout,
		)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.WithContext(ctx).WithError(err).Warn("Failed to consume messages")
			time.Sleep(time.Second) // Back off on error
			continue
		}

		for _, msg := range messages {
			if msg.Job == nil {
				p.logger.WithContext(ctx).Warnf("Dropping undecodable message %s", msg.ID)
				p.moveToDLQ(ctx, msg, 0, redis.DLQReasonInvalidJob, ErrInvalidJobMessage.Error())
				continue
			}

			select {
			case p.jobsCh <- msg:
			case <-p.stopCh:
				return
			}
		}
	}
}

// claimLoop periodically claims stale pending messages
func (p *Processor) claimLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(p.config.ClaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.claimPendingMessages(ctx)
		}
	}
}

// claimPendingMessages claims messages whose worker failed or died. Messages delivered
// more often than MaxRetries go to the dead letter queue.
func (p *Processor) claimPendingMessages(ctx context.Context) {
	ctx, span := tracing.StartSpan(ctx, "Processor.claimPendingMessages")
	defer span.End()

	pending, err := p.streams.Pending(ctx, p.config.Stream, p.config.ConsumerGroup, p.config.BatchSize)
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).Warn("Failed to get pending messages")
		return
	}

	var staleIDs []string
	for _, msg := range pending {
		if msg.Idle < p.config.ClaimMinIdle {
			continue
		}
		if msg.RetryCount <= int64(p.config.MaxRetries) {
			staleIDs = append(staleIDs, msg.ID)
			continue
		}

		p.logger.WithContext(ctx).Warnf("Message %s exceeded max retries (%d), moving to DLQ", msg.ID, msg.RetryCount)
		original, err := p.streams.Range(ctx, p.config.Stream, msg.ID, msg.ID)
		if err != nil || len(original) == 0 {
			p.logger.WithContext(ctx).WithError(err).Warnf("Failed to get message %s for DLQ", msg.ID)
			p.ack(ctx, msg.ID)
			continue
		}
		p.moveToDLQ(ctx, original[0], int(msg.RetryCount), redis.DLQReasonMaxRetries, "exceeded maximum retry count")
	}

	if len(staleIDs) == 0 {
		return
	}

	p.logger.WithContext(ctx).Infof("Claiming %d stale pending messages", len(staleIDs))

	claimed, err := p.streams.Claim(ctx, p.config.Stream, p.config.ConsumerGroup, p.config.ConsumerName, p.config.ClaimMinIdle, staleIDs...)
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).Warn("Failed to claim pending messages")
		return
	}

	for _, msg := range claimed {
		if msg.Job == nil {
			p.moveToDLQ(ctx, msg, 0, redis.DLQReasonInvalidJob, ErrInvalidJobMessage.Error())
			continue
		}
		select {
		case p.jobsCh <- msg:
		case <-p.stopCh:
			return
		default:
			// Channel full, the next claim picks it up
		}
	}
}

// worker processes jobs from the channel
func (p *Processor) worker(ctx context.Context, wg *sync.WaitGroup, id int) {
	defer wg.Done()

	p.logger.WithContext(ctx).Debugf("Worker %d started", id)

	for msg := range p.jobsCh {
		result := p.processJob(ctx, msg.Job)
		result.MessageID = msg.ID

		switch {
		case result.Success:
			p.ack(ctx, msg.ID)
		case IsPermanent(result.Error):
			reason := redis.DLQReasonPermanent
			if errors.Is(result.Error, ErrUnknownJobType) {
				reason = redis.DLQReasonUnknownJob
			}
			p.moveToDLQ(ctx, msg, msg.Job.Attempts, reason, result.Error.Error())
		default:
			// Left pending; claimPendingMessages retries it after ClaimMinIdle
			p.logger.WithContext(ctx).WithError(result.Error).Warnf("Job %s failed, will be retried", result.JobID)
		}
	}

	p.logger.WithContext(ctx).Debugf("Worker %d stopped", id)
}

// processJob runs the handler of job. Panics become errors so one job cannot take a
// worker down.
func (p *Processor) processJob(ctx context.Context, job *redis.JobMessage) (result *JobResult) {
	ctx, span := tracing.StartSpan(ctx, "Processor.processJob")
	defer span.End()

	start := time.Now()
	result = &JobResult{JobID: job.ID}

	ctx = appctx.SetJobID(ctx, job.ID)
	ctx = appctx.SetRequestID(ctx, job.ID)
	if job.PartnerBpnl != "" {
		ctx = appctx.SetPartnerBpnl(ctx, job.PartnerBpnl)
	}
	logger := p.logger.WithContext(ctx).WithFields(map[string]any{
		"job_id":   job.ID,
		"job_type": job.Type,
	})

	defer func() {
		if r := recover(); r != nil {
			result.Error = fmt.Errorf("job panicked: %v", r)
			result.Success = false
		}
		result.Duration = time.Since(start)
		if result.Success {
			metrics.RecordQueueJob(job.Type, "success")
			logger.Debugf("Job completed in %s", result.Duration)
		} else {
			metrics.RecordQueueJob(job.Type, "failed")
			logger.WithError(result.Error).Warnf("Job failed after %s", result.Duration)
		}
	}()

	handler, ok := p.handlers[job.Type]
	if !ok {
		result.Error = fmt.Errorf("%w: %s", ErrUnknownJobType, job.Type)
		return result
	}

	if err := handler(ctx, job); err != nil {
		result.Error = err
		return result
	}
	result.Success = true
	return result
}

func (p *Processor) ack(ctx context.Context, messageID string) {
	if err := p.streams.Ack(ctx, p.config.Stream, p.config.ConsumerGroup, messageID); err != nil {
		p.logger.WithContext(ctx).WithError(err).Warnf("Failed to ack message %s", messageID)
	}
}

// moveToDLQ moves a failed job to the dead letter queue and acks it.
func (p *Processor) moveToDLQ(ctx context.Context, msg redis.StreamMessage, retryCount int, reason redis.DeadLetterReason, errorMsg string) {
	ctx, span := tracing.StartSpan(ctx, "Processor.moveToDLQ")
	defer span.End()

	if p.dlq != nil {
		entry := &redis.DLQEntry{
			OriginalJob:  msg.Job,
			Reason:       reason,
			ErrorMessage: errorMsg,
			RetryCount:   retryCount,
		}
		if msg.Job != nil {
			entry.JobType = msg.Job.Type
			entry.PartnerBpnl = msg.Job.PartnerBpnl
		}

		if _, err := p.dlq.Add(ctx, entry); err != nil {
			p.logger.WithContext(ctx).WithError(err).Errorf("Failed to add message %s to DLQ", msg.ID)
		} else {
			metrics.RecordDLQJob(entry.JobType, string(reason))
		}
	}

	p.ack(ctx, msg.ID)
}

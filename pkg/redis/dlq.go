package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	DefaultDLQStream = "clover:dlq"

	// DLQMaxLen bounds the stream; the oldest entries are trimmed
	DLQMaxLen = 10000
)

type DeadLetterReason string

const (
	DLQReasonMaxRetries DeadLetterReason = "max_retries_exceeded"
	DLQReasonInvalidJob DeadLetterReason = "invalid_job"
	DLQReasonUnknownJob DeadLetterReason = "unknown_job_type"
	DLQReasonPermanent  DeadLetterReason = "permanent_failure"
)

type DLQEntry struct {
	ID           string           `json:"id"`
	MessageID    string           `json:"message_id,omitempty"`
	JobType      string           `json:"job_type"`
	PartnerBpnl  string           `json:"partner_bpnl,omitempty"`
	OriginalJob  *JobMessage      `json:"original_job"`
	Reason       DeadLetterReason `json:"reason"`
	ErrorMessage string           `json:"error_message"`
	RetryCount   int              `json:"retry_count"`
	CreatedAt    time.Time        `json:"created_at"`
	TraceID      string           `json:"trace_id,omitempty"`
}

type DeadLetterQueue struct {
	client     *Client
	streamName string
	logger     ectologger.Logger
}

func NewDeadLetterQueue(client *Client, streamName string, logger ectologger.Logger) *DeadLetterQueue {
	if streamName == "" {
		streamName = DefaultDLQStream
	}
	return &DeadLetterQueue{
		client:     client,
		streamName: streamName,
		logger:     logger,
	}
}

func (d *DeadLetterQueue) Add(ctx context.Context, entry *DLQEntry) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "DeadLetterQueue.Add")
	defer span.End()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.TraceID = tracing.GetTraceID(ctx)

	data, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("failed to marshal DLQ entry: %w", err)
	}

	messageID, err := d.client.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: d.streamName,
		MaxLen: DLQMaxLen,
		Approx: true,
		Values: map[string]any{
			"data":     string(data),
			"job_type": entry.JobType,
			"reason":   string(entry.Reason),
		},
	}).Result()
	if err != nil {
		d.logger.WithContext(ctx).WithError(err).Error("Failed to add job to DLQ")
		return "", fmt.Errorf("failed to add to DLQ: %w", err)
	}

	d.logger.WithContext(ctx).Infof("Added job to DLQ: id=%s type=%s reason=%s", entry.ID, entry.JobType, entry.Reason)
	return messageID, nil
}

// List returns the newest count entries, newest first.
func (d *DeadLetterQueue) List(ctx context.Context, count int64) ([]DLQEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "DeadLetterQueue.List")
	defer span.End()

	if count <= 0 {
		count = 100
	}

	messages, err := d.client.rdb.XRevRangeN(ctx, d.streamName, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read DLQ: %w", err)
	}

	entries := make([]DLQEntry, 0, len(messages))
	for _, msg := range messages {
		entry, err := decodeEntry(msg)
		if err != nil {
			d.logger.WithContext(ctx).WithError(err).Warnf("Failed to unmarshal DLQ entry: %s", msg.ID)
			continue
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// Get returns a 404 httperror when the entry does not exist.
func (d *DeadLetterQueue) Get(ctx context.Context, messageID string) (*DLQEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "DeadLetterQueue.Get")
	defer span.End()

	messages, err := d.client.rdb.XRange(ctx, d.streamName, messageID, messageID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get DLQ entry: %w", err)
	}
	if len(messages) == 0 {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "DLQ entry not found: %s", messageID)
	}
	return decodeEntry(messages[0])
}

func (d *DeadLetterQueue) Delete(ctx context.Context, messageID string) error {
	ctx, span := tracing.StartSpan(ctx, "DeadLetterQueue.Delete")
	defer span.End()

	count, err := d.client.rdb.XDel(ctx, d.streamName, messageID).Result()
	if err != nil {
		return fmt.Errorf("failed to delete DLQ entry: %w", err)
	}
	if count == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "DLQ entry not found: %s", messageID)
	}

	d.logger.WithContext(ctx).Infof("Deleted DLQ entry: %s", messageID)
	return nil
}

func (d *DeadLetterQueue) Count(ctx context.Context) (int64, error) {
	return d.client.rdb.XLen(ctx, d.streamName).Result()
}

// Retry re-publishes the original job with its attempt count reset, then removes the entry.
func (d *DeadLetterQueue) Retry(ctx context.Context, messageID string, jobQueue *Streams, queueName string) error {
	ctx, span := tracing.StartSpan(ctx, "DeadLetterQueue.Retry")
	defer span.End()

	entry, err := d.Get(ctx, messageID)
	if err != nil {
		return err
	}
	if entry.OriginalJob == nil {
		return httperror.NewHTTPErrorf(http.StatusUnprocessableEntity, "DLQ entry has no original job: %s", messageID)
	}

	entry.OriginalJob.Attempts = 0
	if _, err := jobQueue.Publish(ctx, queueName, entry.OriginalJob); err != nil {
		return fmt.Errorf("failed to re-enqueue job: %w", err)
	}

	if err := d.Delete(ctx, messageID); err != nil {
		d.logger.WithContext(ctx).WithError(err).Warn("Failed to delete DLQ entry after retry")
	}

	d.logger.WithContext(ctx).Infof("Retried DLQ entry: %s type=%s", messageID, entry.JobType)
	return nil
}

func decodeEntry(msg redis.XMessage) (*DLQEntry, error) {
	data, ok := msg.Values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid DLQ entry format")
	}
	var entry DLQEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal DLQ entry: %w", err)
	}
	entry.MessageID = msg.ID
	return &entry, nil
}

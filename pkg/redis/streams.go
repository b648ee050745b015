package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// StreamMessage is one stream entry. Job is nil when the entry could not be decoded.
type StreamMessage struct {
	ID     string
	Stream string
	Job    *JobMessage
}

// JobMessage is the envelope for every queued job.
type JobMessage struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	PartnerBpnl string          `json:"partner_bpnl,omitempty"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	Attempts    int             `json:"attempts"`
}

// Streams provides the Redis Streams operations the job queue needs.
type Streams struct {
	client *Client
}

func NewStreams(client *Client) *Streams {
	return &Streams{client: client}
}

func (s *Streams) Publish(ctx context.Context, stream string, job *JobMessage) (string, error) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	result, err := s.client.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			"data": string(payload),
			"type": job.Type,
		},
	}).Result()
	if err != nil {
		s.client.logger.WithContext(ctx).WithError(err).Errorf("Failed to publish to stream %s", stream)
		return "", err
	}

	s.client.logger.WithContext(ctx).Debugf("Published %s job %s to stream %s (message ID: %s)", job.Type, job.ID, stream, result)
	return result, nil
}

func (s *Streams) CreateConsumerGroup(ctx context.Context, stream, group string) error {
	err := s.client.rdb.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// Consume reads new entries for consumer. It returns nil, nil when block elapses with nothing to read.
func (s *Streams) Consume(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]StreamMessage, error) {
	results, err := s.client.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var messages []StreamMessage
	for _, result := range results {
		messages = append(messages, s.decode(ctx, result.Stream, result.Messages)...)
	}
	return messages, nil
}

func (s *Streams) Ack(ctx context.Context, stream, group string, ids ...string) error {
	return s.client.rdb.XAck(ctx, stream, group, ids...).Err()
}

func (s *Streams) Pending(ctx context.Context, stream, group string, count int64) ([]redis.XPendingExt, error) {
	return s.client.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: stream,
		Group:  group,
		Start:  "-",
		End:    "+",
		Count:  count,
	}).Result()
}

func (s *Streams) Claim(ctx context.Context, stream, group, consumer string, minIdle time.Duration, ids ...string) ([]StreamMessage, error) {
	results, err := s.client.rdb.XClaim(ctx, &redis.XClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return nil, err
	}
	return s.decode(ctx, stream, results), nil
}

func (s *Streams) Len(ctx context.Context, stream string) (int64, error) {
	return s.client.rdb.XLen(ctx, stream).Result()
}

// Range returns entries between start and end IDs inclusive.
func (s *Streams) Range(ctx context.Context, stream, start, end string) ([]StreamMessage, error) {
	results, err := s.client.rdb.XRange(ctx, stream, start, end).Result()
	if err != nil {
		return nil, err
	}
	return s.decode(ctx, stream, results), nil
}

func (s *Streams) decode(ctx context.Context, stream string, entries []redis.XMessage) []StreamMessage {
	messages := make([]StreamMessage, 0, len(entries))
	for _, entry := range entries {
		msg := StreamMessage{ID: entry.ID, Stream: stream}

		data, ok := entry.Values["data"].(string)
		if ok {
			var job JobMessage
			if err := json.Unmarshal([]byte(data), &job); err != nil {
				s.client.logger.WithContext(ctx).WithError(err).Warnf("Failed to unmarshal message %s", entry.ID)
			} else {
				msg.Job = &job
			}
		}
		messages = append(messages, msg)
	}
	return messages
}

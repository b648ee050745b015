package edr

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/redis"
)

const (
	DefaultRelayKeyPrefix = "clover:edr:"
	DefaultRelayChannel   = "clover:edr:tokens"
)

type relayMessage struct {
	Origin string `json:"origin"`
	Token  Token  `json:"token"`
}

// RedisRelay mirrors tokens into Redis and fans them out over pub/sub so that a webhook
// received by one replica releases a negotiation waiting on another.
type RedisRelay struct {
	client    *redis.Client
	store     *Store
	logger    ectologger.Logger
	ttl       time.Duration
	keyPrefix string
	channel   string
	origin    string

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	stoppedC chan struct{}
}

// NewRedisRelay creates a relay and attaches it to store.
func NewRedisRelay(client *redis.Client, store *Store, ttl time.Duration, logger ectologger.Logger) *RedisRelay {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	r := &RedisRelay{
		client:    client,
		store:     store,
		logger:    logger,
		ttl:       ttl,
		keyPrefix: DefaultRelayKeyPrefix,
		channel:   DefaultRelayChannel,
		origin:    uuid.New().String(),
	}
	store.SetReplicator(r)
	return r
}

func (r *RedisRelay) key(transferID string) string {
	return r.keyPrefix + transferID
}

func (r *RedisRelay) Publish(ctx context.Context, token Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	if err := r.client.Set(ctx, r.key(token.TransferID), string(data), r.ttl); err != nil {
		return fmt.Errorf("failed to cache token: %w", err)
	}

	msg, err := json.Marshal(relayMessage{Origin: r.origin, Token: token})
	if err != nil {
		return fmt.Errorf("failed to marshal relay message: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, string(msg)); err != nil {
		return fmt.Errorf("failed to publish token: %w", err)
	}
	return nil
}

func (r *RedisRelay) Get(ctx context.Context, transferID string) (*Token, error) {
	data, err := r.client.Get(ctx, r.key(transferID))
	if err != nil {
		if redis.IsNil(err) {
			return nil, nil
		}
		return nil, err
	}

	var token Token
	if err := json.Unmarshal([]byte(data), &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached token: %w", err)
	}
	return &token, nil
}

// Start subscribes to the relay channel.
func (r *RedisRelay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	pubsub := r.client.Subscribe(runCtx, r.channel)
	if _, err := pubsub.Receive(runCtx); err != nil {
		cancel()
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	r.cancel = cancel
	r.stoppedC = make(chan struct{})
	r.running = true

	go func() {
		defer close(r.stoppedC)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-runCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				r.handle(runCtx, msg.Payload)
			}
		}
	}()

	r.logger.WithContext(ctx).WithField("channel", r.channel).Info("EDR relay started")
	return nil
}

func (r *RedisRelay) handle(ctx context.Context, payload string) {
	var msg relayMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		r.logger.WithContext(ctx).WithError(err).Warn("Dropping malformed EDR relay message")
		return
	}
	if msg.Origin == r.origin {
		return
	}
	r.store.PutRelayed(ctx, msg.Token)
}

func (r *RedisRelay) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.cancel()
	stopped := r.stoppedC
	r.mu.Unlock()

	select {
	case <-stopped:
	case <-ctx.Done():
		return ctx.Err()
	}
	r.logger.WithContext(ctx).Info("EDR relay stopped")
	return nil
}

// Package edr holds Endpoint Data References received from the connector and uses them
// to fetch partner data from the provider's data plane.
package edr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	DefaultTokenTTL = 5 * time.Minute

	// DefaultAuthKey is used for tokens created by the legacy auth code endpoint.
	DefaultAuthKey = "Authorization"

	SourceWebhook   = "webhook"
	SourceAuthCodes = "auth_codes"
	SourceRelay     = "relay"
)

var ErrTokenNotFound = errors.New("edr token not found")

// Token is the EDR for one transfer process.
type Token struct {
	TransferID string    `json:"id"`
	AuthKey    string    `json:"authKey"`
	AuthCode   string    `json:"authCode"`
	Endpoint   string    `json:"endpoint"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Complete reports whether the token can be used to fetch data.
func (t *Token) Complete() bool {
	return t != nil && t.Endpoint != "" && t.AuthCode != "" && t.AuthKey != ""
}

// Replicator shares tokens between replicas. Get returns (nil, nil) when the token is unknown.
type Replicator interface {
	Publish(ctx context.Context, token Token) error
	Get(ctx context.Context, transferID string) (*Token, error)
}

type entry struct {
	token    *Token
	ready    chan struct{}
	signaled bool
	waiters  int
}

// Store correlates tokens with the negotiations waiting for them. Every transfer id has
// its own ready signal, so a token only ever releases the waiter of its own transfer.
type Store struct {
	mu         sync.Mutex
	entries    map[string]*entry
	ttl        time.Duration
	replicator Replicator
	logger     ectologger.Logger
	now        func() time.Time
}

func NewStore(ttl time.Duration, logger ectologger.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Store{
		entries: make(map[string]*entry),
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
	}
}

// SetReplicator attaches a replicator. Must be called before the store is shared.
func (s *Store) SetReplicator(r Replicator) {
	s.replicator = r
}

// entryFor must be called with mu held.
func (s *Store) entryFor(transferID string) *entry {
	e, ok := s.entries[transferID]
	if !ok {
		e = &entry{ready: make(chan struct{})}
		s.entries[transferID] = e
	}
	return e
}

// Put stores token, overwriting any previous token for the transfer, and releases its waiter.
func (s *Store) Put(ctx context.Context, token Token) error {
	ctx, span := tracing.StartSpan(ctx, "Store.Put")
	defer span.End()

	if token.TransferID == "" {
		return fmt.Errorf("transfer id is required")
	}

	s.putLocal(token)
	metrics.EdrTokensReceived.WithLabelValues(SourceWebhook).Inc()
	s.logger.WithContext(ctx).WithField("transfer_id", token.TransferID).Debug("Stored EDR token")

	s.publish(ctx, token)
	return nil
}

// PutRelayed stores a token received from another replica without publishing it again.
func (s *Store) PutRelayed(ctx context.Context, token Token) {
	if token.TransferID == "" {
		return
	}
	s.putLocal(token)
	metrics.EdrTokensReceived.WithLabelValues(SourceRelay).Inc()
	s.logger.WithContext(ctx).WithField("transfer_id", token.TransferID).Debug("Stored relayed EDR token")
}

// UpdateAuthCode sets the auth code of a transfer. A token that does not exist yet is
// created without an endpoint, and does not release the waiter until one arrives.
func (s *Store) UpdateAuthCode(ctx context.Context, transferID, authCode string) error {
	ctx, span := tracing.StartSpan(ctx, "Store.UpdateAuthCode")
	defer span.End()

	if transferID == "" {
		return fmt.Errorf("transfer id is required")
	}

	s.mu.Lock()
	e := s.entryFor(transferID)
	var token Token
	if e.token != nil {
		token = *e.token
	} else {
		token = Token{TransferID: transferID, AuthKey: DefaultAuthKey}
	}
	token.AuthCode = authCode
	token.ReceivedAt = s.now()
	s.setLocked(e, token)
	s.mu.Unlock()

	metrics.EdrTokensReceived.WithLabelValues(SourceAuthCodes).Inc()
	s.logger.WithContext(ctx).WithField("transfer_id", transferID).Debug("Updated EDR auth code")

	if token.Complete() {
		s.publish(ctx, token)
	}
	return nil
}

func (s *Store) putLocal(token Token) {
	if token.ReceivedAt.IsZero() {
		token.ReceivedAt = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(s.entryFor(token.TransferID), token)
}

// setLocked must be called with mu held.
func (s *Store) setLocked(e *entry, token Token) {
	e.token = &token
	if token.Complete() && !e.signaled {
		e.signaled = true
		close(e.ready)
	}
}

func (s *Store) publish(ctx context.Context, token Token) {
	if s.replicator == nil {
		return
	}
	if err := s.replicator.Publish(ctx, token); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("transfer_id", token.TransferID).Warn("Failed to replicate EDR token")
	}
}

// Get returns the token for transferID if one is stored.
func (s *Store) Get(transferID string) (*Token, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[transferID]
	if !ok || e.token == nil {
		return nil, false
	}
	token := *e.token
	return &token, true
}

// Await returns the complete token for transferID, blocking until it arrives or ctx ends.
func (s *Store) Await(ctx context.Context, transferID string) (*Token, error) {
	ctx, span := tracing.StartSpan(ctx, "Store.Await")
	defer span.End()

	s.mu.Lock()
	e := s.entryFor(transferID)
	e.waiters++
	ready := e.ready
	signaled := e.signaled
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		e.waiters--
		s.mu.Unlock()
	}()

	if !signaled && s.replicator != nil {
		token, err := s.replicator.Get(ctx, transferID)
		if err != nil {
			s.logger.WithContext(ctx).WithError(err).WithField("transfer_id", transferID).Warn("Failed to read replicated EDR token")
		} else if token.Complete() {
			s.putLocal(*token)
		}
	}

	select {
	case <-ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	token := *e.token
	return &token, nil
}

// Delete removes the token for transferID unless a negotiation is still waiting for it.
func (s *Store) Delete(transferID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[transferID]; ok && e.waiters == 0 {
		delete(s.entries, transferID)
	}
}

// Sweep drops tokens older than the TTL and abandoned wait slots. Entries with waiters are kept.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entries {
		if e.waiters > 0 {
			continue
		}
		if e.token == nil || now.Sub(e.token.ReceivedAt) > s.ttl {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// RunSweeper sweeps every interval until ctx is done.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.Sweep(now); n > 0 {
				s.logger.WithContext(ctx).WithField("removed", n).Debug("Swept expired EDR tokens")
			}
		}
	}
}

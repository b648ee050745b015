package dsp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/edr"
	"github.com/Ramsey-B/clover/pkg/expressions"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/policy"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var (
	ErrCatalog             = errors.New("catalog error")
	ErrPolicyRejected      = errors.New("no offer satisfies the usage policy")
	ErrNegotiationDeclined = errors.New("contract negotiation declined")
	ErrNegotiationTimeout  = errors.New("contract negotiation timed out")
	ErrTransferTimeout     = errors.New("transfer timed out waiting for edr")
)

const (
	DefaultPollInterval       = time.Second
	DefaultNegotiationTimeout = 30 * time.Second
	DefaultTransferTimeout    = 30 * time.Second
)

// Connector is the subset of the management API the negotiator drives.
type Connector interface {
	RequestCatalog(ctx context.Context, partner *models.Partner, semanticID string) (map[string]any, error)
	StartNegotiation(ctx context.Context, partner *models.Partner, assetID string, offer map[string]any) (string, error)
	GetNegotiation(ctx context.Context, negotiationID string) (*NegotiationStatus, error)
	StartTransfer(ctx context.Context, partner *models.Partner, assetID, agreementID string) (string, error)
}

// TokenWaiter blocks until the EDR for a transfer arrives.
type TokenWaiter interface {
	Await(ctx context.Context, transferID string) (*edr.Token, error)
}

type Config struct {
	PollInterval       time.Duration
	NegotiationTimeout time.Duration
	TransferTimeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval:       DefaultPollInterval,
		NegotiationTimeout: DefaultNegotiationTimeout,
		TransferTimeout:    DefaultTransferTimeout,
	}
}

// Negotiator runs catalog request, offer selection, contract negotiation and transfer
// start for one partner asset, then waits for the EDR. Failed negotiations are not retried.
type Negotiator struct {
	connector Connector
	tokens    TokenWaiter
	validator *policy.Validator
	eval      *expressions.Evaluator
	cfg       Config
	logger    ectologger.Logger

	mu      sync.Mutex
	pending map[string]*models.PendingNegotiation
	now     func() time.Time
}

func NewNegotiator(connector Connector, tokens TokenWaiter, validator *policy.Validator, cfg Config, logger ectologger.Logger) *Negotiator {
	defaults := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.NegotiationTimeout <= 0 {
		cfg.NegotiationTimeout = defaults.NegotiationTimeout
	}
	if cfg.TransferTimeout <= 0 {
		cfg.TransferTimeout = defaults.TransferTimeout
	}

	return &Negotiator{
		connector: connector,
		tokens:    tokens,
		validator: validator,
		eval:      expressions.NewEvaluator(),
		cfg:       cfg,
		logger:    logger,
		pending:   make(map[string]*models.PendingNegotiation),
		now:       time.Now,
	}
}

// Pending returns a snapshot of in-flight negotiations, oldest first.
func (n *Negotiator) Pending() []models.PendingNegotiation {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]models.PendingNegotiation, 0, len(n.pending))
	for _, p := range n.pending {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

func (n *Negotiator) begin(partner *models.Partner, assetType models.AssetType) string {
	now := n.now()
	p := &models.PendingNegotiation{
		ID:          uuid.New().String(),
		PartnerBpnl: partner.Bpnl,
		AssetType:   assetType,
		State:       models.NegotiationIdle,
		StartedAt:   now,
		UpdatedAt:   now,
	}

	n.mu.Lock()
	n.pending[p.ID] = p
	metrics.PendingNegotiations.Set(float64(len(n.pending)))
	n.mu.Unlock()
	return p.ID
}

func (n *Negotiator) update(id string, state models.NegotiationState, apply func(p *models.PendingNegotiation)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	p, ok := n.pending[id]
	if !ok {
		return
	}
	p.State = state
	p.UpdatedAt = n.now()
	if apply != nil {
		apply(p)
	}
}

func (n *Negotiator) finish(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.pending, id)
	metrics.PendingNegotiations.Set(float64(len(n.pending)))
}

// Negotiate obtains an EDR for the partner's asset of the given type.
func (n *Negotiator) Negotiate(ctx context.Context, partner *models.Partner, assetType models.AssetType) (token *edr.Token, err error) {
	ctx, span := tracing.StartSpan(ctx, "Negotiator.Negotiate")
	defer span.End()

	start := time.Now()
	id := n.begin(partner, assetType)
	logger := n.logger.WithContext(ctx).WithFields(map[string]any{
		"negotiation":  id,
		"partner_bpnl": partner.Bpnl,
		"asset_type":   string(assetType),
	})

	defer func() {
		outcome := "authorized"
		if err != nil {
			outcome = "failed"
			n.update(id, models.NegotiationFailed, nil)
			logger.WithError(err).Warn("Negotiation failed")
		}
		n.finish(id)
		metrics.RecordNegotiation(string(assetType), outcome, time.Since(start).Seconds())
	}()

	catalog, err := n.connector.RequestCatalog(ctx, partner, assetType.SemanticID())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalog, err)
	}
	datasets, err := ParseDatasets(n.eval, catalog)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalog, err)
	}
	n.update(id, models.NegotiationCatalogFetched, nil)

	assetID, offer, err := n.selectOffer(datasets, assetType)
	if err != nil {
		return nil, err
	}
	n.update(id, models.NegotiationOfferSelected, func(p *models.PendingNegotiation) { p.AssetID = assetID })

	negotiationID, err := n.connector.StartNegotiation(ctx, partner, assetID, offer)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNegotiationDeclined, err)
	}
	n.update(id, models.NegotiationContractNegotiating, func(p *models.PendingNegotiation) { p.NegotiationID = negotiationID })

	agreementID, err := n.awaitAgreement(ctx, negotiationID)
	if err != nil {
		return nil, err
	}
	n.update(id, models.NegotiationContractConfirmed, func(p *models.PendingNegotiation) { p.ContractAgreementID = agreementID })

	transferID, err := n.connector.StartTransfer(ctx, partner, assetID, agreementID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransferTimeout, err)
	}
	n.update(id, models.NegotiationTransferInitiated, func(p *models.PendingNegotiation) { p.TransferProcessID = transferID })

	waitCtx, cancel := context.WithTimeout(ctx, n.cfg.TransferTimeout)
	defer cancel()
	token, err = n.tokens.Await(waitCtx, transferID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: transfer %s", ErrTransferTimeout, transferID)
	}

	n.update(id, models.NegotiationAuthorized, nil)
	logger.WithField("transfer_id", transferID).Debug("Negotiation authorized")
	return token, nil
}

func (n *Negotiator) selectOffer(datasets []Dataset, assetType models.AssetType) (string, map[string]any, error) {
	semanticID := assetType.SemanticID()
	matched := false
	for _, ds := range datasets {
		if ds.SemanticID != "" && ds.SemanticID != semanticID {
			continue
		}
		matched = true
		for _, offer := range ds.Offers {
			if n.validator.Validate(offer) {
				return ds.AssetID, offer, nil
			}
		}
	}
	if !matched {
		return "", nil, fmt.Errorf("%w: no dataset with semantic id %s", ErrCatalog, semanticID)
	}
	return "", nil, ErrPolicyRejected
}

func (n *Negotiator) awaitAgreement(ctx context.Context, negotiationID string) (string, error) {
	pollCtx, cancel := context.WithTimeout(ctx, n.cfg.NegotiationTimeout)
	defer cancel()

	ticker := time.NewTicker(n.cfg.PollInterval)
	defer ticker.Stop()

	for {
		status, err := n.connector.GetNegotiation(pollCtx, negotiationID)
		switch {
		case err != nil:
			n.logger.WithContext(ctx).WithError(err).WithField("negotiation_id", negotiationID).Debug("Negotiation poll failed")
		case IsAgreed(status.State):
			if status.ContractAgreementID == "" {
				return "", fmt.Errorf("%w: %s has no agreement id", ErrNegotiationDeclined, negotiationID)
			}
			return status.ContractAgreementID, nil
		case IsRejected(status.State):
			return "", fmt.Errorf("%w: %s is %s %s", ErrNegotiationDeclined, negotiationID, status.State, status.ErrorDetail)
		}

		select {
		case <-pollCtx.Done():
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", fmt.Errorf("%w: %s", ErrNegotiationTimeout, negotiationID)
		case <-ticker.C:
		}
	}
}

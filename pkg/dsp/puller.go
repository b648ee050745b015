package dsp

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/edr"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

type negotiator interface {
	Negotiate(ctx context.Context, partner *models.Partner, assetType models.AssetType) (*edr.Token, error)
}

type fetcher interface {
	Fetch(ctx context.Context, token *edr.Token, subPath string) ([]byte, error)
}

type tokenDeleter interface {
	Delete(transferID string)
}

// Puller negotiates access to a partner submodel and reads it.
type Puller struct {
	negotiator negotiator
	fetcher    fetcher
	tokens     tokenDeleter
	logger     ectologger.Logger
}

// NewPuller creates a Puller. tokens may be nil; when set, used tokens are discarded.
func NewPuller(n negotiator, f fetcher, tokens tokenDeleter, logger ectologger.Logger) *Puller {
	return &Puller{negotiator: n, fetcher: f, tokens: tokens, logger: logger}
}

func (p *Puller) Pull(ctx context.Context, partner *models.Partner, assetType models.AssetType, subPath string) ([]byte, error) {
	ctx, span := tracing.StartSpan(ctx, "Puller.Pull")
	defer span.End()

	token, err := p.negotiator.Negotiate(ctx, partner, assetType)
	if err != nil {
		return nil, err
	}
	if p.tokens != nil {
		defer p.tokens.Delete(token.TransferID)
	}

	body, err := p.fetcher.Fetch(ctx, token, subPath)
	if err != nil {
		return nil, err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"partner_bpnl": partner.Bpnl,
		"asset_type":   string(assetType),
		"bytes":        len(body),
	}).Debug("Pulled partner submodel")
	return body, nil
}

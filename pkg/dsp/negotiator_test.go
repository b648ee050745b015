package dsp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/edr"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/policy"
)

const (
	testFramework = "DataExchangeGovernance:1.0"
	testPurpose   = "cx.puris.base:1"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func testPartner() *models.Partner {
	return &models.Partner{Name: "Supplier", Bpnl: "BPNL1234567890ZZ", EdcURL: "https://supplier.example/api/v1/dsp"}
}

func acceptableOffer(id string) map[string]any {
	return map[string]any{
		"@id": id,
		"odrl:permission": map[string]any{
			"odrl:action": map[string]any{"@id": "odrl:use"},
			"odrl:constraint": map[string]any{
				"odrl:and": []any{
					map[string]any{"odrl:leftOperand": map[string]any{"@id": "cx-policy:FrameworkAgreement"}, "odrl:operator": map[string]any{"@id": "odrl:eq"}, "odrl:rightOperand": testFramework},
					map[string]any{"odrl:leftOperand": map[string]any{"@id": "cx-policy:UsagePurpose"}, "odrl:operator": map[string]any{"@id": "odrl:eq"}, "odrl:rightOperand": testPurpose},
				},
			},
		},
		"odrl:prohibition": []any{},
		"odrl:obligation":  []any{},
	}
}

func catalogWith(semanticID string, offers ...any) map[string]any {
	var hasPolicy any = offers
	if len(offers) == 1 {
		hasPolicy = offers[0]
	}
	return map[string]any{
		"@id": "catalog",
		"dcat:dataset": map[string]any{
			"@id":                      "item-stock-asset",
			"aas-semantics:semanticId": map[string]any{"@id": semanticID},
			"odrl:hasPolicy":           hasPolicy,
		},
	}
}

type fakeConnector struct {
	mu            sync.Mutex
	catalog       map[string]any
	catalogErr    error
	states        []string
	polls         int
	negotiations  int
	transferID    string
	onTransfer    func(transferID string)
	onPoll        func()
	offerSelected map[string]any
	startErr      error
	transferErr   error
}

func (f *fakeConnector) RequestCatalog(_ context.Context, _ *models.Partner, _ string) (map[string]any, error) {
	return f.catalog, f.catalogErr
}

func (f *fakeConnector) StartNegotiation(_ context.Context, _ *models.Partner, _ string, offer map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.negotiations++
	f.offerSelected = offer
	if f.startErr != nil {
		return "", f.startErr
	}
	return "neg-1", nil
}

func (f *fakeConnector) GetNegotiation(_ context.Context, _ string) (*NegotiationStatus, error) {
	if f.onPoll != nil {
		f.onPoll()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	state := f.states[len(f.states)-1]
	if f.polls < len(f.states) {
		state = f.states[f.polls]
	}
	f.polls++
	status := &NegotiationStatus{State: state}
	if IsAgreed(state) {
		status.ContractAgreementID = "agreement-1"
	}
	return status, nil
}

func (f *fakeConnector) StartTransfer(_ context.Context, _ *models.Partner, _, _ string) (string, error) {
	if f.onTransfer != nil {
		f.onTransfer(f.transferID)
	}
	if f.transferErr != nil {
		return "", f.transferErr
	}
	return f.transferID, nil
}

func newNegotiator(connector Connector, store *edr.Store) *Negotiator {
	validator := policy.NewValidator(policy.Profile2405, testFramework, testPurpose)
	return NewNegotiator(connector, store, validator, Config{
		PollInterval:       5 * time.Millisecond,
		NegotiationTimeout: 100 * time.Millisecond,
		TransferTimeout:    100 * time.Millisecond,
	}, testLogger())
}

func edrToken(id string) edr.Token {
	return edr.Token{TransferID: id, AuthKey: "Authorization", AuthCode: "code", Endpoint: "https://supplier.example/public"}
}

func TestNegotiator_Negotiate(t *testing.T) {
	ctx := context.Background()
	semanticID := models.AssetTypeItemStock.SemanticID()

	t.Run("authorized when edr arrives after transfer start", func(t *testing.T) {
		store := edr.NewStore(time.Minute, testLogger())
		connector := &fakeConnector{
			catalog:    catalogWith(semanticID, map[string]any{"@id": "bad"}, acceptableOffer("good")),
			states:     []string{"REQUESTED", "AGREED", "FINALIZED"},
			transferID: "T",
		}
		connector.onTransfer = func(id string) {
			go func() {
				time.Sleep(10 * time.Millisecond)
				_ = store.Put(ctx, edrToken(id))
			}()
		}
		n := newNegotiator(connector, store)

		token, err := n.Negotiate(ctx, testPartner(), models.AssetTypeItemStock)
		require.NoError(t, err)
		assert.Equal(t, "T", token.TransferID)
		assert.Equal(t, "good", connector.offerSelected["@id"])
		assert.Empty(t, n.Pending())
	})

	t.Run("pending record tracks state", func(t *testing.T) {
		store := edr.NewStore(time.Minute, testLogger())
		require.NoError(t, store.Put(ctx, edrToken("T")))
		connector := &fakeConnector{
			catalog:    catalogWith(semanticID, acceptableOffer("good")),
			states:     []string{"FINALIZED"},
			transferID: "T",
		}
		n := newNegotiator(connector, store)

		var seen []models.PendingNegotiation
		connector.onPoll = func() { seen = n.Pending() }

		_, err := n.Negotiate(ctx, testPartner(), models.AssetTypeItemStock)
		require.NoError(t, err)
		require.Len(t, seen, 1)
		assert.Equal(t, models.NegotiationContractNegotiating, seen[0].State)
		assert.Equal(t, "item-stock-asset", seen[0].AssetID)
		assert.Equal(t, "neg-1", seen[0].NegotiationID)
		assert.Empty(t, n.Pending())
	})

	t.Run("policy rejected", func(t *testing.T) {
		connector := &fakeConnector{catalog: catalogWith(semanticID, map[string]any{"@id": "bad"})}
		n := newNegotiator(connector, edr.NewStore(time.Minute, testLogger()))

		_, err := n.Negotiate(ctx, testPartner(), models.AssetTypeItemStock)
		assert.ErrorIs(t, err, ErrPolicyRejected)
		assert.Zero(t, connector.negotiations)
		assert.Empty(t, n.Pending())
	})

	t.Run("catalog transport failure", func(t *testing.T) {
		connector := &fakeConnector{catalogErr: errors.New("connection refused")}
		n := newNegotiator(connector, edr.NewStore(time.Minute, testLogger()))

		_, err := n.Negotiate(ctx, testPartner(), models.AssetTypeItemStock)
		assert.ErrorIs(t, err, ErrCatalog)
	})

	t.Run("no dataset for asset type", func(t *testing.T) {
		connector := &fakeConnector{catalog: catalogWith(models.AssetTypeDemand.SemanticID(), acceptableOffer("good"))}
		n := newNegotiator(connector, edr.NewStore(time.Minute, testLogger()))

		_, err := n.Negotiate(ctx, testPartner(), models.AssetTypeItemStock)
		assert.ErrorIs(t, err, ErrCatalog)
	})

	t.Run("declined", func(t *testing.T) {
		connector := &fakeConnector{
			catalog: catalogWith(semanticID, acceptableOffer("good")),
			states:  []string{"REQUESTED", "TERMINATED"},
		}
		n := newNegotiator(connector, edr.NewStore(time.Minute, testLogger()))

		_, err := n.Negotiate(ctx, testPartner(), models.AssetTypeItemStock)
		assert.ErrorIs(t, err, ErrNegotiationDeclined)
	})

	t.Run("negotiation start failure", func(t *testing.T) {
		connector := &fakeConnector{
			catalog:  catalogWith(semanticID, acceptableOffer("good")),
			startErr: fmt.Errorf("%w: status 500", ErrConnector),
		}
		n := newNegotiator(connector, edr.NewStore(time.Minute, testLogger()))

		_, err := n.Negotiate(ctx, testPartner(), models.AssetTypeItemStock)
		assert.ErrorIs(t, err, ErrNegotiationDeclined)
		assert.ErrorIs(t, err, ErrConnector)
		assert.Empty(t, n.Pending())
	})

	t.Run("transfer start failure", func(t *testing.T) {
		connector := &fakeConnector{
			catalog:     catalogWith(semanticID, acceptableOffer("good")),
			states:      []string{"FINALIZED"},
			transferErr: fmt.Errorf("%w: transfer response has no @id", ErrConnector),
		}
		n := newNegotiator(connector, edr.NewStore(time.Minute, testLogger()))

		_, err := n.Negotiate(ctx, testPartner(), models.AssetTypeItemStock)
		assert.ErrorIs(t, err, ErrTransferTimeout)
		assert.ErrorIs(t, err, ErrConnector)
	})

	t.Run("negotiation timeout", func(t *testing.T) {
		connector := &fakeConnector{
			catalog: catalogWith(semanticID, acceptableOffer("good")),
			states:  []string{"REQUESTED"},
		}
		n := newNegotiator(connector, edr.NewStore(time.Minute, testLogger()))

		_, err := n.Negotiate(ctx, testPartner(), models.AssetTypeItemStock)
		assert.ErrorIs(t, err, ErrNegotiationTimeout)
		assert.Empty(t, n.Pending())
	})

	t.Run("transfer timeout", func(t *testing.T) {
		store := edr.NewStore(time.Minute, testLogger())
		require.NoError(t, store.Put(ctx, edrToken("other-transfer")))
		connector := &fakeConnector{
			catalog:    catalogWith(semanticID, acceptableOffer("good")),
			states:     []string{"FINALIZED"},
			transferID: "T",
		}
		n := newNegotiator(connector, store)

		_, err := n.Negotiate(ctx, testPartner(), models.AssetTypeItemStock)
		assert.ErrorIs(t, err, ErrTransferTimeout)
		assert.Empty(t, n.Pending())
	})
}

type stubNegotiator struct {
	token *edr.Token
	err   error
}

func (s stubNegotiator) Negotiate(context.Context, *models.Partner, models.AssetType) (*edr.Token, error) {
	return s.token, s.err
}

type stubFetcher struct {
	subPath string
	body    []byte
}

func (s *stubFetcher) Fetch(_ context.Context, _ *edr.Token, subPath string) ([]byte, error) {
	s.subPath = subPath
	return s.body, nil
}

func TestPuller_Pull(t *testing.T) {
	ctx := context.Background()
	store := edr.NewStore(time.Minute, testLogger())
	token := edrToken("T")
	require.NoError(t, store.Put(ctx, token))

	fetcher := &stubFetcher{body: []byte(`{"positions":[]}`)}
	p := NewPuller(stubNegotiator{token: &token}, fetcher, store, testLogger())

	body, err := p.Pull(ctx, testPartner(), models.AssetTypeItemStock, "CX-1/INBOUND")
	require.NoError(t, err)
	assert.Equal(t, `{"positions":[]}`, string(body))
	assert.Equal(t, "CX-1/INBOUND", fetcher.subPath)

	_, ok := store.Get("T")
	assert.False(t, ok)

	_, err = NewPuller(stubNegotiator{err: ErrPolicyRejected}, fetcher, nil, testLogger()).Pull(ctx, testPartner(), models.AssetTypeItemStock, "")
	assert.ErrorIs(t, err, ErrPolicyRejected)
}

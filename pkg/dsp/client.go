// Package dsp drives the own connector's management API to negotiate contracts and
// transfers with partner connectors.
package dsp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/expressions"
	"github.com/Ramsey-B/clover/pkg/httpclient"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	EdcNamespace   = "https://w3id.org/edc/v0.0.1/ns/"
	OdrlNamespace  = "http://www.w3.org/ns/odrl/2/"
	DcatNamespace  = "http://www.w3.org/ns/dcat#"
	DctNamespace   = "http://purl.org/dc/terms/"
	AasSemanticsNS = "https://admin-shell.io/aas/3/0/HasSemantics/"

	DefaultProtocol = "dataspace-protocol-http"
	TransferType    = "HttpData-PULL"
	APIKeyHeader    = "X-Api-Key"
)

// ErrConnector is returned when the own connector's management API fails.
var ErrConnector = errors.New("connector management api error")

type ClientConfig struct {
	ManagementURL string
	APIKey        string
	Protocol      string
	// CallbackURL receives EDRs for started transfers, normally {SERVER_URL}/edrendpoint
	CallbackURL string
}

// NegotiationStatus is the state of a contract negotiation as reported by the connector.
type NegotiationStatus struct {
	State               string
	ContractAgreementID string
	ErrorDetail         string
}

// Client speaks the management API v3 of the own connector.
type Client struct {
	http   *httpclient.Client
	cfg    ClientConfig
	eval   *expressions.Evaluator
	logger ectologger.Logger
}

func NewClient(http *httpclient.Client, cfg ClientConfig, logger ectologger.Logger) *Client {
	if cfg.Protocol == "" {
		cfg.Protocol = DefaultProtocol
	}
	return &Client{
		http:   http,
		cfg:    cfg,
		eval:   expressions.NewEvaluator(),
		logger: logger,
	}
}

func (c *Client) context() map[string]any {
	return map[string]any{
		"@vocab": EdcNamespace,
		"odrl":   OdrlNamespace,
		"dcat":   DcatNamespace,
		"dct":    DctNamespace,
	}
}

func (c *Client) headers() map[string]string {
	if c.cfg.APIKey == "" {
		return nil
	}
	return map[string]string{APIKeyHeader: c.cfg.APIKey}
}

func (c *Client) url(segments ...string) (string, error) {
	return httpclient.BuildURL(c.cfg.ManagementURL, segments, nil)
}

func (c *Client) post(ctx context.Context, op string, body any, segments ...string) (map[string]any, error) {
	url, err := c.url(segments...)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.PostJSON(ctx, url, body, c.headers())
	if err != nil {
		metrics.RecordHTTPRequest("edc", "error", 0)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	metrics.RecordHTTPRequest("edc", strconv.Itoa(resp.StatusCode), resp.Duration.Seconds())
	if !httpclient.IsSuccessStatus(resp.StatusCode) {
		return nil, fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, resp.Snippet())
	}

	var out map[string]any
	if err := resp.DecodeJSON(&out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// RequestCatalog asks the own connector for the partner's catalog, filtered to datasets
// with the given semantic id.
func (c *Client) RequestCatalog(ctx context.Context, partner *models.Partner, semanticID string) (map[string]any, error) {
	ctx, span := tracing.StartSpan(ctx, "Client.RequestCatalog")
	defer span.End()

	body := map[string]any{
		"@context":            c.context(),
		"@type":               "CatalogRequest",
		"counterPartyAddress": partner.EdcURL,
		"counterPartyId":      partner.Bpnl,
		"protocol":            c.cfg.Protocol,
		"querySpec": map[string]any{
			"filterExpression": []map[string]any{{
				"operandLeft":  "'" + AasSemanticsNS + "semanticId'.'@id'",
				"operator":     "=",
				"operandRight": semanticID,
			}},
		},
	}

	catalog, err := c.post(ctx, "catalog request", body, "v3", "catalog", "request")
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).WithField("partner_bpnl", partner.Bpnl).Warn("Catalog request failed")
		return nil, err
	}
	return catalog, nil
}

// StartNegotiation requests a contract for assetID under offer and returns the negotiation id.
func (c *Client) StartNegotiation(ctx context.Context, partner *models.Partner, assetID string, offer map[string]any) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "Client.StartNegotiation")
	defer span.End()

	policy := make(map[string]any, len(offer)+3)
	for k, v := range offer {
		policy[k] = v
	}
	policy["@type"] = "odrl:Offer"
	policy["odrl:target"] = map[string]any{"@id": assetID}
	policy["odrl:assigner"] = map[string]any{"@id": partner.Bpnl}

	body := map[string]any{
		"@context":            c.context(),
		"@type":               "ContractRequest",
		"counterPartyAddress": partner.EdcURL,
		"protocol":            c.cfg.Protocol,
		"policy":              policy,
	}

	out, err := c.post(ctx, "start negotiation", body, "v3", "contractnegotiations")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrConnector, err)
	}
	id, _ := c.eval.EvaluateString(expressions.Field("@id"), out)
	if id == "" {
		return "", fmt.Errorf("%w: negotiation response has no @id", ErrConnector)
	}
	return id, nil
}

// GetNegotiation reads the current state of a negotiation.
func (c *Client) GetNegotiation(ctx context.Context, negotiationID string) (*NegotiationStatus, error) {
	ctx, span := tracing.StartSpan(ctx, "Client.GetNegotiation")
	defer span.End()

	url, err := c.url("v3", "contractnegotiations", negotiationID)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Get(ctx, url, c.headers())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnector, err)
	}
	if !httpclient.IsSuccessStatus(resp.StatusCode) {
		return nil, fmt.Errorf("%w: negotiation %s: status %d", ErrConnector, negotiationID, resp.StatusCode)
	}

	var out map[string]any
	if err := resp.DecodeJSON(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnector, err)
	}

	return &NegotiationStatus{
		State:               c.first(out, "state", "edc:state", EdcNamespace+"state"),
		ContractAgreementID: c.first(out, "contractAgreementId", "edc:contractAgreementId", EdcNamespace+"contractAgreementId"),
		ErrorDetail:         c.first(out, "errorDetail", "edc:errorDetail", EdcNamespace+"errorDetail"),
	}, nil
}

// StartTransfer starts an HttpData-PULL transfer whose EDR is delivered to the callback URL.
func (c *Client) StartTransfer(ctx context.Context, partner *models.Partner, assetID, agreementID string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "Client.StartTransfer")
	defer span.End()

	body := map[string]any{
		"@context":            c.context(),
		"@type":               "TransferRequest",
		"assetId":             assetID,
		"contractId":          agreementID,
		"counterPartyAddress": partner.EdcURL,
		"connectorId":         partner.Bpnl,
		"protocol":            c.cfg.Protocol,
		"transferType":        TransferType,
		"dataDestination":     map[string]any{"type": "HttpProxy"},
		"privateProperties": map[string]any{
			"receiverHttpEndpoint": c.cfg.CallbackURL,
		},
		"callbackAddresses": []map[string]any{{
			"transactional": false,
			"uri":           c.cfg.CallbackURL,
			"events":        []string{"transfer.process.started"},
		}},
	}

	out, err := c.post(ctx, "start transfer", body, "v3", "transferprocesses")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrConnector, err)
	}
	id, _ := c.eval.EvaluateString(expressions.Field("@id"), out)
	if id == "" {
		return "", fmt.Errorf("%w: transfer response has no @id", ErrConnector)
	}
	return id, nil
}

func (c *Client) first(doc map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, err := c.eval.EvaluateString(expressions.Field(key), doc); err == nil && v != "" {
			return v
		}
	}
	return ""
}

// IsAgreed reports whether a negotiation state is terminal and successful.
func IsAgreed(state string) bool {
	switch strings.ToUpper(state) {
	case "FINALIZED", "CONFIRMED":
		return true
	}
	return false
}

// IsRejected reports whether a negotiation state is terminal and unsuccessful.
func IsRejected(state string) bool {
	switch strings.ToUpper(state) {
	case "TERMINATED", "TERMINATING", "DECLINED", "ERROR":
		return true
	}
	return false
}

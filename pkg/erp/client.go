// Package erp talks to the ERP adapter: it sends data requests and correlates the
// asynchronous answers with the requests that caused them.
package erp

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/httpclient"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// RequestStore persists outgoing requests and their responses.
type RequestStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.OutgoingErpRequest, error)
	SetResponseCode(ctx context.Context, id uuid.UUID, code int) error
	// MarkAnswered stamps the response date unless one is set and reports whether it did.
	MarkAnswered(ctx context.Context, id uuid.UUID) (bool, error)
}

// EventPublisher announces sent requests. Optional.
type EventPublisher interface {
	PublishErpRequestSent(ctx context.Context, evt *kafka.ErpRequestSentEvent) error
}

type Config struct {
	URL        string
	AuthKey    string
	AuthSecret string
	// ResponseURL is where the adapter posts its answer, normally {SERVER_URL}/erp-adapter
	ResponseURL string
}

type requestBody struct {
	Material    string `json:"material"`
	Direction   string `json:"direction"`
	ResponseURL string `json:"responseUrl"`
}

type Client struct {
	http      *httpclient.Client
	requests  RequestStore
	publisher EventPublisher
	cfg       Config
	logger    ectologger.Logger
}

func NewClient(http *httpclient.Client, requests RequestStore, publisher EventPublisher, cfg Config, logger ectologger.Logger) *Client {
	return &Client{
		http:      http,
		requests:  requests,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// Send posts req to the ERP adapter and records the status code it answered with.
func (c *Client) Send(ctx context.Context, req *models.OutgoingErpRequest) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "Client.Send")
	defer span.End()

	url, err := httpclient.BuildURL(c.cfg.URL, nil, map[string]string{
		"bpnl":              req.PartnerBpnl,
		"request-type":      req.RequestType,
		"request-id":        req.ID.String(),
		"samm-version":      req.SammVersion,
		"request-timestamp": strconv.FormatInt(req.RequestDate.UnixMilli(), 10),
	})
	if err != nil {
		return 0, err
	}

	var headers map[string]string
	if c.cfg.AuthKey != "" {
		headers = map[string]string{c.cfg.AuthKey: c.cfg.AuthSecret}
	}

	logger := c.logger.WithContext(ctx).WithFields(map[string]any{
		"request_id":   req.ID.String(),
		"partner_bpnl": req.PartnerBpnl,
		"request_type": req.RequestType,
	})

	resp, err := c.http.PostJSON(ctx, url, requestBody{
		Material:    req.OwnMaterialNumber,
		Direction:   string(req.Direction),
		ResponseURL: c.cfg.ResponseURL,
	}, headers)
	if err != nil {
		metrics.RecordErpRequest(string(req.AssetType), "error")
		metrics.RecordHTTPRequest("erp", "error", 0)
		logger.WithError(err).Warn("ERP adapter request failed")
		return 0, fmt.Errorf("erp adapter request: %w", err)
	}
	metrics.RecordHTTPRequest("erp", strconv.Itoa(resp.StatusCode), resp.Duration.Seconds())
	metrics.RecordErpRequest(string(req.AssetType), strconv.Itoa(resp.StatusCode))

	if err := c.requests.SetResponseCode(ctx, req.ID, resp.StatusCode); err != nil {
		logger.WithError(err).Error("Failed to record ERP adapter response code")
		return resp.StatusCode, err
	}
	code := resp.StatusCode
	req.ResponseCode = &code

	if !httpclient.IsSuccessStatus(resp.StatusCode) {
		logger.WithField("status", resp.StatusCode).Warnf("ERP adapter rejected request: %s", resp.Snippet())
		return resp.StatusCode, fmt.Errorf("erp adapter answered %d", resp.StatusCode)
	}

	if c.publisher != nil {
		evt := &kafka.ErpRequestSentEvent{
			RequestID:      req.ID.String(),
			PartnerBpnl:    req.PartnerBpnl,
			MaterialNumber: req.OwnMaterialNumber,
			AssetType:      string(req.AssetType),
			Direction:      string(req.Direction),
			ResponseCode:   resp.StatusCode,
		}
		if err := c.publisher.PublishErpRequestSent(ctx, evt); err != nil {
			logger.WithError(err).Warn("Failed to publish ERP request event")
		}
	}

	logger.WithField("status", resp.StatusCode).Info("ERP adapter accepted request")
	return resp.StatusCode, nil
}

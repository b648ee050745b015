package erp

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Response is the asynchronous answer the ERP adapter posts for a request.
type Response struct {
	RequestID         uuid.UUID       `json:"requestId"`
	PartnerBpnl       string          `json:"partnerBpnl" validate:"required,bpnl"`
	ResponseType      string          `json:"responseType" validate:"required,novws"`
	SammVersion       string          `json:"sammVersion" validate:"omitempty,novws"`
	ResponseTimestamp int64           `json:"responseTimestamp"`
	Content           json.RawMessage `json:"content" validate:"required"`
}

// Applier stores the content of an answered request. Errors that are httperror values
// are passed to the caller unchanged.
type Applier interface {
	ApplyErpResponse(ctx context.Context, req *models.OutgoingErpRequest, content []byte) error
}

type Correlator struct {
	requests RequestStore
	applier  Applier
	logger   ectologger.Logger
}

func NewCorrelator(requests RequestStore, applier Applier, logger ectologger.Logger) *Correlator {
	return &Correlator{requests: requests, applier: applier, logger: logger}
}

// HandleResponse matches resp to the request it answers, marks the request answered and
// applies the content. Unknown requests are 404, answered ones 409 and answers whose
// partner or type differ from the request 400.
func (c *Correlator) HandleResponse(ctx context.Context, resp *Response) error {
	ctx, span := tracing.StartSpan(ctx, "Correlator.HandleResponse")
	defer span.End()

	if resp.RequestID == uuid.Nil {
		metrics.ErpResponsesTotal.WithLabelValues("invalid").Inc()
		return httperror.NewHTTPError(http.StatusBadRequest, "requestId is required")
	}

	logger := c.logger.WithContext(ctx).WithFields(map[string]any{
		"request_id":   resp.RequestID.String(),
		"partner_bpnl": resp.PartnerBpnl,
	})

	req, err := c.requests.GetByID(ctx, resp.RequestID)
	if err != nil {
		if httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusNotFound {
			metrics.ErpResponsesTotal.WithLabelValues("unknown").Inc()
			logger.Warn("ERP response for unknown request")
		}
		return err
	}

	if req.Answered() {
		metrics.ErpResponsesTotal.WithLabelValues("duplicate").Inc()
		return httperror.NewHTTPErrorf(http.StatusConflict, "request %s was already answered", req.ID)
	}
	if req.PartnerBpnl != resp.PartnerBpnl {
		metrics.ErpResponsesTotal.WithLabelValues("mismatch").Inc()
		logger.Warnf("ERP response partner does not match request partner %s", req.PartnerBpnl)
		return httperror.NewHTTPError(http.StatusBadRequest, "partnerBpnl does not match the request")
	}
	if !strings.EqualFold(req.RequestType, resp.ResponseType) {
		metrics.ErpResponsesTotal.WithLabelValues("mismatch").Inc()
		logger.Warnf("ERP response type %s does not match request type %s", resp.ResponseType, req.RequestType)
		return httperror.NewHTTPError(http.StatusBadRequest, "responseType does not match the request")
	}

	marked, err := c.requests.MarkAnswered(ctx, req.ID)
	if err != nil {
		return err
	}
	if !marked {
		metrics.ErpResponsesTotal.WithLabelValues("duplicate").Inc()
		return httperror.NewHTTPErrorf(http.StatusConflict, "request %s was already answered", req.ID)
	}

	if err := c.applier.ApplyErpResponse(ctx, req, resp.Content); err != nil {
		metrics.ErpResponsesTotal.WithLabelValues("rejected").Inc()
		logger.WithError(err).Warn("Failed to apply ERP response")
		if httperror.IsHTTPError(err) {
			return err
		}
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to apply ERP response")
	}

	metrics.ErpResponsesTotal.WithLabelValues("applied").Inc()
	logger.Info("Applied ERP response")
	return nil
}

package edr

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/httpclient"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var ErrTransport = errors.New("edr transport error")

// Fetcher reads partner data from a provider data plane using an EDR.
type Fetcher struct {
	client *httpclient.Client
	logger ectologger.Logger
}

func NewFetcher(client *httpclient.Client, logger ectologger.Logger) *Fetcher {
	return &Fetcher{client: client, logger: logger}
}

// Fetch issues GET {endpoint}/{subPath} with the token's auth header and returns the body.
func (f *Fetcher) Fetch(ctx context.Context, token *Token, subPath string) ([]byte, error) {
	ctx, span := tracing.StartSpan(ctx, "Fetcher.Fetch")
	defer span.End()

	if !token.Complete() {
		return nil, fmt.Errorf("%w: incomplete token", ErrTransport)
	}

	url := httpclient.AppendPath(token.Endpoint, subPath)
	resp, err := f.client.Get(ctx, url, map[string]string{token.AuthKey: token.AuthCode})
	if err != nil {
		metrics.RecordHTTPRequest("edr", "error", 0)
		f.logger.WithContext(ctx).WithError(err).WithField("transfer_id", token.TransferID).Warn("EDR fetch failed")
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	metrics.RecordHTTPRequest("edr", strconv.Itoa(resp.StatusCode), resp.Duration.Seconds())

	if !httpclient.IsSuccessStatus(resp.StatusCode) {
		f.logger.WithContext(ctx).WithFields(map[string]any{
			"transfer_id": token.TransferID,
			"status":      resp.StatusCode,
			"body":        resp.Snippet(),
		}).Warn("EDR fetch returned non-success status")
		return nil, fmt.Errorf("%w: status %d", ErrTransport, resp.StatusCode)
	}
	return resp.Body, nil
}

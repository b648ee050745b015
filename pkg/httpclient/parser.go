package httpclient

import (
	"encoding/json"
	"fmt"
)

func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// IsRetryableStatus reports statuses worth another attempt on a later cycle.
func IsRetryableStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// DecodeJSON unmarshals the body into out. An empty body is an error.
func (r *Response) DecodeJSON(out any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("empty response body")
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	return nil
}

// Snippet returns the start of the body for error messages.
func (r *Response) Snippet() string {
	const max = 256
	if len(r.Body) <= max {
		return string(r.Body)
	}
	return string(r.Body[:max]) + "..."
}

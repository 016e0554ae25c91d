package marketdata

import (
	"errors"
	"fmt"
)

// Error taxonomy for the upstream data service. The resolver keys its
// waterfall decisions off these, so every HTTP failure must collapse into
// exactly one of them (or StatusError for anything unexpected).
var (
	// ErrMissingAPIKey is a configuration error: no call can succeed.
	ErrMissingAPIKey = errors.New("marketdata: missing API key")
	// ErrUnauthorized means the key itself is bad (HTTP 401). Fatal.
	ErrUnauthorized = errors.New("marketdata: unauthorized")
	// ErrForbidden means the plan lacks access to the endpoint (HTTP 403).
	ErrForbidden = errors.New("marketdata: forbidden")
	// ErrRateLimited means the per-key throughput budget is exhausted (HTTP 429).
	ErrRateLimited = errors.New("marketdata: rate limited")
	// ErrNotFound covers HTTP 404 and well-formed responses with no results.
	ErrNotFound = errors.New("marketdata: not found")
)

// StatusError is any other non-2xx response.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("marketdata: %s -> %d: %s", e.Endpoint, e.Code, e.Body)
}

// classifyStatus maps an HTTP status to the taxonomy. 2xx maps to nil.
func classifyStatus(endpoint string, code int, body string) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == 401:
		return ErrUnauthorized
	case code == 403:
		return ErrForbidden
	case code == 429:
		return ErrRateLimited
	case code == 404:
		return ErrNotFound
	default:
		return &StatusError{Endpoint: endpoint, Code: code, Body: body}
	}
}

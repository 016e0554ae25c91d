// Package marketdata is the client for the upstream stock data service.
// It owns the wire shapes and the error taxonomy; policy (which endpoint
// to try when) belongs to internal/quote.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"quotedesk/internal/httpx"
	"quotedesk/internal/metrics"
)

const defaultBaseURL = "https://api.polygon.io"

// Service is the call surface the resolver depends on.
//
//go:generate mockgen -package=marketdata -destination=mock_service.go -source=client.go -self_package=quotedesk/internal/marketdata Service
type Service interface {
	GetSnapshot(ctx context.Context, symbol string) (*Snapshot, error)
	GetPreviousClose(ctx context.Context, symbol string) (*PreviousClose, error)
	GetTickerDetails(ctx context.Context, symbol string) (*TickerDetails, error)
	SearchTickers(ctx context.Context, query string, limit int) ([]TickerDetails, error)
	GetMarketStatus(ctx context.Context) (*MarketStatus, error)
}

// Client implements Service against the real API.
type Client struct {
	baseURL string
	client  *httpx.Client
	log     *zap.Logger
}

var _ Service = (*Client)(nil)

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

func WithHTTPClient(hc *httpx.Client) Option {
	return func(c *Client) { c.client = hc }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New builds a client. An empty API key is a configuration error: the
// service rejects every unauthenticated call, so fail here rather than on
// the first resolution.
func New(apiKey string, options ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	c := &Client{
		baseURL: defaultBaseURL,
		log:     zap.NewNop(),
	}
	for _, option := range options {
		option(c)
	}
	if c.client == nil {
		c.client = httpx.New(0)
	}
	if c.client.Headers == nil {
		c.client.Headers = map[string]string{}
	}
	c.client.Headers["Authorization"] = "Bearer " + apiKey
	return c, nil
}

// get performs one API call and decodes the body into out.
// Non-2xx statuses come back classified per errors.go.
func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(endpoint, "transport_error").Inc()
		return fmt.Errorf("marketdata: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	metrics.UpstreamRequests.WithLabelValues(endpoint, http.StatusText(resp.StatusCode)).Inc()
	if err := classifyStatus(endpoint, resp.StatusCode, readSnippet(resp.Body)); err != nil {
		if ra := httpx.RetryAfter(resp); ra > 0 {
			c.log.Debug("upstream asked to back off",
				zap.String("endpoint", endpoint), zap.Duration("retry_after", ra))
		}
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("marketdata: %s decode: %w", endpoint, err)
	}
	return nil
}

// readSnippet drains up to 2KiB of an error body for diagnostics.
func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 2<<10))
	return string(b)
}

// GetSnapshot returns the real-time snapshot for one ticker.
func (c *Client) GetSnapshot(ctx context.Context, symbol string) (*Snapshot, error) {
	var body snapshotResponse
	path := "/v2/snapshot/locale/us/markets/stocks/tickers/" + url.PathEscape(symbol)
	if err := c.get(ctx, "snapshot", path, nil, &body); err != nil {
		return nil, err
	}
	if body.Ticker == nil {
		return nil, ErrNotFound
	}
	return body.Ticker, nil
}

// GetPreviousClose returns the prior session's daily bar.
func (c *Client) GetPreviousClose(ctx context.Context, symbol string) (*PreviousClose, error) {
	var body aggsResponse
	path := fmt.Sprintf("/v2/aggs/ticker/%s/prev", url.PathEscape(symbol))
	q := url.Values{"adjusted": []string{"true"}}
	if err := c.get(ctx, "prev_close", path, q, &body); err != nil {
		return nil, err
	}
	if len(body.Results) == 0 {
		return nil, ErrNotFound
	}
	r := body.Results[0]
	return &PreviousClose{
		Open:   r.Open,
		High:   r.High,
		Low:    r.Low,
		Close:  r.Close,
		Volume: r.Volume,
		TsMs:   r.TsMs,
	}, nil
}

// GetTickerDetails returns reference data for one symbol.
func (c *Client) GetTickerDetails(ctx context.Context, symbol string) (*TickerDetails, error) {
	var body detailsResponse
	path := "/v3/reference/tickers/" + url.PathEscape(symbol)
	if err := c.get(ctx, "ticker_details", path, nil, &body); err != nil {
		return nil, err
	}
	if body.Results == nil {
		return nil, ErrNotFound
	}
	return body.Results, nil
}

// SearchTickers finds active tickers matching a free-text query.
func (c *Client) SearchTickers(ctx context.Context, query string, limit int) ([]TickerDetails, error) {
	if limit <= 0 {
		limit = 10
	}
	var body searchResponse
	q := url.Values{}
	q.Set("search", query)
	q.Set("active", "true")
	q.Set("limit", fmt.Sprintf("%d", limit))
	if err := c.get(ctx, "search", "/v3/reference/tickers", q, &body); err != nil {
		return nil, err
	}
	return body.Results, nil
}

// GetMarketStatus returns the service's view of the trading session.
func (c *Client) GetMarketStatus(ctx context.Context) (*MarketStatus, error) {
	var body MarketStatus
	if err := c.get(ctx, "market_status", "/v1/marketstatus/now", nil, &body); err != nil {
		return nil, err
	}
	return &body, nil
}

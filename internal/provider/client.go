// Package provider implements the HTTP client for the external market
// data collaborator: one request per symbol/date-range, exponential
// backoff on transient failures, client-side rate limiting and an
// optional Redis response cache.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/stockpipe/stock-etl/internal/models"
)

const dateLayout = "2006-01-02"

// FetchError is a provider fault that survived retries. The symbol's
// batch is skipped; the run only fails when every symbol is affected.
type FetchError struct {
	Symbol string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed for %s: %v", e.Symbol, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Options configure the provider client
type Options struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	MaxRetries        int
	RetryBaseInterval time.Duration
	RequestsPerMinute int
}

// Client fetches raw OHLCV bars from the provider
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
	retryBase  time.Duration
	limiter    *rateLimiter
	cache      *Cache
	log        *logrus.Entry
}

// barsResponse is the provider's wire shape. Numeric fields are
// strings and any of them may be missing.
type barsResponse struct {
	Symbol string          `json:"symbol"`
	Bars   []models.RawBar `json:"bars"`
}

// NewClient creates a provider client. cache may be nil.
func NewClient(opts Options, cache *Cache, log *logrus.Logger) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	retryBase := opts.RetryBaseInterval
	if retryBase == 0 {
		retryBase = time.Second
	}
	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}

	return &Client{
		baseURL:    opts.BaseURL,
		apiKey:     opts.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		retryBase:  retryBase,
		limiter:    newRateLimiter(opts.RequestsPerMinute),
		cache:      cache,
		log:        log.WithField("component", "provider"),
	}
}

// Close releases the client's rate limiter goroutine. Safe to call
// more than once.
func (c *Client) Close() {
	c.limiter.Stop()
}

// FetchDailyBars requests one symbol's raw bars for a date range.
// Transient failures are retried with exponential backoff (base
// interval doubling per attempt); 4xx responses are permanent.
func (c *Client) FetchDailyBars(ctx context.Context, symbol string, since, until time.Time) ([]models.RawBar, error) {
	if cached, ok := c.cache.GetBars(ctx, symbol, since, until); ok {
		c.log.WithField("symbol", symbol).Debug("provider cache hit")
		return cached, nil
	}

	var bars []models.RawBar
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		fetched, err := c.fetchOnce(ctx, symbol, since, until)
		if err != nil {
			return err
		}
		bars = fetched
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryBase
	policy.Multiplier = 2
	policy.RandomizationFactor = 0

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(c.maxRetries-1)), ctx))
	if err != nil {
		return nil, &FetchError{Symbol: symbol, Err: err}
	}

	c.cache.SetBars(ctx, symbol, since, until, bars)
	return bars, nil
}

func (c *Client) fetchOnce(ctx context.Context, symbol string, since, until time.Time) ([]models.RawBar, error) {
	u, err := url.Parse(c.baseURL + "/v1/daily")
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("invalid provider url: %w", err))
	}
	q := u.Query()
	q.Set("symbol", symbol)
	q.Set("from", since.Format(dateLayout))
	q.Set("to", until.Format(dateLayout))
	if c.apiKey != "" {
		q.Set("apikey", c.apiKey)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("provider returned %d", resp.StatusCode)
	default:
		return nil, backoff.Permanent(fmt.Errorf("provider returned %d: %s", resp.StatusCode, body))
	}

	var payload barsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to decode provider response: %w", err))
	}

	// The per-bar symbol field is optional on the wire.
	for i := range payload.Bars {
		if payload.Bars[i].Symbol == "" {
			payload.Bars[i].Symbol = symbol
		}
	}
	return payload.Bars, nil
}

package provider

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const barsPayload = `{
	"symbol": "AAPL",
	"bars": [
		{"date": "2024-03-04", "open": "170.1", "high": "172.5", "low": "169.8", "close": "171.2", "volume": "52000000"},
		{"date": "2024-03-05", "close": "172.0"}
	]
}`

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	return NewClient(Options{
		BaseURL:           baseURL,
		APIKey:            "test-key",
		MaxRetries:        3,
		RetryBaseInterval: time.Millisecond,
	}, nil, log)
}

func fetchWindow() (time.Time, time.Time) {
	since, _ := time.Parse("2006-01-02", "2024-03-01")
	until, _ := time.Parse("2006-01-02", "2024-03-08")
	return since, until
}

func TestFetchDailyBars(t *testing.T) {
	var gotQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query())
		assert.Equal(t, "/v1/daily", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(barsPayload))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	since, until := fetchWindow()

	bars, err := c.FetchDailyBars(context.Background(), "AAPL", since, until)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, "AAPL", bars[0].Symbol)
	assert.Equal(t, "2024-03-04", bars[0].TradeDate)
	assert.Equal(t, "171.2", bars[0].Close)
	assert.Equal(t, "52000000", bars[0].Volume)

	// Missing wire fields come through empty, not rejected.
	assert.Equal(t, "AAPL", bars[1].Symbol)
	assert.Empty(t, bars[1].Open)
	assert.Empty(t, bars[1].Volume)

	q := gotQuery.Load().(url.Values)
	assert.Equal(t, "AAPL", q["symbol"][0])
	assert.Equal(t, "2024-03-01", q["from"][0])
	assert.Equal(t, "2024-03-08", q["to"][0])
	assert.Equal(t, "test-key", q["apikey"][0])
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(barsPayload))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	since, until := fetchWindow()

	bars, err := c.FetchDailyBars(context.Background(), "AAPL", since, until)
	require.NoError(t, err)
	assert.Len(t, bars, 2)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchRetriesRateLimitResponses(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(barsPayload))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	since, until := fetchWindow()

	_, err := c.FetchDailyBars(context.Background(), "AAPL", since, until)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	since, until := fetchWindow()

	_, err := c.FetchDailyBars(context.Background(), "AAPL", since, until)
	require.Error(t, err)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "AAPL", fetchErr.Symbol)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unknown symbol", http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	since, until := fetchWindow()

	_, err := c.FetchDailyBars(context.Background(), "ZZZZ", since, until)
	require.Error(t, err)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, fetchErr.Error(), "404")
	// No retries on a 4xx.
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchMalformedBodyIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"bars": [`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	since, until := fetchWindow()

	_, err := c.FetchDailyBars(context.Background(), "AAPL", since, until)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestClient(t, srv.URL)
	since, until := fetchWindow()

	_, err := c.FetchDailyBars(ctx, "AAPL", since, until)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRateLimiterSpacing(t *testing.T) {
	// Disabled limiter never blocks.
	require.NoError(t, newRateLimiter(0).Wait(context.Background()))

	rl := newRateLimiter(600) // one slot every 100ms
	require.NoError(t, rl.Wait(context.Background()))

	start := time.Now()
	require.NoError(t, rl.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestRateLimiterCancelledContext(t *testing.T) {
	rl := newRateLimiter(1)
	require.NoError(t, rl.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, rl.Wait(ctx), context.Canceled)
}

func TestRateLimiterStopEndsRefill(t *testing.T) {
	rl := newRateLimiter(6000) // one slot every 10ms
	require.NoError(t, rl.Wait(context.Background()))

	rl.Stop()
	rl.Stop() // double Stop is safe

	// Let a tick already in flight land, then drain it so the
	// assertion below only sees refills that happen after Stop.
	time.Sleep(30 * time.Millisecond)
	select {
	case <-rl.slots:
	default:
	}

	// With the refill goroutine gone no new slot ever arrives.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, rl.Wait(ctx), context.DeadlineExceeded)

	// A disabled limiter has no goroutine to stop.
	newRateLimiter(0).Stop()
}

func TestClientCloseStopsLimiter(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	c := NewClient(Options{BaseURL: "http://localhost", RequestsPerMinute: 600}, nil, log)
	c.Close()
	c.Close()
}

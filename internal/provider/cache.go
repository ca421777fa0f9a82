package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/stockpipe/stock-etl/internal/models"
)

// Cache is a Redis-backed cache of raw provider responses so re-runs
// within the TTL do not spend provider quota. All methods are nil-safe
// and degrade to a miss on any Redis fault.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logrus.Entry
}

// NewCache connects a response cache. Returns nil (cache disabled)
// when addr is empty.
func NewCache(addr string, ttl time.Duration, log *logrus.Logger) *Cache {
	if addr == "" {
		return nil
	}
	return &Cache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
		log:    log.WithField("component", "provider_cache"),
	}
}

func barsKey(symbol string, since, until time.Time) string {
	return fmt.Sprintf("ohlcv:%s:%s:%s", symbol, since.Format(dateLayout), until.Format(dateLayout))
}

// GetBars returns a cached response, or ok=false on miss or fault
func (c *Cache) GetBars(ctx context.Context, symbol string, since, until time.Time) ([]models.RawBar, bool) {
	if c == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, barsKey(symbol, since, until)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.WithError(err).Debug("cache read failed")
		}
		return nil, false
	}

	var bars []models.RawBar
	if err := json.Unmarshal(data, &bars); err != nil {
		c.log.WithError(err).Debug("cache entry corrupt, ignoring")
		return nil, false
	}
	return bars, true
}

// SetBars stores a response. Failures are logged and ignored.
func (c *Cache) SetBars(ctx context.Context, symbol string, since, until time.Time, bars []models.RawBar) {
	if c == nil {
		return
	}
	data, err := json.Marshal(bars)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, barsKey(symbol, since, until), data, c.ttl).Err(); err != nil {
		c.log.WithError(err).Debug("cache write failed")
	}
}

// Close releases the Redis connection
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

package provider

import (
	"context"
	"sync"
	"time"
)

// rateLimiter spaces requests evenly to honor the provider's
// requests-per-minute quota across all worker goroutines.
type rateLimiter struct {
	interval time.Duration
	slots    chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

func newRateLimiter(requestsPerMinute int) *rateLimiter {
	if requestsPerMinute <= 0 {
		return &rateLimiter{}
	}
	rl := &rateLimiter{
		interval: time.Minute / time.Duration(requestsPerMinute),
		slots:    make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
	rl.slots <- struct{}{}
	go rl.refill()
	return rl
}

func (rl *rateLimiter) refill() {
	ticker := time.NewTicker(rl.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			select {
			case rl.slots <- struct{}{}:
			default:
			}
		case <-rl.stop:
			return
		}
	}
}

// Stop ends the refill goroutine. Safe to call more than once and on
// a disabled limiter.
func (rl *rateLimiter) Stop() {
	if rl.stop == nil {
		return
	}
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Wait blocks until a request slot is available or the context ends
func (rl *rateLimiter) Wait(ctx context.Context) error {
	if rl.slots == nil {
		return nil
	}
	select {
	case <-rl.slots:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/stockpulse/authcore/internal/api/metrics"
)

// RateStore coordinates rate limiting counters for a specific key.
type RateStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int, ttl time.Duration, err error)
}

// memoryRateStore provides process-local rate limiting. Expired windows are
// dropped lazily when the map is swept on write.
type memoryRateStore struct {
	mu        sync.Mutex
	data      map[string]*memoryCounter
	clock     func() time.Time
	lastSweep time.Time
}

type memoryCounter struct {
	count     int
	windowEnd time.Time
}

// NewMemoryRateStore constructs an in-memory rate store for single-instance
// deployments and tests.
func NewMemoryRateStore() RateStore {
	return newMemoryRateStore(time.Now)
}

func newMemoryRateStore(clock func() time.Time) *memoryRateStore {
	return &memoryRateStore{data: make(map[string]*memoryCounter), clock: clock}
}

func (s *memoryRateStore) Increment(_ context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) > time.Minute {
		for k, c := range s.data {
			if now.After(c.windowEnd) {
				delete(s.data, k)
			}
		}
		s.lastSweep = now
	}

	counter, ok := s.data[key]
	if !ok || now.After(counter.windowEnd) {
		counter = &memoryCounter{windowEnd: now.Add(window)}
		s.data[key] = counter
	}
	counter.count++

	return counter.count, counter.windowEnd.Sub(now), nil
}

// LoginRateLimit caps requests per client IP within a fixed window. It fails
// open when the store is unavailable: lockout still protects each account.
func LoginRateLimit(store RateStore, maxRequests int, window time.Duration, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if store == nil || maxRequests <= 0 || window <= 0 {
				return next(c)
			}

			key := "login:" + c.RealIP()
			count, ttl, err := store.Increment(c.Request().Context(), key, window)
			if err != nil {
				log.Warn().Err(err).Str("key", key).Msg("rate limit store unavailable, allowing request")
				return next(c)
			}

			remaining := maxRequests - count
			if remaining < 0 {
				remaining = 0
			}
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(maxRequests))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if count > maxRequests {
				metrics.LoginRateLimitedTotal.Inc()
				h.Set("Retry-After", strconv.Itoa(ceilSeconds(ttl)))
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error": "too many login attempts, slow down",
					"code":  "rate_limited",
				})
			}
			return next(c)
		}
	}
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	s := int(d / time.Second)
	if d%time.Second != 0 {
		s++
	}
	return s
}

package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// DefaultRateLimitConfig returns default rate limiting settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         200,
	}
}

const (
	visitorIdleTTL  = 3 * time.Minute
	cleanupInterval = time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitorStore holds one limiter per client key. Idle visitors are swept
// on access at most once per cleanupInterval.
type visitorStore struct {
	mu          sync.Mutex
	visitors    map[string]*visitor
	config      RateLimitConfig
	lastCleanup time.Time
	now         func() time.Time
}

func newVisitorStore(cfg RateLimitConfig) *visitorStore {
	return &visitorStore{
		visitors:    make(map[string]*visitor),
		config:      cfg,
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

func (s *visitorStore) limiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastCleanup) >= cleanupInterval {
		for k, v := range s.visitors {
			if now.Sub(v.lastSeen) > visitorIdleTTL {
				delete(s.visitors, k)
			}
		}
		s.lastCleanup = now
	}

	v, ok := s.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(s.config.RequestsPerSecond), s.config.BurstSize)}
		s.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

func (s *visitorStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visitors)
}

// retryAfterSeconds reports how long until lim admits one more event,
// rounded up to whole seconds and never below 1.
func retryAfterSeconds(lim *rate.Limiter, now time.Time) int {
	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return 1
	}
	d := r.DelayFrom(now)
	r.CancelAt(now)
	if d == rate.InfDuration {
		return 1
	}
	return max(1, int(math.Ceil(d.Seconds())))
}

// RateLimit returns a per-client rate limiting middleware keyed on the
// client IP.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	store := newVisitorStore(cfg)
	limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', 0, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			lim := store.limiter(c.RealIP())
			now := time.Now()
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)

			if !lim.AllowN(now, 1) {
				h.Set("Retry-After", strconv.Itoa(retryAfterSeconds(lim, now)))
				h.Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}

package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/platinummonkey/cashpro/pkg/httputil"
	"github.com/platinummonkey/cashpro/pkg/observability"
)

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the sustained rate
	RequestsPerWindow int
	// WindowDuration is the time window for RequestsPerWindow
	WindowDuration time.Duration
	// BurstSize is the number of requests allowed back to back
	BurstSize int
}

// DefaultLoginRateLimitConfig returns the login throttle used when the
// configuration leaves it unset.
func DefaultLoginRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    time.Minute,
		BurstSize:         5,
	}
}

// LoginRateLimitConfig builds a per-minute config, falling back to the
// defaults for non-positive values.
func LoginRateLimitConfig(perMinute, burst int) *RateLimitConfig {
	cfg := DefaultLoginRateLimitConfig()
	if perMinute > 0 {
		cfg.RequestsPerWindow = perMinute
	}
	if burst > 0 {
		cfg.BurstSize = burst
	}
	return cfg
}

func (c *RateLimitConfig) limit() rate.Limit {
	if c.RequestsPerWindow <= 0 || c.WindowDuration <= 0 {
		return rate.Inf
	}
	return rate.Every(c.WindowDuration / time.Duration(c.RequestsPerWindow))
}

func (c *RateLimitConfig) burst() int {
	if c.BurstSize > 0 {
		return c.BurstSize
	}
	return c.RequestsPerWindow
}

// RateLimiter is an in-process token bucket per key.
type RateLimiter struct {
	config   *RateLimitConfig
	visitors map[string]*visitor
	mu       sync.Mutex
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	if config == nil {
		config = DefaultLoginRateLimitConfig()
	}
	return &RateLimiter{
		config:   config,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

// Allow consumes one token for key. It never fails.
func (rl *RateLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := rl.now()

	rl.mu.Lock()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.config.limit(), rl.config.burst())}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	rl.mu.Unlock()

	return v.limiter.AllowN(now, 1), nil
}

// Len reports the number of tracked keys.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// Cleanup drops keys idle for more than two windows.
func (rl *RateLimiter) Cleanup() {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.config.WindowDuration*2 {
			delete(rl.visitors, key)
		}
	}
}

// StartCleanup runs Cleanup once per window until ctx is done.
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.config.WindowDuration)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RateLimitMiddleware throttles requests per client address.
type RateLimitMiddleware struct {
	limiter  Limiter
	config   *RateLimitConfig
	prefix   string
	failOpen bool
	metrics  *observability.Metrics
	logger   *observability.Logger
}

// NewRateLimitMiddleware wraps limiter. Keys are "<prefix>:<client ip>".
func NewRateLimitMiddleware(limiter Limiter, config *RateLimitConfig, prefix string, metrics *observability.Metrics, logger *observability.Logger) *RateLimitMiddleware {
	if config == nil {
		config = DefaultLoginRateLimitConfig()
	}
	return &RateLimitMiddleware{
		limiter:  limiter,
		config:   config,
		prefix:   prefix,
		failOpen: true,
		metrics:  metrics,
		logger:   logger,
	}
}

// SetFallbackEnabled controls whether to fail open (true) or closed (false)
// when the limiter backend errors.
func (m *RateLimitMiddleware) SetFallbackEnabled(enabled bool) {
	m.failOpen = enabled
}

// Handler wraps an HTTP handler with rate limiting
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := m.prefix + ":" + ClientIP(r)

		allowed, err := m.limiter.Allow(r.Context(), key)
		if err != nil {
			observability.GetLogger(r.Context(), m.logger).WithError(err).
				WithField("key", key).Warn("rate limiter unavailable")
			if !m.failOpen {
				httputil.WriteErrorMessage(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		if !allowed {
			m.metrics.LoginAttempt("throttled")
			m.rateLimitExceeded(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type rateLimitResponse struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retry_after"`
}

func (m *RateLimitMiddleware) rateLimitExceeded(w http.ResponseWriter) {
	retryAfter := int(m.config.WindowDuration / time.Second)
	if m.config.RequestsPerWindow > 0 {
		retryAfter = int((m.config.WindowDuration / time.Duration(m.config.RequestsPerWindow)).Seconds())
	}
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
	w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", m.config.RequestsPerWindow))
	w.Header().Set("X-RateLimit-Remaining", "0")
	httputil.WriteJSON(w, http.StatusTooManyRequests, rateLimitResponse{
		Error:      "Too many requests, try again later",
		RetryAfter: retryAfter,
	})
}

// ClientIP returns the originating address of r: the first X-Forwarded-For
// hop, then X-Real-IP, then the connection's remote host.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

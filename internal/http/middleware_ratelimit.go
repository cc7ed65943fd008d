package httpx

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	apperrors "github.com/target/seclab-api/internal/errors"
	"github.com/target/seclab-api/internal/observability/metrics"
	"github.com/target/seclab-api/internal/observability/statsd"
	"golang.org/x/time/rate"
)

const (
	defaultLimiterIdleTTL    = 10 * time.Minute
	defaultLimiterSweepEvery = 5 * time.Minute
)

// RateLimitConfig configures a per-client token bucket limiter.
type RateLimitConfig struct {
	// Name tags metrics and logs, e.g. "global" or "files".
	Name string
	// Requests allowed per Window. Zero or negative disables the limiter.
	Requests int
	Window   time.Duration
	// IdleTTL drops buckets for clients not seen within it.
	IdleTTL time.Duration
	// TrustForwardedFor keys clients by the first X-Forwarded-For hop.
	TrustForwardedFor bool
	Metrics           statsd.Sink
	Now               func() time.Time
}

type rateClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds one token bucket per client address.
type RateLimiter struct {
	cfg     RateLimitConfig
	limit   rate.Limit
	mu      sync.Mutex
	clients map[string]*rateClient
}

// NewRateLimiter returns a limiter that refills Requests tokens per Window with
// a burst of Requests.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultLimiterIdleTTL
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	var limit rate.Limit
	if cfg.Requests > 0 {
		limit = rate.Limit(float64(cfg.Requests) / cfg.Window.Seconds())
	}
	return &RateLimiter{cfg: cfg, limit: limit, clients: make(map[string]*rateClient)}
}

// Enabled reports whether the limiter rejects anything.
func (l *RateLimiter) Enabled() bool { return l != nil && l.cfg.Requests > 0 }

// Allow consumes a token for key.
func (l *RateLimiter) Allow(key string) bool {
	if !l.Enabled() {
		return true
	}
	now := l.cfg.Now()

	l.mu.Lock()
	cl, ok := l.clients[key]
	if !ok {
		cl = &rateClient{limiter: rate.NewLimiter(l.limit, l.cfg.Requests)}
		l.clients[key] = cl
	}
	cl.lastSeen = now
	l.mu.Unlock()

	return cl.limiter.AllowN(now, 1)
}

// Sweep drops idle clients and returns how many were removed.
func (l *RateLimiter) Sweep() int {
	cutoff := l.cfg.Now().Add(-l.cfg.IdleTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, cl := range l.clients {
		if cl.lastSeen.Before(cutoff) {
			delete(l.clients, key)
			removed++
		}
	}
	return removed
}

// Run sweeps idle clients until ctx is done.
func (l *RateLimiter) Run(ctx context.Context) {
	if !l.Enabled() {
		return
	}
	ticker := time.NewTicker(defaultLimiterSweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// Middleware rejects requests over budget with 429.
func (l *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !l.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(l.clientKey(r)) {
				metrics.EmitRateLimited(l.cfg.Metrics, l.cfg.Name)
				w.Header().Set("Retry-After", retryAfterSeconds(l.cfg.Window, l.cfg.Requests))
				WriteAppError(w, r, apperrors.RateLimited("too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (l *RateLimiter) clientKey(r *http.Request) string {
	if l.cfg.TrustForwardedFor {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// retryAfterSeconds is the time for one token to refill, rounded up.
func retryAfterSeconds(window time.Duration, requests int) string {
	secs := int((window/time.Duration(requests) + time.Second - 1) / time.Second)
	return strconv.Itoa(max(secs, 1))
}

package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"time"

	obserrors "github.com/target/seclab-api/internal/observability/errors"
	"github.com/target/seclab-api/internal/observability/metrics"
	"github.com/target/seclab-api/internal/observability/statsd"
	"github.com/target/seclab-api/internal/ports"
)

// SessionReaperServiceOptions groups dependencies for SessionReaperService.
type SessionReaperServiceOptions struct {
	Store    ports.ExpiredSessionPurger // Required: store holding expirable sessions
	Interval time.Duration              // Required: time between sweeps
	Logger   *slog.Logger               // Optional: structured logger
	Metrics  statsd.Sink                // Optional: metrics sink (StatsD-compatible)
	Now      func() time.Time           // Optional: clock override for tests
}

// SessionReaperService periodically drops expired sessions from stores
// that keep them until asked. Redis-backed stores expire keys natively and
// do not need it.
type SessionReaperService struct {
	store    ports.ExpiredSessionPurger
	interval time.Duration
	logger   *slog.Logger
	metrics  statsd.Sink
	now      func() time.Time
}

// NewSessionReaperService constructs a new SessionReaperService.
func NewSessionReaperService(opts SessionReaperServiceOptions) (*SessionReaperService, error) {
	if opts.Store == nil {
		return nil, errors.New("session store is required")
	}
	if opts.Interval <= 0 {
		return nil, errors.New("reaper interval must be positive")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &SessionReaperService{
		store:    opts.Store,
		interval: opts.Interval,
		logger:   logger.With("component", "session_reaper"),
		metrics:  opts.Metrics,
		now:      now,
	}, nil
}

// Run sweeps at the configured interval until ctx is cancelled.
// Returns nil on graceful shutdown.
func (s *SessionReaperService) Run(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.logger.InfoContext(ctx, "starting session reaper", "interval", s.interval)

	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil {
			s.logSweepError(ctx, err)
		}

		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "session reaper stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sweep removes every session expired at the current time and reports how many were dropped.
func (s *SessionReaperService) Sweep(ctx context.Context) (int, error) {
	start := s.now()
	n, err := s.store.DeleteExpired(ctx, start)
	s.emitSweepMetrics(n, err, s.now().Sub(start))
	if err != nil {
		return n, err
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "purged expired sessions", "count", n)
	}
	metrics.EmitSessionEvent(s.metrics, "expired", n)
	return n, nil
}

// waitWithJitter delays the first sweep by up to 10% of the interval.
func (s *SessionReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	timer := time.NewTimer(jitter)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (s *SessionReaperService) emitSweepMetrics(n int, err error, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}

	result := metrics.ResultSuccess
	switch {
	case err != nil:
		result = metrics.ResultError
	case n == 0:
		result = metrics.ResultNoop
	}

	tags := map[string]string{"result": result}
	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("reaper.sweep", 1, tags)
	if elapsed > 0 {
		s.metrics.Timing("reaper.sweep_duration", elapsed, metrics.CloneTags(tags))
	}
	if err == nil {
		s.metrics.Gauge("reaper.last_success_epoch", float64(s.now().Unix()), nil)
	}
}

func (s *SessionReaperService) logSweepError(ctx context.Context, err error) {
	if isContextCancellation(err) {
		s.logger.DebugContext(ctx, "session sweep cancelled", "error", err)
		return
	}
	s.logger.ErrorContext(ctx, "session sweep failed", "error", err)
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

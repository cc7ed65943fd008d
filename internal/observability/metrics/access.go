package metrics

import (
	"time"

	obserrors "github.com/target/seclab-api/internal/observability/errors"
	"github.com/target/seclab-api/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// DecisionMetric captures a single access decision.
type DecisionMetric struct {
	Kind     string
	Decision string
}

// EmitDecision counts an access decision tagged by resource kind and outcome.
func EmitDecision(sink statsd.Sink, in DecisionMetric) {
	if sink == nil {
		return
	}
	sink.Count("access.decision", 1, map[string]string{
		"kind":     in.Kind,
		"decision": in.Decision,
	})
}

// LoginMetric captures a login attempt.
type LoginMetric struct {
	Method   string
	Result   string
	Duration time.Duration
	Err      error
}

// EmitLogin emits standardised login metrics.
func EmitLogin(sink statsd.Sink, in LoginMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"method": in.Method,
		"result": in.Result,
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("auth.login", 1, tags)

	if in.Duration > 0 {
		sink.Timing("auth.login.duration", in.Duration, CloneTags(tags))
	}
}

// EmitSessionEvent counts session lifecycle transitions such as "revoked" or "expired".
func EmitSessionEvent(sink statsd.Sink, event string, n int) {
	if sink == nil || n <= 0 {
		return
	}
	sink.Count("auth.session", int64(n), map[string]string{"event": event})
}

// EmitRateLimited counts a rejected request for the named limiter.
func EmitRateLimited(sink statsd.Sink, limiter string) {
	if sink == nil {
		return
	}
	sink.Count("http.rate_limited", 1, map[string]string{"limiter": limiter})
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

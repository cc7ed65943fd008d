package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/target/seclab-api/internal/errors"
)

type recordedMetric struct {
	kind  string
	name  string
	value int64
	tags  map[string]string
}

type recordingSink struct {
	metrics []recordedMetric
}

func (s *recordingSink) Count(name string, value int64, tags map[string]string) {
	s.metrics = append(s.metrics, recordedMetric{kind: "count", name: name, value: value, tags: tags})
}

func (s *recordingSink) Gauge(name string, _ float64, tags map[string]string) {
	s.metrics = append(s.metrics, recordedMetric{kind: "gauge", name: name, tags: tags})
}

func (s *recordingSink) Timing(name string, _ time.Duration, tags map[string]string) {
	s.metrics = append(s.metrics, recordedMetric{kind: "timing", name: name, tags: tags})
}

func TestEmitDecision(t *testing.T) {
	sink := &recordingSink{}
	EmitDecision(sink, DecisionMetric{Kind: "order", Decision: "deny"})

	require.Len(t, sink.metrics, 1)
	assert.Equal(t, "access.decision", sink.metrics[0].name)
	assert.Equal(t, map[string]string{"kind": "order", "decision": "deny"}, sink.metrics[0].tags)
}

func TestEmitLogin_ErrorClassAndTiming(t *testing.T) {
	sink := &recordingSink{}
	EmitLogin(sink, LoginMetric{
		Method:   "password",
		Result:   ResultError,
		Duration: 5 * time.Millisecond,
		Err:      apperrors.Wrap(errors.New("db down"), apperrors.ErrCodeInternal, "boom"),
	})

	require.Len(t, sink.metrics, 2)
	assert.Equal(t, "auth.login", sink.metrics[0].name)
	assert.Equal(t, "error", sink.metrics[0].tags["result"])
	assert.NotEmpty(t, sink.metrics[0].tags["error_class"])
	assert.Equal(t, "timing", sink.metrics[1].kind)
	assert.Equal(t, "auth.login.duration", sink.metrics[1].name)
}

func TestEmitLogin_FailureHasNoErrorClass(t *testing.T) {
	sink := &recordingSink{}
	EmitLogin(sink, LoginMetric{Method: "password", Result: ResultFailure, Err: errors.New("bad creds")})

	require.Len(t, sink.metrics, 1)
	_, ok := sink.metrics[0].tags["error_class"]
	assert.False(t, ok)
}

func TestEmitSessionEvent_SkipsZero(t *testing.T) {
	sink := &recordingSink{}
	EmitSessionEvent(sink, "revoked", 0)
	assert.Empty(t, sink.metrics)

	EmitSessionEvent(sink, "revoked", 3)
	require.Len(t, sink.metrics, 1)
	assert.Equal(t, int64(3), sink.metrics[0].value)
}

func TestEmit_NilSink(t *testing.T) {
	assert.NotPanics(t, func() {
		EmitDecision(nil, DecisionMetric{})
		EmitLogin(nil, LoginMetric{})
		EmitSessionEvent(nil, "expired", 1)
		EmitRateLimited(nil, "global")
	})
}

func TestCloneTags(t *testing.T) {
	assert.Nil(t, CloneTags(nil))
	src := map[string]string{"a": "1"}
	cp := CloneTags(src)
	cp["a"] = "2"
	assert.Equal(t, "1", src["a"])
}

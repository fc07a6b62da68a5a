package pulse

import (
	"math"
	"testing"

	"github.com/pulsekit/pulse/core"
)

func TestMetricsReachBackend(t *testing.T) {
	resetAgent(t)
	defer resetAgent(t)

	stub := &stubBackend{}
	Initialize(testConfig(), WithBackend(stub), WithLogger(&core.NoOpLogger{}))

	SetGauge("pool.size", 12, nil)
	IncrementCounter("requests", 1, nil)
	AddDistributionValue("latency_ms", 8.25, nil)

	calls := stub.metricCalls()
	if len(calls) != 3 {
		t.Fatalf("expected 3 backend calls, got %d", len(calls))
	}
	for i, want := range []struct {
		metricType string
		key        string
		value      float64
	}{
		{"gauge", "pool.size", 12},
		{"counter", "requests", 1},
		{"distribution", "latency_ms", 8.25},
	} {
		got := calls[i]
		if got.metricType != want.metricType || got.key != want.key || got.value != want.value {
			t.Fatalf("call %d: got %+v, want %+v", i, got, want)
		}
	}

	if GetHealth().MetricsEmitted != 3 {
		t.Fatalf("expected 3 emitted metrics in health, got %d", GetHealth().MetricsEmitted)
	}
}

func TestMetricValueWidensLosslessly(t *testing.T) {
	resetAgent(t)
	defer resetAgent(t)

	stub := &stubBackend{}
	Initialize(testConfig(), WithBackend(stub), WithLogger(&core.NoOpLogger{}))

	// An integral count and the equivalent float are the same submission
	SetGauge("k", float64(5), nil)
	SetGauge("k", 5.0, nil)

	calls := stub.metricCalls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if math.Float64bits(calls[0].value) != math.Float64bits(calls[1].value) {
		t.Fatalf("values differ at the bit level: %x vs %x",
			math.Float64bits(calls[0].value), math.Float64bits(calls[1].value))
	}
}

func TestMetricTagsRoundTrip(t *testing.T) {
	resetAgent(t)
	defer resetAgent(t)

	stub := &stubBackend{}
	Initialize(testConfig(), WithBackend(stub), WithLogger(&core.NoOpLogger{}))

	SetGauge("tagged", 1, core.Tags{"env": "prod", "shard": 3})

	calls := stub.metricCalls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	decoded, err := core.DecodeTags(calls[0].tags)
	if err != nil {
		t.Fatalf("decoding transmitted tags: %v", err)
	}
	if decoded["env"] != "prod" {
		t.Fatalf("env tag lost: %v", decoded)
	}
	// JSON numbers decode as float64
	if decoded["shard"] != float64(3) {
		t.Fatalf("shard tag lost or mangled: %v", decoded)
	}
}

func TestEmptyTagsTransmittedAsEmptySet(t *testing.T) {
	resetAgent(t)
	defer resetAgent(t)

	stub := &stubBackend{}
	Initialize(testConfig(), WithBackend(stub), WithLogger(&core.NoOpLogger{}))

	SetGauge("a", 1, nil)
	SetGauge("b", 1, core.Tags{})

	for _, call := range stub.metricCalls() {
		if string(call.tags) != "{}" {
			t.Fatalf("metric %q: empty tags should transmit as {}, got %q", call.key, call.tags)
		}
	}
}

func TestSubmissionFailureIsAbsorbed(t *testing.T) {
	resetAgent(t)
	defer resetAgent(t)

	logger := &capturingLogger{}
	stub := &stubBackend{submitErr: core.ErrSubmissionFailed}
	Initialize(testConfig(), WithBackend(stub), WithLogger(logger))

	// Must not panic, must not raise; the drop shows up in health
	SetGauge("doomed", 1, nil)
	IncrementCounter("doomed.count", 1, nil)

	h := GetHealth()
	if h.MetricsEmitted != 0 {
		t.Fatalf("failed submissions counted as emitted: %d", h.MetricsEmitted)
	}
	if h.MetricsDropped != 2 {
		t.Fatalf("expected 2 dropped metrics, got %d", h.MetricsDropped)
	}
	if !logger.hasLevel("ERROR") {
		t.Fatal("dropped metrics should leave an operator diagnostic")
	}
}

func TestMetricsBeforeInitializeAreNoOps(t *testing.T) {
	resetAgent(t)
	defer resetAgent(t)

	// No Initialize at all: every emission is a safe no-op
	SetGauge("x", 1, nil)
	IncrementCounter("y", 2, core.Tags{"a": "b"})
	AddDistributionValue("z", 3, nil)

	if got := CurrentState(); got != StateUninitialized {
		t.Fatalf("expected %q, got %q", StateUninitialized, got)
	}
}

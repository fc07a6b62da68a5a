package pulse

import (
	"github.com/pulsekit/pulse/core"
)

// SetGauge sets a gauge to the current value. Use for values that go up and
// down: active connections, queue sizes, memory usage.
//
// All numeric inputs travel as float64; integer values up to 2^53 widen
// losslessly. Tags are optional — a nil or empty set is valid and
// transmitted as such. When the agent is disabled or degraded the call is a
// silent no-op: metrics must never destabilize the host application.
func SetGauge(key string, value float64, tags core.Tags) {
	submitMetric("gauge", key, tags, func(a *agent, encoded core.EncodedTags) error {
		return a.backend.SetGauge(key, value, encoded)
	})
}

// IncrementCounter adds amount to a monotonic counter. The common case is
// amount 1.
func IncrementCounter(key string, amount float64, tags core.Tags) {
	submitMetric("counter", key, tags, func(a *agent, encoded core.EncodedTags) error {
		return a.backend.IncrementCounter(key, amount, encoded)
	})
}

// AddDistributionValue records one sample of a distribution (latencies,
// payload sizes). The backend computes percentiles.
func AddDistributionValue(key string, value float64, tags core.Tags) {
	submitMetric("distribution", key, tags, func(a *agent, encoded core.EncodedTags) error {
		return a.backend.AddDistributionValue(key, value, encoded)
	})
}

// submitMetric is the shared emission path: snapshot load, tag encoding,
// backend call. Failures are absorbed into counters and the operator log.
func submitMetric(metricType, key string, tags core.Tags, submit func(*agent, core.EncodedTags) error) {
	a := currentAgent()
	if !a.active() {
		return
	}

	encoded, err := core.EncodeTags(tags)
	if err != nil {
		a.noteFailure("Metric dropped: tag encoding failed", key, err)
		return
	}

	if err := submit(a, encoded); err != nil {
		a.noteFailure("Metric dropped: "+metricType+" submission failed", key, err)
		return
	}
	a.emitted.Add(1)
}

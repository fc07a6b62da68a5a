package probe

import (
	"runtime"

	"github.com/pulsekit/pulse/core"
)

// GaugeFunc is the metric entry point a probe reports through. It matches
// the agent's SetGauge signature so probes stay decoupled from the facade.
type GaugeFunc func(key string, value float64, tags core.Tags)

// RuntimeProbeName is the registry key of the built-in runtime-health probe
const RuntimeProbeName = "go_runtime"

// RuntimeProbe reports Go runtime health: goroutine count, heap usage, and
// cumulative GC activity. It is registered automatically when probes are
// enabled in the agent configuration.
func RuntimeProbe(gauge GaugeFunc) Probe {
	return func() {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)

		tags := core.Tags{"probe": RuntimeProbeName}

		gauge("runtime.goroutines", float64(runtime.NumGoroutine()), tags)
		gauge("runtime.heap_alloc_bytes", float64(ms.HeapAlloc), tags)
		gauge("runtime.heap_sys_bytes", float64(ms.HeapSys), tags)
		gauge("runtime.heap_objects", float64(ms.HeapObjects), tags)
		gauge("runtime.gc_runs", float64(ms.NumGC), tags)
		gauge("runtime.gc_pause_total_ms", float64(ms.PauseTotalNs)/1e6, tags)
	}
}

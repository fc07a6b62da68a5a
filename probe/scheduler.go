// Package probe implements the periodic probe scheduler: a process-wide
// registry of named callbacks invoked on a fixed interval to emit
// system-level metrics.
//
// Probes are registered once at startup and run until the scheduler stops.
// A probe that panics is caught and logged; it never prevents sibling probes
// from running in the same tick or in subsequent ticks.
package probe

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pulsekit/pulse/core"
)

// Probe is a zero-argument periodic callback
type Probe func()

// Registry maps unique probe names to callbacks. Register rejects duplicate
// names; use Replace for deliberate last-write-wins semantics.
type Registry struct {
	mu     sync.Mutex
	probes map[string]Probe
}

// NewRegistry creates an empty probe registry
func NewRegistry() *Registry {
	return &Registry{
		probes: make(map[string]Probe),
	}
}

// Register adds a named probe. Registering an existing name returns
// core.ErrAlreadyRegistered instead of silently overwriting, so accidental
// collisions surface at startup rather than as missing metrics later.
func (r *Registry) Register(name string, p Probe) error {
	if p == nil {
		return core.NewAgentError("probe.Register", "probe",
			fmt.Errorf("nil probe %q", name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.probes[name]; exists {
		return core.NewAgentError("probe.Register", "probe",
			fmt.Errorf("%w: probe %q", core.ErrAlreadyRegistered, name))
	}
	r.probes[name] = p
	return nil
}

// Replace installs a probe under name, overwriting any existing registration
func (r *Registry) Replace(name string, p Probe) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.probes[name] = p
}

// Unregister removes a probe by name. Removing an unknown name is a no-op.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.probes, name)
}

// Names returns the registered probe names in sorted order
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.probes))
	for name := range r.probes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// snapshot copies the registry so a tick never holds the lock while probes run
func (r *Registry) snapshot() []namedProbe {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]namedProbe, 0, len(r.probes))
	for name, p := range r.probes {
		out = append(out, namedProbe{name: name, probe: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

type namedProbe struct {
	name  string
	probe Probe
}

// Scheduler invokes every registered probe on a fixed interval. It runs on
// its own supervised goroutine, started once after agent initialization.
type Scheduler struct {
	registry *Registry
	interval time.Duration
	logger   core.Logger

	started atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler over the given registry. A zero or
// negative interval falls back to one minute.
func NewScheduler(registry *Registry, interval time.Duration, logger core.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Scheduler{
		registry: registry,
		interval: interval,
		logger:   logger,
	}
}

// Start begins ticking. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}

	s.done = make(chan struct{})
	s.wg.Add(1)

	s.logger.Info("Probe scheduler started", map[string]interface{}{
		"interval": s.interval.String(),
		"probes":   len(s.registry.Names()),
	})

	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.RunOnce()
			case <-s.done:
				return
			}
		}
	}()
}

// Stop halts ticking and waits for any in-flight tick to finish. Idempotent.
func (s *Scheduler) Stop() {
	if !s.started.CompareAndSwap(true, false) {
		return
	}
	close(s.done)
	s.wg.Wait()
	s.logger.Info("Probe scheduler stopped", nil)
}

// RunOnce executes every registered probe a single time, in name order.
// Exposed so hosts and tests can force a tick without waiting an interval.
func (s *Scheduler) RunOnce() {
	for _, np := range s.registry.snapshot() {
		s.runProbe(np.name, np.probe)
	}
}

// runProbe isolates one probe invocation: a panic is caught and logged so
// the remaining probes in this tick (and all later ticks) still run.
func (s *Scheduler) runProbe(name string, p Probe) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("Probe panicked", map[string]interface{}{
				"probe":  name,
				"error":  fmt.Sprintf("%v", rec),
				"impact": "This probe's metrics are missing for this tick; other probes are unaffected",
			})
		}
	}()
	p()
}

package pulse

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pulsekit/pulse/backend"
	"github.com/pulsekit/pulse/core"
	"github.com/pulsekit/pulse/internal/watcher"
	"github.com/pulsekit/pulse/probe"
)

// State describes the agent lifecycle
type State string

const (
	// StateUninitialized means Initialize has never been called
	StateUninitialized State = "uninitialized"
	// StateDisabled means the agent is administratively off or stopped;
	// all calls are silent no-ops
	StateDisabled State = "disabled"
	// StateActive means the backend is started and accepting submissions
	StateActive State = "active"
	// StateFailed means configuration or backend startup failed; the agent
	// degraded to no-op mode rather than disturbing the host
	StateFailed State = "failed"
)

// startTimeout bounds backend start/stop during lifecycle transitions
const startTimeout = 10 * time.Second

// agent is one immutable lifecycle snapshot: config, backend, and state are
// fixed at construction and the whole snapshot is swapped atomically on
// reconfigure. Readers load it once per call and never observe a torn state.
type agent struct {
	config    core.Config
	backend   core.Backend
	logger    core.Logger
	state     State
	scheduler *probe.Scheduler
	watcher   *watcher.Watcher
	startTime time.Time

	emitted      atomic.Int64
	errorLimiter *core.RateLimiter
}

var (
	// lifecycleMu serializes Initialize/Stop and the detached reconfigure
	// work. The metric and error paths never take it; they read the
	// globalAgent snapshot lock-free.
	lifecycleMu sync.Mutex
	globalAgent atomic.Value // *agent

	// The host-supplied configuration and options, kept so Reconfigure can
	// re-run the full load (file + env overlays) on top of them.
	baseConfig core.Config
	baseOpts   []Option
	hasBase    bool

	// probeRegistry is process-wide so registrations survive reconfigure
	probeRegistry = probe.NewRegistry()

	// reconfiguring collapses overlapping reconfigure requests into one
	reconfiguring atomic.Bool

	// Internal health counters, process-wide across snapshots
	agentErrors  atomic.Int64
	agentDropped atomic.Int64
	lastError    atomic.Value // string
)

// Option customizes agent construction
type Option func(*options)

type options struct {
	backend core.Backend
	logger  core.Logger
}

// WithBackend installs a custom transmission backend, bypassing the
// transport selection in the configuration. Used by tests and by hosts with
// bespoke transports.
func WithBackend(b core.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithLogger replaces the operator log
func WithLogger(l core.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Initialize validates the configuration and starts the transmission
// backend. Call it once at host boot; the metric and error APIs are usable
// any time after (they silently no-op until the agent is active, and again
// if it fails).
//
// Initialize never returns an error and never panics: an administratively
// disabled config yields silent no-op mode, an invalid config or failed
// backend start yields degraded no-op mode with an operator-log diagnostic.
// Instrumentation must never destabilize the host application.
func Initialize(cfg core.Config, opts ...Option) {
	lifecycleMu.Lock()
	defer lifecycleMu.Unlock()

	baseConfig = cfg
	baseOpts = opts
	hasBase = true

	initializeLocked(cfg, opts)
}

// Stop tears down the backend connection, the probe scheduler, and the
// config watcher. Idempotent: stopping a stopped or never-started agent is
// a no-op that leaves the agent disabled.
func Stop() {
	lifecycleMu.Lock()
	defer lifecycleMu.Unlock()
	stopLocked()
}

// Reconfigure reloads configuration (file and environment overlays
// included) and restarts the backend. It returns immediately: the work runs
// on a new, independent goroutine whose completion the caller never awaits.
//
// This detachment is deliberate. The trigger path is typically a
// config-change callback running inside a goroutine the agent itself owns
// (the config watcher); stopping and reinitializing synchronously from
// there would wait on that same goroutine and deadlock. Concurrent metric
// and error calls during the swap observe either the old or the new
// snapshot, never a torn state.
func Reconfigure() {
	if !reconfiguring.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer reconfiguring.Store(false)

		lifecycleMu.Lock()
		defer lifecycleMu.Unlock()

		if !hasBase {
			return
		}

		if a := currentAgent(); a != nil {
			a.logger.Info("Reconfiguring agent", map[string]interface{}{
				"state": string(a.state),
			})
		}

		stopLocked()
		initializeLocked(baseConfig, baseOpts)
	}()
}

// CurrentState returns the lifecycle state of the current snapshot
func CurrentState() State {
	a := currentAgent()
	if a == nil {
		return StateUninitialized
	}
	return a.state
}

// Loaded reports whether the transmission backend is started and accepting
// submissions
func Loaded() bool {
	a := currentAgent()
	return a != nil && a.backend.Loaded()
}

// RegisterProbe adds a named periodic callback to the process-wide probe
// registry. Probes are invoked every probe interval once the agent is
// active, and survive reconfiguration. Registering a duplicate name returns
// core.ErrAlreadyRegistered.
func RegisterProbe(name string, p probe.Probe) error {
	return probeRegistry.Register(name, p)
}

// UnregisterProbe removes a probe by name
func UnregisterProbe(name string) {
	probeRegistry.Unregister(name)
}

func initializeLocked(cfg core.Config, opts []Option) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	// Overlay layers: host-supplied config, then file, then environment
	if cfg.ConfigFile != "" {
		overlaid, err := cfg.WithFileOverrides(cfg.ConfigFile)
		if err != nil {
			logger := newLogger(o, cfg)
			logger.Warn("Configuration file unreadable; agent degraded to no-op mode", map[string]interface{}{
				"error":  err.Error(),
				"path":   cfg.ConfigFile,
				"action": "Fix the file and call Reconfigure",
			})
			recordFailure(err)
			storeAgent(&agent{
				config:       cfg,
				backend:      &core.NoOpBackend{},
				logger:       logger,
				state:        StateFailed,
				startTime:    time.Now(),
				errorLimiter: core.NewRateLimiter(time.Second),
			})
			return
		}
		cfg = overlaid
	}
	cfg = cfg.WithEnvOverrides()

	logger := newLogger(o, cfg)

	if !cfg.Enabled {
		logger.Info("Agent is disabled; running in no-op mode", map[string]interface{}{
			"service": cfg.ServiceName,
		})
		storeAgent(&agent{
			config:       cfg,
			backend:      &core.NoOpBackend{},
			logger:       logger,
			state:        StateDisabled,
			startTime:    time.Now(),
			errorLimiter: core.NewRateLimiter(time.Second),
		})
		return
	}

	if err := cfg.Validate(); err != nil {
		logger.Warn("Configuration invalid; agent degraded to no-op mode", map[string]interface{}{
			"error":  err.Error(),
			"action": "Fix the configuration and call Reconfigure",
			"impact": "Metrics and error reports will be dropped",
		})
		recordFailure(err)
		storeAgent(&agent{
			config:       cfg,
			backend:      &core.NoOpBackend{},
			logger:       logger,
			state:        StateFailed,
			startTime:    time.Now(),
			errorLimiter: core.NewRateLimiter(time.Second),
		})
		return
	}

	b := o.backend
	if b == nil {
		b = newBackend(cfg)
	}

	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()
	if err := b.Start(ctx); err != nil {
		logger.Error("Backend failed to start; agent degraded to no-op mode", map[string]interface{}{
			"error":     err.Error(),
			"transport": cfg.Transport,
			"endpoint":  cfg.EndpointOrDefault(),
			"action":    "Check the collector is reachable at the configured endpoint",
			"impact":    "Metrics and error reports will be dropped",
		})
		recordFailure(err)
		storeAgent(&agent{
			config:       cfg,
			backend:      &core.NoOpBackend{},
			logger:       logger,
			state:        StateFailed,
			startTime:    time.Now(),
			errorLimiter: core.NewRateLimiter(time.Second),
		})
		return
	}

	a := &agent{
		config:       cfg,
		backend:      b,
		logger:       logger,
		state:        StateActive,
		startTime:    time.Now(),
		errorLimiter: core.NewRateLimiter(time.Second),
	}

	if cfg.EnableProbes {
		probeRegistry.Replace(probe.RuntimeProbeName, probe.RuntimeProbe(
			func(key string, value float64, tags core.Tags) {
				SetGauge(key, value, tags)
			}))
		a.scheduler = probe.NewScheduler(probeRegistry, cfg.ProbeInterval, logger)
		a.scheduler.Start()
	}

	if cfg.ConfigFile != "" && cfg.WatchConfig {
		w, err := watcher.New(cfg.ConfigFile, Reconfigure, logger)
		if err == nil {
			err = w.Start()
		}
		if err != nil {
			logger.Warn("Config watcher unavailable", map[string]interface{}{
				"error": err.Error(),
				"path":  cfg.ConfigFile,
			})
		} else {
			a.watcher = w
		}
	}

	storeAgent(a)

	logger.Info("Agent initialized", map[string]interface{}{
		"service":      cfg.ServiceName,
		"version":      Version,
		"environment":  cfg.Environment,
		"transport":    cfg.Transport,
		"endpoint":     cfg.EndpointOrDefault(),
		"probes":       cfg.EnableProbes,
		"watch_config": cfg.WatchConfig,
	})
}

func stopLocked() {
	a := currentAgent()
	if a == nil {
		storeAgent(&agent{
			config:       core.DefaultConfig(),
			backend:      &core.NoOpBackend{},
			logger:       &core.NoOpLogger{},
			state:        StateDisabled,
			startTime:    time.Now(),
			errorLimiter: core.NewRateLimiter(time.Second),
		})
		return
	}

	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()
	if err := a.backend.Stop(ctx); err != nil {
		a.logger.Error("Backend stop failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	storeAgent(&agent{
		config:       a.config,
		backend:      &core.NoOpBackend{},
		logger:       a.logger,
		state:        StateDisabled,
		startTime:    a.startTime,
		errorLimiter: a.errorLimiter,
	})
}

// newBackend selects the transport from the configuration
func newBackend(cfg core.Config) core.Backend {
	switch cfg.Transport {
	case core.TransportRedis:
		return backend.NewRedisQueue(cfg.EndpointOrDefault(), cfg.QueuePrefix)
	default:
		return backend.NewOTel(cfg.ServiceName, Version, cfg.EndpointOrDefault(), cfg.DevMode)
	}
}

func newLogger(o options, cfg core.Config) core.Logger {
	if o.logger != nil {
		return o.logger
	}
	l := core.NewAgentLogger(cfg.ServiceName)
	if cfg.LogLevel != "" {
		l.SetLevel(cfg.LogLevel)
	}
	return l
}

func currentAgent() *agent {
	v := globalAgent.Load()
	if v == nil {
		return nil
	}
	a, _ := v.(*agent)
	return a
}

func storeAgent(a *agent) {
	globalAgent.Store(a)
}

func (a *agent) active() bool {
	return a != nil && a.state == StateActive
}

// noteFailure records a dropped submission: counters, last-error cell, and an
// operator log rate-limited per key. Nothing propagates to the caller.
func (a *agent) noteFailure(msg, key string, err error) {
	recordFailure(err)
	if a.errorLimiter == nil || a.errorLimiter.Allow(key) {
		a.logger.Error(msg, map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}

func recordFailure(err error) {
	agentErrors.Add(1)
	agentDropped.Add(1)
	lastError.Store(err.Error())
}

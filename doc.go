/*
Package pulse is an in-process observability client: a long-lived agent
embedded inside a host application that forwards metrics and error reports
to a downstream collector.

Architecture Overview:

The agent is built in three layers:

 1. Facade Layer - the functions in this package (Initialize, SetGauge,
    IncrementCounter, AddDistributionValue, SendError, Reconfigure)
 2. Lifecycle Layer - an immutable agent snapshot swapped atomically on
    reconfigure, so readers never observe a half-updated configuration
 3. Transport Layer - pluggable backends behind the core.Backend contract
    (OpenTelemetry by default, a Redis queue transport as an alternative)

Thread Safety:

All public functions are safe for concurrent use. The metric and error
paths are lock-free: they load the current agent snapshot from an
atomic.Value and never contend with lifecycle transitions. Reconfigure is
dispatched to a new, independent goroutine precisely so a config-change
callback can trigger it without deadlocking the goroutine it runs on.

Fail-Safe Design:

Nothing in this package ever raises back into the host application. An
invalid configuration, an unreachable collector, or a rejected submission
degrades the agent to a logged no-op; the instrumented system keeps
running. The only caller-visible signal is a deprecation-class warning
when an error is reported without a stack trace.

Usage:

Initialize once in main:

	cfg := core.DefaultConfig()
	cfg.ServiceName = "checkout"
	pulse.Initialize(cfg)
	defer pulse.Stop()

Then emit from anywhere:

	pulse.IncrementCounter("orders.created", 1, core.Tags{"region": "eu"})
	pulse.SetGauge("queue.depth", 42, nil)

	if err := process(order); err != nil {
	    pulse.SendError(err,
	        pulse.WithPrefix("order processing"),
	        pulse.WithStack(core.CaptureStack(0)),
	        pulse.WithTags(core.Tags{"order_id": order.ID}),
	    )
	}

Periodic system probes run on the agent's scheduler:

	pulse.RegisterProbe("db_pool", func() {
	    pulse.SetGauge("db.pool.in_use", float64(pool.InUse()), nil)
	})
*/
package pulse

package backend

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/pulsekit/pulse/core"
)

// startDevTransport starts an OTel transport in dev mode with its stdout
// export silenced for the duration of the test.
func startDevTransport(t *testing.T) *OTel {
	t.Helper()

	// Dev mode writes pretty-printed spans to stdout; keep test output clean
	old := os.Stdout
	null, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = null
	t.Cleanup(func() {
		os.Stdout = old
		_ = null.Close()
	})

	o := NewOTel("test-service", "0.0.1", "", true)
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("dev-mode start failed: %v", err)
	}
	t.Cleanup(func() { _ = o.Stop(context.Background()) })
	return o
}

func TestOTelSubmitBeforeStart(t *testing.T) {
	o := NewOTel("test-service", "0.0.1", "localhost:4317", false)

	if err := o.SetGauge("k", 1, nil); !errors.Is(err, core.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	if err := o.IncrementCounter("k", 1, nil); !errors.Is(err, core.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	if err := o.SendError(core.ErrorReport{}); !errors.Is(err, core.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestOTelDevModeLifecycle(t *testing.T) {
	o := startDevTransport(t)

	if !o.Loaded() {
		t.Fatal("transport should be loaded after start")
	}

	tags, err := core.EncodeTags(core.Tags{"env": "test"})
	if err != nil {
		t.Fatal(err)
	}
	if err := o.SetGauge("pool.size", 3, tags); err != nil {
		t.Fatalf("gauge: %v", err)
	}
	if err := o.IncrementCounter("requests", 1, nil); err != nil {
		t.Fatalf("counter: %v", err)
	}
	if err := o.AddDistributionValue("latency_ms", 8.5, nil); err != nil {
		t.Fatalf("distribution: %v", err)
	}

	report := core.ErrorReport{
		Transaction: core.NewTransaction("", core.NamespaceBackground),
		Kind:        "TimeoutError",
		Message:     "upstream timed out",
		Backtrace: []core.StackFrame{
			{Function: "main.work", File: "main.go", Line: 10},
		},
		Tags:    tags,
		Context: map[string]interface{}{"job": "sweep"},
	}
	if err := o.SendError(report); err != nil {
		t.Fatalf("send error: %v", err)
	}

	if err := o.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if o.Loaded() {
		t.Fatal("transport should not be loaded after stop")
	}
	if err := o.Stop(context.Background()); err != nil {
		t.Fatalf("second stop should be a no-op, got %v", err)
	}
}

func TestAttributesFromTags(t *testing.T) {
	tags, err := core.EncodeTags(core.Tags{"env": "prod", "shard": 3, "canary": true})
	if err != nil {
		t.Fatal(err)
	}

	attrs := attributesFromTags(tags)
	if len(attrs) != 3 {
		t.Fatalf("expected 3 attributes, got %d", len(attrs))
	}
	seen := map[string]bool{}
	for _, a := range attrs {
		seen[string(a.Key)] = true
	}
	for _, key := range []string{"tag.env", "tag.shard", "tag.canary"} {
		if !seen[key] {
			t.Fatalf("missing attribute %q in %v", key, seen)
		}
	}
}

func TestAttributesFromTagsEmptyAndMalformed(t *testing.T) {
	if attrs := attributesFromTags(nil); attrs != nil {
		t.Fatalf("nil tags should yield no attributes, got %v", attrs)
	}
	if attrs := attributesFromTags(core.EncodedTags("{}")); attrs != nil {
		t.Fatalf("empty tags should yield no attributes, got %v", attrs)
	}
	if attrs := attributesFromTags(core.EncodedTags("garbage")); attrs != nil {
		t.Fatalf("malformed tags should yield no attributes, got %v", attrs)
	}
}

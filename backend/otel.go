// Package backend provides the concrete transmission layers behind the
// core.Backend contract. The agent core never depends on these types
// directly; it selects one at initialization based on the configured
// transport.
package backend

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pulsekit/pulse/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// OTel transmits metrics through the OpenTelemetry meter API and error
// reports as spans exported over OTLP gRPC. In dev mode spans go to stdout
// so the transport works offline.
type OTel struct {
	serviceName string
	version     string
	endpoint    string
	devMode     bool

	tp          *sdktrace.TracerProvider
	tracer      trace.Tracer
	instruments *instrumentSet
	loaded      atomic.Bool
}

// NewOTel creates the OpenTelemetry transport. version is reported as the
// service version resource attribute. Nothing connects until Start.
func NewOTel(serviceName, version, endpoint string, devMode bool) *OTel {
	return &OTel{
		serviceName: serviceName,
		version:     version,
		endpoint:    endpoint,
		devMode:     devMode,
	}
}

// Start opens the connection to the collector. Start and Stop are serialized
// by the agent lifecycle; they are not safe for concurrent use with each
// other, but submissions may race with either.
func (o *OTel) Start(ctx context.Context) error {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(o.serviceName),
			semconv.ServiceVersionKey.String(o.version),
		),
	)
	if err != nil {
		return core.NewAgentError("backend.Start", "backend",
			fmt.Errorf("failed to create resource: %w", err))
	}

	var exporter sdktrace.SpanExporter
	if o.devMode {
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	} else {
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(o.endpoint),
			otlptracegrpc.WithInsecure(),
		)
	}
	if err != nil {
		return core.NewAgentError("backend.Start", "backend",
			fmt.Errorf("failed to create exporter: %w", err))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	o.tp = tp
	o.tracer = tp.Tracer("pulse")
	o.instruments = newInstrumentSet("pulse")
	o.loaded.Store(true)
	return nil
}

// Stop flushes and tears down the exporter. Idempotent.
func (o *OTel) Stop(ctx context.Context) error {
	o.loaded.Store(false)

	tp := o.tp
	if tp == nil {
		return nil
	}
	o.tp = nil

	if err := tp.Shutdown(ctx); err != nil {
		return core.NewAgentError("backend.Stop", "backend", err)
	}
	return nil
}

// Loaded reports whether the transport is started and accepting submissions
func (o *OTel) Loaded() bool {
	return o.loaded.Load()
}

// SetGauge records a gauge value. Gauges are recorded as histograms because
// OpenTelemetry gauges require callbacks; the collector sees the latest
// values without the callback plumbing.
func (o *OTel) SetGauge(key string, value float64, tags core.EncodedTags) error {
	if !o.loaded.Load() {
		return core.ErrBackendUnavailable
	}
	return o.instruments.recordHistogram(context.Background(), key, value, attributesFromTags(tags))
}

// IncrementCounter adds amount to a monotonic counter
func (o *OTel) IncrementCounter(key string, amount float64, tags core.EncodedTags) error {
	if !o.loaded.Load() {
		return core.ErrBackendUnavailable
	}
	return o.instruments.addCounter(context.Background(), key, amount, attributesFromTags(tags))
}

// AddDistributionValue records one sample of a distribution
func (o *OTel) AddDistributionValue(key string, value float64, tags core.EncodedTags) error {
	if !o.loaded.Load() {
		return core.ErrBackendUnavailable
	}
	return o.instruments.recordHistogram(context.Background(), key, value, attributesFromTags(tags))
}

// SendError submits an error report as a span in error status. The span is
// named after the transaction's namespace and carries kind, message,
// transaction id, tags, caller context, and the backtrace as an event.
func (o *OTel) SendError(report core.ErrorReport) error {
	if !o.loaded.Load() {
		return core.ErrBackendUnavailable
	}

	_, span := o.tracer.Start(context.Background(), string(report.Transaction.Namespace))
	defer span.End()

	attrs := []attribute.KeyValue{
		attribute.String("error.kind", report.Kind),
		attribute.String("error.message", report.Message),
		attribute.String("transaction.id", report.Transaction.ID),
	}
	attrs = append(attrs, attributesFromTags(report.Tags)...)
	for k, v := range report.Context {
		attrs = append(attrs, attributeFromValue("context."+k, v))
	}
	for k, v := range report.Transaction.SampleData {
		attrs = append(attrs, attributeFromValue("sample."+k, v))
	}
	span.SetAttributes(attrs...)

	if len(report.Backtrace) > 0 {
		frames := make([]string, len(report.Backtrace))
		for i, f := range report.Backtrace {
			frames[i] = fmt.Sprintf("%s (%s:%d)", f.Function, f.File, f.Line)
		}
		span.AddEvent("backtrace", trace.WithAttributes(
			attribute.StringSlice("frames", frames),
		))
	}

	span.SetStatus(codes.Error, report.Message)
	return nil
}

// attributesFromTags decodes an encoded tag set into span/metric attributes
func attributesFromTags(tags core.EncodedTags) []attribute.KeyValue {
	decoded, err := core.DecodeTags(tags)
	if err != nil || len(decoded) == 0 {
		return nil
	}
	attrs := make([]attribute.KeyValue, 0, len(decoded))
	for k, v := range decoded {
		attrs = append(attrs, attributeFromValue("tag."+k, v))
	}
	return attrs
}

func attributeFromValue(key string, value interface{}) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}

// instrumentSet caches metric instruments so submissions stay allocation-light
type instrumentSet struct {
	meter      metric.Meter
	counters   map[string]metric.Float64Counter
	histograms map[string]metric.Float64Histogram
	mu         sync.RWMutex
}

func newInstrumentSet(meterName string) *instrumentSet {
	return &instrumentSet{
		meter:      otel.Meter(meterName),
		counters:   make(map[string]metric.Float64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

func (m *instrumentSet) addCounter(ctx context.Context, name string, value float64, attrs []attribute.KeyValue) error {
	m.mu.RLock()
	counter, exists := m.counters[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		// Double-check after acquiring write lock
		if counter, exists = m.counters[name]; !exists {
			var err error
			counter, err = m.meter.Float64Counter(name)
			if err != nil {
				m.mu.Unlock()
				return fmt.Errorf("failed to create counter %s: %w", name, err)
			}
			m.counters[name] = counter
		}
		m.mu.Unlock()
	}

	counter.Add(ctx, value, metric.WithAttributes(attrs...))
	return nil
}

func (m *instrumentSet) recordHistogram(ctx context.Context, name string, value float64, attrs []attribute.KeyValue) error {
	m.mu.RLock()
	histogram, exists := m.histograms[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		if histogram, exists = m.histograms[name]; !exists {
			var err error
			histogram, err = m.meter.Float64Histogram(name)
			if err != nil {
				m.mu.Unlock()
				return fmt.Errorf("failed to create histogram %s: %w", name, err)
			}
			m.histograms[name] = histogram
		}
		m.mu.Unlock()
	}

	histogram.Record(ctx, value, metric.WithAttributes(attrs...))
	return nil
}

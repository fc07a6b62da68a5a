package pulse

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pulsekit/pulse/core"
)

// metricCall records one metric submission observed by the stub backend
type metricCall struct {
	metricType string
	key        string
	value      float64
	tags       core.EncodedTags
}

// stubBackend implements core.Backend for lifecycle and pipeline tests
type stubBackend struct {
	mu      sync.Mutex
	metrics []metricCall
	reports []core.ErrorReport

	started int
	stopped int
	loaded  atomic.Bool

	startErr   error
	submitErr  error
	startDelay time.Duration
}

func (s *stubBackend) Start(ctx context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	if s.startDelay > 0 {
		time.Sleep(s.startDelay)
	}
	s.mu.Lock()
	s.started++
	s.mu.Unlock()
	s.loaded.Store(true)
	return nil
}

func (s *stubBackend) Stop(ctx context.Context) error {
	s.loaded.Store(false)
	s.mu.Lock()
	s.stopped++
	s.mu.Unlock()
	return nil
}

func (s *stubBackend) Loaded() bool {
	return s.loaded.Load()
}

func (s *stubBackend) SetGauge(key string, value float64, tags core.EncodedTags) error {
	return s.record("gauge", key, value, tags)
}

func (s *stubBackend) IncrementCounter(key string, amount float64, tags core.EncodedTags) error {
	return s.record("counter", key, amount, tags)
}

func (s *stubBackend) AddDistributionValue(key string, value float64, tags core.EncodedTags) error {
	return s.record("distribution", key, value, tags)
}

func (s *stubBackend) SendError(report core.ErrorReport) error {
	if s.submitErr != nil {
		return s.submitErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, report)
	return nil
}

func (s *stubBackend) record(metricType, key string, value float64, tags core.EncodedTags) error {
	if s.submitErr != nil {
		return s.submitErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, metricCall{
		metricType: metricType,
		key:        key,
		value:      value,
		tags:       tags,
	})
	return nil
}

func (s *stubBackend) metricCalls() []metricCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]metricCall, len(s.metrics))
	copy(out, s.metrics)
	return out
}

func (s *stubBackend) errorReports() []core.ErrorReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.ErrorReport, len(s.reports))
	copy(out, s.reports)
	return out
}

func (s *stubBackend) startCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *stubBackend) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// capturingLogger records log calls for assertions
type capturingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	level  string
	msg    string
	fields map[string]interface{}
}

func (l *capturingLogger) Info(msg string, fields map[string]interface{})  { l.add("INFO", msg, fields) }
func (l *capturingLogger) Error(msg string, fields map[string]interface{}) { l.add("ERROR", msg, fields) }
func (l *capturingLogger) Warn(msg string, fields map[string]interface{})  { l.add("WARN", msg, fields) }
func (l *capturingLogger) Debug(msg string, fields map[string]interface{}) { l.add("DEBUG", msg, fields) }

func (l *capturingLogger) add(level, msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, fields: fields})
}

func (l *capturingLogger) hasLevel(level string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level == level {
			return true
		}
	}
	return false
}

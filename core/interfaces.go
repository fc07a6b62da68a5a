package core

import "context"

// Logger interface - minimal logging interface
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})
}

// Backend is the native transmission layer that delivers metrics and error
// reports to a remote collector. The agent core only depends on this narrow
// contract; concrete implementations live in the backend package.
//
// Start and Stop manage the connection lifecycle and must be idempotent.
// Loaded reports whether the backend is connected and accepting submissions.
// The submission methods receive tags already encoded by EncodeTags.
type Backend interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Loaded() bool

	SetGauge(key string, value float64, tags EncodedTags) error
	IncrementCounter(key string, amount float64, tags EncodedTags) error
	AddDistributionValue(key string, value float64, tags EncodedTags) error

	SendError(report ErrorReport) error
}

// ErrorReport is the composed bundle handed to the backend's error-submission
// entry point. It is fire-and-forget: once submitted, the report either
// reaches the collector or is dropped with a logged failure.
type ErrorReport struct {
	Transaction *Transaction
	Kind        string
	Message     string
	Backtrace   []StackFrame
	Tags        EncodedTags
	Context     map[string]interface{}
}

// Default no-op implementations

// NoOpLogger provides a no-op logger implementation
type NoOpLogger struct{}

func (n *NoOpLogger) Info(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Error(msg string, fields map[string]interface{}) {}
func (n *NoOpLogger) Warn(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Debug(msg string, fields map[string]interface{}) {}

// NoOpBackend discards everything. It is installed when the agent is
// administratively disabled or failed validation, so that metric and error
// calls stay safe no-ops without nil checks on every path.
type NoOpBackend struct{}

func (n *NoOpBackend) Start(ctx context.Context) error { return nil }
func (n *NoOpBackend) Stop(ctx context.Context) error  { return nil }
func (n *NoOpBackend) Loaded() bool                    { return false }

func (n *NoOpBackend) SetGauge(key string, value float64, tags EncodedTags) error { return nil }
func (n *NoOpBackend) IncrementCounter(key string, amount float64, tags EncodedTags) error {
	return nil
}
func (n *NoOpBackend) AddDistributionValue(key string, value float64, tags EncodedTags) error {
	return nil
}
func (n *NoOpBackend) SendError(report ErrorReport) error { return nil }

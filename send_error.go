package pulse

import (
	"github.com/google/uuid"

	"github.com/pulsekit/pulse/core"
)

// internalIDPrefix marks transactions the pipeline created itself, as
// opposed to ids attached by a caller's customization hook
const internalIDPrefix = "pulse-"

// newReportID generates the unique part of an internally-created
// transaction id
func newReportID() string {
	return uuid.NewString()
}

// ReportOption customizes a SendError call. All options have working
// defaults; a bare SendError(err) submits a fresh request-scoped
// transaction with no tags, no context, and no stack.
type ReportOption func(*reportOptions)

type reportOptions struct {
	prefix    string
	stack     []uintptr
	tags      core.Tags
	context   map[string]interface{}
	customize func(*core.Transaction)
	namespace core.Namespace
}

// WithPrefix prepends "prefix: " to the normalized error message. An empty
// prefix leaves the message unchanged.
func WithPrefix(prefix string) ReportOption {
	return func(o *reportOptions) { o.prefix = prefix }
}

// WithStack supplies the call stack for the backtrace, typically
// core.CaptureStack(0) at the error site. Omitting the stack logs a
// deprecation-class warning and submits with an empty backtrace.
func WithStack(stack []uintptr) ReportOption {
	return func(o *reportOptions) { o.stack = stack }
}

// WithTags attaches tag metadata to the report
func WithTags(tags core.Tags) ReportOption {
	return func(o *reportOptions) { o.tags = tags }
}

// WithContextData attaches request or connection context to the report
func WithContextData(ctx map[string]interface{}) ReportOption {
	return func(o *reportOptions) { o.context = ctx }
}

// WithNamespace classifies the transaction's origin. The default is
// core.NamespaceHTTP (request-scoped).
func WithNamespace(ns core.Namespace) ReportOption {
	return func(o *reportOptions) { o.namespace = ns }
}

// WithTransactionHook runs a customization callback against the transaction
// before submission, letting the caller attach sample data or reuse an
// existing transaction id. The default is the identity.
func WithTransactionHook(fn func(*core.Transaction)) ReportOption {
	return func(o *reportOptions) { o.customize = fn }
}

// SendError captures an arbitrary error value and submits it to the backend
// as a transaction, even when no tracing context currently exists. The
// pipeline runs synchronously in the caller's goroutine:
//
//  1. create a transaction with a fresh internally-marked unique id
//  2. run the caller's customization hook (default identity)
//  3. normalize the error value and optional stack
//  4. compose the final message ("prefix: message" when a prefix is given)
//  5. submit the bundle to the backend's error-submission entry point
//
// Backend failures are logged and absorbed; nothing raises back into the
// host. When the agent is disabled or degraded the call is a silent no-op.
func SendError(value interface{}, opts ...ReportOption) {
	a := currentAgent()
	if !a.active() {
		return
	}

	o := reportOptions{
		namespace: core.NamespaceHTTP,
		customize: func(*core.Transaction) {},
	}
	for _, opt := range opts {
		opt(&o)
	}

	txn := core.NewTransaction(internalIDPrefix+newReportID(), o.namespace)
	o.customize(txn)

	normalizer := core.ErrorNormalizer{Logger: a.logger}
	normalized := normalizer.Normalize(value, o.stack)

	message := normalized.Message
	if o.prefix != "" {
		message = o.prefix + ": " + normalized.Message
	}

	encoded, err := core.EncodeTags(o.tags)
	if err != nil {
		a.noteFailure("Error report tags dropped: encoding failed", normalized.Kind, err)
		encoded = core.EncodedTags("{}")
	}

	report := core.ErrorReport{
		Transaction: txn,
		Kind:        normalized.Kind,
		Message:     message,
		Backtrace:   normalized.Frames,
		Tags:        encoded,
		Context:     o.context,
	}

	if err := a.backend.SendError(report); err != nil {
		a.noteFailure("Error report dropped: submission failed", normalized.Kind, err)
		return
	}
	a.emitted.Add(1)
}

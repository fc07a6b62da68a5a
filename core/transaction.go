package core

import (
	"github.com/google/uuid"
)

// Namespace is a coarse classification of a transaction's origin.
type Namespace string

const (
	// NamespaceHTTP marks request-triggered work (the default for error reports)
	NamespaceHTTP Namespace = "http_request"
	// NamespaceBackground marks work outside any request context
	NamespaceBackground Namespace = "background"
)

// Transaction is a submittable unit of error-report data, analogous to a
// trace span. It carries an id, a namespace, and arbitrary sample data the
// caller can attach before submission. Its lifetime ends at submission:
// once handed to the backend it is fire-and-forget.
type Transaction struct {
	ID         string                 `json:"id"`
	Namespace  Namespace              `json:"namespace"`
	SampleData map[string]interface{} `json:"sample_data,omitempty"`
}

// NewTransaction creates or reuses a submittable transaction record.
// When id is empty a unique identifier is generated, so a transaction used
// for submission always has a non-empty id.
func NewTransaction(id string, ns Namespace) *Transaction {
	if id == "" {
		id = uuid.NewString()
	}
	if ns == "" {
		ns = NamespaceHTTP
	}
	return &Transaction{
		ID:        id,
		Namespace: ns,
	}
}

// SetSampleData merges a sample payload under the given key. Used by the
// customization hook of the submission pipeline to attach extra context
// before the transaction is handed to the backend.
func (t *Transaction) SetSampleData(key string, value interface{}) {
	if t.SampleData == nil {
		t.SampleData = make(map[string]interface{})
	}
	t.SampleData[key] = value
}

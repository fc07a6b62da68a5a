package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTransactionGeneratesID(t *testing.T) {
	a := NewTransaction("", NamespaceBackground)
	b := NewTransaction("", NamespaceBackground)

	assert.NotEmpty(t, a.ID)
	assert.NotEmpty(t, b.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, NamespaceBackground, a.Namespace)
}

func TestNewTransactionKeepsCallerID(t *testing.T) {
	txn := NewTransaction("req-123", NamespaceHTTP)
	assert.Equal(t, "req-123", txn.ID)
}

func TestNewTransactionDefaultNamespace(t *testing.T) {
	txn := NewTransaction("x", "")
	assert.Equal(t, NamespaceHTTP, txn.Namespace)
}

func TestSetSampleData(t *testing.T) {
	txn := NewTransaction("", NamespaceHTTP)

	txn.SetSampleData("session", map[string]interface{}{"user": "u-1"})
	txn.SetSampleData("params", map[string]interface{}{"page": 2})

	assert.Len(t, txn.SampleData, 2)
	session := txn.SampleData["session"].(map[string]interface{})
	assert.Equal(t, "u-1", session["user"])
}

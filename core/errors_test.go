package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAgentErrorFormatting(t *testing.T) {
	err := NewAgentError("backend.Start", "backend",
		fmt.Errorf("%w: dial tcp refused", ErrBackendUnavailable))

	assert.Contains(t, err.Error(), "backend.Start")
	assert.Contains(t, err.Error(), "dial tcp refused")
}

func TestAgentErrorUnwrap(t *testing.T) {
	inner := fmt.Errorf("%w: probe_interval", ErrConfigInvalid)
	err := NewAgentError("config.Validate", "config", inner)

	assert.True(t, errors.Is(err, ErrConfigInvalid))

	var agentErr *AgentError
	assert.True(t, errors.As(err, &agentErr))
	assert.Equal(t, "config", agentErr.Kind)
}

func TestErrorClassifiers(t *testing.T) {
	wrap := func(sentinel error) error {
		return NewAgentError("op", "kind", fmt.Errorf("%w: detail", sentinel))
	}

	assert.True(t, IsConfigurationError(wrap(ErrConfigInvalid)))
	assert.True(t, IsConfigurationError(wrap(ErrConfigMissing)))
	assert.False(t, IsConfigurationError(wrap(ErrBackendUnavailable)))

	assert.True(t, IsBackendError(wrap(ErrBackendUnavailable)))
	assert.True(t, IsBackendError(wrap(ErrSubmissionFailed)))
	assert.False(t, IsBackendError(wrap(ErrConfigInvalid)))

	assert.True(t, IsStateError(wrap(ErrAlreadyRegistered)))
	assert.True(t, IsStateError(wrap(ErrAlreadyStarted)))
	assert.True(t, IsStateError(wrap(ErrNotInitialized)))
	assert.False(t, IsStateError(wrap(ErrSubmissionFailed)))
}

func TestAgentErrorMessageFallbacks(t *testing.T) {
	assert.Equal(t, "just a message", (&AgentError{Message: "just a message"}).Error())
	assert.Equal(t, "backend error", (&AgentError{Kind: "backend"}).Error())
}

package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_FormatsContextAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, ErrUpstream, "translate request failed").
		WithContext("video", "abc").
		WithContext("api", "http://translator")

	assert.Equal(t,
		"[Upstream] translate request failed | context: api=http://translator, video=abc | cause: connection refused",
		err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestIsErrorType_ThroughWrapping(t *testing.T) {
	base := New(ErrValidation, "invalid caption payload")
	wrapped := fmt.Errorf("request translation: %w", base)

	assert.True(t, IsErrorType(wrapped, ErrValidation))
	assert.False(t, IsErrorType(wrapped, ErrUpstream))
	assert.Equal(t, ErrValidation, TypeOf(wrapped))
	assert.Equal(t, ErrUnknown, TypeOf(errors.New("plain")))
}

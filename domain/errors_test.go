package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServerError_Fallback(t *testing.T) {
	err := ServerError(502, "")
	assert.Equal(t, "server error 502", err.Message)
	assert.Equal(t, 502, err.Status)
	assert.True(t, IsDomainError(err, ErrCodeServer))

	assert.Equal(t, "bad password", ServerError(401, "bad password").Error())
}

func TestMessage(t *testing.T) {
	wrapped := fmt.Errorf("login: %w", NoResponseError(context.DeadlineExceeded))

	assert.Equal(t, MsgNoResponse, Message(wrapped))
	assert.ErrorIs(t, wrapped, context.DeadlineExceeded)
	assert.Equal(t, MsgRequestFailed, Message(RequestError(errors.New("bad url"))))
	assert.Equal(t, "plain", Message(errors.New("plain")))
	assert.Empty(t, Message(nil))
}

func TestStorageError(t *testing.T) {
	cause := errors.New("disk full")
	err := StorageError("write", cause)
	assert.True(t, IsDomainError(err, ErrCodeStorage))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "session storage write failed: disk full", err.Error())
}

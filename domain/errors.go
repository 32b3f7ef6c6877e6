package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across client layers.
type ErrorCode string

const (
	ErrCodeNotFound   ErrorCode = "NOT_FOUND"
	ErrCodeInvalid    ErrorCode = "INVALID"
	ErrCodeServer     ErrorCode = "SERVER"
	ErrCodeNoResponse ErrorCode = "NO_RESPONSE"
	ErrCodeRequest    ErrorCode = "REQUEST"
	ErrCodeStorage    ErrorCode = "STORAGE"
)

// Fixed messages surfaced for failures that carry no server-provided text.
const (
	MsgNoResponse    = "no response received from server"
	MsgRequestFailed = "request failed to be created"
)

// Error represents a client-level error. Message is what the UI shows.
type Error struct {
	Code    ErrorCode
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ServerError builds the error for a non-2xx response.
func ServerError(status int, message string) *Error {
	if message == "" {
		message = fmt.Sprintf("server error %d", status)
	}
	return &Error{Code: ErrCodeServer, Message: message, Status: status}
}

// NoResponseError builds the error for a request that never got an answer.
func NoResponseError(err error) *Error {
	return WrapError(ErrCodeNoResponse, MsgNoResponse, err)
}

// RequestError builds the error for a request that could not be constructed.
func RequestError(err error) *Error {
	return WrapError(ErrCodeRequest, MsgRequestFailed, err)
}

// StorageError builds the error for a failed session storage operation.
func StorageError(op string, err error) *Error {
	return WrapError(ErrCodeStorage, "session storage "+op+" failed", err)
}

// Common domain errors.
var (
	ErrSessionNotFound = NewError(ErrCodeNotFound, "session not found")
	ErrNotSignedIn     = NewError(ErrCodeNotFound, "not signed in")
	ErrInvalidPayload  = NewError(ErrCodeInvalid, "invalid payload")
	// ErrOwnerNotSignedIn marks queued work whose owner is not the current session.
	ErrOwnerNotSignedIn = NewError(ErrCodeNotFound, "owner of queued request is not signed in")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// Message returns the human-readable message to display for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Message
	}
	return err.Error()
}

package tool

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Sentinel errors for registry operations.
var (
	ErrNilAdapter        = errors.New("tool: adapter is nil")
	ErrInvalidName       = errors.New("tool: name is invalid")
	ErrDuplicate         = errors.New("tool: already registered")
	ErrNotFound          = errors.New("tool: not found")
	ErrFrozen            = errors.New("tool: registry is frozen")
	ErrInvalidSchema     = errors.New("tool: input schema must be an object schema")
	ErrUnknownCapability = errors.New("tool: unknown capability")
)

// ErrorKind classifies adapter failures.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindTimeout
	KindNetwork
	KindRateLimited
	KindUnavailable
	KindBadRequest
	KindAuth
	KindSubscription
	KindMalformed
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	case KindRateLimited:
		return "rate_limited"
	case KindUnavailable:
		return "unavailable"
	case KindBadRequest:
		return "bad_request"
	case KindAuth:
		return "auth"
	case KindSubscription:
		return "subscription"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Retriable reports whether a failure of this kind may succeed on retry.
func (k ErrorKind) Retriable() bool {
	switch k {
	case KindBadRequest, KindAuth, KindSubscription, KindMalformed:
		return false
	default:
		return true
	}
}

// Error is a classified adapter failure.
type Error struct {
	Tool   string
	Kind   ErrorKind
	Status int
	Err    error
}

// NewError builds a classified failure for tool.
func NewError(tool string, kind ErrorKind, err error) *Error {
	return &Error{Tool: tool, Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Tool, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Tool, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf classifies err. Unclassified errors are KindUnknown, which is retriable.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}
	return KindUnknown
}

// IsRetriable reports whether err is worth another attempt.
func IsRetriable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return KindOf(err).Retriable()
}

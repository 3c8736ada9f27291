package storage

import (
	"errors"
	"fmt"

	"github.com/hupe1980/tmrm/model"
)

var (
	// ErrClosed is returned by operations on a closed storage.
	ErrClosed = errors.New("storage closed")

	// ErrInvalidValue is returned when a property carries the zero model.Value.
	ErrInvalidValue = errors.New("invalid property value")

	// ErrUnknownProxy is returned when a property refers to a handle the
	// storage never allocated.
	ErrUnknownProxy = errors.New("unknown proxy")
)

// Error reports a failed backend operation. It is never retried by callers.
type Error struct {
	// Op is the storage operation, e.g. "add_property".
	Op string
	// Proxy is the proxy the operation was about, or model.NoProxy.
	Proxy model.ProxyID
	Err   error
}

func (e *Error) Error() string {
	if e.Proxy != model.NoProxy {
		return fmt.Sprintf("storage %s %s: %v", e.Op, e.Proxy, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with the operation context. A nil err yields nil.
func NewError(op string, proxy model.ProxyID, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, Proxy: proxy, Err: err}
}

// ConnectionError reports that a backend could not be opened.
//
// The descriptor is deliberately not part of the message because it may
// carry credentials.
type ConnectionError struct {
	// Backend is the registered backend name, e.g. "memory" or "sqlite".
	Backend string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Backend, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// DescriptorError reports a malformed connection descriptor.
type DescriptorError struct {
	// Offset is the byte offset of the problem within the descriptor.
	Offset int
	Msg    string
}

func (e *DescriptorError) Error() string {
	return fmt.Sprintf("descriptor: %s at offset %d", e.Msg, e.Offset)
}

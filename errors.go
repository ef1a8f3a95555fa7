package eventsocket

import (
	"errors"
	"fmt"
	"reflect"
)

// Sentinel errors for common conditions.
var (
	ErrNotOpen      = errors.New("eventsocket: no open connection")
	ErrNoConverter  = errors.New("eventsocket: no converter available")
	ErrTerminated   = errors.New("eventsocket: connection terminated")
	ErrEmptyAddress = errors.New("eventsocket: websocket address cannot be empty")
	ErrClosed       = errors.New("eventsocket: socket closed")
	ErrStreamClosed = errors.New("eventsocket: stream closed")
)

// ConnectionError represents a transport-level failure.
type ConnectionError struct {
	Op  string
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("eventsocket: %s %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("eventsocket: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// SendError represents a failure handing a payload to the transport.
type SendError struct {
	Op  string
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("eventsocket: send %s: %v", e.Op, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// ConversionError represents a converter failing to encode or decode a value.
// It is distinct from [ErrNoConverter], which means no converter was found.
type ConversionError struct {
	Type reflect.Type
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("eventsocket: convert %v: %v", e.Type, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// noConverter wraps ErrNoConverter with the type that failed to resolve.
func noConverter(t reflect.Type) error {
	return fmt.Errorf("%w for %v", ErrNoConverter, t)
}

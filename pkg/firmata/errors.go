package firmata

import (
	"errors"
	"fmt"

	"github.com/robotalks/firmata.go/pkg/firmata/codec"
)

var (
	// ErrClosed indicates the client was closed or the transport went away.
	ErrClosed = errors.New("client closed")
	// ErrTimeout indicates no matching reply arrived in time.
	ErrTimeout = errors.New("request timed out")
	// ErrNotConnected indicates an operation without a client.
	ErrNotConnected = errors.New("not connected")
	// ErrInvalidArgument indicates an argument rejected before anything is sent.
	ErrInvalidArgument = codec.ErrInvalidArgument
	// ErrMalformedFrame indicates bytes from the device that can't be decoded.
	ErrMalformedFrame = codec.ErrMalformedFrame
)

// TransportError wraps a failure of the underlying transport.
type TransportError struct {
	Op  string
	Err error
}

// Error implements error.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

// Unwrap returns the transport error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// ArgumentError describes a rejected argument.
type ArgumentError struct {
	Name   string
	Value  int
	Reason string
}

// Error implements error.
func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %s=%d: %s", e.Name, e.Value, e.Reason)
}

// Unwrap makes errors.Is(err, ErrInvalidArgument) work.
func (e *ArgumentError) Unwrap() error {
	return ErrInvalidArgument
}

func invalidArg(name string, value int, format string, args ...interface{}) error {
	return &ArgumentError{Name: name, Value: value, Reason: fmt.Sprintf(format, args...)}
}

package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedFrame indicates bytes that cannot form a valid frame.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrInvalidArgument indicates a field out of the protocol's range.
	ErrInvalidArgument = errors.New("invalid argument")
)

// FrameError describes a skipped malformed frame.
type FrameError struct {
	Raw    []byte
	Reason string
}

// Error implements error.
func (e *FrameError) Error() string {
	return fmt.Sprintf("malformed frame % x: %s", e.Raw, e.Reason)
}

// Is makes errors.Is(err, ErrMalformedFrame) work.
func (e *FrameError) Is(target error) bool {
	return target == ErrMalformedFrame
}

func malformed(raw []byte, format string, args ...interface{}) *FrameError {
	return &FrameError{Raw: append([]byte(nil), raw...), Reason: fmt.Sprintf(format, args...)}
}

func outOfRange(field string, value, max int) error {
	return fmt.Errorf("%w: %s %d out of range [0, %d]", ErrInvalidArgument, field, value, max)
}

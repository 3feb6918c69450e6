package streambuf

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSize indicates the buffer size can't hold any data.
	ErrInvalidSize = errors.New("invalid buffer size")
	// ErrInvalidTriggerLevel indicates the trigger level is out of range.
	ErrInvalidTriggerLevel = errors.New("invalid trigger level")
	// ErrInvalidMode indicates an unknown buffer mode.
	ErrInvalidMode = errors.New("invalid buffer mode")
	// ErrInvalidPrefixSize indicates an unsupported message length prefix size.
	ErrInvalidPrefixSize = errors.New("invalid length prefix size")
	// ErrNoMemory indicates the allocator is exhausted.
	ErrNoMemory = errors.New("insufficient memory")
	// ErrNilStorage indicates static storage or descriptor is missing.
	ErrNilStorage = errors.New("static storage not provided")
	// ErrStorageTooSmall indicates static storage is smaller than the buffer size.
	ErrStorageTooSmall = errors.New("static storage too small")
	// ErrBusy indicates a task is blocked on the buffer.
	ErrBusy = errors.New("task waiting on buffer")
	// ErrMessageTooLarge indicates a message can never fit in the buffer.
	ErrMessageTooLarge = errors.New("message too large")
	// ErrMessageDropped indicates Conn.Read dropped a message longer than
	// the read buffer.
	ErrMessageDropped = errors.New("message dropped: longer than read buffer")

	// ErrTimeout is returned by Conn when nothing could be transferred in time.
	ErrTimeout error = &timeoutError{}
)

type timeoutError struct{}

func (e *timeoutError) Error() string   { return "stream buffer timeout" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }

// ConfigError wraps a configuration error with the offending field.
type ConfigError struct {
	Field string
	Value int
	Err   error
}

// Error implements error.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s %d: %v", e.Field, e.Value, e.Err)
}

// Unwrap returns the underlying sentinel error.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ContractViolation is the panic value raised when the single producer,
// single consumer contract is broken or a deleted buffer is used.
type ContractViolation struct {
	Op     string
	Reason string
}

// Error implements error.
func (e *ContractViolation) Error() string {
	return "streambuf: " + e.Op + ": " + e.Reason
}

func violation(op, reason string) {
	panic(&ContractViolation{Op: op, Reason: reason})
}

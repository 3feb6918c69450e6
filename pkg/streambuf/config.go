package streambuf

import (
	"github.com/robotalks/streambuf/pkg/kernel"
)

// Config describes a buffer to create.
type Config struct {
	// Size is the backing storage length. One byte is kept free, so the
	// buffer holds at most Size-1 bytes.
	Size int
	// TriggerLevel is the occupancy at which a waiting receiver is woken.
	// 0 is treated as 1.
	TriggerLevel int
	Mode         Mode
	// LengthPrefixSize is the message length prefix width: 1, 2, 4 or 8.
	// 0 selects DefaultLengthPrefixSize. Ignored in stream mode.
	LengthPrefixSize int

	// OnSendCompleted replaces WakeReceiver when data has been sent.
	OnSendCompleted CompletionHandler
	// OnReceiveCompleted replaces WakeSender when data has been received.
	OnReceiveCompleted CompletionHandler

	// Scheduler defaults to kernel.Default().
	Scheduler kernel.Scheduler
	// Allocator provides dynamic storage, defaults to the heap of the
	// default kernel.
	Allocator kernel.Allocator
}

// NewStream creates a stream buffer using the default kernel.
func NewStream(size, triggerLevel int) (*Buffer, error) {
	return (&Config{Size: size, TriggerLevel: triggerLevel, Mode: ModeStream}).New()
}

// NewMessage creates a message buffer with the default length prefix
// using the default kernel.
func NewMessage(size int) (*Buffer, error) {
	return (&Config{Size: size, Mode: ModeMessage}).New()
}

func (c *Config) validate() (prefixSize, triggerLevel int, err error) {
	if c.Size < 1 {
		return 0, 0, &ConfigError{Field: "size", Value: c.Size, Err: ErrInvalidSize}
	}
	triggerLevel = c.TriggerLevel
	if triggerLevel == 0 {
		triggerLevel = 1
	}
	if triggerLevel < 0 || triggerLevel > c.Size {
		return 0, 0, &ConfigError{Field: "trigger level", Value: c.TriggerLevel, Err: ErrInvalidTriggerLevel}
	}
	switch c.Mode {
	case ModeStream:
	case ModeMessage:
		prefixSize = c.LengthPrefixSize
		if prefixSize == 0 {
			prefixSize = DefaultLengthPrefixSize
		}
		if !validPrefixSize(prefixSize) {
			return 0, 0, &ConfigError{Field: "length prefix size", Value: c.LengthPrefixSize, Err: ErrInvalidPrefixSize}
		}
		if c.Size <= prefixSize {
			return 0, 0, &ConfigError{Field: "size", Value: c.Size, Err: ErrInvalidSize}
		}
	default:
		return 0, 0, &ConfigError{Field: "mode", Value: int(c.Mode), Err: ErrInvalidMode}
	}
	return
}

func (c *Config) scheduler() kernel.Scheduler {
	if c.Scheduler != nil {
		return c.Scheduler
	}
	return kernel.Default()
}

func (c *Config) allocator() kernel.Allocator {
	if c.Allocator != nil {
		return c.Allocator
	}
	return kernel.Default().Heap()
}

package kernel

import (
	"math"
	"time"
)

// MaxDelay as a timeout blocks without a deadline.
const MaxDelay = time.Duration(math.MaxInt64)

// TimeOut tracks a timeout across several waits against the monotonic clock.
type TimeOut struct {
	entered time.Time
}

// NewTimeOut captures the current time as the reference point.
func NewTimeOut() TimeOut {
	return TimeOut{entered: time.Now()}
}

// Check deducts the time elapsed since the last check from remaining and
// reports whether it has run out. MaxDelay never runs out.
func (t *TimeOut) Check(remaining *time.Duration) bool {
	if *remaining == MaxDelay {
		return false
	}
	now := time.Now()
	elapsed := now.Sub(t.entered)
	if elapsed < *remaining {
		*remaining -= elapsed
		t.entered = now
		return false
	}
	*remaining = 0
	return true
}

package clock

import "time"

// Clock is the time source used by timing-sensitive simulation logic.
// Production code uses Monotonic; tests substitute a Mock to drive
// timeout and respawn transitions without sleeping.
type Clock interface {
	Now() time.Time
}

// Monotonic provides the real system time with monotonic clock readings
type Monotonic struct{}

// NewMonotonic creates a new monotonic time provider
func NewMonotonic() *Monotonic {
	return &Monotonic{}
}

// Now returns the current time with monotonic clock reading
func (m *Monotonic) Now() time.Time {
	return time.Now()
}

package serial

import "time"

// Clock supplies monotonic readings to a LineReceiver. Readings must never decrease.
type Clock interface {
	Now() time.Duration
}

type monotonicClock struct {
	start time.Time
}

// NewMonotonicClock returns a Clock measuring time elapsed since its creation.
func NewMonotonicClock() Clock {
	return monotonicClock{start: time.Now()}
}

// time.Since uses the monotonic reading carried by start.
func (c monotonicClock) Now() time.Duration {
	return time.Since(c.start)
}

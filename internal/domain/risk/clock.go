package risk

import "time"

// Clock interface for time operations (supports testing)
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using actual system time
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

// FixedClock implements Clock for testing. It always returns the same instant,
// so concurrent checks observe an identical "now".
type FixedClock struct {
	CurrentTime time.Time
}

func (f FixedClock) Now() time.Time {
	return f.CurrentTime
}

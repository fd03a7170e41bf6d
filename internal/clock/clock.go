// Package clock abstracts wall time so window and threshold comparisons are
// deterministic in tests and replay runs.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

type System struct{}

func (System) Now() time.Time {
	return time.Now()
}

// Fixed is a settable clock for tests and replay.
type Fixed struct {
	Time time.Time
}

func (f *Fixed) Now() time.Time {
	return f.Time
}

func (f *Fixed) Set(t time.Time) {
	f.Time = t
}

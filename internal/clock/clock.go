// Package clock abstracts the wall clock so calendar logic can be driven
// deterministically in tests. Production code uses System; tests use Fake.
package clock

import (
	"sync"
	"time"
)

// Clock supplies the current instant to calendar and scheduling logic.
type Clock interface {
	// Now returns the current local time.
	Now() time.Time
}

// System is the production clock backed by time.Now.
type System struct{}

// Now returns the current local time.
func (System) Now() time.Time {
	return time.Now()
}

// Fake is a test clock holding a settable instant.
type Fake struct {
	// mu protects concurrent access to the stored instant.
	mu sync.Mutex
	// now is the instant returned by Now.
	now time.Time
}

// NewFake creates a fake clock frozen at the provided instant.
func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

// Now returns the currently configured instant.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.now
}

// Set moves the clock to the provided instant.
func (f *Fake) Set(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.now = now
}

// Advance moves the clock forward by the provided duration.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.now = f.now.Add(d)
}

package sensor

import (
	"sync"
	"time"

	"github.com/sweeney/ferment-control/internal/control"
)

// Fake is a test double whose reading and broadcast time are set directly.
type Fake struct {
	mu      sync.Mutex
	reading control.Reading
	seen    bool
	lastAt  time.Time

	// Closed tracks if Close was called.
	Closed bool
}

// NewFake creates a Fake with no reading yet.
func NewFake() *Fake {
	return &Fake{}
}

// Set records a reading and marks it as broadcast at the reading's time.
func (f *Fake) Set(reading control.Reading) {
	f.mu.Lock()
	f.reading = reading
	f.seen = true
	f.lastAt = reading.At
	f.mu.Unlock()
}

// SetLastBroadcast overrides the broadcast time without changing the reading.
func (f *Fake) SetLastBroadcast(at time.Time) {
	f.mu.Lock()
	f.lastAt = at
	f.mu.Unlock()
}

// Latest returns the configured reading.
func (f *Fake) Latest() (control.Reading, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reading, f.seen
}

// LastBroadcast returns the configured broadcast time.
func (f *Fake) LastBroadcast() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAt
}

// Close marks the fake as closed.
func (f *Fake) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

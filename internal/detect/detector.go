// Package detect decides whether a save file change should create a new
// snapshot generation or amend the most recent one, by debouncing change
// events per profile against a configurable threshold.
package detect

import (
	"sync"
	"time"

	"github.com/savesentry/savesentry/internal/profile"
)

// Action is the outcome of a debounce decision.
type Action int

const (
	// Create requests a new snapshot generation.
	Create Action = iota
	// Amend requests overwriting the most recent snapshot in place.
	Amend
)

// String implements fmt.Stringer.
func (a Action) String() string {
	if a == Amend {
		return "amend"
	}
	return "create"
}

// Detector holds per-profile debounce state. A player typically triggers
// several save writes within one room transition; coalescing them keeps
// the snapshot history to one entry per "moment" while still capturing
// the final state.
type Detector struct {
	threshold time.Duration
	now       func() time.Time

	mu   sync.Mutex
	last map[profile.ID]time.Time
}

// Option configures a Detector.
type Option func(*Detector)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		d.now = now
	}
}

// New creates a Detector with the given debounce threshold.
func New(threshold time.Duration, opts ...Option) *Detector {
	d := &Detector{
		threshold: threshold,
		now:       time.Now,
		last:      make(map[profile.ID]time.Time),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decide returns the action for a qualifying change event on the
// profile. The first event of a session, or an event at least the
// threshold after the previous one, yields Create; anything sooner
// yields Amend. Every call updates the profile's timestamp regardless of
// branch, so a long burst of events keeps extending the amend window
// rather than re-arming the create path mid-burst.
func (d *Detector) Decide(id profile.ID) Action {
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	last, seen := d.last[id]
	d.last[id] = now

	if !seen || now.Sub(last) >= d.threshold {
		return Create
	}
	return Amend
}

// Reset clears the debounce state for a profile, so the next qualifying
// event starts a new generation rather than amending the last one.
func (d *Detector) Reset(id profile.ID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.last, id)
}

// Threshold returns the configured debounce threshold.
func (d *Detector) Threshold() time.Duration {
	return d.threshold
}

// Package relay owns per-relay command bookkeeping: the gate that filters
// redundant, duplicate, and rate-limited requests, and the dispatcher that
// submits accepted commands to the actuator channel and reconciles results
// back into relay state.
package relay

import (
	"time"

	"github.com/sweeney/ferment-control/internal/control"
)

// DefaultRateLimitWindow is the backstop between identical (relay, action)
// commands. State checks, not timers, make the core redundancy decision;
// this only caps command frequency against a flapping input.
const DefaultRateLimitWindow = 10 * time.Second

// Reason explains why the gate rejected a request.
type Reason string

const (
	ReasonAccepted    Reason = ""
	ReasonRedundant   Reason = "redundant"    // last-known state already matches
	ReasonPending     Reason = "pending"      // identical command already in flight
	ReasonRateLimited Reason = "rate_limited" // identical command sent too recently
)

// State is the authoritative bookkeeping for one relay. KnownOn reflects
// only confirmed actuator responses, never commands merely sent.
type State struct {
	KnownOn       bool
	Pending       bool
	PendingAction control.Action
	PendingSince  time.Time
	LastCommandAt time.Time
	LastAction    control.Action

	// token identifies the current in-flight request; results carrying any
	// other token are stale and discarded.
	token uint64
}

// Gate decides whether a requested relay action should be sent.
type Gate struct {
	// RateLimitWindow between identical (relay, action) sends. Zero
	// disables the backstop.
	RateLimitWindow time.Duration
}

// ShouldSend applies the gate checks in order: pending, redundant-state,
// rate limit. The pending branch must run first: an in-flight command
// implies KnownOn still holds the pre-command state, so a request for the
// opposite action always looks redundant against KnownOn even though it is
// the one case that must go through — a supersession. The superseded
// command cannot be retracted, but its late result will be discarded by
// token mismatch.
func (g Gate) ShouldSend(st *State, action control.Action, now time.Time) (bool, Reason) {
	if st.Pending {
		if st.PendingAction == action {
			return false, ReasonPending
		}
		return true, ReasonAccepted
	}

	if action == control.ActionOn && st.KnownOn {
		return false, ReasonRedundant
	}
	if action == control.ActionOff && !st.KnownOn {
		return false, ReasonRedundant
	}

	if g.RateLimitWindow > 0 && st.LastAction == action && !st.LastCommandAt.IsZero() &&
		now.Sub(st.LastCommandAt) < g.RateLimitWindow {
		return false, ReasonRateLimited
	}

	return true, ReasonAccepted
}

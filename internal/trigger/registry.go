// Package trigger holds the one-shot notification arming flags.
// Each flag means "the event for the current occurrence of this condition
// has not been emitted yet". Flags are runtime state owned by the control
// loop: they live here, outside the on-disk configuration record, so a
// config reload can never reset them.
package trigger

// Flag identifies one of the arming flags.
type Flag int

const (
	// Temperature-limit triggers.
	BelowLimit Flag = iota
	AboveLimit
	InRange

	// Sensor-liveness safety triggers.
	HeatingBlocked
	CoolingBlocked
	HeatingSafetyOff
	CoolingSafetyOff

	numFlags
)

// String returns the flag name used in logs and status payloads.
func (f Flag) String() string {
	switch f {
	case BelowLimit:
		return "below_limit"
	case AboveLimit:
		return "above_limit"
	case InRange:
		return "in_range"
	case HeatingBlocked:
		return "heating_blocked"
	case CoolingBlocked:
		return "cooling_blocked"
	case HeatingSafetyOff:
		return "heating_safety_off"
	case CoolingSafetyOff:
		return "cooling_safety_off"
	}
	return "unknown"
}

// Flags is a value snapshot of all seven arming flags.
type Flags struct {
	BelowLimit       bool
	AboveLimit       bool
	InRange          bool
	HeatingBlocked   bool
	CoolingBlocked   bool
	HeatingSafetyOff bool
	CoolingSafetyOff bool
}

// Registry tracks the armed/disarmed state of every flag.
// Not safe for concurrent use — the control tick goroutine is the only
// mutator, matching the shared-state ownership of the rest of the loop.
type Registry struct {
	armed [numFlags]bool
}

// NewRegistry returns a registry with every flag armed.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.armed {
		r.armed[i] = true
	}
	return r
}

// Fire disarms the flag and reports whether it was armed.
// A true return means the caller should emit exactly one event; a false
// return means the event for this occurrence was already emitted.
func (r *Registry) Fire(f Flag) bool {
	if !r.armed[f] {
		return false
	}
	r.armed[f] = false
	return true
}

// Arm re-arms the flag. Arming an already-armed flag is a no-op.
func (r *Registry) Arm(f Flag) {
	r.armed[f] = true
}

// Armed reports whether the flag is currently armed.
func (r *Registry) Armed(f Flag) bool {
	return r.armed[f]
}

// Snapshot returns a value copy of all flags for status reporting.
func (r *Registry) Snapshot() Flags {
	return Flags{
		BelowLimit:       r.armed[BelowLimit],
		AboveLimit:       r.armed[AboveLimit],
		InRange:          r.armed[InRange],
		HeatingBlocked:   r.armed[HeatingBlocked],
		CoolingBlocked:   r.armed[CoolingBlocked],
		HeatingSafetyOff: r.armed[HeatingSafetyOff],
		CoolingSafetyOff: r.armed[CoolingSafetyOff],
	}
}

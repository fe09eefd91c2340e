// Package control contains pure business logic for fermentation temperature
// control: the threshold policy that decides relay actions, the trigger
// evaluation that decides one-shot notification events, and the sensor
// liveness guard. This package has NO external dependencies (no MQTT, GPIO,
// OS, or time.Sleep). Time is always injectable via time.Time parameters.
//
// Relay actions are derived purely from temperature vs. limits and are
// re-derived every tick; trigger flags gate only the notification side
// effect, never the command itself. The two decisions are deliberately
// separate functions so one can never gate the other.
package control

import (
	"time"

	"github.com/sweeney/ferment-control/internal/trigger"
)

// RelayID identifies a controlled relay.
type RelayID string

const (
	RelayHeating RelayID = "heating"
	RelayCooling RelayID = "cooling"
)

// Action is a desired relay transition.
type Action string

const (
	ActionOn   Action = "on"
	ActionOff  Action = "off"
	ActionNone Action = "unchanged"
)

// Reading is a single temperature observation from the assigned sensor.
// Gravity is carried along for status reporting only; it plays no part
// in control decisions.
type Reading struct {
	Temperature float64
	Gravity     float64
	At          time.Time
}

// Limits is the slice of configuration the policy needs: the temperature
// band and the per-relay enable switches. Low <= High is a configuration
// assumption, not a runtime invariant — see the package tests for the
// documented behavior when it is violated.
type Limits struct {
	Low            float64
	High           float64
	HeatingEnabled bool
	CoolingEnabled bool
}

// Decision is the desired relay state pair for one tick.
type Decision struct {
	Heating Action
	Cooling Action
}

// EventName identifies a fired trigger event.
type EventName string

const (
	EventBelowLowLimit  EventName = "temp_below_low_limit"
	EventAboveHighLimit EventName = "temp_above_high_limit"
	EventBackInRange    EventName = "temp_back_in_range"
	EventHeatingBlocked EventName = "heating_blocked_sensor_stale"
	EventCoolingBlocked EventName = "cooling_blocked_sensor_stale"
	EventHeatingSafety  EventName = "heating_safety_off"
	EventCoolingSafety  EventName = "cooling_safety_off"
)

// Event is a fired trigger event, handed to the event sink for logging
// and notification delivery. The core decides whether to fire, never how
// the event is delivered.
type Event struct {
	Name        EventName
	Relay       RelayID // empty for temperature-limit events
	Temperature float64
	Low         float64
	High        float64
	At          time.Time
}

// flagForSafety maps a safety event to its arming flag.
var safetyFlags = map[EventName]trigger.Flag{
	EventHeatingBlocked: trigger.HeatingBlocked,
	EventCoolingBlocked: trigger.CoolingBlocked,
	EventHeatingSafety:  trigger.HeatingSafetyOff,
	EventCoolingSafety:  trigger.CoolingSafetyOff,
}

package control

import (
	"time"

	"github.com/sweeney/ferment-control/internal/trigger"
)

// DecideRelayActions computes the desired relay states for one tick from
// the current temperature and configured limits. It is a pure function of
// its inputs: trigger-arming state never influences the result.
//
// Heating turns on at or below the low limit, off at or above the high
// limit, and is left unchanged strictly between. Cooling mirrors heating
// with the limits swapped. A disabled relay is unconditionally off.
//
// Evaluation order checks the low limit before the high limit; when a
// misconfigured band has Low > High this order decides the outcome, and
// that is accepted as a setup error rather than guarded against.
func DecideRelayActions(temp float64, limits Limits) Decision {
	d := Decision{Heating: ActionOff, Cooling: ActionOff}

	if limits.HeatingEnabled {
		switch {
		case temp <= limits.Low:
			d.Heating = ActionOn
		case temp >= limits.High:
			d.Heating = ActionOff
		default:
			d.Heating = ActionNone
		}
	}

	if limits.CoolingEnabled {
		switch {
		case temp <= limits.Low:
			d.Cooling = ActionOff
		case temp >= limits.High:
			d.Cooling = ActionOn
		default:
			d.Cooling = ActionNone
		}
	}

	return d
}

// DecideTriggerEvents evaluates the temperature-limit triggers for one tick
// and returns the events to emit. It mutates only the arming flags in reg,
// never any relay state, and runs only when at least one relay is enabled.
//
// Each limit trigger fires at most once per unbroken occurrence of its
// condition: the below-limit trigger disarms on first fire and re-arms only
// when the temperature reaches the high limit (and vice versa), so a bounce
// that never reaches the opposite limit stays silent. The in-range trigger
// fires once when the temperature is strictly inside the band after a limit
// event has fired, and re-arms whenever the temperature leaves the band.
func DecideTriggerEvents(reading Reading, limits Limits, reg *trigger.Registry) []trigger.Flag {
	if !limits.HeatingEnabled && !limits.CoolingEnabled {
		return nil
	}

	var fired []trigger.Flag
	temp := reading.Temperature

	switch {
	case temp <= limits.Low:
		if reg.Fire(trigger.BelowLimit) {
			fired = append(fired, trigger.BelowLimit)
		}
		// Leaving the band resets the in-range one-shot; reaching the low
		// limit is what resolves the above-limit condition.
		reg.Arm(trigger.AboveLimit)
		reg.Arm(trigger.InRange)

	case temp >= limits.High:
		if reg.Fire(trigger.AboveLimit) {
			fired = append(fired, trigger.AboveLimit)
		}
		reg.Arm(trigger.BelowLimit)
		reg.Arm(trigger.InRange)

	default:
		// Strictly inside the band. Only report "back in range" after an
		// excursion actually fired, i.e. a limit trigger is disarmed.
		if !reg.Armed(trigger.BelowLimit) || !reg.Armed(trigger.AboveLimit) {
			if reg.Fire(trigger.InRange) {
				fired = append(fired, trigger.InRange)
			}
		}
	}

	return fired
}

// TriggerEvent builds the event payload for a fired temperature-limit flag.
func TriggerEvent(f trigger.Flag, reading Reading, limits Limits, now time.Time) Event {
	e := Event{
		Temperature: reading.Temperature,
		Low:         limits.Low,
		High:        limits.High,
		At:          now,
	}
	switch f {
	case trigger.BelowLimit:
		e.Name = EventBelowLowLimit
	case trigger.AboveLimit:
		e.Name = EventAboveHighLimit
	case trigger.InRange:
		e.Name = EventBackInRange
	}
	return e
}

// SafetyEvent builds the event payload for a fired sensor-liveness safety
// flag, firing it through reg first. It returns false when the flag was
// already disarmed (event already emitted for this outage).
func SafetyEvent(name EventName, relay RelayID, reading Reading, limits Limits, reg *trigger.Registry, now time.Time) (Event, bool) {
	f, ok := safetyFlags[name]
	if !ok || !reg.Fire(f) {
		return Event{}, false
	}
	return Event{
		Name:        name,
		Relay:       relay,
		Temperature: reading.Temperature,
		Low:         limits.Low,
		High:        limits.High,
		At:          now,
	}, true
}

// RearmSafety re-arms all four safety triggers. Called when the sensor is
// active again so the next outage reports exactly once.
func RearmSafety(reg *trigger.Registry) {
	reg.Arm(trigger.HeatingBlocked)
	reg.Arm(trigger.CoolingBlocked)
	reg.Arm(trigger.HeatingSafetyOff)
	reg.Arm(trigger.CoolingSafetyOff)
}

package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/ferment-control/internal/control"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Temperature   *float64   `json:"temperature,omitempty"`
	Gravity       *float64   `json:"gravity,omitempty"`
	ReadingAt     string     `json:"reading_at,omitempty"`
	SensorActive  bool       `json:"sensor_active"`
	Heating       RelayJSON  `json:"heating"`
	Cooling       RelayJSON  `json:"cooling"`
	Triggers      FlagsJSON  `json:"triggers_armed"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Counts        CountsJSON `json:"counts"`
	Config        ConfigJSON `json:"config"`
}

// RelayJSON is the JSON representation of one relay's state.
type RelayJSON struct {
	On            bool   `json:"on"`
	Pending       bool   `json:"pending"`
	PendingAction string `json:"pending_action,omitempty"`
	LastCommandAt string `json:"last_command_at,omitempty"`
}

// FlagsJSON is the JSON representation of the arming flags.
type FlagsJSON struct {
	BelowLimit       bool `json:"below_limit"`
	AboveLimit       bool `json:"above_limit"`
	InRange          bool `json:"in_range"`
	HeatingBlocked   bool `json:"heating_blocked"`
	CoolingBlocked   bool `json:"cooling_blocked"`
	HeatingSafetyOff bool `json:"heating_safety_off"`
	CoolingSafetyOff bool `json:"cooling_safety_off"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of loop totals.
type CountsJSON struct {
	Ticks          int `json:"ticks"`
	CommandsSent   int `json:"commands_sent"`
	TriggersFired  int `json:"triggers_fired"`
	StaleSensorTks int `json:"stale_sensor_ticks"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs    int64   `json:"tick_ms"`
	Broker    string  `json:"broker"`
	SensorID  string  `json:"sensor_id,omitempty"`
	LowLimit  float64 `json:"low_limit"`
	HighLimit float64 `json:"high_limit"`
	Heating   bool    `json:"enable_heating"`
	Cooling   bool    `json:"enable_cooling"`
}

func relayJSON(snap Snapshot, id control.RelayID) RelayJSON {
	v, ok := snap.Relays[id]
	if !ok {
		return RelayJSON{}
	}
	out := RelayJSON{
		On:            v.KnownOn,
		Pending:       v.Pending,
		PendingAction: string(v.PendingAction),
	}
	if !v.LastCommandAt.IsZero() {
		out.LastCommandAt = v.LastCommandAt.UTC().Format(time.RFC3339)
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		SensorActive:  snap.SensorActive,
		Heating:       relayJSON(snap, control.RelayHeating),
		Cooling:       relayJSON(snap, control.RelayCooling),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Triggers: FlagsJSON{
			BelowLimit:       snap.Flags.BelowLimit,
			AboveLimit:       snap.Flags.AboveLimit,
			InRange:          snap.Flags.InRange,
			HeatingBlocked:   snap.Flags.HeatingBlocked,
			CoolingBlocked:   snap.Flags.CoolingBlocked,
			HeatingSafetyOff: snap.Flags.HeatingSafetyOff,
			CoolingSafetyOff: snap.Flags.CoolingSafetyOff,
		},
		Counts: CountsJSON{
			Ticks:          snap.Counts.Ticks,
			CommandsSent:   snap.Counts.CommandsSent,
			TriggersFired:  snap.Counts.TriggersFired,
			StaleSensorTks: snap.Counts.StaleSensorTks,
		},
		Config: ConfigJSON{
			TickMs:    snap.Config.TickMs,
			Broker:    snap.Config.Broker,
			SensorID:  snap.Config.SensorID,
			LowLimit:  snap.Config.LowLimit,
			HighLimit: snap.Config.HighLimit,
			Heating:   snap.Config.Heating,
			Cooling:   snap.Config.Cooling,
		},
	}

	if snap.HaveReading {
		temp, sg := snap.Temperature, snap.Gravity
		inner.Temperature = &temp
		inner.Gravity = &sg
		inner.ReadingAt = snap.ReadingAt.UTC().Format(time.RFC3339)
	}
	return inner
}

// FormatJSON returns the indented JSON status for diagnostics.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

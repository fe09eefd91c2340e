// Package mqtt publishes controller events with abstraction for testing.
// It is the event sink's transport leg: fired trigger events go to the
// events topic for the notification bridge, retained system snapshots go
// to the system topic. The core decides whether to fire; delivery lives here.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/ferment-control/internal/control"
)

// TopicEvents is the MQTT topic for fired trigger events.
const TopicEvents = "fermentation/events"

// TopicSystem is the MQTT topic for system lifecycle/status events.
const TopicSystem = "fermentation/system"

// Publisher publishes controller events to MQTT.
type Publisher interface {
	// PublishEvent sends a fired trigger event to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishEvent(event control.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload is the MQTT message envelope for a trigger event.
type Payload struct {
	Event EventPayload `json:"event"`
}

// EventPayload contains the fired trigger details.
type EventPayload struct {
	Timestamp   string  `json:"timestamp"`
	Name        string  `json:"name"`
	Relay       string  `json:"relay,omitempty"`
	Temperature float64 `json:"temperature"`
	LowLimit    float64 `json:"low_limit"`
	HighLimit   float64 `json:"high_limit"`
}

// FormatPayload creates the JSON payload for a trigger event.
func FormatPayload(event control.Event) ([]byte, error) {
	payload := Payload{
		Event: EventPayload{
			Timestamp:   event.At.UTC().Format(time.RFC3339),
			Name:        string(event.Name),
			Relay:       string(event.Relay),
			Temperature: event.Temperature,
			LowLimit:    event.Low,
			HighLimit:   event.High,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload is the MQTT envelope for simple system events that don't
// carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/ferment-control/internal/control"
)

func TestFormatPayload(t *testing.T) {
	event := control.Event{
		Name:        control.EventBelowLowLimit,
		Temperature: 62.4,
		Low:         64,
		High:        66,
		At:          time.Date(2026, 3, 2, 22, 18, 12, 0, time.UTC),
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Event.Timestamp != "2026-03-02T22:18:12Z" {
		t.Errorf("unexpected timestamp: %s", parsed.Event.Timestamp)
	}
	if parsed.Event.Name != "temp_below_low_limit" {
		t.Errorf("unexpected name: %s", parsed.Event.Name)
	}
	if parsed.Event.Temperature != 62.4 {
		t.Errorf("unexpected temperature: %v", parsed.Event.Temperature)
	}
	if parsed.Event.LowLimit != 64 || parsed.Event.HighLimit != 66 {
		t.Errorf("unexpected limits: %v/%v", parsed.Event.LowLimit, parsed.Event.HighLimit)
	}
	if parsed.Event.Relay != "" {
		t.Errorf("limit events carry no relay, got %q", parsed.Event.Relay)
	}
}

func TestFormatPayloadSafetyEventCarriesRelay(t *testing.T) {
	event := control.Event{
		Name:        control.EventHeatingSafety,
		Relay:       control.RelayHeating,
		Temperature: 65,
		Low:         64,
		High:        66,
		At:          time.Date(2026, 3, 2, 22, 18, 12, 0, time.UTC),
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Event.Name != "heating_safety_off" {
		t.Errorf("unexpected name: %s", parsed.Event.Name)
	}
	if parsed.Event.Relay != "heating" {
		t.Errorf("unexpected relay: %s", parsed.Event.Relay)
	}
}

func TestFormatSystemPayload(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 3, 2, 22, 18, 12, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed SystemPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.System.Event != "SHUTDOWN" {
		t.Errorf("unexpected event: %s", parsed.System.Event)
	}
	if parsed.System.Reason != "SIGTERM" {
		t.Errorf("unexpected reason: %s", parsed.System.Reason)
	}
	if parsed.System.Timestamp != "2026-03-02T22:18:12Z" {
		t.Errorf("unexpected timestamp: %s", parsed.System.Timestamp)
	}
}

func TestFormatSystemPayloadRawPassthrough(t *testing.T) {
	raw := []byte(`{"status":{"custom":true}}`)
	payload, err := FormatSystemPayload(SystemEvent{RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("raw payload should pass through, got %s", payload)
	}
}

func TestFakePublisherRecordsEvents(t *testing.T) {
	f := NewFakePublisher()

	event := control.Event{
		Name:        control.EventBackInRange,
		Temperature: 65,
		Low:         64,
		High:        66,
		At:          time.Now(),
	}
	if err := f.PublishEvent(event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.Events) != 1 || f.Events[0].Name != control.EventBackInRange {
		t.Errorf("unexpected recorded events: %+v", f.Events)
	}
	if len(f.Payloads) != 1 {
		t.Errorf("expected 1 payload, got %d", len(f.Payloads))
	}
}

func TestFakePublisherErrors(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("broker down")

	err := f.PublishEvent(control.Event{Name: control.EventBelowLowLimit})
	if err == nil {
		t.Fatal("expected publish error")
	}
	if len(f.Events) != 0 {
		t.Error("failed publish should not be recorded")
	}
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.PublishEvent(control.Event{Name: control.EventBelowLowLimit})
	f.PublishSystem(SystemEvent{Event: "STARTUP"})
	f.Connected = true

	f.Reset()
	if len(f.Events) != 0 || len(f.SystemEvents) != 0 || f.Connected {
		t.Error("reset should clear all recorded state")
	}
}

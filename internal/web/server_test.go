package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/ferment-control/internal/control"
	"github.com/sweeney/ferment-control/internal/relay"
	"github.com/sweeney/ferment-control/internal/status"
	"github.com/sweeney/ferment-control/internal/trigger"
)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		TickMs:    60000,
		Broker:    "tcp://192.168.1.200:1883",
		SensorID:  "orange",
		LowLimit:  18,
		HighLimit: 20,
		Heating:   true,
		Cooling:   true,
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, tr
}

func TestStatusEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)

	reading := control.Reading{Temperature: 19.2, Gravity: 1.012, At: time.Date(2026, 3, 1, 0, 5, 0, 0, time.UTC)}
	relays := map[control.RelayID]relay.View{
		control.RelayHeating: {KnownOn: true},
		control.RelayCooling: {Pending: true, PendingAction: control.ActionOff},
	}
	tr.UpdateTick(reading, true, true, relays, trigger.Flags{BelowLimit: true, AboveLimit: true, InRange: true})
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/status.json")
	if err != nil {
		t.Fatalf("GET /status.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if sj.Status.Temperature == nil || *sj.Status.Temperature != 19.2 {
		t.Errorf("temperature: got %v, want 19.2", sj.Status.Temperature)
	}
	if !sj.Status.SensorActive {
		t.Error("expected sensor_active=true")
	}
	if !sj.Status.Heating.On {
		t.Error("expected heating.on=true")
	}
	if !sj.Status.Cooling.Pending || sj.Status.Cooling.PendingAction != "off" {
		t.Errorf("cooling: got %+v, want pending off", sj.Status.Cooling)
	}
	if !sj.Status.Triggers.BelowLimit || sj.Status.Triggers.HeatingBlocked {
		t.Errorf("triggers: got %+v", sj.Status.Triggers)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected mqtt.connected=true")
	}
	if sj.Status.Config.SensorID != "orange" {
		t.Errorf("config.sensor_id: got %q", sj.Status.Config.SensorID)
	}
	if sj.Status.Config.LowLimit != 18 || sj.Status.Config.HighLimit != 20 {
		t.Errorf("config band: got %v..%v", sj.Status.Config.LowLimit, sj.Status.Config.HighLimit)
	}
}

func TestStatusEndpointNoReading(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/status.json")
	if err != nil {
		t.Fatalf("GET /status.json: %v", err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if sj.Status.Temperature != nil {
		t.Errorf("temperature should be omitted before first reading, got %v", *sj.Status.Temperature)
	}
	if sj.Status.ReadingAt != "" {
		t.Errorf("reading_at should be empty, got %q", sj.Status.ReadingAt)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "# HELP") {
		t.Error("expected Prometheus exposition format")
	}
}

func TestUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatalf("GET /nope: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

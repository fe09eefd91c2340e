// Package status provides a thread-safe status tracker for the
// ferment-control daemon. Snapshots are published as retained MQTT system
// events so a dashboard or a quick mosquitto_sub can see the controller
// state without touching the process.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/ferment-control/internal/control"
	"github.com/sweeney/ferment-control/internal/relay"
	"github.com/sweeney/ferment-control/internal/trigger"
)

// Config contains daemon configuration for display.
type Config struct {
	TickMs    int64
	Broker    string
	SensorID  string
	LowLimit  float64
	HighLimit float64
	Heating   bool
	Cooling   bool
}

// Counts tracks control-loop totals since startup.
type Counts struct {
	Ticks          int
	CommandsSent   int
	TriggersFired  int
	StaleSensorTks int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	Temperature   float64
	Gravity       float64
	ReadingAt     time.Time
	HaveReading   bool
	SensorActive  bool
	Relays        map[control.RelayID]relay.View
	Flags         trigger.Flags
	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime:    startTime,
			SensorActive: true,
			Config:       cfg,
		},
	}
}

// UpdateTick records the state of one completed control tick.
func (t *Tracker) UpdateTick(reading control.Reading, haveReading, sensorActive bool, relays map[control.RelayID]relay.View, flags trigger.Flags) {
	t.mu.Lock()
	t.snap.Temperature = reading.Temperature
	t.snap.Gravity = reading.Gravity
	t.snap.ReadingAt = reading.At
	t.snap.HaveReading = haveReading
	t.snap.SensorActive = sensorActive
	t.snap.Relays = relays
	t.snap.Flags = flags
	t.snap.Counts.Ticks++
	if !sensorActive {
		t.snap.Counts.StaleSensorTks++
	}
	t.mu.Unlock()
}

// AddCommands bumps the sent-command total.
func (t *Tracker) AddCommands(n int) {
	t.mu.Lock()
	t.snap.Counts.CommandsSent += n
	t.mu.Unlock()
}

// AddTriggers bumps the fired-trigger total.
func (t *Tracker) AddTriggers(n int) {
	t.mu.Lock()
	t.snap.Counts.TriggersFired += n
	t.mu.Unlock()
}

// SetConfig refreshes the displayed configuration after a reload.
func (t *Tracker) SetConfig(cfg Config) {
	t.mu.Lock()
	t.snap.Config = cfg
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}

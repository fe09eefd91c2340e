// Package engine runs the periodic control tick: reload configuration,
// gate on sensor liveness, evaluate the threshold policy, fire one-shot
// triggers, and ask the relay dispatcher to realize the desired states.
// Actuator results are applied by a separate listener goroutine, so a tick
// never blocks on device I/O.
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/ferment-control/internal/actuator"
	"github.com/sweeney/ferment-control/internal/config"
	"github.com/sweeney/ferment-control/internal/control"
	"github.com/sweeney/ferment-control/internal/journal"
	"github.com/sweeney/ferment-control/internal/metrics"
	"github.com/sweeney/ferment-control/internal/mqtt"
	"github.com/sweeney/ferment-control/internal/relay"
	"github.com/sweeney/ferment-control/internal/sensor"
	"github.com/sweeney/ferment-control/internal/status"
	"github.com/sweeney/ferment-control/internal/trigger"
)

// Deps are the engine's collaborators. Journal and Tracker are optional;
// everything else is required.
type Deps struct {
	Store      *config.Store
	Feed       sensor.Feed
	Dispatcher *relay.Dispatcher
	Registry   *trigger.Registry
	Publisher  mqtt.Publisher
	Results    <-chan actuator.Result
	Journal    *journal.Journal
	Tracker    *status.Tracker
	Logger     *zap.Logger

	// Interval between control ticks; read once at startup.
	Interval time.Duration

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// Engine coordinates the control loop.
type Engine struct {
	d Deps
}

// New creates an engine from its collaborators.
func New(d Deps) *Engine {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Interval <= 0 {
		d.Interval = time.Minute
	}
	return &Engine{d: d}
}

// Run drives ticks until ctx is cancelled. The result listener runs on its
// own goroutine and applies actuator results in arrival order, which may be
// several ticks after the request was submitted.
func (e *Engine) Run(ctx context.Context) {
	go e.listenResults(ctx)

	e.d.Logger.Info("control loop starting", zap.Duration("interval", e.d.Interval))
	ticker := time.NewTicker(e.d.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.d.Logger.Info("control loop exiting")
			return
		case <-ticker.C:
			e.safeTick()
		}
	}
}

func (e *Engine) listenResults(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-e.d.Results:
			if !ok {
				return
			}
			e.d.Dispatcher.OnResult(res)
		}
	}
}

// safeTick isolates the loop from a panicking tick: one bad evaluation must
// not terminate the process.
func (e *Engine) safeTick() {
	defer func() {
		if r := recover(); r != nil {
			e.d.Logger.Error("control tick panicked", zap.Any("panic", r))
		}
	}()
	e.Tick(e.d.Now())
}

// Tick executes one control cycle at the given time. Exported for tests;
// Run is the production entry point.
func (e *Engine) Tick(now time.Time) {
	cfg, err := e.d.Store.Load()
	if err != nil {
		if cfg == nil {
			e.d.Logger.Error("no usable configuration, skipping tick", zap.Error(err))
			return
		}
		e.d.Logger.Warn("config reload failed, using last good snapshot", zap.Error(err))
	}
	if e.d.Tracker != nil {
		e.d.Tracker.SetConfig(trackerConfig(cfg))
	}

	limits := cfg.Limits()
	reading, haveReading := e.d.Feed.Latest()

	staleThreshold := 2 * cfg.TickInterval.Std()
	active := control.SensorActive(cfg.SensorID, e.d.Feed.LastBroadcast(), cfg.SensorAssignedAt, now, staleThreshold)

	var sent, fired int
	if active {
		control.RearmSafety(e.d.Registry)
		if haveReading {
			sent, fired = e.controlTick(reading, limits, now)
		} else {
			e.d.Logger.Debug("no reading yet, control idle")
		}
	} else {
		metrics.SensorStaleTicks.Inc()
		sent, fired = e.safetyShutdown(reading, haveReading, limits, now)
	}

	metrics.Ticks.Inc()
	if e.d.Tracker != nil {
		e.d.Tracker.UpdateTick(reading, haveReading, active, e.d.Dispatcher.Snapshot(), e.d.Registry.Snapshot())
		e.d.Tracker.AddCommands(sent)
		e.d.Tracker.AddTriggers(fired)
	}
}

// controlTick is the normal path: policy decides relay actions and trigger
// events independently — a disarmed trigger never suppresses a command and
// a gated command never suppresses an event.
func (e *Engine) controlTick(reading control.Reading, limits control.Limits, now time.Time) (sent, fired int) {
	decision := control.DecideRelayActions(reading.Temperature, limits)

	for _, f := range control.DecideTriggerEvents(reading, limits, e.d.Registry) {
		e.emit(control.TriggerEvent(f, reading, limits, now))
		fired++
	}

	sent += e.request(control.RelayHeating, decision.Heating, now)
	sent += e.request(control.RelayCooling, decision.Cooling, now)
	return sent, fired
}

// safetyShutdown forces both relays to the safe off state while the sensor
// is inactive. A relay that was confirmed on gets a safety-off event; a
// relay the policy wanted to turn on gets a blocked event. Each fires once
// per outage and re-arms when the sensor comes back.
func (e *Engine) safetyShutdown(reading control.Reading, haveReading bool, limits control.Limits, now time.Time) (sent, fired int) {
	wanted := control.Decision{Heating: control.ActionNone, Cooling: control.ActionNone}
	if haveReading {
		wanted = control.DecideRelayActions(reading.Temperature, limits)
	}

	type relayCase struct {
		id       control.RelayID
		wantedOn bool
		safety   control.EventName
		blocked  control.EventName
	}
	cases := []relayCase{
		{control.RelayHeating, wanted.Heating == control.ActionOn, control.EventHeatingSafety, control.EventHeatingBlocked},
		{control.RelayCooling, wanted.Cooling == control.ActionOn, control.EventCoolingSafety, control.EventCoolingBlocked},
	}

	for _, c := range cases {
		if e.d.Dispatcher.KnownOn(c.id) {
			sent += e.request(c.id, control.ActionOff, now)
			if ev, ok := control.SafetyEvent(c.safety, c.id, reading, limits, e.d.Registry, now); ok {
				e.emit(ev)
				fired++
			}
			continue
		}
		if c.wantedOn {
			if ev, ok := control.SafetyEvent(c.blocked, c.id, reading, limits, e.d.Registry, now); ok {
				e.emit(ev)
				fired++
			}
		}
	}
	return sent, fired
}

func (e *Engine) request(id control.RelayID, action control.Action, now time.Time) int {
	if action != control.ActionOn && action != control.ActionOff {
		return 0
	}
	if !e.d.Dispatcher.Request(id, action, now) {
		return 0
	}
	if e.d.Journal != nil {
		e.d.Journal.RecordCommand(id, action, now)
	}
	return 1
}

// emit delivers a fired trigger event to every sink. Delivery failures are
// logged, never propagated: the one-shot has fired and control continues.
func (e *Engine) emit(ev control.Event) {
	metrics.TriggersFired.WithLabelValues(string(ev.Name)).Inc()
	e.d.Logger.Info("trigger fired",
		zap.String("event", string(ev.Name)),
		zap.String("relay", string(ev.Relay)),
		zap.Float64("temperature", ev.Temperature),
		zap.Float64("low_limit", ev.Low),
		zap.Float64("high_limit", ev.High))

	if err := e.d.Publisher.PublishEvent(ev); err != nil {
		e.d.Logger.Error("event publish failed", zap.String("event", string(ev.Name)), zap.Error(err))
	}
	if e.d.Journal != nil {
		e.d.Journal.RecordEvent(ev)
	}
}

func trackerConfig(cfg *config.Config) status.Config {
	return status.Config{
		TickMs:    cfg.TickInterval.Std().Milliseconds(),
		Broker:    cfg.Broker,
		SensorID:  cfg.SensorID,
		LowLimit:  cfg.LowLimit,
		HighLimit: cfg.HighLimit,
		Heating:   cfg.EnableHeating,
		Cooling:   cfg.EnableCooling,
	}
}

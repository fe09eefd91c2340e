package relay

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/ferment-control/internal/actuator"
	"github.com/sweeney/ferment-control/internal/control"
	"github.com/sweeney/ferment-control/internal/metrics"
)

// Submitter is the slice of the actuator channel the dispatcher needs.
type Submitter interface {
	Submit(cmd actuator.Command) error
}

// View is a value snapshot of one relay's state for status reporting.
type View struct {
	KnownOn       bool
	Pending       bool
	PendingAction control.Action
	PendingSince  time.Time
	LastCommandAt time.Time
}

// Dispatcher realizes desired relay states through the actuator channel.
// It is safe for use by the control tick goroutine and the result-listener
// goroutine concurrently; all state lives behind one mutex.
type Dispatcher struct {
	mu     sync.Mutex
	gate   Gate
	states map[control.RelayID]*State
	ch     Submitter
	lg     *zap.Logger
}

// NewDispatcher creates a dispatcher with both relays in the default
// known-off state.
func NewDispatcher(ch Submitter, lg *zap.Logger) *Dispatcher {
	return &Dispatcher{
		gate: Gate{RateLimitWindow: DefaultRateLimitWindow},
		states: map[control.RelayID]*State{
			control.RelayHeating: {},
			control.RelayCooling: {},
		},
		ch: ch,
		lg: lg,
	}
}

// SetRateLimitWindow overrides the gate's backstop window.
func (d *Dispatcher) SetRateLimitWindow(w time.Duration) {
	d.mu.Lock()
	d.gate.RateLimitWindow = w
	d.mu.Unlock()
}

// Request asks for the relay to reach the given action. It returns true if
// a command was submitted, false if the gate suppressed it or submission
// failed. It never blocks on device I/O.
func (d *Dispatcher) Request(relay control.RelayID, action control.Action, now time.Time) bool {
	if action != control.ActionOn && action != control.ActionOff {
		return false
	}

	d.mu.Lock()
	st, ok := d.states[relay]
	if !ok {
		d.mu.Unlock()
		d.lg.Warn("request for unknown relay", zap.String("relay", string(relay)))
		return false
	}

	send, reason := d.gate.ShouldSend(st, action, now)
	if !send {
		d.mu.Unlock()
		metrics.CommandsSuppressed.WithLabelValues(string(relay), string(reason)).Inc()
		d.lg.Debug("command suppressed",
			zap.String("relay", string(relay)),
			zap.String("action", string(action)),
			zap.String("reason", string(reason)))
		return false
	}

	prevCommandAt, prevAction := st.LastCommandAt, st.LastAction
	st.token++
	st.Pending = true
	st.PendingAction = action
	st.PendingSince = now
	st.LastCommandAt = now
	st.LastAction = action
	cmd := actuator.NewCommand(relay, action, st.token, now)
	d.mu.Unlock()

	if err := d.ch.Submit(cmd); err != nil {
		// Nothing is in flight if the transport refused the command; clear
		// pending and roll back the rate-limit window so the next tick can
		// retry immediately.
		d.mu.Lock()
		if st.token == cmd.Token {
			st.Pending = false
			st.PendingAction = ""
			st.PendingSince = time.Time{}
			st.LastCommandAt = prevCommandAt
			st.LastAction = prevAction
		}
		d.mu.Unlock()
		metrics.CommandFailures.WithLabelValues(string(relay)).Inc()
		d.lg.Error("actuator submit failed",
			zap.String("relay", string(relay)),
			zap.String("action", string(action)),
			zap.Error(err))
		return false
	}

	metrics.CommandsSent.WithLabelValues(string(relay), string(action)).Inc()
	d.lg.Info("relay command sent",
		zap.String("relay", string(relay)),
		zap.String("action", string(action)),
		zap.Uint64("token", cmd.Token),
		zap.String("msg_id", cmd.MsgID.String()))
	return true
}

// OnResult applies an actuator result in arrival order. Results for a
// superseded request (token mismatch) are discarded so a late answer can
// never clobber the bookkeeping of a newer command. On success the relay's
// known state becomes what the device reported, not what was requested.
func (d *Dispatcher) OnResult(res actuator.Result) {
	d.mu.Lock()
	st, ok := d.states[res.Relay]
	if !ok {
		d.mu.Unlock()
		d.lg.Warn("result for unknown relay", zap.String("relay", string(res.Relay)))
		return
	}

	if res.Token != st.token {
		d.mu.Unlock()
		metrics.StaleResults.WithLabelValues(string(res.Relay)).Inc()
		d.lg.Debug("stale actuator result discarded",
			zap.String("relay", string(res.Relay)),
			zap.Uint64("result_token", res.Token),
			zap.Uint64("current_token", st.token))
		return
	}

	// The in-flight request has completed, success or not.
	st.Pending = false
	st.PendingAction = ""
	st.PendingSince = time.Time{}

	if res.Success {
		st.KnownOn = res.Observed
		d.mu.Unlock()
		d.lg.Info("relay state confirmed",
			zap.String("relay", string(res.Relay)),
			zap.Bool("on", res.Observed))
		return
	}
	d.mu.Unlock()

	// No internal retry: the next tick's policy evaluation re-issues the
	// desired action, and the gate will pass it because KnownOn is
	// unchanged and nothing is pending.
	metrics.CommandFailures.WithLabelValues(string(res.Relay)).Inc()
	d.lg.Warn("actuator command failed",
		zap.String("relay", string(res.Relay)),
		zap.String("action", string(res.Action)),
		zap.String("error", res.Err))
}

// KnownOn reports the last confirmed state for the relay.
func (d *Dispatcher) KnownOn(relay control.RelayID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if st, ok := d.states[relay]; ok {
		return st.KnownOn
	}
	return false
}

// Snapshot returns value copies of both relay states.
func (d *Dispatcher) Snapshot() map[control.RelayID]View {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[control.RelayID]View, len(d.states))
	for id, st := range d.states {
		out[id] = View{
			KnownOn:       st.KnownOn,
			Pending:       st.Pending,
			PendingAction: st.PendingAction,
			PendingSince:  st.PendingSince,
			LastCommandAt: st.LastCommandAt,
		}
	}
	return out
}

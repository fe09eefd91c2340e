package relay

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/ferment-control/internal/actuator"
	"github.com/sweeney/ferment-control/internal/control"
)

func newTestDispatcher() (*Dispatcher, *actuator.Fake) {
	ch := actuator.NewFake()
	d := NewDispatcher(ch, zap.NewNop())
	return d, ch
}

func TestRequestSubmitsAndMarksPending(t *testing.T) {
	d, ch := newTestDispatcher()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if !d.Request(control.RelayHeating, control.ActionOn, now) {
		t.Fatal("first request should be submitted")
	}

	cmds := ch.Submitted()
	if len(cmds) != 1 {
		t.Fatalf("expected 1 submitted command, got %d", len(cmds))
	}
	if cmds[0].Relay != control.RelayHeating || cmds[0].Action != control.ActionOn {
		t.Errorf("unexpected command: %+v", cmds[0])
	}

	view := d.Snapshot()[control.RelayHeating]
	if !view.Pending || view.PendingAction != control.ActionOn {
		t.Errorf("expected pending on, got %+v", view)
	}
	if view.KnownOn {
		t.Error("KnownOn must not be assumed from a sent command")
	}
}

// Gate idempotence: an immediate identical request after an accepted one is
// suppressed by the pending check.
func TestImmediateDuplicateSuppressed(t *testing.T) {
	d, ch := newTestDispatcher()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if !d.Request(control.RelayHeating, control.ActionOn, now) {
		t.Fatal("first request should be submitted")
	}
	if d.Request(control.RelayHeating, control.ActionOn, now) {
		t.Error("identical request while pending should be suppressed")
	}
	if len(ch.Submitted()) != 1 {
		t.Errorf("expected 1 submitted command, got %d", len(ch.Submitted()))
	}
}

func TestPendingSurvivesTicksUntilResult(t *testing.T) {
	d, ch := newTestDispatcher()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	d.Request(control.RelayHeating, control.ActionOn, now)
	// Several slow-actuator ticks later the command is still in flight.
	for i := 1; i <= 3; i++ {
		if d.Request(control.RelayHeating, control.ActionOn, now.Add(time.Duration(i)*time.Minute)) {
			t.Errorf("tick %d: in-flight command should suppress re-send", i)
		}
	}
	if len(ch.Submitted()) != 1 {
		t.Errorf("expected no command flooding, got %d commands", len(ch.Submitted()))
	}
}

func TestResultSuccessAppliesObservedState(t *testing.T) {
	d, ch := newTestDispatcher()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	d.Request(control.RelayCooling, control.ActionOn, now)
	token := ch.Submitted()[0].Token

	// Device reports OFF despite an "on" request: trust the device.
	d.OnResult(actuator.Result{Relay: control.RelayCooling, Action: control.ActionOn, Token: token, Success: true, Observed: false})

	view := d.Snapshot()[control.RelayCooling]
	if view.Pending {
		t.Error("pending should clear on result")
	}
	if view.KnownOn {
		t.Error("KnownOn must follow the observed state, not the requested action")
	}
}

func TestResultFailureLeavesKnownStateAndRetries(t *testing.T) {
	d, ch := newTestDispatcher()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	d.Request(control.RelayHeating, control.ActionOn, now)
	token := ch.Submitted()[0].Token
	d.OnResult(actuator.Result{Relay: control.RelayHeating, Action: control.ActionOn, Token: token, Success: false, Err: "plug timeout"})

	view := d.Snapshot()[control.RelayHeating]
	if view.Pending {
		t.Error("pending should clear even on failure")
	}
	if view.KnownOn {
		t.Error("KnownOn must be unchanged on failure")
	}

	// Next tick, outside the rate limit window, the same request goes out
	// again: KnownOn is still false and nothing is pending.
	if !d.Request(control.RelayHeating, control.ActionOn, now.Add(time.Minute)) {
		t.Error("retry on next tick should be submitted")
	}
	if len(ch.Submitted()) != 2 {
		t.Errorf("expected 2 submitted commands, got %d", len(ch.Submitted()))
	}
}

func TestStaleResultDiscardedAfterSupersession(t *testing.T) {
	d, ch := newTestDispatcher()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// Request on, then supersede with off before the first result arrives.
	d.Request(control.RelayHeating, control.ActionOn, now)
	if !d.Request(control.RelayHeating, control.ActionOff, now.Add(time.Second)) {
		t.Fatal("superseding request should be submitted")
	}

	cmds := ch.Submitted()
	if len(cmds) != 2 {
		t.Fatalf("expected 2 submitted commands, got %d", len(cmds))
	}
	tokenA, tokenB := cmds[0].Token, cmds[1].Token
	if tokenB <= tokenA {
		t.Fatalf("tokens must be monotonically increasing: %d then %d", tokenA, tokenB)
	}

	// Late result for the superseded command A: discarded outright.
	d.OnResult(actuator.Result{Relay: control.RelayHeating, Action: control.ActionOn, Token: tokenA, Success: true, Observed: true})
	view := d.Snapshot()[control.RelayHeating]
	if !view.Pending || view.PendingAction != control.ActionOff {
		t.Errorf("stale result must not disturb B's bookkeeping, got %+v", view)
	}
	if view.KnownOn {
		t.Error("stale result must not set KnownOn")
	}

	// B's result is applied normally.
	d.OnResult(actuator.Result{Relay: control.RelayHeating, Action: control.ActionOff, Token: tokenB, Success: true, Observed: false})
	view = d.Snapshot()[control.RelayHeating]
	if view.Pending || view.KnownOn {
		t.Errorf("expected settled known-off state, got %+v", view)
	}
}

func TestSubmitErrorClearsPending(t *testing.T) {
	ch := actuator.NewFake()
	ch.SubmitError = errors.New("transport down")
	d := NewDispatcher(ch, zap.NewNop())
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if d.Request(control.RelayHeating, control.ActionOn, now) {
		t.Error("failed submit should report false")
	}
	view := d.Snapshot()[control.RelayHeating]
	if view.Pending {
		t.Error("nothing is in flight after a refused submit")
	}

	// A refused submit must not start the rate limit window: the retry one
	// second later goes through.
	ch.SubmitError = nil
	if !d.Request(control.RelayHeating, control.ActionOn, now.Add(time.Second)) {
		t.Error("immediate retry should succeed once the transport recovers")
	}
}

func TestRequestIgnoresUnchangedAction(t *testing.T) {
	d, ch := newTestDispatcher()
	if d.Request(control.RelayHeating, control.ActionNone, time.Now()) {
		t.Error("unchanged action must never submit")
	}
	if len(ch.Submitted()) != 0 {
		t.Error("no commands expected")
	}
}

func TestRelaysIndependent(t *testing.T) {
	d, ch := newTestDispatcher()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	d.Request(control.RelayHeating, control.ActionOn, now)
	if !d.Request(control.RelayCooling, control.ActionOn, now) {
		t.Error("cooling request must not be affected by heating's pending state")
	}
	if len(ch.Submitted()) != 2 {
		t.Errorf("expected 2 commands, got %d", len(ch.Submitted()))
	}
}

// Package actuator provides the asynchronous channel to the relay hardware:
// commands in, results out. The real implementations speak to Tasmota-style
// MQTT smart plugs or to a local GPIO relay board; the fake allows testing
// without hardware. Device discovery, transport retries, and protocol
// details live here, not in the control core.
package actuator

import (
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/ferment-control/internal/control"
)

// Command asks the channel to switch a relay. Token is the dispatcher's
// per-relay supersession token; MsgID is a wire-level correlation ID for
// logs and has no control semantics.
type Command struct {
	MsgID    uuid.UUID
	Relay    control.RelayID
	Action   control.Action
	Token    uint64
	IssuedAt time.Time
}

// Result is the channel's answer to a Command. Observed is the relay state
// the device itself reported and is meaningful only when Success is true;
// the dispatcher trusts it over the requested action.
type Result struct {
	Relay    control.RelayID
	Action   control.Action
	Token    uint64
	Success  bool
	Observed bool
	Err      string
}

// Channel is the asynchronous actuator transport. Submit must not block the
// caller on device I/O; results arrive on Results in completion order, which
// may differ from submission order.
type Channel interface {
	Submit(cmd Command) error
	Results() <-chan Result
	Close() error
}

// NewCommand builds a Command with a fresh message ID.
func NewCommand(relay control.RelayID, action control.Action, token uint64, now time.Time) Command {
	return Command{
		MsgID:    uuid.New(),
		Relay:    relay,
		Action:   action,
		Token:    token,
		IssuedAt: now,
	}
}

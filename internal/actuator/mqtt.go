package actuator

import (
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/ferment-control/internal/control"
)

// Tasmota-style topic layout: commands go to cmnd/<device>/POWER, the plug
// confirms on stat/<device>/POWER with payload ON or OFF.
const (
	cmndPrefix = "cmnd/"
	statPrefix = "stat/"
	powerLeaf  = "/POWER"
)

// DefaultConfirmTimeout is how long the channel waits for a plug's stat
// confirmation before reporting the command as failed.
const DefaultConfirmTimeout = 15 * time.Second

type inflight struct {
	cmd   Command
	timer *time.Timer
}

// MQTTChannel drives smart plugs over MQTT. One device topic per relay.
type MQTTChannel struct {
	client  paho.Client
	lg      *zap.Logger
	topics  map[control.RelayID]string
	timeout time.Duration

	mu       sync.Mutex
	inflight map[control.RelayID]*inflight
	results  chan Result
	closed   bool
}

// NewMQTTChannel creates a channel publishing to the given device topics
// (relay -> Tasmota device name) over an already-connected client. It
// subscribes to each device's stat topic for confirmations.
func NewMQTTChannel(client paho.Client, topics map[control.RelayID]string, lg *zap.Logger) (*MQTTChannel, error) {
	c := &MQTTChannel{
		client:   client,
		lg:       lg,
		topics:   topics,
		timeout:  DefaultConfirmTimeout,
		inflight: make(map[control.RelayID]*inflight),
		results:  make(chan Result, 16),
	}

	for relay, device := range topics {
		relay, device := relay, device
		topic := statPrefix + device + powerLeaf
		token := client.Subscribe(topic, 1, func(_ paho.Client, msg paho.Message) {
			c.onStat(relay, string(msg.Payload()))
		})
		if !token.WaitTimeout(10 * time.Second) {
			return nil, fmt.Errorf("subscribe %s: timeout", topic)
		}
		if err := token.Error(); err != nil {
			return nil, fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}

	return c, nil
}

// Submit publishes the POWER command and returns without waiting for the
// device. The eventual stat confirmation (or a timeout) produces the Result.
func (c *MQTTChannel) Submit(cmd Command) error {
	device, ok := c.topics[cmd.Relay]
	if !ok {
		return fmt.Errorf("no device topic for relay %q", cmd.Relay)
	}

	payload := "OFF"
	if cmd.Action == control.ActionOn {
		payload = "ON"
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("channel closed")
	}
	// A newer command for the same relay supersedes the old confirmation
	// wait; the device-level command itself cannot be retracted.
	if old, ok := c.inflight[cmd.Relay]; ok {
		old.timer.Stop()
	}
	inf := &inflight{cmd: cmd}
	inf.timer = time.AfterFunc(c.timeout, func() { c.onTimeout(cmd.Relay, cmd.Token) })
	c.inflight[cmd.Relay] = inf
	c.mu.Unlock()

	topic := cmndPrefix + device + powerLeaf
	token := c.client.Publish(topic, 1, false, payload)
	go func() {
		if !token.WaitTimeout(c.timeout) {
			c.fail(cmd.Relay, cmd.Token, "publish timeout")
			return
		}
		if err := token.Error(); err != nil {
			c.fail(cmd.Relay, cmd.Token, fmt.Sprintf("publish: %v", err))
		}
	}()

	c.lg.Debug("plug command published",
		zap.String("relay", string(cmd.Relay)),
		zap.String("topic", topic),
		zap.String("payload", payload),
		zap.String("msg_id", cmd.MsgID.String()))
	return nil
}

// Results returns the confirmation stream.
func (c *MQTTChannel) Results() <-chan Result {
	return c.results
}

// onStat handles a plug's POWER confirmation.
func (c *MQTTChannel) onStat(relay control.RelayID, payload string) {
	observed := strings.EqualFold(strings.TrimSpace(payload), "ON")

	c.mu.Lock()
	inf, ok := c.inflight[relay]
	if ok {
		inf.timer.Stop()
		delete(c.inflight, relay)
	}
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return
	}
	if !ok {
		// Unsolicited state push (manual toggle, power cycle). No token to
		// attach, so nothing for the dispatcher; just log it.
		c.lg.Debug("unsolicited plug state", zap.String("relay", string(relay)), zap.Bool("on", observed))
		return
	}

	c.deliver(Result{
		Relay:    relay,
		Action:   inf.cmd.Action,
		Token:    inf.cmd.Token,
		Success:  true,
		Observed: observed,
	})
}

func (c *MQTTChannel) onTimeout(relay control.RelayID, token uint64) {
	c.fail(relay, token, "confirmation timeout")
}

// fail reports a failed command if it is still the in-flight one.
func (c *MQTTChannel) fail(relay control.RelayID, token uint64, reason string) {
	c.mu.Lock()
	inf, ok := c.inflight[relay]
	if ok && inf.cmd.Token == token {
		inf.timer.Stop()
		delete(c.inflight, relay)
	} else {
		ok = false
	}
	closed := c.closed
	c.mu.Unlock()

	if !ok || closed {
		return
	}
	c.deliver(Result{
		Relay:   relay,
		Action:  inf.cmd.Action,
		Token:   token,
		Success: false,
		Err:     reason,
	})
}

// deliver pushes a result without blocking the paho callback goroutine.
func (c *MQTTChannel) deliver(res Result) {
	select {
	case c.results <- res:
	default:
		c.lg.Warn("actuator result dropped, listener not keeping up",
			zap.String("relay", string(res.Relay)))
	}
}

// Close stops confirmation timers and unsubscribes.
func (c *MQTTChannel) Close() error {
	c.mu.Lock()
	c.closed = true
	for _, inf := range c.inflight {
		inf.timer.Stop()
	}
	c.inflight = make(map[control.RelayID]*inflight)
	c.mu.Unlock()

	for _, device := range c.topics {
		c.client.Unsubscribe(statPrefix + device + powerLeaf)
	}
	return nil
}

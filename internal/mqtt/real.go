package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/ferment-control/internal/control"
)

// NewClient connects a paho client with auto-reconnect, shared by the
// publisher, the sensor feed, and the plug actuator channel.
func NewClient(broker, clientID string) (paho.Client, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return client, nil
}

// RealPublisher publishes to an actual MQTT broker. Events published while
// the broker is unreachable are held in a fixed-size ring buffer and
// replayed before the next successful publish, so a short outage does not
// lose trigger events.
type RealPublisher struct {
	client paho.Client
	lg     *zap.Logger

	mu      sync.Mutex
	backlog *ringBuffer
}

// NewRealPublisher creates a publisher over an already-connected client.
func NewRealPublisher(client paho.Client, lg *zap.Logger) *RealPublisher {
	return &RealPublisher{
		client:  client,
		lg:      lg,
		backlog: newRingBuffer(64),
	}
}

// PublishEvent sends a trigger event, buffering it when disconnected.
func (p *RealPublisher) PublishEvent(event control.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 1: trigger events are one-shot by design, losing one means the
	// condition is never reported.
	return p.send(TopicEvents, payload, 1, false)
}

// PublishSystem sends a system lifecycle event.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.send(TopicSystem, payload, 1, event.Retained)
}

func (p *RealPublisher) send(topic string, payload []byte, qos byte, retained bool) error {
	if !p.client.IsConnected() {
		p.mu.Lock()
		p.backlog.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		n := p.backlog.len()
		p.mu.Unlock()
		p.lg.Warn("broker unreachable, event buffered", zap.String("topic", topic), zap.Int("backlog", n))
		return nil
	}

	p.mu.Lock()
	pending := p.backlog.drainAll()
	dropped := p.backlog.takeDropped()
	p.mu.Unlock()

	if dropped > 0 {
		p.lg.Warn("event backlog overflowed while disconnected", zap.Int("dropped", dropped))
	}
	for _, msg := range pending {
		if err := p.publish(msg.topic, msg.payload, msg.qos, msg.retained); err != nil {
			p.lg.Error("backlog replay failed", zap.String("topic", msg.topic), zap.Error(err))
		}
	}

	return p.publish(topic, payload, qos, retained)
}

func (p *RealPublisher) publish(topic string, payload []byte, qos byte, retained bool) error {
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// IsConnected reports the broker connection state.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}

package sensor

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/ferment-control/internal/control"
)

// TopicPrefix is where the Tilt bridge publishes, one topic per color:
// tilt/<color>/state.
const TopicPrefix = "tilt/"

// broadcast is the bridge's JSON payload for one Tilt broadcast.
type broadcast struct {
	TempF     float64 `json:"temp"`
	Gravity   float64 `json:"sg"`
	Timestamp string  `json:"timestamp"`
}

// MQTTFeed subscribes to the assigned Tilt color's bridge topic and keeps
// the most recent reading.
type MQTTFeed struct {
	client paho.Client
	topic  string
	lg     *zap.Logger

	mu      sync.RWMutex
	reading control.Reading
	seen    bool
	lastAt  time.Time
}

// NewMQTTFeed subscribes to tilt/<color>/state on the given client.
func NewMQTTFeed(client paho.Client, color string, lg *zap.Logger) (*MQTTFeed, error) {
	f := &MQTTFeed{
		client: client,
		topic:  TopicPrefix + color + "/state",
		lg:     lg,
	}

	token := client.Subscribe(f.topic, 0, func(_ paho.Client, msg paho.Message) {
		f.onBroadcast(msg.Payload())
	})
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("subscribe %s: timeout", f.topic)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", f.topic, err)
	}

	return f, nil
}

func (f *MQTTFeed) onBroadcast(payload []byte) {
	var b broadcast
	if err := json.Unmarshal(payload, &b); err != nil {
		f.lg.Warn("bad tilt payload", zap.String("topic", f.topic), zap.Error(err))
		return
	}

	at := time.Now()
	if b.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, b.Timestamp); err == nil {
			at = ts
		}
	}

	f.mu.Lock()
	f.reading = control.Reading{Temperature: b.TempF, Gravity: b.Gravity, At: at}
	f.seen = true
	f.lastAt = time.Now()
	f.mu.Unlock()

	f.lg.Debug("tilt broadcast",
		zap.Float64("temp", b.TempF),
		zap.Float64("sg", b.Gravity))
}

// Latest returns the most recent reading.
func (f *MQTTFeed) Latest() (control.Reading, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.reading, f.seen
}

// LastBroadcast returns when the bridge last relayed a broadcast.
func (f *MQTTFeed) LastBroadcast() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastAt
}

// Close unsubscribes from the bridge topic.
func (f *MQTTFeed) Close() error {
	f.client.Unsubscribe(f.topic)
	return nil
}

// Package sensor supplies temperature readings from the assigned Tilt
// hydrometer. BLE scanning itself happens outside this process; a bridge
// relays each broadcast to MQTT, and the real feed subscribes to it. The
// core never parses the raw sensor protocol.
package sensor

import (
	"time"

	"github.com/sweeney/ferment-control/internal/control"
)

// Feed supplies the latest reading and broadcast recency for the assigned
// sensor. Implementations must be safe for concurrent use: the transport
// writes, the control tick reads.
type Feed interface {
	// Latest returns the most recent reading, ok=false before the first
	// broadcast arrives.
	Latest() (control.Reading, bool)

	// LastBroadcast returns when the sensor was last heard; zero if never.
	LastBroadcast() time.Time

	// Close releases transport resources.
	Close() error
}

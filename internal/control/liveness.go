package control

import "time"

// GracePeriod is the window after sensor assignment during which liveness
// checks are suspended, giving a freshly paired hydrometer time to settle
// into the vessel and start broadcasting.
const GracePeriod = 15 * time.Minute

// SensorActive reports whether control is permitted for the assigned sensor.
//
//   - No sensor assigned: always active (manual/external temperature source).
//   - Within GracePeriod of assignment: active regardless of broadcasts.
//   - Otherwise: active only if the last broadcast is younger than
//     staleThreshold (callers pass twice the tick interval, so the sensor
//     must have been heard within the last two ticks).
//
// A sensor that has never broadcast has a zero lastBroadcastAt and is
// inactive as soon as the grace period ends.
func SensorActive(sensorID string, lastBroadcastAt, assignedAt, now time.Time, staleThreshold time.Duration) bool {
	if sensorID == "" {
		return true
	}
	if !assignedAt.IsZero() && now.Sub(assignedAt) < GracePeriod {
		return true
	}
	if lastBroadcastAt.IsZero() {
		return false
	}
	return now.Sub(lastBroadcastAt) < staleThreshold
}

// Package metrics exposes Prometheus counters for the control loop.
// Registration uses the default registry; internal/web serves it via
// promhttp when the HTTP listener is enabled.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ticks counts completed control ticks.
	Ticks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ferment_control_ticks_total",
		Help: "Completed control ticks.",
	})

	// SensorStaleTicks counts ticks skipped or safety-gated because the
	// assigned sensor was not active.
	SensorStaleTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ferment_control_sensor_stale_ticks_total",
		Help: "Ticks where the assigned sensor was inactive.",
	})

	// CommandsSent counts actuator commands accepted by the gate and
	// submitted, labeled by relay and action.
	CommandsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ferment_control_commands_sent_total",
		Help: "Relay commands submitted to the actuator channel.",
	}, []string{"relay", "action"})

	// CommandsSuppressed counts requests the gate rejected, labeled by
	// relay and rejection reason (redundant, pending, rate_limited).
	CommandsSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ferment_control_commands_suppressed_total",
		Help: "Relay requests suppressed by the command gate.",
	}, []string{"relay", "reason"})

	// CommandFailures counts actuator results reporting failure.
	CommandFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ferment_control_command_failures_total",
		Help: "Actuator results reporting failure.",
	}, []string{"relay"})

	// StaleResults counts actuator results discarded for a token mismatch
	// (a superseded in-flight command completing late).
	StaleResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ferment_control_stale_results_total",
		Help: "Actuator results discarded due to request-token mismatch.",
	}, []string{"relay"})

	// TriggersFired counts one-shot trigger events emitted, by event name.
	TriggersFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ferment_control_triggers_fired_total",
		Help: "One-shot trigger events emitted.",
	}, []string{"event"})
)

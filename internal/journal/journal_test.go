package journal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sweeney/ferment-control/internal/control"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndReadEvents(t *testing.T) {
	j := openTestJournal(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	j.RecordEvent(control.Event{
		Name:        control.EventBelowLowLimit,
		Temperature: 62.5,
		Low:         64,
		High:        66,
		At:          at,
	})
	j.RecordEvent(control.Event{
		Name:        control.EventHeatingSafety,
		Relay:       control.RelayHeating,
		Temperature: 65,
		Low:         64,
		High:        66,
		At:          at.Add(time.Minute),
	})

	events, err := j.RecentEvents(10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Newest first.
	require.Equal(t, control.EventHeatingSafety, events[0].Name)
	require.Equal(t, control.RelayHeating, events[0].Relay)
	require.Equal(t, control.EventBelowLowLimit, events[1].Name)
	require.Equal(t, 62.5, events[1].Temperature)
	require.Equal(t, control.RelayID(""), events[1].Relay)
}

func TestRecentEventsLimit(t *testing.T) {
	j := openTestJournal(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		j.RecordEvent(control.Event{
			Name:        control.EventBackInRange,
			Temperature: float64(60 + i),
			At:          at.Add(time.Duration(i) * time.Minute),
		})
	}

	events, err := j.RecentEvents(3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, 64.0, events[0].Temperature)
}

func TestRecordCommand(t *testing.T) {
	j := openTestJournal(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	j.RecordCommand(control.RelayCooling, control.ActionOn, at)

	var relay, action string
	err := j.db.QueryRow(`SELECT relay, action FROM commands`).Scan(&relay, &action)
	require.NoError(t, err)
	require.Equal(t, "cooling", relay)
	require.Equal(t, "on", action)
}

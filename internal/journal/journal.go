// Package journal persists fired trigger events and relay commands to a
// local sqlite file, giving the daemon an audit trail that survives
// restarts. Writes are best-effort: a journal failure is logged and never
// fails a control tick.
package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/sweeney/ferment-control/internal/control"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	at          DATETIME NOT NULL,
	name        TEXT NOT NULL,
	relay       TEXT NOT NULL DEFAULT '',
	temperature REAL NOT NULL,
	low_limit   REAL NOT NULL,
	high_limit  REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS commands (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	at     DATETIME NOT NULL,
	relay  TEXT NOT NULL,
	action TEXT NOT NULL
);
`

// Journal is a sqlite-backed audit log.
type Journal struct {
	db *sql.DB
	lg *zap.Logger
}

// Open opens (creating if needed) the journal database at path.
// Use ":memory:" for an ephemeral journal.
func Open(path string, lg *zap.Logger) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal tables: %w", err)
	}
	return &Journal{db: db, lg: lg}, nil
}

// RecordEvent appends a fired trigger event.
func (j *Journal) RecordEvent(e control.Event) {
	_, err := j.db.Exec(
		`INSERT INTO events (at, name, relay, temperature, low_limit, high_limit) VALUES (?, ?, ?, ?, ?, ?)`,
		e.At.UTC(), string(e.Name), string(e.Relay), e.Temperature, e.Low, e.High,
	)
	if err != nil {
		j.lg.Error("journal event write failed", zap.String("name", string(e.Name)), zap.Error(err))
	}
}

// RecordCommand appends a submitted relay command.
func (j *Journal) RecordCommand(relay control.RelayID, action control.Action, at time.Time) {
	_, err := j.db.Exec(
		`INSERT INTO commands (at, relay, action) VALUES (?, ?, ?)`,
		at.UTC(), string(relay), string(action),
	)
	if err != nil {
		j.lg.Error("journal command write failed", zap.String("relay", string(relay)), zap.Error(err))
	}
}

// RecentEvents returns up to limit events, newest first.
func (j *Journal) RecentEvents(limit int) ([]control.Event, error) {
	rows, err := j.db.Query(
		`SELECT at, name, relay, temperature, low_limit, high_limit FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []control.Event
	for rows.Next() {
		var e control.Event
		var name, relay string
		if err := rows.Scan(&e.At, &name, &relay, &e.Temperature, &e.Low, &e.High); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Name = control.EventName(name)
		e.Relay = control.RelayID(relay)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

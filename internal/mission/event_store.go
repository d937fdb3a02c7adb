package mission

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/zenithsec/helmsman/internal/types"
)

// EventFilter narrows event queries. Zero fields match everything.
type EventFilter struct {
	// MissionID filters events for a specific mission.
	MissionID types.ID

	// EventTypes filters by event type.
	EventTypes []EventType

	// TaskID filters task-level events for one task.
	TaskID string

	// Limit caps the result count. Zero means 100.
	Limit int
}

// SQLiteEventStore persists mission events to a SQLite database. It
// implements Sink, so it plugs directly into the Emitter, and offers
// queries for audit and display.
type SQLiteEventStore struct {
	db *sql.DB
}

const eventSchema = `
CREATE TABLE IF NOT EXISTS mission_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	mission_id  TEXT NOT NULL,
	task_id     TEXT NOT NULL DEFAULT '',
	event_type  TEXT NOT NULL,
	payload     TEXT NOT NULL DEFAULT '{}',
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_mission_events_mission ON mission_events(mission_id, created_at);
CREATE INDEX IF NOT EXISTS idx_mission_events_type ON mission_events(event_type);
`

// OpenSQLiteEventStore opens (creating if needed) the event database at
// the given path. Use ":memory:" for an ephemeral store.
func OpenSQLiteEventStore(path string) (*SQLiteEventStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event database: %w", err)
	}
	if _, err := db.Exec(eventSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize event schema: %w", err)
	}
	return &SQLiteEventStore{db: db}, nil
}

// Persist implements Sink. The event is written before returning.
func (s *SQLiteEventStore) Persist(ctx context.Context, event *Event) error {
	payload := "{}"
	if len(event.Payload) > 0 {
		data, err := json.Marshal(event.Payload)
		if err != nil {
			return fmt.Errorf("failed to serialize event payload: %w", err)
		}
		payload = string(data)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mission_events (mission_id, task_id, event_type, payload, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		event.MissionID.String(), event.TaskID, string(event.Type), payload, event.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// Query returns events matching the filter ordered by insertion.
func (s *SQLiteEventStore) Query(ctx context.Context, filter EventFilter) ([]*Event, error) {
	query := `SELECT mission_id, task_id, event_type, payload, created_at FROM mission_events`
	var conds []string
	var args []any

	if !filter.MissionID.IsZero() {
		conds = append(conds, "mission_id = ?")
		args = append(args, filter.MissionID.String())
	}
	if filter.TaskID != "" {
		conds = append(conds, "task_id = ?")
		args = append(args, filter.TaskID)
	}
	if len(filter.EventTypes) > 0 {
		placeholders := make([]string, len(filter.EventTypes))
		for i, t := range filter.EventTypes {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		conds = append(conds, fmt.Sprintf("event_type IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " ORDER BY id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var (
			missionID, taskID, eventType, payload string
			createdAt                             time.Time
		)
		if err := rows.Scan(&missionID, &taskID, &eventType, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		e := &Event{
			Type:      EventType(eventType),
			MissionID: types.ID(missionID),
			TaskID:    taskID,
			Timestamp: createdAt,
		}
		if payload != "" && payload != "{}" {
			if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
				return nil, fmt.Errorf("failed to decode event payload: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close releases the underlying database handle.
func (s *SQLiteEventStore) Close() error {
	return s.db.Close()
}

package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 200
)

// Event sources identify where a state transition originated.
const (
	SourceDevice  = "device"  // Pushed by the device over the native session
	SourceCommand = "command" // Result echoed after a published command
)

// EventEntry is a single recorded entity state transition.
type EventEntry struct {
	ID         int64     `json:"id"`
	EntityID   string    `json:"entity_id"`
	EntityType string    `json:"entity_type"`
	State      string    `json:"state"`
	Position   *float64  `json:"position,omitempty"`
	Source     string    `json:"source"`
	CreatedAt  time.Time `json:"created_at"`
}

// RecordEvent inserts a new event entry for an entity.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - entityID: Stable entity identifier (e.g. "cover-door")
//   - entityType: Entity kind (e.g. "cover", "light")
//   - state: Translated state string
//   - position: Door position if known, nil otherwise
//   - source: Origin of the change (device, command)
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (s *Store) RecordEvent(ctx context.Context, entityID, entityType, state string, position *float64, source string) error {
	if entityID == "" {
		return fmt.Errorf("entity id is required")
	}
	if state == "" {
		return fmt.Errorf("state is required")
	}
	if source == "" {
		source = SourceDevice
	}

	var pos sql.NullFloat64
	if position != nil {
		pos = sql.NullFloat64{Float64: *position, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO entity_events (entity_id, entity_type, state, position, source) VALUES (?, ?, ?, ?, ?)",
		entityID,
		entityType,
		state,
		pos,
		source,
	)
	if err != nil {
		return fmt.Errorf("inserting entity event: %w", err)
	}

	return nil
}

// GetEvents returns recent events for an entity, ordered newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - entityID: Stable entity identifier
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []EventEntry: Events ordered by created_at DESC
//   - error: nil on success, otherwise the underlying query error
func (s *Store) GetEvents(ctx context.Context, entityID string, limit int) ([]EventEntry, error) {
	if entityID == "" {
		return nil, fmt.Errorf("entity id is required")
	}
	if limit <= 0 {
		limit = defaultEventLimit
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entity_id, entity_type, state, position, source, created_at
		 FROM entity_events
		 WHERE entity_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		entityID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying entity events: %w", err)
	}
	defer rows.Close()

	entries := make([]EventEntry, 0, limit)
	for rows.Next() {
		var entry EventEntry
		var pos sql.NullFloat64
		var createdAt string

		if err := rows.Scan(&entry.ID, &entry.EntityID, &entry.EntityType, &entry.State, &pos, &entry.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning entity event: %w", err)
		}

		if pos.Valid {
			value := pos.Float64
			entry.Position = &value
		}

		timestamp, err := parseEventTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		entry.CreatedAt = timestamp

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entity events: %w", err)
	}

	return entries, nil
}

// PruneEvents deletes events older than the given duration.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - olderThan: Duration to retain (entries older than now-olderThan are deleted)
//
// Returns:
//   - int64: Number of rows deleted
//   - error: nil on success, otherwise the underlying database error
func (s *Store) PruneEvents(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM entity_events WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting entity events: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}

// parseEventTimestamp parses a timestamp stored in SQLite.
func parseEventTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}

	timestamp, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return timestamp, nil
	}

	fallback, fallbackErr := time.Parse("2006-01-02T15:04:05Z", value)
	if fallbackErr == nil {
		return fallback, nil
	}

	return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
}

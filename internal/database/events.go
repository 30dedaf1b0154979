package database

import (
	"context"
	"fmt"
)

// RecordEvent appends an audit-log row.
func (db *DB) RecordEvent(ctx context.Context, e Event) (int64, error) {
	res, err := db.active().ExecContext(ctx,
		"INSERT INTO events (occurred_at, stream_name, kind, message) VALUES (?,?,?,?)",
		e.OccurredAt, e.StreamName, e.Kind, e.Message)
	if err != nil {
		return 0, fmt.Errorf("record event: %w", err)
	}
	return res.LastInsertId()
}

// GetEventsInTimeRange returns events in [tr.Start, tr.End]. A range with no
// matching rows returns an empty slice and a nil error — NotFound is never
// surfaced here, matching the resolved open question that this call
// reports a count, not a lookup failure.
func (db *DB) GetEventsInTimeRange(ctx context.Context, tr TimeRange) ([]Event, error) {
	rows, err := db.active().QueryContext(ctx,
		"SELECT id, occurred_at, stream_name, kind, message FROM events WHERE occurred_at >= ? AND occurred_at <= ? ORDER BY occurred_at ASC",
		tr.Start, tr.End)
	if err != nil {
		return nil, fmt.Errorf("get events in range: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.OccurredAt, &e.StreamName, &e.Kind, &e.Message); err != nil {
			return nil, fmt.Errorf("get events in range: scan: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// UpsertSystemStat atomically adds delta to key's counter, creating the row
// at delta if it doesn't yet exist. The increment happens in SQL so
// concurrent callers never race a read-modify-write.
func (db *DB) UpsertSystemStat(ctx context.Context, key string, delta int64) error {
	_, err := db.active().ExecContext(ctx,
		`INSERT INTO system_stats (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = CAST(CAST(value AS INTEGER) + excluded.value AS TEXT), updated_at = CURRENT_TIMESTAMP`,
		key, delta)
	if err != nil {
		return fmt.Errorf("upsert system stat: %w", err)
	}
	return nil
}

// GetSystemStat returns a stat's current counter value, or 0 if key has
// never been set.
func (db *DB) GetSystemStat(ctx context.Context, key string) (int64, error) {
	var value int64
	err := db.active().QueryRowContext(ctx, "SELECT CAST(value AS INTEGER) FROM system_stats WHERE key = ?", key).Scan(&value)
	if err != nil {
		return 0, nil
	}
	return value, nil
}

package database

import (
	"context"
	"fmt"
	"time"
)

// GetForRetention returns complete, non-protected recordings for stream
// whose age exceeds regularDays (Scheduled/Manual triggers) or
// detectionDays (Detection/Motion triggers). Per-row retention_override_days
// is honored by the caller (the Retention Engine), which recomputes the
// cutoff per row; this query applies only the two base day counts so the
// engine can re-filter cheaply in memory.
func (db *DB) GetForRetention(ctx context.Context, stream string, regularDays, detectionDays, limit int) ([]Recording, error) {
	now := time.Now()
	regularCutoff := now.AddDate(0, 0, -regularDays)
	detectionCutoff := now.AddDate(0, 0, -detectionDays)

	q := `SELECT ` + recordingColumns + ` FROM recordings
		WHERE stream_name = ? AND is_complete = 1 AND protected = 0
		AND (
			(trigger IN ('scheduled','manual') AND start_time < ?) OR
			(trigger IN ('detection','motion') AND start_time < ?)
		)
		ORDER BY start_time ASC`
	args := []any{stream, regularCutoff, detectionCutoff}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := queryRecordings(ctx, db.active(), q, args...)
	if err != nil {
		return nil, fmt.Errorf("get for retention: %w", err)
	}
	return rows, nil
}

// GetForQuota returns all non-protected, complete recordings for stream
// ordered oldest-first, for the quota policy to delete from the front.
func (db *DB) GetForQuota(ctx context.Context, stream string, limit int) ([]Recording, error) {
	q := `SELECT ` + recordingColumns + ` FROM recordings
		WHERE stream_name = ? AND is_complete = 1 AND protected = 0
		ORDER BY start_time ASC`
	args := []any{stream}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := queryRecordings(ctx, db.active(), q, args...)
	if err != nil {
		return nil, fmt.Errorf("get for quota: %w", err)
	}
	return rows, nil
}

// GetPressureCandidates returns oldest-first, non-protected,
// disk-pressure-eligible recordings across every stream, ignoring tier —
// the pressure policy's last-resort sweep.
func (db *DB) GetPressureCandidates(ctx context.Context, limit int) ([]Recording, error) {
	q := `SELECT ` + recordingColumns + ` FROM recordings
		WHERE is_complete = 1 AND protected = 0 AND disk_pressure_eligible = 1
		ORDER BY start_time ASC`
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := queryRecordings(ctx, db.active(), q, args...)
	if err != nil {
		return nil, fmt.Errorf("get pressure candidates: %w", err)
	}
	return rows, nil
}

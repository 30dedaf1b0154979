package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nvrengine/engine/internal/ncerrors"
)

// RecordMotionEvent links a recording to the motion trigger that started it.
func (db *DB) RecordMotionEvent(ctx context.Context, m MotionRecording) (int64, error) {
	res, err := db.active().ExecContext(ctx,
		"INSERT INTO motion_recordings (recording_id, triggered_at, score) VALUES (?,?,?)",
		m.RecordingID, m.TriggeredAt, m.Score)
	if err != nil {
		return 0, fmt.Errorf("record motion event: %w", err)
	}
	return res.LastInsertId()
}

// GetMotionConfig returns per-stream motion tuning, defaulting to disabled
// when unset.
func (db *DB) GetMotionConfig(ctx context.Context, stream string) (MotionConfig, error) {
	row := db.active().QueryRowContext(ctx,
		"SELECT stream_name, enabled, sensitivity, cooldown_seconds FROM motion_config WHERE stream_name = ?", stream)

	var m MotionConfig
	err := row.Scan(&m.StreamName, &m.Enabled, &m.Sensitivity, &m.CooldownSeconds)
	if err == sql.ErrNoRows {
		return MotionConfig{StreamName: stream, Sensitivity: 0.5, CooldownSeconds: 30}, nil
	}
	if err != nil {
		return MotionConfig{}, fmt.Errorf("get motion config: %w", err)
	}
	return m, nil
}

// SetMotionConfig upserts per-stream motion tuning.
func (db *DB) SetMotionConfig(ctx context.Context, m MotionConfig) error {
	if m.StreamName == "" {
		return fmt.Errorf("set motion config: %w", ncerrors.InvalidArgument)
	}
	_, err := db.active().ExecContext(ctx,
		`INSERT INTO motion_config (stream_name, enabled, sensitivity, cooldown_seconds) VALUES (?,?,?,?)
		 ON CONFLICT(stream_name) DO UPDATE SET enabled = excluded.enabled,
			sensitivity = excluded.sensitivity, cooldown_seconds = excluded.cooldown_seconds`,
		m.StreamName, m.Enabled, m.Sensitivity, m.CooldownSeconds)
	if err != nil {
		return fmt.Errorf("set motion config: %w", err)
	}
	return nil
}

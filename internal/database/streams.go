package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/nvrengine/engine/internal/ncerrors"
)

// AddStreamConfig inserts stream configuration and returns the assigned id.
func (db *DB) AddStreamConfig(ctx context.Context, s StreamConfig) (int64, error) {
	if s.Name == "" {
		return 0, fmt.Errorf("add stream config: %w", ncerrors.InvalidArgument)
	}
	res, err := db.active().ExecContext(ctx, `
		INSERT INTO streams (
			name, source_url, width, height, fps, codec, priority,
			retention_days, detection_retention_days, max_bytes,
			detection_object_filter, detection_object_filter_list,
			tier_multiplier_critical, tier_multiplier_important, tier_multiplier_ephemeral,
			storage_priority, streaming_enabled, detection_based_recording
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.Name, s.SourceURL, s.Width, s.Height, s.FPS, s.Codec, s.Priority,
		s.RetentionDays, s.DetectionRetentionDays, s.MaxBytes,
		string(s.ObjectFilterMode), s.ObjectFilterList,
		s.TierMultiplierCritical, s.TierMultiplierImportant, s.TierMultiplierEphemeral,
		s.StoragePriority, s.StreamingEnabled, s.DetectionBasedRecording,
	)
	if err != nil {
		return 0, fmt.Errorf("add stream config: %w", err)
	}
	return res.LastInsertId()
}

const streamColumns = `id, name, source_url, width, height, fps, codec, priority,
	retention_days, detection_retention_days, max_bytes,
	detection_object_filter, detection_object_filter_list,
	tier_multiplier_critical, tier_multiplier_important, tier_multiplier_ephemeral,
	storage_priority, streaming_enabled, detection_based_recording`

func scanStreamConfig(row interface{ Scan(...any) error }) (StreamConfig, error) {
	var s StreamConfig
	var mode string
	if err := row.Scan(
		&s.ID, &s.Name, &s.SourceURL, &s.Width, &s.Height, &s.FPS, &s.Codec, &s.Priority,
		&s.RetentionDays, &s.DetectionRetentionDays, &s.MaxBytes,
		&mode, &s.ObjectFilterList,
		&s.TierMultiplierCritical, &s.TierMultiplierImportant, &s.TierMultiplierEphemeral,
		&s.StoragePriority, &s.StreamingEnabled, &s.DetectionBasedRecording,
	); err != nil {
		return StreamConfig{}, err
	}
	s.ObjectFilterMode = ObjectFilterMode(mode)
	return s, nil
}

// GetStreamConfigByName returns a stream's configuration.
func (db *DB) GetStreamConfigByName(ctx context.Context, name string) (StreamConfig, error) {
	row := db.active().QueryRowContext(ctx, "SELECT "+streamColumns+" FROM streams WHERE name = ?", name)
	s, err := scanStreamConfig(row)
	if err == sql.ErrNoRows {
		return StreamConfig{}, fmt.Errorf("get stream config %s: %w", name, ncerrors.NotFound)
	}
	if err != nil {
		return StreamConfig{}, fmt.Errorf("get stream config %s: %w", name, err)
	}
	return s, nil
}

// ListStreamConfigs returns every configured stream.
func (db *DB) ListStreamConfigs(ctx context.Context) ([]StreamConfig, error) {
	rows, err := db.active().QueryContext(ctx, "SELECT "+streamColumns+" FROM streams ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("list stream configs: %w", err)
	}
	defer rows.Close()

	var out []StreamConfig
	for rows.Next() {
		s, err := scanStreamConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("list stream configs: scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SaveDetectionZones replaces stream's zone set atomically.
func (db *DB) SaveDetectionZones(ctx context.Context, stream string, zones []DetectionZone) error {
	return db.WithTransaction(ctx, func() error {
		if _, err := db.active().ExecContext(ctx, "DELETE FROM detection_zones WHERE stream_name = ?", stream); err != nil {
			return fmt.Errorf("save detection zones: delete: %w", err)
		}
		for _, z := range zones {
			if len(z.Vertices) < 3 {
				return fmt.Errorf("save detection zones: %w", ncerrors.InvalidArgument)
			}
			vjson, err := json.Marshal(z.Vertices)
			if err != nil {
				return fmt.Errorf("save detection zones: marshal vertices: %w", err)
			}
			if _, err := db.active().ExecContext(ctx,
				`INSERT INTO detection_zones (stream_name, enabled, min_confidence, class_allowlist, vertices_json)
				 VALUES (?,?,?,?,?)`,
				stream, z.Enabled, z.MinConfidence, z.ClassAllowlist, string(vjson),
			); err != nil {
				return fmt.Errorf("save detection zones: insert: %w", err)
			}
		}
		return nil
	})
}

// GetDetectionZones returns all zones configured for stream.
func (db *DB) GetDetectionZones(ctx context.Context, stream string) ([]DetectionZone, error) {
	rows, err := db.active().QueryContext(ctx,
		"SELECT id, stream_name, enabled, min_confidence, class_allowlist, vertices_json FROM detection_zones WHERE stream_name = ? ORDER BY id ASC",
		stream)
	if err != nil {
		return nil, fmt.Errorf("get detection zones: %w", err)
	}
	defer rows.Close()

	var out []DetectionZone
	for rows.Next() {
		var z DetectionZone
		var vjson string
		if err := rows.Scan(&z.ID, &z.StreamName, &z.Enabled, &z.MinConfidence, &z.ClassAllowlist, &vjson); err != nil {
			return nil, fmt.Errorf("get detection zones: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(vjson), &z.Vertices); err != nil {
			return nil, fmt.Errorf("get detection zones: unmarshal vertices: %w", err)
		}
		out = append(out, z)
	}
	return out, rows.Err()
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/nvrengine/engine/internal/ncerrors"
)

// AddRecording inserts a new row and returns its assigned id.
func (db *DB) AddRecording(ctx context.Context, r Recording) (int64, error) {
	if r.StreamName == "" || r.FilePath == "" {
		return 0, fmt.Errorf("add recording: %w", ncerrors.InvalidArgument)
	}
	if r.SizeBytes < 0 {
		return 0, fmt.Errorf("add recording: negative size: %w", ncerrors.InvalidArgument)
	}

	res, err := db.active().ExecContext(ctx, `
		INSERT INTO recordings (
			stream_name, file_path, start_time, end_time, size_bytes,
			width, height, fps, codec, trigger, is_complete, protected,
			retention_override_days, retention_tier, disk_pressure_eligible
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.StreamName, r.FilePath, r.StartTime, nullableTime(r.EndTime), r.SizeBytes,
		r.Width, r.Height, r.FPS, r.Codec, string(r.Trigger), r.IsComplete, r.Protected,
		r.RetentionOverrideDays, string(r.RetentionTier), r.DiskPressureEligible,
	)
	if err != nil {
		return 0, fmt.Errorf("add recording: %w", err)
	}
	return res.LastInsertId()
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

const recordingColumns = `id, stream_name, file_path, start_time, end_time, size_bytes,
	width, height, fps, codec, trigger, is_complete, protected,
	retention_override_days, retention_tier, disk_pressure_eligible`

func scanRecording(row interface{ Scan(...any) error }) (Recording, error) {
	var r Recording
	var endTime sql.NullTime
	var trigger, tier string
	if err := row.Scan(
		&r.ID, &r.StreamName, &r.FilePath, &r.StartTime, &endTime, &r.SizeBytes,
		&r.Width, &r.Height, &r.FPS, &r.Codec, &trigger, &r.IsComplete, &r.Protected,
		&r.RetentionOverrideDays, &tier, &r.DiskPressureEligible,
	); err != nil {
		return Recording{}, err
	}
	r.EndTime = endTime.Time
	r.Trigger = Trigger(trigger)
	r.RetentionTier = RetentionTier(tier)
	return r, nil
}

// GetByID returns the recording with the given id.
func (db *DB) GetByID(ctx context.Context, id int64) (Recording, error) {
	row := db.active().QueryRowContext(ctx, "SELECT "+recordingColumns+" FROM recordings WHERE id = ?", id)
	r, err := scanRecording(row)
	if err == sql.ErrNoRows {
		return Recording{}, fmt.Errorf("get recording %d: %w", id, ncerrors.NotFound)
	}
	if err != nil {
		return Recording{}, fmt.Errorf("get recording %d: %w", id, err)
	}
	return r, nil
}

// GetByPath returns the recording with the given unique file path.
func (db *DB) GetByPath(ctx context.Context, path string) (Recording, error) {
	row := db.active().QueryRowContext(ctx, "SELECT "+recordingColumns+" FROM recordings WHERE file_path = ?", path)
	r, err := scanRecording(row)
	if err == sql.ErrNoRows {
		return Recording{}, fmt.Errorf("get recording by path: %w", ncerrors.NotFound)
	}
	if err != nil {
		return Recording{}, fmt.Errorf("get recording by path: %w", err)
	}
	return r, nil
}

// UpdateRecording sets end_time, size and completion on an existing row.
func (db *DB) UpdateRecording(ctx context.Context, id int64, endTime time.Time, sizeBytes int64, isComplete bool) error {
	res, err := db.active().ExecContext(ctx,
		"UPDATE recordings SET end_time = ?, size_bytes = ?, is_complete = ? WHERE id = ?",
		endTime, sizeBytes, isComplete, id)
	if err != nil {
		return fmt.Errorf("update recording %d: %w", id, err)
	}
	return requireAffected(res, id)
}

// DeleteRecording removes a row by id.
func (db *DB) DeleteRecording(ctx context.Context, id int64) error {
	res, err := db.active().ExecContext(ctx, "DELETE FROM recordings WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete recording %d: %w", id, err)
	}
	return requireAffected(res, id)
}

func requireAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("recording %d: %w", id, ncerrors.NotFound)
	}
	return nil
}

// GetRecordings lists rows in a time range, optionally narrowed by stream.
func (db *DB) GetRecordings(ctx context.Context, tr TimeRange, stream string) ([]Recording, error) {
	q := "SELECT " + recordingColumns + " FROM recordings WHERE start_time >= ? AND start_time <= ?"
	args := []any{tr.Start, tr.End}
	if stream != "" {
		q += " AND stream_name = ?"
		args = append(args, stream)
	}
	q += " ORDER BY start_time ASC"

	return queryRecordings(ctx, db.active(), q, args...)
}

func queryRecordings(ctx context.Context, q querier, query string, args ...any) ([]Recording, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recordings: %w", err)
	}
	defer rows.Close()

	var out []Recording
	for rows.Next() {
		r, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Paginated lists recordings matching p, sorted and paged.
func (db *DB) Paginated(ctx context.Context, tr TimeRange, p PaginationParams) ([]Recording, error) {
	sortCol := "start_time"
	switch p.Sort {
	case "size_bytes", "end_time":
		sortCol = p.Sort
	}
	order := "ASC"
	if strings.EqualFold(p.Order, "desc") {
		order = "DESC"
	}

	q := "SELECT " + recordingColumns + " FROM recordings WHERE start_time >= ? AND start_time <= ?"
	args := []any{tr.Start, tr.End}
	if p.Stream != "" {
		q += " AND stream_name = ?"
		args = append(args, p.Stream)
	}
	if p.Trigger != "" {
		q += " AND trigger = ?"
		args = append(args, string(p.Trigger))
	}
	q += fmt.Sprintf(" ORDER BY %s %s", sortCol, order)
	if p.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, p.Limit, p.Offset)
	}

	return queryRecordings(ctx, db.active(), q, args...)
}

// Count returns the number of recordings matching the same filters as
// Paginated (ignoring sort/limit/offset).
func (db *DB) Count(ctx context.Context, tr TimeRange, stream string, trigger Trigger) (int64, error) {
	q := "SELECT COUNT(*) FROM recordings WHERE start_time >= ? AND start_time <= ?"
	args := []any{tr.Start, tr.End}
	if stream != "" {
		q += " AND stream_name = ?"
		args = append(args, stream)
	}
	if trigger != "" {
		q += " AND trigger = ?"
		args = append(args, string(trigger))
	}

	var count int64
	if err := db.active().QueryRowContext(ctx, q, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count recordings: %w", err)
	}
	return count, nil
}

// SetProtected marks a recording protected or not.
func (db *DB) SetProtected(ctx context.Context, id int64, protected bool) error {
	res, err := db.active().ExecContext(ctx, "UPDATE recordings SET protected = ? WHERE id = ?", protected, id)
	if err != nil {
		return fmt.Errorf("set protected: %w", err)
	}
	return requireAffected(res, id)
}

// SetRetentionTier reassigns a recording's tier.
func (db *DB) SetRetentionTier(ctx context.Context, id int64, tier RetentionTier) error {
	res, err := db.active().ExecContext(ctx, "UPDATE recordings SET retention_tier = ? WHERE id = ?", string(tier), id)
	if err != nil {
		return fmt.Errorf("set retention tier: %w", err)
	}
	return requireAffected(res, id)
}

// SetRetentionOverride sets a per-row override day count (-1 = inherit).
func (db *DB) SetRetentionOverride(ctx context.Context, id int64, days int) error {
	res, err := db.active().ExecContext(ctx, "UPDATE recordings SET retention_override_days = ? WHERE id = ?", days, id)
	if err != nil {
		return fmt.Errorf("set retention override: %w", err)
	}
	return requireAffected(res, id)
}

// SetDiskPressureEligible toggles whether a recording may be swept by the
// pressure policy.
func (db *DB) SetDiskPressureEligible(ctx context.Context, id int64, eligible bool) error {
	res, err := db.active().ExecContext(ctx, "UPDATE recordings SET disk_pressure_eligible = ? WHERE id = ?", eligible, id)
	if err != nil {
		return fmt.Errorf("set disk pressure eligible: %w", err)
	}
	return requireAffected(res, id)
}

// GetStreamStorageBytes sums size_bytes across a stream's recordings.
func (db *DB) GetStreamStorageBytes(ctx context.Context, stream string) (int64, error) {
	var total sql.NullInt64
	err := db.active().QueryRowContext(ctx, "SELECT SUM(size_bytes) FROM recordings WHERE stream_name = ?", stream).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("stream storage bytes: %w", err)
	}
	return total.Int64, nil
}

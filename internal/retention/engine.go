package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nvrengine/engine/internal/database"
	"github.com/nvrengine/engine/internal/utils"
)

// DiskSpacer reports the free-space percentage of the storage path; a
// narrow seam over utils.GetDiskSpace so the engine is testable without a
// real filesystem.
type DiskSpacer interface {
	FreePercent(path string) (float64, error)
}

type statfsSpacer struct{}

func (statfsSpacer) FreePercent(path string) (float64, error) {
	space, err := utils.GetDiskSpace(path)
	if err != nil {
		return 0, err
	}
	return space.FreePercent(), nil
}

// StatfsSpacer is the production DiskSpacer, backed by utils.GetDiskSpace.
var StatfsSpacer DiskSpacer = statfsSpacer{}

// Engine runs the retention policy against the catalog.
type Engine struct {
	db          *database.DB
	storageDir  string
	spacer      DiskSpacer
	multipliers TierMultipliers
}

// New returns an Engine scanning storageDir for pressure and deleting
// through db.
func New(db *database.DB, storageDir string, spacer DiskSpacer) *Engine {
	if spacer == nil {
		spacer = StatfsSpacer
	}
	return &Engine{db: db, storageDir: storageDir, spacer: spacer, multipliers: DefaultTierMultipliers()}
}

// Result summarizes one scan pass.
type Result struct {
	Pressure        Level
	AgeDeleted      int
	QuotaDeleted    int
	PressureDeleted int
}

// Scan runs one full policy pass: disk-pressure classification, then per
// stream age and quota policies, then (if pressure is Critical or worse)
// the system-wide pressure sweep. Protected rows are never selected by any
// policy.
func (e *Engine) Scan(ctx context.Context) (Result, error) {
	freePct, err := e.spacer.FreePercent(e.storageDir)
	if err != nil {
		return Result{}, fmt.Errorf("retention scan: disk space: %w", err)
	}
	level := ClassifyPressure(freePct)
	result := Result{Pressure: level}

	streams, err := e.db.ListStreamConfigs(ctx)
	if err != nil {
		return result, fmt.Errorf("retention scan: list streams: %w", err)
	}

	multipliers := e.multipliers
	if level == Emergency {
		multipliers = multipliers.halved()
	}

	now := time.Now()
	for _, s := range streams {
		n, err := e.applyAgePolicy(ctx, s, multipliers, now)
		if err != nil {
			slog.Warn("retention: age policy failed", "stream", s.Name, "error", err)
		}
		result.AgeDeleted += n

		if s.MaxBytes > 0 {
			n, err := e.applyQuotaPolicy(ctx, s)
			if err != nil {
				slog.Warn("retention: quota policy failed", "stream", s.Name, "error", err)
			}
			result.QuotaDeleted += n
		}
	}

	if level.AtLeast(Critical) {
		n, err := e.applyPressurePolicy(ctx, level)
		if err != nil {
			slog.Warn("retention: pressure policy failed", "error", err)
		}
		result.PressureDeleted = n
	}

	return result, nil
}

func (e *Engine) applyAgePolicy(ctx context.Context, s database.StreamConfig, multipliers TierMultipliers, now time.Time) (int, error) {
	rows, err := e.db.GetForRetention(ctx, s.Name, s.RetentionDays, s.DetectionRetentionDays, 0)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, r := range rows {
		var cutoff time.Time
		if r.RetentionOverrideDays >= 0 {
			cutoff = now.Add(-time.Duration(r.RetentionOverrideDays) * 24 * time.Hour)
		} else {
			baseDays := s.RetentionDays
			if r.Trigger == database.TriggerDetection || r.Trigger == database.TriggerMotion {
				baseDays = s.DetectionRetentionDays
			}
			cutoff = multipliers.Cutoff(now, baseDays, r.RetentionTier)
		}
		if r.StartTime.Before(cutoff) {
			if e.deleteRecording(ctx, r) {
				deleted++
			}
		}
	}
	return deleted, nil
}

func (e *Engine) applyQuotaPolicy(ctx context.Context, s database.StreamConfig) (int, error) {
	deleted := 0
	for {
		used, err := e.db.GetStreamStorageBytes(ctx, s.Name)
		if err != nil {
			return deleted, err
		}
		if used <= s.MaxBytes {
			return deleted, nil
		}

		candidates, err := e.db.GetForQuota(ctx, s.Name, 1)
		if err != nil {
			return deleted, err
		}
		if len(candidates) == 0 {
			return deleted, nil
		}
		if e.deleteRecording(ctx, candidates[0]) {
			deleted++
		} else {
			return deleted, nil
		}
	}
}

func (e *Engine) applyPressurePolicy(ctx context.Context, level Level) (int, error) {
	deleted := 0
	for {
		freePct, err := e.spacer.FreePercent(e.storageDir)
		if err != nil {
			return deleted, err
		}
		if ClassifyPressure(freePct) < Warning {
			return deleted, nil
		}

		candidates, err := e.db.GetPressureCandidates(ctx, 1)
		if err != nil {
			return deleted, err
		}
		if len(candidates) == 0 {
			return deleted, nil
		}
		if e.deleteRecording(ctx, candidates[0]) {
			deleted++
		} else {
			return deleted, nil
		}
	}
}

// deleteRecording removes the file first; only on success does it delete
// the catalog row. A filesystem failure leaves the row intact for the
// out-of-scope orphan reaper to reconcile later.
func (e *Engine) deleteRecording(ctx context.Context, r database.Recording) bool {
	if err := os.Remove(r.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("retention: delete file failed, keeping row", "id", r.ID, "path", r.FilePath, "error", err)
		return false
	}
	if err := e.db.DeleteRecording(ctx, r.ID); err != nil {
		slog.Warn("retention: delete row failed", "id", r.ID, "error", err)
		return false
	}
	if _, err := e.db.RecordEvent(ctx, database.Event{
		OccurredAt: time.Now(),
		StreamName: r.StreamName,
		Kind:       "retention_deletion",
		Message:    fmt.Sprintf("deleted recording %d (%s)", r.ID, r.FilePath),
	}); err != nil {
		slog.Warn("retention: audit log write failed", "id", r.ID, "error", err)
	}
	if err := e.db.UpsertSystemStat(ctx, "retention_deletions_total", 1); err != nil {
		slog.Warn("retention: stat update failed", "error", err)
	}
	return true
}

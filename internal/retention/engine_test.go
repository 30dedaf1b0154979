package retention

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvrengine/engine/internal/database"
)

type fakeSpacer struct{ pct float64 }

func (f *fakeSpacer) FreePercent(string) (float64, error) { return f.pct, nil }

func openDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "catalog.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	return p
}

func TestEngine_AgePolicyDeletesOldRows(t *testing.T) {
	db := openDB(t)
	dir := t.TempDir()
	ctx := context.Background()

	_, err := db.AddStreamConfig(ctx, database.StreamConfig{
		Name: "s", SourceURL: "rtsp://x", RetentionDays: 7, DetectionRetentionDays: 30,
	})
	require.NoError(t, err)

	oldPath := writeFile(t, dir, "old.mp4")
	id, err := db.AddRecording(ctx, database.Recording{
		StreamName: "s", FilePath: oldPath, StartTime: time.Now().Add(-30 * 24 * time.Hour),
		IsComplete: true, Trigger: database.TriggerScheduled,
		RetentionOverrideDays: -1, RetentionTier: database.TierStandard,
	})
	require.NoError(t, err)

	e := New(db, dir, &fakeSpacer{pct: 50})
	result, err := e.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.AgeDeleted)

	_, err = db.GetByID(ctx, id)
	assert.Error(t, err)
	_, statErr := os.Stat(oldPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestEngine_ProtectedRowSurvives(t *testing.T) {
	db := openDB(t)
	dir := t.TempDir()
	ctx := context.Background()

	_, err := db.AddStreamConfig(ctx, database.StreamConfig{Name: "s", SourceURL: "x", RetentionDays: 1, DetectionRetentionDays: 1})
	require.NoError(t, err)

	path := writeFile(t, dir, "protected.mp4")
	id, err := db.AddRecording(ctx, database.Recording{
		StreamName: "s", FilePath: path, StartTime: time.Now().Add(-365 * 24 * time.Hour),
		IsComplete: true, Trigger: database.TriggerScheduled, Protected: true,
		RetentionOverrideDays: -1, RetentionTier: database.TierStandard,
	})
	require.NoError(t, err)
	require.NoError(t, db.SetProtected(ctx, id, true))

	e := New(db, dir, &fakeSpacer{pct: 50})
	_, err = e.Scan(ctx)
	require.NoError(t, err)

	_, err = db.GetByID(ctx, id)
	assert.NoError(t, err)
}

func TestEngine_QuotaPolicyDeletesOldestUntilUnderBudget(t *testing.T) {
	db := openDB(t)
	dir := t.TempDir()
	ctx := context.Background()

	_, err := db.AddStreamConfig(ctx, database.StreamConfig{
		Name: "s", SourceURL: "x", RetentionDays: 3650, DetectionRetentionDays: 3650, MaxBytes: 150,
	})
	require.NoError(t, err)

	now := time.Now()
	for i, age := range []time.Duration{3 * 24 * time.Hour, 2 * 24 * time.Hour, 1 * 24 * time.Hour} {
		p := writeFile(t, dir, "r"+string(rune('a'+i))+".mp4")
		_, err := db.AddRecording(ctx, database.Recording{
			StreamName: "s", FilePath: p, StartTime: now.Add(-age), SizeBytes: 100,
			IsComplete: true, Trigger: database.TriggerScheduled,
			RetentionOverrideDays: -1, RetentionTier: database.TierStandard,
		})
		require.NoError(t, err)
	}

	e := New(db, dir, &fakeSpacer{pct: 50})
	result, err := e.Scan(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.QuotaDeleted, 1)

	used, err := db.GetStreamStorageBytes(ctx, "s")
	require.NoError(t, err)
	assert.LessOrEqual(t, used, int64(150))
}

func TestEngine_PressurePolicySweepsEligibleRows(t *testing.T) {
	db := openDB(t)
	dir := t.TempDir()
	ctx := context.Background()

	_, err := db.AddStreamConfig(ctx, database.StreamConfig{Name: "s", SourceURL: "x", RetentionDays: 3650, DetectionRetentionDays: 3650})
	require.NoError(t, err)

	path := writeFile(t, dir, "eligible.mp4")
	_, err = db.AddRecording(ctx, database.Recording{
		StreamName: "s", FilePath: path, StartTime: time.Now(),
		IsComplete: true, Trigger: database.TriggerScheduled,
		RetentionOverrideDays: -1, RetentionTier: database.TierStandard,
		DiskPressureEligible: true,
	})
	require.NoError(t, err)

	spacer := &fakeSpacer{pct: 3} // Emergency/Critical
	e := New(db, dir, spacer)
	result, err := e.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, Emergency, result.Pressure)
	assert.Equal(t, 1, result.PressureDeleted)
}

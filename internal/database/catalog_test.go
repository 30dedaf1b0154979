package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(Config{Path: filepath.Join(dir, "catalog.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestAddAndGetRecording(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id, err := db.AddRecording(ctx, Recording{
		StreamName: "camera1", FilePath: "/rec/1.mp4",
		StartTime: time.Now(), Trigger: TriggerScheduled,
		RetentionOverrideDays: -1, RetentionTier: TierStandard,
		DiskPressureEligible: true,
	})
	require.NoError(t, err)

	got, err := db.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "camera1", got.StreamName)
	assert.Equal(t, "/rec/1.mp4", got.FilePath)
}

func TestGetByID_RollbackMakesRowInvisible(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	var id int64
	err := db.WithTransaction(ctx, func() error {
		var err error
		id, err = db.AddRecording(ctx, Recording{
			StreamName: "camera1", FilePath: "/rec/tx.mp4", StartTime: time.Now(),
			Trigger: TriggerManual, RetentionOverrideDays: -1, RetentionTier: TierStandard,
		})
		if err != nil {
			return err
		}
		_, err = db.GetByID(ctx, id)
		return err
	})
	require.NoError(t, err)

	// Second transaction: add then roll back explicitly.
	require.NoError(t, db.Begin(ctx))
	id2, err := db.AddRecording(ctx, Recording{
		StreamName: "camera1", FilePath: "/rec/tx2.mp4", StartTime: time.Now(),
		Trigger: TriggerManual, RetentionOverrideDays: -1, RetentionTier: TierStandard,
	})
	require.NoError(t, err)
	_, err = db.GetByID(ctx, id2)
	require.NoError(t, err)
	require.NoError(t, db.Rollback())

	_, err = db.GetByID(ctx, id2)
	assert.Error(t, err)
}

func TestCommitWithoutBegin_NoopConflict(t *testing.T) {
	db := openTestDB(t)
	err := db.Commit()
	require.Error(t, err)
	assert.ErrorContains(t, err, "conflict")
}

func TestRollbackWithoutBegin_NoopConflict(t *testing.T) {
	db := openTestDB(t)
	err := db.Rollback()
	require.Error(t, err)
}

func TestSizeSync_SkipsIncompleteAndMissingAndNonzero(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	missingPath := filepath.Join(t.TempDir(), "missing.mp4")
	id1, _ := db.AddRecording(ctx, Recording{StreamName: "s", FilePath: missingPath, StartTime: time.Now(), IsComplete: true, SizeBytes: 0, RetentionOverrideDays: -1, RetentionTier: TierStandard})

	id2, _ := db.AddRecording(ctx, Recording{StreamName: "s", FilePath: "/no/such/incomplete.mp4", StartTime: time.Now(), IsComplete: false, SizeBytes: 0, RetentionOverrideDays: -1, RetentionTier: TierStandard})

	presentPath := filepath.Join(t.TempDir(), "present.mp4")
	require.NoError(t, os.WriteFile(presentPath, []byte("hello"), 0o644))
	id3, _ := db.AddRecording(ctx, Recording{StreamName: "s", FilePath: presentPath, StartTime: time.Now(), IsComplete: true, SizeBytes: 100, RetentionOverrideDays: -1, RetentionTier: TierStandard})

	sync := NewSizeSync(db)
	updated, err := sync.ForceSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, updated)

	r1, _ := db.GetByID(ctx, id1)
	assert.Zero(t, r1.SizeBytes)
	r2, _ := db.GetByID(ctx, id2)
	assert.Zero(t, r2.SizeBytes)
	r3, _ := db.GetByID(ctx, id3)
	assert.Equal(t, int64(100), r3.SizeBytes)
}

func TestGetForQuota_OldestFirst(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	mustAdd := func(age time.Duration, path string) {
		_, err := db.AddRecording(ctx, Recording{
			StreamName: "s", FilePath: path, StartTime: now.Add(-age),
			IsComplete: true, Trigger: TriggerScheduled, RetentionOverrideDays: -1, RetentionTier: TierStandard,
		})
		require.NoError(t, err)
	}
	mustAdd(24*time.Hour, "/r/1d.mp4")
	mustAdd(5*24*time.Hour, "/r/5d.mp4")
	mustAdd(9*24*time.Hour, "/r/9d.mp4")

	rows, err := db.GetForQuota(ctx, "s", 0)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "/r/9d.mp4", rows[0].FilePath)
	assert.Equal(t, "/r/5d.mp4", rows[1].FilePath)
	assert.Equal(t, "/r/1d.mp4", rows[2].FilePath)
}

func TestGetForRetention_DetectionTrigger(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	_, err := db.AddRecording(ctx, Recording{
		StreamName: "s", FilePath: "/r/10d.mp4", StartTime: now.Add(-10 * 24 * time.Hour),
		IsComplete: true, Trigger: TriggerDetection, RetentionOverrideDays: -1, RetentionTier: TierStandard,
	})
	require.NoError(t, err)
	_, err = db.AddRecording(ctx, Recording{
		StreamName: "s", FilePath: "/r/20d.mp4", StartTime: now.Add(-20 * 24 * time.Hour),
		IsComplete: true, Trigger: TriggerDetection, RetentionOverrideDays: -1, RetentionTier: TierStandard,
	})
	require.NoError(t, err)

	rows, err := db.GetForRetention(ctx, "s", 7, 14, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "/r/20d.mp4", rows[0].FilePath)
}

func TestGetForRetention_NeverReturnsProtected(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	id, err := db.AddRecording(ctx, Recording{
		StreamName: "s", FilePath: "/r/old.mp4", StartTime: now.Add(-100 * 24 * time.Hour),
		IsComplete: true, Trigger: TriggerScheduled, Protected: true, RetentionOverrideDays: -1, RetentionTier: TierStandard,
	})
	require.NoError(t, err)
	require.NoError(t, db.SetProtected(ctx, id, true))

	rows, err := db.GetForRetention(ctx, "s", 1, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestGetEventsInTimeRange_EmptyRangeReturnsZeroNotError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	events, err := db.GetEventsInTimeRange(ctx, TimeRange{Start: time.Now().Add(-time.Second), End: time.Now().Add(time.Second)})
	require.NoError(t, err)
	assert.Len(t, events, 0)
}

func TestStreamConfigRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	s := StreamConfig{
		Name: "camera1", SourceURL: "rtsp://x", Width: 1920, Height: 1080, FPS: 30,
		Priority: 5, RetentionDays: 30, DetectionRetentionDays: 14,
		TierMultiplierCritical: 3, TierMultiplierImportant: 2, TierMultiplierEphemeral: 0.25,
		StreamingEnabled: true, ObjectFilterMode: ObjectFilterNone,
	}
	id, err := db.AddStreamConfig(ctx, s)
	require.NoError(t, err)

	got, err := db.GetStreamConfigByName(ctx, "camera1")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, s.Name, got.Name)
	assert.Equal(t, s.SourceURL, got.SourceURL)
	assert.Equal(t, s.FPS, got.FPS)
}

func TestDetectionZonesRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	zones := []DetectionZone{{
		Enabled: true, MinConfidence: 0.5, ClassAllowlist: "person,car",
		Vertices: []Point{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
	}}
	require.NoError(t, db.SaveDetectionZones(ctx, "camera1", zones))

	got, err := db.GetDetectionZones(ctx, "camera1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, zones[0].Vertices, got[0].Vertices)
	assert.Equal(t, zones[0].ClassAllowlist, got[0].ClassAllowlist)
}

func TestTOTPRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	uid, err := db.CreateUser(ctx, "alice", "hash", RoleUser)
	require.NoError(t, err)

	require.NoError(t, db.SetTOTPSecret(ctx, uid, "JBSWY3DPEHPK3PXP"))
	require.NoError(t, db.EnableTOTP(ctx, uid, true))

	secret, enabled, err := db.GetTOTPInfo(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", secret)
	assert.True(t, enabled)
}

func TestSessionLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	uid, err := db.CreateUser(ctx, "bob", "hash", RoleViewer)
	require.NoError(t, err)

	token, err := db.CreateSession(ctx, uid, "127.0.0.1", "test-agent", time.Hour)
	require.NoError(t, err)

	got, err := db.ValidateSession(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, uid, got)

	require.NoError(t, db.DeleteSession(ctx, token))
	_, err = db.ValidateSession(ctx, token)
	assert.Error(t, err)
}

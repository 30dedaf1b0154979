package detection

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvrengine/engine/internal/database"
)

func openDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "catalog.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func square(x0, y0, x1, y1 float64) []database.Point {
	return []database.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}

func TestFilterByZones_NilResultIsError(t *testing.T) {
	db := openDB(t)
	g := New(db)
	err := g.FilterByZones(context.Background(), "s", nil)
	assert.Error(t, err)
}

func TestFilterByZones_UnknownStreamIsError(t *testing.T) {
	db := openDB(t)
	g := New(db)
	result := []database.Detection{{Label: "person"}}
	err := g.FilterByZones(context.Background(), "nope", &result)
	assert.Error(t, err)
}

func TestFilterByZones_NoZonesKeepsEverything(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	_, err := db.AddStreamConfig(ctx, database.StreamConfig{Name: "s", SourceURL: "x"})
	require.NoError(t, err)

	g := New(db)
	result := []database.Detection{{Label: "person", X: 0.9, Y: 0.9}}
	require.NoError(t, g.FilterByZones(ctx, "s", &result))
	assert.Len(t, result, 1)
}

func TestFilterByZones_InOutBoundary(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	_, err := db.AddStreamConfig(ctx, database.StreamConfig{Name: "s", SourceURL: "x"})
	require.NoError(t, err)
	require.NoError(t, db.SaveDetectionZones(ctx, "s", []database.DetectionZone{
		{Enabled: true, MinConfidence: 0, Vertices: square(0, 0, 0.5, 0.5)},
	}))

	g := New(db)
	result := []database.Detection{
		{Label: "person", X: 0.1, Y: 0.1, W: 0.1, H: 0.1, Confidence: 1}, // center (0.15,0.15) -> in
		{Label: "person", X: 0.7, Y: 0.7, W: 0.1, H: 0.1, Confidence: 1}, // center (0.75,0.75) -> out
	}
	require.NoError(t, g.FilterByZones(ctx, "s", &result))
	require.Len(t, result, 1)
	assert.Equal(t, 0.1, result[0].X)
}

func TestFilterByZones_MinConfidenceBoundary(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	_, err := db.AddStreamConfig(ctx, database.StreamConfig{Name: "s", SourceURL: "x"})
	require.NoError(t, err)
	require.NoError(t, db.SaveDetectionZones(ctx, "s", []database.DetectionZone{
		{Enabled: true, MinConfidence: 0.8, Vertices: square(0, 0, 0.5, 0.5)},
	}))

	g := New(db)
	result := []database.Detection{
		{Label: "person", X: 0.1, Y: 0.1, W: 0.1, H: 0.1, Confidence: 0.5},
		{Label: "person", X: 0.1, Y: 0.1, W: 0.1, H: 0.1, Confidence: 0.95},
	}
	require.NoError(t, g.FilterByZones(ctx, "s", &result))
	require.Len(t, result, 1)
	assert.Equal(t, 0.95, result[0].Confidence)
}

func TestFilterByZones_ClassAllowlist(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	_, err := db.AddStreamConfig(ctx, database.StreamConfig{Name: "s", SourceURL: "x"})
	require.NoError(t, err)
	require.NoError(t, db.SaveDetectionZones(ctx, "s", []database.DetectionZone{
		{Enabled: true, ClassAllowlist: "person,car", Vertices: square(0, 0, 1, 1)},
	}))

	g := New(db)
	result := []database.Detection{
		{Label: "cat", X: 0.1, Y: 0.1, Confidence: 1},
		{Label: "car", X: 0.1, Y: 0.1, Confidence: 1},
	}
	require.NoError(t, g.FilterByZones(ctx, "s", &result))
	require.Len(t, result, 1)
	assert.Equal(t, "car", result[0].Label)
}

func TestFilterByZones_DisabledZoneIgnored(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	_, err := db.AddStreamConfig(ctx, database.StreamConfig{Name: "s", SourceURL: "x"})
	require.NoError(t, err)
	require.NoError(t, db.SaveDetectionZones(ctx, "s", []database.DetectionZone{
		{Enabled: false, Vertices: square(0, 0, 1, 1)},
	}))

	g := New(db)
	result := []database.Detection{{Label: "person", X: 0.1, Y: 0.1, Confidence: 1}}
	require.NoError(t, g.FilterByZones(ctx, "s", &result))
	assert.Empty(t, result)
}

func TestFilterByStreamObjects_Include(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	_, err := db.AddStreamConfig(ctx, database.StreamConfig{
		Name: "s", SourceURL: "x", ObjectFilterMode: database.ObjectFilterInclude, ObjectFilterList: "person, car",
	})
	require.NoError(t, err)

	g := New(db)
	result := []database.Detection{{Label: "person"}, {Label: "dog"}}
	require.NoError(t, g.FilterByStreamObjects(ctx, "s", &result))
	require.Len(t, result, 1)
	assert.Equal(t, "person", result[0].Label)
}

func TestFilterByStreamObjects_Exclude(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	_, err := db.AddStreamConfig(ctx, database.StreamConfig{
		Name: "s", SourceURL: "x", ObjectFilterMode: database.ObjectFilterExclude, ObjectFilterList: "dog",
	})
	require.NoError(t, err)

	g := New(db)
	result := []database.Detection{{Label: "person"}, {Label: "dog"}}
	require.NoError(t, g.FilterByStreamObjects(ctx, "s", &result))
	require.Len(t, result, 1)
	assert.Equal(t, "person", result[0].Label)
}

func TestFilterByStreamObjects_UnknownStreamIsNoFilter(t *testing.T) {
	db := openDB(t)
	g := New(db)
	result := []database.Detection{{Label: "person"}, {Label: "dog"}}
	require.NoError(t, g.FilterByStreamObjects(context.Background(), "nope", &result))
	assert.Len(t, result, 2)
}

func TestFilterByStreamObjects_ModeNoneIsNoFilter(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	_, err := db.AddStreamConfig(ctx, database.StreamConfig{Name: "s", SourceURL: "x"})
	require.NoError(t, err)

	g := New(db)
	result := []database.Detection{{Label: "person"}, {Label: "dog"}}
	require.NoError(t, g.FilterByStreamObjects(ctx, "s", &result))
	assert.Len(t, result, 2)
}

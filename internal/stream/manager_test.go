package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvrengine/engine/internal/ncerrors"
)

func TestCreate_RejectsEmptyName(t *testing.T) {
	m := New(4)
	_, err := m.Create(Config{Name: ""})
	assert.ErrorIs(t, err, ncerrors.InvalidArgument)
}

func TestCreate_DuplicateNameReturnsExistingHandleWithoutBumpingRefs(t *testing.T) {
	m := New(4)
	h1, err := m.Create(Config{Name: "front-door"})
	require.NoError(t, err)
	_, err = m.AddRef(h1, "hls")
	require.NoError(t, err)

	h2, err := m.Create(Config{Name: "front-door"})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	n, err := m.GetRefCount(h2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestGetByName_UnknownReturnsNotFound(t *testing.T) {
	m := New(4)
	_, err := m.GetByName("nope")
	assert.ErrorIs(t, err, ncerrors.NotFound)
}

func TestRemove_InvalidatesHandle(t *testing.T) {
	m := New(4)
	h, err := m.Create(Config{Name: "s"})
	require.NoError(t, err)
	require.NoError(t, m.Remove(h))

	_, err = m.GetOperationalState(h)
	assert.ErrorIs(t, err, ncerrors.InvalidHandle)

	_, err = m.GetByName("s")
	assert.ErrorIs(t, err, ncerrors.NotFound)
}

func TestAddRef_IngesterAttachTransitionsInactiveToStarting(t *testing.T) {
	m := New(4)
	h, err := m.Create(Config{Name: "s"})
	require.NoError(t, err)

	op, err := m.GetOperationalState(h)
	require.NoError(t, err)
	assert.Equal(t, Inactive, op)

	_, err = m.AddRef(h, "ingester")
	require.NoError(t, err)

	op, err = m.GetOperationalState(h)
	require.NoError(t, err)
	assert.Equal(t, Starting, op)
}

func TestMarkActive_OnlyFromStarting(t *testing.T) {
	m := New(4)
	h, err := m.Create(Config{Name: "s"})
	require.NoError(t, err)

	require.NoError(t, m.MarkActive(h))
	op, _ := m.GetOperationalState(h)
	assert.Equal(t, Inactive, op, "MarkActive from Inactive is a no-op")

	_, _ = m.AddRef(h, "ingester")
	require.NoError(t, m.MarkActive(h))
	op, _ = m.GetOperationalState(h)
	assert.Equal(t, Active, op)
}

func TestAddRefThenReleaseRef_ReturnsToPriorCount(t *testing.T) {
	m := New(4)
	h, err := m.Create(Config{Name: "s"})
	require.NoError(t, err)

	n, err := m.AddRef(h, "record")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = m.AddRef(h, "record")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = m.ReleaseRef(h, "record")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	total, err := m.GetRefCount(h)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestAddRefReleaseRef_ReturnsTotalAcrossComponents(t *testing.T) {
	m := New(4)
	h, err := m.Create(Config{Name: "s"})
	require.NoError(t, err)

	n, err := m.AddRef(h, "hls")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = m.AddRef(h, "record")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = m.AddRef(h, "detect")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = m.ReleaseRef(h, "hls")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "releasing one component's ref must return the total across all components, not that component's own count")
}

func TestReleaseRef_NeverUnderflowsBelowZero(t *testing.T) {
	m := New(4)
	h, err := m.Create(Config{Name: "s"})
	require.NoError(t, err)

	n, err := m.ReleaseRef(h, "record")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	_, _ = m.AddRef(h, "record")
	n, err = m.ReleaseRef(h, "record")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	n, err = m.ReleaseRef(h, "record")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestReleaseRef_DrainingToZeroWhileStoppingGoesInactive(t *testing.T) {
	m := New(4)
	h, err := m.Create(Config{Name: "s"})
	require.NoError(t, err)

	_, err = m.AddRef(h, "hls")
	require.NoError(t, err)
	require.NoError(t, m.RequestStop(h))

	op, _ := m.GetOperationalState(h)
	assert.Equal(t, Stopping, op)

	_, err = m.ReleaseRef(h, "hls")
	require.NoError(t, err)

	op, _ = m.GetOperationalState(h)
	assert.Equal(t, Inactive, op)
}

func TestRequestStop_WithNoRefsGoesStraightToInactive(t *testing.T) {
	m := New(4)
	h, err := m.Create(Config{Name: "s"})
	require.NoError(t, err)

	require.NoError(t, m.RequestStop(h))
	op, _ := m.GetOperationalState(h)
	assert.Equal(t, Inactive, op)
}

func TestMarkError_IsTerminalAgainstRequestStop(t *testing.T) {
	m := New(4)
	h, err := m.Create(Config{Name: "s"})
	require.NoError(t, err)

	require.NoError(t, m.MarkError(h))
	op, _ := m.GetOperationalState(h)
	assert.Equal(t, Error, op)

	require.NoError(t, m.RequestStop(h))
	op, _ = m.GetOperationalState(h)
	assert.Equal(t, Error, op)
}

func TestIsStopping(t *testing.T) {
	m := New(4)
	h, err := m.Create(Config{Name: "s"})
	require.NoError(t, err)

	_, _ = m.AddRef(h, "hls")
	require.NoError(t, m.RequestStop(h))

	stopping, err := m.IsStopping(h)
	require.NoError(t, err)
	assert.True(t, stopping)
}

func TestSetFeature_RejectsUnknownName(t *testing.T) {
	m := New(4)
	h, err := m.Create(Config{Name: "s"})
	require.NoError(t, err)

	err = m.SetFeature(h, Feature("teleport"), true)
	assert.ErrorIs(t, err, ncerrors.UnknownFeature)
}

func TestSetFeature_RoundTrip(t *testing.T) {
	m := New(4)
	h, err := m.Create(Config{Name: "s"})
	require.NoError(t, err)

	enabled, err := m.GetFeature(h, FeatureRecording)
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, m.SetFeature(h, FeatureRecording, true))
	enabled, err = m.GetFeature(h, FeatureRecording)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestCallbacksEnabled_DefaultsFalseAndRoundTrips(t *testing.T) {
	m := New(4)
	h, err := m.Create(Config{Name: "s"})
	require.NoError(t, err)

	enabled, err := m.AreCallbacksEnabled(h)
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, m.SetCallbacksEnabled(h, true))
	enabled, err = m.AreCallbacksEnabled(h)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestGetCount(t *testing.T) {
	m := New(4)
	assert.Equal(t, 0, m.GetCount())
	h, err := m.Create(Config{Name: "a"})
	require.NoError(t, err)
	_, err = m.Create(Config{Name: "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, m.GetCount())

	require.NoError(t, m.Remove(h))
	assert.Equal(t, 1, m.GetCount())
}

func TestShutdown_DrainsRefsThenMarksInactive(t *testing.T) {
	m := New(4)
	h, err := m.Create(Config{Name: "s"})
	require.NoError(t, err)
	_, err = m.AddRef(h, "hls")
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = m.ReleaseRef(h, "hls")
	}()

	m.Shutdown(2 * time.Second)

	op, err := m.GetOperationalState(h)
	require.NoError(t, err)
	assert.Equal(t, Inactive, op)
}

func TestShutdown_BoundedTimeoutForcesInactiveEvenIfRefsNeverDrain(t *testing.T) {
	m := New(4)
	h, err := m.Create(Config{Name: "s"})
	require.NoError(t, err)
	_, err = m.AddRef(h, "stuck")
	require.NoError(t, err)

	start := time.Now()
	m.Shutdown(50 * time.Millisecond)
	assert.Less(t, time.Since(start), time.Second)

	op, err := m.GetOperationalState(h)
	require.NoError(t, err)
	assert.Equal(t, Inactive, op)
}

func TestShutdown_IsIdempotent(t *testing.T) {
	m := New(4)
	_, err := m.Create(Config{Name: "s"})
	require.NoError(t, err)

	m.Shutdown(time.Second)
	m.Shutdown(time.Second)
}

func TestGlobalCleanupResetsToEmpty(t *testing.T) {
	Cleanup()
	g := Global()
	_, err := g.Create(Config{Name: "s"})
	require.NoError(t, err)
	assert.Equal(t, 1, g.GetCount())

	Cleanup()
	g2 := Global()
	assert.Equal(t, 0, g2.GetCount())
}

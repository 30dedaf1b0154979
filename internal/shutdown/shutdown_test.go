package shutdown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitForAllStopped_NoComponents(t *testing.T) {
	c := New()
	ok := c.WaitForAllStopped(10 * time.Millisecond)
	assert.True(t, ok)
}

func TestInitiateShutdown_PriorityOrder(t *testing.T) {
	c := New()
	var order []string

	c.Register("low", "ingester", func() error {
		order = append(order, "low")
		return nil
	}, 1)
	c.Register("high", "retention", func() error {
		order = append(order, "high")
		return nil
	}, 10)
	c.Register("mid", "sizesync", func() error {
		order = append(order, "mid")
		return nil
	}, 5)

	c.InitiateShutdown()

	require.Equal(t, []string{"high", "mid", "low"}, order)
}

func TestInitiateShutdown_Idempotent(t *testing.T) {
	c := New()
	calls := 0
	c.Register("once", "ingester", func() error {
		calls++
		return nil
	}, 0)

	c.InitiateShutdown()
	c.InitiateShutdown()

	assert.Equal(t, 1, calls)
	assert.True(t, c.IsShutdownInitiated())
}

func TestSetState_MonotoneOnly(t *testing.T) {
	c := New()
	id := c.Register("worker", "ingester", nil, 0)

	assert.Equal(t, Running, c.GetState(id))

	c.SetState(id, Stopping)
	assert.Equal(t, Stopping, c.GetState(id))

	// Reverse transition rejected silently.
	c.SetState(id, Running)
	assert.Equal(t, Stopping, c.GetState(id))

	c.SetState(id, Stopped)
	assert.Equal(t, Stopped, c.GetState(id))
}

func TestWaitForAllStopped_Timeout(t *testing.T) {
	c := New()
	c.Register("stuck", "ingester", func() error {
		// Never actually transitions past Stopping in this test: state is
		// set manually below to simulate a component that hangs.
		return nil
	}, 0)
	id := ComponentID(0)
	c.SetState(id, Stopping)

	ok := c.WaitForAllStopped(30 * time.Millisecond)
	assert.False(t, ok)
}

func TestGlobalCleanupResetsToEmpty(t *testing.T) {
	Cleanup()
	g := Global()
	g.Register("x", "ingester", nil, 0)
	assert.True(t, g.WaitForAllStopped(0) == false || len(g.components) == 1)

	Cleanup()
	g2 := Global()
	assert.Empty(t, g2.components)
}

package stream

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nvrengine/engine/internal/ncerrors"
)

// Handle is an arena index identifying a stream's state. It stays valid
// for the stream's lifetime; Remove clears the slot but does not reuse the
// index, so a stale Handle reliably resolves to ncerrors.InvalidHandle
// rather than silently addressing whatever was created next.
type Handle int

const invalidHandle Handle = -1

// DefaultDrainTimeout bounds how long Shutdown waits for a stream's
// reference count to reach zero before moving on.
const DefaultDrainTimeout = 10 * time.Second

// Manager is the process-wide arena of stream states, indexed both by name
// and by Handle.
type Manager struct {
	mu      sync.RWMutex
	states  []*state
	byName  map[string]Handle
}

// New returns a Manager pre-sized for capacity streams. capacity is a
// hint, not a hard limit.
func New(capacity int) *Manager {
	return &Manager{
		states: make([]*state, 0, capacity),
		byName: make(map[string]Handle, capacity),
	}
}

var (
	globalMu sync.Mutex
	global   *Manager
)

// Global returns the process-wide Manager, lazily initialized with a
// modest default capacity on first use.
func Global() *Manager {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		global = New(16)
	}
	return global
}

// Cleanup resets the process-wide Manager so the next Global() call starts
// fresh. Intended for test teardown.
func Cleanup() {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = nil
}

// Create registers a new stream and returns its Handle. A duplicate name
// returns the existing stream's Handle unchanged; it does not reset state
// or bump any reference count.
func (m *Manager) Create(cfg Config) (Handle, error) {
	if cfg.Name == "" {
		return invalidHandle, fmt.Errorf("stream create: %w", ncerrors.InvalidArgument)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.byName[cfg.Name]; ok {
		return h, nil
	}

	s := newState(cfg)
	m.states = append(m.states, s)
	h := Handle(len(m.states) - 1)
	m.byName[cfg.Name] = h
	return h, nil
}

func (m *Manager) at(h Handle) (*state, error) {
	if h < 0 || int(h) >= len(m.states) {
		return nil, fmt.Errorf("stream: %w", ncerrors.InvalidHandle)
	}
	s := m.states[h]
	if s == nil {
		return nil, fmt.Errorf("stream: %w", ncerrors.InvalidHandle)
	}
	return s, nil
}

// GetByName looks up a stream's Handle by its configured name.
func (m *Manager) GetByName(name string) (Handle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.byName[name]
	if !ok {
		return invalidHandle, fmt.Errorf("stream %q: %w", name, ncerrors.NotFound)
	}
	return h, nil
}

// GetByIndex returns the Handle at arena index i, validating it is live.
func (m *Manager) GetByIndex(i int) (Handle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h := Handle(i)
	if _, err := m.at(h); err != nil {
		return invalidHandle, err
	}
	return h, nil
}

// Remove deletes a stream's slot. Its Handle becomes invalid; the arena
// index is never reused.
func (m *Manager) Remove(h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.at(h)
	if err != nil {
		return err
	}
	delete(m.byName, s.name)
	m.states[h] = nil
	return nil
}

// GetCount returns the number of live streams.
func (m *Manager) GetCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byName)
}

// AddRef increments the reference count a named component (e.g. "hls",
// "record", "detect") holds against the stream, returning the stream's new
// total reference count across all components. Incrementing the
// "ingester" component from zero while the stream is Inactive transitions
// it to Starting.
func (m *Manager) AddRef(h Handle, component string) (int64, error) {
	m.mu.RLock()
	s, err := m.at(h)
	m.mu.RUnlock()
	if err != nil {
		return 0, err
	}

	s.refMu.Lock()
	c, ok := s.refs[component]
	if !ok {
		c = &atomic.Int64{}
		s.refs[component] = c
	}
	wasZero := c.Load() == 0
	c.Add(1)
	s.refMu.Unlock()

	if component == "ingester" && wasZero {
		s.mu.Lock()
		if s.op == Inactive {
			s.op = Starting
		}
		s.mu.Unlock()
	}
	return s.totalRefs(), nil
}

// ReleaseRef decrements component's reference count, clamped at zero; an
// over-release is logged rather than allowed to underflow. Returns the
// stream's new total reference count across all components. If the
// component's own count drops to zero while the stream is Stopping and no
// other component holds a reference, the stream transitions to Inactive.
func (m *Manager) ReleaseRef(h Handle, component string) (int64, error) {
	m.mu.RLock()
	s, err := m.at(h)
	m.mu.RUnlock()
	if err != nil {
		return 0, err
	}

	s.refMu.Lock()
	c, ok := s.refs[component]
	if !ok {
		s.refMu.Unlock()
		slog.Warn("stream: release_ref on component with no outstanding refs", "stream", s.name, "component", component)
		return s.totalRefs(), nil
	}
	var componentZero bool
	for {
		cur := c.Load()
		if cur <= 0 {
			slog.Warn("stream: release_ref underflow clamped at zero", "stream", s.name, "component", component)
			componentZero = true
			break
		}
		if c.CompareAndSwap(cur, cur-1) {
			componentZero = cur-1 == 0
			break
		}
	}
	s.refMu.Unlock()

	total := s.totalRefs()
	if componentZero {
		s.mu.Lock()
		if s.op == Stopping && total == 0 {
			s.op = Inactive
		}
		s.mu.Unlock()
	}
	return total, nil
}

// GetRefCount returns the stream's total reference count across all
// components.
func (m *Manager) GetRefCount(h Handle) (int64, error) {
	m.mu.RLock()
	s, err := m.at(h)
	m.mu.RUnlock()
	if err != nil {
		return 0, err
	}
	return s.totalRefs(), nil
}

// GetOperationalState returns the stream's current lifecycle state.
func (m *Manager) GetOperationalState(h Handle) (OperationalState, error) {
	m.mu.RLock()
	s, err := m.at(h)
	m.mu.RUnlock()
	if err != nil {
		return Inactive, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.op, nil
}

// IsStopping reports whether the stream is in the Stopping state.
func (m *Manager) IsStopping(h Handle) (bool, error) {
	op, err := m.GetOperationalState(h)
	if err != nil {
		return false, err
	}
	return op == Stopping, nil
}

// MarkActive transitions a Starting stream to Active, as triggered by the
// caller observing the first keyframe.
func (m *Manager) MarkActive(h Handle) error {
	m.mu.RLock()
	s, err := m.at(h)
	m.mu.RUnlock()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.op == Starting {
		s.op = Active
	}
	return nil
}

// RequestStop transitions the stream to Stopping, unless it is already
// Error (terminal). Idempotent.
func (m *Manager) RequestStop(h Handle) error {
	m.mu.RLock()
	s, err := m.at(h)
	m.mu.RUnlock()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.op != Error {
		s.op = Stopping
		if s.totalRefs() == 0 {
			s.op = Inactive
		}
	}
	return nil
}

// MarkError transitions the stream to the terminal Error state, as
// triggered by a fatal ingester failure.
func (m *Manager) MarkError(h Handle) error {
	m.mu.RLock()
	s, err := m.at(h)
	m.mu.RUnlock()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.op = Error
	return nil
}

// SetFeature toggles one of the closed set of feature gates. Unknown
// feature names return ncerrors.UnknownFeature.
func (m *Manager) SetFeature(h Handle, feature Feature, enabled bool) error {
	if !validFeatures[feature] {
		return fmt.Errorf("stream set_feature %q: %w", feature, ncerrors.UnknownFeature)
	}
	m.mu.RLock()
	s, err := m.at(h)
	m.mu.RUnlock()
	if err != nil {
		return err
	}
	s.featureMu.Lock()
	defer s.featureMu.Unlock()
	s.features[feature] = enabled
	return nil
}

// GetFeature reports whether feature is enabled for the stream.
func (m *Manager) GetFeature(h Handle, feature Feature) (bool, error) {
	if !validFeatures[feature] {
		return false, fmt.Errorf("stream get_feature %q: %w", feature, ncerrors.UnknownFeature)
	}
	m.mu.RLock()
	s, err := m.at(h)
	m.mu.RUnlock()
	if err != nil {
		return false, err
	}
	s.featureMu.Lock()
	defer s.featureMu.Unlock()
	return s.features[feature], nil
}

// SetCallbacksEnabled gates whether the stream's event callbacks (motion,
// detection, recording-segment) fire at all.
func (m *Manager) SetCallbacksEnabled(h Handle, enabled bool) error {
	m.mu.RLock()
	s, err := m.at(h)
	m.mu.RUnlock()
	if err != nil {
		return err
	}
	s.callbacksEnabled.Store(enabled)
	return nil
}

// AreCallbacksEnabled reports the current callback-enabled gate.
func (m *Manager) AreCallbacksEnabled(h Handle) (bool, error) {
	m.mu.RLock()
	s, err := m.at(h)
	m.mu.RUnlock()
	if err != nil {
		return false, err
	}
	return s.callbacksEnabled.Load(), nil
}

// Shutdown moves every live stream to Stopping and waits up to timeout for
// each one's reference count to drain to zero, then marks it Inactive
// regardless. Safe to call more than once.
func (m *Manager) Shutdown(timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultDrainTimeout
	}

	m.mu.RLock()
	handles := make([]Handle, 0, len(m.states))
	for i, s := range m.states {
		if s != nil {
			handles = append(handles, Handle(i))
		}
	}
	m.mu.RUnlock()

	for _, h := range handles {
		_ = m.RequestStop(h)
	}

	deadline := time.Now().Add(timeout)
	const pollInterval = 25 * time.Millisecond
	for {
		allDrained := true
		for _, h := range handles {
			n, err := m.GetRefCount(h)
			if err == nil && n > 0 {
				allDrained = false
				break
			}
		}
		if allDrained || time.Now().After(deadline) {
			break
		}
		time.Sleep(pollInterval)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, h := range handles {
		s := m.states[h]
		if s == nil {
			continue
		}
		s.mu.Lock()
		if s.op != Error {
			s.op = Inactive
		}
		s.mu.Unlock()
	}
}

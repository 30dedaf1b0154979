// Package packetbuffer implements the bounded per-stream packet FIFOs that
// sit between ingestion and the file writer / detection consumers, held
// under a single process-wide memory budget.
package packetbuffer

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/nvrengine/engine/internal/ncerrors"
)

// Handle is a typed index into the pool's buffer arena — the void-pointer
// handle design note applied here: identity is the slot index, never an
// address, so a destroyed buffer's handle is detectably invalid without
// dereferencing anything.
type Handle int

const invalidHandle Handle = -1

// Pool is the process-wide stream -> PacketBuffer mapping plus the global
// byte budget. One mutex guards the mapping; each buffer has its own list
// mutex, per the concurrency model.
type Pool struct {
	mu          sync.RWMutex
	budgetBytes int64
	buffers     []*PacketBuffer
	byName      map[string]Handle
}

// Init returns a ready-to-use Pool with the given memory budget in MB.
func Init(budgetMB int64) *Pool {
	return &Pool{
		budgetBytes: budgetMB * 1024 * 1024,
		byName:      make(map[string]Handle),
	}
}

var (
	globalMu   sync.Mutex
	globalInst *Pool
)

// Global returns the process-wide singleton pool, initializing it with a
// zero budget on first use; callers should Init explicitly in production
// and rely on Global only for the default process-wide state lifecycle.
func Global() *Pool {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalInst == nil {
		globalInst = Init(0)
	}
	return globalInst
}

// Cleanup releases the global pool; a subsequent Global() call begins from
// empty.
func Cleanup() {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalInst = nil
}

// EstimatePacketCount returns ceil(fps*seconds*1.2), a 20% headroom
// estimate used to size buffer capacity hints.
func EstimatePacketCount(fps float64, seconds float64) int {
	return int(math.Ceil(fps * seconds * 1.2))
}

// Create allocates a new buffer for stream with the given target retention
// and mode. The minimum retention is 5 seconds; an empty stream name
// returns ncerrors.InvalidArgument and an invalid handle.
func (p *Pool) Create(stream string, retention time.Duration, mode Mode) (Handle, error) {
	if stream == "" {
		return invalidHandle, fmt.Errorf("create buffer: %w", ncerrors.InvalidArgument)
	}
	if retention < MinRetention {
		return invalidHandle, fmt.Errorf("create buffer: retention below minimum %s: %w", MinRetention, ncerrors.InvalidArgument)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if h, ok := p.byName[stream]; ok {
		return h, nil
	}

	buf := newPacketBuffer(stream, retention, mode)
	p.buffers = append(p.buffers, buf)
	h := Handle(len(p.buffers) - 1)
	p.byName[stream] = h
	return h, nil
}

// Get returns the handle for stream, if a buffer exists for it.
func (p *Pool) Get(stream string) (Handle, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h, ok := p.byName[stream]
	return h, ok
}

func (p *Pool) bufferAt(h Handle) *PacketBuffer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if h < 0 || int(h) >= len(p.buffers) {
		return nil
	}
	return p.buffers[h]
}

// Destroy releases a buffer's slot. A nil/invalid handle is a no-op.
func (p *Pool) Destroy(h Handle) {
	buf := p.bufferAt(h)
	if buf == nil {
		return
	}
	buf.mu.Lock()
	buf.destroyed = true
	buf.packets = nil
	buf.byteCount = 0
	buf.mu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.byName, buf.stream)
}

// AddPacket appends pkt to the buffer's tail and, if the pool's global
// budget would be exceeded, evicts oldest GOP-aligned prefixes: first from
// the buffer's own backlog down to its fair share of the budget, then, if
// the pool is still over budget, from the pool's largest buffer.
func (p *Pool) AddPacket(h Handle, pkt *Packet) error {
	buf := p.bufferAt(h)
	if buf == nil {
		return fmt.Errorf("add packet: %w", ncerrors.InvalidHandle)
	}

	buf.mu.Lock()
	if buf.destroyed {
		buf.mu.Unlock()
		return fmt.Errorf("add packet: %w", ncerrors.InvalidHandle)
	}
	buf.push(pkt)
	buf.mu.Unlock()

	p.rebalance(buf)
	return nil
}

// rebalance enforces the fair-share-then-largest-buffer eviction order
// against the global budget.
func (p *Pool) rebalance(justWritten *PacketBuffer) {
	p.mu.RLock()
	budget := p.budgetBytes
	n := len(p.buffers)
	p.mu.RUnlock()
	if budget <= 0 || n == 0 {
		return
	}

	fairShare := budget / int64(n)

	justWritten.mu.Lock()
	for justWritten.byteCount > fairShare && len(justWritten.packets) > 0 {
		justWritten.evictOldestGOP()
	}
	justWritten.mu.Unlock()

	for p.totalBytes() > budget {
		largest := p.largestBuffer()
		if largest == nil {
			return
		}
		largest.mu.Lock()
		evicted := largest.evictOldestGOP()
		largest.mu.Unlock()
		if evicted == 0 {
			return
		}
	}
}

func (p *Pool) totalBytes() int64 {
	p.mu.RLock()
	bufs := make([]*PacketBuffer, len(p.buffers))
	copy(bufs, p.buffers)
	p.mu.RUnlock()

	var total int64
	for _, b := range bufs {
		if b == nil {
			continue
		}
		b.mu.Lock()
		total += b.byteCount
		b.mu.Unlock()
	}
	return total
}

func (p *Pool) largestBuffer() *PacketBuffer {
	p.mu.RLock()
	bufs := make([]*PacketBuffer, len(p.buffers))
	copy(bufs, p.buffers)
	p.mu.RUnlock()

	var largest *PacketBuffer
	var largestBytes int64
	for _, b := range bufs {
		if b == nil {
			continue
		}
		b.mu.Lock()
		bytes := b.byteCount
		empty := len(b.packets) == 0
		b.mu.Unlock()
		if empty {
			continue
		}
		if largest == nil || bytes > largestBytes {
			largest = b
			largestBytes = bytes
		}
	}
	return largest
}

// PopOldest removes and returns the oldest packet, nil if the buffer is
// empty or the handle is invalid.
func (p *Pool) PopOldest(h Handle) *Packet {
	buf := p.bufferAt(h)
	if buf == nil {
		return nil
	}
	buf.mu.Lock()
	defer buf.mu.Unlock()
	return buf.popFront()
}

// PeekOldest returns the oldest packet without removing it.
func (p *Pool) PeekOldest(h Handle) *Packet {
	buf := p.bufferAt(h)
	if buf == nil {
		return nil
	}
	buf.mu.Lock()
	defer buf.mu.Unlock()
	if len(buf.packets) == 0 {
		return nil
	}
	return buf.packets[0]
}

// Flush iterates the buffer oldest-first, invoking fn with each packet. It
// stops at the first error fn returns and reports the count delivered so
// far. On completion (error or not) the delivered prefix is drained from
// the buffer.
func (p *Pool) Flush(h Handle, fn FlushFunc) (int, error) {
	buf := p.bufferAt(h)
	if buf == nil {
		return 0, fmt.Errorf("flush: %w", ncerrors.InvalidHandle)
	}

	buf.mu.Lock()
	pending := buf.packets
	buf.packets = nil
	buf.mu.Unlock()

	delivered := 0
	var flushErr error
	for _, pkt := range pending {
		if err := fn(pkt); err != nil {
			flushErr = err
			break
		}
		delivered++
	}

	buf.mu.Lock()
	remaining := pending[delivered:]
	if flushErr != nil {
		buf.packets = append(remaining, buf.packets...)
	}
	var remainingBytes int64
	for _, pkt := range pending[:delivered] {
		remainingBytes += int64(pkt.Size())
	}
	buf.byteCount -= remainingBytes
	buf.mu.Unlock()

	return delivered, flushErr
}

// Clear releases every packet held by the buffer.
func (p *Pool) Clear(h Handle) {
	buf := p.bufferAt(h)
	if buf == nil {
		return
	}
	buf.clear()
}

// GetStats returns the buffer's occupancy snapshot.
func (p *Pool) GetStats(h Handle) (Stats, error) {
	buf := p.bufferAt(h)
	if buf == nil {
		return Stats{}, fmt.Errorf("get stats: %w", ncerrors.InvalidHandle)
	}
	return buf.stats(), nil
}

// Cleanup resets the pool to empty; a budget of 0 must be re-Init'd by the
// caller if needed.
func (p *Pool) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buffers = nil
	p.byName = make(map[string]Handle)
}

package packetbuffer

import (
	"sync"
	"time"
)

// MinRetention is the floor enforced by Pool.Create; requests below this are
// rejected.
const MinRetention = 5 * time.Second

// Stats is a point-in-time snapshot of a buffer's occupancy.
type Stats struct {
	Count    int
	Bytes    int64
	Duration time.Duration
}

// PacketBuffer is a per-stream FIFO of packets. Its own mutex guards only
// list splice operations; it is never held across a disk write or system
// call, per the concurrency model.
type PacketBuffer struct {
	mu        sync.Mutex
	stream    string
	retention time.Duration
	mode      Mode
	packets   []*Packet
	byteCount int64
	destroyed bool
	evictions int64
}

func newPacketBuffer(stream string, retention time.Duration, mode Mode) *PacketBuffer {
	return &PacketBuffer{stream: stream, retention: retention, mode: mode}
}

// FlushFunc is invoked once per packet during Flush, oldest first. Returning
// a non-nil error stops iteration; the packet that errored is not
// considered delivered.
type FlushFunc func(p *Packet) error

// push appends a packet to the tail. Caller holds b.mu.
func (b *PacketBuffer) push(p *Packet) {
	b.packets = append(b.packets, p)
	b.byteCount += int64(p.Size())
}

// popFront removes and returns the oldest packet. Caller holds b.mu.
func (b *PacketBuffer) popFront() *Packet {
	if len(b.packets) == 0 {
		return nil
	}
	p := b.packets[0]
	b.packets[0] = nil
	b.packets = b.packets[1:]
	b.byteCount -= int64(p.Size())
	return p
}

// evictOldestGOP drops the oldest packet and, if it was a keyframe, keeps
// dropping the non-keyframe packets that immediately follow it — those
// frames reference the keyframe just evicted and cannot stand alone.
// Eviction therefore always removes a whole GOP prefix, never a partial
// one. Caller holds b.mu. Returns the number of packets evicted.
func (b *PacketBuffer) evictOldestGOP() int {
	if len(b.packets) == 0 {
		return 0
	}
	first := b.popFront()
	n := 1
	if first.Keyframe {
		for len(b.packets) > 0 && !b.packets[0].Keyframe {
			b.popFront()
			n++
		}
	}
	b.evictions += int64(n)
	return n
}

func (b *PacketBuffer) stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := Stats{Count: len(b.packets), Bytes: b.byteCount}
	if len(b.packets) >= 2 {
		s.Duration = b.packets[len(b.packets)-1].Arrival.Sub(b.packets[0].Arrival)
	}
	return s
}

func (b *PacketBuffer) clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.packets = nil
	b.byteCount = 0
}

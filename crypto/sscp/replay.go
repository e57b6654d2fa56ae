package sscp

import (
	"sync"
	"time"
)

// Sequence is one direction's fixed-point frame counter.
type Sequence struct {
	v float64
}

// Value returns the value the next frame must carry.
func (s *Sequence) Value() float64 { return s.v }

// Advance moves to the next value, wrapping to zero at MaxSequence.
func (s *Sequence) Advance() {
	s.v += SequenceIncrement
	if s.v >= MaxSequence {
		s.v = 0
	}
}

// idCache remembers recently accepted packet ids. It is cleared, not evicted, once it grows past its capacity.
type idCache struct {
	capacity int
	seen     map[string]struct{}
}

func newIDCache(capacity int) *idCache {
	return &idCache{capacity: capacity, seen: make(map[string]struct{}, capacity+1)}
}

// add records id and reports false if it was already present.
func (c *idCache) add(id []byte) bool {
	k := string(id)
	if _, ok := c.seen[k]; ok {
		return false
	}
	c.seen[k] = struct{}{}
	if len(c.seen) > c.capacity {
		clear(c.seen)
	}
	return true
}

func (c *idCache) len() int { return len(c.seen) }

// ReplayGuard enforces in-order sequence, packet id uniqueness and timestamp freshness for inbound frames.
type ReplayGuard struct {
	mu      sync.Mutex
	seq     Sequence
	ids     *idCache
	maxSkew time.Duration
}

// NewReplayGuard returns a guard accepting timestamps within maxSkew of the local clock.
func NewReplayGuard(maxSkew time.Duration) *ReplayGuard {
	if maxSkew <= 0 {
		maxSkew = MaxTimestampSkew
	}
	return &ReplayGuard{ids: newIDCache(PacketIDCacheSize), maxSkew: maxSkew}
}

// Check validates one decoded frame header and commits it. A rejected frame leaves the guard unchanged.
func (g *ReplayGuard) Check(seq float64, packetID []byte, ts int64, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if seq != g.seq.Value() {
		return ErrBadSequence
	}
	if !WithinSkew(ts, now, g.maxSkew) {
		return ErrStaleTimestamp
	}
	if !g.ids.add(packetID) {
		return ErrDuplicatePacket
	}
	g.seq.Advance()
	return nil
}

// WithinSkew reports whether the millisecond timestamp ts is no further than maxSkew from now in either direction.
func WithinSkew(ts int64, now time.Time, maxSkew time.Duration) bool {
	d := now.UnixMilli() - ts
	if d < 0 {
		d = -d
	}
	return d <= maxSkew.Milliseconds()
}

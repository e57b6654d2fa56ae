package sscp

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestSequenceWraps(t *testing.T) {
	s := Sequence{v: MaxSequence - SequenceIncrement}
	s.Advance()
	if s.Value() != 0 {
		t.Fatalf("expected wrap to 0, got %v", s.Value())
	}
	var fresh Sequence
	fresh.Advance()
	if fresh.Value() != SequenceIncrement {
		t.Fatalf("expected %v, got %v", SequenceIncrement, fresh.Value())
	}
}

func TestIDCacheClearsOnOverflow(t *testing.T) {
	c := newIDCache(PacketIDCacheSize)
	for i := 0; i < PacketIDCacheSize; i++ {
		if !c.add([]byte{byte(i)}) {
			t.Fatalf("id %d rejected", i)
		}
	}
	if c.add([]byte{0}) {
		t.Fatalf("duplicate accepted while cache is full")
	}
	if !c.add([]byte{0xff, 0xff}) {
		t.Fatalf("new id rejected")
	}
	if c.len() != 0 {
		t.Fatalf("cache should be cleared after exceeding capacity, len=%d", c.len())
	}
	if !c.add([]byte{0}) {
		t.Fatalf("id should be accepted again after clear")
	}
}

func TestReplayGuard(t *testing.T) {
	now := time.Now()
	ts := now.UnixMilli()
	id := bytes.Repeat([]byte{1}, PacketIDSize)

	t.Run("in order", func(t *testing.T) {
		g := NewReplayGuard(0)
		if err := g.Check(0, id, ts, now); err != nil {
			t.Fatal(err)
		}
		if err := g.Check(SequenceIncrement, bytes.Repeat([]byte{2}, PacketIDSize), ts, now); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("sequence mismatch", func(t *testing.T) {
		g := NewReplayGuard(0)
		if err := g.Check(SequenceIncrement, id, ts, now); !errors.Is(err, ErrBadSequence) {
			t.Fatalf("expected ErrBadSequence, got %v", err)
		}
	})

	t.Run("duplicate packet id", func(t *testing.T) {
		g := NewReplayGuard(0)
		if err := g.Check(0, id, ts, now); err != nil {
			t.Fatal(err)
		}
		if err := g.Check(SequenceIncrement, id, ts, now); !errors.Is(err, ErrDuplicatePacket) {
			t.Fatalf("expected ErrDuplicatePacket, got %v", err)
		}
	})

	t.Run("stale and future timestamps", func(t *testing.T) {
		g := NewReplayGuard(0)
		stale := now.Add(-MaxTimestampSkew - time.Second).UnixMilli()
		if err := g.Check(0, id, stale, now); !errors.Is(err, ErrStaleTimestamp) {
			t.Fatalf("expected ErrStaleTimestamp, got %v", err)
		}
		future := now.Add(MaxTimestampSkew + time.Second).UnixMilli()
		if err := g.Check(0, id, future, now); !errors.Is(err, ErrStaleTimestamp) {
			t.Fatalf("expected ErrStaleTimestamp, got %v", err)
		}
		if err := g.Check(0, id, ts, now); err != nil {
			t.Fatalf("rejected frame must not advance the guard: %v", err)
		}
	})
}

package wsutil

import (
	"math"
	"testing"
)

func TestReadLimit(t *testing.T) {
	if got := ReadLimit(0); got != 0 {
		t.Fatalf("ReadLimit(0) = %d, want 0", got)
	}
	if got := ReadLimit(-5); got != 0 {
		t.Fatalf("ReadLimit(-5) = %d, want 0", got)
	}
	base := int64(frameOverheadBytes + deflateOverheadBytes + storedBlockOverhead)
	if got := ReadLimit(100); got != 100+base {
		t.Fatalf("ReadLimit(100) = %d, want %d", got, 100+base)
	}
	n := 16 << 20
	want := int64(n) + frameOverheadBytes + deflateOverheadBytes + (int64(n)/storedBlockBytes+1)*storedBlockOverhead
	if got := ReadLimit(n); got != want {
		t.Fatalf("ReadLimit(%d) = %d, want %d", n, got, want)
	}
	if got := ReadLimit(math.MaxInt); got != math.MaxInt64 {
		t.Fatalf("ReadLimit(MaxInt) = %d, want saturation", got)
	}
}

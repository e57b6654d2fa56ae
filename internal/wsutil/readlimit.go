package wsutil

import "math"

const (
	// frameOverheadBytes is the fixed cost of one SSCP frame around its compressed layer:
	// generated key part(5) + packet type(4) + outer hash(32), plus the cipher hash(32) and
	// GCM tag(16) when a key is installed.
	frameOverheadBytes = 5 + 4 + 32 + 32 + 16

	// Deflate framing on top of the payload: zlib header(2), sync flush marker(5) and slack
	// for a partially filled final block.
	deflateOverheadBytes = 2 + 5 + 16

	// Incompressible input is emitted as stored blocks of at most 65535 bytes, 5 header bytes each.
	storedBlockBytes    = 65535
	storedBlockOverhead = 5
)

// ReadLimit returns the largest websocket message that can carry a frame whose compressed
// layer inflates to at most maxFrameBytes. A zero or negative value returns 0 (no limit).
func ReadLimit(maxFrameBytes int) int64 {
	if maxFrameBytes <= 0 {
		return 0
	}
	n := int64(maxFrameBytes)
	blocks := n/storedBlockBytes + 1
	overhead := int64(frameOverheadBytes+deflateOverheadBytes) + blocks*storedBlockOverhead
	if n > math.MaxInt64-overhead {
		return math.MaxInt64
	}
	return n + overhead
}

package sscp

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"time"

	"github.com/ZygoteCode/SSCP/internal/bin"
)

// RandomSource supplies cryptographically secure bytes.
type RandomSource = io.Reader

// DefaultRandom is the process CSPRNG.
var DefaultRandom RandomSource = rand.Reader

// RandomBytes reads n bytes from r.
func RandomBytes(r RandomSource, n int) ([]byte, error) {
	if r == nil {
		r = DefaultRandom
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// UnixMillis returns t as milliseconds since the Unix epoch.
func UnixMillis(t time.Time) int64 { return t.UnixMilli() }

// GeneratePacketID returns digest256(random ‖ now). Uniqueness is likely, not guaranteed.
func GeneratePacketID(r RandomSource, now time.Time) ([]byte, error) {
	b, err := RandomBytes(r, packetIDEntropySize)
	if err != nil {
		return nil, err
	}
	return Digest256(b, bin.AppendI64LE(nil, UnixMillis(now))), nil
}

// GenerateConnectionID derives the lowercase hex identity of an accepted connection.
func GenerateConnectionID(r RandomSource, ip string, port int, secret []byte, now time.Time) (string, error) {
	salt, err := RandomBytes(r, connectionIDEntropySize)
	if err != nil {
		return "", err
	}
	sum := Digest256(
		[]byte(ip),
		bin.AppendI32LE(nil, int32(port)),
		secret,
		salt,
		bin.AppendI64LE(nil, UnixMillis(now)),
	)
	return hex.EncodeToString(sum), nil
}

package sscp

import (
	"fmt"
	"sync"
	"time"

	"github.com/ZygoteCode/SSCP/internal/bin"
)

// CipherState is the symmetric material shared by both directions of a session.
// Before the handshake installs a key, frames travel without the AEAD layer.
type CipherState struct {
	mu  sync.RWMutex
	key []byte
	iv  []byte
}

// SetKey installs the 32-byte session key.
func (c *CipherState) SetKey(key []byte) error {
	if len(key) != SessionKeySize {
		return fmt.Errorf("%w: %d", ErrInvalidKey, len(key))
	}
	c.mu.Lock()
	c.key = append([]byte(nil), key...)
	c.mu.Unlock()
	return nil
}

// SetIV switches the AEAD nonce from the zero IV to the connection secret.
func (c *CipherState) SetIV(iv []byte) error {
	if len(iv) != IVSize {
		return fmt.Errorf("%w: iv %d", ErrInvalidKey, len(iv))
	}
	c.mu.Lock()
	c.iv = append([]byte(nil), iv...)
	c.mu.Unlock()
	return nil
}

// HasKey reports whether a session key is installed.
func (c *CipherState) HasKey() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.key != nil
}

// Wipe zeroes the installed material.
func (c *CipherState) Wipe() {
	c.mu.Lock()
	Wipe(c.key)
	Wipe(c.iv)
	c.key, c.iv = nil, nil
	c.mu.Unlock()
}

// messageKey returns session_key[5:] ‖ part and the active IV, or a nil key when none is installed.
func (c *CipherState) messageKey(part []byte) (key, iv []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.key == nil {
		return nil, nil
	}
	key = make([]byte, 0, SessionKeySize)
	key = append(key, c.key[GeneratedKeyPartSize:]...)
	key = append(key, part...)
	iv = zeroIV
	if c.iv != nil {
		iv = append([]byte(nil), c.iv...)
	}
	return key, iv
}

// Encoder builds outbound frames for one direction. It is not safe for concurrent use;
// the owning session serializes calls.
type Encoder struct {
	cipher *CipherState
	seq    Sequence
	comp   *Compressor
	rand   RandomSource
	now    func() time.Time
}

// NewEncoder returns an encoder bound to the shared cipher state.
func NewEncoder(cs *CipherState, r RandomSource, now func() time.Time) *Encoder {
	if r == nil {
		r = DefaultRandom
	}
	if now == nil {
		now = time.Now
	}
	return &Encoder{cipher: cs, comp: NewCompressor(), rand: r, now: now}
}

// Encode wraps data into a frame and advances the outbound sequence.
func (e *Encoder) Encode(typ PacketType, data []byte) ([]byte, error) {
	now := e.now()
	packetID, err := GeneratePacketID(e.rand, now)
	if err != nil {
		return nil, err
	}
	part, err := RandomBytes(e.rand, GeneratedKeyPartSize)
	if err != nil {
		return nil, err
	}

	rest := make([]byte, 0, SequenceSize+PacketIDSize+TimestampSize+len(data))
	rest = bin.AppendF64LE(rest, e.seq.Value())
	rest = append(rest, packetID...)
	rest = bin.AppendI64LE(rest, UnixMillis(now))
	rest = append(rest, data...)

	layer := make([]byte, 0, HashSize+len(rest))
	layer = append(layer, Digest256(rest)...)
	layer = append(layer, rest...)

	if key, iv := e.cipher.messageKey(part); key != nil {
		ct, err := Seal(key, iv, layer)
		Wipe(key)
		if err != nil {
			return nil, err
		}
		layer = make([]byte, 0, HashSize+len(ct))
		layer = append(layer, Digest256(ct)...)
		layer = append(layer, ct...)
	}

	compressed, err := e.comp.Compress(layer)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, envelopeHeaderLen+len(compressed))
	frame = append(frame, part...)
	frame = bin.AppendI32LE(frame, int32(typ))
	frame = append(frame, Digest256(compressed)...)
	frame = append(frame, compressed...)

	e.seq.Advance()
	return frame, nil
}

// Decoder validates inbound frames for one direction. It is not safe for concurrent use.
type Decoder struct {
	cipher *CipherState
	guard  *ReplayGuard
	decomp *Decompressor
	now    func() time.Time
}

// NewDecoder returns a decoder. maxBytes bounds the decompressed size of a frame.
func NewDecoder(cs *CipherState, maxSkew time.Duration, maxBytes int, now func() time.Time) *Decoder {
	if now == nil {
		now = time.Now
	}
	return &Decoder{cipher: cs, guard: NewReplayGuard(maxSkew), decomp: NewDecompressor(maxBytes), now: now}
}

// Decode checks every layer of frame, commits its replay state and returns the packet.
// Any error leaves the connection unusable; the caller must tear it down.
func (d *Decoder) Decode(frame []byte) (Packet, error) {
	if len(frame) < envelopeHeaderLen {
		return Packet{}, ErrTruncatedFrame
	}
	part := frame[:GeneratedKeyPartSize]
	typ := PacketType(bin.I32LE(frame[GeneratedKeyPartSize:]))
	sum := frame[GeneratedKeyPartSize+PacketTypeSize : envelopeHeaderLen]
	compressed := frame[envelopeHeaderLen:]
	if !Equal(sum, Digest256(compressed)) {
		return Packet{}, ErrOuterHash
	}

	layer, err := d.decomp.Decompress(compressed)
	if err != nil {
		return Packet{}, err
	}

	if key, iv := d.cipher.messageKey(part); key != nil {
		if len(layer) < HashSize {
			Wipe(key)
			return Packet{}, ErrTruncatedFrame
		}
		ct := layer[HashSize:]
		if !Equal(layer[:HashSize], Digest256(ct)) {
			Wipe(key)
			return Packet{}, ErrCipherHash
		}
		layer, err = Open(key, iv, ct)
		Wipe(key)
		if err != nil {
			return Packet{}, err
		}
	}

	if len(layer) < innerHeaderLen {
		return Packet{}, ErrTruncatedFrame
	}
	rest := layer[HashSize:]
	if !Equal(layer[:HashSize], Digest256(rest)) {
		return Packet{}, ErrInnerHash
	}
	seq := bin.F64LE(rest)
	packetID := rest[SequenceSize : SequenceSize+PacketIDSize]
	ts := bin.I64LE(rest[SequenceSize+PacketIDSize:])
	if err := d.guard.Check(seq, packetID, ts, d.now()); err != nil {
		return Packet{}, err
	}
	return Packet{Type: typ, Data: rest[SequenceSize+PacketIDSize+TimestampSize:]}, nil
}

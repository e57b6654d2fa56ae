package sscp

import "time"

const (
	// ProtocolName is the websocket subprotocol carried by every SSCP connection.
	ProtocolName = "SSCP"
	// DefaultPath is the HTTP path the server listens on.
	DefaultPath = "/SSCP/"
	// DefaultPort is the TCP port used by the reference deployment.
	DefaultPort = 9987
)

const (
	GeneratedKeyPartSize = 5
	PacketTypeSize       = 4
	HashSize             = 32
	KeyShareSize         = 16
	SessionKeySize       = 2 * KeyShareSize
	IVSize               = 16
	SequenceSize         = 8
	TimestampSize        = 8
	PacketIDSize         = HashSize
	ConnectionIDSize     = 2 * HashSize // lowercase hex

	packetIDEntropySize     = 6
	connectionIDEntropySize = 32

	envelopeHeaderLen = GeneratedKeyPartSize + PacketTypeSize + HashSize
	innerHeaderLen    = HashSize + SequenceSize + PacketIDSize + TimestampSize
)

const (
	// SequenceIncrement is added to a direction's sequence counter per frame.
	SequenceIncrement = 0.0001
	// MaxSequence is the ceiling at which a sequence counter wraps to zero.
	MaxSequence = 1e12
	// PacketIDCacheSize bounds the inbound packet id cache; it is cleared, not evicted, on overflow.
	PacketIDCacheSize = 100
	// RSAKeyBits is the modulus size of the ephemeral handshake keypairs.
	RSAKeyBits = 2048
)

const (
	// MaxTimestampSkew is the maximum age (or lead) of a frame timestamp.
	MaxTimestampSkew = 10 * time.Second
	// KeepAliveInterval is the server keep-alive cadence.
	KeepAliveInterval = 3 * time.Second
	// DefaultMaxFrameBytes bounds inbound frames and their decompressed payload.
	DefaultMaxFrameBytes = 16 << 20
)

// PacketType tags the application meaning of a frame. It travels as an opaque int32.
type PacketType int32

const (
	PacketData      PacketType = 0
	PacketKeepAlive PacketType = 1
	// PacketStream carries multiplexed stream bytes (see package stream).
	PacketStream PacketType = 2
)

// Known reports whether t is one of the defined packet types. Sessions reject any other value
// because the type field is not covered by a frame hash.
func (t PacketType) Known() bool {
	return t == PacketData || t == PacketKeepAlive || t == PacketStream
}

func (t PacketType) String() string {
	switch t {
	case PacketData:
		return "data"
	case PacketKeepAlive:
		return "keep_alive"
	case PacketStream:
		return "stream"
	default:
		return "unknown"
	}
}

// Packet is a decoded application frame.
type Packet struct {
	Type PacketType
	Data []byte
}

// String returns the payload as text, matching how console peers print packets.
func (p Packet) String() string { return string(p.Data) }

var zeroIV = make([]byte, IVSize)

package sscp

import (
	"errors"
	"fmt"
)

// Category errors. Every failure returned by this package wraps exactly one of them.
var (
	// ErrIntegrity covers hash mismatches and AEAD failures at any codec layer.
	ErrIntegrity = errors.New("integrity failure")
	// ErrReplay covers sequence mismatches, duplicate packet ids and stale timestamps.
	ErrReplay = errors.New("replay failure")
	// ErrHandshake covers malformed key material and session metadata.
	ErrHandshake = errors.New("handshake failure")
	// ErrAdmission covers connections refused before the handshake (ban list, capacity).
	ErrAdmission = errors.New("admission failure")
	// ErrTransport covers a closed or failing underlying channel.
	ErrTransport = errors.New("transport failure")
)

var (
	ErrTruncatedFrame   = fmt.Errorf("%w: truncated frame", ErrIntegrity)
	ErrOuterHash        = fmt.Errorf("%w: outer hash mismatch", ErrIntegrity)
	ErrCipherHash       = fmt.Errorf("%w: cipher hash mismatch", ErrIntegrity)
	ErrInnerHash        = fmt.Errorf("%w: inner hash mismatch", ErrIntegrity)
	ErrDecrypt          = fmt.Errorf("%w: aead open failed", ErrIntegrity)
	ErrCompression      = fmt.Errorf("%w: invalid compressed stream", ErrIntegrity)
	ErrFrameTooLarge    = fmt.Errorf("%w: frame too large", ErrIntegrity)
	ErrUnknownType      = fmt.Errorf("%w: unknown packet type", ErrIntegrity)
	ErrBadSequence      = fmt.Errorf("%w: unexpected sequence", ErrReplay)
	ErrDuplicatePacket  = fmt.Errorf("%w: duplicate packet id", ErrReplay)
	ErrStaleTimestamp   = fmt.Errorf("%w: timestamp out of skew", ErrReplay)
	ErrInvalidPublicKey = fmt.Errorf("%w: invalid public key", ErrHandshake)
	ErrInvalidKeyShare  = fmt.Errorf("%w: invalid key share", ErrHandshake)
	ErrInvalidMetadata  = fmt.Errorf("%w: invalid session metadata", ErrHandshake)
	ErrUnexpectedStep   = fmt.Errorf("%w: unexpected handshake step", ErrHandshake)
	ErrHandshakeTimeout = fmt.Errorf("%w: handshake timeout", ErrHandshake)
	ErrInvalidKey       = errors.New("invalid key size")
	ErrSessionClosed    = fmt.Errorf("%w: session closed", ErrTransport)
	ErrKeepAliveTimeout = fmt.Errorf("%w: keep-alive timeout", ErrTransport)
)

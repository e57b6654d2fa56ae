package sscp

import (
	"crypto/rsa"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ZygoteCode/SSCP/internal/bin"
)

// Role selects which side of the key exchange a Handshake plays.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

// Step is the handshake progress of a session.
type Step int32

const (
	StepNone        Step = 0 // not started
	StepKeyExchange Step = 1 // public key exchange pending
	StepAwaitPeer   Step = 2 // awaiting peer public key or first key share
	StepAwaitKey    Step = 3 // awaiting symmetric key completion
	StepEstablished Step = 4
)

// SessionInfo is the identity the server assigns at accept time and tells the client in step 3.
type SessionInfo struct {
	ID     string
	IP     string
	Port   int
	Secret []byte
}

// MarshalMetadata encodes info as id ‖ int32 ip_len ‖ ip ‖ int32 port ‖ secret.
func MarshalMetadata(info SessionInfo) ([]byte, error) {
	if len(info.ID) != ConnectionIDSize || len(info.Secret) != IVSize {
		return nil, ErrInvalidMetadata
	}
	out := make([]byte, 0, ConnectionIDSize+4+len(info.IP)+4+IVSize)
	out = append(out, info.ID...)
	out = bin.AppendI32LE(out, int32(len(info.IP)))
	out = append(out, info.IP...)
	out = bin.AppendI32LE(out, int32(info.Port))
	out = append(out, info.Secret...)
	return out, nil
}

// ParseMetadata decodes the step 3 metadata payload.
func ParseMetadata(b []byte) (SessionInfo, error) {
	if len(b) < ConnectionIDSize+4 {
		return SessionInfo{}, ErrInvalidMetadata
	}
	info := SessionInfo{ID: string(b[:ConnectionIDSize])}
	b = b[ConnectionIDSize:]
	n := int(bin.I32LE(b))
	b = b[4:]
	if n < 0 || len(b) != n+4+IVSize {
		return SessionInfo{}, ErrInvalidMetadata
	}
	info.IP = string(b[:n])
	info.Port = int(bin.I32LE(b[n:]))
	info.Secret = append([]byte(nil), b[n+4:]...)
	if info.Port < 0 || info.Port > 65535 {
		return SessionInfo{}, ErrInvalidMetadata
	}
	return info, nil
}

// SendFunc transmits one handshake payload through the session encoder.
type SendFunc func(payload []byte) error

// Handshake drives the four-step key exchange. Cipher state changes happen
// strictly before or after each send, so the peer decodes every message with the
// material it holds at that moment.
type Handshake struct {
	role   Role
	step   atomic.Int32
	cipher *CipherState
	rand   RandomSource

	priv  *rsa.PrivateKey
	peer  *rsa.PublicKey
	share []byte

	mu   sync.Mutex
	info SessionInfo
}

// NewServerHandshake returns the server side. info is sent to the client in step 3.
func NewServerHandshake(cs *CipherState, info SessionInfo, r RandomSource) *Handshake {
	return &Handshake{role: RoleServer, cipher: cs, info: info, rand: r}
}

// NewClientHandshake returns the client side.
func NewClientHandshake(cs *CipherState, r RandomSource) *Handshake {
	return &Handshake{role: RoleClient, cipher: cs, rand: r}
}

func (h *Handshake) Role() Role { return h.role }

func (h *Handshake) Step() Step { return Step(h.step.Load()) }

// Established reports whether step 4 was reached.
func (h *Handshake) Established() bool { return h.Step() == StepEstablished }

// Info returns the session metadata. On the client it is empty before step 4.
func (h *Handshake) Info() SessionInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.info
}

func (h *Handshake) setStep(s Step) { h.step.Store(int32(s)) }

// Start begins the exchange. The server sends its public key; the client waits for it.
func (h *Handshake) Start(send SendFunc) error {
	if h.Step() != StepNone {
		return ErrUnexpectedStep
	}
	h.setStep(StepKeyExchange)
	if h.role == RoleClient {
		return nil
	}
	priv, err := GenerateKeyPair(h.rand)
	if err != nil {
		return err
	}
	h.priv = priv
	pub, err := MarshalPublicKey(&priv.PublicKey)
	if err != nil {
		return err
	}
	if err := send(pub); err != nil {
		return err
	}
	h.setStep(StepAwaitPeer)
	return nil
}

// Handle consumes one inbound handshake payload and may send a reply.
func (h *Handshake) Handle(payload []byte, send SendFunc) error {
	if h.role == RoleServer {
		return h.handleServer(payload, send)
	}
	return h.handleClient(payload, send)
}

func (h *Handshake) handleServer(payload []byte, send SendFunc) error {
	switch h.Step() {
	case StepAwaitPeer:
		peer, err := ParsePublicKey(payload)
		if err != nil {
			return err
		}
		h.peer = peer
		share, err := RandomBytes(h.rand, KeyShareSize)
		if err != nil {
			return err
		}
		h.share = share
		enc, err := EncryptKeyShare(h.rand, peer, share)
		if err != nil {
			return err
		}
		if err := send(enc); err != nil {
			return err
		}
		h.setStep(StepAwaitKey)
		return nil
	case StepAwaitKey:
		peerShare, err := DecryptKeyShare(h.priv, payload)
		if err != nil {
			return err
		}
		if err := h.installKey(h.share, peerShare); err != nil {
			return err
		}
		meta, err := MarshalMetadata(h.info)
		if err != nil {
			return err
		}
		if err := send(meta); err != nil {
			return err
		}
		if err := h.cipher.SetIV(h.info.Secret); err != nil {
			return err
		}
		h.setStep(StepEstablished)
		return nil
	default:
		return fmt.Errorf("%w: server at step %d", ErrUnexpectedStep, h.Step())
	}
}

func (h *Handshake) handleClient(payload []byte, send SendFunc) error {
	switch h.Step() {
	case StepKeyExchange:
		peer, err := ParsePublicKey(payload)
		if err != nil {
			return err
		}
		h.peer = peer
		priv, err := GenerateKeyPair(h.rand)
		if err != nil {
			return err
		}
		h.priv = priv
		pub, err := MarshalPublicKey(&priv.PublicKey)
		if err != nil {
			return err
		}
		if err := send(pub); err != nil {
			return err
		}
		h.setStep(StepAwaitPeer)
		return nil
	case StepAwaitPeer:
		peerShare, err := DecryptKeyShare(h.priv, payload)
		if err != nil {
			return err
		}
		own, err := RandomBytes(h.rand, KeyShareSize)
		if err != nil {
			Wipe(peerShare)
			return err
		}
		enc, err := EncryptKeyShare(h.rand, h.peer, own)
		if err != nil {
			Wipe(peerShare)
			Wipe(own)
			return err
		}
		// The share goes out before the key exists, so it travels without the AEAD layer.
		if err := send(enc); err != nil {
			Wipe(peerShare)
			Wipe(own)
			return err
		}
		if err := h.installKey(peerShare, own); err != nil {
			return err
		}
		h.setStep(StepAwaitKey)
		return nil
	case StepAwaitKey:
		info, err := ParseMetadata(payload)
		if err != nil {
			return err
		}
		if err := h.cipher.SetIV(info.Secret); err != nil {
			return err
		}
		h.mu.Lock()
		h.info = info
		h.mu.Unlock()
		h.setStep(StepEstablished)
		return nil
	default:
		return fmt.Errorf("%w: client at step %d", ErrUnexpectedStep, h.Step())
	}
}

// installKey sets serverShare ‖ clientShare as the session key and drops the ephemeral material.
func (h *Handshake) installKey(first, second []byte) error {
	key := make([]byte, 0, SessionKeySize)
	key = append(key, first...)
	key = append(key, second...)
	err := h.cipher.SetKey(key)
	Wipe(key)
	Wipe(first)
	Wipe(second)
	h.share = nil
	h.priv = nil
	h.peer = nil
	return err
}

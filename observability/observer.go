package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

type AdmissionResult string

const (
	AdmissionResultOK   AdmissionResult = "ok"
	AdmissionResultFail AdmissionResult = "fail"
)

type AdmissionReason string

const (
	AdmissionReasonOK            AdmissionReason = "ok"
	AdmissionReasonBanned        AdmissionReason = "banned"
	AdmissionReasonServerFull    AdmissionReason = "server_full"
	AdmissionReasonServerStopped AdmissionReason = "server_stopped"
	AdmissionReasonBadRequest    AdmissionReason = "bad_request"
	AdmissionReasonUpgradeError  AdmissionReason = "upgrade_error"
)

type HandshakeResult string

const (
	HandshakeResultOK      HandshakeResult = "ok"
	HandshakeResultFail    HandshakeResult = "fail"
	HandshakeResultTimeout HandshakeResult = "timeout"
)

type CloseReason string

const (
	CloseReasonPeerClosed       CloseReason = "peer_closed"
	CloseReasonKicked           CloseReason = "kicked"
	CloseReasonBanned           CloseReason = "banned"
	CloseReasonKeepAliveTimeout CloseReason = "keepalive_timeout"
	CloseReasonProtocolError    CloseReason = "protocol_error"
	CloseReasonServerStopped    CloseReason = "server_stopped"
)

type PacketDirection string

const (
	PacketIn  PacketDirection = "in"
	PacketOut PacketDirection = "out"
)

// ServerObserver receives server-level metric events.
type ServerObserver interface {
	ConnCount(n int64)
	Admission(result AdmissionResult, reason AdmissionReason)
	Handshake(result HandshakeResult, d time.Duration)
	Close(reason CloseReason)
	Packet(direction PacketDirection, packetType string)
}

type noopServerObserver struct{}

func (noopServerObserver) ConnCount(int64)                            {}
func (noopServerObserver) Admission(AdmissionResult, AdmissionReason) {}
func (noopServerObserver) Handshake(HandshakeResult, time.Duration)   {}
func (noopServerObserver) Close(CloseReason)                          {}
func (noopServerObserver) Packet(PacketDirection, string)             {}

// NoopServerObserver is a zero-cost observer used when metrics are disabled.
var NoopServerObserver ServerObserver = noopServerObserver{}

// AtomicServerObserver swaps its delegate at runtime.
type AtomicServerObserver struct {
	once sync.Once
	v    atomic.Value
}

type serverObserverHolder struct {
	obs ServerObserver
}

// NewAtomicServerObserver returns an initialized atomic observer.
func NewAtomicServerObserver() *AtomicServerObserver {
	a := &AtomicServerObserver{}
	a.init()
	return a
}

func (a *AtomicServerObserver) init() {
	a.once.Do(func() { a.v.Store(&serverObserverHolder{obs: NoopServerObserver}) })
}

// Set replaces the delegate, falling back to the no-op observer on nil.
func (a *AtomicServerObserver) Set(obs ServerObserver) {
	if obs == nil {
		obs = NoopServerObserver
	}
	a.init()
	a.v.Store(&serverObserverHolder{obs: obs})
}

func (a *AtomicServerObserver) load() ServerObserver {
	a.init()
	return a.v.Load().(*serverObserverHolder).obs
}

func (a *AtomicServerObserver) ConnCount(n int64) { a.load().ConnCount(n) }
func (a *AtomicServerObserver) Admission(result AdmissionResult, reason AdmissionReason) {
	a.load().Admission(result, reason)
}
func (a *AtomicServerObserver) Handshake(result HandshakeResult, d time.Duration) {
	a.load().Handshake(result, d)
}
func (a *AtomicServerObserver) Close(reason CloseReason) { a.load().Close(reason) }
func (a *AtomicServerObserver) Packet(direction PacketDirection, packetType string) {
	a.load().Packet(direction, packetType)
}

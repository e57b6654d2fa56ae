package server

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/ZygoteCode/SSCP/crypto/sscp"
	"github.com/ZygoteCode/SSCP/observability"
	"github.com/ZygoteCode/SSCP/realtime/ws"
	"github.com/ZygoteCode/SSCP/sscperrors"
	"github.com/ZygoteCode/SSCP/stream"
)

// User is one accepted connection. Its session is driven by the server; callers only send,
// inspect, kick or ban.
type User struct {
	srv    *Server
	info   sscp.SessionInfo
	conn   *ws.Conn
	sess   *sscp.Session
	stream *stream.Conn

	acceptedAt time.Time

	mu       sync.Mutex
	phase    userPhase
	tornDown bool
	// Set when teardown ran while OnConnected was still executing; the closing
	// events are emitted once it returns.
	pending       bool
	pendingKicked bool
}

type userPhase uint8

const (
	phaseHandshake userPhase = iota
	phaseConnecting
	phaseConnected
)

// beginConnected moves u into the connecting phase. It fails once u is torn down.
func (u *User) beginConnected() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.tornDown {
		return false
	}
	u.phase = phaseConnecting
	return true
}

// endConnected marks OnConnected as returned and reports a teardown that happened meanwhile.
func (u *User) endConnected() (pending, kicked bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.phase = phaseConnected
	return u.pending, u.pendingKicked
}

// markTornDown claims the teardown. ok is false when it already ran.
func (u *User) markTornDown(kicked bool) (phase userPhase, ok bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.tornDown {
		return u.phase, false
	}
	u.tornDown = true
	if u.phase == phaseConnecting {
		u.pending, u.pendingKicked = true, kicked
	}
	return u.phase, true
}

// ID is the 64-character hex connection id assigned at accept time.
func (u *User) ID() string { return u.info.ID }

func (u *User) IP() string { return u.info.IP }

func (u *User) Port() int { return u.info.Port }

// RemoteAddr is the transport peer address.
func (u *User) RemoteAddr() net.Addr { return u.conn.RemoteAddr() }

// Step returns the handshake step.
func (u *User) Step() sscp.Step { return u.sess.Step() }

// Established reports whether the handshake completed.
func (u *User) Established() bool { return u.sess.Established() }

// ConnectedSince returns when the handshake completed, or the zero time before that.
func (u *User) ConnectedSince() time.Time { return u.sess.ConnectedSince() }

func (u *User) LastKeepAlive() time.Time { return u.sess.LastKeepAlive() }

// Done is closed once the connection is torn down.
func (u *User) Done() <-chan struct{} { return u.sess.Done() }

// Send delivers data as a DATA packet, waiting for the handshake if needed.
func (u *User) Send(ctx context.Context, data []byte) error {
	return u.SendPacket(ctx, sscp.PacketData, data)
}

// SendPacket delivers data with an explicit packet type.
func (u *User) SendPacket(ctx context.Context, typ sscp.PacketType, data []byte) error {
	if err := u.sess.Send(ctx, typ, data); err != nil {
		return sscperrors.WrapClassified(sscperrors.PathServer, sscperrors.StageSend, err)
	}
	u.srv.obs.Packet(observability.PacketOut, typ.String())
	return nil
}

// Stream returns the byte stream carried in this user's STREAM packets.
func (u *User) Stream() *stream.Conn { return u.stream }

// Kick disconnects the user.
func (u *User) Kick() { u.srv.Kick(u) }

// Ban bans the user's address and kicks every user connected from it.
func (u *User) Ban() { u.srv.Ban(u.IP()) }

func (u *User) String() string {
	id := u.info.ID
	if len(id) > 12 {
		id = id[:12]
	}
	return id + "@" + u.info.IP
}

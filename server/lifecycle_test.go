package server

import (
	"context"
	"strings"
	"testing"

	"github.com/ZygoteCode/SSCP/crypto/sscp"
	"github.com/ZygoteCode/SSCP/observability"
	"github.com/ZygoteCode/SSCP/stream"
)

// idleTransport never delivers a frame; writes are discarded.
type idleTransport struct{ closed chan struct{} }

func (t *idleTransport) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case <-t.closed:
		return nil, context.Canceled
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *idleTransport) WriteFrame(context.Context, []byte) error { return nil }

func (t *idleTransport) Close() error {
	select {
	case <-t.closed:
	default:
		close(t.closed)
	}
	return nil
}

func detachedUser(t *testing.T, s *Server) *User {
	t.Helper()
	info := sscp.SessionInfo{ID: strings.Repeat("ab", 32), IP: "127.0.0.1", Port: 40000, Secret: make([]byte, sscp.IVSize)}
	u := &User{srv: s, info: info}
	u.sess = sscp.NewServerSession(&idleTransport{closed: make(chan struct{})}, info, sscp.Options{})
	u.stream = stream.New(u.sess, u.sess.Done(), stream.Options{})
	return u
}

func TestTeardownBeforeConnectedEmitsNothing(t *testing.T) {
	h := &eventHandler{}
	s, err := New(Config{Handler: h})
	if err != nil {
		t.Fatal(err)
	}
	u := detachedUser(t, s)

	s.teardown(u, observability.CloseReasonBanned, true)
	s.established(u)
	if got := h.events(); len(got) != 0 {
		t.Fatalf("unpaired events: %v", got)
	}
}

// kickOnConnect kicks the user from inside OnConnected and records the events seen right after.
type kickOnConnect struct {
	*eventHandler
	afterKick *[]string
}

func (h kickOnConnect) OnConnected(u *User) {
	h.eventHandler.OnConnected(u)
	u.Kick()
	*h.afterKick = h.events()
}

func TestTeardownDuringConnectedIsDeferred(t *testing.T) {
	h := &eventHandler{}
	var afterKick []string
	s, err := New(Config{Handler: kickOnConnect{eventHandler: h, afterKick: &afterKick}})
	if err != nil {
		t.Fatal(err)
	}
	u := detachedUser(t, s)

	s.established(u)
	if len(afterKick) != 1 {
		t.Fatalf("closing events ran inside OnConnected: %v", afterKick)
	}
	if got := strings.Join(h.events(), ","); got != "connected,disconnected,kicked" {
		t.Fatalf("order = %q", got)
	}
	s.Kick(u)
	if h.disconnected.Load() != 1 || h.kicked.Load() != 1 {
		t.Fatalf("events repeated: %v", h.events())
	}
	select {
	case <-u.Done():
	default:
		t.Fatalf("session not closed")
	}
}

package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZygoteCode/SSCP/crypto/sscp"
	"github.com/ZygoteCode/SSCP/server"
	"github.com/ZygoteCode/SSCP/sscperrors"
	"github.com/gorilla/websocket"
)

type echoHandler struct{ server.BaseHandler }

func (echoHandler) OnMessage(u *server.User, p sscp.Packet) {
	_ = u.SendPacket(context.Background(), p.Type, p.Data)
}

type recorder struct {
	BaseHandler
	connected atomic.Int32
	msgs      chan []byte
	gone      chan error
}

func newRecorder() *recorder {
	return &recorder{msgs: make(chan []byte, 8), gone: make(chan error, 4)}
}

func (r *recorder) OnConnected(*Client) { r.connected.Add(1) }

func (r *recorder) OnMessage(_ *Client, p sscp.Packet) { r.msgs <- p.Data }

func (r *recorder) OnDisconnected(_ *Client, err error) { r.gone <- err }

func newTestServer(t *testing.T, mutate func(*server.Config)) (*server.Server, string) {
	t.Helper()
	cfg := server.DefaultConfig()
	cfg.Handler = echoHandler{}
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := server.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	srv.Register(mux)
	hs := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Stop()
		hs.Close()
	})
	return srv, "ws" + strings.TrimPrefix(hs.URL, "http") + cfg.Path
}

func connectCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestNewRejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "http://localhost/SSCP/", "ws://", "::bad"} {
		_, err := New(u)
		if !errors.Is(err, ErrInvalidURL) {
			t.Fatalf("New(%q) err = %v, want ErrInvalidURL", u, err)
		}
		if sscperrors.Classify(err) != sscperrors.CodeInvalidInput {
			t.Fatalf("New(%q) code = %s", u, sscperrors.Classify(err))
		}
	}
}

func TestNewRejectsBadOption(t *testing.T) {
	_, err := New("ws://localhost/SSCP/", WithHandshakeTimeout(0))
	if sscperrors.Classify(err) != sscperrors.CodeInvalidOption {
		t.Fatalf("expected invalid option, got %v", err)
	}
}

func TestConnectSendDisconnect(t *testing.T) {
	srv, url := newTestServer(t, nil)
	rec := newRecorder()
	c, err := New(url, WithHandler(rec))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Send(context.Background(), []byte("early")); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("send before connect: %v", err)
	}
	if err := c.Connect(connectCtx(t)); err != nil {
		t.Fatal(err)
	}
	if !c.Connected() {
		t.Fatalf("not connected after Connect")
	}
	deadline := time.Now().Add(5 * time.Second)
	for rec.connected.Load() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("OnConnected not called")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if c.ConnectedSince().IsZero() {
		t.Fatalf("ConnectedSince not set")
	}
	if err := c.Connect(connectCtx(t)); !errors.Is(err, ErrAlreadyConnected) {
		t.Fatalf("second connect: %v", err)
	}
	if _, ok := srv.User(c.ID()); !ok {
		t.Fatalf("server does not know %s", c.ID())
	}

	if err := c.Send(context.Background(), []byte("ping")); err != nil {
		t.Fatal(err)
	}
	select {
	case msg := <-rec.msgs:
		if string(msg) != "ping" {
			t.Fatalf("got %q", msg)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no echo")
	}

	if err := c.Disconnect(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-rec.gone:
	default:
		t.Fatalf("Disconnect returned before OnDisconnected")
	}
	if c.Connected() {
		t.Fatalf("still connected after Disconnect")
	}
	if err := c.Send(context.Background(), []byte("late")); sscperrors.Classify(err) != sscperrors.CodeNotConnected {
		t.Fatalf("send after disconnect: %v", err)
	}
}

func TestReconnectGetsNewIdentity(t *testing.T) {
	_, url := newTestServer(t, nil)
	c, err := New(url)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Connect(connectCtx(t)); err != nil {
		t.Fatal(err)
	}
	first := c.ID()
	_ = c.Disconnect()
	if err := c.Connect(connectCtx(t)); err != nil {
		t.Fatal(err)
	}
	defer c.Disconnect()
	if c.ID() == "" || c.ID() == first {
		t.Fatalf("expected a fresh connection id, got %q after %q", c.ID(), first)
	}
}

func TestServerKickDisconnects(t *testing.T) {
	srv, url := newTestServer(t, nil)
	rec := newRecorder()
	c, err := New(url, WithHandler(rec))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Connect(connectCtx(t)); err != nil {
		t.Fatal(err)
	}
	if err := srv.KickID(c.ID()); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-rec.gone:
		if err == nil {
			t.Fatalf("expected a terminal error")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("client did not notice the kick")
	}
}

func TestConnectRejectedWhenBanned(t *testing.T) {
	_, url := newTestServer(t, func(cfg *server.Config) { cfg.BannedAddresses = []string{"127.0.0.1"} })
	c, err := New(url)
	if err != nil {
		t.Fatal(err)
	}
	err = c.Connect(connectCtx(t))
	if sscperrors.Classify(err) != sscperrors.CodeDialFailed {
		t.Fatalf("expected dial failure, got %v", err)
	}
}

func TestConnectRequiresSubprotocol(t *testing.T) {
	up := websocket.Upgrader{}
	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(hs.Close)

	c, err := New("ws" + strings.TrimPrefix(hs.URL, "http") + "/SSCP/")
	if err != nil {
		t.Fatal(err)
	}
	err = c.Connect(connectCtx(t))
	if sscperrors.Classify(err) != sscperrors.CodeUpgradeFailed || !errors.Is(err, ErrSubprotocol) {
		t.Fatalf("expected subprotocol failure, got %v", err)
	}
	if c.Connected() {
		t.Fatalf("client must not report a connection")
	}
}

func TestWatchdogClosesSilentServer(t *testing.T) {
	// The server only emits every 5s so the client's 300ms window always lapses first.
	_, url := newTestServer(t, func(cfg *server.Config) { cfg.KeepAliveInterval = 5 * time.Second })
	rec := newRecorder()
	c, err := New(url,
		WithHandler(rec),
		WithMaxTimestampSkew(300*time.Millisecond),
		WithWatchdogInterval(50*time.Millisecond),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Connect(connectCtx(t)); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-rec.gone:
		if !errors.Is(err, sscp.ErrKeepAliveTimeout) {
			t.Fatalf("expected keep-alive timeout, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("watchdog did not fire")
	}
}

type streamEchoHandler struct{ server.BaseHandler }

func (streamEchoHandler) OnConnected(u *server.User) {
	go func() { _, _ = io.Copy(u.Stream(), u.Stream()) }()
}

func TestStreamEcho(t *testing.T) {
	_, url := newTestServer(t, func(cfg *server.Config) { cfg.Handler = streamEchoHandler{} })
	c, err := New(url)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Connect(connectCtx(t)); err != nil {
		t.Fatal(err)
	}
	defer c.Disconnect()

	st := c.Stream()
	want := strings.Repeat("stream-bytes ", 1000)
	go func() { _, _ = st.Write([]byte(want)) }()
	got := make([]byte, len(want))
	if _, err := io.ReadFull(st, got); err != nil {
		t.Fatal(err)
	}
	if string(got) != want {
		t.Fatalf("stream echo mismatch")
	}
}

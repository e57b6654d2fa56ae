package ws

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Subprotocol is the websocket subprotocol token negotiated by SSCP peers.
const Subprotocol = "SSCP"

type Conn struct {
	c *websocket.Conn // Underlying gorilla/websocket connection.
}

// UpgraderOptions exposes a small set of websocket upgrader controls.
type UpgraderOptions struct {
	ReadBufferSize  int                        // Read buffer size for upgrader.
	WriteBufferSize int                        // Write buffer size for upgrader.
	CheckOrigin     func(r *http.Request) bool // Optional origin check; nil accepts every origin.
	ReadLimit       int64                      // Per-message read limit; 0 keeps gorilla's default.
}

// Upgrade upgrades an HTTP request to a websocket connection speaking the SSCP subprotocol.
func Upgrade(w http.ResponseWriter, r *http.Request, opts UpgraderOptions) (*Conn, error) {
	check := opts.CheckOrigin
	if check == nil {
		check = func(*http.Request) bool { return true }
	}
	up := websocket.Upgrader{
		ReadBufferSize:  opts.ReadBufferSize,
		WriteBufferSize: opts.WriteBufferSize,
		CheckOrigin:     check,
		Subprotocols:    []string{Subprotocol},
	}
	c, err := up.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	if opts.ReadLimit > 0 {
		c.SetReadLimit(opts.ReadLimit)
	}
	return &Conn{c: c}, nil
}

// DialOptions provides optional headers for websocket dialing.
type DialOptions struct {
	Header    http.Header // Optional headers for the handshake request.
	Dialer    *websocket.Dialer
	ReadLimit int64
}

// Dial opens a websocket connection with deadline-aware handshake.
func Dial(ctx context.Context, urlStr string, opts DialOptions) (*Conn, *http.Response, error) {
	var d websocket.Dialer
	if opts.Dialer != nil {
		d = *opts.Dialer
	} else {
		d = websocket.Dialer{Proxy: http.ProxyFromEnvironment}
	}
	if len(d.Subprotocols) == 0 {
		d.Subprotocols = []string{Subprotocol}
	}
	if deadline, ok := ctx.Deadline(); ok {
		// Prefer the tighter of dialer.HandshakeTimeout and the context deadline when both are set.
		dl := time.Until(deadline)
		if d.HandshakeTimeout == 0 || d.HandshakeTimeout > dl {
			d.HandshakeTimeout = dl
		}
	}
	c, resp, err := d.DialContext(ctx, urlStr, opts.Header)
	if err != nil {
		return nil, resp, err
	}
	if opts.ReadLimit > 0 {
		c.SetReadLimit(opts.ReadLimit)
	}
	return &Conn{c: c}, resp, nil
}

// SetReadLimit forwards the read limit to the underlying websocket.
func (c *Conn) SetReadLimit(n int64) {
	c.c.SetReadLimit(n)
}

// RemoteAddr returns the peer network address.
func (c *Conn) RemoteAddr() net.Addr { return c.c.RemoteAddr() }

// Subprotocol returns the negotiated subprotocol.
func (c *Conn) Subprotocol() string { return c.c.Subprotocol() }

// bindDeadline applies ctx's deadline through set and forces a wake-up when ctx is canceled.
// gorilla/websocket only unblocks I/O through socket deadlines.
func bindDeadline(ctx context.Context, set func(time.Time) error) (deadline time.Time, hasDeadline bool, release func()) {
	deadline, hasDeadline = ctx.Deadline()
	if hasDeadline {
		_ = set(deadline)
	} else {
		_ = set(time.Time{})
	}
	if ctx.Done() == nil {
		return deadline, hasDeadline, func() {}
	}
	var active atomic.Bool
	active.Store(true)
	stop := context.AfterFunc(ctx, func() {
		if active.Load() {
			_ = set(time.Now())
		}
	})
	return deadline, hasDeadline, func() {
		active.Store(false)
		stop()
	}
}

// mapTimeout turns socket timeouts caused by ctx back into ctx errors.
func mapTimeout(ctx context.Context, err error, deadline time.Time, hasDeadline bool) error {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		// The socket deadline can fire slightly ahead of the context timer.
		if hasDeadline && !time.Now().Before(deadline) {
			return context.DeadlineExceeded
		}
	}
	return err
}

// ReadMessage reads a websocket frame and respects the context deadline and cancellation.
func (c *Conn) ReadMessage(ctx context.Context) (int, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	deadline, hasDeadline, release := bindDeadline(ctx, c.c.SetReadDeadline)
	defer release()
	mt, b, err := c.c.ReadMessage()
	if err != nil {
		return 0, nil, mapTimeout(ctx, err, deadline, hasDeadline)
	}
	return mt, b, nil
}

// WriteMessage writes a websocket frame and respects the context deadline and cancellation.
func (c *Conn) WriteMessage(ctx context.Context, messageType int, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline, hasDeadline, release := bindDeadline(ctx, c.c.SetWriteDeadline)
	defer release()
	if err := c.c.WriteMessage(messageType, data); err != nil {
		return mapTimeout(ctx, err, deadline, hasDeadline)
	}
	return nil
}

// Close closes the websocket connection.
func (c *Conn) Close() error {
	return c.c.Close()
}

// CloseWithStatus sends a close control frame before closing.
func (c *Conn) CloseWithStatus(code int, text string) error {
	_ = c.c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(2*time.Second))
	return c.c.Close()
}

// Underlying exposes the raw gorilla/websocket connection.
func (c *Conn) Underlying() *websocket.Conn {
	return c.c
}

package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/ZygoteCode/SSCP/crypto/sscp"
	"github.com/ZygoteCode/SSCP/internal/contextutil"
	"github.com/ZygoteCode/SSCP/internal/wsutil"
	"github.com/ZygoteCode/SSCP/realtime/ws"
	"github.com/ZygoteCode/SSCP/sscperrors"
	"github.com/ZygoteCode/SSCP/stream"
	"github.com/rs/zerolog"
)

// Client dials an SSCP server. Connect may be called again after a disconnect.
type Client struct {
	url  string
	opts options
	log  zerolog.Logger

	mu   sync.Mutex
	conn *connection
}

// connection is the state of one dial.
type connection struct {
	sess   *sscp.Session
	stream *stream.Conn
	done   chan struct{} // closed after the receive goroutine has emitted its events
}

// New validates the server URL (ws:// or wss://) and applies opts.
func New(serverURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(serverURL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return nil, sscperrors.Wrap(sscperrors.PathClient, sscperrors.StageValidate, sscperrors.CodeInvalidInput, ErrInvalidURL)
	}
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, sscperrors.Wrap(sscperrors.PathClient, sscperrors.StageValidate, sscperrors.CodeInvalidOption, err)
	}
	return &Client{url: serverURL, opts: cfg, log: cfg.logger}, nil
}

// URL returns the server URL.
func (c *Client) URL() string { return c.url }

func (c *Client) current() *connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// Connect dials the server and blocks until the handshake completes, fails or ctx ends.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if cur := c.conn; cur != nil {
		select {
		case <-cur.done:
		default:
			c.mu.Unlock()
			return sscperrors.Wrap(sscperrors.PathClient, sscperrors.StageValidate, sscperrors.CodeInvalidInput, ErrAlreadyConnected)
		}
	}
	c.mu.Unlock()

	dialCtx, cancel := contextutil.WithTimeout(ctx, c.opts.connectTimeout)
	wc, _, err := ws.Dial(dialCtx, c.url, ws.DialOptions{
		Header:    c.opts.header,
		Dialer:    c.opts.dialer,
		ReadLimit: wsutil.ReadLimit(c.opts.maxFrameBytes),
	})
	cancel()
	if err != nil {
		return sscperrors.Wrap(sscperrors.PathClient, sscperrors.StageConnect, classifyDial(err), err)
	}
	if got := wc.Subprotocol(); got != ws.Subprotocol {
		_ = wc.Close()
		return sscperrors.Wrap(sscperrors.PathClient, sscperrors.StageConnect, sscperrors.CodeUpgradeFailed, fmt.Errorf("%w: got %q", ErrSubprotocol, got))
	}

	cn := &connection{done: make(chan struct{})}
	cn.sess = sscp.NewClientSession(sscp.NewWebSocketTransport(wc), sscp.Options{
		Rand:             c.opts.rand,
		MaxTimestampSkew: c.opts.maxTimestampSkew,
		MaxFrameBytes:    c.opts.maxFrameBytes,
		HandshakeTimeout: c.opts.handshakeTimeout,
		WriteTimeout:     c.opts.writeTimeout,
		OnEstablished:    func() { c.established(cn) },
	})
	cn.stream = stream.New(cn.sess, cn.sess.Done(), stream.Options{})

	c.mu.Lock()
	c.conn = cn
	c.mu.Unlock()

	go c.run(cn)

	select {
	case <-cn.sess.Ready():
		return nil
	case <-cn.sess.Done():
		<-cn.done
		return sscperrors.WrapClassified(sscperrors.PathClient, sscperrors.StageHandshake, cn.sess.Err())
	case <-ctx.Done():
		cn.sess.CloseWithError(ctx.Err())
		<-cn.done
		return sscperrors.WrapClassified(sscperrors.PathClient, sscperrors.StageHandshake, ctx.Err())
	}
}

func classifyDial(err error) sscperrors.Code {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return sscperrors.CodeTimeout
	case errors.Is(err, context.Canceled):
		return sscperrors.CodeCanceled
	default:
		return sscperrors.CodeDialFailed
	}
}

func (c *Client) run(cn *connection) {
	defer close(cn.done)
	err := cn.sess.Run(context.Background(), func(p sscp.Packet) { c.dispatch(cn, p) })
	_ = cn.stream.Close()
	if cn.sess.Established() {
		c.log.Debug().Err(err).Msg("disconnected")
		c.opts.handler.OnDisconnected(c, err)
	} else {
		c.log.Debug().Err(err).Msg("handshake failed")
	}
}

func (c *Client) established(cn *connection) {
	info := cn.sess.Info()
	c.log.Debug().Str("id", info.ID).Str("ip", info.IP).Int("port", info.Port).Msg("connected")
	if c.opts.watchdogInterval > 0 {
		go c.watchdog(cn)
	}
	c.opts.handler.OnConnected(c)
}

// watchdog disconnects when the server stops refreshing its keep-alive.
func (c *Client) watchdog(cn *connection) {
	err := cn.sess.Supervise(context.Background(), c.opts.watchdogInterval, false)
	if errors.Is(err, sscp.ErrKeepAliveTimeout) {
		c.log.Warn().Msg("server keep-alive timeout")
		cn.sess.CloseWithError(err)
	}
}

func (c *Client) dispatch(cn *connection, p sscp.Packet) {
	if p.Type == sscp.PacketStream {
		if err := cn.stream.Deliver(p.Data); err != nil {
			c.log.Debug().Err(err).Msg("stream packet dropped")
		}
		return
	}
	c.opts.handler.OnMessage(c, p)
}

// Disconnect closes the current connection and waits for OnDisconnected to return.
func (c *Client) Disconnect() error {
	cn := c.current()
	if cn == nil {
		return sscperrors.Wrap(sscperrors.PathClient, sscperrors.StageClose, sscperrors.CodeNotConnected, ErrNotConnected)
	}
	_ = cn.sess.Close()
	<-cn.done
	return nil
}

// Send delivers data as a DATA packet.
func (c *Client) Send(ctx context.Context, data []byte) error {
	return c.SendPacket(ctx, sscp.PacketData, data)
}

// SendPacket delivers data with an explicit packet type, waiting for the handshake if needed.
func (c *Client) SendPacket(ctx context.Context, typ sscp.PacketType, data []byte) error {
	cn := c.current()
	if cn == nil {
		return sscperrors.Wrap(sscperrors.PathClient, sscperrors.StageSend, sscperrors.CodeNotConnected, ErrNotConnected)
	}
	if err := cn.sess.Send(ctx, typ, data); err != nil {
		return sscperrors.WrapClassified(sscperrors.PathClient, sscperrors.StageSend, err)
	}
	return nil
}

func (c *Client) info() sscp.SessionInfo {
	cn := c.current()
	if cn == nil {
		return sscp.SessionInfo{}
	}
	return cn.sess.Info()
}

// ID returns the connection id the server assigned, or "" before the handshake completes.
func (c *Client) ID() string { return c.info().ID }

// IP returns the client address as seen by the server.
func (c *Client) IP() string { return c.info().IP }

// Port returns the client port as seen by the server.
func (c *Client) Port() int { return c.info().Port }

// ConnectedSince returns when the current connection completed its handshake.
func (c *Client) ConnectedSince() time.Time {
	cn := c.current()
	if cn == nil {
		return time.Time{}
	}
	return cn.sess.ConnectedSince()
}

// Connected reports whether an established connection is open.
func (c *Client) Connected() bool {
	cn := c.current()
	if cn == nil {
		return false
	}
	select {
	case <-cn.sess.Done():
		return false
	default:
		return cn.sess.Established()
	}
}

// Step returns the handshake step of the current connection.
func (c *Client) Step() sscp.Step {
	cn := c.current()
	if cn == nil {
		return sscp.StepNone
	}
	return cn.sess.Step()
}

// Stream returns the byte stream of the current connection, or nil when never connected.
func (c *Client) Stream() *stream.Conn {
	cn := c.current()
	if cn == nil {
		return nil
	}
	return cn.stream
}

// Package stream carries an ordered byte stream in STREAM packets of an established
// SSCP session, and multiplexes it with yamux.
package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/ZygoteCode/SSCP/crypto/sscp"
)

const (
	DefaultMaxChunk       = 64 << 10
	DefaultMaxBufferBytes = 16 << 20
)

// ErrRecvBufferExceeded indicates buffered inbound bytes exceeded the configured cap.
var ErrRecvBufferExceeded = errors.New("stream recv buffer exceeded")

// Sender transmits one packet on the owning session.
type Sender interface {
	Send(ctx context.Context, typ sscp.PacketType, data []byte) error
}

// Options bounds chunking and buffering. Zero values select the defaults.
type Options struct {
	MaxChunk       int
	MaxBufferBytes int
}

// Conn is a net.Conn whose bytes travel as STREAM packets. Inbound packets are fed with Deliver.
type Conn struct {
	send        Sender
	maxChunk    int
	maxBuffered int

	mu      sync.Mutex
	cond    *sync.Cond
	buf     bytes.Buffer
	readErr error
	closed  bool

	readDeadline  time.Time
	readTimer     *time.Timer
	writeDeadline time.Time

	closedCh  chan struct{}
	closeOnce sync.Once
}

// New returns a Conn writing through s. It reports io.EOF to readers once done is closed.
func New(s Sender, done <-chan struct{}, opts Options) *Conn {
	if opts.MaxChunk <= 0 {
		opts.MaxChunk = DefaultMaxChunk
	}
	if opts.MaxBufferBytes <= 0 {
		opts.MaxBufferBytes = DefaultMaxBufferBytes
	}
	c := &Conn{
		send:        s,
		maxChunk:    opts.MaxChunk,
		maxBuffered: opts.MaxBufferBytes,
		closedCh:    make(chan struct{}),
	}
	c.cond = sync.NewCond(&c.mu)
	if done != nil {
		go func() {
			select {
			case <-done:
				c.fail(io.EOF)
			case <-c.closedCh:
			}
		}()
	}
	return c
}

// Deliver appends the payload of an inbound STREAM packet.
func (c *Conn) Deliver(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.readErr != nil {
		return io.ErrClosedPipe
	}
	if c.buf.Len()+len(b) > c.maxBuffered {
		c.readErr = ErrRecvBufferExceeded
		c.cond.Broadcast()
		return ErrRecvBufferExceeded
	}
	_, _ = c.buf.Write(b)
	c.cond.Broadcast()
	return nil
}

func (c *Conn) fail(err error) {
	c.mu.Lock()
	if c.readErr == nil {
		c.readErr = err
	}
	c.cond.Broadcast()
	c.mu.Unlock()
}

func (c *Conn) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		if c.buf.Len() > 0 {
			return c.buf.Read(p)
		}
		if c.readErr != nil {
			return 0, c.readErr
		}
		if c.closed {
			return 0, io.EOF
		}
		if !c.readDeadline.IsZero() && !time.Now().Before(c.readDeadline) {
			return 0, os.ErrDeadlineExceeded
		}
		c.cond.Wait()
	}
}

// Write splits p into chunks and sends each as one STREAM packet.
func (c *Conn) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		c.mu.Lock()
		closed, deadline := c.closed, c.writeDeadline
		c.mu.Unlock()
		if closed {
			return total, io.ErrClosedPipe
		}
		chunk := p
		if len(chunk) > c.maxChunk {
			chunk = p[:c.maxChunk]
		}
		if err := c.sendChunk(deadline, chunk); err != nil {
			return total, err
		}
		total += len(chunk)
		p = p[len(chunk):]
	}
	return total, nil
}

func (c *Conn) sendChunk(deadline time.Time, chunk []byte) error {
	ctx := context.Background()
	if !deadline.IsZero() {
		if !time.Now().Before(deadline) {
			return os.ErrDeadlineExceeded
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}
	err := c.send.Send(ctx, sscp.PacketStream, chunk)
	if errors.Is(err, context.DeadlineExceeded) {
		return os.ErrDeadlineExceeded
	}
	return err
}

// Close stops the stream. The owning session stays open.
func (c *Conn) Close() error {
	c.mu.Lock()
	c.closed = true
	if c.readTimer != nil {
		c.readTimer.Stop()
		c.readTimer = nil
	}
	c.cond.Broadcast()
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.closedCh) })
	return nil
}

type dummyAddr string

func (a dummyAddr) Network() string { return "sscp" }
func (a dummyAddr) String() string  { return string(a) }

func (c *Conn) LocalAddr() net.Addr  { return dummyAddr("sscp-local") }
func (c *Conn) RemoteAddr() net.Addr { return dummyAddr("sscp-remote") }

func (c *Conn) SetDeadline(t time.Time) error {
	_ = c.SetReadDeadline(t)
	return c.SetWriteDeadline(t)
}

// SetReadDeadline bounds pending and future reads. A zero t clears it.
func (c *Conn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readDeadline = t
	if c.readTimer != nil {
		c.readTimer.Stop()
		c.readTimer = nil
	}
	if !t.IsZero() {
		c.readTimer = time.AfterFunc(time.Until(t), func() {
			c.mu.Lock()
			c.cond.Broadcast()
			c.mu.Unlock()
		})
	}
	c.cond.Broadcast()
	return nil
}

// SetWriteDeadline bounds future writes. A write that misses it may end the owning session,
// as a timed-out websocket write does.
func (c *Conn) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	c.writeDeadline = t
	c.mu.Unlock()
	return nil
}

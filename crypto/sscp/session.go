package sscp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZygoteCode/SSCP/internal/bin"
	"github.com/ZygoteCode/SSCP/internal/contextutil"
	"github.com/ZygoteCode/SSCP/internal/wsutil"
)

// HandlerFunc receives every post-handshake packet that is not a keep-alive.
// It runs on the session's receive goroutine; the next frame is read only after it returns.
type HandlerFunc func(p Packet)

// Options tunes a Session. Zero values select the defaults.
type Options struct {
	Rand             RandomSource
	Now              func() time.Time
	MaxTimestampSkew time.Duration
	MaxFrameBytes    int
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration

	// OnEstablished runs on the receive goroutine once step 4 is reached, before any
	// application packet is dispatched.
	OnEstablished func()
}

const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
)

func (o Options) normalized() Options {
	if o.Rand == nil {
		o.Rand = DefaultRandom
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.MaxTimestampSkew <= 0 {
		o.MaxTimestampSkew = MaxTimestampSkew
	}
	if o.MaxFrameBytes <= 0 {
		o.MaxFrameBytes = DefaultMaxFrameBytes
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	return o
}

var errAlreadyRunning = errors.New("session already running")

// Session is one end of an SSCP connection. A single goroutine drives it through Run;
// Send may be called from any goroutine.
type Session struct {
	t    Transport
	opts Options

	cipher CipherState
	hs     *Handshake
	enc    *Encoder
	dec    *Decoder

	sendMu sync.Mutex

	running   atomic.Bool
	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	closeOnce sync.Once
	err       error

	frameLimit int64

	connectedSince atomic.Int64
	lastKeepAlive  atomic.Int64
}

// NewServerSession prepares the accepting side. info is the identity assigned at accept time.
func NewServerSession(t Transport, info SessionInfo, opts Options) *Session {
	s := newSession(t, opts)
	s.hs = NewServerHandshake(&s.cipher, info, s.opts.Rand)
	return s
}

// NewClientSession prepares the dialing side.
func NewClientSession(t Transport, opts Options) *Session {
	s := newSession(t, opts)
	s.hs = NewClientHandshake(&s.cipher, s.opts.Rand)
	return s
}

func newSession(t Transport, opts Options) *Session {
	opts = opts.normalized()
	s := &Session{
		t:     t,
		opts:  opts,
		ready: make(chan struct{}),
		done:  make(chan struct{}),

		frameLimit: wsutil.ReadLimit(opts.MaxFrameBytes),
	}
	s.enc = NewEncoder(&s.cipher, opts.Rand, opts.Now)
	s.dec = NewDecoder(&s.cipher, opts.MaxTimestampSkew, opts.MaxFrameBytes, opts.Now)
	s.lastKeepAlive.Store(UnixMillis(opts.Now()))
	return s
}

func (s *Session) Role() Role { return s.hs.Role() }

func (s *Session) Step() Step { return s.hs.Step() }

// Info returns the connection identity. On the client it is populated once Ready is closed.
func (s *Session) Info() SessionInfo { return s.hs.Info() }

// ConnectedSince returns when the handshake completed, or the zero time before that.
func (s *Session) ConnectedSince() time.Time {
	ms := s.connectedSince.Load()
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// LastKeepAlive returns the timestamp carried by the most recent accepted keep-alive.
func (s *Session) LastKeepAlive() time.Time { return time.UnixMilli(s.lastKeepAlive.Load()) }

// Ready is closed when the handshake reaches step 4.
func (s *Session) Ready() <-chan struct{} { return s.ready }

// Done is closed when the session is torn down.
func (s *Session) Done() <-chan struct{} { return s.done }

// Established reports whether the handshake completed.
func (s *Session) Established() bool { return s.hs.Established() }

// Err returns the terminal error, or nil while the session is alive.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Close tears the session down. It is safe to call more than once.
func (s *Session) Close() error {
	s.fail(ErrSessionClosed)
	return nil
}

// CloseWithError tears the session down and records err as the terminal error.
func (s *Session) CloseWithError(err error) {
	if err == nil {
		err = ErrSessionClosed
	}
	s.fail(err)
}

func (s *Session) fail(err error) {
	s.closeOnce.Do(func() {
		s.err = err
		close(s.done)
		_ = s.t.Close()
	})
}

// Run performs the handshake and then reads frames until the session ends. It returns the terminal error.
func (s *Session) Run(ctx context.Context, h HandlerFunc) error {
	if !s.running.CompareAndSwap(false, true) {
		return errAlreadyRunning
	}
	ctx, cancel := contextutil.WithDone(ctx, s.done)
	defer cancel()
	defer s.wipe()

	stop := context.AfterFunc(ctx, func() { s.fail(context.Cause(ctx)) })
	defer stop()

	timer := time.AfterFunc(s.opts.HandshakeTimeout, func() {
		if !s.Established() {
			s.fail(ErrHandshakeTimeout)
		}
	})
	defer timer.Stop()

	if err := s.hs.Start(s.handshakeSend(ctx)); err != nil {
		s.fail(err)
		return s.err
	}

	for {
		frame, err := s.t.ReadFrame(ctx)
		if err != nil {
			s.fail(fmt.Errorf("%w: %w", ErrTransport, err))
			return s.err
		}
		if int64(len(frame)) > s.frameLimit {
			s.fail(ErrFrameTooLarge)
			return s.err
		}
		p, err := s.dec.Decode(frame)
		if err != nil {
			s.fail(err)
			return s.err
		}
		if err := s.dispatch(ctx, p, h); err != nil {
			s.fail(err)
			return s.err
		}
	}
}

func (s *Session) dispatch(ctx context.Context, p Packet, h HandlerFunc) error {
	if !p.Type.Known() {
		return fmt.Errorf("%w: %d", ErrUnknownType, int32(p.Type))
	}
	if !s.Established() {
		if p.Type != PacketData {
			return fmt.Errorf("%w: %s before handshake", ErrUnexpectedStep, p.Type)
		}
		if err := s.hs.Handle(p.Data, s.handshakeSend(ctx)); err != nil {
			return err
		}
		if s.Established() {
			now := UnixMillis(s.opts.Now())
			s.connectedSince.Store(now)
			s.lastKeepAlive.Store(now)
			s.readyOnce.Do(func() { close(s.ready) })
			if s.opts.OnEstablished != nil {
				s.opts.OnEstablished()
			}
		}
		return nil
	}
	if p.Type == PacketKeepAlive {
		return s.handleKeepAlive(ctx, p.Data)
	}
	if h != nil {
		h(p)
	}
	return nil
}

func (s *Session) handleKeepAlive(ctx context.Context, data []byte) error {
	if len(data) != TimestampSize {
		return ErrTruncatedFrame
	}
	ts := bin.I64LE(data)
	if !WithinSkew(ts, s.opts.Now(), s.opts.MaxTimestampSkew) {
		return ErrStaleTimestamp
	}
	s.lastKeepAlive.Store(ts)
	if s.Role() == RoleClient {
		return s.SendKeepAlive(ctx)
	}
	return nil
}

func (s *Session) handshakeSend(ctx context.Context) SendFunc {
	return func(payload []byte) error {
		return s.write(ctx, PacketData, payload)
	}
}

// Send waits for the handshake to complete and then transmits data as one frame.
// Only the defined packet types can be sent.
func (s *Session) Send(ctx context.Context, typ PacketType, data []byte) error {
	if !typ.Known() {
		return fmt.Errorf("%w: %d", ErrUnknownType, int32(typ))
	}
	select {
	case <-s.ready:
	case <-s.done:
		return s.closedErr()
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.write(ctx, typ, data)
}

// SendKeepAlive transmits the local time as a keep-alive.
func (s *Session) SendKeepAlive(ctx context.Context) error {
	return s.Send(ctx, PacketKeepAlive, bin.AppendI64LE(nil, UnixMillis(s.opts.Now())))
}

// KeepAliveExpired reports whether the last accepted keep-alive is older than the allowed skew.
func (s *Session) KeepAliveExpired() bool {
	age := UnixMillis(s.opts.Now()) - s.lastKeepAlive.Load()
	return age > s.opts.MaxTimestampSkew.Milliseconds()
}

// Supervise waits for the handshake and then checks keep-alive freshness every interval,
// emitting a keep-alive first when emit is set. It returns ErrKeepAliveTimeout when the peer
// goes quiet, or nil once the session or ctx ends.
func (s *Session) Supervise(ctx context.Context, interval time.Duration, emit bool) error {
	if interval <= 0 {
		interval = KeepAliveInterval
	}
	select {
	case <-s.ready:
	case <-s.done:
		return nil
	case <-ctx.Done():
		return nil
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-s.done:
			return nil
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}
		if emit {
			if err := s.SendKeepAlive(ctx); err != nil {
				return nil
			}
		}
		if s.KeepAliveExpired() {
			return ErrKeepAliveTimeout
		}
	}
}

func (s *Session) write(ctx context.Context, typ PacketType, data []byte) error {
	s.sendMu.Lock()
	select {
	case <-s.done:
		s.sendMu.Unlock()
		return s.closedErr()
	default:
	}
	frame, err := s.enc.Encode(typ, data)
	if err != nil {
		s.sendMu.Unlock()
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
	err = s.t.WriteFrame(wctx, frame)
	cancel()
	s.sendMu.Unlock()
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrTransport, err)
		s.fail(err)
		return err
	}
	return nil
}

func (s *Session) closedErr() error {
	<-s.done
	if s.err == nil || errors.Is(s.err, ErrSessionClosed) {
		return ErrSessionClosed
	}
	return fmt.Errorf("%w: %w", ErrSessionClosed, s.err)
}

// wipe drops key material once no writer can observe it.
func (s *Session) wipe() {
	s.sendMu.Lock()
	s.cipher.Wipe()
	s.sendMu.Unlock()
}

package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ZygoteCode/SSCP/crypto/sscp"
	"github.com/ZygoteCode/SSCP/internal/defaults"
	"github.com/ZygoteCode/SSCP/internal/wsutil"
	"github.com/ZygoteCode/SSCP/observability"
	"github.com/ZygoteCode/SSCP/realtime/ws"
	"github.com/ZygoteCode/SSCP/sscperrors"
	"github.com/ZygoteCode/SSCP/stream"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Unlimited disables the admission limit.
const Unlimited = -1

type Config struct {
	Path            string   // WebSocket endpoint path.
	MaxUsers        int      // Maximum admitted users; Unlimited (-1) disables the limit, 0 refuses everyone.
	BannedAddresses []string // Initial ban list.

	AllowedOrigins []string // Allowed Origin header values; empty accepts every origin.
	AllowNoOrigin  bool     // Whether to allow an empty Origin when AllowedOrigins is set.

	HandshakeTimeout  time.Duration // Tear down sessions that do not reach step 4 in time.
	KeepAliveInterval time.Duration // Keep-alive emission cadence.
	MaxTimestampSkew  time.Duration // Allowed clock skew for frames and keep-alives.
	WriteTimeout      time.Duration // Per-frame websocket write deadline.
	MaxFrameBytes     int           // Max inbound frame size, compressed and decompressed.

	Handler  Handler                      // Receives user events; nil uses BaseHandler.
	Logger   *zerolog.Logger              // Optional; nil disables logging.
	Observer observability.ServerObserver // Optional server metrics observer.
	Rand     sscp.RandomSource            // Optional entropy source.
}

// DefaultConfig returns the defaults for an SSCP server.
func DefaultConfig() Config {
	return Config{
		Path:              sscp.DefaultPath,
		MaxUsers:          Unlimited,
		AllowNoOrigin:     true,
		HandshakeTimeout:  defaults.HandshakeTimeout,
		KeepAliveInterval: sscp.KeepAliveInterval,
		MaxTimestampSkew:  sscp.MaxTimestampSkew,
		WriteTimeout:      sscp.DefaultWriteTimeout,
		MaxFrameBytes:     sscp.DefaultMaxFrameBytes,
		Observer:          observability.NoopServerObserver,
	}
}

// Server accepts SSCP connections, keeps the user registry and enforces admission.
type Server struct {
	cfg Config
	log zerolog.Logger
	obs observability.ServerObserver
	h   Handler
	reg *registry

	startedSince time.Time
	ctx          context.Context
	cancel       context.CancelFunc
	stopOnce     sync.Once
}

// Stats captures a snapshot of server counts.
type Stats struct {
	Users       int
	Established int
	Banned      int
	MaxUsers    int
}

// New normalizes cfg and returns a server ready to be mounted.
func New(cfg Config) (*Server, error) {
	def := DefaultConfig()
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if cfg.Path[0] != '/' {
		return nil, sscperrors.Wrap(sscperrors.PathServer, sscperrors.StageValidate, sscperrors.CodeInvalidOption, errors.New("path must start with /"))
	}
	if cfg.MaxUsers < 0 {
		cfg.MaxUsers = Unlimited
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.MaxTimestampSkew <= 0 {
		cfg.MaxTimestampSkew = def.MaxTimestampSkew
	}
	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = defaults.KeepAliveInterval(cfg.MaxTimestampSkew)
	}
	if cfg.KeepAliveInterval >= cfg.MaxTimestampSkew {
		return nil, sscperrors.Wrap(sscperrors.PathServer, sscperrors.StageValidate, sscperrors.CodeInvalidOption, errors.New("keep-alive interval must be shorter than the timestamp skew"))
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.MaxFrameBytes <= 0 {
		cfg.MaxFrameBytes = def.MaxFrameBytes
	}
	if cfg.Handler == nil {
		cfg.Handler = BaseHandler{}
	}
	if cfg.Observer == nil {
		cfg.Observer = observability.NoopServerObserver
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = cfg.Logger.With().Str("component", "sscp-server").Logger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:          cfg,
		log:          log,
		obs:          cfg.Observer,
		h:            cfg.Handler,
		reg:          newRegistry(cfg.MaxUsers, cfg.BannedAddresses),
		startedSince: time.Now(),
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// Register installs the websocket and health endpoints on the mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.Handle(s.cfg.Path, s)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

// ListenAndServe serves on addr until ctx is canceled, then stops the server.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	s.Register(mux)
	hs := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		s.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaults.ShutdownTimeout)
		defer cancel()
		_ = hs.Shutdown(shutdownCtx)
	}()
	s.log.Info().Str("addr", addr).Str("path", s.cfg.Path).Msg("listening")
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func remoteEndpoint(r *http.Request) (string, int) {
	host, port, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr, 0
	}
	p, _ := strconv.Atoi(port)
	return host, p
}

func rejectStatus(err error) (int, observability.AdmissionReason) {
	switch {
	case errors.Is(err, ErrBanned):
		return http.StatusUnauthorized, observability.AdmissionReasonBanned
	case errors.Is(err, ErrServerFull):
		return http.StatusServiceUnavailable, observability.AdmissionReasonServerFull
	default:
		return http.StatusServiceUnavailable, observability.AdmissionReasonServerStopped
	}
}

func (s *Server) reject(w http.ResponseWriter, ip string, err error) {
	code, reason := rejectStatus(err)
	s.obs.Admission(observability.AdmissionResultFail, reason)
	s.log.Debug().Str("ip", ip).Str("reason", string(reason)).Msg("connection rejected")
	w.WriteHeader(code)
}

// ServeHTTP admits, upgrades and drives one connection. It returns when the connection ends.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ip, port := remoteEndpoint(r)
	if err := s.reg.admit(ip); err != nil {
		s.reject(w, ip, err)
		return
	}
	key, err := ws.HandshakeKey(r)
	if err != nil {
		s.obs.Admission(observability.AdmissionResultFail, observability.AdmissionReasonBadRequest)
		s.log.Debug().Str("ip", ip).Err(err).Msg("bad upgrade request")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	secret := sscp.Digest128([]byte(key))
	id, err := sscp.GenerateConnectionID(s.cfg.Rand, ip, port, secret, time.Now())
	if err != nil {
		s.log.Error().Err(err).Msg("entropy source failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	c, err := ws.Upgrade(w, r, ws.UpgraderOptions{
		CheckOrigin: ws.NewOriginChecker(s.cfg.AllowedOrigins, s.cfg.AllowNoOrigin),
		ReadLimit:   wsutil.ReadLimit(s.cfg.MaxFrameBytes),
	})
	if err != nil {
		s.obs.Admission(observability.AdmissionResultFail, observability.AdmissionReasonUpgradeError)
		return
	}

	u := &User{
		srv:        s,
		info:       sscp.SessionInfo{ID: id, IP: ip, Port: port, Secret: secret},
		conn:       c,
		acceptedAt: time.Now(),
	}
	u.sess = sscp.NewServerSession(sscp.NewWebSocketTransport(c), u.info, sscp.Options{
		Rand:             s.cfg.Rand,
		MaxTimestampSkew: s.cfg.MaxTimestampSkew,
		MaxFrameBytes:    s.cfg.MaxFrameBytes,
		HandshakeTimeout: s.cfg.HandshakeTimeout,
		WriteTimeout:     s.cfg.WriteTimeout,
		OnEstablished:    func() { s.established(u) },
	})
	u.stream = stream.New(u.sess, u.sess.Done(), stream.Options{})

	if err := s.reg.insert(u); err != nil {
		_, reason := rejectStatus(err)
		s.obs.Admission(observability.AdmissionResultFail, reason)
		_ = c.CloseWithStatus(websocket.CloseTryAgainLater, string(reason))
		return
	}
	s.obs.Admission(observability.AdmissionResultOK, observability.AdmissionReasonOK)
	s.obs.ConnCount(int64(s.reg.count()))
	s.log.Debug().Str("user", u.String()).Msg("accepted")

	err = u.sess.Run(s.ctx, func(p sscp.Packet) { s.dispatch(u, p) })
	if !u.sess.Established() {
		result := observability.HandshakeResultFail
		if errors.Is(err, sscp.ErrHandshakeTimeout) {
			result = observability.HandshakeResultTimeout
		}
		s.obs.Handshake(result, time.Since(u.acceptedAt))
	}
	s.teardown(u, closeReason(err), false)
}

func (s *Server) established(u *User) {
	s.obs.Handshake(observability.HandshakeResultOK, time.Since(u.acceptedAt))
	if !u.beginConnected() {
		return
	}
	s.log.Debug().Str("user", u.String()).Msg("handshake completed")
	s.h.OnConnected(u)
	if pending, kicked := u.endConnected(); pending {
		s.h.OnDisconnected(u)
		if kicked {
			s.h.OnKicked(u)
		}
		return
	}
	go s.superviseKeepAlive(u)
}

func (s *Server) dispatch(u *User, p sscp.Packet) {
	s.obs.Packet(observability.PacketIn, p.Type.String())
	if p.Type == sscp.PacketStream {
		if err := u.stream.Deliver(p.Data); err != nil {
			s.log.Debug().Str("user", u.String()).Err(err).Msg("stream packet dropped")
		}
		return
	}
	s.h.OnMessage(u, p)
}

func closeReason(err error) observability.CloseReason {
	switch sscperrors.Classify(err) {
	case sscperrors.CodePeerClosed, sscperrors.CodeTransportFailed, sscperrors.CodeNotConnected, sscperrors.CodeCanceled:
		return observability.CloseReasonPeerClosed
	case sscperrors.CodeKeepAliveTimeout:
		return observability.CloseReasonKeepAliveTimeout
	default:
		return observability.CloseReasonProtocolError
	}
}

// teardown removes u, then emits Disconnected, closes the transport and emits Kicked.
// Events fire only for users whose OnConnected was emitted; a teardown that races
// OnConnected leaves the closing events to established. It runs at most once per user.
func (s *Server) teardown(u *User, reason observability.CloseReason, kicked bool) {
	phase, ok := u.markTornDown(kicked)
	if !ok {
		return
	}
	s.reg.remove(u)
	connected := phase == phaseConnected
	if connected {
		s.h.OnDisconnected(u)
	}
	_ = u.sess.Close()
	_ = u.stream.Close()
	if kicked && connected {
		s.h.OnKicked(u)
	}
	s.obs.Close(reason)
	s.obs.ConnCount(int64(s.reg.count()))
	ev := s.log.Debug().Str("user", u.String()).Str("reason", string(reason))
	if err := u.sess.Err(); err != nil && !errors.Is(err, sscp.ErrSessionClosed) {
		ev = ev.Err(err)
	}
	ev.Msg("disconnected")
}

// Broadcast sends data to every established user. It returns the joined send errors.
func (s *Server) Broadcast(ctx context.Context, data []byte) error {
	users := s.reg.snapshot()
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, u := range users {
		if !u.Established() {
			continue
		}
		wg.Add(1)
		go func(u *User) {
			defer wg.Done()
			if err := u.Send(ctx, data); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(u)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Send delivers data to u once its handshake completes.
func (s *Server) Send(ctx context.Context, u *User, data []byte) error {
	return u.Send(ctx, data)
}

// SendTo delivers data to the user with the given id.
func (s *Server) SendTo(ctx context.Context, id string, data []byte) error {
	u, ok := s.reg.get(id)
	if !ok {
		return sscperrors.Wrap(sscperrors.PathServer, sscperrors.StageSend, sscperrors.CodeUserNotFound, ErrUserNotFound)
	}
	return u.Send(ctx, data)
}

// Kick disconnects u. Kicking twice is harmless.
func (s *Server) Kick(u *User) {
	s.teardown(u, observability.CloseReasonKicked, true)
}

// KickID disconnects the user with the given id.
func (s *Server) KickID(id string) error {
	u, ok := s.reg.get(id)
	if !ok {
		return sscperrors.Wrap(sscperrors.PathServer, sscperrors.StageClose, sscperrors.CodeUserNotFound, ErrUserNotFound)
	}
	s.Kick(u)
	return nil
}

// Ban adds ip to the ban list and kicks every user connected from it.
func (s *Server) Ban(ip string) {
	for _, u := range s.reg.ban(ip) {
		s.teardown(u, observability.CloseReasonBanned, true)
	}
	s.log.Info().Str("ip", ip).Msg("address banned")
}

// BanUser bans the address u is connected from.
func (s *Server) BanUser(u *User) { s.Ban(u.IP()) }

// Unban removes ip from the ban list and reports whether it was present.
func (s *Server) Unban(ip string) bool { return s.reg.unban(ip) }

func (s *Server) IsBanned(ip string) bool { return s.reg.isBanned(ip) }

// BannedAddresses returns the ban list in sorted order.
func (s *Server) BannedAddresses() []string { return s.reg.bannedList() }

// Users returns every admitted user, including those still in the handshake.
func (s *Server) Users() []*User { return s.reg.snapshot() }

// User looks up a user by connection id.
func (s *Server) User(id string) (*User, bool) { return s.reg.get(id) }

// Count returns the number of admitted users.
func (s *Server) Count() int { return s.reg.count() }

// MaxUsers returns the admission limit, or Unlimited.
func (s *Server) MaxUsers() int { return s.reg.getMaxUsers() }

// SetMaxUsers changes the admission limit for new connections. Connected users stay.
func (s *Server) SetMaxUsers(n int) {
	if n < 0 {
		n = Unlimited
	}
	s.reg.setMaxUsers(n)
}

func (s *Server) StartedSince() time.Time { return s.startedSince }

// Stop refuses new connections and kicks every user.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		for _, u := range s.reg.stop() {
			s.teardown(u, observability.CloseReasonServerStopped, true)
		}
		s.cancel()
		s.log.Info().Msg("stopped")
	})
}

// Stats returns a point-in-time view of the registry.
func (s *Server) Stats() Stats {
	users := s.reg.snapshot()
	st := Stats{Users: len(users), MaxUsers: s.reg.getMaxUsers(), Banned: len(s.reg.bannedList())}
	for _, u := range users {
		if u.Established() {
			st.Established++
		}
	}
	return st
}

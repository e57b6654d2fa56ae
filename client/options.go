package client

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ZygoteCode/SSCP/crypto/sscp"
	"github.com/ZygoteCode/SSCP/internal/defaults"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Option configures a Client.
//
// Omit an option to use the library default. For timeouts, a value of 0 disables the timeout
// where noted.
type Option func(*options) error

type options struct {
	header  http.Header
	dialer  *websocket.Dialer
	handler Handler
	logger  zerolog.Logger
	rand    sscp.RandomSource

	connectTimeout   time.Duration
	handshakeTimeout time.Duration
	writeTimeout     time.Duration
	maxTimestampSkew time.Duration
	watchdogInterval time.Duration
	maxFrameBytes    int
}

func defaultOptions() options {
	return options{
		handler:          BaseHandler{},
		logger:           zerolog.Nop(),
		connectTimeout:   defaults.ConnectTimeout,
		handshakeTimeout: defaults.HandshakeTimeout,
		writeTimeout:     sscp.DefaultWriteTimeout,
		maxTimestampSkew: sscp.MaxTimestampSkew,
		watchdogInterval: sscp.KeepAliveInterval,
		maxFrameBytes:    sscp.DefaultMaxFrameBytes,
	}
}

func applyOptions(opts []Option) (options, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return options{}, err
		}
	}
	return cfg, nil
}

// WithHeader adds extra HTTP headers for the WebSocket handshake.
func WithHeader(h http.Header) Option {
	return func(cfg *options) error {
		cfg.header = h
		return nil
	}
}

// WithDialer sets a custom gorilla/websocket dialer (proxy/TLS/etc).
func WithDialer(d *websocket.Dialer) Option {
	return func(cfg *options) error {
		cfg.dialer = d
		return nil
	}
}

// WithHandler sets the event handler.
func WithHandler(h Handler) Option {
	return func(cfg *options) error {
		if h == nil {
			return fmt.Errorf("handler must not be nil")
		}
		cfg.handler = h
		return nil
	}
}

// WithLogger sets the logger used for connection lifecycle messages.
func WithLogger(l zerolog.Logger) Option {
	return func(cfg *options) error {
		cfg.logger = l.With().Str("component", "sscp-client").Logger()
		return nil
	}
}

// WithRand overrides the entropy source.
func WithRand(r sscp.RandomSource) Option {
	return func(cfg *options) error {
		cfg.rand = r
		return nil
	}
}

// WithConnectTimeout sets the WebSocket connect timeout; 0 disables the timeout.
func WithConnectTimeout(d time.Duration) Option {
	return func(cfg *options) error {
		if d < 0 {
			return fmt.Errorf("connect timeout must be >= 0")
		}
		cfg.connectTimeout = d
		return nil
	}
}

// WithHandshakeTimeout sets the time allowed to reach an established session.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(cfg *options) error {
		if d <= 0 {
			return fmt.Errorf("handshake timeout must be > 0")
		}
		cfg.handshakeTimeout = d
		return nil
	}
}

// WithWriteTimeout sets the per-frame write deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(cfg *options) error {
		if d <= 0 {
			return fmt.Errorf("write timeout must be > 0")
		}
		cfg.writeTimeout = d
		return nil
	}
}

// WithMaxTimestampSkew sets the allowed clock skew for frames and keep-alives.
func WithMaxTimestampSkew(d time.Duration) Option {
	return func(cfg *options) error {
		if d <= 0 {
			return fmt.Errorf("max timestamp skew must be > 0")
		}
		cfg.maxTimestampSkew = d
		return nil
	}
}

// WithWatchdogInterval sets how often the server keep-alive freshness is checked; 0 disables the watchdog.
func WithWatchdogInterval(d time.Duration) Option {
	return func(cfg *options) error {
		if d < 0 {
			return fmt.Errorf("watchdog interval must be >= 0")
		}
		cfg.watchdogInterval = d
		return nil
	}
}

// WithMaxFrameBytes bounds inbound frames.
func WithMaxFrameBytes(n int) Option {
	return func(cfg *options) error {
		if n <= 0 {
			return fmt.Errorf("max frame bytes must be > 0")
		}
		cfg.maxFrameBytes = n
		return nil
	}
}

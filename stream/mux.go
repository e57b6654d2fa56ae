package stream

import (
	"io"

	"github.com/hashicorp/yamux"
)

// DefaultMuxConfig returns a yamux config with keep-alive off; SSCP keep-alive covers liveness.
func DefaultMuxConfig() *yamux.Config {
	cfg := yamux.DefaultConfig()
	cfg.EnableKeepAlive = false
	cfg.LogOutput = io.Discard
	return cfg
}

// Client starts the dialing side of a yamux session over c.
func Client(c *Conn, cfg *yamux.Config) (*yamux.Session, error) {
	if cfg == nil {
		cfg = DefaultMuxConfig()
	}
	return yamux.Client(c, cfg)
}

// Server starts the accepting side of a yamux session over c.
func Server(c *Conn, cfg *yamux.Config) (*yamux.Session, error) {
	if cfg == nil {
		cfg = DefaultMuxConfig()
	}
	return yamux.Server(c, cfg)
}

// Package config loads the TOML configuration of `sscp serve`.
package config

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ZygoteCode/SSCP/crypto/sscp"
	"github.com/ZygoteCode/SSCP/server"
)

// Serve is the resolved configuration of the serve command.
type Serve struct {
	Listen        string
	MetricsListen string
	Echo          bool
	LogLevel      string
	Server        server.Config
}

// DefaultServe returns the settings used when no file is given.
func DefaultServe() Serve {
	return Serve{
		Listen: fmt.Sprintf(":%d", sscp.DefaultPort),
		Echo:   true,
		Server: server.DefaultConfig(),
	}
}

type fileConfig struct {
	Listen            string   `toml:"listen"`
	MetricsListen     string   `toml:"metrics_listen"`
	Echo              bool     `toml:"echo"`
	LogLevel          string   `toml:"log_level"`
	Path              string   `toml:"path"`
	MaxUsers          int      `toml:"max_users"`
	Banned            []string `toml:"banned"`
	AllowedOrigins    []string `toml:"allowed_origins"`
	AllowNoOrigin     bool     `toml:"allow_no_origin"`
	HandshakeTimeout  string   `toml:"handshake_timeout"`
	KeepAliveInterval string   `toml:"keepalive_interval"`
	MaxTimestampSkew  string   `toml:"max_timestamp_skew"`
	WriteTimeout      string   `toml:"write_timeout"`
	MaxFrameBytes     int      `toml:"max_frame_bytes"`
}

// LoadServe decodes path over DefaultServe. Keys absent from the file keep their defaults.
func LoadServe(path string) (Serve, error) {
	cfg := DefaultServe()
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Serve{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Serve{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("listen") {
		cfg.Listen = strings.TrimSpace(raw.Listen)
	}
	if meta.IsDefined("metrics_listen") {
		cfg.MetricsListen = strings.TrimSpace(raw.MetricsListen)
	}
	if meta.IsDefined("echo") {
		cfg.Echo = raw.Echo
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("path") {
		cfg.Server.Path = strings.TrimSpace(raw.Path)
	}
	if meta.IsDefined("max_users") {
		cfg.Server.MaxUsers = raw.MaxUsers
	}
	if meta.IsDefined("banned") {
		cfg.Server.BannedAddresses = normalizeList(raw.Banned)
	}
	if meta.IsDefined("allowed_origins") {
		cfg.Server.AllowedOrigins = normalizeList(raw.AllowedOrigins)
	}
	if meta.IsDefined("allow_no_origin") {
		cfg.Server.AllowNoOrigin = raw.AllowNoOrigin
	}
	if meta.IsDefined("max_frame_bytes") {
		cfg.Server.MaxFrameBytes = raw.MaxFrameBytes
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"handshake_timeout", raw.HandshakeTimeout, &cfg.Server.HandshakeTimeout},
		{"keepalive_interval", raw.KeepAliveInterval, &cfg.Server.KeepAliveInterval},
		{"max_timestamp_skew", raw.MaxTimestampSkew, &cfg.Server.MaxTimestampSkew},
		{"write_timeout", raw.WriteTimeout, &cfg.Server.WriteTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Serve{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}
	return cfg, nil
}

// Template renders cfg as a TOML document that LoadServe accepts.
func Template(cfg Serve) ([]byte, error) {
	raw := fileConfig{
		Listen:            cfg.Listen,
		MetricsListen:     cfg.MetricsListen,
		Echo:              cfg.Echo,
		LogLevel:          cfg.LogLevel,
		Path:              cfg.Server.Path,
		MaxUsers:          cfg.Server.MaxUsers,
		Banned:            nonNil(cfg.Server.BannedAddresses),
		AllowedOrigins:    nonNil(cfg.Server.AllowedOrigins),
		AllowNoOrigin:     cfg.Server.AllowNoOrigin,
		HandshakeTimeout:  cfg.Server.HandshakeTimeout.String(),
		KeepAliveInterval: cfg.Server.KeepAliveInterval.String(),
		MaxTimestampSkew:  cfg.Server.MaxTimestampSkew.String(),
		WriteTimeout:      cfg.Server.WriteTimeout.String(),
		MaxFrameBytes:     cfg.Server.MaxFrameBytes,
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

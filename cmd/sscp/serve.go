package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZygoteCode/SSCP/internal/cmdutil"
	"github.com/ZygoteCode/SSCP/internal/config"
	"github.com/ZygoteCode/SSCP/internal/defaults"
	"github.com/ZygoteCode/SSCP/internal/logging"
	sscpversion "github.com/ZygoteCode/SSCP/internal/version"
	"github.com/ZygoteCode/SSCP/observability"
	"github.com/ZygoteCode/SSCP/server"
	"github.com/spf13/cobra"
)

type serveFlags struct {
	configPath    string
	listen        string
	path          string
	metricsListen string
	maxUsers      int
	maxFrameBytes int
	banned        []string
	origins       []string
	allowNoOrigin bool
	echo          bool
	pretty        bool

	handshakeTimeout  time.Duration
	keepAliveInterval time.Duration
	maxTimestampSkew  time.Duration
	writeTimeout      time.Duration
}

type ready struct {
	sscpversion.Info
	Listen     string `json:"listen"`
	WSPath     string `json:"ws_path"`
	WSURL      string `json:"ws_url"`
	HealthzURL string `json:"healthz_url"`
	MetricsURL string `json:"metrics_url,omitempty"`
}

func (a *app) serveCmd() *cobra.Command {
	cmd, _ := a.newServeCmd()
	return cmd
}

func (a *app) newServeCmd() (*cobra.Command, *serveFlags) {
	f := &serveFlags{}
	def := config.DefaultServe()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an SSCP server",
		Long: "Run an SSCP server. Settings are taken from defaults, then --config, then SSCP_* " +
			"environment variables, then flags.\n\n" + signalHelp(),
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.resolveServe(cmd, f)
			if err != nil {
				return err
			}
			return a.serve(cmd.Context(), cfg, f.pretty)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.configPath, "config", "c", "", "TOML config file (env: SSCP_CONFIG)")
	fl.StringVar(&f.listen, "listen", def.Listen, "listen address (env: SSCP_LISTEN)")
	fl.StringVar(&f.path, "path", def.Server.Path, "websocket path (env: SSCP_PATH)")
	fl.StringVar(&f.metricsListen, "metrics-listen", "", "listen address for /metrics and /stats (empty disables) (env: SSCP_METRICS_LISTEN)")
	fl.IntVar(&f.maxUsers, "max-users", server.Unlimited, "maximum connected users, -1 for unlimited (env: SSCP_MAX_USERS)")
	fl.IntVar(&f.maxFrameBytes, "max-frame-bytes", def.Server.MaxFrameBytes, "maximum inbound frame size (env: SSCP_MAX_FRAME_BYTES)")
	fl.StringSliceVar(&f.banned, "ban", nil, "banned client address (repeatable) (env: SSCP_BAN)")
	fl.StringSliceVar(&f.origins, "allow-origin", nil, "allowed Origin value (repeatable; empty allows all) (env: SSCP_ALLOW_ORIGIN)")
	fl.BoolVar(&f.allowNoOrigin, "allow-no-origin", def.Server.AllowNoOrigin, "allow requests without Origin when --allow-origin is set (env: SSCP_ALLOW_NO_ORIGIN)")
	fl.BoolVar(&f.echo, "echo", def.Echo, "echo DATA packets back to their sender (env: SSCP_ECHO)")
	fl.BoolVar(&f.pretty, "pretty", false, "pretty-print the ready JSON")
	fl.DurationVar(&f.handshakeTimeout, "handshake-timeout", def.Server.HandshakeTimeout, "time allowed to complete the handshake (env: SSCP_HANDSHAKE_TIMEOUT)")
	fl.DurationVar(&f.keepAliveInterval, "keepalive-interval", def.Server.KeepAliveInterval, "keep-alive emission interval (env: SSCP_KEEPALIVE_INTERVAL)")
	fl.DurationVar(&f.maxTimestampSkew, "max-timestamp-skew", def.Server.MaxTimestampSkew, "allowed clock skew for frames and keep-alives (env: SSCP_MAX_TIMESTAMP_SKEW)")
	fl.DurationVar(&f.writeTimeout, "write-timeout", def.Server.WriteTimeout, "per-frame write timeout (env: SSCP_WRITE_TIMEOUT)")
	return cmd, f
}

// resolveServe layers config file, environment and flags over the defaults.
func (a *app) resolveServe(cmd *cobra.Command, f *serveFlags) (config.Serve, error) {
	fl := cmd.Flags()
	env := a.env

	cfg := config.DefaultServe()
	path := f.configPath
	if !fl.Changed("config") {
		path = env.String("CONFIG", "")
	}
	if path != "" {
		loaded, err := config.LoadServe(path)
		if err != nil {
			return config.Serve{}, cmdutil.Usagef("%v", err)
		}
		cfg = loaded
	}

	var err error
	cfg.Listen = env.String("LISTEN", cfg.Listen)
	cfg.MetricsListen = env.String("METRICS_LISTEN", cfg.MetricsListen)
	cfg.Server.Path = env.String("PATH", cfg.Server.Path)
	if v := env.List("BAN"); v != nil {
		cfg.Server.BannedAddresses = v
	}
	if v := env.List("ALLOW_ORIGIN"); v != nil {
		cfg.Server.AllowedOrigins = v
	}
	if cfg.Server.MaxUsers, err = env.Int("MAX_USERS", cfg.Server.MaxUsers); err != nil {
		return config.Serve{}, err
	}
	if cfg.Server.MaxFrameBytes, err = env.Int("MAX_FRAME_BYTES", cfg.Server.MaxFrameBytes); err != nil {
		return config.Serve{}, err
	}
	if cfg.Server.AllowNoOrigin, err = env.Bool("ALLOW_NO_ORIGIN", cfg.Server.AllowNoOrigin); err != nil {
		return config.Serve{}, err
	}
	if cfg.Echo, err = env.Bool("ECHO", cfg.Echo); err != nil {
		return config.Serve{}, err
	}
	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"HANDSHAKE_TIMEOUT", &cfg.Server.HandshakeTimeout},
		{"KEEPALIVE_INTERVAL", &cfg.Server.KeepAliveInterval},
		{"MAX_TIMESTAMP_SKEW", &cfg.Server.MaxTimestampSkew},
		{"WRITE_TIMEOUT", &cfg.Server.WriteTimeout},
	}
	for _, d := range durations {
		if *d.dst, err = env.Duration(d.name, *d.dst); err != nil {
			return config.Serve{}, err
		}
	}

	if fl.Changed("listen") {
		cfg.Listen = f.listen
	}
	if fl.Changed("metrics-listen") {
		cfg.MetricsListen = f.metricsListen
	}
	if fl.Changed("path") {
		cfg.Server.Path = f.path
	}
	if fl.Changed("max-users") {
		cfg.Server.MaxUsers = f.maxUsers
	}
	if fl.Changed("max-frame-bytes") {
		cfg.Server.MaxFrameBytes = f.maxFrameBytes
	}
	if fl.Changed("ban") {
		cfg.Server.BannedAddresses = f.banned
	}
	if fl.Changed("allow-origin") {
		cfg.Server.AllowedOrigins = f.origins
	}
	if fl.Changed("allow-no-origin") {
		cfg.Server.AllowNoOrigin = f.allowNoOrigin
	}
	if fl.Changed("echo") {
		cfg.Echo = f.echo
	}
	if fl.Changed("handshake-timeout") {
		cfg.Server.HandshakeTimeout = f.handshakeTimeout
	}
	if fl.Changed("keepalive-interval") {
		cfg.Server.KeepAliveInterval = f.keepAliveInterval
	}
	if fl.Changed("max-timestamp-skew") {
		cfg.Server.MaxTimestampSkew = f.maxTimestampSkew
	}
	if fl.Changed("write-timeout") {
		cfg.Server.WriteTimeout = f.writeTimeout
	}

	if cfg.LogLevel != "" && !a.levelPinned(cmd) {
		lvl, ok := logging.ParseLevel(cfg.LogLevel)
		if !ok {
			return config.Serve{}, cmdutil.Usagef("invalid log_level %q", cfg.LogLevel)
		}
		a.log = a.log.Level(lvl)
	}
	return cfg, nil
}

func (a *app) serve(ctx context.Context, cfg config.Serve, pretty bool) error {
	log := a.log
	observer := observability.NewAtomicServerObserver()
	cfg.Server.Observer = observer
	cfg.Server.Logger = &log
	cfg.Server.Handler = consoleHandler{log: log, echo: cfg.Echo}

	srv, err := server.New(cfg.Server)
	if err != nil {
		return cmdutil.Usagef("%v", err)
	}
	defer srv.Stop()

	mux := http.NewServeMux()
	srv.Register(mux)

	var (
		metrics    *metricsController
		metricsSrv *http.Server
		metricsLn  net.Listener
	)
	if cfg.MetricsListen != "" {
		sw := newSwitchHandler()
		metrics = newMetricsController(sw, observer, srv)
		metrics.Enable()
		metricsLn, err = net.Listen("tcp", cfg.MetricsListen)
		if err != nil {
			return err
		}
		metricsSrv = newHTTPServer(newMetricsMux(sw, srv), log)
		go serveHTTP(metricsSrv, metricsLn, a)
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		if metricsLn != nil {
			_ = metricsLn.Close()
		}
		return err
	}
	hs := newHTTPServer(mux, log)
	go serveHTTP(hs, ln, a)

	addr := ln.Addr().String()
	out := ready{
		Info:       versionInfo(),
		Listen:     addr,
		WSPath:     cfg.Server.Path,
		WSURL:      "ws://" + addr + cfg.Server.Path,
		HealthzURL: "http://" + addr + "/healthz",
	}
	if metricsLn != nil {
		out.MetricsURL = "http://" + metricsLn.Addr().String() + "/metrics"
	}
	if err := cmdutil.WriteJSON(a.stdout, out, pretty); err != nil {
		return err
	}
	log.Info().Str("listen", addr).Str("path", cfg.Server.Path).Bool("echo", cfg.Echo).Msg("sscp server ready")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	var toggles chan os.Signal
	if sigs := metricsSignals(); len(sigs) > 0 {
		toggles = make(chan os.Signal, 2)
		signal.Notify(toggles, sigs...)
		defer signal.Stop(toggles)
	}
	for {
		select {
		case sig := <-toggles:
			handleMetricsSignal(sig, log, metrics)
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			srv.Stop()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), defaults.ShutdownTimeout)
			_ = hs.Shutdown(shutdownCtx)
			if metricsSrv != nil {
				_ = metricsSrv.Shutdown(shutdownCtx)
			}
			cancel()
			return nil
		}
	}
}

func serveHTTP(hs *http.Server, ln net.Listener, a *app) {
	if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.log.Error().Err(err).Msg("http server failed")
	}
}

package main

import (
	stdlog "log"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	httpReadHeaderTimeout = 5 * time.Second
	httpReadTimeout       = 10 * time.Second
	httpWriteTimeout      = 10 * time.Second
	httpIdleTimeout       = 60 * time.Second
	httpMaxHeaderBytes    = 32 << 10
)

// newHTTPServer bounds the pre-upgrade phase. Upgraded connections are hijacked and no longer
// subject to these timeouts. net/http errors are routed into log at warn level.
func newHTTPServer(handler http.Handler, log zerolog.Logger) *http.Server {
	errLog := log.With().Str("component", "http").Logger().Level(zerolog.WarnLevel)
	return &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: httpReadHeaderTimeout,
		ReadTimeout:       httpReadTimeout,
		WriteTimeout:      httpWriteTimeout,
		IdleTimeout:       httpIdleTimeout,
		MaxHeaderBytes:    httpMaxHeaderBytes,
		ErrorLog:          stdlog.New(errLog, "", 0),
	}
}

package main

import (
	"net/http"
	"sync"
	"time"

	"github.com/ZygoteCode/SSCP/internal/cmdutil"
	"github.com/ZygoteCode/SSCP/observability"
	"github.com/ZygoteCode/SSCP/observability/prom"
	"github.com/ZygoteCode/SSCP/server"
)

type switchHandler struct {
	mu      sync.RWMutex
	handler http.Handler
}

func newSwitchHandler() *switchHandler {
	return &switchHandler{handler: http.NotFoundHandler()}
}

func (h *switchHandler) Set(next http.Handler) {
	if next == nil {
		next = http.NotFoundHandler()
	}
	h.mu.Lock()
	h.handler = next
	h.mu.Unlock()
}

func (h *switchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	handler := h.handler
	h.mu.RUnlock()
	handler.ServeHTTP(w, r)
}

// metricsController swaps a fresh Prometheus registry in and out of a running server.
type metricsController struct {
	mu       sync.Mutex
	enabled  bool
	handler  *switchHandler
	observer *observability.AtomicServerObserver
	srv      *server.Server
}

func newMetricsController(handler *switchHandler, observer *observability.AtomicServerObserver, srv *server.Server) *metricsController {
	return &metricsController{handler: handler, observer: observer, srv: srv}
}

func (c *metricsController) Enable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enabled {
		return
	}
	reg := prom.NewRegistry()
	obs := prom.NewServerObserver(reg)
	c.handler.Set(prom.Handler(reg))
	c.observer.Set(obs)
	obs.ConnCount(int64(c.srv.Count()))
	c.enabled = true
}

func (c *metricsController) Disable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	c.handler.Set(nil)
	c.observer.Set(observability.NoopServerObserver)
	c.enabled = false
}

// newMetricsMux serves /metrics through the controller and a JSON snapshot at /stats.
func newMetricsMux(metrics *switchHandler, srv *server.Server) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics)
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = cmdutil.WriteJSON(w, statsView(srv), false)
	})
	return mux
}

type statsJSON struct {
	Users        int      `json:"users"`
	Established  int      `json:"established"`
	MaxUsers     int      `json:"max_users"`
	Banned       []string `json:"banned"`
	StartedSince string   `json:"started_since"`
}

func statsView(srv *server.Server) statsJSON {
	st := srv.Stats()
	return statsJSON{
		Users:        st.Users,
		Established:  st.Established,
		MaxUsers:     st.MaxUsers,
		Banned:       srv.BannedAddresses(),
		StartedSince: srv.StartedSince().UTC().Format(time.RFC3339),
	}
}

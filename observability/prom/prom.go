package prom

import (
	"net/http"
	"time"

	"github.com/ZygoteCode/SSCP/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry returns a fresh Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// Handler returns a Prometheus HTTP handler bound to the registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// ServerObserver exports server metrics to Prometheus.
type ServerObserver struct {
	connGauge        prometheus.Gauge
	admissionTotal   *prometheus.CounterVec
	handshakeTotal   *prometheus.CounterVec
	handshakeLatency prometheus.Histogram
	closeTotal       *prometheus.CounterVec
	packetTotal      *prometheus.CounterVec
}

// NewServerObserver registers server metrics on the registry.
func NewServerObserver(reg *prometheus.Registry) *ServerObserver {
	o := &ServerObserver{
		connGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sscp_server_connections",
			Help: "Current connected user count.",
		}),
		admissionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sscp_server_admission_total",
			Help: "Connection admission attempts by result and reason.",
		}, []string{"result", "reason"}),
		handshakeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sscp_server_handshake_total",
			Help: "Handshake outcomes.",
		}, []string{"result"}),
		handshakeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sscp_server_handshake_latency_seconds",
			Help:    "Latency from upgrade to an established session.",
			Buckets: prometheus.DefBuckets,
		}),
		closeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sscp_server_close_total",
			Help: "Session close reasons.",
		}, []string{"reason"}),
		packetTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sscp_server_packets_total",
			Help: "Packets by direction and type.",
		}, []string{"direction", "type"}),
	}
	reg.MustRegister(
		o.connGauge,
		o.admissionTotal,
		o.handshakeTotal,
		o.handshakeLatency,
		o.closeTotal,
		o.packetTotal,
	)
	return o
}

func (o *ServerObserver) ConnCount(n int64) {
	o.connGauge.Set(float64(n))
}

func (o *ServerObserver) Admission(result observability.AdmissionResult, reason observability.AdmissionReason) {
	o.admissionTotal.WithLabelValues(string(result), string(reason)).Inc()
}

func (o *ServerObserver) Handshake(result observability.HandshakeResult, d time.Duration) {
	o.handshakeTotal.WithLabelValues(string(result)).Inc()
	if result == observability.HandshakeResultOK {
		o.handshakeLatency.Observe(d.Seconds())
	}
}

func (o *ServerObserver) Close(reason observability.CloseReason) {
	o.closeTotal.WithLabelValues(string(reason)).Inc()
}

func (o *ServerObserver) Packet(direction observability.PacketDirection, packetType string) {
	o.packetTotal.WithLabelValues(string(direction), packetType).Inc()
}

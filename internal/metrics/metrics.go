// Package metrics defines sockd's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Session outcomes, used as the "outcome" label.
const (
	OutcomeClosed     = "closed"
	OutcomeDisconnect = "disconnect"
	OutcomeTimeout    = "timeout"
	OutcomeProtocol   = "protocol_error"
	OutcomeAuth       = "auth_failure"
	OutcomeUpstream   = "upstream_failure"
	OutcomeTransfer   = "transfer_error"
	OutcomeError      = "error"
)

var (
	SessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sockd_sessions_total",
		Help: "Finished client sessions by outcome",
	}, []string{"outcome"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sockd_active_sessions",
		Help: "Client connections currently being served",
	})

	ActiveTunnels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sockd_active_tunnels",
		Help: "Tunnels currently relaying",
	})

	AuthAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sockd_auth_attempts_total",
		Help: "Username/password checks by result",
	}, []string{"result"})

	RelayedBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sockd_relayed_bytes_total",
		Help: "Bytes relayed through tunnels; up is client to target",
	}, []string{"direction"})

	ConnectDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sockd_connect_duration_seconds",
		Help:    "Time to open the outbound connection, including failures",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
	})

	TunnelDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sockd_tunnel_duration_seconds",
		Help:    "Tunnel lifetime seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 20),
	})
)

// RecordAuth counts one authentication attempt.
func RecordAuth(ok bool) {
	if ok {
		AuthAttemptsTotal.WithLabelValues("success").Inc()
		return
	}
	AuthAttemptsTotal.WithLabelValues("failure").Inc()
}

// RecordRelayed adds the byte counts of a finished tunnel.
func RecordRelayed(up, down int64) {
	RelayedBytesTotal.WithLabelValues("up").Add(float64(up))
	RelayedBytesTotal.WithLabelValues("down").Add(float64(down))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Package observability exposes Prometheus metrics for the chat session.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	sessionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chat_client_session_state",
			Help: "1 for the current connection state of the chat session, 0 otherwise.",
		},
		[]string{"state"},
	)
	reconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_client_reconnects_total",
			Help: "Total number of reconnect dials.",
		},
	)
	inboundFramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_inbound_frames_total",
			Help: "Total number of inbound frames by ingestion result.",
		},
		[]string{"result"},
	)
	outboundFramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_outbound_frames_total",
			Help: "Total number of outbound frames by transmission result.",
		},
		[]string{"type", "result"},
	)
	uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_uploads_total",
			Help: "Total number of file uploads by result.",
		},
		[]string{"result"},
	)
)

var states = []string{"disconnected", "connecting", "connected", "reconnecting"}

func init() {
	prometheus.MustRegister(
		sessionState,
		reconnectsTotal,
		inboundFramesTotal,
		outboundFramesTotal,
		uploadsTotal,
	)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetState marks state as the current session state and clears the others.
func SetState(state string) {
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		sessionState.WithLabelValues(s).Set(v)
	}
}

// IncReconnect counts a reconnect dial.
func IncReconnect() {
	reconnectsTotal.Inc()
}

// IncInbound counts an inbound frame: "admitted", "duplicate" or "malformed".
func IncInbound(result string) {
	inboundFramesTotal.WithLabelValues(result).Inc()
}

// IncOutbound counts an outbound frame: "sent" or "dropped".
func IncOutbound(typ, result string) {
	outboundFramesTotal.WithLabelValues(typ, result).Inc()
}

// IncUpload counts a file upload: "ok" or "failed".
func IncUpload(result string) {
	uploadsTotal.WithLabelValues(result).Inc()
}

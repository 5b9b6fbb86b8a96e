package httpapi

import (
	"net/http"
	"strconv"

	"chat-gateway/backend/internal/session"

	"github.com/prometheus/client_golang/prometheus"
)

var sessionStates = []session.State{
	session.StateUninitialized,
	session.StateAwaitingQR,
	session.StateAuthenticated,
	session.StateReady,
	session.StateDisconnected,
}

type Metrics struct {
	requests    *prometheus.CounterVec
	transitions prometheus.Counter
	recoveries  *prometheus.CounterVec
	stateGauge  *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		transitions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_session_transitions_total",
			Help: "Session lifecycle state transitions.",
		}),
		recoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_session_recoveries_total",
			Help: "Scheduled session recoveries by kind (rebuild or reinit).",
		}, []string{"kind"}),
		stateGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_session_state",
			Help: "Current session state (1 for the active state, 0 otherwise).",
		}, []string{"state"}),
	}
	reg.MustRegister(m.requests, m.transitions, m.recoveries, m.stateGauge)
	return m
}

// ObserveRecovery is wired as the session manager's OnRecovery hook.
func (m *Metrics) ObserveRecovery(kind string) {
	m.recoveries.WithLabelValues(kind).Inc()
}

// ObserveTransition is wired as the session manager's OnTransition hook.
func (m *Metrics) ObserveTransition(snap session.Snapshot) {
	m.transitions.Inc()
	for _, state := range sessionStates {
		value := 0.0
		if state == snap.State {
			value = 1.0
		}
		m.stateGauge.WithLabelValues(string(state)).Set(value)
	}
}

// instrument wraps a handler with the request counter.
func (s *Server) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next(rec, r)
		s.metrics.requests.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

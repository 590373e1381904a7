// Package metrics defines the service's Prometheus collectors. Every method
// is safe on a nil *Metrics so tests can leave it out.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chatforms"

type Metrics struct {
	formsSaved         *prometheus.CounterVec
	responsesSubmitted prometheus.Counter
	aiRequests         *prometheus.CounterVec
	activeStreams      prometheus.Gauge
	httpRequests       *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		formsSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forms_saved_total",
			Help:      "Forms persisted, by operation.",
		}, []string{"op"}),
		responsesSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_submitted_total",
			Help:      "Responses marked complete.",
		}),
		aiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_requests_total",
			Help:      "Text generation requests, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "conversation_streams_active",
			Help:      "Conversation streams currently being served.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method, route and status.",
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.formsSaved, m.responsesSubmitted, m.aiRequests, m.activeStreams, m.httpRequests)
	return m
}

func (m *Metrics) FormSaved(op string) {
	if m == nil {
		return
	}
	m.formsSaved.WithLabelValues(op).Inc()
}

func (m *Metrics) ResponseSubmitted() {
	if m == nil {
		return
	}
	m.responsesSubmitted.Inc()
}

// AIRequest counts one generation of kind; err decides the outcome label.
func (m *Metrics) AIRequest(kind string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.aiRequests.WithLabelValues(kind, outcome).Inc()
}

// StreamStarted increments the active stream gauge and returns the matching
// decrement.
func (m *Metrics) StreamStarted() func() {
	if m == nil {
		return func() {}
	}
	m.activeStreams.Inc()
	return m.activeStreams.Dec
}

func (m *Metrics) HTTPRequest(method, route string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

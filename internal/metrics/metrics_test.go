package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.FormSaved("create")
	m.FormSaved("create")
	m.FormSaved("update")
	m.ResponseSubmitted()
	m.AIRequest("rephrase", nil)
	m.AIRequest("rephrase", errors.New("quota"))
	m.HTTPRequest("GET", "/api/v1/forms", 200)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.formsSaved.WithLabelValues("create")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.formsSaved.WithLabelValues("update")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.responsesSubmitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.aiRequests.WithLabelValues("rephrase", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.aiRequests.WithLabelValues("rephrase", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/v1/forms", "200")))
}

func TestStreamGauge(t *testing.T) {
	m := New(prometheus.NewRegistry())

	done1 := m.StreamStarted()
	done2 := m.StreamStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.activeStreams))
	done1()
	done2()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.activeStreams))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.FormSaved("create")
		m.ResponseSubmitted()
		m.AIRequest("intro", nil)
		m.StreamStarted()()
		m.HTTPRequest("GET", "/", 200)
	})
}

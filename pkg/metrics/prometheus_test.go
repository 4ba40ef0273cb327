package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordHTTPRequest("GET", "/health", 200, time.Millisecond)
		m.RecordRegistration("created")
		m.RecordPresencePing(1)
		m.RecordOnlineQuery(true)
		m.SetMatchmakingPoolSize(3)
		m.RecordMatchAttempt(false)
		m.SetBrokerConnections(2)
		m.RecordBrokerMessage("OFFER", "routed")
	})
	assert.Nil(t, m.GetRegistry())
}

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	a := NewMetrics("signaling-service")
	b := NewMetrics("signaling-service")

	a.RecordRegistration("created")
	a.RecordRegistration("created")
	b.RecordRegistration("existing")

	assert.Equal(t, 2.0, testutil.ToFloat64(a.registrationsTotal.WithLabelValues("created")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.registrationsTotal.WithLabelValues("created")))
}

func TestMatchAttemptLabels(t *testing.T) {
	m := NewMetrics("signaling-service")

	m.RecordMatchAttempt(true)
	m.RecordMatchAttempt(false)
	m.RecordMatchAttempt(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.matchAttemptsTotal.WithLabelValues("matched")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.matchAttemptsTotal.WithLabelValues("empty")))
}

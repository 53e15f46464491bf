package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insureguard/risk-api/internal/metrics"
)

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ObserveHTTP("/x", 200, time.Millisecond)
		m.ClaimScored("high", time.Millisecond)
		m.ScoringFailed("MODEL_NOT_READY")
		m.TrainingFinished("success", time.Second)
		m.ModelPublished(0.4)
		m.CacheHit()
		m.CacheMiss()
		m.WebhookDelivered("ok")
		m.ClaimsSkipped("network", 2)
	})
}

func TestHandlerExposesRecordedSeries(t *testing.T) {
	m := metrics.New()
	m.ClaimScored("high", 2*time.Millisecond)
	m.ModelPublished(0.37)
	m.ClaimsSkipped("alerts", 3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `insureguard_claims_scored_total{risk="high"} 1`))
	assert.True(t, strings.Contains(body, "insureguard_model_cutoff 0.37"))
	assert.True(t, strings.Contains(body, `insureguard_skipped_claims_total{analysis="alerts"} 3`))
}

func TestNewMetricsCanBeCreatedTwice(t *testing.T) {
	assert.NotPanics(t, func() {
		metrics.New()
		metrics.New()
	})
}

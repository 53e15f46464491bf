package webhook_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"insureguard/risk-api/internal/domain"
	"insureguard/risk-api/internal/webhook"
)

type hooks []*domain.WebhookConfig

func (h hooks) ListActiveWebhooks() []*domain.WebhookConfig { return h }

type recorder struct {
	mu       sync.Mutex
	payloads []domain.WebhookPayload
	events   []string
}

func (r *recorder) handler(w http.ResponseWriter, req *http.Request) {
	var p domain.WebhookPayload
	_ = json.NewDecoder(req.Body).Decode(&p)
	r.mu.Lock()
	r.payloads = append(r.payloads, p)
	r.events = append(r.events, req.Header.Get("X-InsureGuard-Event"))
	r.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func scored(id, category string) *domain.Claim {
	return &domain.Claim{ID: id, Assessment: &domain.RiskAssessment{RiskCategory: category, FraudProbability: 0.9}}
}

func TestMatches(t *testing.T) {
	high := &domain.WebhookConfig{MinRisk: domain.RiskHigh}
	medium := &domain.WebhookConfig{MinRisk: domain.RiskMedium}
	unset := &domain.WebhookConfig{}

	assert.True(t, webhook.Matches(high, domain.RiskHigh))
	assert.False(t, webhook.Matches(high, domain.RiskMedium))
	assert.True(t, webhook.Matches(medium, domain.RiskHigh))
	assert.True(t, webhook.Matches(medium, domain.RiskMedium))
	assert.False(t, webhook.Matches(medium, domain.RiskLow))
	assert.True(t, webhook.Matches(unset, domain.RiskHigh))
	assert.False(t, webhook.Matches(unset, domain.RiskMedium))
	assert.False(t, webhook.Matches(medium, "bogus"))
}

func TestNotifyAsync_DeliversToMatchingHooks(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer srv.Close()

	n := webhook.New(hooks{
		{ID: "wh-high", URL: srv.URL, MinRisk: domain.RiskHigh, Active: true},
		{ID: "wh-medium", URL: srv.URL, MinRisk: domain.RiskMedium, Active: true},
	}, webhook.Options{}, zaptest.NewLogger(t), nil)

	n.NotifyAsync(scored("clm-1", domain.RiskMedium))
	n.NotifyAsync(scored("clm-2", domain.RiskHigh))
	n.Wait()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.payloads, 3)
	for i, p := range rec.payloads {
		assert.Equal(t, webhook.EventHighRiskClaim, p.Event)
		assert.Equal(t, webhook.EventHighRiskClaim, rec.events[i])
		assert.NotNil(t, p.Claim.Assessment)
	}
}

func TestNotifyAsync_UnscoredClaimIsIgnored(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	defer srv.Close()

	n := webhook.New(hooks{{ID: "wh", URL: srv.URL, Active: true}}, webhook.Options{}, nil, nil)
	n.NotifyAsync(&domain.Claim{ID: "raw"})
	n.Wait()
	assert.False(t, called)
}

func TestNotifyAsync_UnreachableEndpointDoesNotPanic(t *testing.T) {
	n := webhook.New(hooks{{ID: "wh", URL: "http://127.0.0.1:1/hook", Active: true}},
		webhook.Options{}, zaptest.NewLogger(t), nil)
	assert.NotPanics(t, func() {
		n.NotifyAsync(scored("clm", domain.RiskHigh))
		n.Wait()
	})
}

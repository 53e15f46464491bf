// Package webhook handles asynchronous notifications to registered webhook URLs
// when a claim is scored at or above a webhook's minimum risk.
//
// Notifications are sent in a goroutine so they never block the HTTP response.
// Outbound calls share one rate limiter. Failed deliveries are logged and
// counted but not retried.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"insureguard/risk-api/internal/domain"
	"insureguard/risk-api/internal/metrics"
)

// EventHighRiskClaim is the only event type currently emitted.
const EventHighRiskClaim = "high_risk_claim"

// Source lists the webhooks to notify.
type Source interface {
	ListActiveWebhooks() []*domain.WebhookConfig
}

// Options tunes delivery.
type Options struct {
	Timeout   time.Duration `koanf:"timeout" yaml:"timeout"`
	RateLimit float64       `koanf:"rate_limit" yaml:"rate_limit"` // requests per second across all hooks
	Burst     int           `koanf:"burst" yaml:"burst"`
}

// DefaultOptions returns a 5s timeout and 10 req/s with a burst of 20.
func DefaultOptions() Options {
	return Options{Timeout: 5 * time.Second, RateLimit: 10, Burst: 20}
}

// Notifier sends webhook payloads to all registered, active endpoints.
type Notifier struct {
	source  Source
	client  *http.Client
	limiter *rate.Limiter
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	wg sync.WaitGroup
}

// New creates a Notifier. m may be nil.
func New(src Source, opts Options, logger *zap.Logger, m *metrics.Metrics) *Notifier {
	d := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = d.Timeout
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = d.RateLimit
	}
	if opts.Burst <= 0 {
		opts.Burst = d.Burst
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		source:  src,
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), opts.Burst),
		timeout: opts.Timeout,
		logger:  logger.Named("webhook"),
		metrics: m,
		now:     time.Now,
	}
}

// riskRank orders risk categories from least to most severe.
func riskRank(category string) int {
	switch category {
	case domain.RiskLow:
		return 0
	case domain.RiskMedium:
		return 1
	case domain.RiskHigh:
		return 2
	}
	return -1
}

// Matches reports whether a claim assessed at category should fire wh. An
// empty MinRisk means high.
func Matches(wh *domain.WebhookConfig, category string) bool {
	floor := wh.MinRisk
	if floor == "" {
		floor = domain.RiskHigh
	}
	r := riskRank(category)
	return r >= 0 && r >= riskRank(floor)
}

// NotifyAsync fires webhook calls in the background for the given claim.
// It checks every active webhook and triggers those whose minimum risk is met.
func (n *Notifier) NotifyAsync(c *domain.Claim) {
	if c.Assessment == nil {
		return
	}
	payload := domain.WebhookPayload{
		Event:       EventHighRiskClaim,
		TriggeredAt: n.now().UTC(),
		Claim:       *c,
	}
	for _, wh := range n.source.ListActiveWebhooks() {
		if Matches(wh, c.Assessment.RiskCategory) {
			n.wg.Add(1)
			go func() {
				defer n.wg.Done()
				n.send(wh, payload)
			}()
		}
	}
}

// Wait blocks until every in-flight delivery has finished.
func (n *Notifier) Wait() { n.wg.Wait() }

// send delivers a single webhook call and logs the outcome.
func (n *Notifier) send(wh *domain.WebhookConfig, payload domain.WebhookPayload) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	if err := n.limiter.Wait(ctx); err != nil {
		n.metrics.WebhookDelivered("rate_limited")
		n.logger.Warn("delivery dropped by rate limiter", zap.String("webhook_id", wh.ID), zap.Error(err))
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		n.metrics.WebhookDelivered("error")
		n.logger.Error("failed to marshal payload", zap.String("webhook_id", wh.ID), zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		n.metrics.WebhookDelivered("error")
		n.logger.Error("failed to build request", zap.String("webhook_id", wh.ID), zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-InsureGuard-Event", payload.Event)

	resp, err := n.client.Do(req)
	if err != nil {
		n.metrics.WebhookDelivered("failed")
		n.logger.Warn("delivery failed", zap.String("webhook_id", wh.ID), zap.String("url", wh.URL), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	outcome := "ok"
	if resp.StatusCode >= 300 {
		outcome = "rejected"
	}
	n.metrics.WebhookDelivered(outcome)

	n.logger.Info("delivered",
		zap.String("webhook_id", wh.ID),
		zap.String("url", wh.URL),
		zap.Int("status", resp.StatusCode),
		zap.String("claim_id", payload.Claim.ID),
		zap.String("risk_category", payload.Claim.Assessment.RiskCategory),
	)
}

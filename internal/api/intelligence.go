package api

import (
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"insureguard/risk-api/internal/domain"
	"insureguard/risk-api/internal/intel"
)

// maxAlertWindowDays caps ?days= on the alerts endpoint.
const maxAlertWindowDays = 3650

// ─── Fraud intelligence ───────────────────────────────────────────────────────
//
// Results are cached for a short TTL keyed by the store revision and the
// settings in force, so any claim write or settings change misses the cache.

// cached returns the value stored under key or computes and stores it.
func (h *Handler) cached(key string, compute func() (any, error)) (any, error) {
	key = fmt.Sprintf("%s@%d", key, h.store.Revision())
	if v, found := h.cache.Get(key); found {
		h.metrics.CacheHit()
		return v, nil
	}
	h.metrics.CacheMiss()
	v, err := compute()
	if err != nil {
		return nil, err
	}
	h.cache.SetDefault(key, v)
	return v, nil
}

// IntelligenceReport handles GET /intelligence.
func (h *Handler) IntelligenceReport(w http.ResponseWriter, r *http.Request) {
	s := h.runtime.Intel()
	v, err := h.cached(fmt.Sprintf("report:%+v", s), func() (any, error) {
		return h.analyzer.Report(r.Context(), h.store, s)
	})
	if err != nil {
		if r.Context().Err() != nil {
			h.logger.Warn("intelligence report cancelled", zap.Error(err))
			return
		}
		writeError(w, err)
		return
	}
	ok(w, v)
}

// RepeatedEntities handles GET /intelligence/entities.
func (h *Handler) RepeatedEntities(w http.ResponseWriter, r *http.Request) {
	th := h.runtime.Intel().Repetition
	v, _ := h.cached(fmt.Sprintf("entities:%+v", th), func() (any, error) {
		reports := h.analyzer.Entities(h.store.Snapshot(), th)
		if reports == nil {
			reports = []domain.EntityRepetitionReport{}
		}
		return map[string]any{"count": len(reports), "entities": reports}, nil
	})
	ok(w, v)
}

// FraudNetwork handles GET /intelligence/network.
func (h *Handler) FraudNetwork(w http.ResponseWriter, r *http.Request) {
	v, _ := h.cached("network", func() (any, error) {
		return h.analyzer.Network(h.store.Snapshot()), nil
	})
	ok(w, v)
}

type alertsResponse struct {
	WindowDays int            `json:"window_days"`
	Count      int            `json:"count"`
	BySeverity map[string]int `json:"by_severity"`
	Alerts     []domain.Alert `json:"alerts"`
}

// Alerts handles GET /intelligence/alerts?days=N. Without days the configured
// window applies; days=0 evaluates the whole corpus.
func (h *Handler) Alerts(w http.ResponseWriter, r *http.Request) {
	s := h.runtime.Intel()
	days := s.AlertWindowDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > maxAlertWindowDays {
			badRequest(w, "INVALID_PARAMETER", fmt.Sprintf("days must be an integer between 0 and %d", maxAlertWindowDays))
			return
		}
		days = n
	}

	v, _ := h.cached(fmt.Sprintf("alerts:%d:%+v", days, s.Alerts), func() (any, error) {
		alerts := h.analyzer.Alerts(h.store.Snapshot(), days, s.Alerts)
		if alerts == nil {
			alerts = []domain.Alert{}
		}
		return alertsResponse{
			WindowDays: days,
			Count:      len(alerts),
			BySeverity: intel.SeverityCounts(alerts),
			Alerts:     alerts,
		}, nil
	})
	ok(w, v)
}

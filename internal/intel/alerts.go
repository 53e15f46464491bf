package intel

import (
	"fmt"
	"math"
	"sort"
	"time"

	"insureguard/risk-api/internal/domain"
)

// AlertRules are the thresholds of the pattern alert rules.
type AlertRules struct {
	RapidRepeatDays int     `json:"rapid_repeat_days" koanf:"rapid_repeat_days" yaml:"rapid_repeat_days"`
	HighValueK      float64 `json:"high_value_k" koanf:"high_value_k" yaml:"high_value_k"`
	NewPolicyDays   int     `json:"new_policy_days" koanf:"new_policy_days" yaml:"new_policy_days"`
}

// DefaultAlertRules returns a 30 day repeat window, k=2 and a 30 day new
// policy window.
func DefaultAlertRules() AlertRules {
	return AlertRules{RapidRepeatDays: 30, HighValueK: 2, NewPolicyDays: 30}
}

func (r AlertRules) Validate() error {
	switch {
	case r.RapidRepeatDays <= 0:
		return &domain.InvalidConfigurationError{Field: "rapid_repeat_days", Reason: "must be positive"}
	case math.IsNaN(r.HighValueK) || r.HighValueK <= 0:
		return &domain.InvalidConfigurationError{Field: "high_value_k", Reason: "must be positive"}
	case r.NewPolicyDays <= 0:
		return &domain.InvalidConfigurationError{Field: "new_policy_days", Reason: "must be positive"}
	}
	return nil
}

// Window restricts which claims can raise alerts. A zero Since admits all.
type Window struct {
	Since time.Time
}

// LastDays is the window of claims filed within days before now.
func LastDays(now time.Time, days int) Window {
	if days <= 0 {
		return Window{}
	}
	return Window{Since: now.AddDate(0, 0, -days)}
}

func (w Window) admits(c *domain.Claim) bool {
	return w.Since.IsZero() || !c.FiledDate.Before(w.Since)
}

func alertable(c *domain.Claim) error {
	if err := linkable(c); err != nil {
		return err
	}
	switch {
	case !c.Category.Valid():
		return &domain.InvalidClaimDataError{Field: "category", Reason: fmt.Sprintf("unsupported category %q", c.Category)}
	case c.ClaimAmount.IsNegative():
		return &domain.InvalidClaimDataError{Field: "claim_amount", Reason: "must not be negative"}
	case c.FiledDate.IsZero():
		return &domain.InvalidClaimDataError{Field: "filed_date", Reason: "is required"}
	case c.IncidentDate.IsZero():
		return &domain.InvalidClaimDataError{Field: "incident_date", Reason: "is required"}
	}
	return nil
}

// categoryStats are the amount statistics of one insurance category.
type categoryStats struct {
	mean, std, median float64
}

// statistics computes per-category amount statistics over the whole corpus.
// std is the population standard deviation.
func statistics(claims []domain.Claim) map[domain.Category]categoryStats {
	amounts := make(map[domain.Category][]float64)
	for i := range claims {
		c := &claims[i]
		amounts[c.Category] = append(amounts[c.Category], c.ClaimAmount.InexactFloat64())
	}

	out := make(map[domain.Category]categoryStats, len(amounts))
	for cat, xs := range amounts {
		var sum float64
		for _, x := range xs {
			sum += x
		}
		mean := sum / float64(len(xs))
		var ss float64
		for _, x := range xs {
			ss += (x - mean) * (x - mean)
		}
		sort.Float64s(xs)
		median := xs[len(xs)/2]
		if len(xs)%2 == 0 {
			median = (xs[len(xs)/2-1] + xs[len(xs)/2]) / 2
		}
		out[cat] = categoryStats{mean: mean, std: math.Sqrt(ss / float64(len(xs))), median: median}
	}
	return out
}

// EvaluateAlerts runs the rapid_repeat, high_value_anomaly and
// new_policy_claim rules. Category statistics come from the full corpus; only
// claims admitted by the window raise alerts. A claim can appear in several
// alerts.
//
// Alerts are ordered by severity (critical first), then type, then first
// affected claim ID. The second result counts skipped claims.
func EvaluateAlerts(corpus []domain.Claim, w Window, rules AlertRules, now time.Time) ([]domain.Alert, int) {
	claims, skipped := screen(corpus, alertable)
	stats := statistics(claims)

	var candidates []domain.Claim
	for i := range claims {
		if w.admits(&claims[i]) {
			candidates = append(candidates, claims[i])
		}
	}

	now = now.UTC()
	alerts := rapidRepeat(candidates, rules, now)
	for i := range candidates {
		c := &candidates[i]
		st := stats[c.Category]
		amount := c.ClaimAmount.InexactFloat64()

		if limit := st.mean + rules.HighValueK*st.std; amount > limit {
			sev := domain.SeverityMedium
			if c.HighRisk() {
				sev = domain.SeverityCritical
			}
			alerts = append(alerts, domain.Alert{
				AlertType:        domain.AlertHighValueAnomaly,
				Severity:         sev,
				AffectedClaimIDs: []string{c.ID},
				Message: fmt.Sprintf("Claim %s for %s exceeds the %s mean of %.2f by more than %.1f standard deviations",
					c.ID, c.ClaimAmount.StringFixed(2), c.Category, st.mean, rules.HighValueK),
				GeneratedAt: now,
			})
		}

		if c.PolicyStartDate != nil && amount > st.median && !c.IncidentDate.Before(*c.PolicyStartDate) {
			days := int(c.IncidentDate.Sub(*c.PolicyStartDate).Hours() / 24)
			if days <= rules.NewPolicyDays {
				alerts = append(alerts, domain.Alert{
					AlertType:        domain.AlertNewPolicyClaim,
					Severity:         domain.SeverityHigh,
					AffectedClaimIDs: []string{c.ID},
					Message: fmt.Sprintf("Claim %s filed %d days after policy start for %s, above the %s median of %.2f",
						c.ID, days, c.ClaimAmount.StringFixed(2), c.Category, st.median),
					GeneratedAt: now,
				})
			}
		}
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if ra, rb := domain.SeverityRank(a.Severity), domain.SeverityRank(b.Severity); ra != rb {
			return ra < rb
		}
		if a.AlertType != b.AlertType {
			return a.AlertType < b.AlertType
		}
		return a.AffectedClaimIDs[0] < b.AffectedClaimIDs[0]
	})
	return alerts, skipped
}

// rapidRepeat raises one alert per claimant listing every claim that has a
// sibling filed within the repeat window.
func rapidRepeat(claims []domain.Claim, rules AlertRules, now time.Time) []domain.Alert {
	byClaimant := make(map[string][]*domain.Claim)
	for i := range claims {
		c := &claims[i]
		if c.ClaimantID != "" {
			byClaimant[c.ClaimantID] = append(byClaimant[c.ClaimantID], c)
		}
	}

	window := time.Duration(rules.RapidRepeatDays) * 24 * time.Hour
	var alerts []domain.Alert
	for claimant, cs := range byClaimant {
		if len(cs) < 2 {
			continue
		}
		sort.Slice(cs, func(i, j int) bool {
			if !cs[i].FiledDate.Equal(cs[j].FiledDate) {
				return cs[i].FiledDate.Before(cs[j].FiledDate)
			}
			return cs[i].ID < cs[j].ID
		})

		hit := make(map[string]bool)
		for i := 1; i < len(cs); i++ {
			if cs[i].FiledDate.Sub(cs[i-1].FiledDate) <= window {
				hit[cs[i-1].ID] = true
				hit[cs[i].ID] = true
			}
		}
		if len(hit) == 0 {
			continue
		}
		ids := make([]string, 0, len(hit))
		for id := range hit {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		alerts = append(alerts, domain.Alert{
			AlertType:        domain.AlertRapidRepeat,
			Severity:         domain.SeverityHigh,
			AffectedClaimIDs: ids,
			Message: fmt.Sprintf("Claimant %s filed %d claims within %d days of each other",
				claimant, len(ids), rules.RapidRepeatDays),
			GeneratedAt: now,
		})
	}
	return alerts
}

// SeverityCounts tallies alerts by severity.
func SeverityCounts(alerts []domain.Alert) map[string]int {
	out := map[string]int{
		domain.SeverityCritical: 0,
		domain.SeverityHigh:     0,
		domain.SeverityMedium:   0,
		domain.SeverityLow:      0,
	}
	for _, a := range alerts {
		out[a.Severity]++
	}
	return out
}

package intel

import (
	"sort"

	"insureguard/risk-api/internal/domain"
)

// RepetitionThresholds decide when a reused entity value is reported.
type RepetitionThresholds struct {
	MinOccurrences       int `json:"min_occurrences" koanf:"min_occurrences" yaml:"min_occurrences"`
	MinDistinctClaimants int `json:"min_distinct_claimants" koanf:"min_distinct_claimants" yaml:"min_distinct_claimants"`
	HighRiskClaimants    int `json:"high_risk_claimants" koanf:"high_risk_claimants" yaml:"high_risk_claimants"`
}

// DefaultRepetitionThresholds reports a value seen on 3+ claims or by 2+
// claimants, and rates it high when 3+ claimants share it.
func DefaultRepetitionThresholds() RepetitionThresholds {
	return RepetitionThresholds{MinOccurrences: 3, MinDistinctClaimants: 2, HighRiskClaimants: 3}
}

func (t RepetitionThresholds) Validate() error {
	switch {
	case t.MinOccurrences < 2:
		return &domain.InvalidConfigurationError{Field: "min_occurrences", Reason: "must be at least 2"}
	case t.MinDistinctClaimants < 2:
		return &domain.InvalidConfigurationError{Field: "min_distinct_claimants", Reason: "must be at least 2"}
	case t.HighRiskClaimants < 1:
		return &domain.InvalidConfigurationError{Field: "high_risk_claimants", Reason: "must be positive"}
	}
	return nil
}

type entityGroup struct {
	claimIDs  []string
	claimants map[string]struct{}
}

// DetectRepetitions groups claims by normalised entity value per entity type
// and reports the groups that meet either threshold. Output is ordered by
// entity type then value. The second result counts skipped claims.
func DetectRepetitions(corpus []domain.Claim, th RepetitionThresholds) ([]domain.EntityRepetitionReport, int) {
	claims, skipped := screen(corpus, linkable)

	groups := make(map[entityKey]*entityGroup)
	for i := range claims {
		c := &claims[i]
		for _, k := range entities(c) {
			g, ok := groups[k]
			if !ok {
				g = &entityGroup{claimants: make(map[string]struct{})}
				groups[k] = g
			}
			g.claimIDs = append(g.claimIDs, c.ID)
			if c.ClaimantID != "" {
				g.claimants[c.ClaimantID] = struct{}{}
			}
		}
	}

	var reports []domain.EntityRepetitionReport
	for k, g := range groups {
		occurrences, distinct := len(g.claimIDs), len(g.claimants)
		if occurrences < th.MinOccurrences && distinct < th.MinDistinctClaimants {
			continue
		}
		risk := domain.SeverityMedium
		if distinct >= th.HighRiskClaimants {
			risk = domain.SeverityHigh
		}
		ids := append([]string(nil), g.claimIDs...)
		sort.Strings(ids)
		reports = append(reports, domain.EntityRepetitionReport{
			EntityType:            k.Type,
			EntityValue:           k.Value,
			OccurrenceCount:       occurrences,
			DistinctClaimantCount: distinct,
			RiskLevel:             risk,
			ClaimIDs:              ids,
		})
	}

	sort.Slice(reports, func(i, j int) bool {
		a, b := reports[i], reports[j]
		if a.EntityType != b.EntityType {
			return typeRank(a.EntityType) < typeRank(b.EntityType)
		}
		return a.EntityValue < b.EntityValue
	})
	return reports, skipped
}

// Package intel runs the corpus-wide fraud intelligence analyses: entity
// repetition, claim networks and rule-based pattern alerts.
//
// Every analysis is a pure function of a claim snapshot plus its settings.
// Malformed claims are skipped and counted, never fatal to the batch.
package intel

import (
	"sort"

	"insureguard/risk-api/internal/domain"
)

// linkable reports whether a claim can take part in entity linkage.
func linkable(c *domain.Claim) error {
	if c.ID == "" {
		return &domain.InvalidClaimDataError{Field: "id", Reason: "is required"}
	}
	return nil
}

// screen returns the claims accepted by check, dropping duplicate IDs, and the
// number rejected.
func screen(corpus []domain.Claim, check func(*domain.Claim) error) ([]domain.Claim, int) {
	out := make([]domain.Claim, 0, len(corpus))
	seen := make(map[string]struct{}, len(corpus))
	skipped := 0
	for i := range corpus {
		c := &corpus[i]
		if err := check(c); err != nil {
			skipped++
			continue
		}
		if _, dup := seen[c.ID]; dup {
			skipped++
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, skipped
}

// entityKey identifies one normalised entity value of one type.
type entityKey struct {
	Type  string
	Value string
}

// entities lists the non-empty normalised entities a claim references.
func entities(c *domain.Claim) []entityKey {
	var out []entityKey
	for _, t := range domain.EntityTypes {
		if v := domain.NormalizeEntity(c.EntityValue(t)); v != "" {
			out = append(out, entityKey{Type: t, Value: v})
		}
	}
	return out
}

func typeRank(t string) int {
	for i, et := range domain.EntityTypes {
		if et == t {
			return i
		}
	}
	return len(domain.EntityTypes)
}

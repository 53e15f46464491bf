// Package store provides thread-safe, in-memory storage for claims and
// webhook registrations.
//
// The claims workflow owns claim persistence; this store is the corpus the
// risk pipeline reads from. Secondary indexes (byClaimant, byRepairShop) keep
// the per-claim history lookups used during scoring O(1). Corpus-wide
// analyses read a Snapshot so they always see one consistent state.
package store

import (
	"errors"
	"sort"
	"sync"

	"insureguard/risk-api/internal/domain"
)

var (
	// ErrDuplicateClaim is returned when a claim ID is submitted twice.
	ErrDuplicateClaim = errors.New("claim already exists")
	// ErrClaimNotFound is returned when a write targets an unknown claim.
	ErrClaimNotFound = errors.New("claim not found")
)

// Store is a thread-safe in-memory data store.
type Store struct {
	mu sync.RWMutex

	claims   map[string]*domain.Claim
	webhooks map[string]*domain.WebhookConfig

	// Secondary indexes: key → claim IDs. Repair shop keys are normalised.
	byClaimant   map[string][]string
	byRepairShop map[string][]string

	// revision increases on every claim write. Callers use it to key caches
	// of corpus-wide results.
	revision uint64
}

// New creates an empty, ready-to-use Store.
func New() *Store {
	return &Store{
		claims:       make(map[string]*domain.Claim),
		webhooks:     make(map[string]*domain.WebhookConfig),
		byClaimant:   make(map[string][]string),
		byRepairShop: make(map[string][]string),
	}
}

// ─── Claims ───────────────────────────────────────────────────────────────────

// SaveClaim stores a copy of c and updates the secondary indexes.
// Returns ErrDuplicateClaim if the ID already exists.
func (s *Store) SaveClaim(c *domain.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.claims[c.ID]; exists {
		return ErrDuplicateClaim
	}

	cp := clone(c)
	s.claims[c.ID] = &cp
	s.byClaimant[c.ClaimantID] = append(s.byClaimant[c.ClaimantID], c.ID)
	if shop := domain.NormalizeEntity(c.RepairShopName); shop != "" {
		s.byRepairShop[shop] = append(s.byRepairShop[shop], c.ID)
	}
	s.revision++
	return nil
}

// GetClaim returns a copy of the claim with the given ID.
func (s *Store) GetClaim(id string) (domain.Claim, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.claims[id]
	if !ok {
		return domain.Claim{}, false
	}
	return clone(c), true
}

// ClaimsByClaimant returns copies of every claim filed by claimantID, oldest
// filing first.
func (s *Store) ClaimsByClaimant(claimantID string) []domain.Claim {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byClaimant[claimantID]
	out := make([]domain.Claim, 0, len(ids))
	for _, id := range ids {
		out = append(out, clone(s.claims[id]))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FiledDate.Before(out[j].FiledDate) })
	return out
}

// CountByRepairShop counts claims naming the repair shop, excluding
// excludeID. Names are compared after normalisation.
func (s *Store) CountByRepairShop(name, excludeID string) int {
	shop := domain.NormalizeEntity(name)
	if shop == "" {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, id := range s.byRepairShop[shop] {
		if id != excludeID {
			n++
		}
	}
	return n
}

// AttachAssessment replaces the claim's risk assessment as a whole.
func (s *Store) AttachAssessment(id string, a *domain.RiskAssessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.claims[id]
	if !ok {
		return ErrClaimNotFound
	}
	c.Assessment = a
	s.revision++
	return nil
}

// SetLabel records a reviewer's fraud/genuine verdict on a claim.
func (s *Store) SetLabel(id, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.claims[id]
	if !ok {
		return ErrClaimNotFound
	}
	c.Label = label
	s.revision++
	return nil
}

// Snapshot returns copies of every claim, ordered by ID. The slice is the
// caller's own and never changes underneath it.
func (s *Store) Snapshot() []domain.Claim {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Claim, 0, len(s.claims))
	for _, c := range s.claims {
		out = append(out, clone(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Labelled returns copies of every claim carrying a reviewer label, ordered
// by ID.
func (s *Store) Labelled() []domain.Claim {
	var out []domain.Claim
	for _, c := range s.Snapshot() {
		if c.Label == domain.LabelFraud || c.Label == domain.LabelGenuine {
			out = append(out, c)
		}
	}
	return out
}

// HighRisk returns every claim currently assessed as high risk, most likely
// fraud first.
func (s *Store) HighRisk() []domain.Claim {
	var out []domain.Claim
	for _, c := range s.Snapshot() {
		if c.HighRisk() {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Assessment.FraudProbability > out[j].Assessment.FraudProbability
	})
	return out
}

// Len returns the number of stored claims.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.claims)
}

// Revision returns the current claim-write counter.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// clone copies a claim deeply enough that callers cannot mutate stored state.
// Assessments are replaced wholesale, never edited, so the pointer is shared.
func clone(c *domain.Claim) domain.Claim {
	cp := *c
	if c.Documents != nil {
		cp.Documents = append([]domain.DocumentCheck(nil), c.Documents...)
	}
	if c.PolicyStartDate != nil {
		t := *c.PolicyStartDate
		cp.PolicyStartDate = &t
	}
	return cp
}

// ─── Webhooks ─────────────────────────────────────────────────────────────────

// SaveWebhook persists a webhook configuration.
func (s *Store) SaveWebhook(wh *domain.WebhookConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webhooks[wh.ID] = wh
}

// DeleteWebhook removes a webhook by ID. Returns false if not found.
func (s *Store) DeleteWebhook(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.webhooks[id]
	if exists {
		delete(s.webhooks, id)
	}
	return exists
}

// ListActiveWebhooks returns all webhooks that are currently active.
func (s *Store) ListActiveWebhooks() []*domain.WebhookConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.WebhookConfig
	for _, wh := range s.webhooks {
		if wh.Active {
			result = append(result, wh)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

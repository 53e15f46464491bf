package store_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"insureguard/risk-api/internal/domain"
	"insureguard/risk-api/internal/store"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

var base = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func newClaim(id, claimant, shop string, filedDay int) *domain.Claim {
	filed := base.AddDate(0, 0, filedDay)
	return &domain.Claim{
		ID:             id,
		ClaimantID:     claimant,
		Category:       domain.CategoryVehicle,
		ClaimAmount:    decimal.NewFromInt(50000),
		IncidentDate:   filed.AddDate(0, 0, -1),
		FiledDate:      filed,
		RepairShopName: shop,
		Documents:      []domain.DocumentCheck{{Type: "invoice", Passed: true, Confidence: 0.9}},
	}
}

// ─── Claims ───────────────────────────────────────────────────────────────────

func TestSave_And_GetByID(t *testing.T) {
	s := store.New()
	if err := s.SaveClaim(newClaim("c-001", "u-1", "", 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok := s.GetClaim("c-001")
	if !ok {
		t.Fatal("expected to find c-001")
	}
	if got.ClaimantID != "u-1" {
		t.Errorf("expected claimant u-1, got %s", got.ClaimantID)
	}
}

func TestSave_DuplicateID_ReturnsError(t *testing.T) {
	s := store.New()
	c := newClaim("dup-001", "u-1", "", 0)
	_ = s.SaveClaim(c)
	if err := s.SaveClaim(c); err != store.ErrDuplicateClaim {
		t.Errorf("expected ErrDuplicateClaim, got %v", err)
	}
}

func TestGet_MissingID_ReturnsFalse(t *testing.T) {
	s := store.New()
	if _, ok := s.GetClaim("nonexistent"); ok {
		t.Error("expected ok=false for missing claim")
	}
}

func TestGet_ReturnsIsolatedCopy(t *testing.T) {
	s := store.New()
	_ = s.SaveClaim(newClaim("c-iso", "u-1", "", 0))

	got, _ := s.GetClaim("c-iso")
	got.ClaimantID = "mutated"
	got.Documents[0].Passed = false

	again, _ := s.GetClaim("c-iso")
	if again.ClaimantID != "u-1" || !again.Documents[0].Passed {
		t.Error("mutating a returned claim must not change the stored claim")
	}
}

// ─── History lookups ──────────────────────────────────────────────────────────

func TestClaimsByClaimant_OrderedByFiling(t *testing.T) {
	s := store.New()
	_ = s.SaveClaim(newClaim("late", "u-1", "", 20))
	_ = s.SaveClaim(newClaim("early", "u-1", "", 2))
	_ = s.SaveClaim(newClaim("other", "u-2", "", 5))

	got := s.ClaimsByClaimant("u-1")
	if len(got) != 2 {
		t.Fatalf("expected 2 claims, got %d", len(got))
	}
	if got[0].ID != "early" || got[1].ID != "late" {
		t.Errorf("expected [early late], got [%s %s]", got[0].ID, got[1].ID)
	}
}

func TestClaimsByClaimant_EmptyForUnknownClaimant(t *testing.T) {
	s := store.New()
	if got := s.ClaimsByClaimant("nobody"); len(got) != 0 {
		t.Errorf("expected empty slice, got %d", len(got))
	}
}

func TestCountByRepairShop_NormalisesAndExcludesSelf(t *testing.T) {
	s := store.New()
	_ = s.SaveClaim(newClaim("r1", "u-1", "Sharma Auto Works", 0))
	_ = s.SaveClaim(newClaim("r2", "u-2", "  sharma   AUTO works ", 1))
	_ = s.SaveClaim(newClaim("r3", "u-3", "Other Garage", 2))

	if n := s.CountByRepairShop("SHARMA AUTO WORKS", "r1"); n != 1 {
		t.Errorf("expected 1 other claim, got %d", n)
	}
	if n := s.CountByRepairShop("", ""); n != 0 {
		t.Errorf("expected 0 for empty shop, got %d", n)
	}
}

// ─── Assessment & labels ──────────────────────────────────────────────────────

func TestAttachAssessment_ReplacesWholesale(t *testing.T) {
	s := store.New()
	_ = s.SaveClaim(newClaim("a1", "u-1", "", 0))

	first := &domain.RiskAssessment{FraudProbability: 0.2, RiskCategory: domain.RiskLow}
	second := &domain.RiskAssessment{FraudProbability: 0.9, RiskCategory: domain.RiskHigh}
	_ = s.AttachAssessment("a1", first)
	_ = s.AttachAssessment("a1", second)

	got, _ := s.GetClaim("a1")
	if got.Assessment != second {
		t.Error("expected the second assessment to replace the first")
	}
	if first.RiskCategory != domain.RiskLow {
		t.Error("the replaced assessment must not be mutated")
	}
}

func TestAttachAssessment_MissingClaim(t *testing.T) {
	s := store.New()
	if err := s.AttachAssessment("ghost", &domain.RiskAssessment{}); err != store.ErrClaimNotFound {
		t.Errorf("expected ErrClaimNotFound, got %v", err)
	}
}

func TestSetLabel_AndLabelled(t *testing.T) {
	s := store.New()
	_ = s.SaveClaim(newClaim("l1", "u-1", "", 0))
	_ = s.SaveClaim(newClaim("l2", "u-2", "", 1))
	_ = s.SaveClaim(newClaim("l3", "u-3", "", 2))

	_ = s.SetLabel("l3", domain.LabelFraud)
	_ = s.SetLabel("l1", domain.LabelGenuine)

	got := s.Labelled()
	if len(got) != 2 {
		t.Fatalf("expected 2 labelled claims, got %d", len(got))
	}
	if got[0].ID != "l1" || got[1].ID != "l3" {
		t.Errorf("expected [l1 l3], got [%s %s]", got[0].ID, got[1].ID)
	}
	if err := s.SetLabel("ghost", domain.LabelFraud); err != store.ErrClaimNotFound {
		t.Errorf("expected ErrClaimNotFound, got %v", err)
	}
}

func TestHighRisk_SortedByProbability(t *testing.T) {
	s := store.New()
	for i, p := range []float64{0.75, 0.2, 0.95} {
		id := fmt.Sprintf("h%d", i)
		_ = s.SaveClaim(newClaim(id, "u", "", i))
		cat := domain.RiskHigh
		if p < 0.7 {
			cat = domain.RiskLow
		}
		_ = s.AttachAssessment(id, &domain.RiskAssessment{FraudProbability: p, RiskCategory: cat})
	}

	got := s.HighRisk()
	if len(got) != 2 {
		t.Fatalf("expected 2 high-risk claims, got %d", len(got))
	}
	if got[0].ID != "h2" || got[1].ID != "h0" {
		t.Errorf("expected [h2 h0], got [%s %s]", got[0].ID, got[1].ID)
	}
}

// ─── Snapshot & revision ──────────────────────────────────────────────────────

func TestSnapshot_SortedAndStable(t *testing.T) {
	s := store.New()
	_ = s.SaveClaim(newClaim("b", "u-1", "", 0))
	_ = s.SaveClaim(newClaim("a", "u-1", "", 1))

	snap := s.Snapshot()
	_ = s.SaveClaim(newClaim("c", "u-1", "", 2))

	if len(snap) != 2 {
		t.Fatalf("snapshot must not see later writes, got %d claims", len(snap))
	}
	if snap[0].ID != "a" || snap[1].ID != "b" {
		t.Errorf("expected [a b], got [%s %s]", snap[0].ID, snap[1].ID)
	}
	if s.Len() != 3 {
		t.Errorf("expected 3 stored claims, got %d", s.Len())
	}
}

func TestRevision_IncreasesOnEveryClaimWrite(t *testing.T) {
	s := store.New()
	r0 := s.Revision()
	_ = s.SaveClaim(newClaim("v1", "u-1", "", 0))
	r1 := s.Revision()
	_ = s.AttachAssessment("v1", &domain.RiskAssessment{})
	r2 := s.Revision()
	_ = s.SetLabel("v1", domain.LabelGenuine)
	r3 := s.Revision()

	if !(r0 < r1 && r1 < r2 && r2 < r3) {
		t.Errorf("expected strictly increasing revisions, got %d %d %d %d", r0, r1, r2, r3)
	}
}

// ─── Webhooks ─────────────────────────────────────────────────────────────────

func TestWebhook_SaveAndList(t *testing.T) {
	s := store.New()
	s.SaveWebhook(&domain.WebhookConfig{ID: "wh-1", URL: "http://a.com", MinRisk: domain.RiskHigh, Active: true})
	s.SaveWebhook(&domain.WebhookConfig{ID: "wh-2", URL: "http://b.com", MinRisk: domain.RiskHigh, Active: false})

	hooks := s.ListActiveWebhooks()
	if len(hooks) != 1 {
		t.Fatalf("expected 1 active webhook, got %d", len(hooks))
	}
	if hooks[0].ID != "wh-1" {
		t.Errorf("expected wh-1, got %s", hooks[0].ID)
	}
}

func TestWebhook_Delete(t *testing.T) {
	s := store.New()
	s.SaveWebhook(&domain.WebhookConfig{ID: "wh-del", URL: "http://x.com", Active: true})
	if !s.DeleteWebhook("wh-del") {
		t.Fatal("expected delete to return true")
	}
	if len(s.ListActiveWebhooks()) != 0 {
		t.Error("expected no webhooks after delete")
	}
}

func TestWebhook_DeleteMissing_ReturnsFalse(t *testing.T) {
	s := store.New()
	if s.DeleteWebhook("ghost") {
		t.Error("deleting missing webhook should return false")
	}
}

// ─── Concurrency (race detector) ─────────────────────────────────────────────

func TestStore_ConcurrentReadsAndWrites_NoRace(t *testing.T) {
	s := store.New()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("conc-%02d", n)
			_ = s.SaveClaim(newClaim(id, "u-conc", "Shared Garage", n))
			_ = s.AttachAssessment(id, &domain.RiskAssessment{RiskCategory: domain.RiskMedium})
		}(i)
		go func() {
			defer wg.Done()
			_ = s.Snapshot()
			_ = s.CountByRepairShop("shared garage", "")
		}()
	}
	wg.Wait()

	if n := len(s.ClaimsByClaimant("u-conc")); n != 20 {
		t.Errorf("expected 20 claims, got %d", n)
	}
}

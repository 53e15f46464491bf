// Package features derives the fixed-length numeric feature vector the risk
// classifier consumes from one claim plus its historical context.
//
// The vector always has the same 14 slots in the same order; missing inputs
// resolve to a defined default so the classifier input shape never changes.
package features

import (
	"fmt"
	"math"
	"strings"
	"time"

	"insureguard/risk-api/internal/domain"
)

// Feature slot indexes, in canonical order.
const (
	ClaimAmount = iota
	PremiumAmount
	ClaimToPremiumRatio
	TimeSincePolicyStart
	ClaimFrequency
	SuspiciousAmountFlag
	IncidentSeverity
	LocationRisk
	WeekendHolidayFlag
	LateReportingFlag
	RepairShopRepetition
	IsVehicleClaim
	IsHealthClaim
	IsPropertyClaim

	NumFeatures
)

// Names are the machine-readable feature names, indexed by slot.
var Names = [NumFeatures]string{
	"claim_amount",
	"premium_amount",
	"claim_to_premium_ratio",
	"time_since_policy_start",
	"claim_frequency",
	"suspicious_amount_flag",
	"incident_severity",
	"location_risk",
	"weekend_holiday_flag",
	"late_reporting_flag",
	"repair_shop_repetition",
	"is_vehicle_claim",
	"is_health_claim",
	"is_property_claim",
}

// Labels are the human-readable explanations shown next to top factors.
var Labels = [NumFeatures]string{
	"Claim amount is unusually high",
	"Premium amount relative to claim",
	"Claim-to-premium ratio exceeds normal range",
	"Policy is very new; claim filed shortly after purchase",
	"Multiple claims filed by the same policyholder",
	"Claim amount exceeds category threshold",
	"Incident description indicates high severity",
	"Location associated with higher fraud rates",
	"Incident occurred on a weekend or holiday",
	"Claim filed significantly after the incident",
	"Same repair shop linked to multiple claims",
	"Vehicle insurance claim",
	"Health insurance claim",
	"Property insurance claim",
}

// Vector is an immutable feature vector. Being an array, it is copied by value.
type Vector [NumFeatures]float64

// Slice returns a fresh copy of the vector as a slice.
func (v Vector) Slice() []float64 {
	out := make([]float64, NumFeatures)
	copy(out, v[:])
	return out
}

// Map returns the vector keyed by feature name.
func (v Vector) Map() map[string]float64 {
	m := make(map[string]float64, NumFeatures)
	for i, name := range Names {
		m[name] = v[i]
	}
	return m
}

// Index returns the slot of a feature name, or -1.
func Index(name string) int {
	for i, n := range Names {
		if n == name {
			return i
		}
	}
	return -1
}

// History is the context a claim is scored against.
type History struct {
	// ClaimantClaims are the claimant's other claims, in any order.
	ClaimantClaims []domain.Claim
	// RepairShopClaims counts other claims (any claimant) naming the same
	// repair shop.
	RepairShopClaims int
}

// Extraction is a feature vector plus anomaly notes raised while deriving it.
type Extraction struct {
	Vector Vector
	Notes  []string
}

// Extractor derives feature vectors. It holds no mutable state.
type Extractor struct {
	cfg      Config
	holidays map[string]struct{}
}

// NewExtractor creates an extractor with the given configuration. Zero-valued
// fields fall back to DefaultConfig.
func NewExtractor(cfg Config) *Extractor {
	cfg = cfg.withDefaults()
	holidays := make(map[string]struct{}, len(cfg.Holidays))
	for _, d := range cfg.Holidays {
		holidays[d] = struct{}{}
	}
	return &Extractor{cfg: cfg, holidays: holidays}
}

// Config returns the effective extractor configuration.
func (e *Extractor) Config() Config { return e.cfg }

// Extract derives the feature vector for claim given its history. It fails
// with *domain.InvalidClaimDataError only on structurally malformed input.
func (e *Extractor) Extract(claim *domain.Claim, h History) (Extraction, error) {
	if err := validate(claim); err != nil {
		return Extraction{}, err
	}

	var (
		v     Vector
		notes []string
	)

	claimAmount := claim.ClaimAmount.InexactFloat64()
	premium := 0.0
	if claim.PremiumAmount.Valid {
		premium = claim.PremiumAmount.Decimal.InexactFloat64()
	}

	v[ClaimAmount] = claimAmount
	v[PremiumAmount] = premium
	v[ClaimToPremiumRatio] = math.Min(claimAmount/math.Max(premium, e.cfg.PremiumEpsilon), e.cfg.MaxPremiumRatio)

	if claim.PolicyStartDate == nil {
		v[TimeSincePolicyStart] = e.cfg.DefaultPolicyAgeDays
	} else {
		days := daysBetween(*claim.PolicyStartDate, claim.IncidentDate)
		if claim.IncidentDate.Before(*claim.PolicyStartDate) {
			if days < 0 {
				notes = append(notes, fmt.Sprintf("incident occurred %d days before policy start", -days))
			} else {
				notes = append(notes, "incident occurred less than a day before policy start")
			}
			days = 0
		}
		v[TimeSincePolicyStart] = float64(days)
	}

	v[ClaimFrequency] = float64(priorClaims(claim, h.ClaimantClaims))

	if claimAmount > e.cfg.AmountCaps[claim.Category] {
		v[SuspiciousAmountFlag] = 1
	}

	v[IncidentSeverity] = e.severity(claim)
	v[LocationRisk] = e.locationRisk(claim.Location)

	if e.weekendOrHoliday(claim.IncidentDate) {
		v[WeekendHolidayFlag] = 1
	}
	if daysBetween(claim.IncidentDate, claim.FiledDate) > e.cfg.LateReportingDays {
		v[LateReportingFlag] = 1
	}

	switch claim.Category {
	case domain.CategoryVehicle:
		if claim.RepairShopName != "" {
			v[RepairShopRepetition] = float64(h.RepairShopClaims)
		}
		v[IsVehicleClaim] = 1
	case domain.CategoryHealth:
		v[IsHealthClaim] = 1
	case domain.CategoryProperty:
		v[IsPropertyClaim] = 1
	}

	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			v[i] = 0
		}
	}

	return Extraction{Vector: v, Notes: notes}, nil
}

func validate(c *domain.Claim) error {
	if c == nil {
		return &domain.InvalidClaimDataError{Field: "claim", Reason: "is nil"}
	}
	if !c.Category.Valid() {
		return &domain.InvalidClaimDataError{Field: "category", Reason: fmt.Sprintf("unsupported category %q", c.Category)}
	}
	if c.ClaimAmount.IsNegative() {
		return &domain.InvalidClaimDataError{Field: "claim_amount", Reason: "must not be negative"}
	}
	if c.PremiumAmount.Valid && c.PremiumAmount.Decimal.IsNegative() {
		return &domain.InvalidClaimDataError{Field: "premium_amount", Reason: "must not be negative"}
	}
	if c.IncidentDate.IsZero() {
		return &domain.InvalidClaimDataError{Field: "incident_date", Reason: "is required"}
	}
	if c.FiledDate.IsZero() {
		return &domain.InvalidClaimDataError{Field: "filed_date", Reason: "is required"}
	}
	if c.FiledDate.Before(c.IncidentDate) {
		return &domain.InvalidClaimDataError{Field: "filed_date", Reason: "is before incident_date"}
	}
	return nil
}

// priorClaims counts history entries filed strictly before the claim.
func priorClaims(c *domain.Claim, history []domain.Claim) int {
	n := 0
	for i := range history {
		if history[i].ID == c.ID {
			continue
		}
		if history[i].FiledDate.Before(c.FiledDate) {
			n++
		}
	}
	return n
}

func (e *Extractor) severity(c *domain.Claim) float64 {
	desc := strings.ToLower(c.IncidentDescription)
	count := func(words []string) int {
		n := 0
		for _, w := range words {
			if strings.Contains(desc, w) {
				n++
			}
		}
		return n
	}

	lx := e.cfg.Lexicon
	var s float64
	switch severe, moderate, minor := count(lx.Severe), count(lx.Moderate), count(lx.Minor); {
	case severe > 0:
		s = math.Min(0.7+float64(severe)*0.1, 1.0)
	case moderate > 0:
		s = math.Min(0.3+float64(moderate)*0.1, 0.7)
	case minor > 0:
		s = math.Max(0.1, 0.3-float64(minor)*0.05)
	default:
		s = 0.5
	}

	// Failed document checks raise severity in proportion to the verifier's
	// confidence.
	for _, d := range c.Documents {
		if !d.Passed {
			s += 0.1 * clamp01(d.Confidence)
		}
	}
	return math.Min(s, 1.0)
}

func (e *Extractor) locationRisk(location string) float64 {
	loc := domain.NormalizeEntity(location)
	if loc == "" {
		return e.cfg.DefaultLocationRisk
	}
	// Longest keyword wins so "new delhi" can override "delhi".
	best, bestLen := e.cfg.DefaultLocationRisk, 0
	for kw, risk := range e.cfg.LocationRisk {
		k := domain.NormalizeEntity(kw)
		if k == "" || !strings.Contains(loc, k) {
			continue
		}
		if len(k) > bestLen || (len(k) == bestLen && risk > best) {
			best, bestLen = risk, len(k)
		}
	}
	return best
}

func (e *Extractor) weekendOrHoliday(t time.Time) bool {
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return true
	}
	_, ok := e.holidays[t.Format(time.DateOnly)]
	return ok
}

// daysBetween returns whole days from a to b, truncated toward zero.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

// Package domain contains all core types used across the application.
// Keeping domain types in one place makes the risk pipeline easy to reason about.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ─── Constants ───────────────────────────────────────────────────────────────

// Category is the insurance line a claim belongs to.
type Category string

// Supported insurance categories.
const (
	CategoryVehicle  Category = "vehicle"
	CategoryHealth   Category = "health"
	CategoryProperty Category = "property"
)

// Categories lists every supported category in canonical order.
var Categories = []Category{CategoryVehicle, CategoryHealth, CategoryProperty}

// Valid reports whether c is a supported category.
func (c Category) Valid() bool {
	switch c {
	case CategoryVehicle, CategoryHealth, CategoryProperty:
		return true
	}
	return false
}

// Prefix is the three-letter code used in claim numbers.
func (c Category) Prefix() string {
	switch c {
	case CategoryVehicle:
		return "VEH"
	case CategoryHealth:
		return "HLT"
	case CategoryProperty:
		return "PRP"
	}
	return "GEN"
}

// NewClaimNumber returns a human-facing claim number such as
// IG-VEH-2026-3F2A91C0.
func NewClaimNumber(c Category, at time.Time) string {
	id := uuid.New()
	return fmt.Sprintf("IG-%s-%d-%X", c.Prefix(), at.Year(), id[:4])
}

// Risk categories produced by the scorer.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Severity / risk levels used by the fraud intelligence reports.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// SeverityRank orders severities from most to least urgent.
func SeverityRank(s string) int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	}
	return 4
}

// Recommendation actions handed to the external claims workflow.
const (
	ActionFastTrack = "fast_track" // low risk
	ActionReview    = "review"     // route to an agent
	ActionEscalate  = "escalate"   // high risk, senior investigator
)

// Entity types used for cross-claim linkage.
const (
	EntityPhone      = "phone"
	EntityAddress    = "address"
	EntityRepairShop = "repair_shop"
	EntityHospital   = "hospital"
)

// EntityTypes lists the linkage entity types in canonical order.
var EntityTypes = []string{EntityPhone, EntityAddress, EntityRepairShop, EntityHospital}

// Reviewer labels for confirmed outcomes.
const (
	LabelFraud   = "fraud"
	LabelGenuine = "genuine"
)

// Alert types raised by the pattern alert engine.
const (
	AlertRapidRepeat      = "rapid_repeat"
	AlertHighValueAnomaly = "high_value_anomaly"
	AlertNewPolicyClaim   = "new_policy_claim"
)

// ─── Core domain types ────────────────────────────────────────────────────────

// DocumentCheck is the verdict of the external document verification service
// for one uploaded document.
type DocumentCheck struct {
	Type       string  `json:"type"`
	Passed     bool    `json:"passed"`
	Confidence float64 `json:"confidence"` // 0-1
}

// Claim is an insurance claim as held by the claims workflow. The risk
// pipeline reads it and only ever writes the Assessment field.
type Claim struct {
	ID                  string              `json:"id"`
	ClaimNumber         string              `json:"claim_number"`
	ClaimantID          string              `json:"claimant_id"`
	Category            Category            `json:"category"`
	ClaimAmount         decimal.Decimal     `json:"claim_amount"`
	PremiumAmount       decimal.NullDecimal `json:"premium_amount"`
	PolicyStartDate     *time.Time          `json:"policy_start_date,omitempty"`
	IncidentDate        time.Time           `json:"incident_date"`
	FiledDate           time.Time           `json:"filed_date"`
	IncidentDescription string              `json:"incident_description"`
	Location            string              `json:"location,omitempty"`
	RepairShopName      string              `json:"repair_shop_name,omitempty"` // vehicle only
	HospitalName        string              `json:"hospital_name,omitempty"`    // health only
	Phone               string              `json:"phone,omitempty"`
	Address             string              `json:"address,omitempty"`
	Documents           []DocumentCheck     `json:"documents,omitempty"`
	Status              string              `json:"status,omitempty"`
	Label               string              `json:"label,omitempty"`
	Assessment          *RiskAssessment     `json:"assessment,omitempty"`
}

// EntityValue returns the raw value of the given linkage entity on the claim.
func (c *Claim) EntityValue(entityType string) string {
	switch entityType {
	case EntityPhone:
		return c.Phone
	case EntityAddress:
		return c.Address
	case EntityRepairShop:
		return c.RepairShopName
	case EntityHospital:
		return c.HospitalName
	}
	return ""
}

// HighRisk reports whether the claim's current assessment is in the high band.
func (c *Claim) HighRisk() bool {
	return c.Assessment != nil && c.Assessment.RiskCategory == RiskHigh
}

// NormalizeEntity canonicalises an entity value for grouping: trimmed,
// lower-cased, internal whitespace collapsed.
func NormalizeEntity(v string) string {
	return strings.Join(strings.Fields(strings.ToLower(v)), " ")
}

// FactorContribution is a single feature's share of a fraud probability.
type FactorContribution struct {
	Feature      string  `json:"feature"`      // machine-readable feature name
	Label        string  `json:"label"`        // human-readable explanation
	Value        float64 `json:"value"`        // raw feature value
	Contribution float64 `json:"contribution"` // signed attribution
}

// RiskAssessment is the scorer's verdict on one claim. It is replaced as a
// whole on re-scoring.
type RiskAssessment struct {
	FraudProbability float64              `json:"fraud_probability"` // 0-1
	RiskScore        float64              `json:"risk_score"`        // 0-100
	RiskCategory     string               `json:"risk_category"`     // low / medium / high
	Flagged          bool                 `json:"flagged"`           // probability >= cost-optimal cutoff
	Recommendation   string               `json:"recommendation"`
	TopFactors       []FactorContribution `json:"top_factors"`
	Notes            []string             `json:"notes,omitempty"`
	ModelVersion     string               `json:"model_version"`
	ScoredAt         time.Time            `json:"scored_at"`
}

// ─── Fraud intelligence ───────────────────────────────────────────────────────

// EntityRepetitionReport describes an entity value reused across claims.
type EntityRepetitionReport struct {
	EntityType            string   `json:"entity_type"`
	EntityValue           string   `json:"entity_value"`
	OccurrenceCount       int      `json:"occurrence_count"`
	DistinctClaimantCount int      `json:"distinct_claimant_count"`
	RiskLevel             string   `json:"risk_level"`
	ClaimIDs              []string `json:"claim_ids"`
}

// FraudCluster is a connected component of claims linked by shared entities.
// ClusterID is an index into the current result only.
type FraudCluster struct {
	ClusterID      int      `json:"cluster_id"`
	MemberClaimIDs []string `json:"member_claim_ids"`
	Size           int      `json:"size"`
	RiskLevel      string   `json:"risk_level"`
}

// NetworkNode is a vertex of the claim/entity network view.
type NetworkNode struct {
	ID    string `json:"id"`
	Type  string `json:"type"` // claim | phone | address | repair_shop | hospital
	Label string `json:"label"`
}

// NetworkEdge links a claim to an entity it references.
type NetworkEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// Alert is a rule-based anomaly raised over the claim corpus.
type Alert struct {
	AlertType        string    `json:"alert_type"`
	Severity         string    `json:"severity"`
	AffectedClaimIDs []string  `json:"affected_claim_ids"`
	Message          string    `json:"message"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// ─── Webhooks ─────────────────────────────────────────────────────────────────

// WebhookConfig is a registered callback that receives high-risk claim
// notifications.
type WebhookConfig struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	MinRisk   string    `json:"min_risk"` // fire when category >= this
	CreatedAt time.Time `json:"created_at"`
	Active    bool      `json:"active"`
}

// WebhookPayload is the body sent to registered webhook URLs.
type WebhookPayload struct {
	Event       string    `json:"event"` // always "high_risk_claim"
	TriggeredAt time.Time `json:"triggered_at"`
	Claim       Claim     `json:"claim"`
}

// ─── Reporting ────────────────────────────────────────────────────────────────

// Analytics holds headline metrics for the dashboard.
type Analytics struct {
	TotalClaims         int             `json:"total_claims"`
	ScoredClaims        int             `json:"scored_claims"`
	RiskCounts          map[string]int  `json:"risk_counts"`
	CategoryCounts      map[string]int  `json:"category_counts"`
	AvgFraudProbability float64         `json:"avg_fraud_probability"`
	TotalClaimedAmount  decimal.Decimal `json:"total_claimed_amount"`
	FlaggedAmount       decimal.Decimal `json:"flagged_amount"`
}

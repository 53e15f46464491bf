package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"insureguard/risk-api/internal/classifier"
	"insureguard/risk-api/internal/config"
	"insureguard/risk-api/internal/domain"
	"insureguard/risk-api/internal/features"
	"insureguard/risk-api/internal/intel"
	"insureguard/risk-api/internal/metrics"
	"insureguard/risk-api/internal/scoring"
	"insureguard/risk-api/internal/seed"
	"insureguard/risk-api/internal/store"
	"insureguard/risk-api/internal/webhook"
)

// Deps wires a Handler. Metrics and Logger are optional.
type Deps struct {
	Store    *store.Store
	Service  *scoring.Service
	Scorer   *scoring.Scorer
	Analyzer *intel.Analyzer
	Runtime  *config.Runtime
	Notifier *webhook.Notifier
	Metrics  *metrics.Metrics
	Logger   *zap.Logger

	Training       classifier.TrainingConfig // base settings for POST /model/train
	Seed           seed.Options              // defaults for POST /admin/seed
	CacheTTL       time.Duration
	RequestTimeout time.Duration // zero disables the per-request timeout
}

// Handler holds all dependencies for the HTTP handlers.
type Handler struct {
	store    *store.Store
	service  *scoring.Service
	scorer   *scoring.Scorer
	analyzer *intel.Analyzer
	runtime  *config.Runtime
	notifier *webhook.Notifier
	metrics  *metrics.Metrics
	logger   *zap.Logger
	validate *validator.Validate
	cache    *cache.Cache
	now      func() time.Time

	training       classifier.TrainingConfig
	seed           seed.Options
	requestTimeout time.Duration
}

// NewHandler creates a Handler with the given dependencies.
func NewHandler(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.CacheTTL <= 0 {
		d.CacheTTL = 30 * time.Second
	}
	return &Handler{
		store:          d.Store,
		service:        d.Service,
		scorer:         d.Scorer,
		analyzer:       d.Analyzer,
		runtime:        d.Runtime,
		notifier:       d.Notifier,
		metrics:        d.Metrics,
		logger:         d.Logger.Named("api"),
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		cache:          cache.New(d.CacheTTL, 2*d.CacheTTL),
		now:            time.Now,
		training:       d.Training,
		seed:           d.Seed,
		requestTimeout: d.RequestTimeout,
	}
}

// ─── Request types ────────────────────────────────────────────────────────────

type documentRequest struct {
	Type       string  `json:"type" validate:"required,max=64"`
	Passed     bool    `json:"passed"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

type submitClaimRequest struct {
	ClaimantID          string              `json:"claimant_id" validate:"required,max=128"`
	Category            string              `json:"category" validate:"required,oneof=vehicle health property"`
	ClaimAmount         decimal.NullDecimal `json:"claim_amount"`
	PremiumAmount       decimal.NullDecimal `json:"premium_amount"`
	PolicyStartDate     *time.Time          `json:"policy_start_date"`
	IncidentDate        time.Time           `json:"incident_date" validate:"required"`
	FiledDate           *time.Time          `json:"filed_date"` // defaults to now
	IncidentDescription string              `json:"incident_description" validate:"max=10000"`
	Location            string              `json:"location" validate:"max=256"`
	RepairShopName      string              `json:"repair_shop_name" validate:"max=256"`
	HospitalName        string              `json:"hospital_name" validate:"max=256"`
	Phone               string              `json:"phone" validate:"max=64"`
	Address             string              `json:"address" validate:"max=512"`
	Documents           []documentRequest   `json:"documents" validate:"max=50,dive"`
}

type labelRequest struct {
	Label string `json:"label" validate:"required,oneof=fraud genuine"`
}

type trainRequest struct {
	Metric          string            `json:"metric" validate:"omitempty,oneof=roc_auc f1 recall precision"`
	Costs           *classifier.Costs `json:"costs"`
	MinSamples      int               `json:"min_samples" validate:"gte=0"`
	TestFraction    float64           `json:"test_fraction" validate:"gte=0,lt=1"`
	OversampleRatio float64           `json:"oversample_ratio" validate:"gte=0,lte=1"`
	Seed            *uint64           `json:"seed"`
}

type registerWebhookRequest struct {
	URL     string `json:"url" validate:"required,url,startswith=http"`
	MinRisk string `json:"min_risk" validate:"omitempty,oneof=low medium high"`
}

type seedRequest struct {
	Claims    int      `json:"claims" validate:"gte=0,lte=100000"`
	FraudRate *float64 `json:"fraud_rate" validate:"omitempty,gte=0,lte=1"`
	Seed      *uint64  `json:"seed"`
	Train     bool     `json:"train"`
}

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 20

// normalizer is implemented by requests that clean their fields before
// validation.
type normalizer interface {
	normalize()
}

// decode reads a JSON body into v. An empty body leaves v untouched when
// allowEmpty is set.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			fail(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE",
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return false
		case allowEmpty && errors.Is(err, io.EOF):
			// empty body
		default:
			badRequest(w, "INVALID_JSON", "request body must be valid JSON")
			return false
		}
	}
	if n, ok := v.(normalizer); ok {
		n.normalize()
	}
	return h.check(w, v)
}

func (h *Handler) check(w http.ResponseWriter, v any) bool {
	if err := h.validate.Struct(v); err != nil {
		badRequest(w, "VALIDATION_ERROR", validationMessage(err))
		return false
	}
	return true
}

// validationMessage flattens validator errors into one readable line.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Namespace())
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// ─── Claims ───────────────────────────────────────────────────────────────────

// SubmitClaim handles POST /claims.
// It stores the claim, scores it against the live model and notifies matching
// webhooks. Without a model the claim stays stored and the call returns 503.
func (h *Handler) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	var req submitClaimRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	if !req.ClaimAmount.Valid {
		writeError(w, &domain.InvalidClaimDataError{Field: "claim_amount", Reason: "is required"})
		return
	}

	claim := req.toClaim(h.now().UTC())
	// Shape errors must surface before anything is stored.
	if _, err := h.scorer.Extractor().Extract(&claim, features.History{}); err != nil {
		writeError(w, err)
		return
	}
	if err := h.store.SaveClaim(&claim); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/claims/"+claim.ID)

	if _, err := h.service.ScoreClaim(r.Context(), claim.ID); err != nil {
		writeError(w, err)
		return
	}
	stored, _ := h.store.GetClaim(claim.ID)
	h.notifier.NotifyAsync(&stored)
	created(w, stored)
}

func (req *submitClaimRequest) normalize() {
	req.ClaimantID = strings.TrimSpace(req.ClaimantID)
}

func (req *submitClaimRequest) toClaim(now time.Time) domain.Claim {
	filed := now
	if req.FiledDate != nil {
		filed = req.FiledDate.UTC()
	}
	docs := make([]domain.DocumentCheck, 0, len(req.Documents))
	for _, d := range req.Documents {
		docs = append(docs, domain.DocumentCheck{Type: d.Type, Passed: d.Passed, Confidence: d.Confidence})
	}
	cat := domain.Category(req.Category)
	return domain.Claim{
		ID:                  uuid.NewString(),
		ClaimNumber:         domain.NewClaimNumber(cat, filed),
		ClaimantID:          req.ClaimantID,
		Category:            cat,
		ClaimAmount:         req.ClaimAmount.Decimal,
		PremiumAmount:       req.PremiumAmount,
		PolicyStartDate:     req.PolicyStartDate,
		IncidentDate:        req.IncidentDate.UTC(),
		FiledDate:           filed,
		IncidentDescription: req.IncidentDescription,
		Location:            req.Location,
		RepairShopName:      req.RepairShopName,
		HospitalName:        req.HospitalName,
		Phone:               req.Phone,
		Address:             req.Address,
		Documents:           docs,
		Status:              "submitted",
	}
}

// GetClaim handles GET /claims/{id}.
func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, found := h.store.GetClaim(id)
	if !found {
		notFound(w, "claim not found")
		return
	}
	ok(w, c)
}

// ScoreClaim handles POST /claims/{id}/score and replaces the assessment.
func (h *Handler) ScoreClaim(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.service.ScoreClaim(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	c, _ := h.store.GetClaim(id)
	h.notifier.NotifyAsync(&c)
	ok(w, c)
}

// LabelClaim handles POST /claims/{id}/label.
func (h *Handler) LabelClaim(w http.ResponseWriter, r *http.Request) {
	var req labelRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.store.SetLabel(id, req.Label); err != nil {
		writeError(w, err)
		return
	}
	c, _ := h.store.GetClaim(id)
	ok(w, c)
}

// HighRiskClaims handles GET /claims/high-risk.
func (h *Handler) HighRiskClaims(w http.ResponseWriter, r *http.Request) {
	claims := h.store.HighRisk()
	if claims == nil {
		claims = []domain.Claim{}
	}
	ok(w, map[string]any{"count": len(claims), "claims": claims})
}

// Analytics handles GET /analytics.
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	ok(w, buildAnalytics(h.store.Snapshot()))
}

// buildAnalytics aggregates the dashboard headline numbers.
func buildAnalytics(claims []domain.Claim) domain.Analytics {
	a := domain.Analytics{
		TotalClaims:        len(claims),
		RiskCounts:         map[string]int{domain.RiskLow: 0, domain.RiskMedium: 0, domain.RiskHigh: 0},
		CategoryCounts:     make(map[string]int, len(domain.Categories)),
		TotalClaimedAmount: decimal.Zero,
		FlaggedAmount:      decimal.Zero,
	}
	for _, cat := range domain.Categories {
		a.CategoryCounts[string(cat)] = 0
	}

	var probSum float64
	for i := range claims {
		c := &claims[i]
		a.CategoryCounts[string(c.Category)]++
		a.TotalClaimedAmount = a.TotalClaimedAmount.Add(c.ClaimAmount)
		if c.Assessment == nil {
			continue
		}
		a.ScoredClaims++
		a.RiskCounts[c.Assessment.RiskCategory]++
		probSum += c.Assessment.FraudProbability
		if c.Assessment.Flagged {
			a.FlaggedAmount = a.FlaggedAmount.Add(c.ClaimAmount)
		}
	}
	if a.ScoredClaims > 0 {
		a.AvgFraudProbability = probSum / float64(a.ScoredClaims)
	}
	return a
}

// ─── Model ────────────────────────────────────────────────────────────────────

// TrainModel handles POST /model/train. The body is optional and overrides
// the configured training settings for this run only.
func (h *Handler) TrainModel(w http.ResponseWriter, r *http.Request) {
	var req trainRequest
	if !h.decode(w, r, &req, true) {
		return
	}

	cfg := h.training
	if req.Metric != "" {
		cfg.Metric = req.Metric
	}
	if req.Costs != nil {
		cfg.Costs = *req.Costs
	}
	if req.MinSamples > 0 {
		cfg.MinSamples = req.MinSamples
	}
	if req.TestFraction > 0 {
		cfg.TestFraction = req.TestFraction
	}
	if req.OversampleRatio > 0 {
		cfg.OversampleRatio = req.OversampleRatio
	}
	if req.Seed != nil {
		cfg.Seed = *req.Seed
	}
	if err := cfg.Validate(); err != nil {
		writeError(w, err)
		return
	}

	md, err := h.service.TrainModel(r.Context(), cfg)
	if err != nil {
		var insufficient *domain.InsufficientDataError
		if !errors.As(err, &insufficient) {
			h.logger.Error("model training failed", zap.Error(err))
		}
		writeError(w, err)
		return
	}
	ok(w, md)
}

// GetModel handles GET /model.
func (h *Handler) GetModel(w http.ResponseWriter, r *http.Request) {
	md, err := h.service.Model()
	if err != nil {
		writeError(w, err)
		return
	}
	ok(w, md)
}

// ─── Configuration ────────────────────────────────────────────────────────────

// GetThresholds handles GET /config/thresholds.
func (h *Handler) GetThresholds(w http.ResponseWriter, r *http.Request) {
	ok(w, h.runtime.Thresholds())
}

// UpdateThresholds handles PUT /config/thresholds. Out-of-order or
// out-of-range values are rejected with 422 and the old ones stay in force.
func (h *Handler) UpdateThresholds(w http.ResponseWriter, r *http.Request) {
	var th scoring.Thresholds
	if !h.decode(w, r, &th, false) {
		return
	}
	if err := h.runtime.SetThresholds(th); err != nil {
		writeError(w, err)
		return
	}
	h.logger.Info("risk thresholds updated", zap.Float64("low", th.Low), zap.Float64("high", th.High))
	ok(w, h.runtime.Thresholds())
}

// ─── Webhooks ─────────────────────────────────────────────────────────────────

// RegisterWebhook handles POST /webhooks.
func (h *Handler) RegisterWebhook(w http.ResponseWriter, r *http.Request) {
	var req registerWebhookRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	minRisk := req.MinRisk
	if minRisk == "" {
		minRisk = domain.RiskHigh
	}

	wh := &domain.WebhookConfig{
		ID:        uuid.NewString(),
		URL:       req.URL,
		MinRisk:   minRisk,
		CreatedAt: h.now().UTC(),
		Active:    true,
	}
	h.store.SaveWebhook(wh)
	created(w, wh)
}

// DeleteWebhook handles DELETE /webhooks/{id}.
func (h *Handler) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.store.DeleteWebhook(id) {
		notFound(w, "webhook not found")
		return
	}
	noContent(w)
}

// ─── Admin ────────────────────────────────────────────────────────────────────

type seedResult struct {
	Loaded     int                          `json:"loaded"`
	Duplicates int                          `json:"duplicates"`
	Scored     int                          `json:"scored"`
	Model      *classifier.ArtifactMetadata `json:"model,omitempty"`
}

// SeedData handles POST /admin/seed. It loads a synthetic labelled corpus,
// optionally trains on it, and scores the new claims when a model is live.
func (h *Handler) SeedData(w http.ResponseWriter, r *http.Request) {
	var req seedRequest
	if !h.decode(w, r, &req, true) {
		return
	}

	opts := h.seed
	if req.Claims > 0 {
		opts.Claims = req.Claims
	}
	if req.FraudRate != nil {
		opts.FraudRate = *req.FraudRate
	}
	if req.Seed != nil {
		opts.Seed = *req.Seed
	}

	var res seedResult
	var loaded []string
	for _, c := range seed.Generate(opts) {
		if err := h.store.SaveClaim(&c); err != nil {
			if errors.Is(err, store.ErrDuplicateClaim) {
				res.Duplicates++
				continue
			}
			h.logger.Error("seed claim rejected", zap.String("claim_id", c.ID), zap.Error(err))
			internalError(w)
			return
		}
		loaded = append(loaded, c.ID)
	}
	res.Loaded = len(loaded)

	if req.Train {
		md, err := h.service.TrainModel(r.Context(), h.training)
		if err != nil {
			writeError(w, err)
			return
		}
		res.Model = &md
	}

	if _, err := h.service.Model(); err == nil {
		for _, id := range loaded {
			if _, err := h.service.ScoreClaim(r.Context(), id); err == nil {
				res.Scored++
			}
		}
	}

	h.logger.Info("seed data loaded",
		zap.Int("loaded", res.Loaded),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("scored", res.Scored),
	)
	created(w, res)
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	_, err := h.service.Model()
	ok(w, map[string]any{
		"status":      "ok",
		"service":     "insureguard-risk-api",
		"model_ready": err == nil,
		"claims":      h.store.Len(),
	})
}

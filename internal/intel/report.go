package intel

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"insureguard/risk-api/internal/domain"
	"insureguard/risk-api/internal/metrics"
)

// Corpus supplies a consistent copy of the claim corpus.
type Corpus interface {
	Snapshot() []domain.Claim
}

// Settings are the analysis thresholds in force for one call.
type Settings struct {
	Repetition      RepetitionThresholds `json:"repetition" koanf:"repetition" yaml:"repetition"`
	Alerts          AlertRules           `json:"alerts" koanf:"alerts" yaml:"alerts"`
	AlertWindowDays int                  `json:"alert_window_days" koanf:"alert_window_days" yaml:"alert_window_days"` // 0 = whole corpus
}

// DefaultSettings returns the default thresholds over the whole corpus.
func DefaultSettings() Settings {
	return Settings{
		Repetition: DefaultRepetitionThresholds(),
		Alerts:     DefaultAlertRules(),
	}
}

func (s Settings) Validate() error {
	if err := s.Repetition.Validate(); err != nil {
		return err
	}
	if err := s.Alerts.Validate(); err != nil {
		return err
	}
	if s.AlertWindowDays < 0 {
		return &domain.InvalidConfigurationError{Field: "alert_window_days", Reason: "must not be negative"}
	}
	return nil
}

// Summary holds the headline counts of a Report.
type Summary struct {
	TotalClaims        int            `json:"total_claims"`
	RepeatedEntities   int            `json:"repeated_entities"`
	HighRiskEntities   int            `json:"high_risk_entities"`
	Clusters           int            `json:"clusters"`
	CriticalClusters   int            `json:"critical_clusters"`
	Alerts             int            `json:"alerts"`
	AlertsBySeverity   map[string]int `json:"alerts_by_severity"`
	SkippedPerAnalysis map[string]int `json:"skipped_per_analysis"`
}

// Report is the combined fraud intelligence view over one snapshot.
type Report struct {
	GeneratedAt time.Time                       `json:"generated_at"`
	Summary     Summary                         `json:"summary"`
	Entities    []domain.EntityRepetitionReport `json:"entities"`
	Network     Network                         `json:"network"`
	Alerts      []domain.Alert                  `json:"alerts"`
}

// Analyzer runs the analyses with logging and metrics around them.
type Analyzer struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewAnalyzer creates an analyzer. m may be nil.
func NewAnalyzer(logger *zap.Logger, m *metrics.Metrics) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{logger: logger, metrics: m, now: time.Now}
}

// WithClock returns a copy of the analyzer that reads time from now.
func (a *Analyzer) WithClock(now func() time.Time) *Analyzer {
	cp := *a
	cp.now = now
	return &cp
}

func (a *Analyzer) skipped(analysis string, n int) {
	if n == 0 {
		return
	}
	a.metrics.ClaimsSkipped(analysis, n)
	a.logger.Warn("skipped malformed claims", zap.String("analysis", analysis), zap.Int("skipped", n))
}

// Entities runs entity repetition detection over claims.
func (a *Analyzer) Entities(claims []domain.Claim, th RepetitionThresholds) []domain.EntityRepetitionReport {
	reports, skipped := DetectRepetitions(claims, th)
	a.skipped("entities", skipped)
	return reports
}

// Network builds the claim network over claims.
func (a *Analyzer) Network(claims []domain.Claim) Network {
	net := BuildNetwork(claims)
	a.skipped("network", net.Skipped)
	return net
}

// Alerts evaluates the pattern alert rules over claims.
func (a *Analyzer) Alerts(claims []domain.Claim, windowDays int, rules AlertRules) []domain.Alert {
	now := a.now()
	alerts, skipped := EvaluateAlerts(claims, LastDays(now, windowDays), rules, now)
	a.skipped("alerts", skipped)
	return alerts
}

// Report takes one snapshot of the corpus and runs every analysis over it
// concurrently.
func (a *Analyzer) Report(ctx context.Context, corpus Corpus, s Settings) (*Report, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	snapshot := corpus.Snapshot()
	start := time.Now()

	var (
		repeated     []domain.EntityRepetitionReport
		network      Network
		alerts       []domain.Alert
		entSkipped   int
		alertSkipped int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		repeated, entSkipped = DetectRepetitions(snapshot, s.Repetition)
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		network = BuildNetwork(snapshot)
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		now := a.now()
		alerts, alertSkipped = EvaluateAlerts(snapshot, LastDays(now, s.AlertWindowDays), s.Alerts, now)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	skipped := map[string]int{
		"entities": entSkipped,
		"network":  network.Skipped,
		"alerts":   alertSkipped,
	}
	for analysis, n := range skipped {
		a.skipped(analysis, n)
	}

	sum := Summary{
		TotalClaims:        len(snapshot),
		RepeatedEntities:   len(repeated),
		Clusters:           len(network.Clusters),
		Alerts:             len(alerts),
		AlertsBySeverity:   SeverityCounts(alerts),
		SkippedPerAnalysis: skipped,
	}
	for _, e := range repeated {
		if e.RiskLevel == domain.SeverityHigh {
			sum.HighRiskEntities++
		}
	}
	for _, c := range network.Clusters {
		if c.RiskLevel == domain.SeverityCritical {
			sum.CriticalClusters++
		}
	}

	a.logger.Debug("fraud intelligence report built",
		zap.Int("claims", len(snapshot)),
		zap.Int("entities", len(repeated)),
		zap.Int("clusters", len(network.Clusters)),
		zap.Int("alerts", len(alerts)),
		zap.Duration("took", time.Since(start)),
	)

	return &Report{
		GeneratedAt: a.now().UTC(),
		Summary:     sum,
		Entities:    repeated,
		Network:     network,
		Alerts:      alerts,
	}, nil
}

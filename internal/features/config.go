package features

import "insureguard/risk-api/internal/domain"

// Lexicon is the keyword table used to grade incident descriptions.
type Lexicon struct {
	Severe   []string `koanf:"severe" yaml:"severe"`
	Moderate []string `koanf:"moderate" yaml:"moderate"`
	Minor    []string `koanf:"minor" yaml:"minor"`
}

// Config holds the category-specific thresholds and lookup tables used by the
// extractor.
type Config struct {
	AmountCaps           map[domain.Category]float64 `koanf:"amount_caps" yaml:"amount_caps"`
	LateReportingDays    int                         `koanf:"late_reporting_days" yaml:"late_reporting_days"`
	PremiumEpsilon       float64                     `koanf:"premium_epsilon" yaml:"premium_epsilon"`
	MaxPremiumRatio      float64                     `koanf:"max_premium_ratio" yaml:"max_premium_ratio"`
	DefaultPolicyAgeDays float64                     `koanf:"default_policy_age_days" yaml:"default_policy_age_days"`
	DefaultLocationRisk  float64                     `koanf:"default_location_risk" yaml:"default_location_risk"`
	LocationRisk         map[string]float64          `koanf:"location_risk" yaml:"location_risk"`
	Holidays             []string                    `koanf:"holidays" yaml:"holidays"` // YYYY-MM-DD
	Lexicon              Lexicon                     `koanf:"lexicon" yaml:"lexicon"`
}

// DefaultConfig returns the built-in extractor configuration.
func DefaultConfig() Config {
	return Config{
		AmountCaps: map[domain.Category]float64{
			domain.CategoryVehicle:  500000,  // 5 lakh
			domain.CategoryHealth:   1000000, // 10 lakh
			domain.CategoryProperty: 2000000, // 20 lakh
		},
		LateReportingDays:    30,
		PremiumEpsilon:       1e-6,
		MaxPremiumRatio:      50,
		DefaultPolicyAgeDays: 180,
		DefaultLocationRisk:  0.5,
		LocationRisk: map[string]float64{
			"mumbai":    0.7,
			"delhi":     0.7,
			"noida":     0.7,
			"gurgaon":   0.7,
			"bangalore": 0.7,
			"hyderabad": 0.7,
			"pune":      0.7,
			"chennai":   0.7,
			"kolkata":   0.7,
		},
		Lexicon: Lexicon{
			Severe: []string{"total loss", "fire", "flood", "theft", "stolen", "fatal",
				"critical", "icu", "surgery", "collapsed", "destroyed"},
			Moderate: []string{"accident", "damage", "injury", "broken", "crack",
				"hospitalized", "fracture", "leak"},
			Minor: []string{"scratch", "dent", "minor", "consultation", "checkup"},
		},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if len(c.AmountCaps) == 0 {
		c.AmountCaps = d.AmountCaps
	}
	if c.LateReportingDays <= 0 {
		c.LateReportingDays = d.LateReportingDays
	}
	if c.PremiumEpsilon <= 0 {
		c.PremiumEpsilon = d.PremiumEpsilon
	}
	if c.MaxPremiumRatio <= 0 {
		c.MaxPremiumRatio = d.MaxPremiumRatio
	}
	if c.DefaultPolicyAgeDays <= 0 {
		c.DefaultPolicyAgeDays = d.DefaultPolicyAgeDays
	}
	if c.DefaultLocationRisk <= 0 {
		c.DefaultLocationRisk = d.DefaultLocationRisk
	}
	if c.LocationRisk == nil {
		c.LocationRisk = d.LocationRisk
	}
	if len(c.Lexicon.Severe)+len(c.Lexicon.Moderate)+len(c.Lexicon.Minor) == 0 {
		c.Lexicon = d.Lexicon
	}
	return c
}

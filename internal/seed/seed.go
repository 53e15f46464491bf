// Package seed generates a realistic, reviewer-labelled claim dataset for
// demos and for bootstrapping the first model.
//
// The dataset is deterministic for a given Options.Seed and contains:
//   - genuine claims from established policies, spread over the year
//   - opportunistic fraud: inflated amounts on brand-new policies
//   - a fraud ring of claimants sharing a repair shop and a phone number
package seed

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"insureguard/risk-api/internal/domain"
)

// Ring entities shared by every claim of the organised fraud ring.
const (
	RingRepairShop = "Sharma Auto Works"
	RingPhone      = "+91 98765 43210"
)

// Options controls dataset generation.
type Options struct {
	Claims    int       `koanf:"claims" yaml:"claims"`
	FraudRate float64   `koanf:"fraud_rate" yaml:"fraud_rate"`
	Seed      uint64    `koanf:"seed" yaml:"seed"`
	Now       time.Time `koanf:"-" yaml:"-"`
}

// DefaultOptions returns 300 claims at a 15% fraud rate.
func DefaultOptions() Options {
	return Options{Claims: 300, FraudRate: 0.15, Seed: 42}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Claims <= 0 {
		o.Claims = d.Claims
	}
	if o.FraudRate <= 0 || o.FraudRate >= 1 {
		o.FraudRate = d.FraudRate
	}
	if o.Now.IsZero() {
		o.Now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return o
}

// ─── Reference data ───────────────────────────────────────────────────────────

var locations = []string{
	"Mumbai, Maharashtra", "Delhi NCR", "Bangalore, Karnataka",
	"Hyderabad, Telangana", "Chennai, Tamil Nadu", "Pune, Maharashtra",
	"Kolkata, West Bengal", "Ahmedabad, Gujarat", "Jaipur, Rajasthan",
	"Kochi, Kerala", "Lucknow, Uttar Pradesh", "Indore, Madhya Pradesh",
}

var riskyLocations = []string{"Mumbai, Maharashtra", "Delhi NCR", "Noida, UP", "Gurgaon, Haryana"}

var repairShops = []string{
	"AutoCare Express", "QuickFix Motors", "RoadStar Repairs",
	"City Auto Works", "Prime Car Service", "Highway Garage",
}

var hospitals = []string{
	"Apollo Hospital", "Fortis Healthcare", "Max Super Specialty",
	"Narayana Health", "Medanta", "Manipal Hospital",
}

var genuineDescriptions = map[domain.Category][]string{
	domain.CategoryVehicle: {
		"Minor scratch on rear bumper in parking lot",
		"Dent on driver door after low speed collision",
		"Rear-end accident at traffic signal, bumper damage",
		"Windshield crack from flying stone on highway",
	},
	domain.CategoryHealth: {
		"Consultation and checkup for persistent fever",
		"Hospitalized for two days with viral infection",
		"Fracture of left wrist after fall at home",
		"Minor day-care procedure for kidney stone",
	},
	domain.CategoryProperty: {
		"Water leak from upstairs flat damaged ceiling",
		"Broken window after storm",
		"Minor damage to kitchen cabinets from pipe leak",
		"Crack in compound wall after heavy rain",
	},
}

var fraudDescriptions = map[domain.Category][]string{
	domain.CategoryVehicle: {
		"Vehicle stolen from outside residence overnight",
		"Car destroyed in fire, total loss",
		"Total loss after flood water entered engine",
	},
	domain.CategoryHealth: {
		"Emergency surgery and ICU admission for critical condition",
		"Critical cardiac event requiring surgery",
	},
	domain.CategoryProperty: {
		"Warehouse destroyed by fire, all stock lost",
		"Ground floor collapsed after flood",
		"Theft of electronics and jewellery during travel",
	},
}

// premium bands per category, in rupees.
var premiumBand = map[domain.Category][2]float64{
	domain.CategoryVehicle:  {8000, 30000},
	domain.CategoryHealth:   {10000, 40000},
	domain.CategoryProperty: {15000, 60000},
}

// ─── Generation ───────────────────────────────────────────────────────────────

type generator struct {
	rng  *rand.Rand
	opts Options
	seq  int
}

// Generate builds the labelled dataset. Claims are returned shuffled so that
// patterns are not trivially grouped.
func Generate(opts Options) []domain.Claim {
	opts = opts.withDefaults()
	g := &generator{
		rng:  rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x5eed)),
		opts: opts,
	}

	fraud := int(math.Round(float64(opts.Claims) * opts.FraudRate))
	ring := min(8, fraud/2)
	genuine := opts.Claims - fraud

	claims := make([]domain.Claim, 0, opts.Claims)
	claims = append(claims, g.genuineClaims(genuine)...)
	claims = append(claims, g.opportunisticFraud(fraud-ring)...)
	claims = append(claims, g.fraudRing(ring)...)

	g.rng.Shuffle(len(claims), func(i, j int) {
		claims[i], claims[j] = claims[j], claims[i]
	})
	return claims
}

func (g *generator) genuineClaims(n int) []domain.Claim {
	out := make([]domain.Claim, 0, n)
	for i := 0; i < n; i++ {
		// A quarter of genuine claimants come back with a second claim.
		claimant := g.rng.IntN(max(1, n*3/4))
		cat := g.category()
		premium := g.premium(cat)
		filed := g.filedDate()
		incident := filed.AddDate(0, 0, -g.rng.IntN(15))
		if g.rng.Float64() < 0.04 {
			incident = filed.AddDate(0, 0, -(31 + g.rng.IntN(30)))
		}

		c := g.claim(cat, fmt.Sprintf("cust-%04d", claimant), premium, premium*(0.5+g.rng.Float64()*6))
		c.PolicyStartDate = ptr(incident.AddDate(0, 0, -(90 + g.rng.IntN(900))))
		c.IncidentDate = incident
		c.FiledDate = filed
		c.IncidentDescription = pick(g.rng, genuineDescriptions[cat])
		c.Location = pick(g.rng, locations)
		c.Phone = fmt.Sprintf("+91 9%09d", 100000000+claimant)
		c.Address = fmt.Sprintf("%d MG Road, %s", 1+claimant, c.Location)
		c.Documents = g.documents(0.02)
		c.Label = domain.LabelGenuine
		g.entities(&c)
		out = append(out, c)
	}
	return out
}

func (g *generator) opportunisticFraud(n int) []domain.Claim {
	out := make([]domain.Claim, 0, n)
	for i := 0; i < n; i++ {
		cat := g.category()
		premium := g.premium(cat)
		filed := g.filedDate()
		incident := filed.AddDate(0, 0, -g.rng.IntN(5))
		if g.rng.Float64() < 0.3 {
			incident = filed.AddDate(0, 0, -(35 + g.rng.IntN(60)))
		}

		c := g.claim(cat, fmt.Sprintf("fr-%04d", i), premium, premium*(10+g.rng.Float64()*35))
		c.PolicyStartDate = ptr(incident.AddDate(0, 0, -(2 + g.rng.IntN(40))))
		c.IncidentDate = incident
		c.FiledDate = filed
		c.IncidentDescription = pick(g.rng, fraudDescriptions[cat])
		c.Location = pick(g.rng, riskyLocations)
		c.Phone = fmt.Sprintf("+91 8%09d", 200000000+i)
		c.Address = fmt.Sprintf("Flat %d, Sector %d, %s", 100+i, 1+g.rng.IntN(60), c.Location)
		c.Documents = g.documents(0.5)
		c.Label = domain.LabelFraud
		g.entities(&c)
		out = append(out, c)
	}
	return out
}

// fraudRing builds vehicle claims from a handful of claimants that all use
// the same garage and the same contact number.
func (g *generator) fraudRing(n int) []domain.Claim {
	out := make([]domain.Claim, 0, n)
	base := g.opts.Now.AddDate(0, 0, -(30 + g.rng.IntN(300)))
	for i := 0; i < n; i++ {
		premium := g.premium(domain.CategoryVehicle)
		filed := base.AddDate(0, 0, i*3)
		incident := filed.AddDate(0, 0, -(1 + g.rng.IntN(3)))

		c := g.claim(domain.CategoryVehicle, fmt.Sprintf("ring-%02d", i%4), premium, premium*(12+g.rng.Float64()*20))
		c.PolicyStartDate = ptr(incident.AddDate(0, 0, -(5 + g.rng.IntN(20))))
		c.IncidentDate = incident
		c.FiledDate = filed
		c.IncidentDescription = pick(g.rng, fraudDescriptions[domain.CategoryVehicle])
		c.Location = "Noida, UP"
		c.RepairShopName = RingRepairShop
		c.Phone = RingPhone
		c.Address = fmt.Sprintf("Plot %d, Sector 62, Noida", 10+i)
		c.Documents = g.documents(0.6)
		c.Label = domain.LabelFraud
		out = append(out, c)
	}
	return out
}

func (g *generator) claim(cat domain.Category, claimant string, premium, amount float64) domain.Claim {
	g.seq++
	return domain.Claim{
		ID:            fmt.Sprintf("clm-%05d", g.seq),
		ClaimNumber:   fmt.Sprintf("IG-%s-%d-%08X", cat.Prefix(), g.opts.Now.Year(), g.rng.Uint32()),
		ClaimantID:    claimant,
		Category:      cat,
		ClaimAmount:   money(amount),
		PremiumAmount: decimal.NewNullDecimal(money(premium)),
		Status:        "submitted",
	}
}

func (g *generator) entities(c *domain.Claim) {
	switch c.Category {
	case domain.CategoryVehicle:
		c.RepairShopName = pick(g.rng, repairShops)
	case domain.CategoryHealth:
		c.HospitalName = pick(g.rng, hospitals)
	}
}

func (g *generator) category() domain.Category {
	switch r := g.rng.Float64(); {
	case r < 0.5:
		return domain.CategoryVehicle
	case r < 0.8:
		return domain.CategoryHealth
	default:
		return domain.CategoryProperty
	}
}

func (g *generator) premium(cat domain.Category) float64 {
	band := premiumBand[cat]
	return band[0] + g.rng.Float64()*(band[1]-band[0])
}

// filedDate is a day within the year before Now.
func (g *generator) filedDate() time.Time {
	return g.opts.Now.AddDate(0, 0, -(1 + g.rng.IntN(365)))
}

func (g *generator) documents(failRate float64) []domain.DocumentCheck {
	types := []string{"claim_form", "invoice", "identity_proof"}
	docs := make([]domain.DocumentCheck, len(types))
	for i, t := range types {
		docs[i] = domain.DocumentCheck{
			Type:       t,
			Passed:     g.rng.Float64() >= failRate,
			Confidence: math.Round((0.6+g.rng.Float64()*0.4)*100) / 100,
		}
	}
	return docs
}

func pick[T any](rng *rand.Rand, xs []T) T {
	return xs[rng.IntN(len(xs))]
}

func ptr[T any](v T) *T { return &v }

func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

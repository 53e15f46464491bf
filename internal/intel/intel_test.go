package intel_test

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"insureguard/risk-api/internal/domain"
	"insureguard/risk-api/internal/intel"
	"insureguard/risk-api/internal/seed"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func claim(id, claimant string, opts ...func(*domain.Claim)) domain.Claim {
	c := domain.Claim{
		ID:           id,
		ClaimantID:   claimant,
		Category:     domain.CategoryVehicle,
		ClaimAmount:  decimal.NewFromInt(10000),
		IncidentDate: now.AddDate(0, 0, -12),
		FiledDate:    now.AddDate(0, 0, -10),
	}
	for _, o := range opts {
		o(&c)
	}
	return c
}

func shop(name string) func(*domain.Claim) { return func(c *domain.Claim) { c.RepairShopName = name } }
func phone(p string) func(*domain.Claim) { return func(c *domain.Claim) { c.Phone = p } }
func hospital(h string) func(*domain.Claim) { return func(c *domain.Claim) { c.HospitalName = h } }
func highRisk() func(*domain.Claim) {
	return func(c *domain.Claim) { c.Assessment = &domain.RiskAssessment{RiskCategory: domain.RiskHigh} }
}

// ─── Entity repetition ────────────────────────────────────────────────────────

func TestDetectRepetitions_Thresholds(t *testing.T) {
	corpus := []domain.Claim{
		// same hospital three times, one claimant: occurrence threshold
		claim("a1", "u1", hospital("Apollo Hospital")),
		claim("a2", "u1", hospital("  apollo   HOSPITAL ")),
		claim("a3", "u1", hospital("Apollo hospital")),
		// same phone, two claimants: distinct-claimant threshold
		claim("p1", "u2", phone("9876543210")),
		claim("p2", "u3", phone("9876543210")),
		// twice by one claimant: below both thresholds
		claim("s1", "u4", shop("Quick Fix")),
		claim("s2", "u4", shop("Quick Fix")),
		// three claimants: high risk
		claim("r1", "u5", shop("Sharma Auto Works")),
		claim("r2", "u6", shop("Sharma Auto Works")),
		claim("r3", "u7", shop("sharma auto works")),
	}

	reports, skipped := intel.DetectRepetitions(corpus, intel.DefaultRepetitionThresholds())
	require.Zero(t, skipped)
	require.Len(t, reports, 3)

	assert.Equal(t, domain.EntityPhone, reports[0].EntityType)
	assert.Equal(t, 2, reports[0].DistinctClaimantCount)
	assert.Equal(t, domain.SeverityMedium, reports[0].RiskLevel)

	assert.Equal(t, domain.EntityRepairShop, reports[1].EntityType)
	assert.Equal(t, "sharma auto works", reports[1].EntityValue)
	assert.Equal(t, domain.SeverityHigh, reports[1].RiskLevel)
	assert.Equal(t, []string{"r1", "r2", "r3"}, reports[1].ClaimIDs)

	assert.Equal(t, domain.EntityHospital, reports[2].EntityType)
	assert.Equal(t, 3, reports[2].OccurrenceCount)
	assert.Equal(t, 1, reports[2].DistinctClaimantCount)
	assert.Equal(t, domain.SeverityMedium, reports[2].RiskLevel)
}

func TestDetectRepetitions_SkipsMalformedClaims(t *testing.T) {
	corpus := []domain.Claim{
		claim("", "u1", phone("1")),
		claim("x1", "u1", phone("1")),
		claim("x1", "u2", phone("1")), // duplicate id
	}
	reports, skipped := intel.DetectRepetitions(corpus, intel.DefaultRepetitionThresholds())
	assert.Equal(t, 2, skipped)
	assert.Empty(t, reports)
}

func TestDetectRepetitions_Idempotent(t *testing.T) {
	corpus := seed.Generate(seed.Options{Claims: 150, Seed: 5, Now: now})
	first, _ := intel.DetectRepetitions(corpus, intel.DefaultRepetitionThresholds())
	second, _ := intel.DetectRepetitions(corpus, intel.DefaultRepetitionThresholds())
	assert.Equal(t, first, second)
}

func TestRepetitionThresholds_Validate(t *testing.T) {
	assert.NoError(t, intel.DefaultRepetitionThresholds().Validate())
	assert.Error(t, intel.RepetitionThresholds{MinOccurrences: 1, MinDistinctClaimants: 2, HighRiskClaimants: 3}.Validate())
}

// ─── Network ──────────────────────────────────────────────────────────────────

func TestBuildNetwork_SharmaAutoWorksScenario(t *testing.T) {
	corpus := []domain.Claim{
		claim("c-10", "alice", shop("Sharma Auto Works"), phone("9876543210")),
		claim("c-20", "bob", shop("sharma auto works "), phone("9876543210")),
		claim("c-30", "carol", shop("Other Garage")),
	}

	net := intel.BuildNetwork(corpus)
	require.Len(t, net.Clusters, 1)
	cl := net.Clusters[0]
	assert.Equal(t, []string{"c-10", "c-20"}, cl.MemberClaimIDs)
	assert.Equal(t, 2, cl.Size)
	assert.Equal(t, domain.SeverityHigh, cl.RiskLevel)
	assert.Equal(t, 0, cl.ClusterID)

	var ids []string
	for _, n := range net.Nodes {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"c-10", "c-20", "phone:9876543210", "repair_shop:sharma auto works"}, ids)
	assert.Len(t, net.Edges, 4)
}

func TestBuildNetwork_TransitiveLinksFormOneComponent(t *testing.T) {
	corpus := []domain.Claim{
		claim("a", "u1", phone("111")),
		claim("b", "u2", phone("111"), hospital("Medanta")),
		claim("c", "u3", hospital("medanta")),
		claim("d", "u4", phone("222")),
		claim("e", "u5", phone("222")),
	}
	net := intel.BuildNetwork(corpus)
	require.Len(t, net.Clusters, 2)
	assert.Equal(t, []string{"a", "b", "c"}, net.Clusters[0].MemberClaimIDs)
	assert.Equal(t, []string{"d", "e"}, net.Clusters[1].MemberClaimIDs)
	assert.Equal(t, 1, net.Clusters[1].ClusterID)
}

func TestBuildNetwork_CriticalRules(t *testing.T) {
	var corpus []domain.Claim
	for i := 0; i < intel.CriticalClusterSize; i++ {
		corpus = append(corpus, claim(fmt.Sprintf("big-%d", i), fmt.Sprintf("u%d", i), phone("555")))
	}
	corpus = append(corpus,
		claim("hr-1", "x", shop("Garage"), highRisk()),
		claim("hr-2", "y", shop("garage")),
	)

	net := intel.BuildNetwork(corpus)
	require.Len(t, net.Clusters, 2)
	for _, cl := range net.Clusters {
		assert.Equal(t, domain.SeverityCritical, cl.RiskLevel, "cluster %v", cl.MemberClaimIDs)
	}
}

func TestBuildNetwork_PartitionProperty(t *testing.T) {
	corpus := seed.Generate(seed.Options{Claims: 200, Seed: 9, Now: now})
	net := intel.BuildNetwork(corpus)

	// Reference components via union-find over shared entities.
	parent := map[string]string{}
	var find func(string) string
	find = func(x string) string {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	owner := map[string]string{}
	for _, c := range corpus {
		parent[c.ID] = c.ID
	}
	for _, c := range corpus {
		for _, et := range domain.EntityTypes {
			v := domain.NormalizeEntity(c.EntityValue(et))
			if v == "" {
				continue
			}
			key := et + ":" + v
			if o, ok := owner[key]; ok {
				parent[find(c.ID)] = find(o)
			} else {
				owner[key] = c.ID
			}
		}
	}
	want := map[string][]string{}
	for _, c := range corpus {
		r := find(c.ID)
		want[r] = append(want[r], c.ID)
	}
	var expected [][]string
	for _, ids := range want {
		if len(ids) >= 2 {
			sort.Strings(ids)
			expected = append(expected, ids)
		}
	}
	sort.Slice(expected, func(i, j int) bool { return expected[i][0] < expected[j][0] })

	seen := map[string]bool{}
	var got [][]string
	for _, cl := range net.Clusters {
		for _, id := range cl.MemberClaimIDs {
			require.False(t, seen[id], "claim %s appears in two clusters", id)
			seen[id] = true
		}
		got = append(got, cl.MemberClaimIDs)
	}
	assert.Equal(t, expected, got)
}

func TestBuildNetwork_Idempotent(t *testing.T) {
	corpus := seed.Generate(seed.Options{Claims: 120, Seed: 2, Now: now})
	assert.Equal(t, intel.BuildNetwork(corpus), intel.BuildNetwork(corpus))
}

// ─── Alerts ───────────────────────────────────────────────────────────────────

func alertTypes(alerts []domain.Alert, id string) []string {
	var out []string
	for _, a := range alerts {
		for _, cid := range a.AffectedClaimIDs {
			if cid == id {
				out = append(out, a.AlertType)
			}
		}
	}
	return out
}

func TestEvaluateAlerts_RepeatClaimantOnNewPolicyScenario(t *testing.T) {
	var corpus []domain.Claim
	// Category baseline: 19 vehicle claims of 10,000 filed over the past year.
	for i := 0; i < 19; i++ {
		claimant := fmt.Sprintf("u%02d", i)
		if i < 3 {
			claimant = "repeat"
		}
		c := claim(fmt.Sprintf("base-%02d", i), claimant)
		c.FiledDate = now.AddDate(0, 0, -(60 + i*15))
		c.IncidentDate = c.FiledDate.AddDate(0, 0, -2)
		corpus = append(corpus, c)
	}

	// The repeat claimant's 4th claim at 5x the category mean, ten days into
	// a new policy.
	start := now.AddDate(0, 0, -20)
	suspect := claim("suspect", "repeat", func(c *domain.Claim) {
		c.ClaimAmount = decimal.NewFromInt(50000)
		c.PolicyStartDate = &start
		c.IncidentDate = start.AddDate(0, 0, 10)
		c.FiledDate = start.AddDate(0, 0, 12)
	})
	corpus = append(corpus, suspect)

	alerts, skipped := intel.EvaluateAlerts(corpus, intel.Window{}, intel.DefaultAlertRules(), now)
	require.Zero(t, skipped)

	types := alertTypes(alerts, "suspect")
	assert.Contains(t, types, domain.AlertHighValueAnomaly)
	assert.Contains(t, types, domain.AlertNewPolicyClaim)
	for _, a := range alerts {
		assert.Equal(t, now, a.GeneratedAt)
	}
}

func TestEvaluateAlerts_HighValueCriticalWhenHighRisk(t *testing.T) {
	var corpus []domain.Claim
	for i := 0; i < 10; i++ {
		corpus = append(corpus, claim(fmt.Sprintf("n%d", i), fmt.Sprintf("u%d", i)))
	}
	corpus = append(corpus, claim("big", "z", highRisk(), func(c *domain.Claim) {
		c.ClaimAmount = decimal.NewFromInt(500000)
	}))

	alerts, _ := intel.EvaluateAlerts(corpus, intel.Window{}, intel.DefaultAlertRules(), now)
	require.NotEmpty(t, alerts)
	assert.Equal(t, domain.AlertHighValueAnomaly, alerts[0].AlertType)
	assert.Equal(t, domain.SeverityCritical, alerts[0].Severity)
}

func TestEvaluateAlerts_RapidRepeat(t *testing.T) {
	corpus := []domain.Claim{
		claim("r1", "same", func(c *domain.Claim) { c.FiledDate = now.AddDate(0, 0, -40) }),
		claim("r2", "same", func(c *domain.Claim) { c.FiledDate = now.AddDate(0, 0, -20) }),
		claim("r3", "same", func(c *domain.Claim) { c.FiledDate = now.AddDate(0, 0, -200) }),
		claim("o1", "other", func(c *domain.Claim) { c.FiledDate = now.AddDate(0, 0, -5) }),
	}
	for i := range corpus {
		corpus[i].IncidentDate = corpus[i].FiledDate.AddDate(0, 0, -1)
	}

	alerts, _ := intel.EvaluateAlerts(corpus, intel.Window{}, intel.DefaultAlertRules(), now)
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertRapidRepeat, alerts[0].AlertType)
	assert.Equal(t, domain.SeverityHigh, alerts[0].Severity)
	assert.Equal(t, []string{"r1", "r2"}, alerts[0].AffectedClaimIDs)
}

func TestEvaluateAlerts_NewPolicyIgnoresIncidentBeforeStart(t *testing.T) {
	start := now.AddDate(0, 0, -20)
	var corpus []domain.Claim
	for i := 0; i < 10; i++ {
		corpus = append(corpus, claim(fmt.Sprintf("n%d", i), fmt.Sprintf("u%d", i)))
	}
	corpus = append(corpus,
		// 23 hours before cover began.
		claim("early", "a", func(c *domain.Claim) {
			c.ClaimAmount = decimal.NewFromInt(20000)
			c.PolicyStartDate = &start
			c.IncidentDate = start.Add(-23 * time.Hour)
			c.FiledDate = start.AddDate(0, 0, 2)
		}),
		claim("onstart", "b", func(c *domain.Claim) {
			c.ClaimAmount = decimal.NewFromInt(20000)
			c.PolicyStartDate = &start
			c.IncidentDate = start
			c.FiledDate = start.AddDate(0, 0, 2)
		}),
	)

	alerts, skipped := intel.EvaluateAlerts(corpus, intel.Window{}, intel.DefaultAlertRules(), now)
	require.Zero(t, skipped)
	assert.NotContains(t, alertTypes(alerts, "early"), domain.AlertNewPolicyClaim)
	assert.Contains(t, alertTypes(alerts, "onstart"), domain.AlertNewPolicyClaim)
}

func TestEvaluateAlerts_WindowLimitsCandidates(t *testing.T) {
	old := claim("old", "u1", func(c *domain.Claim) {
		c.ClaimAmount = decimal.NewFromInt(900000)
		c.FiledDate = now.AddDate(0, 0, -90)
		c.IncidentDate = c.FiledDate
	})
	corpus := []domain.Claim{old}
	for i := 0; i < 10; i++ {
		corpus = append(corpus, claim(fmt.Sprintf("n%d", i), fmt.Sprintf("x%d", i)))
	}

	all, _ := intel.EvaluateAlerts(corpus, intel.Window{}, intel.DefaultAlertRules(), now)
	recent, _ := intel.EvaluateAlerts(corpus, intel.LastDays(now, 30), intel.DefaultAlertRules(), now)
	assert.Contains(t, alertTypes(all, "old"), domain.AlertHighValueAnomaly)
	assert.Empty(t, alertTypes(recent, "old"))
}

func TestEvaluateAlerts_OrderedBySeverityThenType(t *testing.T) {
	corpus := seed.Generate(seed.Options{Claims: 200, Seed: 4, Now: now})
	alerts, _ := intel.EvaluateAlerts(corpus, intel.Window{}, intel.DefaultAlertRules(), now)
	require.NotEmpty(t, alerts)
	for i := 1; i < len(alerts); i++ {
		a, b := alerts[i-1], alerts[i]
		ra, rb := domain.SeverityRank(a.Severity), domain.SeverityRank(b.Severity)
		require.LessOrEqual(t, ra, rb)
		if ra == rb {
			require.LessOrEqual(t, a.AlertType, b.AlertType)
		}
	}
}

func TestEvaluateAlerts_SkipsMalformed(t *testing.T) {
	bad := claim("bad", "u", func(c *domain.Claim) { c.Category = "marine" })
	_, skipped := intel.EvaluateAlerts([]domain.Claim{bad, claim("ok", "u")}, intel.Window{}, intel.DefaultAlertRules(), now)
	assert.Equal(t, 1, skipped)
}

func TestSeverityCounts(t *testing.T) {
	counts := intel.SeverityCounts([]domain.Alert{
		{Severity: domain.SeverityHigh}, {Severity: domain.SeverityHigh}, {Severity: domain.SeverityCritical},
	})
	assert.Equal(t, 2, counts[domain.SeverityHigh])
	assert.Equal(t, 1, counts[domain.SeverityCritical])
	assert.Equal(t, 0, counts[domain.SeverityMedium])
}

// ─── Report ───────────────────────────────────────────────────────────────────

type countingCorpus struct {
	claims []domain.Claim
	calls  int
}

func (c *countingCorpus) Snapshot() []domain.Claim {
	c.calls++
	return c.claims
}

func TestAnalyzer_Report_UsesOneSnapshot(t *testing.T) {
	corpus := &countingCorpus{claims: append(seed.Generate(seed.Options{Claims: 150, Seed: 8, Now: now}), claim("", "ghost"))}
	a := intel.NewAnalyzer(zaptest.NewLogger(t), nil).WithClock(func() time.Time { return now })

	rep, err := a.Report(context.Background(), corpus, intel.DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, 1, corpus.calls)
	assert.Equal(t, 151, rep.Summary.TotalClaims)
	assert.Equal(t, len(rep.Network.Clusters), rep.Summary.Clusters)
	assert.Equal(t, len(rep.Alerts), rep.Summary.Alerts)
	assert.Equal(t, 1, rep.Summary.SkippedPerAnalysis["entities"])
	assert.Equal(t, 1, rep.Summary.SkippedPerAnalysis["network"])
	assert.Equal(t, 1, rep.Summary.SkippedPerAnalysis["alerts"])
	assert.Equal(t, now, rep.GeneratedAt)

	var ring bool
	for _, e := range rep.Entities {
		if e.EntityType == domain.EntityRepairShop && e.EntityValue == "sharma auto works" {
			ring = true
			assert.Equal(t, domain.SeverityHigh, e.RiskLevel)
		}
	}
	assert.True(t, ring, "expected the fraud ring's repair shop to be reported")
}

func TestAnalyzer_Report_RejectsInvalidSettings(t *testing.T) {
	a := intel.NewAnalyzer(nil, nil)
	s := intel.DefaultSettings()
	s.Alerts.HighValueK = 0
	_, err := a.Report(context.Background(), &countingCorpus{}, s)
	var cfgErr *domain.InvalidConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestAnalyzer_Report_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := intel.NewAnalyzer(nil, nil).Report(ctx, &countingCorpus{}, intel.DefaultSettings())
	assert.ErrorIs(t, err, context.Canceled)
}

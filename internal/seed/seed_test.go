package seed_test

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insureguard/risk-api/internal/domain"
	"insureguard/risk-api/internal/features"
	"insureguard/risk-api/internal/seed"
)

var now = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func TestGenerate_SizeAndFraudRate(t *testing.T) {
	claims := seed.Generate(seed.Options{Claims: 200, FraudRate: 0.15, Seed: 7, Now: now})
	require.Len(t, claims, 200)

	fraud := 0
	for _, c := range claims {
		require.Contains(t, []string{domain.LabelFraud, domain.LabelGenuine}, c.Label)
		if c.Label == domain.LabelFraud {
			fraud++
		}
	}
	assert.Equal(t, 30, fraud)
}

func TestGenerate_Deterministic(t *testing.T) {
	a := seed.Generate(seed.Options{Claims: 50, Seed: 42, Now: now})
	b := seed.Generate(seed.Options{Claims: 50, Seed: 42, Now: now})
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].ID, b[i].ID)
		assert.Equal(t, a[i].ClaimNumber, b[i].ClaimNumber)
		assert.True(t, a[i].ClaimAmount.Equal(b[i].ClaimAmount))
	}

	c := seed.Generate(seed.Options{Claims: 50, Seed: 43, Now: now})
	assert.NotEqual(t, a[0].ClaimNumber+a[1].ClaimNumber, c[0].ClaimNumber+c[1].ClaimNumber)
}

func TestGenerate_RingSharesShopAndPhone(t *testing.T) {
	claims := seed.Generate(seed.DefaultOptions())

	claimants := map[string]struct{}{}
	ring := 0
	for _, c := range claims {
		if c.RepairShopName != seed.RingRepairShop {
			continue
		}
		ring++
		claimants[c.ClaimantID] = struct{}{}
		assert.Equal(t, seed.RingPhone, c.Phone)
		assert.Equal(t, domain.LabelFraud, c.Label)
	}
	assert.Equal(t, 8, ring)
	assert.Len(t, claimants, 4)
}

func TestGenerate_ClaimsAreWellFormed(t *testing.T) {
	ext := features.NewExtractor(features.Config{})
	number := regexp.MustCompile(`^IG-(VEH|HLT|PRP)-\d{4}-[0-9A-F]{8}$`)
	seen := map[string]bool{}

	for _, c := range seed.Generate(seed.Options{Claims: 120, Seed: 3, Now: now}) {
		require.False(t, seen[c.ID], "duplicate id %s", c.ID)
		seen[c.ID] = true

		assert.Regexp(t, number, c.ClaimNumber)
		assert.False(t, c.FiledDate.After(now), "claim %s filed in the future", c.ID)

		_, err := ext.Extract(&c, features.History{})
		assert.NoError(t, err, "claim %s", c.ID)
	}
}

func TestGenerate_DefaultsFillZeroOptions(t *testing.T) {
	claims := seed.Generate(seed.Options{})
	assert.Len(t, claims, seed.DefaultOptions().Claims)
}

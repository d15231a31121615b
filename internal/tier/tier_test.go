package tier

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierFor(t *testing.T) {
	r := DefaultRegistry()
	tests := []struct {
		balance int64
		want    string
	}{
		{0, "free"},
		{999, "free"},
		{1000, "scout"},
		{4999, "scout"},
		{5000, "pro"},
		{24999, "pro"},
		{25000, "alpha"},
		{1_000_000, "alpha"},
		{-5, "free"},
	}
	for _, tt := range tests {
		got := r.TierFor(decimal.NewFromInt(tt.balance))
		if got.Key != tt.want {
			t.Errorf("TierFor(%d) = %s, want %s", tt.balance, got.Key, tt.want)
		}
	}
}

func TestTierFor_FractionalBelowBoundary(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, "free", r.TierFor(decimal.RequireFromString("999.999999")).Key)
}

func TestTierFor_EmptyRegistry(t *testing.T) {
	r := NewRegistry(nil)
	assert.Equal(t, Tier{}, r.TierFor(decimal.NewFromInt(100)))
	assert.Equal(t, Tier{}, r.TierForBaseUnits(nil, 18))
	assert.False(t, r.HasFeature("free", FeatureTrade))
}

func TestTierForBaseUnits(t *testing.T) {
	r := DefaultRegistry()
	oneToken := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	bal := new(big.Int).Mul(big.NewInt(5000), oneToken)
	assert.Equal(t, "pro", r.TierForBaseUnits(bal, 18).Key)

	bal.Sub(bal, big.NewInt(1))
	assert.Equal(t, "scout", r.TierForBaseUnits(bal, 18).Key)

	assert.Equal(t, "free", r.TierForBaseUnits(nil, 18).Key)
}

func TestHasFeature(t *testing.T) {
	r := DefaultRegistry()
	assert.True(t, r.HasFeature("free", FeatureTrade))
	assert.False(t, r.HasFeature("free", FeatureSignals))
	assert.True(t, r.HasFeature("scout", FeatureSignals))
	assert.False(t, r.HasFeature("pro", FeaturePredictions))
	assert.True(t, r.HasFeature("alpha", FeaturePredictions))
	assert.False(t, r.HasFeature("whale", FeatureTrade))
}

func TestHigherTiersIncludeLower(t *testing.T) {
	tiers := DefaultRegistry().Tiers()
	for i := 1; i < len(tiers); i++ {
		for _, f := range tiers[i-1].Features {
			assert.True(t, tiers[i].Has(f), "%s missing %s from %s", tiers[i].Key, f, tiers[i-1].Key)
		}
	}
}

func TestRequiredTierFor(t *testing.T) {
	r := DefaultRegistry()

	got, ok := r.RequiredTierFor(FeatureSpread)
	require.True(t, ok)
	assert.Equal(t, "pro", got.Key)

	got, ok = r.RequiredTierFor(FeatureTrade)
	require.True(t, ok)
	assert.Equal(t, "free", got.Key)

	_, ok = r.RequiredTierFor("teleport")
	assert.False(t, ok)
}

func TestUpgradePrompt(t *testing.T) {
	r := DefaultRegistry()

	p, ok := r.UpgradePrompt(FeaturePredictions)
	require.True(t, ok)
	assert.Equal(t, "Alpha", p.Tier)
	assert.True(t, p.TokensNeeded.Equal(decimal.NewFromInt(25000)))

	_, ok = r.UpgradePrompt("teleport")
	assert.False(t, ok)
}

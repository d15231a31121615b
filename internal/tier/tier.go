// Package tier maps a holder's token balance to a feature tier.
package tier

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Feature flags gated by tier.
const (
	FeatureAllTab         = "all_tab"
	FeatureBasicCards     = "basic_cards"
	FeatureTrade          = "trade"
	FeatureEarlyTab       = "early_tab"
	FeatureHotTab         = "hot_tab"
	FeatureSignals        = "signals"
	FeatureCurves         = "curves"
	FeatureBreakoutTab    = "breakout_tab"
	FeatureSpread         = "spread"
	FeatureAdvancedCurves = "advanced_curves"
	FeatureAlerts         = "alerts"
	FeaturePortfolio      = "portfolio"
	FeatureExport         = "export"
	FeaturePredictions    = "predictions"
)

// Tier is a named feature bracket.
type Tier struct {
	Key        string          `json:"key"`
	Label      string          `json:"label"`
	Color      string          `json:"color"`
	MinBalance decimal.Decimal `json:"minBalance"` // whole tokens
	Features   []string        `json:"features"`
}

// Has reports whether the tier carries feature.
func (t Tier) Has(feature string) bool {
	for _, f := range t.Features {
		if f == feature {
			return true
		}
	}
	return false
}

// UpgradePrompt tells a user which tier unlocks a feature and what it takes.
type UpgradePrompt struct {
	Tier         string          `json:"tier"`
	TokensNeeded decimal.Decimal `json:"tokensNeeded"`
}

// Registry is an ordered tier list, lowest minimum first.
type Registry struct {
	tiers []Tier
}

// NewRegistry creates a registry. tiers must be ordered by ascending MinBalance
// and the first tier should have a zero minimum.
func NewRegistry(tiers []Tier) *Registry {
	return &Registry{tiers: append([]Tier(nil), tiers...)}
}

// DefaultRegistry returns the free, scout, pro and alpha tiers.
func DefaultRegistry() *Registry {
	free := []string{FeatureAllTab, FeatureBasicCards, FeatureTrade}
	scout := append(append([]string(nil), free...), FeatureEarlyTab, FeatureHotTab, FeatureSignals, FeatureCurves)
	pro := append(append([]string(nil), scout...), FeatureBreakoutTab, FeatureSpread, FeatureAdvancedCurves)
	alpha := append(append([]string(nil), pro...), FeatureAlerts, FeaturePortfolio, FeatureExport, FeaturePredictions)

	return NewRegistry([]Tier{
		{Key: "free", Label: "Free", Color: "#6B7280", MinBalance: decimal.Zero, Features: free},
		{Key: "scout", Label: "Scout", Color: "#10B981", MinBalance: decimal.NewFromInt(1000), Features: scout},
		{Key: "pro", Label: "Pro", Color: "#8B5CF6", MinBalance: decimal.NewFromInt(5000), Features: pro},
		{Key: "alpha", Label: "Alpha", Color: "#F59E0B", MinBalance: decimal.NewFromInt(25000), Features: alpha},
	})
}

// Tiers returns the tiers, lowest first.
func (r *Registry) Tiers() []Tier {
	return append([]Tier(nil), r.tiers...)
}

// TierFor returns the highest tier whose minimum balance is met.
// A balance below every minimum gets the lowest tier. An empty registry
// returns the zero Tier.
func (r *Registry) TierFor(balance decimal.Decimal) Tier {
	if len(r.tiers) == 0 {
		return Tier{}
	}
	for i := len(r.tiers) - 1; i > 0; i-- {
		if balance.GreaterThanOrEqual(r.tiers[i].MinBalance) {
			return r.tiers[i]
		}
	}
	return r.tiers[0]
}

// TierForBaseUnits converts a base-unit balance with the given decimals and
// returns its tier.
func (r *Registry) TierForBaseUnits(balance *big.Int, decimals int32) Tier {
	if balance == nil {
		return r.TierFor(decimal.Zero)
	}
	return r.TierFor(decimal.NewFromBigInt(balance, -decimals))
}

// HasFeature reports whether the tier with the given key carries feature.
// Unknown keys have no features.
func (r *Registry) HasFeature(key, feature string) bool {
	for _, t := range r.tiers {
		if t.Key == key {
			return t.Has(feature)
		}
	}
	return false
}

// RequiredTierFor returns the lowest tier carrying feature.
func (r *Registry) RequiredTierFor(feature string) (Tier, bool) {
	for _, t := range r.tiers {
		if t.Has(feature) {
			return t, true
		}
	}
	return Tier{}, false
}

// UpgradePrompt returns the label and minimum balance of the tier that unlocks
// feature, or false if no tier does.
func (r *Registry) UpgradePrompt(feature string) (UpgradePrompt, bool) {
	t, ok := r.RequiredTierFor(feature)
	if !ok {
		return UpgradePrompt{}, false
	}
	return UpgradePrompt{Tier: t.Label, TokensNeeded: t.MinBalance}, true
}

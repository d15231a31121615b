package signals

import (
	"math"
	"sort"

	"scry-scanner/internal/domain"
)

// FilterHot returns hot tokens ordered by absolute momentum, largest first.
func FilterHot(tokens []domain.ScannedToken) []domain.ScannedToken {
	out := keep(tokens, func(t domain.ScannedToken) bool { return t.Signals.IsHot })
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(deref(out[i].Signals.Momentum)) > math.Abs(deref(out[j].Signals.Momentum))
	})
	return out
}

// FilterEarly returns early tokens ordered by curve position, least filled first.
func FilterEarly(tokens []domain.ScannedToken) []domain.ScannedToken {
	out := keep(tokens, func(t domain.ScannedToken) bool { return t.Signals.IsEarly })
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Signals.CurvePosition < out[j].Signals.CurvePosition
	})
	return out
}

// FilterBreakout returns breakout tokens ordered by step jump, steepest first.
func FilterBreakout(tokens []domain.ScannedToken) []domain.ScannedToken {
	out := keep(tokens, func(t domain.ScannedToken) bool { return t.Signals.IsBreakout })
	sort.SliceStable(out, func(i, j int) bool {
		return deref(out[i].Signals.StepJump) > deref(out[j].Signals.StepJump)
	})
	return out
}

// RankByOpportunity returns a copy ordered by opportunity score, highest first.
func RankByOpportunity(tokens []domain.ScannedToken) []domain.ScannedToken {
	out := make([]domain.ScannedToken, len(tokens))
	copy(out, tokens)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Signals.OpportunityScore > out[j].Signals.OpportunityScore
	})
	return out
}

func keep(tokens []domain.ScannedToken, pred func(domain.ScannedToken) bool) []domain.ScannedToken {
	out := make([]domain.ScannedToken, 0, len(tokens))
	for _, t := range tokens {
		if pred(t) {
			out = append(out, t)
		}
	}
	return out
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

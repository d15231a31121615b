package signals

import "scry-scanner/internal/domain"

// Badge is a display label derived from signals.
type Badge string

const (
	BadgeEarly         Badge = "early"
	BadgeGraduating    Badge = "graduating"
	BadgeHot           Badge = "hot"
	BadgeRising        Badge = "rising"
	BadgeBreakout      Badge = "breakout"
	BadgeNew           Badge = "new"
	BadgeDormant       Badge = "dormant"
	BadgeDeepLiquidity Badge = "deep_liquidity"
	BadgeLowFee        Badge = "low_fee"
	BadgeHighFee       Badge = "high_fee"
)

// Fee bands in basis points of mint + burn royalty.
const (
	LowFeeBps  = 500
	HighFeeBps = 1500
)

// String returns the string representation.
func (b Badge) String() string {
	return string(b)
}

// Badges lists the badges for a token in display order.
// Fee badges are only considered when royalties are known.
func Badges(t domain.ScannedToken, royalties *domain.Royalties) []Badge {
	s := t.Signals
	var out []Badge
	if s.IsEarly {
		out = append(out, BadgeEarly)
	}
	if s.IsGraduating {
		out = append(out, BadgeGraduating)
	}
	if s.IsHot {
		out = append(out, BadgeHot)
	}
	if s.IsRising {
		out = append(out, BadgeRising)
	}
	if s.IsBreakout {
		out = append(out, BadgeBreakout)
	}
	if s.IsNew {
		out = append(out, BadgeNew)
	}
	if s.IsDormant {
		out = append(out, BadgeDormant)
	}
	if s.ReserveDepth != nil && s.ReserveDepth.Cmp(DeepReserveThreshold) > 0 {
		out = append(out, BadgeDeepLiquidity)
	}
	if royalties != nil {
		total := royalties.Total()
		if total > 0 && total < LowFeeBps {
			out = append(out, BadgeLowFee)
		}
		if total > HighFeeBps {
			out = append(out, BadgeHighFee)
		}
	}
	return out
}

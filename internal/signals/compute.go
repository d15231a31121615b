// Package signals derives opportunity signals from token records.
// All functions are pure: they never fail and propagate missing inputs as nil fields.
package signals

import (
	"math"
	"math/big"
	"time"

	"scry-scanner/internal/domain"
)

// Thresholds used by the boolean flags and the opportunity score.
const (
	EarlyThreshold      = 0.20
	GraduatingThreshold = 0.90
	NewTokenHours       = 24
	HotMomentum         = 10
	BreakoutStepJump    = 20
	TightSpread         = 0.10

	baseScore = 50
	minScore  = 0
	maxScore  = 100
)

// fixedPointScale is the intermediate precision for big-integer ratios.
var fixedPointScale = big.NewInt(10000)

// DeepReserveThreshold is one whole 18-decimal reserve unit.
var DeepReserveThreshold = domain.OneToken

// Quotes carries the optional buy/sell estimates used by full mode.
type Quotes struct {
	Buy  *domain.BuyQuote
	Sell *domain.SellQuote
}

// ComputeFast computes signals from a cheap listing record.
// It runs the same core as ComputeFull with no optional inputs, so a fully
// enriched token without new data scores identically.
func ComputeFast(listed domain.ListedToken, now time.Time) domain.Signals {
	detail := ListedToDetail(listed)
	return compute(&detail, nil, Quotes{}, now)
}

// ComputeFull computes signals from an enriched detail plus optional
// price change and quotes. Any of pc, buy, sell may be nil.
func ComputeFull(detail domain.TokenDetail, pc *domain.PriceChange, buy *domain.BuyQuote, sell *domain.SellQuote, now time.Time) domain.Signals {
	return compute(&detail, pc, Quotes{Buy: buy, Sell: sell}, now)
}

func compute(d *domain.TokenDetail, pc *domain.PriceChange, q Quotes, now time.Time) domain.Signals {
	curvePosition := CurvePosition(d.CurrentSupply, d.MaxSupply)
	ageHours := AgeHours(d.Bond.CreatedAt, now)

	var momentum *float64
	if pc != nil && pc.ChangePercent != nil {
		m := *pc.ChangePercent
		momentum = &m
	}

	reserve := new(big.Int)
	if d.Bond.ReserveBalance != nil {
		reserve.Set(d.Bond.ReserveBalance)
	}

	stepJump := StepJump(d.Steps, d.CurrentPrice)
	spread := Spread(q.Buy, q.Sell)

	s := domain.Signals{
		CurvePosition: curvePosition,
		Momentum:      momentum,
		ReserveDepth:  reserve,
		StepJump:      stepJump,
		Spread:        spread,
		AgeHours:      ageHours,
		IsEarly:       curvePosition < EarlyThreshold,
		IsNew:         ageHours < NewTokenHours,
		IsGraduating:  curvePosition > GraduatingThreshold,
		IsDormant:     isZero(d.CurrentSupply),
		IsHot:         momentum != nil && math.Abs(*momentum) > HotMomentum,
		IsRising:      momentum != nil && *momentum > 0 && *momentum <= HotMomentum,
		IsBreakout:    stepJump != nil && *stepJump > BreakoutStepJump,
	}
	s.OpportunityScore = score(&s)
	return s
}

func score(s *domain.Signals) int {
	v := baseScore
	if s.IsEarly {
		v += 20
	}
	if s.IsHot && s.Momentum != nil && *s.Momentum > 0 {
		v += 15
	}
	if s.IsRising {
		v += 5
	}
	if s.IsBreakout {
		v += 10
	}
	if s.IsGraduating {
		v += 10
	}
	if s.IsNew {
		v += 5
	}
	if s.Spread != nil && *s.Spread < TightSpread {
		v += 5
	}
	if s.ReserveDepth != nil && s.ReserveDepth.Cmp(DeepReserveThreshold) > 0 {
		v += 5
	}
	if s.IsDormant {
		v -= 10
	}
	return min(maxScore, max(minScore, v))
}

// CurvePosition returns current/max in 1/10000 fixed point, 0 when max is zero or unset.
func CurvePosition(current, maxSupply *big.Int) float64 {
	if maxSupply == nil || maxSupply.Sign() <= 0 {
		return 0
	}
	cur := current
	if cur == nil {
		cur = new(big.Int)
	}
	return scaledRatio(new(big.Int).Mul(cur, fixedPointScale), maxSupply, 10000)
}

// AgeHours returns hours elapsed since createdAt (Unix seconds). Negative
// values from clock skew are preserved.
func AgeHours(createdAt int64, now time.Time) float64 {
	return float64(now.Unix()-createdAt) / 3600
}

// StepJump returns the percent increase from the first step priced at or
// above currentPrice to the step after it. Nil when no such step exists or
// its price is zero.
func StepJump(steps []domain.CurveStep, currentPrice *big.Int) *float64 {
	cur := currentPrice
	if cur == nil {
		cur = new(big.Int)
	}
	for i := 0; i < len(steps)-1; i++ {
		price := orZero(steps[i].Price)
		if price.Cmp(cur) < 0 {
			continue
		}
		if price.Sign() <= 0 {
			return nil
		}
		next := orZero(steps[i+1].Price)
		diff := new(big.Int).Sub(next, price)
		diff.Mul(diff, fixedPointScale)
		v := scaledRatio(diff, price, 100)
		return &v
	}
	return nil
}

// Spread returns (buyCost - sellReturn) / buyCost as a fraction. It may be
// negative. Nil when either quote is missing or the buy cost is not positive.
func Spread(buy *domain.BuyQuote, sell *domain.SellQuote) *float64 {
	if buy == nil || sell == nil || buy.Cost == nil || buy.Cost.Sign() <= 0 {
		return nil
	}
	diff := new(big.Int).Sub(buy.Cost, orZero(sell.Returns))
	diff.Mul(diff, fixedPointScale)
	v := scaledRatio(diff, buy.Cost, 10000)
	return &v
}

// scaledRatio computes trunc(num/den) / divisor.
func scaledRatio(num, den *big.Int, divisor float64) float64 {
	q := new(big.Int).Quo(num, den)
	f, _ := new(big.Float).SetInt(q).Float64()
	return f / divisor
}

func isZero(v *big.Int) bool {
	return v == nil || v.Sign() == 0
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

package domain

import "math/big"

// Signals are derived from a TokenDetail and are never persisted.
// Nil pointer fields mean the input needed to compute them was absent.
type Signals struct {
	CurvePosition    float64  `json:"curvePosition"` // 0..1 of max supply minted
	Momentum         *float64 `json:"momentum"`      // 24h price change %
	ReserveDepth     *big.Int `json:"reserveDepth"`  // raw reserve balance
	StepJump         *float64 `json:"stepJump"`      // % increase to next step price
	Spread           *float64 `json:"spread"`        // round-trip cost fraction
	AgeHours         float64  `json:"ageHours"`
	IsEarly          bool     `json:"isEarly"`
	IsHot            bool     `json:"isHot"`
	IsNew            bool     `json:"isNew"`
	IsGraduating     bool     `json:"isGraduating"`
	IsDormant        bool     `json:"isDormant"`
	IsRising         bool     `json:"isRising"`
	IsBreakout       bool     `json:"isBreakout"`
	OpportunityScore int      `json:"opportunityScore"` // 0..100
}

// ScannedToken pairs a token with the signals computed from it.
// Identity key is Detail.Address.
type ScannedToken struct {
	Detail      TokenDetail  `json:"detail"`
	Signals     Signals      `json:"signals"`
	PriceChange *PriceChange `json:"priceChange"`
}

// Address returns the identity key of the token.
func (t ScannedToken) Address() string {
	return t.Detail.Address
}

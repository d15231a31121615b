package domain

import "github.com/shopspring/decimal"

// Direction is the side of a price-direction call.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// IsValid checks if the direction is a valid value.
func (d Direction) IsValid() bool {
	return d == DirectionUp || d == DirectionDown
}

// Result is the settled outcome of a prediction.
type Result string

const (
	ResultWin  Result = "win"
	ResultLoss Result = "loss"
)

// Prediction is a staked directional call on a token's USD price.
// It moves once from unresolved to resolved and is never deleted.
type Prediction struct {
	ID          string           `json:"id"`
	TokenSymbol string           `json:"tokenSymbol"`
	Token       string           `json:"token,omitempty"` // contract address, used to price settlement
	Direction   Direction        `json:"direction"`
	Stake       decimal.Decimal  `json:"stake"`
	EntryPrice  decimal.Decimal  `json:"entryPrice"` // USD
	CreatedAt   int64            `json:"createdAt"`  // Unix ms
	ExpiresAt   int64            `json:"expiresAt"`  // Unix ms
	Resolved    bool             `json:"resolved"`
	Result      *Result          `json:"result"`
	ExitPrice   *decimal.Decimal `json:"exitPrice"`
	Payout      *decimal.Decimal `json:"payout"`
}

// IsActive reports whether the prediction is unresolved and unexpired at nowMs.
func (p *Prediction) IsActive(nowMs int64) bool {
	return !p.Resolved && nowMs < p.ExpiresAt
}

// IsAwaitingResolution reports whether the prediction expired without being resolved.
func (p *Prediction) IsAwaitingResolution(nowMs int64) bool {
	return !p.Resolved && nowMs >= p.ExpiresAt
}

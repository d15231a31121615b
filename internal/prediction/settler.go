package prediction

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"scry-scanner/internal/observability"
)

// PriceSource returns the current USD rate for a token address or symbol.
// ok is false when no price is known.
type PriceSource interface {
	CurrentPrice(ctx context.Context, symbolOrAddress string) (price decimal.Decimal, ok bool)
}

// Settler resolves expired predictions at the source's current price.
type Settler struct {
	ledger *Ledger
	prices PriceSource
	logger zerolog.Logger
}

// NewSettler creates a settler.
func NewSettler(ledger *Ledger, prices PriceSource, logger zerolog.Logger) *Settler {
	return &Settler{ledger: ledger, prices: prices, logger: logger}
}

// SettleResult summarizes one sweep.
type SettleResult struct {
	Resolved int
	Pending  int // expired but no price available
}

// Settle resolves every expired-but-unresolved prediction that has a price.
// Predictions without a price stay pending for the next sweep.
func (s *Settler) Settle(ctx context.Context) (SettleResult, error) {
	var res SettleResult

	expired, err := s.ledger.ExpiredUnresolved(ctx)
	if err != nil {
		return res, fmt.Errorf("list expired predictions: %w", err)
	}

	for _, p := range expired {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		key := p.Token
		if key == "" {
			key = p.TokenSymbol
		}
		price, ok := s.prices.CurrentPrice(ctx, key)
		if !ok {
			res.Pending++
			s.logger.Debug().Str("id", p.ID).Str("token", key).Msg("no price for expired prediction")
			continue
		}

		if _, err := s.ledger.Resolve(ctx, p.ID, price); err != nil {
			return res, fmt.Errorf("resolve %s: %w", p.ID, err)
		}
		res.Resolved++
	}

	observability.RecordSweep(res.Pending, s.ledger.now().Unix())
	if res.Resolved > 0 || res.Pending > 0 {
		s.logger.Info().Int("resolved", res.Resolved).Int("pending", res.Pending).Msg("prediction sweep")
	}
	return res, nil
}

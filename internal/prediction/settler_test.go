package prediction

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scry-scanner/internal/domain"
)

type mapPrices map[string]decimal.Decimal

func (m mapPrices) CurrentPrice(_ context.Context, key string) (decimal.Decimal, bool) {
	p, ok := m[key]
	return p, ok
}

func TestSettle(t *testing.T) {
	l, clock, _ := newLedger(t)
	ctx := context.Background()

	byToken, err := l.Create(ctx, "MOON", "0xmoon", domain.DirectionUp, d("10"), d("1"))
	require.NoError(t, err)
	bySymbol, err := l.Create(ctx, "SUN", "", domain.DirectionDown, d("10"), d("1"))
	require.NoError(t, err)
	unpriced, err := l.Create(ctx, "DARK", "0xdark", domain.DirectionUp, d("10"), d("1"))
	require.NoError(t, err)

	prices := mapPrices{"0xmoon": d("1.5"), "SUN": d("0.5")}
	s := NewSettler(l, prices, zerolog.Nop())

	// nothing has expired yet
	res, err := s.Settle(ctx)
	require.NoError(t, err)
	assert.Equal(t, SettleResult{}, res)

	clock.Advance(24 * time.Hour)
	res, err = s.Settle(ctx)
	require.NoError(t, err)
	assert.Equal(t, SettleResult{Resolved: 2, Pending: 1}, res)

	history, err := l.History(ctx)
	require.NoError(t, err)
	ids := map[string]domain.Result{}
	for _, p := range history {
		ids[p.ID] = *p.Result
	}
	assert.Equal(t, domain.ResultWin, ids[byToken.ID])
	assert.Equal(t, domain.ResultWin, ids[bySymbol.ID])
	assert.NotContains(t, ids, unpriced.ID)

	expired, err := l.ExpiredUnresolved(ctx)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, unpriced.ID, expired[0].ID)
}

func TestSettle_CanceledContext(t *testing.T) {
	l, clock, _ := newLedger(t)
	_, err := l.Create(context.Background(), "MOON", "", domain.DirectionUp, d("10"), d("1"))
	require.NoError(t, err)
	clock.Advance(25 * time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewSettler(l, mapPrices{"MOON": d("2")}, zerolog.Nop()).Settle(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

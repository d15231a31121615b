// Package prediction implements the prediction ledger: staked up/down calls on a
// token's USD price that settle once after a fixed duration.
package prediction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"scry-scanner/internal/domain"
	"scry-scanner/internal/idhash"
	"scry-scanner/internal/observability"
	"scry-scanner/internal/storage"
)

// DefaultKey is the store key holding the prediction collection.
const DefaultKey = "scanner_predictions"

// ErrActivePrediction is returned by Open when the symbol already has an active prediction.
var ErrActivePrediction = errors.New("active prediction exists for token")

// Config holds the ledger's economic parameters.
type Config struct {
	MinStake    decimal.Decimal
	MaxStake    decimal.Decimal
	Duration    time.Duration
	HouseCutBps int64
}

// DefaultConfig returns min 10, max 100, 24h duration and a 10% house cut.
func DefaultConfig() Config {
	return Config{
		MinStake:    decimal.NewFromInt(10),
		MaxStake:    decimal.NewFromInt(100),
		Duration:    24 * time.Hour,
		HouseCutBps: 1000,
	}
}

// Options configures a Ledger.
type Options struct {
	Store  storage.KVStore
	Key    string // defaults to DefaultKey
	Config Config
	Clock  func() time.Time // defaults to time.Now
	Logger zerolog.Logger
}

// Ledger stores predictions as one serialized collection and rewrites it whole on
// every mutation. Mutations are serialized by a mutex so read-modify-write cycles
// from one process never interleave.
type Ledger struct {
	store  storage.KVStore
	key    string
	cfg    Config
	now    func() time.Time
	logger zerolog.Logger

	mu sync.Mutex
}

// NewLedger creates a ledger over opts.Store.
func NewLedger(opts Options) *Ledger {
	key := opts.Key
	if key == "" {
		key = DefaultKey
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		store:  opts.Store,
		key:    key,
		cfg:    opts.Config,
		now:    now,
		logger: opts.Logger,
	}
}

// Config returns the ledger's parameters.
func (l *Ledger) Config() Config {
	return l.cfg
}

// Now returns the ledger's current time.
func (l *Ledger) Now() time.Time {
	return l.now()
}

// Create records a new prediction. The stake is clamped into [MinStake, MaxStake]
// and the expiry set to now + Duration. It does not check for an existing active
// prediction on the symbol; use Open for that.
func (l *Ledger) Create(ctx context.Context, symbol, token string, dir domain.Direction, stake, entryPrice decimal.Decimal) (*domain.Prediction, error) {
	if err := validate(symbol, dir, entryPrice); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	all, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	p := l.newPrediction(symbol, token, dir, stake, entryPrice)
	if err := l.save(ctx, append(all, p)); err != nil {
		return nil, err
	}

	observability.RecordPredictionCreated(string(dir))
	l.logger.Info().Str("id", p.ID).Str("symbol", symbol).Str("direction", string(dir)).
		Str("stake", p.Stake.String()).Msg("prediction created")
	return &p, nil
}

// Open is Create guarded by the one-active-prediction-per-symbol rule.
// The check and the write happen under the same lock.
func (l *Ledger) Open(ctx context.Context, symbol, token string, dir domain.Direction, stake, entryPrice decimal.Decimal) (*domain.Prediction, error) {
	if err := validate(symbol, dir, entryPrice); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	all, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	nowMs := l.now().UnixMilli()
	for i := range all {
		if all[i].TokenSymbol == symbol && all[i].IsActive(nowMs) {
			return nil, fmt.Errorf("%w: %s", ErrActivePrediction, all[i].ID)
		}
	}

	p := l.newPrediction(symbol, token, dir, stake, entryPrice)
	if err := l.save(ctx, append(all, p)); err != nil {
		return nil, err
	}

	observability.RecordPredictionCreated(string(dir))
	l.logger.Info().Str("id", p.ID).Str("symbol", symbol).Str("direction", string(dir)).
		Str("stake", p.Stake.String()).Msg("prediction opened")
	return &p, nil
}

func validate(symbol string, dir domain.Direction, entryPrice decimal.Decimal) error {
	if symbol == "" {
		return fmt.Errorf("%w: empty token symbol", storage.ErrInvalidInput)
	}
	if !dir.IsValid() {
		return fmt.Errorf("%w: direction %q", storage.ErrInvalidInput, dir)
	}
	if entryPrice.IsNegative() {
		return fmt.Errorf("%w: negative entry price", storage.ErrInvalidInput)
	}
	return nil
}

func (l *Ledger) newPrediction(symbol, token string, dir domain.Direction, stake, entryPrice decimal.Decimal) domain.Prediction {
	now := l.now()
	createdAt := now.UnixMilli()
	return domain.Prediction{
		ID:          idhash.PredictionID(symbol, createdAt),
		TokenSymbol: symbol,
		Token:       token,
		Direction:   dir,
		Stake:       l.clampStake(stake),
		EntryPrice:  entryPrice,
		CreatedAt:   createdAt,
		ExpiresAt:   now.Add(l.cfg.Duration).UnixMilli(),
	}
}

func (l *Ledger) clampStake(stake decimal.Decimal) decimal.Decimal {
	if stake.LessThan(l.cfg.MinStake) {
		return l.cfg.MinStake
	}
	if stake.GreaterThan(l.cfg.MaxStake) {
		return l.cfg.MaxStake
	}
	return stake
}

// Resolve settles a prediction at currentPrice. An already resolved prediction is
// returned unchanged. Returns storage.ErrNotFound for an unknown id.
//
// up wins only on a strict rise; down wins on a fall or an unchanged price.
func (l *Ledger) Resolve(ctx context.Context, id string, currentPrice decimal.Decimal) (*domain.Prediction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	all, err := l.load(ctx)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range all {
		if all[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, fmt.Errorf("prediction %s: %w", id, storage.ErrNotFound)
	}

	p := all[idx]
	if p.Resolved {
		return &p, nil
	}

	priceWentUp := currentPrice.GreaterThan(p.EntryPrice)
	win := (p.Direction == domain.DirectionUp && priceWentUp) ||
		(p.Direction == domain.DirectionDown && !priceWentUp)

	result := domain.ResultLoss
	payout := decimal.Zero
	if win {
		result = domain.ResultWin
		payout = Payout(p.Stake, l.cfg.HouseCutBps)
	}
	exit := currentPrice

	p.Resolved = true
	p.Result = &result
	p.ExitPrice = &exit
	p.Payout = &payout
	all[idx] = p

	if err := l.save(ctx, all); err != nil {
		return nil, err
	}

	observability.RecordPredictionResolved(string(result))
	l.logger.Info().Str("id", id).Str("result", string(result)).Str("payout", payout.String()).
		Msg("prediction resolved")
	return &p, nil
}

// Payout is the winning payout for a stake: floor(stake*2 - stake*houseCutBps/10000).
func Payout(stake decimal.Decimal, houseCutBps int64) decimal.Decimal {
	houseCut := stake.Mul(decimal.NewFromInt(houseCutBps)).Div(decimal.NewFromInt(10000))
	return stake.Mul(decimal.NewFromInt(2)).Sub(houseCut).Floor()
}

// All returns every prediction, newest first.
func (l *Ledger) All(ctx context.Context) ([]domain.Prediction, error) {
	all, err := l.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(all)
	return all, nil
}

// Active returns unresolved predictions that have not expired, in creation order.
func (l *Ledger) Active(ctx context.Context) ([]domain.Prediction, error) {
	nowMs := l.now().UnixMilli()
	return l.filter(ctx, func(p *domain.Prediction) bool { return p.IsActive(nowMs) })
}

// ExpiredUnresolved returns predictions past expiry that still need resolving.
func (l *Ledger) ExpiredUnresolved(ctx context.Context) ([]domain.Prediction, error) {
	nowMs := l.now().UnixMilli()
	return l.filter(ctx, func(p *domain.Prediction) bool { return p.IsAwaitingResolution(nowMs) })
}

// History returns resolved predictions, newest first.
func (l *Ledger) History(ctx context.Context) ([]domain.Prediction, error) {
	out, err := l.filter(ctx, func(p *domain.Prediction) bool { return p.Resolved })
	if err != nil {
		return nil, err
	}
	sortNewestFirst(out)
	return out, nil
}

// ActiveFor returns the active prediction for symbol, or nil.
func (l *Ledger) ActiveFor(ctx context.Context, symbol string) (*domain.Prediction, error) {
	active, err := l.Active(ctx)
	if err != nil {
		return nil, err
	}
	for i := range active {
		if active[i].TokenSymbol == symbol {
			return &active[i], nil
		}
	}
	return nil, nil
}

func (l *Ledger) filter(ctx context.Context, keep func(*domain.Prediction) bool) ([]domain.Prediction, error) {
	all, err := l.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Prediction, 0, len(all))
	for i := range all {
		if keep(&all[i]) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

func (l *Ledger) snapshot(ctx context.Context) ([]domain.Prediction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(ctx)
}

// load reads the collection. A missing key is an empty ledger.
func (l *Ledger) load(ctx context.Context) ([]domain.Prediction, error) {
	raw, err := l.store.Get(ctx, l.key)
	if errors.Is(err, storage.ErrNotFound) {
		return []domain.Prediction{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load predictions: %w", err)
	}
	if len(raw) == 0 {
		return []domain.Prediction{}, nil
	}

	var all []domain.Prediction
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, fmt.Errorf("decode predictions: %w", err)
	}
	return all, nil
}

func (l *Ledger) save(ctx context.Context, all []domain.Prediction) error {
	raw, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("encode predictions: %w", err)
	}
	if err := l.store.Put(ctx, l.key, raw); err != nil {
		return fmt.Errorf("save predictions: %w", err)
	}
	return nil
}

func sortNewestFirst(ps []domain.Prediction) {
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].CreatedAt > ps[j].CreatedAt })
}

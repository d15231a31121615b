// Package scanner drives the two-phase token pipeline: a cached fast load
// from the listing source, then lazy per-token enrichment on selection.
package scanner

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"scry-scanner/internal/cache"
	"scry-scanner/internal/domain"
	"scry-scanner/internal/observability"
	"scry-scanner/internal/signals"
)

// DefaultListCount is how many of the newest tokens a fast load requests.
const DefaultListCount = 200

// Enrichment fetch names used in Selection.Failed, logs and metrics.
const (
	FetchSteps          = "steps"
	FetchPriceChange    = "price_change"
	FetchBuyQuote       = "buy_quote"
	FetchSellQuote      = "sell_quote"
	FetchMetadata       = "metadata"
	FetchCreatorCount   = "creator_count"
	FetchRoyalties      = "royalties"
	FetchCreatorProfile = "creator_profile"
)

// ErrTokenNotFound is returned by Select for an address outside the held set.
var ErrTokenNotFound = errors.New("token not in current set")

// Scanner owns the opportunity cache, the held token set and the
// per-address enrichment memo.
type Scanner struct {
	listing    ListingSource
	enrichment EnrichmentSource
	reputation ReputationSource
	cache      *cache.OpportunityCache
	listCount  int
	now        func() time.Time
	logger     zerolog.Logger

	mu       sync.Mutex
	tokens   []domain.ScannedToken
	memo     map[string]*memoEntry
	selected string
}

// memoEntry is an enriched selection kept for the session.
type memoEntry struct {
	selection     Selection
	creatorLooked bool
}

// Options for creating a Scanner.
type Options struct {
	// Required sources
	Listing    ListingSource
	Enrichment EnrichmentSource

	// Optional creator profile source
	Reputation ReputationSource

	// Cache is shared with other readers; built from CacheTTL and Clock when nil.
	Cache    *cache.OpportunityCache
	CacheTTL time.Duration

	ListCount int              // defaults to DefaultListCount
	Clock     func() time.Time // defaults to time.Now
	Logger    zerolog.Logger   // zero value discards
}

// New creates a new Scanner.
func New(opts Options) *Scanner {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	listCount := opts.ListCount
	if listCount <= 0 {
		listCount = DefaultListCount
	}
	c := opts.Cache
	if c == nil {
		c = cache.New(opts.CacheTTL, cache.WithClock(now))
	}

	return &Scanner{
		listing:    opts.Listing,
		enrichment: opts.Enrichment,
		reputation: opts.Reputation,
		cache:      c,
		listCount:  listCount,
		now:        now,
		logger:     opts.Logger.With().Str("component", "scanner").Logger(),
		memo:       make(map[string]*memoEntry),
	}
}

// Cache returns the opportunity cache backing fast loads.
func (s *Scanner) Cache() *cache.OpportunityCache {
	return s.cache
}

// FastLoad returns the cached set when fresh and otherwise fetches and
// scores the listing window. Safe to call concurrently; the last write wins.
func (s *Scanner) FastLoad(ctx context.Context) LoadResult {
	if cached := s.cache.Get(); len(cached) > 0 {
		observability.RecordCacheLookup(true)
		tokens := s.adopt(cached)
		observability.RecordFastLoad(string(LoadCached), len(tokens), s.now().Unix())
		return LoadResult{Tokens: tokens, Outcome: LoadCached}
	}
	observability.RecordCacheLookup(false)
	return s.Refresh(ctx)
}

// Refresh bypasses the cache, fetches the listing window and repopulates the cache.
// On listing failure the held set and cache are left untouched and the result is empty.
func (s *Scanner) Refresh(ctx context.Context) LoadResult {
	listed, err := s.listing.ListTokens(ctx, s.listCount)
	if err != nil {
		s.logger.Warn().Err(err).Int("count", s.listCount).Msg("listing fetch failed")
		observability.RecordFastLoad(string(LoadFailed), 0, s.now().Unix())
		return LoadResult{Tokens: []domain.ScannedToken{}, Outcome: LoadFailed, Err: err}
	}

	now := s.now()
	scanned := make([]domain.ScannedToken, 0, len(listed))
	for _, l := range listed {
		scanned = append(scanned, domain.ScannedToken{
			Detail:  signals.ListedToDetail(l),
			Signals: signals.ComputeFast(l, now),
		})
	}
	s.cache.Set(scanned)

	tokens := s.adopt(scanned)
	observability.RecordFastLoad(string(LoadFetched), len(tokens), now.Unix())
	s.logger.Debug().Int("tokens", len(tokens)).Msg("listing refreshed")
	return LoadResult{Tokens: tokens, Outcome: LoadFetched}
}

// adopt makes set the held set, substituting memoized enrichments by address.
func (s *Scanner) adopt(set []domain.ScannedToken) []domain.ScannedToken {
	s.mu.Lock()
	defer s.mu.Unlock()

	held := make([]domain.ScannedToken, len(set))
	for i, t := range set {
		if m, ok := s.memo[t.Address()]; ok {
			held[i] = m.selection.Token
			continue
		}
		held[i] = t
	}
	s.tokens = held
	return cloneTokens(held)
}

// Tokens returns a copy of the currently held set.
func (s *Scanner) Tokens() []domain.ScannedToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTokens(s.tokens)
}

// Selected returns the address of the most recent selection.
func (s *Scanner) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// MemoSize returns the number of memoized enrichments.
func (s *Scanner) MemoSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.memo)
}

// Select makes address the current selection and returns its enriched view.
// A memoized enrichment is returned without enrichment fetches. Otherwise all
// enrichment fetches run concurrently and each failure only blanks its own
// field. If another address was selected before the fetches finished, the
// result is returned as discarded and neither memoized nor spliced.
func (s *Scanner) Select(ctx context.Context, address string, opts SelectOptions) (*Selection, error) {
	s.mu.Lock()
	s.selected = address
	if m, ok := s.memo[address]; ok {
		sel := m.selection
		looked := m.creatorLooked
		s.mu.Unlock()
		return s.fromMemo(ctx, address, sel, looked, opts), nil
	}
	base, found := s.findLocked(address)
	s.mu.Unlock()

	if !found {
		return nil, ErrTokenNotFound
	}

	start := time.Now()
	sel, stepsOK := s.enrich(ctx, base)
	if opts.WithCreator {
		sel.Creator = s.lookupCreator(ctx, base.Detail.Bond.Creator, sel.CreatorTokenCount, &sel.Failed)
	}
	sel.Outcome = SelectComplete
	if len(sel.Failed) > 0 {
		sel.Outcome = SelectPartial
	}

	s.mu.Lock()
	if s.selected != address {
		s.mu.Unlock()
		observability.RecordEnrichment(time.Since(start).Seconds(), true)
		s.logger.Debug().Str("token", address).Msg("discarding stale enrichment")
		sel.Outcome = SelectDiscarded
		return &sel, nil
	}
	if stepsOK {
		stored := sel
		stored.Outcome = ""
		s.memo[address] = &memoEntry{selection: stored, creatorLooked: opts.WithCreator}
	}
	s.spliceLocked(sel.Token)
	s.mu.Unlock()

	observability.RecordEnrichment(time.Since(start).Seconds(), false)
	return &sel, nil
}

// fromMemo serves a memoized selection. The creator profile is looked up
// once if it was never requested before, and hidden when not requested.
func (s *Scanner) fromMemo(ctx context.Context, address string, sel Selection, looked bool, opts SelectOptions) *Selection {
	sel.Outcome = SelectCached
	sel.Failed = nil

	if !opts.WithCreator {
		sel.Creator = nil
		return &sel
	}
	if looked || s.reputation == nil {
		return &sel
	}

	sel.Creator = s.lookupCreator(ctx, sel.Token.Detail.Bond.Creator, sel.CreatorTokenCount, &sel.Failed)

	s.mu.Lock()
	if m, ok := s.memo[address]; ok {
		m.selection.Creator = sel.Creator
		m.creatorLooked = true
	}
	s.mu.Unlock()
	return &sel
}

func (s *Scanner) findLocked(address string) (domain.ScannedToken, bool) {
	for _, t := range s.tokens {
		if t.Address() == address {
			return t, true
		}
	}
	return domain.ScannedToken{}, false
}

// spliceLocked replaces the held entry with the same address. Unmatched
// addresses are left untouched.
func (s *Scanner) spliceLocked(token domain.ScannedToken) {
	for i := range s.tokens {
		if s.tokens[i].Address() == token.Address() {
			s.tokens[i] = token
		}
	}
}

// enrich issues every enrichment fetch in parallel and recomputes full signals.
// stepsOK reports whether the curve steps were fetched.
func (s *Scanner) enrich(ctx context.Context, base domain.ScannedToken) (Selection, bool) {
	detail := base.Detail
	addr := detail.Address
	amount := signals.EstimateAmount(detail.CurrentSupply)
	sellable := detail.CurrentSupply != nil && detail.CurrentSupply.Sign() > 0

	var (
		steps        []domain.CurveStep
		priceChange  *domain.PriceChange
		buy          *domain.BuyQuote
		sell         *domain.SellQuote
		metadata     *domain.TokenMetadata
		creatorCount int
		royalties    *domain.Royalties

		failedMu sync.Mutex
		failed   []string
		wg       sync.WaitGroup
	)

	run := func(name string, fetch func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fetch(); err != nil {
				s.logger.Warn().Err(err).Str("fetch", name).Str("token", addr).Msg("enrichment fetch failed")
				observability.RecordEnrichmentFailure(name)
				failedMu.Lock()
				failed = append(failed, name)
				failedMu.Unlock()
			}
		}()
	}

	run(FetchSteps, func() (err error) {
		steps, err = s.enrichment.GetSteps(ctx, addr)
		return err
	})
	run(FetchPriceChange, func() (err error) {
		priceChange, err = s.enrichment.Get24hChange(ctx, addr)
		return err
	})
	run(FetchBuyQuote, func() (err error) {
		buy, err = s.enrichment.GetBuyQuote(ctx, addr, amount)
		return err
	})
	if sellable {
		run(FetchSellQuote, func() (err error) {
			sell, err = s.enrichment.GetSellQuote(ctx, addr, amount)
			return err
		})
	}
	run(FetchMetadata, func() (err error) {
		metadata, err = s.enrichment.GetMetadata(ctx, addr)
		return err
	})
	run(FetchCreatorCount, func() (err error) {
		creatorCount, err = s.enrichment.GetCreatorTokenCount(ctx, detail.Bond.Creator)
		return err
	})
	run(FetchRoyalties, func() (err error) {
		royalties, err = s.enrichment.GetRoyalties(ctx, addr)
		return err
	})
	wg.Wait()
	sort.Strings(failed)

	stepsOK := !contains(failed, FetchSteps)
	if stepsOK && steps != nil {
		detail.Steps = steps
	}
	if royalties != nil {
		detail.Bond.MintRoyalty = royalties.MintRoyalty
		detail.Bond.BurnRoyalty = royalties.BurnRoyalty
	}

	token := domain.ScannedToken{
		Detail:      detail,
		Signals:     signals.ComputeFull(detail, priceChange, buy, sell, s.now()),
		PriceChange: priceChange,
	}

	return Selection{
		Token:             token,
		Metadata:          metadata,
		CreatorTokenCount: creatorCount,
		Royalties:         royalties,
		ZapAvailable:      signals.IsZapAvailable(detail.ReserveSymbol),
		Badges:            signals.Badges(token, royalties),
		Failed:            failed,
	}, stepsOK
}

func (s *Scanner) lookupCreator(ctx context.Context, creator string, tokenCount int, failed *[]string) *domain.CreatorProfile {
	if s.reputation == nil || creator == "" {
		return nil
	}
	profile, err := s.reputation.Lookup(ctx, creator, tokenCount)
	if err != nil {
		s.logger.Warn().Err(err).Str("fetch", FetchCreatorProfile).Str("creator", creator).Msg("creator lookup failed")
		observability.RecordEnrichmentFailure(FetchCreatorProfile)
		*failed = append(*failed, FetchCreatorProfile)
		return nil
	}
	return profile
}

// CurrentPrice returns the token's current USD rate. It asks the enrichment
// source first and falls back to a memoized price change for the token.
func (s *Scanner) CurrentPrice(ctx context.Context, symbolOrAddress string) (decimal.Decimal, bool) {
	pc, err := s.enrichment.Get24hChange(ctx, symbolOrAddress)
	if err != nil {
		s.logger.Warn().Err(err).Str("token", symbolOrAddress).Msg("price fetch failed")
	}
	if err == nil && pc != nil && pc.CurrentUSDRate != nil {
		return decimal.NewFromFloat(*pc.CurrentUSDRate), true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for addr, m := range s.memo {
		if addr != symbolOrAddress && m.selection.Token.Detail.Symbol != symbolOrAddress {
			continue
		}
		if pc := m.selection.Token.PriceChange; pc != nil && pc.CurrentUSDRate != nil {
			return decimal.NewFromFloat(*pc.CurrentUSDRate), true
		}
	}
	return decimal.Zero, false
}

func cloneTokens(tokens []domain.ScannedToken) []domain.ScannedToken {
	out := make([]domain.ScannedToken, len(tokens))
	copy(out, tokens)
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

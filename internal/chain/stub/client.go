// Package stub provides an in-memory chain gateway for tests.
package stub

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"scry-scanner/internal/chain"
	"scry-scanner/internal/domain"
)

// ErrNotFound is returned when a token has no stubbed value.
var ErrNotFound = errors.New("not found")

// Client implements the listing and enrichment reads from maps.
// Errors keyed by chain method name are returned instead of data.
type Client struct {
	mu sync.Mutex

	Listed        []domain.ListedToken
	Steps         map[string][]domain.CurveStep
	Changes       map[string]*domain.PriceChange
	BuyQuotes     map[string]*domain.BuyQuote
	SellQuotes    map[string]*domain.SellQuote
	Metadata      map[string]*domain.TokenMetadata
	CreatorCounts map[string]int
	Royalties     map[string]*domain.Royalties
	Balances      map[string]*big.Int // keyed by token|wallet
	Errors        map[string]error    // keyed by method name

	// BeforeSteps, when set, runs at the start of GetSteps. Tests use it to
	// hold an enrichment in flight.
	BeforeSteps func(token string)
	// OnEnter, when set, runs at the start of every call before any data is read.
	OnEnter func(method string)

	calls       map[string]int
	quoteAmount map[string]*big.Int
}

// NewClient creates an empty stub client.
func NewClient() *Client {
	return &Client{
		Steps:         make(map[string][]domain.CurveStep),
		Changes:       make(map[string]*domain.PriceChange),
		BuyQuotes:     make(map[string]*domain.BuyQuote),
		SellQuotes:    make(map[string]*domain.SellQuote),
		Metadata:      make(map[string]*domain.TokenMetadata),
		CreatorCounts: make(map[string]int),
		Royalties:     make(map[string]*domain.Royalties),
		Balances:      make(map[string]*big.Int),
		Errors:        make(map[string]error),
		calls:         make(map[string]int),
		quoteAmount:   make(map[string]*big.Int),
	}
}

// SetError makes method fail with err. A nil err clears it.
func (c *Client) SetError(method string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.Errors, method)
		return
	}
	c.Errors[method] = err
}

// Calls returns how many times method was invoked.
func (c *Client) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// QuoteAmount returns the amount last passed to a buy estimation for token.
func (c *Client) QuoteAmount(token string) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quoteAmount[token]
}

func (c *Client) enter(method string) error {
	if c.OnEnter != nil {
		c.OnEnter(method)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[method]++
	return c.Errors[method]
}

// ListTokens returns the first count stubbed tokens, already newest first.
func (c *Client) ListTokens(_ context.Context, count int) ([]domain.ListedToken, error) {
	if err := c.enter(chain.MethodGetList); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n := min(count, len(c.Listed))
	out := make([]domain.ListedToken, n)
	copy(out, c.Listed[:n])
	return out, nil
}

// GetSteps returns stubbed curve steps.
func (c *Client) GetSteps(_ context.Context, token string) ([]domain.CurveStep, error) {
	if c.BeforeSteps != nil {
		c.BeforeSteps(token)
	}
	if err := c.enter(chain.MethodGetSteps); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	steps, ok := c.Steps[token]
	if !ok {
		return nil, ErrNotFound
	}
	return steps, nil
}

// SetPriceChange replaces the stubbed price change for symbolOrAddress.
func (c *Client) SetPriceChange(symbolOrAddress string, pc *domain.PriceChange) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Changes[symbolOrAddress] = pc
}

// Get24hChange returns the stubbed price change, nil when none is set.
func (c *Client) Get24hChange(_ context.Context, symbolOrAddress string) (*domain.PriceChange, error) {
	if err := c.enter(chain.MethodGet24hUSDRate); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Changes[symbolOrAddress], nil
}

// GetBuyQuote returns the stubbed buy quote and records the amount.
func (c *Client) GetBuyQuote(_ context.Context, token string, amount *big.Int) (*domain.BuyQuote, error) {
	if err := c.enter(chain.MethodGetBuyEstimation); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quoteAmount[token] = new(big.Int).Set(amount)
	q, ok := c.BuyQuotes[token]
	if !ok {
		return nil, ErrNotFound
	}
	return q, nil
}

// GetSellQuote returns the stubbed sell quote.
func (c *Client) GetSellQuote(_ context.Context, token string, _ *big.Int) (*domain.SellQuote, error) {
	if err := c.enter(chain.MethodGetSellEstimation); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.SellQuotes[token]
	if !ok {
		return nil, ErrNotFound
	}
	return q, nil
}

// GetMetadata returns stubbed metadata, nil when none is set.
func (c *Client) GetMetadata(_ context.Context, token string) (*domain.TokenMetadata, error) {
	if err := c.enter(chain.MethodGetMetadata); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Metadata[token], nil
}

// GetCreatorTokenCount returns the stubbed creator count.
func (c *Client) GetCreatorTokenCount(_ context.Context, creator string) (int, error) {
	if err := c.enter(chain.MethodGetTokensByCreator); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CreatorCounts[creator], nil
}

// GetRoyalties returns stubbed royalties.
func (c *Client) GetRoyalties(_ context.Context, token string) (*domain.Royalties, error) {
	if err := c.enter(chain.MethodGetDetail); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.Royalties[token]
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

// TokenBalance returns the stubbed balance, zero when unset.
func (c *Client) TokenBalance(_ context.Context, token, wallet string) (*big.Int, error) {
	if err := c.enter(chain.MethodBalanceOf); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.Balances[token+"|"+wallet]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

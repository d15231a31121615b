package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"scry-scanner/internal/domain"
)

// Gateway method names.
const (
	MethodTokenCount         = "bond_tokenCount"
	MethodGetList            = "bond_getList"
	MethodGetTokensByCreator = "bond_getTokensByCreator"
	MethodGetSteps           = "token_getSteps"
	MethodGet24hUSDRate      = "token_get24HoursUsdRate"
	MethodGetBuyEstimation   = "token_getBuyEstimation"
	MethodGetSellEstimation  = "token_getSellEstimation"
	MethodGetMetadata        = "token_getMintClubMetadata"
	MethodGetDetail          = "token_getDetail"
	MethodBalanceOf          = "erc20_balanceOf"
)

// creatorWindow bounds the creator token count lookup.
const creatorWindow = 1000

// TokenCount returns the total number of bonding-curve tokens.
func (c *HTTPClient) TokenCount(ctx context.Context) (int, error) {
	var count bigInt
	if err := c.call(ctx, MethodTokenCount, nil, &count); err != nil {
		return 0, err
	}
	return int(count.value().Int64()), nil
}

// ListTokens returns the newest count tokens, newest first. The gateway
// returns the window [max(0,total-count), total) oldest first.
func (c *HTTPClient) ListTokens(ctx context.Context, count int) ([]domain.ListedToken, error) {
	total, err := c.TokenCount(ctx)
	if err != nil {
		return nil, err
	}
	if total == 0 || count <= 0 {
		return []domain.ListedToken{}, nil
	}

	start := max(0, total-count)

	var result []listedTokenResult
	if err := c.call(ctx, MethodGetList, []interface{}{start, total}, &result); err != nil {
		return nil, err
	}

	listed := make([]domain.ListedToken, len(result))
	for i, r := range result {
		listed[len(result)-1-i] = r.toDomain()
	}
	return listed, nil
}

// GetSteps returns the token's bonding curve steps in order.
func (c *HTTPClient) GetSteps(ctx context.Context, token string) ([]domain.CurveStep, error) {
	var result []stepResult
	if err := c.call(ctx, MethodGetSteps, []interface{}{token}, &result); err != nil {
		return nil, err
	}

	steps := make([]domain.CurveStep, len(result))
	for i, r := range result {
		steps[i] = domain.CurveStep{RangeTo: r.RangeTo.value(), Price: r.Price.value()}
	}
	return steps, nil
}

// Get24hChange returns the 24h USD rate change. Returns nil when the
// gateway has no price source for the token.
func (c *HTTPClient) Get24hChange(ctx context.Context, symbolOrAddress string) (*domain.PriceChange, error) {
	var result *usdRateResult
	if err := c.call(ctx, MethodGet24hUSDRate, []interface{}{symbolOrAddress}, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return &domain.PriceChange{
		CurrentUSDRate:  result.CurrentUSDRate,
		PreviousUSDRate: result.PreviousUSDRate,
		ChangePercent:   result.ChangePercent,
	}, nil
}

// GetBuyQuote estimates the reserve cost of minting amount.
func (c *HTTPClient) GetBuyQuote(ctx context.Context, token string, amount *big.Int) (*domain.BuyQuote, error) {
	pair, err := c.estimation(ctx, MethodGetBuyEstimation, token, amount)
	if err != nil {
		return nil, err
	}
	return &domain.BuyQuote{Cost: pair[0], Royalty: pair[1]}, nil
}

// GetSellQuote estimates the reserve returned by burning amount.
func (c *HTTPClient) GetSellQuote(ctx context.Context, token string, amount *big.Int) (*domain.SellQuote, error) {
	pair, err := c.estimation(ctx, MethodGetSellEstimation, token, amount)
	if err != nil {
		return nil, err
	}
	return &domain.SellQuote{Returns: pair[0], Royalty: pair[1]}, nil
}

// estimation decodes a [amount, royalty] pair.
func (c *HTTPClient) estimation(ctx context.Context, method, token string, amount *big.Int) ([2]*big.Int, error) {
	var result []bigInt
	if err := c.call(ctx, method, []interface{}{token, amount.String()}, &result); err != nil {
		return [2]*big.Int{}, err
	}
	if len(result) != 2 {
		return [2]*big.Int{}, fmt.Errorf("%s: expected 2 values, got %d", method, len(result))
	}
	return [2]*big.Int{result[0].value(), result[1].value()}, nil
}

// GetMetadata returns off-chain metadata. Empty strings are normalized to nil.
func (c *HTTPClient) GetMetadata(ctx context.Context, token string) (*domain.TokenMetadata, error) {
	var raw json.RawMessage
	if err := c.call(ctx, MethodGetMetadata, []interface{}{token}, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var result metadataResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%s: decode metadata: %w", MethodGetMetadata, err)
	}
	return result.toDomain(), nil
}

// GetCreatorTokenCount counts tokens created by creator in the first 1000 entries.
func (c *HTTPClient) GetCreatorTokenCount(ctx context.Context, creator string) (int, error) {
	var result []json.RawMessage
	if err := c.call(ctx, MethodGetTokensByCreator, []interface{}{creator, 0, creatorWindow}, &result); err != nil {
		return 0, err
	}
	return len(result), nil
}

// GetRoyalties returns the token's mint and burn royalties; missing fields are zero.
func (c *HTTPClient) GetRoyalties(ctx context.Context, token string) (*domain.Royalties, error) {
	var result detailResult
	if err := c.call(ctx, MethodGetDetail, []interface{}{token}, &result); err != nil {
		return nil, err
	}

	r := &domain.Royalties{}
	if result.MintRoyalty != nil {
		r.MintRoyalty = *result.MintRoyalty
	}
	if result.BurnRoyalty != nil {
		r.BurnRoyalty = *result.BurnRoyalty
	}
	return r, nil
}

// TokenBalance returns the ERC-20 balance of wallet for token in base units.
func (c *HTTPClient) TokenBalance(ctx context.Context, token, wallet string) (*big.Int, error) {
	var result bigInt
	if err := c.call(ctx, MethodBalanceOf, []interface{}{token, wallet}, &result); err != nil {
		return nil, err
	}
	return result.value(), nil
}

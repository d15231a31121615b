package scanner

import (
	"context"
	"math/big"

	"scry-scanner/internal/domain"
)

// ListingSource supplies the newest tokens with cheaply available fields.
type ListingSource interface {
	// ListTokens returns up to count tokens, newest first.
	ListTokens(ctx context.Context, count int) ([]domain.ListedToken, error)
}

// EnrichmentSource supplies per-token data on demand. A nil result with a
// nil error means the upstream had nothing for that token.
type EnrichmentSource interface {
	GetSteps(ctx context.Context, token string) ([]domain.CurveStep, error)
	Get24hChange(ctx context.Context, symbolOrAddress string) (*domain.PriceChange, error)
	GetBuyQuote(ctx context.Context, token string, amount *big.Int) (*domain.BuyQuote, error)
	GetSellQuote(ctx context.Context, token string, amount *big.Int) (*domain.SellQuote, error)
	GetMetadata(ctx context.Context, token string) (*domain.TokenMetadata, error)
	GetCreatorTokenCount(ctx context.Context, creator string) (int, error)
	GetRoyalties(ctx context.Context, token string) (*domain.Royalties, error)
}

// ReputationSource resolves a creator address to a social profile.
// Returns nil when no identity is linked to the address.
type ReputationSource interface {
	Lookup(ctx context.Context, address string, tokenCount int) (*domain.CreatorProfile, error)
}

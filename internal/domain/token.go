package domain

import "math/big"

// OneToken is one whole unit of an 18-decimal token in base units.
var OneToken = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// ListedToken is a bonding-curve token as returned by the listing window.
// Only cheaply available fields are present; all amounts are base units.
type ListedToken struct {
	Creator          string   `json:"creator"`
	Token            string   `json:"token"` // token contract address
	Decimals         int      `json:"decimals"`
	Symbol           string   `json:"symbol"`
	Name             string   `json:"name"`
	CreatedAt        int64    `json:"createdAt"` // Unix seconds
	CurrentSupply    *big.Int `json:"currentSupply"`
	MaxSupply        *big.Int `json:"maxSupply"`
	PriceForNextMint *big.Int `json:"priceForNextMint"`
	ReserveToken     string   `json:"reserveToken"`
	ReserveDecimals  int      `json:"reserveDecimals"`
	ReserveSymbol    string   `json:"reserveSymbol"`
	ReserveName      string   `json:"reserveName"`
	ReserveBalance   *big.Int `json:"reserveBalance"`
}

// BondInfo holds the bond-side view of a token.
type BondInfo struct {
	Creator        string   `json:"creator"`
	MintRoyalty    int      `json:"mintRoyalty"` // basis points
	BurnRoyalty    int      `json:"burnRoyalty"` // basis points
	CreatedAt      int64    `json:"createdAt"`   // Unix seconds
	ReserveToken   string   `json:"reserveToken"`
	ReserveBalance *big.Int `json:"reserveBalance"`
}

// CurveStep is one segment of the bonding curve: every unit minted up to
// RangeTo costs Price.
type CurveStep struct {
	RangeTo *big.Int `json:"rangeTo"`
	Price   *big.Int `json:"price"`
}

// TokenDetail is the scanner's working record for a token.
// Steps is empty until the token has been enriched.
type TokenDetail struct {
	Symbol        string      `json:"symbol"`
	Name          string      `json:"name"`
	Address       string      `json:"address"`
	Bond          BondInfo    `json:"bond"`
	MaxSupply     *big.Int    `json:"maxSupply"`
	CurrentSupply *big.Int    `json:"currentSupply"`
	Steps         []CurveStep `json:"steps"`
	CurrentPrice  *big.Int    `json:"currentPrice"`
	ReserveSymbol string      `json:"reserveSymbol"`
}

// IsEnriched reports whether curve steps have been loaded.
func (d *TokenDetail) IsEnriched() bool {
	return len(d.Steps) > 0
}

// PriceChange is the 24h USD rate movement. Any field may be nil when no
// off-chain price source matched the token.
type PriceChange struct {
	CurrentUSDRate  *float64 `json:"currentUsdRate"`
	PreviousUSDRate *float64 `json:"previousUsdRate"`
	ChangePercent   *float64 `json:"changePercent"`
}

// BuyQuote is the estimated reserve cost of minting an amount.
type BuyQuote struct {
	Cost    *big.Int `json:"cost"`
	Royalty *big.Int `json:"royalty"`
}

// SellQuote is the estimated reserve return of burning an amount.
type SellQuote struct {
	Returns *big.Int `json:"returns"`
	Royalty *big.Int `json:"royalty"`
}

// Royalties are the mint and burn fees in basis points.
type Royalties struct {
	MintRoyalty int `json:"mintRoyalty"`
	BurnRoyalty int `json:"burnRoyalty"`
}

// Total returns mint + burn royalty in basis points.
func (r Royalties) Total() int {
	return r.MintRoyalty + r.BurnRoyalty
}

// TokenMetadata is the off-chain metadata attached to a token.
// Every field is nullable; empty strings are normalized to nil at the boundary.
type TokenMetadata struct {
	CreatorComment   *string `json:"creatorComment"`
	Website          *string `json:"website"`
	DistributionPlan *string `json:"distributionPlan"`
	Logo             *string `json:"logo"`
	BackgroundImage  *string `json:"backgroundImage"`
	ExternalDexURL   *string `json:"externalDexUrl"`
}

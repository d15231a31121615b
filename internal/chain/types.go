package chain

import (
	"fmt"
	"math/big"
	"strings"

	"scry-scanner/internal/domain"
)

// bigInt decodes a base-unit integer sent as a decimal string, a 0x-prefixed
// hex string, or a bare JSON number. null and "" decode to zero.
type bigInt struct {
	*big.Int
}

func (b *bigInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		b.Int = new(big.Int)
		return nil
	}

	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	v, ok := new(big.Int).SetString(s, base)
	if !ok {
		return fmt.Errorf("invalid integer %q", string(data))
	}
	b.Int = v
	return nil
}

// value returns the decoded integer, zero if unset.
func (b bigInt) value() *big.Int {
	if b.Int == nil {
		return new(big.Int)
	}
	return b.Int
}

// listedTokenResult is one entry of bond_getList.
type listedTokenResult struct {
	Creator          string `json:"creator"`
	Token            string `json:"token"`
	Decimals         int    `json:"decimals"`
	Symbol           string `json:"symbol"`
	Name             string `json:"name"`
	CreatedAt        int64  `json:"createdAt"`
	CurrentSupply    bigInt `json:"currentSupply"`
	MaxSupply        bigInt `json:"maxSupply"`
	PriceForNextMint bigInt `json:"priceForNextMint"`
	ReserveToken     string `json:"reserveToken"`
	ReserveDecimals  int    `json:"reserveDecimals"`
	ReserveSymbol    string `json:"reserveSymbol"`
	ReserveName      string `json:"reserveName"`
	ReserveBalance   bigInt `json:"reserveBalance"`
}

func (r listedTokenResult) toDomain() domain.ListedToken {
	return domain.ListedToken{
		Creator:          r.Creator,
		Token:            r.Token,
		Decimals:         r.Decimals,
		Symbol:           r.Symbol,
		Name:             r.Name,
		CreatedAt:        r.CreatedAt,
		CurrentSupply:    r.CurrentSupply.value(),
		MaxSupply:        r.MaxSupply.value(),
		PriceForNextMint: r.PriceForNextMint.value(),
		ReserveToken:     r.ReserveToken,
		ReserveDecimals:  r.ReserveDecimals,
		ReserveSymbol:    r.ReserveSymbol,
		ReserveName:      r.ReserveName,
		ReserveBalance:   r.ReserveBalance.value(),
	}
}

// stepResult is one entry of token_getSteps.
type stepResult struct {
	RangeTo bigInt `json:"rangeTo"`
	Price   bigInt `json:"price"`
}

// usdRateResult is the token_get24HoursUsdRate payload.
type usdRateResult struct {
	CurrentUSDRate  *float64 `json:"currentUsdRate"`
	PreviousUSDRate *float64 `json:"previousUsdRate"`
	ChangePercent   *float64 `json:"changePercent"`
}

// metadataResult is the token_getMintClubMetadata payload.
type metadataResult struct {
	CreatorComment   string `json:"creatorComment"`
	Website          string `json:"website"`
	DistributionPlan string `json:"distributionPlan"`
	Logo             string `json:"logo"`
	BackgroundImage  string `json:"backgroundImage"`
	ExternalDexURL   string `json:"externalDexUrl"`
}

func (m metadataResult) toDomain() *domain.TokenMetadata {
	return &domain.TokenMetadata{
		CreatorComment:   nonEmpty(m.CreatorComment),
		Website:          nonEmpty(m.Website),
		DistributionPlan: nonEmpty(m.DistributionPlan),
		Logo:             nonEmpty(m.Logo),
		BackgroundImage:  nonEmpty(m.BackgroundImage),
		ExternalDexURL:   nonEmpty(m.ExternalDexURL),
	}
}

// detailResult is the subset of token_getDetail used for royalties.
type detailResult struct {
	MintRoyalty *int `json:"mintRoyalty"`
	BurnRoyalty *int `json:"burnRoyalty"`
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

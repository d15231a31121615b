package signals

import (
	"math/big"

	"scry-scanner/internal/domain"
)

// ListedToDetail converts a listing record into an unenriched TokenDetail.
// Royalties are zero and Steps is empty until enrichment fills them.
func ListedToDetail(l domain.ListedToken) domain.TokenDetail {
	return domain.TokenDetail{
		Symbol:  l.Symbol,
		Name:    l.Name,
		Address: l.Token,
		Bond: domain.BondInfo{
			Creator:        l.Creator,
			CreatedAt:      l.CreatedAt,
			ReserveToken:   l.ReserveToken,
			ReserveBalance: copyInt(l.ReserveBalance),
		},
		MaxSupply:     copyInt(l.MaxSupply),
		CurrentSupply: copyInt(l.CurrentSupply),
		Steps:         []domain.CurveStep{},
		CurrentPrice:  copyInt(l.PriceForNextMint),
		ReserveSymbol: l.ReserveSymbol,
	}
}

// EstimateAmount picks the reference trade size for buy/sell quotes:
// one whole token for empty or large supplies, 1% of supply otherwise,
// and never less than one base unit.
func EstimateAmount(currentSupply *big.Int) *big.Int {
	if isZero(currentSupply) {
		return new(big.Int).Set(domain.OneToken)
	}
	onePercent := new(big.Int).Quo(currentSupply, big.NewInt(100))
	if onePercent.Cmp(domain.OneToken) > 0 {
		return new(big.Int).Set(domain.OneToken)
	}
	if currentSupply.Cmp(big.NewInt(100)) > 0 {
		return onePercent
	}
	return big.NewInt(1)
}

// ZapReserveSymbol is the only reserve that supports paying with the native asset.
const ZapReserveSymbol = "WETH"

// IsZapAvailable reports whether a token can be bought with the native asset.
func IsZapAvailable(reserveSymbol string) bool {
	return reserveSymbol == ZapReserveSymbol
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

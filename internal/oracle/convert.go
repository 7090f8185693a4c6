package oracle

import (
	"math/big"

	"github.com/shopspring/decimal"
)

var weiPerEth = decimal.NewFromBigInt(big.NewInt(1), 18)

// WeiToEth converts a wei amount to a decimal ETH value for display. Ledger
// amounts stay integers everywhere else; this is the one place they become
// decimals, and only on the way to a screen.
func WeiToEth(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, 0).Div(weiPerEth)
}

// EthToWei converts a decimal ETH amount to integer wei, truncating any
// precision below one wei.
func EthToWei(eth decimal.Decimal) *big.Int {
	return eth.Mul(weiPerEth).BigInt()
}

// WeiToFiat converts a wei amount to fiat using the cached rate.
func WeiToFiat(wei *big.Int, rate Rate) decimal.Decimal {
	return WeiToEth(wei).Mul(rate.Value)
}

// FiatToEth converts a fiat amount to ETH using the cached rate, zero when
// the rate is unknown.
func FiatToEth(fiat decimal.Decimal, rate Rate) decimal.Decimal {
	if rate.Value.IsZero() {
		return decimal.Zero
	}
	return fiat.Div(rate.Value)
}

// Package units provides the fixed-point conversions used throughout the fund
// ledger. Three units are involved: currency cents, asset base units (wei) and
// fund shares. Every conversion truncates toward zero so repeated conversions
// can never create value for the party on the other side of the fund.
package units

import (
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/ndewijer/fund-ledger/internal/apperrors"
)

const (
	// ParNavPerShare is the NAV per share a new share class starts at.
	ParNavPerShare = 10000

	// ShareDecimals is the number of implied decimals of a share balance.
	ShareDecimals = 4

	// SecondsPerYear is the fee accrual year (365 days).
	SecondsPerYear = 31536000
)

var (
	// NavScale is the fixed-point scale of a NAV per share.
	NavScale = decimal.NewFromInt(10000)

	// BpsScale is the denominator of a basis point rate.
	BpsScale = decimal.NewFromInt(10000)

	// WeiPerEth is the number of asset base units in one whole asset unit.
	WeiPerEth = decimal.New(1, 18)

	// SecondsInYear is SecondsPerYear as a decimal.
	SecondsInYear = decimal.NewFromInt(SecondsPerYear)
)

// Quo divides a by b and truncates the result toward zero.
// b must not be zero.
func Quo(a, b decimal.Decimal) decimal.Decimal {
	q, _ := a.QuoRem(b, 0)
	return q
}

// MulDiv returns trunc(a*b/c). The product is formed before dividing.
func MulDiv(a, b, c decimal.Decimal) decimal.Decimal {
	return Quo(a.Mul(b), c)
}

// CurrencyToAsset converts cents into asset base units at usdEth cents per
// whole asset unit.
func CurrencyToAsset(cents, usdEth decimal.Decimal) (decimal.Decimal, error) {
	if !usdEth.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: exchange rate must be positive, got %s", apperrors.ErrInvariantViolation, usdEth)
	}
	return MulDiv(cents, WeiPerEth, usdEth), nil
}

// AssetToCurrency converts asset base units into cents at usdEth cents per
// whole asset unit.
func AssetToCurrency(wei, usdEth decimal.Decimal) (decimal.Decimal, error) {
	if !usdEth.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: exchange rate must be positive, got %s", apperrors.ErrInvariantViolation, usdEth)
	}
	return MulDiv(wei, usdEth, WeiPerEth), nil
}

// ToShares converts a currency amount into shares at navPerShare.
func ToShares(cents, navPerShare decimal.Decimal) (decimal.Decimal, error) {
	if !navPerShare.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: nav per share must be positive, got %s", apperrors.ErrInvariantViolation, navPerShare)
	}
	return MulDiv(cents, NavScale, navPerShare), nil
}

// ToValue converts shares into their currency value at navPerShare.
func ToValue(shares, navPerShare decimal.Decimal) (decimal.Decimal, error) {
	if !navPerShare.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: nav per share must be positive, got %s", apperrors.ErrInvariantViolation, navPerShare)
	}
	return MulDiv(shares, navPerShare, NavScale), nil
}

// AssetToShares converts asset base units to currency first and then to shares.
func AssetToShares(wei, usdEth, navPerShare decimal.Decimal) (decimal.Decimal, error) {
	cents, err := AssetToCurrency(wei, usdEth)
	if err != nil {
		return decimal.Zero, err
	}
	return ToShares(cents, navPerShare)
}

// SharesToAsset values shares in currency first and then converts to asset base units.
func SharesToAsset(shares, navPerShare, usdEth decimal.Decimal) (decimal.Decimal, error) {
	cents, err := ToValue(shares, navPerShare)
	if err != nil {
		return decimal.Zero, err
	}
	return CurrencyToAsset(cents, usdEth)
}

// FormatCents renders a cent amount for display, e.g. "$1,234.56".
func FormatCents(cents decimal.Decimal) string {
	return money.New(cents.IntPart(), money.USD).Display()
}

// FormatShares renders a share balance with its implied decimals, e.g. "12.3456".
func FormatShares(shares decimal.Decimal) string {
	return shares.Shift(-ShareDecimals).StringFixed(ShareDecimals)
}

package model

import (
	"github.com/shopspring/decimal"
)

// InvestorType is the tri-state investor kind. The numeric values are part
// of the public interface.
type InvestorType int

const (
	InvestorTypeNone     InvestorType = 0
	InvestorTypeAsset    InvestorType = 1
	InvestorTypeCurrency InvestorType = 2
)

// Valid reports whether t is a type an investor can be whitelisted with.
func (t InvestorType) Valid() bool {
	return t == InvestorTypeAsset || t == InvestorTypeCurrency
}

// Unit returns the settlement unit of the investor's pending amounts.
func (t InvestorType) Unit() Unit {
	if t == InvestorTypeAsset {
		return UnitAsset
	}
	return UnitCurrency
}

func (t InvestorType) String() string {
	switch t {
	case InvestorTypeAsset:
		return "asset"
	case InvestorTypeCurrency:
		return "currency"
	default:
		return "none"
	}
}

// Investor is one entry of the investor ledger. PendingSubscription and
// PendingWithdrawal are denominated in the unit of the investor's type.
type Investor struct {
	Address                 string           `json:"address"`
	Type                    InvestorType     `json:"investorType"`
	ShareClass              int              `json:"shareClass"`
	PendingSubscription     decimal.Decimal  `json:"pendingSubscription"`
	SharesOwned             decimal.Decimal  `json:"sharesOwned"`
	SharesPendingRedemption decimal.Decimal  `json:"sharesPendingRedemption"`
	PendingWithdrawal       decimal.Decimal  `json:"pendingWithdrawal"`
	Allocation              *decimal.Decimal `json:"allocation,omitempty"`
	Position                int              `json:"-"`
}

// IsEmpty reports whether every balance of the investor is zero.
func (i *Investor) IsEmpty() bool {
	return i.PendingSubscription.IsZero() &&
		i.SharesOwned.IsZero() &&
		i.SharesPendingRedemption.IsZero() &&
		i.PendingWithdrawal.IsZero()
}

// InvestorStatement is an investor record valued at its share class NAV.
type InvestorStatement struct {
	Investor
	NavPerShare              decimal.Decimal `json:"navPerShare"`
	LastCalc                 int64           `json:"lastCalc"`
	HoldingValueCents        decimal.Decimal `json:"holdingValueCents"`
	HoldingValue             string          `json:"holdingValue"`
	Shares                   string          `json:"shares"`
	PendingWithdrawalDisplay string          `json:"pendingWithdrawalDisplay,omitempty"`
}

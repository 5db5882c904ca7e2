package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Unit identifies the settlement unit an amount is denominated in.
type Unit string

const (
	// UnitAsset amounts are asset base units (wei).
	UnitAsset Unit = "asset"
	// UnitCurrency amounts are currency cents.
	UnitCurrency Unit = "currency"
)

// Valid reports whether u is a known unit.
func (u Unit) Valid() bool {
	return u == UnitAsset || u == UnitCurrency
}

// Fund is the singleton fund record. It carries the fund terms, the
// fund-level aggregates that must always reconcile with the investor and
// share class records, and the settlement balances held by the fund.
type Fund struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`

	MinInitialSubscriptionCents decimal.Decimal `json:"minInitialSubscriptionCents"`
	MinSubscriptionCents        decimal.Decimal `json:"minSubscriptionCents"`
	MinRedemptionShares         decimal.Decimal `json:"minRedemptionShares"`

	TotalShareSupply                 decimal.Decimal `json:"totalShareSupply"`
	TotalPendingSubscriptionAsset    decimal.Decimal `json:"totalPendingSubscriptionAsset"`
	TotalPendingSubscriptionCurrency decimal.Decimal `json:"totalPendingSubscriptionCurrency"`
	TotalSharesPendingRedemption     decimal.Decimal `json:"totalSharesPendingRedemption"`
	TotalPendingWithdrawalAsset      decimal.Decimal `json:"totalPendingWithdrawalAsset"`
	TotalPendingWithdrawalCurrency   decimal.Decimal `json:"totalPendingWithdrawalCurrency"`

	BalanceAsset    decimal.Decimal `json:"balanceAsset"`
	BalanceCurrency decimal.Decimal `json:"balanceCurrency"`

	InvestorCount int       `json:"investorCount"`
	CreatedAt     time.Time `json:"createdAt"`
}

// PendingSubscription returns the fund-level pending subscription total in u.
func (f *Fund) PendingSubscription(u Unit) decimal.Decimal {
	if u == UnitAsset {
		return f.TotalPendingSubscriptionAsset
	}
	return f.TotalPendingSubscriptionCurrency
}

// AddPendingSubscription adjusts the pending subscription total in u by delta.
func (f *Fund) AddPendingSubscription(u Unit, delta decimal.Decimal) {
	if u == UnitAsset {
		f.TotalPendingSubscriptionAsset = f.TotalPendingSubscriptionAsset.Add(delta)
		return
	}
	f.TotalPendingSubscriptionCurrency = f.TotalPendingSubscriptionCurrency.Add(delta)
}

// PendingWithdrawal returns the fund-level pending withdrawal total in u.
func (f *Fund) PendingWithdrawal(u Unit) decimal.Decimal {
	if u == UnitAsset {
		return f.TotalPendingWithdrawalAsset
	}
	return f.TotalPendingWithdrawalCurrency
}

// AddPendingWithdrawal adjusts the pending withdrawal total in u by delta.
func (f *Fund) AddPendingWithdrawal(u Unit, delta decimal.Decimal) {
	if u == UnitAsset {
		f.TotalPendingWithdrawalAsset = f.TotalPendingWithdrawalAsset.Add(delta)
		return
	}
	f.TotalPendingWithdrawalCurrency = f.TotalPendingWithdrawalCurrency.Add(delta)
}

// Balance returns the settlement balance held by the fund in u.
func (f *Fund) Balance(u Unit) decimal.Decimal {
	if u == UnitAsset {
		return f.BalanceAsset
	}
	return f.BalanceCurrency
}

// AddBalance adjusts the settlement balance in u by delta.
func (f *Fund) AddBalance(u Unit, delta decimal.Decimal) {
	if u == UnitAsset {
		f.BalanceAsset = f.BalanceAsset.Add(delta)
		return
	}
	f.BalanceCurrency = f.BalanceCurrency.Add(delta)
}

// Available returns the settled funds in u that are not owed to anyone:
// the balance less pending subscriptions and pending withdrawals.
func (f *Fund) Available(u Unit) decimal.Decimal {
	return f.Balance(u).Sub(f.PendingSubscription(u)).Sub(f.PendingWithdrawal(u))
}

// FundTerms are the fund settings applied when the fund is first initialized.
type FundTerms struct {
	Name                        string
	Symbol                      string
	MinInitialSubscriptionCents decimal.Decimal
	MinSubscriptionCents        decimal.Decimal
	MinRedemptionShares         decimal.Decimal
	ShareClasses                []FeeTerms
}

// InvariantReport is the result of reconciling the ledger totals.
type InvariantReport struct {
	Reconciled bool     `json:"reconciled"`
	Mismatches []string `json:"mismatches"`
}

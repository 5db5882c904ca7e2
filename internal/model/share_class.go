package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeeTerms are the basis point fee rates of a share class.
type FeeTerms struct {
	AdminFeeBps   int `json:"adminFeeBps" yaml:"admin_fee_bps"`
	MgmtFeeBps    int `json:"mgmtFeeBps" yaml:"mgmt_fee_bps"`
	PerformFeeBps int `json:"performFeeBps" yaml:"perform_fee_bps"`
}

// ShareClass is a fee-and-supply isolated partition of the fund.
// Fee and loss balances are in currency cents; NavPerShare is scaled by 10000.
type ShareClass struct {
	ID int `json:"id"`
	FeeTerms

	ShareSupply            decimal.Decimal `json:"shareSupply"`
	LastCalc               time.Time       `json:"lastCalc"`
	NavPerShare            decimal.Decimal `json:"navPerShare"`
	LossCarryforward       decimal.Decimal `json:"lossCarryforward"`
	AccumulatedMgmtFees    decimal.Decimal `json:"accumulatedMgmtFees"`
	AccumulatedAdminFees   decimal.Decimal `json:"accumulatedAdminFees"`
	AccumulatedPerformFees decimal.Decimal `json:"accumulatedPerformFees"`
}

// NavResult is the outcome of a NAV calculation for one share class.
type NavResult struct {
	ShareClass           int             `json:"shareClass"`
	LastCalc             int64           `json:"lastCalc"`
	NavPerShare          decimal.Decimal `json:"navPerShare"`
	LossCarryforward     decimal.Decimal `json:"lossCarryforward"`
	AccumulatedMgmtFees  decimal.Decimal `json:"accumulatedMgmtFees"`
	AccumulatedAdminFees decimal.Decimal `json:"accumulatedAdminFees"`
}

// NavSnapshot records the state of a share class after a NAV calculation.
type NavSnapshot struct {
	ID                     string          `json:"id"`
	ShareClass             int             `json:"shareClass"`
	GrossValue             decimal.Decimal `json:"grossValue"`
	ShareSupply            decimal.Decimal `json:"shareSupply"`
	NavPerShare            decimal.Decimal `json:"navPerShare"`
	LossCarryforward       decimal.Decimal `json:"lossCarryforward"`
	AccumulatedMgmtFees    decimal.Decimal `json:"accumulatedMgmtFees"`
	AccumulatedAdminFees   decimal.Decimal `json:"accumulatedAdminFees"`
	AccumulatedPerformFees decimal.Decimal `json:"accumulatedPerformFees"`
	CalculatedAt           time.Time       `json:"calculatedAt"`
}

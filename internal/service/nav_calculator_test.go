package service

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/model"
)

var calcStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func assertDec(t *testing.T, want int64, got decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, got.Equal(d(want)), "%s: want %d, got %s", field, want, got)
}

// parClass is a class of 100 shares (1e6 units at 4 decimals) priced at par.
func parClass(terms model.FeeTerms) model.ShareClass {
	return model.ShareClass{
		ID:                     1,
		FeeTerms:               terms,
		ShareSupply:            d(1000000),
		LastCalc:               calcStart,
		NavPerShare:            d(10000),
		LossCarryforward:       d(0),
		AccumulatedMgmtFees:    d(0),
		AccumulatedAdminFees:   d(0),
		AccumulatedPerformFees: d(0),
	}
}

func accrue(t *testing.T, sc model.ShareClass, gross int64, now time.Time) ClassAccrual {
	t.Helper()
	a, err := AccrueClass(ClassAccrualInput{Class: sc, GrossValue: d(gross), Now: now})
	require.NoError(t, err)
	return a
}

func TestAccrueClass_PerformanceFee(t *testing.T) {
	// Value doubles with a 20% performance fee: the fee takes a fifth of the gain.
	a := accrue(t, parClass(model.FeeTerms{PerformFeeBps: 2000}), 2000000, calcStart)

	assertDec(t, 18000, a.Class.NavPerShare, "navPerShare")
	assertDec(t, 200000, a.Class.AccumulatedMgmtFees, "accumulatedMgmtFees")
	assertDec(t, 200000, a.Class.AccumulatedPerformFees, "accumulatedPerformFees")
	assertDec(t, 0, a.Class.LossCarryforward, "lossCarryforward")
	assertDec(t, 200000, a.PerformanceFee, "performanceFee")
	assertDec(t, 1000000, a.GainLoss, "gainLoss")
}

func TestAccrueClass_ManagementFee(t *testing.T) {
	oneYear := calcStart.Add(365 * 24 * time.Hour)
	a := accrue(t, parClass(model.FeeTerms{MgmtFeeBps: 200}), 1000000, oneYear)

	// 2% of 1,000,000 cents for a full year.
	assertDec(t, 20000, a.ManagementFee, "managementFee")
	assertDec(t, 9800, a.Class.NavPerShare, "navPerShare")
	assertDec(t, 20000, a.Class.AccumulatedMgmtFees, "accumulatedMgmtFees")
	assertDec(t, 20000, a.Class.LossCarryforward, "lossCarryforward")
	assert.Equal(t, oneYear, a.Class.LastCalc)

	t.Run("recalculating with no elapsed time changes nothing", func(t *testing.T) {
		again := accrue(t, a.Class, 1000000, oneYear)
		assertDec(t, 9800, again.Class.NavPerShare, "navPerShare")
		assertDec(t, 20000, again.Class.AccumulatedMgmtFees, "accumulatedMgmtFees")
		assertDec(t, 20000, again.Class.LossCarryforward, "lossCarryforward")
		assertDec(t, 0, again.ManagementFee, "managementFee")
		assertDec(t, 0, again.GainLoss, "gainLoss")
	})
}

func TestAccrueClass_AdminFeeIsNotAPerformanceBase(t *testing.T) {
	halfYear := calcStart.Add(time.Duration(31536000/2) * time.Second)
	a := accrue(t, parClass(model.FeeTerms{AdminFeeBps: 100, PerformFeeBps: 2000}), 1000000, halfYear)

	assertDec(t, 5000, a.AdminFee, "adminFee")
	assertDec(t, 5000, a.Class.AccumulatedAdminFees, "accumulatedAdminFees")
	assertDec(t, 0, a.PerformanceFee, "performanceFee")
	assertDec(t, 9950, a.Class.NavPerShare, "navPerShare")
}

func TestAccrueClass_HighWaterMark(t *testing.T) {
	terms := model.FeeTerms{PerformFeeBps: 2000}

	// Lose 20%.
	down := accrue(t, parClass(terms), 800000, calcStart)
	assertDec(t, 8000, down.Class.NavPerShare, "navPerShare after loss")
	assertDec(t, 200000, down.Class.LossCarryforward, "lossCarryforward after loss")
	assertDec(t, 0, down.PerformanceFee, "performanceFee after loss")

	// Recover to 110%: only the 100,000 above the previous high is charged.
	up := accrue(t, down.Class, 1100000, calcStart)
	assertDec(t, 200000, up.LossPayback, "lossPayback")
	assertDec(t, 20000, up.PerformanceFee, "performanceFee")
	assertDec(t, 10800, up.Class.NavPerShare, "navPerShare after recovery")
	assertDec(t, 0, up.Class.LossCarryforward, "lossCarryforward after recovery")
	assertDec(t, 20000, up.Class.AccumulatedPerformFees, "accumulatedPerformFees")

	t.Run("recovering exactly to the previous high charges nothing", func(t *testing.T) {
		a := accrue(t, down.Class, 1000000, calcStart)

		assertDec(t, 200000, a.LossPayback, "lossPayback")
		assertDec(t, 0, a.PerformanceFee, "performanceFee")
		assertDec(t, 0, a.Class.LossCarryforward, "lossCarryforward")
		assertDec(t, 10000, a.Class.NavPerShare, "navPerShare")
	})
}

func TestAccrueClass_TruncatesFractionalNav(t *testing.T) {
	// 100.0001 shares at 1.2345 leaves a fraction of a cent in supply * navPerShare.
	sc := parClass(model.FeeTerms{PerformFeeBps: 2000})
	sc.ShareSupply = d(1000001)
	sc.NavPerShare = d(12345)
	sc.AccumulatedMgmtFees = d(10)
	sc.AccumulatedPerformFees = d(10)

	a := accrue(t, sc, 1234000, calcStart)

	assertDec(t, -511, a.GainLoss, "gainLoss")
	assertDec(t, 10, a.Clawback, "clawback")
	assertDec(t, 461, a.Class.LossCarryforward, "lossCarryforward")
	assertDec(t, 12339, a.Class.NavPerShare, "navPerShare")
	assertDec(t, 0, a.Class.AccumulatedMgmtFees, "accumulatedMgmtFees")
	assertDec(t, 0, a.Class.AccumulatedPerformFees, "accumulatedPerformFees")
	for field, v := range map[string]decimal.Decimal{
		"gainLoss":               a.GainLoss,
		"lossCarryforward":       a.Class.LossCarryforward,
		"navPerShare":            a.Class.NavPerShare,
		"accumulatedMgmtFees":    a.Class.AccumulatedMgmtFees,
		"accumulatedPerformFees": a.Class.AccumulatedPerformFees,
	} {
		assert.True(t, v.IsInteger(), "%s is not an integer: %s", field, v)
	}
}

func TestAccrueClass_Clawback(t *testing.T) {
	terms := model.FeeTerms{PerformFeeBps: 2000}
	peak := accrue(t, parClass(terms), 2000000, calcStart).Class

	t.Run("partial clawback absorbs the loss", func(t *testing.T) {
		a := accrue(t, peak, 1900000, calcStart)

		assertDec(t, 100000, a.Clawback, "clawback")
		assertDec(t, 18000, a.Class.NavPerShare, "navPerShare")
		assertDec(t, 100000, a.Class.AccumulatedPerformFees, "accumulatedPerformFees")
		assertDec(t, 100000, a.Class.AccumulatedMgmtFees, "accumulatedMgmtFees")
		assertDec(t, 0, a.Class.LossCarryforward, "lossCarryforward")
	})

	t.Run("clawback is capped at fees charged", func(t *testing.T) {
		a := accrue(t, peak, 1500000, calcStart)

		assertDec(t, 200000, a.Clawback, "clawback")
		assertDec(t, 15000, a.Class.NavPerShare, "navPerShare")
		assertDec(t, 0, a.Class.AccumulatedPerformFees, "accumulatedPerformFees")
		assertDec(t, 0, a.Class.AccumulatedMgmtFees, "accumulatedMgmtFees")
		assertDec(t, 0, a.Class.LossCarryforward, "lossCarryforward")
	})

	t.Run("gross value is split between price and fees", func(t *testing.T) {
		a := accrue(t, peak, 1900000, calcStart)
		nav := a.Class.ShareSupply.Mul(a.Class.NavPerShare).Div(d(10000))
		assertDec(t, 1900000, nav.Add(a.Class.AccumulatedMgmtFees), "nav + fees")
	})
}

func TestAccrueClass_EdgeCases(t *testing.T) {
	t.Run("empty class only moves its clock", func(t *testing.T) {
		sc := parClass(model.FeeTerms{MgmtFeeBps: 200, PerformFeeBps: 2000})
		sc.ShareSupply = d(0)
		later := calcStart.Add(24 * time.Hour)

		a := accrue(t, sc, 0, later)

		assertDec(t, 10000, a.Class.NavPerShare, "navPerShare")
		assertDec(t, 0, a.Class.AccumulatedMgmtFees, "accumulatedMgmtFees")
		assert.Equal(t, later, a.Class.LastCalc)
	})

	t.Run("clock going backwards is rejected", func(t *testing.T) {
		_, err := AccrueClass(ClassAccrualInput{
			Class:      parClass(model.FeeTerms{}),
			GrossValue: d(1000000),
			Now:        calcStart.Add(-time.Second),
		})
		assert.True(t, errors.Is(err, apperrors.ErrInvariantViolation))
	})

	t.Run("worthless class is rejected", func(t *testing.T) {
		_, err := AccrueClass(ClassAccrualInput{
			Class:      parClass(model.FeeTerms{}),
			GrossValue: d(0),
			Now:        calcStart,
		})
		assert.True(t, errors.Is(err, apperrors.ErrNonPositiveNav))
		assert.True(t, errors.Is(err, apperrors.ErrInvariantViolation))
	})

	t.Run("input class is not modified", func(t *testing.T) {
		sc := parClass(model.FeeTerms{PerformFeeBps: 2000})
		_ = accrue(t, sc, 2000000, calcStart)
		assertDec(t, 10000, sc.NavPerShare, "navPerShare")
	})
}

func TestAllocateGross(t *testing.T) {
	a := parClass(model.FeeTerms{})
	a.ID = 0
	b := parClass(model.FeeTerms{})
	b.ID = 1
	b.ShareSupply = d(3000000)
	empty := parClass(model.FeeTerms{})
	empty.ID = 2
	empty.ShareSupply = d(0)

	classes := []model.ShareClass{a, b, empty}

	gross := AllocateGross(classes, d(8000000))
	assertDec(t, 2000000, gross[0], "class 0")
	assertDec(t, 6000000, gross[1], "class 1")
	assertDec(t, 0, gross[2], "empty class")

	t.Run("shares are truncated", func(t *testing.T) {
		gross := AllocateGross(classes, d(10))
		assertDec(t, 2, gross[0], "class 0")
		assertDec(t, 7, gross[1], "class 1")
	})

	t.Run("accrued fees count toward the weight", func(t *testing.T) {
		withFees := a
		withFees.AccumulatedMgmtFees = d(2000000)
		gross := AllocateGross([]model.ShareClass{withFees, b}, d(6000000))
		assertDec(t, 3000000, gross[0], "class 0")
		assertDec(t, 3000000, gross[1], "class 1")
	})

	t.Run("no shares anywhere", func(t *testing.T) {
		gross := AllocateGross([]model.ShareClass{empty}, d(100))
		assertDec(t, 0, gross[2], "empty class")
	})
}

func TestGrossAssetValue(t *testing.T) {
	fund := model.Fund{
		BalanceAsset:                   decimal.New(2, 18),
		TotalPendingSubscriptionAsset:  decimal.New(1, 18),
		BalanceCurrency:                d(50000),
		TotalPendingWithdrawalCurrency: d(10000),
	}
	quote := model.Quote{Value: d(1000000), UsdEth: d(300000)}

	gav, err := GrossAssetValue(fund, quote)
	require.NoError(t, err)
	// 1,000,000 reported + 1 ETH at 3,000.00 + 400.00 free currency.
	assertDec(t, 1340000, gav, "gav")

	_, err = GrossAssetValue(fund, model.Quote{Value: d(1)})
	assert.True(t, errors.Is(err, apperrors.ErrInvariantViolation))
}

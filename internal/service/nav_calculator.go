package service

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/model"
	"github.com/ndewijer/fund-ledger/internal/units"
)

// ClassAccrualInput is everything needed to recalculate one share class.
type ClassAccrualInput struct {
	Class model.ShareClass
	// GrossValue is the part of the fund's gross asset value attributed to
	// the class, in cents.
	GrossValue decimal.Decimal
	Now        time.Time
}

// ClassAccrual is the recalculated class together with the amounts booked
// by the recalculation.
type ClassAccrual struct {
	Class          model.ShareClass
	GrossValue     decimal.Decimal
	ManagementFee  decimal.Decimal
	AdminFee       decimal.Decimal
	PerformanceFee decimal.Decimal
	Clawback       decimal.Decimal
	LossPayback    decimal.Decimal
	GainLoss       decimal.Decimal
}

// feeDenominator is BpsScale * SecondsInYear * NavScale.
var feeDenominator = units.BpsScale.Mul(units.SecondsInYear).Mul(units.NavScale)

// AccrueClass recalculates the NAV of a single share class from its gross
// value. It does not touch the input class; the updated copy is returned.
//
// Fees accrue pro rata for the seconds since the last calculation. The
// performance fee is charged only on gains above the loss carryforward, and
// previously charged performance fees are clawed back when the class loses
// value. Every division truncates toward zero.
func AccrueClass(in ClassAccrualInput) (ClassAccrual, error) {
	sc := in.Class
	now := in.Now.UTC().Truncate(time.Second)

	if now.Before(sc.LastCalc) {
		return ClassAccrual{}, fmt.Errorf("%w: share class %d calculated at %d, now is %d",
			apperrors.ErrInvariantViolation, sc.ID, sc.LastCalc.Unix(), now.Unix())
	}

	out := ClassAccrual{
		GrossValue:     in.GrossValue,
		ManagementFee:  decimal.Zero,
		AdminFee:       decimal.Zero,
		PerformanceFee: decimal.Zero,
		Clawback:       decimal.Zero,
		LossPayback:    decimal.Zero,
		GainLoss:       decimal.Zero,
	}

	// An empty class has nothing to value. Moving LastCalc keeps it from
	// charging fees later for the time it held no shares.
	if sc.ShareSupply.IsZero() {
		sc.LastCalc = now
		out.Class = sc
		return out, nil
	}

	dt := decimal.NewFromInt(now.Unix() - sc.LastCalc.Unix())
	perfBps := decimal.NewFromInt(int64(sc.PerformFeeBps))

	nav := units.MulDiv(sc.ShareSupply, sc.NavPerShare, units.NavScale)
	mgmtFee := units.Quo(timeFee(sc, sc.MgmtFeeBps, dt), feeDenominator)
	adminFee := units.Quo(timeFee(sc, sc.AdminFeeBps, dt), feeDenominator)

	gainLoss := in.GrossValue.
		Sub(sc.AccumulatedMgmtFees).
		Sub(sc.AccumulatedAdminFees).
		Sub(nav).
		Sub(mgmtFee).
		Sub(adminFee)

	clawback := decimal.Zero
	if sc.AccumulatedPerformFees.IsPositive() && gainLoss.IsNegative() {
		clawback = decimal.Min(sc.AccumulatedPerformFees, gainLoss.Neg())
	}

	lossPayback := decimal.Zero
	if gainLoss.IsPositive() {
		lossPayback = decimal.Min(gainLoss, sc.LossCarryforward)
	}

	performFee := units.MulDiv(decimal.Max(decimal.Zero, gainLoss.Sub(lossPayback)), perfBps, units.BpsScale)

	net := gainLoss.Sub(performFee)
	nav = nav.Add(net).Add(clawback)

	lcf := sc.LossCarryforward
	if net.IsNegative() {
		lcf = lcf.Add(net.Abs())
	}

	navPerShare := units.MulDiv(nav, units.NavScale, sc.ShareSupply)
	if !navPerShare.IsPositive() {
		return ClassAccrual{}, fmt.Errorf("%w: share class %d would be priced at %s",
			apperrors.ErrNonPositiveNav, sc.ID, navPerShare)
	}

	clawedLoss := decimal.Zero
	if clawback.IsPositive() && perfBps.IsPositive() {
		clawedLoss = units.MulDiv(clawback, units.BpsScale, perfBps)
	}
	lcf = decimal.Max(decimal.Zero, lcf.Sub(lossPayback).Sub(clawedLoss))

	sc.NavPerShare = navPerShare
	sc.LossCarryforward = lcf
	sc.AccumulatedMgmtFees = sc.AccumulatedMgmtFees.Add(mgmtFee).Add(performFee).Sub(clawback)
	sc.AccumulatedAdminFees = sc.AccumulatedAdminFees.Add(adminFee)
	sc.AccumulatedPerformFees = sc.AccumulatedPerformFees.Add(performFee).Sub(clawback)
	sc.LastCalc = now

	out.Class = sc
	out.ManagementFee = mgmtFee
	out.AdminFee = adminFee
	out.PerformanceFee = performFee
	out.Clawback = clawback
	out.LossPayback = lossPayback
	out.GainLoss = gainLoss
	return out, nil
}

// timeFee is the numerator of a time based fee:
// navPerShare * bps * dt * supply.
func timeFee(sc model.ShareClass, bps int, dt decimal.Decimal) decimal.Decimal {
	return sc.NavPerShare.
		Mul(decimal.NewFromInt(int64(bps))).
		Mul(dt).
		Mul(sc.ShareSupply)
}

// classWeight is the value a class is entitled to before this calculation:
// its net assets plus the fees it has accrued but not yet paid.
func classWeight(sc model.ShareClass) decimal.Decimal {
	return units.MulDiv(sc.ShareSupply, sc.NavPerShare, units.NavScale).
		Add(sc.AccumulatedMgmtFees).
		Add(sc.AccumulatedAdminFees)
}

// AllocateGross splits the gross asset value across share classes in
// proportion to their weight. Classes without shares get nothing. The
// classes must be a snapshot taken before any of them is recalculated.
func AllocateGross(classes []model.ShareClass, gav decimal.Decimal) map[int]decimal.Decimal {
	gross := make(map[int]decimal.Decimal, len(classes))
	total := decimal.Zero
	for _, sc := range classes {
		if sc.ShareSupply.IsZero() {
			continue
		}
		total = total.Add(classWeight(sc))
	}

	for _, sc := range classes {
		if sc.ShareSupply.IsZero() || !total.IsPositive() {
			gross[sc.ID] = decimal.Zero
			continue
		}
		gross[sc.ID] = units.MulDiv(gav, classWeight(sc), total)
	}
	return gross
}

// GrossAssetValue is the value the fund holds for its shareholders: the
// reported portfolio value plus the settled balances that are not owed to
// pending subscribers or withdrawals, in cents.
func GrossAssetValue(fund model.Fund, quote model.Quote) (decimal.Decimal, error) {
	assetCents, err := units.AssetToCurrency(fund.Available(model.UnitAsset), quote.UsdEth)
	if err != nil {
		return decimal.Zero, err
	}
	return quote.Value.Add(assetCents).Add(fund.Available(model.UnitCurrency)), nil
}

package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/model"
	"github.com/ndewijer/fund-ledger/internal/units"
	"github.com/ndewijer/fund-ledger/internal/validation"
)

// LifecycleService moves investors through subscription, redemption,
// liquidation and payout.
//
// Investors act on their own record only. Fulfilment by the manager takes
// asOf, the unix second of the NAV calculation the manager priced against;
// it must match the investor's share class or the action is refused.
type LifecycleService struct {
	ledger *Ledger
	logger *zap.Logger
}

// NewLifecycleService creates a LifecycleService on top of the ledger.
func NewLifecycleService(ledger *Ledger, logger *zap.Logger) *LifecycleService {
	return &LifecycleService{ledger: ledger, logger: logger}
}

// RequestSubscription deposits amount (in the investor's unit) and adds it
// to the investor's pending subscription.
func (s *LifecycleService) RequestSubscription(ctx context.Context, caller Caller, amount decimal.Decimal) (model.Investor, error) {
	if !amount.IsPositive() {
		return model.Investor{}, apperrors.ErrNonPositiveAmount
	}

	var inv model.Investor
	err := s.ledger.run(ctx, caller, "requestSubscription", investorOnly, func(u *unitOfWork) error {
		var err error
		inv, err = u.whitelisted(validation.NormalizeAddress(caller.Address))
		if err != nil {
			return err
		}
		return u.deposit(&inv, amount)
	})
	if err != nil {
		return model.Investor{}, fmt.Errorf("failed to request subscription: %w", err)
	}

	s.logger.Info("subscription requested",
		zap.String("investor", inv.Address),
		zap.Stringer("amount", amount),
		zap.Stringer("pending", inv.PendingSubscription),
	)
	return inv, nil
}

// CancelSubscription returns the pending subscription to the investor as a
// pending withdrawal.
func (s *LifecycleService) CancelSubscription(ctx context.Context, caller Caller) (model.Investor, error) {
	var inv model.Investor
	err := s.ledger.run(ctx, caller, "cancelSubscription", investorOnly, func(u *unitOfWork) error {
		var err error
		inv, err = u.whitelisted(validation.NormalizeAddress(caller.Address))
		if err != nil {
			return err
		}
		if inv.PendingSubscription.IsZero() {
			return apperrors.ErrNoPendingSubscription
		}

		amount := inv.PendingSubscription
		unit := inv.Type.Unit()
		inv.PendingSubscription = decimal.Zero
		inv.PendingWithdrawal = inv.PendingWithdrawal.Add(amount)
		u.fund.AddPendingSubscription(unit, amount.Neg())
		u.fund.AddPendingWithdrawal(unit, amount)

		if err := u.repos.Investors.UpdateInvestor(u.ctx, inv); err != nil {
			return err
		}
		u.record(model.JournalEntry{Investor: inv.Address, Unit: unit, Amount: amount})
		return nil
	})
	if err != nil {
		return model.Investor{}, fmt.Errorf("failed to cancel subscription: %w", err)
	}
	return inv, nil
}

// SubscribeInvestor converts one investor's pending subscription into shares.
func (s *LifecycleService) SubscribeInvestor(ctx context.Context, caller Caller, address string, asOf int64) (model.Investor, error) {
	var inv model.Investor
	err := s.ledger.run(ctx, caller, "subscribeInvestor", managerOnly, func(u *unitOfWork) error {
		var err error
		inv, err = u.whitelisted(validation.NormalizeAddress(address))
		if err != nil {
			return err
		}
		if inv.PendingSubscription.IsZero() {
			return apperrors.ErrNoPendingSubscription
		}
		return u.fulfilSubscription(&inv, asOf)
	})
	if err != nil {
		return model.Investor{}, fmt.Errorf("failed to subscribe investor: %w", err)
	}

	s.logger.Info("investor subscribed", zap.String("investor", inv.Address), zap.Stringer("shares_owned", inv.SharesOwned))
	return inv, nil
}

// FillAllSubscriptionRequests fulfils every pending subscription. Investors
// with nothing pending are skipped. Either every request is filled or none.
func (s *LifecycleService) FillAllSubscriptionRequests(ctx context.Context, caller Caller, asOf int64) (int, error) {
	filled := 0
	err := s.ledger.run(ctx, caller, "fillAllSubscriptionRequests", managerOnly, func(u *unitOfWork) error {
		return u.eachInvestor(func(inv *model.Investor) error {
			if inv.PendingSubscription.IsZero() {
				return nil
			}
			filled++
			return u.fulfilSubscription(inv, asOf)
		})
	})
	if err != nil {
		return 0, fmt.Errorf("failed to fill subscription requests: %w", err)
	}
	s.logger.Info("subscription requests filled", zap.Int("count", filled))
	return filled, nil
}

// SubscribeCurrencyInvestor deposits cents on behalf of a currency investor
// and converts them into shares in one step.
func (s *LifecycleService) SubscribeCurrencyInvestor(ctx context.Context, caller Caller, address string, cents decimal.Decimal, asOf int64) (model.Investor, error) {
	if !cents.IsPositive() {
		return model.Investor{}, apperrors.ErrNonPositiveAmount
	}

	var inv model.Investor
	err := s.ledger.run(ctx, caller, "subscribeCurrencyInvestor", managerOnly, func(u *unitOfWork) error {
		var err error
		inv, err = u.whitelisted(validation.NormalizeAddress(address))
		if err != nil {
			return err
		}
		if inv.Type != model.InvestorTypeCurrency {
			return fmt.Errorf("%w: %s is not a currency investor", apperrors.ErrWrongInvestorType, inv.Address)
		}
		if err := u.deposit(&inv, cents); err != nil {
			return err
		}
		return u.fulfilSubscription(&inv, asOf)
	})
	if err != nil {
		return model.Investor{}, fmt.Errorf("failed to subscribe currency investor: %w", err)
	}
	return inv, nil
}

// RequestRedemption earmarks shares for redemption at the next fill.
func (s *LifecycleService) RequestRedemption(ctx context.Context, caller Caller, shares decimal.Decimal) (model.Investor, error) {
	if !shares.IsPositive() {
		return model.Investor{}, apperrors.ErrNonPositiveAmount
	}

	var inv model.Investor
	err := s.ledger.run(ctx, caller, "requestRedemption", investorOnly, func(u *unitOfWork) error {
		var err error
		inv, err = u.whitelisted(validation.NormalizeAddress(caller.Address))
		if err != nil {
			return err
		}
		if shares.LessThan(u.fund.MinRedemptionShares) {
			return fmt.Errorf("%w: %s shares, minimum is %s", apperrors.ErrBelowMinimumRedemption, shares, u.fund.MinRedemptionShares)
		}
		available := inv.SharesOwned.Sub(inv.SharesPendingRedemption)
		if shares.GreaterThan(available) {
			return fmt.Errorf("%w: %s requested, %s available", apperrors.ErrExceedsAvailableShares, shares, available)
		}

		inv.SharesPendingRedemption = inv.SharesPendingRedemption.Add(shares)
		u.fund.TotalSharesPendingRedemption = u.fund.TotalSharesPendingRedemption.Add(shares)

		if err := u.repos.Investors.UpdateInvestor(u.ctx, inv); err != nil {
			return err
		}
		u.record(model.JournalEntry{Investor: inv.Address, Shares: shares, ShareClass: &inv.ShareClass})
		return nil
	})
	if err != nil {
		return model.Investor{}, fmt.Errorf("failed to request redemption: %w", err)
	}
	return inv, nil
}

// CancelRedemption clears the investor's redemption earmark.
func (s *LifecycleService) CancelRedemption(ctx context.Context, caller Caller) (model.Investor, error) {
	var inv model.Investor
	err := s.ledger.run(ctx, caller, "cancelRedemption", investorOnly, func(u *unitOfWork) error {
		var err error
		inv, err = u.whitelisted(validation.NormalizeAddress(caller.Address))
		if err != nil {
			return err
		}
		if inv.SharesPendingRedemption.IsZero() {
			return apperrors.ErrNoPendingRedemption
		}

		shares := inv.SharesPendingRedemption
		inv.SharesPendingRedemption = decimal.Zero
		u.fund.TotalSharesPendingRedemption = u.fund.TotalSharesPendingRedemption.Sub(shares)

		if err := u.repos.Investors.UpdateInvestor(u.ctx, inv); err != nil {
			return err
		}
		u.record(model.JournalEntry{Investor: inv.Address, Shares: shares, ShareClass: &inv.ShareClass})
		return nil
	})
	if err != nil {
		return model.Investor{}, fmt.Errorf("failed to cancel redemption: %w", err)
	}
	return inv, nil
}

// RedeemInvestor pays out one investor's earmarked shares at the class NAV.
func (s *LifecycleService) RedeemInvestor(ctx context.Context, caller Caller, address string, asOf int64) (model.Investor, error) {
	var inv model.Investor
	err := s.ledger.run(ctx, caller, "redeemInvestor", managerOnly, func(u *unitOfWork) error {
		var err error
		inv, err = u.whitelisted(validation.NormalizeAddress(address))
		if err != nil {
			return err
		}
		if inv.SharesPendingRedemption.IsZero() {
			return apperrors.ErrNoPendingRedemption
		}
		return u.redeem(&inv, asOf)
	})
	if err != nil {
		return model.Investor{}, fmt.Errorf("failed to redeem investor: %w", err)
	}

	s.logger.Info("investor redeemed", zap.String("investor", inv.Address), zap.Stringer("pending_withdrawal", inv.PendingWithdrawal))
	return inv, nil
}

// FillAllRedemptionRequests redeems every earmark. If settled funds run out
// for any investor the whole batch is reverted.
func (s *LifecycleService) FillAllRedemptionRequests(ctx context.Context, caller Caller, asOf int64) (int, error) {
	filled := 0
	err := s.ledger.run(ctx, caller, "fillAllRedemptionRequests", managerOnly, func(u *unitOfWork) error {
		return u.eachInvestor(func(inv *model.Investor) error {
			if inv.SharesPendingRedemption.IsZero() {
				return nil
			}
			filled++
			return u.redeem(inv, asOf)
		})
	})
	if err != nil {
		return 0, fmt.Errorf("failed to fill redemption requests: %w", err)
	}
	s.logger.Info("redemption requests filled", zap.Int("count", filled))
	return filled, nil
}

// LiquidateInvestor pays out every share the investor owns and clears any
// earmark.
func (s *LifecycleService) LiquidateInvestor(ctx context.Context, caller Caller, address string, asOf int64) (model.Investor, error) {
	var inv model.Investor
	err := s.ledger.run(ctx, caller, "liquidateInvestor", managerOnly, func(u *unitOfWork) error {
		var err error
		inv, err = u.whitelisted(validation.NormalizeAddress(address))
		if err != nil {
			return err
		}
		if inv.SharesOwned.IsZero() {
			return fmt.Errorf("%w: %s", apperrors.ErrNoSharesOwned, inv.Address)
		}
		return u.liquidate(&inv, asOf)
	})
	if err != nil {
		return model.Investor{}, fmt.Errorf("failed to liquidate investor: %w", err)
	}

	s.logger.Info("investor liquidated", zap.String("investor", inv.Address), zap.Stringer("pending_withdrawal", inv.PendingWithdrawal))
	return inv, nil
}

// LiquidateAllInvestors liquidates every investor holding shares, all or nothing.
func (s *LifecycleService) LiquidateAllInvestors(ctx context.Context, caller Caller, asOf int64) (int, error) {
	liquidated := 0
	err := s.ledger.run(ctx, caller, "liquidateAllInvestors", managerOnly, func(u *unitOfWork) error {
		return u.eachInvestor(func(inv *model.Investor) error {
			if inv.SharesOwned.IsZero() {
				return nil
			}
			liquidated++
			return u.liquidate(inv, asOf)
		})
	})
	if err != nil {
		return 0, fmt.Errorf("failed to liquidate investors: %w", err)
	}
	s.logger.Info("investors liquidated", zap.Int("count", liquidated))
	return liquidated, nil
}

// WithdrawPayment pays the caller's pending withdrawal out of the fund.
func (s *LifecycleService) WithdrawPayment(ctx context.Context, caller Caller) (model.Investor, error) {
	return s.withdrawPayment(ctx, caller, "withdrawPayment", investorOnly, caller.Address)
}

// WithdrawPaymentForInvestor pays an investor's pending withdrawal on their behalf.
func (s *LifecycleService) WithdrawPaymentForInvestor(ctx context.Context, caller Caller, address string) (model.Investor, error) {
	return s.withdrawPayment(ctx, caller, "withdrawPaymentForInvestor", managerOnly, address)
}

func (s *LifecycleService) withdrawPayment(ctx context.Context, caller Caller, action string, perm Permission, address string) (model.Investor, error) {
	var inv model.Investor
	var paid decimal.Decimal
	err := s.ledger.run(ctx, caller, action, perm, func(u *unitOfWork) error {
		var err error
		inv, err = u.whitelisted(validation.NormalizeAddress(address))
		if err != nil {
			return err
		}
		paid = inv.PendingWithdrawal
		return u.payout(&inv)
	})
	if err != nil {
		return model.Investor{}, fmt.Errorf("failed to withdraw payment: %w", err)
	}

	s.logger.Info("payment withdrawn",
		zap.String("investor", inv.Address),
		zap.Stringer("amount", paid),
		zap.String("unit", string(inv.Type.Unit())),
	)
	return inv, nil
}

// ModifyAllocation sets the ceiling on an investor's pending subscription.
func (s *LifecycleService) ModifyAllocation(ctx context.Context, caller Caller, address string, amount decimal.Decimal) (model.Investor, error) {
	if amount.IsNegative() {
		return model.Investor{}, apperrors.ErrNegativeAmount
	}

	var inv model.Investor
	err := s.ledger.run(ctx, caller, "modifyAllocation", managerOnly, func(u *unitOfWork) error {
		var err error
		inv, err = u.whitelisted(validation.NormalizeAddress(address))
		if err != nil {
			return err
		}
		inv.Allocation = &amount
		if err := u.repos.Investors.UpdateInvestor(u.ctx, inv); err != nil {
			return err
		}
		u.record(model.JournalEntry{Investor: inv.Address, Unit: inv.Type.Unit(), Amount: amount})
		return nil
	})
	if err != nil {
		return model.Investor{}, fmt.Errorf("failed to modify allocation: %w", err)
	}
	return inv, nil
}

// RemitFromExchange records funds the exchange sent back to the fund.
func (s *LifecycleService) RemitFromExchange(ctx context.Context, caller Caller, unit model.Unit, amount decimal.Decimal) (model.Fund, error) {
	if !unit.Valid() {
		return model.Fund{}, fmt.Errorf("%w: %q", apperrors.ErrInvalidUnit, unit)
	}
	if !amount.IsPositive() {
		return model.Fund{}, apperrors.ErrNonPositiveAmount
	}

	var fund model.Fund
	err := s.ledger.run(ctx, caller, "remitFromExchange", exchangeOnly, func(u *unitOfWork) error {
		u.fund.AddBalance(unit, amount)
		fund = u.fund
		u.record(model.JournalEntry{Unit: unit, Amount: amount})
		return nil
	})
	if err != nil {
		return model.Fund{}, fmt.Errorf("failed to remit from exchange: %w", err)
	}

	s.logger.Info("funds remitted", zap.String("unit", string(unit)), zap.Stringer("amount", amount))
	return fund, nil
}

// eachInvestor visits a snapshot of the address list in position order.
// Changes the visitor makes to the investor are saved.
func (u *unitOfWork) eachInvestor(visit func(inv *model.Investor) error) error {
	addresses, err := u.repos.Investors.ListAddresses(u.ctx)
	if err != nil {
		return err
	}
	for _, address := range addresses {
		inv, err := u.repos.Investors.GetInvestor(u.ctx, address)
		if err != nil {
			return err
		}
		if err := visit(&inv); err != nil {
			return fmt.Errorf("%s: %w", address, err)
		}
	}
	return nil
}

// toCents values an amount in the investor's unit in cents.
func (u *unitOfWork) toCents(inv model.Investor, amount decimal.Decimal) (decimal.Decimal, error) {
	if inv.Type != model.InvestorTypeAsset {
		return amount, nil
	}
	q, err := u.latestQuote()
	if err != nil {
		return decimal.Zero, err
	}
	return units.AssetToCurrency(amount, q.UsdEth)
}

// fromCents converts cents into the investor's unit.
func (u *unitOfWork) fromCents(inv model.Investor, cents decimal.Decimal) (decimal.Decimal, error) {
	if inv.Type != model.InvestorTypeAsset {
		return cents, nil
	}
	q, err := u.latestQuote()
	if err != nil {
		return decimal.Zero, err
	}
	return units.CurrencyToAsset(cents, q.UsdEth)
}

// deposit adds amount to the investor's pending subscription after checking
// the allocation and the subscription minimums. A first subscription is
// measured as a whole, follow-ups one by one.
func (u *unitOfWork) deposit(inv *model.Investor, amount decimal.Decimal) error {
	newPending := inv.PendingSubscription.Add(amount)
	if inv.Allocation != nil && newPending.GreaterThan(*inv.Allocation) {
		return fmt.Errorf("%w: %s pending, allocation is %s", apperrors.ErrAboveAllocation, newPending, *inv.Allocation)
	}

	if inv.SharesOwned.IsZero() {
		cents, err := u.toCents(*inv, newPending)
		if err != nil {
			return err
		}
		if cents.LessThan(u.fund.MinInitialSubscriptionCents) {
			return fmt.Errorf("%w: first subscription of %s cents, minimum is %s",
				apperrors.ErrBelowMinimumSubscription, cents, u.fund.MinInitialSubscriptionCents)
		}
	} else {
		cents, err := u.toCents(*inv, amount)
		if err != nil {
			return err
		}
		if cents.LessThan(u.fund.MinSubscriptionCents) {
			return fmt.Errorf("%w: subscription of %s cents, minimum is %s",
				apperrors.ErrBelowMinimumSubscription, cents, u.fund.MinSubscriptionCents)
		}
	}

	unit := inv.Type.Unit()
	inv.PendingSubscription = newPending
	u.fund.AddPendingSubscription(unit, amount)
	u.fund.AddBalance(unit, amount)

	if err := u.repos.Investors.UpdateInvestor(u.ctx, *inv); err != nil {
		return err
	}
	u.record(model.JournalEntry{Action: "deposit", Investor: inv.Address, Unit: unit, Amount: amount})
	return nil
}

// fulfilSubscription converts the pending subscription into shares at the
// class NAV and forwards the deposit to the exchange.
func (u *unitOfWork) fulfilSubscription(inv *model.Investor, asOf int64) error {
	sc, err := u.class(inv.ShareClass)
	if err != nil {
		return err
	}
	if err := u.requireFresh(sc, asOf); err != nil {
		return err
	}

	amount := inv.PendingSubscription
	cents, err := u.toCents(*inv, amount)
	if err != nil {
		return err
	}
	shares, err := units.ToShares(cents, sc.NavPerShare)
	if err != nil {
		return err
	}

	unit := inv.Type.Unit()
	inv.PendingSubscription = decimal.Zero
	inv.SharesOwned = inv.SharesOwned.Add(shares)
	u.fund.AddPendingSubscription(unit, amount.Neg())
	u.fund.AddBalance(unit, amount.Neg())

	if err := u.ModifyShareCount(sc.ID, sc.ShareSupply.Add(shares), u.fund.TotalShareSupply.Add(shares)); err != nil {
		return err
	}
	if err := u.repos.Investors.UpdateInvestor(u.ctx, *inv); err != nil {
		return err
	}

	u.record(model.JournalEntry{
		Action:      "subscribe",
		Investor:    inv.Address,
		Unit:        unit,
		Amount:      amount,
		Shares:      shares,
		ShareClass:  &sc.ID,
		NavPerShare: sc.NavPerShare,
	})
	u.record(model.JournalEntry{Action: "forwardToExchange", Unit: unit, Amount: amount})
	return nil
}

// redeem pays out the investor's earmarked shares.
func (u *unitOfWork) redeem(inv *model.Investor, asOf int64) error {
	shares := inv.SharesPendingRedemption
	inv.SharesPendingRedemption = decimal.Zero
	u.fund.TotalSharesPendingRedemption = u.fund.TotalSharesPendingRedemption.Sub(shares)
	return u.sellShares(inv, shares, asOf, "redeem")
}

// liquidate pays out everything the investor owns.
func (u *unitOfWork) liquidate(inv *model.Investor, asOf int64) error {
	u.fund.TotalSharesPendingRedemption = u.fund.TotalSharesPendingRedemption.Sub(inv.SharesPendingRedemption)
	inv.SharesPendingRedemption = decimal.Zero
	return u.sellShares(inv, inv.SharesOwned, asOf, "liquidate")
}

// sellShares burns shares at the class NAV and credits their value to the
// investor's pending withdrawal. The fund must hold enough settled funds
// that are not already owed to someone else.
func (u *unitOfWork) sellShares(inv *model.Investor, shares decimal.Decimal, asOf int64, action string) error {
	sc, err := u.class(inv.ShareClass)
	if err != nil {
		return err
	}
	if err := u.requireFresh(sc, asOf); err != nil {
		return err
	}

	cents, err := units.ToValue(shares, sc.NavPerShare)
	if err != nil {
		return err
	}
	amount, err := u.fromCents(*inv, cents)
	if err != nil {
		return err
	}

	unit := inv.Type.Unit()
	if available := u.fund.Available(unit); available.LessThan(amount) {
		return fmt.Errorf("%w: %s %s owed to %s, %s available",
			apperrors.ErrInsufficientFunds, amount, unit, inv.Address, available)
	}

	inv.SharesOwned = inv.SharesOwned.Sub(shares)
	inv.PendingWithdrawal = inv.PendingWithdrawal.Add(amount)
	u.fund.AddPendingWithdrawal(unit, amount)

	if err := u.ModifyShareCount(sc.ID, sc.ShareSupply.Sub(shares), u.fund.TotalShareSupply.Sub(shares)); err != nil {
		return err
	}
	if err := u.repos.Investors.UpdateInvestor(u.ctx, *inv); err != nil {
		return err
	}

	u.record(model.JournalEntry{
		Action:      action,
		Investor:    inv.Address,
		Unit:        unit,
		Amount:      amount,
		Shares:      shares,
		ShareClass:  &sc.ID,
		NavPerShare: sc.NavPerShare,
	})
	return nil
}

// payout clears the pending withdrawal before the funds leave the fund.
func (u *unitOfWork) payout(inv *model.Investor) error {
	amount := inv.PendingWithdrawal
	if amount.IsZero() {
		return apperrors.ErrNoPendingWithdrawal
	}

	unit := inv.Type.Unit()
	inv.PendingWithdrawal = decimal.Zero
	u.fund.AddPendingWithdrawal(unit, amount.Neg())

	if balance := u.fund.Balance(unit); balance.LessThan(amount) {
		return fmt.Errorf("%w: paying %s %s, balance is %s", apperrors.ErrInsufficientFunds, amount, unit, balance)
	}
	u.fund.AddBalance(unit, amount.Neg())

	if err := u.repos.Investors.UpdateInvestor(u.ctx, *inv); err != nil {
		return err
	}
	u.record(model.JournalEntry{Action: "payout", Investor: inv.Address, Unit: unit, Amount: amount})
	return nil
}

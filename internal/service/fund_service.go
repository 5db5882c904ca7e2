package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/model"
	"github.com/ndewijer/fund-ledger/internal/units"
	"github.com/ndewijer/fund-ledger/internal/validation"
)

// DefaultJournalLimit is used when a journal query does not set a limit.
const DefaultJournalLimit = 50

// FundService handles the fund record and the investor list.
type FundService struct {
	ledger *Ledger
	logger *zap.Logger
}

// NewFundService creates a FundService on top of the ledger.
func NewFundService(ledger *Ledger, logger *zap.Logger) *FundService {
	return &FundService{ledger: ledger, logger: logger}
}

// EnsureInitialized creates the fund with share class 0 (no fees) and any
// additional share classes named in the terms. It does nothing when the fund
// already exists and reports whether it created it.
func (s *FundService) EnsureInitialized(ctx context.Context, terms model.FundTerms) (bool, error) {
	for _, ft := range terms.ShareClasses {
		if err := checkFeeTerms(ft); err != nil {
			return false, err
		}
	}

	created := false
	err := s.ledger.execute(ctx, System(), "initializeFund", managerSystem, false, func(u *unitOfWork) error {
		_, err := u.repos.Funds.GetFund(u.ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, apperrors.ErrFundNotFound) {
			return err
		}

		fund := model.Fund{
			Name:                        terms.Name,
			Symbol:                      terms.Symbol,
			Decimals:                    units.ShareDecimals,
			MinInitialSubscriptionCents: terms.MinInitialSubscriptionCents,
			MinSubscriptionCents:        terms.MinSubscriptionCents,
			MinRedemptionShares:         terms.MinRedemptionShares,
			CreatedAt:                   u.now,
		}
		if err := u.repos.Funds.InsertFund(u.ctx, fund); err != nil {
			return err
		}
		u.record(model.JournalEntry{})

		if _, err := u.insertShareClass(model.FeeTerms{}); err != nil {
			return err
		}
		for _, ft := range terms.ShareClasses {
			if _, err := u.insertShareClass(ft); err != nil {
				return err
			}
		}
		created = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to initialize fund: %w", err)
	}
	if created {
		s.logger.Info("fund initialized",
			zap.String("name", terms.Name),
			zap.String("symbol", terms.Symbol),
			zap.Int("share_classes", len(terms.ShareClasses)+1),
		)
	}
	return created, nil
}

// GetFundDetails returns the fund terms, aggregates and balances.
func (s *FundService) GetFundDetails(ctx context.Context) (model.Fund, error) {
	return s.ledger.repos.Funds.GetFund(ctx)
}

// WhiteListInvestor adds an address to the investor list with a type and a
// share class. An investor belongs to exactly one class for its lifetime.
func (s *FundService) WhiteListInvestor(ctx context.Context, caller Caller, address string, typ model.InvestorType, classID int) (model.Investor, error) {
	address = validation.NormalizeAddress(address)
	if !validation.IsAddress(address) {
		return model.Investor{}, fmt.Errorf("%w: %s", apperrors.ErrInvalidAddress, address)
	}
	if !typ.Valid() {
		return model.Investor{}, fmt.Errorf("%w: %d", apperrors.ErrInvalidInvestorType, typ)
	}

	var inv model.Investor
	err := s.ledger.run(ctx, caller, "whiteListInvestor", managerOnly, func(u *unitOfWork) error {
		_, err := u.repos.Investors.GetInvestor(u.ctx, address)
		if err == nil {
			return fmt.Errorf("%w: %s", apperrors.ErrAlreadyWhitelisted, address)
		}
		if !errors.Is(err, apperrors.ErrInvestorNotFound) {
			return err
		}
		if _, err := u.class(classID); err != nil {
			return err
		}

		inv, err = u.repos.Investors.InsertInvestor(u.ctx, model.Investor{
			Address:                 address,
			Type:                    typ,
			ShareClass:              classID,
			PendingSubscription:     decimal.Zero,
			SharesOwned:             decimal.Zero,
			SharesPendingRedemption: decimal.Zero,
			PendingWithdrawal:       decimal.Zero,
		})
		if err != nil {
			return err
		}
		u.fund.InvestorCount++
		u.record(model.JournalEntry{Investor: address, ShareClass: &classID})
		return nil
	})
	if err != nil {
		return model.Investor{}, fmt.Errorf("failed to whitelist investor: %w", err)
	}

	s.logger.Info("investor whitelisted",
		zap.String("investor", address),
		zap.Stringer("type", typ),
		zap.Int("share_class", classID),
	)
	return inv, nil
}

// RemoveInvestor deletes an investor whose balances are all zero. The last
// investor of the address list takes over the freed position.
func (s *FundService) RemoveInvestor(ctx context.Context, caller Caller, address string) error {
	address = validation.NormalizeAddress(address)
	err := s.ledger.run(ctx, caller, "removeInvestor", managerOnly, func(u *unitOfWork) error {
		inv, err := u.repos.Investors.GetInvestor(u.ctx, address)
		if err != nil {
			return err
		}
		if !inv.IsEmpty() {
			return fmt.Errorf("%w: %s", apperrors.ErrInvestorNotEmpty, address)
		}
		if err := u.repos.Investors.RemoveInvestor(u.ctx, address); err != nil {
			return err
		}
		u.fund.InvestorCount--
		u.record(model.JournalEntry{Investor: address, ShareClass: &inv.ShareClass})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove investor: %w", err)
	}
	s.logger.Info("investor removed", zap.String("investor", address))
	return nil
}

// ListInvestorAddresses returns the address list in position order.
func (s *FundService) ListInvestorAddresses(ctx context.Context) ([]string, error) {
	return s.ledger.repos.Investors.ListAddresses(ctx)
}

// GetInvestor returns the ledger entry of one investor.
func (s *FundService) GetInvestor(ctx context.Context, address string) (model.Investor, error) {
	return s.ledger.repos.Investors.GetInvestor(ctx, validation.NormalizeAddress(address))
}

// GetInvestorStatement values an investor's holding at the current NAV of
// its share class.
func (s *FundService) GetInvestorStatement(ctx context.Context, address string) (model.InvestorStatement, error) {
	inv, err := s.GetInvestor(ctx, address)
	if err != nil {
		return model.InvestorStatement{}, err
	}
	sc, err := s.ledger.repos.ShareClasses.GetShareClass(ctx, inv.ShareClass)
	if err != nil {
		return model.InvestorStatement{}, err
	}
	value, err := units.ToValue(inv.SharesOwned, sc.NavPerShare)
	if err != nil {
		return model.InvestorStatement{}, err
	}

	statement := model.InvestorStatement{
		Investor:          inv,
		NavPerShare:       sc.NavPerShare,
		LastCalc:          sc.LastCalc.Unix(),
		HoldingValueCents: value,
		HoldingValue:      units.FormatCents(value),
		Shares:            units.FormatShares(inv.SharesOwned),
	}
	if inv.Type == model.InvestorTypeCurrency {
		statement.PendingWithdrawalDisplay = units.FormatCents(inv.PendingWithdrawal)
	}
	return statement, nil
}

// ListJournal returns the most recent journal entries, newest first.
func (s *FundService) ListJournal(ctx context.Context, filter model.JournalFilter) ([]model.JournalEntry, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultJournalLimit
	}
	filter.Investor = validation.NormalizeAddress(filter.Investor)
	return s.ledger.repos.Journal.ListEntries(ctx, filter)
}

// CheckInvariants reconciles the investor, share class and fund totals.
func (s *FundService) CheckInvariants(ctx context.Context) (model.InvariantReport, error) {
	report, err := reconcile(ctx, s.ledger.repos)
	if err != nil {
		return model.InvariantReport{}, err
	}
	if !report.Reconciled {
		s.logger.Error("ledger totals do not reconcile", zap.Strings("mismatches", report.Mismatches))
	}
	return report, nil
}

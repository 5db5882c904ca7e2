package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/model"
)

// DefaultNavHistoryLimit is used when a history request does not set a limit.
const DefaultNavHistoryLimit = 100

// NavService recalculates share class prices from the latest data feed quote.
type NavService struct {
	ledger *Ledger
	logger *zap.Logger
}

// NewNavService creates a NavService on top of the ledger.
func NewNavService(ledger *Ledger, logger *zap.Logger) *NavService {
	return &NavService{ledger: ledger, logger: logger}
}

// CalcNav recalculates every share class and persists the results.
func (s *NavService) CalcNav(ctx context.Context, caller Caller) ([]model.NavResult, error) {
	var results []model.NavResult
	err := s.ledger.run(ctx, caller, "calcNav", managerSystem, func(u *unitOfWork) error {
		accruals, err := u.recalculate(nil)
		if err != nil {
			return err
		}
		results = make([]model.NavResult, 0, len(accruals))
		for _, a := range accruals {
			results = append(results, navResult(a.Class))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to calculate nav: %w", err)
	}
	s.logger.Info("nav calculated", zap.Int("share_classes", len(results)))
	return results, nil
}

// CalcShareClassNav recalculates and persists one share class. The gross
// value is still split using the weights of every class.
func (s *NavService) CalcShareClassNav(ctx context.Context, caller Caller, classID int) (model.NavResult, error) {
	var result model.NavResult
	err := s.ledger.run(ctx, caller, "calcShareClassNav", managerSystem, func(u *unitOfWork) error {
		accruals, err := u.recalculate(&classID)
		if err != nil {
			return err
		}
		result = navResult(accruals[0].Class)
		return nil
	})
	if err != nil {
		return model.NavResult{}, fmt.Errorf("failed to calculate nav of share class %d: %w", classID, err)
	}
	return result, nil
}

// PreviewShareClassNav returns what CalcShareClassNav would produce right now
// without writing anything.
func (s *NavService) PreviewShareClassNav(ctx context.Context, classID int) (model.NavResult, error) {
	repos := s.ledger.repos
	fund, err := repos.Funds.GetFund(ctx)
	if err != nil {
		return model.NavResult{}, err
	}
	quote, err := repos.DataFeed.LatestQuote(ctx)
	if err != nil {
		return model.NavResult{}, err
	}
	classes, err := repos.ShareClasses.ListShareClasses(ctx)
	if err != nil {
		return model.NavResult{}, err
	}
	accruals, err := computeAccruals(fund, quote, classes, s.ledger.Now(), &classID)
	if err != nil {
		return model.NavResult{}, err
	}
	return navResult(accruals[0].Class), nil
}

// NavHistory returns the latest NAV snapshots of a share class, newest first.
func (s *NavService) NavHistory(ctx context.Context, classID, limit int) ([]model.NavSnapshot, error) {
	if _, err := s.ledger.repos.ShareClasses.GetShareClass(ctx, classID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultNavHistoryLimit
	}
	return s.ledger.repos.Snapshots.ListSnapshots(ctx, classID, limit)
}

// recalculate runs the NAV calculation for one class (only != nil) or all of
// them, persisting each updated class together with a snapshot.
func (u *unitOfWork) recalculate(only *int) ([]ClassAccrual, error) {
	quote, err := u.latestQuote()
	if err != nil {
		return nil, err
	}
	classes, err := u.repos.ShareClasses.ListShareClasses(u.ctx)
	if err != nil {
		return nil, err
	}
	for i, sc := range classes {
		if cached, ok := u.classes[sc.ID]; ok {
			classes[i] = *cached
		}
	}

	accruals, err := computeAccruals(u.fund, quote, classes, u.now, only)
	if err != nil {
		return nil, err
	}

	for _, a := range accruals {
		sc := a.Class
		if err := u.repos.ShareClasses.UpdateNavState(u.ctx, sc); err != nil {
			return nil, err
		}
		snapshot := model.NavSnapshot{
			ID:                     uuid.New().String(),
			ShareClass:             sc.ID,
			GrossValue:             a.GrossValue,
			ShareSupply:            sc.ShareSupply,
			NavPerShare:            sc.NavPerShare,
			LossCarryforward:       sc.LossCarryforward,
			AccumulatedMgmtFees:    sc.AccumulatedMgmtFees,
			AccumulatedAdminFees:   sc.AccumulatedAdminFees,
			AccumulatedPerformFees: sc.AccumulatedPerformFees,
			CalculatedAt:           sc.LastCalc,
		}
		if err := u.repos.Snapshots.InsertSnapshot(u.ctx, snapshot); err != nil {
			return nil, err
		}
		u.classes[sc.ID] = &sc
		u.record(model.JournalEntry{
			Unit:        model.UnitCurrency,
			Amount:      a.ManagementFee.Add(a.AdminFee).Add(a.PerformanceFee).Sub(a.Clawback),
			Shares:      sc.ShareSupply,
			ShareClass:  &sc.ID,
			NavPerShare: sc.NavPerShare,
		})
	}
	return accruals, nil
}

// computeAccruals prices the fund and recalculates the requested classes
// against a snapshot of all of them.
func computeAccruals(fund model.Fund, quote model.Quote, classes []model.ShareClass, now time.Time, only *int) ([]ClassAccrual, error) {
	gav, err := GrossAssetValue(fund, quote)
	if err != nil {
		return nil, err
	}
	gross := AllocateGross(classes, gav)

	var out []ClassAccrual
	for _, sc := range classes {
		if only != nil && sc.ID != *only {
			continue
		}
		a, err := AccrueClass(ClassAccrualInput{Class: sc, GrossValue: gross[sc.ID], Now: now})
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if only != nil && len(out) == 0 {
		return nil, fmt.Errorf("%w: %d", apperrors.ErrShareClassNotFound, *only)
	}
	return out, nil
}

func navResult(sc model.ShareClass) model.NavResult {
	return model.NavResult{
		ShareClass:           sc.ID,
		LastCalc:             sc.LastCalc.Unix(),
		NavPerShare:          sc.NavPerShare,
		LossCarryforward:     sc.LossCarryforward,
		AccumulatedMgmtFees:  sc.AccumulatedMgmtFees,
		AccumulatedAdminFees: sc.AccumulatedAdminFees,
	}
}

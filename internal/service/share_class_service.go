package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/model"
	"github.com/ndewijer/fund-ledger/internal/units"
)

// ShareClassService manages the share class registry.
type ShareClassService struct {
	ledger *Ledger
	logger *zap.Logger
}

// NewShareClassService creates a ShareClassService on top of the ledger.
func NewShareClassService(ledger *Ledger, logger *zap.Logger) *ShareClassService {
	return &ShareClassService{ledger: ledger, logger: logger}
}

// AddShareClass appends a share class with the given fee terms. The class
// starts empty at par and its fee clock starts now.
func (s *ShareClassService) AddShareClass(ctx context.Context, caller Caller, terms model.FeeTerms) (model.ShareClass, error) {
	if err := checkFeeTerms(terms); err != nil {
		return model.ShareClass{}, err
	}

	var created model.ShareClass
	err := s.ledger.run(ctx, caller, "addShareClass", managerOnly, func(u *unitOfWork) error {
		sc, err := u.insertShareClass(terms)
		if err != nil {
			return err
		}
		created = sc
		return nil
	})
	if err != nil {
		return model.ShareClass{}, fmt.Errorf("failed to add share class: %w", err)
	}

	s.logger.Info("share class added",
		zap.Int("share_class", created.ID),
		zap.Int("mgmt_fee_bps", terms.MgmtFeeBps),
		zap.Int("admin_fee_bps", terms.AdminFeeBps),
		zap.Int("perform_fee_bps", terms.PerformFeeBps),
	)
	return created, nil
}

// ModifyShareClassTerms replaces the fee rates of a class. Accrued balances,
// supply and price are left alone; the new rates apply from the next
// calculation on.
func (s *ShareClassService) ModifyShareClassTerms(ctx context.Context, caller Caller, id int, terms model.FeeTerms) (model.ShareClass, error) {
	if err := checkFeeTerms(terms); err != nil {
		return model.ShareClass{}, err
	}

	var updated model.ShareClass
	err := s.ledger.run(ctx, caller, "modifyShareClassTerms", managerOnly, func(u *unitOfWork) error {
		sc, err := u.class(id)
		if err != nil {
			// Naming an unknown class is an input error as much as a lookup miss.
			return fmt.Errorf("%w: %w", apperrors.ErrValidation, err)
		}
		if err := u.repos.ShareClasses.UpdateFeeTerms(u.ctx, id, terms); err != nil {
			return err
		}
		sc.FeeTerms = terms
		updated = *sc
		u.record(model.JournalEntry{ShareClass: &sc.ID, NavPerShare: sc.NavPerShare})
		return nil
	})
	if err != nil {
		return model.ShareClass{}, fmt.Errorf("failed to modify share class %d: %w", id, err)
	}
	return updated, nil
}

// GetShareClass returns a share class by ID.
func (s *ShareClassService) GetShareClass(ctx context.Context, id int) (model.ShareClass, error) {
	return s.ledger.repos.ShareClasses.GetShareClass(ctx, id)
}

// ListShareClasses returns every share class ordered by ID.
func (s *ShareClassService) ListShareClasses(ctx context.Context) ([]model.ShareClass, error) {
	return s.ledger.repos.ShareClasses.ListShareClasses(ctx)
}

// insertShareClass appends a class with the next free ID.
func (u *unitOfWork) insertShareClass(terms model.FeeTerms) (model.ShareClass, error) {
	id, err := u.repos.ShareClasses.NextID(u.ctx)
	if err != nil {
		return model.ShareClass{}, err
	}
	sc := model.ShareClass{
		ID:                     id,
		FeeTerms:               terms,
		ShareSupply:            decimal.Zero,
		LastCalc:               u.now,
		NavPerShare:            decimal.NewFromInt(units.ParNavPerShare),
		LossCarryforward:       decimal.Zero,
		AccumulatedMgmtFees:    decimal.Zero,
		AccumulatedAdminFees:   decimal.Zero,
		AccumulatedPerformFees: decimal.Zero,
	}
	if err := u.repos.ShareClasses.InsertShareClass(u.ctx, sc); err != nil {
		return model.ShareClass{}, err
	}
	u.classes[id] = &sc
	u.record(model.JournalEntry{Action: "addShareClass", ShareClass: &sc.ID, NavPerShare: sc.NavPerShare})
	return sc, nil
}

func checkFeeTerms(terms model.FeeTerms) error {
	for _, f := range []struct {
		name string
		bps  int
	}{
		{"adminFeeBps", terms.AdminFeeBps},
		{"mgmtFeeBps", terms.MgmtFeeBps},
		{"performFeeBps", terms.PerformFeeBps},
	} {
		if f.bps < 0 || f.bps > 10000 {
			return fmt.Errorf("%w: %s is %d", apperrors.ErrInvalidFeeBps, f.name, f.bps)
		}
	}
	return nil
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/model"
	"github.com/ndewijer/fund-ledger/internal/repository"
)

// Ledger executes ledger actions. Actions are totally ordered: one runs at a
// time, each inside a single SQL transaction, so an action either commits
// every change it made or none of them.
type Ledger struct {
	db     *sql.DB
	repos  repository.Set
	logger *zap.Logger
	now    func() time.Time
	verify bool

	mu sync.Mutex
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithClock replaces the wall clock. Ledger time has one second resolution.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

// WithInvariantChecks toggles reconciliation of the ledger totals after every action.
func WithInvariantChecks(enabled bool) LedgerOption {
	return func(l *Ledger) { l.verify = enabled }
}

// NewLedger creates a Ledger over db. Invariant checks are on by default.
func NewLedger(db *sql.DB, repos repository.Set, logger *zap.Logger, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		db:     db,
		repos:  repos,
		logger: logger,
		now:    time.Now,
		verify: true,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Now returns the current ledger time.
func (l *Ledger) Now() time.Time {
	return l.now().UTC().Truncate(time.Second)
}

// run authorizes the caller, then executes fn against the fund inside one
// transaction. The fund record is saved, the totals are reconciled and the
// journal is written before the commit.
func (l *Ledger) run(ctx context.Context, caller Caller, action string, perm Permission, fn func(u *unitOfWork) error) error {
	return l.execute(ctx, caller, action, perm, true, fn)
}

func (l *Ledger) execute(ctx context.Context, caller Caller, action string, perm Permission, loadFund bool, fn func(u *unitOfWork) error) error {
	log := l.logger.With(zap.String("action", action), zap.String("caller", caller.String()))

	if err := perm.authorize(action, caller); err != nil {
		log.Warn("ledger action rejected", zap.Error(err))
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Error("rollback failed", zap.Error(rbErr))
		}
	}()

	u := &unitOfWork{
		ctx:     ctx,
		caller:  caller,
		action:  action,
		now:     l.Now(),
		repos:   l.repos.WithTx(tx),
		classes: map[int]*model.ShareClass{},
	}

	if loadFund {
		fund, err := u.repos.Funds.GetFund(ctx)
		if err != nil {
			return err
		}
		u.fund = fund
	}

	if err := fn(u); err != nil {
		log.Info("ledger action reverted", zap.Error(err))
		return err
	}

	if loadFund {
		if err := u.repos.Funds.UpdateFund(ctx, u.fund); err != nil {
			return err
		}
	}

	if l.verify {
		report, err := reconcile(ctx, u.repos)
		if err != nil {
			return err
		}
		if !report.Reconciled {
			err := fmt.Errorf("%w: %s", apperrors.ErrConservation, strings.Join(report.Mismatches, "; "))
			log.Error("ledger invariant violated", zap.Error(err))
			return err
		}
	}

	for _, e := range u.entries {
		e.ID = uuid.New().String()
		e.ActorRole = string(caller.Role)
		e.Actor = caller.Address
		e.CreatedAt = u.now
		if err := u.repos.Journal.InsertEntry(ctx, e); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", action, err)
	}

	log.Info("ledger action committed", zap.Int("journal_entries", len(u.entries)))
	return nil
}

// unitOfWork is the state of one running action. Share classes and the quote
// are loaded once and cached so a batch sees its own earlier updates.
type unitOfWork struct {
	ctx    context.Context
	caller Caller
	action string
	now    time.Time
	repos  repository.Set

	fund    model.Fund
	classes map[int]*model.ShareClass
	quote   *model.Quote

	entries []model.JournalEntry
}

func (u *unitOfWork) record(e model.JournalEntry) {
	if e.Action == "" {
		e.Action = u.action
	}
	u.entries = append(u.entries, e)
}

func (u *unitOfWork) class(id int) (*model.ShareClass, error) {
	if sc, ok := u.classes[id]; ok {
		return sc, nil
	}
	sc, err := u.repos.ShareClasses.GetShareClass(u.ctx, id)
	if err != nil {
		return nil, err
	}
	u.classes[id] = &sc
	return &sc, nil
}

func (u *unitOfWork) latestQuote() (model.Quote, error) {
	if u.quote != nil {
		return *u.quote, nil
	}
	q, err := u.repos.DataFeed.LatestQuote(u.ctx)
	if err != nil {
		return model.Quote{}, err
	}
	u.quote = &q
	return q, nil
}

// whitelisted loads an investor who must be on the investor list.
func (u *unitOfWork) whitelisted(address string) (model.Investor, error) {
	inv, err := u.repos.Investors.GetInvestor(u.ctx, address)
	if errors.Is(err, apperrors.ErrInvestorNotFound) {
		return model.Investor{}, fmt.Errorf("%w: %s", apperrors.ErrNotWhitelisted, address)
	}
	if err != nil {
		return model.Investor{}, err
	}
	if !inv.Type.Valid() {
		return model.Investor{}, fmt.Errorf("%w: %s", apperrors.ErrNotWhitelisted, address)
	}
	return inv, nil
}

// requireFresh fails unless asOf is the last calculation time of the class.
func (u *unitOfWork) requireFresh(sc *model.ShareClass, asOf int64) error {
	if sc.LastCalc.Unix() != asOf {
		return fmt.Errorf("%w: share class %d last calculated at %d, priced at %d",
			apperrors.ErrStalePrice, sc.ID, sc.LastCalc.Unix(), asOf)
	}
	return nil
}

// ModifyShareCount sets the class and fund share supply together. The caller
// computes both values; neither is derived from the other.
func (u *unitOfWork) ModifyShareCount(id int, classSupply, totalSupply decimal.Decimal) error {
	if classSupply.IsNegative() || totalSupply.IsNegative() {
		return fmt.Errorf("%w: share supply cannot be negative", apperrors.ErrInvariantViolation)
	}
	sc, err := u.class(id)
	if err != nil {
		return err
	}
	if err := u.repos.ShareClasses.UpdateSupply(u.ctx, id, classSupply); err != nil {
		return err
	}
	sc.ShareSupply = classSupply
	u.fund.TotalShareSupply = totalSupply
	return nil
}

// reconcile compares the per-investor, per-class and fund-level figures.
func reconcile(ctx context.Context, repos repository.Set) (model.InvariantReport, error) {
	fund, err := repos.Funds.GetFund(ctx)
	if err != nil {
		return model.InvariantReport{}, err
	}
	investors, err := repos.Investors.ListInvestors(ctx)
	if err != nil {
		return model.InvariantReport{}, err
	}
	classes, err := repos.ShareClasses.ListShareClasses(ctx)
	if err != nil {
		return model.InvariantReport{}, err
	}

	report := model.InvariantReport{Mismatches: []string{}}
	mismatch := func(format string, args ...any) {
		report.Mismatches = append(report.Mismatches, fmt.Sprintf(format, args...))
	}

	sharesOwned := decimal.Zero
	pendingRedemption := decimal.Zero
	pendingSub := map[model.Unit]decimal.Decimal{model.UnitAsset: decimal.Zero, model.UnitCurrency: decimal.Zero}
	pendingWd := map[model.Unit]decimal.Decimal{model.UnitAsset: decimal.Zero, model.UnitCurrency: decimal.Zero}
	perClassOwned := map[int]decimal.Decimal{}

	for _, inv := range investors {
		for name, v := range map[string]decimal.Decimal{
			"pending subscription": inv.PendingSubscription,
			"shares owned":         inv.SharesOwned,
			"pending redemption":   inv.SharesPendingRedemption,
			"pending withdrawal":   inv.PendingWithdrawal,
		} {
			if v.IsNegative() {
				mismatch("investor %s has negative %s %s", inv.Address, name, v)
			}
		}
		if inv.SharesPendingRedemption.GreaterThan(inv.SharesOwned) {
			mismatch("investor %s: %v", inv.Address, apperrors.ErrRedemptionExceedsOwned)
		}
		unit := inv.Type.Unit()
		sharesOwned = sharesOwned.Add(inv.SharesOwned)
		pendingRedemption = pendingRedemption.Add(inv.SharesPendingRedemption)
		pendingSub[unit] = pendingSub[unit].Add(inv.PendingSubscription)
		pendingWd[unit] = pendingWd[unit].Add(inv.PendingWithdrawal)
		perClassOwned[inv.ShareClass] = perClassOwned[inv.ShareClass].Add(inv.SharesOwned)
	}

	classSupply := decimal.Zero
	for _, sc := range classes {
		classSupply = classSupply.Add(sc.ShareSupply)
		if !perClassOwned[sc.ID].Equal(sc.ShareSupply) {
			mismatch("share class %d supply %s, investors own %s", sc.ID, sc.ShareSupply, perClassOwned[sc.ID])
		}
		if !sc.NavPerShare.IsPositive() {
			mismatch("share class %d nav per share %s", sc.ID, sc.NavPerShare)
		}
		if sc.LossCarryforward.IsNegative() {
			mismatch("share class %d loss carryforward %s", sc.ID, sc.LossCarryforward)
		}
	}

	if !sharesOwned.Equal(classSupply) || !classSupply.Equal(fund.TotalShareSupply) {
		mismatch("shares owned %s, class supply %s, total supply %s", sharesOwned, classSupply, fund.TotalShareSupply)
	}
	if !pendingRedemption.Equal(fund.TotalSharesPendingRedemption) {
		mismatch("shares pending redemption %s, fund total %s", pendingRedemption, fund.TotalSharesPendingRedemption)
	}
	for _, unit := range []model.Unit{model.UnitAsset, model.UnitCurrency} {
		if !pendingSub[unit].Equal(fund.PendingSubscription(unit)) {
			mismatch("%s pending subscription %s, fund total %s", unit, pendingSub[unit], fund.PendingSubscription(unit))
		}
		if !pendingWd[unit].Equal(fund.PendingWithdrawal(unit)) {
			mismatch("%s pending withdrawal %s, fund total %s", unit, pendingWd[unit], fund.PendingWithdrawal(unit))
		}
		if fund.Available(unit).IsNegative() {
			mismatch("%s balance %s does not cover amounts owed", unit, fund.Balance(unit))
		}
	}
	if fund.InvestorCount != len(investors) {
		mismatch("investor count %d, list has %d", fund.InvestorCount, len(investors))
	}

	report.Reconciled = len(report.Mismatches) == 0
	return report, nil
}

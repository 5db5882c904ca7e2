package service_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/model"
	"github.com/ndewijer/fund-ledger/internal/repository"
	"github.com/ndewijer/fund-ledger/internal/service"
	"github.com/ndewijer/fund-ledger/internal/testutil"
)

// TestLedger_Conservation tests the reconciliation run before every commit.
//
// WHY: Per-investor, per-class and fund totals are stored separately. If
// they ever disagree the action must be refused instead of committed on
// top of corrupt state.
func TestLedger_Conservation(t *testing.T) {
	ctx := context.Background()

	t.Run("mismatch reverts the action", func(t *testing.T) {
		// Setup
		tl := testutil.NewTestLedger(t, testutil.SetupTestDB(t))
		addr := testutil.NewInvestor(1).Subscribed(testutil.Dec(100000)).Build(t, tl).Address
		if _, err := tl.DB.Exec(`UPDATE fund SET total_share_supply = '5'`); err != nil {
			t.Fatalf("Failed to corrupt fund: %v", err)
		}

		// Execute
		_, err := tl.Lifecycle.ModifyAllocation(ctx, service.Manager(), addr, testutil.Dec(500000))

		// Assert
		requireErrorIs(t, err, apperrors.ErrConservation)
		requireErrorIs(t, err, apperrors.ErrInvariantViolation)
		if inv := tl.Investor(t, addr); inv.Allocation != nil {
			t.Errorf("Expected allocation to stay unset, got %s", inv.Allocation)
		}

		report, err := tl.Funds.CheckInvariants(ctx)
		if err != nil {
			t.Fatalf("CheckInvariants() failed: %v", err)
		}
		if report.Reconciled || len(report.Mismatches) == 0 {
			t.Errorf("Expected mismatches to be reported, got %+v", report)
		}
	})

	t.Run("checks can be disabled", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		tl := testutil.NewTestLedger(t, db)
		addr := testutil.NewInvestor(1).Build(t, tl).Address
		if _, err := db.Exec(`UPDATE fund SET total_share_supply = '5'`); err != nil {
			t.Fatalf("Failed to corrupt fund: %v", err)
		}
		logger := zaptest.NewLogger(t)
		unchecked := service.NewLedger(db, repository.NewSet(db), logger, service.WithInvariantChecks(false))
		lifecycle := service.NewLifecycleService(unchecked, logger)

		// Execute
		inv, err := lifecycle.ModifyAllocation(ctx, service.Manager(), addr, testutil.Dec(500000))

		// Assert
		if err != nil {
			t.Fatalf("ModifyAllocation() returned unexpected error: %v", err)
		}
		requireDec(t, "allocation", testutil.Dec(500000), *inv.Allocation)
	})
}

// TestLedger_Journal tests that only committed actions are journaled.
//
// WHY: The journal is the audit trail of the ledger. A reverted action must
// leave no trace in it.
func TestLedger_Journal(t *testing.T) {
	ctx := context.Background()

	// Setup
	tl := testutil.NewTestLedger(t, testutil.SetupTestDB(t))
	addr := testutil.NewInvestor(1).Build(t, tl).Address
	before, err := tl.Funds.ListJournal(ctx, model.JournalFilter{Investor: addr})
	if err != nil {
		t.Fatalf("ListJournal() failed: %v", err)
	}

	// Execute
	_, err = tl.Lifecycle.RequestSubscription(ctx, service.InvestorCaller(addr), testutil.Dec(1))

	// Assert
	requireErrorIs(t, err, apperrors.ErrBelowMinimumSubscription)
	after, err := tl.Funds.ListJournal(ctx, model.JournalFilter{Investor: addr})
	if err != nil {
		t.Fatalf("ListJournal() failed: %v", err)
	}
	if len(after) != len(before) {
		t.Errorf("Expected %d journal entries, got %d", len(before), len(after))
	}
}

// TestLedger_Now tests the ledger clock.
func TestLedger_Now(t *testing.T) {
	tl := testutil.NewTestLedger(t, testutil.SetupTestDB(t))
	tl.Clock.Advance(1500 * time.Millisecond)

	if got := tl.Ledger.Now(); !got.Equal(testutil.Epoch.Add(time.Second)) {
		t.Errorf("Expected ledger time truncated to the second, got %v", got)
	}
}

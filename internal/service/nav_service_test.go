package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/service"
	"github.com/ndewijer/fund-ledger/internal/testutil"
)

const year = 365 * 24 * time.Hour

// TestNavService_CalcNav tests NAV recalculation through the ledger.
//
// WHY: The NAV is the price every subscription and redemption settles at.
// Results must be persisted per class without one class's fees leaking
// into another.
func TestNavService_CalcNav(t *testing.T) {
	ctx := context.Background()

	t.Run("performance fee on a doubled portfolio", func(t *testing.T) {
		// Setup
		tl := testutil.NewTestLedger(t, testutil.SetupTestDB(t))
		sc := testutil.NewShareClass().WithPerformFee(2000).Build(t, tl)
		testutil.NewInvestor(1).InClass(sc.ID).Subscribed(testutil.Dec(1000000)).Build(t, tl)
		tl.SetQuote(t, 2000000, 300000)

		// Execute
		results := tl.CalcNav(t)

		// Assert
		if len(results) != 2 {
			t.Fatalf("Expected results for 2 share classes, got %d", len(results))
		}
		requireDec(t, "empty class nav", testutil.Dec(10000), results[0].NavPerShare)
		requireDec(t, "navPerShare", testutil.Dec(18000), results[1].NavPerShare)
		requireDec(t, "accumulatedMgmtFees", testutil.Dec(200000), results[1].AccumulatedMgmtFees)

		stored, err := tl.ShareClasses.GetShareClass(ctx, sc.ID)
		if err != nil {
			t.Fatalf("GetShareClass() failed: %v", err)
		}
		requireDec(t, "stored navPerShare", testutil.Dec(18000), stored.NavPerShare)
		requireDec(t, "stored accumulatedPerformFees", testutil.Dec(200000), stored.AccumulatedPerformFees)
		tl.RequireReconciled(t)
	})

	t.Run("share classes are isolated", func(t *testing.T) {
		// Setup
		tl := testutil.NewTestLedger(t, testutil.SetupTestDB(t))
		feeClass := testutil.NewShareClass().WithMgmtFee(200).Build(t, tl)
		testutil.NewInvestor(1).Subscribed(testutil.Dec(1000000)).Build(t, tl)
		testutil.NewInvestor(2).InClass(feeClass.ID).Subscribed(testutil.Dec(1000000)).Build(t, tl)
		tl.SetQuote(t, 2000000, 300000)
		tl.Clock.Advance(year)

		// Execute
		results := tl.CalcNav(t)

		// Assert
		requireDec(t, "no-fee class nav", testutil.Dec(10000), results[0].NavPerShare)
		requireDec(t, "no-fee class fees", testutil.Dec(0), results[0].AccumulatedMgmtFees)
		requireDec(t, "fee class nav", testutil.Dec(9800), results[1].NavPerShare)
		requireDec(t, "fee class fees", testutil.Dec(20000), results[1].AccumulatedMgmtFees)
		if results[1].LastCalc != testutil.Epoch.Add(year).Unix() {
			t.Errorf("Expected LastCalc to move to now, got %d", results[1].LastCalc)
		}
	})

	t.Run("recalculating without elapsed time is stable", func(t *testing.T) {
		// Setup
		tl := testutil.NewTestLedger(t, testutil.SetupTestDB(t))
		feeClass := testutil.NewShareClass().WithMgmtFee(200).Build(t, tl)
		testutil.NewInvestor(1).Subscribed(testutil.Dec(1000000)).Build(t, tl)
		testutil.NewInvestor(2).InClass(feeClass.ID).Subscribed(testutil.Dec(1000000)).Build(t, tl)
		tl.SetQuote(t, 2000000, 300000)
		tl.Clock.Advance(year)
		first := tl.CalcNav(t)

		// Execute
		second := tl.CalcNav(t)

		// Assert
		for i := range first {
			requireDec(t, "navPerShare", first[i].NavPerShare, second[i].NavPerShare)
			requireDec(t, "accumulatedMgmtFees", first[i].AccumulatedMgmtFees, second[i].AccumulatedMgmtFees)
			requireDec(t, "lossCarryforward", first[i].LossCarryforward, second[i].LossCarryforward)
		}
	})

	t.Run("recalculation makes earlier prices stale", func(t *testing.T) {
		// Setup
		tl := testutil.NewTestLedger(t, testutil.SetupTestDB(t))
		addr := testutil.NewInvestor(1).Requested(testutil.Dec(100000)).Build(t, tl).Address
		tl.SetQuote(t, 1, 300000)
		oldAsOf := tl.AsOf(t, 0)
		tl.Clock.Advance(time.Hour)
		tl.CalcNav(t)

		// Execute
		_, stale := tl.Lifecycle.SubscribeInvestor(ctx, service.Manager(), addr, oldAsOf)
		_, fresh := tl.Lifecycle.SubscribeInvestor(ctx, service.Manager(), addr, tl.AsOf(t, 0))

		// Assert
		requireErrorIs(t, stale, apperrors.ErrStalePrice)
		if fresh != nil {
			t.Fatalf("SubscribeInvestor() at the new price returned unexpected error: %v", fresh)
		}
	})

	t.Run("requires a quote", func(t *testing.T) {
		tl := testutil.NewTestLedger(t, testutil.SetupTestDB(t))
		_, err := tl.Nav.CalcNav(ctx, service.Manager())
		requireErrorIs(t, err, apperrors.ErrQuoteNotFound)
	})

	t.Run("scheduled jobs may recalculate", func(t *testing.T) {
		tl := testutil.NewTestLedger(t, testutil.SetupTestDB(t))
		tl.SetQuote(t, 1, 300000)
		if _, err := tl.Nav.CalcNav(ctx, service.System()); err != nil {
			t.Fatalf("CalcNav() as system returned unexpected error: %v", err)
		}
	})
}

// TestNavService_SingleClass tests recalculating and previewing one class.
//
// WHY: Managers price one class before fulfilling its investors. The
// preview must never write, and the persisted path must leave other
// classes alone.
func TestNavService_SingleClass(t *testing.T) {
	ctx := context.Background()

	// Setup
	tl := testutil.NewTestLedger(t, testutil.SetupTestDB(t))
	feeClass := testutil.NewShareClass().WithMgmtFee(200).Build(t, tl)
	testutil.NewInvestor(1).Subscribed(testutil.Dec(1000000)).Build(t, tl)
	testutil.NewInvestor(2).InClass(feeClass.ID).Subscribed(testutil.Dec(1000000)).Build(t, tl)
	tl.SetQuote(t, 2000000, 300000)
	tl.Clock.Advance(year)

	t.Run("preview does not write", func(t *testing.T) {
		// Execute
		preview, err := tl.Nav.PreviewShareClassNav(ctx, feeClass.ID)

		// Assert
		if err != nil {
			t.Fatalf("PreviewShareClassNav() returned unexpected error: %v", err)
		}
		requireDec(t, "preview navPerShare", testutil.Dec(9800), preview.NavPerShare)
		if got := tl.AsOf(t, feeClass.ID); got != testutil.Epoch.Unix() {
			t.Errorf("Preview moved LastCalc to %d", got)
		}
	})

	t.Run("calculate one class", func(t *testing.T) {
		// Execute
		result, err := tl.Nav.CalcShareClassNav(ctx, service.Manager(), feeClass.ID)

		// Assert
		if err != nil {
			t.Fatalf("CalcShareClassNav() returned unexpected error: %v", err)
		}
		requireDec(t, "navPerShare", testutil.Dec(9800), result.NavPerShare)
		requireDec(t, "accumulatedAdminFees", testutil.Dec(0), result.AccumulatedAdminFees)
		if result.LastCalc != testutil.Epoch.Add(year).Unix() {
			t.Errorf("Expected LastCalc %d, got %d", testutil.Epoch.Add(year).Unix(), result.LastCalc)
		}
		if got := tl.AsOf(t, 0); got != testutil.Epoch.Unix() {
			t.Errorf("Class 0 LastCalc moved to %d", got)
		}
	})

	t.Run("history lists snapshots newest first", func(t *testing.T) {
		// Execute
		history, err := tl.Nav.NavHistory(ctx, feeClass.ID, 10)

		// Assert
		if err != nil {
			t.Fatalf("NavHistory() returned unexpected error: %v", err)
		}
		if len(history) != 1 {
			t.Fatalf("Expected 1 snapshot, got %d", len(history))
		}
		requireDec(t, "snapshot navPerShare", testutil.Dec(9800), history[0].NavPerShare)
		requireDec(t, "snapshot grossValue", testutil.Dec(1000000), history[0].GrossValue)
	})

	t.Run("unknown class", func(t *testing.T) {
		_, err := tl.Nav.CalcShareClassNav(ctx, service.Manager(), 42)
		requireErrorIs(t, err, apperrors.ErrShareClassNotFound)

		_, err = tl.Nav.NavHistory(ctx, 42, 10)
		requireErrorIs(t, err, apperrors.ErrShareClassNotFound)
	})
}

package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/model"
	"github.com/ndewijer/fund-ledger/internal/service"
	"github.com/ndewijer/fund-ledger/internal/testutil"
)

// TestShareClassService_AddShareClass tests appending share classes.
//
// WHY: Class IDs are handed to investors at whitelisting and never reused,
// and a new class must start at par with its fee clock at the current time.
func TestShareClassService_AddShareClass(t *testing.T) {
	ctx := context.Background()

	t.Run("new class starts at par", func(t *testing.T) {
		// Setup
		tl := testutil.NewTestLedger(t, testutil.SetupTestDB(t))
		tl.Clock.Advance(time.Hour)

		// Execute
		sc, err := tl.ShareClasses.AddShareClass(ctx, service.Manager(),
			model.FeeTerms{AdminFeeBps: 50, MgmtFeeBps: 200, PerformFeeBps: 2000})

		// Assert
		if err != nil {
			t.Fatalf("AddShareClass() returned unexpected error: %v", err)
		}
		if sc.ID != 1 {
			t.Errorf("Expected ID 1, got %d", sc.ID)
		}
		requireDec(t, "navPerShare", testutil.Dec(10000), sc.NavPerShare)
		requireDec(t, "shareSupply", testutil.Dec(0), sc.ShareSupply)
		if !sc.LastCalc.Equal(tl.Clock.Now()) {
			t.Errorf("Expected lastCalc %v, got %v", tl.Clock.Now(), sc.LastCalc)
		}

		next := testutil.NewShareClass().Build(t, tl)
		if next.ID != 2 {
			t.Errorf("Expected ID 2, got %d", next.ID)
		}
		tl.RequireReconciled(t)
	})

	t.Run("fee out of range", func(t *testing.T) {
		tl := testutil.NewTestLedger(t, testutil.SetupTestDB(t))

		tests := []struct {
			name  string
			terms model.FeeTerms
		}{
			{"admin above 100%", model.FeeTerms{AdminFeeBps: 10001}},
			{"mgmt negative", model.FeeTerms{MgmtFeeBps: -1}},
			{"perform above 100%", model.FeeTerms{PerformFeeBps: 20000}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := tl.ShareClasses.AddShareClass(ctx, service.Manager(), tt.terms)
				requireErrorIs(t, err, apperrors.ErrInvalidFeeBps)
			})
		}

		t.Run("first invalid field is reported", func(t *testing.T) {
			for range 20 {
				_, err := tl.ShareClasses.AddShareClass(ctx, service.Manager(),
					model.FeeTerms{AdminFeeBps: -5, MgmtFeeBps: 10001, PerformFeeBps: 20000})
				requireErrorIs(t, err, apperrors.ErrInvalidFeeBps)
				if !strings.Contains(err.Error(), "adminFeeBps is -5") {
					t.Fatalf("Expected error to name adminFeeBps, got %q", err.Error())
				}
			}
		})

		classes, _ := tl.ShareClasses.ListShareClasses(ctx)
		if len(classes) != 1 {
			t.Errorf("Expected only class 0, got %d classes", len(classes))
		}
	})

	t.Run("investor cannot add classes", func(t *testing.T) {
		tl := testutil.NewTestLedger(t, testutil.SetupTestDB(t))
		_, err := tl.ShareClasses.AddShareClass(ctx, service.InvestorCaller(testutil.MakeAddress(1)), model.FeeTerms{})
		requireErrorIs(t, err, apperrors.ErrForbidden)
	})
}

// TestShareClassService_ModifyShareClassTerms tests fee term changes.
//
// WHY: New rates apply from the next calculation on. Accrued fees and the
// price of the class must not move when terms change.
func TestShareClassService_ModifyShareClassTerms(t *testing.T) {
	ctx := context.Background()

	t.Run("keeps accrued state", func(t *testing.T) {
		// Setup
		tl := testutil.NewTestLedger(t, testutil.SetupTestDB(t))
		sc := testutil.NewShareClass().WithMgmtFee(200).Build(t, tl)
		testutil.NewInvestor(1).InClass(sc.ID).Subscribed(testutil.Dec(1000000)).Build(t, tl)
		tl.SetQuote(t, 1000000, 300000)
		tl.Clock.Advance(year)
		tl.CalcNav(t)
		before, _ := tl.ShareClasses.GetShareClass(ctx, sc.ID)

		// Execute
		updated, err := tl.ShareClasses.ModifyShareClassTerms(ctx, service.Manager(), sc.ID,
			model.FeeTerms{MgmtFeeBps: 100, PerformFeeBps: 1500})

		// Assert
		if err != nil {
			t.Fatalf("ModifyShareClassTerms() returned unexpected error: %v", err)
		}
		if updated.MgmtFeeBps != 100 || updated.PerformFeeBps != 1500 || updated.AdminFeeBps != 0 {
			t.Errorf("Unexpected fee terms %+v", updated.FeeTerms)
		}
		after, _ := tl.ShareClasses.GetShareClass(ctx, sc.ID)
		requireDec(t, "navPerShare", before.NavPerShare, after.NavPerShare)
		requireDec(t, "accumulatedMgmtFees", before.AccumulatedMgmtFees, after.AccumulatedMgmtFees)
		requireDec(t, "shareSupply", before.ShareSupply, after.ShareSupply)
		if !after.LastCalc.Equal(before.LastCalc) {
			t.Errorf("LastCalc moved from %v to %v", before.LastCalc, after.LastCalc)
		}
	})

	t.Run("unknown class is a validation and lookup error", func(t *testing.T) {
		tl := testutil.NewTestLedger(t, testutil.SetupTestDB(t))

		_, err := tl.ShareClasses.ModifyShareClassTerms(ctx, service.Manager(), 9, model.FeeTerms{})

		if !errors.Is(err, apperrors.ErrValidation) {
			t.Errorf("Expected validation error, got %v", err)
		}
		if !errors.Is(err, apperrors.ErrShareClassNotFound) {
			t.Errorf("Expected share class not found, got %v", err)
		}
	})

	t.Run("bad bps", func(t *testing.T) {
		tl := testutil.NewTestLedger(t, testutil.SetupTestDB(t))
		_, err := tl.ShareClasses.ModifyShareClassTerms(ctx, service.Manager(), 0, model.FeeTerms{AdminFeeBps: 10001})
		requireErrorIs(t, err, apperrors.ErrInvalidFeeBps)
	})
}

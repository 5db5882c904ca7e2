package service_test

import (
	"context"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/model"
	"github.com/ndewijer/fund-ledger/internal/service"
	"github.com/ndewijer/fund-ledger/internal/testutil"
)

// TestFundService_EnsureInitialized tests fund creation at startup.
//
// WHY: Startup runs EnsureInitialized every time. It must create the fund
// exactly once and never reset an existing ledger.
func TestFundService_EnsureInitialized(t *testing.T) {
	ctx := context.Background()

	t.Run("creates class 0 and configured classes", func(t *testing.T) {
		// Setup
		terms := testutil.DefaultTerms()
		terms.ShareClasses = []model.FeeTerms{{MgmtFeeBps: 200, PerformFeeBps: 2000}}

		// Execute
		tl := testutil.NewTestLedgerWithTerms(t, testutil.SetupTestDB(t), terms)

		// Assert
		classes, err := tl.ShareClasses.ListShareClasses(ctx)
		if err != nil {
			t.Fatalf("ListShareClasses() failed: %v", err)
		}
		if len(classes) != 2 {
			t.Fatalf("Expected 2 share classes, got %d", len(classes))
		}
		if diff := cmp.Diff(model.FeeTerms{}, classes[0].FeeTerms); diff != "" {
			t.Errorf("Class 0 fee terms mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(terms.ShareClasses[0], classes[1].FeeTerms); diff != "" {
			t.Errorf("Class 1 fee terms mismatch (-want +got):\n%s", diff)
		}

		fund := tl.Fund(t)
		if fund.Name != "Test Fund" || fund.Symbol != "TST" || fund.Decimals != 4 {
			t.Errorf("Unexpected fund details: %+v", fund)
		}
	})

	t.Run("second call keeps the existing fund", func(t *testing.T) {
		// Setup
		tl := testutil.NewTestLedger(t, testutil.SetupTestDB(t))
		testutil.NewInvestor(1).Build(t, tl)

		// Execute
		created, err := tl.Funds.EnsureInitialized(ctx, testutil.DefaultTerms())

		// Assert
		if err != nil {
			t.Fatalf("EnsureInitialized() returned unexpected error: %v", err)
		}
		if created {
			t.Error("Expected existing fund to be kept")
		}
		if tl.Fund(t).InvestorCount != 1 {
			t.Error("Existing investor count was reset")
		}
	})

	t.Run("invalid fee terms are rejected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		tl := testutil.NewTestLedger(t, db)
		terms := testutil.DefaultTerms()
		terms.ShareClasses = []model.FeeTerms{{PerformFeeBps: 10001}}

		_, err := tl.Funds.EnsureInitialized(ctx, terms)
		requireErrorIs(t, err, apperrors.ErrInvalidFeeBps)
	})
}

// TestFundService_WhiteListInvestor tests adding investors.
//
// WHY: The whitelist is the gate for every investor action. The investor
// count must follow the list exactly.
func TestFundService_WhiteListInvestor(t *testing.T) {
	ctx := context.Background()

	t.Run("adds investor with zero balances", func(t *testing.T) {
		// Setup
		tl := testutil.NewTestLedger(t, testutil.SetupTestDB(t))

		// Execute
		inv, err := tl.Funds.WhiteListInvestor(ctx, service.Manager(),
			"0xABCDEF0123456789abcdef0123456789ABCDEF01", model.InvestorTypeAsset, 0)

		// Assert
		if err != nil {
			t.Fatalf("WhiteListInvestor() returned unexpected error: %v", err)
		}
		if inv.Address != "0xabcdef0123456789abcdef0123456789abcdef01" {
			t.Errorf("Expected normalized address, got %s", inv.Address)
		}
		if inv.Allocation != nil {
			t.Errorf("Expected no allocation, got %s", inv.Allocation)
		}
		if !inv.IsEmpty() {
			t.Errorf("Expected empty investor, got %+v", inv)
		}
		if tl.Fund(t).InvestorCount != 1 {
			t.Errorf("Expected investor count 1, got %d", tl.Fund(t).InvestorCount)
		}
		tl.RequireReconciled(t)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		tl := testutil.NewTestLedger(t, testutil.SetupTestDB(t))
		addr := testutil.MakeAddress(1)
		testutil.NewInvestor(1).Build(t, tl)

		tests := []struct {
			name    string
			address string
			typ     model.InvestorType
			class   int
			want    error
		}{
			{"already whitelisted", addr, model.InvestorTypeCurrency, 0, apperrors.ErrAlreadyWhitelisted},
			{"bad address", "0x1234", model.InvestorTypeCurrency, 0, apperrors.ErrInvalidAddress},
			{"type none", testutil.MakeAddress(2), model.InvestorTypeNone, 0, apperrors.ErrInvalidInvestorType},
			{"unknown class", testutil.MakeAddress(2), model.InvestorTypeCurrency, 7, apperrors.ErrShareClassNotFound},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := tl.Funds.WhiteListInvestor(ctx, service.Manager(), tt.address, tt.typ, tt.class)
				requireErrorIs(t, err, tt.want)
			})
		}
		if tl.Fund(t).InvestorCount != 1 {
			t.Errorf("Expected investor count 1, got %d", tl.Fund(t).InvestorCount)
		}
	})
}

// TestFundService_RemoveInvestor tests removal from the investor list.
//
// WHY: Batches walk the address list by position. Removal must keep the
// positions dense and may only drop investors that hold nothing.
func TestFundService_RemoveInvestor(t *testing.T) {
	ctx := context.Background()

	t.Run("last investor fills the freed position", func(t *testing.T) {
		// Setup
		tl := testutil.NewTestLedger(t, testutil.SetupTestDB(t))
		for n := 1; n <= 3; n++ {
			testutil.NewInvestor(n).Build(t, tl)
		}

		// Execute
		err := tl.Funds.RemoveInvestor(ctx, service.Manager(), testutil.MakeAddress(1))

		// Assert
		if err != nil {
			t.Fatalf("RemoveInvestor() returned unexpected error: %v", err)
		}
		addresses, err := tl.Funds.ListInvestorAddresses(ctx)
		if err != nil {
			t.Fatalf("ListInvestorAddresses() failed: %v", err)
		}
		want := []string{testutil.MakeAddress(3), testutil.MakeAddress(2)}
		if diff := cmp.Diff(want, addresses); diff != "" {
			t.Errorf("Address list mismatch (-want +got):\n%s", diff)
		}
		if tl.Fund(t).InvestorCount != 2 {
			t.Errorf("Expected investor count 2, got %d", tl.Fund(t).InvestorCount)
		}
		tl.RequireReconciled(t)
	})

	t.Run("removing the last position", func(t *testing.T) {
		tl := testutil.NewTestLedger(t, testutil.SetupTestDB(t))
		testutil.NewInvestor(1).Build(t, tl)
		testutil.NewInvestor(2).Build(t, tl)

		if err := tl.Funds.RemoveInvestor(ctx, service.Manager(), testutil.MakeAddress(2)); err != nil {
			t.Fatalf("RemoveInvestor() returned unexpected error: %v", err)
		}
		addresses, _ := tl.Funds.ListInvestorAddresses(ctx)
		if !slices.Equal(addresses, []string{testutil.MakeAddress(1)}) {
			t.Errorf("Unexpected address list %v", addresses)
		}
	})

	t.Run("investor with balance is kept", func(t *testing.T) {
		tl := testutil.NewTestLedger(t, testutil.SetupTestDB(t))
		addr := testutil.NewInvestor(1).Requested(testutil.Dec(100000)).Build(t, tl).Address

		err := tl.Funds.RemoveInvestor(ctx, service.Manager(), addr)
		requireErrorIs(t, err, apperrors.ErrInvestorNotEmpty)
	})

	t.Run("unknown investor", func(t *testing.T) {
		tl := testutil.NewTestLedger(t, testutil.SetupTestDB(t))
		err := tl.Funds.RemoveInvestor(ctx, service.Manager(), testutil.MakeAddress(5))
		requireErrorIs(t, err, apperrors.ErrInvestorNotFound)
	})
}

// TestFundService_GetInvestorStatement tests the valued investor view.
//
// WHY: Statements are what investors see. The holding must be valued at
// the current class NAV and rounded down.
func TestFundService_GetInvestorStatement(t *testing.T) {
	ctx := context.Background()

	// Setup
	tl := testutil.NewTestLedger(t, testutil.SetupTestDB(t))
	addr := testutil.NewInvestor(1).Subscribed(testutil.Dec(1000000)).Build(t, tl).Address
	tl.SetQuote(t, 1500000, 300000)
	tl.CalcNav(t)

	// Execute
	statement, err := tl.Funds.GetInvestorStatement(ctx, addr)

	// Assert
	if err != nil {
		t.Fatalf("GetInvestorStatement() returned unexpected error: %v", err)
	}
	requireDec(t, "navPerShare", testutil.Dec(15000), statement.NavPerShare)
	requireDec(t, "holdingValueCents", testutil.Dec(1500000), statement.HoldingValueCents)
	if statement.HoldingValue != "$15,000.00" {
		t.Errorf("Expected holding value $15,000.00, got %s", statement.HoldingValue)
	}
	if statement.Shares != "100.0000" {
		t.Errorf("Expected 100.0000 shares, got %s", statement.Shares)
	}
	if statement.PendingWithdrawalDisplay != "$0.00" {
		t.Errorf("Expected $0.00 pending withdrawal, got %s", statement.PendingWithdrawalDisplay)
	}
}

// TestFundService_ListJournal tests the action journal.
//
// WHY: The journal is the audit trail. Every committed action must appear
// with its investor, newest first.
func TestFundService_ListJournal(t *testing.T) {
	ctx := context.Background()

	// Setup
	tl := testutil.NewTestLedger(t, testutil.SetupTestDB(t))
	addr := testutil.NewInvestor(1).Subscribed(testutil.Dec(100000)).Build(t, tl).Address
	testutil.NewInvestor(2).Build(t, tl)

	// Execute
	entries, err := tl.Funds.ListJournal(ctx, model.JournalFilter{Investor: addr})

	// Assert
	if err != nil {
		t.Fatalf("ListJournal() returned unexpected error: %v", err)
	}
	var actions []string
	for _, e := range entries {
		if e.Investor != addr {
			t.Errorf("Entry for %s returned for filter %s", e.Investor, addr)
		}
		actions = append(actions, e.Action)
	}
	want := []string{"subscribe", "deposit", "whiteListInvestor"}
	if diff := cmp.Diff(want, actions); diff != "" {
		t.Errorf("Journal actions mismatch (-want +got):\n%s", diff)
	}
	if entries[0].ActorRole != string(service.RoleManager) {
		t.Errorf("Expected subscribe recorded for manager, got %s", entries[0].ActorRole)
	}

	limited, err := tl.Funds.ListJournal(ctx, model.JournalFilter{Limit: 1})
	if err != nil {
		t.Fatalf("ListJournal() returned unexpected error: %v", err)
	}
	if len(limited) != 1 || limited[0].Action != "whiteListInvestor" {
		t.Errorf("Expected latest entry to whitelist investor 2, got %+v", limited)
	}
}

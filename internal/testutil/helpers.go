package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"github.com/ndewijer/fund-ledger/internal/model"
	"github.com/ndewijer/fund-ledger/internal/repository"
	"github.com/ndewijer/fund-ledger/internal/service"
)

// Epoch is the ledger time every TestLedger starts at.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Clock is a manually advanced clock for deterministic fee accrual.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock stopped at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// DefaultTerms returns the fund terms used by NewTestLedger: a 1000.00 USD
// first subscription, 100.00 USD follow-ups and a one share redemption minimum.
func DefaultTerms() model.FundTerms {
	return model.FundTerms{
		Name:                        "Test Fund",
		Symbol:                      "TST",
		MinInitialSubscriptionCents: decimal.NewFromInt(100000),
		MinSubscriptionCents:        decimal.NewFromInt(10000),
		MinRedemptionShares:         decimal.NewFromInt(10000),
	}
}

// TestLedger wires every ledger service over one test database.
type TestLedger struct {
	DB           *sql.DB
	Clock        *Clock
	Ledger       *service.Ledger
	Funds        *service.FundService
	ShareClasses *service.ShareClassService
	Nav          *service.NavService
	Lifecycle    *service.LifecycleService
	DataFeed     *service.DataFeedService
	Feed         *MockFeedClient
}

// NewTestLedger creates an initialized fund on db with DefaultTerms and the
// clock at Epoch. Invariant checks run after every action.
func NewTestLedger(t *testing.T, db *sql.DB) *TestLedger {
	t.Helper()
	return NewTestLedgerWithTerms(t, db, DefaultTerms())
}

// NewTestLedgerWithTerms is NewTestLedger with custom fund terms.
func NewTestLedgerWithTerms(t *testing.T, db *sql.DB, terms model.FundTerms) *TestLedger {
	t.Helper()

	logger := zaptest.NewLogger(t)
	clock := NewClock(Epoch)
	ledger := service.NewLedger(db, repository.NewSet(db), logger,
		service.WithClock(clock.Now),
		service.WithInvariantChecks(true),
	)
	feed := NewMockFeedClient()

	tl := &TestLedger{
		DB:           db,
		Clock:        clock,
		Ledger:       ledger,
		Funds:        service.NewFundService(ledger, logger),
		ShareClasses: service.NewShareClassService(ledger, logger),
		Nav:          service.NewNavService(ledger, logger),
		Lifecycle:    service.NewLifecycleService(ledger, logger),
		DataFeed:     service.NewDataFeedService(ledger, feed, nil, logger),
		Feed:         feed,
	}

	if _, err := tl.Funds.EnsureInitialized(context.Background(), terms); err != nil {
		t.Fatalf("Failed to initialize fund: %v", err)
	}
	return tl
}

// SetQuote records a manager quote and fails the test on error.
func (tl *TestLedger) SetQuote(t *testing.T, valueCents, usdEth int64) model.Quote {
	t.Helper()
	q, err := tl.DataFeed.UpdateByManager(context.Background(), service.Manager(), model.Quote{
		Value:  decimal.NewFromInt(valueCents),
		UsdEth: decimal.NewFromInt(usdEth),
		UsdBtc: decimal.NewFromInt(4000000),
		UsdLtc: decimal.NewFromInt(7000),
	})
	if err != nil {
		t.Fatalf("Failed to set quote: %v", err)
	}
	return q
}

// CalcNav recalculates every share class and returns the result for class 0.
func (tl *TestLedger) CalcNav(t *testing.T) []model.NavResult {
	t.Helper()
	results, err := tl.Nav.CalcNav(context.Background(), service.Manager())
	if err != nil {
		t.Fatalf("CalcNav() failed: %v", err)
	}
	return results
}

// AsOf returns the LastCalc of a share class, the value fulfilments must quote.
func (tl *TestLedger) AsOf(t *testing.T, classID int) int64 {
	t.Helper()
	sc, err := tl.ShareClasses.GetShareClass(context.Background(), classID)
	if err != nil {
		t.Fatalf("Failed to load share class %d: %v", classID, err)
	}
	return sc.LastCalc.Unix()
}

// Investor reloads an investor record.
func (tl *TestLedger) Investor(t *testing.T, address string) model.Investor {
	t.Helper()
	inv, err := tl.Funds.GetInvestor(context.Background(), address)
	if err != nil {
		t.Fatalf("Failed to load investor %s: %v", address, err)
	}
	return inv
}

// Fund reloads the fund record.
func (tl *TestLedger) Fund(t *testing.T) model.Fund {
	t.Helper()
	fund, err := tl.Funds.GetFundDetails(context.Background())
	if err != nil {
		t.Fatalf("Failed to load fund: %v", err)
	}
	return fund
}

// RequireReconciled fails the test unless the ledger totals reconcile.
func (tl *TestLedger) RequireReconciled(t *testing.T) {
	t.Helper()
	report, err := tl.Funds.CheckInvariants(context.Background())
	if err != nil {
		t.Fatalf("CheckInvariants() failed: %v", err)
	}
	if !report.Reconciled {
		t.Fatalf("Ledger does not reconcile: %v", report.Mismatches)
	}
}

// NewTestSystemService creates a SystemService with no optional features.
func NewTestSystemService(t *testing.T, db *sql.DB) *service.SystemService {
	t.Helper()
	return service.NewSystemService(db, map[string]bool{})
}

// MakeID generates a unique UUID for testing.
//
// Example usage:
//
//	id := testutil.MakeID()
//	// Returns: "550e8400-e29b-41d4-a716-446655440000"
func MakeID() string {
	return uuid.New().String()
}

// MakeAddress returns a deterministic investor address for n.
//
// Example usage:
//
//	addr := testutil.MakeAddress(1)
//	// Returns: "0x0000000000000000000000000000000000000001"
func MakeAddress(n int) string {
	return fmt.Sprintf("0x%040x", n)
}

// Dec is decimal.NewFromInt, shortened for table-driven tests.
func Dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// Wei returns whole asset units as wei.
func Wei(eth int64) decimal.Decimal {
	return decimal.New(eth, 18)
}

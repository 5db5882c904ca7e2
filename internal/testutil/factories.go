package testutil

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/fund-ledger/internal/model"
	"github.com/ndewijer/fund-ledger/internal/service"
)

// InvestorBuilder provides a fluent interface for putting test investors on
// the ledger. Everything goes through the services so the ledger totals
// always reconcile.
//
// Example usage:
//
//	// Whitelisted currency investor in class 0
//	inv := testutil.NewInvestor(1).Build(t, tl)
//
//	// Asset investor in class 1 holding shares bought with 2 ETH
//	inv := testutil.NewInvestor(2).
//	    Asset().
//	    InClass(1).
//	    Subscribed(testutil.Wei(2)).
//	    Build(t, tl)
type InvestorBuilder struct {
	Address    string
	Type       model.InvestorType
	ShareClass int
	Deposit    decimal.Decimal
	Fill       bool
}

// NewInvestor creates an InvestorBuilder for a currency investor in class 0.
func NewInvestor(n int) *InvestorBuilder {
	return &InvestorBuilder{
		Address: MakeAddress(n),
		Type:    model.InvestorTypeCurrency,
		Deposit: decimal.Zero,
	}
}

// Asset makes the investor settle in the asset.
func (b *InvestorBuilder) Asset() *InvestorBuilder {
	b.Type = model.InvestorTypeAsset
	return b
}

// InClass sets the share class.
func (b *InvestorBuilder) InClass(id int) *InvestorBuilder {
	b.ShareClass = id
	return b
}

// Requested leaves amount as a pending subscription.
func (b *InvestorBuilder) Requested(amount decimal.Decimal) *InvestorBuilder {
	b.Deposit = amount
	b.Fill = false
	return b
}

// Subscribed deposits amount and converts it into shares at the current NAV.
func (b *InvestorBuilder) Subscribed(amount decimal.Decimal) *InvestorBuilder {
	b.Deposit = amount
	b.Fill = true
	return b
}

// Build whitelists the investor and applies the requested subscription.
func (b *InvestorBuilder) Build(t *testing.T, tl *TestLedger) model.Investor {
	t.Helper()
	ctx := context.Background()

	if _, err := tl.Funds.WhiteListInvestor(ctx, service.Manager(), b.Address, b.Type, b.ShareClass); err != nil {
		t.Fatalf("Failed to whitelist investor %s: %v", b.Address, err)
	}

	if b.Deposit.IsPositive() {
		caller := service.InvestorCaller(b.Address)
		if _, err := tl.Lifecycle.RequestSubscription(ctx, caller, b.Deposit); err != nil {
			t.Fatalf("Failed to request subscription for %s: %v", b.Address, err)
		}
	}
	if b.Fill {
		if _, err := tl.Lifecycle.SubscribeInvestor(ctx, service.Manager(), b.Address, tl.AsOf(t, b.ShareClass)); err != nil {
			t.Fatalf("Failed to subscribe investor %s: %v", b.Address, err)
		}
	}

	return tl.Investor(t, b.Address)
}

// ShareClassBuilder provides a fluent interface for adding share classes.
//
// Example usage:
//
//	sc := testutil.NewShareClass().WithPerformFee(2000).Build(t, tl)
type ShareClassBuilder struct {
	Terms model.FeeTerms
}

// NewShareClass creates a ShareClassBuilder without fees.
func NewShareClass() *ShareClassBuilder {
	return &ShareClassBuilder{}
}

// WithMgmtFee sets the annual management fee.
func (b *ShareClassBuilder) WithMgmtFee(bps int) *ShareClassBuilder {
	b.Terms.MgmtFeeBps = bps
	return b
}

// WithAdminFee sets the annual administration fee.
func (b *ShareClassBuilder) WithAdminFee(bps int) *ShareClassBuilder {
	b.Terms.AdminFeeBps = bps
	return b
}

// WithPerformFee sets the performance fee.
func (b *ShareClassBuilder) WithPerformFee(bps int) *ShareClassBuilder {
	b.Terms.PerformFeeBps = bps
	return b
}

// Build adds the share class to the registry.
func (b *ShareClassBuilder) Build(t *testing.T, tl *TestLedger) model.ShareClass {
	t.Helper()
	sc, err := tl.ShareClasses.AddShareClass(context.Background(), service.Manager(), b.Terms)
	if err != nil {
		t.Fatalf("Failed to add share class: %v", err)
	}
	return sc
}

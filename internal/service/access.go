package service

import (
	"fmt"
	"slices"

	"github.com/ndewijer/fund-ledger/internal/apperrors"
)

// Role is the capability a caller acts with.
type Role string

const (
	RoleManager  Role = "manager"
	RoleInvestor Role = "investor"
	RoleExchange Role = "exchange"
	// RoleSystem is used by scheduled jobs. It may do what the manager does
	// for NAV and data feed maintenance only.
	RoleSystem Role = "system"
)

// Caller identifies who triggers a ledger action. Investors always act on
// their own address.
type Caller struct {
	Role    Role
	Address string
}

// Manager returns a manager caller.
func Manager() Caller { return Caller{Role: RoleManager} }

// System returns the caller used by scheduled jobs.
func System() Caller { return Caller{Role: RoleSystem} }

// Exchange returns the settlement counterpart caller.
func Exchange() Caller { return Caller{Role: RoleExchange} }

// InvestorCaller returns a caller acting as the investor at address.
func InvestorCaller(address string) Caller {
	return Caller{Role: RoleInvestor, Address: address}
}

// String identifies the caller in logs and the journal.
func (c Caller) String() string {
	if c.Address == "" {
		return string(c.Role)
	}
	return string(c.Role) + ":" + c.Address
}

// Permission lists the roles allowed to run an action.
type Permission []Role

var (
	managerOnly   = Permission{RoleManager}
	investorOnly  = Permission{RoleInvestor}
	exchangeOnly  = Permission{RoleExchange}
	managerSystem = Permission{RoleManager, RoleSystem}
)

// authorize is the single role check every ledger entry point goes through.
func (p Permission) authorize(action string, c Caller) error {
	if !slices.Contains(p, c.Role) {
		return fmt.Errorf("%s as %s: %w", action, c.Role, apperrors.ErrForbidden)
	}
	if c.Role == RoleInvestor && c.Address == "" {
		return fmt.Errorf("%s: %w", action, apperrors.ErrInvalidCaller)
	}
	return nil
}

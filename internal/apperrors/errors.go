package apperrors

import (
	"errors"
	"fmt"
)

// Error kinds. Every ledger error wraps exactly one of these so callers can
// branch on the kind with errors.Is and still report the precise reason.
var (
	// ErrValidation indicates that the input violated a business rule. The
	// action was fully reverted and may be retried with corrected input.
	ErrValidation = errors.New("validation failed")

	// ErrAuthorization indicates that the caller's role may not perform the action.
	ErrAuthorization = errors.New("not authorized")

	// ErrInsufficientFunds indicates that settled funds do not cover a redemption,
	// liquidation or payout. Batches are reverted as a whole.
	ErrInsufficientFunds = errors.New("insufficient settled funds")

	// ErrInvariantViolation indicates that ledger state is inconsistent or a
	// computation produced an impossible value. Never coerced to a default.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrNotFound indicates that a requested entity does not exist.
	ErrNotFound = errors.New("not found")
)

// Domain entity errors represent missing entities.
var (
	// ErrFundNotFound indicates the fund has not been initialized.
	ErrFundNotFound = fmt.Errorf("%w: fund", ErrNotFound)

	// ErrShareClassNotFound indicates that a share class with the given ID does not exist.
	ErrShareClassNotFound = fmt.Errorf("%w: share class", ErrNotFound)

	// ErrInvestorNotFound indicates that the address is not on the investor list.
	ErrInvestorNotFound = fmt.Errorf("%w: investor", ErrNotFound)

	// ErrQuoteNotFound indicates that no data feed quote has been recorded yet.
	ErrQuoteNotFound = fmt.Errorf("%w: data feed quote", ErrNotFound)

	// ErrFeedConfigNotFound indicates that no remote data feed has been configured.
	ErrFeedConfigNotFound = fmt.Errorf("%w: data feed configuration", ErrNotFound)
)

// Business rule errors. All of them are of the validation kind.
var (
	ErrNotWhitelisted      = fmt.Errorf("%w: investor is not whitelisted", ErrValidation)
	ErrAlreadyWhitelisted  = fmt.Errorf("%w: investor is already whitelisted", ErrValidation)
	ErrInvalidInvestorType = fmt.Errorf("%w: invalid investor type", ErrValidation)
	ErrInvalidAddress      = fmt.Errorf("%w: address must be 0x followed by 40 hex digits", ErrValidation)
	ErrWrongInvestorType   = fmt.Errorf("%w: action not available for this investor type", ErrValidation)
	ErrInvalidFeeBps       = fmt.Errorf("%w: fee must be between 0 and 10000 bps", ErrValidation)
	ErrNonPositiveAmount   = fmt.Errorf("%w: amount must be positive", ErrValidation)
	ErrNegativeAmount      = fmt.Errorf("%w: amount cannot be negative", ErrValidation)

	// ErrBelowMinimumSubscription covers both the first-time and the follow-up minimum.
	ErrBelowMinimumSubscription = fmt.Errorf("%w: subscription below minimum", ErrValidation)
	ErrAboveAllocation          = fmt.Errorf("%w: subscription exceeds allocation", ErrValidation)
	ErrBelowMinimumRedemption   = fmt.Errorf("%w: redemption below minimum", ErrValidation)
	ErrExceedsAvailableShares   = fmt.Errorf("%w: redemption exceeds available shares", ErrValidation)

	ErrNoPendingSubscription = fmt.Errorf("%w: no pending subscription", ErrValidation)
	ErrNoPendingRedemption   = fmt.Errorf("%w: no pending redemption", ErrValidation)
	ErrNoPendingWithdrawal   = fmt.Errorf("%w: no pending withdrawal", ErrValidation)
	ErrNoSharesOwned         = fmt.Errorf("%w: investor owns no shares", ErrValidation)
	ErrInvestorNotEmpty      = fmt.Errorf("%w: investor still holds a balance", ErrValidation)

	// ErrStalePrice indicates that the NAV the caller priced against is no
	// longer the latest calculation for the share class.
	ErrStalePrice = fmt.Errorf("%w: nav timestamp does not match the latest calculation", ErrValidation)

	// ErrFeedThrottled indicates that the remote feed was queried again
	// before its configured interval elapsed.
	ErrFeedThrottled = fmt.Errorf("%w: data feed queried too soon", ErrValidation)

	ErrInvalidQuote  = fmt.Errorf("%w: data feed fields must be non-zero", ErrValidation)
	ErrInvalidUnit   = fmt.Errorf("%w: unknown settlement unit", ErrValidation)
	ErrInvalidCaller = fmt.Errorf("%w: caller has no address", ErrValidation)
)

// Authorization errors.
var (
	// ErrForbidden is returned by the role check for every entry point.
	ErrForbidden = fmt.Errorf("%w: role not permitted", ErrAuthorization)
)

// Data integrity errors represent inconsistencies or corruption in the data.
var (
	// ErrConservation indicates that per-investor, per-class and fund totals disagree.
	ErrConservation = fmt.Errorf("%w: ledger totals do not reconcile", ErrInvariantViolation)

	// ErrRedemptionExceedsOwned indicates shares pending redemption above shares owned.
	ErrRedemptionExceedsOwned = fmt.Errorf("%w: shares pending redemption exceed shares owned", ErrInvariantViolation)

	// ErrNonPositiveNav indicates that a recalculation produced a NAV per share of zero or less.
	ErrNonPositiveNav = fmt.Errorf("%w: nav per share must stay positive", ErrInvariantViolation)
)

// Operation failure errors used as user-facing messages by the HTTP layer.
var (
	ErrFailedToRetrieveFund         = errors.New("failed to retrieve fund")
	ErrFailedToRetrieveShareClass   = errors.New("failed to retrieve share class")
	ErrFailedToRetrieveShareClasses = errors.New("failed to retrieve share classes")
	ErrFailedToRetrieveInvestor     = errors.New("failed to retrieve investor")
	ErrFailedToRetrieveInvestors    = errors.New("failed to retrieve investors")
	ErrFailedToRetrieveJournal      = errors.New("failed to retrieve journal")
	ErrFailedToRetrieveQuote        = errors.New("failed to retrieve data feed quote")
	ErrFailedToRetrieveNavHistory   = errors.New("failed to retrieve nav history")
	ErrFailedToGetVersionInfo       = errors.New("failed to get version information")
	ErrActionFailed                 = errors.New("action failed")
)

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/model"
)

// InvestorRepository provides data access for the investor ledger.
//
// The active address list is the position column: positions are dense from
// 0 to count-1. Removal moves the last investor into the freed slot, so both
// removal and membership checks are O(1) and an iteration over a snapshot of
// the list is never disturbed by later removals.
type InvestorRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewInvestorRepository creates a new InvestorRepository with the provided database connection.
func NewInvestorRepository(db *sql.DB) *InvestorRepository {
	return &InvestorRepository{db: db}
}

func (r *InvestorRepository) WithTx(tx *sql.Tx) *InvestorRepository {
	return &InvestorRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *InvestorRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const investorColumns = `
	address, investor_type, share_class,
	pending_subscription, shares_owned, shares_pending_redemption, pending_withdrawal,
	allocation, position
`

func scanInvestor(row rowScanner) (model.Investor, error) {
	var inv model.Investor
	var allocation decimal.NullDecimal
	err := row.Scan(
		&inv.Address,
		&inv.Type,
		&inv.ShareClass,
		&inv.PendingSubscription,
		&inv.SharesOwned,
		&inv.SharesPendingRedemption,
		&inv.PendingWithdrawal,
		&allocation,
		&inv.Position,
	)
	if err != nil {
		return model.Investor{}, err
	}
	if allocation.Valid {
		inv.Allocation = &allocation.Decimal
	}
	return inv, nil
}

// GetInvestor retrieves an investor by address.
// Returns apperrors.ErrInvestorNotFound if the address is not on the list.
func (r *InvestorRepository) GetInvestor(ctx context.Context, address string) (model.Investor, error) {
	query := `SELECT ` + investorColumns + ` FROM investor WHERE address = ?`

	inv, err := scanInvestor(r.getQuerier().QueryRowContext(ctx, query, address))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Investor{}, apperrors.ErrInvestorNotFound
	}
	if err != nil {
		return model.Investor{}, fmt.Errorf("failed to query investor table: %w", err)
	}
	return inv, nil
}

// ListInvestors retrieves all investors in list order.
// Returns an empty slice if there are none.
func (r *InvestorRepository) ListInvestors(ctx context.Context) ([]model.Investor, error) {
	query := `SELECT ` + investorColumns + ` FROM investor ORDER BY position`

	rows, err := r.getQuerier().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query investor table: %w", err)
	}
	defer rows.Close()

	investors := []model.Investor{}
	for rows.Next() {
		inv, err := scanInvestor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan investor results: %w", err)
		}
		investors = append(investors, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating investor table: %w", err)
	}

	return investors, nil
}

// ListAddresses returns a snapshot of the active address list in list order.
func (r *InvestorRepository) ListAddresses(ctx context.Context) ([]string, error) {
	rows, err := r.getQuerier().QueryContext(ctx, `SELECT address FROM investor ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query investor addresses: %w", err)
	}
	defer rows.Close()

	addresses := []string{}
	for rows.Next() {
		var address string
		if err := rows.Scan(&address); err != nil {
			return nil, fmt.Errorf("failed to scan investor address: %w", err)
		}
		addresses = append(addresses, address)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating investor addresses: %w", err)
	}

	return addresses, nil
}

// InsertInvestor appends an investor at the end of the address list and
// returns the stored record.
func (r *InvestorRepository) InsertInvestor(ctx context.Context, inv model.Investor) (model.Investor, error) {
	var position int
	if err := r.getQuerier().QueryRowContext(ctx, `SELECT COUNT(*) FROM investor`).Scan(&position); err != nil {
		return model.Investor{}, fmt.Errorf("failed to count investors: %w", err)
	}
	inv.Position = position

	query := `INSERT INTO investor (` + investorColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.getQuerier().ExecContext(ctx, query,
		inv.Address,
		inv.Type,
		inv.ShareClass,
		inv.PendingSubscription,
		inv.SharesOwned,
		inv.SharesPendingRedemption,
		inv.PendingWithdrawal,
		nullAllocation(inv.Allocation),
		inv.Position,
	)
	if err != nil {
		return model.Investor{}, fmt.Errorf("failed to insert investor: %w", err)
	}
	return inv, nil
}

// UpdateInvestor persists the balances and allocation of an investor.
// The address, type, class and position are not changed.
func (r *InvestorRepository) UpdateInvestor(ctx context.Context, inv model.Investor) error {
	query := `
		UPDATE investor SET
			pending_subscription = ?,
			shares_owned = ?,
			shares_pending_redemption = ?,
			pending_withdrawal = ?,
			allocation = ?
		WHERE address = ?
	`

	result, err := r.getQuerier().ExecContext(ctx, query,
		inv.PendingSubscription,
		inv.SharesOwned,
		inv.SharesPendingRedemption,
		inv.PendingWithdrawal,
		nullAllocation(inv.Allocation),
		inv.Address,
	)
	if err != nil {
		return fmt.Errorf("failed to update investor: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperrors.ErrInvestorNotFound
	}
	return nil
}

// RemoveInvestor deletes an investor and moves the last investor of the list
// into the freed position.
func (r *InvestorRepository) RemoveInvestor(ctx context.Context, address string) error {
	inv, err := r.GetInvestor(ctx, address)
	if err != nil {
		return err
	}

	if _, err := r.getQuerier().ExecContext(ctx, `DELETE FROM investor WHERE address = ?`, address); err != nil {
		return fmt.Errorf("failed to delete investor: %w", err)
	}

	var last int
	if err := r.getQuerier().QueryRowContext(ctx, `SELECT COALESCE(MAX(position), -1) FROM investor`).Scan(&last); err != nil {
		return fmt.Errorf("failed to find last investor position: %w", err)
	}
	if last > inv.Position {
		_, err := r.getQuerier().ExecContext(ctx, `UPDATE investor SET position = ? WHERE position = ?`, inv.Position, last)
		if err != nil {
			return fmt.Errorf("failed to move last investor: %w", err)
		}
	}
	return nil
}

func nullAllocation(a *decimal.Decimal) decimal.NullDecimal {
	if a == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *a, Valid: true}
}

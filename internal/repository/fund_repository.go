package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/model"
)

// FundRepository provides data access for the singleton fund row.
type FundRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewFundRepository creates a new FundRepository with the provided database connection.
func NewFundRepository(db *sql.DB) *FundRepository {
	return &FundRepository{db: db}
}

func (r *FundRepository) WithTx(tx *sql.Tx) *FundRepository {
	return &FundRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *FundRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// GetFund retrieves the fund record.
// Returns apperrors.ErrFundNotFound if the fund has not been initialized.
func (r *FundRepository) GetFund(ctx context.Context) (model.Fund, error) {
	query := `
		SELECT name, symbol, decimals,
			min_initial_subscription_cents, min_subscription_cents, min_redemption_shares,
			total_share_supply,
			total_pending_subscription_asset, total_pending_subscription_currency,
			total_shares_pending_redemption,
			total_pending_withdrawal_asset, total_pending_withdrawal_currency,
			balance_asset, balance_currency,
			investor_count, created_at
		FROM fund
		WHERE id = 1
	`

	var f model.Fund
	var createdAt int64
	err := r.getQuerier().QueryRowContext(ctx, query).Scan(
		&f.Name,
		&f.Symbol,
		&f.Decimals,
		&f.MinInitialSubscriptionCents,
		&f.MinSubscriptionCents,
		&f.MinRedemptionShares,
		&f.TotalShareSupply,
		&f.TotalPendingSubscriptionAsset,
		&f.TotalPendingSubscriptionCurrency,
		&f.TotalSharesPendingRedemption,
		&f.TotalPendingWithdrawalAsset,
		&f.TotalPendingWithdrawalCurrency,
		&f.BalanceAsset,
		&f.BalanceCurrency,
		&f.InvestorCount,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Fund{}, apperrors.ErrFundNotFound
	}
	if err != nil {
		return model.Fund{}, fmt.Errorf("failed to query fund table: %w", err)
	}
	f.CreatedAt = unixTime(createdAt)

	return f, nil
}

// InsertFund creates the fund row. Aggregates start at zero.
func (r *FundRepository) InsertFund(ctx context.Context, f model.Fund) error {
	query := `
		INSERT INTO fund (id, name, symbol, decimals,
			min_initial_subscription_cents, min_subscription_cents, min_redemption_shares,
			created_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.getQuerier().ExecContext(ctx, query,
		f.Name,
		f.Symbol,
		f.Decimals,
		f.MinInitialSubscriptionCents,
		f.MinSubscriptionCents,
		f.MinRedemptionShares,
		f.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert fund: %w", err)
	}
	return nil
}

// UpdateFund persists the aggregates, balances and investor count of the fund.
// The fund terms are immutable after initialization.
func (r *FundRepository) UpdateFund(ctx context.Context, f model.Fund) error {
	query := `
		UPDATE fund SET
			total_share_supply = ?,
			total_pending_subscription_asset = ?,
			total_pending_subscription_currency = ?,
			total_shares_pending_redemption = ?,
			total_pending_withdrawal_asset = ?,
			total_pending_withdrawal_currency = ?,
			balance_asset = ?,
			balance_currency = ?,
			investor_count = ?
		WHERE id = 1
	`

	result, err := r.getQuerier().ExecContext(ctx, query,
		f.TotalShareSupply,
		f.TotalPendingSubscriptionAsset,
		f.TotalPendingSubscriptionCurrency,
		f.TotalSharesPendingRedemption,
		f.TotalPendingWithdrawalAsset,
		f.TotalPendingWithdrawalCurrency,
		f.BalanceAsset,
		f.BalanceCurrency,
		f.InvestorCount,
	)
	if err != nil {
		return fmt.Errorf("failed to update fund: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperrors.ErrFundNotFound
	}
	return nil
}

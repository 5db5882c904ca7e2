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

// ShareClassRepository provides data access for the share_class table.
type ShareClassRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewShareClassRepository creates a new ShareClassRepository with the provided database connection.
func NewShareClassRepository(db *sql.DB) *ShareClassRepository {
	return &ShareClassRepository{db: db}
}

func (r *ShareClassRepository) WithTx(tx *sql.Tx) *ShareClassRepository {
	return &ShareClassRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *ShareClassRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const shareClassColumns = `
	id, admin_fee_bps, mgmt_fee_bps, perform_fee_bps,
	share_supply, last_calc, nav_per_share, loss_carryforward,
	accumulated_mgmt_fees, accumulated_admin_fees, accumulated_perform_fees
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShareClass(row rowScanner) (model.ShareClass, error) {
	var sc model.ShareClass
	var lastCalc int64
	err := row.Scan(
		&sc.ID,
		&sc.AdminFeeBps,
		&sc.MgmtFeeBps,
		&sc.PerformFeeBps,
		&sc.ShareSupply,
		&lastCalc,
		&sc.NavPerShare,
		&sc.LossCarryforward,
		&sc.AccumulatedMgmtFees,
		&sc.AccumulatedAdminFees,
		&sc.AccumulatedPerformFees,
	)
	if err != nil {
		return model.ShareClass{}, err
	}
	sc.LastCalc = unixTime(lastCalc)
	return sc, nil
}

// GetShareClass retrieves a single share class by ID.
// Returns apperrors.ErrShareClassNotFound if no class has that ID.
func (r *ShareClassRepository) GetShareClass(ctx context.Context, id int) (model.ShareClass, error) {
	query := `SELECT ` + shareClassColumns + ` FROM share_class WHERE id = ?`

	sc, err := scanShareClass(r.getQuerier().QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.ShareClass{}, apperrors.ErrShareClassNotFound
	}
	if err != nil {
		return model.ShareClass{}, fmt.Errorf("failed to query share_class table: %w", err)
	}
	return sc, nil
}

// ListShareClasses retrieves all share classes ordered by ID.
// Returns an empty slice if no classes exist.
func (r *ShareClassRepository) ListShareClasses(ctx context.Context) ([]model.ShareClass, error) {
	query := `SELECT ` + shareClassColumns + ` FROM share_class ORDER BY id`

	rows, err := r.getQuerier().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query share_class table: %w", err)
	}
	defer rows.Close()

	classes := []model.ShareClass{}
	for rows.Next() {
		sc, err := scanShareClass(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan share_class results: %w", err)
		}
		classes = append(classes, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating share_class table: %w", err)
	}

	return classes, nil
}

// NextID returns the ID the next appended share class will receive.
// Class IDs are dense and start at 0.
func (r *ShareClassRepository) NextID(ctx context.Context) (int, error) {
	var next int
	err := r.getQuerier().QueryRowContext(ctx, `SELECT COALESCE(MAX(id) + 1, 0) FROM share_class`).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to determine next share class id: %w", err)
	}
	return next, nil
}

// InsertShareClass appends a share class row.
func (r *ShareClassRepository) InsertShareClass(ctx context.Context, sc model.ShareClass) error {
	query := `INSERT INTO share_class (` + shareClassColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.getQuerier().ExecContext(ctx, query,
		sc.ID,
		sc.AdminFeeBps,
		sc.MgmtFeeBps,
		sc.PerformFeeBps,
		sc.ShareSupply,
		sc.LastCalc.Unix(),
		sc.NavPerShare,
		sc.LossCarryforward,
		sc.AccumulatedMgmtFees,
		sc.AccumulatedAdminFees,
		sc.AccumulatedPerformFees,
	)
	if err != nil {
		return fmt.Errorf("failed to insert share class: %w", err)
	}
	return nil
}

// UpdateFeeTerms replaces the fee rates of a class. Accrued balances are not touched.
func (r *ShareClassRepository) UpdateFeeTerms(ctx context.Context, id int, terms model.FeeTerms) error {
	query := `UPDATE share_class SET admin_fee_bps = ?, mgmt_fee_bps = ?, perform_fee_bps = ? WHERE id = ?`

	return r.execOne(ctx, query, terms.AdminFeeBps, terms.MgmtFeeBps, terms.PerformFeeBps, id)
}

// UpdateSupply sets the share supply of a class.
func (r *ShareClassRepository) UpdateSupply(ctx context.Context, id int, supply decimal.Decimal) error {
	return r.execOne(ctx, `UPDATE share_class SET share_supply = ? WHERE id = ?`, supply, id)
}

// UpdateNavState persists the result of a NAV calculation.
func (r *ShareClassRepository) UpdateNavState(ctx context.Context, sc model.ShareClass) error {
	query := `
		UPDATE share_class SET
			last_calc = ?,
			nav_per_share = ?,
			loss_carryforward = ?,
			accumulated_mgmt_fees = ?,
			accumulated_admin_fees = ?,
			accumulated_perform_fees = ?
		WHERE id = ?
	`

	return r.execOne(ctx, query,
		sc.LastCalc.Unix(),
		sc.NavPerShare,
		sc.LossCarryforward,
		sc.AccumulatedMgmtFees,
		sc.AccumulatedAdminFees,
		sc.AccumulatedPerformFees,
		sc.ID,
	)
}

func (r *ShareClassRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.getQuerier().ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update share class: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperrors.ErrShareClassNotFound
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ndewijer/fund-ledger/internal/model"
)

// NavSnapshotRepository stores the per-class NAV history.
type NavSnapshotRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewNavSnapshotRepository creates a new NavSnapshotRepository with the provided database connection.
func NewNavSnapshotRepository(db *sql.DB) *NavSnapshotRepository {
	return &NavSnapshotRepository{db: db}
}

func (r *NavSnapshotRepository) WithTx(tx *sql.Tx) *NavSnapshotRepository {
	return &NavSnapshotRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *NavSnapshotRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// InsertSnapshot records one NAV calculation result.
func (r *NavSnapshotRepository) InsertSnapshot(ctx context.Context, s model.NavSnapshot) error {
	query := `
		INSERT INTO nav_snapshot (id, share_class, gross_value, share_supply, nav_per_share,
			loss_carryforward, accumulated_mgmt_fees, accumulated_admin_fees, accumulated_perform_fees,
			calculated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.getQuerier().ExecContext(ctx, query,
		s.ID,
		s.ShareClass,
		s.GrossValue,
		s.ShareSupply,
		s.NavPerShare,
		s.LossCarryforward,
		s.AccumulatedMgmtFees,
		s.AccumulatedAdminFees,
		s.AccumulatedPerformFees,
		s.CalculatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert nav snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns the most recent snapshots of a class, newest first.
func (r *NavSnapshotRepository) ListSnapshots(ctx context.Context, shareClass, limit int) ([]model.NavSnapshot, error) {
	query := `
		SELECT id, share_class, gross_value, share_supply, nav_per_share,
			loss_carryforward, accumulated_mgmt_fees, accumulated_admin_fees, accumulated_perform_fees,
			calculated_at
		FROM nav_snapshot
		WHERE share_class = ?
		ORDER BY calculated_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := r.getQuerier().QueryContext(ctx, query, shareClass, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query nav_snapshot table: %w", err)
	}
	defer rows.Close()

	snapshots := []model.NavSnapshot{}
	for rows.Next() {
		var s model.NavSnapshot
		var calculatedAt int64
		err := rows.Scan(
			&s.ID,
			&s.ShareClass,
			&s.GrossValue,
			&s.ShareSupply,
			&s.NavPerShare,
			&s.LossCarryforward,
			&s.AccumulatedMgmtFees,
			&s.AccumulatedAdminFees,
			&s.AccumulatedPerformFees,
			&calculatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan nav_snapshot results: %w", err)
		}
		s.CalculatedAt = unixTime(calculatedAt)
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nav_snapshot table: %w", err)
	}

	return snapshots, nil
}

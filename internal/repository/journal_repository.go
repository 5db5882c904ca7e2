package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ndewijer/fund-ledger/internal/model"
)

// JournalRepository provides append and query access to the action journal.
type JournalRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewJournalRepository creates a new JournalRepository with the provided database connection.
func NewJournalRepository(db *sql.DB) *JournalRepository {
	return &JournalRepository{db: db}
}

func (r *JournalRepository) WithTx(tx *sql.Tx) *JournalRepository {
	return &JournalRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *JournalRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// InsertEntry appends a journal entry.
func (r *JournalRepository) InsertEntry(ctx context.Context, e model.JournalEntry) error {
	query := `
		INSERT INTO journal (id, action, actor_role, actor, investor, unit, amount, shares,
			share_class, nav_per_share, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var shareClass sql.NullInt64
	if e.ShareClass != nil {
		shareClass = sql.NullInt64{Int64: int64(*e.ShareClass), Valid: true}
	}

	_, err := r.getQuerier().ExecContext(ctx, query,
		e.ID,
		e.Action,
		e.ActorRole,
		e.Actor,
		e.Investor,
		string(e.Unit),
		e.Amount,
		e.Shares,
		shareClass,
		e.NavPerShare,
		e.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert journal entry: %w", err)
	}
	return nil
}

// ListEntries returns journal entries newest first, optionally limited to one investor.
func (r *JournalRepository) ListEntries(ctx context.Context, filter model.JournalFilter) ([]model.JournalEntry, error) {
	query := `
		SELECT id, action, actor_role, actor, investor, unit, amount, shares,
			share_class, nav_per_share, created_at
		FROM journal
	`
	var args []any
	if filter.Investor != "" {
		query += ` WHERE investor = ?`
		args = append(args, filter.Investor)
	}
	query += ` ORDER BY rowid DESC LIMIT ?`
	args = append(args, filter.Limit)

	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal table: %w", err)
	}
	defer rows.Close()

	entries := []model.JournalEntry{}
	for rows.Next() {
		var e model.JournalEntry
		var unit string
		var shareClass sql.NullInt64
		var createdAt int64
		err := rows.Scan(
			&e.ID,
			&e.Action,
			&e.ActorRole,
			&e.Actor,
			&e.Investor,
			&unit,
			&e.Amount,
			&e.Shares,
			&shareClass,
			&e.NavPerShare,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal results: %w", err)
		}
		e.Unit = model.Unit(unit)
		if shareClass.Valid {
			class := int(shareClass.Int64)
			e.ShareClass = &class
		}
		e.CreatedAt = unixTime(createdAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journal table: %w", err)
	}

	return entries, nil
}

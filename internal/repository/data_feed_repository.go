package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/model"
)

// DataFeedRepository stores data feed quotes and the remote feed configuration.
type DataFeedRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewDataFeedRepository creates a new DataFeedRepository with the provided database connection.
func NewDataFeedRepository(db *sql.DB) *DataFeedRepository {
	return &DataFeedRepository{db: db}
}

func (r *DataFeedRepository) WithTx(tx *sql.Tx) *DataFeedRepository {
	return &DataFeedRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *DataFeedRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// InsertQuote records a quote. source is "manager" or "remote".
func (r *DataFeedRepository) InsertQuote(ctx context.Context, q model.Quote, source string) error {
	query := `
		INSERT INTO data_feed_quote (id, value, usd_eth, usd_btc, usd_ltc, source, quoted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.getQuerier().ExecContext(ctx, query,
		uuid.New().String(),
		q.Value,
		q.UsdEth,
		q.UsdBtc,
		q.UsdLtc,
		source,
		q.Timestamp.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert data feed quote: %w", err)
	}
	return nil
}

// LatestQuote returns the most recently recorded quote.
// Returns apperrors.ErrQuoteNotFound if none has been recorded.
func (r *DataFeedRepository) LatestQuote(ctx context.Context) (model.Quote, error) {
	query := `
		SELECT value, usd_eth, usd_btc, usd_ltc, quoted_at
		FROM data_feed_quote
		ORDER BY quoted_at DESC, rowid DESC
		LIMIT 1
	`

	var q model.Quote
	var quotedAt int64
	err := r.getQuerier().QueryRowContext(ctx, query).Scan(&q.Value, &q.UsdEth, &q.UsdBtc, &q.UsdLtc, &quotedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Quote{}, apperrors.ErrQuoteNotFound
	}
	if err != nil {
		return model.Quote{}, fmt.Errorf("failed to query data_feed_quote table: %w", err)
	}
	q.Timestamp = unixTime(quotedAt)
	return q, nil
}

// LatestQuoteFrom returns the most recent quote recorded from source.
// Returns apperrors.ErrQuoteNotFound if that source has recorded none.
func (r *DataFeedRepository) LatestQuoteFrom(ctx context.Context, source string) (model.Quote, error) {
	query := `
		SELECT value, usd_eth, usd_btc, usd_ltc, quoted_at
		FROM data_feed_quote
		WHERE source = ?
		ORDER BY quoted_at DESC, rowid DESC
		LIMIT 1
	`

	var q model.Quote
	var quotedAt int64
	err := r.getQuerier().QueryRowContext(ctx, query, source).Scan(&q.Value, &q.UsdEth, &q.UsdBtc, &q.UsdLtc, &quotedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Quote{}, apperrors.ErrQuoteNotFound
	}
	if err != nil {
		return model.Quote{}, fmt.Errorf("failed to query data_feed_quote table: %w", err)
	}
	q.Timestamp = unixTime(quotedAt)
	return q, nil
}

// GetFeedConfig returns the remote feed configuration.
// Returns apperrors.ErrFeedConfigNotFound if none is stored.
func (r *DataFeedRepository) GetFeedConfig(ctx context.Context) (model.FeedConfig, error) {
	query := `SELECT url, encrypted_token, seconds_between_queries, updated_at FROM feed_config WHERE id = 1`

	var c model.FeedConfig
	var updatedAt int64
	err := r.getQuerier().QueryRowContext(ctx, query).Scan(&c.URL, &c.EncryptedToken, &c.SecondsBetweenQueries, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.FeedConfig{}, apperrors.ErrFeedConfigNotFound
	}
	if err != nil {
		return model.FeedConfig{}, fmt.Errorf("failed to query feed_config table: %w", err)
	}
	c.UpdatedAt = unixTime(updatedAt)
	return c, nil
}

// UpsertFeedConfig stores the remote feed configuration.
func (r *DataFeedRepository) UpsertFeedConfig(ctx context.Context, c model.FeedConfig) error {
	query := `
		INSERT INTO feed_config (id, url, encrypted_token, seconds_between_queries, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url = excluded.url,
			encrypted_token = excluded.encrypted_token,
			seconds_between_queries = excluded.seconds_between_queries,
			updated_at = excluded.updated_at
	`

	_, err := r.getQuerier().ExecContext(ctx, query, c.URL, c.EncryptedToken, c.SecondsBetweenQueries, c.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to store feed configuration: %w", err)
	}
	return nil
}

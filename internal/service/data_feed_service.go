package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/datafeed"
	"github.com/ndewijer/fund-ledger/internal/model"
	"github.com/ndewijer/fund-ledger/internal/secret"
)

// Quote sources recorded with every reading.
const (
	SourceManager = "manager"
	SourceRemote  = "remote"
)

// DataFeedService records portfolio valuations and exchange rates, either
// entered by the manager or pulled from the remote valuation service.
type DataFeedService struct {
	ledger *Ledger
	client datafeed.Client
	box    *secret.Box
	logger *zap.Logger
}

// NewDataFeedService creates a DataFeedService. box may be nil, in which
// case the remote feed can only be used without a token.
func NewDataFeedService(ledger *Ledger, client datafeed.Client, box *secret.Box, logger *zap.Logger) *DataFeedService {
	return &DataFeedService{ledger: ledger, client: client, box: box, logger: logger}
}

// UpdateByManager records a quote entered by the manager. Every field must be non-zero.
func (s *DataFeedService) UpdateByManager(ctx context.Context, caller Caller, q model.Quote) (model.Quote, error) {
	if err := checkQuote(q); err != nil {
		return model.Quote{}, err
	}

	err := s.ledger.run(ctx, caller, "updateDataFeed", managerOnly, func(u *unitOfWork) error {
		q.Timestamp = u.now
		return u.storeQuote(q, SourceManager)
	})
	if err != nil {
		return model.Quote{}, fmt.Errorf("failed to update data feed: %w", err)
	}
	return q, nil
}

// RefreshFromRemote pulls a quote from the configured valuation service and
// records it. The request runs before the ledger is locked.
func (s *DataFeedService) RefreshFromRemote(ctx context.Context, caller Caller) (model.Quote, error) {
	if err := managerSystem.authorize("refreshDataFeed", caller); err != nil {
		return model.Quote{}, err
	}

	cfg, err := s.ledger.repos.DataFeed.GetFeedConfig(ctx)
	if err != nil {
		return model.Quote{}, err
	}
	if err := s.checkInterval(ctx, cfg); err != nil {
		return model.Quote{}, err
	}
	token, err := s.openToken(cfg.EncryptedToken)
	if err != nil {
		return model.Quote{}, err
	}

	q, err := s.client.FetchQuote(ctx, cfg.URL, token)
	if err != nil {
		s.logger.Warn("data feed refresh failed", zap.String("url", cfg.URL), zap.Error(err))
		return model.Quote{}, fmt.Errorf("failed to fetch quote: %w", err)
	}
	if err := checkQuote(q); err != nil {
		return model.Quote{}, err
	}

	err = s.ledger.run(ctx, caller, "refreshDataFeed", managerSystem, func(u *unitOfWork) error {
		return u.storeQuote(q, SourceRemote)
	})
	if err != nil {
		return model.Quote{}, fmt.Errorf("failed to record quote: %w", err)
	}

	s.logger.Info("data feed refreshed",
		zap.Stringer("value", q.Value),
		zap.Stringer("usd_eth", q.UsdEth),
		zap.Time("quoted_at", q.Timestamp),
	)
	return q, nil
}

// ConfigureFeed stores the remote feed URL and token. The token is
// encrypted before it reaches the database.
func (s *DataFeedService) ConfigureFeed(ctx context.Context, caller Caller, url, token string, secondsBetweenQueries int) (model.FeedConfig, error) {
	if strings.TrimSpace(url) == "" {
		return model.FeedConfig{}, fmt.Errorf("%w: feed url is required", apperrors.ErrValidation)
	}
	if token != "" && s.box == nil {
		return model.FeedConfig{}, fmt.Errorf("%w: an encryption key is required to store a feed token", apperrors.ErrValidation)
	}

	encrypted := ""
	if token != "" {
		var err error
		if encrypted, err = s.box.Seal(token); err != nil {
			return model.FeedConfig{}, err
		}
	}

	var cfg model.FeedConfig
	err := s.ledger.run(ctx, caller, "configureDataFeed", managerSystem, func(u *unitOfWork) error {
		cfg = model.FeedConfig{
			URL:                   url,
			EncryptedToken:        encrypted,
			SecondsBetweenQueries: secondsBetweenQueries,
			UpdatedAt:             u.now,
		}
		if err := u.repos.DataFeed.UpsertFeedConfig(u.ctx, cfg); err != nil {
			return err
		}
		u.record(model.JournalEntry{})
		return nil
	})
	if err != nil {
		return model.FeedConfig{}, fmt.Errorf("failed to configure data feed: %w", err)
	}
	return cfg, nil
}

// FeedConfig returns the remote feed configuration without the token.
func (s *DataFeedService) FeedConfig(ctx context.Context) (model.FeedConfig, error) {
	return s.ledger.repos.DataFeed.GetFeedConfig(ctx)
}

// LatestQuote returns the most recent quote.
func (s *DataFeedService) LatestQuote(ctx context.Context) (model.Quote, error) {
	return s.ledger.repos.DataFeed.LatestQuote(ctx)
}

// CurrentAssetValue returns the latest reported portfolio value in cents.
func (s *DataFeedService) CurrentAssetValue(ctx context.Context) (decimal.Decimal, error) {
	q, err := s.LatestQuote(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return q.Value, nil
}

// ExchangeRates returns the latest exchange rates. Value is left as reported.
func (s *DataFeedService) ExchangeRates(ctx context.Context) (model.Quote, error) {
	return s.LatestQuote(ctx)
}

// checkInterval rejects a refresh that comes less than SecondsBetweenQueries
// after the last remote quote.
func (s *DataFeedService) checkInterval(ctx context.Context, cfg model.FeedConfig) error {
	if cfg.SecondsBetweenQueries <= 0 {
		return nil
	}
	last, err := s.ledger.repos.DataFeed.LatestQuoteFrom(ctx, SourceRemote)
	if errors.Is(err, apperrors.ErrQuoteNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	next := last.Timestamp.Add(time.Duration(cfg.SecondsBetweenQueries) * time.Second)
	if now := s.ledger.Now(); now.Before(next) {
		return fmt.Errorf("%w: next query allowed at %s", apperrors.ErrFeedThrottled, next.Format(time.RFC3339))
	}
	return nil
}

func (s *DataFeedService) openToken(encrypted string) (string, error) {
	if encrypted == "" {
		return "", nil
	}
	if s.box == nil {
		return "", errors.New("feed token is stored encrypted but no encryption key is configured")
	}
	return s.box.Open(encrypted)
}

func (u *unitOfWork) storeQuote(q model.Quote, source string) error {
	if err := u.repos.DataFeed.InsertQuote(u.ctx, q, source); err != nil {
		return err
	}
	u.quote = &q
	u.record(model.JournalEntry{Unit: model.UnitCurrency, Amount: q.Value})
	return nil
}

func checkQuote(q model.Quote) error {
	for _, f := range []struct {
		name string
		v    decimal.Decimal
	}{
		{"value", q.Value},
		{"usdEth", q.UsdEth},
		{"usdBtc", q.UsdBtc},
		{"usdLtc", q.UsdLtc},
	} {
		if !f.v.IsPositive() {
			return fmt.Errorf("%w: %s is %s", apperrors.ErrInvalidQuote, f.name, f.v)
		}
	}
	return nil
}

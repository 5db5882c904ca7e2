package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/database"
	"github.com/ndewijer/fund-ledger/internal/model"
	"github.com/ndewijer/fund-ledger/internal/repository"
	"github.com/ndewijer/fund-ledger/internal/version"
)

// SystemService handles system-related operations
type SystemService struct {
	db       *sql.DB
	funds    *repository.FundRepository
	feed     *repository.DataFeedRepository
	features map[string]bool
}

// NewSystemService creates a new SystemService. features lists the optional
// subsystems and whether they are enabled in this deployment.
func NewSystemService(db *sql.DB, features map[string]bool) *SystemService {
	return &SystemService{
		db:       db,
		funds:    repository.NewFundRepository(db),
		feed:     repository.NewDataFeedRepository(db),
		features: features,
	}
}

// CheckHealth pings the database and reports whether the fund exists and
// when the last quote was recorded. The error is set only when the database
// is unreachable.
func (s *SystemService) CheckHealth(ctx context.Context) (model.Health, error) {
	if err := database.HealthCheck(s.db); err != nil {
		return model.Health{Status: "unhealthy", Database: "disconnected", Error: err.Error()}, err
	}
	health := model.Health{Status: "healthy", Database: "connected"}

	_, err := s.funds.GetFund(ctx)
	switch {
	case err == nil:
		health.FundInitialized = true
	case !errors.Is(err, apperrors.ErrFundNotFound):
		return model.Health{Status: "unhealthy", Database: "connected", Error: err.Error()}, err
	}

	q, err := s.feed.LatestQuote(ctx)
	switch {
	case err == nil:
		health.LatestQuoteAt = &q.Timestamp
	case !errors.Is(err, apperrors.ErrQuoteNotFound):
		return model.Health{Status: "unhealthy", Database: "connected", Error: err.Error()}, err
	}
	return health, nil
}

// GetVersionInfo reports the application version and whether the database
// schema is behind the embedded migrations.
func (s *SystemService) GetVersionInfo() (model.VersionInfo, error) {
	current, latest, err := database.SchemaVersion(s.db)
	if err != nil {
		return model.VersionInfo{}, fmt.Errorf("failed to read schema version: %w", err)
	}

	features := make(map[string]bool, len(s.features))
	for k, v := range s.features {
		features[k] = v
	}

	return model.VersionInfo{
		AppVersion:      version.Version,
		SchemaVersion:   current,
		LatestMigration: latest,
		MigrationNeeded: current < latest,
		Features:        features,
	}, nil
}

// Package scheduler runs the periodic ledger maintenance jobs: pulling a
// fresh quote from the valuation service and recalculating NAV.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/model"
	"github.com/ndewijer/fund-ledger/internal/service"
)

// jobTimeout bounds a single run of any job.
const jobTimeout = time.Minute

// NavCalculator recalculates every share class.
type NavCalculator interface {
	CalcNav(ctx context.Context, caller service.Caller) ([]model.NavResult, error)
}

// FeedRefresher pulls a quote from the remote valuation service.
type FeedRefresher interface {
	RefreshFromRemote(ctx context.Context, caller service.Caller) (model.Quote, error)
}

// Scheduler manages the cron jobs. Jobs act as the system caller.
type Scheduler struct {
	cron   *cron.Cron
	nav    NavCalculator
	feed   FeedRefresher
	logger *zap.Logger
	ctx    context.Context
}

// New creates a Scheduler. feed may be nil when no remote feed is configured.
func New(ctx context.Context, nav NavCalculator, feed FeedRefresher, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		nav:    nav,
		feed:   feed,
		logger: logger,
		ctx:    ctx,
	}
}

// Register adds the NAV and feed jobs. An empty spec leaves that job out.
func (s *Scheduler) Register(navSpec, feedSpec string) error {
	if navSpec != "" {
		if _, err := s.cron.AddFunc(navSpec, s.RunNavNow); err != nil {
			return fmt.Errorf("register nav job: %w", err)
		}
		s.logger.Info("nav job registered", zap.String("schedule", navSpec))
	}
	if feedSpec != "" && s.feed != nil {
		if _, err := s.cron.AddFunc(feedSpec, s.RunFeedNow); err != nil {
			return fmt.Errorf("register feed job: %w", err)
		}
		s.logger.Info("feed job registered", zap.String("schedule", feedSpec))
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunNavNow recalculates NAV immediately.
func (s *Scheduler) RunNavNow() {
	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()

	results, err := s.nav.CalcNav(ctx, service.System())
	if err != nil {
		s.logger.Error("scheduled nav calculation failed", zap.Error(err))
		return
	}
	for _, r := range results {
		s.logger.Info("nav calculated",
			zap.Int("share_class", r.ShareClass),
			zap.Stringer("nav_per_share", r.NavPerShare),
			zap.Int64("last_calc", r.LastCalc),
		)
	}
}

// RunFeedNow refreshes the quote immediately.
func (s *Scheduler) RunFeedNow() {
	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()

	_, err := s.feed.RefreshFromRemote(ctx, service.System())
	switch {
	case errors.Is(err, apperrors.ErrFeedThrottled):
		s.logger.Debug("scheduled feed refresh skipped", zap.Error(err))
	case err != nil:
		s.logger.Error("scheduled feed refresh failed", zap.Error(err))
	}
}

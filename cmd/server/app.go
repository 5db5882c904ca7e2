package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ndewijer/fund-ledger/internal/api"
	"github.com/ndewijer/fund-ledger/internal/config"
	"github.com/ndewijer/fund-ledger/internal/database"
	"github.com/ndewijer/fund-ledger/internal/datafeed"
	"github.com/ndewijer/fund-ledger/internal/logging"
	"github.com/ndewijer/fund-ledger/internal/repository"
	"github.com/ndewijer/fund-ledger/internal/scheduler"
	"github.com/ndewijer/fund-ledger/internal/secret"
	"github.com/ndewijer/fund-ledger/internal/service"
)

const (
	feedTimeout      = 10 * time.Second
	feedAttempts     = 3
	feedBackoff      = 2 * time.Second
	shutdownTimeout  = 30 * time.Second
	fallbackInterval = 15 * time.Minute
)

// app holds everything a command needs once configuration, logging and the
// database are up.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *sql.DB
	services api.Services
}

// bootstrap loads configuration, opens and migrates the database, wires the
// services and makes sure the fund exists.
func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	zap.ReplaceGlobals(logger)

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("connected to database", zap.String("path", cfg.Database.Path))

	var box *secret.Box
	if cfg.Feed.FernetKey != "" {
		if box, err = secret.NewBox(cfg.Feed.FernetKey); err != nil {
			db.Close()
			return nil, fmt.Errorf("invalid FERNET_KEY: %w", err)
		}
	}

	ledger := service.NewLedger(db, repository.NewSet(db), logger,
		service.WithInvariantChecks(cfg.Ledger.VerifyInvariants))
	feedClient := datafeed.NewHTTPClient(feedTimeout).WithRetry(feedAttempts, feedBackoff)

	a := &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		services: api.Services{
			System: service.NewSystemService(db, map[string]bool{
				"remoteFeed":       cfg.Feed.URL != "",
				"scheduledNav":     cfg.Schedule.Nav != "",
				"invariantChecks":  cfg.Ledger.VerifyInvariants,
				"encryptedSecrets": box != nil,
			}),
			Funds:        service.NewFundService(ledger, logger),
			ShareClasses: service.NewShareClassService(ledger, logger),
			Nav:          service.NewNavService(ledger, logger),
			Lifecycle:    service.NewLifecycleService(ledger, logger),
			DataFeed:     service.NewDataFeedService(ledger, feedClient, box, logger),
		},
	}

	if err := a.initialize(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// initialize creates the fund on first start and stores the remote feed
// settings from the environment.
func (a *app) initialize(ctx context.Context) error {
	created, err := a.services.Funds.EnsureInitialized(ctx, a.cfg.Fund)
	if err != nil {
		return fmt.Errorf("failed to initialize fund: %w", err)
	}
	a.logger.Info("fund ready", zap.String("symbol", a.cfg.Fund.Symbol), zap.Bool("created", created))

	if a.cfg.Feed.URL == "" {
		return nil
	}
	interval := scheduleInterval(a.cfg.Schedule.Feed)
	if _, err := a.services.DataFeed.ConfigureFeed(ctx, service.System(), a.cfg.Feed.URL, a.cfg.Feed.Token,
		int(interval/time.Second)); err != nil {
		return fmt.Errorf("failed to configure data feed: %w", err)
	}
	a.logger.Info("remote data feed configured", zap.String("url", a.cfg.Feed.URL), zap.Duration("interval", interval))
	return nil
}

// scheduleInterval is the gap between the next two runs of a cron spec.
func scheduleInterval(spec string) time.Duration {
	if spec == "" {
		return fallbackInterval
	}
	sched, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor).Parse(spec)
	if err != nil {
		return fallbackInterval
	}
	first := sched.Next(time.Now())
	return sched.Next(first).Sub(first)
}

// serve runs the HTTP server and the scheduler until SIGINT or SIGTERM.
func (a *app) serve() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var feed scheduler.FeedRefresher
	if a.cfg.Feed.URL != "" {
		feed = a.services.DataFeed
	}
	sched := scheduler.New(ctx, a.services.Nav, feed, a.logger)
	if err := sched.Register(a.cfg.Schedule.Nav, a.cfg.Schedule.Feed); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	server := &http.Server{
		Addr:         a.cfg.Server.Addr,
		Handler:      api.NewRouter(a.services, a.cfg, a.logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting server", zap.String("addr", a.cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	a.logger.Info("server exited")
	return nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", zap.Error(err))
	}
	_ = a.logger.Sync()
}


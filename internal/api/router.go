package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ndewijer/fund-ledger/internal/api/handlers"
	custommiddleware "github.com/ndewijer/fund-ledger/internal/api/middleware"
	"github.com/ndewijer/fund-ledger/internal/config"
	"github.com/ndewijer/fund-ledger/internal/service"
)

// Services bundles the services the HTTP layer routes to.
type Services struct {
	System       *service.SystemService
	Funds        *service.FundService
	ShareClasses *service.ShareClassService
	Nav          *service.NavService
	Lifecycle    *service.LifecycleService
	DataFeed     *service.DataFeedService
}

// NewRouter creates and configures the HTTP router
func NewRouter(svc Services, cfg *config.Config, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger(logger))
	r.Use(middleware.Recoverer)

	// CORS middleware
	corsMiddleware := custommiddleware.NewCORS(cfg.CORS.AllowedOrigins)
	r.Use(corsMiddleware.Handler)

	systemHandler := handlers.NewSystemHandler(svc.System)
	fundHandler := handlers.NewFundHandler(svc.Funds, svc.Nav)
	shareClassHandler := handlers.NewShareClassHandler(svc.ShareClasses, svc.Nav)
	investorHandler := handlers.NewInvestorHandler(svc.Funds, svc.Lifecycle)
	lifecycleHandler := handlers.NewLifecycleHandler(svc.Lifecycle)
	feedHandler := handlers.NewFeedHandler(svc.DataFeed)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// System namespace
		r.Route("/system", func(r chi.Router) {
			r.Get("/health", systemHandler.Health)
			r.Get("/version", systemHandler.Version)
		})

		// Everything else needs a caller. Roles are checked by the ledger.
		r.Group(func(r chi.Router) {
			r.Use(custommiddleware.Authenticate(cfg.Auth))

			r.Route("/fund", func(r chi.Router) {
				r.Get("/", fundHandler.GetFund)
				r.Get("/invariants", fundHandler.Invariants)
				r.Get("/journal", fundHandler.Journal)
				r.Post("/nav", fundHandler.CalcNav)
			})

			r.Route("/share-class", func(r chi.Router) {
				r.Get("/", shareClassHandler.ListShareClasses)
				r.Post("/", shareClassHandler.AddShareClass)

				r.Route("/{id}", func(r chi.Router) {
					r.Use(custommiddleware.ValidateShareClassIDMiddleware)
					r.Get("/", shareClassHandler.GetShareClass)
					r.Put("/", shareClassHandler.ModifyShareClassTerms)
					r.Get("/nav", shareClassHandler.PreviewNav)
					r.Post("/nav", shareClassHandler.CalcNav)
					r.Get("/history", shareClassHandler.NavHistory)
				})
			})

			r.Route("/investor", func(r chi.Router) {
				r.Get("/", investorHandler.ListInvestors)
				r.Post("/", investorHandler.Whitelist)

				r.Route("/{address}", func(r chi.Router) {
					r.Use(custommiddleware.ValidateAddressMiddleware)
					r.Get("/", investorHandler.GetInvestor)
					r.Delete("/", investorHandler.Remove)
					r.Get("/statement", investorHandler.Statement)
					r.Put("/allocation", investorHandler.ModifyAllocation)
					r.Post("/subscribe", investorHandler.Subscribe)
					r.Post("/subscribe-currency", investorHandler.SubscribeCurrency)
					r.Post("/redeem", investorHandler.Redeem)
					r.Post("/liquidate", investorHandler.Liquidate)
					r.Post("/withdraw", investorHandler.Withdraw)
				})
			})

			r.Route("/lifecycle", func(r chi.Router) {
				r.Post("/subscriptions/fill", lifecycleHandler.FillSubscriptions)
				r.Post("/redemptions/fill", lifecycleHandler.FillRedemptions)
				r.Post("/liquidations", lifecycleHandler.LiquidateAll)
			})

			r.Route("/me", func(r chi.Router) {
				r.Post("/subscription", lifecycleHandler.RequestSubscription)
				r.Delete("/subscription", lifecycleHandler.CancelSubscription)
				r.Post("/redemption", lifecycleHandler.RequestRedemption)
				r.Delete("/redemption", lifecycleHandler.CancelRedemption)
				r.Post("/withdraw", lifecycleHandler.Withdraw)
			})

			r.Post("/exchange/remit", lifecycleHandler.Remit)

			r.Route("/feed", func(r chi.Router) {
				r.Get("/", feedHandler.LatestQuote)
				r.Post("/", feedHandler.Update)
				r.Post("/refresh", feedHandler.Refresh)
				r.Get("/value", feedHandler.AssetValue)
				r.Get("/rates", feedHandler.Rates)
				r.Get("/config", feedHandler.Config)
			})
		})
	})

	return r
}

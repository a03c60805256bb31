package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"storagemarket/db"
	"storagemarket/db/migrations"
	"storagemarket/internal/handlers"
	"storagemarket/internal/market"
	"storagemarket/internal/rankcache"
)

func main() {
	app := &cli.App{
		Name:  "storagemarket",
		Usage: "industrial storage marketplace API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "postgres-conn",
				EnvVars:  []string{"POSTGRES_CONN"},
				Usage:    "PostgreSQL connection string",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "server-address",
				EnvVars: []string{"SERVER_ADDRESS"},
				Value:   "0.0.0.0:8080",
				Usage:   "address the HTTP server listens on",
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				EnvVars: []string{"REDIS_ADDR"},
				Usage:   "Redis address for the ranking cache; empty disables caching",
			},
			&cli.StringFlag{
				Name:    "migrations-dir",
				EnvVars: []string{"MIGRATIONS_DIR"},
				Value:   "./db/migrations",
				Usage:   "directory holding the goose migrations",
			},
			&cli.BoolFlag{
				Name:    "reserve-capacity",
				EnvVars: []string{"RESERVE_CAPACITY"},
				Usage:   "subtract contracted volume from site availability on activation",
			},
		},
		Action: serve,
	}
	if err := app.Run(os.Args); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func serve(c *cli.Context) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Sugar()

	dbConn, err := sqlx.Connect("postgres", c.String("postgres-conn"))
	if err != nil {
		return cli.Exit("cannot connect to db: "+err.Error(), 1)
	}
	defer dbConn.Close()

	if err := migrations.Run(c.String("postgres-conn"), c.String("migrations-dir")); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	var cache *rankcache.Cache
	if addr := c.String("redis-addr"); addr != "" {
		cache = rankcache.New(redis.NewClient(&redis.Options{Addr: addr}), rankcache.DefaultTTL)
		log.Infow("ranking cache enabled", "redis", addr)
	}

	store := db.NewStorage(dbConn)
	engine := market.NewEngine(store, market.Policy{
		ReserveCapacity: c.Bool("reserve-capacity"),
	})
	h := handlers.NewHandler(engine, cache, log)

	// offers on needs past their deadline expire lazily; the sweep keeps
	// listings honest between requests
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			n, err := store.ExpireStaleOffers(context.Background(), time.Now())
			if err != nil {
				log.Errorw("offer expiry sweep failed", "error", err)
			} else if n > 0 {
				log.Infow("expired stale offers", "count", n)
			}
			ended, err := engine.SweepExpiredTrials(context.Background())
			if err != nil {
				log.Errorw("trial expiry sweep failed", "error", err)
			} else if ended > 0 {
				log.Infow("ended expired trials", "count", ended)
			}
		}
	}()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.PingHandler)

		// needs
		r.Post("/needs/new", h.CreateNeedHandler)
		r.Get("/needs", h.GetPublishedNeedsHandler)
		r.Get("/needs/my", h.GetMyNeedsHandler)
		r.Get("/needs/{needId}", h.GetNeedHandler)
		r.Patch("/needs/{needId}/edit", h.EditNeedHandler)
		r.Put("/needs/{needId}/publish", h.PublishNeedHandler)
		r.Put("/needs/{needId}/close", h.CloseNeedHandler)
		r.Put("/needs/{needId}/cancel", h.CancelNeedHandler)
		r.Delete("/needs/{needId}", h.DeleteNeedHandler)
		r.Get("/needs/{needId}/offers", h.GetOffersForNeedHandler)

		// offers
		r.Post("/offers/new", h.CreateOfferHandler)
		r.Get("/offers/my", h.GetMyOffersHandler)
		r.Get("/offers/{offerId}", h.GetOfferHandler)
		r.Patch("/offers/{offerId}/edit", h.EditOfferHandler)
		r.Put("/offers/{offerId}/withdraw", h.WithdrawOfferHandler)
		r.Put("/offers/{offerId}/review", h.ReviewOfferHandler)
		r.Put("/offers/{offerId}/shortlist", h.ShortlistOfferHandler)
		r.Put("/offers/{offerId}/reject", h.RejectOfferHandler)
		r.Put("/offers/{offerId}/accept", h.AcceptOfferHandler)
		r.Post("/offers/{offerId}/counter", h.CounterOfferHandler)
		r.Put("/offers/{offerId}/counter/respond", h.RespondCounterOfferHandler)

		// contracts
		r.Post("/contracts/from-offer/{offerId}", h.CreateContractHandler)
		r.Get("/contracts/my", h.GetMyContractsHandler)
		r.Get("/contracts/{contractId}", h.GetContractHandler)
		r.Patch("/contracts/{contractId}/edit", h.EditContractHandler)
		r.Put("/contracts/{contractId}/send", h.SendForSignatureHandler)
		r.Put("/contracts/{contractId}/sign", h.SignContractHandler)
		r.Put("/contracts/{contractId}/suspend", h.SuspendContractHandler)
		r.Put("/contracts/{contractId}/resume", h.ResumeContractHandler)
		r.Put("/contracts/{contractId}/terminate", h.TerminateContractHandler)
		r.Put("/contracts/{contractId}/complete", h.CompleteContractHandler)
		r.Put("/contracts/{contractId}/dispute", h.DisputeContractHandler)
		r.Post("/contracts/{contractId}/amendments", h.AddAmendmentHandler)
		r.Post("/contracts/{contractId}/incidents", h.ReportIncidentHandler)
		r.Put("/contracts/{contractId}/occupancy", h.UpdateOccupancyHandler)

		// sites
		r.Post("/sites/new", h.CreateSiteHandler)
		r.Get("/sites", h.SearchSitesHandler)
		r.Get("/sites/my", h.GetMySitesHandler)
		r.Get("/sites/{siteId}", h.GetSiteHandler)
		r.Patch("/sites/{siteId}/edit", h.EditSiteHandler)
		r.Put("/sites/{siteId}/capacity", h.UpdateSiteCapacityHandler)
		r.Put("/sites/{siteId}/deactivate", h.DeactivateSiteHandler)

		// subscriptions
		r.Get("/subscriptions/plans", h.GetPlansHandler)
		r.Post("/subscriptions/new", h.RegisterSubscriptionHandler)
		r.Get("/subscriptions/my", h.GetMySubscriptionHandler)
		r.Put("/subscriptions/my/tier", h.ChangeTierHandler)
		r.Post("/subscriptions/my/trial", h.StartTrialHandler)
		r.Put("/subscriptions/my/cancel", h.CancelSubscriptionHandler)
		r.Get("/subscriptions/my/usage", h.UsageHandler)

		// matching
		r.Post("/ai/score/{offerId}", h.ScoreOfferHandler)
		r.Post("/ai/rank/{needId}", h.RankOffersHandler)
		r.Get("/ai/recommend-sites/{needId}", h.RecommendSitesHandler)
	})

	addr := c.String("server-address")
	log.Infow("starting server", "address", addr)
	return http.ListenAndServe(addr, r)
}

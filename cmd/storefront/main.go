package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"github.com/salehm/coaching-store/pkg/config"
	"github.com/salehm/coaching-store/pkg/idempotency"
	"github.com/salehm/coaching-store/pkg/logging"
	"github.com/salehm/coaching-store/pkg/outbox"
	"github.com/salehm/coaching-store/pkg/shutdown"
	"github.com/salehm/coaching-store/pkg/tracing"

	"github.com/salehm/coaching-store/internal/admin"
	catalogapp "github.com/salehm/coaching-store/internal/catalog/application"
	cataloghttp "github.com/salehm/coaching-store/internal/catalog/infrastructure/http"
	catalogpg "github.com/salehm/coaching-store/internal/catalog/infrastructure/postgres"
	checkoutapp "github.com/salehm/coaching-store/internal/checkout/application"
	checkouthttp "github.com/salehm/coaching-store/internal/checkout/infrastructure/http"
	checkoutpg "github.com/salehm/coaching-store/internal/checkout/infrastructure/postgres"
	paymentapp "github.com/salehm/coaching-store/internal/payment/application"
	paymenthttp "github.com/salehm/coaching-store/internal/payment/infrastructure/http"
	"github.com/salehm/coaching-store/internal/payment/infrastructure/moyasar"
)

func main() {
	cfg := config.Load()
	log := logging.New("storefront", cfg.AppEnv, cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, "storefront", cfg.OTLPEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	pool, err := pgxpool.New(ctx, cfg.PGURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.KafkaAddr),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	defer writer.Close()

	// Catalog
	catalogRepo := catalogpg.NewRepository(log, pool)
	catalogSvc := catalogapp.NewService(catalogRepo)
	catalogHandler := cataloghttp.NewHandler(log, catalogSvc)

	// Checkout
	orderRepo := checkoutpg.NewRepository(log, pool)
	checkoutSvc := checkoutapp.NewService(log, catalogRepo, orderRepo)
	checkoutHandler := checkouthttp.NewHandler(log, checkoutSvc)

	// Payment
	gateway := moyasar.NewClient(log, cfg.MoyasarBaseURL, cfg.MoyasarAPIKey)
	paymentSvc := paymentapp.NewService(log, gateway, orderRepo)
	idem := idempotency.NewStore(rdb, 24*time.Hour)
	paymentHandler := paymenthttp.NewHandler(log, paymentSvc, idem)

	// Admin
	auth := admin.NewAuth(cfg.JWTSecret)
	adminHandler := admin.NewHandler(log, admin.NewRepository(pool), auth)

	// Outbox relay
	store := checkoutpg.NewOutboxStore(log, pool)
	dispatch := outbox.NewDispatcher(log, writer, cfg.OutboxTopic)
	relay := outbox.NewRelay(log, store, dispatch, "storefront-relay")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(allowOrigin(cfg.FrontendURL))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		catalogHandler.Register(r)
		checkoutHandler.Register(r)
		paymentHandler.Register(r)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", adminHandler.Login)
			r.Group(func(r chi.Router) {
				r.Use(auth.Middleware)
				checkoutHandler.RegisterAdmin(r)
			})
		})
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return relay.Run(gctx)
	})

	g.Go(func() error {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("storefront stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("storefront shutdown complete")
}

// allowOrigin is the storefront CORS policy: a single trusted frontend origin.
func allowOrigin(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

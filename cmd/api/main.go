package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/petcare/petcare-api/internal/config"
	"github.com/petcare/petcare-api/internal/domain/history"
	"github.com/petcare/petcare-api/internal/domain/ledger"
	"github.com/petcare/petcare-api/internal/domain/payment"
	"github.com/petcare/petcare-api/internal/domain/payout"
	"github.com/petcare/petcare-api/internal/domain/reconcile"
	"github.com/petcare/petcare-api/internal/domain/refund"
	"github.com/petcare/petcare-api/internal/domain/settlement"
	"github.com/petcare/petcare-api/internal/domain/statement"
	"github.com/petcare/petcare-api/internal/domain/wallet"
	"github.com/petcare/petcare-api/internal/middleware"
	"github.com/petcare/petcare-api/internal/pkg/database"
	"github.com/petcare/petcare-api/internal/pkg/jwt"
	"github.com/petcare/petcare-api/internal/pkg/logger"
	"github.com/petcare/petcare-api/internal/pkg/metrics"
	"github.com/petcare/petcare-api/internal/pkg/response"
	"github.com/petcare/petcare-api/internal/pkg/storage"
	"github.com/petcare/petcare-api/internal/pkg/stripe"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Int("fee_bps", cfg.PlatformFeeBps).
		Msg("Starting PetCare wallet API")

	ctx := context.Background()

	db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	// ---------- Repositories ----------
	walletRepo := wallet.NewRepository(db)
	ledgerRepo := ledger.NewRepository(db)
	payoutRepo := payout.NewRepository(db)
	historyRepo := history.NewRepository(db)

	// ---------- External providers ----------
	var (
		transferer payout.Transferer
		refunder   refund.Refunder
	)
	if cfg.StripeEnabled() {
		var opts []stripe.Option
		if cfg.StripeAPIURL != "" {
			opts = append(opts, stripe.WithBackendURL(cfg.StripeAPIURL))
		}
		stripeClient := stripe.NewClient(cfg.StripeSecretKey, opts...)
		transferer = payment.NewStripeTransferer(stripeClient)
		refunder = payment.NewStripeRefunder(stripeClient)
	} else {
		log.Warn().Msg("STRIPE_SECRET_KEY not set, payout dispatch and external refunds disabled")
	}
	if cfg.StripeWebhookSecret == "" {
		log.Warn().Msg("STRIPE_WEBHOOK_SECRET not set, every webhook will be rejected")
	}

	statementStore, err := newStatementStorage(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize statement storage")
	}

	// ---------- Services ----------
	walletService := wallet.NewService(walletRepo, wallet.NewBalanceCache(redis, cfg.BalanceCacheTTL))
	historyService := history.NewService(historyRepo, walletService)
	settlementEngine := settlement.NewEngine(walletService)
	refundService := refund.NewService(walletService, refunder, historyService)
	payoutProcessor := payout.NewProcessor(payoutRepo, walletService, transferer)
	paymentService := payment.NewService(walletService, settlementEngine, refundService, payoutProcessor, cfg.PlatformFeeBps)
	statementService := statement.NewService(walletService, ledgerRepo, statementStore)

	// ---------- Handlers ----------
	h := handlers{
		wallet:     wallet.NewHandler(walletService, ledgerRepo),
		history:    history.NewHandler(historyService),
		payout:     payout.NewHandler(payoutProcessor),
		settlement: settlement.NewHandler(settlementEngine, walletService, cfg.PlatformFeeBps),
		refund:     refund.NewHandler(refundService, walletService),
		statement:  statement.NewHandler(statementService),
		payment:    payment.NewHandler(paymentService, stripe.NewVerifier(cfg.StripeWebhookSecret)),
		health:     healthHandler(db, redis),
	}

	// ---------- Workers ----------
	var reconciler *reconcile.Worker
	if cfg.ReconcileInterval > 0 {
		reconciler = reconcile.NewWorker(walletService, historyService, cfg.ReconcileInterval)
		reconciler.Start()
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newRouter(cfg, jwtService, h),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if reconciler != nil {
		reconciler.Stop()
	}

	log.Info().Msg("Server exited properly")
}

type handlers struct {
	wallet     *wallet.Handler
	history    *history.Handler
	payout     *payout.Handler
	settlement *settlement.Handler
	refund     *refund.Handler
	statement  *statement.Handler
	payment    *payment.Handler
	health     http.HandlerFunc
}

func newRouter(cfg *config.Config, jwtService *jwt.Service, h handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.Metrics)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	authMiddleware := middleware.Auth(jwtService)

	r.Get("/health", h.health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		walletRoutes := h.wallet.Routes(authMiddleware)
		walletRoutes.Get("/history", h.history.List)
		r.Mount("/wallet", walletRoutes)
		r.Mount("/payouts", h.payout.Routes(authMiddleware))
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(authMiddleware, middleware.RequireAdmin())

		walletAdmin := h.wallet.AdminRoutes()
		walletAdmin.Post("/{id}/statements", h.statement.Export)
		r.Mount("/wallets", walletAdmin)
		r.Mount("/payouts", h.payout.AdminRoutes())
		r.Mount("/wallet-history", h.history.AdminRoutes())
	})

	// Called by the booking service, not by end users.
	r.Route("/api/internal", func(r chi.Router) {
		r.Use(authMiddleware, middleware.RequireService())
		r.Mount("/settlements", h.settlement.Routes())
		r.Mount("/cancellations", h.refund.Routes())
	})

	r.Mount("/webhooks", h.payment.WebhookRoutes())

	return r
}

func newStatementStorage(ctx context.Context, cfg *config.Config) (statement.Uploader, error) {
	if cfg.S3Bucket == "" {
		log.Warn().Str("path", cfg.LocalStoragePath).Msg("S3_BUCKET not set, statements are written to local disk")
		return storage.NewLocalStorage(cfg.LocalStoragePath, "file://"+cfg.LocalStoragePath)
	}
	return storage.NewS3Storage(ctx, storage.Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
	})
}

func healthHandler(db *sqlx.DB, redis *goredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"postgres": "ok"}
		healthy := true
		if err := db.PingContext(ctx); err != nil {
			status["postgres"] = err.Error()
			healthy = false
		}
		if redis != nil {
			status["redis"] = "ok"
			if err := redis.Ping(ctx).Err(); err != nil {
				// Balances fall back to Postgres.
				status["redis"] = err.Error()
			}
		}

		if !healthy {
			response.JSON(w, http.StatusServiceUnavailable, status)
			return
		}
		response.OK(w, status)
	}
}

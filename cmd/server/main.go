package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yourorg/stocksim/internal/app"
	"github.com/yourorg/stocksim/internal/auth"
	"github.com/yourorg/stocksim/internal/config"
	"github.com/yourorg/stocksim/internal/gateway"
	"github.com/yourorg/stocksim/internal/ingestion"
	pgRepo "github.com/yourorg/stocksim/internal/repository/postgres"
)

func main() {
	cfg, err := config.Load()
	if err == nil && cfg.JWTSecret == "" {
		err = errors.New("JWT_SECRET is required")
	}
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Store == config.StorePostgres {
		if err := pgRepo.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			logger.Error("failed to run migrations", "err", err)
			os.Exit(1)
		}
		logger.Info("migrations applied")
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	jwtSvc := auth.NewJWTService(cfg.JWTSecret)
	hub := gateway.NewHub(a.Prices, logger)
	limiter := gateway.NewRateLimiter(cfg.OrderRatePerMin)

	handlers := gateway.NewHandlers(a.Users, a.Store, a.Orders, a.Valuation, jwtSvc, cfg.InitialCash, logger)
	router := gateway.NewRouter(handlers, jwtSvc, gateway.RouterOptions{
		CORSOrigins: cfg.CORSOrigins,
		Hub:         hub,
		Limiter:     limiter,
	})

	go hub.Run(ctx)
	go limiter.Cleanup(ctx, 3*time.Minute)
	go a.Sweeper.Run(ctx)

	if cfg.AlpacaEnabled() {
		alpacaClient := ingestion.NewAlpacaClient(cfg.AlpacaAPIKey, cfg.AlpacaAPISecret, cfg.AlpacaSymbols, a.Prices, logger)
		go alpacaClient.Run(ctx)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port, "store", cfg.Store, "price_source", cfg.PriceSource)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "err", err)
	}
	logger.Info("server stopped")
}

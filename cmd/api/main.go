package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mediagen/internal/adapter/repo"
	"mediagen/internal/http/handlers"
	httpapi "mediagen/internal/http/httpapi"
	"mediagen/internal/infra"
	"mediagen/internal/infra/credentials"
	"mediagen/internal/infra/geoip"
	"mediagen/internal/middleware"
	"mediagen/internal/providers"
	"mediagen/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel)

	flush, err := infra.InitSentry(cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("sentry init failed")
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := providers.Deps{Logger: &logger}
	var runner *infra.SQLRunner
	if cfg.HistoryEnabled() {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		runner = infra.NewSQLRunner(pool, logger)
		if err := repo.NewGenerationRepository(runner).EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare schema")
		}
		deps.Tokens = credentials.NewStore(runner)
	}

	orch, err := providers.New(ctx, cfg, deps)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build provider registry")
	}

	app := handlers.NewApp(cfg, logger, orch)
	if runner != nil {
		app.History = repo.NewGenerationRepository(runner)
	}
	if cfg.StoragePath != "" {
		store, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare storage")
		}
		app.Assets = store
		logger.Info().Str("path", store.BasePath()).Str("base_url", cfg.StorageBaseURL).Msg("asset storage enabled")
	}

	resolver, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer resolver.Close()
	var lookup middleware.CountryLookup
	if fn := resolver.Lookup(); fn != nil {
		lookup = fn
	}

	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app, lookup))
	go func() {
		logger.Info().Str("addr", server.Addr()).Int("providers", orch.Registry().Len()).Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

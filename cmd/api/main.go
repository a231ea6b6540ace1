package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"imagebatch/internal/adapter"
	"imagebatch/internal/batch"
	"imagebatch/internal/catalog"
	"imagebatch/internal/http/handlers"
	httpapi "imagebatch/internal/http/httpapi"
	"imagebatch/internal/http/ws"
	"imagebatch/internal/imaging"
	"imagebatch/internal/infra"
	"imagebatch/internal/providers/image"
)

func main() {
	// optional local overrides
	_ = godotenv.Load(".env", ".env.local")

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stopRuns := context.WithCancel(context.Background())
	defer stopRuns()

	cat, err := catalog.Load(cfg.ModesPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load batch modes")
	}

	chain, err := image.NewChainFromConfig(cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure image providers")
	}
	logger.Info().Strs("providers", chain.Names()).Msg("image providers configured")

	store, err := adapter.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.PersistenceDriver).Msg("failed to open batch history")
	}
	defer store.Close()

	svc, err := batch.NewService(batch.Options{
		Catalog:       cat,
		Generator:     chain,
		Recorder:      store.Recorder,
		Pool:          imaging.NewPool(cfg.ImageWorkers),
		MaxConcurrent: cfg.MaxConcurrent,
		Logger:        logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build batch service")
	}

	go batch.NewJanitor(svc, cfg.CleanupInterval, cfg.JobMaxAge).Run(ctx)

	app := handlers.NewApp(ctx, svc, ws.NewHub(logger), logger)
	app.History = store.History
	app.MaxAge = cfg.JobMaxAge

	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		RateLimitPerMin: cfg.RateLimitPerMin,
		CORSOrigins:     cfg.CORSOrigins,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().
			Str("addr", server.Addr()).
			Str("persistence", store.Driver).
			Int("max_concurrent", svc.MaxConcurrent()).
			Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	// running batches fail their undispatched items and are still recorded
	stopRuns()
	app.Wait()
	logger.Info().Msg("server stopped")
}

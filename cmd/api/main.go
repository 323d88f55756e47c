package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Rezme-Inc/fairchance-api/internal/api"
	"github.com/Rezme-Inc/fairchance-api/internal/config"
	"github.com/Rezme-Inc/fairchance-api/internal/notify"
	"github.com/Rezme-Inc/fairchance-api/internal/security"
	"github.com/Rezme-Inc/fairchance-api/internal/storage"
	"github.com/Rezme-Inc/fairchance-api/internal/suggest"
	"github.com/Rezme-Inc/fairchance-api/internal/workflow"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "fairchance-api").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	store, err := storage.NewStore(cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("postgres ping")
	}

	var archive workflow.Archiver
	if cfg.MinioAccessKey != "" {
		a, err := storage.NewArchive(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL, cfg.MinioBucket)
		if err != nil {
			log.Fatal().Err(err).Msg("connect minio")
		}
		archive = a
	} else {
		log.Warn().Msg("notice archive disabled: MINIO_ACCESS_KEY not set")
	}

	publisher, err := notify.NewPublisher(cfg.NatsURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("connect nats")
	}
	defer publisher.Close()

	var provider workflow.SuggestionProvider
	if cfg.OpenAIAPIKey != "" {
		provider = suggest.NewProvider(
			suggest.NewHTTPClient(cfg.OpenAIAPIKey, cfg.OpenAIModel),
			cfg.OpenAIModel,
			time.Duration(cfg.OpenAITimeoutSec)*time.Second,
		)
	}

	engine := workflow.NewEngine(store, archive, publisher, provider, log)
	limiter := security.NewRateLimiter(cfg.RateLimitRequests, time.Duration(cfg.RateLimitWindowSec)*time.Second)

	h := api.NewHandler(engine, store, log)
	router := api.NewRouter(h, limiter, cfg.Production())

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

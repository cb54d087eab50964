package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"dreamstream/internal/generation"
	"dreamstream/internal/http/handlers"
	httpapi "dreamstream/internal/http/httpapi"
	"dreamstream/internal/infra"
	"dreamstream/internal/infra/credentials"
	"dreamstream/internal/infra/geoip"
	"dreamstream/internal/metrics"
	"dreamstream/internal/middleware"
	"dreamstream/internal/providers/genai"
	"dreamstream/internal/providers/video"
	"dreamstream/internal/storage"
	"dreamstream/internal/studio"
)

const syntheticPolls = 3

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional persistent credential store.
	var keyStore credentials.KeyStore
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	if dbpool != nil {
		defer dbpool.Close()
		store := credentials.NewStore(infra.NewSQLRunner(dbpool, logger))
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare credential store")
		}
		keyStore = store
	}
	host := credentials.NewHost(cfg.GeminiAPIKey, keyStore, logger)

	mediaPath := cfg.MediaPath
	if mediaPath == "" {
		mediaPath, err = os.MkdirTemp("", "dreamstream-media-")
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create media directory")
		}
		defer os.RemoveAll(mediaPath)
	}
	files, err := storage.NewFileStore(mediaPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open media directory")
	}
	media := storage.NewMediaStore(files, "/v1/media/")

	provider, fetcher, err := newProvider(cfg, host, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure video provider")
	}

	collector := metrics.NewCollector("dreamstream")
	engine := generation.NewEngine(provider, fetcher, media, generation.Options{
		Model:        cfg.VeoModel,
		PollInterval: cfg.PollInterval,
		MaxPolls:     cfg.MaxPolls(),
		Logger:       &logger,
		Recorder:     collector,
	})
	coordinator := studio.NewCoordinator(studio.NewGate(host, &logger), engine, studio.Options{
		Logger:   &logger,
		Recorder: collector,
		Media:    media,
	})
	status := coordinator.Start(ctx)
	logger.Info().Str("status", string(status)).Str("provider", cfg.VideoProvider).Msg("studio ready")

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer resolver.Close()

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMin)
	go limiter.Run(ctx)

	app := handlers.NewApp(coordinator, host, media, logger)
	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:         logger,
		Metrics:        collector,
		Limiter:        limiter,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		DefaultLocale:  cfg.DefaultLocale,
		CountryLookup:  resolver.Lookup(),
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on %s", server.Addr())
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if err := coordinator.Close(); err != nil {
		logger.Error().Err(err).Msg("failed to release media")
	}
	logger.Info().Msg("server stopped")
}

func newProvider(cfg *infra.Config, keys genai.KeySource, logger *infra.Logger) (video.Provider, video.Fetcher, error) {
	if cfg.VideoProvider == infra.VideoProviderSynthetic {
		p := video.NewSynthetic(syntheticPolls)
		return p, p, nil
	}
	client, err := genai.NewClient(genai.Options{
		Keys:    keys,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.VeoModel,
		Logger:  logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return client, client, nil
}

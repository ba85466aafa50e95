package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/miruna26/aicore-data-collection/config"
	"github.com/miruna26/aicore-data-collection/helpers"
	"github.com/miruna26/aicore-data-collection/internal/crawler"
	"github.com/miruna26/aicore-data-collection/internal/storage"
	"github.com/miruna26/aicore-data-collection/logger"
	"github.com/miruna26/aicore-data-collection/services/cache"
	"github.com/miruna26/aicore-data-collection/services/publisher"
	"github.com/miruna26/aicore-data-collection/services/worker"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	if len(os.Args) > 1 && os.Args[1] == "export" {
		if err := runExport(context.Background(), &cfg, os.Args[2:]); err != nil {
			log.Fatal().Err(err).Msg("Export failed")
		}
		return
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("output_dir", cfg.OutputDir).
		Dur("crawl_interval", cfg.CrawlInterval).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize services
	services, err := initializeServices(ctx, &cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Cleanup()

	collector := crawler.CreateCollector(&cfg, services.Cache)
	materializer := newMaterializer(&cfg)

	opts := worker.Options{
		OutputDir:       cfg.OutputDir,
		SaveConcurrency: cfg.SaveConcurrency,
		CrawlInterval:   cfg.CrawlInterval,
		Verbose:         !cfg.IsProduction(),
	}
	if services.Postgres != nil {
		opts.Sink = services.Postgres
	}

	// Create and start worker
	w := worker.NewWorker(
		ctx,
		collector,
		materializer,
		services.Publisher,
		cache.NewSeenStore(services.Cache, cfg.SeenTTL),
		helpers.NewLogger(cfg.ErrorLogFile),
		opts,
	)

	// Start worker in a goroutine
	workerDone := make(chan error, 1)
	go func() {
		log.Info().Msg("Starting vehicle collector")
		workerDone <- w.Start()
	}()

	// Wait for shutdown signal or worker error
	select {
	case sig := <-sigChan:
		log.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
		cancel()
		<-workerDone
	case err := <-workerDone:
		if err != nil {
			log.Error().Err(err).Msg("Worker exited with error")
		} else {
			log.Info().Msg("Worker exited normally")
		}
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down gracefully...")
}

// newMaterializer builds the materializer with the configured image pacing
func newMaterializer(cfg *config.Config) *storage.Materializer {
	opts := []storage.Option{storage.WithImageTimeout(cfg.ImageTimeout)}
	if cfg.ImageRatePerSec > 0 {
		opts = append(opts, storage.WithRateLimit(rate.Limit(cfg.ImageRatePerSec), cfg.SaveConcurrency))
	}
	return storage.NewMaterializer(helpers.NewFetcher(nil), opts...)
}

// Services holds all the initialized services
type Services struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
	Postgres  *storage.PostgresWriter
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
	if s.Postgres != nil {
		s.Postgres.Close()
	}
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{}

	// Initialize cache service, falling back to process memory
	memcacheService := cache.NewMemcacheService(cfg.MemcacheAddr)
	if err := memcacheService.Ping(); err != nil {
		logger.ForCache().Warn().
			Str("addr", cfg.MemcacheAddr).
			Err(err).
			Msg("Memcache unavailable, using in-memory cache")
		services.Cache = cache.NewMemoryCache()
	} else {
		services.Cache = memcacheService
		logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
	}

	// Initialize publisher
	redisPublisher := publisher.NewRedisPublisher(
		ctx,
		cfg.RedisAddr,
		cfg.RedisDB,
		cfg.RedisStream,
		cfg.RedisStreamCount,
		cfg.RedisStreamMaxLength,
	)
	if err := redisPublisher.Ping(); err != nil {
		redisPublisher.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	services.Publisher = redisPublisher

	logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
		cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)

	if cfg.PostgresDSN != "" {
		pw, err := storage.NewPostgresWriter(ctx, cfg.PostgresDSN)
		if err != nil {
			services.Cleanup()
			return nil, err
		}
		services.Postgres = pw
		logger.Info("Mirroring vehicles to PostgreSQL")
	}

	return services, nil
}

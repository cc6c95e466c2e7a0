package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/deckforge/cardindex/internal/analysis"
	"github.com/deckforge/cardindex/internal/cache"
	"github.com/deckforge/cardindex/internal/config"
	"github.com/deckforge/cardindex/internal/corpus"
	"github.com/deckforge/cardindex/internal/domain"
	"github.com/deckforge/cardindex/internal/embedding"
	"github.com/deckforge/cardindex/internal/ingest"
	logpkg "github.com/deckforge/cardindex/internal/logger"
	"github.com/deckforge/cardindex/internal/metrics"
	"github.com/deckforge/cardindex/internal/ratelimit"
	"github.com/deckforge/cardindex/internal/scryfall"
	"github.com/deckforge/cardindex/internal/search"
	"github.com/deckforge/cardindex/internal/store"
	"github.com/deckforge/cardindex/internal/transport/httpapi"
	"github.com/deckforge/cardindex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Storage.LogFile != "" {
		teed, closeLog, err := logpkg.WithFile(logger, cfg.Storage.LogFile)
		if err != nil {
			logger.Fatal("Failed to open log file", zap.Error(err))
		}
		defer func() { _ = closeLog() }()
		logger = teed
	}

	logger.Info("Starting cardindex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("corpus_dir", cfg.Storage.CorpusDir),
	)

	metrics.Register()

	vectorizer := embedding.New(cfg.Embedding.Dimensions)
	cardStore := store.New(cfg.Storage.CorpusDir, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// An absent corpus is bootstrapped with a full ingestion run before
	// the server starts accepting traffic.
	corp, err := corpus.Load(cardStore, logger)
	if errors.Is(err, domain.ErrCorpusNotFound) {
		logger.Info("Corpus not found, running initial ingestion")
		if err := runIngestion(ctx, cfg, cardStore, vectorizer, logger); err != nil {
			logger.Fatal("Initial ingestion failed", zap.Error(err))
		}
		corp, err = corpus.Load(cardStore, logger)
	}
	if err != nil {
		logger.Fatal("Failed to load corpus", zap.Error(err))
	}

	engine := search.New(corp, vectorizer, logger)
	resultCache := cache.New(time.Duration(cfg.Cache.TTLSec) * time.Second)
	go resultCache.Sweep(ctx, time.Duration(cfg.Cache.SweepSec)*time.Second)

	analyzer := analysis.New(cfg.OpenAI.APIKey, cfg.OpenAI.Model, logger)
	if !analyzer.Enabled() {
		logger.Warn("OpenAI API key not configured, commander analysis disabled")
	}

	server := httpapi.NewServer(corp, engine, resultCache, analyzer, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

func runIngestion(
	ctx context.Context,
	cfg config.Config,
	cardStore *store.Store,
	vectorizer *embedding.Vectorizer,
	logger *zap.Logger,
) error {
	client := scryfall.New(scryfall.Config{
		BaseURL:    cfg.Scryfall.BaseURL,
		Timeout:    time.Duration(cfg.Scryfall.TimeoutSec) * time.Second,
		MaxRetries: cfg.Scryfall.MaxRetries,
		RetryDelay: time.Duration(cfg.Scryfall.RetryDelayMS) * time.Millisecond,
		Limiter: ratelimit.New(
			cfg.Scryfall.RateLimit,
			time.Duration(cfg.Scryfall.RateWindowMS)*time.Millisecond,
		),
		Logger: logger,
	})

	pipeline := ingest.New(ingest.Config{
		Fetcher:       client,
		Saver:         cardStore,
		Vectorizer:    vectorizer,
		FirstPageURL:  client.SearchURL(cfg.Scryfall.SearchQuery),
		ProgressPath:  cardStore.ProgressPath(),
		MaxPageErrors: cfg.Scryfall.MaxPageErrors,
		PageDelay:     time.Duration(cfg.Scryfall.PageDelayMS) * time.Millisecond,
		Logger:        logger,
	})

	_, err := pipeline.Run(ctx)
	return err
}

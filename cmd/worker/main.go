package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/scholaris-ai/scholaris/internal/config"
	"github.com/scholaris-ai/scholaris/internal/core"
	db "github.com/scholaris-ai/scholaris/internal/core/database"
	"github.com/scholaris-ai/scholaris/internal/core/ingestion"
	"github.com/scholaris-ai/scholaris/internal/core/llm"
	"github.com/scholaris-ai/scholaris/internal/core/queue"
)

// The worker binary drains the Redis ingestion queue. Run as many replicas
// as embedding throughput allows; jobs are document-level idempotent.
func main() {
	cfg := config.LoadConfig()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Str("service", "scholaris-worker").Logger()

	if cfg.RedisAddr == "" {
		logger.Fatal().Msg("REDIS_ADDR not set, the worker needs a shared queue")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		<-c
		cancel()
	}()

	store, err := db.NewDatabaseClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("database init failed")
	}
	defer store.Close()

	var embedder core.EmbeddingProvider
	if cfg.AIAPIKey == "" {
		logger.Warn().Msg("GEMINI_API_KEY not set, using deterministic null embedder")
		embedder = llm.NewNullEmbedder(cfg.EmbedDim)
	} else {
		embedder, err = llm.NewGeminiEmbedder(ctx, cfg.AIAPIKey, cfg.EmbedModel, cfg.EmbedDim, cfg.EmbedTimeout)
		if err != nil {
			logger.Fatal().Err(err).Msg("embedder init failed")
		}
	}
	defer embedder.Close()

	pipeline := ingestion.New(store, embedder, ingestion.Config{
		ChunkSize:    cfg.ChunkSize,
		Overlap:      cfg.ChunkOverlap,
		BatchSize:    cfg.BatchSize,
		EmbedTimeout: cfg.EmbedTimeout,
	}, logger)

	rq, err := queue.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPass, 5)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer rq.Close()

	worker := queue.NewWorker(rq, pipeline, logger)
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker stopped")
	}
	logger.Info().Msg("goodbye")
}

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/scholaris-ai/scholaris/internal/config"
	"github.com/scholaris-ai/scholaris/internal/core"
	db "github.com/scholaris-ai/scholaris/internal/core/database"
	"github.com/scholaris-ai/scholaris/internal/core/ingestion"
	"github.com/scholaris-ai/scholaris/internal/core/llm"
	objectclient "github.com/scholaris-ai/scholaris/internal/core/object-client"
	"github.com/scholaris-ai/scholaris/internal/core/queue"
	"github.com/scholaris-ai/scholaris/internal/core/retrieval"
)

// App wires the service together: store, object storage, embedder, pipeline,
// queue, searcher and the HTTP server.
type App struct {
	Store        core.Store
	ObjectClient core.ObjectClient
	Embedder     core.EmbeddingProvider
	Pipeline     *ingestion.Pipeline
	Queue        queue.JobQueue
	Searcher     *retrieval.Searcher
	Server       *Server

	worker       *queue.Worker
	workerCancel context.CancelFunc
	logger       zerolog.Logger
}

func NewApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	store, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info().Msg("database initialized and ready")

	// Object storage is optional; without it uploads are not archived and
	// re-ingestion needs the stored content column.
	var objClient core.ObjectClient
	if cfg.AwsAccessKey != "" && cfg.AwsSecretKey != "" {
		s3Client, err := objectclient.NewS3Client(appCtx, cfg)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		objClient = s3Client
		logger.Info().Str("bucket", cfg.BucketName).Msg("object client initialized and ready")
	} else {
		logger.Warn().Msg("AWS credentials not set, uploads will not be archived")
	}

	embedder, err := buildEmbedder(appCtx, cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	pipeline := ingestion.New(store, embedder, ingestion.Config{
		ChunkSize:    cfg.ChunkSize,
		Overlap:      cfg.ChunkOverlap,
		BatchSize:    cfg.BatchSize,
		EmbedTimeout: cfg.EmbedTimeout,
	}, logger)

	searcher := retrieval.NewSearcher(store, embedder, cfg.HybridAlpha, logger)

	a := &App{
		Store:        store,
		ObjectClient: objClient,
		Embedder:     embedder,
		Pipeline:     pipeline,
		Searcher:     searcher,
		logger:       logger,
	}

	// Redis gives a real broker shared with cmd/worker. Without it jobs run
	// on an in-process queue drained by an embedded worker goroutine.
	if cfg.RedisAddr != "" {
		rq, err := queue.ConnectRedis(appCtx, cfg.RedisAddr, cfg.RedisPass, 5)
		if err != nil {
			a.closeInfra()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.Queue = rq
		logger.Info().Str("addr", cfg.RedisAddr).Msg("redis queue connected")
	} else {
		mq := queue.NewMemoryQueue(0)
		a.Queue = mq
		workerCtx, workerCancel := context.WithCancel(context.Background())
		a.workerCancel = workerCancel
		a.worker = queue.NewWorker(mq, pipeline, logger)
		go func() {
			_ = a.worker.Run(workerCtx)
		}()
		logger.Warn().Msg("REDIS_ADDR not set, using in-process job queue")
	}

	a.Server = NewServer(cfg, store, objClient, pipeline, a.Queue, searcher, logger)
	return a, nil
}

func buildEmbedder(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (core.EmbeddingProvider, error) {
	if cfg.AIAPIKey == "" {
		logger.Warn().Int("dim", cfg.EmbedDim).Msg("GEMINI_API_KEY not set, using deterministic null embedder")
		return llm.NewNullEmbedder(cfg.EmbedDim), nil
	}
	emb, err := llm.NewGeminiEmbedder(ctx, cfg.AIAPIKey, cfg.EmbedModel, cfg.EmbedDim, cfg.EmbedTimeout)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder, %w", err)
	}
	logger.Info().Str("model", cfg.EmbedModel).Int("dim", cfg.EmbedDim).Msg("embedder initialized")
	return emb, nil
}

func (a *App) Close() {
	if a.workerCancel != nil {
		a.workerCancel()
	}
	if a.Queue != nil {
		if err := a.Queue.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("queue close")
		}
	}
	a.closeInfra()
}

func (a *App) closeInfra() {
	if a.Embedder != nil {
		_ = a.Embedder.Close()
	}
	if a.Store != nil {
		_ = a.Store.Close()
	}
}

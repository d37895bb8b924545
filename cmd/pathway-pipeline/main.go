package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/pathwayflow/internal/config"
	"github.com/Lllllllleong/pathwayflow/internal/llm"
	"github.com/Lllllllleong/pathwayflow/internal/services"
	"github.com/Lllllllleong/pathwayflow/internal/store"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// A local .env is a convenience for development runs; in deployed
	// environments the variables are injected directly.
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded configuration from .env file.")
	}

	if err := run(); err != nil {
		slog.Error("Pipeline run failed.", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	st, cleanup, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	model, err := llm.NewVertexClient(ctx, cfg.ProjectID, cfg.VertexAIRegion, cfg.ModelID, cfg.ModelCallTimeout)
	if err != nil {
		return err
	}
	defer model.Close()

	tracker, cleanupTracker, err := newTracker(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanupTracker()

	retry := llm.RetryPolicy{
		MaxAttempts:    cfg.MaxModelAttempts,
		InitialBackoff: llm.DefaultRetryPolicy.InitialBackoff,
	}
	extractor := services.NewExtractor(model, st, services.ExtractorConfig{
		MaxOutputTokens: cfg.MaxOutputTokens,
		Temperature:     cfg.Temperature,
		Retry:           retry,
	})
	summarizer := services.NewSummarizer(model, st, services.SummarizerConfig{
		MaxOutputTokens: cfg.MaxOutputTokens,
		Temperature:     cfg.Temperature,
		ChunkCharBudget: cfg.ChunkCharBudget,
		Retry:           retry,
	})
	condenser := services.NewCondenser(model, st, services.CondenserConfig{
		MaxOutputTokens: cfg.MaxOutputTokens,
		Retry:           retry,
	})

	docs, err := services.DiscoverDocuments(cfg.InputDir)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		slog.Warn("No documents found. Nothing to do.", "inputDir", cfg.InputDir)
		return nil
	}

	driver := services.NewDriver(st, extractor, summarizer, condenser, tracker, cfg.Workers)
	_, err = driver.Run(ctx, docs)
	return err
}

// newStore builds the configured artifact store. The returned cleanup closes
// any backing client and is safe to call unconditionally.
func newStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	if cfg.ArtifactBackend == "gcs" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		st, err := store.NewGCSStore(client, cfg.ArtifactBucket)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return st, func() { client.Close() }, nil
	}

	st, err := store.NewFileStore(cfg.StoreRoot)
	if err != nil {
		return nil, nil, err
	}
	return st, func() {}, nil
}

// newTracker builds the Firestore status tracker when a collection is
// configured, and a no-op tracker otherwise.
func newTracker(ctx context.Context, cfg *config.Config) (services.StatusTracker, func(), error) {
	if cfg.FirestoreCollection == "" {
		return services.NopTracker{}, func() {}, nil
	}
	client, err := firestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	tracker, err := services.NewFirestoreTracker(client, cfg.FirestoreCollection)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return tracker, func() { client.Close() }, nil
}

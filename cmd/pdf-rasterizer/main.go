package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Lllllllleong/pathwayflow/internal/config"
	"github.com/Lllllllleong/pathwayflow/internal/services"
	"github.com/joho/godotenv"
)

// pdf-rasterizer converts a directory of pathway PDFs into the per-page PNG
// folders the pipeline consumes. It runs ahead of pathway-pipeline and is
// idempotent: documents already rasterized are skipped.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded configuration from .env file.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rasterizer, err := services.NewRasterizer(services.RasterizerConfig{
		PDFDir:    config.GetEnv("PDF_DIR", "pathway_pdfs"),
		OutputDir: config.GetEnv("PAGE_IMAGE_DIR", "ripimg"),
	})
	if err != nil {
		slog.Error("Failed to initialize rasterizer.", "error", err)
		os.Exit(1)
	}

	if err := rasterizer.Process(ctx); err != nil {
		slog.Error("Rasterization run failed.", "error", err)
		os.Exit(1)
	}
}

package services

import (
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// RasterizerConfig holds the directories for the rasterization collaborator.
type RasterizerConfig struct {
	PDFDir    string
	OutputDir string
}

// Rasterizer converts source pathway PDFs into per-page PNG images laid out
// the way the pipeline's page source expects: OutputDir/<name>/pgN.png.
// It is the narrow input-boundary collaborator; the pipeline itself only
// ever sees the resulting image folders.
type Rasterizer struct {
	config RasterizerConfig
}

func NewRasterizer(config RasterizerConfig) (*Rasterizer, error) {
	if config.PDFDir == "" || config.OutputDir == "" {
		return nil, fmt.Errorf("NewRasterizer: PDF and output directories must be provided")
	}
	return &Rasterizer{config: config}, nil
}

// Process rasterizes every PDF in the source directory. Documents whose
// output folder already exists are skipped, so re-runs only pick up new
// PDFs. A failure on one PDF does not stop the rest.
func (r *Rasterizer) Process(ctx context.Context) error {
	entries, err := os.ReadDir(r.config.PDFDir)
	if err != nil {
		return fmt.Errorf("failed to read PDF directory %s: %w", r.config.PDFDir, err)
	}

	var pdfCount, failed int
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}
		pdfCount++
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.rasterizePDF(ctx, filepath.Join(r.config.PDFDir, entry.Name())); err != nil {
			slog.Error("Failed to rasterize PDF.", "pdf", entry.Name(), "error", err)
			failed++
		}
	}

	slog.Info("Rasterization complete.", "pdfs", pdfCount, "failed", failed)
	if pdfCount == 0 {
		slog.Warn("No PDF files found.", "dir", r.config.PDFDir)
	}
	return nil
}

func (r *Rasterizer) rasterizePDF(ctx context.Context, pdfPath string) error {
	name := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	outDir := filepath.Join(r.config.OutputDir, name)
	logCtx := slog.With("document", name)

	if _, err := os.Stat(outDir); err == nil {
		logCtx.Info("Page images already exist. Skipping.")
		return nil
	}

	tempDir, err := os.MkdirTemp("", "pathway-rasterizer-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	// Repair/normalize the PDF first; pathway PDFs from hospital systems
	// are frequently malformed enough to choke the renderer.
	optimizedPath := filepath.Join(tempDir, "optimized.pdf")
	if err := optimizePDF(pdfPath, optimizedPath); err != nil {
		return fmt.Errorf("failed to validate/optimize PDF: %w", err)
	}
	pageCount, err := api.PageCountFile(optimizedPath)
	if err != nil {
		return fmt.Errorf("failed to get page count: %w", err)
	}

	doc, err := fitz.New(optimizedPath)
	if err != nil {
		return fmt.Errorf("failed to open PDF for rendering: %w", err)
	}
	defer doc.Close()
	if doc.NumPage() != pageCount {
		logCtx.Warn("Renderer and parser disagree on page count.", "parser", pageCount, "renderer", doc.NumPage())
	}

	renderDir := filepath.Join(tempDir, "pages")
	if err := os.MkdirAll(renderDir, 0o755); err != nil {
		return fmt.Errorf("failed to create render dir: %w", err)
	}
	for i := 0; i < doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := renderPage(doc, i, filepath.Join(renderDir, fmt.Sprintf("pg%d.png", i+1))); err != nil {
			return err
		}
	}

	// The folder appears under OutputDir only once every page rendered, so
	// the page source never sees a half-rasterized document.
	if err := os.MkdirAll(r.config.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir %s: %w", r.config.OutputDir, err)
	}
	if err := os.Rename(renderDir, outDir); err != nil {
		return fmt.Errorf("failed to commit page images to %s: %w", outDir, err)
	}

	logCtx.Info("Rasterized document.", "pages", doc.NumPage())
	return nil
}

func renderPage(doc *fitz.Document, pageIndex int, outPath string) error {
	img, err := doc.Image(pageIndex)
	if err != nil {
		return fmt.Errorf("failed to render page %d: %w", pageIndex+1, err)
	}
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create page image %s: %w", outPath, err)
	}
	defer out.Close()
	if err := png.Encode(out, img); err != nil {
		return fmt.Errorf("failed to encode page %d: %w", pageIndex+1, err)
	}
	return nil
}

func optimizePDF(inPath, outPath string) error {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return api.OptimizeFile(inPath, outPath, cfg)
}

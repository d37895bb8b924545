package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Lllllllleong/pathwayflow/internal/llm"
	"github.com/Lllllllleong/pathwayflow/internal/models"
	"github.com/Lllllllleong/pathwayflow/internal/store"
)

// ExtractorConfig holds the model tuning for the extraction stage.
type ExtractorConfig struct {
	MaxOutputTokens int32
	Temperature     float32
	Retry           llm.RetryPolicy
}

// Extractor runs the extraction stage for one document: a page-analysis call
// per content page, then one synthesis call over the accumulated results.
type Extractor struct {
	model  llm.Client
	store  store.Store
	config ExtractorConfig
}

func NewExtractor(model llm.Client, st store.Store, config ExtractorConfig) *Extractor {
	return &Extractor{model: model, store: st, config: config}
}

// Process extracts all pages of doc and persists the extraction record. The
// record is saved only after every page call and the synthesis call succeed;
// any failure aborts the document with nothing written, leaving it eligible
// for a clean re-run.
func (e *Extractor) Process(ctx context.Context, doc models.Document) (*models.ExtractionRecord, error) {
	logCtx := slog.With("document", doc.Name)
	logCtx.Info("Starting extraction.", "pageCount", len(doc.Pages))

	pages := make([]models.PageImage, len(doc.Pages))
	copy(pages, doc.Pages)
	sort.Slice(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })

	var results []models.PageResult
	for _, page := range pages {
		result, err := e.extractPage(ctx, logCtx, page)
		if err != nil {
			logCtx.Error("Page extraction failed, aborting document.", "page", page.Number, "error", err)
			return nil, fmt.Errorf("page %d: %w", page.Number, err)
		}
		results = append(results, *result)
	}

	synthesis, err := e.synthesize(ctx, logCtx, results)
	if err != nil {
		logCtx.Error("Synthesis call failed, aborting document.", "error", err)
		return nil, fmt.Errorf("synthesis: %w", err)
	}
	results = append(results, *synthesis)

	record := &models.ExtractionRecord{
		PathwayName: doc.Name,
		ProcessedAt: time.Now().UTC(),
		Responses:   results,
	}
	if err := e.store.Save(ctx, store.StageExtraction, doc.Name, record); err != nil {
		logCtx.Error("Failed to save extraction record", "error", err)
		return nil, err
	}

	logCtx.Info("Extraction complete.", "responses", len(record.Responses))
	return record, nil
}

// extractPage runs the page-analysis call for one page image.
func (e *Extractor) extractPage(ctx context.Context, logCtx *slog.Logger, page models.PageImage) (*models.PageResult, error) {
	logCtx.Info("Processing page.", "page", page.Number, "image", filepath.Base(page.Path))

	imageData, err := os.ReadFile(page.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read page image %s: %w", page.Path, err)
	}

	req := llm.Request{
		System: llm.ExtractorSystemPrompt,
		Prompt: llm.PageAnalysisPrompt,
		Attachment: &llm.Attachment{
			MIMEType: imageMIMEType(page.Path),
			Data:     imageData,
		},
		MaxOutputTokens:   e.config.MaxOutputTokens,
		Temperature:       &e.config.Temperature,
		ExtendedReasoning: true,
	}
	result, err := llm.GenerateWithRetry(ctx, e.model, req, e.config.Retry)
	if err != nil {
		return nil, err
	}
	if refused(result.Text) {
		return nil, fmt.Errorf("model response indicates refusal for page %d", page.Number)
	}
	if result.Text == "" {
		logCtx.Warn("No content extracted from page. Treating as empty page.", "page", page.Number)
	}

	return &models.PageResult{
		Page:      models.Page(page.Number),
		ImageFile: filepath.Base(page.Path),
		Response:  result.Text,
		Thinking:  result.Thinking,
	}, nil
}

// synthesize issues the final per-document call over all accumulated page
// results, producing the "summary" entry appended last.
func (e *Extractor) synthesize(ctx context.Context, logCtx *slog.Logger, results []models.PageResult) (*models.PageResult, error) {
	logCtx.Info("Requesting per-document synthesis.")

	var prompt strings.Builder
	prompt.WriteString("Here's a summary of my previous analyses:\n\n")
	for _, r := range results {
		fmt.Fprintf(&prompt, "Page %s analysis: %s\n\n", r.Page, r.Response)
	}
	prompt.WriteString(llm.PageSynthesisPrompt)

	req := llm.Request{
		System:            llm.ExtractorSystemPrompt,
		Prompt:            prompt.String(),
		MaxOutputTokens:   e.config.MaxOutputTokens,
		Temperature:       &e.config.Temperature,
		ExtendedReasoning: true,
	}
	result, err := llm.GenerateWithRetry(ctx, e.model, req, e.config.Retry)
	if err != nil {
		return nil, err
	}

	return &models.PageResult{
		Page:     models.SummaryPageID(),
		Response: result.Text,
		Thinking: result.Thinking,
	}, nil
}

// refused detects the model declining to analyze a page. Extraction must
// fail fast on refusal, since downstream synthesis depends on every page.
func refused(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range []string{
		"i am unable to",
		"i cannot fulfill",
		"i cannot answer",
		"i cannot provide",
		"as a large language model",
	} {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

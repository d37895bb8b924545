package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Lllllllleong/pathwayflow/internal/llm"
	"github.com/Lllllllleong/pathwayflow/internal/models"
	"github.com/Lllllllleong/pathwayflow/internal/store"
)

// SummarizerConfig holds the model tuning for the complete-summary stage.
// ChunkCharBudget caps the rendered page content per prompt; when the
// primary full-content call overflows the model's input budget, pages are
// packed into chunks under this budget and summarized independently.
type SummarizerConfig struct {
	MaxOutputTokens int32
	Temperature     float32
	ChunkCharBudget int
	Retry           llm.RetryPolicy
}

// Summarizer runs the complete-summary stage: one full-content synthesis
// call per document, with a degraded chunk-and-merge fallback on overflow.
type Summarizer struct {
	model  llm.Client
	store  store.Store
	config SummarizerConfig
}

func NewSummarizer(model llm.Client, st store.Store, config SummarizerConfig) *Summarizer {
	return &Summarizer{model: model, store: st, config: config}
}

// Process summarizes one document's extraction record into a complete
// summary and persists it. The record is written once, after the whole
// primary-or-overflow sequence succeeds.
func (s *Summarizer) Process(ctx context.Context, name string) (*models.CompleteSummary, error) {
	logCtx := slog.With("document", name)
	logCtx.Info("Starting complete summary.")

	var record models.ExtractionRecord
	if err := s.store.Load(ctx, store.StageExtraction, name, &record); err != nil {
		logCtx.Error("Failed to load extraction record", "error", err)
		return nil, err
	}
	pages := record.PageResponses()
	if len(pages) == 0 {
		return nil, fmt.Errorf("extraction record for %s has no page responses", name)
	}

	summaryText, chunked, err := s.summarize(ctx, logCtx, record.PathwayName, pages)
	if err != nil {
		return nil, err
	}
	if chunked {
		line := fmt.Sprintf("%s: %s", time.Now().UTC().Format(time.RFC3339), name)
		if err := s.store.AppendLog(ctx, store.StageCompleteSummary, store.OverflowLogFile, line); err != nil {
			logCtx.Error("Failed to append to overflow log", "error", err)
			return nil, err
		}
	}

	summary := &models.CompleteSummary{
		PathwayName:  record.PathwayName,
		OriginalFile: name + "_extracted.json",
		ProcessedAt:  time.Now().UTC(),
		Summary:      summaryText,
		Chunked:      chunked,
	}
	if err := s.store.Save(ctx, store.StageCompleteSummary, name, summary); err != nil {
		logCtx.Error("Failed to save complete summary", "error", err)
		return nil, err
	}

	logCtx.Info("Complete summary done.", "chunked", chunked)
	return summary, nil
}

// summarize attempts the single full-content call, falling back to
// chunk-and-merge when the model rejects the input as too large.
func (s *Summarizer) summarize(ctx context.Context, logCtx *slog.Logger, pathwayName string, pages []models.PageResult) (string, bool, error) {
	prompt := fullSummaryPrompt(pathwayName, pages)
	result, err := s.generate(ctx, prompt)
	if err == nil {
		return result.Text, false, nil
	}
	if !errors.Is(err, llm.ErrInputTooLarge) {
		logCtx.Error("Complete summary call failed", "error", err)
		return "", false, err
	}

	logCtx.Warn("Input exceeded model budget. Falling back to chunked summarization.", "pages", len(pages))
	chunks := chunkPages(pages, s.config.ChunkCharBudget)

	chunkSummaries := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		logCtx.Info("Summarizing chunk.", "chunk", i+1, "chunks", len(chunks), "pages", len(chunk))
		result, err := s.generate(ctx, chunkSummaryPrompt(pathwayName, chunk))
		if err != nil {
			logCtx.Error("Chunk summary call failed", "chunk", i+1, "error", err)
			return "", false, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		chunkSummaries = append(chunkSummaries, result.Text)
	}

	merged, err := s.generate(ctx, mergePrompt(pathwayName, chunkSummaries))
	if err != nil {
		logCtx.Error("Chunk merge call failed", "error", err)
		return "", false, fmt.Errorf("merge: %w", err)
	}
	return merged.Text, true, nil
}

func (s *Summarizer) generate(ctx context.Context, prompt string) (*llm.Result, error) {
	req := llm.Request{
		System:            llm.SummarizerSystemPrompt,
		Prompt:            prompt,
		MaxOutputTokens:   s.config.MaxOutputTokens,
		Temperature:       &s.config.Temperature,
		ExtendedReasoning: true,
	}
	return llm.GenerateWithRetry(ctx, s.model, req, s.config.Retry)
}

// pageBlock renders one page analysis for inclusion in a synthesis prompt.
// Chunk budget arithmetic counts these rendered blocks.
func pageBlock(p models.PageResult) string {
	return fmt.Sprintf("=== PAGE %s ANALYSIS ===\n%s\n\n", p.Page, p.Response)
}

func fullSummaryPrompt(pathwayName string, pages []models.PageResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I need a comprehensive summary of the clinical pathway for %s.\n\n", pathwayName)
	b.WriteString("Here are the full analyses of each page:\n\n")
	for _, p := range pages {
		b.WriteString(pageBlock(p))
	}
	b.WriteString(llm.CompleteSummaryPrompt)
	return b.String()
}

func chunkSummaryPrompt(pathwayName string, pages []models.PageResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "These are page analyses from the clinical pathway for %s.\n\n", pathwayName)
	for _, p := range pages {
		b.WriteString(pageBlock(p))
	}
	b.WriteString(llm.ChunkSummaryPrompt)
	return b.String()
}

func mergePrompt(pathwayName string, chunkSummaries []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "These are partial summaries of the clinical pathway for %s.\n\n", pathwayName)
	for i, summary := range chunkSummaries {
		fmt.Fprintf(&b, "=== SECTION %d SUMMARY ===\n%s\n\n", i+1, summary)
	}
	b.WriteString(llm.ChunkMergePrompt)
	return b.String()
}

// chunkPages packs in-order pages into the fewest contiguous chunks whose
// rendered size stays within budget. Page boundaries are never split; a
// single page exceeding the budget forms a chunk of its own.
func chunkPages(pages []models.PageResult, budget int) [][]models.PageResult {
	var chunks [][]models.PageResult
	var current []models.PageResult
	size := 0

	for _, page := range pages {
		blockLen := len(pageBlock(page))
		if len(current) > 0 && size+blockLen > budget {
			chunks = append(chunks, current)
			current = nil
			size = 0
		}
		current = append(current, page)
		size += blockLen
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

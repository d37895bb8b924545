package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/Lllllllleong/pathwayflow/internal/llm"
	"github.com/Lllllllleong/pathwayflow/internal/models"
	"github.com/Lllllllleong/pathwayflow/internal/store"
)

// CondenserConfig holds the model tuning for the matching-summary stage.
// The stage runs cool and short: matching summaries target ~400 words.
type CondenserConfig struct {
	MaxOutputTokens int32
	Temperature     float32
	Retry           llm.RetryPolicy
}

// Condenser runs the matching-summary stage: one JSON-mode call condensing a
// complete summary into the four matching facets, persisted in structured
// and plain-text form. After each document it rebuilds the consolidated
// corpus file from every available matching summary.
type Condenser struct {
	model  llm.Client
	store  store.Store
	config CondenserConfig

	// Guards consolidated-file regeneration when documents run in parallel.
	rebuildMu sync.Mutex
}

func NewCondenser(model llm.Client, st store.Store, config CondenserConfig) *Condenser {
	return &Condenser{model: model, store: st, config: config}
}

// versionSuffixRegex strips version markers like -v1, -v2.1-3, -508h from
// pathway filenames so matching artifacts carry the clean pathway name.
var versionSuffixRegex = regexp.MustCompile(`-v\d+(\.\d+)?(-\d+)?(-508h)?`)

func cleanPathwayName(name string) string {
	return versionSuffixRegex.ReplaceAllString(name, "")
}

// Process condenses one document's complete summary into a matching summary
// and persists it, then regenerates the consolidated corpus file.
func (c *Condenser) Process(ctx context.Context, name string) (*models.MatchingSummary, error) {
	logCtx := slog.With("document", name)
	logCtx.Info("Starting matching summary.")

	var complete models.CompleteSummary
	if err := c.store.Load(ctx, store.StageCompleteSummary, name, &complete); err != nil {
		logCtx.Error("Failed to load complete summary", "error", err)
		return nil, err
	}

	cleanName := cleanPathwayName(name)
	fields, err := c.condense(ctx, cleanName, complete.Summary)
	if err != nil {
		logCtx.Error("Matching summary call failed", "error", err)
		return nil, err
	}

	plainText := renderPlainText(cleanName, *fields)
	summary := &models.MatchingSummary{
		PathwayName:  cleanName,
		OriginalFile: name + "_complete_summary.json",
		ProcessedAt:  time.Now().UTC(),
		Fields:       *fields,
		PlainText:    plainText,
		WordCount:    countWords(*fields),
	}

	if err := c.store.Save(ctx, store.StageMatchingSummary, name, summary); err != nil {
		logCtx.Error("Failed to save matching summary", "error", err)
		return nil, err
	}
	if err := c.store.WriteText(ctx, store.StageMatchingSummary, name+"_matching.txt", plainText); err != nil {
		logCtx.Error("Failed to write plain-text matching summary", "error", err)
		return nil, err
	}

	if err := c.RebuildConsolidated(ctx); err != nil {
		logCtx.Error("Failed to rebuild consolidated matching file", "error", err)
		return nil, err
	}

	logCtx.Info("Matching summary complete.", "wordCount", summary.WordCount)
	return summary, nil
}

// condense issues the JSON-mode condensation call and parses the four
// matching facets out of the response.
func (c *Condenser) condense(ctx context.Context, cleanName, completeSummary string) (*models.MatchingFields, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "I need a condensed summary of the following clinical pathway: %s\n\n", cleanName)
	fmt.Fprintf(&prompt, "Complete pathway information:\n%s\n\n", completeSummary)
	prompt.WriteString(llm.MatchingSummaryPrompt)

	req := llm.Request{
		System:          llm.CondenserSystemPrompt,
		Prompt:          prompt.String(),
		MaxOutputTokens: c.config.MaxOutputTokens,
		Temperature:     &c.config.Temperature,
		JSONOutput:      true,
	}
	result, err := llm.GenerateWithRetry(ctx, c.model, req, c.config.Retry)
	if err != nil {
		return nil, err
	}
	if result.Text == "" {
		return nil, fmt.Errorf("model returned an empty response instead of JSON for %s", cleanName)
	}

	var fields models.MatchingFields
	if err := json.Unmarshal([]byte(result.Text), &fields); err != nil {
		return nil, fmt.Errorf("failed to parse matching summary JSON for %s: %w", cleanName, err)
	}
	if fields == (models.MatchingFields{}) {
		return nil, fmt.Errorf("matching summary for %s has no populated fields", cleanName)
	}
	return &fields, nil
}

// RebuildConsolidated regenerates the consolidated corpus file from every
// committed matching summary, in ascending document-name order. The file is
// fully derived state: cheap, idempotent, safe to rebuild repeatedly.
func (c *Condenser) RebuildConsolidated(ctx context.Context) error {
	c.rebuildMu.Lock()
	defer c.rebuildMu.Unlock()

	names, err := c.store.List(ctx, store.StageMatchingSummary)
	if err != nil {
		return err
	}

	sections := make([]string, 0, len(names))
	for _, name := range names {
		var summary models.MatchingSummary
		if err := c.store.Load(ctx, store.StageMatchingSummary, name, &summary); err != nil {
			return err
		}
		sections = append(sections, summary.PlainText)
	}

	separator := "\n\n" + strings.Repeat("=", 50) + "\n\n"
	content := strings.Join(sections, separator)
	if content != "" {
		content += "\n"
	}
	return c.store.WriteText(ctx, store.StageMatchingSummary, store.ConsolidatedFile, content)
}

func renderPlainText(cleanName string, fields models.MatchingFields) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PATHWAY: %s\n\n", cleanName)
	fmt.Fprintf(&b, "Diagnostics: %s\n\n", fields.Diagnostics)
	fmt.Fprintf(&b, "Staging: %s\n\n", fields.Staging)
	fmt.Fprintf(&b, "Treatments: %s\n\n", fields.Treatments)
	fmt.Fprintf(&b, "Exclusions: %s", fields.Exclusions)
	return b.String()
}

func countWords(fields models.MatchingFields) int {
	return len(strings.Fields(fields.Diagnostics)) +
		len(strings.Fields(fields.Staging)) +
		len(strings.Fields(fields.Treatments)) +
		len(strings.Fields(fields.Exclusions))
}

package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Lllllllleong/pathwayflow/internal/llm"
	"github.com/Lllllllleong/pathwayflow/internal/models"
	"github.com/Lllllllleong/pathwayflow/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saveExtractionRecord(t *testing.T, st store.Store, name string, pages ...models.PageResult) {
	t.Helper()
	record := &models.ExtractionRecord{
		PathwayName: name,
		ProcessedAt: time.Now().UTC(),
		Responses:   append(pages, models.PageResult{Page: models.SummaryPageID(), Response: "synthesis"}),
	}
	require.NoError(t, st.Save(context.Background(), store.StageExtraction, name, record))
}

func TestSummarizerSingleCall(t *testing.T) {
	st := newFileStore(t)
	saveExtractionRecord(t, st, "lung_cancer",
		models.PageResult{Page: models.Page(2), Response: "TEXT_p2"},
		models.PageResult{Page: models.Page(3), Response: "TEXT_p3"},
	)

	client := &scriptedClient{handler: sequence(scriptedStep{text: "COMPLETE"})}
	summarizer := NewSummarizer(client, st, SummarizerConfig{ChunkCharBudget: 100000, Retry: quickRetry})

	summary, err := summarizer.Process(context.Background(), "lung_cancer")
	require.NoError(t, err)
	assert.Equal(t, "COMPLETE", summary.Summary)
	assert.False(t, summary.Chunked)
	assert.Equal(t, "lung_cancer_extracted.json", summary.OriginalFile)

	// The prompt carries every page analysis but not the synthesis entry.
	require.Equal(t, 1, client.callCount())
	assert.Contains(t, client.calls[0].Prompt, "TEXT_p2")
	assert.Contains(t, client.calls[0].Prompt, "TEXT_p3")
	assert.NotContains(t, client.calls[0].Prompt, "synthesis")

	var loaded models.CompleteSummary
	require.NoError(t, st.Load(context.Background(), store.StageCompleteSummary, "lung_cancer", &loaded))
	assert.Equal(t, "COMPLETE", loaded.Summary)
}

func TestSummarizerChunkFallback(t *testing.T) {
	root := t.TempDir()
	st, err := store.NewFileStore(root)
	require.NoError(t, err)
	saveExtractionRecord(t, st, "colon_cancer",
		models.PageResult{Page: models.Page(2), Response: strings.Repeat("a", 60)},
		models.PageResult{Page: models.Page(3), Response: strings.Repeat("b", 60)},
	)

	client := &scriptedClient{handler: sequence(
		scriptedStep{err: llm.ErrInputTooLarge},
		scriptedStep{text: "C1"},
		scriptedStep{text: "C2"},
		scriptedStep{text: "MERGED"},
	)}
	// Budget below two rendered page blocks, so each page becomes a chunk.
	summarizer := NewSummarizer(client, st, SummarizerConfig{ChunkCharBudget: 100, Retry: quickRetry})

	summary, err := summarizer.Process(context.Background(), "colon_cancer")
	require.NoError(t, err)
	assert.Equal(t, "MERGED", summary.Summary)
	assert.True(t, summary.Chunked)

	// The merge call sees both chunk summaries as sections.
	require.Equal(t, 4, client.callCount())
	assert.Contains(t, client.calls[3].Prompt, "SECTION 1")
	assert.Contains(t, client.calls[3].Prompt, "C1")
	assert.Contains(t, client.calls[3].Prompt, "SECTION 2")
	assert.Contains(t, client.calls[3].Prompt, "C2")

	logData, err := os.ReadFile(filepath.Join(root, "complete_summaries", store.OverflowLogFile))
	require.NoError(t, err)
	assert.Contains(t, string(logData), "colon_cancer")
}

func TestSummarizerChunkFailureLeavesNoRecord(t *testing.T) {
	st := newFileStore(t)
	saveExtractionRecord(t, st, "breast_cancer",
		models.PageResult{Page: models.Page(2), Response: strings.Repeat("a", 60)},
		models.PageResult{Page: models.Page(3), Response: strings.Repeat("b", 60)},
	)

	client := &scriptedClient{handler: sequence(
		scriptedStep{err: llm.ErrInputTooLarge},
		scriptedStep{text: "C1"},
		scriptedStep{err: llm.ErrInputTooLarge},
	)}
	summarizer := NewSummarizer(client, st, SummarizerConfig{ChunkCharBudget: 100, Retry: quickRetry})

	_, err := summarizer.Process(context.Background(), "breast_cancer")
	require.ErrorIs(t, err, llm.ErrInputTooLarge)

	has, err := st.Has(context.Background(), store.StageCompleteSummary, "breast_cancer")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestSummarizerRejectsEmptyExtraction(t *testing.T) {
	st := newFileStore(t)
	record := &models.ExtractionRecord{
		PathwayName: "empty_pathway",
		Responses:   []models.PageResult{{Page: models.SummaryPageID(), Response: "synthesis"}},
	}
	require.NoError(t, st.Save(context.Background(), store.StageExtraction, "empty_pathway", record))

	client := &scriptedClient{handler: sequence()}
	summarizer := NewSummarizer(client, st, SummarizerConfig{ChunkCharBudget: 100, Retry: quickRetry})

	_, err := summarizer.Process(context.Background(), "empty_pathway")
	require.Error(t, err)
	assert.Zero(t, client.callCount())
}

func TestChunkPages(t *testing.T) {
	page := func(n, size int) models.PageResult {
		return models.PageResult{Page: models.Page(n), Response: strings.Repeat("x", size)}
	}
	overhead := len(pageBlock(page(1, 0)))

	t.Run("single chunk within budget", func(t *testing.T) {
		chunks := chunkPages([]models.PageResult{page(2, 10), page(3, 10)}, 10*(overhead+10))
		require.Len(t, chunks, 1)
		assert.Len(t, chunks[0], 2)
	})

	t.Run("splits on page boundaries", func(t *testing.T) {
		budget := 2*(overhead+10) + 1
		chunks := chunkPages([]models.PageResult{page(2, 10), page(3, 10), page(4, 10), page(5, 10)}, budget)
		require.Len(t, chunks, 2)
		assert.Len(t, chunks[0], 2)
		assert.Len(t, chunks[1], 2)
		assert.Equal(t, models.Page(4), chunks[1][0].Page)
	})

	t.Run("oversized page forms its own chunk", func(t *testing.T) {
		chunks := chunkPages([]models.PageResult{page(2, 10), page(3, 500), page(4, 10)}, overhead+50)
		require.Len(t, chunks, 3)
		assert.Len(t, chunks[1], 1)
		assert.Equal(t, models.Page(3), chunks[1][0].Page)
	})

	t.Run("greedy packing is minimal", func(t *testing.T) {
		// Four equal pages, budget fits exactly two blocks: exactly two chunks.
		budget := 2 * (overhead + 20)
		chunks := chunkPages([]models.PageResult{page(2, 20), page(3, 20), page(4, 20), page(5, 20)}, budget)
		assert.Len(t, chunks, 2)
	})
}

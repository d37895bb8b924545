package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Lllllllleong/pathwayflow/internal/llm"
	"github.com/Lllllllleong/pathwayflow/internal/models"
	"github.com/Lllllllleong/pathwayflow/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipelineHandler routes scripted responses by pipeline role so one handler
// serves a whole batch run: page analysis, synthesis, complete summary, and
// JSON-mode condensation. failDocs lists documents whose page calls always
// fail with the given error.
func pipelineHandler(failDocs map[string]error) func(llm.Request, int) (*llm.Result, error) {
	return func(req llm.Request, _ int) (*llm.Result, error) {
		switch {
		case req.Attachment != nil:
			content := string(req.Attachment.Data)
			for doc, failErr := range failDocs {
				if strings.Contains(content, doc) {
					return nil, failErr
				}
			}
			return &llm.Result{Text: "analysis of " + content}, nil
		case req.JSONOutput:
			return &llm.Result{Text: matchingJSON("x")}, nil
		case strings.Contains(req.Prompt, "comprehensive summary of the clinical pathway"):
			return &llm.Result{Text: "complete summary"}, nil
		default:
			return &llm.Result{Text: "synthesis"}, nil
		}
	}
}

func newDriverFixture(t *testing.T, root string, client llm.Client) (*Driver, *store.FileStore) {
	t.Helper()
	st, err := store.NewFileStore(root)
	require.NoError(t, err)

	extractor := NewExtractor(client, st, ExtractorConfig{Retry: quickRetry})
	summarizer := NewSummarizer(client, st, SummarizerConfig{ChunkCharBudget: 100000, Retry: quickRetry})
	condenser := NewCondenser(client, st, CondenserConfig{Retry: quickRetry})
	return NewDriver(st, extractor, summarizer, condenser, nil, 1), st
}

func TestDriverIsolatesFailingDocument(t *testing.T) {
	root := t.TempDir()
	imgDir := t.TempDir()
	docs := []models.Document{
		writeDocument(t, imgDir, "a_pathway", 2, 3),
		writeDocument(t, imgDir, "b_pathway", 2, 3),
		writeDocument(t, imgDir, "c_pathway", 2, 3),
	}

	client := &scriptedClient{handler: pipelineHandler(map[string]error{"b_pathway": llm.ErrTransient})}
	driver, _ := newDriverFixture(t, root, client)

	report, err := driver.Run(context.Background(), docs)
	require.NoError(t, err, "per-document failures must not abort the run")

	require.NotNil(t, report.Extraction)
	assert.Equal(t, []string{"a_pathway", "c_pathway"}, report.Extraction.Succeeded)
	require.Len(t, report.Extraction.Failed, 1)
	assert.Equal(t, "b_pathway", report.Extraction.Failed[0].Name)
	assert.Equal(t, "transient_network_error", report.Extraction.Failed[0].Kind)

	// The failed document is skipped, not failed, in downstream stages.
	assert.Equal(t, []string{"a_pathway", "c_pathway"}, report.CompleteSummary.Succeeded)
	assert.Equal(t, []string{"b_pathway"}, report.CompleteSummary.Skipped)
	assert.Equal(t, []string{"a_pathway", "c_pathway"}, report.MatchingSummary.Succeeded)
	assert.Equal(t, []string{"b_pathway"}, report.MatchingSummary.Skipped)

	// The consolidated corpus carries exactly the completed documents.
	data, err := os.ReadFile(filepath.Join(root, "matching_summaries", store.ConsolidatedFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "PATHWAY: a_pathway")
	assert.Contains(t, string(data), "PATHWAY: c_pathway")
	assert.NotContains(t, string(data), "b_pathway")
}

func TestDriverSecondRunIsIdempotent(t *testing.T) {
	root := t.TempDir()
	imgDir := t.TempDir()
	docs := []models.Document{
		writeDocument(t, imgDir, "a_pathway", 2, 3),
		writeDocument(t, imgDir, "c_pathway", 2, 3),
	}

	client := &scriptedClient{handler: pipelineHandler(nil)}
	driver, _ := newDriverFixture(t, root, client)

	_, err := driver.Run(context.Background(), docs)
	require.NoError(t, err)
	callsAfterFirstRun := client.callCount()
	require.Greater(t, callsAfterFirstRun, 0)

	report, err := driver.Run(context.Background(), docs)
	require.NoError(t, err)

	// Every document skips every stage; no model call is repeated.
	assert.Equal(t, callsAfterFirstRun, client.callCount())
	assert.Equal(t, []string{"a_pathway", "c_pathway"}, report.Extraction.Skipped)
	assert.Equal(t, []string{"a_pathway", "c_pathway"}, report.CompleteSummary.Skipped)
	assert.Equal(t, []string{"a_pathway", "c_pathway"}, report.MatchingSummary.Skipped)
	assert.Empty(t, report.Extraction.Succeeded)
}

func TestDriverResumesFailedDocument(t *testing.T) {
	root := t.TempDir()
	imgDir := t.TempDir()
	docs := []models.Document{
		writeDocument(t, imgDir, "a_pathway", 2, 3),
		writeDocument(t, imgDir, "b_pathway", 2, 3),
	}

	failing := &scriptedClient{handler: pipelineHandler(map[string]error{"b_pathway": llm.ErrTransient})}
	driver, _ := newDriverFixture(t, root, failing)
	_, err := driver.Run(context.Background(), docs)
	require.NoError(t, err)

	// Next run with a healthy model: a_pathway skips everywhere, b_pathway
	// is picked up from scratch.
	healthy := &scriptedClient{handler: pipelineHandler(nil)}
	driver2, _ := newDriverFixture(t, root, healthy)
	report, err := driver2.Run(context.Background(), docs)
	require.NoError(t, err)

	assert.Equal(t, []string{"b_pathway"}, report.Extraction.Succeeded)
	assert.Equal(t, []string{"a_pathway"}, report.Extraction.Skipped)
	assert.Equal(t, []string{"b_pathway"}, report.MatchingSummary.Succeeded)

	for _, call := range healthy.calls {
		if call.Attachment != nil {
			assert.Contains(t, string(call.Attachment.Data), "b_pathway")
		}
	}
}

func TestDriverAbortsOnAuthFailure(t *testing.T) {
	imgDir := t.TempDir()
	docs := []models.Document{
		writeDocument(t, imgDir, "a_pathway", 2, 3),
		writeDocument(t, imgDir, "b_pathway", 2, 3),
	}

	client := &scriptedClient{handler: func(llm.Request, int) (*llm.Result, error) {
		return nil, llm.ErrAuth
	}}
	driver, _ := newDriverFixture(t, t.TempDir(), client)

	report, err := driver.Run(context.Background(), docs)
	require.ErrorIs(t, err, llm.ErrAuth)

	// The run stops at the first stage; later stages never start.
	require.NotNil(t, report.Extraction)
	assert.Nil(t, report.CompleteSummary)
	assert.Nil(t, report.MatchingSummary)
}

func TestDriverRecordsOverflowedDocuments(t *testing.T) {
	root := t.TempDir()
	imgDir := t.TempDir()
	docs := []models.Document{writeDocument(t, imgDir, "a_pathway", 2, 3)}

	base := pipelineHandler(nil)
	var rejectedFull bool
	client := &scriptedClient{handler: func(req llm.Request, call int) (*llm.Result, error) {
		if strings.Contains(req.Prompt, "comprehensive summary of the clinical pathway") {
			if !rejectedFull {
				rejectedFull = true
				return nil, llm.ErrInputTooLarge
			}
		}
		if strings.Contains(req.Prompt, "partial summaries of the clinical pathway") {
			return &llm.Result{Text: "merged"}, nil
		}
		if rejectedFull && strings.Contains(req.Prompt, "page analyses from the clinical pathway") {
			return &llm.Result{Text: "chunk"}, nil
		}
		return base(req, call)
	}}
	driver, st := newDriverFixture(t, root, client)

	report, err := driver.Run(context.Background(), docs)
	require.NoError(t, err)

	assert.Equal(t, []string{"a_pathway"}, report.CompleteSummary.Succeeded)
	assert.Equal(t, []string{"a_pathway"}, report.CompleteSummary.Overflowed)

	var summary models.CompleteSummary
	require.NoError(t, st.Load(context.Background(), store.StageCompleteSummary, "a_pathway", &summary))
	assert.True(t, summary.Chunked)
}

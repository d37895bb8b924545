package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/Lllllllleong/pathwayflow/internal/llm"
	"github.com/Lllllllleong/pathwayflow/internal/models"
	"github.com/Lllllllleong/pathwayflow/internal/store"
	"golang.org/x/sync/errgroup"
)

// StageFailure names one document that failed a stage and the error bucket
// it failed with.
type StageFailure struct {
	Name string
	Kind string
}

// StageOutcome is the per-stage result of one batch run.
type StageOutcome struct {
	Succeeded  []string
	Skipped    []string
	Failed     []StageFailure
	Overflowed []string
}

// RunReport summarizes a batch run, one outcome per stage.
type RunReport struct {
	Extraction      *StageOutcome
	CompleteSummary *StageOutcome
	MatchingSummary *StageOutcome
}

// Driver orchestrates the three stages over a batch of documents: stable
// iteration order, Has-based skipping, and per-document failure isolation.
// A batch run finishes when the batch is exhausted; only an authentication
// failure aborts the run early.
type Driver struct {
	store      store.Store
	extractor  *Extractor
	summarizer *Summarizer
	condenser  *Condenser
	tracker    StatusTracker

	// workers bounds parallelism across documents within one stage. Pages
	// within a document always run sequentially.
	workers int
}

func NewDriver(st store.Store, extractor *Extractor, summarizer *Summarizer, condenser *Condenser, tracker StatusTracker, workers int) *Driver {
	if tracker == nil {
		tracker = NopTracker{}
	}
	if workers < 1 {
		workers = 1
	}
	return &Driver{
		store:      st,
		extractor:  extractor,
		summarizer: summarizer,
		condenser:  condenser,
		tracker:    tracker,
		workers:    workers,
	}
}

// Run processes every document of the batch through all three stages and
// returns the per-stage report. The returned error is non-nil only for
// run-fatal conditions (authentication failure, cancelled context); partial
// success across the batch is the expected outcome otherwise.
func (d *Driver) Run(ctx context.Context, docs []models.Document) (*RunReport, error) {
	batch := make([]models.Document, len(docs))
	copy(batch, docs)
	sort.Slice(batch, func(i, j int) bool { return batch[i].Name < batch[j].Name })

	report := &RunReport{}
	slog.Info("Starting pipeline batch.", "documents", len(batch), "workers", d.workers)

	stages := []struct {
		stage   store.Stage
		prev    store.Stage
		outcome **StageOutcome
		run     func(context.Context, models.Document) (bool, error)
	}{
		{
			stage:   store.StageExtraction,
			outcome: &report.Extraction,
			run: func(ctx context.Context, doc models.Document) (bool, error) {
				_, err := d.extractor.Process(ctx, doc)
				return false, err
			},
		},
		{
			stage:   store.StageCompleteSummary,
			prev:    store.StageExtraction,
			outcome: &report.CompleteSummary,
			run: func(ctx context.Context, doc models.Document) (bool, error) {
				summary, err := d.summarizer.Process(ctx, doc.Name)
				return summary != nil && summary.Chunked, err
			},
		},
		{
			stage:   store.StageMatchingSummary,
			prev:    store.StageCompleteSummary,
			outcome: &report.MatchingSummary,
			run: func(ctx context.Context, doc models.Document) (bool, error) {
				_, err := d.condenser.Process(ctx, doc.Name)
				return false, err
			},
		},
	}

	for _, st := range stages {
		outcome, err := d.runStage(ctx, st.stage, st.prev, batch, st.run)
		*st.outcome = outcome
		if err != nil {
			slog.Error("Run aborted.", "stage", st.stage, "error", err)
			d.logReport(report)
			return report, err
		}
	}

	d.logReport(report)
	return report, nil
}

// runStage processes the batch through one stage. A non-nil error means the
// whole run must stop; per-document failures are recorded in the outcome
// instead.
func (d *Driver) runStage(ctx context.Context, stage, prev store.Stage, batch []models.Document, run func(context.Context, models.Document) (bool, error)) (*StageOutcome, error) {
	logCtx := slog.With("stage", stage)
	logCtx.Info("Starting stage.", "documents", len(batch))

	outcome := &StageOutcome{}
	var mu sync.Mutex

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(d.workers)

	for _, doc := range batch {
		eg.Go(func() error {
			disposition, err := d.processDocument(gctx, stage, prev, doc, run)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				outcome.Succeeded = append(outcome.Succeeded, doc.Name)
				if disposition == dispositionOverflowed {
					outcome.Overflowed = append(outcome.Overflowed, doc.Name)
				}
			case errors.Is(err, errSkipped):
				outcome.Skipped = append(outcome.Skipped, doc.Name)
			case errors.Is(err, llm.ErrAuth) || errors.Is(err, context.Canceled):
				// Fatal: stop dispatching; errgroup cancels the rest.
				return err
			default:
				outcome.Failed = append(outcome.Failed, StageFailure{Name: doc.Name, Kind: failureKind(err)})
			}
			return nil
		})
	}

	err := eg.Wait()
	outcome.sort()
	logCtx.Info("Stage complete.",
		"succeeded", len(outcome.Succeeded),
		"skipped", len(outcome.Skipped),
		"failed", len(outcome.Failed),
		"overflowed", len(outcome.Overflowed),
	)
	return outcome, err
}

type disposition int

const (
	dispositionDone disposition = iota
	dispositionOverflowed
)

// errSkipped signals that a document needed no work in this stage: its
// record already exists, or its upstream record is missing because an
// earlier stage failed.
var errSkipped = errors.New("document skipped")

func (d *Driver) processDocument(ctx context.Context, stage, prev store.Stage, doc models.Document, run func(context.Context, models.Document) (bool, error)) (disposition, error) {
	logCtx := slog.With("stage", stage, "document", doc.Name)

	done, err := d.store.Has(ctx, stage, doc.Name)
	if err != nil {
		logCtx.Error("Failed to check stage record", "error", err)
		return dispositionDone, err
	}
	if done {
		logCtx.Info("Record already exists. Skipping.")
		return dispositionDone, errSkipped
	}
	if prev != "" {
		ready, err := d.store.Has(ctx, prev, doc.Name)
		if err != nil {
			logCtx.Error("Failed to check upstream record", "error", err)
			return dispositionDone, err
		}
		if !ready {
			logCtx.Warn("Upstream record missing, skipping.", "upstreamStage", prev)
			return dispositionDone, errSkipped
		}
	}

	d.trackStatus(ctx, doc, stage, "PROCESSING", "")

	overflowed, err := run(ctx, doc)
	if err != nil {
		logCtx.Error("Document failed.", "kind", failureKind(err), "error", err)
		d.trackStatus(ctx, doc, stage, "FAILED", err.Error())
		return dispositionDone, err
	}

	d.trackStatus(ctx, doc, stage, "DONE", "")
	if overflowed {
		return dispositionOverflowed, nil
	}
	return dispositionDone, nil
}

func (d *Driver) trackStatus(ctx context.Context, doc models.Document, stage store.Stage, status, errDetails string) {
	err := d.tracker.Update(ctx, models.PathwayStatus{
		PathwayName:  doc.Name,
		Stage:        string(stage),
		Status:       status,
		ErrorDetails: errDetails,
		PageCount:    len(doc.Pages),
	})
	if err != nil {
		slog.Warn("Failed to update status tracker.", "document", doc.Name, "error", err)
	}
}

func (d *Driver) logReport(report *RunReport) {
	for _, entry := range []struct {
		stage   store.Stage
		outcome *StageOutcome
	}{
		{store.StageExtraction, report.Extraction},
		{store.StageCompleteSummary, report.CompleteSummary},
		{store.StageMatchingSummary, report.MatchingSummary},
	} {
		if entry.outcome == nil {
			continue
		}
		failures := make([]string, 0, len(entry.outcome.Failed))
		for _, f := range entry.outcome.Failed {
			failures = append(failures, fmt.Sprintf("%s (%s)", f.Name, f.Kind))
		}
		slog.Info("Stage report.",
			"stage", entry.stage,
			"succeeded", entry.outcome.Succeeded,
			"skipped", entry.outcome.Skipped,
			"failed", failures,
			"overflowed", entry.outcome.Overflowed,
		)
	}
}

func (o *StageOutcome) sort() {
	sort.Strings(o.Succeeded)
	sort.Strings(o.Skipped)
	sort.Strings(o.Overflowed)
	sort.Slice(o.Failed, func(i, j int) bool { return o.Failed[i].Name < o.Failed[j].Name })
}

// failureKind buckets an error for the run report: the model taxonomy first,
// then store IO, then a generic bucket.
func failureKind(err error) string {
	if kind := llm.Kind(err); kind != "error" {
		return kind
	}
	if errors.Is(err, store.ErrIO) {
		return "io_failure"
	}
	return "error"
}

// Package store persists per-document pipeline artifacts as structured
// records, one file per (document, stage). Has is the resumability contract:
// the driver skips any pair for which a committed record already exists.
package store

import (
	"context"
	"errors"
)

// ErrIO marks persistence failures (disk full, permission denied, transport
// errors, corrupt records). The driver reports these as io_failure.
var ErrIO = errors.New("store: io failure")

// Stage identifies one resumable pipeline phase.
type Stage string

const (
	StageExtraction      Stage = "extraction"
	StageCompleteSummary Stage = "complete_summary"
	StageMatchingSummary Stage = "matching_summary"
)

// Dir returns the artifact directory (or object prefix) for the stage.
func (s Stage) Dir() string {
	switch s {
	case StageExtraction:
		return "extracted_pathways"
	case StageCompleteSummary:
		return "complete_summaries"
	case StageMatchingSummary:
		return "matching_summaries"
	}
	return string(s)
}

// suffix returns the record filename suffix for the stage.
func (s Stage) suffix() string {
	switch s {
	case StageExtraction:
		return "_extracted.json"
	case StageCompleteSummary:
		return "_complete_summary.json"
	case StageMatchingSummary:
		return "_matching.json"
	}
	return ".json"
}

// Derived plain-text artifacts. Neither is resumable state: the consolidated
// corpus is rebuilt in full after every matching summary, and the overflow
// log is an append-only operator aid.
const (
	ConsolidatedFile = "all_pathway_summaries.txt"
	OverflowLogFile  = "overflow.log"
)

// Store is the durable boundary between pipeline stages. Save must be
// atomic: a reader never observes a partially written record. Reprocessing
// a stage supersedes the old record by overwrite, never by in-place edit.
type Store interface {
	// Has reports whether a committed record exists for (stage, name).
	Has(ctx context.Context, stage Stage, name string) (bool, error)
	// Save atomically writes record as the (stage, name) artifact.
	Save(ctx context.Context, stage Stage, name string, record any) error
	// Load reads the committed (stage, name) record into out.
	Load(ctx context.Context, stage Stage, name string, out any) error
	// List returns the names of all documents with a committed record for
	// the stage, in ascending name order.
	List(ctx context.Context, stage Stage) ([]string, error)
	// WriteText atomically (re)writes a derived plain-text artifact in the
	// stage's directory.
	WriteText(ctx context.Context, stage Stage, filename, content string) error
	// AppendLog appends one line to a plain-text log in the stage's
	// directory.
	AppendLog(ctx context.Context, stage Stage, filename, line string) error
}

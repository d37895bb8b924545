package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// SummaryPage is the sentinel page identifier used for the per-document
// synthesis entry appended after all page-level results.
const SummaryPage = "summary"

// PageID identifies one entry in an extraction record: either a positive
// page number, or the "summary" sentinel. It marshals as a JSON number for
// regular pages and as the string "summary" for the synthesis entry.
type PageID struct {
	Number  int
	Summary bool
}

// Page returns a PageID for a numbered page.
func Page(n int) PageID { return PageID{Number: n} }

// SummaryPageID returns the sentinel PageID for the synthesis entry.
func SummaryPageID() PageID { return PageID{Summary: true} }

func (p PageID) String() string {
	if p.Summary {
		return SummaryPage
	}
	return fmt.Sprintf("%d", p.Number)
}

func (p PageID) MarshalJSON() ([]byte, error) {
	if p.Summary {
		return json.Marshal(SummaryPage)
	}
	return json.Marshal(p.Number)
}

func (p *PageID) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*p = PageID{Number: n}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("page id must be a number or %q: %w", SummaryPage, err)
	}
	if s != SummaryPage {
		return fmt.Errorf("unrecognized page id %q", s)
	}
	*p = PageID{Summary: true}
	return nil
}

// Less orders page results: numbered pages ascending, the summary entry last.
func (p PageID) Less(other PageID) bool {
	if p.Summary != other.Summary {
		return !p.Summary
	}
	return p.Number < other.Number
}

// PageImage is one source page image of a document.
type PageImage struct {
	Number int
	Path   string
}

// Document is one clinical-pathway source: a named, ordered set of page
// images with the title page already excluded.
type Document struct {
	Name  string
	Pages []PageImage
}

// PageResult is the structured extraction for one page of one document,
// or the per-document synthesis entry when Page is the summary sentinel.
// Immutable once written.
type PageResult struct {
	Page      PageID `json:"page"`
	ImageFile string `json:"image_file,omitempty"`
	Response  string `json:"response"`
	Thinking  string `json:"thinking,omitempty"`
}

// ExtractionRecord aggregates all page results for one document. The page
// results are ordered by page number and the synthesis entry, when present,
// is always last.
type ExtractionRecord struct {
	PathwayName string       `json:"pathway_name"`
	ProcessedAt time.Time    `json:"processed_at"`
	Responses   []PageResult `json:"responses"`
}

// PageResponses returns the page-level results, excluding the synthesis entry.
func (r *ExtractionRecord) PageResponses() []PageResult {
	pages := make([]PageResult, 0, len(r.Responses))
	for _, resp := range r.Responses {
		if !resp.Page.Summary {
			pages = append(pages, resp)
		}
	}
	return pages
}

// CompleteSummary is the full-content narrative synthesis of one document's
// extraction record. Chunked is set when the source content exceeded the
// model's input budget and the degraded chunk-and-merge strategy produced
// the narrative.
type CompleteSummary struct {
	PathwayName  string    `json:"pathway_name"`
	OriginalFile string    `json:"original_file,omitempty"`
	ProcessedAt  time.Time `json:"processed_at"`
	Summary      string    `json:"complete_summary"`
	Thinking     string    `json:"thinking,omitempty"`
	Chunked      bool      `json:"chunked"`
}

// MatchingFields are the four semantic facets a matching summary is
// structured into.
type MatchingFields struct {
	Diagnostics string `json:"diagnostics"`
	Staging     string `json:"staging"`
	Treatments  string `json:"treatments"`
	Exclusions  string `json:"exclusions"`
}

// MatchingSummary is the bounded-length condensation of a complete summary,
// optimized for downstream patient-to-pathway matching. PlainText is the
// rendering included verbatim in the consolidated corpus file.
type MatchingSummary struct {
	PathwayName  string         `json:"pathway_name"`
	OriginalFile string         `json:"original_file,omitempty"`
	ProcessedAt  time.Time      `json:"processed_at"`
	Fields       MatchingFields `json:"matching_summary"`
	PlainText    string         `json:"plain_text"`
	WordCount    int            `json:"word_count"`
}

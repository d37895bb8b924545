package llm

import "context"

// Attachment is an inline binary part sent alongside a prompt, typically a
// page image.
type Attachment struct {
	MIMEType string
	Data     []byte
}

// Request is one generation call. System and Prompt are plain text; the
// remaining fields tune the backend per call site.
type Request struct {
	System     string
	Prompt     string
	Attachment *Attachment

	// ModelID selects a backend variant; empty means the client's default.
	ModelID string
	// MaxOutputTokens caps the generated length when > 0.
	MaxOutputTokens int32
	// Temperature overrides the backend default when non-nil.
	Temperature *float32
	// JSONOutput forces the model to emit a single JSON value.
	JSONOutput bool
	// ExtendedReasoning requests a visible reasoning trace from backends
	// that support one.
	ExtendedReasoning bool
}

// Result is the generated text plus any auxiliary reasoning trace the
// backend surfaced. Thinking is empty for backends without a separate trace
// channel.
type Result struct {
	Text     string
	Thinking string
}

// Client is the text-in/text-out boundary to the external reasoning model.
// Implementations must map their failures onto the package sentinels; retry
// policy belongs to the caller.
type Client interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

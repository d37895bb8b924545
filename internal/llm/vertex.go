package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// VertexClient is the production Client backed by Vertex AI generative
// models. Each Generate call configures a model instance from the request,
// so one client serves every pipeline role.
//
// The Vertex SDK exposes no separate reasoning-trace channel, so results
// from this backend always carry an empty Thinking.
type VertexClient struct {
	base           *genai.Client
	defaultModelID string
	callTimeout    time.Duration
}

// NewVertexClient creates a Vertex-backed model client. callTimeout bounds
// every individual generation call; a stalled call surfaces as a transient
// failure instead of hanging the batch.
func NewVertexClient(ctx context.Context, projectID, region, modelID string, callTimeout time.Duration) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}
	if modelID == "" {
		return nil, fmt.Errorf("NewVertexClient: modelID cannot be empty")
	}
	if callTimeout <= 0 {
		callTimeout = 10 * time.Minute
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	return &VertexClient{
		base:           baseClient,
		defaultModelID: modelID,
		callTimeout:    callTimeout,
	}, nil
}

func (c *VertexClient) Generate(ctx context.Context, req Request) (*Result, error) {
	modelID := c.defaultModelID
	if req.ModelID != "" {
		modelID = req.ModelID
	}
	model := c.base.GenerativeModel(modelID)

	if req.System != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}

	var cfg genai.GenerationConfig
	if req.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = genai.Ptr(req.MaxOutputTokens)
	}
	if req.Temperature != nil {
		cfg.Temperature = genai.Ptr(*req.Temperature)
	}
	if req.JSONOutput {
		cfg.ResponseMIMEType = "application/json"
	}
	model.GenerationConfig = cfg

	// Clinical content trips the default safety filters, so they are fully
	// relaxed for every role.
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}

	var parts []genai.Part
	if req.Attachment != nil {
		parts = append(parts, genai.Blob{
			MIMEType: req.Attachment.MIMEType,
			Data:     req.Attachment.Data,
		})
	}
	parts = append(parts, genai.Text(req.Prompt))

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	resp, err := model.GenerateContent(callCtx, parts...)
	if err != nil {
		return nil, classify(err)
	}

	return &Result{Text: extractText(resp)}, nil
}

func (c *VertexClient) Close() error {
	if c.base != nil {
		return c.base.Close()
	}
	return nil
}

// extractText concatenates the text parts of the first candidate and strips
// any markdown fences the model wrapped around its output.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ""
	}

	var content strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			content.WriteString(string(txt))
		}
	}

	contentStr := strings.TrimSpace(content.String())
	contentStr = strings.TrimPrefix(contentStr, "```markdown")
	contentStr = strings.TrimPrefix(contentStr, "```json")
	contentStr = strings.TrimPrefix(contentStr, "```")
	contentStr = strings.TrimSuffix(contentStr, "```")
	return strings.TrimSpace(contentStr)
}

// classify maps a transport error onto the package taxonomy, wrapping the
// original error so call sites keep the full diagnostic.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == 401 || gerr.Code == 403:
			return fmt.Errorf("%w: %v", ErrAuth, err)
		case gerr.Code == 429:
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		case gerr.Code == 413, gerr.Code == 400 && looksTooLarge(gerr.Message):
			return fmt.Errorf("%w: %v", ErrInputTooLarge, err)
		case gerr.Code >= 500:
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
		return err
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unauthenticated, codes.PermissionDenied:
			return fmt.Errorf("%w: %v", ErrAuth, err)
		case codes.ResourceExhausted:
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		case codes.InvalidArgument:
			if looksTooLarge(st.Message()) {
				return fmt.Errorf("%w: %v", ErrInputTooLarge, err)
			}
		case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.Internal:
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
	}
	return err
}

func looksTooLarge(msg string) bool {
	lower := strings.ToLower(msg)
	for _, phrase := range []string{
		"too many tokens",
		"token count",
		"exceeds the maximum",
		"request payload size",
		"input is too long",
	} {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

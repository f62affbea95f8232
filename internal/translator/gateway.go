package translator

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrRateLimited marks a call rejected with HTTP 429. RateLimited
	// retries these.
	ErrRateLimited = errors.New("rate limited")
	// ErrFatal marks failures no retry can fix, such as a missing or
	// rejected API key. Callers abort the whole run on it.
	ErrFatal = errors.New("fatal gateway error")
)

// DefaultPrompt is used when the caller supplies no prompt template.
const DefaultPrompt = "Translate the following subtitle to {language}. Maintain the original tone, style, and nuances. Keep it concise to fit the subtitle timing."

// Request is one translation call.
type Request struct {
	Texts          []string
	TargetLanguage string
	// Prompt is the instruction with {language} already substituted.
	Prompt string
	// Context is the rendered preamble of preceding translations, may be
	// empty.
	Context string
	Model   string
}

// Result pairs with the input text at the same position. Exactly one of
// Text or Error is meaningful.
type Result struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

func (r Result) Failed() bool {
	return r.Error != ""
}

// Gateway translates a batch of texts. It returns exactly one result per
// input in input order, or an error when the whole call failed.
type Gateway interface {
	Translate(ctx context.Context, req Request) ([]Result, error)
}

// GatewayFunc adapts a function to Gateway.
type GatewayFunc func(ctx context.Context, req Request) ([]Result, error)

func (f GatewayFunc) Translate(ctx context.Context, req Request) ([]Result, error) {
	return f(ctx, req)
}

// ErrorResults builds n error markers with the same message.
func ErrorResults(n int, msg string) []Result {
	out := make([]Result, n)
	for i := range out {
		out[i] = Result{Error: msg}
	}
	return out
}

// RenderPrompt substitutes {language} in template, falling back to the
// default prompt for an empty template.
func RenderPrompt(template, targetLanguage string) string {
	if strings.TrimSpace(template) == "" {
		template = DefaultPrompt
	}
	return strings.ReplaceAll(template, "{language}", targetLanguage)
}

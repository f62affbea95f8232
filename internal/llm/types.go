package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Completer sends one system + user prompt pair and returns the raw text
// of the first candidate. model overrides the configured model when set.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

type CompletionRequest struct {
	System string
	User   string
	Model  string
	// JSON asks the provider for a JSON body when it supports it.
	JSON bool
}

// New builds the Completer for cfg.Provider.
func New(cfg Config) (Completer, error) {
	cfg = cfg.WithDefaults()
	switch cfg.Provider {
	case ProviderGemini:
		return NewGeminiClient(&cfg)
	case ProviderOpenAI:
		return NewClient(&cfg)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents a chat completion request in OpenAI format
type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

type ResponseFormat struct {
	Type string `json:"type"`
}

// ChatResponse represents a chat completion response in OpenAI format
type ChatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
	Error   *Error   `json:"error,omitempty"`
}

// Choice represents a completion choice
//
// FinishReason values: "stop", "length", "content_filter", "tool_calls"
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Error is the error object embedded in provider responses.
type Error struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    any    `json:"code,omitempty"`
	Status  string `json:"status,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("LLM API Error: %s (type: %s, code: %v)", e.Message, e.Type, e.Code)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
	Cause      error
}

func (e *StatusError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("API request failed with status %d: %v", e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return e.Cause
}

// StatusCode extracts the HTTP status of a failed request, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

func IsRateLimited(err error) bool {
	return StatusCode(err) == http.StatusTooManyRequests
}

func IsAuthError(err error) bool {
	code := StatusCode(err)
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

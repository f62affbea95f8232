package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Client talks to an OpenAI-compatible /chat/completions endpoint.
// Safe for concurrent use.
type Client struct {
	config     *Config
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new client with the given configuration
//
// Example:
//
//	client, err := llm.NewClient(&llm.Config{APIKey: key, APIURL: llm.DefaultOpenAIURL, ...})
//	if err != nil {
//		log.Fatal(err)
//	}
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Client{
		config:  config,
		baseURL: config.APIURL,
		httpClient: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
	}, nil
}

// ChatCompletion creates a chat completion request
//
// Example:
//
//	messages := []llm.Message{
//		{Role: "user", Content: "Hello, how are you?"},
//	}
//	response, err := client.ChatCompletion(ctx, messages, nil)
func (c *Client) ChatCompletion(ctx context.Context, messages []Message, opts *ChatCompletionOptions) (*ChatResponse, error) {
	if opts == nil {
		opts = NewChatCompletionOptions()
	}

	if opts.SystemPrompt != "" {
		messages = append([]Message{{Role: "system", Content: opts.SystemPrompt}}, messages...)
	}

	request := ChatRequest{
		Model:       c.getModel(opts),
		Messages:    messages,
		MaxTokens:   c.getMaxTokens(opts),
		Temperature: c.getTemperature(opts),
	}
	if opts.JSON {
		request.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}

	response, err := c.makeRequest(ctx, http.MethodPost, "/chat/completions", request)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	return response, nil
}

// Complete implements Completer.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	opts := NewChatCompletionOptions().
		WithSystemPrompt(req.System).
		WithModel(req.Model).
		WithJSON(req.JSON)

	response, err := c.ChatCompletion(ctx, []Message{{Role: "user", Content: req.User}}, opts)
	if err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return response.Choices[0].Message.Content, nil
}

// SimpleChat sends a single prompt with an optional system prompt.
func (c *Client) SimpleChat(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	return c.Complete(ctx, CompletionRequest{System: systemPrompt, User: prompt})
}

func (c *Client) makeRequest(ctx context.Context, method, path string, payload interface{}) (*ChatResponse, error) {
	url := c.baseURL + path

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.config.GetHeaders() {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if os.IsTimeout(err) {
			return nil, fmt.Errorf("request timed out: %w", err)
		}
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var chatResponse ChatResponse
	parseErr := json.Unmarshal(responseBody, &chatResponse)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{StatusCode: resp.StatusCode, Body: string(responseBody)}
		if parseErr == nil && chatResponse.Error != nil && chatResponse.Error.Message != "" {
			se.Cause = chatResponse.Error
		}
		return &chatResponse, se
	}
	if parseErr != nil {
		return nil, fmt.Errorf("failed to parse response: %w", parseErr)
	}
	if chatResponse.Error != nil && chatResponse.Error.Message != "" {
		return &chatResponse, chatResponse.Error
	}

	return &chatResponse, nil
}

func (c *Client) getModel(opts *ChatCompletionOptions) string {
	if opts.Model != "" {
		return opts.Model
	}
	return c.config.Model
}

func (c *Client) getMaxTokens(opts *ChatCompletionOptions) int {
	if opts.MaxTokens > 0 {
		return opts.MaxTokens
	}
	return c.config.MaxTokens
}

func (c *Client) getTemperature(opts *ChatCompletionOptions) float64 {
	if opts.Temperature >= 0 && opts.Temperature <= 2 {
		return opts.Temperature
	}
	return c.config.Temperature
}

// ChatCompletionOptions tunes a single request. Zero values fall back to
// the client config; Temperature below 0 means "use config".
type ChatCompletionOptions struct {
	SystemPrompt string
	Model        string
	MaxTokens    int
	Temperature  float64
	JSON         bool
}

func NewChatCompletionOptions() *ChatCompletionOptions {
	return &ChatCompletionOptions{Temperature: -1}
}

func (o *ChatCompletionOptions) WithSystemPrompt(prompt string) *ChatCompletionOptions {
	o.SystemPrompt = prompt
	return o
}

func (o *ChatCompletionOptions) WithModel(model string) *ChatCompletionOptions {
	o.Model = model
	return o
}

func (o *ChatCompletionOptions) WithMaxTokens(maxTokens int) *ChatCompletionOptions {
	o.MaxTokens = maxTokens
	return o
}

func (o *ChatCompletionOptions) WithTemperature(temperature float64) *ChatCompletionOptions {
	o.Temperature = temperature
	return o
}

func (o *ChatCompletionOptions) WithJSON(enabled bool) *ChatCompletionOptions {
	o.JSON = enabled
	return o
}

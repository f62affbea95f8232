package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(url string) *Config {
	return &Config{
		Provider:    ProviderOpenAI,
		APIKey:      "test-key",
		APIURL:      url,
		Model:       "test-model",
		MaxTokens:   1000,
		Temperature: 0.2,
		Timeout:     30,
	}
}

const okChatResponse = `{
	"id": "test-id",
	"object": "chat.completion",
	"created": 1234567890,
	"model": "test-model",
	"choices": [{
		"index": 0,
		"message": {"role": "assistant", "content": "Hello! This is a test response."},
		"finish_reason": "stop"
	}],
	"usage": {"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30}
}`

func TestNewClient(t *testing.T) {
	config := testConfig("https://api.example.com")

	client, err := NewClient(config)
	require.NoError(t, err)
	assert.Equal(t, config, client.config)
	assert.Equal(t, config.APIURL, client.baseURL)
	assert.NotNil(t, client.httpClient)

	_, err = NewClient(&Config{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestClientWithMockServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(okChatResponse))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	response, err := client.ChatCompletion(context.Background(), []Message{{Role: "user", Content: "Hello"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "test-id", response.ID)
	require.Len(t, response.Choices, 1)
	assert.Equal(t, "Hello! This is a test response.", response.Choices[0].Message.Content)
	assert.Equal(t, 30, response.Usage.TotalTokens)
}

func TestCompleteSendsSystemModelAndJSON(t *testing.T) {
	var got ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(okChatResponse))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	out, err := client.Complete(context.Background(), CompletionRequest{
		System: "be brief",
		User:   "hi",
		Model:  "override-model",
		JSON:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello! This is a test response.", out)

	assert.Equal(t, "override-model", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "be brief", got.Messages[0].Content)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	assert.Equal(t, 0.2, got.Temperature)
}

func TestClientErrorHandling(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		rateLimit  bool
		authFailed bool
	}{
		{
			name:       "unauthorized",
			status:     http.StatusUnauthorized,
			body:       `{"error": {"message": "Invalid API key", "type": "authentication_error", "code": "401"}}`,
			authFailed: true,
		},
		{
			name:      "rate limited",
			status:    http.StatusTooManyRequests,
			body:      `{"error": {"message": "slow down", "type": "rate_limit"}}`,
			rateLimit: true,
		},
		{
			name:   "bad gateway html",
			status: http.StatusBadGateway,
			body:   `<html>bad gateway</html>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, err := NewClient(testConfig(server.URL))
			require.NoError(t, err)

			_, err = client.SimpleChat(context.Background(), "Hello", "")
			require.Error(t, err)
			assert.Equal(t, tt.status, StatusCode(err))
			assert.Equal(t, tt.rateLimit, IsRateLimited(err))
			assert.Equal(t, tt.authFailed, IsAuthError(err))
		})
	}
}

func TestInvalidJSONResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	_, err = client.SimpleChat(context.Background(), "Hello", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse response")
}

func TestNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": "x", "choices": []}`))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	_, err = client.SimpleChat(context.Background(), "Hello", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestClientConcurrentRequests(t *testing.T) {
	var mu sync.Mutex
	count := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		count++
		mu.Unlock()
		_, _ = w.Write([]byte(okChatResponse))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.SimpleChat(context.Background(), "Hello", "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, count)
}

func TestNewPicksProvider(t *testing.T) {
	c, err := New(Config{Provider: ProviderOpenAI, APIKey: "k", MaxTokens: 10, Timeout: 5})
	require.NoError(t, err)
	oc, ok := c.(*Client)
	require.True(t, ok)
	assert.Equal(t, DefaultOpenAIURL, oc.baseURL)
	assert.Equal(t, DefaultOpenAIModel, oc.config.Model)

	c, err = New(Config{APIKey: "k", MaxTokens: 10, Timeout: 5})
	require.NoError(t, err)
	_, ok = c.(*GeminiClient)
	assert.True(t, ok)

	_, err = New(Config{Provider: "claude", APIKey: "k", MaxTokens: 10, Timeout: 5})
	assert.Error(t, err)
}

func TestParseProvider(t *testing.T) {
	p, err := ParseProvider(" OpenAI ")
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, p)

	p, err = ParseProvider("")
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, p)

	_, err = ParseProvider("nope")
	assert.Error(t, err)
}

func TestConfigHeaders(t *testing.T) {
	c := &Config{APIKey: "k", SiteURL: "https://example.com", AppName: "subtrans"}
	h := c.GetHeaders()
	assert.Equal(t, "Bearer k", h["Authorization"])
	assert.Equal(t, "https://example.com", h["HTTP-Referer"])
	assert.Equal(t, "subtrans", h["X-Title"])
}

// TestOpenRouterIntegrationWithEnv reads the API key from the environment
// or a local .env file.
func TestOpenRouterIntegrationWithEnv(t *testing.T) {
	_ = godotenv.Load("./.env")
	apiKey := os.Getenv("LLM_API_KEY")
	if apiKey == "" || os.Getenv("LLM_INTEGRATION") == "" {
		t.Skip("LLM_API_KEY or LLM_INTEGRATION not set, skipping integration test")
	}

	client, err := NewClient(&Config{
		APIKey:      apiKey,
		APIURL:      DefaultOpenAIURL,
		Model:       DefaultOpenAIModel,
		MaxTokens:   50,
		Temperature: 0.2,
		Timeout:     30,
	})
	require.NoError(t, err)

	response, err := client.SimpleChat(context.Background(), "What is the capital of France?", "Answer briefly and accurately")
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(response), "paris")
}

package llm

import (
	"fmt"
	"strings"
)

// Provider names the wire protocol spoken by a Completer.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

const (
	DefaultOpenAIURL = "https://openrouter.ai/api/v1"
	DefaultGeminiURL = "https://generativelanguage.googleapis.com/v1beta"

	DefaultOpenAIModel = "openai/gpt-4o-mini"
	DefaultGeminiModel = "gemini-2.0-flash"
)

func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderOpenAI, ProviderGemini:
		return p, nil
	case "":
		return ProviderGemini, nil
	default:
		return "", fmt.Errorf("unknown LLM provider %q", s)
	}
}

// Config holds the connection settings for one provider.
//
// For the OpenAI-compatible provider any endpoint speaking
// /chat/completions works (OpenRouter, OpenAI, local gateways).
type Config struct {
	Provider    Provider `json:"provider" toml:"provider"`
	APIKey      string   `json:"-" toml:"api_key"`
	APIURL      string   `json:"api_url" toml:"api_url"`
	Model       string   `json:"model" toml:"model"`
	MaxTokens   int      `json:"max_tokens" toml:"max_tokens"`
	Temperature float64  `json:"temperature" toml:"temperature"`
	Timeout     int      `json:"timeout" toml:"timeout"`
	SiteURL     string   `json:"site_url" toml:"site_url"`
	AppName     string   `json:"app_name" toml:"app_name"`
}

// WithDefaults fills empty provider specific fields.
func (c Config) WithDefaults() Config {
	if c.Provider == "" {
		c.Provider = ProviderGemini
	}
	if c.APIURL == "" {
		if c.Provider == ProviderGemini {
			c.APIURL = DefaultGeminiURL
		} else {
			c.APIURL = DefaultOpenAIURL
		}
	}
	if c.Model == "" {
		if c.Provider == ProviderGemini {
			c.Model = DefaultGeminiModel
		} else {
			c.Model = DefaultOpenAIModel
		}
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	return c
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API key is required")
	}
	if c.APIURL == "" {
		return fmt.Errorf("API URL is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("max tokens must be greater than 0")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.Timeout < 1 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	return nil
}

// GetHeaders returns the headers for an OpenAI-compatible request
func (c *Config) GetHeaders() map[string]string {
	headers := map[string]string{
		"Authorization": "Bearer " + c.APIKey,
		"Content-Type":  "application/json",
	}

	if c.SiteURL != "" {
		headers["HTTP-Referer"] = c.SiteURL
	}
	if c.AppName != "" {
		headers["X-Title"] = c.AppName
	}

	return headers
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"

	"github.com/MimeLyc/batch-sub-translator/internal/batch"
	"github.com/MimeLyc/batch-sub-translator/internal/llm"
	"github.com/MimeLyc/batch-sub-translator/internal/translator"
	"github.com/MimeLyc/batch-sub-translator/pkg/icron"
	"github.com/MimeLyc/batch-sub-translator/pkg/log"
)

// Config holds all application configuration.
//
// Values are layered: built-in defaults, then the TOML file, then a .env
// file in the working directory, then environment variables, then option
// funcs (CLI flags).
//
// Environment Variables:
// - SUBTRANS_CONFIG: config file path (default: ~/.config/subtrans/config.toml)
// - LLM_PROVIDER: gemini or openai (default: gemini)
// - LLM_API_KEY: API key for the provider (required to translate)
// - LLM_API_URL: API endpoint URL (default depends on provider)
// - LLM_MODEL: model name (default depends on provider)
// - LLM_MAX_TOKENS, LLM_TEMPERATURE, LLM_TIMEOUT (seconds)
// - LLM_SITE_URL, LLM_APP_NAME: OpenRouter attribution headers
// - TARGET_LANGUAGE: BCP 47 tag (default: zh-Hans)
// - LOG_LEVEL, LOG_FILE
// - LISTEN_ADDR: HTTP listen address (default: 127.0.0.1:8089)
type Config struct {
	LLM       llm.Config      `toml:"llm"`
	Translate TranslateConfig `toml:"translate"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Server    ServerConfig    `toml:"server"`
	Log       LogConfig       `toml:"log"`
	Progress  ProgressConfig  `toml:"progress"`
}

type TranslateConfig struct {
	TargetLanguage language.Tag `toml:"target_language"`
	// Prompt may contain {language}; empty means the built-in prompt.
	Prompt         string `toml:"prompt"`
	StandardSize   int    `toml:"standard_batch_size"`
	LargeSize      int    `toml:"large_batch_size"`
	LargeThreshold int    `toml:"large_threshold"`
	ContextWindow  int    `toml:"context_window"`
	ChunkLimit     int    `toml:"chunk_limit"`
}

type RateLimitConfig struct {
	MinIntervalMS int     `toml:"min_interval_ms"`
	MaxRetries    int     `toml:"max_retries"`
	BackoffFactor float64 `toml:"backoff_factor"`
}

type ServerConfig struct {
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

type ProgressConfig struct {
	// Interval is a cron descriptor such as "@every 2s".
	Interval string `toml:"interval"`
}

const DefaultConfigPath = "~/.config/subtrans/config.toml"

// Option is a function type for configuring Config
type Option func(*Config)

func WithTargetLanguage(tag language.Tag) Option {
	return func(c *Config) {
		if tag != language.Und {
			c.Translate.TargetLanguage = tag
		}
	}
}

func WithModel(model string) Option {
	return func(c *Config) {
		if strings.TrimSpace(model) != "" {
			c.LLM.Model = model
		}
	}
}

func WithPrompt(prompt string) Option {
	return func(c *Config) {
		if strings.TrimSpace(prompt) != "" {
			c.Translate.Prompt = prompt
		}
	}
}

func WithListenAddr(addr string) Option {
	return func(c *Config) {
		if strings.TrimSpace(addr) != "" {
			c.Server.Addr = addr
		}
	}
}

func WithLogLevel(level string) Option {
	return func(c *Config) {
		if strings.TrimSpace(level) != "" {
			c.Log.Level = level
		}
	}
}

func Default() Config {
	return Config{
		LLM: llm.Config{
			Provider:    llm.ProviderGemini,
			MaxTokens:   8000,
			Temperature: 0.3,
			Timeout:     60,
		},
		Translate: TranslateConfig{
			TargetLanguage: language.SimplifiedChinese,
			StandardSize:   batch.DefaultStandardSize,
			LargeSize:      batch.DefaultLargeSize,
			LargeThreshold: batch.DefaultLargeThreshold,
			ContextWindow:  batch.DefaultContextWindow,
			ChunkLimit:     30,
		},
		RateLimit: RateLimitConfig{
			MinIntervalMS: 2000,
			MaxRetries:    3,
			BackoffFactor: 2,
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:8089",
			AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		},
		Log:      LogConfig{Level: "info"},
		Progress: ProgressConfig{Interval: "@every 2s"},
	}
}

// Load builds the configuration. path may be empty, in which case
// SUBTRANS_CONFIG and then the default location are tried; a missing
// default file is not an error.
func Load(path string, opts ...Option) (*Config, error) {
	cfg := Default()

	resolved, explicit, err := resolveConfigPath(path)
	if err != nil {
		return nil, err
	}
	if err := decodeFile(resolved, explicit, &cfg); err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("ignoring .env: %v", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.LLM = cfg.LLM.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	explicit := true
	if path == "" {
		path = os.Getenv("SUBTRANS_CONFIG")
	}
	if path == "" {
		path = DefaultConfigPath
		explicit = false
	}
	expanded, err := ExpandPath(path)
	return expanded, explicit, err
}

func decodeFile(path string, required bool, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	if err := toml.NewDecoder(file).DisallowUnknownFields().Decode(cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	log.Debug("loaded config file %s", path)
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		p, err := llm.ParseProvider(v)
		if err != nil {
			return err
		}
		c.LLM.Provider = p
	}
	c.LLM.APIKey = getEnvString("LLM_API_KEY", c.LLM.APIKey)
	c.LLM.APIURL = getEnvString("LLM_API_URL", c.LLM.APIURL)
	c.LLM.Model = getEnvString("LLM_MODEL", c.LLM.Model)
	c.LLM.MaxTokens = getEnvInt("LLM_MAX_TOKENS", c.LLM.MaxTokens)
	c.LLM.Temperature = getEnvFloat("LLM_TEMPERATURE", c.LLM.Temperature)
	c.LLM.Timeout = getEnvInt("LLM_TIMEOUT", c.LLM.Timeout)
	c.LLM.SiteURL = getEnvString("LLM_SITE_URL", c.LLM.SiteURL)
	c.LLM.AppName = getEnvString("LLM_APP_NAME", c.LLM.AppName)

	if v := os.Getenv("TARGET_LANGUAGE"); v != "" {
		tag, err := language.Parse(v)
		if err != nil {
			return fmt.Errorf("invalid TARGET_LANGUAGE %q: %w", v, err)
		}
		c.Translate.TargetLanguage = tag
	}

	c.Log.Level = getEnvString("LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnvString("LOG_FILE", c.Log.File)
	c.Server.Addr = getEnvString("LISTEN_ADDR", c.Server.Addr)
	return nil
}

// Validate checks everything except the API key, which only matters once a
// gateway is built (see ValidateLLM).
func (c *Config) Validate() error {
	t := c.Translate
	if t.TargetLanguage == language.Und {
		return fmt.Errorf("target_language is required")
	}
	if t.StandardSize < 1 {
		return fmt.Errorf("standard_batch_size must be greater than 0")
	}
	if t.LargeSize < t.StandardSize {
		return fmt.Errorf("large_batch_size must not be smaller than standard_batch_size")
	}
	if t.LargeThreshold < 0 {
		return fmt.Errorf("large_threshold must not be negative")
	}
	if t.ContextWindow < 0 {
		return fmt.Errorf("context_window must not be negative")
	}
	if t.ChunkLimit < 0 {
		return fmt.Errorf("chunk_limit must not be negative")
	}
	if c.RateLimit.MinIntervalMS < 0 {
		return fmt.Errorf("min_interval_ms must not be negative")
	}
	if c.RateLimit.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	if c.RateLimit.BackoffFactor < 1 {
		return fmt.Errorf("backoff_factor must be at least 1")
	}
	if _, err := icron.Parse(c.Progress.Interval); err != nil {
		return fmt.Errorf("invalid progress interval %q: %w", c.Progress.Interval, err)
	}
	return nil
}

func (c *Config) ValidateLLM() error {
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm config: %w (set LLM_API_KEY or [llm] api_key)", err)
	}
	return nil
}

func (c *Config) Planner() batch.Planner {
	return batch.NewPlanner(c.Translate.StandardSize, c.Translate.LargeSize, c.Translate.LargeThreshold)
}

func (c *Config) RateLimitConfig() translator.RateLimitConfig {
	return translator.RateLimitConfig{
		MinInterval:   time.Duration(c.RateLimit.MinIntervalMS) * time.Millisecond,
		MaxRetries:    c.RateLimit.MaxRetries,
		BackoffFactor: c.RateLimit.BackoffFactor,
	}
}

func (c *Config) LogLevel() log.LogLevel {
	return log.ParseLevel(c.Log.Level)
}

// ExpandPath resolves a leading ~ and makes the path absolute.
func ExpandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	return filepath.Abs(filepath.Clean(pathValue))
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Warn("ignoring %s=%q: not an integer", key, value)
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
		log.Warn("ignoring %s=%q: not a number", key, value)
	}
	return defaultValue
}

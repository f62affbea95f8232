package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/MimeLyc/batch-sub-translator/pkg/file"
)

// Redacted returns a copy with the API key masked, safe to print or serve.
func (c Config) Redacted() Config {
	c.LLM.APIKey = maskKey(c.LLM.APIKey)
	c.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	return c
}

func maskKey(key string) string {
	key = strings.TrimSpace(key)
	switch {
	case key == "":
		return ""
	case len(key) <= 8:
		return "****"
	default:
		return key[:4] + "****" + key[len(key)-4:]
	}
}

// Encode renders c as a TOML document.
func Encode(c Config) ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

// WriteFile stores c at path. An existing file is only replaced when force
// is set.
func WriteFile(path string, c Config, force bool) error {
	expanded, err := ExpandPath(path)
	if err != nil {
		return err
	}
	if !force {
		if _, err := os.Stat(expanded); err == nil {
			return fmt.Errorf("config file %s already exists", expanded)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("stat config: %w", err)
		}
	}

	data, err := Encode(c)
	if err != nil {
		return err
	}
	return file.WriteAtomic(expanded, data, 0o600)
}

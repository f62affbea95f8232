package subtitle

import (
	"fmt"
	"os"

	"github.com/MimeLyc/batch-sub-translator/pkg/file"
)

// ReadFile detects the format from path and decodes the file.
func ReadFile(path string) (*Document, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read subtitle file: %w", err)
	}
	return Parse(format, string(data))
}

// WriteFile writes rendered subtitle content atomically.
func WriteFile(path, content string) error {
	if err := file.WriteAtomic(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write subtitle file: %w", err)
	}
	return nil
}

package file

import (
	"path/filepath"
	"strings"
)

// SplitExt returns path without its extension and the extension with the
// leading dot. Dotfiles like ".env" have no extension.
func SplitExt(path string) (string, string) {
	base := filepath.Base(path)
	lastDot := strings.LastIndex(base, ".")
	if lastDot <= 0 {
		return path, ""
	}
	return path[:len(path)-len(base)+lastDot], base[lastDot:]
}

func ReplaceExt(path, ext string) string {
	if path == "" {
		return path
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	stem, _ := SplitExt(path)
	return stem + ext
}

// WithSuffix inserts "_suffix" between the file stem and its extension.
// An empty ext keeps the original extension.
func WithSuffix(path, suffix, ext string) string {
	if path == "" {
		return path
	}
	stem, oldExt := SplitExt(path)
	if ext == "" {
		ext = oldExt
	} else if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if suffix != "" {
		stem += "_" + suffix
	}
	return stem + ext
}

package translator

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

var (
	leadingNumberRe = regexp.MustCompile(`^\d+[.)\]]?\s*["']?`)
	trailingQuoteRe = regexp.MustCompile(`["']?\s*,?$`)
)

// splitLines is the last resort when a reply carries no JSON.
func splitLines(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = leadingNumberRe.ReplaceAllString(line, "")
		line = trailingQuoteRe.ReplaceAllString(line, "")
		out = append(out, strings.TrimSpace(line))
	}
	return out
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTranslationOutput(t *testing.T) {
	texts := []string{"one", "two"}

	tests := []struct {
		name    string
		content string
		want    []Result
	}{
		{
			name:    "translations object",
			content: `{"translations": ["uno", "dos"]}`,
			want:    []Result{{Text: "uno"}, {Text: "dos"}},
		},
		{
			name:    "object wrapped in prose",
			content: "Sure! Here you go:\n{\"translations\": [\"uno\", \"dos\"]}\nEnjoy.",
			want:    []Result{{Text: "uno"}, {Text: "dos"}},
		},
		{
			name:    "code fence",
			content: "```json\n{\"translations\": [\"uno\", \"dos\"]}\n```",
			want:    []Result{{Text: "uno"}, {Text: "dos"}},
		},
		{
			name:    "first array field",
			content: `{"note": "x", "result": ["uno", "dos"]}`,
			want:    []Result{{Text: "uno"}, {Text: "dos"}},
		},
		{
			name:    "bare array",
			content: `["uno", "dos"]`,
			want:    []Result{{Text: "uno"}, {Text: "dos"}},
		},
		{
			name:    "indexed reordered",
			content: `[{"index":2,"text":"dos"},{"index":1,"text":"uno"}]`,
			want:    []Result{{Text: "uno"}, {Text: "dos"}},
		},
		{
			name:    "short reply marks tail",
			content: `{"translations": ["uno"]}`,
			want:    []Result{{Text: "uno"}, {Error: "missing translation for item 2"}},
		},
		{
			name:    "empty entry",
			content: `{"translations": ["", "dos"]}`,
			want:    []Result{{Error: "empty translation for item 1"}, {Text: "dos"}},
		},
		{
			name:    "numbered lines",
			content: "1. \"uno\"\n2) dos",
			want:    []Result{{Text: "uno"}, {Text: "dos"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTranslationOutput(tt.content, texts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTranslationOutputErrors(t *testing.T) {
	_, err := parseTranslationOutput("   ", []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")

	_, err = parseTranslationOutput(`[{"index":1,"text":"a"},{"index":1,"text":"b"}]`, []string{"a", "b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errDuplicateIndex)
}

func TestParseTranslationOutputKeepsLineBreaks(t *testing.T) {
	got, err := parseTranslationOutput(`{"translations": ["first\nsecond"]}`, []string{"a\nb"})
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond", got[0].Text)
}

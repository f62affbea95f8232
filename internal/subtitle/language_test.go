package subtitle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestDetectLanguage(t *testing.T) {
	cues := []Cue{
		{Text: "Hello, world! How are you doing today?"},
		{Text: "こんにちは、世界！今日はいい天気ですね。"},
		{Text: "こんにちは、元気ですか？私は元気です。"},
		{Text: "Привет, мир! Как у тебя дела сегодня?"},
	}
	assert.Equal(t, language.Japanese, DetectLanguage(cues))
	assert.Equal(t, language.Und, DetectLanguage(nil))
}

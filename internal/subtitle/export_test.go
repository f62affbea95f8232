package subtitle

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func exportFixture(t *testing.T) (*Document, []Item) {
	t.Helper()
	doc, err := Parse(FormatSRT, sampleSRT)
	require.NoError(t, err)
	items := NewItems(doc.Cues)
	items[0].TranslatedText = "Bonjour"
	items[0].Status = StatusTranslated
	return doc, items
}

func TestExportModes(t *testing.T) {
	doc, items := exportFixture(t)

	translated, err := Export(doc, items, ExportTranslated)
	require.NoError(t, err)
	assert.Equal(t, "1\n00:00:01,000 --> 00:00:02,500\nBonjour\n\n2\n00:00:03,000 --> 00:00:04,000\nTwo\nlines\n", translated)

	bilingual, err := Export(doc, items, ExportBilingual)
	require.NoError(t, err)
	assert.Contains(t, bilingual, "Hello\nBonjour\n")

	original, err := Export(doc, items, ExportOriginal)
	require.NoError(t, err)
	assert.Equal(t, sampleSRT, original)

	assert.Equal(t, "Hello", doc.Cues[0].Text, "export must not mutate the source document")
}

func TestExportCountMismatch(t *testing.T) {
	doc, items := exportFixture(t)
	_, err := Export(doc, items[:1], ExportTranslated)
	require.Error(t, err)
}

func TestParseExportMode(t *testing.T) {
	m, err := ParseExportMode("")
	require.NoError(t, err)
	assert.Equal(t, ExportTranslated, m)

	m, err = ParseExportMode(" Bilingual ")
	require.NoError(t, err)
	assert.Equal(t, ExportBilingual, m)

	_, err = ParseExportMode("side-by-side")
	require.Error(t, err)
}

func TestExportName(t *testing.T) {
	assert.Equal(t, filepath.Join("media", "movie_zh-hans.srt"),
		ExportName(filepath.Join("media", "movie.srt"), language.SimplifiedChinese))
	assert.Equal(t, "show_ja.ass", ExportName("show.ass", language.Japanese))
}

func TestReadWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.srt")
	require.NoError(t, WriteFile(path, sampleSRT))

	doc, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, doc.Cues, 2)

	_, err = ReadFile(filepath.Join(dir, "missing.srt"))
	require.Error(t, err)
}

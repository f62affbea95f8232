package subtitle

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/MimeLyc/batch-sub-translator/pkg/file"
)

// ExportMode selects which text goes into an exported cue.
type ExportMode string

const (
	ExportTranslated ExportMode = "translated"
	ExportBilingual  ExportMode = "bilingual"
	ExportOriginal   ExportMode = "original"
)

func ParseExportMode(s string) (ExportMode, error) {
	switch m := ExportMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ExportTranslated, nil
	case ExportTranslated, ExportBilingual, ExportOriginal:
		return m, nil
	default:
		return "", fmt.Errorf("unknown export mode %q", s)
	}
}

// Overlay returns a copy of doc whose cue text is taken from items. Items
// are matched to cues by position; untranslated items fall back to the
// original text.
func Overlay(doc *Document, items []Item, mode ExportMode) (*Document, error) {
	if len(items) != len(doc.Cues) {
		return nil, fmt.Errorf("item count %d does not match cue count %d", len(items), len(doc.Cues))
	}

	out := doc.Clone()
	for i := range out.Cues {
		it := items[i]
		cue := &out.Cues[i]
		cue.ID = it.ID

		switch mode {
		case ExportOriginal:
			cue.Text = it.Text
		case ExportBilingual:
			if it.TranslatedText != "" {
				cue.Text = it.Text + "\n" + it.TranslatedText
			} else {
				cue.Text = it.Text
			}
		default:
			if it.TranslatedText != "" {
				cue.Text = it.TranslatedText
			} else {
				cue.Text = it.Text
			}
		}
	}
	return out, nil
}

// Export renders items in the document's own format.
func Export(doc *Document, items []Item, mode ExportMode) (string, error) {
	out, err := Overlay(doc, items, mode)
	if err != nil {
		return "", err
	}
	return Stringify(out)
}

// ExportName is "<stem>_<lang>.<ext>", e.g. movie_zh-hans.srt.
func ExportName(path string, lang language.Tag) string {
	return file.WithSuffix(path, strings.ToLower(lang.String()), "")
}

package batch

import (
	"strings"

	"github.com/MimeLyc/batch-sub-translator/internal/subtitle"
)

const DefaultContextWindow = 3

// Pair is one already translated item offered to the model for continuity.
type Pair struct {
	Original   string `json:"original"`
	Translated string `json:"translated"`
}

// Context is ordered oldest first.
type Context []Pair

// BuildContext looks at the window positions right before the item with
// firstID and keeps those already translated. Skipped positions are not
// replaced by older ones.
func BuildContext(all []subtitle.Item, firstID, window int) Context {
	pos := positionOf(all, firstID)
	if pos <= 0 || window <= 0 {
		return nil
	}

	var ctx Context
	for i := max(0, pos-window); i < pos; i++ {
		it := all[i]
		if it.Status != subtitle.StatusTranslated || it.TranslatedText == "" {
			continue
		}
		ctx = append(ctx, Pair{Original: it.Text, Translated: it.TranslatedText})
	}
	return ctx
}

// Render formats the context as the preamble sent with a request. lead is
// the closing instruction, such as "Now translate the following subtitles:".
func (c Context) Render(lead string) string {
	if len(c) == 0 {
		return ""
	}
	parts := make([]string, len(c))
	for i, p := range c {
		parts[i] = "Original: " + p.Original + "\nTranslation: " + p.Translated
	}
	return "Context from previous subtitles:\n" + strings.Join(parts, "\n\n") + "\n\n" + lead
}

const (
	BatchLead = "Now translate the following subtitles:"
	ItemLead  = "Now translate the following subtitle:"
)

// positionOf returns the slice position of id. Items are numbered by
// position, so the fast path is id-1.
func positionOf(all []subtitle.Item, id int) int {
	if i := id - 1; i >= 0 && i < len(all) && all[i].ID == id {
		return i
	}
	for i, it := range all {
		if it.ID == id {
			return i
		}
	}
	return -1
}

package subtitle

import (
	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// DetectLanguage votes per cue and returns the most common language, or
// language.Und when nothing is reliable.
func DetectLanguage(cues []Cue) language.Tag {
	if len(cues) == 0 {
		return language.Und
	}

	votes := make(map[string]int)
	for _, c := range cues {
		info := whatlanggo.Detect(c.Text)
		code := info.Lang.Iso6391()
		if code == "" {
			continue
		}
		votes[code]++
	}

	var top string
	var topCount int
	for code, count := range votes {
		// ties resolve by code so the result is stable across map order
		if count > topCount || (count == topCount && code < top) {
			top = code
			topCount = count
		}
	}
	if top == "" {
		return language.Und
	}
	return language.All.Make(top)
}

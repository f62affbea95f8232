package subtitle

import (
	"regexp"
	"strconv"
	"strings"
)

var srtTimeRe = regexp.MustCompile(`(\d{2}:\d{2}:\d{2},\d{3})\s*-->\s*(\d{2}:\d{2}:\d{2},\d{3})`)

type srtCodec struct{}

func (srtCodec) Format() Format { return FormatSRT }

// Decode reads SRT blocks. Blocks with a non-numeric id, a malformed
// timing line or no text are skipped.
func (srtCodec) Decode(content string) (*Document, error) {
	var cues []Cue

	current := Cue{}
	state := "index" // index, time, text, skip
	var textLines []string

	flush := func() {
		if state == "text" && len(textLines) > 0 {
			current.Text = strings.Join(textLines, "\n")
			cues = append(cues, current)
		}
		current = Cue{}
		textLines = nil
		state = "index"
	}

	for _, raw := range splitLines(content) {
		line := strings.TrimSpace(raw)

		if line == "" {
			if state != "index" {
				flush()
			}
			continue
		}

		switch state {
		case "index":
			id, err := strconv.Atoi(line)
			if err != nil {
				state = "skip"
				continue
			}
			current.ID = id
			state = "time"

		case "time":
			m := srtTimeRe.FindStringSubmatch(line)
			if m == nil {
				state = "skip"
				continue
			}
			current.StartTime = m[1]
			current.EndTime = m[2]
			state = "text"

		case "text":
			textLines = append(textLines, strings.TrimRight(raw, " \t"))
		}
	}
	flush()

	return &Document{Format: FormatSRT, Cues: cues}, nil
}

func (srtCodec) Encode(doc *Document) string {
	var b strings.Builder
	for i, c := range doc.Cues {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strconv.Itoa(c.ID))
		b.WriteByte('\n')
		b.WriteString(c.StartTime)
		b.WriteString(" --> ")
		b.WriteString(c.EndTime)
		b.WriteByte('\n')
		b.WriteString(c.Text)
	}
	if len(doc.Cues) > 0 {
		b.WriteByte('\n')
	}
	return b.String()
}

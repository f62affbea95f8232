package subtitle

import (
	"regexp"
	"strconv"
	"strings"
)

var vttTimeRe = regexp.MustCompile(`((?:\d{2,}:)?\d{2}:\d{2}\.\d{3})\s*-->\s*((?:\d{2,}:)?\d{2}:\d{2}\.\d{3})`)

type vttCodec struct{}

func (vttCodec) Format() Format { return FormatVTT }

// Decode reads WebVTT cues. Timestamps are normalised to the SRT form
// HH:MM:SS,mmm; cue settings after the timing are dropped. Cues without an
// identifier are numbered sequentially.
func (vttCodec) Decode(content string) (*Document, error) {
	var cues []Cue

	lines := splitLines(content)
	i := 0
	// header block: "WEBVTT" line plus anything up to the first blank line
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[0]), "WEBVTT") {
		for i < len(lines) && strings.TrimSpace(lines[i]) != "" {
			i++
		}
	}

	nextID := 1
	var block []string
	flush := func() {
		defer func() { block = nil }()
		if len(block) == 0 {
			return
		}
		if strings.HasPrefix(block[0], "NOTE") || block[0] == "STYLE" || block[0] == "REGION" {
			return
		}

		cue := Cue{}
		rest := block
		if m := vttTimeRe.FindStringSubmatch(rest[0]); m == nil {
			if len(rest) < 2 {
				return
			}
			if id, err := strconv.Atoi(strings.TrimSpace(rest[0])); err == nil {
				cue.ID = id
			}
			rest = rest[1:]
		}
		m := vttTimeRe.FindStringSubmatch(rest[0])
		if m == nil || len(rest) < 2 {
			return
		}
		if cue.ID == 0 {
			cue.ID = nextID
		}
		nextID = cue.ID + 1
		cue.StartTime = vttToSRTTime(m[1])
		cue.EndTime = vttToSRTTime(m[2])
		cue.Text = strings.Join(rest[1:], "\n")
		cues = append(cues, cue)
	}

	for ; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], " \t")
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		block = append(block, line)
	}
	flush()

	return &Document{Format: FormatVTT, Cues: cues}, nil
}

func (vttCodec) Encode(doc *Document) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n")
	for _, c := range doc.Cues {
		b.WriteString("\n")
		b.WriteString(strconv.Itoa(c.ID))
		b.WriteByte('\n')
		b.WriteString(srtToVTTTime(c.StartTime))
		b.WriteString(" --> ")
		b.WriteString(srtToVTTTime(c.EndTime))
		b.WriteByte('\n')
		b.WriteString(c.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

func vttToSRTTime(ts string) string {
	ts = strings.Replace(ts, ".", ",", 1)
	if strings.Count(ts, ":") == 1 {
		ts = "00:" + ts
	}
	return ts
}

func srtToVTTTime(ts string) string {
	return strings.Replace(ts, ",", ".", 1)
}

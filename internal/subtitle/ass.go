package subtitle

import (
	"fmt"
	"strings"
)

var defaultASSColumns = []string{
	"layer", "start", "end", "style", "name",
	"marginl", "marginr", "marginv", "effect", "text",
}

const defaultASSHeader = `[Script Info]
ScriptType: v4.00+
WrapStyle: 0
ScaledBorderAndShadow: yes

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Default,Arial,20,&H00FFFFFF,&H000000FF,&H00000000,&H00000000,0,0,0,0,100,100,0,0,1,2,2,2,10,10,10,1

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text`

type assCodec struct{}

func (assCodec) Format() Format { return FormatASS }

// Decode reads the Dialogue lines of the [Events] section. The preamble is
// kept verbatim for Encode; Comment lines are dropped.
func (assCodec) Decode(content string) (*Document, error) {
	doc := &Document{Format: FormatASS}

	var header []string
	inEvents := false
	headerDone := false
	nextID := 1

	for _, raw := range splitLines(content) {
		line := strings.TrimSpace(raw)

		if !headerDone {
			header = append(header, strings.TrimRight(raw, " \t"))
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			inEvents = strings.EqualFold(line, "[Events]")
			continue
		}
		if !inEvents {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "format":
			if headerDone {
				continue
			}
			for _, col := range strings.Split(value, ",") {
				doc.columns = append(doc.columns, strings.ToLower(strings.TrimSpace(col)))
			}
			headerDone = true
		case "dialogue":
			if !headerDone {
				// Dialogue before Format; fall back to the v4+ default layout
				header = header[:len(header)-1]
				doc.columns = append([]string(nil), defaultASSColumns...)
				headerDone = true
			}
			cue, err := decodeASSDialogue(strings.TrimLeft(value, " "), doc.columns)
			if err != nil {
				continue
			}
			cue.ID = nextID
			nextID++
			doc.Cues = append(doc.Cues, cue)
		}
	}

	if headerDone {
		doc.header = strings.Join(header, "\n")
	}
	if err := validateASSColumns(doc.columns); len(doc.columns) > 0 && err != nil {
		return nil, err
	}
	return doc, nil
}

func (assCodec) Encode(doc *Document) string {
	header := doc.header
	columns := doc.columns
	if header == "" || len(columns) == 0 {
		header = defaultASSHeader
		columns = defaultASSColumns
	}
	start, end, text := assColumnIndexes(columns)

	var b strings.Builder
	b.WriteString(header)
	b.WriteByte('\n')
	for _, c := range doc.Cues {
		fields := c.fields
		if len(fields) != len(columns) {
			fields = defaultASSFields(columns)
		} else {
			fields = append([]string(nil), fields...)
		}
		fields[start] = c.StartTime
		fields[end] = c.EndTime
		fields[text] = strings.ReplaceAll(c.Text, "\n", `\N`)
		b.WriteString("Dialogue: ")
		b.WriteString(strings.Join(fields, ","))
		b.WriteByte('\n')
	}
	return b.String()
}

func decodeASSDialogue(value string, columns []string) (Cue, error) {
	if err := validateASSColumns(columns); err != nil {
		return Cue{}, err
	}
	parts := strings.SplitN(value, ",", len(columns))
	if len(parts) != len(columns) {
		return Cue{}, fmt.Errorf("dialogue has %d fields, want %d", len(parts), len(columns))
	}
	start, end, text := assColumnIndexes(columns)
	return Cue{
		StartTime: strings.TrimSpace(parts[start]),
		EndTime:   strings.TrimSpace(parts[end]),
		Text:      strings.ReplaceAll(parts[text], `\N`, "\n"),
		fields:    parts,
	}, nil
}

func assColumnIndexes(columns []string) (start, end, text int) {
	start, end, text = -1, -1, -1
	for i, c := range columns {
		switch c {
		case "start":
			start = i
		case "end":
			end = i
		case "text":
			text = i
		}
	}
	return start, end, text
}

func validateASSColumns(columns []string) error {
	start, end, text := assColumnIndexes(columns)
	if start < 0 || end < 0 || text < 0 {
		return fmt.Errorf("ass events format lacks start, end or text: %v", columns)
	}
	if text != len(columns)-1 {
		return fmt.Errorf("ass events format must end with text: %v", columns)
	}
	return nil
}

func defaultASSFields(columns []string) []string {
	fields := make([]string, len(columns))
	for i, c := range columns {
		switch c {
		case "layer", "marginl", "marginr", "marginv":
			fields[i] = "0"
		case "style":
			fields[i] = "Default"
		}
	}
	return fields
}

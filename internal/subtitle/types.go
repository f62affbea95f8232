package subtitle

import "fmt"

// Status is the lifecycle state of one subtitle item.
type Status string

const (
	StatusPending     Status = "pending"
	StatusTranslating Status = "translating"
	StatusTranslated  Status = "translated"
	StatusError       Status = "error"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusTranslating, StatusTranslated, StatusError:
		return true
	}
	return false
}

// Cue is one timed entry as read from a subtitle file. Timestamps are kept
// exactly as the codec produced them and are never parsed by callers.
type Cue struct {
	ID        int    `json:"id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Text      string `json:"text"`

	// fields holds codec specific columns (ASS layer, style, margins...)
	// so that re-encoding keeps them.
	fields []string
}

// Item is a cue plus its translation state. ID is the 1-based position in
// the loaded document and never changes afterwards.
type Item struct {
	ID             int    `json:"id"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	Text           string `json:"text"`
	TranslatedText string `json:"translated_text"`
	Status         Status `json:"status"`
	Error          string `json:"error,omitempty"`
}

func (i Item) String() string {
	return fmt.Sprintf("#%d[%s]", i.ID, i.Status)
}

// Done reports whether the item reached a terminal state for the current
// attempt.
func (i Item) Done() bool {
	return i.Status == StatusTranslated || i.Status == StatusError
}

// NewItems builds the pending item list for a document, numbering items by
// position.
func NewItems(cues []Cue) []Item {
	items := make([]Item, len(cues))
	for i, c := range cues {
		items[i] = Item{
			ID:        i + 1,
			StartTime: c.StartTime,
			EndTime:   c.EndTime,
			Text:      c.Text,
			Status:    StatusPending,
		}
	}
	return items
}

// CloneItems returns a copy that does not share the backing array.
func CloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	copy(out, items)
	return out
}

// Format is a supported subtitle file format.
type Format string

const (
	FormatSRT Format = "srt"
	FormatVTT Format = "vtt"
	FormatASS Format = "ass"
)

func (f Format) Ext() string {
	return "." + string(f)
}

// Document is a decoded subtitle file.
type Document struct {
	Format Format `json:"format"`
	Cues   []Cue  `json:"cues"`

	// header is the verbatim ASS preamble up to and including the
	// [Events] Format line.
	header string
	// columns are the lower-cased ASS event column names.
	columns []string
}

func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.Cues = make([]Cue, len(d.Cues))
	for i, c := range d.Cues {
		c.fields = append([]string(nil), c.fields...)
		out.Cues[i] = c
	}
	out.columns = append([]string(nil), d.columns...)
	return &out
}

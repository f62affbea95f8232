package subtitle

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var ErrUnsupportedFormat = errors.New("unsupported subtitle format")

// Codec converts between file content and cues. Encode(Decode(x)) keeps
// every cue id, timestamp and text of a well-formed x.
type Codec interface {
	Format() Format
	Decode(content string) (*Document, error)
	Encode(doc *Document) string
}

var codecs = map[Format]Codec{
	FormatSRT: srtCodec{},
	FormatVTT: vttCodec{},
	FormatASS: assCodec{},
}

func CodecFor(format Format) (Codec, error) {
	c, ok := codecs[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return c, nil
}

// DetectFormat picks the format from the file extension.
func DetectFormat(filename string) (Format, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	format := Format(ext)
	if _, ok := codecs[format]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}
	return format, nil
}

func SupportedExtensions() []string {
	return []string{FormatSRT.Ext(), FormatVTT.Ext(), FormatASS.Ext()}
}

// Parse decodes content of the given format.
func Parse(format Format, content string) (*Document, error) {
	c, err := CodecFor(format)
	if err != nil {
		return nil, err
	}
	return c.Decode(content)
}

// Stringify encodes doc with its own format.
func Stringify(doc *Document) (string, error) {
	c, err := CodecFor(doc.Format)
	if err != nil {
		return "", err
	}
	return c.Encode(doc), nil
}

func splitLines(content string) []string {
	content = strings.TrimPrefix(content, "\ufeff")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return strings.Split(content, "\n")
}

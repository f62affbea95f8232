package translator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MimeLyc/batch-sub-translator/internal/llm"
	"github.com/MimeLyc/batch-sub-translator/pkg/log"
)

// llmGateway asks a chat model for a JSON list of translations.
type llmGateway struct {
	completer llm.Completer
}

// NewLLMGateway wraps a Completer as a Gateway.
func NewLLMGateway(completer llm.Completer) Gateway {
	return &llmGateway{completer: completer}
}

func (g *llmGateway) Translate(ctx context.Context, req Request) ([]Result, error) {
	if len(req.Texts) == 0 {
		return nil, nil
	}

	user, err := buildUserMessage(req)
	if err != nil {
		return nil, err
	}

	content, err := g.completer.Complete(ctx, llm.CompletionRequest{
		System: RenderPrompt(req.Prompt, req.TargetLanguage),
		User:   user,
		Model:  req.Model,
		JSON:   true,
	})
	if err != nil {
		return nil, classify(err)
	}

	results, err := parseTranslationOutput(content, req.Texts)
	if err != nil {
		return nil, err
	}
	return results, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case llm.IsRateLimited(err):
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	case llm.IsAuthError(err):
		return fmt.Errorf("%w: %v", ErrFatal, err)
	default:
		return err
	}
}

func buildUserMessage(req Request) (string, error) {
	payload, err := json.Marshal(req.Texts)
	if err != nil {
		return "", fmt.Errorf("marshal texts: %w", err)
	}

	var b strings.Builder
	if req.Context != "" {
		b.WriteString(req.Context)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "I need you to translate the following subtitles to %s.\n", req.TargetLanguage)
	b.WriteString("Please maintain the original meaning, tone, style, and nuances.\n")
	fmt.Fprintf(&b, "Respond in JSON with exactly %d translated strings in the same order, keeping embedded line breaks.\n\n", len(req.Texts))
	b.WriteString("For example:\n")
	b.WriteString(`Input: ["Hello, how are you?", "I'm fine, thank you."]` + "\n")
	b.WriteString(`Output: { "translations": ["Xin chào, bạn khỏe không?", "Tôi khỏe, cảm ơn bạn."] }` + "\n\n")
	b.WriteString("Here are the texts to translate:\n")
	b.Write(payload)
	return b.String(), nil
}

// parseTranslationOutput maps a model reply onto one result per text.
// Accepted shapes, in order: {"translations": [...]}, the first array field
// of an object, a bare array of strings or of {"index", "text"} objects,
// and finally one translation per non-empty line. Positions the reply does
// not cover become error markers.
func parseTranslationOutput(content string, texts []string) ([]Result, error) {
	content = stripCodeFence(strings.TrimSpace(content))
	if content == "" {
		return nil, fmt.Errorf("empty translation response")
	}

	translations, err := decodeJSONTranslations(content)
	if err != nil {
		if errors.Is(err, errDuplicateIndex) {
			return nil, err
		}
		log.Debug("translation response is not json (%v), falling back to lines", err)
		translations = splitLines(content)
	}

	if len(translations) != len(texts) {
		log.Warn("expected %d translations, got %d", len(texts), len(translations))
	}

	results := make([]Result, len(texts))
	for i, src := range texts {
		switch {
		case i >= len(translations):
			results[i] = Result{Error: fmt.Sprintf("missing translation for item %d", i+1)}
		case strings.TrimSpace(translations[i]) == "" && strings.TrimSpace(src) != "":
			results[i] = Result{Error: fmt.Sprintf("empty translation for item %d", i+1)}
		default:
			results[i] = Result{Text: strings.TrimSpace(translations[i])}
		}
	}
	return results, nil
}

var errDuplicateIndex = errors.New("duplicate translation index")

func decodeJSONTranslations(content string) ([]string, error) {
	objStart := strings.Index(content, "{")
	arrStart := strings.Index(content, "[")

	if objStart >= 0 && (arrStart < 0 || objStart < arrStart) {
		end := strings.LastIndex(content, "}")
		if end <= objStart {
			return nil, fmt.Errorf("unterminated json object")
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(content[objStart:end+1]), &obj); err != nil {
			return nil, fmt.Errorf("decode json object: %w", err)
		}
		if raw, ok := obj["translations"]; ok {
			return decodeJSONArray(raw)
		}
		for _, key := range sortedKeys(obj) {
			if out, err := decodeJSONArray(obj[key]); err == nil {
				return out, nil
			}
		}
		return nil, fmt.Errorf("json object has no translations array")
	}

	if arrStart >= 0 {
		end := strings.LastIndex(content, "]")
		if end <= arrStart {
			return nil, fmt.Errorf("unterminated json array")
		}
		return decodeJSONArray(json.RawMessage(content[arrStart : end+1]))
	}
	return nil, fmt.Errorf("no json found")
}

func decodeJSONArray(raw json.RawMessage) ([]string, error) {
	var plain []string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain, nil
	}

	var indexed []struct {
		Index int    `json:"index"`
		Text  string `json:"text"`
	}
	if err := json.Unmarshal(raw, &indexed); err != nil {
		return nil, fmt.Errorf("decode json array: %w", err)
	}
	if len(indexed) == 0 {
		return []string{}, nil
	}

	maxIndex := 0
	seen := make(map[int]bool, len(indexed))
	for _, it := range indexed {
		if it.Index < 1 {
			return nil, fmt.Errorf("invalid translation index %d", it.Index)
		}
		if seen[it.Index] {
			return nil, fmt.Errorf("%w: %d", errDuplicateIndex, it.Index)
		}
		seen[it.Index] = true
		maxIndex = max(maxIndex, it.Index)
	}
	out := make([]string, maxIndex)
	for _, it := range indexed {
		out[it.Index-1] = it.Text
	}
	return out, nil
}

package extract

import (
	"fmt"

	"github.com/Tributary-ai-services/maskproxy/pkg/span"
)

// Completions extracts and reassembles the legacy text-completions request
// shape: prompt, as either a plain string or an array of strings.
type Completions struct{}

// Shapes reports whether request looks like a legacy completions request:
// it must carry a prompt field and must not also look like a chat request
// (ChatCompletions is tried first by the registry, so this only needs to
// reject requests without "prompt").
func (Completions) Shapes(request map[string]any) bool {
	_, ok := request["prompt"]
	return ok
}

// Extract returns one TextSpan for a string prompt, or one per element of
// an array-form prompt, in order.
func (Completions) Extract(request map[string]any) ([]span.TextSpan, error) {
	prompt, ok := request["prompt"]
	if !ok {
		return nil, fmt.Errorf("%w: missing prompt field", ErrUnknownShape)
	}

	switch p := prompt.(type) {
	case string:
		return []span.TextSpan{{Address: span.Address{"prompt"}, Text: p}}, nil
	case []any:
		var spans []span.TextSpan
		for i, raw := range p {
			text, ok := raw.(string)
			if !ok {
				continue
			}
			spans = append(spans, span.TextSpan{
				Address: span.Address{"prompt", i},
				Text:    text,
			})
		}
		return spans, nil
	default:
		return nil, fmt.Errorf("%w: prompt is neither string nor array", ErrUnknownShape)
	}
}

// Apply reinserts maskedSpans into a copy of request by address.
func (Completions) Apply(request map[string]any, maskedSpans []span.TextSpan) (map[string]any, error) {
	return applySpans(request, maskedSpans)
}

// UnmaskResponse applies unmask to every choices[].text field of a legacy
// completions response.
func (Completions) UnmaskResponse(response map[string]any, unmask func(string) string) (map[string]any, error) {
	copied, err := deepCopyRequest(response)
	if err != nil {
		return nil, err
	}

	choices, ok := copied["choices"].([]any)
	if !ok {
		return copied, nil
	}
	for _, raw := range choices {
		choice, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if text, ok := choice["text"].(string); ok {
			choice["text"] = unmask(text)
		}
	}
	return copied, nil
}

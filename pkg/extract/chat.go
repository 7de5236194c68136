package extract

import (
	"fmt"

	"github.com/Tributary-ai-services/maskproxy/pkg/span"
)

// ChatCompletions extracts and reassembles the chat-completions request
// shape: messages[i].content, as either a plain string or an array of
// typed parts where only {"type": "text", "text": ...} parts carry
// extractable text. Other part types (e.g. "image_url") pass through
// untouched.
type ChatCompletions struct{}

// Shapes reports whether request looks like a chat-completions request.
func (ChatCompletions) Shapes(request map[string]any) bool {
	_, ok := request["messages"].([]any)
	return ok
}

// Extract returns one TextSpan per string-content message and one per
// "text" part of an array-content message, in message-then-part order.
func (ChatCompletions) Extract(request map[string]any) ([]span.TextSpan, error) {
	messages, ok := request["messages"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: missing messages array", ErrUnknownShape)
	}

	var spans []span.TextSpan
	for i, raw := range messages {
		message, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		content, ok := message["content"]
		if !ok {
			continue
		}

		switch c := content.(type) {
		case string:
			spans = append(spans, span.TextSpan{
				Address: span.Address{"messages", i, "content"},
				Text:    c,
			})
		case []any:
			for j, rawPart := range c {
				part, ok := rawPart.(map[string]any)
				if !ok {
					continue
				}
				if part["type"] != "text" {
					continue
				}
				text, ok := part["text"].(string)
				if !ok {
					continue
				}
				spans = append(spans, span.TextSpan{
					Address: span.Address{"messages", i, "content", j, "text"},
					Text:    text,
				})
			}
		}
	}
	return spans, nil
}

// Apply reinserts maskedSpans into a copy of request by address.
func (ChatCompletions) Apply(request map[string]any, maskedSpans []span.TextSpan) (map[string]any, error) {
	return applySpans(request, maskedSpans)
}

// UnmaskResponse applies unmask to every assistant message's text content
// in a chat-completions response, covering both the non-streaming
// choices[].message.content shape and the streaming
// choices[].delta.content shape.
func (ChatCompletions) UnmaskResponse(response map[string]any, unmask func(string) string) (map[string]any, error) {
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
		for _, field := range []string{"message", "delta"} {
			holder, ok := choice[field].(map[string]any)
			if !ok {
				continue
			}
			if text, ok := holder["content"].(string); ok {
				holder["content"] = unmask(text)
			}
		}
	}
	return copied, nil
}

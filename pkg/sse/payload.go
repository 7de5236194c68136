package sse

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Tributary-ai-services/maskproxy/pkg/span"
)

const doneSentinel = "[DONE]"

// parsedFrame is a frame's lines (excluding the terminating blank line) and
// the indices within lines that carry a "data:" payload.
type parsedFrame struct {
	lines   []string
	dataIdx []int
	done    bool
}

func parseFrame(frame []byte) parsedFrame {
	trimmed := strings.TrimSuffix(string(frame), "\n\n")
	if trimmed == "" {
		return parsedFrame{}
	}
	lines := strings.Split(trimmed, "\n")

	p := parsedFrame{lines: lines}
	for i, line := range lines {
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
		if payload == doneSentinel {
			p.done = true
			continue
		}
		p.dataIdx = append(p.dataIdx, i)
	}
	return p
}

func (p parsedFrame) payload(i int) string {
	line := p.lines[i]
	return strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
}

func (p parsedFrame) withPayload(i int, payload string) {
	p.lines[i] = "data: " + payload
}

func (p parsedFrame) bytes() []byte {
	if len(p.lines) == 0 {
		return []byte("\n\n")
	}
	return []byte(strings.Join(p.lines, "\n") + "\n\n")
}

// walkTextFields returns every streaming text-bearing field in a decoded
// chat/completions chunk payload: choices[].delta.content (chat stream),
// choices[].message.content (rare, a non-delta chunk), and choices[].text
// (legacy completions stream).
func walkTextFields(payload map[string]any) []span.TextSpan {
	choices, ok := payload["choices"].([]any)
	if !ok {
		return nil
	}

	var spans []span.TextSpan
	for i, c := range choices {
		choice, ok := c.(map[string]any)
		if !ok {
			continue
		}
		if text, ok := choice["text"].(string); ok {
			spans = append(spans, span.TextSpan{Address: span.Address{"choices", i, "text"}, Text: text})
		}
		if delta, ok := choice["delta"].(map[string]any); ok {
			if content, ok := delta["content"].(string); ok {
				spans = append(spans, span.TextSpan{Address: span.Address{"choices", i, "delta", "content"}, Text: content})
			}
		}
		if message, ok := choice["message"].(map[string]any); ok {
			if content, ok := message["content"].(string); ok {
				spans = append(spans, span.TextSpan{Address: span.Address{"choices", i, "message", "content"}, Text: content})
			}
		}
	}
	return spans
}

// setTextField overwrites the string value at addr within payload. addr is
// always one produced by walkTextFields against the same payload shape.
func setTextField(payload map[string]any, addr span.Address, text string) error {
	var node any = payload
	for i := 0; i < len(addr)-1; i++ {
		switch k := addr[i].(type) {
		case string:
			m, ok := node.(map[string]any)
			if !ok {
				return fmt.Errorf("sse: expected object at %q", k)
			}
			node = m[k]
		case int:
			s, ok := node.([]any)
			if !ok || k < 0 || k >= len(s) {
				return fmt.Errorf("sse: index %d out of range", k)
			}
			node = s[k]
		}
	}
	switch k := addr[len(addr)-1].(type) {
	case string:
		m, ok := node.(map[string]any)
		if !ok {
			return fmt.Errorf("sse: expected object at %q", k)
		}
		m[k] = text
	case int:
		s, ok := node.([]any)
		if !ok || k < 0 || k >= len(s) {
			return fmt.Errorf("sse: index %d out of range", k)
		}
		s[k] = text
	}
	return nil
}

// buildTree constructs a fresh nested map/slice skeleton holding text at
// addr, for reconstructing a synthetic frame out of leftover carry-over
// text that never got to rejoin a live payload before the stream ended.
func buildTree(addr span.Address, text string) any {
	if len(addr) == 0 {
		return text
	}
	switch k := addr[0].(type) {
	case string:
		return map[string]any{k: buildTree(addr[1:], text)}
	case int:
		s := make([]any, k+1)
		s[k] = buildTree(addr[1:], text)
		return s
	default:
		return text
	}
}

func marshalPayload(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("sse: encoding payload: %w", err)
	}
	return string(raw), nil
}

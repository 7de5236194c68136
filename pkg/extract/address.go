package extract

import (
	"encoding/json"
	"fmt"

	"github.com/Tributary-ai-services/maskproxy/pkg/span"
)

// deepCopyRequest returns a structurally independent copy of request, so
// Apply never mutates the value the caller passed in. A JSON round-trip is
// sufficient here: request values only ever contain the JSON primitive
// types (map, slice, string, float64, bool, nil) to begin with, since they
// originated from json.Unmarshal into map[string]any.
func deepCopyRequest(request map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("extract: copying request: %w", err)
	}
	var copied map[string]any
	if err := json.Unmarshal(raw, &copied); err != nil {
		return nil, fmt.Errorf("extract: copying request: %w", err)
	}
	return copied, nil
}

// applySpans deep-copies request and overwrites each maskedSpan's text at
// its address, returning the new request value.
func applySpans(request map[string]any, maskedSpans []span.TextSpan) (map[string]any, error) {
	copied, err := deepCopyRequest(request)
	if err != nil {
		return nil, err
	}
	for _, s := range maskedSpans {
		if err := setAtAddress(copied, s.Address, s.Text); err != nil {
			return nil, fmt.Errorf("extract: applying masked span at %v: %w", s.Address, err)
		}
	}
	return copied, nil
}

// setAtAddress navigates root following addr and overwrites the leaf string
// value with text. addr must resolve to an existing string field — it is
// produced by this package's own Extract, so it always does.
func setAtAddress(root any, addr span.Address, text string) error {
	if len(addr) == 0 {
		return fmt.Errorf("extract: empty address")
	}

	node := root
	for i := 0; i < len(addr)-1; i++ {
		next, err := descend(node, addr[i])
		if err != nil {
			return err
		}
		node = next
	}

	return setLeaf(node, addr[len(addr)-1], text)
}

func descend(node any, key any) (any, error) {
	switch k := key.(type) {
	case string:
		m, ok := node.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("extract: expected object at key %q", k)
		}
		child, ok := m[k]
		if !ok {
			return nil, fmt.Errorf("extract: missing key %q", k)
		}
		return child, nil
	case int:
		s, ok := node.([]any)
		if !ok {
			return nil, fmt.Errorf("extract: expected array at index %d", k)
		}
		if k < 0 || k >= len(s) {
			return nil, fmt.Errorf("extract: index %d out of range", k)
		}
		return s[k], nil
	default:
		return nil, fmt.Errorf("extract: unsupported address component %v (%T)", key, key)
	}
}

func setLeaf(node any, key any, text string) error {
	switch k := key.(type) {
	case string:
		m, ok := node.(map[string]any)
		if !ok {
			return fmt.Errorf("extract: expected object at key %q", k)
		}
		m[k] = text
		return nil
	case int:
		s, ok := node.([]any)
		if !ok {
			return fmt.Errorf("extract: expected array at index %d", k)
		}
		if k < 0 || k >= len(s) {
			return fmt.Errorf("extract: index %d out of range", k)
		}
		s[k] = text
		return nil
	default:
		return fmt.Errorf("extract: unsupported address component %v (%T)", key, key)
	}
}

package extract

import (
	"errors"
	"testing"
)

func TestRegistryDetectChat(t *testing.T) {
	reg := NewRegistry()
	e, err := reg.Detect(map[string]any{"messages": []any{}})
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if _, ok := e.(ChatCompletions); !ok {
		t.Fatalf("Detect returned %T, want ChatCompletions", e)
	}
}

func TestRegistryDetectCompletions(t *testing.T) {
	reg := NewRegistry()
	e, err := reg.Detect(map[string]any{"prompt": "hi"})
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if _, ok := e.(Completions); !ok {
		t.Fatalf("Detect returned %T, want Completions", e)
	}
}

func TestRegistryDetectUnknownShape(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Detect(map[string]any{"foo": "bar"})
	if !errors.Is(err, ErrUnknownShape) {
		t.Fatalf("expected ErrUnknownShape, got %v", err)
	}
}

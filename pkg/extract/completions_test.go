package extract

import (
	"reflect"
	"testing"

	"github.com/Tributary-ai-services/maskproxy/pkg/span"
)

func TestCompletionsExtractStringPrompt(t *testing.T) {
	request := map[string]any{"model": "gpt-3.5", "prompt": "hello Bob"}

	spans, err := Completions{}.Extract(request)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	want := []span.TextSpan{{Address: span.Address{"prompt"}, Text: "hello Bob"}}
	if !reflect.DeepEqual(spans, want) {
		t.Fatalf("Extract() = %+v, want %+v", spans, want)
	}
}

func TestCompletionsExtractArrayPrompt(t *testing.T) {
	request := map[string]any{"prompt": []any{"first", "second"}}

	spans, err := Completions{}.Extract(request)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	want := []span.TextSpan{
		{Address: span.Address{"prompt", 0}, Text: "first"},
		{Address: span.Address{"prompt", 1}, Text: "second"},
	}
	if !reflect.DeepEqual(spans, want) {
		t.Fatalf("Extract() = %+v, want %+v", spans, want)
	}
}

func TestCompletionsApplyArrayPrompt(t *testing.T) {
	request := map[string]any{"prompt": []any{"first", "second"}}
	masked := []span.TextSpan{
		{Address: span.Address{"prompt", 1}, Text: "[[GENERIC_SECRET_1]]"},
	}

	got, err := Completions{}.Apply(request, masked)
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}

	prompt := got["prompt"].([]any)
	if prompt[0] != "first" || prompt[1] != "[[GENERIC_SECRET_1]]" {
		t.Fatalf("prompt = %+v, want [first [[GENERIC_SECRET_1]]]", prompt)
	}
}

func TestCompletionsUnmaskResponse(t *testing.T) {
	response := map[string]any{
		"choices": []any{
			map[string]any{"text": "the answer is [[GENERIC_SECRET_1]]"},
		},
	}

	got, err := Completions{}.UnmaskResponse(response, func(s string) string { return "the answer is hunter2" })
	if err != nil {
		t.Fatalf("UnmaskResponse returned error: %v", err)
	}
	choices := got["choices"].([]any)
	if choices[0].(map[string]any)["text"] != "the answer is hunter2" {
		t.Fatalf("unexpected unmasked text: %+v", choices[0])
	}
}

func TestCompletionsShapes(t *testing.T) {
	if !(Completions{}.Shapes(map[string]any{"prompt": "hi"})) {
		t.Fatal("expected Shapes to match a prompt field")
	}
	if (Completions{}).Shapes(map[string]any{"messages": []any{}}) {
		t.Fatal("expected Shapes to reject a messages-only request")
	}
}

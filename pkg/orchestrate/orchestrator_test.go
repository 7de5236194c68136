package orchestrate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Tributary-ai-services/maskproxy/pkg/audit"
	"github.com/Tributary-ai-services/maskproxy/pkg/detect"
	"github.com/Tributary-ai-services/maskproxy/pkg/extract"
	"github.com/Tributary-ai-services/maskproxy/pkg/secret"
)

type stubAnalyzerResult struct {
	EntityType string  `json:"entity_type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Score      float64 `json:"score"`
}

func newDetectorAgainst(t *testing.T, results []stubAnalyzerResult) *detect.Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(results)
	}))
	t.Cleanup(server.Close)

	cfg := detect.DefaultConfig()
	cfg.BaseURL = server.URL
	return detect.New(cfg)
}

func TestProcessScenarioAMasksPersonAndEmail(t *testing.T) {
	detector := newDetectorAgainst(t, []stubAnalyzerResult{
		{EntityType: "PERSON", Start: 6, End: 20, Score: 0.85},
		{EntityType: "EMAIL_ADDRESS", Start: 24, End: 42, Score: 0.95},
	})

	o := New(extract.NewRegistry(), secret.New(), WithDetector(detector))

	request := map[string]any{
		"model":    "gpt-4",
		"messages": []any{map[string]any{"role": "user", "content": "Email Dr. Sarah Chen at sarah@hospital.org"}},
	}

	result, err := o.Process(context.Background(), "openai", request)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	messages := result.Request["messages"].([]any)
	content := messages[0].(map[string]any)["content"].(string)
	want := "Email [[PERSON_1]] at [[EMAIL_ADDRESS_1]]"
	if content != want {
		t.Fatalf("masked content = %q, want %q", content, want)
	}
	if result.Decision != audit.DecisionForwardRemote {
		t.Fatalf("Decision = %v, want ForwardRemote", result.Decision)
	}
}

func TestProcessUnknownShapeIsExtractionFailure(t *testing.T) {
	o := New(extract.NewRegistry(), secret.New())

	_, err := o.Process(context.Background(), "openai", map[string]any{"foo": "bar"})
	if err == nil {
		t.Fatal("expected an error for an unrecognized request shape")
	}
	if _, ok := err.(*ErrExtractionFailure); !ok {
		t.Fatalf("error type = %T, want *ErrExtractionFailure", err)
	}
}

func TestProcessRouteModeRoutesOnDetection(t *testing.T) {
	detector := newDetectorAgainst(t, []stubAnalyzerResult{
		{EntityType: "PERSON", Start: 0, End: 3, Score: 0.9},
	})

	o := New(extract.NewRegistry(), secret.New(), WithDetector(detector), WithMode(ModeRoute))

	request := map[string]any{"messages": []any{map[string]any{"role": "user", "content": "Bob called"}}}
	result, err := o.Process(context.Background(), "openai", request)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if result.Decision != audit.DecisionForwardOnPrem {
		t.Fatalf("Decision = %v, want ForwardOnPrem", result.Decision)
	}
	messages := result.Request["messages"].([]any)
	if messages[0].(map[string]any)["content"] != "Bob called" {
		t.Fatal("route mode must forward the original, unmasked request")
	}
}

func TestProcessRouteModeForwardsRemoteWhenClean(t *testing.T) {
	detector := newDetectorAgainst(t, nil)
	o := New(extract.NewRegistry(), secret.New(), WithDetector(detector), WithMode(ModeRoute))

	request := map[string]any{"messages": []any{map[string]any{"role": "user", "content": "nothing sensitive here"}}}
	result, err := o.Process(context.Background(), "openai", request)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if result.Decision != audit.DecisionForwardRemote {
		t.Fatalf("Decision = %v, want ForwardRemote", result.Decision)
	}
}

func TestProcessRouteModeForwardsRemoteOnSecretOnlyMatch(t *testing.T) {
	// The PII detector finds nothing; only the secret scanner (step 2)
	// matches. Per spec.md §4.7's routing decision ("if any entity was
	// detected in step 3") and the glossary's "presence of PII diverts ...",
	// step 3 alone drives the route-mode decision — a secret-only match
	// forwards the original request remotely, same as a clean request.
	detector := newDetectorAgainst(t, nil)
	o := New(extract.NewRegistry(), secret.New(), WithDetector(detector), WithMode(ModeRoute))

	request := map[string]any{"messages": []any{map[string]any{"role": "user", "content": "my key is sk_live_1234567890"}}}
	result, err := o.Process(context.Background(), "openai", request)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if result.Decision != audit.DecisionForwardRemote {
		t.Fatalf("Decision = %v, want ForwardRemote for a secret-only match", result.Decision)
	}
	messages := result.Request["messages"].([]any)
	if messages[0].(map[string]any)["content"] != "my key is sk_live_1234567890" {
		t.Fatal("route mode must forward the original, unmasked request")
	}
}

func TestProcessPublishesAuditEventAndUpdatesStats(t *testing.T) {
	detector := newDetectorAgainst(t, []stubAnalyzerResult{
		{EntityType: "PERSON", Start: 0, End: 3, Score: 0.9},
	})
	publisher := audit.NewLocalPublisher(audit.DefaultTopics())
	o := New(extract.NewRegistry(), secret.New(), WithDetector(detector), WithAuditPublisher(publisher))

	request := map[string]any{"messages": []any{map[string]any{"role": "user", "content": "Bob called"}}}
	if _, err := o.Process(context.Background(), "openai", request); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if len(publisher.Events()) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(publisher.Events()))
	}
	if o.Stats()["PERSON"] != 1 {
		t.Fatalf("Stats()[PERSON] = %d, want 1", o.Stats()["PERSON"])
	}
}

func TestProcessWithoutDetectorOnlyScansSecrets(t *testing.T) {
	o := New(extract.NewRegistry(), secret.New())

	request := map[string]any{"prompt": "my key is sk_live_1234567890"}
	result, err := o.Process(context.Background(), "openai", request)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if result.Request["prompt"] == "my key is sk_live_1234567890" {
		t.Fatal("expected the secret scanner to mask the API key even with PII detection disabled")
	}
}

// Package extract implements the per-provider request extractors: pulling
// TextSpans out of provider-specific JSON request bodies, and reassembling
// masked spans back into a request value of the same shape.
package extract

import (
	"fmt"

	"github.com/Tributary-ai-services/maskproxy/pkg/span"
)

// Extractor is the three-operation contract every provider shape must
// implement. The set of providers is closed and small, so this is a plain
// interface with one implementation per shape rather than a tagged variant
// or reflection-driven walk.
type Extractor interface {
	// Extract returns the ordered, deterministic list of TextSpans found in
	// request.
	Extract(request map[string]any) ([]span.TextSpan, error)

	// Apply reinserts maskedSpans into request by address and returns a new
	// request value that differs only in the extracted text fields.
	Apply(request map[string]any, maskedSpans []span.TextSpan) (map[string]any, error)

	// UnmaskResponse applies response unmasking to every text-bearing field
	// of response. unmask is §4.8's replacement function: given placeholder
	// text, it returns the restored (or annotated) text.
	UnmaskResponse(response map[string]any, unmask func(string) string) (map[string]any, error)
}

// ErrUnknownShape is returned by Detect when a request matches none of the
// registered provider shapes. The orchestrator surfaces this as
// ExtractionFailure (§7).
var ErrUnknownShape = fmt.Errorf("extract: request does not match any known provider shape")

// Registry holds the closed set of provider extractors and picks the right
// one for a request.
type Registry struct {
	extractors []Extractor
}

// NewRegistry returns a Registry with the chat-completions and legacy
// completions extractors registered, in that order. Chat-completions is
// checked first because it is the dominant shape in current deployments.
func NewRegistry() *Registry {
	return &Registry{
		extractors: []Extractor{
			ChatCompletions{},
			Completions{},
		},
	}
}

// Detect returns the first registered extractor whose shape matches
// request, or ErrUnknownShape if none does.
func (r *Registry) Detect(request map[string]any) (Extractor, error) {
	for _, e := range r.extractors {
		if shaped, ok := e.(interface{ Shapes(map[string]any) bool }); ok {
			if shaped.Shapes(request) {
				return e, nil
			}
		}
	}
	return nil, ErrUnknownShape
}

package secret

import "github.com/Tributary-ai-services/maskproxy/pkg/span"

// Scanner is the compiled, immutable set of credential-shaped matchers. A
// Scanner is safe for concurrent use across requests — it holds no mutable
// state.
type Scanner struct {
	matchers []matcher
}

// New returns a Scanner with the default vocabulary of credential shapes.
func New() *Scanner {
	return &Scanner{matchers: defaultMatchers()}
}

// Scan runs every matcher over text and returns the entities found, in no
// particular order. Every returned entity has Score 1.0 and
// Source span.SourceScanner. Scan cannot fail — it is pure regex matching
// over in-memory text.
func (s *Scanner) Scan(text string) []span.Entity {
	var entities []span.Entity
	for _, m := range s.matchers {
		for _, interval := range m.findAll(text) {
			entities = append(entities, span.Entity{
				Category: m.category,
				Start:    interval[0],
				End:      interval[1],
				Score:    1.0,
				Source:   span.SourceScanner,
			})
		}
	}
	return entities
}

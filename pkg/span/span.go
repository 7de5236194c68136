// Package span defines the TextSpan and Entity value types shared by the
// extractor, scanner, detector, resolver, and masker.
package span

// Address identifies where a TextSpan lives inside a request's JSON tree, as
// an ordered sequence of keys and indices, e.g. []any{"messages", 0,
// "content"} or []any{"messages", 2, "content", 1, "text"}.
type Address []any

// TextSpan is a piece of original content extracted from a request, together
// with the structural address it was found at. The extractor that produced a
// TextSpan must be able to reinsert transformed text at the same Address.
type TextSpan struct {
	Address Address
	Text    string
}

// Source distinguishes which component produced an Entity. The masker never
// branches on it; it exists for diagnostics only.
type Source string

const (
	SourceDetector Source = "detector"
	SourceScanner  Source = "scanner"
)

// Entity is a labelled, scored half-open interval [Start, End) over a
// specific TextSpan's text.
type Entity struct {
	Category string
	Start    int
	End      int
	Score    float64
	Source   Source
}

// Len returns the length of the interval in runes-as-bytes terms (the
// interval is defined over the same byte offsets the extractor reported).
func (e Entity) Len() int {
	return e.End - e.Start
}

// Text returns the substring of text covered by e. Callers must pass the
// same text the entity's offsets were computed against.
func (e Entity) Text(text string) string {
	return text[e.Start:e.End]
}

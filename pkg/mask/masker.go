// Package mask implements the span masker: given a text and a disjoint,
// sorted list of entities over that text, it produces masked text by
// allocating placeholders through a placeholder.Context.
package mask

import (
	"strings"

	"github.com/Tributary-ai-services/maskproxy/pkg/placeholder"
	"github.com/Tributary-ai-services/maskproxy/pkg/span"
)

// Whitelist is a set of substrings that must never be masked. Membership is
// checked against the exact original substring a entity covers, case
// sensitively.
type Whitelist map[string]struct{}

// NewWhitelist builds a Whitelist from a list of strings.
func NewWhitelist(entries []string) Whitelist {
	w := make(Whitelist, len(entries))
	for _, e := range entries {
		w[e] = struct{}{}
	}
	return w
}

// Contains reports whether s is whitelisted.
func (w Whitelist) Contains(s string) bool {
	_, ok := w[s]
	return ok
}

// Mask walks entities left to right over text, allocating a placeholder
// token for each through ctx and emitting the masked text. entities must
// already be disjoint and sorted by Start (the output of resolve.Resolve).
// Whitelisted substrings are skipped: their original text is emitted
// verbatim and no placeholder is allocated, so the context's counters are
// left untouched.
func Mask(text string, entities []span.Entity, ctx *placeholder.Context, whitelist Whitelist) string {
	if len(entities) == 0 {
		return text
	}

	var out strings.Builder
	cursor := 0
	for _, e := range entities {
		original := e.Text(text)

		out.WriteString(text[cursor:e.Start])
		if whitelist.Contains(original) {
			out.WriteString(original)
		} else {
			out.WriteString(ctx.Allocate(e.Category, original))
		}
		cursor = e.End
	}
	out.WriteString(text[cursor:])
	return out.String()
}

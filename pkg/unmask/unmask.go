// Package unmask implements the response unmasker: reversing the
// placeholder substitution via a placeholder.Context's bijection.
package unmask

import (
	"github.com/Tributary-ai-services/maskproxy/pkg/placeholder"
)

// Mode selects how a recognized placeholder is rendered.
type Mode int

const (
	// Restore replaces the placeholder with the original text (the default).
	Restore Mode = iota
	// Annotate replaces the placeholder with a marker followed by the
	// original text, e.g. "[protected] Sarah Chen".
	Annotate
)

// Unmasker replaces placeholder tokens in text using a Context's forward
// mapping. Unknown placeholders — tokens the context never issued — are
// left unchanged, including ones the upstream model may have invented.
type Unmasker struct {
	ctx        *placeholder.Context
	mode       Mode
	markerText string
}

// New returns an Unmasker in Restore mode.
func New(ctx *placeholder.Context) *Unmasker {
	return &Unmasker{ctx: ctx, mode: Restore}
}

// WithAnnotate switches the Unmasker to Annotate mode with the given marker
// text (e.g. "[protected]").
func (u *Unmasker) WithAnnotate(markerText string) *Unmasker {
	u.mode = Annotate
	u.markerText = markerText
	return u
}

// Unmask scans text for every substring matching the placeholder grammar
// and replaces recognized ones according to the configured mode.
func (u *Unmasker) Unmask(text string) string {
	return placeholder.TokenPattern.ReplaceAllStringFunc(text, func(token string) string {
		original, ok := u.ctx.Lookup(token)
		if !ok {
			return token
		}
		if u.mode == Annotate {
			return u.markerText + " " + original
		}
		return original
	})
}

package mask

import (
	"testing"

	"github.com/Tributary-ai-services/maskproxy/pkg/placeholder"
	"github.com/Tributary-ai-services/maskproxy/pkg/span"
)

func TestMaskScenarioA(t *testing.T) {
	text := "Email Dr. Sarah Chen at sarah@hospital.org"
	entities := []span.Entity{
		{Category: "PERSON", Start: 6, End: 20, Score: 0.85},
		{Category: "EMAIL_ADDRESS", Start: 24, End: 42, Score: 0.95},
	}

	ctx := placeholder.New()
	got := Mask(text, entities, ctx, nil)

	want := "Email [[PERSON_1]] at [[EMAIL_ADDRESS_1]]"
	if got != want {
		t.Fatalf("Mask() = %q, want %q", got, want)
	}
}

func TestMaskWhitelistScenarioE(t *testing.T) {
	text := "Claude Code rocks"
	entities := []span.Entity{
		{Category: "PERSON", Start: 0, End: 11, Score: 0.9},
	}

	ctx := placeholder.New()
	wl := NewWhitelist([]string{"Claude Code"})
	got := Mask(text, entities, ctx, wl)

	if got != text {
		t.Fatalf("Mask() = %q, want unchanged %q", got, text)
	}
	if ctx.Len() != 0 {
		t.Fatalf("expected no placeholder issued, got %d", ctx.Len())
	}
}

func TestMaskRepeatedOriginalScenarioF(t *testing.T) {
	text := "Bob and Bob"
	entities := []span.Entity{
		{Category: "PERSON", Start: 0, End: 3, Score: 0.9},
		{Category: "PERSON", Start: 8, End: 11, Score: 0.9},
	}

	ctx := placeholder.New()
	got := Mask(text, entities, ctx, nil)

	want := "[[PERSON_1]] and [[PERSON_1]]"
	if got != want {
		t.Fatalf("Mask() = %q, want %q", got, want)
	}
	if counts := ctx.CategoryCounts(); counts["PERSON"] != 1 {
		t.Fatalf("expected PERSON counter to end at 1, got %d", counts["PERSON"])
	}
}

func TestMaskNoEntitiesReturnsTextUnchanged(t *testing.T) {
	ctx := placeholder.New()
	got := Mask("nothing to mask here", nil, ctx, nil)
	if got != "nothing to mask here" {
		t.Fatalf("Mask() = %q, want unchanged text", got)
	}
}

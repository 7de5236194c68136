package mask

import "testing"

func TestAtomicWhitelistLoadReflectsReload(t *testing.T) {
	w := NewAtomicWhitelist([]string{"Claude Code"})
	if !w.Load().Contains("Claude Code") {
		t.Fatal("expected initial entry to be present")
	}

	if err := w.Reload([]string{"Acme Corp"}); err != nil {
		t.Fatalf("Reload returned error: %v", err)
	}

	if w.Load().Contains("Claude Code") {
		t.Fatal("expected old entry to be gone after reload")
	}
	if !w.Load().Contains("Acme Corp") {
		t.Fatal("expected new entry to be present after reload")
	}
}

package sse

import (
	"bytes"
	"testing"
)

func TestReframerEmitsCompleteFramesOnly(t *testing.T) {
	r := NewReframer()

	frames := r.Feed([]byte("data: {\"a\":1}\n\ndata: {\"a\":2"))
	if len(frames) != 1 {
		t.Fatalf("expected 1 complete frame, got %d: %q", len(frames), frames)
	}
	if !bytes.Equal(frames[0], []byte("data: {\"a\":1}\n\n")) {
		t.Fatalf("frame = %q, want %q", frames[0], "data: {\"a\":1}\n\n")
	}
}

func TestReframerAssemblesFrameSplitAcrossFeeds(t *testing.T) {
	r := NewReframer()

	if frames := r.Feed([]byte("data: {\"a\":2")); len(frames) != 0 {
		t.Fatalf("expected no complete frames yet, got %d", len(frames))
	}
	frames := r.Feed([]byte("}\n\n"))
	if len(frames) != 1 {
		t.Fatalf("expected 1 complete frame, got %d", len(frames))
	}
	if !bytes.Equal(frames[0], []byte("data: {\"a\":2}\n\n")) {
		t.Fatalf("frame = %q", frames[0])
	}
}

func TestReframerEmitsMultipleFramesFromOneFeed(t *testing.T) {
	r := NewReframer()
	frames := r.Feed([]byte("data: {\"a\":1}\n\ndata: {\"a\":2}\n\n"))
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
}

func TestReframerFlushReturnsResidualAndClears(t *testing.T) {
	r := NewReframer()
	r.Feed([]byte("data: partial"))
	residual := r.Flush()
	if !bytes.Equal(residual, []byte("data: partial")) {
		t.Fatalf("Flush() = %q", residual)
	}
	if second := r.Flush(); second != nil {
		t.Fatalf("second Flush() = %q, want nil", second)
	}
}

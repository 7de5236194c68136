package sse

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/Tributary-ai-services/maskproxy/pkg/placeholder"
	"github.com/Tributary-ai-services/maskproxy/pkg/unmask"
)

func newContext() *placeholder.Context {
	ctx := placeholder.New()
	ctx.Allocate("PERSON", "Dr. Sarah Chen")
	return ctx
}

func TestTransformerUnmasksCompleteTokenInOneFrame(t *testing.T) {
	tr := NewTransformer(unmask.New(newContext()))

	frames, err := tr.Feed([]byte(`data: {"choices":[{"delta":{"content":"Hi [[PERSON_1]]!"}}]}` + "\n\n"))
	if err != nil {
		t.Fatalf("Feed returned error: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if !strings.Contains(string(frames[0]), "Hi Dr. Sarah Chen!") {
		t.Fatalf("frame = %q, expected unmasked content", frames[0])
	}
}

func TestTransformerSplitTokenAcrossFrames(t *testing.T) {
	tr := NewTransformer(unmask.New(newContext()))

	f1, err := tr.Feed([]byte(`data: {"choices":[{"delta":{"content":"email [[PERSO"}}]}` + "\n\n"))
	if err != nil {
		t.Fatalf("Feed 1: %v", err)
	}
	if !strings.Contains(string(f1[0]), `"content":"email "`) {
		t.Fatalf("frame 1 = %q, expected only the safe prefix (token held back)", f1[0])
	}

	f2, err := tr.Feed([]byte(`data: {"choices":[{"delta":{"content":"N_1]] is here"}}]}` + "\n\n"))
	if err != nil {
		t.Fatalf("Feed 2: %v", err)
	}
	if !strings.Contains(string(f2[0]), "Dr. Sarah Chen is here") {
		t.Fatalf("frame 2 = %q, expected resolved content", f2[0])
	}
}

func TestTransformerPreservesNonDataLines(t *testing.T) {
	tr := NewTransformer(unmask.New(newContext()))

	frames, err := tr.Feed([]byte("event: message\ndata: {\"choices\":[{\"text\":\"ok\"}]}\n\n"))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if !strings.HasPrefix(string(frames[0]), "event: message\n") {
		t.Fatalf("frame = %q, expected event: line preserved", frames[0])
	}
}

func TestTransformerDonePassesThroughUnchanged(t *testing.T) {
	tr := NewTransformer(unmask.New(newContext()))

	frames, err := tr.Feed([]byte("data: [DONE]\n\n"))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if string(frames[0]) != "data: [DONE]\n\n" {
		t.Fatalf("frame = %q, want unchanged [DONE]", frames[0])
	}
}

func TestTransformerFlushEmitsResidualPartialTokenUnchanged(t *testing.T) {
	tr := NewTransformer(unmask.New(newContext()))

	_, err := tr.Feed([]byte(`data: {"choices":[{"delta":{"content":"trailing [[PERSO"}}]}` + "\n\n"))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}

	flushed := tr.Flush()
	if len(flushed) == 0 {
		t.Fatal("expected Flush to emit the pending carry-over")
	}
	found := false
	for _, f := range flushed {
		if strings.Contains(string(f), "[[PERSO") {
			found = true
		}
	}
	if !found {
		t.Fatalf("Flush() = %q, expected unresolved [[PERSO to appear", flushed)
	}
}

type chunkedReader struct {
	chunks [][]byte
	i      int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if r.i >= len(r.chunks) {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[r.i])
	r.i++
	return n, nil
}

func TestTransformEndToEndScenarioDGranularity(t *testing.T) {
	tr := NewTransformer(unmask.New(newContext()))

	src := &chunkedReader{chunks: [][]byte{
		[]byte(`data: {"choices":[{"delta":{"content":"email [[PERSO"}}]}` + "\n\n"),
		[]byte(`data: {"choices":[{"delta":{"content":"N_1]] is here"}}]}` + "\n\n"),
		[]byte("data: [DONE]\n\n"),
	}}

	var out bytes.Buffer
	if err := tr.Transform(context.Background(), src, &out); err != nil {
		t.Fatalf("Transform returned error: %v", err)
	}

	result := out.String()
	if !strings.Contains(result, `"content":"email "`) {
		t.Fatalf("expected only the safe prefix in first frame, got %q", result)
	}
	if !strings.Contains(result, "Dr. Sarah Chen is here") {
		t.Fatalf("expected resolved content in second frame, got %q", result)
	}
	if !strings.Contains(result, "[DONE]") {
		t.Fatalf("expected DONE sentinel preserved, got %q", result)
	}
}

type errReader struct{}

func (errReader) Read(p []byte) (int, error) {
	return 0, errors.New("upstream connection reset")
}

func TestTransformUpstreamErrorWritesErrorTerminator(t *testing.T) {
	tr := NewTransformer(unmask.New(newContext()))

	var out bytes.Buffer
	err := tr.Transform(context.Background(), errReader{}, &out)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(out.String(), `"error"`) {
		t.Fatalf("expected an error terminator frame, got %q", out.String())
	}
}

func TestTransformCancellationStopsWithoutDraining(t *testing.T) {
	tr := NewTransformer(unmask.New(newContext()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	blocking := &blockingReader{}
	var out bytes.Buffer

	done := make(chan error, 1)
	go func() { done <- tr.Transform(ctx, blocking, &out) }()

	select {
	case err := <-done:
		if !errors.Is(err, ErrAborted) {
			t.Fatalf("Transform() error = %v, want ErrAborted", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Transform did not return promptly after cancellation")
	}
}

type blockingReader struct{}

func (blockingReader) Read(p []byte) (int, error) {
	select {}
}

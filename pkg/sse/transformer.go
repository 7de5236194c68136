package sse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Tributary-ai-services/maskproxy/pkg/span"
)

// ErrAborted is returned by Transform when ctx is cancelled mid-stream —
// the client disconnected. Per the cancellation contract no attempt is
// made to drain or flush; whatever was already written downstream stands.
var ErrAborted = errors.New("sse: stream aborted")

// Transformer is the full stream transformer: Layer 1 SSE re-framing
// composed with Layer 2 per-field placeholder-aware unmasking. One
// Transformer is scoped to a single upstream/downstream stream pair and is
// not safe for concurrent use — the contract is single-producer/
// single-consumer.
type Transformer struct {
	reframer *Reframer
	unmasker unmasker
	buffers  map[string]*CarryBuffer
	lastAddr map[string]span.Address
}

// NewTransformer returns a Transformer that unmasks through u.
func NewTransformer(u unmasker) *Transformer {
	return &Transformer{
		reframer: NewReframer(),
		unmasker: u,
		buffers:  make(map[string]*CarryBuffer),
		lastAddr: make(map[string]span.Address),
	}
}

// Feed appends raw upstream bytes and returns every complete, unmasked
// frame now ready to write downstream, in arrival order. Just before a
// [DONE] frame, any pending per-field carry-over is emitted as-is in
// synthetic frames.
func (t *Transformer) Feed(chunk []byte) ([][]byte, error) {
	frames := t.reframer.Feed(chunk)
	out := make([][]byte, 0, len(frames))
	for _, raw := range frames {
		if parseFrame(raw).done {
			for key, buf := range t.buffers {
				pending := buf.Flush()
				if pending == "" {
					continue
				}
				encoded, err := marshalPayload(buildTree(t.lastAddr[key], pending))
				if err != nil {
					continue
				}
				out = append(out, []byte("data: "+encoded+"\n\n"))
			}
		}
		transformed, err := t.transformFrame(raw)
		if err != nil {
			return out, err
		}
		out = append(out, transformed)
	}
	return out, nil
}

func (t *Transformer) transformFrame(raw []byte) ([]byte, error) {
	frame := parseFrame(raw)
	for _, i := range frame.dataIdx {
		payloadStr := frame.payload(i)
		var payload map[string]any
		if err := json.Unmarshal([]byte(payloadStr), &payload); err != nil {
			return nil, fmt.Errorf("sse: decoding data payload: %w", err)
		}

		for _, field := range walkTextFields(payload) {
			key := addrKey(field.Address)
			t.lastAddr[key] = field.Address
			unmasked := t.bufferFor(key).Feed(field.Text)
			if err := setTextField(payload, field.Address, unmasked); err != nil {
				return nil, err
			}
		}

		encoded, err := marshalPayload(payload)
		if err != nil {
			return nil, err
		}
		frame.withPayload(i, encoded)
	}
	return frame.bytes(), nil
}

func (t *Transformer) bufferFor(key string) *CarryBuffer {
	b, ok := t.buffers[key]
	if !ok {
		b = NewCarryBuffer(t.unmasker)
		t.buffers[key] = b
	}
	return b
}

func addrKey(addr span.Address) string {
	parts := make([]string, len(addr))
	for i, c := range addr {
		parts[i] = fmt.Sprint(c)
	}
	return strings.Join(parts, ".")
}

// Flush drains any residual re-framer bytes and any still-pending per-field
// carry-over, for use at stream termination ([DONE] or upstream EOF). The
// re-framer's residual (an incomplete frame) is emitted as-is; each
// pending carry-over is reconstructed into a synthetic frame carrying that
// field's leftover text, also emitted as-is, since it cannot be resolved.
func (t *Transformer) Flush() [][]byte {
	var out [][]byte
	if residual := t.reframer.Flush(); len(residual) > 0 {
		out = append(out, residual)
	}
	for key, buf := range t.buffers {
		pending := buf.Flush()
		if pending == "" {
			continue
		}
		addr := t.lastAddr[key]
		payload := buildTree(addr, pending)
		encoded, err := marshalPayload(payload)
		if err != nil {
			continue
		}
		out = append(out, []byte("data: "+encoded+"\n\n"))
	}
	return out
}

// Transform drives Feed/Flush end to end: it reads raw bytes from r and
// writes unmasked SSE frames to w, calling Flush at upstream EOF. ctx is
// checked before each read; once it is cancelled Transform returns
// ErrAborted without writing anything further. On a non-EOF read error, or
// a data payload that fails to decode, the frames transformed so far are
// written, any partial frame and pending carry-over are discarded, and an
// error terminator frame is written before returning the error.
func (t *Transformer) Transform(ctx context.Context, r io.Reader, w io.Writer) error {
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return ErrAborted
		default:
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			frames, err := t.Feed(buf[:n])
			for _, f := range frames {
				if _, werr := w.Write(f); werr != nil {
					return werr
				}
			}
			if err != nil {
				t.writeErrorTerminator(w, err)
				return err
			}
		}

		if readErr != nil {
			if readErr == io.EOF {
				for _, f := range t.Flush() {
					if _, werr := w.Write(f); werr != nil {
						return werr
					}
				}
				return nil
			}
			t.writeErrorTerminator(w, readErr)
			return readErr
		}
	}
}

func (t *Transformer) writeErrorTerminator(w io.Writer, cause error) {
	encoded, err := marshalPayload(map[string]any{"error": cause.Error()})
	if err != nil {
		return
	}
	w.Write([]byte("data: " + encoded + "\n\n"))
}

// Package orchestrate implements the masking orchestrator (§4.7): it
// coordinates extraction, secret scanning, PII detection, conflict
// resolution, masking, and reassembly for one request, and decides
// whether the request should be forwarded masked or routed elsewhere
// entirely.
package orchestrate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Tributary-ai-services/maskproxy/pkg/audit"
	"github.com/Tributary-ai-services/maskproxy/pkg/auditsign"
	"github.com/Tributary-ai-services/maskproxy/pkg/detect"
	"github.com/Tributary-ai-services/maskproxy/pkg/extract"
	"github.com/Tributary-ai-services/maskproxy/pkg/mask"
	"github.com/Tributary-ai-services/maskproxy/pkg/placeholder"
	"github.com/Tributary-ai-services/maskproxy/pkg/resolve"
	"github.com/Tributary-ai-services/maskproxy/pkg/secret"
	"github.com/Tributary-ai-services/maskproxy/pkg/span"
)

// Mode selects the deployment's overall masking policy.
type Mode string

const (
	// ModeMask masks PII/secrets and always forwards the masked request
	// remotely.
	ModeMask Mode = "mask"
	// ModeRoute never masks; instead it routes a request in which the PII
	// detector found any entity to an on-premise provider with the original
	// text. Secret-scanner matches alone do not divert the request.
	ModeRoute Mode = "route"
)

// ErrExtractionFailure wraps extract.ErrUnknownShape as this package's own
// named error kind, per §7's policy that ExtractionFailure maps to a 4xx.
type ErrExtractionFailure struct{ Cause error }

func (e *ErrExtractionFailure) Error() string { return fmt.Sprintf("orchestrate: %s", e.Cause) }
func (e *ErrExtractionFailure) Unwrap() error  { return e.Cause }

// Result is what Process returns: the request to forward (masked or
// original, depending on the routing decision), where to forward it, and
// the context needed to unmask the eventual response.
type Result struct {
	Request  map[string]any
	Decision audit.Decision
	Context  *placeholder.Context
	Entities []span.Entity
}

// Orchestrator ties every core component together for one deployment.
// It is safe for concurrent use across requests: per-request state
// (the PlaceholderContext) is created fresh inside Process.
type Orchestrator struct {
	registry   *extract.Registry
	scanner    *secret.Scanner
	detector   *detect.Client
	detectorOn bool
	whitelist  *mask.AtomicWhitelist
	mode       Mode
	publisher  audit.Publisher
	signer     auditsign.Signer
	alerter    func(audit.RequestAuditEvent)

	mu     sync.Mutex
	counts map[string]int
}

// Option configures an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithDetector enables PII detection through d.
func WithDetector(d *detect.Client) Option {
	return func(o *Orchestrator) { o.detector = d; o.detectorOn = true }
}

// WithWhitelist sets the span masker's whitelist.
func WithWhitelist(w *mask.AtomicWhitelist) Option {
	return func(o *Orchestrator) { o.whitelist = w }
}

// WithMode sets the routing policy. Defaults to ModeMask.
func WithMode(m Mode) Option {
	return func(o *Orchestrator) { o.mode = m }
}

// WithAuditPublisher wires a best-effort audit event publisher.
func WithAuditPublisher(p audit.Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithAuditSigner signs every published audit event with s before handing
// it to the publisher, so a downstream consumer of the audit stream can
// detect tampering or forgery. Signing is skipped entirely if unset.
func WithAuditSigner(s auditsign.Signer) Option {
	return func(o *Orchestrator) { o.signer = s }
}

// WithAlertHook wires a synchronous callback invoked with every published
// audit event, after publishing, so callers can drive an alert.Engine
// without this package importing it.
func WithAlertHook(fn func(audit.RequestAuditEvent)) Option {
	return func(o *Orchestrator) { o.alerter = fn }
}

// New returns an Orchestrator wired with registry and scanner and
// configured by opts. Mode defaults to ModeMask and the whitelist defaults
// to empty.
func New(registry *extract.Registry, scanner *secret.Scanner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:  registry,
		scanner:   scanner,
		whitelist: mask.NewAtomicWhitelist(nil),
		mode:      ModeMask,
		counts:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Process runs the full per-request procedure described in §4.7.
func (o *Orchestrator) Process(ctx context.Context, provider string, request map[string]any) (*Result, error) {
	start := time.Now()

	extractor, err := o.registry.Detect(request)
	if err != nil {
		return nil, &ErrExtractionFailure{Cause: err}
	}

	spans, err := extractor.Extract(request)
	if err != nil {
		return nil, &ErrExtractionFailure{Cause: err}
	}

	perSpanScanner, perSpanDetector, err := o.detectPerSpan(ctx, spans)
	if err != nil {
		return nil, err
	}

	resolved := make([][]span.Entity, len(spans))
	var allEntities []span.Entity
	var piiDetected bool
	for i := range spans {
		combined := append(append([]span.Entity{}, perSpanScanner[i]...), perSpanDetector[i]...)
		resolved[i] = resolve.Resolve(combined)
		allEntities = append(allEntities, resolved[i]...)
		if len(perSpanDetector[i]) > 0 {
			piiDetected = true
		}
	}

	if o.mode == ModeRoute {
		// Step 3 (the PII detector) alone drives the routing decision, per
		// the spec's "if any entity was detected in step 3" — a secret-only
		// match (step 2) forwards the original request remotely, same as no
		// match at all.
		decision := audit.DecisionForwardRemote
		if piiDetected {
			decision = audit.DecisionForwardOnPrem
		}
		o.publish(ctx, provider, string(o.mode), decision, nil, start)
		return &Result{Request: request, Decision: decision, Entities: allEntities}, nil
	}

	placeholderCtx := placeholder.New()
	whitelist := o.whitelist.Load()
	maskedSpans := make([]span.TextSpan, len(spans))
	for i, s := range spans {
		maskedSpans[i] = span.TextSpan{
			Address: s.Address,
			Text:    mask.Mask(s.Text, resolved[i], placeholderCtx, whitelist),
		}
	}

	maskedRequest, err := extractor.Apply(request, maskedSpans)
	if err != nil {
		return nil, &ErrExtractionFailure{Cause: err}
	}

	o.publish(ctx, provider, string(o.mode), audit.DecisionForwardRemote, placeholderCtx.CategoryCounts(), start)

	return &Result{
		Request:  maskedRequest,
		Decision: audit.DecisionForwardRemote,
		Context:  placeholderCtx,
		Entities: allEntities,
	}, nil
}

// detectPerSpan runs the secret scanner (step 2, always) and, if enabled,
// the PII detector (step 3, concurrently, fan-out/fan-in) over every span,
// returning each source's findings separately and in extraction order —
// callers that need the combined view resolve and concatenate themselves;
// callers that need step 3 alone (the route-mode trigger) use the second
// slice untouched.
func (o *Orchestrator) detectPerSpan(ctx context.Context, spans []span.TextSpan) (scanner, detector [][]span.Entity, err error) {
	scanner = make([][]span.Entity, len(spans))
	detector = make([][]span.Entity, len(spans))
	for i, s := range spans {
		scanner[i] = o.scanner.Scan(s.Text)
	}

	if !o.detectorOn {
		return scanner, detector, nil
	}

	type outcome struct {
		index    int
		entities []span.Entity
		err      error
	}
	outcomes := make(chan outcome, len(spans))

	var wg sync.WaitGroup
	for i, s := range spans {
		if s.Text == "" {
			continue
		}
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()
			entities, err := o.detector.Detect(ctx, text)
			outcomes <- outcome{index: i, entities: entities, err: err}
		}(i, s.Text)
	}
	wg.Wait()
	close(outcomes)

	for out := range outcomes {
		if out.err != nil {
			return nil, nil, out.err
		}
		detector[out.index] = append(detector[out.index], out.entities...)
	}
	return scanner, detector, nil
}

func (o *Orchestrator) publish(ctx context.Context, provider, mode string, decision audit.Decision, counts map[string]int, start time.Time) audit.RequestAuditEvent {
	if counts == nil {
		counts = map[string]int{}
	}
	event := audit.RequestAuditEvent{
		RequestID:      uuid.NewString(),
		Timestamp:      start,
		Provider:       provider,
		Mode:           mode,
		Decision:       decision,
		CategoryCounts: counts,
		Duration:       time.Since(start),
	}

	o.mu.Lock()
	for category, n := range counts {
		o.counts[category] += n
	}
	o.mu.Unlock()

	if o.signer != nil {
		if sig, err := o.signer.Sign(event); err == nil {
			event.Signature = sig
		}
	}

	if o.publisher != nil {
		o.publisher.Publish(ctx, event)
	}
	if o.alerter != nil {
		o.alerter(event)
	}
	return event
}

// Stats returns aggregate per-category masking counters accumulated since
// process start. It satisfies control.StatsSource.
func (o *Orchestrator) Stats() map[string]int {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]int, len(o.counts))
	for k, v := range o.counts {
		out[k] = v
	}
	return out
}

// Package proxy implements the data-plane HTTP handler: it receives a
// client's chat/completions request, runs it through the masking
// orchestrator, forwards the result to the configured upstream provider,
// and unmasks the response — streaming or not — before relaying it back.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Tributary-ai-services/maskproxy/pkg/audit"
	"github.com/Tributary-ai-services/maskproxy/pkg/detect"
	"github.com/Tributary-ai-services/maskproxy/pkg/extract"
	"github.com/Tributary-ai-services/maskproxy/pkg/orchestrate"
	"github.com/Tributary-ai-services/maskproxy/pkg/sse"
	"github.com/Tributary-ai-services/maskproxy/pkg/unmask"
)

// Provider is a forwarding target for one upstream LLM provider.
type Provider struct {
	BaseURL string
	APIKey  string
}

// Handler serves POST /v1/proxy/{provider}/{...path}: it masks the request
// body, forwards it upstream, and unmasks the response before relaying it.
type Handler struct {
	orchestrator *orchestrate.Orchestrator
	registry     *extract.Registry
	providers    map[string]Provider
	client       *http.Client
	markerText   string
	annotate     bool
	log          *logrus.Entry
}

// New returns a Handler forwarding to providers through orchestrator.
// registry is used to pick the matching extractor to unmask a response of
// the same shape as the request that produced it.
func New(o *orchestrate.Orchestrator, registry *extract.Registry, providers map[string]Provider, log *logrus.Entry) *Handler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Handler{
		orchestrator: o,
		registry:     registry,
		providers:    providers,
		client:       &http.Client{Timeout: 2 * time.Minute},
		log:          log,
	}
}

// WithAnnotate switches response unmasking to annotate mode: unmasked
// spans are prefixed with markerText instead of silently restored.
func (h *Handler) WithAnnotate(markerText string) *Handler {
	h.annotate = true
	h.markerText = markerText
	return h
}

const pathPrefix = "/v1/proxy/"

// onPremiseProviderName is the reserved providers.{name} key (§6) consulted
// when the orchestrator returns audit.DecisionForwardOnPrem: route mode
// diverts a request containing PII away from whatever provider the caller
// named in the URL, to this dedicated on-premise target, with the original
// unmasked request.
const onPremiseProviderName = "on_premise"

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !strings.HasPrefix(r.URL.Path, pathPrefix) {
		http.NotFound(w, r)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, pathPrefix)
	providerName, upstreamPath, _ := strings.Cut(rest, "/")
	provider, ok := h.providers[providerName]
	if !ok {
		http.Error(w, fmt.Sprintf("unknown provider %q", providerName), http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	var request map[string]any
	if err := json.Unmarshal(body, &request); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	extractor, err := h.registry.Detect(request)
	if err != nil {
		http.Error(w, fmt.Sprintf("unrecognized request shape: %v", err), http.StatusBadRequest)
		return
	}

	result, err := h.orchestrator.Process(r.Context(), providerName, request)
	if err != nil {
		h.writeOrchestratorError(w, err)
		return
	}

	target := provider
	if result.Decision == audit.DecisionForwardOnPrem {
		onPremise, ok := h.providers[onPremiseProviderName]
		if !ok {
			http.Error(w, fmt.Sprintf("routing decided %q but no %q provider is configured", result.Decision, onPremiseProviderName), http.StatusInternalServerError)
			return
		}
		target = onPremise
	}

	upstreamReq, err := h.buildUpstreamRequest(r.Context(), target, upstreamPath, result.Request)
	if err != nil {
		http.Error(w, "failed to build upstream request", http.StatusInternalServerError)
		return
	}

	upstreamResp, err := h.client.Do(upstreamReq)
	if err != nil {
		http.Error(w, fmt.Sprintf("upstream provider call failed: %v", err), http.StatusBadGateway)
		return
	}
	defer upstreamResp.Body.Close()

	w.Header().Set("Content-Type", upstreamResp.Header.Get("Content-Type"))
	w.WriteHeader(upstreamResp.StatusCode)

	if result.Context == nil {
		io.Copy(w, upstreamResp.Body)
		return
	}

	u := unmask.New(result.Context)
	if h.annotate {
		u = u.WithAnnotate(h.markerText)
	}

	if isEventStream(upstreamResp.Header.Get("Content-Type")) {
		h.relayStream(r.Context(), upstreamResp.Body, w, u)
		return
	}
	h.relayBody(upstreamResp.Body, w, extractor, u)
}

func (h *Handler) buildUpstreamRequest(ctx context.Context, provider Provider, upstreamPath string, masked map[string]any) (*http.Request, error) {
	payload, err := json.Marshal(masked)
	if err != nil {
		return nil, err
	}

	url := strings.TrimSuffix(provider.BaseURL, "/") + "/" + upstreamPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if provider.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+provider.APIKey)
	}
	return req, nil
}

func isEventStream(contentType string) bool {
	return strings.HasPrefix(contentType, "text/event-stream")
}

func (h *Handler) writeOrchestratorError(w http.ResponseWriter, err error) {
	var extractionFailure *orchestrate.ErrExtractionFailure
	switch {
	case errors.As(err, &extractionFailure):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, detect.ErrUnavailable):
		http.Error(w, "DetectorUnavailable: "+err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, detect.ErrMalformed):
		http.Error(w, "DetectorMalformed: "+err.Error(), http.StatusInternalServerError)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) relayStream(ctx context.Context, upstream io.Reader, w io.Writer, u *unmask.Unmasker) {
	transformer := sse.NewTransformer(u)
	if err := transformer.Transform(ctx, upstream, w); err != nil {
		h.log.WithError(err).Warn("proxy: stream transform ended with an error")
	}
}

func (h *Handler) relayBody(upstream io.Reader, w io.Writer, extractor extract.Extractor, u *unmask.Unmasker) {
	raw, err := io.ReadAll(upstream)
	if err != nil {
		return
	}

	var response map[string]any
	if err := json.Unmarshal(raw, &response); err != nil {
		w.Write(raw)
		return
	}

	unmasked, err := extractor.UnmaskResponse(response, u.Unmask)
	if err != nil {
		w.Write(raw)
		return
	}

	encoded, err := json.Marshal(unmasked)
	if err != nil {
		w.Write(raw)
		return
	}
	w.Write(encoded)
}

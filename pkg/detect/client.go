// Package detect implements the PII detector client: an adapter over the
// external analyzer service that normalizes its responses into the engine's
// Entity shape.
package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/eapache/go-resiliency/breaker"

	"github.com/Tributary-ai-services/maskproxy/pkg/span"
)

// ErrUnavailable is returned when the analyzer is unreachable, returns a
// non-2xx status, or the circuit breaker is currently open.
var ErrUnavailable = fmt.Errorf("detect: analyzer unavailable")

// ErrMalformed is returned when the analyzer's response cannot be decoded or
// does not match the documented schema.
var ErrMalformed = fmt.Errorf("detect: analyzer response malformed")

// Config configures the Client.
type Config struct {
	// BaseURL is the analyzer's base URL; requests are POSTed to
	// BaseURL + "/analyze".
	BaseURL string
	// Entities is the list of requested categories.
	Entities []string
	// ScoreThreshold is the minimum confidence the analyzer should return.
	ScoreThreshold float64
	// Language is the ISO language code hint passed to the analyzer.
	Language string
	// Timeout bounds a single analyzer call.
	Timeout time.Duration
	// BreakerErrorThreshold is the number of consecutive failures that trips
	// the circuit breaker open.
	BreakerErrorThreshold int
	// BreakerSuccessThreshold is the number of consecutive successes needed
	// in the half-open state to close the breaker again.
	BreakerSuccessThreshold int
	// BreakerTimeout is how long the breaker stays open before allowing a
	// single probe request through (half-open).
	BreakerTimeout time.Duration
}

// DefaultConfig returns reasonable defaults for the detector client.
func DefaultConfig() Config {
	return Config{
		ScoreThreshold:          0.5,
		Language:                "en",
		Timeout:                 5 * time.Second,
		BreakerErrorThreshold:   5,
		BreakerSuccessThreshold: 2,
		BreakerTimeout:          10 * time.Second,
	}
}

// Client sends one analyzer request per TextSpan and normalizes the
// response into span.Entity records.
type Client struct {
	http    *http.Client
	cfg     Config
	breaker *breaker.Breaker
}

// New returns a detector Client wrapping cfg.BaseURL + "/analyze" calls in a
// circuit breaker.
func New(cfg Config) *Client {
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		breaker: breaker.New(cfg.BreakerErrorThreshold, cfg.BreakerSuccessThreshold, cfg.BreakerTimeout),
	}
}

type analyzeRequest struct {
	Text           string   `json:"text"`
	Language       string   `json:"language"`
	Entities       []string `json:"entities"`
	ScoreThreshold float64  `json:"score_threshold"`
}

type analyzeResult struct {
	EntityType string  `json:"entity_type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Score      float64 `json:"score"`
}

// Detect calls the analyzer for a single span of text and returns the
// normalized entities. It returns ErrUnavailable on transport failure, a
// non-2xx response, or an open circuit breaker; it returns ErrMalformed on a
// response that cannot be decoded into the documented schema. It never
// silently returns an empty result on failure — the caller must inspect the
// error.
func (c *Client) Detect(ctx context.Context, text string) ([]span.Entity, error) {
	if text == "" {
		return nil, nil
	}

	var results []analyzeResult
	err := c.breaker.Run(func() error {
		var callErr error
		results, callErr = c.call(ctx, text)
		return callErr
	})

	switch err {
	case nil:
		return normalize(results), nil
	case breaker.ErrBreakerOpen:
		return nil, ErrUnavailable
	default:
		return nil, err
	}
}

func (c *Client) call(ctx context.Context, text string) ([]analyzeResult, error) {
	body, err := json.Marshal(analyzeRequest{
		Text:           text,
		Language:       c.cfg.Language,
		Entities:       c.cfg.Entities,
		ScoreThreshold: c.cfg.ScoreThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request: %v", ErrMalformed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var results []analyzeResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrMalformed, err)
	}
	return results, nil
}

func normalize(results []analyzeResult) []span.Entity {
	if len(results) == 0 {
		return nil
	}
	entities := make([]span.Entity, 0, len(results))
	for _, r := range results {
		entities = append(entities, span.Entity{
			Category: r.EntityType,
			Start:    r.Start,
			End:      r.End,
			Score:    r.Score,
			Source:   span.SourceDetector,
		})
	}
	return entities
}

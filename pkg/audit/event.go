// Package audit defines the request-level audit trail this engine emits,
// and the async Kafka-backed (or local, Kafka-less) mechanism for
// publishing it without ever blocking the request path.
package audit

import "time"

// Decision mirrors the routing outcome the orchestrator reached for a
// request.
type Decision string

const (
	DecisionForwardRemote Decision = "forward_remote"
	DecisionForwardOnPrem Decision = "forward_on_prem"
)

// RequestAuditEvent summarizes one masked (or routed) request. It carries
// no original or masked text — only metadata safe to log and stream.
type RequestAuditEvent struct {
	RequestID      string         `json:"request_id"`
	Timestamp      time.Time      `json:"timestamp"`
	Provider       string         `json:"provider"`
	Mode           string         `json:"mode"`
	Decision       Decision       `json:"decision"`
	CategoryCounts map[string]int `json:"category_counts"`
	Duration       time.Duration  `json:"duration_ns"`

	// Signature is the hex-encoded HMAC-SHA256 signature produced by
	// pkg/auditsign over the fields above except Duration (Timestamp is
	// signed at one-second resolution), populated by the orchestrator when
	// a Signer is configured. Empty when signing is disabled.
	Signature string `json:"signature,omitempty"`
}

// TotalEntities sums CategoryCounts, used by the topic router to tell a
// clean event from one that masked something.
func (e RequestAuditEvent) TotalEntities() int {
	total := 0
	for _, n := range e.CategoryCounts {
		total += n
	}
	return total
}

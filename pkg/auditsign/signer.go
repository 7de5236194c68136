// Package auditsign provides tamper-evident HMAC signatures over audit
// events, so a downstream consumer of the audit stream can detect an event
// that was altered or forged after this engine published it.
package auditsign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/Tributary-ai-services/maskproxy/pkg/audit"
)

// Signer computes and verifies HMAC-SHA256 signatures over RequestAuditEvents.
type Signer interface {
	Sign(event audit.RequestAuditEvent) (string, error)
	Verify(event audit.RequestAuditEvent, signature string) error
}

type hmacSigner struct {
	key []byte
}

// New returns an HMAC-SHA256 Signer keyed with key.
func New(key []byte) Signer {
	return &hmacSigner{key: key}
}

func (s *hmacSigner) Sign(event audit.RequestAuditEvent) (string, error) {
	mac := hmac.New(sha256.New, s.key)
	if _, err := mac.Write([]byte(canonicalize(event))); err != nil {
		return "", fmt.Errorf("auditsign: computing HMAC: %w", err)
	}
	return hex.EncodeToString(mac.Sum(nil)), nil
}

func (s *hmacSigner) Verify(event audit.RequestAuditEvent, signature string) error {
	expected, err := s.Sign(event)
	if err != nil {
		return err
	}

	expectedBytes, err := hex.DecodeString(expected)
	if err != nil {
		return fmt.Errorf("auditsign: decoding expected signature: %w", err)
	}
	actualBytes, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("auditsign: decoding provided signature: %w", err)
	}

	if !hmac.Equal(expectedBytes, actualBytes) {
		return fmt.Errorf("auditsign: signature verification failed")
	}
	return nil
}

// canonicalize builds a deterministic string from an event's fields —
// category counts sorted by key so the same event always canonicalizes to
// the same string regardless of map iteration order.
func canonicalize(e audit.RequestAuditEvent) string {
	categories := make([]string, 0, len(e.CategoryCounts))
	for category := range e.CategoryCounts {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	counts := ""
	for _, category := range categories {
		counts += fmt.Sprintf("%s=%d,", category, e.CategoryCounts[category])
	}

	return fmt.Sprintf("%s|%s|%s|%s|%d|%s",
		e.RequestID,
		e.Provider,
		e.Mode,
		e.Decision,
		e.Timestamp.Unix(),
		counts,
	)
}

package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Tributary-ai-services/maskproxy/pkg/audit"
)

// Alerter dispatches a notification for a fired Rule.
type Alerter interface {
	Notify(rule Rule, event audit.RequestAuditEvent)
}

// SlackAlerter posts to a Slack incoming webhook.
type SlackAlerter struct {
	client     *http.Client
	webhookURL string
}

// NewSlackAlerter returns a SlackAlerter posting to webhookURL.
func NewSlackAlerter(webhookURL string) *SlackAlerter {
	return &SlackAlerter{client: &http.Client{Timeout: 10 * time.Second}, webhookURL: webhookURL}
}

// Notify posts a best-effort Slack message; delivery failures are not
// propagated since alerting must never affect the request path.
func (a *SlackAlerter) Notify(rule Rule, event audit.RequestAuditEvent) {
	if a.webhookURL == "" {
		return
	}

	payload := map[string]any{
		"attachments": []map[string]any{
			{
				"color": "warning",
				"title": fmt.Sprintf("masking alert: %s", rule.ID),
				"text": fmt.Sprintf("request %s masked %d %s value(s) via %s",
					event.RequestID, event.CategoryCounts[rule.Category], rule.Category, event.Provider),
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
}

// Package alert fires a Slack notification when a request's masked
// entities cross a configured per-category threshold — e.g. "alert
// whenever 3 or more AWS_SECRET_KEY values are masked in one request."
package alert

import (
	"sort"
	"sync"
	"time"

	"github.com/Tributary-ai-services/maskproxy/pkg/audit"
)

// Rule fires when CategoryCounts[Category] >= MinCount for a given event,
// subject to Cooldown between consecutive firings of the same rule.
type Rule struct {
	ID       string
	Category string
	MinCount int
	Cooldown time.Duration
}

// Engine evaluates rules against RequestAuditEvents and dispatches alerts
// through an Alerter, honoring a per-rule cooldown.
type Engine struct {
	mu        sync.Mutex
	rules     []Rule
	cooldowns map[string]time.Time
	alerter   Alerter
}

// NewEngine returns an Engine that notifies through alerter.
func NewEngine(alerter Alerter) *Engine {
	return &Engine{cooldowns: make(map[string]time.Time), alerter: alerter}
}

// LoadRules replaces the engine's rule set, sorted by ID for deterministic
// evaluation order.
func (e *Engine) LoadRules(rules []Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	e.rules = sorted
}

// Evaluate checks event against every loaded rule and fires an alert for
// each rule that matches and is not in cooldown.
func (e *Engine) Evaluate(event audit.RequestAuditEvent) {
	e.mu.Lock()
	rules := e.rules
	e.mu.Unlock()

	now := time.Now()
	for _, rule := range rules {
		if event.CategoryCounts[rule.Category] < rule.MinCount {
			continue
		}
		if e.inCooldown(rule, now) {
			continue
		}
		e.markFired(rule, now)
		e.alerter.Notify(rule, event)
	}
}

func (e *Engine) inCooldown(rule Rule, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	last, ok := e.cooldowns[rule.ID]
	if !ok {
		return false
	}
	return now.Sub(last) < rule.Cooldown
}

func (e *Engine) markFired(rule Rule, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cooldowns[rule.ID] = now
}

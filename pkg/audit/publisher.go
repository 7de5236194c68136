package audit

import "context"

// Publisher streams RequestAuditEvents off the request path. Publish must
// never block the caller on network I/O — it enqueues and returns.
type Publisher interface {
	Publish(ctx context.Context, event RequestAuditEvent)
	Close() error
}

// Topics names the destinations an event may be routed to.
type Topics struct {
	Events   string
	Secrets  string
	Clean    string
}

// DefaultTopics mirrors the engine's default config.
func DefaultTopics() Topics {
	return Topics{Events: "maskproxy.audit", Secrets: "maskproxy.audit.secrets", Clean: "maskproxy.audit.clean"}
}

// secretCategories names categories the engine considers credential-shaped,
// used by the topic router to additionally flag high-severity events.
var secretCategories = map[string]struct{}{
	"API_KEY":         {},
	"AWS_ACCESS_KEY":  {},
	"AWS_SECRET_KEY":  {},
	"PRIVATE_KEY":     {},
	"JWT":             {},
	"GENERIC_SECRET":  {},
	"HIGH_ENTROPY_BLOB": {},
}

// topicRouter decides which topics a RequestAuditEvent should be published
// to. Routing rules:
//   - every event goes to topics.Events
//   - events with zero masked entities also go to topics.Clean
//   - events that masked at least one secret-scanner category also go to
//     topics.Secrets
//
// An empty Clean or Secrets topic name disables that destination.
type topicRouter struct {
	topics Topics
}

func newTopicRouter(topics Topics) *topicRouter {
	return &topicRouter{topics: topics}
}

func (r *topicRouter) route(event RequestAuditEvent) []string {
	topics := []string{r.topics.Events}

	if event.TotalEntities() == 0 {
		if r.topics.Clean != "" {
			topics = append(topics, r.topics.Clean)
		}
		return topics
	}

	for category := range event.CategoryCounts {
		if _, ok := secretCategories[category]; ok && r.topics.Secrets != "" {
			topics = append(topics, r.topics.Secrets)
			break
		}
	}

	return topics
}

// Package sentinel fans escalation outcomes out to operator webhook
// endpoints. Delivery is best-effort and asynchronous; the escalation chain
// never blocks on a webhook.
package sentinel

// SinkConfig defines one webhook alert destination.
type SinkConfig struct {
	URL        string            `yaml:"url"        json:"url"`
	Format     string            `yaml:"format"     json:"format"`     // "generic", "slack", "pagerduty"
	Severities []string          `yaml:"severities" json:"severities"` // e.g. ["high", "critical"]
	Headers    map[string]string `yaml:"headers"    json:"headers"`
}

// Event is the payload sent to webhook endpoints.
type Event struct {
	Timestamp string `json:"timestamp"`
	Module    string `json:"module"`
	Subject   string `json:"subject,omitempty"`
	Severity  string `json:"severity"`
	Action    string `json:"action"`
	AlertID   string `json:"alert_id"`
	Hash      string `json:"hash,omitempty"`
}

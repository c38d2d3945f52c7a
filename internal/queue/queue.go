package queue

// EnrichJob asks the worker to run media enrichment and the AI arbiter for
// one persisted message, off the webhook-acknowledgment critical path.
type EnrichJob struct {
	MessageID string `json:"messageId"`
	MediaRef  string `json:"mediaRef,omitempty"`
	Attempt   int    `json:"attempt"`
}

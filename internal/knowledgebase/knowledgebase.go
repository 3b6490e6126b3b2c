// Package knowledgebase defines the Overseer's advisory-only external
// collaborator: a retrieval-augmented knowledge base consulted for
// context on anomalies and request-gate actions. It never blocks or
// auto-corrects — only surfaces hints for an operator.
package knowledgebase

import "context"

// Priority enumerates an Advisory's urgency. Only High is ever logged as
// a warning; the rest are informational.
type Priority string

const (
	PriorityInfo Priority = "info"
	PriorityWarning Priority = "warning"
	PriorityHigh    Priority = "high"
)

// Advisory is one piece of contextual guidance returned for a query.
type Advisory struct {
	Summary  string   `json:"summary"`
	Priority Priority `json:"priority"`
	Source   string   `json:"source,omitempty"`
}

// KnowledgeBase is the read-only oracle consulted by the Monitor loop
// (for anomalies) and the request gate's Advisory predicate (for
// actions). Implementations must never mutate Overseer/Reaper state.
type KnowledgeBase interface {
	Query(ctx context.Context, subject string, params map[string]interface{}) ([]Advisory, error)
}

// Noop is a zero-dependency KnowledgeBase that always returns no
// advisories — the default when no retrieval backend is configured, so
// the request gate and monitor loop still have a collaborator to call.
type Noop struct{}

// Query always returns an empty, error-free result.
func (Noop) Query(ctx context.Context, subject string, params map[string]interface{}) ([]Advisory, error) {
	return nil, nil
}

package model

import "time"

const (
	EventInsightSaved   = "context_insight.saved"
	EventInsightUpdated = "context_insight.updated"
	EventInsightDeleted = "context_insight.deleted"
)

// InsightEvent announces a change to the insights of a session.
type InsightEvent struct {
	Type       string          `json:"type"`
	SessionID  string          `json:"session_id"`
	Insight    *ContextInsight `json:"insight,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

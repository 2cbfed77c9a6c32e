// Package model defines the data model shared by the analytics compiler:
// tasks, sessions, events, metadata classification, and the request/row
// types of the aggregation API.
package model

// Flag values recorded on a task after evaluation.
const (
	FlagSuccess = "success"
	FlagFailure = "failure"
)

// ScoreTypeConfidence marks an event as a tag (categorical annotation)
// rather than a numeric score. Only confidence events count for the
// tag-based metrics.
const ScoreTypeConfidence = "confidence"

// Task is a single interaction record. It is created on ingestion and
// immutable once aggregated, except for the derived fields written by
// backfills (TaskPosition here, SessionLength on Session).
type Task struct {
	ID        string         `bson:"id" json:"id"`
	ProjectID string         `bson:"project_id" json:"project_id"`
	SessionID *string        `bson:"session_id,omitempty" json:"session_id,omitempty"`
	CreatedAt int64          `bson:"created_at" json:"created_at"` // epoch seconds
	Flag      *string        `bson:"flag,omitempty" json:"flag,omitempty"`
	Metadata  map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
	Events    []Event        `bson:"events,omitempty" json:"events,omitempty"`

	// TaskPosition is the 1-based ordinal of the task within its session,
	// ordered by CreatedAt. Backfilled lazily; zero until computed.
	TaskPosition int `bson:"task_position,omitempty" json:"task_position,omitempty"`
}

// Session groups related tasks.
type Session struct {
	ID        string `bson:"id" json:"id"`
	ProjectID string `bson:"project_id" json:"project_id"`
	CreatedAt int64  `bson:"created_at" json:"created_at"`

	// SessionLength is the number of tasks in the session. Backfilled
	// lazily; nil until computed.
	SessionLength *int `bson:"session_length,omitempty" json:"session_length,omitempty"`
}

// Event is an annotation attached to a task.
type Event struct {
	EventName       string          `bson:"event_name" json:"event_name"`
	EventDefinition EventDefinition `bson:"event_definition" json:"event_definition"`
}

// EventDefinition carries the scoring configuration of an event.
type EventDefinition struct {
	ScoreRangeSettings ScoreRangeSettings `bson:"score_range_settings" json:"score_range_settings"`
}

// ScoreRangeSettings describes how an event is scored.
type ScoreRangeSettings struct {
	ScoreType string `bson:"score_type" json:"score_type"`
}

// IsTag reports whether the event is a confidence-scored tag.
func (e Event) IsTag() bool {
	return e.EventDefinition.ScoreRangeSettings.ScoreType == ScoreTypeConfidence
}

// UserProfile is the per-user rollup produced by the user profile
// aggregator: task volume, outcome quality, token usage, and the
// deduplicated sessions and events the user touched.
type UserProfile struct {
	UserID           string    `bson:"user_id" json:"user_id"`
	NbTasks          int       `bson:"nb_tasks" json:"nb_tasks"`
	AvgSuccessRate   float64   `bson:"avg_success_rate" json:"avg_success_rate"`
	AvgSessionLength *float64  `bson:"avg_session_length,omitempty" json:"avg_session_length,omitempty"`
	TotalTokens      int64     `bson:"total_tokens" json:"total_tokens"`
	Events           []Event   `bson:"events" json:"events"`
	Sessions         []Session `bson:"sessions" json:"sessions"`
	TaskIDs          []string  `bson:"tasks_id" json:"tasks_id"`
}

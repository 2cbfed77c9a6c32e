// Package miharu is the public API for embedding the Miharu analytics
// engine: dynamic compilation of declarative (metric, dimension, filter)
// requests into aggregation pipelines over interaction records.
package miharu

// TimeRange filters tasks by creation time (epoch seconds, inclusive).
type TimeRange struct {
	From *int64
	To   *int64
}

// Filters is the structured filter specification handed to the
// FilterCompiler. The aggregation core never interprets it directly.
type Filters struct {
	TimeRange *TimeRange
	Flag      *string
	EventName *string
	SessionID *string
	Metadata  map[string]string
}

// AggregationRequest describes one chart: metric M broken down by
// dimension D, restricted by Filters. Metric and breakdown names are
// lower-cased before use; a literal "none" breakdown disables grouping.
type AggregationRequest struct {
	ProjectID     string
	Metric        string
	MetadataField string
	BreakdownBy   string
	Filters       Filters
}

// AggregationRow is one output row. BreakdownBy values are unique within
// one response. Stack is present only for the tag metrics; for
// tags_distribution its values sum to 1 per row.
type AggregationRow struct {
	BreakdownBy any
	Metric      float64
	Stack       map[string]float64
}

// UserProfile is a curated per-user rollup: task volume, outcome quality,
// token usage, and the deduplicated sessions and tag events the user
// touched.
type UserProfile struct {
	UserID           string
	NbTasks          int
	AvgSuccessRate   float64
	AvgSessionLength *float64
	TotalTokens      int64
	EventNames       []string
	SessionIDs       []string
	TaskIDs          []string
}

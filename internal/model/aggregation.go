package model

import (
	"fmt"
	"strings"
)

// MaxAggregationRows caps the number of rows returned by one aggregation.
// Excess groups are truncated after sorting, so the returned subset is
// deterministic for stable input data.
const MaxAggregationRows = 200

// Metric identifies the aggregation applied within each breakdown group.
// A closed enum: compilation is an exhaustive switch, and unsupported
// names are rejected at parse time rather than silently ignored.
type Metric int

const (
	MetricNbMessages Metric = iota
	MetricNbSessions
	MetricAvgSuccessRate
	MetricAvgSessionLength
	MetricTagsCount
	MetricTagsDistribution
	MetricSum
	MetricAvg
)

var metricNames = map[string]Metric{
	"nb_messages":        MetricNbMessages,
	"nb_sessions":        MetricNbSessions,
	"avg_success_rate":   MetricAvgSuccessRate,
	"avg_session_length": MetricAvgSessionLength,
	"tags_count":         MetricTagsCount,
	"tags_distribution":  MetricTagsDistribution,
	"sum":                MetricSum,
	"avg":                MetricAvg,
}

// ParseMetric resolves a metric name (case-insensitive) to its enum value.
func ParseMetric(s string) (Metric, error) {
	m, ok := metricNames[strings.ToLower(s)]
	if !ok {
		return 0, fmt.Errorf("metric %q: %w", s, ErrUnknownMetric)
	}
	return m, nil
}

// String returns the wire name of the metric.
func (m Metric) String() string {
	for name, v := range metricNames {
		if v == m {
			return name
		}
	}
	return fmt.Sprintf("metric(%d)", int(m))
}

// NeedsMetadataField reports whether the metric requires a numeric
// metadata field parameter.
func (m Metric) NeedsMetadataField() bool {
	return m == MetricSum || m == MetricAvg
}

// DimensionKind distinguishes the derived breakdown dimensions from plain
// field references.
type DimensionKind int

const (
	// DimensionNone groups by the task id: one row per record.
	DimensionNone DimensionKind = iota
	DimensionDay
	DimensionWeek
	DimensionMonth
	DimensionSessionLength
	DimensionTaskPosition
	DimensionTaggerName
	// DimensionField is a stored field reference: either a discovered
	// metadata key (resolved to metadata.<key>) or a literal field path.
	DimensionField
)

// Dimension is the breakdown axis of a chart. Derived dimensions carry no
// parameters; DimensionField carries the referenced field name.
type Dimension struct {
	Kind  DimensionKind
	Field string
}

// ParseDimension resolves a breakdown name (case-insensitive) to a
// Dimension. An empty or literal "none" name disables grouping. Names that
// match no derived dimension are field references; whether they address a
// metadata key or a stored column is decided later against the classifier.
func ParseDimension(s string) Dimension {
	switch strings.ToLower(s) {
	case "", "none":
		return Dimension{Kind: DimensionNone}
	case "day":
		return Dimension{Kind: DimensionDay}
	case "week":
		return Dimension{Kind: DimensionWeek}
	case "month":
		return Dimension{Kind: DimensionMonth}
	case "session_length":
		return Dimension{Kind: DimensionSessionLength}
	case "task_position":
		return Dimension{Kind: DimensionTaskPosition}
	case "tagger_name":
		return Dimension{Kind: DimensionTaggerName}
	default:
		return Dimension{Kind: DimensionField, Field: strings.ToLower(s)}
	}
}

// TimeRange filters tasks by creation time (epoch seconds, inclusive).
type TimeRange struct {
	From *int64 `json:"from,omitempty"`
	To   *int64 `json:"to,omitempty"`
}

// TaskFilters is the structured filter specification consumed by the
// filter compiler. The full predicate language lives outside the
// aggregation core; these are the fields the default compiler understands.
type TaskFilters struct {
	TimeRange *TimeRange        `json:"time_range,omitempty"`
	Flag      *string           `json:"flag,omitempty"`
	EventName *string           `json:"event_name,omitempty"`
	SessionID *string           `json:"session_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AggregationRequest is the sole input of the aggregation compiler besides
// store contents. Metric and breakdown names arrive as strings from the
// API layer and are parsed before compilation.
type AggregationRequest struct {
	ProjectID     string      `json:"project_id"`
	Metric        string      `json:"metric"`
	MetadataField string      `json:"metadata_field,omitempty"`
	BreakdownBy   string      `json:"breakdown_by,omitempty"`
	Filters       TaskFilters `json:"filters"`
}

// AggregationRow is one output row of an aggregation. BreakdownBy is the
// group key (a scalar whose type depends on the dimension). Metric carries
// the aggregated number; Stack is set instead for the tag metrics, mapping
// tag name to count (tags_count) or share (tags_distribution).
type AggregationRow struct {
	BreakdownBy any                `bson:"breakdown_by" json:"breakdown_by"`
	Metric      float64            `bson:"metric,omitempty" json:"metric,omitempty"`
	Stack       map[string]float64 `bson:"stack,omitempty" json:"stack,omitempty"`
}

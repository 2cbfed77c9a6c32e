package model

import "errors"

// Sentinel errors of the aggregation core. Each maps to a caller-visible
// 4xx at the API boundary; store and driver failures are wrapped and
// propagate unchanged as 5xx. Match with errors.Is.
var (
	// ErrUnknownMetric is returned for a metric name outside the
	// supported enumeration.
	ErrUnknownMetric = errors.New("unknown metric")

	// ErrInvalidMetricField is returned when sum/avg is requested on a
	// field that is not classified numeric for the project.
	ErrInvalidMetricField = errors.New("metric requires a number metadata field")

	// ErrUnsupportedOperation is returned for operations the classifier
	// does not support, such as enumerating number field values.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrNotFound is returned when a specifically requested entity
	// (e.g. a user profile) has no matching documents. Distinguished
	// from an empty success.
	ErrNotFound = errors.New("not found")
)

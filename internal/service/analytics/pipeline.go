package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/miharu-ai/miharu/internal/model"
	"github.com/miharu-ai/miharu/internal/store"
)

// RunAggregation compiles an AggregationRequest into a pipeline and
// executes it. The assembly order is fixed: match, classify, derive,
// aggregate, sort, project, execute. Output rows are sorted ascending by
// breakdown value then metric value and capped at
// model.MaxAggregationRows; excess groups are silently truncated after
// sorting, so identical inputs yield identical output.
func (s *Service) RunAggregation(ctx context.Context, req model.AggregationRequest) ([]model.AggregationRow, error) {
	start := time.Now()

	metric, err := model.ParseMetric(req.Metric)
	if err != nil {
		return nil, fmt.Errorf("analytics: %w", err)
	}
	metadataField := strings.ToLower(req.MetadataField)
	dim := model.ParseDimension(req.BreakdownBy)

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("miharu.project_id", req.ProjectID),
		attribute.String("miharu.metric", metric.String()),
		attribute.String("miharu.breakdown_by", req.BreakdownBy),
	)
	s.logger.Info("running aggregation",
		"project_id", req.ProjectID,
		"metric", metric.String(),
		"metadata_field", metadataField,
		"breakdown_by", req.BreakdownBy,
	)

	// 1. Filter predicate and target collection come from the filter
	// compiler; the aggregation core does not validate filter syntax.
	match, collection, err := s.filters.Compile(ctx, req.ProjectID, req.Filters, store.CollectionTasksWithEvents)
	if err != nil {
		return nil, fmt.Errorf("analytics: compile filters: %w", err)
	}
	pipeline := []bson.M{{"$match": match}}

	// 2. Classify dynamic metadata fields only when the request references
	// one; a plain count query skips the scan entirely. One scan feeds
	// both classifications.
	categoryFields := fieldSet(reservedCategoryFields)
	numberFields := fieldSet(reservedNumberFields)
	if metadataField != "" || dim.Kind == model.DimensionField {
		maps, err := s.fetchMetadataMaps(ctx, req.ProjectID)
		if err != nil {
			return nil, err
		}
		categoryFields = fieldSet(reservedCategoryFields, classifyKeys(maps, model.KindText))
		numberFields = fieldSet(reservedNumberFields, classifyKeys(maps, model.KindNumber))
	}

	// 3. Resolve the breakdown column, possibly mutating the pipeline and
	// triggering an idempotent backfill.
	dimStages, breakdownCol, err := s.resolveDimension(ctx, req.ProjectID, dim, categoryFields)
	if err != nil {
		return nil, err
	}
	pipeline = append(pipeline, dimStages...)

	// avg_session_length requires the session join; applying it here keeps
	// the metric compiler pure. The join is skipped if the session_length
	// dimension already added it.
	if metric == model.MetricAvgSessionLength {
		pipeline = ensureSessionJoin(pipeline)
	}

	// 4. Accumulation stages.
	metricStages, err := compileMetric(metric, metadataField, breakdownCol, numberFields)
	if err != nil {
		return nil, err
	}
	pipeline = append(pipeline, metricStages...)

	// 5-6. Deterministic ordering, then drop internal identifiers.
	pipeline = append(pipeline,
		bson.M{"$sort": bson.M{"breakdown_by": 1, "metric": 1}},
		bson.M{"$project": bson.M{"_id": 0}},
	)

	// 7. Execute with the row cap.
	docs, err := s.store.Aggregate(ctx, collection, pipeline, model.MaxAggregationRows)
	if err != nil {
		return nil, err
	}
	rows, err := store.DecodeAll[model.AggregationRow](docs)
	if err != nil {
		return nil, err
	}

	s.aggregationDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
	return rows, nil
}

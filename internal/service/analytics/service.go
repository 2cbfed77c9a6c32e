// Package analytics compiles declarative (metric, dimension, filter)
// requests into aggregation pipelines and executes them against the
// document store.
//
// The compiler has four parts: the schema classifier discovers which
// dynamic metadata keys exist per project and whether they hold numbers or
// categories; the dimension resolver materializes derived breakdown
// dimensions (time buckets, session length, task position, tag explosion);
// the metric compiler appends the accumulation stages; and the assembler
// fixes the stage order, executes, and bounds the result. The user profile
// aggregator is a sibling query shape built on the same primitives.
package analytics

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"

	"github.com/miharu-ai/miharu/internal/filter"
	"github.com/miharu-ai/miharu/internal/store"
	"github.com/miharu-ai/miharu/internal/telemetry"
)

// Reserved metadata fields are always classified, whether or not any
// document currently carries them. Live discovery extends these lists per
// project at query time.
var (
	reservedCategoryFields = []string{"flag", "language", "model", "user_id", "version_id"}
	reservedNumberFields   = []string{"completion_tokens", "latency", "prompt_tokens", "total_tokens"}
)

// Service is the analytics aggregation compiler. All operations are
// stateless reads over the shared store except for the idempotent
// backfills triggered by derived dimensions.
type Service struct {
	store      store.Store
	filters    filter.Compiler
	backfiller Backfiller
	logger     *slog.Logger

	aggregationDuration metric.Float64Histogram
}

// New creates an analytics Service. backfiller may be nil, in which case
// the store-backed default is used.
func New(st store.Store, filters filter.Compiler, backfiller Backfiller, logger *slog.Logger) *Service {
	if backfiller == nil {
		backfiller = &StoreBackfiller{store: st, logger: logger}
	}
	meter := telemetry.Meter("miharu/analytics")
	aggDur, _ := meter.Float64Histogram("miharu.aggregation.duration",
		metric.WithDescription("Time to compile and execute an aggregation pipeline (ms)"),
		metric.WithUnit("ms"),
	)
	return &Service{
		store:               st,
		filters:             filters,
		backfiller:          backfiller,
		logger:              logger,
		aggregationDuration: aggDur,
	}
}

// fieldSet builds a membership set seeded with reserved fields.
func fieldSet(reserved []string, discovered ...[]string) map[string]bool {
	set := make(map[string]bool, len(reserved))
	for _, f := range reserved {
		set[f] = true
	}
	for _, keys := range discovered {
		for _, f := range keys {
			set[f] = true
		}
	}
	return set
}

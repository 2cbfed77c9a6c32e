package miharu

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/miharu-ai/miharu/internal/config"
	"github.com/miharu-ai/miharu/internal/filter"
	"github.com/miharu-ai/miharu/internal/model"
	"github.com/miharu-ai/miharu/internal/service/analytics"
	"github.com/miharu-ai/miharu/internal/store"
	"github.com/miharu-ai/miharu/internal/telemetry"
)

// Sentinel errors of the public API. Each maps to a caller-visible 4xx at
// an API boundary; all other failures are infrastructure errors (5xx).
// Match with errors.Is.
var (
	ErrUnknownMetric        = model.ErrUnknownMetric
	ErrInvalidMetricField   = model.ErrInvalidMetricField
	ErrUnsupportedOperation = model.ErrUnsupportedOperation
	ErrNotFound             = model.ErrNotFound
)

// Engine is the analytics engine lifecycle. Construct with New(), release
// with Close(). Engine has no public fields — use New() options to
// configure it.
type Engine struct {
	cfg          config.Config
	store        *store.Mongo
	svc          *analytics.Service
	otelShutdown func(context.Context) error
	logger       *slog.Logger
	version      string
}

// New initialises the engine: loads configuration, connects to the
// document store, and wires the aggregation compiler. It starts no
// goroutines.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.mongoURL != "" {
		cfg.MongoURL = o.mongoURL
	}
	if o.mongoDatabase != "" {
		cfg.MongoDatabase = o.mongoDatabase
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("miharu starting", "version", version, "database", cfg.MongoDatabase)

	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	st, err := store.NewMongo(ctx, cfg.MongoURL, cfg.MongoDatabase, logger)
	if err != nil {
		_ = otelShutdown(ctx)
		return nil, fmt.Errorf("store: %w", err)
	}

	var fc filter.Compiler = filter.Default{}
	if o.filterCompiler != nil {
		fc = filterCompilerAdapter{o.filterCompiler}
	}
	var bf analytics.Backfiller
	if o.backfiller != nil {
		bf = o.backfiller
	}

	return &Engine{
		cfg:          cfg,
		store:        st,
		svc:          analytics.New(st, fc, bf, logger),
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Close disconnects the store and flushes telemetry.
func (e *Engine) Close(ctx context.Context) error {
	var firstErr error
	if err := e.store.Close(ctx); err != nil {
		firstErr = err
	}
	if err := e.otelShutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Aggregate compiles and executes one aggregation request. Rows are
// sorted ascending by breakdown value then metric value and capped at 200.
func (e *Engine) Aggregate(ctx context.Context, req AggregationRequest) ([]AggregationRow, error) {
	rows, err := e.svc.RunAggregation(ctx, model.AggregationRequest{
		ProjectID:     req.ProjectID,
		Metric:        req.Metric,
		MetadataField: req.MetadataField,
		BreakdownBy:   req.BreakdownBy,
		Filters:       toInternalFilters(req.Filters),
	})
	if err != nil {
		return nil, err
	}
	out := make([]AggregationRow, len(rows))
	for i, r := range rows {
		out[i] = AggregationRow{BreakdownBy: r.BreakdownBy, Metric: r.Metric, Stack: r.Stack}
	}
	return out, nil
}

// UserProfiles rolls up per-user statistics. With a non-nil userID the
// result is restricted to that user; an empty result is ErrNotFound.
func (e *Engine) UserProfiles(ctx context.Context, projectID string, userID *string) ([]UserProfile, error) {
	profiles, err := e.svc.UserProfiles(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	out := make([]UserProfile, len(profiles))
	for i, p := range profiles {
		out[i] = toPublicProfile(p)
	}
	return out, nil
}

// MetadataFields returns the project's metadata keys of the given kind
// ("number" or "string").
func (e *Engine) MetadataFields(ctx context.Context, projectID, kind string) ([]string, error) {
	k, err := model.ParseValueKind(kind)
	if err != nil {
		return nil, err
	}
	return e.svc.ClassifyMetadataFields(ctx, projectID, k)
}

// MetadataFieldValues returns the deduplicated values of every categorical
// metadata key in the project.
func (e *Engine) MetadataFieldValues(ctx context.Context, projectID string) (map[string][]string, error) {
	return e.svc.CollectMetadataFieldValues(ctx, projectID, model.KindText)
}

// CountDistinctMetadataValues counts the distinct non-null values of one
// metadata field across the project's tasks.
func (e *Engine) CountDistinctMetadataValues(ctx context.Context, projectID, field string) (int, error) {
	return e.svc.CountDistinctMetadataValues(ctx, projectID, store.CollectionTasks, field)
}

// AverageTasksPerMetadataValue returns the average task count per distinct
// value of one metadata field.
func (e *Engine) AverageTasksPerMetadataValue(ctx context.Context, projectID, field string) (float64, error) {
	return e.svc.AverageTasksPerMetadataValue(ctx, projectID, store.CollectionTasks, field)
}

// TopDecileCount returns the task count of the group at the top 10%
// threshold when grouping tasks by the given metadata field.
func (e *Engine) TopDecileCount(ctx context.Context, projectID, field string) (int64, error) {
	return e.svc.TopDecileCount(ctx, projectID, store.CollectionTasks, "metadata."+field)
}

// BottomDecileCount returns the task count of the group at the bottom 10%
// threshold when grouping tasks by the given metadata field.
func (e *Engine) BottomDecileCount(ctx context.Context, projectID, field string) (int64, error) {
	return e.svc.BottomDecileCount(ctx, projectID, store.CollectionTasks, "metadata."+field)
}

// filterCompilerAdapter bridges the public FilterCompiler onto the
// internal interface. Conversion helpers live here because this is the
// only package that sees both sides of the boundary.
type filterCompilerAdapter struct {
	fc FilterCompiler
}

func (a filterCompilerAdapter) Compile(ctx context.Context, projectID string, filters model.TaskFilters, baseCollection string) (bson.M, string, error) {
	return a.fc.Compile(ctx, projectID, toPublicFilters(filters), baseCollection)
}

func toInternalFilters(f Filters) model.TaskFilters {
	out := model.TaskFilters{
		Flag:      f.Flag,
		EventName: f.EventName,
		SessionID: f.SessionID,
		Metadata:  f.Metadata,
	}
	if f.TimeRange != nil {
		out.TimeRange = &model.TimeRange{From: f.TimeRange.From, To: f.TimeRange.To}
	}
	return out
}

func toPublicFilters(f model.TaskFilters) Filters {
	out := Filters{
		Flag:      f.Flag,
		EventName: f.EventName,
		SessionID: f.SessionID,
		Metadata:  f.Metadata,
	}
	if f.TimeRange != nil {
		out.TimeRange = &TimeRange{From: f.TimeRange.From, To: f.TimeRange.To}
	}
	return out
}

func toPublicProfile(p model.UserProfile) UserProfile {
	eventNames := make([]string, len(p.Events))
	for i, ev := range p.Events {
		eventNames[i] = ev.EventName
	}
	sessionIDs := make([]string, len(p.Sessions))
	for i, s := range p.Sessions {
		sessionIDs[i] = s.ID
	}
	return UserProfile{
		UserID:           p.UserID,
		NbTasks:          p.NbTasks,
		AvgSuccessRate:   p.AvgSuccessRate,
		AvgSessionLength: p.AvgSessionLength,
		TotalTokens:      p.TotalTokens,
		EventNames:       eventNames,
		SessionIDs:       sessionIDs,
		TaskIDs:          p.TaskIDs,
	}
}

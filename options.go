package miharu

import "log/slog"

// Option configures an Engine.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	mongoURL       string
	mongoDatabase  string
	logger         *slog.Logger
	version        string
	filterCompiler FilterCompiler
	backfiller     Backfiller
}

// WithMongoURL overrides the store connection string from config
// (MONGODB_URL env var).
func WithMongoURL(url string) Option {
	return func(o *resolvedOptions) { o.mongoURL = url }
}

// WithMongoDatabase overrides the database name from config
// (MIHARU_MONGO_DATABASE env var).
func WithMongoDatabase(name string) Option {
	return func(o *resolvedOptions) { o.mongoDatabase = name }
}

// WithLogger sets the structured logger for the Engine.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in logs and telemetry.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithFilterCompiler replaces the built-in structured-field filter
// compiler. Only the last call wins.
func WithFilterCompiler(fc FilterCompiler) Option {
	return func(o *resolvedOptions) { o.filterCompiler = fc }
}

// WithBackfiller replaces the store-backed derived-field backfiller.
// Only the last call wins.
func WithBackfiller(b Backfiller) Option {
	return func(o *resolvedOptions) { o.backfiller = b }
}

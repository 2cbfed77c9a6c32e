// Command miharu runs one analytics query against the configured document
// store and prints the result as JSON. It is the operational entrypoint
// for the aggregation compiler; the HTTP API and job orchestration live in
// separate services that embed the engine.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/miharu-ai/miharu"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("MIHARU_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	var (
		projectID     = flag.String("project", "", "project id (required)")
		metricName    = flag.String("metric", "nb_messages", "metric to compute")
		metadataField = flag.String("metadata-field", "", "metadata field for sum/avg metrics")
		breakdownBy   = flag.String("breakdown-by", "none", "breakdown dimension")
		flagFilter    = flag.String("flag", "", "restrict to tasks with this flag")
		users         = flag.Bool("users", false, "aggregate user profiles instead of a chart")
		userID        = flag.String("user", "", "restrict user profiles to one user id")
	)
	flag.Parse()

	if *projectID == "" {
		return fmt.Errorf("-project is required")
	}

	engine, err := miharu.New(ctx,
		miharu.WithLogger(logger),
		miharu.WithVersion(version),
	)
	if err != nil {
		return fmt.Errorf("init engine: %w", err)
	}
	defer func() { _ = engine.Close(context.Background()) }()

	var result any
	if *users {
		var uid *string
		if *userID != "" {
			uid = userID
		}
		result, err = engine.UserProfiles(ctx, *projectID, uid)
	} else {
		req := miharu.AggregationRequest{
			ProjectID:     *projectID,
			Metric:        *metricName,
			MetadataField: *metadataField,
			BreakdownBy:   *breakdownBy,
		}
		if *flagFilter != "" {
			req.Filters.Flag = flagFilter
		}
		result, err = engine.Aggregate(ctx, req)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

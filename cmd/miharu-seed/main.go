// Command miharu-seed populates a development database with synthetic
// interaction records so the analytics pipelines have something to chew
// on. Not for production use.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/miharu-ai/miharu/internal/config"
	"github.com/miharu-ai/miharu/internal/model"
	"github.com/miharu-ai/miharu/internal/store"
)

var tagNames = []string{"helpful", "unhelpful", "off_topic", "follow_up"}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(context.Background(), logger); err != nil {
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	var (
		projectID = flag.String("project", "demo", "project id to seed")
		sessions  = flag.Int("sessions", 20, "number of sessions")
		perSess   = flag.Int("tasks-per-session", 5, "tasks per session")
		seed      = flag.Int64("seed", 1, "PRNG seed")
	)
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := store.NewMongo(ctx, cfg.MongoURL, cfg.MongoDatabase, logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close(context.Background()) }()

	rng := rand.New(rand.NewSource(*seed))
	now := time.Now().Unix()

	sessionDocs := make([]any, 0, *sessions)
	taskDocs := make([]any, 0, *sessions**perSess)
	for i := 0; i < *sessions; i++ {
		sessionID := uuid.NewString()
		userID := fmt.Sprintf("user_%02d", rng.Intn(8))
		sessionDocs = append(sessionDocs, model.Session{
			ID:        sessionID,
			ProjectID: *projectID,
			CreatedAt: now - int64(i)*3600,
		})
		for j := 0; j < *perSess; j++ {
			flagValue := model.FlagSuccess
			if rng.Float64() < 0.3 {
				flagValue = model.FlagFailure
			}
			task := model.Task{
				ID:        uuid.NewString(),
				ProjectID: *projectID,
				SessionID: &sessionID,
				CreatedAt: now - int64(i)*3600 + int64(j)*60,
				Flag:      &flagValue,
				Metadata: map[string]any{
					"user_id":      userID,
					"model":        "gpt-4o-mini",
					"total_tokens": 100 + rng.Intn(900),
				},
			}
			if rng.Float64() < 0.6 {
				task.Events = []model.Event{{
					EventName: tagNames[rng.Intn(len(tagNames))],
					EventDefinition: model.EventDefinition{
						ScoreRangeSettings: model.ScoreRangeSettings{
							ScoreType: model.ScoreTypeConfidence,
						},
					},
				}}
			}
			taskDocs = append(taskDocs, task)
		}
	}

	db := st.Database()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := db.Collection(store.CollectionSessions).InsertMany(gctx, sessionDocs)
		return err
	})
	g.Go(func() error {
		// The ingestion pipeline normally maintains tasks_with_events as a
		// denormalized view; in a dev database the task documents already
		// embed their events, so both collections get the same docs.
		if _, err := db.Collection(store.CollectionTasks).InsertMany(gctx, taskDocs); err != nil {
			return err
		}
		_, err := db.Collection(store.CollectionTasksWithEvents).InsertMany(gctx, taskDocs)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("insert fixtures: %w", err)
	}

	logger.Info("seeded project",
		"project_id", *projectID,
		"sessions", len(sessionDocs),
		"tasks", len(taskDocs),
	)
	return nil
}

// Package testutil provides shared test infrastructure for integration
// tests that require a MongoDB container.
//
// Usage in TestMain:
//
//	func TestMain(m *testing.M) {
//	    tc := testutil.MustStartMongo()
//	    defer tc.Terminate()
//	    testStore, _ = tc.NewTestStore(context.Background(), logger)
//	    os.Exit(m.Run())
//	}
package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/miharu-ai/miharu/internal/store"
)

// TestContainer wraps a testcontainers container with a URI for connecting.
type TestContainer struct {
	Container testcontainers.Container
	URI       string
}

// MustStartMongo starts a MongoDB container. Calls os.Exit(1) on failure
// (suitable for TestMain).
func MustStartMongo() *TestContainer {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor: wait.ForLog("Waiting for connections").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "testutil: failed to start container: %v\n", err)
		os.Exit(1)
	}

	host, err := container.Host(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "testutil: failed to get container host: %v\n", err)
		os.Exit(1)
	}

	port, err := container.MappedPort(ctx, "27017")
	if err != nil {
		fmt.Fprintf(os.Stderr, "testutil: failed to get container port: %v\n", err)
		os.Exit(1)
	}

	uri := fmt.Sprintf("mongodb://%s:%s", host, port.Port())
	return &TestContainer{Container: container, URI: uri}
}

// NewTestStore connects a store.Mongo to this container using a unique
// database, so tests sharing the container stay isolated.
func (tc *TestContainer) NewTestStore(ctx context.Context, logger *slog.Logger) (*store.Mongo, error) {
	db := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	st, err := store.NewMongo(ctx, tc.URI, db, logger)
	if err != nil {
		return nil, fmt.Errorf("testutil: create store: %w", err)
	}
	return st, nil
}

// Terminate stops and removes the container.
func (tc *TestContainer) Terminate() {
	_ = tc.Container.Terminate(context.Background())
}

// TestLogger returns a logger configured for test output (warns only).
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

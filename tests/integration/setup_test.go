//go:build integration

package integration

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"galleyprobe/config"
	"galleyprobe/internal/app"
	"galleyprobe/internal/fakegalley"
	"galleyprobe/internal/storage"
)

// TestRunConfig configures how the probe is set up.
type TestRunConfig struct {
	// DBType is either "postgresql" or "mongodb"
	DBType string

	// Baselines opens the local baseline store
	Baselines bool
}

// TestRunFixture holds the fake galley and the probe wired to a real database.
type TestRunFixture struct {
	// App is the probe under test
	App *app.App

	// Fake is the in-process galley double
	Fake *fakegalley.Server

	// Config is the configuration App was built from
	Config *config.Config

	// PgPool is the PostgreSQL connection pool (for DB assertions)
	PgPool *pgxpool.Pool

	// MongoDb is the MongoDB database (for DB assertions)
	MongoDb *mongo.Database

	closed bool
}

// SetupTestRun starts a fake galley and builds an app recording into cfg.DBType.
func SetupTestRun(t *testing.T, cfg TestRunConfig) *TestRunFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fake := fakegalley.New(&fakegalley.Config{Logger: logger})
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)

	appCfg := buildAppConfig(t, cfg, ts.URL)

	application, err := app.New(GetTestContext(), app.Config{
		AppConfig: appCfg,
		Logger:    logger,
		Results:   true,
		Baselines: cfg.Baselines,
	})
	require.NoError(t, err, "failed to create app")

	fixture := &TestRunFixture{
		App:    application,
		Fake:   fake,
		Config: appCfg,
	}
	switch cfg.DBType {
	case storage.TypePostgreSQL:
		fixture.PgPool = GetPostgreSQLPool(t)
	case storage.TypeMongoDB:
		fixture.MongoDb = GetMongoDatabase(t)
	}

	t.Cleanup(func() { fixture.Shutdown(t) })
	return fixture
}

// FlushAndClose flushes pending results and closes the app.
// Call this before making any DB assertions.
func (f *TestRunFixture) FlushAndClose(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, f.App.Shutdown(ctx), "failed to shutdown app")
	f.closed = true
}

// Shutdown closes the app if the test has not already done so.
func (f *TestRunFixture) Shutdown(t *testing.T) {
	t.Helper()
	if f.closed {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = f.App.Shutdown(ctx)
	f.closed = true
}

// buildAppConfig creates an application config pointing both services at the fake.
func buildAppConfig(t *testing.T, cfg TestRunConfig, fakeURL string) *config.Config {
	t.Helper()

	appCfg := config.Default()
	appCfg.Services = map[string]config.ServiceConfig{
		"galley": {URL: fakeURL},
		"brig":   {URL: fakeURL},
	}
	appCfg.Logging.Format = "json"
	appCfg.Results.FlushInterval = 1
	appCfg.Results.BufferSize = 100
	appCfg.Results.RetentionDays = 0
	appCfg.Baseline.Local.Path = filepath.Join(t.TempDir(), "baselines.json")

	appCfg.Storage = backendFor(t, cfg.DBType).Storage
	return appCfg
}

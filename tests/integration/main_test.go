//go:build integration

// Package integration verifies what check runs leave in the results ledger.
// Tests run against real PostgreSQL and MongoDB instances using testcontainers-go.
package integration

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"galleyprobe/config"
	"galleyprobe/internal/storage"
)

const ledgerDatabase = "galleyprobe_test"

// backend is one containerized database together with the ledger storage
// opened on it, the same way the app opens it.
type backend struct {
	// Storage is the section tests copy into their app config
	Storage config.StorageConfig

	conn      storage.Storage
	terminate func(context.Context) error
}

var (
	backends = map[string]*backend{}

	testCtx    context.Context
	cancelFunc context.CancelFunc
)

// TestMain starts both databases in parallel and tears them down after the run.
func TestMain(m *testing.M) {
	testCtx, cancelFunc = context.WithTimeout(context.Background(), 10*time.Minute)

	type started struct {
		name string
		b    *backend
		err  error
	}
	starters := map[string]func(context.Context) (*backend, error){
		storage.TypePostgreSQL: startPostgreSQL,
		storage.TypeMongoDB:    startMongoDB,
	}
	results := make(chan started, len(starters))
	for name, start := range starters {
		go func() {
			b, err := start(testCtx)
			results <- started{name: name, b: b, err: err}
		}()
	}

	var errs []error
	for range starters {
		r := <-results
		if r.b != nil {
			backends[r.name] = r.b
		}
		if r.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.name, r.err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		log.Printf("Container setup failed: %v", err)
		cleanup()
		cancelFunc()
		os.Exit(1)
	}
	log.Println("Ledger databases ready")

	code := m.Run()

	cleanup()
	cancelFunc()
	os.Exit(code)
}

func startPostgreSQL(ctx context.Context) (*backend, error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(ledgerDatabase),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start container: %w", err)
	}
	b := &backend{terminate: func(ctx context.Context) error { return container.Terminate(ctx) }}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return b, fmt.Errorf("failed to get connection string: %w", err)
	}
	b.Storage = config.StorageConfig{
		Type:       storage.TypePostgreSQL,
		PostgreSQL: config.PostgreSQLConfig{URL: url, MaxConns: 4},
	}
	return b, b.open(ctx)
}

func startMongoDB(ctx context.Context) (*backend, error) {
	container, err := mongodb.Run(ctx, "mongo:7")
	if err != nil {
		return nil, fmt.Errorf("failed to start container: %w", err)
	}
	b := &backend{terminate: func(ctx context.Context) error { return container.Terminate(ctx) }}

	url, err := container.ConnectionString(ctx)
	if err != nil {
		return b, fmt.Errorf("failed to get connection string: %w", err)
	}
	b.Storage = config.StorageConfig{
		Type:    storage.TypeMongoDB,
		MongoDB: config.MongoDBConfig{URL: url, Database: ledgerDatabase},
	}
	return b, b.open(ctx)
}

// open connects through the storage layer, which pings before returning.
func (b *backend) open(ctx context.Context) error {
	conn, err := storage.New(ctx, storage.FromConfig(b.Storage))
	if err != nil {
		return err
	}
	b.conn = conn
	return nil
}

func cleanup() {
	for name, b := range backends {
		if b.conn != nil {
			if err := b.conn.Close(); err != nil {
				log.Printf("Failed to close %s storage: %v", name, err)
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := b.terminate(ctx); err != nil {
			log.Printf("Failed to terminate %s container: %v", name, err)
		}
		cancel()
	}
}

// backendFor returns the running backend for dbType or fails the test.
func backendFor(t *testing.T, dbType string) *backend {
	t.Helper()
	b, ok := backends[dbType]
	if !ok || b.conn == nil {
		t.Fatalf("no running %s backend", dbType)
	}
	return b
}

// GetPostgreSQLPool returns the pool the storage layer opened on PostgreSQL.
func GetPostgreSQLPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	pool, ok := backendFor(t, storage.TypePostgreSQL).conn.PostgreSQLPool().(*pgxpool.Pool)
	if !ok {
		t.Fatal("PostgreSQL storage has no pool")
	}
	return pool
}

// GetMongoDatabase returns the database the storage layer opened on MongoDB.
func GetMongoDatabase(t *testing.T) *mongo.Database {
	t.Helper()
	db, ok := backendFor(t, storage.TypeMongoDB).conn.MongoDatabase().(*mongo.Database)
	if !ok {
		t.Fatal("MongoDB storage has no database")
	}
	return db
}

// GetTestContext returns the shared test context.
func GetTestContext() context.Context {
	return testCtx
}

package results

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"galleyprobe/config"
	"galleyprobe/internal/storage"
)

// TypeMemory keeps results in process memory only.
const TypeMemory = "memory"

// Result holds the initialized results logger, its reader and the storage behind them.
// The caller is responsible for calling Close() to release resources.
type Result struct {
	Logger  LoggerInterface
	Reader  Reader
	Storage storage.Storage
}

// Close releases all resources held by the results ledger.
// Safe to call multiple times.
func (r *Result) Close() error {
	var errs []error
	if r.Logger != nil {
		if err := r.Logger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("logger close: %w", err))
		}
	}
	if r.Storage != nil {
		if err := r.Storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage close: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %w", errors.Join(errs...))
	}
	return nil
}

// New creates a results ledger from configuration.
// If recording is disabled, it returns a NoopLogger and no reader.
func New(ctx context.Context, cfg *config.Config) (*Result, error) {
	if !cfg.Results.Enabled {
		return &Result{Logger: &NoopLogger{}}, nil
	}

	logCfg := buildLoggerConfig(cfg.Results)

	if cfg.Storage.Type == TypeMemory {
		mem := NewMemoryStore()
		return &Result{
			Logger: NewLogger(mem, logCfg),
			Reader: mem,
		}, nil
	}

	st, err := storage.New(ctx, buildStorageConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	store, err := createStore(ctx, st, cfg.Results.RetentionDays)
	if err != nil {
		st.Close()
		return nil, err
	}

	reader, _ := store.(Reader)
	return &Result{
		Logger:  NewLogger(store, logCfg),
		Reader:  reader,
		Storage: st,
	}, nil
}

// NewReader opens read-only access to results kept in the given storage.
func NewReader(ctx context.Context, st storage.Storage) (Reader, error) {
	if st == nil {
		return nil, fmt.Errorf("storage is required")
	}
	store, err := createStore(ctx, st, 0)
	if err != nil {
		return nil, err
	}
	reader, ok := store.(Reader)
	if !ok {
		return nil, fmt.Errorf("storage type %s has no results reader", st.Type())
	}
	return reader, nil
}

// buildStorageConfig creates a storage.Config from the application config.
func buildStorageConfig(cfg *config.Config) storage.Config {
	return storage.FromConfig(cfg.Storage)
}

// createStore creates the Store for the given storage backend.
func createStore(ctx context.Context, st storage.Storage, retentionDays int) (Store, error) {
	switch st.Type() {
	case storage.TypeSQLite:
		return NewSQLiteStore(st.SQLiteDB(), retentionDays)

	case storage.TypePostgreSQL:
		pool, ok := st.PostgreSQLPool().(*pgxpool.Pool)
		if !ok || pool == nil {
			return nil, fmt.Errorf("invalid PostgreSQL pool type: %T", st.PostgreSQLPool())
		}
		return NewPostgreSQLStore(ctx, pool, retentionDays)

	case storage.TypeMongoDB:
		db, ok := st.MongoDatabase().(*mongo.Database)
		if !ok || db == nil {
			return nil, fmt.Errorf("invalid MongoDB database type: %T", st.MongoDatabase())
		}
		return NewMongoDBStore(ctx, db, retentionDays)

	default:
		return nil, fmt.Errorf("unknown storage type: %s", st.Type())
	}
}

// buildLoggerConfig creates a results.Config from config.ResultsConfig.
func buildLoggerConfig(c config.ResultsConfig) Config {
	cfg := Config{
		Enabled:       c.Enabled,
		BufferSize:    c.BufferSize,
		FlushInterval: time.Duration(c.FlushInterval) * time.Second,
		RetentionDays: c.RetentionDays,
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	return cfg
}

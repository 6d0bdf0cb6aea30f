package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/claude/workoutlog/internal/config"
)

// BlobStore persists opaque blobs by key. Put replaces the whole value and an
// absent key is reported through ok rather than an error.
type BlobStore interface {
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open connects the backend named by cfg.Backend. The postgres backend runs
// migrations before connecting.
func Open(ctx context.Context, cfg config.StorageConfig, log *slog.Logger) (BlobStore, error) {
	switch cfg.Backend {
	case "memory":
		log.Warn("using in-memory storage; workouts will not survive a restart")
		return NewMemoryStore(), nil
	case "sqlite", "":
		s, err := OpenSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		log.Info("sqlite storage opened", "path", cfg.SQLite.Path)
		return s, nil
	case "postgres":
		dsn := cfg.Postgres.DSN()
		if err := RunMigrations(dsn, cfg.Postgres.Migrations); err != nil {
			return nil, err
		}
		log.Info("migrations applied")
		db, err := New(ctx, dsn)
		if err != nil {
			return nil, err
		}
		log.Info("database connected")
		return db, nil
	case "minio":
		s, err := NewObjectStore(ctx, cfg.MinIO)
		if err != nil {
			return nil, err
		}
		log.Info("object storage connected", "endpoint", cfg.MinIO.Endpoint, "bucket", cfg.MinIO.Bucket)
		return s, nil
	}
	return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
}

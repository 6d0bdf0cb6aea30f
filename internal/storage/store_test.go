package storage

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/claude/workoutlog/internal/config"
)

// exerciseStore runs the BlobStore contract against any backend.
func exerciseStore(t *testing.T, s BlobStore) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "workouts"); err != nil || ok {
		t.Fatalf("Get on empty store = ok:%v err:%v, want absent", ok, err)
	}

	if err := s.Put(ctx, "workouts", []byte(`[{"id":"1"}]`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, "workouts", []byte(`[{"id":"2"}]`)); err != nil {
		t.Fatalf("Put (replace): %v", err)
	}
	data, ok, err := s.Get(ctx, "workouts")
	if err != nil || !ok {
		t.Fatalf("Get = ok:%v err:%v", ok, err)
	}
	if !bytes.Equal(data, []byte(`[{"id":"2"}]`)) {
		t.Errorf("Get = %s, want replaced value", data)
	}

	if err := s.Delete(ctx, "workouts"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "workouts"); ok {
		t.Error("key still present after Delete")
	}
	if err := s.Delete(ctx, "workouts"); err != nil {
		t.Errorf("Delete of absent key should succeed, got %v", err)
	}
}

// TestMemoryStore verifies the in-memory backend honors the blob contract.
func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

// TestMemoryStoreCopies verifies callers cannot mutate stored bytes through
// the slices they passed in or got back.
func TestMemoryStoreCopies(t *testing.T) {
	s := NewMemoryStore()
	in := []byte("abc")
	s.Put(context.Background(), "k", in)
	in[0] = 'x'
	out, _, _ := s.Get(context.Background(), "k")
	if string(out) != "abc" {
		t.Errorf("stored value = %q, want abc", out)
	}
}

// TestSQLiteStore verifies the SQLite backend honors the blob contract and
// keeps data across reopen.
func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "workoutlog.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	exerciseStore(t, s)

	if err := s.Put(context.Background(), "workouts", []byte("[]")); err != nil {
		t.Fatal(err)
	}
	s.Close()

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	data, ok, err := reopened.Get(context.Background(), "workouts")
	if err != nil || !ok || string(data) != "[]" {
		t.Errorf("after reopen Get = %q ok:%v err:%v", data, ok, err)
	}
}

// TestPostgresStore runs the contract against a live database when
// WORKOUTLOG_TEST_DSN is set.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("WORKOUTLOG_TEST_DSN")
	if dsn == "" {
		t.Skip("WORKOUTLOG_TEST_DSN not set")
	}
	if err := RunMigrations(dsn, "../../migrations"); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	db, err := New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()
	exerciseStore(t, db)
}

// TestOpenMemory verifies the factory selects the memory backend.
func TestOpenMemory(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := Open(context.Background(), config.StorageConfig{Backend: "memory"}, log)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("Open(memory) = %T, want *MemoryStore", s)
	}
}

// TestOpenUnknown verifies unsupported backends are rejected.
func TestOpenUnknown(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := Open(context.Background(), config.StorageConfig{Backend: "redis"}, log); err == nil {
		t.Error("expected error for unknown backend")
	}
}

package sqlite

import (
	"context"
	"path/filepath"
	"testing"
)

func TestStore_LedgerRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "stampla.db")
	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	data, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if data != nil {
		t.Fatalf("expected empty store, got %q", data)
	}

	record := []byte(`{"version":3,"tasks":[]}`)
	if err := store.Save(ctx, record); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(loaded) != string(record) {
		t.Fatalf("round trip mismatch: %q", loaded)
	}

	// Save replaces, never appends.
	next := []byte(`{"version":3,"tasks":[{"id":"t1"}]}`)
	if err := store.Save(ctx, next); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(loaded) != string(next) {
		t.Fatalf("second save not replaced: %q", loaded)
	}
}

func TestStore_ReopenKeepsRecord(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "stampla.db")
	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	record := []byte(`{"version":3}`)
	if err := store.Save(ctx, record); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := Open(dbPath)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	t.Cleanup(func() {
		_ = reopened.Close()
	})
	loaded, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(loaded) != string(record) {
		t.Fatalf("record lost across reopen: %q", loaded)
	}
}

func TestStore_ScopedKeys(t *testing.T) {
	ctx := context.Background()
	store, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	if err := store.Set(ctx, "server", "session", []byte("abc")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Set(ctx, "other", "session", []byte("xyz")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	value, err := store.Get(ctx, "server", "session")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(value) != "abc" {
		t.Fatalf("scope collision: %q", value)
	}

	if err := store.Delete(ctx, "server", "session"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	value, err = store.Get(ctx, "server", "session")
	if err != nil {
		t.Fatalf("Get() after delete error = %v", err)
	}
	if value != nil {
		t.Fatalf("expected deleted key, got %q", value)
	}
	if err := store.Delete(ctx, "server", "missing"); err != nil {
		t.Fatalf("Delete() missing key error = %v", err)
	}
}

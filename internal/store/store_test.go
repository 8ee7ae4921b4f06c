package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tidewell/loom/internal/artifact"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createRule(t *testing.T, s *Store, name, content string) *artifact.Artifact {
	t.Helper()
	a, err := s.Create(context.Background(), CreateInput{
		Name:            name,
		Content:         content,
		Type:            artifact.TypeRule,
		Scope:           artifact.ScopeGlobal,
		EnabledAdapters: []string{"gemini"},
		Enabled:         true,
	})
	if err != nil {
		t.Fatalf("create %q: %v", name, err)
	}
	return a
}

func TestCreateAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := createRule(t, s, "quality", "be excellent")
	got, err := s.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "quality" || got.Content != "be excellent" {
		t.Fatalf("got %+v", got)
	}
	if got.Type != artifact.TypeRule || got.Scope != artifact.ScopeGlobal {
		t.Fatalf("type/scope mismatch: %+v", got)
	}
	if len(got.EnabledAdapters) != 1 || got.EnabledAdapters[0] != "gemini" {
		t.Fatalf("adapters = %v", got.EnabledAdapters)
	}
}

func TestCreateValidation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, CreateInput{Content: "x", Type: artifact.TypeRule, Scope: artifact.ScopeGlobal}); err == nil {
		t.Error("empty name accepted")
	}
	if _, err := s.Create(ctx, CreateInput{Name: "x", Type: artifact.TypeRule, Scope: artifact.ScopeGlobal}); err == nil {
		t.Error("empty content accepted")
	}
	if _, err := s.Create(ctx, CreateInput{Name: "x", Content: "y", Type: "widget", Scope: artifact.ScopeGlobal}); err == nil {
		t.Error("bad type accepted")
	}
}

func TestUpdatePartialFields(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a := createRule(t, s, "quality", "v1")

	content := "v2"
	updated, err := s.Update(ctx, a.ID, UpdateInput{Content: &content})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Content != "v2" {
		t.Fatalf("content = %q", updated.Content)
	}
	if updated.Name != "quality" {
		t.Fatalf("name changed unexpectedly: %q", updated.Name)
	}
}

func TestDeleteRetainsForRestore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a := createRule(t, s, "quality", "v1")

	if err := s.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get after delete: %v", err)
	}

	restored, err := s.Restore(ctx)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.ID != a.ID || restored.Content != "v1" {
		t.Fatalf("restored %+v", restored)
	}

	// Restore is one-shot.
	if _, err := s.Restore(ctx); err == nil {
		t.Fatal("second restore should fail")
	}
}

func TestDeleteReplacesRetainedRecord(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a := createRule(t, s, "first", "a")
	b := createRule(t, s, "second", "b")

	if err := s.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete first: %v", err)
	}
	if err := s.Delete(ctx, b.ID); err != nil {
		t.Fatalf("delete second: %v", err)
	}
	restored, err := s.Restore(ctx)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.ID != b.ID {
		t.Fatalf("restored %q, want most recent deletion %q", restored.ID, b.ID)
	}
}

func TestDuplicateUsesCopySuffix(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a := createRule(t, s, "quality", "v1")

	dup, err := s.Duplicate(ctx, a.ID)
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if dup.Name != "quality (Copy)" {
		t.Fatalf("dup name = %q", dup.Name)
	}
	dup2, err := s.Duplicate(ctx, a.ID)
	if err != nil {
		t.Fatalf("second duplicate: %v", err)
	}
	if dup2.Name != "quality (Copy) 2" {
		t.Fatalf("second dup name = %q", dup2.Name)
	}
}

func TestToggle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a := createRule(t, s, "quality", "v1")

	toggled, err := s.Toggle(ctx, a.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if toggled.Enabled {
		t.Fatal("expected disabled after toggle")
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.GetSetting(ctx, "missing"); err != nil || ok {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
	if err := s.SetSetting(ctx, "k", "v1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.SetSetting(ctx, "k", "v2"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, ok, err := s.GetSetting(ctx, "k")
	if err != nil || !ok || v != "v2" {
		t.Fatalf("get: %q ok=%v err=%v", v, ok, err)
	}
}

func TestSyncHashTable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.SyncHash(ctx, "a1", "gemini", "/p"); err != nil || ok {
		t.Fatalf("unrecorded triple: ok=%v err=%v", ok, err)
	}
	if err := s.SetSyncHash(ctx, "a1", "gemini", "/p", "h1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.SetSyncHash(ctx, "a1", "gemini", "/p", "h2"); err != nil {
		t.Fatalf("update: %v", err)
	}
	h, ok, err := s.SyncHash(ctx, "a1", "gemini", "/p")
	if err != nil || !ok || h != "h2" {
		t.Fatalf("hash = %q ok=%v err=%v", h, ok, err)
	}
	if err := s.DeleteSyncHash(ctx, "a1", "gemini", "/p"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.SyncHash(ctx, "a1", "gemini", "/p"); ok {
		t.Fatal("hash survived delete")
	}
}

func TestImportHistoryNewestFirstAndCapped(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < historyRetention+5; i++ {
		err := s.AppendImportHistory(ctx, ImportHistoryEntry{SourceType: "file", Imported: i})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	entries, err := s.ImportHistory(ctx)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != historyRetention {
		t.Fatalf("entries = %d, want %d", len(entries), historyRetention)
	}
	if entries[0].Imported != historyRetention+4 {
		t.Fatalf("newest entry imported = %d", entries[0].Imported)
	}
}

func TestSyncHistoryLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := s.AppendSyncHistory(ctx, SyncHistoryEntry{FilesWritten: i, Success: true}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	entries, err := s.SyncHistory(ctx, 3)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
}

func TestStorageModeDefaultsToDatabase(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if got := s.StorageMode(ctx); got != ModeDatabase {
		t.Fatalf("mode = %q", got)
	}
	if err := s.SetStorageMode(ctx, ModeFiles); err != nil {
		t.Fatalf("set mode: %v", err)
	}
	if got := s.StorageMode(ctx); got != ModeFiles {
		t.Fatalf("mode = %q", got)
	}
	if err := s.SetStorageMode(ctx, "keyvalue"); err == nil {
		t.Fatal("invalid mode accepted")
	}
}

func TestFileModeMirrorsWrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.SetStorageMode(ctx, ModeFiles); err != nil {
		t.Fatalf("set mode: %v", err)
	}

	a := createRule(t, s, "quality", "body text")
	path := filepath.Join(s.ArtifactsDir(), a.ID+".md")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("mirror file missing: %v", err)
	}

	if err := s.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("mirror file survived delete: %v", err)
	}
}

func TestSourceMapRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	m, err := s.SourceMap(ctx)
	if err != nil || len(m) != 0 {
		t.Fatalf("initial map: %v err=%v", m, err)
	}
	m["file|none|/a.md"] = "id1"
	if err := s.SaveSourceMap(ctx, m); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.SourceMap(ctx)
	if err != nil || got["file|none|/a.md"] != "id1" {
		t.Fatalf("load: %v err=%v", got, err)
	}
}

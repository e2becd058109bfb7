package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/crateweave/depgraph/internal/model"
)

func TestIsFreshFalseWhenCacheMissing(t *testing.T) {
	dir := t.TempDir()
	if IsFresh(filepath.Join(dir, "missing.json"), dir) {
		t.Error("expected IsFresh to be false for a nonexistent cache file")
	}
}

func TestIsFreshTrueWhenNoSourceNewer(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "lib.rs")
	if err := os.WriteFile(src, []byte("fn main() {}"), 0o644); err != nil {
		t.Fatal(err)
	}

	cachePath := filepath.Join(dir, "cache.json")
	if err := Store(cachePath, model.Result{}); err != nil {
		t.Fatal(err)
	}

	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(src, old, old); err != nil {
		t.Fatal(err)
	}

	if !IsFresh(cachePath, dir) {
		t.Error("expected cache to be fresh when no source file is newer")
	}
}

func TestIsFreshFalseAfterSourceEdit(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "lib.rs")
	if err := os.WriteFile(src, []byte("fn main() {}"), 0o644); err != nil {
		t.Fatal(err)
	}

	cachePath := filepath.Join(dir, "cache.json")
	if err := Store(cachePath, model.Result{}); err != nil {
		t.Fatal(err)
	}

	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(src, future, future); err != nil {
		t.Fatal(err)
	}

	if IsFresh(cachePath, dir) {
		t.Error("expected cache to be stale after editing a source file")
	}
}

func TestStoreAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "cache.json")

	result := model.Result{
		Workspace: model.Workspace{Crates: []model.Crate{{Name: "demo"}}},
	}
	if err := Store(path, result); err != nil {
		t.Fatalf("store: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Workspace.Crates) != 1 || loaded.Workspace.Crates[0].Name != "demo" {
		t.Errorf("round trip mismatch: %+v", loaded.Workspace)
	}
}

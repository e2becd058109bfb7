// Package cache provides the on-disk analysis cache: a JSON snapshot of a
// full run's result, considered fresh as long as every source file under
// the project root has an mtime strictly older than the cache file's — the same
// freshness check the teacher's cacheIsFresh applies to a single
// serialized blob, generalized here to walk the project tree rather than
// a pre-enumerated file list, since a fresh depgraph run doesn't have one
// until module resolution has already run.
package cache

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/crateweave/depgraph/internal/model"
)

const sourceExt = ".rs"

// IsFresh reports whether the cache file at path is newer than every
// .rs file and every Cargo.toml under projectRoot.
func IsFresh(path, projectRoot string) bool {
	cacheInfo, err := os.Stat(path)
	if err != nil {
		return false
	}
	cacheMtime := cacheInfo.ModTime()

	stale := false
	_ = filepath.WalkDir(projectRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil || stale {
			return nil
		}
		if d.IsDir() {
			if d.Name() == "target" || d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(p) != sourceExt && d.Name() != "Cargo.toml" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			stale = true
			return nil
		}
		if newerOrEqual(info.ModTime(), cacheMtime) {
			stale = true
		}
		return nil
	})
	return !stale
}

func newerOrEqual(a, b time.Time) bool {
	return !a.Before(b)
}

// Load reads and decodes a previously written cache file.
func Load(path string) (model.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Result{}, err
	}
	var result model.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return model.Result{}, err
	}
	return result, nil
}

// Store writes result to path as JSON, creating parent directories as
// needed.
func Store(path string, result model.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

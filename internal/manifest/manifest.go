// Package manifest implements the Manifest Reader (§4.1): a minimal-subset
// reader for the project manifest (package name, library/binary entry
// overrides, workspace members), plus workspace-member glob expansion.
package manifest

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
	"github.com/pelletier/go-toml/v2"
)

const fileName = "Cargo.toml"

// BinEntry is one `[[bin]]` table: a binary name with an optional path
// override.
type BinEntry struct {
	Name string
	Path string
}

// Manifest is the minimal-subset projection of the project manifest (§4.1).
type Manifest struct {
	PackageName      string
	LibPath          string
	Bins             []BinEntry
	WorkspaceMembers []string
}

type rawManifest struct {
	Package *struct {
		Name string `toml:"name"`
	} `toml:"package"`
	Lib *struct {
		Path string `toml:"path"`
	} `toml:"lib"`
	Bin []struct {
		Name string `toml:"name"`
		Path string `toml:"path"`
	} `toml:"bin"`
	Workspace *struct {
		Members []string `toml:"members"`
	} `toml:"workspace"`
}

// Read parses the manifest at the conventional path under projectRoot.
// Per §4.1, failure to find (or to parse) the manifest is non-fatal: it
// returns a Manifest whose only field set is PackageName (the directory
// basename fallback used whenever no package name is declared) and a nil
// error. go-toml/v2 natively handles
// every syntax shape §4.1 names — `[section]`, `[[section]]`, single-line
// and multi-line arrays, comments, quoted strings — so unlike a hand-rolled
// line scanner there is no partial-syntax subset to maintain; a manifest
// using syntax beyond what depgraph projects (workspace inheritance,
// custom profiles, ...) still parses, and the fields depgraph doesn't name
// are simply ignored.
func Read(projectRoot string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(projectRoot, fileName))
	if err != nil {
		return Manifest{PackageName: filepath.Base(projectRoot)}, nil
	}

	var raw rawManifest
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Manifest{PackageName: filepath.Base(projectRoot)}, nil
	}

	m := Manifest{}
	if raw.Package != nil {
		m.PackageName = strings.TrimSpace(raw.Package.Name)
	}
	if raw.Lib != nil {
		m.LibPath = strings.TrimSpace(raw.Lib.Path)
	}
	for _, b := range raw.Bin {
		m.Bins = append(m.Bins, BinEntry{Name: strings.TrimSpace(b.Name), Path: strings.TrimSpace(b.Path)})
	}
	if raw.Workspace != nil {
		for _, mem := range raw.Workspace.Members {
			mem = strings.TrimSpace(mem)
			if mem != "" {
				m.WorkspaceMembers = append(m.WorkspaceMembers, mem)
			}
		}
	}
	if m.PackageName == "" {
		m.PackageName = filepath.Base(projectRoot)
	}
	return m, nil
}

// ExpandWorkspaceMembers expands each glob pattern (relative to
// projectRoot) and returns the absolute directories that both match a
// pattern and themselves contain a manifest file — a project root's
// .gitignore, if present, is consulted the same way the teacher's
// discover.Files does, so a pattern like "crates/*" doesn't pull in build
// output that happens to contain a stray Cargo.toml.
func ExpandWorkspaceMembers(projectRoot string, patterns []string) ([]string, error) {
	gi := loadGitignore(projectRoot)

	seen := make(map[string]struct{})
	var dirs []string
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(os.DirFS(projectRoot), pattern)
		if err != nil {
			continue
		}
		for _, rel := range matches {
			if gi != nil && gi.MatchesPath(rel) {
				continue
			}
			abs := filepath.Join(projectRoot, rel)
			info, err := os.Stat(abs)
			if err != nil || !info.IsDir() {
				continue
			}
			if _, err := os.Stat(filepath.Join(abs, fileName)); err != nil {
				continue
			}
			if _, ok := seen[abs]; ok {
				continue
			}
			seen[abs] = struct{}{}
			dirs = append(dirs, abs)
		}
	}
	return dirs, nil
}

func loadGitignore(projectRoot string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(projectRoot, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}

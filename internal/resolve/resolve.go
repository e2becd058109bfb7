// Package resolve is the Module Resolver (§4.2): given a project root and
// a filter configuration, it produces the crate definition — the module
// tree built by combining `mod` declarations with filesystem conventions,
// expanding inline modules, and applying file filters.
package resolve

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/crateweave/depgraph/internal/extract"
	"github.com/crateweave/depgraph/internal/manifest"
	"github.com/crateweave/depgraph/internal/model"
	"github.com/crateweave/depgraph/internal/synatree"
)

// ManifestError reports that no library or binary entry point could be
// located (§7, fatal).
type ManifestError struct {
	ProjectRoot string
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("no library or binary entry point found under %s", e.ProjectRoot)
}

const sourceExt = ".rs"

var conventionalRoots = map[string]struct{}{"lib": {}, "main": {}, "mod": {}}

type parseResult struct {
	tree *synatree.Tree
	file extract.File
}

// Resolver holds the per-run memoization state required by §4.2 step 6.
type Resolver struct {
	filter      model.FilterConfig
	parseCache  *lru.Cache[string, parseResult]
	visited     map[string]struct{}
	diagnostics []string
}

// New returns a Resolver configured with filter.
func New(filter model.FilterConfig) *Resolver {
	cache, _ := lru.New[string, parseResult](4096)
	return &Resolver{
		filter:     filter,
		parseCache: cache,
		visited:    make(map[string]struct{}),
	}
}

// Diagnostics returns the non-fatal diagnostics accumulated so far
// (unreadable files, unresolved `mod` names — §7).
func (r *Resolver) Diagnostics() []string {
	return append([]string(nil), r.diagnostics...)
}

func (r *Resolver) warn(format string, args ...any) {
	r.diagnostics = append(r.diagnostics, fmt.Sprintf(format, args...))
}

// ResolveWorkspace resolves projectRoot in workspace mode if its manifest
// declares `workspace.members`, falling back to single-crate resolution
// otherwise (§4.2 "Workspace mode").
func ResolveWorkspace(projectRoot string, filter model.FilterConfig) (model.Workspace, error) {
	man, _ := manifest.Read(projectRoot)
	if len(man.WorkspaceMembers) == 0 {
		r := New(filter)
		root, err := r.ResolveCrate(projectRoot, man)
		if err != nil {
			return model.Workspace{}, err
		}
		return model.Workspace{Crates: []model.Crate{{Name: "", Root: root}}, Diagnostics: r.Diagnostics()}, nil
	}

	dirs, err := manifest.ExpandWorkspaceMembers(projectRoot, man.WorkspaceMembers)
	if err != nil {
		return model.Workspace{}, err
	}

	var crates []model.Crate
	var diagnostics []string
	for _, dir := range dirs {
		memberMan, _ := manifest.Read(dir)
		r := New(filter)
		root, err := r.ResolveCrate(dir, memberMan)
		if err != nil {
			continue // a member that can't locate an entry point is skipped, not fatal to the workspace
		}
		crates = append(crates, model.Crate{Name: normalizeCrateName(memberMan.PackageName), Root: root})
		diagnostics = append(diagnostics, r.Diagnostics()...)
	}
	return model.Workspace{Crates: crates, Diagnostics: diagnostics}, nil
}

func normalizeCrateName(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// ResolveCrate produces the crate definition for one (non-workspace)
// project root (§4.2 steps 1-6).
func (r *Resolver) ResolveCrate(projectRoot string, man manifest.Manifest) (*model.Module, error) {
	entry, err := locateEntryPoint(projectRoot, man)
	if err != nil {
		return nil, err
	}

	root := &model.Module{ShortName: "crate", Path: "crate", ID: "crate"}
	if err := r.resolveFileInto(root, entry, projectRoot); err != nil {
		return nil, err
	}
	return root, nil
}

func locateEntryPoint(projectRoot string, man manifest.Manifest) (string, error) {
	candidates := make([]string, 0, 4)
	if man.LibPath != "" {
		candidates = append(candidates, filepath.Join(projectRoot, man.LibPath))
	}
	candidates = append(candidates, filepath.Join(projectRoot, "src", "lib.rs"))
	for _, bin := range man.Bins {
		if bin.Path != "" {
			candidates = append(candidates, filepath.Join(projectRoot, bin.Path))
		}
	}
	candidates = append(candidates, filepath.Join(projectRoot, "src", "main.rs"))

	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	return "", &ManifestError{ProjectRoot: projectRoot}
}

// resolveFileInto parses absPath, extracts its declarations into mod (whose
// ShortName/Path are already set by the caller), and recurses into its
// `mod` declarations and inline modules.
func (r *Resolver) resolveFileInto(mod *model.Module, absPath string, projectRoot string) error {
	rel, _ := filepath.Rel(projectRoot, absPath)
	mod.File = rel

	pr, err := r.parse(absPath)
	if err != nil {
		r.warn("unreadable file %s: %v", rel, err)
		return nil // §7 UnreadableFile: empty-module stub, continue
	}
	r.visited[absPath] = struct{}{}

	r.applyFile(mod, pr.file)

	for _, inline := range pr.file.Inline {
		if inline.CfgTest && r.filter.ExcludeCfgTest {
			continue
		}
		child := &model.Module{
			ShortName: inline.Name,
			Path:      mod.Path + "::" + inline.Name,
			File:      rel,
			IsInline:  true,
			CfgTest:   inline.CfgTest,
		}
		childFile := extract.Declarations(inline.Body, pr.tree.Source())
		r.applyFile(child, childFile)
		r.resolveNestedMods(child, inline.Body, pr.tree.Source(), filepath.Dir(absPath), child.ShortName, projectRoot)
		mod.Submodules = append(mod.Submodules, child)
	}

	stem := strings.TrimSuffix(filepath.Base(absPath), filepath.Ext(absPath))
	r.resolveNestedMods(mod, pr.tree.Root(), pr.tree.Source(), filepath.Dir(absPath), stem, projectRoot)
	return nil
}

// resolveNestedMods resolves the non-inline `mod name;` declarations found
// directly under root, searching beside searchFileDir per §4.2 step 2's
// root-vs-regular-file distinction.
func (r *Resolver) resolveNestedMods(mod *model.Module, root synatree.Node, source []byte, searchFileDir string, basename string, projectRoot string) {
	names := extract.ModDeclarations(root, source)
	for _, name := range names {
		childPath, ok := r.locateModTarget(searchFileDir, basename, name, mod.IsInline)
		if !ok {
			r.warn("unresolved mod %q referenced from %s", name, mod.Path)
			mod.Submodules = append(mod.Submodules, &model.Module{
				ShortName: name,
				Path:      mod.Path + "::" + name,
			})
			continue
		}
		rel, _ := filepath.Rel(projectRoot, childPath)
		if !r.passesFileFilter(rel) {
			continue
		}
		if _, already := r.visited[childPath]; already {
			continue // §4.2 step 6: second reference short-circuits
		}
		child := &model.Module{ShortName: name, Path: mod.Path + "::" + name}
		if err := r.resolveFileInto(child, childPath, projectRoot); err != nil {
			r.warn("resolving mod %q: %v", name, err)
			continue
		}
		mod.Submodules = append(mod.Submodules, child)
	}
}

// locateModTarget implements §4.2 step 2's search: a conventional root
// (lib/main/mod basename) searches its own directory for siblings; a
// regular module file searches a subdirectory named after its own
// basename. Inline modules use their enclosing file's directory as if
// they were a regular module file named after the inline module itself.
func (r *Resolver) locateModTarget(fileDir string, basename string, name string, isInline bool) (string, bool) {
	var searchBase string
	if !isInline {
		if _, ok := conventionalRoots[basename]; ok {
			searchBase = fileDir
		} else {
			searchBase = filepath.Join(fileDir, basename)
		}
	} else {
		searchBase = filepath.Join(fileDir, basename)
	}

	siblingFile := filepath.Join(searchBase, name+sourceExt)
	if info, err := os.Stat(siblingFile); err == nil && !info.IsDir() {
		return siblingFile, true
	}
	dirMod := filepath.Join(searchBase, name, "mod"+sourceExt)
	if info, err := os.Stat(dirMod); err == nil && !info.IsDir() {
		return dirMod, true
	}
	return "", false
}

func (r *Resolver) parse(absPath string) (parseResult, error) {
	if cached, ok := r.parseCache.Get(absPath); ok {
		return cached, nil
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return parseResult{}, err
	}
	tree, err := synatree.Parse(data)
	if err != nil {
		return parseResult{}, err
	}
	file := extract.Declarations(tree.Root(), data)
	result := parseResult{tree: tree, file: file}
	r.parseCache.Add(absPath, result)
	return result, nil
}

// applyFile assigns qualified-path ids and copies the extracted
// declarations onto mod, now that mod.Path is known.
func (r *Resolver) applyFile(mod *model.Module, f extract.File) {
	for _, s := range f.Structs {
		s.ID = mod.Path + "::" + s.Name
		s.Span.File = mod.File
		mod.Structs = append(mod.Structs, s)
	}
	for _, e := range f.Enums {
		e.ID = mod.Path + "::" + e.Name
		e.Span.File = mod.File
		mod.Enums = append(mod.Enums, e)
	}
	for _, t := range f.Traits {
		t.ID = mod.Path + "::" + t.Name
		t.Span.File = mod.File
		mod.Traits = append(mod.Traits, t)
	}
	for _, fn := range f.Functions {
		fn.ID = mod.Path + "::" + fn.Name
		fn.Span.File = mod.File
		mod.Functions = append(mod.Functions, fn)
	}
	for i := range f.Impls {
		f.Impls[i].Span.File = mod.File
	}
	mod.Impls = append(mod.Impls, f.Impls...)
	mod.Uses = append(mod.Uses, f.Uses...)
	mod.Consts = append(mod.Consts, f.Consts...)
	mod.Statics = append(mod.Statics, f.Statics...)
	mod.TypeAlias = append(mod.TypeAlias, f.Aliases...)
}

// passesFileFilter applies §4.2 step 4's file-filtering policy to a
// project-root-relative path.
func (r *Resolver) passesFileFilter(rel string) bool {
	base := filepath.Base(rel)
	if r.filter.ExcludeTestFiles {
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		if strings.HasSuffix(stem, "_test") || strings.HasSuffix(stem, "_tests") {
			return false
		}
	}
	if r.filter.ExcludeTestsDirectory {
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) > 0 && parts[0] == "tests" {
			return false
		}
	}
	if len(r.filter.IncludePatterns) > 0 {
		matched := false
		for _, p := range r.filter.IncludePatterns {
			if ok, _ := doublestar.Match(p, filepath.ToSlash(rel)); ok {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, p := range r.filter.ExcludePatterns {
		if ok, _ := doublestar.Match(p, filepath.ToSlash(rel)); ok {
			return false
		}
	}
	return true
}

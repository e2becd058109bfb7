// Package useresolve is the Use Resolver and Symbol Index (§4.4): it
// builds a global lookup of every declared type, trait, function and
// module by its fully qualified path, resolves each module's `use`
// declarations into a local alias table, and resolves type references
// down to a target id (or marks them external/unresolved).
package useresolve

import (
	"sort"
	"strings"

	"github.com/crateweave/depgraph/internal/model"
)

// externalContainers are standard-library type names common enough that
// treating every reference to them as an unresolved edge would be noise;
// §4.4 calls for a curated allow-list rather than resolving against a full
// standard-library symbol table (out of scope per §1).
var externalContainers = map[string]struct{}{
	"String": {}, "str": {}, "Vec": {}, "Option": {}, "Result": {},
	"Box": {}, "Rc": {}, "Arc": {}, "RefCell": {}, "Cell": {},
	"Cow": {}, "HashMap": {}, "HashSet": {}, "BTreeMap": {}, "BTreeSet": {},
	"VecDeque": {}, "PhantomData": {}, "Mutex": {}, "RwLock": {}, "Weak": {},
}

var stdRoots = map[string]struct{}{"std": {}, "core": {}, "alloc": {}}

// IsExternalContainer reports whether name is in the curated external
// allow-list (§4.4); callers treat references to it as having no edge.
func IsExternalContainer(name string) bool {
	_, ok := externalContainers[name]
	return ok
}

// symbolEntry is one item registered in the index.
type symbolEntry struct {
	id   string
	kind model.NodeKind
}

// SymbolIndex is the global lookup of every declared item by fully
// qualified path, plus a per-module directory of direct children used for
// glob-import expansion.
//
// Every Module's own Path is crate-relative ("crate::foo::bar") since
// that's what a `use crate::...` declaration in its own source resolves
// against. In workspace mode every crate's root module has the identical
// relative path "crate", so the index keys everything on a crate-qualified
// global path instead (Qualify) to keep multiple crates' modules, types
// and functions from colliding under the same id.
type SymbolIndex struct {
	byPath      map[string]symbolEntry
	moduleItems map[string][]string // global module path -> short names declared directly in it
	parentOf    map[string]string   // global module path -> global parent module path
	crateRoots  map[string]string   // normalized crate name -> global crate root path
	crateOf     map[string]string   // global module path -> normalized crate name
}

// NewSymbolIndex builds the index over every crate in ws.
func NewSymbolIndex(ws model.Workspace) *SymbolIndex {
	idx := &SymbolIndex{
		byPath:      make(map[string]symbolEntry),
		moduleItems: make(map[string][]string),
		parentOf:    make(map[string]string),
		crateRoots:  make(map[string]string),
		crateOf:     make(map[string]string),
	}
	for _, crate := range ws.Crates {
		if crate.Root == nil {
			continue
		}
		crateName := normalizeCrateName(crate.Name)
		idx.crateRoots[crateName] = Qualify(crateName, crate.Root.Path)
		idx.walk(crate.Root, "", crateName)
	}
	return idx
}

func normalizeCrateName(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// Qualify prefixes a crate-relative id with its owning crate's normalized
// name, except in single (unnamed) crate mode where it is returned
// unchanged — preserving the plain "crate::foo::Bar" ids a single-crate
// run produced before workspace support needed disambiguation.
func Qualify(crateName, id string) string {
	if crateName == "" {
		return id
	}
	return crateName + "::" + id
}

func (idx *SymbolIndex) walk(mod *model.Module, parentPath string, crateName string) {
	global := Qualify(crateName, mod.Path)
	if parentPath != "" {
		idx.parentOf[global] = parentPath
	}
	idx.crateOf[global] = crateName
	idx.register(global, mod.ShortName, model.KindModule)

	for _, s := range mod.Structs {
		idx.register(global, s.Name, model.KindStruct)
	}
	for _, e := range mod.Enums {
		idx.register(global, e.Name, model.KindEnum)
	}
	for _, t := range mod.Traits {
		idx.register(global, t.Name, model.KindTrait)
	}
	for _, f := range mod.Functions {
		idx.register(global, f.Name, model.KindFunction)
	}
	for _, sub := range mod.Submodules {
		idx.walk(sub, global, crateName)
	}
}

func (idx *SymbolIndex) register(modulePath, name string, kind model.NodeKind) {
	full := modulePath + "::" + name
	if kind == model.KindModule {
		full = modulePath
	}
	idx.byPath[full] = symbolEntry{id: full, kind: kind}
	idx.moduleItems[modulePath] = append(idx.moduleItems[modulePath], name)
}

// Lookup returns the id registered at path, if any.
func (idx *SymbolIndex) Lookup(path string) (string, bool) {
	e, ok := idx.byPath[path]
	return e.id, ok
}

// SuffixMatch is the last-resort fallback named in §4.4 and §9's open
// question: among every registered item whose path ends in "::name" (or
// equals name, which only the unqualified root module path "crate" can),
// return the one that sorts first —
// a deterministic, if sometimes wrong, choice when exact resolution fails.
func (idx *SymbolIndex) SuffixMatch(name string) (string, bool) {
	var candidates []string
	suffix := "::" + name
	for path := range idx.byPath {
		if path == name || strings.HasSuffix(path, suffix) {
			candidates = append(candidates, path)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	sort.Strings(candidates)
	return candidates[0], true
}

// AliasTable maps a short name visible in one module (through `use` or
// local declaration) to the id it resolves to. An empty string value
// means a use declaration imported the name but its target is not in the
// index; lookups of that name then stop unresolved.
type AliasTable map[string]string

// ResolveModuleUses builds mod's alias table by resolving each of its use
// declarations against idx (§4.4 "per-declaration resolution"). modulePath
// is mod's crate-qualified global path (see Qualify).
func ResolveModuleUses(mod *model.Module, modulePath string, idx *SymbolIndex) AliasTable {
	table := make(AliasTable)
	for _, use := range mod.Uses {
		for local, id := range resolveOneUse(use, modulePath, idx) {
			table[local] = id
		}
	}
	return table
}

// ResolveUseTargets returns every id use resolves to, regardless of the
// local alias under which it becomes visible — the graph builder uses
// this to emit one use_import edge per resolved target (§4.5).
func ResolveUseTargets(use model.UseDecl, modulePath string, idx *SymbolIndex) []string {
	resolved := resolveOneUse(use, modulePath, idx)
	ids := make([]string, 0, len(resolved))
	for _, id := range resolved {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// resolveOneUse resolves use against idx and returns a map of local name
// (as it becomes visible in the importing module) to resolved id. Entries
// that resolve nowhere are included with an empty id so callers can tell
// the difference between "recognized but unresolved" and "never seen".
func resolveOneUse(use model.UseDecl, modulePath string, idx *SymbolIndex) map[string]string {
	out := make(map[string]string)
	base, ok := resolveBasePath(use.PathSegments, modulePath, idx)
	if !ok {
		return out
	}

	switch {
	case use.Glob:
		for _, name := range idx.moduleItems[base] {
			if id, ok := idx.Lookup(base + "::" + name); ok {
				out[name] = id
			}
		}
	case len(use.Items) > 0:
		for _, item := range use.Items {
			local := item.Name
			if item.Alias != "" {
				local = item.Alias
			}
			candidate := base + "::" + item.Name
			if id, ok := idx.Lookup(candidate); ok {
				out[local] = id
			} else if id, ok := idx.Lookup(base); ok && item.Name == "self" {
				out[local] = id
			} else {
				out[local] = ""
			}
		}
	default:
		segs := use.PathSegments
		if len(segs) == 0 {
			return out
		}
		last := segs[len(segs)-1]
		local := last
		if use.Alias != "" {
			local = use.Alias
		}
		if id, ok := idx.Lookup(base); ok {
			out[local] = id
		} else {
			out[local] = ""
		}
	}
	return out
}

// resolveBasePath resolves the `crate`/`self`/`super`/extern-crate-name
// root of a use path (or a type reference's qualifying path) to a module
// path in idx, returning the remaining joined path (§4.4 "base-path
// resolution table"). The final segment of an implicit (non-list,
// non-glob) use is included in the returned base so callers that already
// handle the "default" case can look it up directly; for glob/list uses
// callers strip the final segment themselves by construction.
func resolveBasePath(segments []string, modulePath string, idx *SymbolIndex) (string, bool) {
	if len(segments) == 0 {
		return "", false
	}

	head := segments[0]
	rest := segments[1:]

	ownRoot, hasOwnRoot := idx.crateRoots[idx.crateOf[modulePath]]

	switch {
	case head == "crate":
		if !hasOwnRoot {
			return "", false
		}
		return joinModulePath(ownRoot, rest), true
	case head == "self":
		return joinModulePath(modulePath, rest), true
	case head == "super":
		parent, ok := idx.parentOf[modulePath]
		if !ok {
			return "", false
		}
		return joinModulePath(parent, rest), true
	case isStdRoot(head):
		return "", false
	default:
		if root, ok := idx.crateRoots[normalizeCrateName(head)]; ok {
			return joinModulePath(root, rest), true
		}
		// 2018-edition-style path with no explicit `crate::` prefix: resolve
		// relative to this module's own crate root.
		if !hasOwnRoot {
			return "", false
		}
		return joinModulePath(ownRoot, segments), true
	}
}

func isStdRoot(name string) bool {
	_, ok := stdRoots[name]
	return ok
}

func joinModulePath(base string, rest []string) string {
	if len(rest) == 0 {
		return base
	}
	return base + "::" + strings.Join(rest, "::")
}

// ResolveTypeRef fills in ref.Resolved (and every nested Args entry) using
// the fallback chain of §4.4: the module's use-derived alias table, then
// `<module>::<name>`, then `crate::<name>`, then the deterministic suffix
// match. External-container
// references and names that resolve nowhere are left with Resolved == "".
func ResolveTypeRef(ref *model.TypeRef, modulePath string, aliases AliasTable, idx *SymbolIndex) {
	if ref == nil {
		return
	}
	ref.Resolved = resolveName(ref.Name, modulePath, aliases, idx)
	for i := range ref.Args {
		ResolveTypeRef(&ref.Args[i], modulePath, aliases, idx)
	}
}

func resolveName(name, modulePath string, aliases AliasTable, idx *SymbolIndex) string {
	if IsExternalContainer(name) {
		return ""
	}
	if id, ok := aliases[name]; ok {
		return id
	}
	if id, ok := idx.Lookup(modulePath + "::" + name); ok {
		return id
	}
	if root, ok := idx.crateRoots[idx.crateOf[modulePath]]; ok {
		if id, ok := idx.Lookup(root + "::" + name); ok {
			return id
		}
	}
	if id, ok := idx.SuffixMatch(name); ok {
		return id
	}
	return ""
}

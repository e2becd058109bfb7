package graphbuild

import (
	"strings"

	"github.com/crateweave/depgraph/internal/model"
	"github.com/crateweave/depgraph/internal/useresolve"
)

// LinkWorkspace synthesizes cross-crate use_import edges for use
// declarations that name another workspace member by its (possibly
// hyphenated) crate name, normalizing hyphens to underscores the way a
// Rust path would (§4.5 "Workspace Linker"). It adds no field-type edges. Same-crate resolution has
// already produced every edge graphbuild.Build can find on its own; this
// pass only adds what a single crate's SymbolIndex could not see: a
// dependency on another crate's root module reached through an import
// whose first segment is that crate's name.
func LinkWorkspace(graph *model.Graph, ws model.Workspace, idx *useresolve.SymbolIndex) {
	if len(ws.Crates) < 2 {
		return
	}
	for _, crate := range ws.Crates {
		if crate.Root == nil {
			continue
		}
		linkModuleUses(graph, crate.Root, normalize(crate.Name), ws, idx)
	}
}

func linkModuleUses(graph *model.Graph, mod *model.Module, ownCrateName string, ws model.Workspace, idx *useresolve.SymbolIndex) {
	global := useresolve.Qualify(ownCrateName, mod.Path)
	for _, use := range mod.Uses {
		if len(use.PathSegments) == 0 {
			continue
		}
		crateName := normalize(use.PathSegments[0])
		if crateName == ownCrateName {
			continue
		}
		for _, other := range ws.Crates {
			if other.Root == nil || normalize(other.Name) != crateName {
				continue
			}
			otherRoot := useresolve.Qualify(crateName, other.Root.Path)
			loc := model.Location{File: mod.File, Line: use.Span.Line, Column: use.Span.Column}
			graph.AddEdge(global, otherRoot, model.UseImport, loc)
		}
	}
	for _, sub := range mod.Submodules {
		linkModuleUses(graph, sub, ownCrateName, ws, idx)
	}
}

func normalize(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// Package graphbuild is the Graph Builder and Workspace Linker (§4.5): a
// two-pass construction of the dependency graph from a resolved module
// tree — first every node (modules, types, traits, functions, and impl
// methods attributed to their owning type), then every edge.
package graphbuild

import (
	"strings"

	"github.com/crateweave/depgraph/internal/model"
	"github.com/crateweave/depgraph/internal/useresolve"
)

type builder struct {
	graph   *model.Graph
	idx     *useresolve.SymbolIndex
	aliases map[string]useresolve.AliasTable
}

// Build runs both passes over ws and returns the completed graph.
func Build(ws model.Workspace, idx *useresolve.SymbolIndex) *model.Graph {
	b := &builder{
		graph:   model.NewGraph(),
		idx:     idx,
		aliases: make(map[string]useresolve.AliasTable),
	}

	for _, crate := range ws.Crates {
		if crate.Root == nil {
			continue
		}
		b.collectAliases(crate.Root, normalizeCrateName(crate.Name))
	}
	for _, crate := range ws.Crates {
		if crate.Root == nil {
			continue
		}
		b.createNodes(crate.Root, "", normalizeCrateName(crate.Name))
	}
	for _, crate := range ws.Crates {
		if crate.Root == nil {
			continue
		}
		b.emitEdges(crate.Root, normalizeCrateName(crate.Name))
	}
	LinkWorkspace(b.graph, ws, idx)
	return b.graph
}

func normalizeCrateName(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

func (b *builder) collectAliases(mod *model.Module, crateName string) {
	global := useresolve.Qualify(crateName, mod.Path)
	b.aliases[global] = useresolve.ResolveModuleUses(mod, global, b.idx)
	for _, sub := range mod.Submodules {
		b.collectAliases(sub, crateName)
	}
}

// --- pass 1: nodes -----------------------------------------------------

func (b *builder) createNodes(mod *model.Module, parentModulePath string, crateName string) {
	global := useresolve.Qualify(crateName, mod.Path)
	b.addNode(global, mod.ShortName, model.KindModule, parentModulePath, model.Span{File: mod.File})

	for _, s := range mod.Structs {
		b.addNode(useresolve.Qualify(crateName, s.ID), s.Name, model.KindStruct, global, s.Span)
	}
	for _, e := range mod.Enums {
		b.addNode(useresolve.Qualify(crateName, e.ID), e.Name, model.KindEnum, global, e.Span)
	}
	for _, t := range mod.Traits {
		traitID := useresolve.Qualify(crateName, t.ID)
		b.addNode(traitID, t.Name, model.KindTrait, global, t.Span)
		for _, m := range t.Methods {
			b.addMethodNodeOnce(traitID+"::"+m.Name, m.Name, traitID, m.Span)
		}
	}
	for _, f := range mod.Functions {
		b.addNode(useresolve.Qualify(crateName, f.ID), f.Name, model.KindFunction, global, f.Span)
	}
	for _, impl := range mod.Impls {
		owner := b.resolveImplOwner(impl, mod, crateName)
		for _, m := range impl.Methods {
			b.addMethodNodeOnce(owner+"::"+m.Name, m.Name, owner, m.Span)
		}
	}

	for _, sub := range mod.Submodules {
		b.createNodes(sub, global, crateName)
	}
}

func (b *builder) addNode(id, name string, kind model.NodeKind, parentID string, span model.Span) {
	if _, exists := b.graph.Nodes[id]; exists {
		return
	}
	b.graph.Nodes[id] = &model.GraphNode{
		ID: id, ShortName: name, Path: id, Kind: kind,
		ParentID: parentID, File: span.File, Line: span.Line,
	}
	if parent, ok := b.graph.Nodes[parentID]; ok {
		parent.Children = append(parent.Children, id)
	}
}

// addMethodNodeOnce implements the first-occurrence-wins coalescing rule
// of §4.5: a type with both an inherent impl and one or more trait impls
// defining the same method name registers only the first one it sees.
func (b *builder) addMethodNodeOnce(id, name, ownerID string, span model.Span) {
	b.addNode(id, name, model.KindFunction, ownerID, span)
}

func (b *builder) resolveImplOwner(impl model.ImplBlock, mod *model.Module, crateName string) string {
	global := useresolve.Qualify(crateName, mod.Path)
	self := impl.SelfType
	useresolve.ResolveTypeRef(&self, global, b.aliases[global], b.idx)
	if self.Resolved != "" {
		return self.Resolved
	}
	return global + "::" + self.Name
}

// --- pass 2: edges -------------------------------------------------------

func (b *builder) emitEdges(mod *model.Module, crateName string) {
	global := useresolve.Qualify(crateName, mod.Path)
	aliases := b.aliases[global]

	for _, use := range mod.Uses {
		loc := model.Location{File: mod.File, Line: use.Span.Line, Column: use.Span.Column}
		for _, target := range useresolve.ResolveUseTargets(use, global, b.idx) {
			b.graph.AddEdge(global, target, model.UseImport, loc)
		}
	}

	for _, s := range mod.Structs {
		sID := useresolve.Qualify(crateName, s.ID)
		for _, field := range s.Fields {
			b.emitTypeEdge(sID, &field.Type, global, mod.File, aliases, model.FieldType)
		}
		for _, g := range s.Generics {
			for _, bound := range g.Bounds {
				bound := bound
				b.emitTypeEdge(sID, &bound, global, mod.File, aliases, model.TraitBound)
			}
		}
	}
	for _, e := range mod.Enums {
		eID := useresolve.Qualify(crateName, e.ID)
		for _, variant := range e.Variants {
			for _, field := range variant.Fields {
				b.emitTypeEdge(eID, &field.Type, global, mod.File, aliases, model.FieldType)
			}
		}
		for _, g := range e.Generics {
			for _, bound := range g.Bounds {
				bound := bound
				b.emitTypeEdge(eID, &bound, global, mod.File, aliases, model.TraitBound)
			}
		}
	}
	for _, t := range mod.Traits {
		traitID := useresolve.Qualify(crateName, t.ID)
		for _, super := range t.Supertraits {
			ref := super
			b.emitTypeEdge(traitID, &ref, global, mod.File, aliases, model.TraitBound)
		}
		for _, m := range t.Methods {
			b.emitFunctionEdges(traitID+"::"+m.Name, m, global, mod.File, aliases)
		}
	}
	for _, f := range mod.Functions {
		b.emitFunctionEdges(useresolve.Qualify(crateName, f.ID), f, global, mod.File, aliases)
	}
	for _, impl := range mod.Impls {
		owner := b.resolveImplOwner(impl, mod, crateName)
		if impl.Trait != nil {
			trait := *impl.Trait
			b.emitTypeEdge(owner, &trait, global, mod.File, aliases, model.TraitImpl)
		}
		for _, m := range impl.Methods {
			b.emitFunctionEdges(owner+"::"+m.Name, m, global, mod.File, aliases)
		}
	}

	for _, sub := range mod.Submodules {
		b.emitEdges(sub, crateName)
	}
}

func (b *builder) emitFunctionEdges(fromID string, fn model.FunctionDecl, modulePath, file string, aliases useresolve.AliasTable) {
	for _, p := range fn.Params {
		t := p.Type
		b.emitTypeEdge(fromID, &t, modulePath, file, aliases, model.ParameterType)
	}
	if fn.Return != nil {
		ret := *fn.Return
		b.emitTypeEdge(fromID, &ret, modulePath, file, aliases, model.ReturnType)
	}
	for _, g := range fn.Generics {
		for _, bound := range g.Bounds {
			bound := bound
			b.emitTypeEdge(fromID, &bound, modulePath, file, aliases, model.TraitBound)
		}
	}
	for _, call := range fn.Calls {
		target := resolveCallTarget(call, modulePath, aliases, b.idx)
		if target == "" {
			continue
		}
		kind := model.FunctionCall
		if call.IsMethod {
			kind = model.MethodCall
		}
		b.graph.AddEdge(fromID, target, kind, model.Location{File: file, Line: call.Span.Line, Column: call.Span.Column})
	}
}

func (b *builder) emitTypeEdge(fromID string, ref *model.TypeRef, modulePath, file string, aliases useresolve.AliasTable, kind model.DependencyKind) {
	useresolve.ResolveTypeRef(ref, modulePath, aliases, b.idx)
	if ref.Resolved == "" {
		return
	}
	b.graph.AddEdge(fromID, ref.Resolved, kind, model.Location{File: file, Line: ref.Span.Line, Column: ref.Span.Column})
	for i := range ref.Args {
		b.emitTypeEdge(fromID, &ref.Args[i], modulePath, file, aliases, kind)
	}
}

// resolveCallTarget resolves a call-site name to a function/method node id.
// Free-function calls resolve through the same chain as type references;
// method calls resolve only by short name (the receiver's static type is
// not tracked), matching whichever symbol-index entry of that name sorts
// first — the same determinism rule §4.4 uses for type suffix matches.
// The index holds modules, types, traits and free functions but not impl
// or trait methods, so a method call never resolves to a method node.
func resolveCallTarget(call model.CallSite, modulePath string, aliases useresolve.AliasTable, idx *useresolve.SymbolIndex) string {
	if call.IsMethod {
		if id, ok := idx.SuffixMatch(call.Name); ok {
			return id
		}
		return ""
	}
	ref := model.TypeRef{Name: lastSegment(call.Name)}
	useresolve.ResolveTypeRef(&ref, modulePath, aliases, idx)
	return ref.Resolved
}

func lastSegment(name string) string {
	if i := strings.LastIndex(name, "::"); i >= 0 {
		return name[i+2:]
	}
	return name
}

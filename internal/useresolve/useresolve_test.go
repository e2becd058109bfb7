package useresolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crateweave/depgraph/internal/model"
)

func singleCrateWorkspace() model.Workspace {
	foo := &model.Module{
		ShortName: "foo", Path: "crate::foo",
		Structs: []model.StructDecl{{ID: "crate::foo::Widget", Name: "Widget"}},
	}
	root := &model.Module{
		ShortName: "crate", Path: "crate",
		Functions:  []model.FunctionDecl{{ID: "crate::run", Name: "run"}},
		Submodules: []*model.Module{foo},
	}
	return model.Workspace{Crates: []model.Crate{{Name: "", Root: root}}}
}

func TestSymbolIndexLookupSingleCrate(t *testing.T) {
	idx := NewSymbolIndex(singleCrateWorkspace())

	id, ok := idx.Lookup("crate::foo::Widget")
	require.True(t, ok)
	assert.Equal(t, "crate::foo::Widget", id)

	_, ok = idx.Lookup("crate::foo::Ghost")
	assert.False(t, ok)
}

func TestSuffixMatchIsDeterministic(t *testing.T) {
	idx := NewSymbolIndex(singleCrateWorkspace())

	id, ok := idx.SuffixMatch("Widget")
	require.True(t, ok)
	assert.Equal(t, "crate::foo::Widget", id)

	_, ok = idx.SuffixMatch("Nonexistent")
	assert.False(t, ok)
}

func TestResolveTypeRefViaAliasTable(t *testing.T) {
	idx := NewSymbolIndex(singleCrateWorkspace())
	aliases := AliasTable{"W": "crate::foo::Widget"}

	ref := &model.TypeRef{Name: "W"}
	ResolveTypeRef(ref, "crate", aliases, idx)
	assert.Equal(t, "crate::foo::Widget", ref.Resolved)
}

func TestResolveTypeRefExternalContainerStaysUnresolved(t *testing.T) {
	idx := NewSymbolIndex(singleCrateWorkspace())

	ref := &model.TypeRef{Name: "Vec", Args: []model.TypeRef{{Name: "Widget"}}}
	ResolveTypeRef(ref, "crate::foo", AliasTable{}, idx)

	assert.Empty(t, ref.Resolved)
	require.Len(t, ref.Args, 1)
	assert.Equal(t, "crate::foo::Widget", ref.Args[0].Resolved)
}

func TestResolveTypeRefFallsBackToCrateRoot(t *testing.T) {
	idx := NewSymbolIndex(singleCrateWorkspace())

	// "run" is declared at the crate root, referenced from a nested module
	// with no matching local declaration or alias.
	ref := &model.TypeRef{Name: "run"}
	ResolveTypeRef(ref, "crate::foo", AliasTable{}, idx)
	assert.Equal(t, "crate::run", ref.Resolved)
}

func TestQualifyIsIdentityForUnnamedCrate(t *testing.T) {
	assert.Equal(t, "crate::foo::Bar", Qualify("", "crate::foo::Bar"))
}

func TestQualifyPrefixesNamedCrate(t *testing.T) {
	assert.Equal(t, "mycrate::crate::foo::Bar", Qualify("mycrate", "crate::foo::Bar"))
}

func TestMultiCrateWorkspaceDoesNotCollideOnCrateRoot(t *testing.T) {
	a := &model.Module{ShortName: "crate", Path: "crate", Structs: []model.StructDecl{{ID: "crate::Foo", Name: "Foo"}}}
	b := &model.Module{ShortName: "crate", Path: "crate", Structs: []model.StructDecl{{ID: "crate::Bar", Name: "Bar"}}}
	ws := model.Workspace{Crates: []model.Crate{
		{Name: "crate-a", Root: a},
		{Name: "crate-b", Root: b},
	}}

	idx := NewSymbolIndex(ws)

	_, ok := idx.Lookup("crate_a::crate::Foo")
	assert.True(t, ok, "expected crate-a's struct to be registered under its own qualified id")
	_, ok = idx.Lookup("crate_b::crate::Bar")
	assert.True(t, ok, "expected crate-b's struct to be registered under its own qualified id")

	// Each crate root module itself must also be distinct.
	_, ok = idx.Lookup("crate_a::crate")
	assert.True(t, ok)
	_, ok = idx.Lookup("crate_b::crate")
	assert.True(t, ok)
}

func TestResolveBasePathSuperTraversesToParentModule(t *testing.T) {
	ws := singleCrateWorkspace()
	idx := NewSymbolIndex(ws)

	use := model.UseDecl{PathSegments: []string{"super", "run"}}
	resolved := resolveOneUse(use, "crate::foo", idx)
	assert.Equal(t, "crate::run", resolved["run"])
}

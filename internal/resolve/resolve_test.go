package resolve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/crateweave/depgraph/internal/manifest"
	"github.com/crateweave/depgraph/internal/model"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolveCrateLocatesLibEntryPoint(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "lib.rs"), `
pub struct Widget;
fn internal() {}
`)

	r := New(model.DefaultFilterConfig())
	root, err := r.ResolveCrate(dir, manifest.Manifest{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if root.Path != "crate" {
		t.Errorf("expected root path %q, got %q", "crate", root.Path)
	}
	if len(root.Structs) != 1 || root.Structs[0].Name != "Widget" {
		t.Errorf("expected Widget struct, got %+v", root.Structs)
	}
	if root.Structs[0].ID != "crate::Widget" {
		t.Errorf("expected qualified id crate::Widget, got %q", root.Structs[0].ID)
	}
	if len(root.Functions) != 1 || root.Functions[0].Name != "internal" {
		t.Errorf("expected internal function, got %+v", root.Functions)
	}
}

func TestResolveCrateFollowsModDeclarationToSiblingFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "lib.rs"), `
mod widget;
`)
	writeFile(t, filepath.Join(dir, "src", "widget.rs"), `
pub struct Widget;
`)

	r := New(model.DefaultFilterConfig())
	root, err := r.ResolveCrate(dir, manifest.Manifest{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(root.Submodules) != 1 {
		t.Fatalf("expected 1 submodule, got %d", len(root.Submodules))
	}
	sub := root.Submodules[0]
	if sub.Path != "crate::widget" {
		t.Errorf("expected submodule path crate::widget, got %q", sub.Path)
	}
	if len(sub.Structs) != 1 || sub.Structs[0].ID != "crate::widget::Widget" {
		t.Errorf("expected qualified struct in submodule, got %+v", sub.Structs)
	}
}

func TestResolveCrateFollowsModDeclarationToDirectoryModFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "lib.rs"), `
mod shapes;
`)
	writeFile(t, filepath.Join(dir, "src", "shapes", "mod.rs"), `
pub struct Circle;
mod nested;
`)
	writeFile(t, filepath.Join(dir, "src", "shapes", "nested.rs"), `
pub struct Nested;
`)

	r := New(model.DefaultFilterConfig())
	root, err := r.ResolveCrate(dir, manifest.Manifest{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(root.Submodules) != 1 {
		t.Fatalf("expected 1 submodule, got %d", len(root.Submodules))
	}
	shapes := root.Submodules[0]
	if shapes.Path != "crate::shapes" || len(shapes.Structs) != 1 {
		t.Fatalf("unexpected shapes module: %+v", shapes)
	}
	if len(shapes.Submodules) != 1 || shapes.Submodules[0].Path != "crate::shapes::nested" {
		t.Fatalf("expected nested submodule under shapes, got %+v", shapes.Submodules)
	}
}

func TestResolveCrateExpandsInlineModule(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "lib.rs"), `
mod util {
    pub fn helper() {}
}
`)

	r := New(model.DefaultFilterConfig())
	root, err := r.ResolveCrate(dir, manifest.Manifest{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(root.Submodules) != 1 || !root.Submodules[0].IsInline {
		t.Fatalf("expected 1 inline submodule, got %+v", root.Submodules)
	}
	if len(root.Submodules[0].Functions) != 1 || root.Submodules[0].Functions[0].Name != "helper" {
		t.Errorf("expected helper function in inline module, got %+v", root.Submodules[0].Functions)
	}
}

func TestResolveCrateExcludesCfgTestInlineModuleWhenFiltered(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "lib.rs"), `
#[cfg(test)]
mod tests {
    fn check() {}
}
`)

	r := New(model.NoTestsFilterConfig())
	root, err := r.ResolveCrate(dir, manifest.Manifest{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(root.Submodules) != 0 {
		t.Errorf("expected cfg(test) module excluded, got %+v", root.Submodules)
	}
}

func TestResolveCrateFallsBackToMainEntryPoint(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "main.rs"), `
fn main() {}
`)

	r := New(model.DefaultFilterConfig())
	root, err := r.ResolveCrate(dir, manifest.Manifest{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(root.Functions) != 1 || root.Functions[0].Name != "main" {
		t.Errorf("expected main function, got %+v", root.Functions)
	}
}

func TestResolveCrateReturnsManifestErrorWhenNoEntryPoint(t *testing.T) {
	dir := t.TempDir()

	r := New(model.DefaultFilterConfig())
	_, err := r.ResolveCrate(dir, manifest.Manifest{})
	if err == nil {
		t.Fatal("expected ManifestError, got nil")
	}
	if _, ok := err.(*ManifestError); !ok {
		t.Errorf("expected *ManifestError, got %T", err)
	}
}

func TestResolveCrateMemoizesRepeatedModReference(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "lib.rs"), `
mod widget;
mod widget;
`)
	writeFile(t, filepath.Join(dir, "src", "widget.rs"), `
pub struct Widget;
`)

	r := New(model.DefaultFilterConfig())
	root, err := r.ResolveCrate(dir, manifest.Manifest{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(root.Submodules) != 1 {
		t.Errorf("expected second mod reference to short-circuit, got %d submodules", len(root.Submodules))
	}
}

func TestResolveWorkspaceExpandsMembers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Cargo.toml"), `
[workspace]
members = ["crates/a", "crates/b"]
`)
	writeFile(t, filepath.Join(dir, "crates", "a", "Cargo.toml"), `
[package]
name = "crate-a"
`)
	writeFile(t, filepath.Join(dir, "crates", "a", "src", "lib.rs"), `
pub struct Foo;
`)
	writeFile(t, filepath.Join(dir, "crates", "b", "Cargo.toml"), `
[package]
name = "crate-b"
`)
	writeFile(t, filepath.Join(dir, "crates", "b", "src", "lib.rs"), `
pub struct Bar;
`)

	ws, err := ResolveWorkspace(dir, model.DefaultFilterConfig())
	if err != nil {
		t.Fatalf("resolve workspace: %v", err)
	}
	if len(ws.Crates) != 2 {
		t.Fatalf("expected 2 crates, got %d", len(ws.Crates))
	}
	names := map[string]bool{ws.Crates[0].Name: true, ws.Crates[1].Name: true}
	if !names["crate_a"] || !names["crate_b"] {
		t.Errorf("expected normalized crate names crate_a/crate_b, got %v", names)
	}
}

func TestResolveWorkspaceSingleCrateFallback(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "lib.rs"), `
pub struct Solo;
`)

	ws, err := ResolveWorkspace(dir, model.DefaultFilterConfig())
	if err != nil {
		t.Fatalf("resolve workspace: %v", err)
	}
	if len(ws.Crates) != 1 || ws.Crates[0].Name != "" {
		t.Fatalf("expected single unnamed crate, got %+v", ws.Crates)
	}
}

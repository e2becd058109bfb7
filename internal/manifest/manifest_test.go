package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, fileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestReadMinimalPackage(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[package]
name = "widgets"
`)

	m, err := Read(dir)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if m.PackageName != "widgets" {
		t.Errorf("expected package name widgets, got %q", m.PackageName)
	}
}

func TestReadLibAndBinOverrides(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[package]
name = "widgets"

[lib]
path = "src/custom_lib.rs"

[[bin]]
name = "cli"
path = "src/bin/cli.rs"

[[bin]]
name = "server"
`)

	m, err := Read(dir)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if m.LibPath != "src/custom_lib.rs" {
		t.Errorf("expected lib path override, got %q", m.LibPath)
	}
	if len(m.Bins) != 2 || m.Bins[0].Name != "cli" || m.Bins[0].Path != "src/bin/cli.rs" {
		t.Errorf("unexpected bins: %+v", m.Bins)
	}
}

func TestReadWorkspaceMembers(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[workspace]
members = [
    "crates/a",
    "crates/b",
]
`)

	m, err := Read(dir)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(m.WorkspaceMembers) != 2 || m.WorkspaceMembers[0] != "crates/a" {
		t.Errorf("unexpected workspace members: %v", m.WorkspaceMembers)
	}
}

func TestReadMissingManifestIsNonFatal(t *testing.T) {
	dir := t.TempDir()

	m, err := Read(dir)
	if err != nil {
		t.Fatalf("expected nil error for missing manifest, got %v", err)
	}
	if m.PackageName != filepath.Base(dir) {
		t.Errorf("expected package name to fall back to directory name, got %q", m.PackageName)
	}
}

func TestReadMalformedManifestIsNonFatal(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `this is not valid toml [[[`)

	m, err := Read(dir)
	if err != nil {
		t.Fatalf("expected nil error for malformed manifest, got %v", err)
	}
	if m.PackageName != filepath.Base(dir) {
		t.Errorf("expected fallback package name, got %q", m.PackageName)
	}
}

func TestExpandWorkspaceMembersFiltersNonMemberDirs(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[workspace]
members = ["crates/*"]
`)

	for _, name := range []string{"a", "b"} {
		memberDir := filepath.Join(dir, "crates", name)
		if err := os.MkdirAll(memberDir, 0o755); err != nil {
			t.Fatal(err)
		}
		writeManifest(t, memberDir, `[package]
name = "`+name+`"
`)
	}
	// A sibling directory with no manifest should not be treated as a member.
	if err := os.MkdirAll(filepath.Join(dir, "crates", "not-a-crate"), 0o755); err != nil {
		t.Fatal(err)
	}

	dirs, err := ExpandWorkspaceMembers(dir, []string{"crates/*"})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(dirs) != 2 {
		t.Fatalf("expected 2 workspace members, got %d: %v", len(dirs), dirs)
	}
}

func TestExpandWorkspaceMembersRespectsGitignore(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("crates/ignored\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"kept", "ignored"} {
		memberDir := filepath.Join(dir, "crates", name)
		if err := os.MkdirAll(memberDir, 0o755); err != nil {
			t.Fatal(err)
		}
		writeManifest(t, memberDir, `[package]
name = "`+name+`"
`)
	}

	dirs, err := ExpandWorkspaceMembers(dir, []string{"crates/*"})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(dirs) != 1 || filepath.Base(dirs[0]) != "kept" {
		t.Errorf("expected only the non-ignored member, got %v", dirs)
	}
}

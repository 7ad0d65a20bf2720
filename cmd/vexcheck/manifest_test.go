package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "vexcheck.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestFindVexcheckTomlWalksUp(t *testing.T) {
	root := t.TempDir()
	want := writeManifest(t, root, "[package]\nname = \"demo\"\n")

	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	got, ok, err := findVexcheckToml(nested)
	if err != nil || !ok {
		t.Fatalf("findVexcheckToml: ok = %v, err = %v", ok, err)
	}
	if got != want {
		t.Errorf("found %q, want %q", got, want)
	}
}

func TestFindVexcheckTomlMissing(t *testing.T) {
	_, ok, err := findVexcheckToml(t.TempDir())
	if err != nil {
		t.Fatalf("findVexcheckToml: %v", err)
	}
	if ok {
		t.Error("reported a manifest in an empty tree")
	}
}

func TestLoadProjectConfigCheckTable(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[package]
name = "demo"

[check]
max-diagnostics = 42
jobs = 3
fail-fast = 10
borrow-end = "lexical"
disk-cache = true
`)

	manifest, ok, err := loadProjectManifest(dir)
	if err != nil || !ok {
		t.Fatalf("loadProjectManifest: ok = %v, err = %v", ok, err)
	}
	cfg := manifest.Config.Check
	if cfg.MaxDiagnostics == nil || *cfg.MaxDiagnostics != 42 {
		t.Errorf("max-diagnostics = %v", cfg.MaxDiagnostics)
	}
	if cfg.Jobs == nil || *cfg.Jobs != 3 {
		t.Errorf("jobs = %v", cfg.Jobs)
	}
	if cfg.FailFast == nil || *cfg.FailFast != 10 {
		t.Errorf("fail-fast = %v", cfg.FailFast)
	}
	if cfg.BorrowEnd == nil || *cfg.BorrowEnd != "lexical" {
		t.Errorf("borrow-end = %v", cfg.BorrowEnd)
	}
	if cfg.DiskCache == nil || !*cfg.DiskCache {
		t.Errorf("disk-cache = %v", cfg.DiskCache)
	}
}

func TestLoadProjectConfigRejectsUnknownStrategy(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[check]
borrow-end = "nll"
`)
	if _, _, err := loadProjectManifest(dir); err == nil {
		t.Error("unknown borrow-end strategy accepted")
	}
}

func TestLoadProjectConfigRequiresPackageName(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[package]\n")
	if _, _, err := loadProjectManifest(dir); err == nil {
		t.Error("manifest with empty [package].name accepted")
	}
}

func TestReleaseStrategyNames(t *testing.T) {
	if _, err := releaseStrategy(""); err != nil {
		t.Errorf("empty name should default to lexical: %v", err)
	}
	if _, err := releaseStrategy("Lexical"); err != nil {
		t.Errorf("name matching should be case-insensitive: %v", err)
	}
	if _, err := releaseStrategy("arena"); err == nil {
		t.Error("unknown strategy accepted")
	}
}

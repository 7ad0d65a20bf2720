package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"vexcheck/internal/borrowck"
)

// projectManifest is a discovered vexcheck.toml with its location.
type projectManifest struct {
	Path   string
	Root   string
	Config projectConfig
}

type projectConfig struct {
	Package packageConfig `toml:"package"`
	Check   checkConfig   `toml:"check"`
}

type packageConfig struct {
	Name string `toml:"name"`
}

// checkConfig carries the [check] defaults; flags given explicitly on the
// command line win over these.
type checkConfig struct {
	MaxDiagnostics *int    `toml:"max-diagnostics"`
	Jobs           *int    `toml:"jobs"`
	FailFast       *int64  `toml:"fail-fast"`
	BorrowEnd      *string `toml:"borrow-end"`
	DiskCache      *bool   `toml:"disk-cache"`
}

func findVexcheckToml(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, "vexcheck.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

func loadProjectManifest(startDir string) (*projectManifest, bool, error) {
	manifestPath, ok, err := findVexcheckToml(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	cfg, err := loadProjectConfig(manifestPath)
	if err != nil {
		return nil, true, err
	}
	return &projectManifest{
		Path:   manifestPath,
		Root:   filepath.Dir(manifestPath),
		Config: cfg,
	}, true, nil
}

func loadProjectConfig(path string) (projectConfig, error) {
	var cfg projectConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return projectConfig{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if meta.IsDefined("package") {
		if !meta.IsDefined("package", "name") || strings.TrimSpace(cfg.Package.Name) == "" {
			return projectConfig{}, fmt.Errorf("%s: missing [package].name", path)
		}
	}
	if cfg.Check.BorrowEnd != nil {
		if _, err := releaseStrategy(*cfg.Check.BorrowEnd); err != nil {
			return projectConfig{}, fmt.Errorf("%s: %w", path, err)
		}
	}
	return cfg, nil
}

// releaseStrategy resolves the [check].borrow-end name. Only lexical scoping
// exists today; the name is validated so a future strategy is a value
// change, not a silent fallback.
func releaseStrategy(name string) (borrowck.ReleaseStrategy, error) {
	switch strings.TrimSpace(strings.ToLower(name)) {
	case "", "lexical":
		return borrowck.LexicalRelease{}, nil
	default:
		return nil, fmt.Errorf("unknown borrow-end strategy %q (expected lexical)", name)
	}
}

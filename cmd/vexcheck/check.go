package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"vexcheck/internal/diag"
	"vexcheck/internal/diagfmt"
	"vexcheck/internal/driver"
	"vexcheck/internal/source"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] <file.vxir|directory>",
	Short: "Verify ownership, moves, borrows, and lifetimes in Vex IR modules",
	Long:  `Verify serialized Vex IR modules. A single *.vxir file is checked directly; a directory is walked and every module under it is checked in parallel. Exit code 1 means the gate failed and code generation must not proceed.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func init() {
	registerCheckFlags(checkCmd)
}

func registerCheckFlags(cmd *cobra.Command) {
	cmd.Flags().String("format", "pretty", "output format (pretty|json)")
	cmd.Flags().Int("jobs", 0, "max parallel workers for directory processing (0=auto)")
	cmd.Flags().Int64("fail-fast", 0, "stop after this many errors (0=run to completion)")
	cmd.Flags().Bool("disk-cache", false, "enable persistent per-module verdict cache")
	cmd.Flags().String("ui", "auto", "interactive progress for directory runs (auto|on|off)")
	cmd.Flags().String("borrow-end", "", "borrow release strategy (lexical)")
	cmd.Flags().Bool("with-notes", false, "include diagnostic notes in output")
	cmd.Flags().Bool("suggest", false, "include fix suggestions in output")
	cmd.Flags().Bool("fullpath", false, "emit absolute file paths in output")
}

// checkSettings is the merged configuration: defaults, then the manifest's
// [check] table, then explicitly set flags.
type checkSettings struct {
	maxDiagnostics int
	jobs           int
	failFast       int64
	diskCache      bool
	borrowEnd      string
}

func resolveSettings(cmd *cobra.Command, manifest *projectManifest) (checkSettings, error) {
	s := checkSettings{}

	var err error
	if s.maxDiagnostics, err = cmd.Root().PersistentFlags().GetInt("max-diagnostics"); err != nil {
		return s, err
	}
	if s.jobs, err = cmd.Flags().GetInt("jobs"); err != nil {
		return s, err
	}
	if s.failFast, err = cmd.Flags().GetInt64("fail-fast"); err != nil {
		return s, err
	}
	if s.diskCache, err = cmd.Flags().GetBool("disk-cache"); err != nil {
		return s, err
	}
	if s.borrowEnd, err = cmd.Flags().GetString("borrow-end"); err != nil {
		return s, err
	}

	if manifest == nil {
		return s, nil
	}
	cfg := manifest.Config.Check
	if cfg.MaxDiagnostics != nil && !cmd.Root().PersistentFlags().Changed("max-diagnostics") {
		s.maxDiagnostics = *cfg.MaxDiagnostics
	}
	if cfg.Jobs != nil && !cmd.Flags().Changed("jobs") {
		s.jobs = *cfg.Jobs
	}
	if cfg.FailFast != nil && !cmd.Flags().Changed("fail-fast") {
		s.failFast = *cfg.FailFast
	}
	if cfg.DiskCache != nil && !cmd.Flags().Changed("disk-cache") {
		s.diskCache = *cfg.DiskCache
	}
	if cfg.BorrowEnd != nil && !cmd.Flags().Changed("borrow-end") {
		s.borrowEnd = *cfg.BorrowEnd
	}
	return s, nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	targetPath := args[0]

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unknown format: %s", format)
	}

	withNotes, err := cmd.Flags().GetBool("with-notes")
	if err != nil {
		return fmt.Errorf("failed to get with-notes flag: %w", err)
	}
	suggest, err := cmd.Flags().GetBool("suggest")
	if err != nil {
		return fmt.Errorf("failed to get suggest flag: %w", err)
	}
	fullPath, err := cmd.Flags().GetBool("fullpath")
	if err != nil {
		return fmt.Errorf("failed to get fullpath flag: %w", err)
	}
	uiFlag, err := cmd.Flags().GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	mode, err := readUIMode(uiFlag)
	if err != nil {
		return err
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}

	st, err := os.Stat(targetPath)
	if err != nil {
		return fmt.Errorf("failed to stat path: %w", err)
	}

	startDir := targetPath
	if !st.IsDir() {
		startDir = filepath.Dir(targetPath)
	}
	manifest, _, err := loadProjectManifest(startDir)
	if err != nil {
		return err
	}

	settings, err := resolveSettings(cmd, manifest)
	if err != nil {
		return err
	}
	release, err := releaseStrategy(settings.borrowEnd)
	if err != nil {
		return err
	}

	opts := driver.Options{
		MaxDiagnostics: settings.maxDiagnostics,
		Jobs:           settings.jobs,
		FailFast:       settings.failFast,
		Release:        release,
	}
	if settings.diskCache {
		cache, err := driver.OpenDiskCache("vexcheck")
		if err != nil {
			return fmt.Errorf("failed to open disk cache: %w", err)
		}
		opts.Cache = cache
	}

	var (
		fileSet *source.FileSet
		bag     *diag.Bag
		pass    bool
		checked int
	)
	if st.IsDir() {
		var run *driver.RunResult
		if shouldUseTUI(mode) && format == "pretty" {
			files, err := driver.ListModuleFiles(targetPath)
			if err != nil {
				return err
			}
			fileSet, run, err = runCheckDirWithUI(cmd.Context(), targetPath, files, opts)
			if err != nil {
				return fmt.Errorf("verification failed: %w", err)
			}
		} else {
			fileSet, run, err = driver.CheckDir(cmd.Context(), targetPath, opts)
			if err != nil {
				return fmt.Errorf("verification failed: %w", err)
			}
		}
		bag, pass, checked = run.Bag, run.Pass, len(run.Files)
	} else {
		fileSet = source.NewFileSetWithBase(startDir)
		res, err := driver.CheckFile(cmd.Context(), fileSet, targetPath, opts)
		if err != nil {
			return fmt.Errorf("verification failed: %w", err)
		}
		bag, pass, checked = res.Bag, res.Pass, 1
	}

	colorFlag, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return err
	}
	useColor := colorFlag == "on" || (colorFlag == "auto" && isTerminal(os.Stdout))
	pathMode := diagfmt.PathModeAuto
	if fullPath {
		pathMode = diagfmt.PathModeAbsolute
	}

	switch format {
	case "pretty":
		diagfmt.Pretty(os.Stdout, bag, fileSet, diagfmt.PrettyOpts{
			Color:           useColor,
			PathMode:        pathMode,
			ShowNotes:       withNotes,
			ShowSuggestions: suggest,
		})
		if !quiet {
			verdict := "pass"
			if !pass {
				verdict = "FAIL"
			}
			fmt.Fprintf(os.Stdout, "vexcheck: %d module(s), %d error(s): %s\n",
				checked, bag.ErrorCount(), verdict)
		}
	case "json":
		err := diagfmt.JSON(os.Stdout, bag, fileSet, diagfmt.JSONOpts{
			IncludePositions:   true,
			PathMode:           pathMode,
			IncludeNotes:       withNotes,
			IncludeSuggestions: suggest,
		})
		if err != nil {
			return fmt.Errorf("failed to format diagnostics: %w", err)
		}
	}

	if !pass {
		os.Exit(1)
	}
	return nil
}

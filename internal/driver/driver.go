// Package driver loads serialized Vex modules, runs the ownership analysis
// over them, and aggregates the results. It owns the run-wide FileSet,
// parallel fan-out for directory runs, fail-fast accounting, and the
// optional disk cache.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"vexcheck/internal/borrowck"
	"vexcheck/internal/diag"
	"vexcheck/internal/ir"
	"vexcheck/internal/source"
)

const defaultMaxDiagnostics = 256

// Options configures a verification run.
type Options struct {
	// MaxDiagnostics caps each file's bag. <=0 uses the default.
	MaxDiagnostics int
	// Jobs bounds parallel workers in directory mode. <=0 uses GOMAXPROCS.
	Jobs int
	// FailFast cancels the remaining function checks once this many errors
	// accumulated across the run. 0 runs to completion.
	FailFast int64
	// Cache, when non-nil, serves and stores per-module verdicts.
	Cache *DiskCache
	// Release overrides the borrow release strategy.
	Release borrowck.ReleaseStrategy
	// Events, when non-nil, receives progress events during directory runs.
	Events chan<- Event
}

// EventStatus tracks a file through the run for progress display.
type EventStatus uint8

const (
	StatusChecking EventStatus = iota
	StatusPass
	StatusFail
	StatusCached
)

type Event struct {
	Path   string
	Status EventStatus
}

// FileResult is the verification outcome of one .vxir module.
type FileResult struct {
	Path   string
	Module string
	Bag    *diag.Bag
	Pass   bool
	Cached bool
	// Closures carries the inferred closure call capabilities for
	// downstream consumers. Nil for cached or failed-to-decode files.
	Closures map[ir.ExprID]borrowck.CaptureMode
}

// RunResult aggregates a directory run. Bag holds every file's diagnostics
// merged and sorted; Files keeps per-file verdicts in path order.
type RunResult struct {
	Files []FileResult
	Bag   *diag.Bag
	Pass  bool
}

// ListModuleFiles returns the sorted *.vxir files under dir.
func ListModuleFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".vxir") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Deterministic order.
	sort.Strings(files)
	return files, nil
}

// CheckFile verifies a single serialized module. The returned error covers
// internal failures only; I/O and decode problems surface as diagnostics in
// the result's bag, like the analysis findings they gate alongside.
func CheckFile(ctx context.Context, fileSet *source.FileSet, path string, opts Options) (*FileResult, error) {
	opts = withDefaults(opts)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var counter diag.ErrorCounter
	var mu sync.Mutex
	return checkOne(ctx, cancel, fileSet, &mu, path, opts, &counter)
}

// CheckDir verifies every *.vxir module under dir in parallel and merges
// the results deterministically. The FileSet is returned alongside so the
// caller can render diagnostics against the loaded sources.
func CheckDir(ctx context.Context, dir string, opts Options) (*source.FileSet, *RunResult, error) {
	opts = withDefaults(opts)

	files, err := ListModuleFiles(dir)
	if err != nil {
		return nil, nil, err
	}
	fileSet := source.NewFileSetWithBase(dir)
	if len(files) == 0 {
		return fileSet, &RunResult{Bag: diag.NewBag(0), Pass: true}, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var counter diag.ErrorCounter
	var mu sync.Mutex

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	// Slot per file: indices are unique per goroutine, no mutex needed.
	results := make([]*FileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(files)))

	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			select {
			case <-gctx.Done():
				// Fail-fast tripped; leave the slot empty.
				return nil
			default:
			}
			emit(gctx, opts.Events, Event{Path: path, Status: StatusChecking})
			res, err := checkOne(gctx, cancel, fileSet, &mu, path, opts, &counter)
			if err != nil {
				return err
			}
			results[i] = res
			emit(gctx, opts.Events, Event{Path: path, Status: statusOf(res)})
			return nil
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fileSet, nil, err
	}

	run := &RunResult{Bag: diag.NewBag(opts.MaxDiagnostics)}
	for _, res := range results {
		if res == nil {
			continue
		}
		run.Files = append(run.Files, *res)
		run.Bag.Merge(res.Bag)
	}
	run.Bag.Sort()
	run.Pass = counter.Count() == 0 && len(run.Files) == len(files)
	return fileSet, run, nil
}

func withDefaults(opts Options) Options {
	if opts.MaxDiagnostics <= 0 {
		opts.MaxDiagnostics = defaultMaxDiagnostics
	}
	if opts.Release == nil {
		opts.Release = borrowck.LexicalRelease{}
	}
	return opts
}

func statusOf(res *FileResult) EventStatus {
	switch {
	case res.Cached:
		return StatusCached
	case res.Pass:
		return StatusPass
	default:
		return StatusFail
	}
}

func emit(ctx context.Context, ch chan<- Event, ev Event) {
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	case <-ctx.Done():
	}
}

// checkOne verifies one module against the shared run state: the FileSet
// (guarded by mu for registration), the run-wide error counter, and the
// cancel hook the fail-fast threshold pulls.
func checkOne(ctx context.Context, cancel context.CancelFunc, fileSet *source.FileSet, mu *sync.Mutex,
	path string, opts Options, counter *diag.ErrorCounter) (*FileResult, error) {
	bag := diag.NewBag(opts.MaxDiagnostics)
	reporter := runReporter(diag.BagReporter{Bag: bag}, counter, opts.FailFast, cancel)
	result := &FileResult{Path: path, Bag: bag}

	data, err := os.ReadFile(path)
	if err != nil {
		reporter.Report(diag.IOLoadFileError, diag.SevError, source.Span{},
			"failed to load module: "+err.Error(), nil, nil)
		return result, nil
	}

	key := cacheKey(data, opts)
	if opts.Cache != nil {
		var payload DiskPayload
		if hit, err := opts.Cache.Get(key, &payload); err == nil && hit {
			ids := registerSources(fileSet, mu, payload.SourceFiles)
			replayPayload(&payload, ids, reporter)
			bag.Sort()
			result.Module = payload.Module
			result.Pass = payload.Pass
			result.Cached = true
			return result, nil
		}
	}

	mod, err := ir.DecodeModule(data)
	if err != nil {
		reporter.Report(diag.IODecodeError, diag.SevError, source.Span{},
			err.Error(), nil, nil)
		return result, nil
	}

	ids := registerSources(fileSet, mu, mod.SourceFiles)
	mod.RemapFiles(func(old source.FileID) source.FileID {
		if int(old) < len(ids) {
			return ids[old]
		}
		return old
	})

	res, err := borrowck.Check(ctx, mod, borrowck.Options{
		Reporter: reporter,
		Release:  opts.Release,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return nil, fmt.Errorf("check %s: %w", path, err)
	}
	cancelled := err != nil

	bag.Sort()
	result.Module = mod.Name
	result.Pass = res.Pass()
	result.Closures = res.ClosureModes

	// A partial run must not poison the cache.
	if opts.Cache != nil && !cancelled {
		payload := makePayload(mod.Name, mod.SourceFiles, result.Pass, bag, ids)
		_ = opts.Cache.Put(key, payload)
	}
	return result, nil
}

// registerSources loads the module's source files into the run FileSet and
// returns the id per module-local index. Sources that cannot be read get a
// virtual placeholder: verification needs spans only, content is
// best-effort for rendering.
func registerSources(fileSet *source.FileSet, mu *sync.Mutex, paths []string) []source.FileID {
	mu.Lock()
	defer mu.Unlock()
	ids := make([]source.FileID, len(paths))
	for i, p := range paths {
		if id, ok := fileSet.GetLatest(p); ok {
			ids[i] = id
			continue
		}
		id, err := fileSet.Load(p)
		if err != nil {
			id = fileSet.AddVirtual(p, nil)
		}
		ids[i] = id
	}
	return ids
}

// runReporter builds the per-file reporter chain: bag storage, run-wide
// error accounting, and the fail-fast trigger. Cancellation lands between
// function checks, never mid-scope.
func runReporter(sink diag.Reporter, counter *diag.ErrorCounter, limit int64, cancel context.CancelFunc) diag.Reporter {
	counting := diag.NewCountingReporter(sink, counter)
	if limit <= 0 {
		return counting
	}
	return &failFastReporter{next: counting, counter: counter, limit: limit, cancel: cancel}
}

type failFastReporter struct {
	next    diag.Reporter
	counter *diag.ErrorCounter
	limit   int64
	cancel  context.CancelFunc
}

func (r *failFastReporter) Report(code diag.Code, sev diag.Severity, primary source.Span,
	msg string, notes []diag.Note, suggestions []diag.Suggestion) {
	r.next.Report(code, sev, primary, msg, notes, suggestions)
	if r.counter.Count() >= r.limit {
		r.cancel()
	}
}

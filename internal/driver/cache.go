package driver

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"vexcheck/internal/diag"
	"vexcheck/internal/source"
)

// Increment when DiskPayload format changes.
const cacheSchemaVersion uint16 = 1

// Digest is a SHA-256 content hash used as the cache key.
type Digest [32]byte

func contentDigest(data []byte) Digest {
	return sha256.Sum256(data)
}

// combineDigest is H(content || extra1 || extra2 ...). Extras arrive in a
// deterministic order.
func combineDigest(content Digest, extras ...Digest) Digest {
	h := sha256.New()
	_, _ = h.Write(content[:])
	for _, d := range extras {
		_, _ = h.Write(d[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// DiskCache stores per-module verdicts keyed by content digest.
// Thread-safe for concurrent access.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// DiskPayload is the cached outcome of verifying one module. Diagnostic
// spans are stored with module-local file indices (positions into
// SourceFiles); the driver remaps them onto the run's FileSet on load.
type DiskPayload struct {
	Schema      uint16
	Module      string
	SourceFiles []string
	Pass        bool
	Diagnostics []DiagPayload
}

type SpanPayload struct {
	File  uint32
	Start uint32
	End   uint32
}

type NotePayload struct {
	Message string
	Span    SpanPayload
}

type DiagPayload struct {
	Severity    uint8
	Code        uint16
	Message     string
	Primary     SpanPayload
	Notes       []NotePayload
	Suggestions []string
}

// OpenDiskCache initializes and returns a disk cache at the standard
// location ($XDG_CACHE_HOME/<app> or ~/.cache/<app>).
func OpenDiskCache(app string) (*DiskCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, app)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

// OpenDiskCacheAt opens a cache rooted at an explicit directory. Tests and
// manifest overrides use it.
func OpenDiskCacheAt(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

func (c *DiskCache) pathFor(key Digest) string {
	hexKey := hex.EncodeToString(key[:])
	return filepath.Join(c.dir, "modules", hexKey+".mp")
}

// Put serializes and writes a payload to the disk cache.
func (c *DiskCache) Put(key Digest, payload *DiskPayload) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(f.Name())
	}()

	if err := msgpack.NewEncoder(f).Encode(payload); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// Atomic replace.
	return os.Rename(f.Name(), p)
}

// Get reads and deserializes a payload from the disk cache. A missing entry
// is (false, nil), not an error.
func (c *DiskCache) Get(key Digest, out *DiskPayload) (bool, error) {
	if c == nil {
		return false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer func() {
		_ = f.Close()
	}()
	if err := msgpack.NewDecoder(f).Decode(out); err != nil {
		return false, err
	}
	if out.Schema != cacheSchemaVersion {
		return false, nil
	}
	return true, nil
}

// DropAll invalidates the cache, useful after format changes.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		return err
	}
	return os.RemoveAll(old)
}

// cacheKey mixes the module bytes with the options that change the verdict
// or the diagnostic set, so a config change never serves a stale entry.
func cacheKey(content []byte, opts Options) Digest {
	cfg := sha256.Sum256(fmt.Appendf(nil, "v%d/%T/%d",
		cacheSchemaVersion, opts.Release, opts.MaxDiagnostics))
	return combineDigest(contentDigest(content), Digest(cfg))
}

// payloadSpan maps a run FileSet span back to a module-local index. Spans
// pointing outside the module's own sources keep their id as-is.
func payloadSpan(sp source.Span, localOf map[source.FileID]uint32) SpanPayload {
	file := uint32(sp.File)
	if local, ok := localOf[sp.File]; ok {
		file = local
	}
	return SpanPayload{File: file, Start: sp.Start, End: sp.End}
}

func runSpan(sp SpanPayload, ids []source.FileID) source.Span {
	file := source.FileID(sp.File)
	if int(sp.File) < len(ids) {
		file = ids[sp.File]
	}
	return source.Span{File: file, Start: sp.Start, End: sp.End}
}

// makePayload snapshots a verified module's outcome for caching.
func makePayload(moduleName string, sources []string, pass bool, bag *diag.Bag, ids []source.FileID) *DiskPayload {
	localOf := make(map[source.FileID]uint32, len(ids))
	for local, id := range ids {
		localOf[id] = uint32(local)
	}

	items := bag.Items()
	out := &DiskPayload{
		Schema:      cacheSchemaVersion,
		Module:      moduleName,
		SourceFiles: sources,
		Pass:        pass,
		Diagnostics: make([]DiagPayload, 0, len(items)),
	}
	for _, d := range items {
		p := DiagPayload{
			Severity: uint8(d.Severity),
			Code:     uint16(d.Code),
			Message:  d.Message,
			Primary:  payloadSpan(d.Primary, localOf),
		}
		for _, n := range d.Notes {
			p.Notes = append(p.Notes, NotePayload{Message: n.Msg, Span: payloadSpan(n.Span, localOf)})
		}
		for _, s := range d.Suggestions {
			p.Suggestions = append(p.Suggestions, s.Title)
		}
		out.Diagnostics = append(out.Diagnostics, p)
	}
	return out
}

// replayPayload feeds cached diagnostics through the live reporter chain so
// fail-fast accounting sees them like fresh ones.
func replayPayload(payload *DiskPayload, ids []source.FileID, reporter diag.Reporter) {
	for _, d := range payload.Diagnostics {
		var notes []diag.Note
		for _, n := range d.Notes {
			notes = append(notes, diag.Note{Span: runSpan(n.Span, ids), Msg: n.Message})
		}
		var suggestions []diag.Suggestion
		for _, s := range d.Suggestions {
			suggestions = append(suggestions, diag.Suggestion{Title: s})
		}
		reporter.Report(diag.Code(d.Code), diag.Severity(d.Severity),
			runSpan(d.Primary, ids), d.Message, notes, suggestions)
	}
}

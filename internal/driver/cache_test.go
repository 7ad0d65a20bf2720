package driver

import (
	"context"
	"testing"

	"vexcheck/internal/diag"
	"vexcheck/internal/source"
)

func TestDiskCacheRoundTrip(t *testing.T) {
	cache, err := OpenDiskCacheAt(t.TempDir())
	if err != nil {
		t.Fatalf("OpenDiskCacheAt: %v", err)
	}

	key := contentDigest([]byte("module bytes"))
	in := &DiskPayload{
		Schema:      cacheSchemaVersion,
		Module:      "demo",
		SourceFiles: []string{"demo.vx"},
		Pass:        false,
		Diagnostics: []DiagPayload{{
			Severity: uint8(diag.SevError),
			Code:     uint16(diag.OwnUseAfterMove),
			Message:  "use of moved value `t`",
			Primary:  SpanPayload{File: 0, Start: 10, End: 11},
			Notes:    []NotePayload{{Message: "value moved here", Span: SpanPayload{File: 0, Start: 4, End: 5}}},
		}},
	}
	if err := cache.Put(key, in); err != nil {
		t.Fatalf("Put: %v", err)
	}

	var out DiskPayload
	hit, err := cache.Get(key, &out)
	if err != nil || !hit {
		t.Fatalf("Get: hit = %v, err = %v", hit, err)
	}
	if out.Module != "demo" || out.Pass || len(out.Diagnostics) != 1 {
		t.Errorf("payload mismatch: %+v", out)
	}
	if out.Diagnostics[0].Message != in.Diagnostics[0].Message {
		t.Errorf("diagnostic mismatch: %+v", out.Diagnostics[0])
	}

	var miss DiskPayload
	hit, err = cache.Get(contentDigest([]byte("other")), &miss)
	if err != nil || hit {
		t.Errorf("unexpected hit for unknown key: %v, %v", hit, err)
	}
}

func TestDiskCacheRejectsOldSchema(t *testing.T) {
	cache, err := OpenDiskCacheAt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	key := contentDigest([]byte("x"))
	if err := cache.Put(key, &DiskPayload{Schema: cacheSchemaVersion - 1}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	var out DiskPayload
	hit, err := cache.Get(key, &out)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if hit {
		t.Error("stale schema served as a hit")
	}
}

func TestCombineDigestOrderMatters(t *testing.T) {
	a := contentDigest([]byte("a"))
	b := contentDigest([]byte("b"))
	if combineDigest(a, b) == combineDigest(b, a) {
		t.Error("digest ignores ordering")
	}
	if combineDigest(a) == combineDigest(a, b) {
		t.Error("digest ignores extras")
	}
}

func TestCheckFileServesFromCache(t *testing.T) {
	dir := t.TempDir()
	path := writeModule(t, dir, "cached", true)
	cache, err := OpenDiskCacheAt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	opts := Options{Cache: cache}

	first, err := CheckFile(context.Background(), source.NewFileSetWithBase(dir), path, opts)
	if err != nil {
		t.Fatalf("first CheckFile: %v", err)
	}
	if first.Cached {
		t.Fatal("first run claims a cache hit")
	}

	second, err := CheckFile(context.Background(), source.NewFileSetWithBase(dir), path, opts)
	if err != nil {
		t.Fatalf("second CheckFile: %v", err)
	}
	if !second.Cached {
		t.Fatal("second run missed the cache")
	}
	if second.Pass != first.Pass || second.Module != first.Module {
		t.Errorf("cached verdict differs: %+v vs %+v", second, first)
	}

	a, b := bagCodes(first.Bag), bagCodes(second.Bag)
	if len(a) != len(b) {
		t.Fatalf("cached diagnostics differ: %v vs %v", a, b)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("cached diagnostics differ at %d: %v vs %v", i, a, b)
		}
	}
	if second.Bag.Items()[0].Message != first.Bag.Items()[0].Message {
		t.Error("cached message differs")
	}
}

func TestCacheKeyDependsOnOptions(t *testing.T) {
	data := []byte("payload")
	base := cacheKey(data, withDefaults(Options{}))
	capped := cacheKey(data, withDefaults(Options{MaxDiagnostics: 5}))
	if base == capped {
		t.Error("cache key ignores the diagnostic cap")
	}
	if base != cacheKey(data, withDefaults(Options{})) {
		t.Error("cache key is not deterministic")
	}
}

package source

import "testing"

func TestSpanCover(t *testing.T) {
	a := Span{File: 1, Start: 10, End: 20}
	b := Span{File: 1, Start: 5, End: 15}
	got := a.Cover(b)
	if got.Start != 5 || got.End != 20 {
		t.Fatalf("Cover = %v, want 1:5-20", got)
	}

	other := Span{File: 2, Start: 0, End: 100}
	if got := a.Cover(other); got != a {
		t.Fatalf("Cover across files must be a no-op, got %v", got)
	}
}

func TestResolveLineCol(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("test.vx", []byte("let x = 1;\nlet y = 2;\n"))

	start, end := fs.Resolve(Span{File: id, Start: 11, End: 14})
	if start.Line != 2 || start.Col != 1 {
		t.Fatalf("start = %+v, want line 2 col 1", start)
	}
	if end.Line != 2 || end.Col != 4 {
		t.Fatalf("end = %+v, want line 2 col 4", end)
	}
}

func TestGetLine(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("test.vx", []byte("first\nsecond\nthird"))
	f := fs.Get(id)

	cases := []struct {
		line uint32
		want string
	}{
		{1, "first"},
		{2, "second"},
		{3, "third"},
		{4, ""},
		{0, ""},
	}
	for _, tc := range cases {
		if got := f.GetLine(tc.line); got != tc.want {
			t.Errorf("GetLine(%d) = %q, want %q", tc.line, got, tc.want)
		}
	}
}

func TestLoadNormalizesCRLF(t *testing.T) {
	content, changed := normalizeCRLF([]byte("a\r\nb\rc"))
	if !changed {
		t.Fatal("expected CRLF normalization")
	}
	if string(content) != "a\nb\rc" {
		t.Fatalf("normalized = %q", content)
	}
}

func TestGetLatestTracksShadowedFiles(t *testing.T) {
	fs := NewFileSet()
	first := fs.AddVirtual("mod.vx", []byte("v1"))
	second := fs.AddVirtual("mod.vx", []byte("v2"))
	if first == second {
		t.Fatal("re-adding a path must mint a new id")
	}
	latest, ok := fs.GetLatest("mod.vx")
	if !ok || latest != second {
		t.Fatalf("GetLatest = %v, %v; want %v, true", latest, ok, second)
	}
}

func TestToLineColBoundaries(t *testing.T) {
	// "ab\ncd\n\nef" -> newlines at offsets 2, 5, 6.
	idx := buildLineIndex([]byte("ab\ncd\n\nef"))

	cases := []struct {
		off       uint32
		line, col uint32
	}{
		{0, 1, 1}, // first byte
		{1, 1, 2},
		{2, 1, 3}, // the newline belongs to the line it ends
		{3, 2, 1}, // first byte after a newline
		{4, 2, 2},
		{6, 3, 1}, // empty line
		{7, 4, 1},
		{8, 4, 2},
	}
	for _, tc := range cases {
		got := toLineCol(idx, tc.off)
		if got.Line != tc.line || got.Col != tc.col {
			t.Errorf("toLineCol(%d) = %d:%d, want %d:%d", tc.off, got.Line, got.Col, tc.line, tc.col)
		}
	}

	if got := toLineCol(nil, 4); got.Line != 1 || got.Col != 5 {
		t.Errorf("single-line file: got %d:%d, want 1:5", got.Line, got.Col)
	}
}

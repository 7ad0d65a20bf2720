package diagfmt

import (
	"bytes"
	"strings"
	"testing"

	"vexcheck/internal/diag"
	"vexcheck/internal/source"
)

func renderPretty(bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) string {
	var buf bytes.Buffer
	Pretty(&buf, bag, fs, opts)
	return buf.String()
}

func TestPrettyHeaderAndCaret(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("main.vx", []byte("let x = 1\nx = 2\n"))

	bag := diag.NewBag(16)
	bag.Add(diag.NewError(diag.OwnImmutableAssignment,
		source.Span{File: id, Start: 10, End: 15},
		"cannot assign to immutable binding `x`"))

	out := renderPretty(bag, fs, PrettyOpts{})

	if !strings.Contains(out, "main.vx:2:1: ERROR OWN4001: cannot assign to immutable binding `x`") {
		t.Errorf("missing header line, got:\n%s", out)
	}
	if !strings.Contains(out, "  x = 2\n") {
		t.Errorf("missing source line, got:\n%s", out)
	}
	if !strings.Contains(out, "  ^~~~~\n") {
		t.Errorf("missing caret underline, got:\n%s", out)
	}
}

func TestPrettyUnderlineOffset(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("main.vx", []byte("let r = &x\n"))

	bag := diag.NewBag(16)
	// Span covers "&x".
	bag.Add(diag.NewError(diag.OwnMutableWhileImmutablyBorrowed,
		source.Span{File: id, Start: 8, End: 10}, "conflicting borrow"))

	out := renderPretty(bag, fs, PrettyOpts{})
	if !strings.Contains(out, "  "+strings.Repeat(" ", 8)+"^~\n") {
		t.Errorf("underline misplaced, got:\n%s", out)
	}
}

func TestPrettyNotesAndSuggestions(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("main.vx", []byte("let s = t\nuse(s)\nuse(t)\n"))

	bag := diag.NewBag(16)
	bag.Add(diag.NewError(diag.OwnUseAfterMove,
		source.Span{File: id, Start: 21, End: 22}, "use of moved value `t`").
		WithNote(source.Span{File: id, Start: 8, End: 9}, "value moved here").
		WithSuggestion("clone the value before moving it"))

	full := renderPretty(bag, fs, PrettyOpts{ShowNotes: true, ShowSuggestions: true})
	if !strings.Contains(full, "note: main.vx:1:9: value moved here") {
		t.Errorf("missing note, got:\n%s", full)
	}
	if !strings.Contains(full, "suggestion: clone the value before moving it") {
		t.Errorf("missing suggestion, got:\n%s", full)
	}

	bare := renderPretty(bag, fs, PrettyOpts{})
	if strings.Contains(bare, "note:") || strings.Contains(bare, "suggestion:") {
		t.Errorf("notes/suggestions rendered despite being disabled:\n%s", bare)
	}
}

func TestPrettyZeroSpanNoteIsMessageOnly(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("main.vx", []byte("x = 1\n"))

	bag := diag.NewBag(16)
	bag.Add(diag.NewError(diag.OwnImmutableAssignment,
		source.Span{File: id, Start: 0, End: 1}, "cannot assign").
		WithNote(source.Span{}, "declared with `let`, not `let!`"))

	out := renderPretty(bag, fs, PrettyOpts{ShowNotes: true})
	if !strings.Contains(out, "  note: declared with `let`, not `let!`\n") {
		t.Errorf("zero-span note should omit the location, got:\n%s", out)
	}
}

func TestPrettyPathModes(t *testing.T) {
	fs := source.NewFileSetWithBase("/work")
	id := fs.AddVirtual("/work/src/main.vx", []byte("x = 1\n"))

	bag := diag.NewBag(16)
	bag.Add(diag.NewError(diag.OwnImmutableAssignment,
		source.Span{File: id, Start: 0, End: 1}, "cannot assign"))

	tests := []struct {
		name string
		mode PathMode
		want string
	}{
		{"absolute", PathModeAbsolute, "/work/src/main.vx:1:1:"},
		{"relative", PathModeRelative, "src/main.vx:1:1:"},
		{"basename", PathModeBasename, "main.vx:1:1:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := renderPretty(bag, fs, PrettyOpts{PathMode: tt.mode})
			if !strings.HasPrefix(out, tt.want) {
				t.Errorf("want prefix %q, got:\n%s", tt.want, out)
			}
		})
	}
}

func TestPrettySeverityLabels(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("main.vx", []byte("x\n"))
	sp := source.Span{File: id, Start: 0, End: 1}

	bag := diag.NewBag(16)
	bag.Add(diag.New(diag.SevWarning, diag.OwnInfo, sp, "w"))
	bag.Add(diag.New(diag.SevInfo, diag.OwnInfo, sp, "i"))

	out := renderPretty(bag, fs, PrettyOpts{})
	if !strings.Contains(out, "WARNING OWN4000: w") {
		t.Errorf("missing warning line:\n%s", out)
	}
	if !strings.Contains(out, "INFO OWN4000: i") {
		t.Errorf("missing info line:\n%s", out)
	}
}

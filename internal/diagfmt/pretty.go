package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"vexcheck/internal/diag"
	"vexcheck/internal/source"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan, color.Bold)
	noteColor    = color.New(color.FgBlue)
	suggestColor = color.New(color.FgGreen)
	caretColor   = color.New(color.FgRed, color.Bold)
)

// Pretty renders diagnostics in a human-readable form. It walks bag.Items()
// in order (callers sort first). Each diagnostic prints as
//
//	<path>:<line>:<col>: <SEV> <CODE>: <message>
//
// followed by the source line with a ^~~~ underline covering the span,
// then notes and suggestions.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	for _, d := range bag.Items() {
		printHeader(w, fs, opts, d.Severity, d.Code, d.Primary, d.Message)
		printSourceLine(w, fs, opts, d.Primary)
		if opts.ShowNotes {
			for _, note := range d.Notes {
				printNote(w, fs, opts, note)
			}
		}
		if opts.ShowSuggestions {
			for _, s := range d.Suggestions {
				label := "suggestion:"
				if opts.Color {
					label = suggestColor.Sprint(label)
				}
				fmt.Fprintf(w, "  %s %s\n", label, s.Title)
			}
		}
	}
}

func printHeader(w io.Writer, fs *source.FileSet, opts PrettyOpts, sev diag.Severity, code diag.Code, span source.Span, msg string) {
	var start source.LineCol
	if int(span.File) < fs.Len() {
		start, _ = fs.Resolve(span)
	}
	sevText := sev.String()
	codeText := code.ID()
	if opts.Color {
		c := severityColor(sev)
		sevText = c.Sprint(sevText)
		codeText = c.Sprint(codeText)
	}
	fmt.Fprintf(w, "%s:%d:%d: %s %s: %s\n",
		formatPath(fs, opts.PathMode, span.File), start.Line, start.Col,
		sevText, codeText, msg)
}

// printSourceLine prints the offending line with the caret underline. Spans
// past the file end (virtual files, zero spans) degrade to header-only
// output.
func printSourceLine(w io.Writer, fs *source.FileSet, opts PrettyOpts, span source.Span) {
	if int(span.File) >= fs.Len() {
		return
	}
	f := fs.Get(span.File)
	start, end := fs.Resolve(span)
	line := f.GetLine(start.Line)
	if line == "" {
		return
	}
	fmt.Fprintf(w, "  %s\n", strings.ReplaceAll(line, "\t", " "))

	// Width-aware underline: tabs were flattened above, wide runes count
	// per their display width.
	prefix := runewidth.StringWidth(string([]rune(line)[:min(int(start.Col)-1, len([]rune(line)))]))
	spanCols := int(end.Col) - int(start.Col)
	if end.Line != start.Line || spanCols < 1 {
		spanCols = 1
	}
	underline := "^" + strings.Repeat("~", spanCols-1)
	if opts.Color {
		underline = caretColor.Sprint(underline)
	}
	fmt.Fprintf(w, "  %s%s\n", strings.Repeat(" ", prefix), underline)
}

func printNote(w io.Writer, fs *source.FileSet, opts PrettyOpts, note diag.Note) {
	label := "note:"
	if opts.Color {
		label = noteColor.Sprint(label)
	}
	if (note.Span.Empty() && note.Span.File == 0) || int(note.Span.File) >= fs.Len() {
		fmt.Fprintf(w, "  %s %s\n", label, note.Msg)
		return
	}
	start, _ := fs.Resolve(note.Span)
	fmt.Fprintf(w, "  %s %s:%d:%d: %s\n",
		label, formatPath(fs, opts.PathMode, note.Span.File), start.Line, start.Col, note.Msg)
}

func severityColor(sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevError:
		return errorColor
	case diag.SevWarning:
		return warningColor
	default:
		return infoColor
	}
}

func formatPath(fs *source.FileSet, mode PathMode, id source.FileID) string {
	if int(id) >= fs.Len() {
		return "<unknown>"
	}
	return fs.Get(id).FormatPath(mode.key(), fs.BaseDir())
}

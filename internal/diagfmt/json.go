package diagfmt

import (
	"encoding/json"
	"io"

	"vexcheck/internal/diag"
	"vexcheck/internal/source"
)

// LocationJSON is a file location in machine-readable output.
type LocationJSON struct {
	File      string `json:"file"`
	StartByte uint32 `json:"start_byte"`
	EndByte   uint32 `json:"end_byte"`
	StartLine uint32 `json:"start_line,omitempty"`
	StartCol  uint32 `json:"start_col,omitempty"`
	EndLine   uint32 `json:"end_line,omitempty"`
	EndCol    uint32 `json:"end_col,omitempty"`
}

// NoteJSON is a secondary location with context.
type NoteJSON struct {
	Message  string       `json:"message"`
	Location LocationJSON `json:"location"`
}

// SuggestionJSON is a human-oriented fix hint.
type SuggestionJSON struct {
	Title string `json:"title"`
}

// DiagnosticJSON is one reported finding.
type DiagnosticJSON struct {
	Severity    string           `json:"severity"`
	Code        string           `json:"code"`
	Message     string           `json:"message"`
	Location    LocationJSON     `json:"location"`
	Notes       []NoteJSON       `json:"notes,omitempty"`
	Suggestions []SuggestionJSON `json:"suggestions,omitempty"`
}

// DiagnosticsOutput is the root of the JSON structure.
type DiagnosticsOutput struct {
	Diagnostics []DiagnosticJSON `json:"diagnostics"`
	Count       int              `json:"count"`
	Errors      int              `json:"errors"`
	Pass        bool             `json:"pass"`
}

func makeLocation(span source.Span, fs *source.FileSet, pathMode PathMode, includePositions bool) LocationJSON {
	loc := LocationJSON{
		File:      formatPath(fs, pathMode, span.File),
		StartByte: span.Start,
		EndByte:   span.End,
	}
	if includePositions && int(span.File) < fs.Len() {
		startPos, endPos := fs.Resolve(span)
		loc.StartLine = startPos.Line
		loc.StartCol = startPos.Col
		loc.EndLine = endPos.Line
		loc.EndCol = endPos.Col
	}
	return loc
}

// BuildDiagnosticsOutput assembles the JSON structure without serializing.
func BuildDiagnosticsOutput(bag *diag.Bag, fs *source.FileSet, opts JSONOpts) DiagnosticsOutput {
	items := bag.Items()
	maxItems := len(items)
	if opts.Max > 0 && opts.Max < maxItems {
		maxItems = opts.Max
	}

	diagnostics := make([]DiagnosticJSON, 0, maxItems)
	for i := 0; i < maxItems; i++ {
		d := items[i]
		out := DiagnosticJSON{
			Severity: d.Severity.String(),
			Code:     d.Code.ID(),
			Message:  d.Message,
			Location: makeLocation(d.Primary, fs, opts.PathMode, opts.IncludePositions),
		}
		if opts.IncludeNotes && len(d.Notes) > 0 {
			out.Notes = make([]NoteJSON, len(d.Notes))
			for j, note := range d.Notes {
				out.Notes[j] = NoteJSON{
					Message:  note.Msg,
					Location: makeLocation(note.Span, fs, opts.PathMode, opts.IncludePositions),
				}
			}
		}
		if opts.IncludeSuggestions && len(d.Suggestions) > 0 {
			out.Suggestions = make([]SuggestionJSON, len(d.Suggestions))
			for j, s := range d.Suggestions {
				out.Suggestions[j] = SuggestionJSON{Title: s.Title}
			}
		}
		diagnostics = append(diagnostics, out)
	}

	return DiagnosticsOutput{
		Diagnostics: diagnostics,
		Count:       len(diagnostics),
		Errors:      bag.ErrorCount(),
		Pass:        !bag.HasErrors(),
	}
}

// JSON writes the diagnostics as indented JSON.
func JSON(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts JSONOpts) error {
	output := BuildDiagnosticsOutput(bag, fs, opts)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

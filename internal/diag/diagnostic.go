package diag

import (
	"vexcheck/internal/source"
)

// Note is a secondary span with context ("moved here", "borrow created here").
type Note struct {
	Span source.Span
	Msg  string
}

// Suggestion is a short, human-oriented hint on how to address the problem.
// It carries no structured edits; applying fixes is a frontend concern.
type Suggestion struct {
	Title string
}

type Diagnostic struct {
	Severity    Severity
	Code        Code
	Message     string
	Primary     source.Span
	Notes       []Note
	Suggestions []Suggestion
}

package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"vexcheck/internal/driver"
	"vexcheck/internal/source"
	"vexcheck/internal/ui"
)

type checkOutcome struct {
	fileSet *source.FileSet
	run     *driver.RunResult
	err     error
}

// runCheckDirWithUI verifies a directory while a Bubble Tea program renders
// per-file progress. The run happens in a goroutine; closing the event
// channel tells the model the run is over.
func runCheckDirWithUI(ctx context.Context, dir string, files []string, opts driver.Options) (*source.FileSet, *driver.RunResult, error) {
	events := make(chan driver.Event, 256)
	outcomeCh := make(chan checkOutcome, 1)

	go func() {
		optsCopy := opts
		optsCopy.Events = events
		fileSet, run, err := driver.CheckDir(ctx, dir, optsCopy)
		outcomeCh <- checkOutcome{fileSet: fileSet, run: run, err: err}
		close(events)
	}()

	model := ui.NewProgressModel("vexcheck "+dir, files, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.fileSet, outcome.run, uiErr
	}
	return outcome.fileSet, outcome.run, outcome.err
}

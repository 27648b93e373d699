package forkline

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// EventFormatter pretty-prints streaming turn events for interactive use.
type EventFormatter struct {
	out io.Writer
}

// NewEventFormatter creates a formatter writing to stdout. Color is
// disabled automatically when stdout is not a terminal.
func NewEventFormatter() *EventFormatter {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
	return &EventFormatter{out: os.Stdout}
}

// Print renders one event.
func (f *EventFormatter) Print(event Event) {
	switch event.Type {
	case EventNodeStart:
		fmt.Fprintf(f.out, "%s %s\n", color.CyanString("->"), event.Node)
	case EventStatus:
		fmt.Fprintf(f.out, "   %s\n", color.YellowString(event.Message))
	case EventToken:
		fmt.Fprint(f.out, event.Message)
	case EventNodeUpdate:
		if channels, ok := event.Fields["channels"].([]string); ok && len(channels) > 0 {
			fmt.Fprintf(f.out, "   %s %v\n", color.GreenString("updated"), channels)
		}
	case EventTurnDone:
		fmt.Fprintln(f.out)
	}
}

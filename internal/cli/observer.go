package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fpang/gemini-video-analyzer/internal/jobs"
)

// ConsoleObserver prints generated text to Out as it arrives and progress
// to Status. Status lines are held back while text is streaming.
type ConsoleObserver struct {
	Out    io.Writer
	Status io.Writer
	// Quiet suppresses status lines.
	Quiet bool

	progress  int
	streaming bool
	midLine   bool
}

// OnEvent implements jobs.Observer.
func (o *ConsoleObserver) OnEvent(e jobs.Event) {
	switch e.Kind {
	case jobs.EventProgress:
		o.progress = e.Progress
	case jobs.EventStatus:
		o.status(e.Message)
	case jobs.EventFragment:
		o.streaming = true
		fmt.Fprint(o.Out, e.Text)
		o.midLine = !strings.HasSuffix(e.Text, "\n")
	case jobs.EventResult:
		if !o.streaming && e.Text != "" {
			fmt.Fprintln(o.Out, strings.TrimRight(e.Text, "\n"))
		}
		o.streaming = false
		o.endLine()
	case jobs.EventError:
		o.streaming = false
		o.endLine()
		fmt.Fprintf(o.Status, "Error: %s\n", e.Err.Error())
	case jobs.EventComplete:
		o.endLine()
		fmt.Fprintf(o.Status, "Saved: %s\n", e.Path)
	}
}

func (o *ConsoleObserver) status(msg string) {
	if o.Quiet || o.streaming || msg == "" {
		return
	}
	fmt.Fprintf(o.Status, "[%3d%%] %s\n", max(o.progress, 0), msg)
}

func (o *ConsoleObserver) endLine() {
	if o.midLine {
		fmt.Fprintln(o.Out)
		o.midLine = false
	}
}

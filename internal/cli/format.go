package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fpang/gemini-video-analyzer/internal/jobs"
)

// FormatDurationShort formats a duration in a short format (M:SS or H:MM:SS).
func FormatDurationShort(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// PrintSummary writes one line per video and the batch totals.
func PrintSummary(w io.Writer, s *jobs.BatchSummary) {
	fmt.Fprintln(w)
	for _, it := range s.Items {
		name := filepath.Base(it.VideoPath)
		if it.Err != nil {
			fmt.Fprintf(w, "  FAIL  %s (%s): %s\n", name, FormatDurationShort(it.Duration), it.Err.Message)
			continue
		}
		fmt.Fprintf(w, "  OK    %s (%s) -> %s\n", name, FormatDurationShort(it.Duration), it.OutputPath)
	}
	fmt.Fprintf(w, "\n%d succeeded, %d failed", s.Succeeded, s.Failed)
	if s.Skipped > 0 {
		fmt.Fprintf(w, ", %d skipped", s.Skipped)
	}
	fmt.Fprintf(w, " in %s\n", FormatDurationShort(s.Elapsed))
}

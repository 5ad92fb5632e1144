package desktop

import (
	"fmt"

	"github.com/ncruces/zenity"
	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-video-analyzer/internal/jobs"
)

// ProgressObserver mirrors job events into a progress dialog. Closing the
// dialog is reported through Canceled.
type ProgressObserver struct {
	dlg   zenity.ProgressDialog
	total int
	index int
	job   string
}

// NewProgress opens a progress dialog for a batch of total videos.
func NewProgress(total int) (*ProgressObserver, error) {
	dlg, err := zenity.Progress(
		zenity.Title(appTitle),
		zenity.MaxValue(100),
	)
	if err != nil {
		return nil, fmt.Errorf("open progress dialog: %w", err)
	}
	return NewProgressObserver(dlg, total), nil
}

// NewProgressObserver wraps an open dialog.
func NewProgressObserver(dlg zenity.ProgressDialog, total int) *ProgressObserver {
	return &ProgressObserver{dlg: dlg, total: max(total, 1)}
}

// Canceled is closed when the user dismisses the dialog.
func (p *ProgressObserver) Canceled() <-chan struct{} {
	return p.dlg.Done()
}

// OnEvent advances the batch counter whenever a new job starts reporting.
func (p *ProgressObserver) OnEvent(e jobs.Event) {
	if e.JobID != p.job {
		p.job = e.JobID
		p.index++
		if err := p.dlg.Value(0); err != nil {
			log.Debug().Err(err).Msg("Progress dialog update failed")
		}
	}
	switch e.Kind {
	case jobs.EventProgress:
		if err := p.dlg.Value(e.Progress); err != nil {
			log.Debug().Err(err).Msg("Progress dialog update failed")
		}
	case jobs.EventStatus:
		p.text(fmt.Sprintf("[%d/%d] %s", p.index, p.total, e.Message))
	case jobs.EventError:
		p.text(fmt.Sprintf("[%d/%d] Failed: %s", p.index, p.total, e.Err.Message))
	}
}

// Close completes and closes the dialog.
func (p *ProgressObserver) Close() error {
	_ = p.dlg.Complete()
	return p.dlg.Close()
}

func (p *ProgressObserver) text(s string) {
	if err := p.dlg.Text(s); err != nil {
		log.Debug().Err(err).Msg("Progress dialog update failed")
	}
}

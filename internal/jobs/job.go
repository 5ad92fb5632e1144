// Package jobs runs video analysis jobs: size check, optional compression,
// upload and generation, titling and saving, with progress reported to an
// Observer. Jobs are strictly sequential, including batches.
package jobs

import (
	"fmt"
	"strings"

	"github.com/fpang/gemini-video-analyzer/internal/chat"
)

// State is a step of the analysis state machine.
type State string

const (
	StateIdle         State = "IDLE"
	StateCheckingSize State = "CHECKING_SIZE"
	StateCompressing  State = "COMPRESSING"
	StateConnecting   State = "CONNECTING"
	StateGenerating   State = "GENERATING"
	StateTitling      State = "TITLING"
	StateSaving       State = "SAVING"
	StateDone         State = "DONE"
	StateError        State = "ERROR"
)

// Size ceiling bounds in megabytes.
const (
	MinSizeLimitMB     = 1
	MaxSizeLimitMB     = 1000
	DefaultSizeLimitMB = 500
)

// Config holds the per-job settings.
type Config struct {
	APIKey    string
	Model     string
	Mode      chat.Mode
	Stream    bool
	OutputDir string
	// MaxSizeMB is the upload ceiling; larger videos are compressed first.
	MaxSizeMB int
	// UseBOM prefixes saved results with a UTF-8 byte-order mark.
	UseBOM bool
}

// Validate checks the mode and the size ceiling.
func (c Config) Validate() error {
	if _, err := chat.ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if c.MaxSizeMB < MinSizeLimitMB || c.MaxSizeMB > MaxSizeLimitMB {
		return fmt.Errorf("size limit %d MB is outside %d-%d MB", c.MaxSizeMB, MinSizeLimitMB, MaxSizeLimitMB)
	}
	return nil
}

// Job is one analysis request and its accumulated outcome. Only the
// coordinator running the job mutates it.
type Job struct {
	ID        string
	VideoPath string
	Prompt    string
	Config    Config

	State State
	// WorkingPath is the file actually uploaded: VideoPath or its compressed copy.
	WorkingPath    string
	CompressedPath string
	Text           string
	Title          string
	OutputPath     string
	// PublishedTo is the remote location of the mirrored result, if any.
	PublishedTo string
}

// NewJob creates an idle job with a fresh ID.
func NewJob(videoPath, prompt string, cfg Config) *Job {
	return &Job{
		ID:        GenerateID(IDPrefix),
		VideoPath: videoPath,
		Prompt:    prompt,
		Config:    cfg,
		State:     StateIdle,
	}
}

func (j *Job) validate() error {
	if strings.TrimSpace(j.VideoPath) == "" {
		return fmt.Errorf("no video file selected")
	}
	if strings.TrimSpace(j.Prompt) == "" {
		return fmt.Errorf("prompt is empty")
	}
	return j.Config.Validate()
}

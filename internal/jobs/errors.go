package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/fpang/gemini-video-analyzer/internal/chat"
	"github.com/fpang/gemini-video-analyzer/internal/filehandler"
	"github.com/fpang/gemini-video-analyzer/internal/retry"
)

// Kind classifies why a job failed.
type Kind string

const (
	KindConfiguration        Kind = "configuration"
	KindTransientRemote      Kind = "transient_remote"
	KindAssetLifecycle       Kind = "asset_lifecycle"
	KindToolUnavailable      Kind = "tool_unavailable"
	KindCompressionExhausted Kind = "compression_exhausted"
	KindPersistence          Kind = "persistence"
	KindGeneration           Kind = "generation"
	KindCanceled             Kind = "canceled"
)

// Error is the terminal error of a job. Message is meant for the user; Err
// keeps the underlying cause.
type Error struct {
	Kind    Kind
	State   State
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// classify turns err, raised while the job was in state, into an *Error.
func classify(state State, err error) *Error {
	var jobErr *Error
	if errors.As(err, &jobErr) {
		return jobErr
	}

	e := &Error{State: state, Err: err}
	var (
		assetErr  *chat.AssetError
		exhausted *filehandler.CompressionExhaustedError
		retryErr  *retry.Error
	)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		e.Kind, e.Message = KindCanceled, "Analysis was canceled"
	case errors.Is(err, chat.ErrNoAPIKey):
		e.Kind, e.Message = KindConfiguration, "Gemini API key is not configured. Set GEMINI_API_KEY or save a key in the settings"
	case errors.Is(err, chat.ErrUnknownMode):
		e.Kind, e.Message = KindConfiguration, "Unknown generation mode"
	case errors.Is(err, filehandler.ErrInputNotFound), errors.Is(err, chat.ErrFileNotFound):
		e.Kind, e.Message = KindConfiguration, "Video file not found"
	case errors.Is(err, filehandler.ErrToolUnavailable):
		e.Kind, e.Message = KindToolUnavailable, "The video is larger than the size limit and FFmpeg is not installed. Install FFmpeg or choose a smaller video"
	case errors.As(err, &exhausted):
		e.Kind, e.Message = KindCompressionExhausted, "The video could not be compressed below the size limit. Trim or compress it manually"
	case errors.As(err, &assetErr):
		e.Kind, e.Message = KindAssetLifecycle, "Gemini could not process the uploaded video"
	case errors.As(err, &retryErr):
		e.Kind, e.Message = KindTransientRemote, fmt.Sprintf("Gemini request failed after %d attempts", retryErr.Attempts)
	case state == StateSaving:
		e.Kind, e.Message = KindPersistence, "Failed to save the analysis result"
	case state == StateConnecting:
		e.Kind, e.Message = KindConfiguration, "Failed to connect to Gemini"
	default:
		e.Kind, e.Message = KindGeneration, "Video analysis failed"
	}
	return e
}

// configError builds a configuration error raised before any work starts.
func configError(err error) *Error {
	return &Error{Kind: KindConfiguration, State: StateIdle, Message: "Invalid job settings", Err: err}
}

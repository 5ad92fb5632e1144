// Package desktop wraps native dialogs for the --gui mode: picking videos,
// entering a prompt, showing progress and reporting the outcome.
package desktop

import (
	"errors"
	"sort"
	"strings"

	"github.com/ncruces/zenity"
	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-video-analyzer/internal/filehandler"
)

const appTitle = "Gemini Video Analyzer"

// ErrCanceled is returned when the user dismisses a dialog.
var ErrCanceled = errors.New("canceled by user")

// VideoPatterns returns the file picker patterns for supported videos, sorted.
func VideoPatterns() []string {
	patterns := make([]string, 0, len(filehandler.SupportedVideoExtensions))
	for ext := range filehandler.SupportedVideoExtensions {
		patterns = append(patterns, "*"+ext)
	}
	sort.Strings(patterns)
	return patterns
}

// PickVideos opens a multi-select file picker starting in dir.
func PickVideos(dir string) ([]string, error) {
	opts := []zenity.Option{
		zenity.Title("Select videos to analyze"),
		zenity.FileFilters{{Name: "Videos", Patterns: VideoPatterns()}},
	}
	if dir != "" {
		opts = append(opts, zenity.Filename(dir))
	}
	paths, err := zenity.SelectFileMultiple(opts...)
	if err != nil {
		return nil, dialogErr(err)
	}
	log.Info().Int("count", len(paths)).Msg("Videos picked via native dialog")
	return paths, nil
}

// PromptText asks for the analysis instruction, prefilled with last.
func PromptText(last string) (string, error) {
	text, err := zenity.Entry("What should Gemini do with the video?",
		zenity.Title(appTitle),
		zenity.EntryText(last),
	)
	if err != nil {
		return "", dialogErr(err)
	}
	return strings.TrimSpace(text), nil
}

// ShowError displays a failure message.
func ShowError(message string) {
	if err := zenity.Error(message, zenity.Title(appTitle), zenity.ErrorIcon); err != nil {
		log.Warn().Err(err).Msg("Failed to show error dialog")
	}
}

// Notify shows a desktop notification.
func Notify(message string) {
	if err := zenity.Notify(message, zenity.Title(appTitle), zenity.InfoIcon); err != nil {
		log.Warn().Err(err).Msg("Failed to show notification")
	}
}

func dialogErr(err error) error {
	if errors.Is(err, zenity.ErrCanceled) {
		return ErrCanceled
	}
	return err
}

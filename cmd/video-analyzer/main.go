package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/gemini-video-analyzer/internal/config"
	"github.com/fpang/gemini-video-analyzer/internal/logging"
)

// Global flags
var (
	configPathFlag string
	logLevelFlag   string
	logFileFlag    string
)

// Loaded by the root PersistentPreRunE.
var (
	settings     *config.Settings
	settingsPath string
	logCloser    io.Closer
)

// rootCmd is the main Cobra command for the video-analyzer CLI.
var rootCmd = &cobra.Command{
	Use:   "video-analyzer",
	Short: "Analyze videos with Gemini and save the results as Markdown",
	Long: `Video Analyzer uploads videos to Gemini with an instruction of your choice,
streams the response to the terminal and saves it as a titled Markdown file.

Videos larger than the configured size limit are compressed with ffmpeg
before upload. Uploaded files are deleted from Gemini when each job ends.

Examples:
  video-analyzer analyze run.mp4 --prompt "Summarize my running form"
  video-analyzer analyze --dir ./clips --limit 5 --archive results.zip
  video-analyzer analyze --gui
  video-analyzer models
  video-analyzer doctor
  video-analyzer config set model_name gemini-2.5-pro`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config", "", "Settings file (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFileFlag, "log-file", "", "Also write JSON logs to this file")

	rootCmd.AddCommand(analyzeCmd, modelsCmd, doctorCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup initializes logging and loads settings for every subcommand.
func setup(cmd *cobra.Command, args []string) error {
	if _, err := logging.Init(logging.Options{Level: logLevelFlag}); err != nil {
		return err
	}

	settingsPath = configPathFlag
	if settingsPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		settingsPath = p
	}

	s, err := config.Load(settingsPath)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	settings = s

	level := logLevelFlag
	if level == "" {
		level = s.Log.Level
	}
	file := logFileFlag
	if file == "" {
		file = s.Log.File
	}
	closer, err := logging.Init(logging.Options{Level: level, File: file})
	if err != nil {
		return err
	}
	logCloser = closer

	log.Debug().Str("settings", settingsPath).Msg("Settings loaded")
	return nil
}

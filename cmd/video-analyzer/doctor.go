package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fpang/gemini-video-analyzer/internal/cli"
	"github.com/fpang/gemini-video-analyzer/internal/filehandler"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check ffmpeg, the API key and the configured model",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	healthy := true

	if version, err := filehandler.FFmpegVersion(ctx); err != nil {
		fmt.Fprintf(out, "ffmpeg:  MISSING - %v (large videos cannot be compressed)\n", err)
	} else {
		fmt.Fprintf(out, "ffmpeg:  %s\n", version)
	}

	_, source, err := cli.ResolveAPIKey(ctx, settings)
	if err != nil {
		fmt.Fprintf(out, "API key: MISSING - %v\n", err)
		return fmt.Errorf("API key not configured")
	}
	fmt.Fprintf(out, "API key: found (%s)\n", source)

	client, err := cli.InitGeminiClient(ctx, settings, true)
	if err != nil {
		healthy = false
		fmt.Fprintf(out, "Gemini:  FAILED - %s\n         %v\n", cli.ValidationHint(err), err)
	} else {
		fmt.Fprintf(out, "Gemini:  OK (model %s)\n", client.Model())
	}

	fmt.Fprintf(out, "Config:  %s\n", settingsPath)
	if !healthy {
		return fmt.Errorf("doctor found problems")
	}
	return nil
}

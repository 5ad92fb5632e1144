package main

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fpang/gemini-video-analyzer/internal/cli"
	"github.com/fpang/gemini-video-analyzer/internal/config"
)

var catalogFlag string

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the model catalog and the models available to your key",
	Args:  cobra.NoArgs,
	RunE:  runModels,
}

func init() {
	modelsCmd.Flags().StringVar(&catalogFlag, "catalog", "", "Model catalog YAML (default: models.yaml in the config dir)")
}

func runModels(cmd *cobra.Command, args []string) error {
	path := catalogFlag
	if path == "" {
		p, err := config.DefaultModelsPath()
		if err != nil {
			return err
		}
		path = p
	}
	catalog, err := config.LoadModels(path)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	var available []string
	client, err := cli.InitGeminiClient(ctx, settings, false)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Could not list models from the API: %v\n", err)
	} else {
		available = client.Models()
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Catalog:")
	for _, m := range catalog {
		marker := " "
		if m.Name == settings.Gemini.ModelName {
			marker = "*"
		}
		status := ""
		if len(available) > 0 && !slices.ContainsFunc(available, func(a string) bool {
			return strings.TrimPrefix(a, "models/") == m.Name
		}) {
			status = " (not available)"
		}
		fmt.Fprintf(out, " %s %-26s %s%s\n", marker, m.Name, m.Description, status)
	}

	if len(available) > 0 {
		fmt.Fprintf(out, "\nAvailable to this key (%d):\n", len(available))
		for _, name := range available {
			fmt.Fprintf(out, "   %s\n", name)
		}
	}
	return nil
}

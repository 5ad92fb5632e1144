package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/gemini-video-analyzer/internal/assets"
	"github.com/fpang/gemini-video-analyzer/internal/auth"
	"github.com/fpang/gemini-video-analyzer/internal/cli"
	"github.com/fpang/gemini-video-analyzer/internal/config"
	"github.com/fpang/gemini-video-analyzer/internal/desktop"
	"github.com/fpang/gemini-video-analyzer/internal/filehandler"
	"github.com/fpang/gemini-video-analyzer/internal/jobs"
	"github.com/fpang/gemini-video-analyzer/internal/logging"
	"github.com/fpang/gemini-video-analyzer/internal/metrics"
	"github.com/fpang/gemini-video-analyzer/internal/s3util"
)

// analyze flags
var (
	promptFlag      string
	promptFileFlag  string
	templateFlag    string
	interactiveFlag bool
	modelFlag       string
	modeFlag        string
	streamFlag      bool
	outputDirFlag   string
	maxSizeFlag     int
	bomFlag         bool
	directoryFlag   string
	maxDepthFlag    int
	limitFlag       int
	archiveFlag     string
	s3BucketFlag    string
	s3PrefixFlag    string
	guiFlag         bool
	metricsFileFlag string
	quietFlag       bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [videos...]",
	Short: "Analyze one or more videos",
	Long: `Analyze uploads each video to Gemini with the prompt and saves the response
as a Markdown file named after a generated title.

Videos are processed one at a time. A failed video does not stop the batch;
Ctrl-C cancels the current video and skips the rest.`,
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVarP(&promptFlag, "prompt", "p", "", "Instruction sent with each video")
	f.StringVar(&promptFileFlag, "prompt-file", "", "Read the instruction from a file ('-' for stdin)")
	f.StringVarP(&templateFlag, "template", "t", "", fmt.Sprintf("Use a prompt template: %s or %s", strings.Join(assets.TemplateNames(), ", "), config.CustomTemplate))
	f.BoolVarP(&interactiveFlag, "interactive", "i", false, "Ask for the instruction on the terminal")
	f.StringVarP(&modelFlag, "model", "m", "", "Gemini model to use (e.g., gemini-2.5-pro)")
	f.StringVar(&modeFlag, "mode", "", "Request mode: generate_content or chat")
	f.BoolVar(&streamFlag, "stream", true, "Stream the response as it is generated")
	f.StringVarP(&outputDirFlag, "output-dir", "o", "", "Directory for results (default: next to each video)")
	f.IntVar(&maxSizeFlag, "max-size-mb", jobs.DefaultSizeLimitMB, fmt.Sprintf("Compress videos larger than this (%d-%d)", jobs.MinSizeLimitMB, jobs.MaxSizeLimitMB))
	f.BoolVar(&bomFlag, "bom", true, "Prefix results with a UTF-8 byte-order mark")
	f.StringVarP(&directoryFlag, "dir", "d", "", "Analyze the videos found in this directory")
	f.IntVar(&maxDepthFlag, "max-depth", 0, "Maximum recursion depth for --dir (0 = unlimited)")
	f.IntVar(&limitFlag, "limit", 0, "Maximum videos to take from --dir (0 = unlimited)")
	f.StringVar(&archiveFlag, "archive", "", "Bundle all results into this zip file")
	f.StringVar(&s3BucketFlag, "s3-bucket", "", "Mirror results to this S3 bucket")
	f.StringVar(&s3PrefixFlag, "s3-prefix", "", "Key prefix for mirrored results")
	f.BoolVar(&guiFlag, "gui", false, "Pick videos and show progress with native dialogs")
	f.StringVar(&metricsFileFlag, "metrics-file", "", "Write Prometheus metrics to this file when done")
	f.BoolVarP(&quietFlag, "quiet", "q", false, "Only print the generated text")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	initStart := time.Now()
	applyAnalyzeFlags(cmd)

	videos, err := collectVideos(args)
	if err != nil {
		return fail(err)
	}
	if len(videos) == 0 {
		return fail(errors.New("no videos to analyze: pass paths, --dir or --gui"))
	}

	prompt, err := resolvePrompt()
	if err != nil {
		return fail(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := settings.JobConfig()
	if err := cfg.Validate(); err != nil {
		return fail(err)
	}
	apiKey, source, err := cli.ResolveAPIKey(ctx, settings)
	if err != nil {
		return fail(err)
	}
	cfg.APIKey = apiKey

	coord := jobs.NewCoordinator(jobs.GeminiClientFactory)
	if settings.AWS.S3Bucket != "" {
		mirror, err := s3util.NewMirror(ctx, settings.AWS.S3Bucket, settings.AWS.S3Prefix, settings.AWS.Region)
		if err != nil {
			return fail(err)
		}
		coord.Publisher = mirror
	}

	logging.NewStartupLogger("analyze").
		CommitHash(commitHash).
		BuildTime(buildTime).
		S3Bucket("results", settings.AWS.S3Bucket).
		SSMParam("apiKey", settings.AWS.SSMParam).
		Feature("stream", cfg.Stream).
		Feature("gui", guiFlag).
		Feature("ffmpeg", filehandler.IsFFmpegAvailable()).
		Config("model", cfg.Model).
		Config("mode", string(cfg.Mode)).
		Config("maxSizeMB", fmt.Sprint(cfg.MaxSizeMB)).
		Config("keySource", string(source)).
		Config("videos", fmt.Sprint(len(videos))).
		InitDuration(time.Since(initStart)).
		Log()

	obs := jobs.MultiObserver{&cli.ConsoleObserver{Out: os.Stdout, Status: os.Stderr, Quiet: quietFlag}}
	if guiFlag {
		progress, err := desktop.NewProgress(len(videos))
		if err != nil {
			log.Warn().Err(err).Msg("Progress dialog unavailable, continuing on the console")
		} else {
			defer progress.Close()
			obs = append(obs, progress)
			var cancel context.CancelFunc
			ctx, cancel = context.WithCancel(ctx)
			defer cancel()
			go func() {
				select {
				case <-progress.Canceled():
					log.Warn().Msg("Progress dialog closed, canceling")
					cancel()
				case <-ctx.Done():
				}
			}()
		}
	}

	summary := coord.RunBatch(ctx, videos, prompt, cfg, obs)
	if !quietFlag || len(videos) > 1 {
		cli.PrintSummary(os.Stderr, summary)
	}

	rememberPrompt(prompt)
	finishBatch(summary)

	if summary.Failed > 0 || summary.Skipped > 0 {
		return fmt.Errorf("%d of %d videos did not complete", summary.Failed+summary.Skipped, len(videos))
	}
	return nil
}

// applyAnalyzeFlags overlays explicitly set flags onto the loaded settings.
func applyAnalyzeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("model") {
		settings.Gemini.ModelName = modelFlag
	}
	if f.Changed("mode") {
		settings.Gemini.Mode = modeFlag
	}
	if f.Changed("stream") {
		settings.Gemini.StreamResponse = streamFlag
	}
	if f.Changed("output-dir") {
		settings.File.OutputDirectory = outputDirFlag
	}
	if f.Changed("max-size-mb") {
		settings.File.MaxFileSizeMB = maxSizeFlag
	}
	if f.Changed("bom") {
		settings.File.UseBOM = bomFlag
	}
	if f.Changed("s3-bucket") {
		settings.AWS.S3Bucket = s3BucketFlag
	}
	if f.Changed("s3-prefix") {
		settings.AWS.S3Prefix = s3PrefixFlag
	}
}

// collectVideos gathers the explicit paths, the --dir scan and the GUI picks.
func collectVideos(args []string) ([]string, error) {
	videos := append([]string(nil), args...)

	if directoryFlag != "" {
		dir, err := cli.ValidateAndResolveDirectory(directoryFlag)
		if err != nil {
			return nil, err
		}
		found, err := filehandler.ScanVideos(dir, filehandler.ScanOptions{MaxDepth: maxDepthFlag, Limit: limitFlag})
		if err != nil {
			return nil, err
		}
		videos = append(videos, filehandler.VideoPaths(found)...)
	}

	if guiFlag && len(videos) == 0 {
		picked, err := desktop.PickVideos(settings.File.InputDirectory)
		if err != nil {
			return nil, err
		}
		videos = picked
		if len(picked) > 0 {
			settings.File.InputDirectory = filepath.Dir(picked[0])
		}
	}
	return videos, nil
}

// resolvePrompt picks the instruction: --prompt, --prompt-file, --template,
// a dialog or terminal question, then the built-in default.
func resolvePrompt() (string, error) {
	switch {
	case strings.TrimSpace(promptFlag) != "":
		return strings.TrimSpace(promptFlag), nil
	case promptFileFlag != "":
		return cli.ReadPromptFile(promptFileFlag)
	case templateFlag != "":
		return settings.PromptTemplate(templateFlag)
	case guiFlag:
		p, err := desktop.PromptText(settings.UI.LastPrompt)
		if err != nil {
			return "", err
		}
		if p == "" {
			return assets.VideoAnalysisPrompt, nil
		}
		return p, nil
	case interactiveFlag:
		return cli.PromptForPrompt(os.Stdin, os.Stderr, settings.UI.LastPrompt), nil
	default:
		return assets.VideoAnalysisPrompt, nil
	}
}

// rememberPrompt saves a custom prompt as the next default.
func rememberPrompt(prompt string) {
	if templateFlag != "" || prompt == assets.VideoAnalysisPrompt || prompt == settings.UI.LastPrompt {
		return
	}
	saved, err := configForSave()
	if err != nil {
		log.Debug().Err(err).Msg("Not saving last prompt")
		return
	}
	saved.UI.LastPrompt = prompt
	saved.File.InputDirectory = settings.File.InputDirectory
	if err := saved.Save(settingsPath); err != nil {
		log.Warn().Err(err).Msg("Failed to save last prompt")
	}
}

// finishBatch archives results, writes metrics and notifies the desktop.
func finishBatch(summary *jobs.BatchSummary) {
	if archiveFlag != "" {
		n, err := summary.Archive(archiveFlag)
		if err != nil {
			log.Error().Err(err).Str("path", archiveFlag).Msg("Failed to archive results")
		} else {
			fmt.Fprintf(os.Stderr, "Archived %d result(s) to %s\n", n, archiveFlag)
		}
	}

	if metricsFileFlag != "" {
		if err := metrics.WriteTextfile(metricsFileFlag); err != nil {
			log.Error().Err(err).Msg("Failed to write metrics")
		}
	}

	if guiFlag {
		desktop.Notify(fmt.Sprintf("%d succeeded, %d failed", summary.Succeeded, summary.Failed))
	}
}

// fail reports err through the GUI when enabled and adds advice for
// API key problems.
func fail(err error) error {
	if errors.Is(err, desktop.ErrCanceled) {
		return err
	}
	if errors.Is(err, auth.ErrNoAPIKey) {
		err = fmt.Errorf("%w\n%s", err, cli.ValidationHint(auth.ClassifyError(err)))
	}
	if guiFlag {
		desktop.ShowError(err.Error())
	}
	return err
}

package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-video-analyzer/internal/chat"
	"github.com/fpang/gemini-video-analyzer/internal/filehandler"
	"github.com/fpang/gemini-video-analyzer/internal/metrics"
)

// Progress milestones of a job. Compression reports inside
// [compressStart, compressEnd] and streamed generation inside
// [ProgressGenerating, streamProgressCap].
const (
	compressStart      = 1
	compressEnd        = 9
	ProgressConnecting = 10
	ProgressGenerating = 20
	progressSent       = 30
	progressReceived   = 80
	streamProgressCap  = 85
	ProgressTitling    = 85
	ProgressSaving     = 90
	ProgressDone       = 100

	// fragmentsPerTick is how many streamed fragments advance progress once.
	fragmentsPerTick = 5
)

// AnalysisClient is the part of chat.Client a job uses.
type AnalysisClient interface {
	Model() string
	AnalyzeVideo(ctx context.Context, path, prompt string, mode chat.Mode, stream bool) (*chat.Result, error)
	GenerateText(ctx context.Context, prompt string) (string, error)
	Cleanup(ctx context.Context)
}

// ClientFactory creates the client for one job. Every job gets its own.
type ClientFactory func(ctx context.Context, cfg Config) (AnalysisClient, error)

// GeminiClientFactory creates a chat.Client backed by the Gemini API.
func GeminiClientFactory(ctx context.Context, cfg Config) (AnalysisClient, error) {
	c, err := chat.NewGemini(ctx, chat.Options{APIKey: cfg.APIKey, Model: cfg.Model})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Reducer shrinks a video below a byte target. *filehandler.Reducer implements it.
type Reducer interface {
	Reduce(ctx context.Context, input string, targetBytes int64, progress filehandler.ProgressFunc) (*filehandler.Reduction, error)
}

// ResultPublisher copies a saved result somewhere else and returns where.
type ResultPublisher interface {
	Publish(ctx context.Context, path string) (string, error)
}

// Coordinator runs analysis jobs.
type Coordinator struct {
	NewClient ClientFactory
	Reducer   Reducer
	// Publisher, when set, receives every saved result. Failures are logged.
	Publisher ResultPublisher
	// Now stamps output file names. Nil means time.Now.
	Now func() time.Time
}

// NewCoordinator returns a Coordinator using factory for clients and ffmpeg
// for compression.
func NewCoordinator(factory ClientFactory) *Coordinator {
	return &Coordinator{
		NewClient: factory,
		Reducer:   filehandler.NewReducer(),
		Now:       time.Now,
	}
}

// Start runs job on a new goroutine and returns its events. The channel is
// closed after the terminal event.
func (c *Coordinator) Start(ctx context.Context, job *Job) <-chan Event {
	obs := NewChannelObserver(ctx, 64)
	go func() {
		defer close(obs.C)
		_ = c.Run(ctx, job, obs)
	}()
	return obs.C
}

// Run executes job to completion on the calling goroutine. It returns nil
// after the result is saved, or the *Error also delivered as the error event.
// Uploaded files and temporary compressed copies are removed before Run
// returns, whatever the outcome.
func (c *Coordinator) Run(ctx context.Context, job *Job, obs Observer) error {
	if obs == nil {
		obs = discard
	}
	if job.ID == "" {
		job.ID = GenerateID(IDPrefix)
	}
	r := &run{
		Coordinator: c,
		job:         job,
		obs:         obs,
		log:         log.With().Str("job", job.ID).Logger(),
		progress:    -1,
	}

	start := time.Now()
	metrics.JobStarted()
	err := r.execute(ctx)
	r.cleanup(ctx)

	if err != nil {
		jobErr := classify(job.State, err)
		r.setState(StateError, "An error occurred")
		r.resetProgress()
		r.emit(Event{Kind: EventError, Message: jobErr.Message, Err: jobErr})
		r.log.Error().
			Err(jobErr.Err).
			Str("kind", string(jobErr.Kind)).
			Str("failed_state", string(jobErr.State)).
			Dur("duration", time.Since(start)).
			Msg(jobErr.Message)
		metrics.JobFinished(metrics.StatusError, time.Since(start))
		return jobErr
	}

	r.setProgress(ProgressDone)
	r.setState(StateDone, "Analysis complete")
	r.emit(Event{Kind: EventComplete, Path: job.OutputPath})
	r.log.Info().
		Str("output", job.OutputPath).
		Dur("duration", time.Since(start)).
		Msg("Analysis job complete")
	metrics.JobFinished(metrics.StatusSuccess, time.Since(start))
	return nil
}

// run holds the per-execution state of one job.
type run struct {
	*Coordinator
	job    *Job
	obs    Observer
	log    zerolog.Logger
	client AnalysisClient
	// progress is the last reported percentage, -1 before the first report.
	progress int
}

func (r *run) emit(e Event) {
	e.JobID = r.job.ID
	e.State = r.job.State
	if e.Kind != EventProgress {
		e.Progress = max(r.progress, 0)
	}
	r.obs.OnEvent(e)
}

func (r *run) setState(s State, message string) {
	r.job.State = s
	r.emit(Event{Kind: EventStatus, Message: message})
}

// setProgress reports p unless it would move progress backwards.
func (r *run) setProgress(p int) {
	if p <= r.progress {
		return
	}
	r.progress = p
	r.emit(Event{Kind: EventProgress, Progress: p})
}

// resetProgress returns progress to 0 after a failure.
func (r *run) resetProgress() {
	r.progress = 0
	r.emit(Event{Kind: EventProgress, Progress: 0})
}

func (r *run) execute(ctx context.Context) error {
	job := r.job
	if err := job.validate(); err != nil {
		return configError(err)
	}

	r.setState(StateCheckingSize, "Starting analysis...")
	r.setProgress(0)
	if err := r.checkSize(ctx); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	r.setState(StateConnecting, "Connecting to Gemini API...")
	r.setProgress(ProgressConnecting)
	client, err := r.NewClient(ctx, job.Config)
	if err != nil {
		return err
	}
	r.client = client
	r.log.Info().Str("model", client.Model()).Msg("Connected to Gemini")

	if err := ctx.Err(); err != nil {
		return err
	}
	r.setState(StateGenerating, "Analyzing video...")
	r.setProgress(ProgressGenerating)
	if err := r.generate(ctx); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if job.Text != "" {
		r.setState(StateTitling, "Generating title...")
		r.setProgress(ProgressTitling)
		if title, ok := chat.RequestTitle(ctx, client, job.Text); ok {
			job.Title = title
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	r.setState(StateSaving, "Saving result...")
	r.setProgress(ProgressSaving)
	return r.save(ctx)
}

// checkSize compresses the video when it exceeds the ceiling and sets the
// job's working path.
func (r *run) checkSize(ctx context.Context) error {
	job := r.job
	job.WorkingPath = job.VideoPath

	size, err := filehandler.FileSize(job.VideoPath)
	if err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(job.VideoPath), ".mp4") && !filehandler.IsValidMP4(job.VideoPath) {
		r.log.Warn().Str("path", job.VideoPath).Msg("File has an .mp4 extension but no MP4 header")
	}

	target := int64(job.Config.MaxSizeMB) * filehandler.MB
	r.log.Info().
		Str("path", job.VideoPath).
		Int64("size_bytes", size).
		Int64("limit_bytes", target).
		Msg("Checked video size")
	if size <= target {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	r.setState(StateCompressing, fmt.Sprintf("Video is %s, compressing below %s...",
		filehandler.FormatBytes(size), filehandler.FormatBytes(target)))

	red, err := r.Reducer.Reduce(ctx, job.VideoPath, target, func(message string, percent int) {
		r.emit(Event{Kind: EventStatus, Message: message})
		r.setProgress(compressStart + percent*(compressEnd-compressStart)/100)
	})
	if err != nil {
		return err
	}
	if red.Compressed {
		job.CompressedPath = red.Path
		job.WorkingPath = red.Path
		r.log.Info().
			Str("path", red.Path).
			Int64("original_bytes", red.OriginalSize).
			Int64("final_bytes", red.FinalSize).
			Int("passes", len(red.Attempts)).
			Msg("Using compressed video")
	}
	return nil
}

// generate uploads the working video and collects the response text.
func (r *run) generate(ctx context.Context) error {
	job := r.job
	cfg := job.Config

	res, err := r.client.AnalyzeVideo(ctx, job.WorkingPath, job.Prompt, cfg.Mode, cfg.Stream)
	if err != nil {
		return err
	}

	if res.Stream == nil {
		r.setProgress(progressSent)
		job.Text = res.Text
		r.setProgress(progressReceived)
		r.emit(Event{Kind: EventStatus, Message: "Processing response..."})
		r.emit(Event{Kind: EventResult, Text: job.Text})
		return nil
	}

	stream := res.Stream
	defer stream.Close()

	var b strings.Builder
	fragments := 0
	for stream.Next() {
		text := stream.Text()
		b.WriteString(text)
		fragments++
		r.emit(Event{Kind: EventFragment, Text: text})

		if fragments%fragmentsPerTick == 0 {
			p := min(streamProgressCap, ProgressGenerating+fragments/2)
			r.setProgress(p)
			switch {
			case p < 50:
				r.emit(Event{Kind: EventStatus, Message: "Analyzing video..."})
			case p < 70:
				r.emit(Event{Kind: EventStatus, Message: "Generating text..."})
			default:
				r.emit(Event{Kind: EventStatus, Message: "Formatting response..."})
			}
		}
	}
	job.Text = b.String()
	if err := stream.Err(); err != nil {
		return err
	}

	r.log.Info().Int("fragments", fragments).Int("length", len(job.Text)).Msg("Stream complete")
	r.emit(Event{Kind: EventResult, Text: job.Text})
	return nil
}

// save writes the result and mirrors it when a publisher is set.
func (r *run) save(ctx context.Context) error {
	job := r.job
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	dir := job.Config.OutputDir
	if dir == "" {
		dir = filepath.Dir(job.VideoPath)
	}
	path := filehandler.OutputPath(dir, job.Title, now())
	if err := filehandler.SaveText(path, job.Text, job.Config.UseBOM); err != nil {
		return err
	}
	job.OutputPath = path

	if r.Publisher != nil {
		location, err := r.Publisher.Publish(ctx, path)
		if err != nil {
			r.log.Warn().Err(err).Str("path", path).Msg("Failed to publish result")
		} else {
			job.PublishedTo = location
		}
	}
	return nil
}

// cleanup removes the temporary compressed copy and every uploaded file.
// Failures are logged only.
func (r *run) cleanup(ctx context.Context) {
	if p := r.job.CompressedPath; p != "" {
		switch err := os.Remove(p); {
		case err == nil:
			r.log.Debug().Str("path", p).Msg("Removed compressed video")
		case !errors.Is(err, os.ErrNotExist):
			r.log.Warn().Err(err).Str("path", p).Msg("Failed to remove compressed video")
		}
	}
	if r.client != nil {
		r.client.Cleanup(ctx)
	}
}

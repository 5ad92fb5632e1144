package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-video-analyzer/internal/filehandler"
)

// ItemResult is the outcome of one video in a batch.
type ItemResult struct {
	JobID      string
	VideoPath  string
	OutputPath string
	Title      string
	Duration   time.Duration
	// Err is nil on success.
	Err *Error
}

// BatchSummary collects the results of RunBatch.
type BatchSummary struct {
	Items     []ItemResult
	Succeeded int
	Failed    int
	// Skipped counts videos never started because the batch was canceled.
	Skipped int
	Elapsed time.Duration
}

// OutputPaths returns the saved result files of the successful items.
func (s *BatchSummary) OutputPaths() []string {
	var paths []string
	for _, it := range s.Items {
		if it.Err == nil && it.OutputPath != "" {
			paths = append(paths, it.OutputPath)
		}
	}
	return paths
}

// Archive bundles every saved result into a zstd-compressed zip at zipPath
// and returns the number of files added.
func (s *BatchSummary) Archive(zipPath string) (int, error) {
	return filehandler.BundleResults(zipPath, s.OutputPaths())
}

// RunBatch analyzes paths one after another with the same prompt and
// settings. A failed video does not stop the batch; cancellation does, and
// the videos not yet started are counted as skipped.
func (c *Coordinator) RunBatch(ctx context.Context, paths []string, prompt string, cfg Config, obs Observer) *BatchSummary {
	start := time.Now()
	summary := &BatchSummary{}

	log.Info().Int("videos", len(paths)).Msg("Starting batch analysis")
	for i, path := range paths {
		if ctx.Err() != nil {
			summary.Skipped = len(paths) - i
			log.Warn().Int("skipped", summary.Skipped).Msg("Batch canceled, skipping remaining videos")
			break
		}

		job := NewJob(path, prompt, cfg)
		log.Info().
			Str("job", job.ID).
			Str("path", path).
			Int("index", i+1).
			Int("total", len(paths)).
			Msg("Processing video")

		itemStart := time.Now()
		err := c.Run(ctx, job, obs)
		item := ItemResult{
			JobID:      job.ID,
			VideoPath:  path,
			OutputPath: job.OutputPath,
			Title:      job.Title,
			Duration:   time.Since(itemStart),
		}
		if err != nil {
			item.Err = classify(job.State, err)
			summary.Failed++
		} else {
			summary.Succeeded++
		}
		summary.Items = append(summary.Items, item)
	}

	summary.Elapsed = time.Since(start)
	log.Info().
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Dur("elapsed", summary.Elapsed).
		Msg("Batch analysis complete")
	return summary
}

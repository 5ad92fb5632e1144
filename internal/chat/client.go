package chat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-video-analyzer/internal/filehandler"
	"github.com/fpang/gemini-video-analyzer/internal/metrics"
	"github.com/fpang/gemini-video-analyzer/internal/retry"
)

var (
	// ErrNoAPIKey is returned when a client is created without credentials.
	ErrNoAPIKey = errors.New("API key is not configured")
	// ErrFileNotFound is returned when a file to upload does not exist.
	ErrFileNotFound = errors.New("file not found")
)

// Options configures a Client.
type Options struct {
	APIKey string
	// Model is the requested model name. Empty means GetModelName().
	Model string
	// Runner wraps every remote call. Nil means retry.DefaultPolicy.
	Runner *retry.Runner
	// PollPolicy governs waiting for uploads. Zero means retry.FilePollPolicy.
	PollPolicy retry.Policy
}

// Client is a Gemini client bound to one resolved model. It remembers every
// asset it uploads until Cleanup deletes them. A Client belongs to a single
// job; its methods are safe for concurrent use but jobs never share one.
type Client struct {
	svc     Service
	runner  *retry.Runner
	tracker *Tracker
	model   string
	models  []string

	mu      sync.Mutex
	pending []*Asset
}

// NewGemini creates a Client backed by the Gemini API.
func NewGemini(ctx context.Context, opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	svc, err := NewGeminiService(ctx, opts.APIKey)
	if err != nil {
		return nil, err
	}
	return New(ctx, svc, opts)
}

// New creates a Client on svc. It lists the available models (best-effort:
// a failure leaves the list empty) and resolves opts.Model against them.
func New(ctx context.Context, svc Service, opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	runner := opts.Runner
	if runner == nil {
		runner = retry.NewRunner(retry.DefaultPolicy)
	}
	tracker := NewTracker(svc)
	if opts.PollPolicy.MaxAttempts > 0 {
		tracker.Policy = opts.PollPolicy
	}

	requested := opts.Model
	if requested == "" {
		requested = GetModelName()
	}

	models, err := retry.Do(ctx, runner, "list models", svc.ListModels)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Warn().Err(err).Msg("Failed to list models, using requested model name as-is")
		models = nil
	}

	model := ResolveModel(requested, models)
	log.Info().
		Str("requested", requested).
		Str("model", model).
		Int("available_models", len(models)).
		Msg("Gemini client initialized")

	return &Client{
		svc:     svc,
		runner:  runner,
		tracker: tracker,
		model:   model,
		models:  models,
	}, nil
}

// Model returns the resolved model name.
func (c *Client) Model() string {
	return c.model
}

// Models returns the model names listed when the client was created.
func (c *Client) Models() []string {
	return append([]string(nil), c.models...)
}

// Upload sends the file at path to the service and waits until it can be
// referenced by generation requests. The asset is registered for Cleanup as
// soon as the upload call succeeds, even if it never becomes active.
func (c *Client) Upload(ctx context.Context, path string) (*Asset, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	mimeType := filehandler.MIMEType(path)

	log.Debug().
		Str("path", path).
		Int64("size_bytes", info.Size()).
		Str("mime_type", mimeType).
		Msg("Starting Gemini Files API upload for video")

	uploadStart := time.Now()
	asset, err := retry.Do(ctx, c.runner, "upload file", func(ctx context.Context) (*Asset, error) {
		return c.svc.UploadFile(ctx, path, mimeType)
	})
	if err != nil {
		return nil, err
	}
	if asset.LocalPath == "" {
		asset.LocalPath = path
	}
	if asset.MIMEType == "" {
		asset.MIMEType = mimeType
	}
	c.register(asset)
	metrics.RecordUpload(info.Size())

	log.Debug().
		Str("name", asset.Name).
		Str("uri", asset.URI).
		Dur("upload_duration", time.Since(uploadStart)).
		Msg("Video uploaded, waiting for processing...")

	if ok, err := c.tracker.WaitActive(ctx, asset); !ok {
		return nil, err
	}
	return asset, nil
}

// PendingAssets returns the assets awaiting Cleanup.
func (c *Client) PendingAssets() []*Asset {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Asset(nil), c.pending...)
}

func (c *Client) register(a *Asset) {
	c.mu.Lock()
	c.pending = append(c.pending, a)
	c.mu.Unlock()
}

// Cleanup deletes every registered asset. Failures are logged and do not
// stop the remaining deletions; the registry is always emptied. It keeps
// working after ctx is canceled so that a canceled job still cleans up.
func (c *Client) Cleanup(ctx context.Context) {
	c.mu.Lock()
	assets := c.pending
	c.pending = nil
	c.mu.Unlock()

	if len(assets) == 0 {
		return
	}

	ctx = context.WithoutCancel(ctx)
	for _, a := range assets {
		err := c.runner.Run(ctx, "delete file", func(ctx context.Context) error {
			return c.svc.DeleteFile(ctx, a.Name)
		})
		if err != nil {
			log.Warn().Err(err).Str("file", a.Name).Msg("Failed to delete uploaded Gemini file")
			continue
		}
		log.Debug().Str("file", a.Name).Msg("Uploaded Gemini file deleted")
	}
}

package chat

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fpang/gemini-video-analyzer/internal/retry"
)

func newTestClient(t *testing.T, svc *fakeService) *Client {
	t.Helper()
	c, err := New(context.Background(), svc, Options{
		APIKey:     "test-key",
		Model:      "gemini-test",
		Runner:     retry.NewRunner(fastPolicy),
		PollPolicy: fastPolicy,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func writeVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("\x00\x00\x00\x18ftypmp42video-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(context.Background(), &fakeService{}, Options{Model: "gemini-test"})
	if !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestNewResolvesModel(t *testing.T) {
	svc := &fakeService{models: []string{"models/gemini-test-001", "models/gemini-test"}}
	c := newTestClient(t, svc)
	if c.Model() != "models/gemini-test" {
		t.Errorf("expected models/gemini-test, got %q", c.Model())
	}
	if len(c.Models()) != 2 {
		t.Errorf("expected 2 listed models, got %v", c.Models())
	}
}

func TestNewToleratesListFailure(t *testing.T) {
	c := newTestClient(t, &fakeService{listErr: errTransient})
	if c.Model() != "gemini-test" {
		t.Errorf("expected requested model unchanged, got %q", c.Model())
	}
	if len(c.Models()) != 0 {
		t.Errorf("expected no models, got %v", c.Models())
	}
}

func TestNewCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(ctx, &fakeService{listErr: errTransient}, Options{APIKey: "k", Model: "m", Runner: retry.NewRunner(fastPolicy)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestUploadMissingFile(t *testing.T) {
	svc := &fakeService{}
	c := newTestClient(t, svc)
	_, err := c.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	if !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
	if svc.uploads != 0 {
		t.Errorf("expected no upload call, got %d", svc.uploads)
	}
}

func TestUploadWaitsForActive(t *testing.T) {
	svc := &fakeService{states: []AssetState{AssetPending, AssetPending, AssetActive}}
	c := newTestClient(t, svc)

	asset, err := c.Upload(context.Background(), writeVideo(t))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if asset.State != AssetActive {
		t.Errorf("expected ACTIVE, got %s", asset.State)
	}
	if asset.MIMEType != "video/mp4" {
		t.Errorf("expected video/mp4, got %q", asset.MIMEType)
	}
	if svc.gets != 3 {
		t.Errorf("expected 3 polls, got %d", svc.gets)
	}
	if len(c.PendingAssets()) != 1 {
		t.Errorf("expected asset registered for cleanup")
	}
}

func TestUploadRetriesTransientFailure(t *testing.T) {
	svc := &fakeService{uploadErr: []error{errTransient}}
	c := newTestClient(t, svc)

	if _, err := c.Upload(context.Background(), writeVideo(t)); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if svc.uploads != 2 {
		t.Errorf("expected 2 upload calls, got %d", svc.uploads)
	}
}

func TestUploadRegistersAssetWhenProcessingFails(t *testing.T) {
	svc := &fakeService{states: []AssetState{AssetFailed}}
	c := newTestClient(t, svc)

	_, err := c.Upload(context.Background(), writeVideo(t))
	if !errors.Is(err, ErrAssetFailed) {
		t.Fatalf("expected ErrAssetFailed, got %v", err)
	}
	if len(c.PendingAssets()) != 1 {
		t.Fatalf("expected failed asset still registered")
	}

	c.Cleanup(context.Background())
	if len(svc.deleted) != 1 || svc.deleted[0] != "files/abc123" {
		t.Errorf("expected files/abc123 deleted, got %v", svc.deleted)
	}
}

func TestCleanupClearsOnDeleteError(t *testing.T) {
	svc := &fakeService{deleteErr: errTransient}
	c := newTestClient(t, svc)
	if _, err := c.Upload(context.Background(), writeVideo(t)); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	c.Cleanup(context.Background())
	if len(c.PendingAssets()) != 0 {
		t.Errorf("expected registry cleared")
	}
	if len(svc.deleted) != fastPolicy.MaxAttempts {
		t.Errorf("expected %d delete attempts, got %d", fastPolicy.MaxAttempts, len(svc.deleted))
	}

	// A second cleanup has nothing left to do.
	c.Cleanup(context.Background())
	if len(svc.deleted) != fastPolicy.MaxAttempts {
		t.Errorf("expected no further deletes, got %d", len(svc.deleted))
	}
}

func TestCleanupAfterCancel(t *testing.T) {
	svc := &fakeService{}
	c := newTestClient(t, svc)
	if _, err := c.Upload(context.Background(), writeVideo(t)); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Cleanup(ctx)
	if len(svc.deleted) != 1 {
		t.Errorf("expected delete despite canceled context, got %v", svc.deleted)
	}
}

func TestGenerateOneShot(t *testing.T) {
	svc := &fakeService{text: "analysis", genErrs: []error{errTransient, errTransient}}
	c := newTestClient(t, svc)
	asset := &Asset{Name: "files/a", URI: "uri://a", MIMEType: "video/mp4"}

	res, err := c.Generate(context.Background(), Request{Prompt: "describe", Asset: asset, Mode: ModeOneShot})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Text != "analysis" || res.Stream != nil {
		t.Errorf("unexpected result %+v", res)
	}
	if svc.genCalls != 3 {
		t.Errorf("expected 3 calls, got %d", svc.genCalls)
	}
	if len(svc.lastPart) != 2 || svc.lastPart[0].FileURI != "uri://a" || svc.lastPart[1].Text != "describe" {
		t.Errorf("expected file part then prompt, got %+v", svc.lastPart)
	}
	if svc.lastCfg.StopSequences == nil || svc.lastCfg.Temperature != DefaultTemperature {
		t.Errorf("unexpected one-shot config %+v", svc.lastCfg)
	}
}

func TestGenerateRetriesExhausted(t *testing.T) {
	svc := &fakeService{genErrs: []error{errTransient, errTransient, errTransient, errTransient}}
	c := newTestClient(t, svc)

	_, err := c.Generate(context.Background(), Request{Prompt: "p", Mode: ModeOneShot})
	var retryErr *retry.Error
	if !errors.As(err, &retryErr) {
		t.Fatalf("expected *retry.Error, got %v", err)
	}
	if !errors.Is(err, errTransient) {
		t.Errorf("expected last failure wrapped, got %v", err)
	}
	if retryErr.Op != "generate content" {
		t.Errorf("expected operation label, got %q", retryErr.Op)
	}
}

func TestGenerateConversational(t *testing.T) {
	svc := &fakeService{text: "reply"}
	c := newTestClient(t, svc)

	res, err := c.Generate(context.Background(), Request{Prompt: "p", Mode: ModeConversational})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Text != "reply" {
		t.Errorf("expected reply, got %q", res.Text)
	}
	if svc.chats != 1 {
		t.Errorf("expected one chat session, got %d", svc.chats)
	}
	if svc.lastCfg.StopSequences != nil {
		t.Errorf("expected no stop sequences for chat, got %v", svc.lastCfg.StopSequences)
	}
}

func TestGenerateStreamRetriesOpen(t *testing.T) {
	for _, mode := range []Mode{ModeOneShot, ModeConversational} {
		t.Run(string(mode), func(t *testing.T) {
			svc := &fakeService{fragments: []string{"a", "", "b"}, streamErrs: []error{errTransient}}
			c := newTestClient(t, svc)

			res, err := c.Generate(context.Background(), Request{Prompt: "p", Mode: mode, Stream: true})
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			text, err := res.Stream.ReadAll()
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if text != "ab" {
				t.Errorf("expected ab, got %q", text)
			}
			if svc.genCalls != 2 {
				t.Errorf("expected stream opened twice, got %d", svc.genCalls)
			}
		})
	}
}

func TestGenerateStreamMidStreamError(t *testing.T) {
	midErr := errors.New("connection reset")
	svc := &fakeService{fragments: []string{"a"}, midStreamErr: midErr}
	c := newTestClient(t, svc)

	res, err := c.Generate(context.Background(), Request{Prompt: "p", Mode: ModeOneShot, Stream: true})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	s := res.Stream
	if !s.Next() || s.Text() != "a" {
		t.Fatalf("expected first fragment a")
	}
	if s.Next() {
		t.Fatalf("expected stream to end")
	}
	if !errors.Is(s.Err(), midErr) {
		t.Errorf("expected mid-stream error, got %v", s.Err())
	}
	if svc.genCalls != 1 {
		t.Errorf("mid-stream errors must not be retried, got %d calls", svc.genCalls)
	}
}

func TestGenerateUnknownMode(t *testing.T) {
	c := newTestClient(t, &fakeService{})
	_, err := c.Generate(context.Background(), Request{Prompt: "p", Mode: "batch"})
	if !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode("chat"); err != nil || m != ModeConversational {
		t.Errorf("ParseMode(chat) = %q, %v", m, err)
	}
	if m, err := ParseMode("generate_content"); err != nil || m != ModeOneShot {
		t.Errorf("ParseMode(generate_content) = %q, %v", m, err)
	}
	if _, err := ParseMode("stream"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("expected ErrUnknownMode, got %v", err)
	}
}

func TestAnalyzeVideo(t *testing.T) {
	svc := &fakeService{text: "scene by scene"}
	c := newTestClient(t, svc)

	res, err := c.AnalyzeVideo(context.Background(), writeVideo(t), "describe", ModeOneShot, false)
	if err != nil {
		t.Fatalf("AnalyzeVideo: %v", err)
	}
	if res.Text != "scene by scene" {
		t.Errorf("unexpected text %q", res.Text)
	}
	if svc.uploads != 1 || len(c.PendingAssets()) != 1 {
		t.Errorf("expected one registered upload")
	}
}

func TestAnalyzeVideoRejectsModeBeforeUpload(t *testing.T) {
	svc := &fakeService{}
	c := newTestClient(t, svc)

	_, err := c.AnalyzeVideo(context.Background(), writeVideo(t), "describe", "batch", false)
	if !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
	if svc.uploads != 0 {
		t.Errorf("expected no upload, got %d", svc.uploads)
	}
}

func TestAnalyzeVideoUploadFailure(t *testing.T) {
	svc := &fakeService{states: []AssetState{AssetFailed}}
	c := newTestClient(t, svc)

	_, err := c.AnalyzeVideo(context.Background(), writeVideo(t), "describe", ModeOneShot, true)
	if err == nil || !strings.Contains(err.Error(), "video upload failed") {
		t.Fatalf("expected upload failure, got %v", err)
	}
	if svc.genCalls != 0 {
		t.Errorf("generation must not reference an unusable asset")
	}
}

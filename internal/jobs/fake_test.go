package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fpang/gemini-video-analyzer/internal/chat"
	"github.com/fpang/gemini-video-analyzer/internal/filehandler"
)

var fixedNow = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

// fakeClient is a scripted AnalysisClient.
type fakeClient struct {
	text       string
	fragments  []string
	streamErr  error
	analyzeErr error
	// onAnalyze runs at the start of AnalyzeVideo.
	onAnalyze func()

	titleReply string
	titleErr   error

	analyzedPath string
	titleCalls   int
	cleanups     int
}

func (f *fakeClient) Model() string { return "gemini-test" }

func (f *fakeClient) AnalyzeVideo(ctx context.Context, path, prompt string, mode chat.Mode, stream bool) (*chat.Result, error) {
	if f.onAnalyze != nil {
		f.onAnalyze()
	}
	f.analyzedPath = path
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if !stream {
		return &chat.Result{Text: f.text}, nil
	}
	fragments, streamErr := f.fragments, f.streamErr
	return &chat.Result{Stream: chat.NewStream(func(yield func(string, error) bool) {
		for _, frag := range fragments {
			if !yield(frag, nil) {
				return
			}
		}
		if streamErr != nil {
			yield("", streamErr)
		}
	})}, nil
}

func (f *fakeClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	f.titleCalls++
	return f.titleReply, f.titleErr
}

func (f *fakeClient) Cleanup(ctx context.Context) { f.cleanups++ }

// clientFactory hands out a copy of template per job and records them.
type clientFactory struct {
	template fakeClient
	err      error
	clients  []*fakeClient
}

func (cf *clientFactory) New(ctx context.Context, cfg Config) (AnalysisClient, error) {
	if cf.err != nil {
		return nil, cf.err
	}
	c := cf.template
	cf.clients = append(cf.clients, &c)
	return &c, nil
}

func (cf *clientFactory) last(t *testing.T) *fakeClient {
	t.Helper()
	if len(cf.clients) == 0 {
		t.Fatal("no client was created")
	}
	return cf.clients[len(cf.clients)-1]
}

// fakeReducer writes a small file in place of a real re-encode.
type fakeReducer struct {
	err   error
	calls int
}

func (r *fakeReducer) Reduce(ctx context.Context, input string, targetBytes int64, progress filehandler.ProgressFunc) (*filehandler.Reduction, error) {
	r.calls++
	progress("Compressing at CRF 28", 0)
	if r.err != nil {
		return nil, r.err
	}
	out := filehandler.CompressedOutputPath(input)
	if err := os.WriteFile(out, []byte("small"), 0o644); err != nil {
		return nil, err
	}
	progress("Compression complete", 100)
	return &filehandler.Reduction{Path: out, Compressed: true, OriginalSize: targetBytes + 1, FinalSize: 5}, nil
}

type fakePublisher struct {
	err   error
	paths []string
}

func (p *fakePublisher) Publish(ctx context.Context, path string) (string, error) {
	p.paths = append(p.paths, path)
	if p.err != nil {
		return "", p.err
	}
	return "s3://results/" + filepath.Base(path), nil
}

// recorder collects events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) kinds(kind EventKind) []Event {
	var out []Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) progress() []int {
	var out []int
	for _, e := range r.kinds(EventProgress) {
		out = append(out, e.Progress)
	}
	return out
}

func (r *recorder) lastEvent() Event {
	return r.events[len(r.events)-1]
}

func newTestCoordinator(cf *clientFactory, red Reducer) *Coordinator {
	return &Coordinator{NewClient: cf.New, Reducer: red, Now: func() time.Time { return fixedNow }}
}

func testConfig(t *testing.T) Config {
	return Config{
		APIKey:    "test-key",
		Model:     "gemini-test",
		Mode:      chat.ModeOneShot,
		Stream:    true,
		OutputDir: t.TempDir(),
		MaxSizeMB: DefaultSizeLimitMB,
		UseBOM:    false,
	}
}

func writeVideo(t *testing.T, dir, name string, size int) string {
	t.Helper()
	data := make([]byte, max(size, 24))
	copy(data, "\x00\x00\x00\x18ftypmp42")
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func requireKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	var jobErr *Error
	if !errors.As(err, &jobErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if jobErr.Kind != kind {
		t.Fatalf("expected kind %s, got %s (%v)", kind, jobErr.Kind, jobErr)
	}
	return jobErr
}

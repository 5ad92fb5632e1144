package chat

import (
	"context"
	"errors"
	"iter"
	"sync"
	"time"

	"github.com/fpang/gemini-video-analyzer/internal/retry"
)

var errTransient = errors.New("503 service unavailable")

// fastPolicy keeps retry waits in the millisecond range.
var fastPolicy = retry.Policy{MaxAttempts: 4, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

// fakeService is a scripted Service. Each *Errs slice is consumed one entry
// per call; once exhausted, calls succeed.
type fakeService struct {
	mu sync.Mutex

	models    []string
	listErr   error
	uploadErr []error
	states    []AssetState
	getErrs   []error
	deleteErr error

	text      string
	genErrs   []error
	fragments []string
	// streamErrs fail the stream before its first fragment.
	streamErrs []error
	// midStreamErr is yielded after all fragments.
	midStreamErr error

	uploads  int
	gets     int
	deleted  []string
	genCalls int
	chats    int
	lastCfg  GenerationConfig
	lastPart []Part
}

func (f *fakeService) ListModels(ctx context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.models, nil
}

func (f *fakeService) UploadFile(ctx context.Context, path, mimeType string) (*Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	if err := pop(&f.uploadErr); err != nil {
		return nil, err
	}
	return &Asset{Name: "files/abc123", URI: "https://example.test/files/abc123", State: AssetPending}, nil
}

func (f *fakeService) GetFile(ctx context.Context, name string) (*Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if err := pop(&f.getErrs); err != nil {
		return nil, err
	}
	state := AssetActive
	if len(f.states) > 0 {
		state = f.states[0]
		if len(f.states) > 1 {
			f.states = f.states[1:]
		}
	}
	return &Asset{Name: name, State: state}, nil
}

func (f *fakeService) DeleteFile(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, name)
	return f.deleteErr
}

func (f *fakeService) GenerateContent(ctx context.Context, model string, parts []Part, cfg GenerationConfig) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.genCalls++
	f.lastCfg, f.lastPart = cfg, parts
	if err := pop(&f.genErrs); err != nil {
		return "", err
	}
	return f.text, nil
}

func (f *fakeService) GenerateContentStream(ctx context.Context, model string, parts []Part, cfg GenerationConfig) iter.Seq2[string, error] {
	f.mu.Lock()
	f.lastCfg, f.lastPart = cfg, parts
	f.mu.Unlock()
	return f.stream()
}

func (f *fakeService) StartChat(ctx context.Context, model string, cfg GenerationConfig) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats++
	f.lastCfg = cfg
	return &fakeSession{svc: f}, nil
}

func (f *fakeService) stream() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		f.mu.Lock()
		f.genCalls++
		err := pop(&f.streamErrs)
		fragments, midErr := f.fragments, f.midStreamErr
		f.mu.Unlock()

		if err != nil {
			yield("", err)
			return
		}
		for _, frag := range fragments {
			if !yield(frag, nil) {
				return
			}
		}
		if midErr != nil {
			yield("", midErr)
		}
	}
}

type fakeSession struct {
	svc *fakeService
}

func (s *fakeSession) SendMessage(ctx context.Context, parts []Part) (string, error) {
	s.svc.mu.Lock()
	defer s.svc.mu.Unlock()
	s.svc.genCalls++
	s.svc.lastPart = parts
	if err := pop(&s.svc.genErrs); err != nil {
		return "", err
	}
	return s.svc.text, nil
}

func (s *fakeSession) SendMessageStream(ctx context.Context, parts []Part) iter.Seq2[string, error] {
	s.svc.mu.Lock()
	s.svc.lastPart = parts
	s.svc.mu.Unlock()
	return s.svc.stream()
}

func pop(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

// fakeGenerator is a TextGenerator returning a fixed reply.
type fakeGenerator struct {
	reply  string
	err    error
	prompt string
}

func (g *fakeGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.reply, g.err
}

package chat

import (
	"context"
	"fmt"
	"iter"
	"os"
	"slices"

	"google.golang.org/genai"
)

// GeminiService implements Service on top of the Gemini API.
type GeminiService struct {
	client *genai.Client
}

// NewGeminiService creates a Gemini API client for apiKey.
func NewGeminiService(ctx context.Context, apiKey string) (*GeminiService, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiService{client: client}, nil
}

// ListModels returns the names of the models that support content generation.
func (s *GeminiService) ListModels(ctx context.Context) ([]string, error) {
	var names []string
	for m, err := range s.client.Models.All(ctx) {
		if err != nil {
			return names, err
		}
		if len(m.SupportedActions) > 0 && !slices.Contains(m.SupportedActions, "generateContent") {
			continue
		}
		names = append(names, m.Name)
	}
	return names, nil
}

func (s *GeminiService) UploadFile(ctx context.Context, path, mimeType string) (*Asset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	file, err := s.client.Files.Upload(ctx, f, &genai.UploadFileConfig{
		MIMEType: mimeType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}

	a := assetFromFile(file)
	a.LocalPath = path
	a.SizeBytes = info.Size()
	if a.MIMEType == "" {
		a.MIMEType = mimeType
	}
	return a, nil
}

func (s *GeminiService) GetFile(ctx context.Context, name string) (*Asset, error) {
	file, err := s.client.Files.Get(ctx, name, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get file state: %w", err)
	}
	return assetFromFile(file), nil
}

func (s *GeminiService) DeleteFile(ctx context.Context, name string) error {
	if _, err := s.client.Files.Delete(ctx, name, nil); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (s *GeminiService) GenerateContent(ctx context.Context, model string, parts []Part, cfg GenerationConfig) (string, error) {
	resp, err := s.client.Models.GenerateContent(ctx, model, toContents(parts), toGenaiConfig(cfg))
	if err != nil {
		return "", err
	}
	return responseText(resp), nil
}

func (s *GeminiService) GenerateContentStream(ctx context.Context, model string, parts []Part, cfg GenerationConfig) iter.Seq2[string, error] {
	return textSeq(s.client.Models.GenerateContentStream(ctx, model, toContents(parts), toGenaiConfig(cfg)))
}

func (s *GeminiService) StartChat(ctx context.Context, model string, cfg GenerationConfig) (Session, error) {
	c, err := s.client.Chats.Create(ctx, model, toGenaiConfig(cfg), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat session: %w", err)
	}
	return &geminiSession{chat: c}, nil
}

type geminiSession struct {
	chat *genai.Chat
}

func (s *geminiSession) SendMessage(ctx context.Context, parts []Part) (string, error) {
	resp, err := s.chat.SendMessage(ctx, toPartValues(parts)...)
	if err != nil {
		return "", err
	}
	return responseText(resp), nil
}

func (s *geminiSession) SendMessageStream(ctx context.Context, parts []Part) iter.Seq2[string, error] {
	return textSeq(s.chat.SendMessageStream(ctx, toPartValues(parts)...))
}

// textSeq maps a response stream onto its text fragments.
func textSeq(seq iter.Seq2[*genai.GenerateContentResponse, error]) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for resp, err := range seq {
			if err != nil {
				yield("", err)
				return
			}
			if !yield(responseText(resp), nil) {
				return
			}
		}
	}
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	return resp.Text()
}

func assetFromFile(f *genai.File) *Asset {
	a := &Asset{
		Name:     f.Name,
		URI:      f.URI,
		MIMEType: f.MIMEType,
		State:    AssetUnknown,
	}
	switch f.State {
	case genai.FileStateActive:
		a.State = AssetActive
	case genai.FileStateProcessing:
		a.State = AssetPending
	case genai.FileStateFailed:
		a.State = AssetFailed
	}
	return a
}

func toPartValues(parts []Part) []genai.Part {
	out := make([]genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.FileURI != "" {
			out = append(out, genai.Part{FileData: &genai.FileData{FileURI: p.FileURI, MIMEType: p.MIMEType}})
			continue
		}
		out = append(out, genai.Part{Text: p.Text})
	}
	return out
}

func toContents(parts []Part) []*genai.Content {
	values := toPartValues(parts)
	ptrs := make([]*genai.Part, len(values))
	for i := range values {
		ptrs[i] = &values[i]
	}
	return []*genai.Content{{Role: "user", Parts: ptrs}}
}

func toGenaiConfig(cfg GenerationConfig) *genai.GenerateContentConfig {
	gc := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(cfg.Temperature),
		TopP:            genai.Ptr(cfg.TopP),
		MaxOutputTokens: cfg.MaxOutputTokens,
		StopSequences:   cfg.StopSequences,
	}
	if cfg.TopK > 0 {
		gc.TopK = genai.Ptr(float32(cfg.TopK))
	}
	return gc
}

package chat

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-video-analyzer/internal/retry"
)

// Sampling parameters shared by both generation modes.
const (
	DefaultTemperature     float32 = 0.4
	DefaultTopP            float32 = 0.95
	DefaultMaxOutputTokens int32   = 8192
)

// Mode selects how a request is sent.
type Mode string

const (
	// ModeOneShot sends a single generate-content request.
	ModeOneShot Mode = "generate_content"
	// ModeConversational opens a chat session and sends the request as its first turn.
	ModeConversational Mode = "chat"
)

// ErrUnknownMode is returned for a Mode other than the two above.
var ErrUnknownMode = errors.New("unknown generation mode")

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeOneShot, ModeConversational:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: %q (expected %q or %q)", ErrUnknownMode, s, ModeOneShot, ModeConversational)
}

// Request is one generation request.
type Request struct {
	Prompt string
	// Asset, when set, is sent before the prompt.
	Asset  *Asset
	Mode   Mode
	Stream bool
}

// Result holds either the complete text or, for streaming requests, a Stream.
type Result struct {
	Text   string
	Stream *Stream
}

// OneShotConfig returns the sampling parameters for one-shot requests.
func OneShotConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:     DefaultTemperature,
		TopP:            DefaultTopP,
		MaxOutputTokens: DefaultMaxOutputTokens,
		StopSequences:   []string{},
	}
}

// ConversationConfig returns the sampling parameters for chat sessions.
func ConversationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:     DefaultTemperature,
		TopP:            DefaultTopP,
		MaxOutputTokens: DefaultMaxOutputTokens,
	}
}

// Generate sends req to the resolved model. Remote calls run under the
// client's retry runner; for streaming requests that covers opening the
// stream and receiving its first fragment. Errors later in a stream are
// reported by Stream.Err and are not retried.
func (c *Client) Generate(ctx context.Context, req Request) (*Result, error) {
	parts := make([]Part, 0, 2)
	if req.Asset != nil {
		parts = append(parts, AssetPart(req.Asset))
	}
	parts = append(parts, TextPart(req.Prompt))

	log.Debug().
		Str("model", c.model).
		Str("mode", string(req.Mode)).
		Bool("stream", req.Stream).
		Bool("with_file", req.Asset != nil).
		Int("prompt_length", len(req.Prompt)).
		Msg("Sending generation request")

	switch req.Mode {
	case ModeOneShot:
		cfg := OneShotConfig()
		if req.Stream {
			return c.openStream(ctx, "generate content stream", func(ctx context.Context) iter.Seq2[string, error] {
				return c.svc.GenerateContentStream(ctx, c.model, parts, cfg)
			})
		}
		return c.complete(ctx, "generate content", func(ctx context.Context) (string, error) {
			return c.svc.GenerateContent(ctx, c.model, parts, cfg)
		})

	case ModeConversational:
		session, err := retry.Do(ctx, c.runner, "start chat", func(ctx context.Context) (Session, error) {
			return c.svc.StartChat(ctx, c.model, ConversationConfig())
		})
		if err != nil {
			return nil, err
		}
		if req.Stream {
			return c.openStream(ctx, "send message stream", func(ctx context.Context) iter.Seq2[string, error] {
				return session.SendMessageStream(ctx, parts)
			})
		}
		return c.complete(ctx, "send message", func(ctx context.Context) (string, error) {
			return session.SendMessage(ctx, parts)
		})
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownMode, req.Mode)
}

// GenerateText sends a one-shot, non-streaming text-only prompt.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	res, err := c.Generate(ctx, Request{Prompt: prompt, Mode: ModeOneShot})
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// AnalyzeVideo uploads the video at path and sends prompt with it.
func (c *Client) AnalyzeVideo(ctx context.Context, path, prompt string, mode Mode, stream bool) (*Result, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}
	asset, err := c.Upload(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("video upload failed: %w", err)
	}
	return c.Generate(ctx, Request{Prompt: prompt, Asset: asset, Mode: mode, Stream: stream})
}

func (c *Client) complete(ctx context.Context, label string, call func(context.Context) (string, error)) (*Result, error) {
	start := time.Now()
	text, err := retry.Do(ctx, c.runner, label, call)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("model", c.model).
		Int("response_length", len(text)).
		Dur("duration", time.Since(start)).
		Msg("Generation complete")
	return &Result{Text: text}, nil
}

func (c *Client) openStream(ctx context.Context, label string, open func(context.Context) iter.Seq2[string, error]) (*Result, error) {
	s, err := retry.Do(ctx, c.runner, label, func(ctx context.Context) (*Stream, error) {
		s := NewStream(open(ctx))
		if err := s.prime(); err != nil {
			return nil, err
		}
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return &Result{Stream: s}, nil
}

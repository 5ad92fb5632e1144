package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-video-analyzer/internal/auth"
	"github.com/fpang/gemini-video-analyzer/internal/chat"
	"github.com/fpang/gemini-video-analyzer/internal/config"
)

// ResolveAPIKey finds the API key for s, consulting the saved key, the
// environment, SSM and the GPG credentials file in that order.
func ResolveAPIKey(ctx context.Context, s *config.Settings) (string, auth.Source, error) {
	return auth.GetAPIKey(ctx, auth.Options{
		Override: s.Gemini.APIKey,
		SSMParam: s.AWS.SSMParam,
		Region:   s.AWS.Region,
	})
}

// InitGeminiClient creates a Gemini client for the configured model and, if
// validate is set, checks the key with a minimal request.
func InitGeminiClient(ctx context.Context, s *config.Settings, validate bool) (*chat.Client, error) {
	apiKey, source, err := ResolveAPIKey(ctx, s)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("source", string(source)).Msg("API key resolved")

	client, err := chat.NewGemini(ctx, chat.Options{APIKey: apiKey, Model: s.Gemini.ModelName})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	log.Info().Str("model", client.Model()).Msg("Connection successful - Gemini client initialized")

	if validate {
		if err := auth.ValidateAPIKey(ctx, client); err != nil {
			return nil, err
		}
		log.Info().Msg("API key validation complete - ready for operations")
	}
	return client, nil
}

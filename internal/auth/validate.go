package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/gemini-video-analyzer/internal/metrics"
)

// ValidationError represents a specific type of API key validation failure.
type ValidationError struct {
	Type    ValidationErrorType
	Message string
	Err     error
}

// ValidationErrorType categorizes validation failures.
type ValidationErrorType int

const (
	// ErrTypeNoKey indicates no API key was found.
	ErrTypeNoKey ValidationErrorType = iota
	// ErrTypeInvalidKey indicates the API key is invalid or revoked.
	ErrTypeInvalidKey
	// ErrTypeNetworkError indicates a network connectivity issue.
	ErrTypeNetworkError
	// ErrTypeQuotaExceeded indicates the API quota has been exceeded.
	ErrTypeQuotaExceeded
	// ErrTypeModelNotFound indicates the configured model does not exist.
	ErrTypeModelNotFound
	// ErrTypeUnknown indicates an unknown error occurred.
	ErrTypeUnknown
)

// result returns the metric label for t.
func (t ValidationErrorType) result() string {
	switch t {
	case ErrTypeNoKey:
		return "no_key"
	case ErrTypeInvalidKey:
		return "invalid"
	case ErrTypeNetworkError:
		return "network_error"
	case ErrTypeQuotaExceeded:
		return "quota"
	case ErrTypeModelNotFound:
		return "model_not_found"
	default:
		return "unknown"
	}
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// TextGenerator sends a text-only prompt. *chat.Client implements it.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// ValidateAPIKey verifies the key and model behind gen with a minimal
// request. It returns nil if the request succeeds, or a *ValidationError
// whose Type tells what went wrong.
func ValidateAPIKey(ctx context.Context, gen TextGenerator) error {
	log.Debug().Msg("Validating API key with Gemini API")

	start := time.Now()
	text, err := gen.GenerateText(ctx, "hi")
	elapsed := time.Since(start)

	if err != nil {
		valErr := classifyError(err)
		metrics.RecordKeyValidation(valErr.Type.result())
		return valErr
	}

	if strings.TrimSpace(text) == "" {
		log.Warn().Msg("API key validation returned empty response")
		metrics.RecordKeyValidation("empty_response")
		return &ValidationError{
			Type:    ErrTypeUnknown,
			Message: "API returned empty response",
		}
	}

	metrics.RecordKeyValidation("success")
	log.Info().Dur("duration", elapsed).Msg("API key validated successfully")
	return nil
}

// ClassifyError exposes the validation classification for errors raised by
// any Gemini call.
func ClassifyError(err error) *ValidationError {
	return classifyError(err)
}

// classifyError analyzes an error and returns a ValidationError with the appropriate type.
func classifyError(err error) *ValidationError {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNoAPIKey) {
		return &ValidationError{Type: ErrTypeNoKey, Message: "No API key configured", Err: err}
	}

	// The SDK returns APIError by value; accept a pointer as well.
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyAPIError(&apiErr, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return classifyAPIError(apiErrPtr, err)
	}

	errLower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errLower, "api key not valid") ||
		strings.Contains(errLower, "invalid api key") ||
		strings.Contains(errLower, "api_key_invalid") ||
		strings.Contains(errLower, "permission denied"):
		log.Error().Err(err).Msg("Invalid API key")
		return &ValidationError{
			Type:    ErrTypeInvalidKey,
			Message: "API key is invalid or has been revoked",
			Err:     err,
		}

	case strings.Contains(errLower, "quota") ||
		strings.Contains(errLower, "resource exhausted") ||
		strings.Contains(errLower, "rate limit"):
		log.Error().Err(err).Msg("API quota exceeded")
		return &ValidationError{
			Type:    ErrTypeQuotaExceeded,
			Message: "API quota exceeded or rate limited",
			Err:     err,
		}

	case strings.Contains(errLower, "model") && strings.Contains(errLower, "not found"):
		log.Error().Err(err).Msg("Model not found")
		return &ValidationError{
			Type:    ErrTypeModelNotFound,
			Message: "The configured model is not available for this key",
			Err:     err,
		}

	case strings.Contains(errLower, "connection") ||
		strings.Contains(errLower, "network") ||
		strings.Contains(errLower, "timeout") ||
		strings.Contains(errLower, "dial") ||
		strings.Contains(errLower, "no such host") ||
		strings.Contains(errLower, "unreachable"):
		log.Error().Err(err).Msg("Network error during API validation")
		return &ValidationError{
			Type:    ErrTypeNetworkError,
			Message: "Network error - check your internet connection",
			Err:     err,
		}

	default:
		log.Error().Err(err).Msg("Unknown error during API validation")
		return &ValidationError{
			Type:    ErrTypeUnknown,
			Message: "Failed to validate API key",
			Err:     err,
		}
	}
}

// classifyAPIError categorizes a Gemini API error by HTTP status. cause is
// the error as returned, kept so callers can still unwrap it.
func classifyAPIError(apiErr *genai.APIError, cause error) *ValidationError {
	switch apiErr.Code {
	case 400:
		log.Error().Int("code", apiErr.Code).Msg("Bad request - possibly invalid API key format")
		return &ValidationError{
			Type:    ErrTypeInvalidKey,
			Message: "Bad request - API key may be malformed",
			Err:     cause,
		}

	case 401, 403:
		log.Error().Int("code", apiErr.Code).Msg("Authentication failed - invalid API key")
		return &ValidationError{
			Type:    ErrTypeInvalidKey,
			Message: "API key is invalid, expired, or lacks permissions",
			Err:     cause,
		}

	case 404:
		log.Error().Int("code", apiErr.Code).Msg("Model not found")
		return &ValidationError{
			Type:    ErrTypeModelNotFound,
			Message: "The configured model is not available for this key",
			Err:     cause,
		}

	case 429:
		log.Error().Int("code", apiErr.Code).Msg("Rate limit exceeded")
		return &ValidationError{
			Type:    ErrTypeQuotaExceeded,
			Message: "API rate limit exceeded - try again later",
			Err:     cause,
		}

	case 500, 502, 503, 504:
		log.Error().Int("code", apiErr.Code).Msg("Server error during validation")
		return &ValidationError{
			Type:    ErrTypeNetworkError,
			Message: "Gemini API server error - try again later",
			Err:     cause,
		}

	default:
		log.Error().Int("code", apiErr.Code).Str("message", apiErr.Message).Msg("Gemini API error")
		return &ValidationError{
			Type:    ErrTypeUnknown,
			Message: apiErr.Message,
			Err:     cause,
		}
	}
}

package chat

import (
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// Gemini Model IDs
//
// | Model Name               | API Model ID           | Use Case                      |
// |--------------------------|------------------------|-------------------------------|
// | Gemini 3.1 Pro (Preview) | gemini-3.1-pro-preview | Best for complex reasoning    |
// | Gemini 3 Flash (Preview) | gemini-3-flash-preview | Best for speed + intelligence |
// | Gemini 2.5 Pro           | gemini-2.5-pro         | Stable, long videos           |
// | Gemini 2.5 Flash         | gemini-2.5-flash       | Stable, balanced performance  |
// | Gemini 2.5 Flash-Lite    | gemini-2.5-flash-lite  | High-throughput, lowest cost  |
const (
	ModelGemini31ProPreview  = "gemini-3.1-pro-preview"
	ModelGemini3FlashPreview = "gemini-3-flash-preview"
	ModelGemini25Pro         = "gemini-2.5-pro"
	ModelGemini25Flash       = "gemini-2.5-flash"
	ModelGemini25FlashLite   = "gemini-2.5-flash-lite"
)

// DefaultModelName is the Gemini model used when none is configured.
// Can be overridden via GEMINI_MODEL environment variable.
const DefaultModelName = ModelGemini25Flash

// modelPrefix is the resource prefix the API puts on model names.
const modelPrefix = "models/"

// GetModelName returns GEMINI_MODEL if set, otherwise DefaultModelName.
func GetModelName() string {
	if env := os.Getenv("GEMINI_MODEL"); env != "" {
		return env
	}
	return DefaultModelName
}

// ResolveModel maps a requested model name onto one of the available names.
// The first rule that matches wins:
//  1. exact match
//  2. "models/" + requested
//  3. equal after stripping "models/" from both sides
//  4. first available name containing the requested name as given
//  5. first available name
//
// With no available models the request is returned unchanged.
func ResolveModel(requested string, available []string) string {
	if len(available) == 0 {
		return requested
	}

	for _, name := range available {
		if name == requested {
			return name
		}
	}

	prefixed := modelPrefix + requested
	for _, name := range available {
		if name == prefixed {
			return name
		}
	}

	bare := strings.TrimPrefix(requested, modelPrefix)
	for _, name := range available {
		if strings.TrimPrefix(name, modelPrefix) == bare {
			return name
		}
	}

	var candidates []string
	if requested != "" {
		for _, name := range available {
			if strings.Contains(name, requested) {
				candidates = append(candidates, name)
			}
		}
	}
	if len(candidates) > 0 {
		log.Warn().
			Str("requested", requested).
			Strs("candidates", candidates).
			Str("selected", candidates[0]).
			Msg("Model not found by name, using closest partial match")
		return candidates[0]
	}

	log.Warn().
		Str("requested", requested).
		Str("selected", available[0]).
		Msg("Model not available, falling back to first available model")
	return available[0]
}

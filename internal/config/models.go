package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/fpang/gemini-video-analyzer/internal/assets"
)

// ModelInfo is one entry of the model catalog.
type ModelInfo struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// LoadModels reads a model catalog from path. When path is empty or the file
// does not exist the embedded catalog is used.
func LoadModels(path string) ([]ModelInfo, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			models, err := ParseModels(data)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
			log.Debug().Str("path", path).Int("count", len(models)).Msg("Model catalog loaded")
			return models, nil
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
	return ParseModels(assets.DefaultModels)
}

// ParseModels accepts a top-level "models" list, a "generative_models" list
// or a bare list. Entries are either a name string or a {name, description}
// mapping. Entries without a name are skipped.
func ParseModels(data []byte) ([]ModelInfo, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	var entries []any
	switch v := raw.(type) {
	case []any:
		entries = v
	case map[string]any:
		if list, ok := v["models"].([]any); ok && len(list) > 0 {
			entries = list
		} else if list, ok := v["generative_models"].([]any); ok {
			entries = list
		}
	case nil:
	default:
		return nil, fmt.Errorf("unexpected catalog type %T", raw)
	}

	models := make([]ModelInfo, 0, len(entries))
	for _, e := range entries {
		var m ModelInfo
		switch v := e.(type) {
		case string:
			m.Name = v
		case map[string]any:
			m.Name, _ = v["name"].(string)
			m.Description, _ = v["description"].(string)
		}
		m.Name = strings.TrimSpace(m.Name)
		if m.Name == "" {
			continue
		}
		models = append(models, m)
	}
	return models, nil
}

// ModelNames returns the names of models in catalog order.
func ModelNames(models []ModelInfo) []string {
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.Name
	}
	return names
}

// Package config loads and saves the analyzer settings: a JSON settings file
// overlaid by an optional .env file and environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-video-analyzer/internal/assets"
	"github.com/fpang/gemini-video-analyzer/internal/chat"
	"github.com/fpang/gemini-video-analyzer/internal/jobs"
)

const (
	appDir       = "gemini-video-analyzer"
	settingsFile = "settings.json"
	modelsFile   = "models.yaml"
)

// legacyStreamMode is the older spelling of a streamed one-shot request.
const legacyStreamMode = "stream_generate_content"

// Settings is the persisted configuration.
type Settings struct {
	Gemini GeminiSettings `json:"gemini"`
	File   FileSettings   `json:"file"`
	UI     UISettings     `json:"ui"`
	AWS    AWSSettings    `json:"aws"`
	Log    LogSettings    `json:"log"`
}

type GeminiSettings struct {
	APIKey         string `json:"api_key,omitempty"`
	ModelName      string `json:"model_name"`
	Mode           string `json:"mode"`
	StreamResponse bool   `json:"stream_response"`
}

type FileSettings struct {
	MaxFileSizeMB   int    `json:"max_file_size_mb"`
	OutputDirectory string `json:"output_directory,omitempty"`
	UseBOM          bool   `json:"use_bom"`
	InputDirectory  string `json:"input_directory,omitempty"`
}

type UISettings struct {
	LastPrompt string `json:"last_prompt,omitempty"`
	// CustomPrompt is the user's own template, selected as "custom".
	CustomPrompt string `json:"custom_prompt,omitempty"`
}

type AWSSettings struct {
	S3Bucket string `json:"s3_bucket,omitempty"`
	S3Prefix string `json:"s3_prefix,omitempty"`
	// SSMParam names the SecureString parameter holding the API key.
	SSMParam string `json:"ssm_api_key_param,omitempty"`
	Region   string `json:"region,omitempty"`
}

type LogSettings struct {
	Level string `json:"level,omitempty"`
	// File receives JSON logs in addition to the console.
	File string `json:"file,omitempty"`
}

// Defaults returns the settings used when no file exists.
func Defaults() *Settings {
	return &Settings{
		Gemini: GeminiSettings{
			ModelName:      chat.DefaultModelName,
			Mode:           string(chat.ModeOneShot),
			StreamResponse: true,
		},
		File: FileSettings{
			MaxFileSizeMB: jobs.DefaultSizeLimitMB,
			UseBOM:        true,
		},
	}
}

// Dir returns the per-user configuration directory.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(base, appDir), nil
}

// DefaultPath returns the settings file location.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, settingsFile), nil
}

// DefaultModelsPath returns the location of the optional model catalog.
func DefaultModelsPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, modelsFile), nil
}

// Load reads the settings file at path, then applies .env and environment
// overrides. A missing file yields defaults. An unreadable or invalid file is
// logged and replaced by defaults so the tool stays usable.
func Load(path string) (*Settings, error) {
	s, err := ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Error().Err(err).Str("path", path).Msg("Failed to load settings, using defaults")
		}
		s = Defaults()
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("Failed to read .env file")
	}
	s.applyEnv()

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// ReadFile parses and validates a settings file without any overrides.
func ReadFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s := Defaults()
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	s.normalize()
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings in %s: %w", path, err)
	}
	return s, nil
}

// normalize maps older mode spellings onto the current ones.
func (s *Settings) normalize() {
	if s.Gemini.Mode == legacyStreamMode {
		s.Gemini.Mode = string(chat.ModeOneShot)
		s.Gemini.StreamResponse = true
	}
	s.Gemini.ModelName = strings.TrimSpace(s.Gemini.ModelName)
	if s.Gemini.ModelName == "" {
		s.Gemini.ModelName = chat.DefaultModelName
	}
}

func (s *Settings) applyEnv() {
	if s.Gemini.APIKey == "" {
		s.Gemini.APIKey = getEnv("GEMINI_API_KEY", getEnv("GOOGLE_API_KEY", ""))
	}
	s.Gemini.ModelName = getEnv("GEMINI_MODEL", s.Gemini.ModelName)
	s.Gemini.Mode = getEnv("GEMINI_MODE", s.Gemini.Mode)
	s.Gemini.StreamResponse = getBool("GEMINI_STREAM", s.Gemini.StreamResponse)
	s.File.OutputDirectory = getEnv("VIDEO_ANALYZER_OUTPUT_DIR", s.File.OutputDirectory)
	s.File.MaxFileSizeMB = getInt("VIDEO_ANALYZER_MAX_SIZE_MB", s.File.MaxFileSizeMB)
	s.AWS.S3Bucket = getEnv("VIDEO_ANALYZER_S3_BUCKET", s.AWS.S3Bucket)
	s.AWS.SSMParam = getEnv("SSM_API_KEY_PARAM", s.AWS.SSMParam)
	s.AWS.Region = getEnv("AWS_REGION", s.AWS.Region)
	s.Log.Level = getEnv("GEMINI_LOG_LEVEL", s.Log.Level)
	s.normalize()
}

// Validate checks the mode and the size ceiling.
func (s *Settings) Validate() error {
	if _, err := chat.ParseMode(s.Gemini.Mode); err != nil {
		return fmt.Errorf("gemini.mode: %w", err)
	}
	if s.File.MaxFileSizeMB < jobs.MinSizeLimitMB || s.File.MaxFileSizeMB > jobs.MaxSizeLimitMB {
		return fmt.Errorf("file.max_file_size_mb must be between %d and %d, got %d",
			jobs.MinSizeLimitMB, jobs.MaxSizeLimitMB, s.File.MaxFileSizeMB)
	}
	return nil
}

// Save writes the settings as indented JSON. The file holds the API key, so
// it is readable by the owner only.
func (s *Settings) Save(path string) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	log.Info().Str("path", path).Msg("Settings saved")
	return nil
}

// CustomTemplate names the user's saved prompt in PromptTemplate.
const CustomTemplate = "custom"

// PromptTemplate returns the prompt for a built-in template or, for
// CustomTemplate, the saved custom prompt.
func (s *Settings) PromptTemplate(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == CustomTemplate {
		if strings.TrimSpace(s.UI.CustomPrompt) == "" {
			return "", errors.New("no custom prompt saved (use: config set custom_prompt <text>)")
		}
		return s.UI.CustomPrompt, nil
	}
	if p, ok := assets.Template(name); ok {
		return p, nil
	}
	return "", fmt.Errorf("unknown template %q (valid: %s, %s)",
		name, strings.Join(assets.TemplateNames(), ", "), CustomTemplate)
}

// JobConfig converts the settings into per-job settings.
func (s *Settings) JobConfig() jobs.Config {
	return jobs.Config{
		APIKey:    s.Gemini.APIKey,
		Model:     s.Gemini.ModelName,
		Mode:      chat.Mode(s.Gemini.Mode),
		Stream:    s.Gemini.StreamResponse,
		OutputDir: s.File.OutputDirectory,
		MaxSizeMB: s.File.MaxFileSizeMB,
		UseBOM:    s.File.UseBOM,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("variable", key).Str("value", v).Msg("Ignoring non-numeric value")
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("variable", key).Str("value", v).Msg("Ignoring non-boolean value")
		return fallback
	}
	return b
}

package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// field binds a flat key name to one setting.
type field struct {
	get func(*Settings) string
	set func(*Settings, string) error
}

func stringField(p func(*Settings) *string) field {
	return field{
		get: func(s *Settings) string { return *p(s) },
		set: func(s *Settings, v string) error { *p(s) = v; return nil },
	}
}

func boolField(p func(*Settings) *bool) field {
	return field{
		get: func(s *Settings) string { return strconv.FormatBool(*p(s)) },
		set: func(s *Settings, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("expected true or false, got %q", v)
			}
			*p(s) = b
			return nil
		},
	}
}

func intField(p func(*Settings) *int) field {
	return field{
		get: func(s *Settings) string { return strconv.Itoa(*p(s)) },
		set: func(s *Settings, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("expected a number, got %q", v)
			}
			*p(s) = n
			return nil
		},
	}
}

var fields = map[string]field{
	"api_key":           stringField(func(s *Settings) *string { return &s.Gemini.APIKey }),
	"model_name":        stringField(func(s *Settings) *string { return &s.Gemini.ModelName }),
	"mode":              stringField(func(s *Settings) *string { return &s.Gemini.Mode }),
	"stream_response":   boolField(func(s *Settings) *bool { return &s.Gemini.StreamResponse }),
	"max_file_size_mb":  intField(func(s *Settings) *int { return &s.File.MaxFileSizeMB }),
	"output_directory":  stringField(func(s *Settings) *string { return &s.File.OutputDirectory }),
	"use_bom":           boolField(func(s *Settings) *bool { return &s.File.UseBOM }),
	"input_directory":   stringField(func(s *Settings) *string { return &s.File.InputDirectory }),
	"last_prompt":       stringField(func(s *Settings) *string { return &s.UI.LastPrompt }),
	"custom_prompt":     stringField(func(s *Settings) *string { return &s.UI.CustomPrompt }),
	"s3_bucket":         stringField(func(s *Settings) *string { return &s.AWS.S3Bucket }),
	"s3_prefix":         stringField(func(s *Settings) *string { return &s.AWS.S3Prefix }),
	"ssm_api_key_param": stringField(func(s *Settings) *string { return &s.AWS.SSMParam }),
	"aws_region":        stringField(func(s *Settings) *string { return &s.AWS.Region }),
	"log_level":         stringField(func(s *Settings) *string { return &s.Log.Level }),
	"log_file":          stringField(func(s *Settings) *string { return &s.Log.File }),
}

// Keys lists the names accepted by Get and Set, sorted.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns a setting by its flat key name.
func (s *Settings) Get(key string) (string, error) {
	f, ok := fields[strings.ToLower(key)]
	if !ok {
		return "", fmt.Errorf("unknown setting %q (valid: %s)", key, strings.Join(Keys(), ", "))
	}
	return f.get(s), nil
}

// Set updates a setting by its flat key name. The change is rejected if it
// leaves the settings invalid.
func (s *Settings) Set(key, value string) error {
	f, ok := fields[strings.ToLower(key)]
	if !ok {
		return fmt.Errorf("unknown setting %q (valid: %s)", key, strings.Join(Keys(), ", "))
	}
	next := *s
	if err := f.set(&next, strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	next.normalize()
	if err := next.Validate(); err != nil {
		return err
	}
	*s = next
	return nil
}

// Redacted returns a copy safe to print, with the API key masked.
func (s *Settings) Redacted() *Settings {
	c := *s
	if k := c.Gemini.APIKey; k != "" {
		if len(k) > 4 {
			c.Gemini.APIKey = strings.Repeat("*", 8) + k[len(k)-4:]
		} else {
			c.Gemini.APIKey = strings.Repeat("*", 8)
		}
	}
	return &c
}

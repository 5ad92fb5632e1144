// Package jsonutil extracts and parses JSON from model responses that may be
// wrapped in markdown code fences or embedded in prose.
package jsonutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when no object or array is present in the text.
var ErrNoJSON = errors.New("no JSON content found")

// fencePattern matches the first ``` or ```json block anywhere in the text.
var fencePattern = regexp.MustCompile("(?is)```(?:json)?[ \\t]*\\r?\\n?(.*?)```")

// StripMarkdownFences returns the body of the first fenced code block in text,
// or the trimmed text itself when it contains no complete fence.
func StripMarkdownFences(text string) string {
	text = strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

// ExtractJSON returns the JSON object or array embedded in text, from the first
// opening delimiter to the last matching closing delimiter.
func ExtractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)

	objIdx := strings.Index(text, "{")
	arrIdx := strings.Index(text, "[")
	if objIdx == -1 && arrIdx == -1 {
		return "", ErrNoJSON
	}

	startIdx, endChar := objIdx, "}"
	if objIdx == -1 || (arrIdx != -1 && arrIdx < objIdx) {
		startIdx, endChar = arrIdx, "]"
	}

	text = text[startIdx:]
	endIdx := strings.LastIndex(text, endChar)
	if endIdx == -1 {
		return "", fmt.Errorf("no closing %s found", endChar)
	}
	return text[:endIdx+1], nil
}

// ParseJSON strips fences from raw, extracts the JSON content and unmarshals
// it into T.
func ParseJSON[T any](raw string) (T, error) {
	var zero T

	jsonStr, err := ExtractJSON(StripMarkdownFences(raw))
	if err != nil {
		return zero, fmt.Errorf("%w (raw length: %d)", err, len(raw))
	}

	var result T
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		preview := jsonStr
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return zero, fmt.Errorf("invalid JSON: %w (text: %s)", err, preview)
	}
	return result, nil
}

// StringField parses raw as a JSON object and returns the trimmed string value
// stored under key. ok is false when raw holds no object, the key is missing,
// the value is not a string, or the string is blank.
func StringField(raw, key string) (value string, ok bool) {
	obj, err := ParseJSON[map[string]any](raw)
	if err != nil {
		return "", false
	}
	s, isString := obj[key].(string)
	if !isString {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

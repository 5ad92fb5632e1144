package jsonutil

import (
	"errors"
	"testing"
)

func TestStripMarkdownFences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no fence", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n[1, 2]\n```", `[1, 2]`},
		{"fence after prose", "Here you go:\n```json\n{\"title\": \"x\"}\n```\nThanks", `{"title": "x"}`},
		{"unterminated fence", "```json\n{\"a\": 1}", "```json\n{\"a\": 1}"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := StripMarkdownFences(tc.input); got != tc.expected {
				t.Errorf("StripMarkdownFences(%q) = %q, expected %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	got, err := ExtractJSON(`The answer is {"title": "Trip"} as requested.`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"title": "Trip"}` {
		t.Errorf("unexpected extraction: %q", got)
	}

	got, err = ExtractJSON(`list: [{"a": 1}]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `[{"a": 1}]` {
		t.Errorf("expected array extraction, got %q", got)
	}

	if _, err := ExtractJSON("plain prose"); !errors.Is(err, ErrNoJSON) {
		t.Errorf("expected ErrNoJSON, got %v", err)
	}
}

func TestParseJSON(t *testing.T) {
	type payload struct {
		Title string `json:"title"`
	}

	p, err := ParseJSON[payload]("```json\n{\"title\": \"Budget Review\"}\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Title != "Budget Review" {
		t.Errorf("expected Budget Review, got %q", p.Title)
	}

	if _, err := ParseJSON[payload](`{"title": }`); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestStringField(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		value  string
		wantOK bool
	}{
		{"plain object", `{"title": " Trip Notes "}`, "Trip Notes", true},
		{"fenced", "```json\n{\"title\": \"Fenced\"}\n```", "Fenced", true},
		{"missing key", `{"name": "x"}`, "", false},
		{"not a string", `{"title": 3}`, "", false},
		{"blank", `{"title": "  "}`, "", false},
		{"no json", `title: 'x'`, "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			value, ok := StringField(tc.raw, "title")
			if ok != tc.wantOK || value != tc.value {
				t.Errorf("StringField(%q) = (%q, %v), expected (%q, %v)", tc.raw, value, ok, tc.value, tc.wantOK)
			}
		})
	}
}

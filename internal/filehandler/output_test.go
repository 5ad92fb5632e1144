package filehandler

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Q3 Plan: Review/Notes", "Q3 Plan_ Review_Notes"},
		{`a\b*c?d"e<f>g|h`, "a_b_c_d_e_f_g_h"},
		{"  padded  ", "padded"},
		{"__leading and trailing__", "leading and trailing"},
		{"a///b", "a_b"},
		{"::", UntitledName},
		{"", UntitledName},
		{"line one\nline two", "line one line two"},
		{"会議メモ: 予算", "会議メモ_ 予算"},
	}

	for _, tc := range tests {
		if got := SanitizeFilename(tc.input); got != tc.expected {
			t.Errorf("SanitizeFilename(%q) = %q, expected %q", tc.input, got, tc.expected)
		}
	}
}

func TestSanitizeFilenameCapsLength(t *testing.T) {
	got := SanitizeFilename(strings.Repeat("長", 200))
	if n := utf8.RuneCountInString(got); n != MaxTitleRunes {
		t.Errorf("expected %d runes, got %d", MaxTitleRunes, n)
	}
	if !utf8.ValidString(got) {
		t.Error("truncation produced invalid UTF-8")
	}
}

func TestOutputPath(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2024, 3, 9, 15, 4, 5, 0, time.Local)

	if got := OutputPath(dir, "Budget Review", day); got != filepath.Join(dir, "20240309_Budget Review.md") {
		t.Errorf("unexpected titled path %s", got)
	}
	if got := OutputPath(dir, "", day); got != filepath.Join(dir, "20240309_analysis_result.md") {
		t.Errorf("unexpected default path %s", got)
	}
}

func TestOutputPathCollision(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2024, 3, 9, 0, 0, 0, 0, time.Local)

	writeSizedFile(t, dir, "20240309_analysis_result.md", 1)
	if got := OutputPath(dir, "", day); got != filepath.Join(dir, "20240309_analysis_result_1.md") {
		t.Errorf("expected _1 suffix, got %s", got)
	}

	writeSizedFile(t, dir, "20240309_analysis_result_1.md", 1)
	if got := OutputPath(dir, "", day); got != filepath.Join(dir, "20240309_analysis_result_2.md") {
		t.Errorf("expected _2 suffix, got %s", got)
	}
}

func TestSaveText(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")

	withBOM := filepath.Join(dir, "bom.md")
	if err := SaveText(withBOM, "こんにちは", true); err != nil {
		t.Fatalf("SaveText: %v", err)
	}
	data, _ := os.ReadFile(withBOM)
	if !bytes.HasPrefix(data, utf8BOM) {
		t.Error("expected BOM prefix")
	}
	if string(data[len(utf8BOM):]) != "こんにちは" {
		t.Errorf("unexpected content %q", data)
	}

	plain := filepath.Join(dir, "plain.md")
	if err := SaveText(plain, "hello", false); err != nil {
		t.Fatalf("SaveText: %v", err)
	}
	data, _ = os.ReadFile(plain)
	if string(data) != "hello" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestSaveTextUnwritableDirectory(t *testing.T) {
	blocker := writeSizedFile(t, t.TempDir(), "file", 1)
	if err := SaveText(filepath.Join(blocker, "out.md"), "x", false); err == nil {
		t.Error("expected error when parent is a file")
	}
}

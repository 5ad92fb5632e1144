package filehandler

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

const (
	// ResultExt is the extension of saved analysis results.
	ResultExt = ".md"

	// DefaultResultName is used when no title is available.
	DefaultResultName = "analysis_result"

	// UntitledName replaces titles that sanitize to nothing.
	UntitledName = "untitled"

	// MaxTitleRunes caps the title part of a result file name.
	MaxTitleRunes = 80
)

// utf8BOM is written at the start of results when the BOM option is on.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var (
	forbiddenChars   = regexp.MustCompile(`[\\/:*?"<>|]`)
	underscoreRuns   = regexp.MustCompile(`_+`)
	controlOrNewline = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// SanitizeFilename turns a title into a safe file name component. Characters
// forbidden on common filesystems become underscores, runs of underscores
// collapse, and leading/trailing whitespace and underscores are trimmed. An
// empty result becomes "untitled".
func SanitizeFilename(name string) string {
	name = controlOrNewline.ReplaceAllString(name, " ")
	name = forbiddenChars.ReplaceAllString(name, "_")
	name = strings.TrimSpace(name)
	name = underscoreRuns.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")

	if utf8.RuneCountInString(name) > MaxTitleRunes {
		name = strings.TrimRight(string([]rune(name)[:MaxTitleRunes]), " _")
	}
	if name == "" {
		return UntitledName
	}
	return name
}

// OutputPath returns the result path inside dir for the given title and date:
// YYYYMMDD_<sanitized title>.md, or YYYYMMDD_analysis_result.md when title is
// empty. An existing file is never reused; _1, _2, ... are appended instead.
func OutputPath(dir, title string, now time.Time) string {
	base := now.Format("20060102") + "_"
	if strings.TrimSpace(title) == "" {
		base += DefaultResultName
	} else {
		base += SanitizeFilename(title)
	}

	candidate := filepath.Join(dir, base+ResultExt)
	for n := 1; fileExists(candidate); n++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, n, ResultExt))
	}
	return candidate
}

// SaveText writes text to path as UTF-8, optionally prefixed with a BOM,
// creating the parent directory if needed.
func SaveText(path, text string, withBOM bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	data := make([]byte, 0, len(text)+len(utf8BOM))
	if withBOM {
		data = append(data, utf8BOM...)
	}
	data = append(data, text...)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write result file: %w", err)
	}

	log.Info().
		Str("path", path).
		Int("bytes", len(data)).
		Bool("bom", withBOM).
		Msg("Result saved")
	return nil
}

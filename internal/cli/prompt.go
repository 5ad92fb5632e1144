package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-video-analyzer/internal/assets"
)

// PromptForPrompt asks for the analysis instruction on in. An empty answer
// keeps last, or the built-in video analysis prompt when there is none.
func PromptForPrompt(in io.Reader, out io.Writer, last string) string {
	fallback := last
	if strings.TrimSpace(fallback) == "" {
		fallback = assets.VideoAnalysisPrompt
	}

	hint := firstLine(fallback)
	fmt.Fprintf(out, "Prompt [%s]: ", hint)

	input, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(err == io.EOF && input != "") {
		log.Warn().Err(err).Msg("Failed to read input, using default prompt")
		return fallback
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return fallback
	}
	return input
}

// ReadPromptFile loads a prompt from path, or from stdin when path is "-".
func ReadPromptFile(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("prompt file %s is empty", path)
	}
	return prompt, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i]) + "..."
	}
	if r := []rune(s); len(r) > 60 {
		s = string(r[:57]) + "..."
	}
	return s
}

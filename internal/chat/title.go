package chat

import (
	"context"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-video-analyzer/internal/assets"
	"github.com/fpang/gemini-video-analyzer/internal/jsonutil"
)

const (
	// TitleInputLimit is the number of characters of analysis text sent with
	// the title request.
	TitleInputLimit = 4000

	// firstLineTitleLimit bounds a title taken from the first line of a reply.
	firstLineTitleLimit = 50
)

// TextGenerator is the subset of Client used for title requests.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// titleFieldPattern matches "title": "...", 'title': '...' or title: '...'
// anywhere in a reply.
var titleFieldPattern = regexp.MustCompile(`(?:"title"|'title'|\btitle)\s*:\s*(?:"([^"\n]*)"|'([^'\n]*)')`)

// RequestTitle asks gen for a short title summarizing text. It returns
// ok=false when text is empty, the request fails, or no title can be found
// in the reply. Failures are logged, never returned.
func RequestTitle(ctx context.Context, gen TextGenerator, text string) (title string, ok bool) {
	if strings.TrimSpace(text) == "" {
		log.Warn().Msg("No text to generate a title from")
		return "", false
	}

	if runes := []rune(text); len(runes) > TitleInputLimit {
		text = string(runes[:TitleInputLimit])
		log.Debug().Int("limit", TitleInputLimit).Msg("Truncated text for title generation")
	}

	log.Info().Msg("Requesting title from Gemini...")
	reply, err := gen.GenerateText(ctx, assets.RenderTitlePrompt(text))
	if err != nil {
		log.Warn().Err(err).Msg("Title generation failed")
		return "", false
	}
	log.Debug().Str("reply", reply).Msg("Title reply received")

	title, ok = ExtractTitle(reply)
	if !ok {
		log.Warn().Msg("Could not extract a title from the reply")
	}
	return title, ok
}

// ExtractTitle pulls a title out of a model reply. It tries, in order, a
// JSON object with a "title" field (optionally fenced), a title key/value
// fragment anywhere in the text, and the first non-blank line cut to 50
// characters.
func ExtractTitle(reply string) (string, bool) {
	if title, ok := jsonutil.StringField(reply, "title"); ok {
		log.Debug().Str("title", title).Msg("Title extracted from JSON")
		return title, true
	}

	if m := titleFieldPattern.FindStringSubmatch(reply); m != nil {
		title := strings.TrimSpace(m[1] + m[2])
		if title != "" {
			log.Debug().Str("title", title).Msg("Title extracted by pattern")
			return title, true
		}
	}

	for line := range strings.Lines(reply) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if runes := []rune(line); len(runes) > firstLineTitleLimit {
			line = strings.TrimSpace(string(runes[:firstLineTitleLimit]))
		}
		log.Debug().Str("title", line).Msg("Title taken from first line of reply")
		return line, true
	}
	return "", false
}

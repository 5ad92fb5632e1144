// Package assets provides embedded static assets for the application.
//
// Prompt templates are stored as text files under prompts/ and embedded at
// compile time, along with the default model catalog.
package assets

import (
	"bytes"
	_ "embed"
	"text/template"
)

// VideoAnalysisPrompt is the default instruction sent with a video when the
// user does not supply one.
//
//go:embed prompts/video-analysis.txt
var VideoAnalysisPrompt string

// DefaultModels is the model catalog used when no models.yaml is configured.
//
//go:embed models.yaml
var DefaultModels []byte

//go:embed prompts/title.txt
var titleTemplate string

var titlePromptTmpl = template.Must(template.New("title").Parse(titleTemplate))

// TitleData holds the dynamic data injected into the title prompt.
type TitleData struct {
	// Text is the analysis result, already truncated by the caller.
	Text string
}

// RenderTitlePrompt renders the title request prompt for the given analysis text.
func RenderTitlePrompt(text string) string {
	var buf bytes.Buffer
	// The template only interpolates a string field; execution cannot fail.
	_ = titlePromptTmpl.Execute(&buf, TitleData{Text: text})
	return buf.String()
}

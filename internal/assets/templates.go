package assets

import (
	_ "embed"
	"sort"
)

// Names of the built-in prompt templates.
const (
	TemplateGeneral   = "general"
	TemplateMeeting   = "meeting-minutes"
	TemplateScenes    = "scene-breakdown"
	TemplateTechnical = "technical-analysis"
)

var (
	//go:embed prompts/meeting-minutes.txt
	meetingMinutesPrompt string
	//go:embed prompts/scene-breakdown.txt
	sceneBreakdownPrompt string
	//go:embed prompts/technical-analysis.txt
	technicalAnalysisPrompt string
)

var templates = map[string]*string{
	TemplateGeneral:   &VideoAnalysisPrompt,
	TemplateMeeting:   &meetingMinutesPrompt,
	TemplateScenes:    &sceneBreakdownPrompt,
	TemplateTechnical: &technicalAnalysisPrompt,
}

// TemplateNames lists the built-in templates, sorted.
func TemplateNames() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Template returns the built-in prompt registered under name.
func Template(name string) (string, bool) {
	p, ok := templates[name]
	if !ok {
		return "", false
	}
	return *p, true
}

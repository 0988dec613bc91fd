// Package translation holds the prompts for anchored section translation.
package translation

import (
	_ "embed"
	"fmt"

	"github.com/jackzampolin/docket/internal/prompts"
)

//go:embed system.tmpl
var systemPrompt string

//go:embed user.tmpl
var userPromptTmpl string

// Prompt keys
const (
	SystemPromptKey = "translation.system"
	UserPromptKey   = "translation.user"
)

// Section is one anchored section in the user prompt.
type Section struct {
	Anchor  string
	Title   string
	Content string
}

// Data feeds both templates.
type Data struct {
	SourceLanguage string
	TargetLanguage string
	DocumentType   string
	AnchorPrefix   string
	AnchorSuffix   string
	RiskLabels     []string
	Sections       []Section
}

// RegisterPrompts registers the translation prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPrompt,
		Description: "Translation system prompt - anchor contract and risk labels",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         UserPromptKey,
		Text:        userPromptTmpl,
		Description: "Translation user prompt - anchored sections to translate",
	})
}

// Build renders the system and user prompts for data.
func Build(r *prompts.Resolver, data Data) (system, user string, err error) {
	system, err = r.Render(SystemPromptKey, data)
	if err != nil {
		return "", "", fmt.Errorf("system prompt: %w", err)
	}
	user, err = r.Render(UserPromptKey, data)
	if err != nil {
		return "", "", fmt.Errorf("user prompt: %w", err)
	}
	return system, user, nil
}

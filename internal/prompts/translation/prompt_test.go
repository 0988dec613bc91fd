package translation

import (
	"strings"
	"testing"

	"github.com/jackzampolin/docket/internal/prompts"
)

func testData() Data {
	return Data{
		SourceLanguage: "Russian",
		TargetLanguage: "English",
		DocumentType:   "lease agreement",
		AnchorPrefix:   "<!-- SECTION_ANCHOR_",
		AnchorSuffix:   " -->",
		RiskLabels:     []string{"[RISK]", "[CONTRADICTION]", "[WARNING]"},
		Sections: []Section{
			{Anchor: "<!-- SECTION_ANCHOR_s1_subject -->", Title: "Subject", Content: "Арендодатель передает помещение."},
			{Anchor: "<!-- SECTION_ANCHOR_s2_payment -->", Content: "Оплата ежемесячно."},
		},
	}
}

func TestBuild(t *testing.T) {
	r := prompts.NewResolver(nil, nil)
	RegisterPrompts(r)

	system, user, err := Build(r, testData())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	for _, want := range []string{"Russian into English", "[CONTRADICTION]", "<!-- SECTION_ANCHOR_ID -->", "indent the\n   extra lines"} {
		if !strings.Contains(system, want) {
			t.Errorf("system prompt missing %q:\n%s", want, system)
		}
	}
	for _, want := range []string{
		"2 section(s)",
		"<!-- SECTION_ANCHOR_s1_subject -->\n## Subject\nАрендодатель передает помещение.",
		"<!-- SECTION_ANCHOR_s2_payment -->\nОплата ежемесячно.",
	} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt missing %q:\n%s", want, user)
		}
	}
}

func TestBuild_Override(t *testing.T) {
	r := prompts.NewResolver(map[string]string{
		SystemPromptKey: "Translate to {{.TargetLanguage}}.",
	}, nil)
	RegisterPrompts(r)

	system, _, err := Build(r, testData())
	if err != nil {
		t.Fatal(err)
	}
	if system != "Translate to English." {
		t.Errorf("system = %q", system)
	}

	resolved, _ := r.Resolve(SystemPromptKey)
	if !resolved.IsOverride || len(resolved.Variables) != 1 {
		t.Errorf("resolved = %+v", resolved)
	}

	r.SetOverrides(nil)
	resolved, _ = r.Resolve(SystemPromptKey)
	if resolved.IsOverride {
		t.Error("override should be cleared")
	}
}

func TestBuild_BadOverride(t *testing.T) {
	r := prompts.NewResolver(map[string]string{UserPromptKey: "{{.Missing}}"}, nil)
	RegisterPrompts(r)

	if _, _, err := Build(r, testData()); err == nil {
		t.Error("expected error for unknown template field")
	}
}

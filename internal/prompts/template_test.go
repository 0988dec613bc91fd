package prompts

import (
	"reflect"
	"testing"
)

func TestExtractVariables(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"Hello {{.Name}}, you have {{ .Count }} items", []string{"Count", "Name"}},
		{"{{.Doc.Title}} and {{.Doc.Title}}", []string{"Doc.Title"}},
		{"no variables", nil},
	}
	for _, tt := range tests {
		if got := ExtractVariables(tt.text); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ExtractVariables(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestResolver(t *testing.T) {
	r := NewResolver(nil, nil)
	r.Register(EmbeddedPrompt{Key: "b.key", Text: "B {{.X}}"})
	r.Register(EmbeddedPrompt{Key: "a.key", Text: "A"})

	all := r.AllEmbedded()
	if len(all) != 2 || all[0].Key != "a.key" {
		t.Errorf("AllEmbedded() = %+v", all)
	}
	if all[1].Hash != HashText("B {{.X}}") {
		t.Error("hash not computed")
	}

	out, err := r.Render("b.key", map[string]string{"X": "y"})
	if err != nil || out != "B y" {
		t.Errorf("Render() = %q, %v", out, err)
	}
	if _, err := r.Resolve("missing"); err == nil {
		t.Error("expected error for missing prompt")
	}
}

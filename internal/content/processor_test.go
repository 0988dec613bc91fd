package content

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/jackzampolin/docket/internal/anchor"
	"github.com/jackzampolin/docket/internal/providers"
)

func marker(id string) string {
	return anchor.DefaultPrefix + id + anchor.DefaultSuffix
}

func TestParse_NoAnchorFallback(t *testing.T) {
	p := NewProcessor(nil)

	pc, err := p.Parse("plain text")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(pc.Sections) != 1 {
		t.Fatalf("sections = %d, want 1", len(pc.Sections))
	}
	sec := pc.Sections[0]
	if sec.ID != "main" || sec.Title != "Document" {
		t.Errorf("section = %q/%q, want main/Document", sec.ID, sec.Title)
	}
	if !reflect.DeepEqual(sec.Translations, []string{"plain text"}) {
		t.Errorf("Translations = %q", sec.Translations)
	}
	if len(pc.Anchors) != 0 {
		t.Errorf("Anchors = %v, want none", pc.Anchors)
	}
	if pc.OriginalContent != "plain text" {
		t.Errorf("OriginalContent = %q", pc.OriginalContent)
	}
}

func TestParse_Sections(t *testing.T) {
	p := NewProcessor(nil)
	raw := marker("s1_article_1") + "\n## Article 1. Subject\nThe lessor transfers the premises.\n" +
		"**[RISK]**: Term of lease is not defined.\n" +
		"  It may be deemed unconcluded.\n\n" +
		"Tail paragraph.\n" +
		marker("s2_article_2") + "\nPayment is monthly.\n" +
		"[contradiction] Clause 2.1 conflicts with 5.3\n" +
		"[ПРЕДУПРЕЖДЕНИЕ] Валюта платежа не указана\n"

	pc, err := p.Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !reflect.DeepEqual(pc.Anchors, []string{"s1_article_1", "s2_article_2"}) || len(pc.Sections) != 2 {
		t.Fatalf("anchors = %v, sections = %d", pc.Anchors, len(pc.Sections))
	}
	if pc.OriginalContent != raw {
		t.Error("OriginalContent should hold the raw output")
	}

	s1 := pc.Sections[0]
	if s1.ID != "s1_article_1" || s1.Title != "Article 1. Subject" {
		t.Errorf("s1 = %q/%q", s1.ID, s1.Title)
	}
	if want := []string{"The lessor transfers the premises.", "Tail paragraph."}; !reflect.DeepEqual(s1.Translations, want) {
		t.Errorf("s1 translations = %q, want %q", s1.Translations, want)
	}
	if len(s1.Risks) != 1 {
		t.Fatalf("s1 risks = %d", len(s1.Risks))
	}
	if s1.Risks[0].Type != RiskTypeRisk ||
		s1.Risks[0].Text != "Term of lease is not defined.\nIt may be deemed unconcluded." {
		t.Errorf("s1 risk = %+v", s1.Risks[0])
	}

	s2 := pc.Sections[1]
	if s2.Title != "s2_article_2" {
		t.Errorf("s2 title = %q, want anchor id", s2.Title)
	}
	if s2.Text() != "Payment is monthly." {
		t.Errorf("s2 text = %q", s2.Text())
	}
	if len(s2.Risks) != 2 || s2.Risks[0].Type != RiskTypeContradiction || s2.Risks[1].Type != RiskTypeWarning {
		t.Errorf("s2 risks = %+v", s2.Risks)
	}
	if s2.Risks[1].SectionID != "s2_article_2" {
		t.Errorf("risk section = %q", s2.Risks[1].SectionID)
	}
	if len(pc.Risks) != 3 {
		t.Errorf("all risks = %d, want 3", len(pc.Risks))
	}
}

func TestParse_RiskEndsAtUnindentedLine(t *testing.T) {
	p := NewProcessor(nil)
	raw := marker("s1") + "\nFirst paragraph.\n" +
		"[WARNING] Deadline is ambiguous.\n" +
		"  See clause 4.\n" +
		"The buyer pays within ten days.\n" +
		"Delivery follows payment.\n"

	pc, err := p.Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	sec, ok := pc.Section("s1")
	if !ok {
		t.Fatal("section s1 missing")
	}
	if len(sec.Risks) != 1 || sec.Risks[0].Text != "Deadline is ambiguous.\nSee clause 4." {
		t.Errorf("risks = %+v", sec.Risks)
	}
	want := []string{"First paragraph.", "The buyer pays within ten days.\nDelivery follows payment."}
	if !reflect.DeepEqual(sec.Translations, want) {
		t.Errorf("translations = %q, want %q", sec.Translations, want)
	}
}

func TestParse_Preamble(t *testing.T) {
	p := NewProcessor(nil)
	pc, _ := p.Parse("Intro words\n" + marker("a") + "body")
	if len(pc.Sections) != 2 || pc.Sections[0].ID != PreambleSectionID {
		t.Fatalf("sections = %+v", pc.SectionIDs())
	}
	if sec, ok := pc.Section("a"); !ok || sec.Text() != "body" {
		t.Errorf("section a = %+v", sec)
	}
	if !reflect.DeepEqual(pc.Anchors, []string{"a"}) {
		t.Errorf("anchors = %v", pc.Anchors)
	}
}

func TestParsedContent_Merge(t *testing.T) {
	p := NewProcessor(nil)
	first, _ := p.Parse(marker("a") + "one\n[RISK] r1")
	second, _ := p.Parse(marker("b") + "two")

	var all ParsedContent
	all.Merge(first)
	all.Merge(second)
	if !reflect.DeepEqual(all.Anchors, []string{"a", "b"}) || len(all.Sections) != 2 || len(all.Risks) != 1 {
		t.Errorf("merged = %+v", all)
	}
	if all.OriginalContent != first.OriginalContent+"\n\n"+second.OriginalContent {
		t.Errorf("OriginalContent = %q", all.OriginalContent)
	}
}

func TestReplaceAnchors(t *testing.T) {
	p := NewProcessor(nil)
	text := "A" + marker("s1") + "B" + marker("s2") + "C" + marker("s1")

	got, err := p.ReplaceAnchors(text, map[string]string{"s1": "<X/>"})
	if err != nil {
		t.Fatalf("ReplaceAnchors() error = %v", err)
	}
	want := "A<X/>B" + marker("s2") + "C<X/>"
	if got != want {
		t.Errorf("ReplaceAnchors() = %q, want %q", got, want)
	}

	same, _ := p.ReplaceAnchors(text, nil)
	if same != text {
		t.Error("nil mapping should leave text untouched")
	}
}

func TestRemoveAnchors(t *testing.T) {
	p := NewProcessor(nil)
	text := "one " + marker("a") + "two\n" + marker("b-2") + " three"
	got, err := p.RemoveAnchors(text)
	if err != nil {
		t.Fatal(err)
	}
	if got != "one two\n three" {
		t.Errorf("RemoveAnchors() = %q", got)
	}
	if strings.Contains(got, anchor.DefaultPrefix) {
		t.Error("anchor left behind")
	}
}

func TestParseDocumentResult(t *testing.T) {
	p := NewProcessor(nil)

	tests := []struct {
		name    string
		rec     *ProcessingRecord
		wantErr error
	}{
		{"nil record", nil, ErrNotCompleted},
		{"pending", &ProcessingRecord{ID: "r1", Status: StatusPending, Result: "x"}, ErrNotCompleted},
		{"failed", &ProcessingRecord{ID: "r1", Status: StatusFailed}, ErrNotCompleted},
		{"empty result", &ProcessingRecord{ID: "r1", Status: StatusCompleted, Result: "  "}, ErrEmptyResult},
		{"completed", &ProcessingRecord{ID: "r1", Status: StatusCompleted, Result: marker("a") + "text"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc, err := p.ParseDocumentResult(tt.rec)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				if len(pc.Anchors) != 1 {
					t.Errorf("Anchors = %v", pc.Anchors)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			var ve *providers.ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("want *ValidationError, got %T", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	p := NewProcessor(nil)
	raw := marker("a") + "x" + marker("c") + "y"

	if err := p.Validate(raw, []string{"a", "c"}); err != nil {
		t.Errorf("Validate() = %v", err)
	}

	err := p.Validate(raw, []string{"a", "b", "c"})
	var pe *providers.ParsingError
	if !errors.As(err, &pe) {
		t.Fatalf("want *ParsingError, got %v", err)
	}
	if pe.AnchorCount != 2 || pe.TextSize != len(raw) || len(pe.Missing) != 1 || pe.Missing[0] != "b" {
		t.Errorf("ParsingError = %+v", pe)
	}
	if providers.IsRetryable(err) {
		t.Error("parsing errors are not retryable")
	}

	err = p.Validate("no anchors", []string{"a"})
	if !errors.As(err, &pe) || pe.Message != "no anchors in provider output" {
		t.Errorf("err = %v", err)
	}
}

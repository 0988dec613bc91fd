// Package content parses provider output back into anchored sections and
// risk annotations.
package content

import (
	"regexp"
	"strings"
)

const (
	// FallbackSectionID and FallbackTitle name the single section produced
	// when output carries no anchors.
	FallbackSectionID = "main"
	FallbackTitle     = "Document"

	PreambleSectionID = "preamble"
)

// RiskType categorizes a risk annotation.
type RiskType string

const (
	RiskTypeRisk          RiskType = "risk"
	RiskTypeContradiction RiskType = "contradiction"
	RiskTypeWarning       RiskType = "warning"
)

// Risk is one labeled note attached to a section.
type Risk struct {
	Type      RiskType `json:"type" yaml:"type"`
	Text      string   `json:"text" yaml:"text"`
	SectionID string   `json:"section_id" yaml:"section_id"`
}

// Section is one translated section recovered from provider output.
// Translations holds its paragraphs in order, risk notes removed.
type Section struct {
	ID           string   `json:"id" yaml:"id"`
	Title        string   `json:"title" yaml:"title"`
	Translations []string `json:"translations" yaml:"translations"`
	Risks        []Risk   `json:"risks,omitempty" yaml:"risks,omitempty"`
}

// Text joins the section's paragraphs with blank lines.
func (s Section) Text() string {
	return strings.Join(s.Translations, "\n\n")
}

// ParsedContent is the structured form of one provider response.
// Anchors lists the anchor ids found in OriginalContent, in order; Risks
// collects every section's risks.
type ParsedContent struct {
	OriginalContent string    `json:"original_content" yaml:"original_content"`
	Sections        []Section `json:"sections" yaml:"sections"`
	Anchors         []string  `json:"anchors" yaml:"anchors"`
	Risks           []Risk    `json:"risks" yaml:"risks"`
}

// Merge appends other's sections, anchors and risks to p. Original
// contents are joined with a blank line.
func (p *ParsedContent) Merge(other ParsedContent) {
	if p.OriginalContent != "" && other.OriginalContent != "" {
		p.OriginalContent += "\n\n"
	}
	p.OriginalContent += other.OriginalContent
	p.Sections = append(p.Sections, other.Sections...)
	p.Anchors = append(p.Anchors, other.Anchors...)
	p.Risks = append(p.Risks, other.Risks...)
}

// SectionIDs returns the ids of all sections in order.
func (p *ParsedContent) SectionIDs() []string {
	ids := make([]string, len(p.Sections))
	for i, s := range p.Sections {
		ids[i] = s.ID
	}
	return ids
}

// Section returns the section with id.
func (p *ParsedContent) Section(id string) (Section, bool) {
	for _, s := range p.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}

// RiskLabel maps a literal label to its category.
type RiskLabel struct {
	Label string
	Type  RiskType
}

// RiskLabels are recognized in order; the first match wins.
var RiskLabels = []RiskLabel{
	{"RISK", RiskTypeRisk},
	{"CONTRADICTION", RiskTypeContradiction},
	{"WARNING", RiskTypeWarning},
	{"РИСК", RiskTypeRisk},
	{"ПРОТИВОРЕЧИЕ", RiskTypeContradiction},
	{"ПРЕДУПРЕЖДЕНИЕ", RiskTypeWarning},
}

var (
	riskLinePattern = buildRiskPattern(RiskLabels)
	headingPattern  = regexp.MustCompile(`^#{1,6}\s+(.+?)\s*#*\s*$`)
)

// buildRiskPattern matches "[LABEL] text", optionally bolded and followed by a colon.
func buildRiskPattern(labels []RiskLabel) *regexp.Regexp {
	alts := make([]string, len(labels))
	for i, l := range labels {
		alts[i] = regexp.QuoteMeta(l.Label)
	}
	return regexp.MustCompile(`(?i)^\s*(?:\*\*)?\[(` + strings.Join(alts, "|") + `)\](?:\*\*)?\s*:?\s*(.*)$`)
}

// riskType returns the category of a matched label.
func riskType(label string) RiskType {
	for _, l := range RiskLabels {
		if strings.EqualFold(l.Label, label) {
			return l.Type
		}
	}
	return RiskTypeRisk
}

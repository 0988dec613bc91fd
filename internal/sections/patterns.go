package sections

import (
	"regexp"
	"strings"
)

// Confidence assigned by each detection strategy.
const (
	ConfidenceHigh   = 0.9 // header-typed elements
	ConfidenceMedium = 0.7 // legal-section pattern matches
	ConfidenceLow    = 0.5 // heuristics

	// MaxLevel caps derived section depth.
	MaxLevel = 6
)

// Pattern is one legal-section heading rule.
// The level of a match is BaseLevel plus the number of '.' separators in the
// NumberGroup capture, capped at MaxLevel. NumberGroup 0 means a fixed level.
type Pattern struct {
	Name        string
	Expr        *regexp.Regexp
	BaseLevel   int
	NumberGroup int
}

// Level derives the section level from a submatch slice.
func (p Pattern) Level(match []string) int {
	level := p.BaseLevel
	if p.NumberGroup > 0 && p.NumberGroup < len(match) {
		level += strings.Count(match[p.NumberGroup], ".")
	}
	return clampLevel(level)
}

// LegalPatterns is evaluated top to bottom; the first match wins.
var LegalPatterns = []Pattern{
	{
		Name:      "chapter",
		Expr:      regexp.MustCompile(`(?i)^(?:chapter|глава)\s+([0-9]+|[IVXLCDM]+)\b`),
		BaseLevel: 1,
	},
	{
		Name:      "part",
		Expr:      regexp.MustCompile(`(?i)^(?:part|section|раздел|часть)\s+([0-9]+|[IVXLCDM]+)\b`),
		BaseLevel: 1,
	},
	{
		Name:        "article",
		Expr:        regexp.MustCompile(`(?i)^(?:article|статья|ст\.)\s*([0-9]+(?:\.[0-9]+)*)`),
		BaseLevel:   2,
		NumberGroup: 1,
	},
	{
		Name: "named",
		Expr: regexp.MustCompile(`(?i)^(?:introduction|conclusion|general provisions|final provisions|definitions|preamble|recitals|` +
			`введение|заключение|общие положения|заключительные положения|термины и определения|преамбула)(?:\s|[:.]|$)`),
		BaseLevel: 1,
	},
	{
		Name:        "clause",
		Expr:        regexp.MustCompile(`(?i)^(?:clause|пункт|п\.)\s*([0-9]+(?:\.[0-9]+)*)`),
		BaseLevel:   2,
		NumberGroup: 1,
	},
	{
		Name:        "numbered",
		Expr:        regexp.MustCompile(`^([0-9]{1,3}(?:\.[0-9]{1,3})*)\.?\s+\S`),
		BaseLevel:   1,
		NumberGroup: 1,
	},
	{
		Name:      "roman",
		Expr:      regexp.MustCompile(`^([IVXLCDM]+)\.\s+\S`),
		BaseLevel: 1,
	},
}

// LegalKeywords feed the heuristic strategy; two distinct hits mark a heading.
var LegalKeywords = []string{
	"agreement", "contract", "party", "parties", "obligations", "rights",
	"liability", "termination", "payment", "confidentiality", "warranty",
	"indemnification", "governing law", "dispute", "force majeure", "term",
	"договор", "стороны", "сторон", "обязательства", "права", "ответственность",
	"расторжение", "оплата", "конфиденциальность", "гарантии", "споры",
	"форс-мажор", "срок",
}

// MatchPattern returns the first pattern matching text and its submatches.
func MatchPattern(patterns []Pattern, text string) (Pattern, []string, bool) {
	for _, p := range patterns {
		if m := p.Expr.FindStringSubmatch(text); m != nil {
			return p, m, true
		}
	}
	return Pattern{}, nil, false
}

// CountKeywords returns the number of distinct keywords contained in text.
func CountKeywords(keywords []string, text string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}

func clampLevel(level int) int {
	if level < 1 {
		return 1
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}

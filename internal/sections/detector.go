// Package sections splits an extracted document into hierarchical sections.
//
// Detection cascades through three strategies and keeps the first one that
// yields anything: header-typed elements, legal-section patterns, and finally
// a short-line heuristic. The result is then cleaned up by dropping tiny
// sections and folding short ones into their predecessor.
package sections

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jackzampolin/docket/internal/anchor"
	"github.com/jackzampolin/docket/internal/types"
)

// ErrNilDocument is returned when Detect is called without a document.
var ErrNilDocument = errors.New("nil document")

const (
	DefaultMinSectionLength = 50
	DefaultMaxTitleLength   = 200

	// heuristicUppercaseMax bounds the "starts uppercase" heuristic.
	heuristicUppercaseMax = 100
	// preambleTitle names content that precedes the first boundary.
	preambleTitle = "Preamble"
)

// Config holds detection tunables.
type Config struct {
	// MinSectionLength drops sections with shorter content; sections shorter
	// than twice this value are merged into the preceding section. 0 disables both.
	MinSectionLength int
	// MaxTitleLength bounds titles and the heuristic's notion of a short line.
	MaxTitleLength int

	Patterns []Pattern
	Keywords []string
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MinSectionLength: DefaultMinSectionLength,
		MaxTitleLength:   DefaultMaxTitleLength,
		Patterns:         LegalPatterns,
		Keywords:         LegalKeywords,
	}
}

// Detector implements the cascading section detection.
// It is not safe for concurrent use: it shares the anchor generator's session.
type Detector struct {
	cfg     Config
	anchors *anchor.Generator
	newID   func() string
	logger  *slog.Logger
}

// NewDetector creates a detector that assigns anchors with gen.
func NewDetector(cfg Config, gen *anchor.Generator) *Detector {
	if cfg.MaxTitleLength <= 0 {
		cfg.MaxTitleLength = DefaultMaxTitleLength
	}
	if cfg.MinSectionLength < 0 {
		cfg.MinSectionLength = 0
	}
	if cfg.Patterns == nil {
		cfg.Patterns = LegalPatterns
	}
	if cfg.Keywords == nil {
		cfg.Keywords = LegalKeywords
	}
	if gen == nil {
		gen = anchor.NewGenerator(anchor.DefaultConfig())
	}
	return &Detector{
		cfg:     cfg,
		anchors: gen,
		newID:   newSectionID,
		logger:  slog.Default(),
	}
}

// SetLogger sets the logger for the detector.
func (d *Detector) SetLogger(logger *slog.Logger) {
	if logger != nil {
		d.logger = logger
	}
}

// SetIDFunc overrides section id generation (tests use deterministic ids).
func (d *Detector) SetIDFunc(fn func() string) {
	if fn != nil {
		d.newID = fn
	}
}

// Anchors returns the generator used for anchor assignment.
func (d *Detector) Anchors() *anchor.Generator {
	return d.anchors
}

// boundary describes an element that starts a new section.
type boundary struct {
	title   string
	level   int
	pattern string
}

// strategy decides whether element i starts a section.
type strategy struct {
	method     types.DetectionMethod
	confidence float64
	starts     func(el types.TextElement) (boundary, bool)
}

// Detect returns the sections of doc in document order.
func (d *Detector) Detect(doc *types.ExtractedDocument) ([]types.DocumentSection, error) {
	if doc == nil {
		return nil, ErrNilDocument
	}
	if len(doc.Elements) == 0 {
		return nil, nil
	}

	strategies := []strategy{
		{types.DetectionHeader, ConfidenceHigh, d.headerBoundary},
		{types.DetectionPattern, ConfidenceMedium, d.patternBoundary},
		{types.DetectionHeuristic, ConfidenceLow, d.heuristicBoundary},
	}

	for _, s := range strategies {
		found := d.split(doc.Elements, s)
		if len(found) == 0 {
			continue
		}
		d.logger.Debug("sections detected",
			"method", s.method,
			"raw_sections", len(found),
			"document", doc.Path)
		return d.assignAnchors(d.postProcess(found))
	}
	return nil, nil
}

// assignAnchors gives each emitted section its anchor. It runs after
// post-processing so the generator's session holds exactly the anchors of
// the returned sections, and a merged section's anchor follows its final title.
func (d *Detector) assignAnchors(sections []types.DocumentSection) ([]types.DocumentSection, error) {
	for i := range sections {
		a, err := d.anchors.Generate(sections[i].ID, sections[i].Title)
		if err != nil {
			return nil, fmt.Errorf("anchor for %s: %w", sections[i].ID, err)
		}
		sections[i].Anchor = a
	}
	return sections, nil
}

func (d *Detector) headerBoundary(el types.TextElement) (boundary, bool) {
	if !el.IsHeader() {
		return boundary{}, false
	}
	title := d.titleFrom(el.PlainText())
	if title == "" {
		return boundary{}, false
	}
	return boundary{title: title, level: clampLevel(el.Level)}, true
}

func (d *Detector) patternBoundary(el types.TextElement) (boundary, bool) {
	text := el.PlainText()
	if text == "" {
		return boundary{}, false
	}
	p, match, ok := MatchPattern(d.cfg.Patterns, firstLine(text))
	if !ok {
		return boundary{}, false
	}
	return boundary{title: d.titleFrom(text), level: p.Level(match), pattern: p.Name}, true
}

func (d *Detector) heuristicBoundary(el types.TextElement) (boundary, bool) {
	text := el.PlainText()
	n := utf8.RuneCountInString(text)
	if n == 0 || n >= d.cfg.MaxTitleLength {
		return boundary{}, false
	}
	first, _ := utf8.DecodeRuneInString(text)
	switch {
	case strings.HasSuffix(text, ":"):
	case unicode.IsUpper(first) && n < heuristicUppercaseMax:
	case CountKeywords(d.cfg.Keywords, text) >= 2:
	default:
		return boundary{}, false
	}
	return boundary{title: d.titleFrom(strings.TrimSuffix(text, ":")), level: 1}, true
}

// split walks the elements once, opening a section at each boundary.
func (d *Detector) split(elements []types.TextElement, s strategy) []types.DocumentSection {
	type pending struct {
		b     boundary
		start int
		elems []types.TextElement
	}

	var (
		spans    []pending
		current  *pending
		preamble []types.TextElement
	)

	for i, el := range elements {
		if b, ok := s.starts(el); ok {
			if current != nil {
				spans = append(spans, *current)
			}
			current = &pending{b: b, start: i, elems: []types.TextElement{el}}
			continue
		}
		if current == nil {
			preamble = append(preamble, el)
			continue
		}
		current.elems = append(current.elems, el)
	}
	if current == nil {
		return nil
	}
	spans = append(spans, *current)

	sections := make([]types.DocumentSection, 0, len(spans)+1)
	if hasText(preamble) {
		sections = append(sections, d.build(preamble, 0, boundary{title: preambleTitle, level: 1}, s))
	}
	for _, sp := range spans {
		sections = append(sections, d.build(sp.elems, sp.start, sp.b, s))
	}
	return sections
}

// build assembles one section. Anchors are assigned once post-processing
// has settled the final sections.
func (d *Detector) build(elems []types.TextElement, start int, b boundary, s strategy) types.DocumentSection {
	return types.DocumentSection{
		ID:             d.newID(),
		Title:          b.title,
		Content:        joinText(elems),
		Level:          b.level,
		StartPosition:  start,
		EndPosition:    start + len(elems) - 1,
		SourceElements: elems,
		Confidence:     s.confidence,
		Metadata: types.SectionMetadata{
			DetectionMethod: s.method,
			ElementTypes:    elementTypes(elems),
			PatternName:     b.pattern,
		},
	}
}

// titleFrom extracts a single-line title bounded by MaxTitleLength.
func (d *Detector) titleFrom(text string) string {
	title := strings.TrimSpace(firstLine(text))
	r := []rune(title)
	if len(r) > d.cfg.MaxTitleLength {
		title = strings.TrimSpace(string(r[:d.cfg.MaxTitleLength]))
	}
	return title
}

func newSectionID() string {
	return "section_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return strings.TrimSpace(text[:i])
	}
	return text
}

func joinText(elems []types.TextElement) string {
	parts := make([]string, 0, len(elems))
	for _, el := range elems {
		if t := el.PlainText(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

func hasText(elems []types.TextElement) bool {
	for _, el := range elems {
		if el.PlainText() != "" {
			return true
		}
	}
	return false
}

func elementTypes(elems []types.TextElement) []types.ElementType {
	seen := make(map[types.ElementType]bool)
	var out []types.ElementType
	for _, el := range elems {
		if !seen[el.Type] {
			seen[el.Type] = true
			out = append(out, el.Type)
		}
	}
	return out
}

// ResetSession clears the anchor session so a new document starts fresh.
func (d *Detector) ResetSession() {
	d.anchors.ResetUsedAnchors()
}

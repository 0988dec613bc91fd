package content

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackzampolin/docket/internal/anchor"
	"github.com/jackzampolin/docket/internal/providers"
)

var (
	// ErrNotCompleted is returned for records that have not finished processing.
	ErrNotCompleted = errors.New("processing record is not completed")
	// ErrEmptyResult is returned for completed records without a result.
	ErrEmptyResult = errors.New("processing record has no result")
)

// Status is the lifecycle state of a processing record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ProcessingRecord is a finished or in-flight translation job result.
type ProcessingRecord struct {
	ID           string     `json:"id" yaml:"id"`
	Status       Status     `json:"status" yaml:"status"`
	Result       string     `json:"result,omitempty" yaml:"result,omitempty"`
	Error        string     `json:"error,omitempty" yaml:"error,omitempty"`
	DocumentType string     `json:"document_type,omitempty" yaml:"document_type,omitempty"`
	CreatedAt    time.Time  `json:"created_at" yaml:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
}

// Processor parses anchored provider output.
type Processor struct {
	anchors *anchor.Generator
	logger  *slog.Logger
}

// NewProcessor creates a processor that recognizes anchors in gen's envelope.
// A nil gen uses the default envelope.
func NewProcessor(gen *anchor.Generator) *Processor {
	if gen == nil {
		gen = anchor.NewGenerator(anchor.DefaultConfig())
	}
	return &Processor{anchors: gen, logger: slog.Default()}
}

// SetLogger sets the logger for the processor.
func (p *Processor) SetLogger(logger *slog.Logger) {
	if logger != nil {
		p.logger = logger
	}
}

// Parse splits raw at each anchor into sections and extracts risk labels.
// Without anchors the whole text becomes one "main" section.
func (p *Processor) Parse(raw string) (ParsedContent, error) {
	matches, err := p.anchors.Locate(raw)
	if err != nil {
		return ParsedContent{}, err
	}

	pc := ParsedContent{
		OriginalContent: raw,
		Sections:        []Section{},
		Anchors:         make([]string, 0, len(matches)),
		Risks:           []Risk{},
	}
	for _, m := range matches {
		pc.Anchors = append(pc.Anchors, m.ID)
	}

	if len(matches) == 0 {
		sec := buildSection(FallbackSectionID, raw, false)
		sec.Title = FallbackTitle
		pc.add(sec)
		return pc, nil
	}

	if lead := raw[:matches[0].Start]; strings.TrimSpace(lead) != "" {
		pc.add(buildSection(PreambleSectionID, lead, true))
	}
	for i, m := range matches {
		end := len(raw)
		if i+1 < len(matches) {
			end = matches[i+1].Start
		}
		pc.add(buildSection(m.ID, raw[m.End:end], true))
	}

	p.logger.Debug("parsed provider output", "anchors", len(pc.Anchors), "sections", len(pc.Sections), "risks", len(pc.Risks))
	return pc, nil
}

func (pc *ParsedContent) add(s Section) {
	pc.Sections = append(pc.Sections, s)
	pc.Risks = append(pc.Risks, s.Risks...)
}

// buildSection extracts title, paragraphs and risks from the text following
// an anchor. A risk note runs from its label line through the indented lines
// directly below it; a blank or unindented line ends it.
func buildSection(id, body string, headingTitle bool) Section {
	sec := Section{ID: id, Title: id}
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")

	if headingTitle {
		for i, line := range lines {
			if strings.TrimSpace(line) == "" {
				continue
			}
			if m := headingPattern.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
				sec.Title = m[1]
				lines = append(lines[:i:i], lines[i+1:]...)
			}
			break
		}
	}

	var (
		kept []string
		cur  *Risk
	)
	flush := func() {
		if cur != nil {
			cur.Text = strings.TrimSpace(cur.Text)
			sec.Risks = append(sec.Risks, *cur)
			cur = nil
		}
	}
	for _, line := range lines {
		if m := riskLinePattern.FindStringSubmatch(line); m != nil {
			flush()
			cur = &Risk{Type: riskType(m[1]), Text: m[2], SectionID: id}
			continue
		}
		if cur != nil {
			if isContinuation(line) {
				cur.Text += "\n" + strings.TrimSpace(line)
				continue
			}
			flush()
		}
		kept = append(kept, line)
	}
	flush()

	sec.Translations = paragraphs(kept)
	return sec
}

func isContinuation(line string) bool {
	return strings.TrimSpace(line) != "" && (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t"))
}

// paragraphs groups lines into blank-line separated blocks.
func paragraphs(lines []string) []string {
	out := []string{}
	var block []string
	emit := func() {
		if p := strings.TrimSpace(strings.Join(block, "\n")); p != "" {
			out = append(out, p)
		}
		block = block[:0]
	}
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			emit()
			continue
		}
		block = append(block, line)
	}
	emit()
	return out
}

// RemoveAnchors deletes every anchor marker and leaves all other text as is.
func (p *Processor) RemoveAnchors(text string) (string, error) {
	return p.anchors.RemoveAllAnchors(text)
}

// ReplaceAnchors substitutes each anchor whose id is in replacements.
// Anchors with ids absent from the map are left untouched.
func (p *Processor) ReplaceAnchors(text string, replacements map[string]string) (string, error) {
	matches, err := p.anchors.Locate(text)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 || len(replacements) == 0 {
		return text, nil
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range matches {
		repl, ok := replacements[m.ID]
		if !ok {
			continue
		}
		b.WriteString(text[last:m.Start])
		b.WriteString(repl)
		last = m.End
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

// ParseDocumentResult parses a completed record's result.
func (p *Processor) ParseDocumentResult(rec *ProcessingRecord) (ParsedContent, error) {
	if rec == nil {
		return ParsedContent{}, &providers.ValidationError{Field: "record", Message: "record is required", Err: ErrNotCompleted}
	}
	if rec.Status != StatusCompleted {
		return ParsedContent{}, &providers.ValidationError{
			Field:   "status",
			Message: fmt.Sprintf("record %s is %s", rec.ID, rec.Status),
			Err:     ErrNotCompleted,
		}
	}
	if strings.TrimSpace(rec.Result) == "" {
		return ParsedContent{}, &providers.ValidationError{
			Field:   "result",
			Message: fmt.Sprintf("record %s has no result", rec.ID),
			Err:     ErrEmptyResult,
		}
	}
	return p.Parse(rec.Result)
}

// Validate checks that raw echoes an anchor for every expected id.
func (p *Processor) Validate(raw string, expectedIDs []string) error {
	ids, err := p.anchors.FindAnchorIDs(raw)
	if err != nil {
		return &providers.ParsingError{Message: err.Error(), TextSize: len(raw)}
	}

	found := make(map[string]bool, len(ids))
	for _, id := range ids {
		found[id] = true
	}
	var missing []string
	for _, id := range expectedIDs {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	msg := "missing anchors in provider output"
	if len(ids) == 0 {
		msg = "no anchors in provider output"
	}
	return &providers.ParsingError{
		Message:     msg,
		TextSize:    len(raw),
		AnchorCount: len(ids),
		Missing:     missing,
	}
}

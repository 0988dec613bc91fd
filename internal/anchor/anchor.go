// Package anchor creates and manipulates the literal section markers that tie
// provider output back to source sections.
//
// An anchor is the exact text <!-- SECTION_ANCHOR_{id} --> where id matches
// [A-Za-z0-9_-]+. The marker must survive the provider round trip
// character-for-character, so every operation here is a literal substring
// operation rather than a fuzzy match.
package anchor

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"
)

const (
	DefaultPrefix              = "<!-- SECTION_ANCHOR_"
	DefaultSuffix              = " -->"
	DefaultMaxTitleLength      = 50
	DefaultMaxSectionIDLength  = 100
	DefaultMaxTitleInputLength = 1000
	DefaultMaxTextLength       = 10 << 20 // 10 MiB

	// fallbackSlug is used when a title normalizes to nothing.
	fallbackSlug = "section"
)

var (
	// ErrInvalidSectionID is returned for empty ids or ids with characters outside [A-Za-z0-9_-].
	ErrInvalidSectionID = errors.New("invalid section id")
	// ErrTooLong is returned when an id or title exceeds its configured limit.
	ErrTooLong = errors.New("value exceeds length limit")
	// ErrTextTooLarge is returned when a scanned text exceeds MaxTextLength.
	ErrTextTooLarge = errors.New("text exceeds maximum scan size")
)

var sectionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Config holds anchor generation settings.
type Config struct {
	Prefix              string
	Suffix              string
	MaxTitleLength      int  // Slug portion derived from the title is truncated to this many characters
	MaxSectionIDLength  int  // Longest accepted section id
	MaxTitleInputLength int  // Longest accepted raw title
	MaxTextLength       int  // Largest text (bytes) scanned or rewritten in one call
	Transliterate       bool // Map non-Latin letters to Latin before stripping
	Lowercase           bool
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Prefix:              DefaultPrefix,
		Suffix:              DefaultSuffix,
		MaxTitleLength:      DefaultMaxTitleLength,
		MaxSectionIDLength:  DefaultMaxSectionIDLength,
		MaxTitleInputLength: DefaultMaxTitleInputLength,
		MaxTextLength:       DefaultMaxTextLength,
		Transliterate:       true,
		Lowercase:           true,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Prefix == "" {
		c.Prefix = d.Prefix
	}
	if c.Suffix == "" {
		c.Suffix = d.Suffix
	}
	if c.MaxTitleLength <= 0 {
		c.MaxTitleLength = d.MaxTitleLength
	}
	if c.MaxSectionIDLength <= 0 {
		c.MaxSectionIDLength = d.MaxSectionIDLength
	}
	if c.MaxTitleInputLength <= 0 {
		c.MaxTitleInputLength = d.MaxTitleInputLength
	}
	if c.MaxTextLength <= 0 {
		c.MaxTextLength = d.MaxTextLength
	}
	return c
}

// Generator creates unique anchors within a session.
// A session spans one document; call ResetUsedAnchors between documents.
type Generator struct {
	cfg     Config
	pattern *regexp.Regexp
	logger  *slog.Logger

	mu   sync.Mutex
	used map[string]struct{}
	// order preserves generation order for UsedAnchors.
	order []string
}

// NewGenerator creates a generator. Empty strings and non-positive limits take defaults;
// the boolean switches are used as given.
func NewGenerator(cfg Config) *Generator {
	cfg = cfg.withDefaults()
	return &Generator{
		cfg:     cfg,
		pattern: regexp.MustCompile(regexp.QuoteMeta(cfg.Prefix) + `([A-Za-z0-9_-]+)` + regexp.QuoteMeta(cfg.Suffix)),
		logger:  slog.Default(),
		used:    make(map[string]struct{}),
	}
}

// SetLogger sets the logger for the generator.
func (g *Generator) SetLogger(logger *slog.Logger) {
	if logger != nil {
		g.logger = logger
	}
}

// Config returns the effective configuration.
func (g *Generator) Config() Config {
	return g.cfg
}

// Generate builds a unique anchor for a section.
func (g *Generator) Generate(sectionID, title string) (string, error) {
	if err := g.validateID(sectionID); err != nil {
		return "", err
	}
	if n := utf8.RuneCountInString(title); n > g.cfg.MaxTitleInputLength {
		return "", fmt.Errorf("title length %d > %d: %w", n, g.cfg.MaxTitleInputLength, ErrTooLong)
	}

	base := sectionID + "_" + g.normalize(title)

	g.mu.Lock()
	defer g.mu.Unlock()

	candidate := base
	for i := 1; ; i++ {
		if _, taken := g.used[candidate]; !taken {
			break
		}
		candidate = base + "_" + strconv.Itoa(i)
	}
	g.used[candidate] = struct{}{}
	g.order = append(g.order, candidate)

	return g.Format(candidate), nil
}

// Format wraps an id in the configured prefix and suffix without registering it.
func (g *Generator) Format(id string) string {
	return g.cfg.Prefix + id + g.cfg.Suffix
}

// ExtractAnchorID returns the id between prefix and suffix.
// The second return is false when text is not exactly one anchor envelope.
func (g *Generator) ExtractAnchorID(text string) (string, bool) {
	if !g.IsValidAnchor(text) {
		return "", false
	}
	return text[len(g.cfg.Prefix) : len(text)-len(g.cfg.Suffix)], true
}

// IsValidAnchor performs a structural prefix/suffix check.
func (g *Generator) IsValidAnchor(text string) bool {
	return len(text) > len(g.cfg.Prefix)+len(g.cfg.Suffix) &&
		strings.HasPrefix(text, g.cfg.Prefix) &&
		strings.HasSuffix(text, g.cfg.Suffix)
}

// FindAnchorsInText returns every anchor in document order.
func (g *Generator) FindAnchorsInText(text string) ([]string, error) {
	if err := g.checkSize(text); err != nil {
		return nil, err
	}
	return g.pattern.FindAllString(text, -1), nil
}

// FindAnchorIDs returns the ids of every anchor in document order.
func (g *Generator) FindAnchorIDs(text string) ([]string, error) {
	if err := g.checkSize(text); err != nil {
		return nil, err
	}
	matches := g.pattern.FindAllStringSubmatch(text, -1)
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m[1])
	}
	return ids, nil
}

// Match is one anchor located in a text. Start and End are byte offsets of
// the full marker.
type Match struct {
	ID    string
	Start int
	End   int
}

// Locate returns every anchor in document order with its position.
func (g *Generator) Locate(text string) ([]Match, error) {
	if err := g.checkSize(text); err != nil {
		return nil, err
	}
	idx := g.pattern.FindAllStringSubmatchIndex(text, -1)
	out := make([]Match, 0, len(idx))
	for _, m := range idx {
		out = append(out, Match{ID: text[m[2]:m[3]], Start: m[0], End: m[1]})
	}
	return out, nil
}

// ReplaceAnchor replaces every occurrence of the anchor for id with replacement.
func (g *Generator) ReplaceAnchor(text, id, replacement string) (string, error) {
	if err := g.checkEdit(text, id); err != nil {
		return "", err
	}
	return strings.ReplaceAll(text, g.Format(id), replacement), nil
}

// InsertAfterAnchor inserts content immediately after every occurrence of the anchor for id.
func (g *Generator) InsertAfterAnchor(text, id, content string) (string, error) {
	if err := g.checkEdit(text, id); err != nil {
		return "", err
	}
	marker := g.Format(id)
	return strings.ReplaceAll(text, marker, marker+content), nil
}

// RemoveAnchor deletes every occurrence of the anchor for id.
func (g *Generator) RemoveAnchor(text, id string) (string, error) {
	return g.ReplaceAnchor(text, id, "")
}

// RemoveAllAnchors deletes every anchor marker, leaving other text untouched.
func (g *Generator) RemoveAllAnchors(text string) (string, error) {
	if err := g.checkSize(text); err != nil {
		return "", err
	}
	return g.pattern.ReplaceAllLiteralString(text, ""), nil
}

// ResetUsedAnchors starts a new session.
func (g *Generator) ResetUsedAnchors() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.used) > 0 {
		g.logger.Debug("resetting anchor session", "used", len(g.used))
	}
	g.used = make(map[string]struct{})
	g.order = nil
}

// UsedAnchors returns the ids generated in the current session, in order.
func (g *Generator) UsedAnchors() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// ValidateID reports whether id is acceptable as an anchor id.
func (g *Generator) ValidateID(id string) error {
	return g.validateID(id)
}

func (g *Generator) validateID(id string) error {
	if id == "" {
		return fmt.Errorf("empty section id: %w", ErrInvalidSectionID)
	}
	if len(id) > g.cfg.MaxSectionIDLength {
		return fmt.Errorf("section id length %d > %d: %w", len(id), g.cfg.MaxSectionIDLength, ErrTooLong)
	}
	if !sectionIDPattern.MatchString(id) {
		return fmt.Errorf("section id %q: %w", id, ErrInvalidSectionID)
	}
	return nil
}

func (g *Generator) checkSize(text string) error {
	if len(text) > g.cfg.MaxTextLength {
		return fmt.Errorf("text size %d > %d: %w", len(text), g.cfg.MaxTextLength, ErrTextTooLarge)
	}
	return nil
}

func (g *Generator) checkEdit(text, id string) error {
	if err := g.checkSize(text); err != nil {
		return err
	}
	// Anchors may carry uniqueness suffixes, so only the character class and length are checked.
	if id == "" || len(id) > g.maxAnchorIDLength() {
		return fmt.Errorf("anchor id %q: %w", id, ErrInvalidSectionID)
	}
	if !sectionIDPattern.MatchString(id) {
		return fmt.Errorf("anchor id %q: %w", id, ErrInvalidSectionID)
	}
	return nil
}

// maxAnchorIDLength bounds ids Generate can produce: section id, "_", slug
// and a "_N" uniqueness suffix.
func (g *Generator) maxAnchorIDLength() int {
	return g.cfg.MaxSectionIDLength + 1 + g.cfg.MaxTitleLength + len("_") + len(strconv.Itoa(math.MaxInt))
}

package types

import "time"

// DetectionMethod indicates which detection strategy produced a section.
type DetectionMethod string

const (
	// DetectionHeader indicates the section started at a header-typed element.
	DetectionHeader DetectionMethod = "header_based"
	// DetectionPattern indicates the section started at a legal-section pattern match.
	DetectionPattern DetectionMethod = "pattern_based"
	// DetectionHeuristic indicates the section started at a heuristically chosen element.
	DetectionHeuristic DetectionMethod = "heuristic"
)

// SectionMetadata records how a section was built.
type SectionMetadata struct {
	DetectionMethod DetectionMethod `json:"detection_method" yaml:"detection_method"`
	ElementTypes    []ElementType   `json:"element_types,omitempty" yaml:"element_types,omitempty"`
	PatternName     string          `json:"pattern_name,omitempty" yaml:"pattern_name,omitempty"`

	// Set when a short section was folded into its predecessor.
	Merged     bool     `json:"merged,omitempty" yaml:"merged,omitempty"`
	MergedFrom []string `json:"merged_from,omitempty" yaml:"merged_from,omitempty"`
}

// DocumentSection is a contiguous span of a document with a title and anchor.
// StartPosition and EndPosition are element indices (inclusive).
type DocumentSection struct {
	ID             string          `json:"id" yaml:"id"`
	Title          string          `json:"title" yaml:"title"`
	Content        string          `json:"content" yaml:"content"`
	Level          int             `json:"level" yaml:"level"`
	StartPosition  int             `json:"start_position" yaml:"start_position"`
	EndPosition    int             `json:"end_position" yaml:"end_position"`
	Anchor         string          `json:"anchor" yaml:"anchor"`
	SourceElements []TextElement   `json:"-" yaml:"-"`
	Confidence     float64         `json:"confidence" yaml:"confidence"`
	Metadata       SectionMetadata `json:"metadata" yaml:"metadata"`
}

// ContentLength returns the section content length in characters.
func (s DocumentSection) ContentLength() int {
	return len([]rune(s.Content))
}

// SectionStatistics summarizes a set of detected sections.
type SectionStatistics struct {
	TotalSections        int         `json:"total_sections" yaml:"total_sections"`
	SectionsByLevel      map[int]int `json:"sections_by_level" yaml:"sections_by_level"`
	AverageSectionLength float64     `json:"average_section_length" yaml:"average_section_length"`
	CoveragePercentage   float64     `json:"coverage_percentage" yaml:"coverage_percentage"`
}

// AnalysisMetadata carries diagnostic information about one analysis run.
type AnalysisMetadata struct {
	DocumentPath     string          `json:"document_path,omitempty" yaml:"document_path,omitempty"`
	ElementCount     int             `json:"element_count" yaml:"element_count"`
	DetectedSections int             `json:"detected_sections" yaml:"detected_sections"`
	FilteredSections int             `json:"filtered_sections" yaml:"filtered_sections"`
	DetectionMethod  DetectionMethod `json:"detection_method,omitempty" yaml:"detection_method,omitempty"`
	Error            string          `json:"error,omitempty" yaml:"error,omitempty"`
}

// StructureAnalysisResult is the outcome of analyzing one document.
// A failed analysis is represented by an empty Sections slice and
// Metadata.Error, never by a Go error.
type StructureAnalysisResult struct {
	Sections          []DocumentSection `json:"sections" yaml:"sections"`
	AnalysisTime      time.Duration     `json:"analysis_time" yaml:"analysis_time"`
	AverageConfidence float64           `json:"average_confidence" yaml:"average_confidence"`
	Statistics        SectionStatistics `json:"statistics" yaml:"statistics"`
	Metadata          AnalysisMetadata  `json:"metadata" yaml:"metadata"`
	Warnings          []string          `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// IsSuccessful reports whether at least one section was produced.
func (r StructureAnalysisResult) IsSuccessful() bool {
	return len(r.Sections) > 0
}

// Failed reports whether the analysis failed with an internal error.
func (r StructureAnalysisResult) Failed() bool {
	return r.Metadata.Error != ""
}

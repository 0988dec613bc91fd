// Package structure orchestrates section detection for whole documents and
// batches, turning detection failures into unsuccessful results.
package structure

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/docket/internal/types"
)

const (
	DefaultMinConfidence      = 0.3
	DefaultLowConfidence      = 0.6
	DefaultLowConfidenceRatio = 0.5
	DefaultMinDocumentLength  = 100
	DefaultBatchConcurrency   = 4

	WarningNoSections = "No sections detected in document"
)

// SectionDetector splits one document into sections.
// ResetSession is called before every document.
type SectionDetector interface {
	Detect(doc *types.ExtractedDocument) ([]types.DocumentSection, error)
	ResetSession()
}

// DetectorFactory builds an independent detector. Detectors are pooled, so a
// detector is only ever used by one goroutine at a time.
type DetectorFactory func() SectionDetector

// Config holds analysis tunables.
type Config struct {
	MinConfidence      float64 // Sections below this are discarded
	LowConfidence      float64 // Sections below this count as low confidence
	LowConfidenceRatio float64 // Warn when more than this fraction is low confidence
	MinDocumentLength  int     // CanAnalyze threshold in characters
	BatchConcurrency   int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MinConfidence:      DefaultMinConfidence,
		LowConfidence:      DefaultLowConfidence,
		LowConfidenceRatio: DefaultLowConfidenceRatio,
		MinDocumentLength:  DefaultMinDocumentLength,
		BatchConcurrency:   DefaultBatchConcurrency,
	}
}

// Analyzer is constructed once per process and shared by callers.
type Analyzer struct {
	cfg       Config
	detectors sync.Pool
	logger    *slog.Logger
}

// New creates an analyzer that draws detectors from factory.
func New(cfg Config, factory DetectorFactory) *Analyzer {
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = DefaultBatchConcurrency
	}
	a := &Analyzer{cfg: cfg, logger: slog.Default()}
	a.detectors.New = func() any { return factory() }
	return a
}

// SetLogger sets the logger for the analyzer.
func (a *Analyzer) SetLogger(logger *slog.Logger) {
	if logger != nil {
		a.logger = logger
	}
}

// Config returns the analyzer configuration.
func (a *Analyzer) Config() Config {
	return a.cfg
}

// CanAnalyze is a cheap precondition check callers run before Analyze.
func (a *Analyzer) CanAnalyze(doc *types.ExtractedDocument) bool {
	if doc == nil || len(doc.Elements) == 0 {
		return false
	}
	return doc.TextLength() >= a.cfg.MinDocumentLength
}

// Analyze detects, filters and scores the sections of doc.
// It never fails: errors and panics become an unsuccessful result whose
// Metadata.Error and Warnings carry the message.
func (a *Analyzer) Analyze(ctx context.Context, doc *types.ExtractedDocument) (result types.StructureAnalysisResult) {
	start := time.Now()
	result.Statistics.SectionsByLevel = map[int]int{}
	if doc != nil {
		result.Metadata.DocumentPath = doc.Path
		result.Metadata.ElementCount = len(doc.Elements)
	}

	defer func() {
		if r := recover(); r != nil {
			result = a.failed(result, fmt.Errorf("panic during detection: %v", r))
		}
		result.AnalysisTime = time.Since(start)
	}()

	if err := ctx.Err(); err != nil {
		return a.failed(result, err)
	}

	det := a.detectors.Get().(SectionDetector)
	defer a.detectors.Put(det)

	det.ResetSession()
	detected, err := det.Detect(doc)
	if err != nil {
		return a.failed(result, err)
	}
	result.Metadata.DetectedSections = len(detected)

	kept := make([]types.DocumentSection, 0, len(detected))
	for _, s := range detected {
		if s.Confidence >= a.cfg.MinConfidence {
			kept = append(kept, s)
		}
	}
	result.Metadata.FilteredSections = len(detected) - len(kept)
	result.Sections = kept
	if len(kept) > 0 {
		result.Metadata.DetectionMethod = kept[0].Metadata.DetectionMethod
	}

	result.Statistics = computeStatistics(kept, doc.TextLength())
	result.AverageConfidence = averageConfidence(kept)
	result.Warnings = a.warnings(kept)

	a.logger.Info("document analyzed",
		"document", result.Metadata.DocumentPath,
		"sections", len(kept),
		"filtered", result.Metadata.FilteredSections,
		"average_confidence", result.AverageConfidence,
		"method", result.Metadata.DetectionMethod)

	return result
}

// AnalyzeBatch analyzes every document independently. A failure in one
// document never affects the others.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, docs map[string]*types.ExtractedDocument) map[string]types.StructureAnalysisResult {
	out := make(map[string]types.StructureAnalysisResult, len(docs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.BatchConcurrency)
	for key, doc := range docs {
		g.Go(func() error {
			r := a.Analyze(gctx, doc)
			mu.Lock()
			out[key] = r
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range out {
		if !r.IsSuccessful() {
			failed++
		}
	}
	a.logger.Info("batch analyzed", "documents", len(docs), "unsuccessful", failed)
	return out
}

func (a *Analyzer) failed(result types.StructureAnalysisResult, err error) types.StructureAnalysisResult {
	a.logger.Warn("document analysis failed", "document", result.Metadata.DocumentPath, "error", err)
	result.Sections = nil
	result.AverageConfidence = 0
	result.Statistics = types.SectionStatistics{SectionsByLevel: map[int]int{}}
	result.Metadata.Error = err.Error()
	result.Warnings = append(result.Warnings, "Analysis failed: "+err.Error())
	return result
}

func (a *Analyzer) warnings(sections []types.DocumentSection) []string {
	if len(sections) == 0 {
		return []string{WarningNoSections}
	}
	low := 0
	for _, s := range sections {
		if s.Confidence < a.cfg.LowConfidence {
			low++
		}
	}
	if float64(low)/float64(len(sections)) > a.cfg.LowConfidenceRatio {
		return []string{fmt.Sprintf("High number of low-confidence sections detected (%d of %d)", low, len(sections))}
	}
	return nil
}

func computeStatistics(sections []types.DocumentSection, documentLength int) types.SectionStatistics {
	stats := types.SectionStatistics{
		TotalSections:   len(sections),
		SectionsByLevel: make(map[int]int),
	}
	if len(sections) == 0 {
		return stats
	}

	totalLength, analyzed := 0, 0
	for _, s := range sections {
		stats.SectionsByLevel[s.Level]++
		totalLength += s.ContentLength()
		if len(s.SourceElements) == 0 {
			analyzed += s.ContentLength()
			continue
		}
		for _, el := range s.SourceElements {
			analyzed += len([]rune(el.PlainText()))
		}
	}
	stats.AverageSectionLength = round2(float64(totalLength) / float64(len(sections)))
	if documentLength > 0 {
		stats.CoveragePercentage = round2(math.Min(100, float64(analyzed)/float64(documentLength)*100))
	}
	return stats
}

func averageConfidence(sections []types.DocumentSection) float64 {
	if len(sections) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range sections {
		sum += s.Confidence
	}
	return math.Round(sum/float64(len(sections))*1000) / 1000
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

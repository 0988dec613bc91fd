package structure

import (
	"log/slog"

	"github.com/jackzampolin/docket/internal/anchor"
	"github.com/jackzampolin/docket/internal/sections"
)

// SectionsFactory returns a factory producing cascading detectors, each with
// its own anchor generator.
func SectionsFactory(anchorCfg anchor.Config, detectCfg sections.Config, logger *slog.Logger) DetectorFactory {
	return func() SectionDetector {
		gen := anchor.NewGenerator(anchorCfg)
		gen.SetLogger(logger)
		d := sections.NewDetector(detectCfg, gen)
		d.SetLogger(logger)
		return d
	}
}

// NewDefault creates an analyzer with the default detection pipeline.
func NewDefault(cfg Config, anchorCfg anchor.Config, detectCfg sections.Config, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	a := New(cfg, SectionsFactory(anchorCfg, detectCfg, logger))
	a.SetLogger(logger)
	return a
}

package sections

import (
	"math"

	"github.com/jackzampolin/docket/internal/types"
)

// postProcess drops tiny sections, then folds short ones into the preceding
// retained section.
func (d *Detector) postProcess(in []types.DocumentSection) []types.DocumentSection {
	minLen := d.cfg.MinSectionLength
	if minLen <= 0 {
		return in
	}

	kept := make([]types.DocumentSection, 0, len(in))
	for _, s := range in {
		if s.ContentLength() >= minLen {
			kept = append(kept, s)
		}
	}
	if dropped := len(in) - len(kept); dropped > 0 {
		d.logger.Debug("dropped short sections", "count", dropped, "min_length", minLen)
	}

	out := make([]types.DocumentSection, 0, len(kept))
	for _, s := range kept {
		if len(out) > 0 && s.ContentLength() < 2*minLen {
			out[len(out)-1] = Merge(out[len(out)-1], s)
			continue
		}
		out = append(out, s)
	}
	return out
}

// Merge folds next into prev. The result keeps prev's id and anchor (if
// already assigned), the longer title, the shallower level and the lower
// confidence.
func Merge(prev, next types.DocumentSection) types.DocumentSection {
	merged := prev

	merged.SourceElements = make([]types.TextElement, 0, len(prev.SourceElements)+len(next.SourceElements))
	merged.SourceElements = append(merged.SourceElements, prev.SourceElements...)
	merged.SourceElements = append(merged.SourceElements, next.SourceElements...)

	switch {
	case prev.Content == "":
		merged.Content = next.Content
	case next.Content != "":
		merged.Content = prev.Content + "\n\n" + next.Content
	}

	if len([]rune(next.Title)) > len([]rune(prev.Title)) {
		merged.Title = next.Title
	}
	if next.Level < prev.Level {
		merged.Level = next.Level
	}
	merged.Confidence = math.Min(prev.Confidence, next.Confidence)

	if next.EndPosition > merged.EndPosition {
		merged.EndPosition = next.EndPosition
	}
	if next.StartPosition < merged.StartPosition {
		merged.StartPosition = next.StartPosition
	}

	merged.Metadata.ElementTypes = unionTypes(prev.Metadata.ElementTypes, next.Metadata.ElementTypes)
	merged.Metadata.Merged = true
	merged.Metadata.MergedFrom = append(append([]string(nil), prev.Metadata.MergedFrom...), next.ID)
	merged.Metadata.MergedFrom = append(merged.Metadata.MergedFrom, next.Metadata.MergedFrom...)

	return merged
}

func unionTypes(a, b []types.ElementType) []types.ElementType {
	seen := make(map[types.ElementType]bool, len(a)+len(b))
	out := make([]types.ElementType, 0, len(a)+len(b))
	for _, list := range [][]types.ElementType{a, b} {
		for _, t := range list {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

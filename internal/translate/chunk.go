package translate

import (
	"github.com/jackzampolin/docket/internal/providers"
	"github.com/jackzampolin/docket/internal/types"
)

// DefaultChunkTokens is the estimated input budget for one provider call.
const DefaultChunkTokens = 3000

// Chunk groups consecutive sections so each group's estimated token count
// stays within budget. A section larger than budget gets a group of its own.
// Document order is preserved.
func Chunk(sections []types.DocumentSection, budget int, model string) [][]types.DocumentSection {
	if budget <= 0 {
		budget = DefaultChunkTokens
	}

	var (
		chunks  [][]types.DocumentSection
		current []types.DocumentSection
		used    int
	)
	for _, s := range sections {
		n := sectionTokens(s, model)
		if len(current) > 0 && used+n > budget {
			chunks = append(chunks, current)
			current, used = nil, 0
		}
		current = append(current, s)
		used += n
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

func sectionTokens(s types.DocumentSection, model string) int {
	return providers.CountTokens(s.Anchor+"\n"+s.Title+"\n"+s.Content, model)
}

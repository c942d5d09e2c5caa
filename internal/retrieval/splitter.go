package retrieval

import (
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// SplitText cuts text into chunks of at most chunkSize runes, consecutive
// chunks sharing up to overlap runes. Boundaries prefer paragraph breaks, then
// line breaks, then spaces.
func SplitText(text string, chunkSize, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if chunkSize <= 0 {
		return []string{text}
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}

	sp := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(overlap),
	)
	parts, err := sp.SplitText(text)
	if err != nil {
		return []string{text}
	}

	chunks := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			chunks = append(chunks, p)
		}
	}
	return chunks
}

package search

import (
	"fmt"
	"strings"
)

// BuildContext concatenates ranked chunk texts into the prompt context,
// labeling each as "[Chunk i]". Assembly stops before the first chunk
// that would push the total past the character budget, so the returned
// string never exceeds it.
func BuildContext(chunks []RetrievedChunk, budget int) string {
	if budget <= 0 {
		budget = DefaultParams().ContextCharBudget
	}

	var b strings.Builder
	n := 0
	for _, rc := range chunks {
		text := strings.TrimSpace(rc.Chunk.Text)
		if text == "" {
			continue
		}
		piece := fmt.Sprintf("[Chunk %d]\n%s\n", n+1, text)
		sep := ""
		if b.Len() > 0 {
			sep = "\n"
		}
		if b.Len()+len(sep)+len(piece) > budget {
			break
		}
		b.WriteString(sep)
		b.WriteString(piece)
		n++
	}
	return b.String()
}

package engine

import (
	"strings"

	"github.com/rubiojr/places/pkg/tokenizer"
)

// Snippet extraction constants: the scored window, the fixed lead-in, how
// far back to look for a sentence or clause boundary, and the tail past
// the window end.
const (
	snippetWindow        = 10
	snippetLeadIn        = 2
	snippetBoundaryLimit = 10
	snippetTail          = 5
)

// extractSnippet picks the densest cluster of query-token matches from the
// extracted text and returns it with a little context and a trailing
// ellipsis. Returns "" when nothing matches; callers omit the field then.
func extractSnippet(text string, qTokens []string) string {
	if text == "" {
		return ""
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	querySet := make(map[string]struct{}, len(qTokens))
	for _, tok := range qTokens {
		querySet[tok] = struct{}{}
	}

	// Mark each raw word 1 when its stemmed form matches a query token.
	scores := make([]int, len(words))
	for i, word := range words {
		for _, tok := range tokenizer.Tokenize(word) {
			if _, hit := querySet[tok]; hit {
				scores[i] = 1
				break
			}
		}
	}

	window := snippetWindow
	if window > len(words) {
		window = len(words)
	}

	// Sliding-window maximum via a running difference. Ties keep the
	// current best unless the new start is within one token of it, which
	// lets the window settle at the end of a contiguous equal run without
	// jumping to an unrelated later cluster.
	sum := 0
	for i := 0; i < window; i++ {
		sum += scores[i]
	}
	best, bestStart := sum, 0
	for start := 1; start+window <= len(words); start++ {
		sum += scores[start+window-1] - scores[start-1]
		if sum > best || (sum == best && start-bestStart <= 1) {
			best = sum
			bestStart = start
		}
	}
	if best == 0 {
		return ""
	}

	// Lead in a couple of tokens, then snap to just past a sentence or
	// clause boundary if one sits within reach.
	start := bestStart - snippetLeadIn
	if start < 0 {
		start = 0
	}
	for i := start - 1; i >= start-snippetBoundaryLimit && i >= 0; i-- {
		if strings.HasSuffix(words[i], ".") || strings.HasSuffix(words[i], ",") {
			start = i + 1
			break
		}
	}

	end := bestStart + window + snippetTail
	if end > len(words) {
		end = len(words)
	}

	return strings.Join(words[start:end], " ") + " ..."
}

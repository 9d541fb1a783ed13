package engine

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rubiojr/places/pkg/places"
	"github.com/rubiojr/places/pkg/tokenizer"
)

// QuickSearchOptions adjusts a quick search.
type QuickSearchOptions struct {
	// LimitToBookmarks skips non-bookmarked candidates entirely.
	LimitToBookmarks bool

	// Limit caps the result length. Defaults to 100.
	Limit int
}

// DefaultQuickSearchLimit caps quick-search results when the caller passes
// no limit.
const DefaultQuickSearchLimit = 100

const sevenDaysMs = 7 * 24 * 60 * 60 * 1000

// quickMatch carries the per-match boost alongside the candidate instead of
// mutating scratch state on the shared cache entry, so boosts cannot leak
// between calls.
type quickMatch struct {
	place *places.Place
	boost float64
}

// QuickSearch scans the cache for substring, out-of-order and fuzzy matches
// against URL, title and tags. The cache is pre-sorted by base score, so
// the scan stops collecting once it has seen twice the requested limit:
// the best candidates come first. Results are re-sorted with the per-match
// boost folded in.
func (e *Engine) QuickSearch(query string, opts QuickSearchOptions) []*places.Place {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultQuickSearchLimit
	}

	q := tokenizer.Normalize(query)
	if q == "" {
		return nil
	}
	qLen := float64(len(q))
	words := strings.Fields(q)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	var matches []quickMatch
	for _, p := range e.cache {
		if opts.LimitToBookmarks && !p.IsBookmarked {
			continue
		}

		normURL := tokenizer.NormalizeURL(p.URL)
		haystack := normURL
		if p.Title != p.URL {
			haystack += " " + tokenizer.Normalize(p.Title)
		}
		if len(p.Tags) > 0 {
			haystack += " " + strings.Join(p.Tags, " ")
		}

		var boost float64
		switch {
		case strings.HasPrefix(haystack, q):
			boost = 2.5 * qLen
			if boost > 10 {
				boost = 10
			}
		case strings.Contains(haystack, q):
			boost = 0.4 + 0.075*qLen
		case len(words) > 1 && containsAllWords(haystack, words):
			boost = 0.125*float64(len(words)) + 0.02*qLen
		default:
			// Skip low-signal single-visit old entries; fuzzy matching is
			// the expensive tier.
			if p.VisitCount == 1 && now-p.LastVisit > sevenDaysMs {
				continue
			}
			score := fuzzySimilarity(normURL, q)
			if score <= 0.4+0.00075*float64(len(normURL)) {
				continue
			}
			boost = score * 0.5
			if score > 0.62 {
				boost += 0.33
			}
		}

		matches = append(matches, quickMatch{place: p, boost: boost})
		if len(matches) > 2*limit {
			break
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return places.FrecencyBoosted(matches[i].place, matches[i].boost) >
			places.FrecencyBoosted(matches[j].place, matches[j].boost)
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	out := make([]*places.Place, len(matches))
	for i, m := range matches {
		c := m.place.Clone()
		c.Score = places.FrecencyBoosted(m.place, m.boost)
		out[i] = c
	}
	return out
}

func containsAllWords(haystack string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(haystack, w) {
			return false
		}
	}
	return true
}

// fuzzySimilarity is a substring-aware character-overlap similarity in
// [0, 1]. Containment scores by coverage; otherwise query characters are
// matched in order through the candidate, with consecutive hits worth far
// more than scattered ones.
func fuzzySimilarity(candidate, query string) float64 {
	if candidate == "" || query == "" {
		return 0
	}
	if candidate == query {
		return 1
	}
	if strings.Contains(candidate, query) {
		return 0.5 + 0.5*float64(len(query))/float64(len(candidate))
	}

	var score float64
	prev := -1
	searchFrom := 0
	runeCount := 0
	for _, r := range query {
		runeCount++
		if searchFrom >= len(candidate) {
			continue
		}
		idx := strings.IndexRune(candidate[searchFrom:], r)
		if idx < 0 {
			continue
		}
		pos := searchFrom + idx
		if pos == prev+1 {
			score += 0.8
		} else {
			score += 0.1
		}
		prev = pos
		searchFrom = pos + utf8.RuneLen(r)
	}
	return score / float64(runeCount)
}

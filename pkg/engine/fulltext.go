package engine

import (
	"math"
	"sort"
	"strings"

	"github.com/rubiojr/places/pkg/places"
	"github.com/rubiojr/places/pkg/tokenizer"
)

// Full-text ranking constants. BM25 parameters are the standard values;
// the assumed average document length reflects short personal-history
// documents rather than a generic corpus.
const (
	fullTextMaxResults = 100

	bm25K1     = 1.5
	bm25B      = 0.75
	bm25AvgDoc = 500

	proximityWindow   = 50
	proximityWeight   = 0.000075
	adjacencyBonus    = 0.05
	proximityBoostCap = 7.5
)

// FullTextSearch queries the store's inverted index for candidate
// documents, merges with cache-resident matches, ranks with BM25 plus a
// proximity boost, and attaches a highlighted snippet. Results carry no
// heavy fields and are capped at 100.
func (e *Engine) FullTextSearch(query string) ([]*places.Place, error) {
	qTokens := tokenizer.Tokenize(query)
	if len(qTokens) == 0 {
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if cached, ok := e.ftsCache.Get(query); ok {
		return cloneResults(cached), nil
	}

	// Per-token match sets from the inverted index, plus the match count
	// used as the document-frequency proxy.
	tokenSets := make(map[string]map[string]struct{}, len(qTokens))
	tokenDocFreq := make(map[string]int, len(qTokens))
	for _, tok := range qTokens {
		if _, done := tokenSets[tok]; done {
			continue
		}
		matches, nqi, err := e.store.TokenMatches(tok)
		if err != nil {
			return nil, err
		}
		tokenSets[tok] = matches
		tokenDocFreq[tok] = nqi
	}

	// Candidate selection runs over the full cache, not just store hits,
	// so cache-only edits stay visible. A token misses the index but still
	// matches when it is a literal substring of url+title+tags.
	var candidates []*places.Place
	for _, p := range e.cache {
		if matchesAllTokens(p, qTokens, tokenSets) {
			candidates = append(candidates, p)
		}
	}

	places.SortByFrecency(candidates)
	if len(candidates) > fullTextMaxResults {
		// Documents past the cap are never read from the store; an
		// explicit precision/cost tradeoff.
		candidates = candidates[:fullTextMaxResults]
	}

	urls := make([]string, len(candidates))
	for i, p := range candidates {
		urls[i] = p.URL
	}
	fetched, err := e.store.GetMany(urls)
	if err != nil {
		return nil, err
	}

	results := make([]*places.Place, 0, len(candidates))
	for _, cached := range candidates {
		doc := fetched[cached.URL]
		if doc == nil {
			// Deleted store-side moments ago, or a cache-only edit not yet
			// flushed. Rank what the cache has.
			doc = cached
		}

		boost := e.scoreDocument(doc, qTokens, tokenDocFreq)

		result := doc.StripHeavy()
		if snippet := extractSnippet(doc.ExtractedText, qTokens); snippet != "" {
			result.SearchSnippet = snippet
		}
		result.Score = places.FrecencyBoosted(doc, boost)
		results = append(results, result)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	e.ftsCache.Add(query, cloneResults(results))
	return results, nil
}

// matchesAllTokens reports whether every query token either hits the
// document's inverted-index entry or appears as a substring of its
// url+title+tags concatenation (covering partial words the tokenizer
// would miss).
func matchesAllTokens(p *places.Place, qTokens []string, tokenSets map[string]map[string]struct{}) bool {
	var concat string
	for _, tok := range qTokens {
		if _, hit := tokenSets[tok][p.URL]; hit {
			continue
		}
		if concat == "" {
			concat = strings.ToLower(p.URL + p.Title + strings.Join(p.Tags, " "))
		}
		if !strings.Contains(concat, tok) {
			return false
		}
	}
	return true
}

// scoreDocument computes the match-strength boost for one document: a
// proximity boost over adjacent match distances plus a BM25 score over the
// query tokens. Positions and counts are recomputed exactly over the
// document's search index concatenated with a fresh tokenization of its
// title.
func (e *Engine) scoreDocument(doc *places.Place, qTokens []string, tokenDocFreq map[string]int) float64 {
	docTokens := doc.SearchIndex
	if title := tokenizer.Tokenize(doc.Title); len(title) > 0 {
		docTokens = append(append([]string(nil), docTokens...), title...)
	}

	querySet := make(map[string]struct{}, len(qTokens))
	for _, tok := range qTokens {
		querySet[tok] = struct{}{}
	}

	counts := make(map[string]int, len(qTokens))
	var positions []int
	for i, tok := range docTokens {
		if _, hit := querySet[tok]; hit {
			counts[tok]++
			positions = append(positions, i)
		}
	}

	var proximity float64
	for i := 1; i < len(positions); i++ {
		distance := positions[i] - positions[i-1]
		if distance >= proximityWindow {
			continue
		}
		proximity += float64((proximityWindow-distance)*(proximityWindow-distance)) * proximityWeight
		if distance == 1 {
			proximity += adjacencyBonus
		}
	}
	if proximity > proximityBoostCap {
		proximity = proximityBoostCap
	}

	totalDocs := float64(len(e.cache))
	docLen := float64(len(docTokens))
	var bm25 float64
	for tok := range querySet {
		tf := float64(counts[tok])
		if tf == 0 {
			continue
		}
		nqi := float64(tokenDocFreq[tok])
		idf := math.Log((totalDocs-nqi+0.5)/(nqi+0.5) + 1)
		bm25 += idf * (tf * (bm25K1 + 1)) / (tf + bm25K1*(1-bm25B+bm25B*docLen/bm25AvgDoc))
	}

	return proximity + bm25
}

func cloneResults(results []*places.Place) []*places.Place {
	out := make([]*places.Place, len(results))
	for i, p := range results {
		out[i] = p.Clone()
	}
	return out
}

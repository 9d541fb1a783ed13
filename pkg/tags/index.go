// Package tags maintains an incremental TF-IDF-like index over page titles
// and hostnames. It infers bookmark tags for untagged pages and drives tag
// autocompletion through tag co-occurrence counts.
//
// The index is derived, rebuildable state: AddPage and RemovePage are exact
// inverses, so editing a page is remove(old) followed by add(new) and never
// requires a full rebuild. The index performs no locking of its own; the
// engine serializes access.
package tags

import (
	"math"
	"sort"
	"time"

	"github.com/rubiojr/places/pkg/places"
	"github.com/rubiojr/places/pkg/tokenizer"
)

const (
	// minTagCount is the global page count below which a tag is treated as
	// unrankable. Tunable; the threshold is a precision guard, not derived
	// from the scoring math.
	minTagCount = 2

	// suggestionThreshold filters AllTagsRanked down to suggestions.
	suggestionThreshold = 0.25

	minTokenLength = 2

	millisPerDay = 24 * 60 * 60 * 1000
)

// genericTerms are tokens too common in titles and hostnames to carry any
// tag signal.
var genericTerms = map[string]struct{}{
	"www": {}, "com": {}, "net": {}, "html": {}, "pdf": {}, "file": {},
}

// ScoredTag is a tag with its relevance score for the ranking call that
// produced it.
type ScoredTag struct {
	Tag   string  `json:"tag"`
	Score float64 `json:"score"`
}

// Index holds the co-occurrence counters. All maps are keyed by token or
// tag; a plain two-level map is sufficient since no cyclic references are
// involved.
type Index struct {
	termDocCounts map[string]int            // token -> pages containing it
	termTagCounts map[string]map[string]int // token -> tag -> shared pages
	tagCounts     map[string]int            // tag -> pages carrying it
	tagTagCounts  map[string]map[string]int // tag -> tag -> shared pages, both directions
	tagLastVisit  map[string]int64          // tag -> most recent lastVisit seen
	docCount      int

	now func() int64 // milliseconds; swappable in tests
}

// NewIndex returns an empty tag index.
func NewIndex() *Index {
	return &Index{
		termDocCounts: make(map[string]int),
		termTagCounts: make(map[string]map[string]int),
		tagCounts:     make(map[string]int),
		tagTagCounts:  make(map[string]map[string]int),
		tagLastVisit:  make(map[string]int64),
		now:           func() int64 { return time.Now().UnixMilli() },
	}
}

// pageTokens derives the token source for a page: its title plus the
// hostname without the top-level label, with short and generic tokens
// dropped.
func pageTokens(p *places.Place) []string {
	raw := tokenizer.Tokenize(p.Title + " " + places.HostnameMinusTLD(p.URL))
	tokens := make([]string, 0, len(raw))
	for _, tok := range raw {
		if len(tok) <= minTokenLength {
			continue
		}
		if _, generic := genericTerms[tok]; generic {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

func uniqueTokens(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// AddPage registers a tagged page's tokens and tags. Pages with no tags are
// no-ops.
func (ix *Index) AddPage(p *places.Place) {
	if p == nil || len(p.Tags) == 0 {
		return
	}

	tokens := uniqueTokens(pageTokens(p))
	ix.docCount++

	for _, tok := range tokens {
		ix.termDocCounts[tok]++
		counts := ix.termTagCounts[tok]
		if counts == nil {
			counts = make(map[string]int)
			ix.termTagCounts[tok] = counts
		}
		for _, tag := range p.Tags {
			counts[tag]++
		}
	}

	for _, tag := range p.Tags {
		ix.tagCounts[tag]++
		if p.LastVisit > ix.tagLastVisit[tag] {
			ix.tagLastVisit[tag] = p.LastVisit
		}
	}

	for _, t1 := range p.Tags {
		for _, t2 := range p.Tags {
			if t1 == t2 {
				continue
			}
			pairs := ix.tagTagCounts[t1]
			if pairs == nil {
				pairs = make(map[string]int)
				ix.tagTagCounts[t1] = pairs
			}
			pairs[t2]++
		}
	}
}

// RemovePage reverses AddPage for the same page. Counters return exactly to
// their pre-add values; zeroed entries are deleted so they never go
// negative on a later remove.
func (ix *Index) RemovePage(p *places.Place) {
	if p == nil || len(p.Tags) == 0 {
		return
	}

	tokens := uniqueTokens(pageTokens(p))
	ix.docCount--

	for _, tok := range tokens {
		if ix.termDocCounts[tok]--; ix.termDocCounts[tok] <= 0 {
			delete(ix.termDocCounts, tok)
		}
		counts := ix.termTagCounts[tok]
		for _, tag := range p.Tags {
			if counts[tag]--; counts[tag] <= 0 {
				delete(counts, tag)
			}
		}
		if len(counts) == 0 {
			delete(ix.termTagCounts, tok)
		}
	}

	for _, tag := range p.Tags {
		if ix.tagCounts[tag]--; ix.tagCounts[tag] <= 0 {
			delete(ix.tagCounts, tag)
			delete(ix.tagLastVisit, tag)
		}
	}

	for _, t1 := range p.Tags {
		for _, t2 := range p.Tags {
			if t1 == t2 {
				continue
			}
			pairs := ix.tagTagCounts[t1]
			if pairs[t2]--; pairs[t2] <= 0 {
				delete(pairs, t2)
			}
			if len(pairs) == 0 {
				delete(ix.tagTagCounts, t1)
			}
		}
	}
}

// OnChange updates the index for an edited page: the old version is removed
// and the new one added.
func (ix *Index) OnChange(old, updated *places.Place) {
	ix.RemovePage(old)
	ix.AddPage(updated)
}

// AllTagsRanked scores every known tag against the page's tokens using
// TF-IDF weighting over (token, tag) co-occurrence. Tags with no
// contribution still appear, scored 0.
func (ix *Index) AllTagsRanked(p *places.Place) []ScoredTag {
	tokens := pageTokens(p)

	tf := make(map[string]float64, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}
	if n := float64(len(tokens)); n > 0 {
		for tok := range tf {
			tf[tok] /= n
		}
	}

	scores := make(map[string]float64, len(ix.tagCounts))
	for tag := range ix.tagCounts {
		scores[tag] = 0
	}

	for tok, freq := range tf {
		df := ix.termDocCounts[tok]
		if df < 1 {
			df = 1
		}
		idf := math.Log(float64(ix.docCount) / float64(df))
		for tag, shared := range ix.termTagCounts[tok] {
			total := ix.tagCounts[tag]
			if total < minTagCount {
				continue
			}
			scores[tag] += float64(shared) / float64(total) * freq * idf
		}
	}

	ranked := make([]ScoredTag, 0, len(scores))
	for tag, score := range scores {
		ranked = append(ranked, ScoredTag{Tag: tag, Score: score})
	}
	sortScored(ranked)
	return ranked
}

// SuggestedTags filters AllTagsRanked down to tags scoring above the
// suggestion threshold.
func (ix *Index) SuggestedTags(p *places.Place) []ScoredTag {
	ranked := ix.AllTagsRanked(p)
	out := make([]ScoredTag, 0, len(ranked))
	for _, st := range ranked {
		if st.Score > suggestionThreshold {
			out = append(out, st)
		}
	}
	return out
}

// AutocompleteTags suggests tags that co-occur with every tag the caller
// has already selected. A tag with no recorded pairing against any search
// tag is eliminated; recently used tags get a boost of up to 2x that decays
// to 1 over two weeks.
func (ix *Index) AutocompleteTags(searchTags []string) []ScoredTag {
	nowMs := ix.now()

	out := make([]ScoredTag, 0, len(ix.tagCounts))
	for tag, count := range ix.tagCounts {
		if count < minTagCount {
			continue
		}
		score := float64(count)
		for _, st := range searchTags {
			score *= float64(ix.tagTagCounts[tag][st])
		}
		if score <= 0 {
			continue
		}

		ageDays := float64(nowMs-ix.tagLastVisit[tag]) / millisPerDay
		recency := 2 - ageDays/14
		if recency < 1 {
			recency = 1
		}
		out = append(out, ScoredTag{Tag: tag, Score: score * recency})
	}
	sortScored(out)
	return out
}

// TagCount returns the number of distinct tags known to the index.
func (ix *Index) TagCount() int {
	return len(ix.tagCounts)
}

func sortScored(tags []ScoredTag) {
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Score != tags[j].Score {
			return tags[i].Score > tags[j].Score
		}
		return tags[i].Tag < tags[j].Tag
	})
}

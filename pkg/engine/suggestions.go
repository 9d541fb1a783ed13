package engine

import (
	"time"

	"github.com/rubiojr/places/pkg/places"
	"github.com/rubiojr/places/pkg/tags"
)

const (
	suggestionWindowMs  = 7 * 24 * 60 * 60 * 1000
	maxPlaceSuggestions = 100
	maxTagItemResults   = 50
	notReadyRetryDelay  = 100 * time.Millisecond
)

// PlaceSuggestions returns the most relevant places visited within the
// last seven days, best first, capped at 100. When the cache is not ready
// yet and nearly empty, it waits briefly and retries once rather than
// answering from nothing.
func (e *Engine) PlaceSuggestions() []*places.Place {
	if !e.Ready() && e.Len() <= minEarlyEntries {
		time.Sleep(notReadyRetryDelay)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now() - suggestionWindowMs
	var recent []*places.Place
	for _, p := range e.cache {
		if p.LastVisit >= cutoff {
			recent = append(recent, p)
		}
	}

	places.SortByFrecency(recent)
	if len(recent) > maxPlaceSuggestions {
		recent = recent[:maxPlaceSuggestions]
	}

	out := make([]*places.Place, len(recent))
	for i, p := range recent {
		c := p.Clone()
		c.Score = places.Frecency(p)
		out[i] = c
	}
	return out
}

// SuggestedTags infers tags for the place at the given URL. Unknown URLs
// yield nil.
func (e *Engine) SuggestedTags(url string) []tags.ScoredTag {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.find(url)
	if p == nil {
		return nil
	}
	return e.tagIndex.SuggestedTags(p)
}

// AllTagsRanked scores every known tag against the place at the given URL.
func (e *Engine) AllTagsRanked(url string) []tags.ScoredTag {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.find(url)
	if p == nil {
		return nil
	}
	return e.tagIndex.AllTagsRanked(p)
}

// AutocompleteTags completes a partial tag selection from tag
// co-occurrence.
func (e *Engine) AutocompleteTags(searchTags []string) []tags.ScoredTag {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tagIndex.AutocompleteTags(searchTags)
}

// SuggestedItemsForTags returns bookmarked places whose inferred tag set
// covers every requested tag, capped at 50.
func (e *Engine) SuggestedItemsForTags(requested []string) []*places.Place {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []*places.Place
	for _, p := range e.cache {
		if !p.IsBookmarked {
			continue
		}
		suggested := e.tagIndex.SuggestedTags(p)
		if coversAll(suggested, requested) {
			out = append(out, p.Clone())
			if len(out) == maxTagItemResults {
				break
			}
		}
	}
	return out
}

func coversAll(suggested []tags.ScoredTag, requested []string) bool {
	for _, want := range requested {
		found := false
		for _, st := range suggested {
			if st.Tag == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Package engine is the in-memory mirror of the place store and the home of
// every query path: quick search, full-text search, tag suggestion and
// place suggestions.
//
// The engine runs as a single logical worker: one mutex serializes every
// operation, and each store-touching mutation mirrors the change into the
// cache inside the same critical section, so reads never observe a cache
// that disagrees with the store.
package engine

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rubiojr/places/pkg/log"
	"github.com/rubiojr/places/pkg/places"
	"github.com/rubiojr/places/pkg/storage"
	"github.com/rubiojr/places/pkg/tags"
	"github.com/rubiojr/places/pkg/tokenizer"
)

// fullTextCacheSize bounds the LRU cache of full-text query results. The
// cache is flushed on every mutation, so entries can never go stale.
const fullTextCacheSize = 128

// minEarlyEntries is the cache size above which callers that want "good
// enough" results may proceed before the full load+sort completes.
const minEarlyEntries = 10

// Engine mirrors the durable store in memory and answers all queries.
type Engine struct {
	mu       sync.Mutex
	store    *storage.Store
	tagIndex *tags.Index
	cache    []*places.Place
	ready    bool

	ftsCache *lru.Cache[string, []*places.Place]
	logger   *log.Logger

	now func() int64 // milliseconds; swappable in tests
}

// New creates an engine over the given store. Call Load before serving
// queries.
func New(store *storage.Store) *Engine {
	cache, err := lru.New[string, []*places.Place](fullTextCacheSize)
	if err != nil {
		// only possible with a non-positive size
		panic(fmt.Sprintf("creating full-text cache: %v", err))
	}
	return &Engine{
		store:    store,
		tagIndex: tags.NewIndex(),
		ftsCache: cache,
		logger:   log.ForComponent("engine"),
		now:      func() int64 { return time.Now().UnixMilli() },
	}
}

// Load builds the cache from the durable store: places arrive ordered by
// visit count descending, bookmarked pages register in the tag index, and
// the whole list is sorted once by relevance. The ready flag is set only
// after the full load+sort completes.
func (e *Engine) Load() error {
	all, err := e.store.AllByVisitCount()
	if err != nil {
		return fmt.Errorf("loading places: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.tagIndex = tags.NewIndex()
	e.cache = make([]*places.Place, 0, len(all))
	for _, p := range all {
		if p.IsBookmarked {
			e.tagIndex.AddPage(p)
		}
		e.cache = append(e.cache, p)
	}
	places.SortByFrecency(e.cache)
	e.ready = true
	e.ftsCache.Purge()

	e.logger.Infof("cache loaded: %d places, %d tags", len(e.cache), e.tagIndex.TagCount())
	return nil
}

// Ready reports whether the initial load+sort has completed.
func (e *Engine) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready
}

// Len returns the number of cached places.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.cache)
}

// GetPlace returns the cached place for a URL, or nil if unknown.
func (e *Engine) GetPlace(url string) *places.Place {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p := e.find(url); p != nil {
		return p.Clone()
	}
	return nil
}

// AllPlaces returns a snapshot of the whole cache.
func (e *Engine) AllPlaces() []*places.Place {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*places.Place, len(e.cache))
	for i, p := range e.cache {
		out[i] = p.Clone()
	}
	return out
}

// find returns the first cached entry with the given URL. Caller holds mu.
func (e *Engine) find(url string) *places.Place {
	for _, p := range e.cache {
		if p.URL == url {
			return p
		}
	}
	return nil
}

// PlaceUpdate carries a partial edit for UpdatePlace. Nil pointer fields
// are left unchanged; Tags and Metadata replace wholesale when non-nil.
type PlaceUpdate struct {
	URL           string
	Title         *string
	IsBookmarked  *bool
	Tags          []string
	ExtractedText *string
	Color         *string
	Metadata      map[string]string
	VisitCount    *int
	LastVisit     *int64

	// IsNewVisit increments the visit count and refreshes the last-visit
	// timestamp on top of any explicit field edits.
	IsNewVisit bool
}

// UpdatePlace applies a partial edit, creating the place with defaults if
// it does not exist yet. The store write and the cache mirror happen in the
// same critical section; the tag index sees the change as remove(old) +
// add(new).
func (e *Engine) UpdatePlace(u PlaceUpdate) error {
	if u.URL == "" {
		return fmt.Errorf("updating place: url is required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Work on a copy; the cache is only touched after the store accepts
	// the write.
	existing := e.find(u.URL)
	created := existing == nil
	var old *places.Place
	var p *places.Place
	if created {
		// Not found: fall back to creation. Never an error to the caller.
		e.logger.Debugf("update for unknown url %s, creating", u.URL)
		p = &places.Place{
			URL:       u.URL,
			Title:     u.URL,
			LastVisit: e.now(),
		}
	} else {
		old = existing
		p = existing.Clone()
	}

	if u.Title != nil {
		p.Title = *u.Title
	}
	if u.IsBookmarked != nil {
		p.IsBookmarked = *u.IsBookmarked
	}
	if u.Tags != nil {
		p.Tags = places.NormalizeTags(u.Tags)
	}
	if u.Color != nil {
		p.Color = *u.Color
	}
	if u.Metadata != nil {
		p.Metadata = u.Metadata
	}
	if u.VisitCount != nil {
		p.VisitCount = *u.VisitCount
	}
	if u.LastVisit != nil {
		p.LastVisit = *u.LastVisit
	}
	if u.ExtractedText != nil {
		p.ExtractedText = *u.ExtractedText
		p.SearchIndex = tokenizer.Tokenize(*u.ExtractedText)
	}
	if u.IsNewVisit {
		p.VisitCount++
		p.LastVisit = e.now()
	}

	if err := e.store.Put(p); err != nil {
		return fmt.Errorf("persisting place %s: %w", p.URL, err)
	}

	if created {
		e.cache = append(e.cache, p)
		if p.IsBookmarked {
			e.tagIndex.AddPage(p)
		}
	} else {
		switch {
		case old.IsBookmarked && p.IsBookmarked:
			e.tagIndex.OnChange(old, p)
		case old.IsBookmarked:
			e.tagIndex.RemovePage(old)
		case p.IsBookmarked:
			e.tagIndex.AddPage(p)
		}
		for i, cached := range e.cache {
			if cached.URL == p.URL {
				e.cache[i] = p
				break
			}
		}
	}

	e.ftsCache.Purge()
	return nil
}

// DeletePlace removes a single place from the store and the cache.
func (e *Engine) DeletePlace(url string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.Delete(url); err != nil {
		return fmt.Errorf("deleting place %s: %w", url, err)
	}

	for i, p := range e.cache {
		if p.URL == url {
			if p.IsBookmarked {
				e.tagIndex.RemovePage(p)
			}
			e.cache = append(e.cache[:i], e.cache[i+1:]...)
			break
		}
	}

	e.ftsCache.Purge()
	return nil
}

// ClearHistory removes every non-bookmarked place from the store and then
// fully reloads the cache, since the bulk deletion happens store-side.
func (e *Engine) ClearHistory() error {
	deleted, err := e.store.DeleteNonBookmarked()
	if err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	e.logger.Infof("cleared %d history entries", deleted)
	return e.Load()
}

// Stats returns engine-level counters merged with store statistics.
func (e *Engine) Stats() (map[string]interface{}, error) {
	stats, err := e.store.Stats()
	if err != nil {
		return nil, fmt.Errorf("collecting store stats: %w", err)
	}

	e.mu.Lock()
	stats["cached_places"] = len(e.cache)
	stats["known_tags"] = e.tagIndex.TagCount()
	stats["ready"] = e.ready
	e.mu.Unlock()

	return stats, nil
}

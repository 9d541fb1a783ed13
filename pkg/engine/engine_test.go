package engine

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rubiojr/places/pkg/places"
	"github.com/rubiojr/places/pkg/storage"
	"github.com/rubiojr/places/pkg/tokenizer"
)

func newTestEngine(t *testing.T) (*Engine, *storage.Store) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "places.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("closing store: %v", err)
		}
	})
	return New(store), store
}

func putPlace(t *testing.T, store *storage.Store, p *places.Place) {
	t.Helper()
	if p.SearchIndex == nil && p.ExtractedText != "" {
		p.SearchIndex = tokenizer.Tokenize(p.ExtractedText)
	}
	if err := store.Put(p); err != nil {
		t.Fatalf("put %s: %v", p.URL, err)
	}
}

func TestLoadSortsByRelevance(t *testing.T) {
	e, store := newTestEngine(t)
	now := time.Now().UnixMilli()

	// Inserted in arbitrary order; increasing visit counts must win.
	putPlace(t, store, &places.Place{URL: "https://mid.example.com/page/one", VisitCount: 10, LastVisit: now})
	putPlace(t, store, &places.Place{URL: "https://low.example.com/page/two", VisitCount: 1, LastVisit: now})
	putPlace(t, store, &places.Place{URL: "https://high.example.com/pg/three", VisitCount: 100, LastVisit: now})

	if err := e.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !e.Ready() {
		t.Fatal("engine not ready after load")
	}

	all := e.AllPlaces()
	if len(all) != 3 {
		t.Fatalf("expected 3 places, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if places.Frecency(all[i]) > places.Frecency(all[i-1]) {
			t.Errorf("cache not sorted by score: %s before %s", all[i-1].URL, all[i].URL)
		}
	}
	if all[0].URL != "https://high.example.com/pg/three" {
		t.Errorf("expected most-visited first, got %s", all[0].URL)
	}
}

func TestUpdatePlaceCreatesWithDefaults(t *testing.T) {
	e, store := newTestEngine(t)
	if err := e.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := e.UpdatePlace(PlaceUpdate{URL: "https://new.example.com", IsNewVisit: true}); err != nil {
		t.Fatalf("update: %v", err)
	}

	p := e.GetPlace("https://new.example.com")
	if p == nil {
		t.Fatal("place not created")
	}
	if p.Title != p.URL {
		t.Errorf("title should default to url, got %q", p.Title)
	}
	if p.VisitCount != 1 {
		t.Errorf("expected visit count 1 after new visit, got %d", p.VisitCount)
	}

	// Created rows must also reach the durable store.
	stored, err := store.Get(p.URL)
	if err != nil || stored == nil {
		t.Fatalf("place missing from store: %v %v", stored, err)
	}
}

func TestUpdatePlaceEditsAndRetokenizes(t *testing.T) {
	e, store := newTestEngine(t)
	putPlace(t, store, &places.Place{URL: "https://doc.example.com", Title: "Old", VisitCount: 1, LastVisit: 1000})
	if err := e.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	title := "Updated Title"
	text := "fresh extracted body discussing tokenizers"
	if err := e.UpdatePlace(PlaceUpdate{
		URL:           "https://doc.example.com",
		Title:         &title,
		ExtractedText: &text,
		Tags:          []string{"read later", "go"},
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	p := e.GetPlace("https://doc.example.com")
	if p.Title != title {
		t.Errorf("title not updated: %q", p.Title)
	}
	if len(p.SearchIndex) == 0 {
		t.Error("extracted text not retokenized into search index")
	}
	if p.Tags[0] != "read-later" {
		t.Errorf("tag whitespace not rewritten: %v", p.Tags)
	}

	// The inverted index must see the new tokens.
	matches, _, err := store.TokenMatches("token")
	if err != nil {
		t.Fatalf("token lookup: %v", err)
	}
	if _, ok := matches["https://doc.example.com"]; !ok {
		t.Errorf("expected tokenized body in inverted index, got %v", matches)
	}
}

func TestDeletePlaceRemovesEverywhere(t *testing.T) {
	e, store := newTestEngine(t)
	putPlace(t, store, &places.Place{URL: "https://gone.example.com", VisitCount: 1, LastVisit: 1000})
	if err := e.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := e.DeletePlace("https://gone.example.com"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if e.GetPlace("https://gone.example.com") != nil {
		t.Error("place still in cache")
	}
	stored, err := store.Get("https://gone.example.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored != nil {
		t.Error("place still in store")
	}
}

func TestClearHistorySparesBookmarks(t *testing.T) {
	e, store := newTestEngine(t)
	now := time.Now().UnixMilli()

	putPlace(t, store, &places.Place{URL: "https://history.example.com", VisitCount: 5, LastVisit: now})
	putPlace(t, store, &places.Place{URL: "https://bookmark.example.com", VisitCount: 5, LastVisit: now, IsBookmarked: true, Tags: []string{"keep"}})
	if err := e.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := e.ClearHistory(); err != nil {
		t.Fatalf("clear: %v", err)
	}

	if e.Len() != 1 {
		t.Fatalf("expected 1 surviving place, got %d", e.Len())
	}
	if e.GetPlace("https://bookmark.example.com") == nil {
		t.Error("bookmark did not survive clear history")
	}
	if e.GetPlace("https://history.example.com") != nil {
		t.Error("history entry survived clear history")
	}
}

func TestPlaceSuggestionsRecencyWindow(t *testing.T) {
	e, store := newTestEngine(t)
	now := time.Now().UnixMilli()
	const day = int64(24 * time.Hour / time.Millisecond)

	putPlace(t, store, &places.Place{URL: "https://recent.example.com", VisitCount: 2, LastVisit: now - day})
	putPlace(t, store, &places.Place{URL: "https://ancient.example.com", VisitCount: 50, LastVisit: now - 30*day})
	if err := e.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	suggestions := e.PlaceSuggestions()
	if len(suggestions) != 1 {
		t.Fatalf("expected 1 suggestion, got %d", len(suggestions))
	}
	if suggestions[0].URL != "https://recent.example.com" {
		t.Errorf("expected the recent entry, got %s", suggestions[0].URL)
	}
	if suggestions[0].Score == 0 {
		t.Error("suggestion score not populated")
	}
}

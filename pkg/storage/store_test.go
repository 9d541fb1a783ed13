package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rubiojr/places/pkg/places"
	"github.com/rubiojr/places/pkg/tokenizer"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "places.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("closing store: %v", err)
		}
	})
	return store
}

func testPlace(url string) *places.Place {
	return &places.Place{
		URL:        url,
		Title:      "Test Page",
		VisitCount: 3,
		LastVisit:  time.Now().UnixMilli(),
		Tags:       []string{"testing"},
		Metadata:   map[string]string{"source": "unit"},
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	store := testStore(t)

	p := testPlace("https://example.com/page")
	p.ExtractedText = "the page talks about indexing and ranking at length"
	p.SearchIndex = tokenizer.Tokenize(p.ExtractedText)
	p.Color = "#ff8800"

	if err := store.Put(p); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.Get(p.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected a row, got nil")
	}
	if got.Title != p.Title || got.VisitCount != p.VisitCount || got.LastVisit != p.LastVisit {
		t.Errorf("scalar fields mismatch: %+v vs %+v", got, p)
	}
	if got.ExtractedText != p.ExtractedText {
		t.Errorf("extracted text mismatch after compression round trip: %q", got.ExtractedText)
	}
	if len(got.SearchIndex) != len(p.SearchIndex) {
		t.Errorf("search index mismatch: %v vs %v", got.SearchIndex, p.SearchIndex)
	}
	if got.Color != p.Color {
		t.Errorf("color mismatch: %q vs %q", got.Color, p.Color)
	}
	if got.Metadata["source"] != "unit" {
		t.Errorf("metadata mismatch: %v", got.Metadata)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	store := testStore(t)

	got, err := store.Get("https://nowhere.example.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing row, got %+v", got)
	}
}

func TestPutReplacesTokens(t *testing.T) {
	store := testStore(t)

	p := testPlace("https://example.com/doc")
	p.SearchIndex = []string{"alpha", "beta"}
	if err := store.Put(p); err != nil {
		t.Fatalf("put: %v", err)
	}

	p.SearchIndex = []string{"gamma"}
	if err := store.Put(p); err != nil {
		t.Fatalf("second put: %v", err)
	}

	if matches, _, err := store.TokenMatches("alpha"); err != nil || len(matches) != 0 {
		t.Errorf("stale token survived replace: %v (err %v)", matches, err)
	}
	matches, count, err := store.TokenMatches("gamma")
	if err != nil {
		t.Fatalf("token lookup: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 match, got %d", count)
	}
	if _, ok := matches[p.URL]; !ok {
		t.Errorf("expected %s in matches, got %v", p.URL, matches)
	}
}

func TestAllByVisitCountOrder(t *testing.T) {
	store := testStore(t)

	for i, url := range []string{"https://a.example.com", "https://b.example.com", "https://c.example.com"} {
		p := testPlace(url)
		p.VisitCount = i * 10
		if err := store.Put(p); err != nil {
			t.Fatalf("put %s: %v", url, err)
		}
	}

	all, err := store.AllByVisitCount()
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].VisitCount > all[i-1].VisitCount {
			t.Errorf("rows not ordered by visit count desc: %d after %d", all[i].VisitCount, all[i-1].VisitCount)
		}
	}
}

func TestDeleteExpiredKeepsBookmarks(t *testing.T) {
	store := testStore(t)
	now := time.Now().UnixMilli()
	const day = int64(24 * time.Hour / time.Millisecond)

	expired := testPlace("https://old.example.com")
	expired.LastVisit = now - 43*day

	bookmarked := testPlace("https://old-bookmark.example.com")
	bookmarked.LastVisit = now - 43*day
	bookmarked.IsBookmarked = true

	fresh := testPlace("https://fresh.example.com")
	fresh.LastVisit = now - 41*day

	for _, p := range []*places.Place{expired, bookmarked, fresh} {
		if err := store.Put(p); err != nil {
			t.Fatalf("put %s: %v", p.URL, err)
		}
	}

	deleted, err := store.DeleteExpired(now - 42*day)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted row, got %d", deleted)
	}

	for _, tc := range []struct {
		url  string
		want bool
	}{
		{expired.URL, false},
		{bookmarked.URL, true},
		{fresh.URL, true},
	} {
		got, err := store.Get(tc.url)
		if err != nil {
			t.Fatalf("get %s: %v", tc.url, err)
		}
		if (got != nil) != tc.want {
			t.Errorf("%s: present=%v, expected %v", tc.url, got != nil, tc.want)
		}
	}
}

func TestDeleteNonBookmarked(t *testing.T) {
	store := testStore(t)

	plain := testPlace("https://plain.example.com")
	kept := testPlace("https://kept.example.com")
	kept.IsBookmarked = true

	for _, p := range []*places.Place{plain, kept} {
		if err := store.Put(p); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	deleted, err := store.DeleteNonBookmarked()
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", deleted)
	}

	all, err := store.AllByVisitCount()
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 1 || all[0].URL != kept.URL {
		t.Errorf("expected only the bookmark to survive, got %v", all)
	}
}

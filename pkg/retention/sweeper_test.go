package retention

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rubiojr/places/pkg/places"
	"github.com/rubiojr/places/pkg/storage"
)

func testStore(t *testing.T) *storage.Store {
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
	return store
}

func TestSweepRemovesOnlyExpiredHistory(t *testing.T) {
	store := testStore(t)
	now := time.Now().UnixMilli()
	const day = int64(24 * time.Hour / time.Millisecond)

	seed := []*places.Place{
		{URL: "https://old.example.com", VisitCount: 1, LastVisit: now - 60*day},
		{URL: "https://old-bookmark.example.com", VisitCount: 1, LastVisit: now - 60*day, IsBookmarked: true},
		{URL: "https://recent.example.com", VisitCount: 1, LastVisit: now - day},
	}
	for _, p := range seed {
		if err := store.Put(p); err != nil {
			t.Fatalf("put %s: %v", p.URL, err)
		}
	}

	var notified int64
	s := NewSweeper(Config{}, store)
	s.OnSweep(func(removed int64) { notified = removed })

	if removed := s.Sweep(); removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	if notified != 1 {
		t.Errorf("callback saw %d removals, want 1", notified)
	}

	for _, tt := range []struct {
		url  string
		want bool
	}{
		{"https://old.example.com", false},
		{"https://old-bookmark.example.com", true},
		{"https://recent.example.com", true},
	} {
		p, err := store.Get(tt.url)
		if err != nil {
			t.Fatalf("get %s: %v", tt.url, err)
		}
		if (p != nil) != tt.want {
			t.Errorf("%s: present=%v, want %v", tt.url, p != nil, tt.want)
		}
	}
}

func TestSweeperStartStop(t *testing.T) {
	store := testStore(t)

	s := NewSweeper(Config{InitialDelay: time.Hour}, store)
	s.Start()
	s.Start() // idempotent
	s.Stop()
	s.Stop() // idempotent
}

func TestSweeperConfigDefaults(t *testing.T) {
	s := NewSweeper(Config{}, nil)
	if s.config.MaxAge != DefaultMaxAge {
		t.Errorf("max age = %v", s.config.MaxAge)
	}
	if s.config.InitialDelay != DefaultInitialDelay {
		t.Errorf("initial delay = %v", s.config.InitialDelay)
	}
	if s.config.SweepInterval != DefaultSweepInterval {
		t.Errorf("sweep interval = %v", s.config.SweepInterval)
	}
}

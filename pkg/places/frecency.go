package places

import (
	"math"
	"sort"
)

// Frecency scoring constants. The weights are tuned for personal browsing
// history: short documents, strong recency bias, and a fixed bonus for
// short, memorable URLs.
const (
	visitCountWeight  = 0.036
	shortURLMaxLen    = 20
	shortURLBaseLen   = 30
	shortURLBonusUnit = 2500
)

// Frecency computes the recency/frequency base score used for ordering
// wherever results are ranked by general quality rather than match strength.
// Higher is better; only relative ordering matters, the value is unbounded.
func Frecency(p *Place) float64 {
	score := float64(p.LastVisit) * (1 + visitCountWeight*math.Sqrt(float64(p.VisitCount)))
	if len(p.URL) < shortURLMaxLen {
		score += float64(shortURLBaseLen-len(p.URL)) * shortURLBonusUnit
	}
	return score
}

// FrecencyBoosted folds a transient per-match boost into the base score.
// The boost is carried by the caller's ranking structure, never stored on
// the shared Place, so it cannot leak between search calls.
func FrecencyBoosted(p *Place, boost float64) float64 {
	score := Frecency(p)
	if boost != 0 {
		score += score * boost
	}
	return score
}

// SortByFrecency sorts the slice by base score, best first.
func SortByFrecency(items []*Place) {
	sort.Slice(items, func(i, j int) bool {
		return Frecency(items[i]) > Frecency(items[j])
	})
}

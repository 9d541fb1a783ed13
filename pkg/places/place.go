package places

import (
	"net/url"
	"strings"
)

// Place represents a single indexed URL with its visit, bookmark and tag
// metadata. One Place exists per distinct URL; the URL is the unique key in
// both the durable store and the in-memory cache.
//
// SearchIndex holds the normalized token sequence derived from ExtractedText
// and is capped at 20,000 tokens by the tokenizer. ExtractedText and
// SearchIndex are heavy fields: they are stripped from search results before
// they are handed back to the host.
type Place struct {
	URL          string            `json:"url"`
	Title        string            `json:"title"`
	VisitCount   int               `json:"visitCount"`
	LastVisit    int64             `json:"lastVisit"` // milliseconds since epoch
	IsBookmarked bool              `json:"isBookmarked"`
	Tags         []string          `json:"tags"`
	Color        string            `json:"color,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`

	ExtractedText string   `json:"extractedText,omitempty"`
	SearchIndex   []string `json:"searchIndex,omitempty"`

	// SearchSnippet is populated only on full-text search results.
	SearchSnippet string `json:"searchSnippet,omitempty"`

	// Score is the last computed relevance score. Transient; never persisted.
	Score float64 `json:"hScore,omitempty"`
}

// Clone returns a copy of the place with its own tag slice and metadata map.
// The token slice is shared: callers never mutate SearchIndex in place, they
// replace it wholesale when extracted text changes.
func (p *Place) Clone() *Place {
	c := *p
	if p.Tags != nil {
		c.Tags = append([]string(nil), p.Tags...)
	}
	if p.Metadata != nil {
		c.Metadata = make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// StripHeavy returns a copy of the place without the fields that are
// expensive to transmit and never needed by the host.
func (p *Place) StripHeavy() *Place {
	c := p.Clone()
	c.ExtractedText = ""
	c.SearchIndex = nil
	return c
}

// NormalizeTags rewrites embedded whitespace in each tag to "-" and drops
// empty tags. Tag entries never contain whitespace once stored.
func NormalizeTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.Join(strings.Fields(tag), "-")
		if tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// Hostname extracts the hostname from a URL. Malformed URLs yield an empty
// hostname rather than an error; callers skip the affected derivation.
func Hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Host == "" {
		u, err = url.Parse("http://" + raw)
		if err != nil {
			return ""
		}
	}
	return u.Hostname()
}

// HostnameMinusTLD returns the hostname with its last dot-separated label
// removed: "news.ycombinator.com" becomes "news.ycombinator". A hostname
// with a single label is returned unchanged.
func HostnameMinusTLD(raw string) string {
	host := Hostname(raw)
	if host == "" {
		return ""
	}
	if i := strings.LastIndex(host, "."); i > 0 {
		return host[:i]
	}
	return host
}

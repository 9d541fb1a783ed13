// Package tokenizer turns raw strings into filtered, stemmed token
// sequences. It is the leaf dependency of every search component: the
// history cache, quick search, full-text search and the tag index all
// normalize text through it.
//
// All functions are pure and deterministic; the same input always yields
// the same token sequence.
package tokenizer

import (
	"strings"
	"unicode"

	snowballeng "github.com/kljensen/snowball/english"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// MaxTokens caps the token sequence derived from one document.
	MaxTokens = 20000

	// maxTokenLength drops pathological tokens (minified blobs, data URIs).
	maxTokenLength = 100
)

// separatorRunes are collapsed to single spaces during normalization, so
// "foo-bar.baz/qux" splits into words the same way "foo bar baz qux" does.
const separatorRunes = "+._/-"

// diacriticStripper decomposes and drops combining marks: "café" -> "cafe".
var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize runs the string-cleaning pipeline on plain text: lowercase,
// separator collapsing, apostrophe removal, non-letter removal, diacritic
// stripping and whitespace collapsing. The result is a space-separated
// sequence of lowercase letter runs.
func Normalize(text string) string {
	return normalize(text, false)
}

// NormalizeURL is Normalize for URLs: it additionally strips a trailing
// query string and a leading protocol / www prefix before the generic
// pipeline runs. Stripping order matters; the protocol has to go before
// separator collapsing turns "https://" into spaces.
func NormalizeURL(rawURL string) string {
	return normalize(rawURL, true)
}

func normalize(text string, isURL bool) string {
	text = strings.ToLower(text)

	if isURL {
		if i := strings.IndexByte(text, '?'); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimPrefix(text, "http://")
		text = strings.TrimPrefix(text, "https://")
		text = strings.TrimPrefix(text, "www.")
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case strings.ContainsRune(separatorRunes, r) || unicode.IsSpace(r):
			b.WriteByte(' ')
		case r == '\'':
			// dropped entirely: "don't" -> "dont"
		case unicode.IsLetter(r) || unicode.Is(unicode.Mn, r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	stripped, _, err := transform.String(diacriticStripper, b.String())
	if err != nil {
		stripped = b.String()
	}

	return strings.Join(strings.Fields(stripped), " ")
}

// Tokenize converts plain text into the normalized, stemmed token sequence
// used for indexing and querying. Stop words, empty tokens and tokens over
// 100 characters are dropped; the result is capped at MaxTokens.
func Tokenize(text string) []string {
	return split(Normalize(text))
}

func split(normalized string) []string {
	words := strings.Fields(normalized)
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		if len(word) > maxTokenLength {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		tokens = append(tokens, Stem(word))
		if len(tokens) == MaxTokens {
			break
		}
	}
	return tokens
}

// Stem reduces a single already-normalized word to its root form.
func Stem(word string) string {
	return snowballeng.Stem(word, false)
}

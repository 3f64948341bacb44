package engine

import (
	"log"
	"regexp"
	"strings"

	"github.com/kljensen/snowball"
)

var (
	// Mirrors [^\w\s]: everything that is neither a word character nor whitespace.
	nonWordRE = regexp.MustCompile(`[^\p{L}\p{N}_\s]+`)
	digitRE   = regexp.MustCompile(`\p{N}+`)
)

// Normalizer reduces raw text to an ordered sequence of lowercase tokens:
// punctuation and digits stripped, stopwords removed, and tokens stemmed
// when a stemmer exists for the configured language.
type Normalizer struct {
	language  string
	stopwords map[string]struct{}
	stem      bool
}

// NewNormalizer builds a normalizer for the given language tag (e.g.
// "portuguese", "english"). Missing language resources are not fatal:
// without a stopword set no tokens are dropped, and without a stemmer
// tokens pass through unstemmed.
func NewNormalizer(language string) *Normalizer {
	sw, ok := stopwordSets[language]
	if !ok {
		log.Printf("no stopword set for language %q, continuing without stopword removal", language)
		sw = map[string]struct{}{}
	}

	// Capability probe: snowball reports unsupported languages as an error.
	stem := true
	if _, err := snowball.Stem("probe", language, false); err != nil {
		log.Printf("no stemmer for language %q, continuing without stemming", language)
		stem = false
	}

	return &Normalizer{language: language, stopwords: sw, stem: stem}
}

// Tokens normalizes text into tokens. Empty or all-stopword input yields an
// empty slice, never an error.
func (n *Normalizer) Tokens(text string) []string {
	if text == "" {
		return nil
	}

	text = strings.ToLower(text)
	text = nonWordRE.ReplaceAllString(text, " ")
	text = digitRE.ReplaceAllString(text, " ")

	fields := strings.Fields(text)
	tokens := make([]string, 0, len(fields))
	for _, word := range fields {
		if _, stop := n.stopwords[word]; stop {
			continue
		}
		if n.stem {
			if stemmed, err := snowball.Stem(word, n.language, false); err == nil && stemmed != "" {
				word = stemmed
			}
		}
		tokens = append(tokens, word)
	}
	return tokens
}

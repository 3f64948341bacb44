package engine

import (
	"regexp"
	"sort"
	"strings"
)

// Rule pairs a trigger keyword with the response it produces. Keyword casing
// is preserved as stored so replies can echo it back verbatim.
type Rule struct {
	Keyword  string
	Response string
}

// Match is a keyword that qualified against a piece of text.
type Match struct {
	Keyword string
	Score   float64
}

// Matcher selects the rules that apply to a piece of text.
type Matcher interface {
	Match(text string, rules []Rule) []Match
}

// FuzzyMatcher keeps every rule whose similarity score reaches the threshold,
// ordered best first. Rules that tie keep their snapshot order.
type FuzzyMatcher struct {
	scorer    *Scorer
	threshold float64
}

func NewFuzzyMatcher(scorer *Scorer, threshold float64) *FuzzyMatcher {
	return &FuzzyMatcher{scorer: scorer, threshold: threshold}
}

func (m *FuzzyMatcher) Match(text string, rules []Rule) []Match {
	var matches []Match
	for _, r := range rules {
		score := m.scorer.Score(text, r.Keyword)
		if score >= m.threshold {
			matches = append(matches, Match{Keyword: r.Keyword, Score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// ExactMatcher reports every rule whose keyword appears as a whole word in
// the text, case-insensitively, in rule order. "orçamento" does not match
// inside "desorçamento" or "orçamentos".
type ExactMatcher struct{}

func (ExactMatcher) Match(text string, rules []Rule) []Match {
	var matches []Match
	for _, r := range rules {
		if r.Keyword == "" {
			continue
		}
		if wordBoundaryPattern(r.Keyword).MatchString(text) {
			matches = append(matches, Match{Keyword: r.Keyword, Score: 1.0})
		}
	}
	return matches
}

// wordBoundaryPattern builds a case-insensitive whole-word pattern. regexp's
// \b only understands ASCII, so the boundary is spelled out in terms of
// unicode letters and digits.
func wordBoundaryPattern(keyword string) *regexp.Regexp {
	quoted := regexp.QuoteMeta(strings.ToLower(keyword))
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])` + quoted + `(?:[^\p{L}\p{N}_]|$)`)
}

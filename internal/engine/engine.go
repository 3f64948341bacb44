// Package engine matches incoming email text against keyword rules and
// composes the reply to send back.
package engine

import "sort"

// Mode selects how keywords are matched against text.
type Mode string

const (
	// ModeFuzzy scores keywords by token similarity and replies to the
	// single best match at or above the threshold.
	ModeFuzzy Mode = "fuzzy"

	// ModeExact requires whole-word keyword occurrences and replies to
	// every matching rule.
	ModeExact Mode = "exact"
)

// Options configure an Engine.
type Options struct {
	Language  string
	Threshold float64
	Mode      Mode
	Fallback  string
	Signature string
}

// Reply is the composed response to one incoming message.
type Reply struct {
	Text           string
	MatchedKeyword string
	Matches        []Match
}

// Engine bundles normalization, matching, and composition. It holds no
// mutable state after construction and is safe for concurrent use.
type Engine struct {
	scorer   *Scorer
	matcher  Matcher
	composer *Composer
	mode     Mode
}

func New(opts Options) *Engine {
	scorer := NewScorer(NewNormalizer(opts.Language))

	var matcher Matcher
	multi := false
	switch opts.Mode {
	case ModeExact:
		matcher = ExactMatcher{}
		multi = true
	default:
		matcher = NewFuzzyMatcher(scorer, opts.Threshold)
	}

	return &Engine{
		scorer:   scorer,
		matcher:  matcher,
		composer: NewComposer(opts.Fallback, opts.Signature, multi),
		mode:     opts.Mode,
	}
}

// Respond matches the message against the rules and composes a reply. It
// always produces a reply; with no qualifying rule the fallback text is used.
func (e *Engine) Respond(subject, body string, rules []Rule) Reply {
	text := subject + " " + body
	matches := e.matcher.Match(text, rules)
	replyText, keyword := e.composer.Compose(matches, rules)
	return Reply{Text: replyText, MatchedKeyword: keyword, Matches: matches}
}

// Rank scores every rule against the text regardless of threshold, best
// first. Useful for diagnostics and for callers that apply their own cutoff.
func (e *Engine) Rank(text string, rules []Rule) []Match {
	matches := make([]Match, 0, len(rules))
	for _, r := range rules {
		matches = append(matches, Match{Keyword: r.Keyword, Score: e.scorer.Score(text, r.Keyword)})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// Score exposes the raw text/keyword similarity.
func (e *Engine) Score(text, keyword string) float64 {
	return e.scorer.Score(text, keyword)
}

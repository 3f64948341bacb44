package engine

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// shortTokenLimit is the rune length at or below which tokens also get an
// edit-distance similarity. Block matching under-rewards single-character
// typos in short words; edit distance does not.
const shortTokenLimit = 5

// Scorer computes a bounded [0,1] similarity between free text and a keyword.
type Scorer struct {
	normalizer *Normalizer
}

func NewScorer(n *Normalizer) *Scorer {
	return &Scorer{normalizer: n}
}

// Score compares text against a keyword:
//
//  1. If the keyword occurs verbatim in the text (case-insensitive), the
//     score is 1.0.
//  2. Otherwise both sides are normalized to token sequences; if either is
//     empty the score is 0.0.
//  3. Each keyword token is scored against every text token (sequence
//     ratio, plus edit-distance similarity for short tokens, taking the
//     larger) and keeps its best result.
//  4. The score is the mean of the per-keyword-token bests.
func (s *Scorer) Score(text, keyword string) float64 {
	if keyword == "" {
		return 0
	}
	if strings.Contains(strings.ToLower(text), strings.ToLower(keyword)) {
		return 1.0
	}

	textTokens := s.normalizer.Tokens(text)
	keywordTokens := s.normalizer.Tokens(keyword)
	if len(textTokens) == 0 || len(keywordTokens) == 0 {
		return 0
	}

	var sum float64
	var counted int
	for _, k := range keywordTokens {
		best := -1.0
		for _, t := range textTokens {
			sim := sequenceRatio(k, t)
			if utf8.RuneCountInString(k) <= shortTokenLimit || utf8.RuneCountInString(t) <= shortTokenLimit {
				if edit := editSimilarity(k, t); edit > sim {
					sim = edit
				}
			}
			if sim > best {
				best = sim
			}
		}
		if best >= 0 {
			sum += best
			counted++
		}
	}
	if counted == 0 {
		return 0
	}
	return sum / float64(counted)
}

// editSimilarity maps edit distance into [0,1]: identical strings score 1.0,
// strings with nothing in common score 0.0. Normalization tokens are never
// empty, so maxLen is at least 1 in practice.
func editSimilarity(a, b string) float64 {
	maxLen := utf8.RuneCountInString(a)
	if l := utf8.RuneCountInString(b); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 0
	}
	return 1.0 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
}

// sequenceRatio is the matching-blocks ratio between two strings: twice the
// matched rune count over the total rune count. Symmetric, in [0,1], and
// 1.0 exactly when the strings are equal.
func sequenceRatio(a, b string) float64 {
	ar, br := []rune(a), []rune(b)
	total := len(ar) + len(br)
	if total == 0 {
		return 0
	}
	return 2.0 * float64(matchedRunes(ar, br)) / float64(total)
}

// matchedRunes counts runes covered by recursively taking the longest
// common block and descending into the pieces on either side of it.
func matchedRunes(a, b []rune) int {
	ai, bi, size := longestCommonBlock(a, b)
	if size == 0 {
		return 0
	}
	return size +
		matchedRunes(a[:ai], b[:bi]) +
		matchedRunes(a[ai+size:], b[bi+size:])
}

// longestCommonBlock finds the longest run of runes common to a and b,
// preferring the earliest position on ties.
func longestCommonBlock(a, b []rune) (ai, bi, size int) {
	// lengths[j] is the longest block ending at a[i], b[j].
	lengths := make(map[int]int)
	for i := range a {
		next := make(map[int]int, len(lengths))
		for j := range b {
			if a[i] != b[j] {
				continue
			}
			k := lengths[j-1] + 1
			next[j] = k
			if k > size {
				ai, bi, size = i-k+1, j-k+1, k
			}
		}
		lengths = next
	}
	return ai, bi, size
}

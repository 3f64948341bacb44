package engine

import (
	"math"
	"testing"
)

func newTestScorer() *Scorer {
	return NewScorer(NewNormalizer("portuguese"))
}

func TestScoreSubstringShortcut(t *testing.T) {
	s := newTestScorer()

	tests := []struct {
		text, keyword string
	}{
		{"Preciso de um orçamento urgente", "orçamento"},
		{"PRECISO DE UM ORÇAMENTO", "orçamento"},
		{"responda com urgência", "urgência"},
	}
	for _, tt := range tests {
		if got := s.Score(tt.text, tt.keyword); got != 1.0 {
			t.Errorf("Score(%q, %q) = %v, want 1.0", tt.text, tt.keyword, got)
		}
	}
}

func TestScoreEmptyInputs(t *testing.T) {
	s := newTestScorer()

	tests := []struct {
		name          string
		text, keyword string
	}{
		{"empty text", "", "orçamento"},
		{"empty keyword", "algum texto", ""},
		{"stopwords only", "de um para o", "orçamento"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Score(tt.text, tt.keyword); got != 0 {
				t.Errorf("Score = %v, want 0", got)
			}
		})
	}
}

func TestScoreAccentedTypo(t *testing.T) {
	s := newTestScorer()

	// "orcamento" misses only the cedilla: blocks "or" + "amento" cover
	// 8 of 9 runes on each side.
	got := s.Score("Preciso de um orcamento urgente", "orçamento")
	want := 16.0 / 18.0
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Score = %v, want %v", got, want)
	}
	if got < 0.8 {
		t.Errorf("Score = %v, want at least 0.8", got)
	}
}

func TestScoreShortTokenEditDistance(t *testing.T) {
	s := newTestScorer()

	// "ajda" vs "ajuda": one insertion over 5 runes gives 0.8 by edit
	// distance, above what block matching alone yields.
	got := s.Score("preciso de ajda", "ajuda")
	if got < 0.8 {
		t.Errorf("Score = %v, want at least 0.8", got)
	}
}

func TestScoreBounded(t *testing.T) {
	s := newTestScorer()

	pairs := []struct{ text, keyword string }{
		{"orçamento", "orçamento"},
		{"texto completamente diferente", "orçamento"},
		{"xyz", "abc"},
		{"suporte técnico urgente", "suporte"},
		{"a", "b"},
	}
	for _, p := range pairs {
		got := s.Score(p.text, p.keyword)
		if got < 0 || got > 1 {
			t.Errorf("Score(%q, %q) = %v, out of [0,1]", p.text, p.keyword, got)
		}
	}
}

func TestScoreReflexive(t *testing.T) {
	s := newTestScorer()

	for _, text := range []string{"orçamento", "suporte técnico", "hello world"} {
		if got := s.Score(text, text); got != 1.0 {
			t.Errorf("Score(%q, %q) = %v, want 1.0", text, text, got)
		}
	}
}

func TestSequenceRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"abc", "abc", 1.0},
		{"abc", "xyz", 0.0},
		{"orçamento", "orcamento", 16.0 / 18.0},
		{"suporte", "suport", 12.0 / 13.0},
		{"", "", 0.0},
	}
	for _, tt := range tests {
		got := sequenceRatio(tt.a, tt.b)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("sequenceRatio(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
		// Symmetry.
		if rev := sequenceRatio(tt.b, tt.a); math.Abs(got-rev) > 1e-9 {
			t.Errorf("sequenceRatio not symmetric for %q, %q: %v vs %v", tt.a, tt.b, got, rev)
		}
	}
}

func TestEditSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"ajuda", "ajuda", 1.0},
		{"ajuda", "ajda", 0.8},
		{"abc", "xyz", 0.0},
		{"ação", "acao", 0.5},
	}
	for _, tt := range tests {
		if got := editSimilarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("editSimilarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

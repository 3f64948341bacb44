package engine

import (
	"reflect"
	"testing"
)

func TestTokensPortuguese(t *testing.T) {
	n := NewNormalizer("portuguese")

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "lowercases and splits",
			in:   "Preciso URGENTE",
			want: []string{"preciso", "urgente"},
		},
		{
			name: "drops stopwords",
			in:   "Preciso de um orçamento para o projeto",
			want: []string{"preciso", "orçamento", "projeto"},
		},
		{
			name: "strips punctuation and digits",
			in:   "pedido #12345: orçamento!!",
			want: []string{"pedido", "orçamento"},
		},
		{
			name: "empty input",
			in:   "",
			want: nil,
		},
		{
			name: "all stopwords",
			in:   "de um para o",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Tokens(tt.in)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokens(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTokensEnglishStemming(t *testing.T) {
	n := NewNormalizer("english")

	got := n.Tokens("the cats are running")
	want := []string{"cat", "run"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokens = %v, want %v", got, want)
	}
}

func TestTokensUnknownLanguage(t *testing.T) {
	n := NewNormalizer("klingon")

	// No stopword set and no stemmer: tokens pass through untouched.
	got := n.Tokens("the Ships 123 arrived!")
	want := []string{"the", "ships", "arrived"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokens = %v, want %v", got, want)
	}
}

package textproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"event", "x", "occurred", "paris", "2024"}, Tokens("The Event X occurred in Paris in 2024."))
	assert.Nil(t, Tokens("!!! ..."))
}

func TestTokenSet(t *testing.T) {
	set := TokenSet("Paris paris PARIS report")
	assert.Len(t, set, 2)
	assert.Contains(t, set, "paris")
	assert.Contains(t, set, "report")
}

func TestSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"two", "Event X occurred in Paris. It was reported today.", []string{"Event X occurred in Paris.", "It was reported today."}},
		{"tail without punctuation", "First one! and a tail", []string{"First one!", "and a tail"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sentences(tt.in))
		})
	}
}

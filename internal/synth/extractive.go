package synth

import (
	"context"
	"math"
	"sort"
	"strings"

	"newslens/internal/domain"
	"newslens/internal/textproc"
)

// NoAnswer is returned by Extractive when no retrieved sentence shares a
// word with the question.
const NoAnswer = "I don't know."

// Extractive answers without a language model: it ranks sentences of the
// retrieved chunks by overlap with the question, breaking ties by word
// frequency across the chunks.
type Extractive struct {
	maxSentences int
}

// NewExtractive returns at most maxSentences sentences per answer, 3 if not positive.
func NewExtractive(maxSentences int) *Extractive {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	return &Extractive{maxSentences: maxSentences}
}

type sentence struct {
	text    string
	source  string
	order   int
	overlap float64
	score   float64
}

func (e *Extractive) Synthesize(ctx context.Context, question string, results []domain.SearchResult) (domain.Answer, error) {
	if err := ctx.Err(); err != nil {
		return domain.Answer{}, err
	}
	query := textproc.TokenSet(question)

	var sentences []sentence
	freq := map[string]float64{}
	for _, r := range results {
		for _, s := range textproc.Sentences(r.Chunk.Text) {
			sentences = append(sentences, sentence{text: s, source: r.Chunk.Source, order: len(sentences)})
			for _, tok := range textproc.Tokens(s) {
				freq[tok]++
			}
		}
	}
	normalize(freq)

	for i := range sentences {
		s := &sentences[i]
		tokens := textproc.Tokens(s.text)
		if len(tokens) == 0 {
			continue
		}
		s.overlap = ochiai(query, tokens)
		for _, tok := range tokens {
			s.score += freq[tok]
		}
		s.score /= math.Sqrt(float64(len(tokens)))
	}

	sort.SliceStable(sentences, func(i, j int) bool {
		if sentences[i].overlap != sentences[j].overlap {
			return sentences[i].overlap > sentences[j].overlap
		}
		return sentences[i].score > sentences[j].score
	})
	n := 0
	for n < len(sentences) && n < e.maxSentences && sentences[n].overlap > 0 {
		n++
	}
	if n == 0 {
		return domain.Answer{Text: NoAnswer}, nil
	}
	selected := sentences[:n]
	sort.Slice(selected, func(i, j int) bool { return selected[i].order < selected[j].order })

	var answer domain.Answer
	parts := make([]string, 0, n)
	seen := map[string]struct{}{}
	for _, s := range selected {
		parts = append(parts, s.text)
		if s.source == "" {
			continue
		}
		if _, ok := seen[s.source]; ok {
			continue
		}
		seen[s.source] = struct{}{}
		answer.Sources = append(answer.Sources, s.source)
	}
	answer.Text = strings.Join(parts, " ")
	return answer, nil
}

func normalize(freq map[string]float64) {
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	if maxF == 0 {
		return
	}
	for k, v := range freq {
		freq[k] = v / maxF
	}
}

// ochiai returns |A∩B| / sqrt(|A||B|) over distinct tokens.
func ochiai(query map[string]struct{}, tokens []string) float64 {
	seen := make(map[string]struct{}, len(tokens))
	inter := 0
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := query[t]; ok {
			inter++
		}
	}
	if len(query) == 0 || len(seen) == 0 {
		return 0
	}
	return float64(inter) / math.Sqrt(float64(len(query))*float64(len(seen)))
}

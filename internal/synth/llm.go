// Package synth turns retrieved chunks into an answer with sources.
package synth

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"newslens/internal/domain"
	"newslens/internal/logging"
)

// Completer sends a prompt to a language model and returns its raw text.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error)
}

const (
	DefaultMaxTokens   = 500
	DefaultTemperature = float32(0.9)
)

const promptHeader = `Given the following extracted parts of news articles and a question, create a final answer with references ("SOURCES").
If you don't know the answer, just say that you don't know. Don't try to make up an answer.
ALWAYS return a "SOURCES" part in your answer, listing one source URL per line.

QUESTION: %s
=========
`

var (
	finalAnswerRe = regexp.MustCompile(`(?i)^\s*FINAL ANSWER:\s*`)
	sourcesRe     = regexp.MustCompile(`(?i)\bSOURCES?:`)
	sourceSplitRe = regexp.MustCompile(`[\n,]+`)
)

// LLM answers by stuffing all retrieved chunks into a single prompt.
type LLM struct {
	completer   Completer
	maxTokens   int
	temperature float32
	logger      *zap.Logger
}

// Option configures an LLM synthesizer.
type Option func(*LLM)

// WithMaxTokens caps the length of the model reply.
func WithMaxTokens(n int) Option {
	return func(l *LLM) {
		if n > 0 {
			l.maxTokens = n
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) Option {
	return func(l *LLM) { l.temperature = t }
}

// WithLogger sets the logger; nil means no logging.
func WithLogger(logger *zap.Logger) Option {
	return func(l *LLM) { l.logger = logging.OrNop(logger) }
}

// NewLLM creates an LLM synthesizer with 500 max tokens and temperature 0.9 by default.
func NewLLM(c Completer, opts ...Option) *LLM {
	l := &LLM{
		completer:   c,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Synthesize asks the model and parses its FINAL ANSWER / SOURCES reply.
// When the reply has no SOURCES section the raw text is returned together
// with domain.ErrSynthesis so callers can still show it.
func (l *LLM) Synthesize(ctx context.Context, question string, results []domain.SearchResult) (domain.Answer, error) {
	prompt := BuildPrompt(question, results)
	l.logger.Debug("completing", zap.Int("chunks", len(results)), zap.Int("prompt_chars", len(prompt)))

	raw, err := l.completer.Complete(ctx, prompt, l.maxTokens, l.temperature)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("%w: %w", domain.ErrSynthesis, err)
	}
	answer, err := ParseAnswer(raw, retrievedSources(results))
	if err != nil {
		l.logger.Warn("malformed model output", zap.Error(err))
	}
	return answer, err
}

// BuildPrompt renders the question and chunks into the answering prompt.
func BuildPrompt(question string, results []domain.SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, promptHeader, strings.TrimSpace(question))
	for _, r := range results {
		fmt.Fprintf(&b, "Content: %s\nSource: %s\n\n", strings.TrimSpace(r.Chunk.Text), r.Chunk.Source)
	}
	b.WriteString("=========\nFINAL ANSWER:")
	return b.String()
}

// ParseAnswer splits model output into answer text and sources. Sources not
// in allowed are dropped; a nil allowed keeps every source.
func ParseAnswer(raw string, allowed []string) (domain.Answer, error) {
	text := strings.TrimSpace(finalAnswerRe.ReplaceAllString(strings.TrimSpace(raw), ""))
	if text == "" {
		return domain.Answer{}, fmt.Errorf("%w: empty model output", domain.ErrSynthesis)
	}

	locs := sourcesRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return domain.Answer{Text: text}, fmt.Errorf("%w: no SOURCES section in model output", domain.ErrSynthesis)
	}
	last := locs[len(locs)-1]
	answer := domain.Answer{Text: strings.TrimSpace(text[:last[0]])}

	var keep map[string]struct{}
	if allowed != nil {
		keep = make(map[string]struct{}, len(allowed))
		for _, s := range allowed {
			keep[s] = struct{}{}
		}
	}
	seen := map[string]struct{}{}
	for _, s := range sourceSplitRe.Split(text[last[1]:], -1) {
		s = cleanSource(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		if keep != nil {
			if _, ok := keep[s]; !ok {
				continue
			}
		}
		seen[s] = struct{}{}
		answer.Sources = append(answer.Sources, s)
	}
	return answer, nil
}

// cleanSource strips list markers, angle brackets and trailing
// punctuation the model may put around a cited URL.
func cleanSource(s string) string {
	s = strings.TrimLeft(strings.TrimSpace(s), "-*<> \t")
	return strings.TrimRight(s, ".;> \t")
}

func retrievedSources(results []domain.SearchResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		if r.Chunk.Source != "" {
			out = append(out, r.Chunk.Source)
		}
	}
	return out
}

package chunker

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"newslens/internal/domain"
)

// DefaultMaxChars is the default chunk length in characters.
const DefaultMaxChars = 1000

// DefaultSeparators are the split boundaries in priority order:
// paragraph break, line break, sentence end, comma.
var DefaultSeparators = []string{"\n\n", "\n", ".", ","}

// Recursive splits text on the highest-priority separator it contains and
// merges the pieces back into chunks of at most maxChars characters.
// Separators stay attached to the end of the piece they terminate, so the
// chunks of a document concatenate back to its exact text.
type Recursive struct {
	maxChars   int
	separators []string
}

// Option configures the recursive chunker.
type Option func(*Recursive)

// WithMaxChars sets the maximum chunk length in characters.
func WithMaxChars(n int) Option {
	return func(c *Recursive) {
		if n > 0 {
			c.maxChars = n
		}
	}
}

// WithSeparators sets the split boundaries in priority order.
func WithSeparators(seps []string) Option {
	return func(c *Recursive) {
		out := make([]string, 0, len(seps))
		for _, s := range seps {
			if s != "" {
				out = append(out, s)
			}
		}
		c.separators = out
	}
}

// NewRecursive creates a chunker with the given options.
func NewRecursive(opts ...Option) *Recursive {
	c := &Recursive{
		maxChars:   DefaultMaxChars,
		separators: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxChars returns the configured maximum chunk length.
func (c *Recursive) MaxChars() int { return c.maxChars }

// Chunk splits a document into chunks tagged with its ID and source.
func (c *Recursive) Chunk(document domain.Document) ([]domain.Chunk, error) {
	if document.Content == "" {
		return nil, nil
	}
	pieces := c.Split(document.Content)
	chunks := make([]domain.Chunk, 0, len(pieces))
	for idx, text := range pieces {
		chunks = append(chunks, domain.Chunk{
			DocumentID: document.ID,
			ChunkID:    document.ID + ":" + strconv.Itoa(idx),
			Source:     document.Source,
			Text:       text,
			Index:      idx,
		})
	}
	return chunks, nil
}

// Split returns the chunk texts for text.
func (c *Recursive) Split(text string) []string {
	if text == "" {
		return nil
	}
	return c.split(text, c.separators)
}

func (c *Recursive) split(text string, seps []string) []string {
	if utf8.RuneCountInString(text) <= c.maxChars {
		return []string{text}
	}
	sep := ""
	var rest []string
	for i, s := range seps {
		if strings.Contains(text, s) {
			sep = s
			rest = seps[i+1:]
			break
		}
	}
	if sep == "" {
		return hardCut(text, c.maxChars)
	}

	var (
		out    []string
		cur    strings.Builder
		curLen int
	)
	flush := func() {
		if curLen > 0 {
			out = append(out, cur.String())
			cur.Reset()
			curLen = 0
		}
	}
	for _, piece := range strings.SplitAfter(text, sep) {
		if piece == "" {
			continue
		}
		n := utf8.RuneCountInString(piece)
		if n > c.maxChars {
			flush()
			out = append(out, c.split(piece, rest)...)
			continue
		}
		if curLen+n > c.maxChars {
			flush()
		}
		cur.WriteString(piece)
		curLen += n
	}
	flush()
	return out
}

// hardCut splits text every size runes.
func hardCut(text string, size int) []string {
	var out []string
	start, count := 0, 0
	for i := range text {
		if count == size {
			out = append(out, text[start:i])
			start, count = i, 0
		}
		count++
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

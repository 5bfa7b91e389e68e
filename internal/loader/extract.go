package loader

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var skipElements = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Svg:      true,
	atom.Template: true,
	atom.Iframe:   true,
}

// paragraph-level elements end with a blank line, so the chunker's
// paragraph separator lines up with them.
var paragraphElements = map[atom.Atom]bool{
	atom.P: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Blockquote: true, atom.Pre: true, atom.Table: true, atom.Ul: true, atom.Ol: true,
	atom.Figure: true, atom.Hr: true,
}

var lineElements = map[atom.Atom]bool{
	atom.Div: true, atom.Li: true, atom.Tr: true, atom.Br: true, atom.Section: true, atom.Article: true,
	atom.Header: true, atom.Footer: true, atom.Main: true, atom.Aside: true, atom.Nav: true,
	atom.Figcaption: true, atom.Dt: true, atom.Dd: true,
}

// extractHTML returns the document title and readable text of an HTML page.
func extractHTML(r io.Reader) (title, text string, err error) {
	root, err := html.Parse(r)
	if err != nil {
		return "", "", err
	}
	title = findTitle(root)

	var tb textBuilder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipElements[n.DataAtom] {
			return
		}
		if n.Type == html.TextNode {
			tb.text(n.Data)
			return
		}
		brk := 0
		if n.Type == html.ElementNode {
			switch {
			case paragraphElements[n.DataAtom]:
				brk = 2
			case lineElements[n.DataAtom]:
				brk = 1
			}
		}
		tb.lineBreak(brk)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		tb.lineBreak(brk)
	}
	walk(root)
	return title, tb.String(), nil
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		var sb strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				sb.WriteString(c.Data)
			}
		}
		return strings.Join(strings.Fields(sb.String()), " ")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

// textBuilder collapses whitespace inside text runs and keeps at most
// two newlines between blocks.
type textBuilder struct {
	sb       strings.Builder
	started  bool
	space    bool
	newlines int
}

func (t *textBuilder) text(s string) {
	if s == "" {
		return
	}
	if isSpace(s[0]) {
		t.space = true
	}
	for _, word := range strings.Fields(s) {
		if t.started {
			switch {
			case t.newlines > 0:
				t.sb.WriteString(strings.Repeat("\n", t.newlines))
			case t.space:
				t.sb.WriteByte(' ')
			}
		}
		t.sb.WriteString(word)
		t.started = true
		t.newlines = 0
		t.space = true
	}
	t.space = isSpace(s[len(s)-1])
}

func (t *textBuilder) lineBreak(n int) {
	if n > t.newlines {
		t.newlines = n
	}
}

func (t *textBuilder) String() string { return t.sb.String() }

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\f':
		return true
	}
	return false
}

// normalizePlain trims trailing spaces on each line and collapses runs of
// blank lines into a single paragraph break.
func normalizePlain(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	var sb strings.Builder
	blank := 0
	for _, ln := range lines {
		ln = strings.TrimRight(ln, " \t\r")
		if strings.TrimSpace(ln) == "" {
			blank++
			continue
		}
		if sb.Len() > 0 {
			if blank > 0 {
				sb.WriteString("\n\n")
			} else {
				sb.WriteByte('\n')
			}
		}
		sb.WriteString(ln)
		blank = 0
	}
	return sb.String()
}

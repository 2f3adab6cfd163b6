package translate

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Section is one level-3 block of a reply
type Section struct {
	Heading string
	Body    string // Raw Markdown between this heading and the next
}

// ParseSections returns the level-3 sections of a Markdown reply in order.
func ParseSections(md string) []Section {
	source := []byte(md)
	doc := markdown.Parser().Parse(text.NewReader(source))

	type mark struct {
		heading    string
		start, end int // Byte offsets of the heading line
	}
	var marks []mark

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Level != 3 {
			continue
		}
		lines := h.Lines()
		if lines.Len() == 0 {
			continue
		}
		start := lineStart(source, lines.At(0).Start)
		end := lineEnd(source, lines.At(lines.Len()-1).Stop)
		marks = append(marks, mark{heading: nodeText(h, source), start: start, end: end})
	}

	sections := make([]Section, 0, len(marks))
	for i, m := range marks {
		stop := len(source)
		if i+1 < len(marks) {
			stop = marks[i+1].start
		}
		body := ""
		if m.end < stop {
			body = strings.TrimSpace(string(source[m.end:stop]))
		}
		sections = append(sections, Section{Heading: m.heading, Body: body})
	}
	return sections
}

// SectionHeadings returns just the headings of ParseSections
func SectionHeadings(md string) []string {
	sections := ParseSections(md)
	out := make([]string, len(sections))
	for i, s := range sections {
		out[i] = s.Heading
	}
	return out
}

// MissingSections returns the expected headings not present in headings.
// Comparison ignores case and surrounding whitespace.
func MissingSections(headings []string) []string {
	have := make(map[string]bool, len(headings))
	for _, h := range headings {
		have[normalizeHeading(h)] = true
	}
	var missing []string
	for _, want := range ExpectedSections {
		if !have[normalizeHeading(want)] {
			missing = append(missing, want)
		}
	}
	return missing
}

func normalizeHeading(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// nodeText concatenates the inline text under n
func nodeText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	var walk func(ast.Node)
	walk = func(node ast.Node) {
		switch t := node.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(source))
			if t.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		default:
			for c := node.FirstChild(); c != nil; c = c.NextSibling() {
				walk(c)
			}
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		walk(c)
	}
	return strings.TrimSpace(buf.String())
}

func lineStart(source []byte, pos int) int {
	if i := bytes.LastIndexByte(source[:pos], '\n'); i >= 0 {
		return i + 1
	}
	return 0
}

func lineEnd(source []byte, pos int) int {
	if pos > len(source) {
		return len(source)
	}
	if i := bytes.IndexByte(source[pos:], '\n'); i >= 0 {
		return pos + i + 1
	}
	return len(source)
}

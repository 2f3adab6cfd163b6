package console

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

// TerminalRenderer renders markdown to styled terminal text
type TerminalRenderer struct {
	theme *Theme
}

// NewTerminalRenderer creates a goldmark renderer writing with theme
func NewTerminalRenderer(theme *Theme) renderer.Renderer {
	r := &TerminalRenderer{theme: theme}
	return renderer.NewRenderer(
		renderer.WithNodeRenderers(
			util.Prioritized(r, 100),
		),
	)
}

// RegisterFuncs registers rendering functions for node types
func (r *TerminalRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	// Block elements
	reg.Register(ast.KindDocument, r.renderDocument)
	reg.Register(ast.KindParagraph, r.renderParagraph)
	reg.Register(ast.KindTextBlock, r.renderTextBlock)
	reg.Register(ast.KindHeading, r.renderHeading)
	reg.Register(ast.KindCodeBlock, r.renderCodeBlock)
	reg.Register(ast.KindFencedCodeBlock, r.renderCodeBlock)
	reg.Register(ast.KindBlockquote, r.renderBlockquote)
	reg.Register(ast.KindList, r.renderList)
	reg.Register(ast.KindListItem, r.renderListItem)
	reg.Register(ast.KindThematicBreak, r.renderThematicBreak)
	reg.Register(ast.KindHTMLBlock, r.renderSkip)

	// Inline elements
	reg.Register(ast.KindText, r.renderText)
	reg.Register(ast.KindString, r.renderString)
	reg.Register(ast.KindEmphasis, r.renderEmphasis)
	reg.Register(ast.KindCodeSpan, r.renderCodeSpan)
	reg.Register(ast.KindLink, r.renderLink)
	reg.Register(ast.KindAutoLink, r.renderAutoLink)
	reg.Register(ast.KindImage, r.renderLink)
	reg.Register(ast.KindRawHTML, r.renderSkip)

	// GFM table, drawn as aligned text
	reg.Register(east.KindTable, r.renderTable)
	reg.Register(east.KindTableHeader, r.renderContinue)
	reg.Register(east.KindTableRow, r.renderContinue)
	reg.Register(east.KindTableCell, r.renderContinue)

	// GFM extras
	reg.Register(east.KindStrikethrough, r.renderStrikethrough)
	reg.Register(east.KindTaskCheckBox, r.renderTaskCheckBox)
}

func (r *TerminalRenderer) renderDocument(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	return ast.WalkContinue, nil
}

func (r *TerminalRenderer) renderContinue(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	return ast.WalkContinue, nil
}

func (r *TerminalRenderer) renderSkip(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	return ast.WalkSkipChildren, nil
}

func (r *TerminalRenderer) renderParagraph(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		w.WriteString("\n")
		if !inTightList(node) {
			w.WriteString("\n")
		}
	}
	return ast.WalkContinue, nil
}

func (r *TerminalRenderer) renderTextBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		w.WriteString("\n")
	}
	return ast.WalkContinue, nil
}

func (r *TerminalRenderer) renderHeading(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		w.WriteString(r.theme.Apply(r.theme.Heading, plainText(source, node)))
		w.WriteString("\n")
		return ast.WalkSkipChildren, nil
	}
	return ast.WalkContinue, nil
}

func (r *TerminalRenderer) renderCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		var buf strings.Builder
		lines := node.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(source))
		}
		for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
			w.WriteString("    ")
			w.WriteString(r.theme.Apply(r.theme.Code, line))
			w.WriteString("\n")
		}
		w.WriteString("\n")
		return ast.WalkSkipChildren, nil
	}
	return ast.WalkContinue, nil
}

func (r *TerminalRenderer) renderThematicBreak(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		w.WriteString(r.theme.Apply(r.theme.Quote, strings.Repeat("─", 20)))
		w.WriteString("\n\n")
	}
	return ast.WalkContinue, nil
}

func (r *TerminalRenderer) renderBlockquote(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		text := strings.TrimSpace(blockText(source, node))
		for _, line := range strings.Split(text, "\n") {
			w.WriteString(r.theme.Apply(r.theme.Quote, "│ "+line))
			w.WriteString("\n")
		}
		w.WriteString("\n")
		return ast.WalkSkipChildren, nil
	}
	return ast.WalkContinue, nil
}

func (r *TerminalRenderer) renderList(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering && node.Parent() != nil && node.Parent().Kind() == ast.KindDocument {
		w.WriteString("\n")
	}
	return ast.WalkContinue, nil
}

func (r *TerminalRenderer) renderListItem(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	depth := 0
	for p := node.Parent(); p != nil; p = p.Parent() {
		if p.Kind() == ast.KindList {
			depth++
		}
	}
	if depth > 1 {
		w.WriteString(strings.Repeat("  ", depth-1))
	}

	list := node.Parent().(*ast.List)
	if list.IsOrdered() {
		index := list.Start
		for s := node.PreviousSibling(); s != nil; s = s.PreviousSibling() {
			index++
		}
		w.WriteString(strconv.Itoa(index) + ". ")
	} else {
		w.WriteString("• ")
	}

	// A nested list starts on its own line
	if first := node.FirstChild(); first != nil && first.Kind() == ast.KindList {
		w.WriteString("\n")
	}
	return ast.WalkContinue, nil
}

func (r *TerminalRenderer) renderText(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		n := node.(*ast.Text)
		w.Write(n.Segment.Value(source))
		if n.HardLineBreak() || n.SoftLineBreak() {
			w.WriteString("\n")
		}
	}
	return ast.WalkContinue, nil
}

func (r *TerminalRenderer) renderString(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		w.Write(node.(*ast.String).Value)
	}
	return ast.WalkContinue, nil
}

func (r *TerminalRenderer) renderEmphasis(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		style := r.theme.Italic
		if node.(*ast.Emphasis).Level == 2 {
			style = r.theme.Bold
		}
		w.WriteString(r.theme.Apply(style, plainText(source, node)))
		return ast.WalkSkipChildren, nil
	}
	return ast.WalkContinue, nil
}

func (r *TerminalRenderer) renderCodeSpan(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		w.WriteString(r.theme.Apply(r.theme.Code, plainText(source, node)))
		return ast.WalkSkipChildren, nil
	}
	return ast.WalkContinue, nil
}

func (r *TerminalRenderer) renderLink(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	var dest string
	switch n := node.(type) {
	case *ast.Link:
		dest = string(n.Destination)
	case *ast.Image:
		dest = string(n.Destination)
	}
	label := plainText(source, node)
	if label == "" || label == dest {
		w.WriteString(r.theme.Apply(r.theme.Link, dest))
	} else {
		w.WriteString(label)
		w.WriteString(" (")
		w.WriteString(r.theme.Apply(r.theme.Link, dest))
		w.WriteString(")")
	}
	return ast.WalkSkipChildren, nil
}

func (r *TerminalRenderer) renderAutoLink(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		n := node.(*ast.AutoLink)
		w.WriteString(r.theme.Apply(r.theme.Link, string(n.URL(source))))
		return ast.WalkSkipChildren, nil
	}
	return ast.WalkContinue, nil
}

func (r *TerminalRenderer) renderStrikethrough(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		w.WriteString(r.theme.Apply(r.theme.Strike, plainText(source, node)))
		return ast.WalkSkipChildren, nil
	}
	return ast.WalkContinue, nil
}

func (r *TerminalRenderer) renderTaskCheckBox(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		if node.(*east.TaskCheckBox).IsChecked {
			w.WriteString("[x] ")
		} else {
			w.WriteString("[ ] ")
		}
	}
	return ast.WalkContinue, nil
}

func (r *TerminalRenderer) renderTable(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	// Column widths by display width, so accents and wide runes line up
	var colWidths []int
	for row := node.FirstChild(); row != nil; row = row.NextSibling() {
		col := 0
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			width := runewidth.StringWidth(plainText(source, cell))
			if col >= len(colWidths) {
				colWidths = append(colWidths, width)
			} else if width > colWidths[col] {
				colWidths[col] = width
			}
			col++
		}
	}

	isHeader := true
	for row := node.FirstChild(); row != nil; row = row.NextSibling() {
		w.WriteString("|")
		col := 0
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			text := plainText(source, cell)
			if col < len(colWidths) {
				text = runewidth.FillRight(text, colWidths[col])
			}
			if isHeader {
				text = r.theme.Apply(r.theme.Bold, text)
			}
			w.WriteString(" ")
			w.WriteString(text)
			w.WriteString(" |")
			col++
		}
		w.WriteString("\n")

		if isHeader {
			w.WriteString("|")
			for _, width := range colWidths {
				w.WriteString(strings.Repeat("-", width+2))
				w.WriteString("|")
			}
			w.WriteString("\n")
			isHeader = false
		}
	}
	w.WriteString("\n")
	return ast.WalkSkipChildren, nil
}

// inTightList reports whether a paragraph sits directly in a tight list item
func inTightList(node ast.Node) bool {
	item := node.Parent()
	if item == nil || item.Kind() != ast.KindListItem {
		return false
	}
	list, ok := item.Parent().(*ast.List)
	return ok && list.IsTight
}

// plainText concatenates the inline text under node
func plainText(source []byte, node ast.Node) string {
	var buf bytes.Buffer
	extractText(&buf, source, node)
	return strings.TrimSpace(buf.String())
}

func extractText(buf *bytes.Buffer, source []byte, node ast.Node) {
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch n := child.(type) {
		case *ast.Text:
			buf.Write(n.Segment.Value(source))
			if n.SoftLineBreak() || n.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(n.Value)
		case *ast.AutoLink:
			buf.Write(n.URL(source))
		default:
			extractText(buf, source, child)
		}
	}
}

// blockText joins the text of each block under node, one per line
func blockText(source []byte, node ast.Node) string {
	var lines []string
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		lines = append(lines, plainText(source, child))
	}
	return strings.Join(lines, "\n")
}

// FormatMarkdown converts markdown to terminal text styled with theme.
// If conversion fails, returns the original markdown as fallback.
func FormatMarkdown(markdown string, theme *Theme) string {
	if markdown == "" {
		return ""
	}

	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRenderer(NewTerminalRenderer(theme)),
	)

	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return markdown
	}

	result := strings.TrimRight(buf.String(), "\n")
	if strings.TrimSpace(result) == "" {
		return markdown
	}
	return result + "\n"
}

package extract

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownExtractor handles Markdown files using goldmark. ATX and setext
// headings keep their depth, a paragraph that is entirely strong text is
// set in bold, and a thematic break starts a new page.
type MarkdownExtractor struct{}

func (p *MarkdownExtractor) Extract(ctx context.Context, r io.Reader, filename string) (*Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	doc := goldmark.New().Parser().Parse(text.NewReader(src))
	f := newFlow()

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mdBlock(f, n, src)
	}
	return f.document(filename, ""), nil
}

func mdBlock(f *flow, n ast.Node, src []byte) {
	switch node := n.(type) {
	case *ast.Heading:
		f.heading(node.Level, inlineText(node, src))
	case *ast.ThematicBreak:
		f.pageBreak()
	case *ast.Paragraph:
		f.para(inlineText(node, src), isStrongOnly(node))
	case *ast.TextBlock:
		f.para(inlineText(node, src), false)
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			f.para(string(seg.Value(src)), false)
		}
	case *ast.HTMLBlock:
		// raw HTML carries no visible text we can place
	default:
		// lists, list items, blockquotes
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			mdBlock(f, c, src)
		}
	}
}

// inlineText concatenates the visible text of n's inline descendants.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch t := c.(type) {
			case *ast.Text:
				buf.Write(t.Segment.Value(src))
				if t.SoftLineBreak() || t.HardLineBreak() {
					buf.WriteByte(' ')
				}
			case *ast.String:
				buf.Write(t.Value)
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return strings.TrimSpace(buf.String())
}

func isStrongOnly(p *ast.Paragraph) bool {
	if p.ChildCount() != 1 {
		return false
	}
	em, ok := p.FirstChild().(*ast.Emphasis)
	return ok && em.Level == 2
}

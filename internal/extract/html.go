package extract

import (
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// HTMLExtractor handles HTML files. h1..h6 become headings, block text
// becomes body lines, and <title> is reported as the metadata title.
type HTMLExtractor struct{}

func (p *HTMLExtractor) Extract(ctx context.Context, r io.Reader, filename string) (*Document, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	f := newFlow()
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if level := headingLevel(n.Data); level > 0 {
				f.heading(level, textContent(n))
				return
			}

			switch n.Data {
			case "script", "style", "nav", "footer", "header", "template":
				return
			case "hr":
				f.pageBreak()
				return
			case "p", "li", "td", "th", "blockquote", "dt", "dd", "caption", "pre":
				f.para(textContent(n), isBoldOnly(n))
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	// Find <body> or use whole document.
	if body := findElement(doc, "body"); body != nil {
		walk(body)
	} else {
		walk(doc)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	meta := ""
	if t := findElement(doc, "title"); t != nil {
		meta = textContent(t)
	}
	return f.document(filename, meta), nil
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

// isBoldOnly reports whether every non-blank text node under n sits inside
// a <b> or <strong> element.
func isBoldOnly(n *html.Node) bool {
	seen := false
	var walk func(*html.Node, bool) bool
	walk = func(n *html.Node, bold bool) bool {
		if n.Type == html.ElementNode && (n.Data == "b" || n.Data == "strong") {
			bold = true
		}
		if n.Type == html.TextNode && strings.TrimSpace(n.Data) != "" {
			if !bold {
				return false
			}
			seen = true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !walk(c, bold) {
				return false
			}
		}
		return true
	}
	return walk(n, false) && seen
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

package extract

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fumiama/go-docx"
)

// DOCXExtractor handles .docx files. Title and HeadingN paragraph styles
// map to heading typography; a paragraph whose runs are all bold is set in
// bold body type.
type DOCXExtractor struct{}

func (p *DOCXExtractor) Extract(ctx context.Context, r io.Reader, filename string) (*Document, error) {
	// go-docx needs a ReaderAt+size, so write to temp file.
	tmp, err := os.CreateTemp("", "docoutline-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	defer tmp.Close()

	size, err := io.Copy(tmp, r)
	if err != nil {
		return nil, fmt.Errorf("write temp file: %w", err)
	}

	doc, err := docx.Parse(tmp, size)
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	f := newFlow()
	for _, item := range doc.Document.Body.Items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text, bold := docxParagraphText(para)
		if text == "" {
			continue
		}
		if level, ok := docxHeadingLevel(para); ok {
			f.heading(level, text)
			continue
		}
		f.para(text, bold)
	}
	return f.document(filename, ""), nil
}

// docxHeadingLevel maps the paragraph style to a heading depth, with 0 for
// the Title style.
func docxHeadingLevel(para *docx.Paragraph) (int, bool) {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0, false
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	if style == "title" {
		return 0, true
	}
	if n, ok := strings.CutPrefix(style, "heading"); ok && len(n) == 1 && n[0] >= '1' && n[0] <= '9' {
		return int(n[0] - '0'), true
	}
	return 0, false
}

// docxParagraphText returns the paragraph text and whether every run with
// visible text is bold.
func docxParagraphText(para *docx.Paragraph) (string, bool) {
	var buf strings.Builder
	allBold, hasText := true, false
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		var rt strings.Builder
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				rt.WriteString(t.Text)
			}
		}
		if strings.TrimSpace(rt.String()) != "" {
			hasText = true
			if run.RunProperties == nil || run.RunProperties.Bold == nil {
				allBold = false
			}
		}
		buf.WriteString(rt.String())
	}
	return strings.Join(strings.Fields(buf.String()), " "), hasText && allBold
}

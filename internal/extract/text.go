package extract

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// TextExtractor handles plain text files. Every non-blank line is a body
// line; blank lines add vertical space and a form feed starts a new page.
type TextExtractor struct{}

func (p *TextExtractor) Extract(ctx context.Context, r io.Reader, filename string) (*Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	f := newFlow()
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		parts := strings.Split(scanner.Text(), "\f")
		for i, part := range parts {
			if i > 0 {
				f.pageBreak()
			}
			if strings.TrimSpace(part) == "" {
				if i == 0 {
					f.space(paraSpace)
				}
				continue
			}
			for _, l := range wrap(part, wrapRunes) {
				f.line(l, bodyPt, false)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return f.document(filename, ""), nil
}

package extract

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dgallion1/docoutline/internal/doctree"
)

// CSVExtractor reads lines that were extracted elsewhere, one per row. The
// header names the columns; only "text" is required:
//
//	text,page_index,x0,y0,x1,y1,font_size,bold,source
type CSVExtractor struct{}

func (p *CSVExtractor) Extract(ctx context.Context, r io.Reader, filename string) (*Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return &Document{Name: filename}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols["text"]; !ok {
		return nil, fmt.Errorf("parse csv: missing %q column", "text")
	}

	doc := &Document{Name: filename}
	for row := 2; ; row++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		l, err := csvLine(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("csv row %d: %w", row, err)
		}
		l.ID = len(doc.Lines)
		doc.Lines = append(doc.Lines, l)
		if l.Page+1 > doc.PageCount {
			doc.PageCount = l.Page + 1
		}
	}
	return doc, nil
}

func csvLine(rec []string, cols map[string]int) (doctree.TextLine, error) {
	field := func(name string) string {
		if i, ok := cols[name]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}
	num := func(name string) (float64, error) {
		s := field(name)
		if s == "" {
			return 0, nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", name, err)
		}
		return v, nil
	}

	l := doctree.TextLine{Text: field("text"), Source: doctree.Source(field("source"))}
	var err error
	if s := field("page_index"); s != "" {
		if l.Page, err = strconv.Atoi(s); err != nil {
			return l, fmt.Errorf("page_index: %w", err)
		}
	}
	for _, c := range []struct {
		name string
		dst  *float64
	}{
		{"x0", &l.BBox.X0}, {"y0", &l.BBox.Y0}, {"x1", &l.BBox.X1}, {"y1", &l.BBox.Y1}, {"font_size", &l.FontSize},
	} {
		if *c.dst, err = num(c.name); err != nil {
			return l, err
		}
	}
	if s := field("bold"); s != "" {
		if l.Bold, err = strconv.ParseBool(s); err != nil {
			return l, fmt.Errorf("bold: %w", err)
		}
	}
	return l, nil
}

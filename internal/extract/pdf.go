package extract

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/dgallion1/docoutline/internal/doctree"
)

const defaultPageHeight = 792.0

// Pages with fewer text-layer lines than this are treated as scans and sent
// to OCR when a recognizer is registered.
const minTextLines = 5

// PDFExtractor handles PDF files. Glyph runs from the content stream are
// grouped into lines with their font size and weight; pdfcpu supplies the
// page count, the info-dictionary title and the images of scanned pages.
type PDFExtractor struct{}

func (p *PDFExtractor) Extract(ctx context.Context, r io.Reader, filename string) (*Document, error) {
	// ledongthuc/pdf requires a ReaderAt+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "docoutline-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	doc := &Document{Name: filename}
	if pages, title, err := probePDF(tmpPath); err == nil {
		doc.PageCount = pages
		doc.MetaTitle = title
	}

	f, reader, err := pdflib.Open(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	numPages := reader.NumPage()
	if numPages > doc.PageCount {
		doc.PageCount = numPages
	}
	pages := make([][]doctree.TextLine, numPages)
	sparse := map[int]float64{}
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		glyphs, height, err := pageGlyphs(reader, i)
		if err != nil {
			// one unreadable page does not sink the document
			height = defaultPageHeight
		} else {
			pages[i-1] = glyphLines(glyphs, height, i-1)
		}
		if len(pages[i-1]) < minTextLines {
			sparse[i] = height
		}
	}

	if rec := pageRecognizer(); rec != nil && len(sparse) > 0 {
		scanned, err := recognizePages(ctx, tmpPath, sparse, rec)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// OCR is best effort; on error the text layer stands.
		if err == nil {
			for nr, lines := range scanned {
				if len(lines) > len(pages[nr-1]) {
					pages[nr-1] = lines
				}
			}
		}
	}

	for _, page := range pages {
		for _, l := range page {
			l.ID = len(doc.Lines)
			doc.Lines = append(doc.Lines, l)
		}
	}
	return doc, nil
}

// recognizePages runs rec over the largest embedded image of each page in
// sparse, which maps 1-based page numbers to page heights in points. The
// lines come back scaled to page coordinates with Source=ocr.
func recognizePages(ctx context.Context, path string, sparse map[int]float64, rec PageRecognizer) (map[int][]doctree.TextLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	selected := make([]string, 0, len(sparse))
	for nr := range sparse {
		selected = append(selected, strconv.Itoa(nr))
	}
	sort.Strings(selected)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	found, err := api.ExtractImagesRaw(f, selected, conf)
	if err != nil {
		return nil, fmt.Errorf("extract page images: %w", err)
	}

	largest := map[int]model.Image{}
	for _, byObj := range found {
		for _, img := range byObj {
			if img.Thumb || img.Height <= 0 {
				continue
			}
			cur, ok := largest[img.PageNr]
			if !ok || img.Width*img.Height > cur.Width*cur.Height {
				largest[img.PageNr] = img
			}
		}
	}

	out := make(map[int][]doctree.TextLine, len(largest))
	for nr, img := range largest {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := io.ReadAll(img)
		if err != nil {
			continue
		}
		lines, err := rec(ctx, data)
		if err != nil {
			continue
		}
		out[nr] = scaleLines(lines, sparse[nr]/float64(img.Height), nr-1)
	}
	return out, nil
}

// scaleLines maps recognized pixel lines onto page coordinates.
func scaleLines(lines []doctree.TextLine, scale float64, page int) []doctree.TextLine {
	out := make([]doctree.TextLine, 0, len(lines))
	for _, l := range lines {
		l.BBox = doctree.BBox{X0: l.BBox.X0 * scale, Y0: l.BBox.Y0 * scale, X1: l.BBox.X1 * scale, Y1: l.BBox.Y1 * scale}
		l.FontSize *= scale
		l.Page = page
		l.Source = doctree.SourceOCR
		out = append(out, l)
	}
	return out
}

// probePDF reads page count and title with pdfcpu.
func probePDF(path string) (int, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return 0, "", fmt.Errorf("pdfcpu read: %w", err)
	}
	return pctx.PageCount, strings.TrimSpace(pctx.Title), nil
}

// pageGlyphs returns the page's glyphs and its height. The pdf library
// panics on some malformed streams; that is reported as an error.
func pageGlyphs(reader *pdflib.Reader, n int) (glyphs []pdflib.Text, height float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", n, r)
		}
	}()

	page := reader.Page(n)
	if page.V.IsNull() {
		return nil, 0, fmt.Errorf("page %d: missing", n)
	}
	height = defaultPageHeight
	if box := page.V.Key("MediaBox"); box.Kind() == pdflib.Array && box.Len() == 4 {
		if h := box.Index(3).Float64() - box.Index(1).Float64(); h > 0 {
			height = h
		}
	}
	return page.Content().Text, height, nil
}

// glyphLines groups glyphs sharing a baseline into lines. A horizontal gap
// wider than three font sizes splits a line so columns stay apart.
func glyphLines(glyphs []pdflib.Text, pageHeight float64, page int) []doctree.TextLine {
	var gs []pdflib.Text
	for _, g := range glyphs {
		if g.S != "" && g.FontSize > 0 {
			gs = append(gs, g)
		}
	}
	// PDF y grows upward: higher baselines come first.
	sort.SliceStable(gs, func(i, j int) bool { return gs[i].Y > gs[j].Y })

	var out []doctree.TextLine
	for start := 0; start < len(gs); {
		end := start + 1
		for end < len(gs) && gs[end-1].Y-gs[end].Y <= 0.5*math.Max(gs[end-1].FontSize, gs[end].FontSize) {
			end++
		}
		row := gs[start:end]
		sort.SliceStable(row, func(i, j int) bool { return row[i].X < row[j].X })

		from := 0
		for k := 1; k <= len(row); k++ {
			if k < len(row) && row[k].X-(row[k-1].X+row[k-1].W) <= 3*row[k].FontSize {
				continue
			}
			if l, ok := glyphRun(row[from:k], pageHeight, page); ok {
				out = append(out, l)
			}
			from = k
		}
		start = end
	}
	return out
}

// glyphRun builds one line from glyphs on a shared baseline, inserting a
// space where the advance leaves a visible gap.
func glyphRun(gs []pdflib.Text, pageHeight float64, page int) (doctree.TextLine, bool) {
	if len(gs) == 0 {
		return doctree.TextLine{}, false
	}
	var sb strings.Builder
	size, boldRunes, totalRunes := 0.0, 0, 0
	x0, x1 := gs[0].X, gs[0].X
	base := gs[0].Y
	for i, g := range gs {
		if i > 0 {
			prev := gs[i-1]
			if g.X-(prev.X+prev.W) > 0.15*g.FontSize && !strings.HasSuffix(sb.String(), " ") {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(g.S)
		n := len([]rune(g.S))
		totalRunes += n
		if isBoldFont(g.Font) {
			boldRunes += n
		}
		size = math.Max(size, g.FontSize)
		x0 = math.Min(x0, g.X)
		x1 = math.Max(x1, g.X+g.W)
		base = math.Min(base, g.Y)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return doctree.TextLine{}, false
	}
	top := pageHeight - base - size
	return doctree.TextLine{
		Text:     text,
		BBox:     doctree.BBox{X0: x0, Y0: top, X1: x1, Y1: top + size},
		Page:     page,
		FontSize: size,
		Bold:     boldRunes*2 > totalRunes,
		Source:   doctree.SourceNative,
	}, true
}

// isBoldFont guesses weight from the PostScript font name, e.g.
// "ABCDEF+Helvetica-Bold".
func isBoldFont(name string) bool {
	n := strings.ToLower(name)
	for _, w := range []string{"bold", "black", "heavy", "semibold", "demi"} {
		if strings.Contains(n, w) {
			return true
		}
	}
	return false
}

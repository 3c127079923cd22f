package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docoutline/internal/doctree"
)

// Formats without physical pages are laid out on a synthetic US Letter page
// so that the layout stage sees the same signals it gets from a PDF.
const (
	bodyPt  = 11.0
	titlePt = 26.0
	h1Pt    = 20.0
	h2Pt    = 16.0
	h3Pt    = 12.5
	deepPt  = 12.0

	pageRunes   = 3000
	pageTop     = 72.0
	pageBottom  = 720.0
	marginLeft  = 72.0
	columnWidth = 468.0
	wrapRunes   = 90
	leading     = 1.2
	paraSpace   = 6.0
)

// headingSize maps a source heading depth (0 = title) to a font size.
func headingSize(level int) float64 {
	switch level {
	case 0:
		return titlePt
	case 1:
		return h1Pt
	case 2:
		return h2Pt
	case 3:
		return h3Pt
	}
	return deepPt
}

// flow lays text out top to bottom, starting a new page after pageRunes
// runes or when the page is full.
type flow struct {
	lines []doctree.TextLine
	page  int
	y     float64
	runes int
}

func newFlow() *flow {
	return &flow{y: pageTop}
}

// heading emits a bold single line preceded by extra space.
func (f *flow) heading(level int, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	size := headingSize(level)
	if len(f.lines) > 0 {
		f.space(size)
	}
	f.line(text, size, true)
	f.space(size * 0.4)
}

// para wraps text into body lines followed by paragraph spacing.
func (f *flow) para(text string, bold bool) {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return
	}
	for _, l := range wrap(text, wrapRunes) {
		f.line(l, bodyPt, bold)
	}
	f.space(paraSpace)
}

func (f *flow) space(pts float64) {
	f.y += pts
}

// pageBreak starts a new page unless the current one has no lines yet.
func (f *flow) pageBreak() {
	if f.runes == 0 {
		return
	}
	f.page++
	f.y = pageTop
	f.runes = 0
}

func (f *flow) line(text string, size float64, bold bool) {
	n := utf8.RuneCountInString(text)
	if f.runes > 0 && (f.runes+n > pageRunes || f.y+size > pageBottom) {
		f.pageBreak()
	}
	width := float64(n) * size * 0.5
	if width > columnWidth {
		width = columnWidth
	}
	f.lines = append(f.lines, doctree.TextLine{
		ID:       len(f.lines),
		Text:     text,
		BBox:     doctree.BBox{X0: marginLeft, Y0: f.y, X1: marginLeft + width, Y1: f.y + size},
		Page:     f.page,
		FontSize: size,
		Bold:     bold,
		Source:   doctree.SourceNative,
	})
	f.y += size * leading
	f.runes += n
}

func (f *flow) document(name, metaTitle string) *Document {
	pages := 0
	if len(f.lines) > 0 {
		pages = f.lines[len(f.lines)-1].Page + 1
	}
	return &Document{Name: name, PageCount: pages, MetaTitle: metaTitle, Lines: f.lines}
}

// wrap breaks text at word boundaries into lines of at most width runes.
// A single word longer than width stays whole.
func wrap(text string, width int) []string {
	words := strings.Fields(text)
	var out []string
	var cur strings.Builder
	n := 0
	for _, w := range words {
		wn := utf8.RuneCountInString(w)
		if n > 0 && n+1+wn > width {
			out = append(out, cur.String())
			cur.Reset()
			n = 0
		}
		if n > 0 {
			cur.WriteByte(' ')
			n++
		}
		cur.WriteString(w)
		n += wn
	}
	if n > 0 {
		out = append(out, cur.String())
	}
	return out
}

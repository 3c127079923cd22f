package layout

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/docoutline/internal/doctree"
)

// edgeSpace is the whitespace ratio assumed above the first and below the
// last line of a page.
const edgeSpace = 4.0

// maxIndentBucket caps IndentBucket.
const maxIndentBucket = 5

// ScorePage computes feature vectors for the lines of one page. The lines
// must be in reading order. ScorePage reads nothing but its arguments, so
// pages can be scored concurrently.
func ScorePage(lines []doctree.TextLine, stats doctree.DocumentStatistics) []doctree.FeatureVector {
	if len(lines) == 0 {
		return nil
	}
	body := stats.BodyFontSize
	if body <= 0 {
		body = 12
	}
	gap := stats.LineGap
	if gap <= 0 {
		gap = 0.2 * body
	}

	left := lines[0].BBox.X0
	for _, l := range lines[1:] {
		left = math.Min(left, l.BBox.X0)
	}

	out := make([]doctree.FeatureVector, len(lines))
	for i, l := range lines {
		fv := doctree.FeatureVector{
			LineID:    l.ID,
			SizeRatio: l.FontSize / body,
			Bold:      l.Bold,
			Pattern:   DetectPattern(l.Text, l.IsOCR()),
			Words:     countWords(l.Text),
			Chars:     utf8.RuneCountInString(l.Text),
			Terminal:  endsSentence(l.Text),
			OCR:       l.IsOCR(),
		}

		indent := int((l.BBox.X0 - left) / (2 * body))
		fv.IndentBucket = min(max(indent, 0), maxIndentBucket)

		fv.SpaceBefore = edgeSpace
		if i > 0 {
			fv.SpaceBefore = math.Max(0, l.BBox.Y0-lines[i-1].BBox.Y1) / gap
		}
		fv.SpaceAfter = edgeSpace
		if i < len(lines)-1 {
			fv.SpaceAfter = math.Max(0, lines[i+1].BBox.Y0-l.BBox.Y1) / gap
		}
		out[i] = fv
	}
	return out
}

func endsSentence(s string) bool {
	s = strings.TrimRightFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '"' || r == '\'' || r == '”' || r == '’' || r == ')'
	})
	r, _ := utf8.DecodeLastRuneInString(s)
	switch r {
	case '.', '!', '?', ';', '。', '！', '？', '؟', '।':
		// "1." or "A." alone is a marker, not a sentence
		return utf8.RuneCountInString(s) > 3
	}
	return false
}

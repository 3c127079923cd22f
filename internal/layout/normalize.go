package layout

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/dgallion1/docoutline/internal/doctree"
)

// Normalize validates, cleans and orders raw extractor lines. In strict mode
// the first contract violation is returned as a *doctree.ContractError;
// otherwise bad values are repaired and empty lines dropped.
//
// The returned lines are in reading order with IDs renumbered 0..n-1.
func Normalize(lines []doctree.TextLine, pageCount int, cfg NormalizeConfig) ([]doctree.TextLine, error) {
	out := make([]doctree.TextLine, 0, len(lines))
	for _, l := range lines {
		if cfg.Strict {
			if err := doctree.ValidateLine(l); err != nil {
				return nil, err
			}
		}
		l, ok := repairLine(l, cfg.DefaultFontSize)
		if !ok {
			continue
		}
		out = append(out, l)
	}

	out = mergeFragments(out, cfg)
	out = dropContained(out)
	if cfg.DropRunning {
		out = dropRunning(out, pageCount, cfg.RunningBand)
	}

	SortReadingOrder(out)
	for i := range out {
		out[i].ID = i
	}
	return out, nil
}

// SortReadingOrder sorts lines by page, top edge, left edge, then ID.
func SortReadingOrder(lines []doctree.TextLine) {
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Before(lines[j]) })
}

func repairLine(l doctree.TextLine, defaultSize float64) (doctree.TextLine, bool) {
	l.Text = CleanText(l.Text)
	if l.Text == "" {
		return l, false
	}
	if l.FontSize < 0 {
		l.FontSize = -l.FontSize
	}
	if l.FontSize == 0 || math.IsNaN(l.FontSize) || math.IsInf(l.FontSize, 0) {
		l.FontSize = defaultSize
	}
	if l.Page < 0 {
		l.Page = 0
	}
	if l.BBox.X1 < l.BBox.X0 {
		l.BBox.X0, l.BBox.X1 = l.BBox.X1, l.BBox.X0
	}
	if l.BBox.Y1 < l.BBox.Y0 {
		l.BBox.Y0, l.BBox.Y1 = l.BBox.Y1, l.BBox.Y0
	}
	if l.Source == "" {
		l.Source = doctree.SourceNative
	}
	return l, true
}

// CleanText applies NFKC, collapses whitespace and squeezes runs of three or
// more identical punctuation marks (dot leaders, rules) to one. Letters and
// digits are never squeezed.
func CleanText(s string) string {
	s = norm.NFKC.String(s)
	rs := []rune(strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}), " "))

	var b strings.Builder
	b.Grow(len(rs))
	for i := 0; i < len(rs); {
		j := i + 1
		for j < len(rs) && rs[j] == rs[i] {
			j++
		}
		r := rs[i]
		if j-i >= 3 && (unicode.IsPunct(r) || unicode.IsSymbol(r)) {
			b.WriteRune(r)
		} else {
			for k := i; k < j; k++ {
				b.WriteRune(r)
			}
		}
		i = j
	}
	return strings.TrimSpace(b.String())
}

// mergeFragments joins pieces of the same visual row that an extractor
// emitted separately. Rows are built by vertical centre; within a row,
// fragments separated by more than MergeMaxGap font sizes stay apart.
func mergeFragments(lines []doctree.TextLine, cfg NormalizeConfig) []doctree.TextLine {
	if len(lines) < 2 {
		return lines
	}
	sorted := make([]doctree.TextLine, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		if a.BBox.CenterY() != b.BBox.CenterY() {
			return a.BBox.CenterY() < b.BBox.CenterY()
		}
		return a.BBox.X0 < b.BBox.X0
	})

	out := make([]doctree.TextLine, 0, len(sorted))
	var row []doctree.TextLine
	flush := func() {
		sort.SliceStable(row, func(i, j int) bool { return row[i].BBox.X0 < row[j].BBox.X0 })
		cur := row[0]
		for _, f := range row[1:] {
			size := math.Max(cur.FontSize, f.FontSize)
			gap := f.BBox.X0 - cur.BBox.X1
			if gap > cfg.MergeMaxGap*size {
				out = append(out, cur)
				cur = f
				continue
			}
			cur = joinFragments(cur, f, gap)
		}
		out = append(out, cur)
		row = row[:0]
	}

	for _, l := range sorted {
		if !hasGeometry(l.BBox) {
			if len(row) > 0 {
				flush()
			}
			out = append(out, l)
			continue
		}
		if len(row) > 0 {
			anchor := row[0]
			tol := cfg.MergeTolerance * math.Max(anchor.FontSize, l.FontSize)
			if l.Page != anchor.Page || math.Abs(l.BBox.CenterY()-anchor.BBox.CenterY()) > tol {
				flush()
			}
		}
		row = append(row, l)
	}
	if len(row) > 0 {
		flush()
	}
	return out
}

func hasGeometry(b doctree.BBox) bool {
	return b.X1 > b.X0 && b.Y1 > b.Y0
}

func joinFragments(a, b doctree.TextLine, gap float64) doctree.TextLine {
	sep := " "
	if gap < 0.1*math.Max(a.FontSize, b.FontSize) && !endsWithSpace(a.Text) {
		sep = ""
	}
	merged := a
	merged.Text = a.Text + sep + b.Text
	merged.BBox = doctree.BBox{
		X0: math.Min(a.BBox.X0, b.BBox.X0),
		Y0: math.Min(a.BBox.Y0, b.BBox.Y0),
		X1: math.Max(a.BBox.X1, b.BBox.X1),
		Y1: math.Max(a.BBox.Y1, b.BBox.Y1),
	}
	switch {
	case b.FontSize > a.FontSize:
		merged.FontSize = b.FontSize
		merged.Bold = b.Bold
	case b.FontSize == a.FontSize:
		merged.Bold = a.Bold && b.Bold
	}
	if a.IsOCR() || b.IsOCR() {
		merged.Source = doctree.SourceOCR
	}
	if b.ID < merged.ID {
		merged.ID = b.ID
	}
	return merged
}

func endsWithSpace(s string) bool {
	return strings.HasSuffix(s, " ")
}

// dropContained removes a line whose text is contained in a longer line that
// overlaps it on the same page. Duplicated text layers produce these.
func dropContained(lines []doctree.TextLine) []doctree.TextLine {
	keep := make([]bool, len(lines))
	lower := make([]string, len(lines))
	for i := range lines {
		keep[i] = true
		lower[i] = strings.ToLower(lines[i].Text)
	}
	for i := range lines {
		for j := range lines {
			if i == j || !keep[j] || lines[i].Page != lines[j].Page {
				continue
			}
			if !overlaps(lines[i].BBox, lines[j].BBox) {
				continue
			}
			li, lj := len(lower[i]), len(lower[j])
			if li < lj || (li == lj && i > j) {
				if strings.Contains(lower[j], lower[i]) {
					keep[i] = false
					break
				}
			}
		}
	}
	out := lines[:0:0]
	for i, l := range lines {
		if keep[i] {
			out = append(out, l)
		}
	}
	return out
}

func overlaps(a, b doctree.BBox) bool {
	return a.X0 < b.X1 && b.X0 < a.X1 && a.Y0 < b.Y1 && b.Y0 < a.Y1
}

// dropRunning removes running headers and footers: text that, with digits
// masked, recurs in the top or bottom band of many pages.
func dropRunning(lines []doctree.TextLine, pageCount int, band float64) []doctree.TextLine {
	type extent struct{ top, bottom float64 }
	pages := map[int]*extent{}
	for _, l := range lines {
		e, ok := pages[l.Page]
		if !ok {
			pages[l.Page] = &extent{top: l.BBox.Y0, bottom: l.BBox.Y1}
			continue
		}
		e.top = math.Min(e.top, l.BBox.Y0)
		e.bottom = math.Max(e.bottom, l.BBox.Y1)
	}
	if pageCount < len(pages) {
		pageCount = len(pages)
	}
	need := max(3, (pageCount+1)/2)
	if len(pages) < need {
		return lines
	}

	// Running text is set small; anything above the median size is kept so
	// that repeated chapter headings survive.
	sizes := make([]float64, len(lines))
	for i, l := range lines {
		sizes[i] = l.FontSize
	}
	sort.Float64s(sizes)
	limit := sizes[len(sizes)/2] * 1.05

	inBand := func(l doctree.TextLine) bool {
		if l.FontSize > limit {
			return false
		}
		e := pages[l.Page]
		h := e.bottom - e.top
		if h <= 0 {
			return false
		}
		return l.BBox.Y0 <= e.top+band*h || l.BBox.Y1 >= e.bottom-band*h
	}

	seen := map[string]map[int]bool{}
	for _, l := range lines {
		if !inBand(l) {
			continue
		}
		k := maskDigits(l.Text)
		if seen[k] == nil {
			seen[k] = map[int]bool{}
		}
		seen[k][l.Page] = true
	}

	out := lines[:0:0]
	for _, l := range lines {
		if inBand(l) && len(seen[maskDigits(l.Text)]) >= need {
			continue
		}
		out = append(out, l)
	}
	return out
}

func maskDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return '#'
		}
		return unicode.ToLower(r)
	}, s)
}

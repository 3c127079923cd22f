package layout

import (
	"math"
	"sort"
	"unicode/utf8"

	"github.com/dgallion1/docoutline/internal/doctree"
)

// EstimateBaseline computes the body font size and typical line gap of a
// document. Lines must be in reading order. The result is read-only for the
// rest of the run.
func EstimateBaseline(lines []doctree.TextLine, pageCount int, cfg BaselineConfig) doctree.DocumentStatistics {
	stats := doctree.DocumentStatistics{
		PageCount:    max(pageCount, 1),
		BodyFontSize: cfg.DefaultBody,
		LineGap:      cfg.DefaultGap,
	}
	for _, l := range lines {
		if l.Page+1 > stats.PageCount {
			stats.PageCount = l.Page + 1
		}
	}
	if len(lines) < 2 {
		stats.Fallback = true
		return stats
	}

	stats.BodyFontSize = bodySize(lines, cfg)
	if gap, ok := medianGap(lines, stats.BodyFontSize); ok {
		stats.LineGap = gap
	} else {
		stats.LineGap = 0.2 * stats.BodyFontSize
	}
	return stats
}

func bodySize(lines []doctree.TextLine, cfg BaselineConfig) float64 {
	bucket := cfg.Bucket
	if bucket <= 0 {
		bucket = 0.5
	}
	round := func(v float64) float64 { return math.Round(v/bucket) * bucket }

	counts := map[float64]int{}
	for _, l := range lines {
		if l.Bold || utf8.RuneCountInString(l.Text) < cfg.MinBodyChars {
			continue
		}
		counts[round(l.FontSize)]++
	}
	if len(counts) == 0 {
		for _, l := range lines {
			counts[round(l.FontSize)]++
		}
	}

	sizes := make([]float64, 0, len(counts))
	for s := range counts {
		sizes = append(sizes, s)
	}
	sort.Float64s(sizes)

	best, bestN := cfg.DefaultBody, 0
	for _, s := range sizes {
		// ascending scan with strict > keeps the smaller size on ties
		if counts[s] > bestN {
			best, bestN = s, counts[s]
		}
	}
	if best <= 0 {
		return cfg.DefaultBody
	}
	return best
}

// medianGap measures whitespace between consecutive lines of the same page
// and column.
func medianGap(lines []doctree.TextLine, body float64) (float64, bool) {
	var gaps []float64
	for i := 1; i < len(lines); i++ {
		prev, cur := lines[i-1], lines[i]
		if prev.Page != cur.Page {
			continue
		}
		if math.Abs(cur.BBox.X0-prev.BBox.X0) > 2*body {
			continue
		}
		g := cur.BBox.Y0 - prev.BBox.Y1
		if g > 0 {
			gaps = append(gaps, g)
		}
	}
	if len(gaps) == 0 {
		return 0, false
	}
	sort.Float64s(gaps)
	n := len(gaps)
	if n%2 == 1 {
		return gaps[n/2], true
	}
	return (gaps[n/2-1] + gaps[n/2]) / 2, true
}

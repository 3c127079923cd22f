package layout

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/dgallion1/docoutline/internal/doctree"
)

// ResolveTitle promotes at most one heading on the opening pages to TITLE.
// lines, fvs and decisions are parallel slices in reading order; decisions
// is updated in place. Lines tying the top score within TieEpsilon are
// demoted to H1 except the first, which wins.
//
// It returns the index of the title line, or -1.
func (c *Classifier) ResolveTitle(lines []doctree.TextLine, fvs []doctree.FeatureVector, decisions []Decision) int {
	r := c.Rules
	type entry struct {
		idx   int
		score float64
	}
	var eligible []entry
	top := 0.0
	for i, d := range decisions {
		if !d.Level.IsHeading() || lines[i].Page > r.TitleMaxPage {
			continue
		}
		fv := fvs[i]
		if fv.Pattern.Enumerated || fv.SizeRatio < r.TitleMinRatio {
			continue
		}
		if r.TitleMaxWords > 0 && fv.Words > r.TitleMaxWords {
			continue
		}
		s := fv.SizeRatio
		if fv.Bold {
			s += 0.2
		}
		eligible = append(eligible, entry{i, s})
		if s > top {
			top = s
		}
	}
	if len(eligible) == 0 {
		return -1
	}

	winner := -1
	for _, e := range eligible {
		if top-e.score > r.TieEpsilon {
			continue
		}
		if winner < 0 {
			winner = e.idx
			decisions[e.idx].Level = doctree.LevelTitle
			continue
		}
		decisions[e.idx].Level = doctree.LevelH1
	}
	return winner
}

// Candidates turns classified lines into heading candidates, dropping BODY
// lines, a heading that repeats the one just before it, and H1 lines that
// repeat the title text.
func Candidates(lines []doctree.TextLine, decisions []Decision) []doctree.HeadingCandidate {
	fold := cases.Fold()
	key := func(s string) string { return strings.TrimSpace(fold.String(s)) }

	title := ""
	for i, d := range decisions {
		if d.Level == doctree.LevelTitle {
			title = key(lines[i].Text)
			break
		}
	}

	var out []doctree.HeadingCandidate
	prev := ""
	for i, d := range decisions {
		if !d.Level.IsHeading() {
			continue
		}
		k := key(lines[i].Text)
		if k == prev {
			continue
		}
		if d.Level == doctree.LevelH1 && title != "" && k == title {
			continue
		}
		prev = k
		out = append(out, doctree.HeadingCandidate{
			Line:       lines[i],
			Level:      d.Level,
			Confidence: d.Confidence,
		})
	}
	return out
}

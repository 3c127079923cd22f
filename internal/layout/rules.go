package layout

import (
	"math"

	"github.com/dgallion1/docoutline/internal/doctree"
)

// Decision is the rule cascade's verdict for one line.
type Decision struct {
	Level      doctree.Level
	Confidence float64
	Score      float64
}

// Classifier applies the weighted rule cascade. It holds no state besides
// its configuration and is safe for concurrent use.
type Classifier struct {
	Rules RuleConfig
}

// NewClassifier returns a classifier using rc.
func NewClassifier(rc RuleConfig) *Classifier {
	return &Classifier{Rules: rc}
}

// Classify labels a line as BODY or one of H1..H3. TITLE is assigned later
// by ResolveTitle because it depends on the whole first page.
func (c *Classifier) Classify(fv doctree.FeatureVector) Decision {
	r := c.Rules
	if (r.MaxWords > 0 && fv.Words > r.MaxWords) || (r.MaxChars > 0 && fv.Chars > r.MaxChars) {
		return Decision{Level: doctree.LevelBody}
	}

	score := c.GateScore(fv)
	primary := fv.SizeRatio > r.RatioSmall || fv.Bold || fv.Pattern.Enumerated || fv.Pattern.Keyword
	if score < r.HeadingThreshold || !primary {
		return Decision{Level: doctree.LevelBody, Score: score}
	}

	return Decision{
		Level:      c.pickLevel(fv),
		Confidence: math.Min(1, score/r.ConfidenceScale),
		Score:      score,
	}
}

// GateScore sums the heading evidence of a line. Font size dominates;
// weight, case, enumerators and keywords add to it.
func (c *Classifier) GateScore(fv doctree.FeatureVector) float64 {
	r := c.Rules
	var score float64
	switch {
	case fv.SizeRatio > r.RatioLarge:
		score += r.PointsLarge
	case fv.SizeRatio > r.RatioMedium:
		score += r.PointsMedium
	case fv.SizeRatio > r.RatioSmall:
		score += r.PointsSmall
	}
	if fv.Bold {
		score += r.BoldPoints
	}
	if fv.Pattern.AllCaps {
		score += r.CapsPoints
	}
	if fv.Pattern.Enumerated {
		if fv.OCR {
			score += r.OCREnumPoints
		} else {
			score += r.EnumPoints
		}
	}
	if fv.Pattern.Keyword {
		score += r.KeywordPoints
	}
	if fv.Words < r.BrevityWords {
		score += r.BrevityPoints
	}
	if !fv.Terminal {
		score += r.NoTerminalPoints
	}
	if fv.SpaceBefore >= r.SpaceBeforeRatio {
		score += r.SpaceBeforePoints
	}
	return score
}

// Affinities returns how well a heading line fits H1, H2 and H3, indexed by
// level-1.
func (c *Classifier) Affinities(fv doctree.FeatureVector) [3]float64 {
	r := c.Rules
	centers := [3]float64{r.H1Center, r.H2Center, r.H3Center}

	// The outer levels are open-ended: anything at least as large as the H1
	// centre fits H1 fully, anything at most the H3 centre fits H3 fully.
	var aff [3]float64
	for i, center := range centers {
		dist := math.Abs(fv.SizeRatio - center)
		if (i == 0 && fv.SizeRatio >= center) || (i == 2 && fv.SizeRatio <= center) {
			dist = 0
		}
		aff[i] = r.SizeWeight * (1 - math.Min(1, dist/r.SizeWidth))
	}

	if fv.Pattern.Enumerated && fv.Pattern.EnumDepth > 0 {
		d := min(fv.Pattern.EnumDepth, int(doctree.MaxDepth))
		aff[d-1] += r.EnumWeight
	}
	switch {
	case fv.Pattern.Keyword && fv.Pattern.KeywordRank == rankChapter:
		aff[0] += r.KeywordWeight
	case fv.Pattern.Keyword && fv.Pattern.KeywordRank == rankSection:
		aff[1] += r.KeywordWeight
	}

	// indentation and whitespace only refine
	aff[min(fv.IndentBucket, 2)] += r.IndentWeight
	if fv.SpaceBefore >= 2*r.SpaceBeforeRatio {
		aff[0] += r.SpaceWeight
	}
	return aff
}

// pickLevel chooses the best-fitting level. A shallower level within
// TieEpsilon of the best wins, so near-ties under-nest rather than over-nest.
func (c *Classifier) pickLevel(fv doctree.FeatureVector) doctree.Level {
	aff := c.Affinities(fv)
	best := 0
	for i := 1; i < len(aff); i++ {
		if aff[i] > aff[best] {
			best = i
		}
	}
	if aff[best] <= 0 {
		return doctree.LevelH3
	}
	for i := 0; i < best; i++ {
		if aff[best]-aff[i] <= c.Rules.TieEpsilon {
			return doctree.Level(i + 1)
		}
	}
	return doctree.Level(best + 1)
}

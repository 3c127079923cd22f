package escalate

import (
	"github.com/dgallion1/docoutline/internal/classifier"
	"github.com/dgallion1/docoutline/internal/doctree"
)

// Reconcile converts a validated prediction into heading candidates in
// reading order. A predicted parent counts only when it is another heading
// line that comes earlier; the child then sits one level below it. Links
// that fail that test are dropped and the predicted label stands. Only the
// first TITLE survives as TITLE.
func Reconcile(lines []doctree.TextLine, pred *classifier.Prediction) []doctree.HeadingCandidate {
	final := make([]doctree.Level, len(lines))
	for i := range final {
		final[i] = doctree.LevelBody
	}
	var out []doctree.HeadingCandidate
	seenTitle := false

	for i := range lines {
		level := pred.Labels[i].Clamp()
		if !level.IsHeading() {
			continue
		}

		if p := pred.ParentOf(i); validParent(lines, final, p, i) {
			level = (final[p] + 1).Clamp()
		}
		if level == doctree.LevelTitle {
			if seenTitle {
				level = doctree.LevelH1
			}
			seenTitle = true
		}

		final[i] = level
		out = append(out, doctree.HeadingCandidate{Line: lines[i], Level: level, Confidence: 1})
	}
	return out
}

// validParent checks p against the levels already settled for earlier
// lines, so a parent that was itself BODY is rejected.
func validParent(lines []doctree.TextLine, final []doctree.Level, p, child int) bool {
	if p < 0 || p == child || p >= len(lines) {
		return false
	}
	if !lines[p].Before(lines[child]) {
		return false
	}
	return final[p].IsHeading()
}

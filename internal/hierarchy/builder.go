// Package hierarchy rebuilds heading nesting from a flat, reading-ordered
// list of classified candidates and flattens it back for export.
package hierarchy

import (
	"sort"

	"github.com/dgallion1/docoutline/internal/doctree"
)

type stackEntry struct {
	node  int // arena index
	level doctree.Level
}

// Build nests candidates with a single pass over an explicit stack of open
// ancestors. A heading attaches to the nearest open ancestor with a
// strictly shallower level; skipped levels are not filled in.
//
// The first TITLE becomes the tree title and never enters the stack; any
// further TITLE is treated as H1. Levels outside H1..H3 are clamped.
// Candidates are stable-sorted into reading order first if needed.
func Build(cands []doctree.HeadingCandidate) *doctree.OutlineTree {
	if !inReadingOrder(cands) {
		sorted := make([]doctree.HeadingCandidate, len(cands))
		copy(sorted, cands)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Line.Before(sorted[j].Line) })
		cands = sorted
	}

	tree := &doctree.OutlineTree{Nodes: make([]doctree.OutlineNode, 0, len(cands))}
	stack := make([]stackEntry, 0, int(doctree.MaxDepth))

	for _, c := range cands {
		level := c.Level.Clamp()
		if level == doctree.LevelBody {
			continue
		}
		if level == doctree.LevelTitle {
			if !tree.HasTitle {
				tree.Title = c.Line.Text
				tree.HasTitle = true
				continue
			}
			level = doctree.LevelH1
		}

		for len(stack) > 0 && stack[len(stack)-1].level >= level {
			stack = stack[:len(stack)-1]
		}

		idx := len(tree.Nodes)
		tree.Nodes = append(tree.Nodes, doctree.OutlineNode{
			Level: level,
			Text:  c.Line.Text,
			Page:  c.Line.Page,
			Y:     c.Line.BBox.Y0,
		})
		if len(stack) == 0 {
			tree.Roots = append(tree.Roots, idx)
		} else {
			parent := stack[len(stack)-1].node
			tree.Nodes[parent].Children = append(tree.Nodes[parent].Children, idx)
		}
		stack = append(stack, stackEntry{node: idx, level: level})
	}
	return tree
}

func inReadingOrder(cands []doctree.HeadingCandidate) bool {
	for i := 1; i < len(cands); i++ {
		if cands[i].Line.Before(cands[i-1].Line) {
			return false
		}
	}
	return true
}

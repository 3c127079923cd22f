package hierarchy

import "github.com/dgallion1/docoutline/internal/doctree"

// Assemble flattens the tree in pre-order: parent before children, siblings
// left to right. Pages become 1-based. The walk uses an explicit stack, so
// depth is bounded by memory rather than the goroutine stack.
func Assemble(tree *doctree.OutlineTree) doctree.Export {
	out := doctree.Export{Outline: make([]doctree.ExportEntry, 0, len(tree.Nodes))}
	if tree.HasTitle {
		out.Title = tree.Title
	}

	stack := make([]int, 0, len(tree.Roots))
	for i := len(tree.Roots) - 1; i >= 0; i-- {
		stack = append(stack, tree.Roots[i])
	}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := tree.Nodes[idx]
		out.Outline = append(out.Outline, doctree.ExportEntry{
			Level: n.Level.String(),
			Text:  n.Text,
			Page:  n.Page + 1,
		})
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
	return out
}

// Depth returns the nesting depth of every node, indexed like tree.Nodes.
// Roots have depth 1.
func Depth(tree *doctree.OutlineTree) []int {
	depth := make([]int, len(tree.Nodes))
	stack := append([]int(nil), tree.Roots...)
	for _, r := range tree.Roots {
		depth[r] = 1
	}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range tree.Nodes[idx].Children {
			depth[c] = depth[idx] + 1
			stack = append(stack, c)
		}
	}
	return depth
}

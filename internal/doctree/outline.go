package doctree

import (
	"encoding/json"
	"io"
)

// OutlineNode is one heading in the arena. Children hold arena indices in
// reading order.
type OutlineNode struct {
	Level    Level
	Text     string
	Page     int // 0-based
	Y        float64
	Children []int
}

// OutlineTree is the reconstructed heading hierarchy. Nodes are owned by the
// arena; Roots and Children refer to them by index.
type OutlineTree struct {
	Title    string
	HasTitle bool
	Nodes    []OutlineNode
	Roots    []int
}

// Len returns the number of heading nodes, excluding the title.
func (t *OutlineTree) Len() int { return len(t.Nodes) }

// ExportEntry is one flattened outline row.
type ExportEntry struct {
	Level string `json:"level"`
	Text  string `json:"text"`
	Page  int    `json:"page"` // 1-based
}

// Export is the final document outline as written to disk or returned by
// the API.
type Export struct {
	Title   string        `json:"title"`
	Outline []ExportEntry `json:"outline"`
}

// EmptyExport returns an outline with the given title and no entries.
func EmptyExport(title string) Export {
	return Export{Title: title, Outline: []ExportEntry{}}
}

// Encode writes e as indented JSON. HTML escaping is off so headings keep
// characters such as & and < verbatim.
func (e Export) Encode(w io.Writer) error {
	if e.Outline == nil {
		e.Outline = []ExportEntry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	return enc.Encode(e)
}

package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// JSONExtractor reads a Document that was serialized by another tool.
type JSONExtractor struct{}

func (p *JSONExtractor) Extract(ctx context.Context, r io.Reader, filename string) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode json document: %w", err)
	}
	if doc.Name == "" {
		doc.Name = filename
	}
	for i := range doc.Lines {
		doc.Lines[i].ID = i
		if doc.Lines[i].Page+1 > doc.PageCount {
			doc.PageCount = doc.Lines[i].Page + 1
		}
	}
	return &doc, nil
}

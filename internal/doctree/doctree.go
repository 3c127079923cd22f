package doctree

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoLines is returned when a document yields no usable text lines.
var ErrNoLines = errors.New("no text lines")

// Source tags how a line's geometry was obtained.
type Source string

const (
	SourceNative Source = "native" // embedded text layer
	SourceOCR    Source = "ocr"    // reconstructed by OCR, coordinates are approximate
)

// BBox is a page-relative box with a top-left origin; Y grows downward.
type BBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Width returns X1-X0.
func (b BBox) Width() float64 { return b.X1 - b.X0 }

// Height returns Y1-Y0.
func (b BBox) Height() float64 { return b.Y1 - b.Y0 }

// CenterY returns the vertical midpoint.
func (b BBox) CenterY() float64 { return (b.Y0 + b.Y1) / 2 }

// TextLine is one visual line of a page. Lines are not mutated after
// normalization; later stages refer to them by ID.
type TextLine struct {
	ID       int     `json:"id"`
	Text     string  `json:"text"`
	BBox     BBox    `json:"bbox"`
	Page     int     `json:"page_index"` // 0-based
	FontSize float64 `json:"font_size"`
	Bold     bool    `json:"bold"`
	Source   Source  `json:"source,omitempty"`
}

// IsOCR reports whether the line came from OCR.
func (l TextLine) IsOCR() bool { return l.Source == SourceOCR }

// Before reports whether l precedes o in reading order: page, then top edge,
// then left edge, then input index.
func (l TextLine) Before(o TextLine) bool {
	if l.Page != o.Page {
		return l.Page < o.Page
	}
	if l.BBox.Y0 != o.BBox.Y0 {
		return l.BBox.Y0 < o.BBox.Y0
	}
	if l.BBox.X0 != o.BBox.X0 {
		return l.BBox.X0 < o.BBox.X0
	}
	return l.ID < o.ID
}

// ContractError describes an input line that violates the extractor contract.
type ContractError struct {
	LineID int
	Field  string
	Reason string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("line %d: invalid %s: %s", e.LineID, e.Field, e.Reason)
}

// ValidateLine checks a line against the input contract and returns the
// first violation found.
func ValidateLine(l TextLine) error {
	switch {
	case strings.TrimSpace(l.Text) == "":
		return &ContractError{LineID: l.ID, Field: "text", Reason: "empty after trimming"}
	case l.FontSize <= 0:
		return &ContractError{LineID: l.ID, Field: "font_size", Reason: fmt.Sprintf("%.2f is not positive", l.FontSize)}
	case l.Page < 0:
		return &ContractError{LineID: l.ID, Field: "page_index", Reason: fmt.Sprintf("%d is negative", l.Page)}
	case l.BBox.X1 < l.BBox.X0 || l.BBox.Y1 < l.BBox.Y0:
		return &ContractError{LineID: l.ID, Field: "bbox", Reason: "inverted edges"}
	}
	return nil
}

// DocumentStatistics is the per-document visual baseline. It is computed once
// and shared read-only by every page scorer.
type DocumentStatistics struct {
	PageCount    int     `json:"page_count"`
	BodyFontSize float64 `json:"body_font_size"`
	LineGap      float64 `json:"line_gap"`
	Fallback     bool    `json:"fallback"`
}

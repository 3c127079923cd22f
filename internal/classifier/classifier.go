// Package classifier defines the contract for the auxiliary heading
// classifier consulted on low-confidence documents, plus HTTP and Claude
// backed implementations.
package classifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgallion1/docoutline/internal/doctree"
)

// ErrInvalidPrediction wraps every shape or range problem in a prediction.
var ErrInvalidPrediction = errors.New("invalid prediction")

// Classifier labels every line of a document and predicts each heading's
// structural parent.
type Classifier interface {
	ClassifyAndLink(ctx context.Context, req Request) (*Prediction, error)
	Name() string
}

// Input is one line as sent to a classifier.
type Input struct {
	Index    int                   `json:"index"`
	Text     string                `json:"text"`
	Page     int                   `json:"page_index"`
	FontSize float64               `json:"font_size"`
	Bold     bool                  `json:"bold"`
	Features doctree.FeatureVector `json:"features"`
}

// Request carries the full per-document line set.
type Request struct {
	Document string  `json:"document,omitempty"`
	Lines    []Input `json:"lines"`
}

// NewRequest builds a request from parallel line and feature slices.
func NewRequest(name string, lines []doctree.TextLine, fvs []doctree.FeatureVector) Request {
	req := Request{Document: name, Lines: make([]Input, len(lines))}
	for i, l := range lines {
		in := Input{Index: i, Text: l.Text, Page: l.Page, FontSize: l.FontSize, Bold: l.Bold}
		if i < len(fvs) {
			in.Features = fvs[i]
		}
		req.Lines[i] = in
	}
	return req
}

// Prediction is a classifier's answer. Labels has one entry per request
// line. Parents[i] is the index of line i's parent or -1; when Parents is
// absent, the parent is taken from the Links score matrix.
type Prediction struct {
	Labels  []doctree.Level `json:"labels"`
	Parents []int           `json:"parents,omitempty"`
	Links   [][]float64     `json:"links,omitempty"`
}

// Validate checks the prediction against a request of n lines.
func (p *Prediction) Validate(n int) error {
	if p == nil {
		return fmt.Errorf("%w: nil", ErrInvalidPrediction)
	}
	if len(p.Labels) != n {
		return fmt.Errorf("%w: %d labels for %d lines", ErrInvalidPrediction, len(p.Labels), n)
	}
	if p.Parents != nil {
		if len(p.Parents) != n {
			return fmt.Errorf("%w: %d parents for %d lines", ErrInvalidPrediction, len(p.Parents), n)
		}
		for i, j := range p.Parents {
			if j < -1 || j >= n {
				return fmt.Errorf("%w: parent %d of line %d out of range", ErrInvalidPrediction, j, i)
			}
		}
	}
	if p.Links != nil {
		if len(p.Links) != n {
			return fmt.Errorf("%w: link matrix has %d rows for %d lines", ErrInvalidPrediction, len(p.Links), n)
		}
		for i, row := range p.Links {
			if len(row) != n {
				return fmt.Errorf("%w: link row %d has %d columns", ErrInvalidPrediction, i, len(row))
			}
		}
	}
	for i, l := range p.Labels {
		if l < doctree.LevelBody {
			p.Labels[i] = doctree.LevelBody
			continue
		}
		p.Labels[i] = l.Clamp()
	}
	return nil
}

// ParentOf returns the predicted parent of line i, or -1. Self links are
// ignored. With only a link matrix, the highest positive score among
// heading-labelled lines wins; ties go to the earlier line.
func (p *Prediction) ParentOf(i int) int {
	if p.Parents != nil {
		if j := p.Parents[i]; j != i {
			return j
		}
		return -1
	}
	if p.Links == nil {
		return -1
	}
	best, bestScore := -1, 0.0
	for j, s := range p.Links[i] {
		if j == i || s <= bestScore || !p.Labels[j].IsHeading() {
			continue
		}
		best, bestScore = j, s
	}
	return best
}

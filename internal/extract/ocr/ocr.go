// Package ocr extracts text lines from scanned page images with Tesseract.
// It needs libtesseract at build time, so it lives apart from the other
// extractors and registers itself when the binary opts in:
//
//	ocr.Register([]string{"eng"})
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/otiai10/gosseract/v2"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/dgallion1/docoutline/internal/doctree"
	"github.com/dgallion1/docoutline/internal/extract"
)

// Extensions handled by the OCR extractor.
var Extensions = []string{".png", ".jpg", ".jpeg", ".gif", ".tif", ".tiff", ".bmp", ".webp"}

// Extractor runs Tesseract over a single page image and reports one line
// per recognized text line.
type Extractor struct {
	Languages     []string
	MinConfidence float64
}

// Register installs the OCR extractor for every image extension and as the
// PDF fallback for scanned pages.
func Register(languages []string) {
	extract.Register(func() extract.Extractor {
		return &Extractor{Languages: languages}
	}, Extensions...)
	ex := &Extractor{Languages: languages}
	extract.RegisterPageOCR(ex.Recognize)
}

func (e *Extractor) Extract(ctx context.Context, r io.Reader, filename string) (*extract.Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	lines, err := e.Recognize(ctx, raw)
	if err != nil {
		return nil, err
	}
	return &extract.Document{Name: filename, PageCount: 1, Lines: lines}, nil
}

// Recognize returns the text lines of one image, in pixel coordinates on
// page 0.
func (e *Extractor) Recognize(ctx context.Context, raw []byte) ([]doctree.TextLine, error) {
	img, err := normalizeImage(raw)
	if err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()
	if len(e.Languages) > 0 {
		if err := client.SetLanguage(e.Languages...); err != nil {
			return nil, fmt.Errorf("set ocr language: %w", err)
		}
	}
	if err := client.SetImageFromBytes(img); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("tesseract OCR failed: %w", err)
	}

	var lines []doctree.TextLine
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" || b.Confidence < e.MinConfidence {
			continue
		}
		lines = append(lines, boxLine(len(lines), text, b.Box))
	}
	return lines, nil
}

// boxLine converts a pixel box into a line on page 0. The box height stands
// in for the font size; only ratios to the body size matter downstream.
func boxLine(id int, text string, box image.Rectangle) doctree.TextLine {
	return doctree.TextLine{
		ID:       id,
		Text:     text,
		BBox:     doctree.BBox{X0: float64(box.Min.X), Y0: float64(box.Min.Y), X1: float64(box.Max.X), Y1: float64(box.Max.Y)},
		FontSize: float64(box.Dy()),
		Source:   doctree.SourceOCR,
	}
}

// normalizeImage passes PNG and JPEG through and re-encodes anything else
// the registered decoders understand as PNG.
func normalizeImage(raw []byte) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if format == "png" || format == "jpeg" {
		return raw, nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

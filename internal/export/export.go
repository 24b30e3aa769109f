// Package export renders mapped field values into a printable PDF whose
// pages match the source document.
package export

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/dgallion1/fieldmark/internal/boxes"
	"github.com/dgallion1/fieldmark/internal/fields"
	"github.com/dgallion1/fieldmark/internal/geometry"
	"github.com/dgallion1/fieldmark/internal/pdfinfo"
)

// ErrNoPages is returned when the document has no pages to print on.
var ErrNoPages = errors.New("document has no pages")

const (
	fontFamily  = "Helvetica"
	maxFontSize = 12.0
	minFontSize = 4.0
	// Text fills at most this share of a box's height.
	heightFill = 0.75
)

// FilledPDF produces one page per source page at its point size, with every
// mapped field's value drawn inside its box. Fields without a value or whose
// box is gone are skipped.
func FilledPDF(info pdfinfo.Info, fs []fields.VariableField, set boxes.Set) ([]byte, error) {
	return build(info, fs, set, true)
}

func build(info pdfinfo.Info, fs []fields.VariableField, set boxes.Set, compress bool) ([]byte, error) {
	if info.PageCount() == 0 {
		return nil, ErrNoPages
	}

	pdf := fpdf.New("P", "pt", "", "")
	pdf.SetCompression(compress)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetFont(fontFamily, "", maxFontSize)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	byBox := fields.ByBox(fs)
	for n, size := range info.Pages {
		page := n + 1
		if size.Width <= 0 || size.Height <= 0 {
			size = pdfinfo.Letter
		}
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: size.Width, Ht: size.Height})

		for _, b := range set.ForPage(page) {
			f, ok := byBox[b.ID]
			if !ok || f.Value == "" {
				continue
			}
			r := geometry.ToScreen(b.Rect(), size.Width, size.Height, 1)
			drawValue(pdf, r, tr(f.Value))
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render filled pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// drawValue writes text left-aligned and vertically centred in r, shrinking
// the font until it fits the box width.
func drawValue(pdf *fpdf.Fpdf, r geometry.Rect, text string) {
	size := r.Height * heightFill
	if size > maxFontSize {
		size = maxFontSize
	}
	pdf.SetFontSize(size)
	if w := pdf.GetStringWidth(text); w > r.Width && w > 0 {
		size *= r.Width / w
	}
	if size < minFontSize {
		size = minFontSize
	}
	pdf.SetFontSize(size)
	pdf.SetXY(r.X, r.Y)
	pdf.CellFormat(r.Width, r.Height, text, "", 0, "LM", false, 0, "")
}

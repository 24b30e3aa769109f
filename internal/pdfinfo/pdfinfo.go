// Package pdfinfo reads the page geometry and text layer of an uploaded PDF.
package pdfinfo

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrNotPDF is returned for uploads that cannot be opened as a PDF.
var ErrNotPDF = errors.New("not a PDF document")

// PointsPerInch is the PDF user-space resolution.
const PointsPerInch = 72.0

// DefaultDPI renders one point as one pixel, matching a browser page
// renderer at zoom 1.
const DefaultDPI = 72.0

// Letter is used when a page size is unknown.
var Letter = PageSize{Width: 612, Height: 792}

// PageSize is a page's visible size in points.
type PageSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Info describes a PDF document.
type Info struct {
	Pages []PageSize `json:"pages"`
	// Text holds the plain text of each page, empty where the text layer is
	// missing or unreadable.
	Text []string `json:"-"`
}

// PageCount returns the number of pages.
func (i Info) PageCount() int { return len(i.Pages) }

// Page returns the size of the 1-based page n.
func (i Info) Page(n int) (PageSize, bool) {
	if n < 1 || n > len(i.Pages) {
		return PageSize{}, false
	}
	return i.Pages[n-1], true
}

// PixelSize returns the rendered size of page n at dpi. Unknown pages fall
// back to Letter.
func (i Info) PixelSize(n int, dpi float64) (w, h float64) {
	p, ok := i.Page(n)
	if !ok {
		p = Letter
	}
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return p.Width * dpi / PointsPerInch, p.Height * dpi / PointsPerInch
}

// PageText returns the text of page n, or "".
func (i Info) PageText(n int) string {
	if n < 1 || n > len(i.Text) {
		return ""
	}
	return i.Text[n-1]
}

// Inspect reads page sizes with pdfcpu and the text layer with
// ledongthuc/pdf. A document whose text layer cannot be read is still
// accepted.
func Inspect(data []byte) (Info, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF-")) {
		return Info{}, ErrNotPDF
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return Info{}, fmt.Errorf("%w: page count: %v", ErrNotPDF, err)
	}
	dims, err := ctx.PageDims()
	if err != nil {
		return Info{}, fmt.Errorf("%w: page dimensions: %v", ErrNotPDF, err)
	}

	info := Info{Pages: make([]PageSize, len(dims))}
	for i, d := range dims {
		info.Pages[i] = PageSize{Width: d.Width, Height: d.Height}
	}
	info.Text = pageText(data, len(info.Pages))
	return info, nil
}

func pageText(data []byte, pages int) []string {
	out := make([]string, pages)
	r, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return out
	}
	n := r.NumPage()
	if n > pages {
		n = pages
	}
	for i := 1; i <= n; i++ {
		out[i-1] = readPage(r, i)
	}
	return out
}

// readPage recovers from panics inside the text decoder, which happen on
// some malformed content streams.
func readPage(r *pdflib.Reader, n int) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	page := r.Page(n)
	if page.V.IsNull() {
		return ""
	}
	t, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(t)
}

// Package boxes holds the extracted field regions of a loaded document.
package boxes

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dgallion1/fieldmark/internal/geometry"
)

// Box is a rectangular region on one page in normalized 0-1000 coordinates.
// X and Y are not clamped: a box may sit partly off page while it is dragged.
type Box struct {
	ID     string  `json:"id"`
	Page   int     `json:"page"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Text   string  `json:"text"`
}

// Rect returns the box geometry.
func (b Box) Rect() geometry.Rect {
	return geometry.Rect{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height}
}

// Page is one page of extraction results.
type Page struct {
	Boxes []Box `json:"boxes"`
}

// Result is the payload produced by the box extraction service.
type Result struct {
	Pages []Page `json:"pages"`
}

// Boxes flattens the result in page order, then extraction order.
func (r Result) Boxes() []Box {
	var out []Box
	for _, p := range r.Pages {
		out = append(out, p.Boxes...)
	}
	return out
}

// AssignIDs gives every box without an id the id box-{page}-{index}, where
// index counts from zero within the page. Existing ids are kept unless they
// collide with an earlier box, in which case a suffix is added.
func AssignIDs(r Result) Result {
	seen := make(map[string]bool)
	out := Result{Pages: make([]Page, len(r.Pages))}
	for pi, p := range r.Pages {
		pageBoxes := make([]Box, len(p.Boxes))
		for bi, b := range p.Boxes {
			if b.Page <= 0 {
				b.Page = pi + 1
			}
			id := b.ID
			if id == "" {
				id = fmt.Sprintf("box-%d-%d", b.Page, bi)
			}
			base := id
			for n := 2; seen[id]; n++ {
				id = fmt.Sprintf("%s-%d", base, n)
			}
			seen[id] = true
			b.ID = id
			pageBoxes[bi] = b
		}
		out.Pages[pi] = Page{Boxes: pageBoxes}
	}
	return out
}

// Patch carries the coordinate fields of a manual or drag edit. Nil fields
// are left untouched.
type Patch struct {
	X      *float64
	Y      *float64
	Width  *float64
	Height *float64
}

// Empty reports whether the patch would change nothing.
func (p Patch) Empty() bool {
	return p.X == nil && p.Y == nil && p.Width == nil && p.Height == nil
}

// ParseCoordinate parses a value typed into a coordinate field. Input that is
// not a finite number reports ok=false and must be ignored by the caller.
func ParseCoordinate(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

package extract

import (
	"math"
	"regexp"
	"strings"

	"github.com/dgallion1/fieldmark/internal/boxes"
)

// MaxBoxText bounds the label text kept per box.
const MaxBoxText = 300

var injectionPattern = regexp.MustCompile(
	`(?i)(ignore\s+(previous|all|above)|system\s*prompt|you\s+are\s+now|` +
		`act\s+as\s+|pretend\s+|forget\s+(everything|all)|override|` +
		`new\s+instructions)`,
)

// ValidateBox normalizes a box returned by the model and reports whether it
// is usable. Boxes need finite coordinates and a positive size. Text that
// looks like a prompt injection is blanked since box text is later fed back
// to the mapping prompt.
func ValidateBox(b *boxes.Box) bool {
	if b == nil {
		return false
	}
	for _, v := range []float64{b.X, b.Y, b.Width, b.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	if b.Width <= 0 || b.Height <= 0 {
		return false
	}
	b.ID = ""
	b.Text = strings.TrimSpace(b.Text)
	b.Text = cut(b.Text, MaxBoxText)
	if injectionPattern.MatchString(b.Text) {
		b.Text = ""
	}
	return true
}

// ValidateResult drops unusable boxes and defaults each box's page to the
// page it was listed under. It returns the cleaned result and the number of
// boxes dropped.
func ValidateResult(r boxes.Result) (boxes.Result, int) {
	out := boxes.Result{Pages: make([]boxes.Page, len(r.Pages))}
	dropped := 0
	for pi, p := range r.Pages {
		kept := make([]boxes.Box, 0, len(p.Boxes))
		for _, b := range p.Boxes {
			if !ValidateBox(&b) {
				dropped++
				continue
			}
			if b.Page <= 0 {
				b.Page = pi + 1
			}
			kept = append(kept, b)
		}
		out.Pages[pi] = boxes.Page{Boxes: kept}
	}
	return out, dropped
}

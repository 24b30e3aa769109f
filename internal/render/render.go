// Package render projects boxes, selection and field state onto the paint
// instructions a canvas client draws for one page.
package render

import (
	"github.com/dgallion1/fieldmark/internal/boxes"
	"github.com/dgallion1/fieldmark/internal/fields"
	"github.com/dgallion1/fieldmark/internal/geometry"
	"github.com/dgallion1/fieldmark/internal/selection"
)

// Colors are CSS color strings so the browser can hand them to the 2D
// context unchanged.
const (
	ColorUnmapped = "#ef4444"
	ColorSelected = "#3b82f6"
	ColorMapped   = "#16a34a"
	FillMapped    = "rgba(22, 163, 74, 0.15)"
	LineWidth     = 2.0
	SelectedWidth = 3.0
	LabelFontPx   = 12.0
)

// Kind tells the client how to paint an instruction.
type Kind string

const (
	KindOutline Kind = "outline"
	KindField   Kind = "field"
)

// Instruction is one rectangle to paint, in device pixels.
type Instruction struct {
	BoxID     string        `json:"boxId"`
	Kind      Kind          `json:"kind"`
	Rect      geometry.Rect `json:"rect"`
	Stroke    string        `json:"stroke"`
	Fill      string        `json:"fill,omitempty"`
	LineWidth float64       `json:"lineWidth"`
	Label     string        `json:"label,omitempty"`
	LabelX    float64       `json:"labelX,omitempty"`
	LabelY    float64       `json:"labelY,omitempty"`
	FontPx    float64       `json:"fontPx,omitempty"`
	Selected  bool          `json:"selected,omitempty"`
}

// Input is everything Build reads.
type Input struct {
	Boxes         boxes.Set
	Viewport      selection.Viewport
	SelectedID    string
	Fields        []fields.VariableField
	Unmapped      []string
	ShowVariables bool
}

// Build returns the paint instructions for the boxes on the viewport's page,
// in store order. It has no side effects.
func Build(in Input) []Instruction {
	vp := in.Viewport
	byBox := fields.ByBox(in.Fields)
	unmapped := make(map[string]bool, len(in.Unmapped))
	for _, id := range in.Unmapped {
		unmapped[id] = true
	}

	out := []Instruction{}
	for _, b := range in.Boxes.ForPage(vp.Page) {
		screen := geometry.ToScreen(b.Rect(), vp.Width, vp.Height, vp.Scale)
		selected := b.ID == in.SelectedID

		if in.ShowVariables {
			if f, ok := byBox[b.ID]; ok {
				out = append(out, fieldInstruction(b.ID, screen, f, selected))
				continue
			}
			if !unmapped[b.ID] {
				continue
			}
		}
		out = append(out, outline(b.ID, screen, selected))
	}
	return out
}

func outline(id string, r geometry.Rect, selected bool) Instruction {
	ins := Instruction{
		BoxID:     id,
		Kind:      KindOutline,
		Rect:      r,
		Stroke:    ColorUnmapped,
		LineWidth: LineWidth,
	}
	if selected {
		ins.Stroke = ColorSelected
		ins.LineWidth = SelectedWidth
		ins.Selected = true
	}
	return ins
}

func fieldInstruction(id string, r geometry.Rect, f fields.VariableField, selected bool) Instruction {
	cx, cy := r.Center()
	return Instruction{
		BoxID:     id,
		Kind:      KindField,
		Rect:      r,
		Stroke:    ColorMapped,
		Fill:      FillMapped,
		LineWidth: LineWidth,
		Label:     Label(f),
		LabelX:    cx,
		LabelY:    cy,
		FontPx:    LabelFontPx,
		Selected:  selected,
	}
}

// Label is the text drawn for a mapped field: its value, or its name in
// brackets while the value is empty.
func Label(f fields.VariableField) string {
	if f.Value != "" {
		return f.Value
	}
	return "[" + f.Name + "]"
}

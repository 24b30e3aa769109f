package session

import (
	"fmt"

	"github.com/dgallion1/fieldmark/internal/boxes"
	"github.com/dgallion1/fieldmark/internal/fields"
	"github.com/dgallion1/fieldmark/internal/render"
	"github.com/dgallion1/fieldmark/internal/selection"
)

// PointerType is the kind of pointer event forwarded by the canvas.
type PointerType string

const (
	PointerDown  PointerType = "down"
	PointerMove  PointerType = "move"
	PointerUp    PointerType = "up"
	PointerLeave PointerType = "leave"
)

// PointerEvent is a pointer event in canvas pixels.
type PointerEvent struct {
	Type PointerType `json:"type"`
	X    float64     `json:"x"`
	Y    float64     `json:"y"`
}

// Interaction reports the selection after an event.
type Interaction struct {
	State      selection.State `json:"state"`
	SelectedID string          `json:"selectedBoxId,omitempty"`
	PendingID  string          `json:"pendingBoxId,omitempty"`
	Page       int             `json:"page"`
	// NavigateTo is set when the page renderer has to switch pages before
	// the selection becomes visible.
	NavigateTo int `json:"navigateTo,omitempty"`
	// Moved is the dragged box after a move.
	Moved *boxes.Box `json:"moved,omitempty"`
}

func (s *Session) interaction() Interaction {
	return Interaction{
		State:      s.sel.State(),
		SelectedID: s.sel.Selected(),
		PendingID:  s.sel.Pending(),
		Page:       s.sel.Viewport().Page,
	}
}

// PageRendered acknowledges that the page renderer has drawn vp.
func (s *Session) PageRendered(vp selection.Viewport) (Interaction, error) {
	if !vp.Valid() {
		return Interaction{}, ErrInvalidViewport
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sel.PageRendered(s.boxes, vp) {
		s.log.Debug("deferred selection applied", "box_id", s.sel.Selected(), "page", vp.Page)
	}
	s.touch()
	return s.interaction(), nil
}

// Pointer feeds one pointer event to the selection controller.
func (s *Session) Pointer(ev PointerEvent) (Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var moved *boxes.Box
	switch ev.Type {
	case PointerDown:
		s.sel.PointerDown(s.boxes, ev.X, ev.Y)
	case PointerMove:
		next, changed := s.sel.PointerMove(s.boxes, ev.X, ev.Y)
		s.boxes = next
		if changed {
			if b, ok := s.boxes.Get(s.sel.Selected()); ok {
				moved = &b
			}
		}
	case PointerUp:
		s.sel.PointerUp()
	case PointerLeave:
		s.sel.PointerLeave()
	default:
		return Interaction{}, fmt.Errorf("%w: %q", ErrInvalidPointer, ev.Type)
	}
	s.touch()
	out := s.interaction()
	out.Moved = moved
	return out, nil
}

// Select selects a box by id, possibly on another page.
func (s *Session) Select(id string) (Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nav, ok := s.sel.Select(s.boxes, id)
	if !ok {
		return Interaction{}, fmt.Errorf("%w: %s", ErrUnknownBox, id)
	}
	s.touch()
	out := s.interaction()
	out.NavigateTo = nav
	return out, nil
}

// ClearSelection returns the controller to idle.
func (s *Session) ClearSelection() Interaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel.Clear()
	s.touch()
	return s.interaction()
}

// BoxEdit carries raw coordinate input from the box editor. Values that do
// not parse as numbers are ignored.
type BoxEdit struct {
	X, Y, Width, Height *string
}

// EditBox applies manual coordinate edits to a box.
func (s *Session) EditBox(id string, e BoxEdit) (boxes.Box, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.boxes.Get(id); !ok {
		return boxes.Box{}, fmt.Errorf("%w: %s", ErrUnknownBox, id)
	}
	p := boxes.Patch{
		X:      parse(e.X),
		Y:      parse(e.Y),
		Width:  parse(e.Width),
		Height: parse(e.Height),
	}
	if !p.Empty() {
		if next, ok := s.boxes.Update(id, p); ok {
			s.boxes = next
			s.touch()
		}
	}
	b, _ := s.boxes.Get(id)
	return b, nil
}

func parse(in *string) *float64 {
	if in == nil {
		return nil
	}
	v, ok := boxes.ParseCoordinate(*in)
	if !ok {
		return nil
	}
	return &v
}

// AddField appends a manually created field.
func (s *Session) AddField(name string) fields.VariableField {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := fields.New(name)
	s.fields = append(s.clonedFields(), f)
	s.refreshUnmapped()
	return f
}

// UpdateField edits a field. Pointing two fields at one box by hand is
// allowed.
func (s *Session) UpdateField(id string, p fields.FieldPatch) (fields.VariableField, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := fields.Update(s.fields, id, p)
	if !ok {
		return fields.VariableField{}, fmt.Errorf("%w: %s", ErrUnknownField, id)
	}
	s.fields = next
	s.refreshUnmapped()
	for _, f := range next {
		if f.ID == id {
			return f, nil
		}
	}
	return fields.VariableField{}, fmt.Errorf("%w: %s", ErrUnknownField, id)
}

// RemoveField deletes a field.
func (s *Session) RemoveField(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := fields.Remove(s.fields, id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, id)
	}
	s.fields = next
	s.refreshUnmapped()
	return nil
}

// RemoveAllFields deletes every field.
func (s *Session) RemoveAllFields() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields = fields.RemoveAll()
	s.refreshUnmapped()
}

func (s *Session) clonedFields() []fields.VariableField {
	out := make([]fields.VariableField, len(s.fields), len(s.fields)+1)
	copy(out, s.fields)
	return out
}

func (s *Session) refreshUnmapped() {
	s.unmapped = fields.Unmapped(s.fields, s.boxes)
	s.touch()
}

// SetShowVariables switches between the variables view and the box view.
func (s *Session) SetShowVariables(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.showVariables = on
	s.touch()
}

// Frame is one consistent set of paint instructions and the viewport they
// were computed for.
type Frame struct {
	Viewport      selection.Viewport   `json:"viewport"`
	ShowVariables bool                 `json:"showVariables"`
	Instructions  []render.Instruction `json:"instructions"`
}

// Render returns the paint instructions for the current page.
func (s *Session) Render() []render.Instruction {
	return s.Frame().Instructions
}

// Frame builds the current page's instructions under one lock, so the
// reported viewport always matches them.
func (s *Session) Frame() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	vp := s.sel.Viewport()
	return Frame{
		Viewport:      vp,
		ShowVariables: s.showVariables,
		Instructions: render.Build(render.Input{
			Boxes:         s.boxes,
			Viewport:      vp,
			SelectedID:    s.sel.Selected(),
			Fields:        s.fields,
			Unmapped:      s.unmapped,
			ShowVariables: s.showVariables,
		}),
	}
}

// Package selection tracks the selected box and turns pointer drags into
// normalized-space box moves.
package selection

import (
	"github.com/dgallion1/fieldmark/internal/boxes"
	"github.com/dgallion1/fieldmark/internal/geometry"
)

// State is the controller's interaction state.
type State string

const (
	StateIdle        State = "idle"
	StateBoxSelected State = "box_selected"
	StateDragging    State = "dragging"
)

// Viewport describes the page as the page renderer last drew it.
type Viewport struct {
	Page   int     `json:"page"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Scale  float64 `json:"scale"`
}

// Valid reports whether the viewport can be used for coordinate transforms.
func (v Viewport) Valid() bool {
	return v.Page >= 1 && v.Width > 0 && v.Height > 0 && v.Scale > 0
}

// Controller is the selection and drag state machine. It is not safe for
// concurrent use; the owning session serializes access.
type Controller struct {
	viewport Viewport
	state    State
	selected string
	lastX    float64
	lastY    float64

	// pending is a selection waiting for its page to be rendered.
	pending string
}

// New returns an idle controller for the given viewport.
func New(vp Viewport) *Controller {
	return &Controller{viewport: vp, state: StateIdle}
}

// Viewport returns the last acknowledged viewport.
func (c *Controller) Viewport() Viewport { return c.viewport }

// State returns the interaction state.
func (c *Controller) State() State { return c.state }

// Selected returns the selected box id, or "" when idle.
func (c *Controller) Selected() string { return c.selected }

// Pending returns the id of a selection waiting for a page render.
func (c *Controller) Pending() string { return c.pending }

// HitTest returns the first box on the current page, in store order, whose
// screen rectangle contains the point. Overlapping boxes resolve to the one
// inserted first.
func (c *Controller) HitTest(set boxes.Set, x, y float64) (boxes.Box, bool) {
	vp := c.viewport
	for _, b := range set.ForPage(vp.Page) {
		if geometry.ToScreen(b.Rect(), vp.Width, vp.Height, vp.Scale).Contains(x, y) {
			return b, true
		}
	}
	return boxes.Box{}, false
}

// PointerDown handles a press at canvas pixel (x, y). Pressing on the
// selected box starts a drag, pressing on another box selects it and
// pressing on empty canvas clears the selection.
func (c *Controller) PointerDown(set boxes.Set, x, y float64) {
	c.pending = ""
	hit, ok := c.HitTest(set, x, y)
	if !ok {
		c.Clear()
		return
	}
	if c.state != StateIdle && hit.ID == c.selected {
		c.state = StateDragging
		c.lastX, c.lastY = x, y
		return
	}
	c.selected = hit.ID
	c.state = StateBoxSelected
}

// PointerMove moves the dragged box by the pointer delta since the previous
// event and returns the updated set. Outside a drag the set is returned as is
// with changed=false.
func (c *Controller) PointerMove(set boxes.Set, x, y float64) (next boxes.Set, changed bool) {
	if c.state != StateDragging {
		return set, false
	}
	vp := c.viewport
	dx, dy := geometry.NormalizedDelta(x-c.lastX, y-c.lastY, vp.Width, vp.Height, vp.Scale)
	c.lastX, c.lastY = x, y
	if dx == 0 && dy == 0 {
		return set, false
	}
	next, ok := set.Translate(c.selected, dx, dy)
	if !ok {
		// The document was replaced under the drag.
		c.Clear()
		return set, false
	}
	return next, true
}

// PointerUp ends a drag, keeping the box selected.
func (c *Controller) PointerUp() {
	if c.state == StateDragging {
		c.state = StateBoxSelected
	}
}

// PointerLeave behaves like PointerUp.
func (c *Controller) PointerLeave() { c.PointerUp() }

// Select selects a box by id. When the box lives on another page the
// selection is parked until PageRendered reports that page, and the page to
// navigate to is returned.
func (c *Controller) Select(set boxes.Set, id string) (navigateTo int, ok bool) {
	b, found := set.Get(id)
	if !found {
		return 0, false
	}
	if b.Page != c.viewport.Page {
		c.Clear()
		c.pending = id
		return b.Page, true
	}
	c.pending = ""
	c.selected = id
	c.state = StateBoxSelected
	return 0, true
}

// Defer parks a selection until the page holding it is rendered. Restores
// use it because the page has not been drawn yet when state is rebuilt.
func (c *Controller) Defer(id string) {
	c.Clear()
	c.pending = id
}

// PageRendered is the page renderer's acknowledgement that vp is on screen.
// A pending selection on that page becomes the active selection; the return
// value reports whether that happened.
func (c *Controller) PageRendered(set boxes.Set, vp Viewport) bool {
	if vp.Page != c.viewport.Page && c.state == StateDragging {
		c.state = StateBoxSelected
	}
	c.viewport = vp
	if c.pending == "" {
		return false
	}
	b, ok := set.Get(c.pending)
	if !ok {
		c.pending = ""
		return false
	}
	if b.Page != vp.Page {
		return false
	}
	c.selected = c.pending
	c.pending = ""
	c.state = StateBoxSelected
	return true
}

// Clear drops the selection and any pending selection.
func (c *Controller) Clear() {
	c.selected = ""
	c.pending = ""
	c.state = StateIdle
}

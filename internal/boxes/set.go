package boxes

// Set is an immutable, insertion-ordered collection of boxes. Updates return
// a new Set and leave the receiver unchanged, so a caller holding an older
// Set never observes a later edit.
type Set struct {
	boxes []Box
	index map[string]int
}

// LoadPages builds a Set from extraction pages, replacing any prior state.
func LoadPages(pages []Page) Set {
	var all []Box
	for _, p := range pages {
		all = append(all, p.Boxes...)
	}
	return newSet(all)
}

func newSet(all []Box) Set {
	s := Set{
		boxes: all,
		index: make(map[string]int, len(all)),
	}
	for i, b := range all {
		if _, dup := s.index[b.ID]; !dup {
			s.index[b.ID] = i
		}
	}
	return s
}

// Len returns the number of boxes.
func (s Set) Len() int { return len(s.boxes) }

// All returns a copy of every box in insertion order.
func (s Set) All() []Box {
	out := make([]Box, len(s.boxes))
	copy(out, s.boxes)
	return out
}

// IDs returns every box id in insertion order.
func (s Set) IDs() []string {
	out := make([]string, len(s.boxes))
	for i, b := range s.boxes {
		out[i] = b.ID
	}
	return out
}

// Get looks up a box by id.
func (s Set) Get(id string) (Box, bool) {
	i, ok := s.index[id]
	if !ok {
		return Box{}, false
	}
	return s.boxes[i], true
}

// ForPage returns the boxes on a 1-based page in insertion order.
func (s Set) ForPage(page int) []Box {
	var out []Box
	for _, b := range s.boxes {
		if b.Page == page {
			out = append(out, b)
		}
	}
	return out
}

// Pages regroups the boxes by page number, for persistence.
func (s Set) Pages() []Page {
	maxPage := 0
	for _, b := range s.boxes {
		if b.Page > maxPage {
			maxPage = b.Page
		}
	}
	pages := make([]Page, maxPage)
	for _, b := range s.boxes {
		if b.Page < 1 {
			continue
		}
		pages[b.Page-1].Boxes = append(pages[b.Page-1].Boxes, b)
	}
	for i := range pages {
		if pages[i].Boxes == nil {
			pages[i].Boxes = []Box{}
		}
	}
	return pages
}

// Update returns a Set in which the box with the given id has the patch
// applied. A missing id returns the receiver and false. Non-positive widths
// and heights are ignored because boxes must keep a positive size.
func (s Set) Update(id string, p Patch) (Set, bool) {
	i, ok := s.index[id]
	if !ok {
		return s, false
	}
	b := s.boxes[i]
	if p.X != nil {
		b.X = *p.X
	}
	if p.Y != nil {
		b.Y = *p.Y
	}
	if p.Width != nil && *p.Width > 0 {
		b.Width = *p.Width
	}
	if p.Height != nil && *p.Height > 0 {
		b.Height = *p.Height
	}

	next := make([]Box, len(s.boxes))
	copy(next, s.boxes)
	next[i] = b
	return Set{boxes: next, index: s.index}, true
}

// Translate shifts a box by a normalized delta.
func (s Set) Translate(id string, dx, dy float64) (Set, bool) {
	b, ok := s.Get(id)
	if !ok {
		return s, false
	}
	x, y := b.X+dx, b.Y+dy
	return s.Update(id, Patch{X: &x, Y: &y})
}

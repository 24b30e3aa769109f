package session

import (
	"time"

	"github.com/dgallion1/fieldmark/internal/boxes"
	"github.com/dgallion1/fieldmark/internal/fields"
	"github.com/dgallion1/fieldmark/internal/pdfinfo"
	"github.com/dgallion1/fieldmark/internal/selection"
	"github.com/dgallion1/fieldmark/internal/snapshot"
)

// View is the JSON-safe picture of a session returned by the API.
type View struct {
	ID            string                 `json:"id"`
	FileName      string                 `json:"fileName"`
	Pages         []pdfinfo.PageSize     `json:"pages"`
	Viewport      selection.Viewport     `json:"viewport"`
	Interaction   Interaction            `json:"interaction"`
	Boxes         []boxes.Box            `json:"boxes"`
	Fields        []fields.VariableField `json:"variableFields"`
	Mappings      []fields.Mapping       `json:"variableMappings"`
	Unmapped      []string               `json:"unmappedBoxIds"`
	ShowVariables bool                   `json:"showVariables"`
	Processing    bool                   `json:"isProcessing"`
	Working       WorkKind               `json:"working,omitempty"`
	Error         string                 `json:"error,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
	UpdatedAt     time.Time              `json:"updatedAt"`
}

// View returns a copy of the session state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	pages := s.info.Pages
	if pages == nil {
		pages = []pdfinfo.PageSize{}
	}
	mappings := s.mappings
	if mappings == nil {
		mappings = []fields.Mapping{}
	}
	return View{
		ID:            s.ID,
		FileName:      s.doc.Name,
		Pages:         pages,
		Viewport:      s.sel.Viewport(),
		Interaction:   s.interaction(),
		Boxes:         s.boxes.All(),
		Fields:        append([]fields.VariableField{}, s.fields...),
		Mappings:      mappings,
		Unmapped:      append([]string{}, s.unmapped...),
		ShowVariables: s.showVariables,
		Processing:    s.processing,
		Working:       s.working,
		Error:         s.lastError,
		CreatedAt:     s.createdAt,
		UpdatedAt:     s.updatedAt,
	}
}

// State captures everything a snapshot covers.
func (s *Session) State() snapshot.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	vp := s.sel.Viewport()
	selected := s.sel.Selected()
	if selected == "" {
		selected = s.sel.Pending()
	}
	return snapshot.State{
		Document:      s.doc,
		Results:       boxes.Result{Pages: s.boxes.Pages()},
		Page:          vp.Page,
		Scale:         vp.Scale,
		SelectedID:    selected,
		Fields:        append([]fields.VariableField{}, s.fields...),
		Mappings:      append([]fields.Mapping(nil), s.mappings...),
		Unmapped:      append([]string{}, s.unmapped...),
		ShowVariables: s.showVariables,
	}
}

// Restore replaces the session state. Any extraction or mapping still in
// flight is orphaned: its result will be discarded. A restored selection
// stays pending until the page renderer acknowledges its page.
func (s *Session) Restore(st snapshot.State, info pdfinfo.Info) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset(st.Document, info, time.Now())

	res := boxes.AssignIDs(st.Results)
	s.boxes = boxes.LoadPages(res.Pages)
	page, scale := st.Page, st.Scale
	if page < 1 {
		page = 1
	}
	if scale <= 0 {
		scale = 1
	}
	s.sel = selection.New(s.defaultViewport(page, scale))
	if st.SelectedID != "" {
		s.sel.Defer(st.SelectedID)
	}
	if st.Fields != nil {
		s.fields = append([]fields.VariableField{}, st.Fields...)
	}
	s.mappings = st.Mappings
	if st.Unmapped != nil {
		s.unmapped = append([]string{}, st.Unmapped...)
	} else {
		s.unmapped = fields.Unmapped(s.fields, s.boxes)
	}
	s.showVariables = st.ShowVariables
	s.log.Info("state restored", "boxes", s.boxes.Len(), "fields", len(s.fields), "page", page)
}

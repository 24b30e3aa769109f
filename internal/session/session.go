// Package session holds the mutable state of one loaded document: its boxes,
// the selection, the variable fields and the processing flag.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/fieldmark/internal/boxes"
	"github.com/dgallion1/fieldmark/internal/fields"
	"github.com/dgallion1/fieldmark/internal/pdfinfo"
	"github.com/dgallion1/fieldmark/internal/selection"
	"github.com/dgallion1/fieldmark/internal/snapshot"
)

var (
	ErrBusy            = errors.New("an extraction or mapping is already running")
	ErrStale           = errors.New("result belongs to a replaced document")
	ErrNoBoxes         = errors.New("no boxes to map; run extraction first")
	ErrNoFields        = errors.New("no variable fields to map")
	ErrUnknownBox      = errors.New("unknown box")
	ErrUnknownField    = errors.New("unknown field")
	ErrInvalidViewport = errors.New("viewport needs a page >= 1 and positive width, height and scale")
	ErrInvalidPointer  = errors.New("unknown pointer event type")
)

// WorkKind names the long-running operation a session is busy with.
type WorkKind string

const (
	WorkExtract WorkKind = "extract"
	WorkMap     WorkKind = "map"
)

// Ticket identifies one BeginWork call. Results are only applied when the
// ticket's generation is still current.
type Ticket struct {
	Generation uint64
	Kind       WorkKind
}

// Session is safe for concurrent use. Each method runs under the session
// lock and derives new state from the current state, never from a copy
// taken before a model call.
type Session struct {
	ID string

	mu  sync.Mutex
	log *slog.Logger

	doc      snapshot.Document
	info     pdfinfo.Info
	boxes    boxes.Set
	sel      *selection.Controller
	fields   []fields.VariableField
	mappings []fields.Mapping
	unmapped []string

	showVariables bool
	processing    bool
	working       WorkKind
	generation    uint64
	lastError     string

	createdAt time.Time
	updatedAt time.Time
}

func newSession(id string, doc snapshot.Document, info pdfinfo.Info, log *slog.Logger) *Session {
	now := time.Now()
	s := &Session{
		ID:        id,
		log:       log.With("session_id", id),
		createdAt: now,
	}
	s.reset(doc, info, now)
	return s
}

func (s *Session) reset(doc snapshot.Document, info pdfinfo.Info, now time.Time) {
	s.doc = doc
	s.info = info
	s.boxes = boxes.Set{}
	s.sel = selection.New(s.defaultViewport(1, 1))
	s.fields = []fields.VariableField{}
	s.mappings = nil
	s.unmapped = []string{}
	s.showVariables = false
	s.processing = false
	s.working = ""
	s.lastError = ""
	s.generation++
	s.updatedAt = now
}

func (s *Session) defaultViewport(page int, scale float64) selection.Viewport {
	w, h := s.info.PixelSize(page, pdfinfo.DefaultDPI)
	return selection.Viewport{Page: page, Width: w, Height: h, Scale: scale}
}

func (s *Session) touch() { s.updatedAt = time.Now() }

// UpdatedAt returns the time of the last mutation.
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// Document returns the uploaded PDF and its page info.
func (s *Session) Document() (snapshot.Document, pdfinfo.Info) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc, s.info
}

// Boxes returns the current box set.
func (s *Session) Boxes() boxes.Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boxes
}

// Fields returns a copy of the variable fields.
func (s *Session) Fields() []fields.VariableField {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]fields.VariableField, len(s.fields))
	copy(out, s.fields)
	return out
}

// BeginWork marks the session as processing. Only one extraction or mapping
// may run at a time.
func (s *Session) BeginWork(kind WorkKind) (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processing {
		return Ticket{}, fmt.Errorf("%w (%s)", ErrBusy, s.working)
	}
	if kind == WorkMap {
		if s.boxes.Len() == 0 {
			return Ticket{}, ErrNoBoxes
		}
		if len(s.fields) == 0 {
			return Ticket{}, ErrNoFields
		}
	}
	s.processing = true
	s.working = kind
	s.lastError = ""
	s.touch()
	s.log.Info("work started", "kind", kind, "generation", s.generation)
	return Ticket{Generation: s.generation, Kind: kind}, nil
}

func (s *Session) checkTicket(t Ticket) error {
	if t.Generation != s.generation || !s.processing || s.working != t.Kind {
		s.log.Warn("discarding stale result", "kind", t.Kind, "ticket", t.Generation, "generation", s.generation)
		return ErrStale
	}
	return nil
}

func (s *Session) finish() {
	s.processing = false
	s.working = ""
	s.touch()
}

// FinishExtraction loads a fresh extraction result. Ids are assigned,
// selection is cleared and fields are created from the boxes when the user
// has none yet.
func (s *Session) FinishExtraction(t Ticket, res boxes.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkTicket(t); err != nil {
		return err
	}
	assigned := boxes.AssignIDs(res)
	s.boxes = boxes.LoadPages(assigned.Pages)
	s.sel.Clear()
	s.fields = fields.AutoCreate(s.fields, s.boxes.All())
	s.mappings = nil
	s.unmapped = fields.Unmapped(s.fields, s.boxes)
	s.finish()
	s.log.Info("extraction applied", "boxes", s.boxes.Len(), "fields", len(s.fields))
	return nil
}

// FinishMapping applies a mapping result and switches to the variables view.
func (s *Session) FinishMapping(t Ticket, res fields.MappingResult) (fields.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkTicket(t); err != nil {
		return fields.Outcome{}, err
	}
	out := fields.ApplyMapping(s.fields, res, s.boxes)
	s.fields = out.Fields
	s.mappings = res.Mappings
	s.unmapped = out.Unmapped
	s.showVariables = true
	s.finish()
	s.log.Info("mapping applied",
		"mappings", len(res.Mappings),
		"synthesized", out.Synthesized,
		"unmapped", len(out.Unmapped))
	return out, nil
}

// Fail ends the work for t and records a message the user can dismiss.
// State other than the message is left as it was.
func (s *Session) Fail(t Ticket, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkTicket(t) != nil {
		return
	}
	s.lastError = err.Error()
	s.finish()
	s.log.Error("work failed", "kind", t.Kind, "error", err)
}

// MappingRequest returns what the mapping service needs: the field names and
// a reference for every box.
func (s *Session) MappingRequest() ([]string, []fields.BoxRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.fields))
	for _, f := range s.fields {
		names = append(names, f.Name)
	}
	return names, fields.Refs(s.boxes)
}

// SetError records a user-visible message outside of BeginWork/Fail.
func (s *Session) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = msg
	s.touch()
}

// DismissError clears the user-visible message.
func (s *Session) DismissError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = ""
	s.touch()
}

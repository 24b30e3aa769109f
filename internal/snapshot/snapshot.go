// Package snapshot captures session state into persistable records and
// rebuilds it, and reads and writes the user-facing document file.
package snapshot

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/dgallion1/fieldmark/internal/boxes"
	"github.com/dgallion1/fieldmark/internal/fields"
)

// ErrInvalidFormat is returned for records and document files that cannot be
// decoded.
var ErrInvalidFormat = errors.New("invalid document format")

// Document is the uploaded PDF.
type Document struct {
	Name string
	Type string
	Data []byte
}

// State is the in-memory state a snapshot covers.
type State struct {
	Document      Document
	Results       boxes.Result
	Page          int
	Scale         float64
	SelectedID    string
	Fields        []fields.VariableField
	Mappings      []fields.Mapping
	Unmapped      []string
	ShowVariables bool
}

// Record is the persisted form of State. Every member is optional when
// decoding.
type Record struct {
	ID             string                 `json:"id"`
	DocumentName   string                 `json:"documentName,omitempty"`
	DocumentType   string                 `json:"documentType,omitempty"`
	FileData       string                 `json:"fileData,omitempty"`
	Results        *boxes.Result          `json:"results,omitempty"`
	CurrentPage    int                    `json:"currentPage,omitempty"`
	Scale          float64                `json:"scale,omitempty"`
	SelectedBoxID  string                 `json:"selectedBoxId,omitempty"`
	VariableFields []fields.VariableField `json:"variableFields,omitempty"`
	Mappings       []fields.Mapping       `json:"variableMappings,omitempty"`
	UnmappedBoxIDs []string               `json:"unmappedBoxIds,omitempty"`
	ShowVariables  bool                   `json:"showVariables,omitempty"`
	SavedAt        time.Time              `json:"savedAt"`
}

// Capture builds a record of s.
func Capture(id string, s State, now time.Time) Record {
	r := Record{
		ID:             id,
		DocumentName:   s.Document.Name,
		DocumentType:   s.Document.Type,
		CurrentPage:    s.Page,
		Scale:          s.Scale,
		SelectedBoxID:  s.SelectedID,
		VariableFields: s.Fields,
		Mappings:       s.Mappings,
		UnmappedBoxIDs: s.Unmapped,
		ShowVariables:  s.ShowVariables,
		SavedAt:        now.UTC(),
	}
	if len(s.Document.Data) > 0 {
		r.FileData = base64.StdEncoding.EncodeToString(s.Document.Data)
	}
	if len(s.Results.Pages) > 0 {
		res := s.Results
		r.Results = &res
	}
	return r
}

// State rebuilds the captured state. Absent members come back unset: page 1,
// scale 1, no selection and no fields.
func (r Record) State() (State, error) {
	s := State{
		Document:      Document{Name: r.DocumentName, Type: r.DocumentType},
		Page:          r.CurrentPage,
		Scale:         r.Scale,
		SelectedID:    r.SelectedBoxID,
		Fields:        r.VariableFields,
		Mappings:      r.Mappings,
		Unmapped:      r.UnmappedBoxIDs,
		ShowVariables: r.ShowVariables,
	}
	if r.FileData != "" {
		data, err := base64.StdEncoding.DecodeString(r.FileData)
		if err != nil {
			return State{}, fmt.Errorf("%w: file data: %v", ErrInvalidFormat, err)
		}
		s.Document.Data = data
	}
	if r.Results != nil {
		s.Results = *r.Results
	}
	if s.Page < 1 {
		s.Page = 1
	}
	if s.Scale <= 0 {
		s.Scale = 1
	}
	if s.Fields == nil {
		s.Fields = []fields.VariableField{}
	}
	return s, nil
}

// Summary describes a stored record without its payload.
type Summary struct {
	ID           string    `json:"id"`
	DocumentName string    `json:"documentName"`
	Boxes        int       `json:"boxes"`
	Fields       int       `json:"fields"`
	SavedAt      time.Time `json:"savedAt"`
}

// Summarize returns the listing view of r.
func (r Record) Summarize() Summary {
	n := 0
	if r.Results != nil {
		n = len(r.Results.Boxes())
	}
	return Summary{
		ID:           r.ID,
		DocumentName: r.DocumentName,
		Boxes:        n,
		Fields:       len(r.VariableFields),
		SavedAt:      r.SavedAt,
	}
}

package snapshot

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dgallion1/fieldmark/internal/boxes"
	"github.com/dgallion1/fieldmark/internal/fields"
)

var validate = validator.New()

// DocumentFile is the JSON file users download and load back. Data holds the
// extraction results and PDFData the base64 encoded PDF.
type DocumentFile struct {
	ID               string                 `json:"id"`
	FileName         string                 `json:"fileName" validate:"required"`
	Timestamp        time.Time              `json:"timestamp"`
	Data             *boxes.Result          `json:"data" validate:"required"`
	PDFData          string                 `json:"pdfData" validate:"required"`
	VariableFields   []fields.VariableField `json:"variableFields,omitempty"`
	VariableMappings []fields.Mapping       `json:"variableMappings,omitempty"`
	UnmappedBoxIDs   []string               `json:"unmappedBoxIds,omitempty"`
}

// NewDocumentFile builds the downloadable file for s.
func NewDocumentFile(id string, s State, now time.Time) DocumentFile {
	res := s.Results
	if res.Pages == nil {
		res.Pages = []boxes.Page{}
	}
	return DocumentFile{
		ID:               id,
		FileName:         s.Document.Name,
		Timestamp:        now.UTC(),
		Data:             &res,
		PDFData:          base64.StdEncoding.EncodeToString(s.Document.Data),
		VariableFields:   s.Fields,
		VariableMappings: s.Mappings,
		UnmappedBoxIDs:   s.Unmapped,
	}
}

// DecodeDocumentFile parses and validates a document file. Anything that is
// not a JSON object carrying fileName, data and pdfData is ErrInvalidFormat.
func DecodeDocumentFile(raw []byte) (DocumentFile, error) {
	var f DocumentFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return DocumentFile{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if err := validate.Struct(f); err != nil {
		return DocumentFile{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if _, err := base64.StdEncoding.DecodeString(f.PDFData); err != nil {
		return DocumentFile{}, fmt.Errorf("%w: pdfData is not base64", ErrInvalidFormat)
	}
	return f, nil
}

// State converts a loaded file into session state. The viewport starts on
// page 1 at scale 1 with nothing selected.
func (f DocumentFile) State() (State, error) {
	data, err := base64.StdEncoding.DecodeString(f.PDFData)
	if err != nil {
		return State{}, fmt.Errorf("%w: pdfData is not base64", ErrInvalidFormat)
	}
	s := State{
		Document: Document{Name: f.FileName, Type: "application/pdf", Data: data},
		Page:     1,
		Scale:    1,
		Fields:   f.VariableFields,
		Mappings: f.VariableMappings,
		Unmapped: f.UnmappedBoxIDs,
	}
	if f.Data != nil {
		s.Results = *f.Data
	}
	if s.Fields == nil {
		s.Fields = []fields.VariableField{}
	}
	return s, nil
}

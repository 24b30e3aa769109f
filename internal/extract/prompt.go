package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgallion1/fieldmark/internal/fields"
)

const BoxExtractionPrompt = `Find every fillable field in the attached PDF form: blank lines, boxes, table cells and areas next to labels where a person is expected to write. Return a JSON object of this shape:

{"pages": [{"boxes": [{"page": 1, "x": 0, "y": 0, "width": 0, "height": 0, "text": ""}]}]}

Rules:
- One entry in "pages" per PDF page, in page order, even when a page has no boxes
- "page" is the 1-based page number
- Coordinates are normalized to 0-1000 relative to the page: x and width against the page width, y and height against the page height, origin at the top-left corner
- The box covers the area to be written in, not the label
- "text" is a short human-readable description of what goes in the field, usually its label (e.g. "Date of birth")
- width and height must be greater than 0

Respond with ONLY the JSON object, no other text.`

const FieldMappingPrompt = `You are given the names of variables a user wants to fill into a PDF form and the list of fields detected on that form. Decide which field each variable belongs in. Return a JSON object of this shape:

{"mappings": [{"fieldId": "<variable name>", "boxId": "<field id>"}], "unmappedBoxes": ["<field id>"]}

Rules:
- "fieldId" must be the variable name exactly as given
- "boxId" must be one of the given field ids
- Map each variable to at most one field and each field to at most one variable
- Leave a variable out of "mappings" when no field fits
- List in "unmappedBoxes" every field id that no variable was mapped to

Respond with ONLY the JSON object, no other text.`

// BuildExtractionPrompt adds the document name and any embedded page text to
// the extraction prompt.
func BuildExtractionPrompt(doc Document) string {
	var sb strings.Builder
	sb.WriteString(BoxExtractionPrompt)
	sb.WriteString("\n\n---\n")
	sb.WriteString(fmt.Sprintf("Document: %q\n", doc.Name))
	for i, text := range doc.PageText {
		if strings.TrimSpace(text) == "" {
			continue
		}
		sb.WriteString(fmt.Sprintf("Page %d text:\n%s\n", i+1, truncate(text, 4000)))
	}
	sb.WriteString("---\n")
	return sb.String()
}

// BuildMappingPrompt creates the full mapping prompt.
func BuildMappingPrompt(names []string, refs []fields.BoxRef) (string, error) {
	if names == nil {
		names = []string{}
	}
	if refs == nil {
		refs = []fields.BoxRef{}
	}
	nj, err := json.Marshal(names)
	if err != nil {
		return "", fmt.Errorf("marshal names: %w", err)
	}
	rj, err := json.Marshal(refs)
	if err != nil {
		return "", fmt.Errorf("marshal boxes: %w", err)
	}
	var sb strings.Builder
	sb.WriteString(FieldMappingPrompt)
	sb.WriteString("\n\n---\nVariables: ")
	sb.Write(nj)
	sb.WriteString("\nFields: ")
	sb.Write(rj)
	sb.WriteString("\n---\n")
	return sb.String(), nil
}

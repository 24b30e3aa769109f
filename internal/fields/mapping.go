package fields

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgallion1/fieldmark/internal/boxes"
)

// Outcome is the state produced by applying a mapping result.
type Outcome struct {
	Fields      []VariableField
	Unmapped    []string
	Synthesized int
}

// ApplyMapping assigns boxes to fields from a mapping service result.
//
// Each field takes the box of the first mapping whose FieldID equals the
// field's name. Fields without a match keep their previous box. No two fields
// end up on the same box: a mapped field claims its box first, and an
// unmatched field loses a box that another field claimed. Mappings naming a
// box that does not exist are ignored; a mapping with an empty box id
// detaches the field.
//
// Box ids listed as unmapped by the service that no field references get a
// synthesized field, unless a mapping for the synthesized name points
// elsewhere. Applying the same result twice yields the same
// assignments as applying it once.
func ApplyMapping(in []VariableField, res MappingResult, set boxes.Set) Outcome {
	out := clone(in)
	claimed := make(map[string]bool)
	matched := make([]bool, len(out))

	for i := range out {
		m, ok := mappingFor(res.Mappings, out[i].Name)
		if !ok {
			continue
		}
		if m.BoxID == "" {
			out[i].BoxID = ""
			matched[i] = true
			continue
		}
		if _, exists := set.Get(m.BoxID); !exists || claimed[m.BoxID] {
			continue
		}
		out[i].BoxID = m.BoxID
		claimed[m.BoxID] = true
		matched[i] = true
	}

	for i := range out {
		if matched[i] || out[i].BoxID == "" {
			continue
		}
		if claimed[out[i].BoxID] {
			out[i].BoxID = ""
			continue
		}
		claimed[out[i].BoxID] = true
	}

	synthesized := 0
	for _, id := range res.UnmappedBoxes {
		if id == "" || claimed[id] {
			continue
		}
		name := fallbackName(id)
		if b, ok := set.Get(id); ok {
			name = nameForBox(b)
		}
		if movedByMapping(res.Mappings, name, id, set) {
			continue
		}
		out = append(out, VariableField{ID: newID(), Name: name, BoxID: id})
		claimed[id] = true
		synthesized++
	}

	return Outcome{
		Fields:      out,
		Unmapped:    Unmapped(out, set),
		Synthesized: synthesized,
	}
}

// movedByMapping reports whether a field named name sitting on box id would
// be moved or detached by a mapping. Such a box is not given a synthesized
// field, since re-applying the result would move it.
func movedByMapping(ms []Mapping, name, id string, set boxes.Set) bool {
	m, ok := mappingFor(ms, name)
	if !ok || m.BoxID == id {
		return false
	}
	if m.BoxID == "" {
		return true
	}
	_, live := set.Get(m.BoxID)
	return live
}

func mappingFor(ms []Mapping, name string) (Mapping, bool) {
	for _, m := range ms {
		if m.FieldID == name {
			return m, true
		}
	}
	return Mapping{}, false
}

// ErrMalformedMapping is returned when a mapping response cannot be decoded.
var ErrMalformedMapping = errors.New("malformed mapping response")

// ParseMappingResponse decodes a mapping service response. The payload must be
// a JSON object with a mappings array.
func ParseMappingResponse(data []byte) (MappingResult, error) {
	var raw struct {
		Mappings      *[]Mapping `json:"mappings"`
		UnmappedBoxes []string   `json:"unmappedBoxes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return MappingResult{}, fmt.Errorf("%w: %v", ErrMalformedMapping, err)
	}
	if raw.Mappings == nil {
		return MappingResult{}, fmt.Errorf("%w: missing mappings", ErrMalformedMapping)
	}
	res := MappingResult{Mappings: *raw.Mappings, UnmappedBoxes: raw.UnmappedBoxes}
	if res.UnmappedBoxes == nil {
		res.UnmappedBoxes = []string{}
	}
	return res, nil
}

// Package fields associates named variables with extracted boxes.
package fields

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/dgallion1/fieldmark/internal/boxes"
)

// VariableField is a named slot the user wants filled. BoxID is a weak
// reference: the box is looked up by id and may no longer exist.
type VariableField struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Value string `json:"value"`
	BoxID string `json:"boxId,omitempty"`
}

// Mapping is one verdict of the field mapping service. FieldID carries the
// field's name, not VariableField.ID: the service only ever sees names.
type Mapping struct {
	FieldID string `json:"fieldId"`
	BoxID   string `json:"boxId"`
}

// MappingResult is the full response of the field mapping service.
type MappingResult struct {
	Mappings      []Mapping `json:"mappings"`
	UnmappedBoxes []string  `json:"unmappedBoxes"`
}

var newID = uuid.NewString

// SanitizeName turns box text into a field name by dropping punctuation and
// symbols and trimming surrounding whitespace.
func SanitizeName(text string) string {
	var sb strings.Builder
	for _, r := range text {
		if unicode.IsPunct(r) && r != '_' || unicode.IsSymbol(r) || unicode.IsControl(r) && !unicode.IsSpace(r) {
			continue
		}
		sb.WriteRune(r)
	}
	return strings.TrimSpace(sb.String())
}

// fallbackName is used when a box has no usable text or cannot be found.
func fallbackName(boxID string) string {
	return fmt.Sprintf("Field %s", boxID)
}

func nameForBox(b boxes.Box) string {
	if n := SanitizeName(b.Text); n != "" {
		return n
	}
	return fallbackName(b.ID)
}

// AutoCreate returns one empty field per box, named after the box text. It
// only does so when existing is empty; user-entered fields are returned
// unchanged.
func AutoCreate(existing []VariableField, all []boxes.Box) []VariableField {
	if len(existing) > 0 {
		return existing
	}
	out := make([]VariableField, 0, len(all))
	for _, b := range all {
		out = append(out, VariableField{
			ID:    newID(),
			Name:  nameForBox(b),
			BoxID: b.ID,
		})
	}
	return out
}

// New creates a manually added field.
func New(name string) VariableField {
	return VariableField{ID: newID(), Name: strings.TrimSpace(name)}
}

// FieldPatch carries a manual field edit. Nil members are left untouched; an
// empty BoxID detaches the field from its box.
type FieldPatch struct {
	Name  *string `json:"name,omitempty"`
	Value *string `json:"value,omitempty"`
	BoxID *string `json:"boxId,omitempty"`
}

// Update returns a copy of fields with the patch applied to the field with
// the given id.
func Update(in []VariableField, id string, p FieldPatch) ([]VariableField, bool) {
	out := clone(in)
	for i := range out {
		if out[i].ID != id {
			continue
		}
		if p.Name != nil {
			out[i].Name = *p.Name
		}
		if p.Value != nil {
			out[i].Value = *p.Value
		}
		if p.BoxID != nil {
			out[i].BoxID = *p.BoxID
		}
		return out, true
	}
	return in, false
}

// Remove returns a copy of fields without the field with the given id.
func Remove(in []VariableField, id string) ([]VariableField, bool) {
	out := make([]VariableField, 0, len(in))
	found := false
	for _, f := range in {
		if f.ID == id {
			found = true
			continue
		}
		out = append(out, f)
	}
	if !found {
		return in, false
	}
	return out, true
}

// ByBox indexes fields by the box they reference. When several fields point
// at one box the first wins.
func ByBox(in []VariableField) map[string]VariableField {
	m := make(map[string]VariableField, len(in))
	for _, f := range in {
		if f.BoxID == "" {
			continue
		}
		if _, ok := m[f.BoxID]; !ok {
			m[f.BoxID] = f
		}
	}
	return m
}

// Unmapped returns, in store order, the ids of boxes no field references.
func Unmapped(in []VariableField, set boxes.Set) []string {
	ref := ByBox(in)
	out := []string{}
	for _, id := range set.IDs() {
		if _, ok := ref[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func clone(in []VariableField) []VariableField {
	out := make([]VariableField, len(in))
	copy(out, in)
	return out
}

// RemoveAll drops every field.
func RemoveAll() []VariableField {
	return []VariableField{}
}

// BoxRef is what the mapping service is told about a box.
type BoxRef struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Page int    `json:"page"`
}

// Refs lists every box in store order.
func Refs(set boxes.Set) []BoxRef {
	all := set.All()
	out := make([]BoxRef, 0, len(all))
	for _, b := range all {
		out = append(out, BoxRef{ID: b.ID, Text: b.Text, Page: b.Page})
	}
	return out
}

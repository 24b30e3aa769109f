package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/fieldmark/internal/boxes"
	"github.com/dgallion1/fieldmark/internal/fields"
	"github.com/dgallion1/fieldmark/internal/pdfinfo"
)

func testSet() boxes.Set {
	return boxes.LoadPages([]boxes.Page{
		{Boxes: []boxes.Box{{ID: "box-1-0", Page: 1, X: 100, Y: 100, Width: 400, Height: 30, Text: "Name"}}},
		{Boxes: []boxes.Box{{ID: "box-2-0", Page: 2, X: 100, Y: 500, Width: 300, Height: 30, Text: "Date"}}},
	})
}

func testInfo() pdfinfo.Info {
	return pdfinfo.Info{Pages: []pdfinfo.PageSize{{Width: 612, Height: 792}, {Width: 420, Height: 595}}}
}

func TestFilledPDF_PageSizes(t *testing.T) {
	fs := []fields.VariableField{
		{ID: "f1", Name: "Name", Value: "Jane Doe", BoxID: "box-1-0"},
		{ID: "f2", Name: "Date", Value: "2026-01-02", BoxID: "box-2-0"},
	}
	out, err := FilledPDF(testInfo(), fs, testSet())
	require.NoError(t, err)

	info, err := pdfinfo.Inspect(out)
	require.NoError(t, err)
	require.Equal(t, 2, info.PageCount())
	assert.InDelta(t, 612, info.Pages[0].Width, 0.5)
	assert.InDelta(t, 595, info.Pages[1].Height, 0.5)
}

func TestFilledPDF_DrawsOnlyMappedValues(t *testing.T) {
	fs := []fields.VariableField{
		{ID: "f1", Name: "Name", Value: "Jane Doe", BoxID: "box-1-0"},
		{ID: "f2", Name: "Date", Value: "", BoxID: "box-2-0"},
		{ID: "f3", Name: "Loose", Value: "Unplaced"},
		{ID: "f4", Name: "Gone", Value: "Orphan", BoxID: "box-9-9"},
	}
	out, err := build(testInfo(), fs, testSet(), false)
	require.NoError(t, err)

	assert.True(t, bytes.Contains(out, []byte("(Jane Doe)")))
	assert.False(t, bytes.Contains(out, []byte("(Unplaced)")))
	assert.False(t, bytes.Contains(out, []byte("(Orphan)")))
}

func TestFilledPDF_NoPages(t *testing.T) {
	_, err := FilledPDF(pdfinfo.Info{}, nil, boxes.Set{})
	assert.ErrorIs(t, err, ErrNoPages)
}

package pdfinfo

import (
	"bytes"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoPagePDF(t *testing.T) []byte {
	t.Helper()
	pdf := fpdf.New("P", "pt", "", "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.AddPageFormat("P", fpdf.SizeType{Wd: 612, Ht: 792})
	pdf.Text(72, 72, "Name")
	pdf.AddPageFormat("P", fpdf.SizeType{Wd: 420, Ht: 595})
	pdf.Text(72, 72, "Date")
	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

func TestInspect(t *testing.T) {
	info, err := Inspect(twoPagePDF(t))
	require.NoError(t, err)

	require.Equal(t, 2, info.PageCount())
	assert.InDelta(t, 612, info.Pages[0].Width, 0.5)
	assert.InDelta(t, 792, info.Pages[0].Height, 0.5)
	assert.InDelta(t, 420, info.Pages[1].Width, 0.5)
	assert.InDelta(t, 595, info.Pages[1].Height, 0.5)
	assert.Len(t, info.Text, 2)
}

func TestInspect_RejectsNonPDF(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("hello"), []byte("%PDF-1.4 truncated")} {
		_, err := Inspect(data)
		assert.ErrorIs(t, err, ErrNotPDF)
	}
}

func TestPixelSize(t *testing.T) {
	info := Info{Pages: []PageSize{{Width: 612, Height: 792}}}

	w, h := info.PixelSize(1, DefaultDPI)
	assert.Equal(t, 612.0, w)
	assert.Equal(t, 792.0, h)

	w, h = info.PixelSize(1, 144)
	assert.Equal(t, 1224.0, w)
	assert.Equal(t, 1584.0, h)

	w, h = info.PixelSize(9, 0)
	assert.Equal(t, Letter.Width, w)
	assert.Equal(t, Letter.Height, h)
}

func TestPageText_OutOfRange(t *testing.T) {
	info := Info{Text: []string{"a"}}
	assert.Equal(t, "a", info.PageText(1))
	assert.Empty(t, info.PageText(0))
	assert.Empty(t, info.PageText(2))
}

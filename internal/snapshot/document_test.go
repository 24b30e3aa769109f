package snapshot

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentFile_RoundTrip(t *testing.T) {
	f := NewDocumentFile("s1", sampleState(), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	raw, err := json.Marshal(f)
	require.NoError(t, err)

	var keys map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &keys))
	for _, k := range []string{"id", "fileName", "timestamp", "data", "pdfData", "variableFields", "variableMappings", "unmappedBoxIds"} {
		assert.Contains(t, keys, k)
	}

	loaded, err := DecodeDocumentFile(raw)
	require.NoError(t, err)
	st, err := loaded.State()
	require.NoError(t, err)

	want := sampleState()
	assert.Equal(t, want.Document.Data, st.Document.Data)
	assert.Equal(t, want.Results, st.Results)
	assert.Equal(t, want.Fields, st.Fields)
	assert.Equal(t, want.Unmapped, st.Unmapped)
	assert.Equal(t, 1, st.Page)
	assert.Empty(t, st.SelectedID)
}

func TestDecodeDocumentFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `hello`},
		{"array", `[]`},
		{"missing data", `{"fileName":"a.pdf","pdfData":"JVBERg=="}`},
		{"missing pdfData", `{"fileName":"a.pdf","data":{"pages":[]}}`},
		{"missing fileName", `{"data":{"pages":[]},"pdfData":"JVBERg=="}`},
		{"bad base64", `{"fileName":"a.pdf","data":{"pages":[]},"pdfData":"%%%"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDocumentFile([]byte(tt.raw))
			assert.ErrorIs(t, err, ErrInvalidFormat)
		})
	}
}

func TestDecodeDocumentFile_OptionalMembers(t *testing.T) {
	f, err := DecodeDocumentFile([]byte(`{"fileName":"a.pdf","data":{"pages":[]},"pdfData":"JVBERg=="}`))
	require.NoError(t, err)
	st, err := f.State()
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", st.Document.Name)
	assert.Equal(t, []byte("%PDF"), st.Document.Data)
	assert.Empty(t, st.Fields)
}

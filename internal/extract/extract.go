// Package extract talks to the AI services that find field boxes in a PDF
// and map variable names onto them.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/fieldmark/internal/boxes"
	"github.com/dgallion1/fieldmark/internal/fields"
)

var (
	// ErrMissingCredential means no API key is configured for the provider.
	ErrMissingCredential = errors.New("missing API key for the model provider")
	// ErrMalformedExtraction means the extraction response was not the
	// expected JSON document.
	ErrMalformedExtraction = errors.New("malformed extraction response")
	// ErrEmptyResponse means the model returned no text at all.
	ErrEmptyResponse = errors.New("empty response from model")
)

// Document is what the extraction service is shown.
type Document struct {
	Name string
	Data []byte
	// PageText is the embedded text of each page, used as a hint. It may be
	// empty for scanned documents.
	PageText []string
}

// BoxExtractor finds fillable regions in a document.
type BoxExtractor interface {
	ExtractBoxes(ctx context.Context, doc Document) (boxes.Result, error)
}

// FieldMapper assigns variable names to boxes.
type FieldMapper interface {
	MapFields(ctx context.Context, names []string, refs []fields.BoxRef) (fields.MappingResult, error)
}

// Provider is a model backend serving both operations.
type Provider interface {
	BoxExtractor
	FieldMapper
	Name() string
	// Ready reports ErrMissingCredential when the provider cannot be called.
	Ready() error
	Close()
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

func retryableStatus(code int) bool {
	return code == 429 || code >= 500
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return cut(s, n) + "..."
}

// cut returns the longest prefix of s of at most n bytes that ends on a rune
// boundary.
func cut(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ParseExtraction decodes the extraction service's text output. Model
// supplied ids are discarded and invalid boxes are dropped; ids are assigned
// later when the result is loaded.
func ParseExtraction(text string) (boxes.Result, int, error) {
	text = stripCodeBlock(text)
	var raw struct {
		Pages *[]boxes.Page `json:"pages"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return boxes.Result{}, 0, fmt.Errorf("%w: %v (raw: %s)", ErrMalformedExtraction, err, truncate(text, 200))
	}
	if raw.Pages == nil {
		return boxes.Result{}, 0, fmt.Errorf("%w: missing pages (raw: %s)", ErrMalformedExtraction, truncate(text, 200))
	}
	res, dropped := ValidateResult(boxes.Result{Pages: *raw.Pages})
	return res, dropped, nil
}

// ParseMapping decodes the mapping service's text output.
func ParseMapping(text string) (fields.MappingResult, error) {
	return fields.ParseMappingResponse([]byte(stripCodeBlock(text)))
}

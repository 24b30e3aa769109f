package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/dgallion1/fieldmark/internal/boxes"
	"github.com/dgallion1/fieldmark/internal/fields"
)

// GeminiClient calls the Gemini API with the PDF passed inline.
type GeminiClient struct {
	client     *genai.Client
	model      string
	httpClient *http.Client
	stats      *LLMStats
	log        *slog.Logger
}

// GeminiOptions configures NewGeminiClient. BaseURL is only set in tests.
type GeminiOptions struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	BaseURL string
}

// NewGeminiClient builds a client. Without an API key the client is created
// but every call fails with ErrMissingCredential.
func NewGeminiClient(ctx context.Context, opts GeminiOptions, stats *LLMStats, log *slog.Logger) (*GeminiClient, error) {
	if opts.Model == "" {
		opts.Model = "gemini-2.0-flash"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	g := &GeminiClient{
		model:      opts.Model,
		httpClient: &http.Client{Timeout: opts.Timeout},
		stats:      stats,
		log:        log.With("provider", "gemini", "model", opts.Model),
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return g, nil
	}
	cfg := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.httpClient,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init genai client: %w", err)
	}
	g.client = client
	return g, nil
}

func (g *GeminiClient) Name() string { return "gemini" }

func (g *GeminiClient) Ready() error {
	if g.client == nil {
		return ErrMissingCredential
	}
	return nil
}

func (g *GeminiClient) ExtractBoxes(ctx context.Context, doc Document) (boxes.Result, error) {
	if err := g.Ready(); err != nil {
		return boxes.Result{}, err
	}
	text, err := g.generate(ctx, OpExtract,
		genai.NewPartFromBytes(doc.Data, "application/pdf"),
		genai.NewPartFromText(BuildExtractionPrompt(doc)),
	)
	if err != nil {
		return boxes.Result{}, err
	}
	res, dropped, err := ParseExtraction(text)
	if err != nil {
		return boxes.Result{}, err
	}
	if dropped > 0 {
		g.log.Warn("dropped invalid boxes", "count", dropped)
	}
	return res, nil
}

func (g *GeminiClient) MapFields(ctx context.Context, names []string, refs []fields.BoxRef) (fields.MappingResult, error) {
	if err := g.Ready(); err != nil {
		return fields.MappingResult{}, err
	}
	prompt, err := BuildMappingPrompt(names, refs)
	if err != nil {
		return fields.MappingResult{}, err
	}
	text, err := g.generate(ctx, OpMap, genai.NewPartFromText(prompt))
	if err != nil {
		return fields.MappingResult{}, err
	}
	return ParseMapping(text)
}

func (g *GeminiClient) generate(ctx context.Context, op string, parts ...*genai.Part) (string, error) {
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	config := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	g.stats.Record(op, time.Since(start).Milliseconds(), err)
	if err != nil {
		if code, ok := geminiStatus(err); ok && retryableStatus(code) {
			return "", &RetryableError{StatusCode: code, Message: err.Error()}
		}
		return "", fmt.Errorf("gemini api: %w", err)
	}

	// Use the first candidate with any text.
	var sb strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					sb.WriteString(part.Text)
				}
			}
			if sb.Len() > 0 {
				break
			}
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}
	return sb.String(), nil
}

func geminiStatus(err error) (int, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code, true
	}
	return 0, false
}

func (g *GeminiClient) Close() {
	g.httpClient.CloseIdleConnections()
}

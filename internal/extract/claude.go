package extract

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dgallion1/fieldmark/internal/boxes"
	"github.com/dgallion1/fieldmark/internal/fields"
)

// ClaudeClient calls the Anthropic Messages API. Retries are left to the
// pipeline so the SDK's own retry loop is disabled.
type ClaudeClient struct {
	client     anthropic.Client
	apiKey     string
	model      string
	maxTokens  int64
	httpClient *http.Client
	stats      *LLMStats
	log        *slog.Logger
}

// ClaudeOptions configures NewClaudeClient. BaseURL is only set in tests.
type ClaudeOptions struct {
	APIKey    string
	Model     string
	MaxTokens int64
	Timeout   time.Duration
	BaseURL   string
}

func NewClaudeClient(opts ClaudeOptions, stats *LLMStats, log *slog.Logger) *ClaudeClient {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 8192
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	httpClient := &http.Client{Timeout: opts.Timeout}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	return &ClaudeClient{
		client:     anthropic.NewClient(reqOpts...),
		apiKey:     opts.APIKey,
		model:      opts.Model,
		maxTokens:  opts.MaxTokens,
		httpClient: httpClient,
		stats:      stats,
		log:        log.With("provider", "claude", "model", opts.Model),
	}
}

func (c *ClaudeClient) Name() string { return "claude" }

func (c *ClaudeClient) Ready() error {
	if strings.TrimSpace(c.apiKey) == "" {
		return ErrMissingCredential
	}
	return nil
}

// ExtractBoxes sends the PDF as a document block together with the
// extraction prompt.
func (c *ClaudeClient) ExtractBoxes(ctx context.Context, doc Document) (boxes.Result, error) {
	if err := c.Ready(); err != nil {
		return boxes.Result{}, err
	}
	text, err := c.complete(ctx, OpExtract,
		anthropic.NewDocumentBlock(anthropic.Base64PDFSourceParam{
			Data: base64.StdEncoding.EncodeToString(doc.Data),
		}),
		anthropic.NewTextBlock(BuildExtractionPrompt(doc)),
	)
	if err != nil {
		return boxes.Result{}, err
	}
	res, dropped, err := ParseExtraction(text)
	if err != nil {
		return boxes.Result{}, err
	}
	if dropped > 0 {
		c.log.Warn("dropped invalid boxes", "count", dropped)
	}
	return res, nil
}

// MapFields asks the model to match variable names to boxes.
func (c *ClaudeClient) MapFields(ctx context.Context, names []string, refs []fields.BoxRef) (fields.MappingResult, error) {
	if err := c.Ready(); err != nil {
		return fields.MappingResult{}, err
	}
	prompt, err := BuildMappingPrompt(names, refs)
	if err != nil {
		return fields.MappingResult{}, err
	}
	text, err := c.complete(ctx, OpMap, anthropic.NewTextBlock(prompt))
	if err != nil {
		return fields.MappingResult{}, err
	}
	return ParseMapping(text)
}

func (c *ClaudeClient) complete(ctx context.Context, op string, blocks ...anthropic.ContentBlockParamUnion) (string, error) {
	start := time.Now()
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	})
	c.stats.Record(op, time.Since(start).Milliseconds(), err)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) && retryableStatus(apiErr.StatusCode) {
			return "", &RetryableError{StatusCode: apiErr.StatusCode, Message: apiErr.Error()}
		}
		return "", fmt.Errorf("claude api: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("claude: %w", ErrEmptyResponse)
	}
	c.log.Debug("claude call finished", "op", op, "stop_reason", resp.StopReason, "output_tokens", resp.Usage.OutputTokens)
	return sb.String(), nil
}

// Close releases resources.
func (c *ClaudeClient) Close() {
	c.httpClient.CloseIdleConnections()
}

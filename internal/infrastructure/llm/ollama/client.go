package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
	"github.com/kirillkom/doc-lifecycle/internal/core/ports"
	"github.com/kirillkom/doc-lifecycle/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout  time.Duration
	Executor *resilience.Executor
}

func New(baseURL, model string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.Executor,
	}
}

// FieldExtractor derives structured metadata from a document's text with a
// JSON-mode generation call.
type FieldExtractor struct {
	client *Client
	text   ports.TextRecognizer
}

func NewFieldExtractor(client *Client, text ports.TextRecognizer) *FieldExtractor {
	return &FieldExtractor{client: client, text: text}
}

type extractedFields struct {
	Title        string   `json:"title"`
	Subject      string   `json:"subject"`
	Sender       string   `json:"sender"`
	Receiver     string   `json:"receiver"`
	Category     string   `json:"category"`
	Tags         []string `json:"tags"`
	Keywords     []string `json:"keywords"`
	Summary      string   `json:"summary"`
	DocumentDate string   `json:"documentDate"`
}

func (e *FieldExtractor) ExtractFields(ctx context.Context, file domain.FileSource, declaredType string) (domain.Metadata, error) {
	text, err := e.text.Transcribe(ctx, file)
	if err != nil {
		return domain.Metadata{}, err
	}

	respText, err := e.client.generateJSON(ctx, buildFieldExtractionPrompt(file.Name, declaredType, text))
	if err != nil {
		return domain.Metadata{}, domain.EnsureKind(domain.ErrExtraction, "extract fields", err)
	}

	var fields extractedFields
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &fields); err != nil {
		return domain.Metadata{}, domain.WrapError(domain.ErrExtraction, "extract fields", fmt.Errorf("parse fields json: %w", err))
	}
	if fields.Tags == nil {
		fields.Tags = []string{}
	}
	return domain.Metadata{
		Title:        strings.TrimSpace(fields.Title),
		Subject:      strings.TrimSpace(fields.Subject),
		Sender:       strings.TrimSpace(fields.Sender),
		Receiver:     strings.TrimSpace(fields.Receiver),
		Category:     strings.TrimSpace(fields.Category),
		Tags:         fields.Tags,
		Keywords:     fields.Keywords,
		Summary:      strings.TrimSpace(fields.Summary),
		DocumentDate: strings.TrimSpace(fields.DocumentDate),
	}, nil
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}
	var response struct {
		Response string `json:"response"`
	}

	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/api/generate", reqBody, &response, "generate")
	}
	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama.generate", call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded("ollama generate", err)
	}
	return strings.TrimSpace(response.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

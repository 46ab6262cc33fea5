// Package ai wraps the upstream generative-language API used for
// action planning, image generation, and grounded search.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

var (
	// ErrNotConfigured is returned when no API key is set. Handlers map
	// this to 503 so the frontend can show a setup hint.
	ErrNotConfigured = errors.New("ai upstream not configured")

	// ErrNoImage is returned when the model responds without image data.
	ErrNoImage = errors.New("model returned no image")
)

// Config holds upstream connection settings.
type Config struct {
	BaseURL    string
	APIKey     string
	TextModel  string
	ImageModel string
	Timeout    time.Duration
	RPS        float64
}

// Source is one citation from a grounded search.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// SearchResult is a summarized web search with citations.
type SearchResult struct {
	Summary string   `json:"summary"`
	Sources []Source `json:"sources"`
}

// Client calls the upstream API with retries and rate limiting.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	cfg     Config
}

// NewClient creates an upstream client. The client is usable without an
// API key; calls then fail with ErrNotConfigured.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.TextModel == "" {
		cfg.TextModel = "gemini-2.5-flash"
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = "gemini-2.5-flash-image"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 15 * time.Second
	retryClient.Logger = nil

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "Lumendesk/1.0").
		SetTransport(retryClient.HTTPClient.Transport)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), 1)
	}

	return &Client{http: httpClient, limiter: limiter, cfg: cfg}
}

// Configured reports whether an API key is available.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

// Decide asks the text model for an action sequence. prompt is the
// user's instruction, snapshot the textual desktop description, and
// schema the JSON schema the response must satisfy. The raw JSON text
// is returned undecoded; the caller owns parsing and validation.
func (c *Client) Decide(ctx context.Context, prompt, snapshot string, schema map[string]interface{}) (string, error) {
	req := generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{Text: snapshot},
				{Text: prompt},
			},
		}},
		GenerationConfig: &generationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   schema,
		},
	}

	resp, err := c.generate(ctx, c.cfg.TextModel, &req)
	if err != nil {
		return "", err
	}

	text := resp.firstText()
	if text == "" {
		return "", fmt.Errorf("model returned no decision text")
	}
	return text, nil
}

// GenerateImage asks the image model for a picture and returns it as a
// base64 data URL. ErrNoImage means the model answered without image
// data; callers surface that inside the requesting window.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	req := generateRequest{
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: prompt}},
		}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"IMAGE", "TEXT"},
		},
	}

	resp, err := c.generate(ctx, c.cfg.ImageModel, &req)
	if err != nil {
		return "", err
	}

	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				return fmt.Sprintf("data:%s;base64,%s", p.InlineData.MimeType, p.InlineData.Data), nil
			}
		}
	}
	return "", ErrNoImage
}

// Search runs a grounded web search and returns a summary with source
// citations.
func (c *Client) Search(ctx context.Context, query string) (*SearchResult, error) {
	req := generateRequest{
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: query}},
		}},
		Tools: []tool{{GoogleSearch: map[string]interface{}{}}},
	}

	resp, err := c.generate(ctx, c.cfg.TextModel, &req)
	if err != nil {
		return nil, err
	}

	result := &SearchResult{Summary: resp.firstText()}
	for _, cand := range resp.Candidates {
		if cand.GroundingMetadata == nil {
			continue
		}
		for _, chunk := range cand.GroundingMetadata.GroundingChunks {
			if chunk.Web == nil || chunk.Web.URI == "" {
				continue
			}
			result.Sources = append(result.Sources, Source{
				Title: chunk.Web.Title,
				URL:   chunk.Web.URI,
			})
		}
	}
	return result, nil
}

func (c *Client) generate(ctx context.Context, model string, req *generateRequest) (*generateResponse, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	var out generateResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("x-goog-api-key", c.cfg.APIKey).
		SetBody(req).
		SetResult(&out).
		Post(fmt.Sprintf("/models/%s:generateContent", model))
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("upstream returned %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}
	return &out, nil
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
	Tools            []tool            `json:"tools,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseMIMEType   string                 `json:"responseMimeType,omitempty"`
	ResponseSchema     map[string]interface{} `json:"responseSchema,omitempty"`
	ResponseModalities []string               `json:"responseModalities,omitempty"`
}

type tool struct {
	GoogleSearch map[string]interface{} `json:"google_search,omitempty"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content           content            `json:"content"`
	GroundingMetadata *groundingMetadata `json:"groundingMetadata,omitempty"`
}

type groundingMetadata struct {
	GroundingChunks []groundingChunk `json:"groundingChunks"`
}

type groundingChunk struct {
	Web *webSource `json:"web,omitempty"`
}

type webSource struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

func (r *generateResponse) firstText() string {
	for _, cand := range r.Candidates {
		for _, p := range cand.Content.Parts {
			if p.Text != "" {
				return p.Text
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini provider.
type GeminiConfig struct {
	// BaseURL overrides the Gemini API endpoint.
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Gemini generates text with Google's Gemini API.
type Gemini struct {
	config     GeminiConfig
	httpClient *http.Client
}

// NewGemini creates the Gemini provider.
func NewGemini(cfg GeminiConfig) *Gemini {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Gemini{config: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

// Name implements Provider.
func (g *Gemini) Name() string { return "gemini" }

// Handles implements Provider.
func (g *Gemini) Handles(model string) bool {
	return strings.HasPrefix(model, "gemini-")
}

// Generate implements Provider.
func (g *Gemini) Generate(ctx context.Context, apiKey string, req Request) (*Response, error) {
	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.httpClient,
	}
	if g.config.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: g.config.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	parts := []*genai.Part{genai.NewPartFromText(req.UserMessage)}
	for _, img := range req.Images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	var gc *genai.GenerateContentConfig
	if req.SystemPrompt != "" {
		gc = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(req.SystemPrompt, genai.RoleUser),
		}
	}

	resp, err := client.Models.GenerateContent(ctx, req.Model, contents, gc)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return nil, ErrEmptyResponse
	}
	return &Response{Text: text, Model: req.Model}, nil
}

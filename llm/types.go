package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("llm: empty response")

// Image is an inline image sent alongside the user message.
type Image struct {
	Data     []byte
	MIMEType string
}

// Request is a single-turn generation request.
type Request struct {
	Model        string
	SystemPrompt string
	UserMessage  string
	Images       []Image
}

// Response is the generated text.
type Response struct {
	Text  string
	Model string
}

// Provider generates text with a caller-supplied API key.
type Provider interface {
	// Name is the credential provider name ("gemini", "openai").
	Name() string
	// Handles reports whether the provider serves model.
	Handles(model string) bool
	Generate(ctx context.Context, apiKey string, req Request) (*Response, error)
}

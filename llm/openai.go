package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIConfig configures the OpenAI-compatible provider.
type OpenAIConfig struct {
	// BaseURL targets an OpenAI-compatible endpoint instead of api.openai.com.
	BaseURL   string `mapstructure:"base_url"`
	MaxTokens int64  `mapstructure:"max_tokens"`
}

// OpenAI generates text with the Chat Completions API.
type OpenAI struct {
	config OpenAIConfig
}

// NewOpenAI creates the OpenAI provider.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	return &OpenAI{config: cfg}
}

// Name implements Provider.
func (o *OpenAI) Name() string { return "openai" }

// Handles implements Provider.
func (o *OpenAI) Handles(model string) bool {
	for _, prefix := range []string{"gpt-", "o1", "o3", "o4"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

// Generate implements Provider.
func (o *OpenAI) Generate(ctx context.Context, apiKey string, req Request) (*Response, error) {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if o.config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(o.config.BaseURL))
	}
	client := openai.NewClient(opts...)

	var messages []openai.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	if len(req.Images) == 0 {
		messages = append(messages, openai.UserMessage(req.UserMessage))
	} else {
		parts := []openai.ChatCompletionContentPartUnionParam{openai.TextContentPart(req.UserMessage)}
		for _, img := range req.Images {
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: dataURL(img),
			}))
		}
		messages = append(messages, openai.UserMessage(parts))
	}

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               req.Model,
		Messages:            messages,
		MaxCompletionTokens: openai.Int(o.config.MaxTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, ErrEmptyResponse
	}
	return &Response{Text: resp.Choices[0].Message.Content, Model: resp.Model}, nil
}

func dataURL(img Image) string {
	return "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

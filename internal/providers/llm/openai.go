// Package llm adapts chat-completion upstreams to services.Completer.
package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/tbourn/go-voice-relay/internal/services"
)

const serviceName = "completion"

// ChatConfig configures an OpenAI-compatible chat completions endpoint.
type ChatConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	MaxRetries  int
}

// Chat answers a transcript with a single non-streaming completion.
type Chat struct {
	client    openai.Client
	model     string
	maxTokens int
	temp      float64
}

// NewChat builds the adapter. httpClient may be nil.
func NewChat(cfg ChatConfig, httpClient *http.Client) (*Chat, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("chat: api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("chat: model is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	c := &Chat{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		temp:      cfg.Temperature,
	}
	if c.maxTokens <= 0 {
		c.maxTokens = 500
	}
	return c, nil
}

// Complete implements services.Completer.
func (c *Chat) Complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userText),
		},
		MaxTokens:   openai.Int(int64(c.maxTokens)),
		Temperature: openai.Float(c.temp),
	}
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &services.ServiceError{Service: serviceName, Status: apiErr.StatusCode, Message: apiErr.Message, Err: err}
		}
		return "", &services.ServiceError{Service: serviceName, Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &services.ServiceError{Service: serviceName, Message: "no choices returned"}
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

package openai

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	httpClient "github.com/Alias1177/SignalBot/internal/platform/http"
)

// ErrEmptyCompletion is returned when the endpoint answers without choices.
var ErrEmptyCompletion = errors.New("completion has no choices")

// Options configures a client for any OpenAI-compatible endpoint.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	HTTP        *httpClient.Client
}

// Client wraps the OpenAI API client
type Client struct {
	client *openai.Client
	opts   Options
	logger zerolog.Logger
}

// NewClient creates a new OpenAI client
func NewClient(opts Options) *Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if opts.HTTP != nil {
		cfg.HTTPClient = opts.HTTP
	}
	if opts.Model == "" {
		opts.Model = openai.GPT4o
	}

	return &Client{
		client: openai.NewClientWithConfig(cfg),
		opts:   opts,
		logger: log.With().Str("component", "openai_client").Str("model", opts.Model).Logger(),
	}
}

// Model returns the model name requests are sent with.
func (c *Client) Model() string {
	return c.opts.Model
}

// Complete sends a system and a user message and returns the first choice.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	c.logger.Debug().Int("prompt_len", len(prompt)).Msg("Sending prompt")

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.opts.Model,
		Messages:    messages,
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("OpenAI API error")
		return "", err
	}

	if len(resp.Choices) == 0 {
		c.logger.Warn().Msg("OpenAI returned empty choices")
		return "", ErrEmptyCompletion
	}

	return resp.Choices[0].Message.Content, nil
}

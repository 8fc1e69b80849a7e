// Package openai implements the completion Client with the official OpenAI
// Go SDK. Any OpenAI-compatible server can be used through base_url.
package openai

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/nadzzz/solace/internal/completion"
	"github.com/nadzzz/solace/internal/config"
	"github.com/nadzzz/solace/internal/message"
)

const name = "openai"

// Client calls the Chat Completions API.
type Client struct {
	client openai.Client
	model  string
}

// New creates a new client from config. Extra request options are appended
// after the configured ones.
func New(cfg config.OpenAIConfig, model string, opts ...option.RequestOption) *Client {
	var options []option.RequestOption
	if cfg.APIKey != "" {
		options = append(options, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		options = append(options, option.WithBaseURL(cfg.BaseURL))
	}
	options = append(options, opts...)

	return &Client{client: openai.NewClient(options...), model: model}
}

// Name returns the backend identifier.
func (c *Client) Name() string { return name }

// Complete sends the history and returns the first choice.
func (c *Client) Complete(ctx context.Context, history []message.Message, temperature float64) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    convertMessages(history),
		Temperature: openai.Float(temperature),
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", completion.ModelError(name, completion.ErrEmptyReply)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", completion.ModelError(name, completion.ErrEmptyReply)
	}

	slog.Debug("openai completion complete", "model", c.model, "messages", len(history), "reply_length", len(content))
	return content, nil
}

// Close is a no-op; the SDK holds no connections of its own.
func (c *Client) Close() error { return nil }

func convertMessages(history []message.Message) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case message.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case message.RoleUser:
			msgs = append(msgs, openai.UserMessage(m.Content))
		case message.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		}
	}
	return msgs
}

// classify maps API errors (the server answered with an error status) to
// KindModel and everything else to KindUnreachable.
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return completion.ModelError(name, err)
	}
	return completion.Unreachable(name, err)
}

// Package anthropic implements the completion Client with the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/nadzzz/solace/internal/completion"
	"github.com/nadzzz/solace/internal/config"
	"github.com/nadzzz/solace/internal/message"
)

const (
	name             = "anthropic"
	defaultMaxTokens = 1024
)

// Client calls the Messages API.
type Client struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// New creates a new client from config.
func New(cfg config.AnthropicConfig, model string, opts ...option.RequestOption) *Client {
	var options []option.RequestOption
	if cfg.APIKey != "" {
		options = append(options, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		options = append(options, option.WithBaseURL(cfg.BaseURL))
	}
	options = append(options, opts...)

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Client{client: anthropic.NewClient(options...), model: model, maxTokens: maxTokens}
}

// Name returns the backend identifier.
func (c *Client) Name() string { return name }

// Complete sends the history with the system prompt passed out of band.
func (c *Client) Complete(ctx context.Context, history []message.Message, temperature float64) (string, error) {
	system, turns := completion.Split(history)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Messages:    convertMessages(turns),
		Temperature: anthropic.Float(temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", completion.ModelError(name, err)
		}
		return "", completion.Unreachable(name, err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		sb.WriteString(block.Text)
	}
	content := strings.TrimSpace(sb.String())
	if content == "" {
		return "", completion.ModelError(name, completion.ErrEmptyReply)
	}

	slog.Debug("anthropic completion complete", "model", c.model, "messages", len(turns), "reply_length", len(content))
	return content, nil
}

// Close is a no-op; the SDK holds no connections of its own.
func (c *Client) Close() error { return nil }

func convertMessages(turns []message.Message) []anthropic.MessageParam {
	msgs := make([]anthropic.MessageParam, 0, len(turns))
	for _, m := range turns {
		switch m.Role {
		case message.RoleUser:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case message.RoleAssistant:
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return msgs
}

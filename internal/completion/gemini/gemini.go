// Package gemini implements the completion Client with the Google Gen AI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/nadzzz/solace/internal/completion"
	"github.com/nadzzz/solace/internal/config"
	"github.com/nadzzz/solace/internal/message"
)

const name = "gemini"

// Client calls GenerateContent.
type Client struct {
	client *genai.Client
	model  string
}

// New creates a Gemini API client.
func New(ctx context.Context, cfg config.GeminiConfig, model string) (*Client, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &Client{client: client, model: model}, nil
}

// Name returns the backend identifier.
func (c *Client) Name() string { return name }

// Complete sends the history with the system prompt as SystemInstruction.
func (c *Client) Complete(ctx context.Context, history []message.Message, temperature float64) (string, error) {
	system, turns := completion.Split(history)

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(temperature)),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, convertMessages(turns), cfg)
	if err != nil {
		return "", classify(err)
	}

	content := strings.TrimSpace(resp.Text())
	if content == "" {
		return "", completion.ModelError(name, completion.ErrEmptyReply)
	}

	slog.Debug("gemini completion complete", "model", c.model, "messages", len(turns), "reply_length", len(content))
	return content, nil
}

// Close is a no-op; the SDK holds no connections of its own.
func (c *Client) Close() error { return nil }

func convertMessages(turns []message.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, m := range turns {
		role := genai.RoleUser
		if m.Role == message.RoleAssistant {
			role = genai.RoleModel // Gemini uses "model" instead of "assistant"
		}
		contents = append(contents, genai.NewContentFromText(m.Content, genai.Role(role)))
	}
	return contents
}

func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return completion.ModelError(name, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return completion.ModelError(name, err)
	}
	return completion.Unreachable(name, err)
}

// Package ollama implements the completion Client against a self-hosted
// chat endpoint.
//
// The endpoint is either an Ollama server (POST {endpoint}/api/chat) or any
// OpenAI-compatible chat completions URL (vLLM, llama.cpp server, LocalAI),
// recognised by its /chat/completions suffix.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nadzzz/solace/internal/completion"
	"github.com/nadzzz/solace/internal/config"
	"github.com/nadzzz/solace/internal/message"
)

const name = "ollama"

// Client talks to a local chat endpoint over plain HTTP.
type Client struct {
	url        string
	compatible bool // OpenAI-compatible request/response shape
	model      string
	client     *http.Client
}

// New creates a new client from config.
func New(cfg config.OllamaConfig, model string) *Client {
	endpoint := strings.TrimSuffix(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2"
	}

	c := &Client{model: model, client: &http.Client{}}
	switch {
	case strings.HasSuffix(endpoint, "/chat/completions"):
		c.url, c.compatible = endpoint, true
	case strings.HasSuffix(endpoint, "/api/chat"):
		c.url = endpoint
	default:
		c.url = endpoint + "/api/chat"
	}
	return c
}

// Name returns the backend identifier.
func (c *Client) Name() string { return name }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Complete sends the history to the endpoint and returns the reply.
func (c *Client) Complete(ctx context.Context, history []message.Message, temperature float64) (string, error) {
	msgs := make([]chatMessage, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	reqBody := map[string]any{
		"model":    c.model,
		"messages": msgs,
		"stream":   false,
	}
	if c.compatible {
		reqBody["temperature"] = temperature
	} else {
		reqBody["options"] = map[string]any{"temperature": temperature}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", completion.ModelError(name, fmt.Errorf("marshalling request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", completion.Unreachable(name, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", completion.Unreachable(name, err)
	}
	defer resp.Body.Close()

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", completion.Unreachable(name, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", completion.ModelError(name, fmt.Errorf("status %d: %s", resp.StatusCode, errorMessage(respData)))
	}

	content := strings.TrimSpace(extractContent(respData))
	if content == "" {
		return "", completion.ModelError(name, completion.ErrEmptyReply)
	}

	slog.Debug("ollama completion complete", "model", c.model, "messages", len(msgs), "reply_length", len(content))
	return content, nil
}

// Close is a no-op for the HTTP client.
func (c *Client) Close() error { return nil }

// extractContent pulls the reply out of any of the supported response shapes.
func extractContent(data []byte) string {
	// Ollama /api/chat: {"message": {"content": "..."}}
	// OpenAI-compatible: {"choices": [{"message": {"content": "..."}}]}
	// Ollama /api/generate: {"response": "..."}
	var resp struct {
		Message *struct {
			Content string `json:"content"`
		} `json:"message"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return ""
	}

	switch {
	case resp.Message != nil:
		return resp.Message.Content
	case len(resp.Choices) > 0:
		return resp.Choices[0].Message.Content
	default:
		return resp.Response
	}
}

// errorMessage returns the "error" field of an error body, or the raw body.
func errorMessage(data []byte) string {
	var body struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil && len(body.Error) > 0 {
		var s string
		if json.Unmarshal(body.Error, &s) == nil {
			return s
		}
		// OpenAI-compatible servers nest it: {"error": {"message": "..."}}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
	}
	msg := strings.TrimSpace(string(data))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		return "no error body"
	}
	return msg
}

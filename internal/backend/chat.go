package backend

import (
	"context"
	"net/http"
	"strings"

	"github.com/kartoza/stats-workbench/internal/config"
)

// Role identifies who authored a chat message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleSystem || r == RoleUser || r == RoleAssistant
}

// ChatMessage is one entry of a chat transcript
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
}

// Chat talks to an OpenAI-compatible chat completion API
type Chat struct {
	endpoint
	model  string
	apiKey string
}

// NewChat creates a chat adapter for the given base URL
func NewChat(baseURL string, cfg config.Chat, opts ...Option) *Chat {
	return &Chat{
		endpoint: newEndpoint("chat", baseURL, "Failed to connect to the chat service", opts),
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
	}
}

// CheckStatus reports whether the service lists its models
func (c *Chat) CheckStatus(ctx context.Context) bool {
	resp, err := c.send(ctx, request{
		operation: "status",
		method:    http.MethodGet,
		path:      "/models",
		header:    c.authHeader(),
	})
	if err != nil {
		return false
	}
	return resp.status == http.StatusOK
}

// Complete sends the ordered transcript and returns the assistant's reply
func (c *Chat) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", invalid("at least one message is required")
	}
	for i, m := range messages {
		if !m.Role.Valid() {
			return "", invalid("message %d has unknown role %q", i, m.Role)
		}
	}

	body, err := jsonBody(completionRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", err
	}

	resp, err := c.send(ctx, request{
		operation:   "complete",
		method:      http.MethodPost,
		path:        "/chat/completions",
		body:        body,
		contentType: "application/json",
		header:      c.authHeader(),
	})
	if err != nil {
		return "", err
	}
	if !resp.ok() {
		return "", c.apiError(resp, "Chat request failed", "error", "message")
	}

	var completion completionResponse
	if err := c.decode(resp, &completion); err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", &APIError{Service: c.service, Status: resp.status, Message: "chat service returned no choices"}
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

func (c *Chat) authHeader() http.Header {
	if c.apiKey == "" {
		return nil
	}
	return http.Header{"Authorization": []string{"Bearer " + c.apiKey}}
}

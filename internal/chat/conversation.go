// Package chat keeps chat transcripts: the turn-taking rules of a
// conversation and a sqlite store that persists them between requests.
package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/kartoza/stats-workbench/internal/backend"
)

// DefaultSystemPrompt seeds new conversations when none is configured
const DefaultSystemPrompt = "You are a helpful assistant."

// FallbackReply is recorded as the assistant turn when a completion fails
const FallbackReply = "Sorry, I encountered an error. Please try again."

// ErrEmptyMessage is returned by Send for blank input; nothing is recorded
var ErrEmptyMessage = errors.New("message is empty")

// Completer produces the assistant reply for an ordered transcript
type Completer interface {
	Complete(ctx context.Context, messages []backend.ChatMessage) (string, error)
}

// Conversation is an ordered transcript of chat messages
type Conversation struct {
	messages []backend.ChatMessage
}

// NewConversation starts a transcript holding only the system prompt
func NewConversation(systemPrompt string) *Conversation {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &Conversation{
		messages: []backend.ChatMessage{{Role: backend.RoleSystem, Content: systemPrompt}},
	}
}

// Restore rebuilds a conversation from previously recorded messages
func Restore(messages []backend.ChatMessage) *Conversation {
	c := &Conversation{messages: make([]backend.ChatMessage, len(messages))}
	copy(c.messages, messages)
	return c
}

// Messages returns a copy of the full transcript, system prompt included
func (c *Conversation) Messages() []backend.ChatMessage {
	out := make([]backend.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// Visible returns the messages a user sees, i.e. everything but system entries
func (c *Conversation) Visible() []backend.ChatMessage {
	return visible(c.messages)
}

// Send records the user's text, asks the completer for a reply and records
// exactly one assistant entry. When the completion fails the fallback reply
// is recorded instead and the failure is returned with the new entries.
func (c *Conversation) Send(ctx context.Context, completer Completer, text string) ([]backend.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	start := len(c.messages)
	c.messages = append(c.messages, backend.ChatMessage{Role: backend.RoleUser, Content: text})

	reply, err := completer.Complete(ctx, c.Messages())
	if err != nil {
		reply = FallbackReply
	}
	c.messages = append(c.messages, backend.ChatMessage{Role: backend.RoleAssistant, Content: reply})

	appended := make([]backend.ChatMessage, len(c.messages)-start)
	copy(appended, c.messages[start:])
	return appended, err
}

func visible(messages []backend.ChatMessage) []backend.ChatMessage {
	out := make([]backend.ChatMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role != backend.RoleSystem {
			out = append(out, m)
		}
	}
	return out
}

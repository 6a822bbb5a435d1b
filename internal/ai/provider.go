package ai

import (
	"context"
	"errors"
	"strings"
)

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider performs one chat completion against a language model.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// ProviderFunc adapts a plain function to Provider.
type ProviderFunc func(ctx context.Context, messages []Message) (string, error)

func (f ProviderFunc) Chat(ctx context.Context, messages []Message) (string, error) {
	return f(ctx, messages)
}

var ErrEmptyReply = errors.New("ai: empty reply")

// Invoke sends a single system+user exchange and returns the trimmed reply.
// An empty system prompt is omitted from the request.
func Invoke(ctx context.Context, p Provider, systemPrompt, userContent string) (string, error) {
	if p == nil {
		return "", errors.New("ai: provider is nil")
	}
	msgs := make([]Message, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: systemPrompt})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: userContent})

	reply, err := p.Chat(ctx, msgs)
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}

package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "llama3:latest"
)

// OllamaProvider talks to a local Ollama daemon through /api/chat.
type OllamaProvider struct {
	BaseURL string
	Model   string
	// KeepAlive is forwarded as keep_alive so the model stays loaded between stages.
	KeepAlive string
	Client    *http.Client
}

func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	if model == "" {
		model = defaultOllamaModel
	}
	return &OllamaProvider{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Model:     model,
		KeepAlive: "10m",
		Client:    &http.Client{Timeout: 5 * time.Minute},
	}
}

type ollamaRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	Stream    bool      `json:"stream"`
	KeepAlive string    `json:"keep_alive,omitempty"`
}

type ollamaResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
	Error   string  `json:"error,omitempty"`
}

func (p *OllamaProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	in := ollamaRequest{Model: p.Model, Messages: messages, KeepAlive: p.KeepAlive}

	var out ollamaResponse
	if err := postJSON(ctx, p.Client, "ollama", p.BaseURL+"/api/chat", nil, in, &out); err != nil {
		return "", err
	}
	if out.Error != "" {
		return "", errors.New("ollama: " + out.Error)
	}
	return out.Message.Content, nil
}

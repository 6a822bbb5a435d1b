package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterProvider uses the OpenAI-compatible /chat/completions endpoint.
type OpenRouterProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	// SiteURL and AppName feed OpenRouter's attribution headers.
	SiteURL string
	AppName string
	Client  *http.Client
}

func NewOpenRouterProvider(baseURL, apiKey, model, siteURL, appName string) *OpenRouterProvider {
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}
	return &OpenRouterProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  strings.TrimSpace(apiKey),
		Model:   strings.TrimSpace(model),
		SiteURL: siteURL,
		AppName: appName,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *OpenRouterProvider) header() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+p.APIKey)
	if p.SiteURL != "" {
		h.Set("HTTP-Referer", p.SiteURL)
	}
	if p.AppName != "" {
		h.Set("X-Title", p.AppName)
	}
	return h
}

func (p *OpenRouterProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	switch {
	case p.APIKey == "":
		return "", errors.New("openrouter: api key is required")
	case p.Model == "":
		return "", errors.New("openrouter: model is required")
	}

	var out completionResponse
	in := completionRequest{Model: p.Model, Messages: messages}
	if err := postJSON(ctx, p.Client, "openrouter", p.BaseURL+"/chat/completions", p.header(), in, &out); err != nil {
		return "", err
	}
	if out.Error != nil && out.Error.Message != "" {
		return "", errors.New("openrouter: " + out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("openrouter: no choices in response")
	}
	return out.Choices[0].Message.Content, nil
}

package ai

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ProviderFactory builds a provider for the requested model. An empty model
// means the factory's own default.
type ProviderFactory func(ctx context.Context, model string) (Provider, error)

type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *Registry) Register(name string, f ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[normalizeName(name)] = f
}

func (r *Registry) Get(ctx context.Context, name string, model string) (Provider, error) {
	r.mu.RLock()
	f, ok := r.factories[normalizeName(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown ai provider: %s", name)
	}
	return f(ctx, strings.TrimSpace(model))
}

// Names lists registered providers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Settings carries the provider knobs read from configuration.
type Settings struct {
	OllamaBaseURL     string
	OllamaModel       string
	OpenRouterBaseURL string
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterSiteURL string
	OpenRouterAppName string
}

// NewDefaultRegistry registers the ollama and openrouter providers.
func NewDefaultRegistry(s Settings) *Registry {
	reg := NewRegistry()
	reg.Register("ollama", func(_ context.Context, model string) (Provider, error) {
		if model == "" {
			model = s.OllamaModel
		}
		return NewOllamaProvider(s.OllamaBaseURL, model), nil
	})
	reg.Register("openrouter", func(_ context.Context, model string) (Provider, error) {
		if model == "" {
			model = s.OpenRouterModel
		}
		if strings.TrimSpace(s.OpenRouterAPIKey) == "" {
			return nil, fmt.Errorf("openrouter: OPENROUTER_API_KEY is not set")
		}
		return NewOpenRouterProvider(s.OpenRouterBaseURL, s.OpenRouterAPIKey, model, s.OpenRouterSiteURL, s.OpenRouterAppName), nil
	})
	return reg
}

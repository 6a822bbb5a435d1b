package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/suPer8Hu/content-pipeline/internal/ai"
	"github.com/suPer8Hu/content-pipeline/internal/auth"
	"github.com/suPer8Hu/content-pipeline/internal/config"
)

func testDeps(cfg config.Config, gotProvider *string) deps {
	return deps{
		loadConfig: func() config.Config { return cfg },
		provider: func(_ context.Context, c config.Config) (ai.Provider, error) {
			if gotProvider != nil {
				*gotProvider = c.AIProvider
			}
			return ai.ProviderFunc(func(_ context.Context, msgs []ai.Message) (string, error) {
				return "reply to " + msgs[len(msgs)-1].Content, nil
			}), nil
		},
	}
}

func run(t *testing.T, d deps, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(d)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestGenerate_PrintsEverySection(t *testing.T) {
	var provider string
	cfg := config.Config{AIProvider: "ollama", InstructionsDir: t.TempDir()}

	out, progress, err := run(t, testDeps(cfg, &provider), "generate", "--provider", "OpenRouter", "--content", "a new bike lane")
	if err != nil {
		t.Fatal(err)
	}
	if provider != "openrouter" {
		t.Fatalf("provider override not applied: %q", provider)
	}
	for _, h := range []string{"=== POST ===", "=== SCRIPT ===", "=== ANALYSIS ==="} {
		if !strings.Contains(out, h) {
			t.Fatalf("missing %s in output:\n%s", h, out)
		}
	}
	if !strings.Contains(progress, "analysis stage done") {
		t.Fatalf("expected progress on stderr, got %q", progress)
	}
}

func TestGenerate_RequiresContent(t *testing.T) {
	_, _, err := run(t, testDeps(config.Config{}, nil), "generate", "--content", "  ")
	if err == nil || !strings.Contains(err.Error(), "content is required") {
		t.Fatalf("expected content error, got %v", err)
	}
}

func TestToken(t *testing.T) {
	cfg := config.Config{JWTSecret: "s3cret"}
	out, _, err := run(t, testDeps(cfg, nil), "token", "--subject", "ops", "--ttl", time.Minute.String())
	if err != nil {
		t.Fatal(err)
	}
	sub, err := auth.ParseJWT(strings.TrimSpace(out), "s3cret")
	if err != nil || sub != "ops" {
		t.Fatalf("parse minted token: sub=%q err=%v", sub, err)
	}

	if _, _, err := run(t, testDeps(config.Config{}, nil), "token"); err == nil {
		t.Fatalf("expected error without JWT_SECRET")
	}
}

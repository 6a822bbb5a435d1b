package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/suPer8Hu/content-pipeline/internal/ai"
)

type Config struct {
	AppEnv string
	Port   string

	// AI provider
	AIProvider        string
	AIModel           string
	OllamaBaseURL     string
	OllamaModel       string
	OpenRouterBaseURL string
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterSiteURL string
	OpenRouterAppName string

	// pipeline + jobs
	InstructionsDir    string
	StageTimeout       time.Duration
	MaxConcurrentJobs  int
	StreamPollInterval time.Duration

	// http
	CORSOrigins     []string
	RateLimitPerMin int
	JWTSecret       string

	// redis (rate limiting)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// rabbitMQ (job events)
	RabbitURL   string
	RabbitQueue string

	// analytics ledger
	AnalyticsDBDriver string
	AnalyticsDSN      string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppEnv: getEnv("APP_ENV", "production"),
		Port:   getEnv("PORT", "8000"),

		AIProvider:        strings.ToLower(getEnv("AI_PROVIDER", "ollama")),
		AIModel:           os.Getenv("AI_MODEL"),
		OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:       getEnv("OLLAMA_MODEL", "llama3:latest"),
		OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:   getEnv("OPENROUTER_MODEL", "openrouter/auto"),
		OpenRouterSiteURL: os.Getenv("OPENROUTER_SITE_URL"),
		OpenRouterAppName: getEnv("OPENROUTER_APP_NAME", "content-pipeline"),

		InstructionsDir:    getEnv("INSTRUCTIONS_DIR", "instructions"),
		StageTimeout:       time.Duration(getEnvInt("STAGE_TIMEOUT_SECONDS", 120)) * time.Second,
		MaxConcurrentJobs:  clamp(getEnvInt("MAX_CONCURRENT_JOBS", 4), 1, 64),
		StreamPollInterval: time.Duration(clamp(getEnvInt("STREAM_POLL_INTERVAL_MS", 1000), 50, 60000)) * time.Millisecond,

		CORSOrigins:     splitList(getEnv("CORS_ORIGINS", "*")),
		RateLimitPerMin: getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		JWTSecret:       os.Getenv("JWT_SECRET"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RabbitURL:   os.Getenv("RABBIT_URL"),
		RabbitQueue: getEnv("RABBIT_QUEUE", "content_job_events"),

		AnalyticsDBDriver: os.Getenv("ANALYTICS_DB_DRIVER"),
		AnalyticsDSN:      os.Getenv("ANALYTICS_DSN"),
	}
}

func (c Config) Development() bool {
	return c.AppEnv == "development"
}

// ProviderSettings returns the knobs ai.NewDefaultRegistry needs.
func (c Config) ProviderSettings() ai.Settings {
	return ai.Settings{
		OllamaBaseURL:     c.OllamaBaseURL,
		OllamaModel:       c.OllamaModel,
		OpenRouterBaseURL: c.OpenRouterBaseURL,
		OpenRouterAPIKey:  c.OpenRouterAPIKey,
		OpenRouterModel:   c.OpenRouterModel,
		OpenRouterSiteURL: c.OpenRouterSiteURL,
		OpenRouterAppName: c.OpenRouterAppName,
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

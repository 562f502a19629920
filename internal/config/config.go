package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	AllowedOrigin string
	// Where the browser lands after sign-in completes
	FrontendURL string
	// LLM
	LLMProvider      string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	Model            string
	ImageModel       string
	AnthropicAPIKey  string
	AnthropicModel   string
	AnthropicBaseURL string
	// Database: postgres URL or sqlite://path
	DatabaseURL string
	// Google OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	GoogleScopes       []string
	SessionTTL         time.Duration
	CookieSecure       bool
	// Prompts
	PromptsFile  string
	PromptsWatch bool
	// Timeouts
	RequestTimeout time.Duration
	SummaryTimeout time.Duration
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Port:               getEnvDefault("PORT", "8080"),
		AllowedOrigin:      getEnvDefault("ALLOWED_ORIGIN", "http://localhost:3000"),
		FrontendURL:        getEnvDefault("FRONTEND_URL", "http://localhost:3000"),
		LLMProvider:        strings.ToLower(getEnvDefault("LLM_PROVIDER", "openai")),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:      os.Getenv("OPENAI_BASE_URL"),
		Model:              getEnvDefault("OPENAI_MODEL", "gpt-4o-mini"),
		ImageModel:         getEnvDefault("OPENAI_IMAGE_MODEL", "dall-e-3"),
		AnthropicAPIKey:    os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:     getEnvDefault("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
		AnthropicBaseURL:   os.Getenv("ANTHROPIC_BASE_URL"),
		DatabaseURL:        getEnvDefault("DB_URL", "sqlite://data/maiya.db"),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  getEnvDefault("GOOGLE_REDIRECT_URL", "http://localhost:8080/api/auth/callback"),
		GoogleScopes:       getEnvListDefault("GOOGLE_OAUTH_SCOPES", []string{"openid", "email", "profile"}),
		SessionTTL:         getEnvDurationDefault("SESSION_TTL", 7*24*time.Hour),
		CookieSecure:       getEnvBoolDefault("COOKIE_SECURE", false),
		PromptsFile:        os.Getenv("PROMPTS_FILE"),
		PromptsWatch:       getEnvBoolDefault("PROMPTS_WATCH", false),
		RequestTimeout:     getEnvDurationDefault("REQUEST_TIMEOUT", 90*time.Second),
		SummaryTimeout:     getEnvDurationDefault("SUMMARY_TIMEOUT", 30*time.Second),
	}
	if cfg.OpenAIAPIKey == "" {
		log.Println("warning: OPENAI_API_KEY is not set; image generation and OpenAI chat will fail until provided")
	}
	if cfg.LLMProvider == "anthropic" && cfg.AnthropicAPIKey == "" {
		log.Println("warning: LLM_PROVIDER=anthropic but ANTHROPIC_API_KEY is not set")
	}
	return cfg
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvListDefault(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			s := strings.TrimSpace(p)
			if s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}

func getEnvBoolDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getEnvDurationDefault(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err == nil && d > 0 {
			return d
		}
		log.Printf("warning: invalid duration for %s=%q, using %s", key, v, def)
	}
	return def
}

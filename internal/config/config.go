package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultPort              = "8080"
	defaultSessionCookieName = "brief_session"
	defaultSessionTTLHours   = 168
	defaultFrontendOrigin    = "http://localhost:5173"
	defaultGroqBaseURL       = "https://api.groq.com/openai/v1"
	defaultPlannerModel      = "gpt-4o-mini"
	defaultWriterModel       = "llama-3.3-70b-versatile"
	defaultBraveBaseURL      = "https://api.search.brave.com/res/v1"
	defaultMaxQueries        = 6
	defaultMaxConcurrency    = 5
	defaultMaxSources        = 3
	defaultResultsPerQuery   = 8
	defaultTimeoutSeconds    = 120
	defaultMaxQuestions      = 3
)

type Config struct {
	Port                string
	Environment         string
	FrontendOrigin      string
	AllowedOrigins      []string
	CookieSecure        bool
	SessionCookieName   string
	SessionTTL          time.Duration
	DatabaseURL         string
	DatabaseAuthToken   string
	GroqAPIKey          string
	GroqBaseURL         string
	PlannerModel        string
	WriterModel         string
	BraveAPIKey         string
	BraveBaseURL        string
	SendGridAPIKey      string
	SenderEmail         string
	MaxQueries          int
	MaxConcurrency      int
	MaxSources          int
	ResultsPerQuery     int
	BriefTimeoutSeconds int
	MaxQuestions        int
	AdminSessionToken   string
}

func (c Config) ListenAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func Load() (Config, error) {
	// A .env next to the binary fills in missing variables; real env
	// always takes precedence.
	_ = godotenv.Load()

	cfg := Config{
		Port:                envOrDefault("PORT", defaultPort),
		Environment:         envOrDefault("APP_ENV", "development"),
		FrontendOrigin:      envOrDefault("FRONTEND_ORIGIN", defaultFrontendOrigin),
		CookieSecure:        boolOrDefault("COOKIE_SECURE", false),
		SessionCookieName:   envOrDefault("SESSION_COOKIE_NAME", defaultSessionCookieName),
		DatabaseURL:         envOrDefault("DATABASE_URL", "file:intelbrief.db"),
		DatabaseAuthToken:   strings.TrimSpace(os.Getenv("DATABASE_AUTH_TOKEN")),
		GroqAPIKey:          strings.TrimSpace(os.Getenv("GROQ_API_KEY")),
		GroqBaseURL:         envOrDefault("GROQ_BASE_URL", defaultGroqBaseURL),
		PlannerModel:        envOrDefault("PLANNER_MODEL", defaultPlannerModel),
		WriterModel:         envOrDefault("WRITER_MODEL", defaultWriterModel),
		BraveAPIKey:         strings.TrimSpace(os.Getenv("BRAVE_API_KEY")),
		BraveBaseURL:        envOrDefault("BRAVE_BASE_URL", defaultBraveBaseURL),
		SendGridAPIKey:      strings.TrimSpace(os.Getenv("SENDGRID_API_KEY")),
		SenderEmail:         strings.TrimSpace(os.Getenv("FROM_EMAIL")),
		MaxQueries:          intOrDefault("MAX_QUERIES", defaultMaxQueries),
		MaxConcurrency:      intOrDefault("MAX_CONCURRENCY", defaultMaxConcurrency),
		MaxSources:          intOrDefault("MAX_SOURCES", defaultMaxSources),
		ResultsPerQuery:     intOrDefault("RESULTS_PER_QUERY", defaultResultsPerQuery),
		BriefTimeoutSeconds: intOrDefault("BRIEF_TIMEOUT_SECONDS", defaultTimeoutSeconds),
		MaxQuestions:        intOrDefault("MAX_QUESTIONS", defaultMaxQuestions),
		AdminSessionToken:   envOrDefault("ADMIN_SESSION_TOKEN", "ADMIN-OVERRIDE"),
	}

	if cfg.Environment == "production" {
		cfg.CookieSecure = true
	}

	sessionTTLHours := intOrDefault("SESSION_TTL_HOURS", defaultSessionTTLHours)
	cfg.SessionTTL = time.Duration(sessionTTLHours) * time.Hour
	if cfg.SessionTTL <= 0 {
		return Config{}, errors.New("SESSION_TTL_HOURS must be > 0")
	}

	origins := parseList(envOrDefault("CORS_ALLOWED_ORIGINS", cfg.FrontendOrigin+",http://localhost:4173"))
	if len(origins) == 0 {
		return Config{}, errors.New("CORS_ALLOWED_ORIGINS must include at least one origin")
	}
	cfg.AllowedOrigins = origins

	if strings.HasPrefix(cfg.DatabaseURL, "libsql://") && cfg.DatabaseAuthToken == "" {
		return Config{}, errors.New("DATABASE_AUTH_TOKEN is required for libsql:// URLs")
	}
	if cfg.GroqAPIKey == "" {
		return Config{}, errors.New("GROQ_API_KEY is required")
	}
	if cfg.SendGridAPIKey != "" && cfg.SenderEmail == "" {
		return Config{}, errors.New("FROM_EMAIL is required when SENDGRID_API_KEY is set")
	}
	if cfg.MaxQueries < 1 || cfg.MaxConcurrency < 1 || cfg.MaxSources < 1 {
		return Config{}, errors.New("MAX_QUERIES, MAX_CONCURRENCY and MAX_SOURCES must be >= 1")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func boolOrDefault(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func intOrDefault(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseList(raw string) []string {
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

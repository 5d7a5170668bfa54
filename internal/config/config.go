package config

import (
	"log"
	"os"
	"strconv"
)

// Config holds application configuration loaded from environment variables
type Config struct {
	DiscordClientID     string
	DiscordClientSecret string
	DiscordBotToken     string
	PublicServerInvite  string

	DatabaseURL   string
	SessionSecret string
	BaseURL       string

	PollSeconds int
	PollLimit   int
	DefaultTZ   string

	Env       string
	Port      string
	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		DiscordClientID:     os.Getenv("DISCORD_CLIENT_ID"),
		DiscordClientSecret: os.Getenv("DISCORD_CLIENT_SECRET"),
		DiscordBotToken:     os.Getenv("DISCORD_BOT_TOKEN"),
		PublicServerInvite:  os.Getenv("PUBLIC_SERVER_INVITE_URL"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		SessionSecret:       os.Getenv("SESSION_SECRET"),
		BaseURL:             getEnvWithDefault("BASE_URL", "http://localhost:8080"),
		PollSeconds:         getEnvIntWithDefault("POLL_SECONDS", 30),
		PollLimit:           getEnvIntWithDefault("POLL_LIMIT", 50),
		DefaultTZ:           getEnvWithDefault("DEFAULT_TZ", "Asia/Seoul"),
		Env:                 getEnvWithDefault("ENV", "development"),
		Port:                getEnvWithDefault("PORT", "8080"),
		LogLevel:            getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvWithDefault("LOG_FORMAT", "text"),
	}

	if cfg.DiscordClientID == "" {
		log.Println("WARNING: DISCORD_CLIENT_ID not set. OAuth login will not work until credentials are configured.")
	}

	// Warn if using default session secret (insecure for production)
	if cfg.SessionSecret == "" {
		cfg.SessionSecret = "dev-secret-change-in-production-use-openssl-rand-hex-32"
		log.Println("WARNING: Using default SESSION_SECRET. Generate a secure secret with: openssl rand -hex 32")
	}

	return cfg
}

// CallbackURL is the OAuth redirect URI registered with Discord.
func (c *Config) CallbackURL() string {
	return c.BaseURL + "/auth/discord/callback"
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("WARNING: %s=%q is not an integer, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

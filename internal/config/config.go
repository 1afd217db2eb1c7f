package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMySQL    = "mysql"
	StoreDriverMemory   = "memory"
)

type Config struct {
	// Application
	AppEnv   string
	AppPort  string
	LogLevel string

	// Storage
	StoreDriver string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string

	// Security
	JWTSecret      string
	AllowedOrigins []string

	// Telegram transport, disabled when empty
	BotToken string

	// Scoring defaults, used when no active algorithm row exists
	ScoreWeightInterest float64
	ScoreWeightTime     float64
	ScoreWeightDuration float64

	// Matchmaking
	MatchRescanSeconds  int
	ProfileCacheSeconds int

	// Moderation
	ModerationURL              string
	ModerationAPIKey           string
	ModerationWordList         string
	ModerationAutoBanThreshold float64
	ModerationSuppressFlagged  bool

	// Translation
	TranslationURL    string
	TranslationAPIKey string

	// Relay
	MessageRatePerMinute int
	MessageRateBurst     int
	MaxMessageLength     int
	InterestWorkers      int

	// Connection upgrades per client IP
	ConnectRatePerMinute int
	ConnectRateBurst     int
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		AppPort:  getEnv("APP_PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      getEnv("DB_USER", "strangerwave"),
		DBPassword:  getEnv("DB_PASSWORD", ""),
		DBName:      getEnv("DB_NAME", "strangerwave"),
		DBSSLMode:   getEnv("DB_SSLMODE", "disable"),

		JWTSecret:      getEnv("JWT_SECRET_KEY", ""),
		AllowedOrigins: getEnvList("WS_ALLOWED_ORIGINS"),
		BotToken:       getEnv("BOT_TOKEN", ""),

		ScoreWeightInterest: getEnvFloat("SCORE_WEIGHT_INTEREST", 0.5),
		ScoreWeightTime:     getEnvFloat("SCORE_WEIGHT_TIME", 0.3),
		ScoreWeightDuration: getEnvFloat("SCORE_WEIGHT_DURATION", 0.2),

		MatchRescanSeconds:  getEnvInt("MATCH_RESCAN_SECONDS", 5),
		ProfileCacheSeconds: getEnvInt("PROFILE_CACHE_SECONDS", 30),

		ModerationURL:              getEnv("MODERATION_URL", ""),
		ModerationAPIKey:           getEnv("MODERATION_API_KEY", ""),
		ModerationWordList:         getEnv("MODERATION_WORDLIST", ""),
		ModerationAutoBanThreshold: getEnvFloat("MODERATION_AUTOBAN_THRESHOLD", 0.95),
		ModerationSuppressFlagged:  getEnvBool("MODERATION_SUPPRESS_FLAGGED", true),

		TranslationURL:    getEnv("TRANSLATION_URL", ""),
		TranslationAPIKey: getEnv("TRANSLATION_API_KEY", ""),

		MessageRatePerMinute: getEnvInt("MESSAGE_RATE_PER_MINUTE", 60),
		MessageRateBurst:     getEnvInt("MESSAGE_RATE_BURST", 10),
		MaxMessageLength:     getEnvInt("MAX_MESSAGE_LENGTH", 1000),
		InterestWorkers:      getEnvInt("INTEREST_WORKERS", 4),

		ConnectRatePerMinute: getEnvInt("CONNECT_RATE_PER_MINUTE", 30),
		ConnectRateBurst:     getEnvInt("CONNECT_RATE_BURST", 5),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMySQL:
		if c.DBPassword == "" {
			return fmt.Errorf("DB_PASSWORD is required for STORE_DRIVER=%s", c.StoreDriver)
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER: %s", c.StoreDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters")
	}
	if c.ScoreWeightInterest < 0 || c.ScoreWeightTime < 0 || c.ScoreWeightDuration < 0 {
		return fmt.Errorf("score weights must not be negative")
	}
	if c.ScoreWeightInterest+c.ScoreWeightTime+c.ScoreWeightDuration == 0 {
		return fmt.Errorf("at least one score weight must be positive")
	}
	if c.ModerationAutoBanThreshold <= 0 || c.ModerationAutoBanThreshold > 1 {
		return fmt.Errorf("MODERATION_AUTOBAN_THRESHOLD must be in (0,1]")
	}
	if c.MaxMessageLength <= 0 {
		return fmt.Errorf("MAX_MESSAGE_LENGTH must be positive")
	}
	return nil
}

func (c *Config) ValidateProductionSecurity() error {
	if c.AppEnv != "production" {
		return nil
	}

	if c.StoreDriver == StoreDriverMemory {
		return fmt.Errorf("STORE_DRIVER=memory is not allowed in production")
	}
	if c.StoreDriver == StoreDriverPostgres && c.DBSSLMode != "require" {
		return fmt.Errorf("DB_SSLMODE must be 'require' in production")
	}
	if c.JWTSecret == "your_jwt_secret_minimum_32_chars_here_change_this" {
		return fmt.Errorf("JWT_SECRET_KEY must be changed from default in production")
	}

	return nil
}

func (c *Config) GetDSN() string {
	if c.StoreDriver == StoreDriverMySQL {
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) GetRescanInterval() time.Duration {
	return time.Duration(c.MatchRescanSeconds) * time.Second
}

func (c *Config) GetProfileCacheTTL() time.Duration {
	return time.Duration(c.ProfileCacheSeconds) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

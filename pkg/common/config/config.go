package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// MongoDB
	MongoURL      string
	MongoDatabase string
	MongoTimeout  time.Duration

	// Postgres (accounts and sessions)
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration

	// Kafka
	KafkaBrokers           []string
	KafkaPrescriptionTopic string

	// JWT
	SecretKey      string
	Algorithm      string
	AccessTokenTTL time.Duration
	TokenIssuer    string

	// AI model
	AIModel       string
	AIAPIKey      string
	AIAPIBase     string
	AIMaxTokens   int
	AITemperature float64
	AITimeout     time.Duration

	// Image fetch
	ImageFetchTimeout  time.Duration
	ImageFetchAttempts int

	// Object storage
	StorageEndpoint      string
	StorageRegion        string
	StorageAccessKey     string
	StorageSecretKey     string
	StorageBucket        string
	StoragePublicBaseURL string
	StorageFolder        string
	StoragePresignTTL    time.Duration

	// Error reporting
	SentryDSN         string
	SentryEnvironment string

	RateLimitRPS   int
	RateLimitBurst int
}

// Load reads .env (if present), the optional YAML file named by CONFIG_FILE,
// and the process environment. Real environment variables take precedence
// over both files.
func Load() *Config {
	_ = godotenv.Load()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "config: ignoring %s: %v\n", path, err)
		}
	}

	return &Config{
		ServerPort:     getEnv("PORT", "8000"),
		ServerHost:     getEnv("HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 5*time.Minute),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 10*1024*1024)),

		MongoURL:      getEnv("MONGODB_URL", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("DATABASE_NAME", "mediscanner"),
		MongoTimeout:  getDuration("MONGODB_TIMEOUT", 10*time.Second),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "mediscanner"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "mediscanner"),
		PostgresDB:       getEnv("POSTGRES_DB", "mediscanner"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		SessionTTL:    getDuration("SESSION_CACHE_TTL", 15*time.Minute),

		KafkaBrokers:           getStringSliceEnv("KAFKA_BROKERS", nil),
		KafkaPrescriptionTopic: getEnv("KAFKA_PRESCRIPTION_TOPIC", "prescription-events"),

		SecretKey:      getEnv("SECRET_KEY", ""),
		Algorithm:      getEnv("ALGORITHM", "HS256"),
		AccessTokenTTL: time.Duration(getIntEnv("ACCESS_TOKEN_EXPIRE_MINUTES", 30)) * time.Minute,
		TokenIssuer:    getEnv("TOKEN_ISSUER", "mediscanner-api"),

		AIModel:       getEnv("AI_MODEL", "gpt-4o-mini"),
		AIAPIKey:      getEnv("AI_API_KEY", ""),
		AIAPIBase:     getEnv("AI_API_BASE", "https://api.openai.com/v1"),
		AIMaxTokens:   getIntEnv("AI_MAX_TOKENS", 2000),
		AITemperature: getFloatEnv("AI_TEMPERATURE", 0.1),
		AITimeout:     getDuration("AI_TIMEOUT", 60*time.Second),

		ImageFetchTimeout:  getDuration("IMAGE_FETCH_TIMEOUT", 30*time.Second),
		ImageFetchAttempts: getIntEnv("IMAGE_FETCH_ATTEMPTS", 2),

		StorageEndpoint:      getEnv("STORAGE_ENDPOINT", ""),
		StorageRegion:        getEnv("STORAGE_REGION", "auto"),
		StorageAccessKey:     getEnv("STORAGE_ACCESS_KEY", ""),
		StorageSecretKey:     getEnv("STORAGE_SECRET_KEY", ""),
		StorageBucket:        getEnv("STORAGE_BUCKET", ""),
		StoragePublicBaseURL: getEnv("STORAGE_PUBLIC_BASE_URL", ""),
		StorageFolder:        getEnv("STORAGE_FOLDER", "medical-prescriptions"),
		StoragePresignTTL:    getDuration("STORAGE_PRESIGN_TTL", 15*time.Minute),

		SentryDSN:         getEnv("SENTRY_DSN", ""),
		SentryEnvironment: getEnv("SENTRY_ENVIRONMENT", "development"),

		RateLimitRPS:   getIntEnv("RATE_LIMIT_RPS", 50),
		RateLimitBurst: getIntEnv("RATE_LIMIT_BURST", 100),
	}
}

// PostgresDSN renders the gorm/pgx connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.PostgresHost,
		c.PostgresUser,
		c.PostgresPassword,
		c.PostgresDB,
		c.PostgresPort,
		c.PostgresSSLMode,
	)
}

// applyFile sets every key of a flat YAML mapping as an environment variable
// unless that variable is already set.
func applyFile(path string) error {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return err
	}

	var values map[string]interface{}
	if err := yaml.Unmarshal(content, &values); err != nil {
		return err
	}

	for key, value := range values {
		key = strings.ToUpper(strings.TrimSpace(key))
		if key == "" || value == nil {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		var rendered string
		switch v := value.(type) {
		case []interface{}:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				parts = append(parts, fmt.Sprint(item))
			}
			rendered = strings.Join(parts, ",")
		default:
			rendered = fmt.Sprint(v)
		}
		if err := os.Setenv(key, rendered); err != nil {
			return err
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	// Storage
	UseMemoryStore    bool
	PatientsTable     string
	AppointmentsTable string
	BotsTable         string
	CallsTable        string

	// OpenMic voice-AI provider
	OpenMicAPIKey        string
	OpenMicBaseURL       string
	OpenMicWebhookSecret string
	OpenMicTimeout       time.Duration
	OpenMicMaxRetries    int

	// AWS (DynamoDB, SQS, S3; endpoint override targets LocalStack)
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Mirror reconciliation
	ReconcileQueueURL string
	UseMemoryQueue    bool

	// Call audit archive
	AuditBucket string

	// Bot cache
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	BotCacheTTL   time.Duration

	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		UseMemoryStore:    getEnvAsBool("USE_MEMORY_STORE", false),
		PatientsTable:     getEnv("PATIENTS_TABLE", "patients"),
		AppointmentsTable: getEnv("APPOINTMENTS_TABLE", "appointments"),
		BotsTable:         getEnv("BOTS_TABLE", "bots"),
		CallsTable:        getEnv("CALLS_TABLE", "calls"),

		OpenMicAPIKey:        getEnv("OPENMIC_API_KEY", ""),
		OpenMicBaseURL:       getEnv("OPENMIC_BASE_URL", ""),
		OpenMicWebhookSecret: getEnv("OPENMIC_WEBHOOK_SECRET", ""),
		OpenMicTimeout:       getEnvAsDuration("OPENMIC_TIMEOUT", 10*time.Second),
		OpenMicMaxRetries:    getEnvAsInt("OPENMIC_MAX_RETRIES", 3),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		ReconcileQueueURL: getEnv("RECONCILE_QUEUE_URL", ""),
		UseMemoryQueue:    getEnvAsBool("USE_MEMORY_QUEUE", false),

		AuditBucket: getEnv("AUDIT_BUCKET", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		BotCacheTTL:   getEnvAsDuration("BOT_CACHE_TTL", 5*time.Minute),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// internal/infrastructure/config/config.go
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// App
	AppVersion string
	LogLevel   string

	// Server
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Scheduler
	CheckInterval time.Duration

	// Fare tracking file
	ConfigPath string

	// Database credentials
	CredentialsFile         string
	AllowDefaultCredentials bool
	DBRetryAttempts         int
	DBRetryDelay            time.Duration

	// MongoDB alert log, optional
	MongoURI      string
	MongoDB       string
	MongoUser     string
	MongoPassword string

	// Push notifications
	PushToken    string
	PushEndpoint string
	UserAgent    string
}

// DefaultUserAgent is sent to the fare and push APIs
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		AppVersion: getEnv("APP_VERSION", "1.0.0"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		Port:         getEnv("PORT", "8080"),
		ReadTimeout:  time.Duration(getEnvAsInt("READ_TIMEOUT", 30)) * time.Second,
		WriteTimeout: time.Duration(getEnvAsInt("WRITE_TIMEOUT", 30)) * time.Second,

		CheckInterval: time.Duration(getEnvAsInt("CHECK_INTERVAL", 240)) * time.Minute,

		ConfigPath: getEnv("FLIGHT_CONFIG_PATH", "config.json"),

		CredentialsFile:         getEnv("FLIGHT_DB_CREDENTIALS_FILE", "credentials.yaml"),
		AllowDefaultCredentials: getEnvAsBool("FLIGHT_DB_ALLOW_DEFAULTS", false),
		DBRetryAttempts:         getEnvAsInt("FLIGHT_DB_RETRY_ATTEMPTS", 3),
		DBRetryDelay:            time.Duration(getEnvAsInt("FLIGHT_DB_RETRY_DELAY", 2)) * time.Second,

		MongoURI:      getEnv("MONGODB_DSN", ""),
		MongoDB:       getEnv("MONGO_DB", "flight_alert"),
		MongoUser:     getEnv("MONGO_USER", ""),
		MongoPassword: getEnv("MONGO_PASSWORD", ""),

		PushToken:    getEnv("PUSH_TOKEN", ""),
		PushEndpoint: getEnv("PUSH_ENDPOINT", "https://www.pushplus.plus/send"),
		UserAgent:    getEnv("USER_AGENT", DefaultUserAgent),
	}

	return config, nil
}

// Helper functions to get environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all service configuration
type Config struct {
	Service    ServiceConfig
	AI         AIConfig
	Robot      RobotConfig
	Retry      RetryConfig
	Checkpoint CheckpointConfig
	Auth       AuthConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name          string
	Port          int
	Environment   string
	LogLevel      string
	LogFormat     string
	LogTimestamps bool
}

// AIConfig holds generative model settings for the AI actor
type AIConfig struct {
	GeminiAPIKey string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
}

// RobotConfig holds robot actor connection settings
type RobotConfig struct {
	Simulation bool
	Protocol   string
	Host       string
	Port       int
}

// RetryConfig holds default retry tuning for actor invocation
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
}

// CheckpointConfig holds checkpoint persistence settings
type CheckpointConfig struct {
	Dir          string
	AutoInterval time.Duration
	RedisAddr    string
}

// AuthConfig holds control-plane authentication settings
type AuthConfig struct {
	Enabled   bool
	JWTSecret string
	RateLimit int // requests per second, 0 disables
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:          serviceName,
			Port:          getEnvInt("PORT", 3000),
			Environment:   getEnv("ENVIRONMENT", "development"),
			LogLevel:      getEnv("LOG_LEVEL", "info"),
			LogFormat:     getEnv("LOG_FORMAT", "text"),
			LogTimestamps: getEnvBool("LOG_TIMESTAMPS", true),
		},
		AI: AIConfig{
			GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
			BaseURL:      getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			DefaultModel: getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			Timeout:      getEnvDuration("GEMINI_TIMEOUT", 60*time.Second),
		},
		Robot: RobotConfig{
			Simulation: getEnvBool("ROBOT_SIMULATION", true),
			Protocol:   getEnv("ROBOT_PROTOCOL", "ros2"),
			Host:       getEnv("ROBOT_HOST", ""),
			Port:       getEnvInt("ROBOT_PORT", 0),
		},
		Retry: RetryConfig{
			MaxRetries:   getEnvInt("RETRY_MAX_RETRIES", 3),
			InitialDelay: getEnvDuration("RETRY_INITIAL_DELAY", 1*time.Second),
			MaxDelay:     getEnvDuration("RETRY_MAX_DELAY", 30*time.Second),
			Multiplier:   getEnvFloat("RETRY_MULTIPLIER", 2.0),
			Jitter:       getEnvBool("RETRY_JITTER", true),
		},
		Checkpoint: CheckpointConfig{
			Dir:          getEnv("CHECKPOINT_DIR", ".agentflow/checkpoints"),
			AutoInterval: getEnvDuration("CHECKPOINT_INTERVAL", 30*time.Second),
			RedisAddr:    getEnv("CHECKPOINT_REDIS_ADDR", ""),
		},
		Auth: AuthConfig{
			Enabled:   getEnvBool("AUTH_ENABLED", true),
			JWTSecret: getEnv("JWT_SECRET", ""),
			RateLimit: getEnvInt("RATE_LIMIT", 0),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	switch c.Service.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Service.LogLevel)
	}

	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry max_retries must be >= 0")
	}

	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry multiplier must be >= 1")
	}

	return nil
}

// Helper functions

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
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

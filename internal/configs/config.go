package configs

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type DatabaseConfig struct {
	URL             string
	TableName       string
	MaxConns        int
	MaxConnLifetime time.Duration
	MigrateOnStart  bool
	MaxRetries      int
}

type RabbitMQConfig struct {
	URL string
}

type BatchConfig struct {
	Size         int
	Timeout      time.Duration
	DrainTimeout time.Duration
	Concurrency  int
	StoreTimeout time.Duration
	// RetryTTL is how long a failed delivery waits in the retry queue.
	RetryTTL   time.Duration
	MaxRetries int
}

type RESTconfig struct {
	PORT           string
	AllowedOrigins []string
}

type StdoutLogConfig struct {
	Level  string
	Format string // text or json
}

type FluentBitConfig struct {
	Host    string
	Port    int
	Enabled bool
	Level   string
}

type AppConfig struct {
	Database         DatabaseConfig
	RabbitMQ         RabbitMQConfig
	Batch            BatchConfig
	Rest             RESTconfig
	FluentBit        FluentBitConfig
	StdoutLogger     StdoutLogConfig
	AppName          string
	MetricsNamespace string
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// LoadConfig reads an optional .env file and then the process environment.
// An explicitly passed env file must exist.
func LoadConfig(envPath ...string) (*AppConfig, error) {
	if len(envPath) > 0 {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("could not load .env file (path: %v): %w", envPath[0], err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("could not load .env file: %w", err)
	}

	cfg := &AppConfig{}

	cfg.AppName = getEnvAsString("APP_NAME", "share-worker")
	cfg.MetricsNamespace = getEnvAsString("METRICS_NAMESPACE", "ShareWorker")

	cfg.Database.URL = os.Getenv("DATABASE_URL")
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	cfg.Database.TableName = os.Getenv("TABLE_NAME")
	if cfg.Database.TableName == "" {
		return nil, fmt.Errorf("TABLE_NAME environment variable is required")
	}
	if !tableNamePattern.MatchString(cfg.Database.TableName) {
		return nil, fmt.Errorf("TABLE_NAME %q is not a valid table identifier", cfg.Database.TableName)
	}
	cfg.Database.MaxConns = getEnvAsInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", time.Hour)
	cfg.Database.MigrateOnStart = getEnvAsBool("MIGRATE_ON_START", true)
	cfg.Database.MaxRetries = getEnvAsInt("STORE_MAX_RETRIES", 3)

	cfg.RabbitMQ.URL = os.Getenv("RABBITMQ_URL")
	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL environment variable is required")
	}

	cfg.Batch.Size = getEnvAsInt("BATCH_SIZE", 10)
	if cfg.Batch.Size <= 0 {
		log.Printf("Warning: BATCH_SIZE must be positive, got %d. Using default value: 10\n", cfg.Batch.Size)
		cfg.Batch.Size = 10
	}
	cfg.Batch.Timeout = getEnvAsDuration("BATCH_TIMEOUT", 5*time.Second)
	cfg.Batch.DrainTimeout = getEnvAsDuration("DRAIN_TIMEOUT", 30*time.Second)
	cfg.Batch.Concurrency = getEnvAsInt("CONCURRENCY", 8)
	cfg.Batch.StoreTimeout = getEnvAsDuration("STORE_TIMEOUT", 5*time.Second)
	cfg.Batch.RetryTTL = getEnvAsDuration("RETRY_TTL", 30*time.Second)
	cfg.Batch.MaxRetries = getEnvAsInt("MAX_RETRIES", 3)

	cfg.Rest.PORT = getEnvAsString("PORT", "8080")
	cfg.Rest.AllowedOrigins = getEnvAsList("CORS_ALLOWED_ORIGINS")

	cfg.FluentBit.Enabled = getEnvAsBool("FLUENTBIT_ENABLED", false)
	if cfg.FluentBit.Enabled {
		cfg.FluentBit.Host = os.Getenv("FLUENTBIT_HOST")
		if cfg.FluentBit.Host == "" {
			log.Println("WARNING: FLUENTBIT_ENABLED is true, but FLUENTBIT_HOST is not set. Disabling Fluent Bit.")
			cfg.FluentBit.Enabled = false
		}
		cfg.FluentBit.Port = getEnvAsInt("FLUENTBIT_PORT", 24224)
		cfg.FluentBit.Level = getEnvAsString("FLUENTBIT_LOG_LEVEL", "info")
	}

	cfg.StdoutLogger.Level = getEnvAsString("STDOUT_LOG_LEVEL", "info")
	cfg.StdoutLogger.Format = strings.ToLower(getEnvAsString("STDOUT_LOG_FORMAT", "text"))

	return cfg, nil
}

func getEnvAsString(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt logs a warning and falls back to the default when the value is not an int.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}
	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as int: %v. Using default value: %d\n", key, valueStr, err, defaultValue)
		return defaultValue
	}
	return valueInt
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valStr, exists := os.LookupEnv(key)
	if !exists || valStr == "" {
		return defaultValue
	}
	valBool, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as bool: %v. Using default value: %t\n", key, valStr, err, defaultValue)
		return defaultValue
	}
	return valBool
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valStr, exists := os.LookupEnv(key)
	if !exists || valStr == "" {
		return defaultValue
	}
	val, err := time.ParseDuration(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Environment variable %s (value: %s) is not a positive duration. Using default value: %s\n", key, valStr, defaultValue)
		return defaultValue
	}
	return val
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

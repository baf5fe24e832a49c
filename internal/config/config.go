package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the engine.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Scheduler SchedulerConfig
	Scan      ScanConfig
	Storage   StorageConfig
	Dispatch  DispatchConfig
}

// AppConfig controls process level behavior.
type AppConfig struct {
	Name    string
	Env     string
	Host    string
	Port    string
	Version string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// SchedulerConfig drives the periodic SLA and automation passes.
type SchedulerConfig struct {
	SLAIntervalSeconds        int
	AutomationIntervalSeconds int
	MaxConflictRetries        int
	BackoffCapSeconds         int
	Parallelism               int
}

// ScanConfig configures the attachment scan queue consumer.
type ScanConfig struct {
	QueueKey           string
	MaxRetries         int
	PollTimeoutSeconds int
}

// StorageConfig holds attachment object-store connection values.
type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// DispatchConfig names the queue external delivery consumes.
type DispatchConfig struct {
	QueueKey string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "ticket-lifecycle-engine"),
			Env:     getEnv("APP_ENV", "development"),
			Host:    getEnv("APP_HOST", "0.0.0.0"),
			Port:    getEnv("APP_PORT", "8080"),
			Version: getEnv("APP_VERSION", "dev"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Scheduler: SchedulerConfig{
			SLAIntervalSeconds:        getEnvAsInt("SCHEDULER_SLA_INTERVAL_SECONDS", 60),
			AutomationIntervalSeconds: getEnvAsInt("SCHEDULER_AUTOMATION_INTERVAL_SECONDS", 60),
			MaxConflictRetries:        getEnvAsInt("SCHEDULER_MAX_CONFLICT_RETRIES", 3),
			BackoffCapSeconds:         getEnvAsInt("SCHEDULER_BACKOFF_CAP_SECONDS", 300),
			Parallelism:               getEnvAsInt("SCHEDULER_PARALLELISM", 4),
		},
		Scan: ScanConfig{
			QueueKey:           getEnv("SCAN_QUEUE_KEY", "scan:jobs"),
			MaxRetries:         getEnvAsInt("SCAN_MAX_RETRIES", 3),
			PollTimeoutSeconds: getEnvAsInt("SCAN_POLL_TIMEOUT_SECONDS", 5),
		},
		Storage: StorageConfig{
			Endpoint:  os.Getenv("STORAGE_ENDPOINT"),
			AccessKey: os.Getenv("STORAGE_ACCESS_KEY"),
			SecretKey: os.Getenv("STORAGE_SECRET_KEY"),
			Bucket:    getEnv("STORAGE_BUCKET", "attachments"),
			UseSSL:    getEnvAsBool("STORAGE_USE_SSL", false),
		},
		Dispatch: DispatchConfig{
			QueueKey: getEnv("DISPATCH_QUEUE_KEY", "dispatch:jobs"),
		},
	}

	return cfg, nil
}

// Addr returns the health server bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// SLAInterval returns the SLA pass cadence.
func (s SchedulerConfig) SLAInterval() time.Duration {
	return time.Duration(s.SLAIntervalSeconds) * time.Second
}

// AutomationInterval returns the automation pass cadence.
func (s SchedulerConfig) AutomationInterval() time.Duration {
	return time.Duration(s.AutomationIntervalSeconds) * time.Second
}

// BackoffCap returns the maximum backoff delay after repeated pass failures.
func (s SchedulerConfig) BackoffCap() time.Duration {
	return time.Duration(s.BackoffCapSeconds) * time.Second
}

// PollTimeout returns the queue poll timeout.
func (s ScanConfig) PollTimeout() time.Duration {
	return time.Duration(s.PollTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

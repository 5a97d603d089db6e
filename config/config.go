package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort int
	JWTSecret  string
	Database   DatabaseConfig
	Judge      JudgeConfig
	MQ         MQConfig
	Storage    StorageConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

// JudgeConfig configures the external sandboxed execution service.
type JudgeConfig struct {
	// URL is the executor's submission endpoint.
	URL string
	// Timeout bounds each individual execution call.
	Timeout time.Duration
	// CPUTimeLimitSeconds is the per-run CPU budget passed to the executor.
	CPUTimeLimitSeconds int
	// MemoryLimitKB is the per-run memory budget passed to the executor.
	MemoryLimitKB int
}

// MQConfig selects and configures the event broker backend.
type MQConfig struct {
	// Backend is "rabbitmq", "pubsub" or empty to disable event publication.
	Backend  string
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

type RabbitMQConfig struct {
	URL           string
	Exchange      string
	QueueDurable  bool
	PrefetchCount int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

// StorageConfig selects and configures the object storage backend used
// to archive uploaded test-case bundles.
type StorageConfig struct {
	// Backend is "minio", "gcs" or empty to disable bundle archival.
	Backend string
	Minio   MinioConfig
	GCS     GCSConfig
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	return Config{
		ServerPort: getEnvInt("SERVER_PORT", 8080),
		JWTSecret:  getEnv("JWT_SECRET", ""),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "codearena"),
			Password: getEnv("DB_PASSWORD", "password"),
			DBName:   getEnv("DB_NAME", "codearena_db"),
			UseSSL:   getEnvBool("DB_USE_SSL", false),
		},
		Judge: JudgeConfig{
			URL:                 getEnv("JUDGE_URL", "http://localhost:2358/submissions?wait=true"),
			Timeout:             time.Duration(getEnvInt("JUDGE_TIMEOUT_SECONDS", 30)) * time.Second,
			CPUTimeLimitSeconds: getEnvInt("JUDGE_CPU_TIME_LIMIT_SECONDS", 5),
			MemoryLimitKB:       getEnvInt("JUDGE_MEMORY_LIMIT_KB", 128000),
		},
		MQ: MQConfig{
			Backend: getEnv("MQ_BACKEND", ""),
			RabbitMQ: RabbitMQConfig{
				URL:           getEnv("RABBITMQ_URL", ""),
				Exchange:      getEnv("RABBITMQ_EXCHANGE", "codearena.events"),
				QueueDurable:  getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
				PrefetchCount: getEnvInt("RABBITMQ_PREFETCH_COUNT", 0),
			},
			PubSub: PubSubConfig{
				ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
				CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
				SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
			},
		},
		Storage: StorageConfig{
			Backend: getEnv("STORAGE_BACKEND", ""),
			Minio: MinioConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", "testcase-bundles"),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			},
			GCS: GCSConfig{
				Bucket:          getEnv("GCS_BUCKET", ""),
				ProjectID:       getEnv("GCS_PROJECT_ID", ""),
				CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
			},
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		if _, err := fmt.Sscanf(valueStr, "%d", &value); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		switch valueStr {
		case "1", "true", "TRUE", "True", "yes":
			return true
		case "0", "false", "FALSE", "False", "no":
			return false
		}
	}
	return defaultValue
}

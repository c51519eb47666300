package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerPort   string
	ServerHost   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Database
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

	// Kafka
	KafkaBrokers       []string
	KafkaGroupID       string
	KafkaSnapshotTopic string
	KafkaRunTopic      string

	// Snapshot source. SourceBaseURL takes precedence over SourceDir when set.
	SourceDir          string
	SourceBaseURL      string
	SourceTokenURL     string
	SourceClientID     string
	SourceClientSecret string

	// Cleaning
	VocabularyPath         string
	OutlierIQRMultiplier   float64
	OutlierMinSamples      int
	NearDuplicateThreshold float64

	// Feature Store
	FeatureStorePrefix   string
	FeatureStoreCacheTTL time.Duration

	WriteBatchSize int
}

func Load() *Config {
	return &Config{
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		ServerHost:   getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout: getDuration("WRITE_TIMEOUT", 30*time.Second),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "readmission"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "readmission"),
		PostgresDB:       getEnv("POSTGRES_DB", "healthcare_readmission"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:       getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "readmission-pipeline"),
		KafkaSnapshotTopic: getEnv("KAFKA_SNAPSHOT_TOPIC", "snapshot-ready"),
		KafkaRunTopic:      getEnv("KAFKA_RUN_TOPIC", "pipeline-runs"),

		SourceDir:          getEnv("SOURCE_DIR", "./data"),
		SourceBaseURL:      getEnv("SOURCE_BASE_URL", ""),
		SourceTokenURL:     getEnv("SOURCE_TOKEN_URL", ""),
		SourceClientID:     getEnv("SOURCE_CLIENT_ID", ""),
		SourceClientSecret: getEnv("SOURCE_CLIENT_SECRET", ""),

		VocabularyPath:         getEnv("VOCABULARY_PATH", ""),
		OutlierIQRMultiplier:   getFloatEnv("OUTLIER_IQR_MULTIPLIER", 1.5),
		OutlierMinSamples:      getIntEnv("OUTLIER_MIN_SAMPLES", 0),
		NearDuplicateThreshold: getFloatEnv("NEAR_DUPLICATE_THRESHOLD", 0.9),

		FeatureStorePrefix:   getEnv("FEATURE_STORE_PREFIX", "features"),
		FeatureStoreCacheTTL: getDuration("FEATURE_STORE_CACHE_TTL", 24*time.Hour),

		WriteBatchSize: getIntEnv("WRITE_BATCH_SIZE", 500),
	}
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
	if len(out) == 0 {
		return defaultValue
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

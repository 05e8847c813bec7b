package config

import (
	"os"
)

// Config holds environment-driven settings for the chat client
type Config struct {
	Env string `env:"ENV"`

	// Remote document store backend: "firestore", "redis" or "memory"
	StoreBackend string `env:"STORE_BACKEND"`

	// Firestore
	FirestoreProjectID   string `env:"FIRESTORE_PROJECT_ID"`
	FirestoreCredentials string `env:"FIRESTORE_CREDENTIALS_FILE"`

	// Redis (alternative store backend)
	RedisHost string `env:"REDIS_HOST"`

	// MinIO (media uploads)
	MinIOEndpoint  string `env:"MINIO_ENDPOINT"`
	MinIOAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinIOSecretKey string `env:"MINIO_SECRET_KEY"`
	MinIOBucket    string `env:"MINIO_BUCKET"`
}

// LoadConfig reads environment variables from the OS (or Docker)
func LoadConfig() *Config {
	return &Config{
		Env:                  getEnv("ENV", "development"),
		StoreBackend:         getEnv("STORE_BACKEND", "firestore"),
		FirestoreProjectID:   getEnv("FIRESTORE_PROJECT_ID", "groupchatapp-dae4e"),
		FirestoreCredentials: getEnv("FIRESTORE_CREDENTIALS_FILE", ""),
		RedisHost:            getEnv("REDIS_HOST", "localhost"),
		MinIOEndpoint:        getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinIOAccessKey:       getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		MinIOSecretKey:       getEnv("MINIO_SECRET_KEY", "minioadmin"),
		MinIOBucket:          getEnv("MINIO_BUCKET", "chat-media"),
	}
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return c.RedisHost + ":6379"
}

// Helper to read an env var with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the full service configuration. It is built once at startup
// and passed to constructors; nothing mutates it afterwards.
type Config struct {
	MasterDB DatabaseConfig
	OrgDB    OrgDBConfig
	JWT      JWTConfig
	Kafka    KafkaConfig
	Redis    RedisConfig
}

// DatabaseConfig holds the master (registry) database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// OrgDBConfig holds the connection settings for the storage engine that
// hosts the per-organization databases
type OrgDBConfig struct {
	Host             string
	Port             string
	User             string
	Password         string
	Template         string
	MaintenanceDB    string
	ProvisionTimeout time.Duration
}

// JWTConfig holds token signing configuration
type JWTConfig struct {
	Secret        string
	Algorithm     string
	ExpireMinutes int
}

// KafkaConfig holds the broker and topic used for provisioning repair events
type KafkaConfig struct {
	Broker      string
	RepairTopic string
}

// RedisConfig holds the Redis connection settings
type RedisConfig struct {
	Host string
	Port string
}

// Load builds the configuration from environment variables
func Load() *Config {
	return &Config{
		MasterDB: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "password"),
			DBName:   getEnv("DB_NAME", "master_db"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		OrgDB: OrgDBConfig{
			Host:             getEnv("ORG_DB_HOST", "localhost"),
			Port:             getEnv("ORG_DB_PORT", "5432"),
			User:             getEnv("ORG_DB_USER", "postgres"),
			Password:         getEnv("ORG_DB_PASSWORD", "password"),
			Template:         getEnv("ORG_DB_TEMPLATE", "template0"),
			MaintenanceDB:    getEnv("ORG_DB_MAINTENANCE_DB", "postgres"),
			ProvisionTimeout: time.Duration(getEnvInt("ORG_DB_PROVISION_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		JWT: JWTConfig{
			Secret:        getEnv("JWT_SECRET_KEY", "your-secret-key-change-in-production"),
			Algorithm:     getEnv("JWT_ALGORITHM", "HS256"),
			ExpireMinutes: getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30),
		},
		Kafka: KafkaConfig{
			Broker:      getEnv("KAFKA_BROKER", "localhost:9092"),
			RepairTopic: getEnv("KAFKA_REPAIR_TOPIC", "provision-repairs"),
		},
		Redis: RedisConfig{
			Host: getEnv("REDIS_HOST", "localhost"),
			Port: getEnv("REDIS_PORT", "6379"),
		},
	}
}

// GetDSN returns the master database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// DSNFor returns a connection string for the named database on the
// organization storage engine
func (c *OrgDBConfig) DSNFor(dbName string) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, dbName)
}

// TokenTTL returns the configured access token lifetime
func (c *JWTConfig) TokenTTL() time.Duration {
	return time.Duration(c.ExpireMinutes) * time.Minute
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Modos de operação do gateway.
const (
	ModeSingle = "single"
	ModeMulti  = "multi"
	ModeBoth   = "both"
)

type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Auth      AuthConfig
	WhatsApp  WhatsAppConfig
	Logging   LoggingConfig
	Webhook   WebhookConfig
	Retention RetentionConfig
	S3        S3Config
}

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type ServerConfig struct {
	Host         string
	Port         int
	Mode         string
	SinglePhone  string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type AuthConfig struct {
	AdminAPIKey string
	AuthRoot    string
}

type WhatsAppConfig struct {
	Timeout              time.Duration
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
	RestartQuiescence    time.Duration
	QRCodeTimeout        time.Duration
	GroupQueryTimeout    time.Duration
	// Códigos de erro do upstream tratados como transientes mesmo durante
	// um restart manual (ex.: stream reset durante leitura do QR).
	TransientStreamCodes []string
}

type LoggingConfig struct {
	Level  string
	Pretty bool
}

type WebhookConfig struct {
	Timeout   time.Duration
	Workers   int
	QueueSize int
	UserAgent string
}

type RetentionConfig struct {
	Enabled       bool
	MaxAge        time.Duration
	SweepInterval time.Duration
}

type S3Config struct {
	Enabled         bool
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	PathStyle       bool
}

func Load() (*Config, error) {

	if err := godotenv.Load(); err != nil {

		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	config := &Config{
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "postgres"),
			Host:            getEnv("POSTGRES_HOST", "localhost"),
			Port:            getEnvAsInt("POSTGRES_PORT", 5432),
			Name:            getEnv("POSTGRES_DB", "zapgate"),
			User:            getEnv("POSTGRES_USER", "zapgate"),
			Password:        getEnv("POSTGRES_PASSWORD", "zapgate123"),
			SSLMode:         getEnv("POSTGRES_SSLMODE", "disable"),
			URL:             getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvAsInt("DATABASE_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvAsInt("DATABASE_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvAsDuration("DATABASE_CONN_MAX_LIFETIME", 15*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DATABASE_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			Mode:         getEnv("GATEWAY_MODE", ModeMulti),
			SinglePhone:  getEnv("SINGLE_MODE_PHONE", ""),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			AdminAPIKey: getEnv("ADMIN_API_KEY", "admin_secret_key"),
			AuthRoot:    getEnv("AUTH_ROOT", "./auth"),
		},
		WhatsApp: WhatsAppConfig{
			Timeout:              getEnvAsDuration("WHATSAPP_TIMEOUT", 30*time.Second),
			MaxReconnectAttempts: getEnvAsInt("WHATSAPP_MAX_RECONNECT_ATTEMPTS", 5),
			ReconnectDelay:       getEnvAsDuration("WHATSAPP_RECONNECT_DELAY", 5*time.Second),
			RestartQuiescence:    getEnvAsDuration("WHATSAPP_RESTART_QUIESCENCE", 2*time.Second),
			QRCodeTimeout:        getEnvAsDuration("QR_CODE_TIMEOUT", 60*time.Second),
			GroupQueryTimeout:    getEnvAsDuration("GROUP_QUERY_TIMEOUT", 10*time.Second),
			TransientStreamCodes: getEnvAsSlice("WHATSAPP_TRANSIENT_STREAM_CODES", []string{"515", "stream:error"}, ","),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getEnvAsBool("LOG_PRETTY", true),
		},
		Webhook: WebhookConfig{
			Timeout:   getEnvAsDuration("WEBHOOK_TIMEOUT", 5*time.Second),
			Workers:   getEnvAsInt("WEBHOOK_WORKERS", 5),
			QueueSize: getEnvAsInt("WEBHOOK_QUEUE_SIZE", 10000),
			UserAgent: getEnv("WEBHOOK_USER_AGENT", "ZapGate/1.0"),
		},
		Retention: RetentionConfig{
			Enabled:       getEnvAsBool("RETENTION_ENABLED", false),
			MaxAge:        getEnvAsDuration("RETENTION_MAX_AGE", 30*24*time.Hour),
			SweepInterval: getEnvAsDuration("RETENTION_SWEEP_INTERVAL", 1*time.Hour),
		},
		S3: S3Config{
			Enabled:         getEnvAsBool("S3_ENABLED", false),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			Region:          getEnv("S3_REGION", "us-east-1"),
			AccessKeyID:     getEnv("S3_ACCESS_KEY", ""),
			SecretAccessKey: getEnv("S3_SECRET_KEY", ""),
			Bucket:          getEnv("S3_BUCKET", "zapgate-media"),
			PathStyle:       getEnvAsBool("S3_PATH_STYLE", true),
		},
	}

	if config.Database.URL == "" {
		switch config.Database.Driver {
		case "sqlite":
			config.Database.URL = getEnv("SQLITE_PATH", "file:zapgate.db?_pragma=foreign_keys(1)")
		default:
			config.Database.URL = fmt.Sprintf(
				"postgres://%s:%s@%s:%d/%s?sslmode=%s",
				config.Database.User,
				config.Database.Password,
				config.Database.Host,
				config.Database.Port,
				config.Database.Name,
				config.Database.SSLMode,
			)
		}
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Database.Driver == "postgres" {
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
	}
	if c.Auth.AdminAPIKey == "" {
		return fmt.Errorf("admin API key is required")
	}
	if c.Auth.AuthRoot == "" {
		return fmt.Errorf("auth root directory is required")
	}
	switch c.Server.Mode {
	case ModeSingle, ModeMulti, ModeBoth:
	default:
		return fmt.Errorf("invalid gateway mode: %s", c.Server.Mode)
	}
	if (c.Server.Mode == ModeSingle || c.Server.Mode == ModeBoth) && c.Server.SinglePhone == "" {
		return fmt.Errorf("single mode requires SINGLE_MODE_PHONE")
	}
	if c.WhatsApp.MaxReconnectAttempts < 1 {
		return fmt.Errorf("max reconnect attempts must be at least 1")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func (c *Config) GetServerAddress() string {
	return net.JoinHostPort(c.Server.Host, fmt.Sprintf("%d", c.Server.Port))
}

// IsTransientStreamCode verifica se o código de erro do upstream pertence ao
// conjunto configurado de falhas transientes.
func (c *Config) IsTransientStreamCode(code string) bool {
	for _, t := range c.WhatsApp.TransientStreamCodes {
		if t != "" && strings.Contains(code, t) {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {

		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}

		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string, separator string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, separator)
	}
	return defaultValue
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// NATS configuration
	NATS NATSConfig

	// Kafka configuration
	Kafka KafkaConfig

	// Observability configuration
	Observability ObservabilityConfig

	// Storage configuration
	Storage StorageConfig

	// Updater configuration
	Updater UpdaterConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	GRPCPort     int
	HTTPPort     int
	Environment  string
	ServiceName  string
	ShutdownTime time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver       string // sqlite or postgres
	SQLitePath   string
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	Enabled       bool
	URL           string
	ClientID      string
	SubjectPrefix string
	MaxReconnect  int
	ReconnectWait time.Duration
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// ObservabilityConfig holds observability configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or console
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	S3 S3Config
}

// S3Config holds S3/MinIO configuration for s3:// artifact URLs
type S3Config struct {
	Enabled      bool
	Region       string
	Endpoint     string
	UsePathStyle bool
}

// UpdaterConfig holds the host identity and transport settings
type UpdaterConfig struct {
	AppName               string
	PackageName           string
	CacheDir              string
	ProgressInterval      time.Duration
	ConnectTimeout        time.Duration
	ResponseHeaderTimeout time.Duration
	InsecureSkipVerify    bool
	UserAgent             string
	InstallMode           string // exec, replace or none
	InstallCommand        string
	ReplaceTarget         string
	TorrentEnabled        bool
	TorrentDataDir        string
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			GRPCPort:     getEnvAsInt("GRPC_PORT", 9090),
			HTTPPort:     getEnvAsInt("HTTP_PORT", 8080),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ServiceName:  serviceName,
			ShutdownTime: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Driver:       getEnv("DB_DRIVER", "sqlite"),
			SQLitePath:   getEnv("DB_SQLITE_PATH", defaultSQLitePath(serviceName)),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "appupdater"),
			Password:     getEnv("DB_PASSWORD", "appupdater"),
			Database:     getEnv("DB_NAME", "appupdater"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 5*time.Minute),
		},
		NATS: NATSConfig{
			Enabled:       getEnvAsBool("NATS_ENABLED", false),
			URL:           getEnv("NATS_URL", "nats://localhost:4222"),
			ClientID:      fmt.Sprintf("%s-%s", serviceName, getEnv("HOSTNAME", "local")),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "appupdater"),
			MaxReconnect:  getEnvAsInt("NATS_MAX_RECONNECT", 60),
			ReconnectWait: getEnvAsDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvAsBool("KAFKA_ENABLED", false),
			Brokers: getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_TOPIC", "appupdater.events"),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "console"),
		},
		Storage: StorageConfig{
			S3: S3Config{
				Enabled:      getEnvAsBool("S3_ENABLED", false),
				Region:       getEnv("S3_REGION", "us-east-1"),
				Endpoint:     getEnv("S3_ENDPOINT", ""),
				UsePathStyle: getEnvAsBool("S3_USE_PATH_STYLE", false),
			},
		},
		Updater: UpdaterConfig{
			AppName:               getEnv("UPDATER_APP_NAME", "App"),
			PackageName:           getEnv("UPDATER_PACKAGE_NAME", "com.example.app"),
			CacheDir:              getEnv("UPDATER_CACHE_DIR", ""),
			ProgressInterval:      getEnvAsDuration("UPDATER_PROGRESS_INTERVAL", 200*time.Millisecond),
			ConnectTimeout:        getEnvAsDuration("UPDATER_CONNECT_TIMEOUT", 20*time.Second),
			ResponseHeaderTimeout: getEnvAsDuration("UPDATER_RESPONSE_HEADER_TIMEOUT", 20*time.Second),
			InsecureSkipVerify:    getEnvAsBool("UPDATER_INSECURE_SKIP_VERIFY", false),
			UserAgent:             getEnv("UPDATER_USER_AGENT", "AppUpdater/1.0"),
			InstallMode:           getEnv("UPDATER_INSTALL_MODE", "none"),
			InstallCommand:        getEnv("UPDATER_INSTALL_COMMAND", ""),
			ReplaceTarget:         getEnv("UPDATER_REPLACE_TARGET", ""),
			TorrentEnabled:        getEnvAsBool("UPDATER_TORRENT_ENABLED", false),
			TorrentDataDir:        getEnv("UPDATER_TORRENT_DATA_DIR", filepath.Join(os.TempDir(), serviceName+"-torrent")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks settings that have no usable fallback
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	switch c.Updater.InstallMode {
	case "none":
	case "exec":
		if c.Updater.InstallCommand == "" {
			return fmt.Errorf("install mode exec requires UPDATER_INSTALL_COMMAND")
		}
	case "replace":
		if c.Updater.ReplaceTarget == "" {
			return fmt.Errorf("install mode replace requires UPDATER_REPLACE_TARGET")
		}
	default:
		return fmt.Errorf("unsupported install mode %q", c.Updater.InstallMode)
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka enabled without brokers")
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

func getEnvAsInt(key string, defaultValue int) int {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	var values []string
	for _, v := range strings.Split(strValue, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}

func defaultSQLitePath(serviceName string) string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, serviceName, "history.db")
	}
	return serviceName + "-history.db"
}

// DSN returns the postgres connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode)
}

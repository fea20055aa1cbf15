package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Storage  StorageConfig  `json:"storage"`
	Logging  LoggingConfig  `json:"logging"`
	Scan     ScanConfig     `json:"scan"`

	Notifications NotificationConfig `json:"notifications"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Mode         string        `json:"mode"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
	AutoMigrate    bool          `json:"auto_migrate"`
}

// StorageConfig configures the S3 bucket certificates are archived to.
// An empty Bucket keeps archives in memory.
type StorageConfig struct {
	Bucket          string        `json:"bucket"`
	Region          string        `json:"region"`
	Endpoint        string        `json:"endpoint,omitempty"`
	AccessKeyID     string        `json:"access_key_id,omitempty"`
	SecretAccessKey string        `json:"secret_access_key,omitempty"`
	UsePathStyle    bool          `json:"use_path_style"`
	KeyPrefix       string        `json:"key_prefix"`
	PresignTTL      time.Duration `json:"presign_ttl"`
}

// NotificationConfig configures review emails sent through SES. An empty
// FromAddress turns them off.
type NotificationConfig struct {
	FromAddress      string `json:"from_address"`
	Region           string `json:"region"`
	Endpoint         string `json:"endpoint,omitempty"`
	AccessKeyID      string `json:"access_key_id,omitempty"`
	SecretAccessKey  string `json:"secret_access_key,omitempty"`
	ConfigurationSet string `json:"configuration_set,omitempty"`
}

// LoggingConfig
type LoggingConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

// ScanConfig drives the certificate integrity scan.
type ScanConfig struct {
	Schedule   string `json:"schedule"`
	BatchSize  int    `json:"batch_size"`
	OutputDir  string `json:"output_dir"`
	RunOnStart bool   `json:"run_on_start"`
}

// Default returns the configuration used when no file or environment is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			Mode:         "debug",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "certificate_place",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    5 * time.Minute,
		},
		Storage: StorageConfig{
			Region:     "us-east-1",
			KeyPrefix:  "certificates/",
			PresignTTL: 15 * time.Minute,
		},
		Notifications: NotificationConfig{
			Region: "us-east-1",
		},
		Logging: LoggingConfig{
			Level:       "info",
			Development: true,
		},
		Scan: ScanConfig{
			Schedule:  "0 3 * * *",
			BatchSize: 200,
			OutputDir: "reports",
		},
	}
}

// LoadConfig loads configuration from a .env file, a JSON file and
// environment variables, in increasing order of precedence.
func LoadConfig(configPath string) (*Config, error) {
	// A missing .env file is normal outside development.
	_ = godotenv.Load()

	config := Default()

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	overrideWithEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Scan.BatchSize <= 0 {
		return fmt.Errorf("scan batch size must be positive, got %d", c.Scan.BatchSize)
	}
	if c.Storage.PresignTTL < 0 {
		return fmt.Errorf("presign ttl must not be negative")
	}
	return nil
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		config.Server.Mode = mode
	}

	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbPort := os.Getenv("DATABASE_PORT"); dbPort != "" {
		if p, err := strconv.Atoi(dbPort); err == nil {
			config.Database.Port = p
		}
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}
	if sslMode := os.Getenv("DATABASE_SSLMODE"); sslMode != "" {
		config.Database.SSLMode = sslMode
	}
	if migrate := os.Getenv("DATABASE_AUTO_MIGRATE"); migrate != "" {
		config.Database.AutoMigrate, _ = strconv.ParseBool(migrate)
	}

	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		config.Storage.Bucket = bucket
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		config.Storage.Region = region
		config.Notifications.Region = region
	}
	if endpoint := os.Getenv("S3_ENDPOINT"); endpoint != "" {
		config.Storage.Endpoint = endpoint
		config.Storage.UsePathStyle = true
	}
	if key := os.Getenv("AWS_ACCESS_KEY_ID"); key != "" {
		config.Storage.AccessKeyID = key
		config.Notifications.AccessKeyID = key
	}
	if secret := os.Getenv("AWS_SECRET_ACCESS_KEY"); secret != "" {
		config.Storage.SecretAccessKey = secret
		config.Notifications.SecretAccessKey = secret
	}
	if ttl := os.Getenv("S3_PRESIGN_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			config.Storage.PresignTTL = d
		}
	}

	if from := os.Getenv("SES_FROM_ADDRESS"); from != "" {
		config.Notifications.FromAddress = from
	}
	if region := os.Getenv("SES_REGION"); region != "" {
		config.Notifications.Region = region
	}
	if endpoint := os.Getenv("SES_ENDPOINT"); endpoint != "" {
		config.Notifications.Endpoint = endpoint
	}
	if set := os.Getenv("SES_CONFIGURATION_SET"); set != "" {
		config.Notifications.ConfigurationSet = set
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if dev := os.Getenv("LOG_DEVELOPMENT"); dev != "" {
		config.Logging.Development, _ = strconv.ParseBool(dev)
	}

	if schedule := os.Getenv("SCAN_SCHEDULE"); schedule != "" {
		config.Scan.Schedule = schedule
	}
	if batch := os.Getenv("SCAN_BATCH_SIZE"); batch != "" {
		if n, err := strconv.Atoi(batch); err == nil {
			config.Scan.BatchSize = n
		}
	}
	if dir := os.Getenv("SCAN_OUTPUT_DIR"); dir != "" {
		config.Scan.OutputDir = dir
	}
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server   HTTPConfig     `yaml:"server" json:"server"`
	Auth     AuthConfig     `yaml:"auth" json:"auth"`
	Database DatabaseConfig `yaml:"database" json:"database"`
	Storage  StorageConfig  `yaml:"storage" json:"storage"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
	Backup   BackupConfig   `yaml:"backup" json:"backup"`
	Console  ConsoleConfig  `yaml:"console" json:"console"`
}

// HTTPConfig contains HTTP server settings
type HTTPConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// AuthConfig contains API authentication settings
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret" json:"jwt_secret"`
	TokenDuration string `yaml:"token_duration" json:"token_duration"`
	// Disabled turns off bearer-token checks, for local single-user use.
	Disabled bool `yaml:"disabled" json:"disabled"`
}

// DatabaseConfig contains the activity database settings
type DatabaseConfig struct {
	Path string `yaml:"path" json:"path"`
}

// StorageConfig contains the on-disk layout roots
type StorageConfig struct {
	ConfigDir  string `yaml:"config_dir" json:"config_dir"`
	ServersDir string `yaml:"servers_dir" json:"servers_dir"`
	BackupDir  string `yaml:"backup_dir" json:"backup_dir"`
	RuntimeDir string `yaml:"runtime_dir" json:"runtime_dir"`
	LogsDir    string `yaml:"logs_dir" json:"logs_dir"`
	DataDir    string `yaml:"data_dir" json:"data_dir"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
}

// BackupConfig contains backup behavior settings
type BackupConfig struct {
	// Offsite destinations receive a copy of each finished archive.
	Offsite []OffsiteDestination `yaml:"offsite" json:"offsite"`
}

// OffsiteDestination describes one replication target for backup archives
type OffsiteDestination struct {
	Type string `yaml:"type" json:"type"` // "local", "sftp", "s3"
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// SFTP specific
	SFTPHost        string `yaml:"sftp_host,omitempty" json:"sftp_host,omitempty"`
	SFTPPort        int    `yaml:"sftp_port,omitempty" json:"sftp_port,omitempty"`
	SFTPUsername    string `yaml:"sftp_username,omitempty" json:"sftp_username,omitempty"`
	SFTPPassword    string `yaml:"sftp_password,omitempty" json:"sftp_password,omitempty"`
	SFTPKeyPath     string `yaml:"sftp_key_path,omitempty" json:"sftp_key_path,omitempty"`
	KnownHostsPath  string `yaml:"known_hosts_path,omitempty" json:"known_hosts_path,omitempty"`
	TrustOnFirstUse bool   `yaml:"trust_on_first_use,omitempty" json:"trust_on_first_use,omitempty"`

	// S3 specific
	S3Bucket    string `yaml:"s3_bucket,omitempty" json:"s3_bucket,omitempty"`
	S3Region    string `yaml:"s3_region,omitempty" json:"s3_region,omitempty"`
	S3AccessKey string `yaml:"s3_access_key,omitempty" json:"s3_access_key,omitempty"`
	S3SecretKey string `yaml:"s3_secret_key,omitempty" json:"s3_secret_key,omitempty"`
	S3Endpoint  string `yaml:"s3_endpoint,omitempty" json:"s3_endpoint,omitempty"`
}

// ConsoleConfig contains console capture settings
type ConsoleConfig struct {
	BufferLines int `yaml:"buffer_lines" json:"buffer_lines"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: HTTPConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("JWT_SECRET", ""),
			TokenDuration: "168h",
			Disabled:      false,
		},
		Database: DatabaseConfig{
			Path: "./data/gamehost.db",
		},
		Storage: StorageConfig{
			ConfigDir:  "./configs",
			ServersDir: "./data/servers",
			BackupDir:  "./data/backups",
			RuntimeDir: "./data/runtime",
			LogsDir:    "./data/logs",
			DataDir:    "./data",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			File:       "",
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
		},
		Console: ConsoleConfig{
			BufferLines: 2000,
		},
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = resolveConfigPath()
	}

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		cfg.Auth.JWTSecret = jwtSecret
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if configDir := os.Getenv("CONFIG_DIR"); configDir != "" {
		cfg.Storage.ConfigDir = configDir
	}
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}
	if backupDir := os.Getenv("BACKUP_DIR"); backupDir != "" {
		cfg.Storage.BackupDir = backupDir
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !c.Auth.Disabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set unless auth is disabled")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}

	for _, dest := range c.Backup.Offsite {
		switch dest.Type {
		case "local":
			if dest.Path == "" {
				return fmt.Errorf("local offsite destination requires a path")
			}
		case "sftp":
			if dest.SFTPHost == "" || dest.SFTPUsername == "" {
				return fmt.Errorf("sftp offsite destination requires host and username")
			}
		case "s3":
			if dest.S3Bucket == "" || dest.S3Region == "" {
				return fmt.Errorf("s3 offsite destination requires bucket and region")
			}
		default:
			return fmt.Errorf("unknown offsite destination type %q", dest.Type)
		}
	}

	return nil
}

// EnsureDirs creates every storage root that does not yet exist.
func (c *Config) EnsureDirs() error {
	dirs := []string{
		c.Storage.ConfigDir,
		c.Storage.ServersDir,
		c.Storage.BackupDir,
		c.Storage.RuntimeDir,
		c.Storage.LogsDir,
		c.Storage.DataDir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func resolveConfigPath() string {
	candidates := []string{"../configs/config.yaml", "./configs/config.yaml"}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return "./configs/config.yaml"
}

// GetConfigPath returns the resolved config path
func GetConfigPath() string {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = resolveConfigPath()
	}
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return configPath
	}
	return abs
}

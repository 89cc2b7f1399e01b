package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Storage    StorageConfig    `yaml:"storage" envconfig:"STORAGE"`
	Processing ProcessingConfig `yaml:"processing" envconfig:"PROCESSING"`
	WebSocket  WebSocketConfig  `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS" default:"100"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST" default:"50"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/app.log"`
}

// StorageConfig contains file storage and database configuration
type StorageConfig struct {
	UploadDir         string   `yaml:"upload_dir" envconfig:"UPLOAD_DIR" default:"data/uploads"`
	DatabasePath      string   `yaml:"database_path" envconfig:"DATABASE_PATH" default:"data/datapulse.db"`
	MaxFileSize       int64    `yaml:"max_file_size" envconfig:"MAX_FILE_SIZE" default:"10485760"`
	MaxPreviewRows    int      `yaml:"max_preview_rows" envconfig:"MAX_PREVIEW_ROWS" default:"5"`
	AllowedExtensions []string `yaml:"allowed_extensions" envconfig:"ALLOWED_EXTENSIONS" default:".csv,.xls,.xlsx"`
}

// ProcessingConfig contains insight pipeline configuration
type ProcessingConfig struct {
	MaxInsights   int     `yaml:"max_insights" envconfig:"MAX_INSIGHTS" default:"5"`
	MinConfidence float64 `yaml:"min_confidence" envconfig:"MIN_CONFIDENCE" default:"0.1"`
	Workers       int     `yaml:"workers" envconfig:"WORKERS" default:"4"`
	QueueSize     int     `yaml:"queue_size" envconfig:"QUEUE_SIZE" default:"32"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" default:"1024"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" default:"1024"`
	WriteWait       time.Duration `yaml:"write_wait" envconfig:"WRITE_WAIT" default:"10s"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" default:"60s"`
	SendBufferSize  int           `yaml:"send_buffer_size" envconfig:"SEND_BUFFER_SIZE" default:"256"`
}

// Load loads configuration from environment variables and an optional
// config file. Environment variables take precedence over the file.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("DP", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	configFile := getConfigFilePath()
	if _, err := os.Stat(configFile); err == nil {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileCfg, cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs merges file config with env config (env takes precedence)
func mergeConfigs(fileCfg, envCfg Config) Config {
	if envCfg.Server.Port == 0 {
		envCfg.Server.Port = fileCfg.Server.Port
	}
	if envCfg.Server.ReadTimeout == 0 {
		envCfg.Server.ReadTimeout = fileCfg.Server.ReadTimeout
	}
	if envCfg.Server.WriteTimeout == 0 {
		envCfg.Server.WriteTimeout = fileCfg.Server.WriteTimeout
	}
	if envCfg.Logging.Level == "" {
		envCfg.Logging.Level = fileCfg.Logging.Level
	}
	if envCfg.Storage.UploadDir == "" {
		envCfg.Storage.UploadDir = fileCfg.Storage.UploadDir
	}
	if envCfg.Storage.DatabasePath == "" {
		envCfg.Storage.DatabasePath = fileCfg.Storage.DatabasePath
	}
	if envCfg.Processing.MaxInsights == 0 {
		envCfg.Processing.MaxInsights = fileCfg.Processing.MaxInsights
	}
	if envCfg.Processing.MinConfidence == 0 {
		envCfg.Processing.MinConfidence = fileCfg.Processing.MinConfidence
	}
	return envCfg
}

func getConfigFilePath() string {
	if path := os.Getenv("DP_CONFIG_FILE"); path != "" {
		return path
	}
	return "config.yaml"
}

// validate checks configuration invariants
func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Storage.MaxFileSize <= 0 {
		return fmt.Errorf("max_file_size must be positive, got %d", c.Storage.MaxFileSize)
	}
	if c.Storage.MaxPreviewRows < 1 {
		return fmt.Errorf("max_preview_rows must be at least 1, got %d", c.Storage.MaxPreviewRows)
	}
	if c.Processing.MaxInsights < 1 {
		return fmt.Errorf("max_insights must be at least 1, got %d", c.Processing.MaxInsights)
	}
	if c.Processing.MinConfidence < 0 || c.Processing.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be in [0,1], got %f", c.Processing.MinConfidence)
	}
	if c.Processing.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Processing.Workers)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	return nil
}

// EnsureDirs creates the directories the service writes to
func (c *Config) EnsureDirs() error {
	dirs := []string{
		c.Storage.UploadDir,
		filepath.Dir(c.Storage.DatabasePath),
	}
	if c.Logging.Output != "console" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// AllowedExtension reports whether filename carries a permitted suffix
func (c *StorageConfig) AllowedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range c.AllowedExtensions {
		if ext == strings.ToLower(strings.TrimSpace(allowed)) {
			return true
		}
	}
	return false
}

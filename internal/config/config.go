package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Storage    StorageConfig    `yaml:"storage"`
	Gotenberg  GotenbergConfig  `yaml:"gotenberg"`
	Generation GenerationConfig `yaml:"generation"`
	Extraction ExtractionConfig `yaml:"extraction"`
}

type ServerConfig struct {
	Port         string   `yaml:"port"`
	Environment  string   `yaml:"environment"`
	AllowOrigins []string `yaml:"allow_origins"`
	MaxUploadMB  int      `yaml:"max_upload_mb"`
}

func (s ServerConfig) IsProduction() bool { return s.Environment == "production" }

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"db_name"`
}

// Enabled reports whether a database is configured at all.
func (d *DatabaseConfig) Enabled() bool { return d.Host != "" }

type StorageConfig struct {
	Backend         string `yaml:"backend"` // local or gcs
	Dir             string `yaml:"dir"`
	BucketName      string `yaml:"bucket_name"`
	ProjectID       string `yaml:"project_id"`
	CredentialsPath string `yaml:"credentials_path"`
}

type GotenbergConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries"`
}

type GenerationConfig struct {
	Workers            int           `yaml:"workers"`
	FailureTolerance   int           `yaml:"failure_tolerance"`
	PreviewRows        int           `yaml:"preview_rows"`
	SessionTTL         time.Duration `yaml:"session_ttl"`
	PlaceholderPattern string        `yaml:"placeholder_pattern"`
}

type ExtractionConfig struct {
	Concurrency int `yaml:"concurrency"`
}

func (d *DatabaseConfig) DSN() string {
	// Cloud SQL Unix socket support
	if len(d.Host) > 0 && d.Host[0] == '/' {
		return fmt.Sprintf("%s:%s@unix(%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			d.User, d.Password, d.Host, d.DBName)
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.User, d.Password, d.Host, d.Port, d.DBName)
}

// Default is the configuration used before any file or environment
// overrides are applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			Environment:  "development",
			AllowOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
			MaxUploadMB:  50,
		},
		Database: DatabaseConfig{
			Port:   "3306",
			User:   "root",
			DBName: "docforge",
		},
		Storage: StorageConfig{
			Backend: "local",
			Dir:     "data",
		},
		Gotenberg: GotenbergConfig{
			Timeout: 30 * time.Second,
			Retries: 3,
		},
		Generation: GenerationConfig{
			Workers:     4,
			PreviewRows: 10,
			SessionTTL:  2 * time.Hour,
		},
		Extraction: ExtractionConfig{Concurrency: 2},
	}
}

// Load reads .env, then the YAML file named by CONFIG_FILE if any, then
// environment variables, each layer overriding the previous one.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Server.Port = getEnv("SERVER_PORT", c.Server.Port)
	c.Server.Environment = getEnv("ENVIRONMENT", c.Server.Environment)
	if origins := parseAllowOrigins(); len(origins) > 0 {
		c.Server.AllowOrigins = origins
	}

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.DBName = getEnv("DB_NAME", c.Database.DBName)

	c.Storage.Backend = getEnv("STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.Dir = getEnv("STORAGE_DIR", c.Storage.Dir)
	c.Storage.BucketName = getEnv("GCS_BUCKET_NAME", c.Storage.BucketName)
	c.Storage.ProjectID = getEnv("GOOGLE_CLOUD_PROJECT", c.Storage.ProjectID)
	c.Storage.CredentialsPath = getEnv("GCS_CREDENTIALS_PATH", c.Storage.CredentialsPath)

	c.Gotenberg.URL = getEnv("GOTENBERG_URL", c.Gotenberg.URL)
	c.Generation.PlaceholderPattern = getEnv("PLACEHOLDER_PATTERN", c.Generation.PlaceholderPattern)

	ints := []struct {
		key string
		dst *int
	}{
		{"MAX_UPLOAD_MB", &c.Server.MaxUploadMB},
		{"GOTENBERG_RETRIES", &c.Gotenberg.Retries},
		{"GENERATION_WORKERS", &c.Generation.Workers},
		{"FAILURE_TOLERANCE", &c.Generation.FailureTolerance},
		{"PREVIEW_ROWS", &c.Generation.PreviewRows},
		{"EXTRACT_CONCURRENCY", &c.Extraction.Concurrency},
	}
	for _, v := range ints {
		if err := getEnvInt(v.key, v.dst); err != nil {
			return err
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"GOTENBERG_TIMEOUT", &c.Gotenberg.Timeout},
		{"SESSION_TTL", &c.Generation.SessionTTL},
	}
	for _, v := range durations {
		if err := getEnvDuration(v.key, v.dst); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "local":
		if c.Storage.Dir == "" {
			return fmt.Errorf("STORAGE_DIR is required for the local storage backend")
		}
	case "gcs":
		if c.Storage.BucketName == "" {
			return fmt.Errorf("GCS_BUCKET_NAME is required for the gcs storage backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}
	if c.Generation.Workers < 1 {
		return fmt.Errorf("GENERATION_WORKERS must be at least 1")
	}
	if c.Generation.FailureTolerance < 0 {
		return fmt.Errorf("FAILURE_TOLERANCE must not be negative")
	}
	if c.Extraction.Concurrency < 1 {
		return fmt.Errorf("EXTRACT_CONCURRENCY must be at least 1")
	}
	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("MAX_UPLOAD_MB must be at least 1")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, dst *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = n
	return nil
}

func getEnvDuration(key string, dst *time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = d
	return nil
}

func parseAllowOrigins() []string {
	var allowOrigins []string
	if origins := os.Getenv("ALLOW_ORIGINS"); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				allowOrigins = append(allowOrigins, trimmed)
			}
		}
		return allowOrigins
	}

	// Fallback to individual FRONTEND_URL_* variables for backward compatibility
	for _, key := range []string{"FRONTEND_URL_1", "FRONTEND_URL_2"} {
		if url := os.Getenv(key); url != "" {
			allowOrigins = append(allowOrigins, url)
		}
	}
	return allowOrigins
}

// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.{APP_ENVIRONMENT}.yaml on top and
// applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)
	return v
}

// bindEnvKeys registers keys that may only come from the environment, since
// AutomaticEnv alone does not surface keys absent from the file on Unmarshal.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"database.postgres.host", "database.postgres.user", "database.postgres.password",
		"database.redis.address", "database.redis.password",
		"storage.record_store", "storage.job_store",
		"automation.base_dir", "automation.workers",
		"rendering.base_url", "rendering.api_key",
		"notifications.sns.topic_arn", "notifications.ses.from_email",
		"observability.jaeger_endpoint",
		"logging.level",
	} {
		_ = v.BindEnv(key)
	}
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// loadEnvFile loads the first .env found walking from the working directory to the project root.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// expandEnvVars replaces ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "filing-automation"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.Mode == "" {
		cfg.HTTP.Mode = "release"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15000
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15000
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if cfg.Storage.RecordStore == "" {
		cfg.Storage.RecordStore = BackendMemory
	}
	if cfg.Storage.JobStore == "" {
		cfg.Storage.JobStore = BackendMemory
	}

	if cfg.Automation.BaseDir == "" {
		cfg.Automation.BaseDir = "./data/packages"
	}
	if cfg.Automation.PackageExt == "" {
		cfg.Automation.PackageExt = "zip"
	}
	cfg.Automation.PackageExt = strings.TrimPrefix(cfg.Automation.PackageExt, ".")
	if cfg.Automation.Workers == 0 {
		cfg.Automation.Workers = 8
	}
	if cfg.Automation.QueueSize == 0 {
		cfg.Automation.QueueSize = 256
	}
	if cfg.Automation.RunTimeout == 0 {
		cfg.Automation.RunTimeout = 600000
	}
	if cfg.Automation.StageRetries == 0 {
		cfg.Automation.StageRetries = 2
	}
	if cfg.Automation.RetryBaseDelay == 0 {
		cfg.Automation.RetryBaseDelay = 500
	}
	if cfg.Automation.TerminalWriteTimeout == 0 {
		cfg.Automation.TerminalWriteTimeout = 120000
	}
	if cfg.Automation.CatalogPath == "" {
		cfg.Automation.CatalogPath = "configs/service-catalog.json"
	}

	if cfg.Rendering.Mode == "" {
		cfg.Rendering.Mode = RenderModeLocal
	}
	if cfg.Rendering.OutputDir == "" {
		cfg.Rendering.OutputDir = "./data/drafts"
	}
	if cfg.Rendering.Timeout == 0 {
		cfg.Rendering.Timeout = 30000
	}

	if cfg.Notifications.Region == "" {
		cfg.Notifications.Region = "us-east-1"
	}

	if cfg.Search.Index == "" {
		cfg.Search.Index = "automation-jobs"
	}
	if cfg.Search.Elasticsearch.URL == "" && len(cfg.Search.Elasticsearch.Addresses) > 0 {
		cfg.Search.Elasticsearch.URL = cfg.Search.Elasticsearch.Addresses[0]
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = cfg.App.Name
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	switch cfg.Storage.RecordStore {
	case BackendMemory, BackendPostgres:
	default:
		return fmt.Errorf("storage.record_store must be memory or postgres, got %q", cfg.Storage.RecordStore)
	}
	switch cfg.Storage.JobStore {
	case BackendMemory, BackendPostgres, BackendRedis:
	default:
		return fmt.Errorf("storage.job_store must be memory, postgres or redis, got %q", cfg.Storage.JobStore)
	}

	if cfg.Storage.RecordStore == BackendPostgres || cfg.Storage.JobStore == BackendPostgres {
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
	}
	if cfg.Storage.JobStore == BackendRedis && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	if cfg.Automation.Workers < 0 {
		return fmt.Errorf("automation.workers must be positive")
	}
	if cfg.Automation.QueueSize < 0 {
		return fmt.Errorf("automation.queue_size must be positive")
	}
	if cfg.Automation.StageRetries < 0 {
		return fmt.Errorf("automation.stage_retries must not be negative")
	}

	switch cfg.Rendering.Mode {
	case RenderModeLocal:
	case RenderModeHTTP:
		if cfg.Rendering.BaseURL == "" {
			return fmt.Errorf("rendering.base_url is required when rendering.mode is http")
		}
	default:
		return fmt.Errorf("rendering.mode must be local or http, got %q", cfg.Rendering.Mode)
	}

	if cfg.Notifications.Enabled {
		if cfg.Notifications.SNS.Enabled && cfg.Notifications.SNS.TopicARN == "" {
			return fmt.Errorf("notifications.sns.topic_arn is required when sns is enabled")
		}
		if cfg.Notifications.SES.Enabled && cfg.Notifications.SES.FromEmail == "" {
			return fmt.Errorf("notifications.ses.from_email is required when ses is enabled")
		}
	}

	if cfg.Search.Enabled && cfg.Search.Elasticsearch.GetURL() == "" {
		return fmt.Errorf("search.elasticsearch.addresses or url is required when search is enabled")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

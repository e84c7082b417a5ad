// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	HTTP          HTTPConfig          `mapstructure:"http"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Automation    AutomationConfig    `mapstructure:"automation"`
	Rendering     RenderingConfig     `mapstructure:"rendering"`
	Notifications NotificationConfig  `mapstructure:"notifications"`
	Search        SearchConfig        `mapstructure:"search"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type HTTPConfig struct {
	Port            int    `mapstructure:"port"`
	Mode            string `mapstructure:"mode"`             // gin mode: debug|release|test
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// StorageConfig selects the record and job store backends.
type StorageConfig struct {
	RecordStore string `mapstructure:"record_store"` // memory|postgres
	JobStore    string `mapstructure:"job_store"`    // memory|postgres|redis
	JobTTL      int    `mapstructure:"job_ttl"`      // milliseconds, redis only; 0 keeps forever
}

// AutomationConfig holds orchestrator settings.
type AutomationConfig struct {
	BaseDir              string `mapstructure:"base_dir"`
	PackageExt           string `mapstructure:"package_ext"`
	Workers              int    `mapstructure:"workers"`
	QueueSize            int    `mapstructure:"queue_size"`
	RunTimeout           int    `mapstructure:"run_timeout"` // milliseconds
	StageRetries         int    `mapstructure:"stage_retries"`
	RetryBaseDelay       int    `mapstructure:"retry_base_delay"` // milliseconds
	SerializeSubmissions bool   `mapstructure:"serialize_submissions"`
	TerminalWriteTimeout int    `mapstructure:"terminal_write_timeout"` // milliseconds
	CatalogPath          string `mapstructure:"catalog_path"`
}

// Renderer modes.
const (
	RenderModeLocal = "local"
	RenderModeHTTP  = "http"
)

// RenderingConfig configures the draft rendering collaborator.
type RenderingConfig struct {
	Mode      string `mapstructure:"mode"` // local|http
	OutputDir string `mapstructure:"output_dir"`
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	Timeout   int    `mapstructure:"timeout"` // milliseconds
}

// NotificationConfig holds settings for record lifecycle notifications.
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Region  string `mapstructure:"region"`
	SNS     struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
	SES struct {
		Enabled   bool     `mapstructure:"enabled"`
		FromEmail string   `mapstructure:"from_email"`
		To        []string `mapstructure:"to"`
	} `mapstructure:"ses"`
}

// SearchConfig holds the Elasticsearch job index settings.
type SearchConfig struct {
	Enabled       bool                `mapstructure:"enabled"`
	Index         string              `mapstructure:"index"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

// ObservabilityConfig configures metrics and tracing.
type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"` // empty disables tracing export
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Source    SourceConfig
	Paths     PathsConfig
	Database  DatabaseConfig
	Report    ReportConfig
	Watermark WatermarkConfig
	Artifacts ArtifactsConfig
	Server    ServerConfig
	Security  SecurityConfig
	Schedule  ScheduleConfig
	Logging   LoggingConfig
}

// SourceConfig describes the page that publishes the classification table.
type SourceConfig struct {
	// PageURL is the page carrying the publication date and archive link
	PageURL string `env:"SOURCE_PAGE_URL" default:"https://www.nalog.gov.ru/rn77/program/5961290/"`

	// DateMarker is the text of the element holding the publication date
	DateMarker string `env:"SOURCE_DATE_MARKER" default:"Дата актуальности"`

	// LinkToken identifies the archive link by its text or file name
	LinkToken string `env:"SOURCE_LINK_TOKEN" default:"TNVED"`

	// UserAgent is sent on every request to the source (default mimics a browser)
	UserAgent string `env:"SOURCE_USER_AGENT" default:"Chrome/50.0.2661.102"`

	// ProbeTimeout bounds the page read (default: 30s)
	ProbeTimeout time.Duration `env:"SOURCE_PROBE_TIMEOUT" default:"30s"`

	// FetchTimeout bounds the archive download (default: 5m)
	FetchTimeout time.Duration `env:"SOURCE_FETCH_TIMEOUT" default:"5m"`
}

// PathsConfig holds the scratch directory layout and input/output files.
type PathsConfig struct {
	// ScratchDir is reused across runs; files in it are overwritten
	ScratchDir string `env:"SCRATCH_DIR" default:"/tmp/customs_enrich"`

	ArchiveName           string `env:"ARCHIVE_NAME" default:"tnved.zip"`
	ClassificationFile    string `env:"CLASSIFICATION_FILE" default:"TNVED3.TXT"`
	ClassificationUTFFile string `env:"CLASSIFICATION_UTF_FILE" default:"TNVED3_UTF.TXT"`

	// LogFile is the tab-delimited declaration log
	LogFile string `env:"LOG_FILE" default:"/tmp/customs_log.csv"`

	// ReportFile is written inside ScratchDir unless absolute
	ReportFile string `env:"REPORT_FILE" default:"result.csv"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ReportConfig holds the destination of the enriched report.
type ReportConfig struct {
	Schema string `env:"REPORT_SCHEMA" default:"public"`
	Table  string `env:"REPORT_TABLE" default:"customs_log"`

	// LoadTimeout bounds table creation plus the bulk load (default: 2m)
	LoadTimeout time.Duration `env:"REPORT_LOAD_TIMEOUT" default:"2m"`

	// FallbackCategory labels codes with no classification entry
	FallbackCategory string `env:"REPORT_FALLBACK_CATEGORY" default:"ПРОЧЕЕ"`
}

// WatermarkConfig selects where the last ingested publication date is kept.
type WatermarkConfig struct {
	// Backend is postgres, sqlite or memory (default: postgres)
	Backend string `env:"WATERMARK_BACKEND" default:"postgres"`

	Key        string `env:"WATERMARK_KEY" default:"relevant_date"`
	SQLitePath string `env:"WATERMARK_SQLITE_PATH" default:"/var/lib/customs/state.db"`
}

// ArtifactsConfig holds optional report publishing settings.
type ArtifactsConfig struct {
	Enabled bool `env:"ARTIFACTS_ENABLED" default:"false"`

	// LocalDir publishes to a directory instead of a bucket when Endpoint is empty
	LocalDir string `env:"ARTIFACTS_LOCAL_DIR"`

	Endpoint  string `env:"ARTIFACTS_ENDPOINT"`
	AccessKey string `env:"ARTIFACTS_ACCESS_KEY"`
	SecretKey string `env:"ARTIFACTS_SECRET_KEY"`
	Bucket    string `env:"ARTIFACTS_BUCKET" default:"customs-reports"`
	Region    string `env:"ARTIFACTS_REGION"`
	Prefix    string `env:"ARTIFACTS_PREFIX"`
	UseSSL    bool   `env:"ARTIFACTS_USE_SSL" default:"false"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0, runs are synchronous)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// SecurityConfig holds settings for the HTTP API of serve mode.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey guards the mutating endpoints with X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`

	// RunRequestsPerMinute limits run triggers per client IP (default: 6)
	RunRequestsPerMinute int `env:"RATE_LIMIT_RUNS_PER_MINUTE" default:"6"`
}

// ScheduleConfig holds the periodic refresh settings of serve mode.
type ScheduleConfig struct {
	Enabled bool `env:"SCHEDULE_ENABLED" default:"true"`

	// Interval between refresh attempts (default: 24h)
	Interval time.Duration `env:"SCHEDULE_INTERVAL" default:"24h"`

	// Timeout bounds one scheduled run (default: 30m)
	Timeout time.Duration `env:"SCHEDULE_RUN_TIMEOUT" default:"30m"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		// Recurse into nested structs
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		// Get tags
		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		// Try primary env var, then alternate
		value := os.Getenv(envName)
		if value == "" && envAlt != "" {
			value = os.Getenv(envAlt)
		}

		// Apply default if not set
		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		// Set the field value
		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// Handle time.Duration specially
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			// Split comma-separated values, trim whitespace
			parts := strings.Split(value, ",")
			result := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					result = append(result, p)
				}
			}
			field.Set(reflect.ValueOf(result))
		} else {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Source validation
	if c.Source.PageURL == "" {
		errs = append(errs, "SOURCE_PAGE_URL is required")
	} else if u, err := url.Parse(c.Source.PageURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("SOURCE_PAGE_URL (%q) must be an absolute URL", c.Source.PageURL))
	}
	if c.Source.DateMarker == "" {
		errs = append(errs, "SOURCE_DATE_MARKER is required")
	}
	if c.Source.LinkToken == "" {
		errs = append(errs, "SOURCE_LINK_TOKEN is required")
	}
	if c.Source.ProbeTimeout <= 0 {
		errs = append(errs, "SOURCE_PROBE_TIMEOUT must be positive")
	}
	if c.Source.FetchTimeout <= 0 {
		errs = append(errs, "SOURCE_FETCH_TIMEOUT must be positive")
	}

	// Paths validation
	if c.Paths.ScratchDir == "" {
		errs = append(errs, "SCRATCH_DIR is required")
	}
	if c.Paths.LogFile == "" {
		errs = append(errs, "LOG_FILE is required")
	}
	if c.Paths.ReportFile == "" {
		errs = append(errs, "REPORT_FILE is required")
	}

	// Database validation
	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}

	// Report validation
	if c.Report.Table == "" {
		errs = append(errs, "REPORT_TABLE is required")
	}
	if c.Report.LoadTimeout <= 0 {
		errs = append(errs, "REPORT_LOAD_TIMEOUT must be positive")
	}

	// Watermark validation
	switch strings.ToLower(c.Watermark.Backend) {
	case "postgres", "memory":
	case "sqlite":
		if c.Watermark.SQLitePath == "" {
			errs = append(errs, "WATERMARK_SQLITE_PATH is required when WATERMARK_BACKEND is sqlite")
		}
	default:
		errs = append(errs, fmt.Sprintf("WATERMARK_BACKEND (%q) must be one of: postgres, sqlite, memory", c.Watermark.Backend))
	}
	if c.Watermark.Key == "" {
		errs = append(errs, "WATERMARK_KEY is required")
	}

	// Artifacts validation
	if c.Artifacts.Enabled && c.Artifacts.Endpoint == "" && c.Artifacts.LocalDir == "" {
		errs = append(errs, "ARTIFACTS_ENABLED is true but neither ARTIFACTS_ENDPOINT nor ARTIFACTS_LOCAL_DIR is set")
	}
	if c.Artifacts.Enabled && c.Artifacts.Endpoint != "" {
		if c.Artifacts.AccessKey == "" || c.Artifacts.SecretKey == "" {
			errs = append(errs, "ARTIFACTS_ACCESS_KEY and ARTIFACTS_SECRET_KEY are required with ARTIFACTS_ENDPOINT")
		}
		if c.Artifacts.Bucket == "" {
			errs = append(errs, "ARTIFACTS_BUCKET is required with ARTIFACTS_ENDPOINT")
		}
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Security validation
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}
	if c.Security.RunRequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_RUNS_PER_MINUTE must be positive")
	}

	// Schedule validation
	if c.Schedule.Enabled && c.Schedule.Interval <= 0 {
		errs = append(errs, "SCHEDULE_INTERVAL must be positive when scheduling is enabled")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// ReportPath returns the report file location, resolved against the scratch
// directory when relative.
func (c *PathsConfig) ReportPath() string {
	if filepath.IsAbs(c.ReportFile) {
		return c.ReportFile
	}
	return filepath.Join(c.ScratchDir, c.ReportFile)
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Source: {PageURL: %q, UserAgent: %q}, ", c.Source.PageURL, c.Source.UserAgent))
	b.WriteString(fmt.Sprintf("Paths: {ScratchDir: %q, LogFile: %q, ReportFile: %q}, ",
		c.Paths.ScratchDir, c.Paths.LogFile, c.Paths.ReportFile))
	b.WriteString(fmt.Sprintf("Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
		c.Database.MaxConns, c.Database.MinConns))
	b.WriteString(fmt.Sprintf("Report: {Schema: %q, Table: %q}, ", c.Report.Schema, c.Report.Table))
	b.WriteString(fmt.Sprintf("Watermark: {Backend: %q, Key: %q}, ", c.Watermark.Backend, c.Watermark.Key))
	b.WriteString(fmt.Sprintf("Artifacts: {Enabled: %v, Endpoint: %q, Bucket: %q, SecretKey: [MASKED]}, ",
		c.Artifacts.Enabled, c.Artifacts.Endpoint, c.Artifacts.Bucket))
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Security: {RequireAPIKey: %v, APIKeys: %d configured}, ",
		c.Security.RequireAPIKey, len(c.Security.APIKeys)))
	b.WriteString(fmt.Sprintf("Schedule: {Enabled: %v, Interval: %s}, ", c.Schedule.Enabled, c.Schedule.Interval))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}

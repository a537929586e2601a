package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigFileKey names the env var (and viper key) pointing at an optional
// YAML/TOML/JSON config file. Keys in the file use the env var names.
const ConfigFileKey = "CLAIMDESK_CONFIG"

var validDrivers = map[string]bool{"postgres": true, "sqlite": true, "mysql": true}

var validPolicies = map[string]bool{"atomic": true, "best_effort": true}

var validModes = map[string]bool{"overwrite": true, "append": true}

// Load reads configuration from the environment and the optional config file.
func Load() (*Config, error) {
	return LoadFrom(viper.New())
}

// LoadFrom populates a Config from v. Callers may bind command-line flags
// onto v beforehand using the env var names as keys; flags then take
// precedence over the environment, which takes precedence over the file.
func LoadFrom(v *viper.Viper) (*Config, error) {
	if err := v.BindEnv(ConfigFileKey); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if path := v.GetString(ConfigFileKey); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config load: read %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := loadStruct(v, reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadStruct recursively populates struct fields from v.
func loadStruct(v *viper.Viper, rv reflect.Value) error {
	t := rv.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := rv.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(v, fieldVal); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		names := []string{envName, envName}
		if alt := field.Tag.Get("envAlt"); alt != "" {
			names = append(names, alt)
		}
		if err := v.BindEnv(names...); err != nil {
			return fmt.Errorf("bind %s: %w", envName, err)
		}

		value := stringValue(v, envName)
		if value == "" {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// stringValue flattens whatever viper holds for key into the string form
// setField understands. Lists from a config file become comma-separated.
func stringValue(v *viper.Viper, key string) string {
	switch val := v.Get(key).(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case []string:
		return strings.Join(val, ",")
	case []any:
		parts := make([]string, 0, len(val))
		for _, p := range val {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(val)
	}
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(i)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				result = append(result, p)
			}
		}
		field.Set(reflect.ValueOf(result))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if !validDrivers[c.Database.Driver] {
		errs = append(errs, fmt.Sprintf("DATABASE_DRIVER (%q) must be one of: postgres, sqlite, mysql", c.Database.Driver))
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	if c.Import.MaxFileSize <= 0 {
		errs = append(errs, "IMPORT_MAX_FILE_SIZE must be positive")
	}
	if !validPolicies[c.Import.Policy] {
		errs = append(errs, fmt.Sprintf("IMPORT_POLICY (%q) must be one of: atomic, best_effort", c.Import.Policy))
	}
	if !validModes[c.Import.DefaultMode] {
		errs = append(errs, fmt.Sprintf("IMPORT_DEFAULT_MODE (%q) must be one of: overwrite, append", c.Import.DefaultMode))
	}
	if c.Import.MaxWaitTime <= 0 {
		errs = append(errs, "IMPORT_MAX_WAIT_TIME must be positive")
	}
	if c.Import.Timeout <= 0 {
		errs = append(errs, "IMPORT_TIMEOUT must be positive")
	}

	if c.Claims.PageSize <= 0 {
		errs = append(errs, "CLAIMS_PAGE_SIZE must be positive")
	}
	if c.Claims.StatsCacheTTL < 0 {
		errs = append(errs, "CLAIMS_STATS_CACHE_TTL must be non-negative")
	}

	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.ImportLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_IMPORT must be positive when rate limiting is enabled")
	}

	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable it")
	}
	if c.Security.SessionSecret != "" && len(c.Security.SessionSecret) < 32 {
		errs = append(errs, "SESSION_SECRET must be at least 32 characters")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Sprintf("METRICS_PATH (%q) must start with /", c.Metrics.Path))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Connection strings and secrets are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Addr: %q}, ", c.Server.Addr())
	fmt.Fprintf(&b, "Database: {Driver: %q, URL: [MASKED], MaxConns: %d}, ", c.Database.Driver, c.Database.MaxConns)
	fmt.Fprintf(&b, "Import: {Policy: %q, DefaultMode: %q, MaxFileSize: %d}, ",
		c.Import.Policy, c.Import.DefaultMode, c.Import.MaxFileSize)
	fmt.Fprintf(&b, "Claims: {PageSize: %d}, ", c.Claims.PageSize)
	fmt.Fprintf(&b, "Rate: {Enabled: %v, RequestsPerMinute: %d}, ", c.Rate.Enabled, c.Rate.RequestsPerMinute)
	fmt.Fprintf(&b, "Security: {APIKeys: %d, SessionSecret: %s}, ", len(c.Security.APIKeys), masked(c.Security.SessionSecret))
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}

func masked(s string) string {
	if s == "" {
		return "[UNSET]"
	}
	return "[MASKED]"
}

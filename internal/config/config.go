// Package config loads and validates Version Radar configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/version-radar/internal/radar"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Software SoftwareConfig `mapstructure:"software"`
	Email    EmailConfig    `mapstructure:"email"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port              int  `mapstructure:"port"`
	EnableManualCheck bool `mapstructure:"enable_manual_check"`
}

// StorageConfig selects the version store. The URI scheme picks the backend.
type StorageConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
	Table    string `mapstructure:"table"`
}

// SoftwareConfig describes the single page being watched.
type SoftwareConfig struct {
	Name     string `mapstructure:"name"`
	URL      string `mapstructure:"url"`
	Selector string `mapstructure:"selector"`
	Pattern  string `mapstructure:"pattern"`
	Format   string `mapstructure:"format"`
}

// EmailConfig holds SMTP credentials and the notification recipient.
type EmailConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	Recipient string `mapstructure:"recipient"`
}

// ScheduleConfig controls when scrape cycles run.
type ScheduleConfig struct {
	Spec       string `mapstructure:"spec"`
	Timezone   string `mapstructure:"timezone"`
	RunOnStart bool   `mapstructure:"run_on_start"`
}

// HTTPConfig configures the page fetcher.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
	MaxBodyBytes   int    `mapstructure:"max_body_bytes"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// envBindings maps config keys to the deployment's environment variable names.
// Earlier names win when several are set.
var envBindings = map[string][]string{
	"server.port":                {"PORT"},
	"server.enable_manual_check": {"ENABLE_MANUAL_CHECK"},
	"storage.uri":                {"MONGODB_URI", "DATABASE_URL"},
	"storage.database":           {"MONGODB_DATABASE"},
	"storage.table":              {"STORE_TABLE"},
	"software.name":              {"SOFTWARE_NAME"},
	"software.url":               {"SOFTWARE_URL"},
	"software.selector":          {"SOFTWARE_SELECTOR"},
	"software.pattern":           {"VERSION_REGEX"},
	"software.format":            {"VERSION_FORMAT"},
	"email.host":                 {"SMTP_HOST"},
	"email.port":                 {"SMTP_PORT"},
	"email.username":             {"EMAIL_USER"},
	"email.password":             {"EMAIL_PASS"},
	"email.recipient":            {"RECIPIENT_EMAIL"},
	"schedule.spec":              {"SCHEDULE"},
	"schedule.timezone":          {"TZ_LOCATION"},
	"schedule.run_on_start":      {"RUN_ON_START"},
	"http.timeout_seconds":       {"HTTP_TIMEOUT_SECONDS"},
	"http.user_agent":            {"USER_AGENT"},
	"http.max_body_bytes":        {"HTTP_MAX_BODY_BYTES"},
	"logging.development":        {"LOG_DEVELOPMENT"},
}

// Load builds a Config from an optional file and the environment.
// Environment variables take precedence over the file.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RADAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envBindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.enable_manual_check", false)
	v.SetDefault("storage.database", "version_radar")
	v.SetDefault("storage.table", "versions")
	v.SetDefault("software.name", "Software")
	v.SetDefault("software.pattern", `\d+(\.\d+)+`)
	v.SetDefault("software.format", string(radar.FormatMajorMinor))
	v.SetDefault("email.host", "smtp.gmail.com")
	v.SetDefault("email.port", 587)
	v.SetDefault("schedule.spec", "0 0,8,16 * * *")
	v.SetDefault("schedule.timezone", "Local")
	v.SetDefault("schedule.run_on_start", false)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.user_agent", "version-radar/1.0")
	v.SetDefault("http.max_body_bytes", 10<<20)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if strings.TrimSpace(c.Schedule.Spec) == "" {
		return fmt.Errorf("schedule.spec must be set")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("http.max_body_bytes must be > 0")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Email.partial() {
		return fmt.Errorf("email.username, email.password and email.recipient must be set together")
	}
	if c.EmailEnabled() && c.Email.Port <= 0 {
		return fmt.Errorf("email.port must be > 0")
	}
	return nil
}

// ValidateScrape checks the settings needed by commands that run scrape cycles.
func (c Config) ValidateScrape() error {
	if c.Software.URL == "" {
		return fmt.Errorf("software.url must be set")
	}
	u, err := url.Parse(c.Software.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("software.url must be an absolute http(s) url, got %q", c.Software.URL)
	}
	if strings.TrimSpace(c.Software.Selector) == "" {
		return fmt.Errorf("software.selector must be set")
	}
	if _, err := regexp.Compile(c.Software.Pattern); err != nil {
		return fmt.Errorf("software.pattern: %w", err)
	}
	return nil
}

// EmailEnabled reports whether SMTP notifications are configured.
func (c Config) EmailEnabled() bool {
	e := c.Email
	return e.Username != "" && e.Password != "" && e.Recipient != ""
}

func (e EmailConfig) partial() bool {
	set := 0
	for _, v := range []string{e.Username, e.Password, e.Recipient} {
		if v != "" {
			set++
		}
	}
	return set > 0 && set < 3
}

// Extraction builds the per-cycle extraction settings.
func (c Config) Extraction() radar.ExtractionConfig {
	return radar.ExtractionConfig{
		TargetURL:    c.Software.URL,
		SoftwareName: c.Software.Name,
		Selector:     c.Software.Selector,
		Pattern:      c.Software.Pattern,
		Format:       radar.Format(c.Software.Format),
	}
}

// Location resolves the scheduler timezone. "Local" and "" use the host zone.
func (c Config) Location() (*time.Location, error) {
	switch c.Schedule.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("schedule.timezone: %w", err)
	}
	return loc, nil
}

// FetchTimeout converts the HTTP timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

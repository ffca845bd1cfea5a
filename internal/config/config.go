// Package config loads service configuration with koanf.
//
// Values are layered: struct defaults, then an optional YAML file, then
// environment variables. EMOTUNE_SERVER_PORT maps to server.port,
// EMOTUNE_LIBRARY_ROOT_DIR to library.root_dir, and so on.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "EMOTUNE_"
	// PathEnvVar names an explicit config file.
	PathEnvVar = "EMOTUNE_CONFIG"
	// LegacyDataDirEnvVar is honoured for the library root when set.
	LegacyDataDirEnvVar = "MUSIC_DATA_DIR"
)

// DefaultPaths are searched in order when PathEnvVar is unset.
var DefaultPaths = []string{"config.yaml", "config.yml", "/etc/emotune/config.yaml"}

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Library  LibraryConfig  `koanf:"library"`
	Database DatabaseConfig `koanf:"database"`
	Catalog  CatalogConfig  `koanf:"catalog"`
	Detector DetectorConfig `koanf:"detector"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	// MaxBodyBytes caps request bodies on upload endpoints.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LibraryConfig struct {
	RootDir    string   `koanf:"root_dir"`
	Extensions []string `koanf:"extensions"`
	// ProbeWorkers and ProbeQueue size the duration probe pool.
	ProbeWorkers int `koanf:"probe_workers"`
	ProbeQueue   int `koanf:"probe_queue"`
}

type DatabaseConfig struct {
	Path         string        `koanf:"path"`
	MaxOpenConns int           `koanf:"max_open_conns"`
	BusyTimeout  time.Duration `koanf:"busy_timeout"`
}

type CatalogConfig struct {
	// RefreshInterval controls how often stored popularity is merged into
	// the in-memory catalog. Zero disables the refresher.
	RefreshInterval time.Duration `koanf:"refresh_interval"`
}

type DetectorConfig struct {
	URL           string        `koanf:"url"`
	Timeout       time.Duration `koanf:"timeout"`
	MaxImageBytes int64         `koanf:"max_image_bytes"`
	MaxRetries    int           `koanf:"max_retries"`
	RetryBackoff  time.Duration `koanf:"retry_backoff"`
	// TokenURL, ClientID and ClientSecret enable OAuth2 client credentials.
	TokenURL     string `koanf:"token_url"`
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	// BreakerFailures consecutive failures open the circuit for BreakerCooldown.
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerCooldown time.Duration `koanf:"breaker_cooldown"`
}

type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8000,
			ReadHeaderTimeout: 15 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			MaxBodyBytes:      10 << 20,
		},
		Library: LibraryConfig{
			RootDir:      "data",
			Extensions:   []string{".mp3"},
			ProbeWorkers: 2,
			ProbeQueue:   256,
		},
		Database: DatabaseConfig{
			Path:         "emotune.db",
			MaxOpenConns: 8,
			BusyTimeout:  5 * time.Second,
		},
		Catalog: CatalogConfig{
			RefreshInterval: 30 * time.Second,
		},
		Detector: DetectorConfig{
			Timeout:         30 * time.Second,
			MaxImageBytes:   2 << 20,
			MaxRetries:      3,
			RetryBackoff:    500 * time.Millisecond,
			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 300,
			RateLimitWindow:   time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, an optional file and the
// environment. An explicit path overrides the search of DefaultPaths.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}
	if dir := os.Getenv(LegacyDataDirEnvVar); dir != "" && os.Getenv(EnvPrefix+"LIBRARY_ROOT_DIR") == "" {
		if err := k.Set("library.root_dir", dir); err != nil {
			return nil, fmt.Errorf("config: apply %s: %w", LegacyDataDirEnvVar, err)
		}
	}
	splitListField(k, "library.extensions")
	splitListField(k, "security.cors_origins")

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransform maps EMOTUNE_SECTION_SOME_KEY to section.some_key. Variables
// whose section is unknown are dropped.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if key == "config" {
		return ""
	}
	section, rest, ok := strings.Cut(key, "_")
	if !ok {
		return ""
	}
	switch section {
	case "server", "library", "database", "catalog", "detector", "security", "logging":
		return section + "." + rest
	}
	return ""
}

// splitListField turns a comma separated env value into a slice.
func splitListField(k *koanf.Koanf, path string) {
	raw, ok := k.Get(path).(string)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	_ = k.Set(path, out)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("server.max_body_bytes must be positive"))
	}
	if strings.TrimSpace(c.Library.RootDir) == "" {
		errs = append(errs, errors.New("library.root_dir is required"))
	}
	if len(c.Library.Extensions) == 0 {
		errs = append(errs, errors.New("library.extensions must not be empty"))
	}
	if c.Library.ProbeWorkers < 0 || c.Library.ProbeQueue < 0 {
		errs = append(errs, errors.New("library probe settings must not be negative"))
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Catalog.RefreshInterval < 0 {
		errs = append(errs, errors.New("catalog.refresh_interval must not be negative"))
	}
	if c.Detector.MaxImageBytes <= 0 {
		errs = append(errs, errors.New("detector.max_image_bytes must be positive"))
	}
	if (c.Detector.ClientID == "") != (c.Detector.ClientSecret == "") {
		errs = append(errs, errors.New("detector.client_id and detector.client_secret must be set together"))
	}
	if !c.Security.RateLimitDisabled && (c.Security.RateLimitRequests <= 0 || c.Security.RateLimitWindow <= 0) {
		errs = append(errs, errors.New("security rate limit requires positive requests and window"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

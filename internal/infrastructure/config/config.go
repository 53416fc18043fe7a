package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// WiZ protocol defaults.
const (
	// DefaultWiZPort is the UDP port WiZ bulbs listen on.
	DefaultWiZPort = 38899

	// DefaultDiscoveryWindow is how long discovery listens for replies.
	DefaultDiscoveryWindow = 8 * time.Second

	// DefaultProbeTimeout bounds the liveness check of a cached bulb.
	DefaultProbeTimeout = 2 * time.Second

	// DefaultCommandTimeout bounds a single command exchange.
	DefaultCommandTimeout = 5 * time.Second

	// DefaultCacheTTL is how long a cached bulb address stays usable.
	DefaultCacheTTL = time.Hour

	// DefaultStatePollInterval is how often serve mode reads bulb state.
	DefaultStatePollInterval = 30 * time.Second

	// DefaultCacheFile is the cache file name inside the temp directory.
	DefaultCacheFile = "wiz_bulb_cache.json"
)

// Config is the root configuration structure for wizctl.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	WiZ      WiZConfig      `yaml:"wiz"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	API      APIConfig      `yaml:"api"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// WiZConfig contains bulb discovery, cache, and transport settings.
type WiZConfig struct {
	// Port is the UDP port used for discovery and commands.
	Port int `yaml:"port"`

	// BroadcastAddresses are tried in order during discovery.
	// The subnet broadcast address depends on the network, so a short list
	// plus 255.255.255.255 is used.
	BroadcastAddresses []string `yaml:"broadcast_addresses"`

	// DiscoveryWindow is the total time spent listening for discovery replies.
	DiscoveryWindow time.Duration `yaml:"discovery_window"`

	// ProbeTimeout bounds the reachability check of a cached bulb.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// CommandTimeout bounds a single request/reply exchange.
	CommandTimeout time.Duration `yaml:"command_timeout"`

	// CacheTTL is how long a cached bulb record stays usable.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// CachePath is the cache file location.
	// Empty means $TMPDIR/wiz_bulb_cache.json.
	CachePath string `yaml:"cache_path"`

	// PhoneMAC and PhoneIP are sent in the registration payload.
	PhoneMAC string `yaml:"phone_mac"`
	PhoneIP  string `yaml:"phone_ip"`

	// StatePollInterval is how often serve mode publishes bulb state.
	StatePollInterval time.Duration `yaml:"state_poll_interval"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// HistoryRetention is how long state history rows are kept in serve mode.
	HistoryRetention time.Duration `yaml:"history_retention"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: WIZ_SECTION_KEY
// For example: WIZ_CACHE_PATH, WIZ_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return finish(cfg)
}

// LoadOrDefault behaves like Load but falls back to defaults when the file
// does not exist. A file that exists but cannot be parsed is still an error.
//
// The CLI is normally run without any config file, so a missing file is the
// common case rather than a fault.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return finish(defaultConfig())
}

// finish applies env overrides and validates.
func finish(cfg *Config) (*Config, error) {
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		WiZ: WiZConfig{
			Port: DefaultWiZPort,
			BroadcastAddresses: []string{
				"192.168.0.255",
				"192.168.1.255",
				"255.255.255.255",
			},
			DiscoveryWindow:   DefaultDiscoveryWindow,
			ProbeTimeout:      DefaultProbeTimeout,
			CommandTimeout:    DefaultCommandTimeout,
			CacheTTL:          DefaultCacheTTL,
			PhoneMAC:          "AAAAAAAAAAAA",
			PhoneIP:           "1.2.3.4",
			StatePollInterval: DefaultStatePollInterval,
		},
		Database: DatabaseConfig{
			Path:             "./data/wiz.db",
			WALMode:          true,
			BusyTimeout:      5,
			HistoryRetention: 7 * 24 * time.Hour,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "wizctl",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8099,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: WIZ_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// WiZ
	if v := os.Getenv("WIZ_CACHE_PATH"); v != "" {
		cfg.WiZ.CachePath = v
	}
	if v := os.Getenv("WIZ_BROADCAST_ADDRESSES"); v != "" {
		cfg.WiZ.BroadcastAddresses = splitList(v)
	}

	// Database
	if v := os.Getenv("WIZ_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("WIZ_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("WIZ_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("WIZ_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("WIZ_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("WIZ_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("WIZ_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// splitList splits a comma-separated value and drops empty entries.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// WiZ validation
	if c.WiZ.Port < 1 || c.WiZ.Port > 65535 {
		errs = append(errs, "wiz.port must be between 1 and 65535")
	}
	if len(c.WiZ.BroadcastAddresses) == 0 {
		errs = append(errs, "wiz.broadcast_addresses must not be empty")
	}
	if c.WiZ.DiscoveryWindow <= 0 {
		errs = append(errs, "wiz.discovery_window must be positive")
	}
	if c.WiZ.ProbeTimeout <= 0 {
		errs = append(errs, "wiz.probe_timeout must be positive")
	}
	if c.WiZ.CommandTimeout <= 0 {
		errs = append(errs, "wiz.command_timeout must be positive")
	}
	if c.WiZ.CacheTTL <= 0 {
		errs = append(errs, "wiz.cache_ttl must be positive")
	}

	// Database validation
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the database is enabled")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ResolvedCachePath returns the cache file path, defaulting to the system
// temp directory when none is configured.
func (c *Config) ResolvedCachePath() string {
	if c.WiZ.CachePath != "" {
		return c.WiZ.CachePath
	}
	return filepath.Join(os.TempDir(), DefaultCacheFile)
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
wiz:
  port: 38899
  broadcast_addresses: ["10.0.0.255", "255.255.255.255"]
  discovery_window: 3s
  command_timeout: 1500ms
  cache_path: "/tmp/wiz-test-cache.json"
database:
  enabled: true
  path: "/tmp/test.db"
mqtt:
  enabled: true
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.WiZ.BroadcastAddresses) != 2 || cfg.WiZ.BroadcastAddresses[0] != "10.0.0.255" {
		t.Errorf("WiZ.BroadcastAddresses = %v", cfg.WiZ.BroadcastAddresses)
	}
	if cfg.WiZ.DiscoveryWindow != 3*time.Second {
		t.Errorf("WiZ.DiscoveryWindow = %v, want 3s", cfg.WiZ.DiscoveryWindow)
	}
	if cfg.WiZ.CommandTimeout != 1500*time.Millisecond {
		t.Errorf("WiZ.CommandTimeout = %v, want 1.5s", cfg.WiZ.CommandTimeout)
	}
	// Not set in the file, so the default must survive.
	if cfg.WiZ.ProbeTimeout != DefaultProbeTimeout {
		t.Errorf("WiZ.ProbeTimeout = %v, want %v", cfg.WiZ.ProbeTimeout, DefaultProbeTimeout)
	}
	if cfg.ResolvedCachePath() != "/tmp/wiz-test-cache.json" {
		t.Errorf("ResolvedCachePath() = %q", cfg.ResolvedCachePath())
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.WiZ.Port != DefaultWiZPort {
		t.Errorf("WiZ.Port = %d, want %d", cfg.WiZ.Port, DefaultWiZPort)
	}
}

func TestLoadOrDefault_InvalidYAML(t *testing.T) {
	_, err := LoadOrDefault(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("LoadOrDefault() expected error for invalid YAML, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
wiz:
  port: 0
  broadcast_addresses: []
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	for _, want := range []string{"wiz.port", "wiz.broadcast_addresses"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config { return defaultConfig() }

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}, wantErr: false},
		{name: "port zero", mutate: func(c *Config) { c.WiZ.Port = 0 }, wantErr: true},
		{name: "port too high", mutate: func(c *Config) { c.WiZ.Port = 70000 }, wantErr: true},
		{name: "no broadcast addresses", mutate: func(c *Config) { c.WiZ.BroadcastAddresses = nil }, wantErr: true},
		{name: "zero discovery window", mutate: func(c *Config) { c.WiZ.DiscoveryWindow = 0 }, wantErr: true},
		{name: "negative probe timeout", mutate: func(c *Config) { c.WiZ.ProbeTimeout = -time.Second }, wantErr: true},
		{name: "zero command timeout", mutate: func(c *Config) { c.WiZ.CommandTimeout = 0 }, wantErr: true},
		{name: "zero cache ttl", mutate: func(c *Config) { c.WiZ.CacheTTL = 0 }, wantErr: true},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{
			name: "database enabled without path",
			mutate: func(c *Config) {
				c.Database.Enabled = true
				c.Database.Path = ""
			},
			wantErr: true,
		},
		{
			name:    "database disabled without path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: false,
		},
		{
			name: "api enabled with bad port",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.API.Port = 0
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("WIZ_CACHE_PATH", "/custom/cache.json")
	t.Setenv("WIZ_BROADCAST_ADDRESSES", "10.1.1.255, ,255.255.255.255")
	t.Setenv("WIZ_DATABASE_PATH", "/custom/path.db")
	t.Setenv("WIZ_MQTT_HOST", "mqtt.example.com")
	t.Setenv("WIZ_MQTT_USERNAME", "testuser")
	t.Setenv("WIZ_MQTT_PASSWORD", "testpass")
	t.Setenv("WIZ_API_HOST", "192.168.1.1")
	t.Setenv("WIZ_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("WIZ_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	if cfg.WiZ.CachePath != "/custom/cache.json" {
		t.Errorf("WiZ.CachePath = %q", cfg.WiZ.CachePath)
	}
	if got := cfg.WiZ.BroadcastAddresses; len(got) != 2 || got[0] != "10.1.1.255" || got[1] != "255.255.255.255" {
		t.Errorf("WiZ.BroadcastAddresses = %v", got)
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.WiZ.Port != 38899 {
		t.Errorf("WiZ.Port = %d, want 38899", cfg.WiZ.Port)
	}
	wantBroadcast := []string{"192.168.0.255", "192.168.1.255", "255.255.255.255"}
	if len(cfg.WiZ.BroadcastAddresses) != len(wantBroadcast) {
		t.Fatalf("WiZ.BroadcastAddresses = %v, want %v", cfg.WiZ.BroadcastAddresses, wantBroadcast)
	}
	for i, addr := range wantBroadcast {
		if cfg.WiZ.BroadcastAddresses[i] != addr {
			t.Errorf("BroadcastAddresses[%d] = %q, want %q", i, cfg.WiZ.BroadcastAddresses[i], addr)
		}
	}
	if cfg.WiZ.DiscoveryWindow != 8*time.Second {
		t.Errorf("WiZ.DiscoveryWindow = %v, want 8s", cfg.WiZ.DiscoveryWindow)
	}
	if cfg.WiZ.ProbeTimeout != 2*time.Second {
		t.Errorf("WiZ.ProbeTimeout = %v, want 2s", cfg.WiZ.ProbeTimeout)
	}
	if cfg.WiZ.CommandTimeout != 5*time.Second {
		t.Errorf("WiZ.CommandTimeout = %v, want 5s", cfg.WiZ.CommandTimeout)
	}
	if cfg.WiZ.CacheTTL != time.Hour {
		t.Errorf("WiZ.CacheTTL = %v, want 1h", cfg.WiZ.CacheTTL)
	}
	if cfg.Logging.Output != "stderr" {
		t.Errorf("Logging.Output = %q, want stderr", cfg.Logging.Output)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
}

func TestResolvedCachePath_Default(t *testing.T) {
	cfg := defaultConfig()
	want := filepath.Join(os.TempDir(), "wiz_bulb_cache.json")
	if got := cfg.ResolvedCachePath(); got != want {
		t.Errorf("ResolvedCachePath() = %q, want %q", got, want)
	}
}

// TestLoad_ShippedSample keeps configs/config.yaml in step with the defaults.
func TestLoad_ShippedSample(t *testing.T) {
	for _, key := range []string{"WIZ_CACHE_PATH", "WIZ_BROADCAST_ADDRESSES", "WIZ_DATABASE_PATH", "WIZ_LOG_LEVEL", "WIZ_API_HOST", "WIZ_MQTT_HOST"} {
		t.Setenv(key, "")
	}

	cfg, err := Load(filepath.Join("..", "..", "..", "configs", "config.yaml"))
	if err != nil {
		t.Fatalf("Load(sample) error = %v", err)
	}

	want := defaultConfig()
	if cfg.WiZ.DiscoveryWindow != want.WiZ.DiscoveryWindow || cfg.WiZ.CacheTTL != want.WiZ.CacheTTL {
		t.Errorf("sample wiz timings = %v/%v, want %v/%v",
			cfg.WiZ.DiscoveryWindow, cfg.WiZ.CacheTTL, want.WiZ.DiscoveryWindow, want.WiZ.CacheTTL)
	}
	if cfg.Database.HistoryRetention != want.Database.HistoryRetention {
		t.Errorf("history_retention = %v, want %v", cfg.Database.HistoryRetention, want.Database.HistoryRetention)
	}
	if cfg.Database.Enabled || cfg.MQTT.Enabled || cfg.API.Enabled || cfg.InfluxDB.Enabled {
		t.Error("sample should leave every optional store and surface disabled")
	}
}

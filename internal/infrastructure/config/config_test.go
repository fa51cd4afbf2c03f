package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validJWTSecret = "test-secret-key-at-least-32-chars!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// validConfig returns a configuration that passes Validate.
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Security.JWT.Secret = validJWTSecret
	return cfg
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
site:
  id: "sparc-lab-2"
microscope:
  role: sparc2
  modes_file: /etc/odemis/modes.yaml
hardware:
  file: /etc/odemis/sparc2.yaml
  backend: simulated
  latency: 250ms
database:
  path: "/tmp/test.db"
mqtt:
  broker:
    host: "localhost"
    port: 1883
  qos: 1
api:
  port: 8081
  cors:
    allowed_origins: ["http://localhost:3000"]
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "sparc-lab-2" {
		t.Errorf("Site.ID = %q", cfg.Site.ID)
	}
	if cfg.Microscope.Role != "sparc2" || cfg.Microscope.ModesFile != "/etc/odemis/modes.yaml" {
		t.Errorf("Microscope = %+v", cfg.Microscope)
	}
	if cfg.Hardware.Latency != 250*time.Millisecond {
		t.Errorf("Hardware.Latency = %v, want 250ms", cfg.Hardware.Latency)
	}
	if cfg.API.Port != 8081 || len(cfg.API.CORS.AllowedOrigins) != 1 {
		t.Errorf("API = %+v", cfg.API)
	}
	// Defaults survive for keys the file does not set.
	if cfg.Hardware.CommandTimeout != 30*time.Second {
		t.Errorf("Hardware.CommandTimeout = %v, want default 30s", cfg.Hardware.CommandTimeout)
	}
	if !cfg.API.RateLimit.Enabled {
		t.Error("API.RateLimit should stay enabled by default")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvironmentSuppliesSecret(t *testing.T) {
	path := writeConfig(t, "site:\n  id: lab\n")
	t.Setenv("ODEMIS_JWT_SECRET", validJWTSecret)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Security.JWT.Secret != validJWTSecret {
		t.Error("JWT secret not taken from the environment")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid config", func(*Config) {}, ""},
		{"missing site ID", func(c *Config) { c.Site.ID = "" }, "site.id"},
		{"missing hardware file", func(c *Config) { c.Hardware.File = "" }, "hardware.file"},
		{"unknown backend", func(c *Config) { c.Hardware.Backend = "serial" }, "hardware.backend"},
		{"negative latency", func(c *Config) { c.Hardware.Latency = -time.Second }, "hardware.latency"},
		{"mqtt backend without mqtt", func(c *Config) { c.Hardware.Backend = BackendMQTT }, "mqtt.enabled"},
		{"mqtt backend with mqtt", func(c *Config) {
			c.Hardware.Backend = BackendMQTT
			c.MQTT.Enabled = true
		}, ""},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"invalid QoS", func(c *Config) { c.MQTT.QoS = 3 }, "mqtt.qos"},
		{"invalid port low", func(c *Config) { c.API.Port = 0 }, "api.port"},
		{"invalid port high", func(c *Config) { c.API.Port = 70000 }, "api.port"},
		{"zero rate", func(c *Config) { c.API.RateLimit.RequestsPerSecond = 0 }, "api.rate_limit"},
		{"rate limit disabled", func(c *Config) {
			c.API.RateLimit = RateLimitConfig{Enabled: false}
		}, ""},
		{"influx without bucket", func(c *Config) {
			c.InfluxDB.Enabled = true
			c.InfluxDB.URL = "http://localhost:8086"
			c.InfluxDB.Org = "lab"
		}, "influxdb"},
		{"missing JWT secret", func(c *Config) { c.Security.JWT.Secret = "" }, "ODEMIS_JWT_SECRET"},
		{"JWT secret too short", func(c *Config) { c.Security.JWT.Secret = "short" }, "at least 32"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateReportsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Site.ID = ""
	cfg.API.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	for _, want := range []string{"site.id", "api.port"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{API: APIConfig{Timeouts: APITimeoutConfig{Read: 30, Write: 45, Idle: 60}}}

	if got := cfg.GetReadTimeout(); got != 30*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 30s", got)
	}
	if got := cfg.GetWriteTimeout(); got != 45*time.Second {
		t.Errorf("GetWriteTimeout() = %v, want 45s", got)
	}
	if got := cfg.GetIdleTimeout(); got != 60*time.Second {
		t.Errorf("GetIdleTimeout() = %v, want 60s", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("ODEMIS_MICROSCOPE_ROLE", "sparc")
	t.Setenv("ODEMIS_MODES_FILE", "/custom/modes.yaml")
	t.Setenv("ODEMIS_HARDWARE_FILE", "/custom/hw.yaml")
	t.Setenv("ODEMIS_HARDWARE_BACKEND", "mqtt")
	t.Setenv("ODEMIS_DATABASE_PATH", "/custom/path.db")
	t.Setenv("ODEMIS_MQTT_HOST", "mqtt.example.com")
	t.Setenv("ODEMIS_MQTT_USERNAME", "testuser")
	t.Setenv("ODEMIS_MQTT_PASSWORD", "testpass")
	t.Setenv("ODEMIS_API_HOST", "192.168.1.1")
	t.Setenv("ODEMIS_API_PORT", "9090")
	t.Setenv("ODEMIS_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("ODEMIS_LOG_LEVEL", "debug")
	t.Setenv("ODEMIS_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	checks := []struct {
		field string
		got   any
		want  any
	}{
		{"Microscope.Role", cfg.Microscope.Role, "sparc"},
		{"Microscope.ModesFile", cfg.Microscope.ModesFile, "/custom/modes.yaml"},
		{"Hardware.File", cfg.Hardware.File, "/custom/hw.yaml"},
		{"Hardware.Backend", cfg.Hardware.Backend, "mqtt"},
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"API.Port", cfg.API.Port, 9090},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Logging.Level", cfg.Logging.Level, "debug"},
		{"Security.JWT.Secret", cfg.Security.JWT.Secret, "jwt-secret"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.field, c.got, c.want)
		}
	}
}

func TestApplyEnvOverrides_InvalidPortIgnored(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("ODEMIS_API_PORT", "not-a-port")

	applyEnvOverrides(cfg)

	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want default 8080", cfg.API.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Site.ID == "" {
		t.Error("defaultConfig should have non-empty Site.ID")
	}
	if cfg.Hardware.Backend != BackendSimulated {
		t.Errorf("Hardware.Backend = %q, want simulated", cfg.Hardware.Backend)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want 8080", cfg.API.Port)
	}
	if err := validConfig().Validate(); err != nil {
		t.Errorf("defaults plus a secret should validate: %v", err)
	}
}

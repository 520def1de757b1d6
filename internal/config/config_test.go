package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
backend:
  ws_url: ws://cem.local:8080/ws
  http_url: http://cem.local:8080
connection:
  reconnect_interval: 2s
  request_timeout: 10s
  correlation_ids: true
mirror:
  enabled: true
  broker:
    host: mqtt.local
  qos: 1
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Backend.WSURL != "ws://cem.local:8080/ws" {
		t.Errorf("Backend.WSURL = %q, want %q", cfg.Backend.WSURL, "ws://cem.local:8080/ws")
	}
	if cfg.Connection.ReconnectInterval != 2*time.Second {
		t.Errorf("Connection.ReconnectInterval = %v, want 2s", cfg.Connection.ReconnectInterval)
	}
	if cfg.Connection.RequestTimeout != 10*time.Second {
		t.Errorf("Connection.RequestTimeout = %v, want 10s", cfg.Connection.RequestTimeout)
	}
	if !cfg.Connection.CorrelationIDs {
		t.Error("Connection.CorrelationIDs = false, want true")
	}
	if !cfg.Mirror.Enabled || cfg.Mirror.Broker.Host != "mqtt.local" || cfg.Mirror.QoS != 1 {
		t.Errorf("Mirror = %+v", cfg.Mirror)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load of missing file: expected error, got nil")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeTempFile(t, "backend: [unterminated")
	if _, err := Load(path); err == nil {
		t.Error("Load of invalid yaml: expected error, got nil")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_JOURNAL_PASSWORD", "secret123")
	t.Setenv("TEST_BACKEND_HOST", "cem.example")

	yaml := `
backend:
  ws_url: ws://${TEST_BACKEND_HOST}/ws
journal:
  enabled: true
  database:
    host: localhost
    name: journal
    user: dashboard
    password: ${TEST_JOURNAL_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Journal.Database.Password != "secret123" {
		t.Errorf("Journal.Database.Password = %q, want %q", cfg.Journal.Database.Password, "secret123")
	}
	if cfg.Backend.WSURL != "ws://cem.example/ws" {
		t.Errorf("Backend.WSURL = %q, want %q", cfg.Backend.WSURL, "ws://cem.example/ws")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeTempFile(t, "logging:\n  format: json\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Backend.WSURL != DefaultWSURL {
		t.Errorf("Backend.WSURL = %q, want default %q", cfg.Backend.WSURL, DefaultWSURL)
	}
	if cfg.Backend.HTTPURL != DefaultHTTPURL {
		t.Errorf("Backend.HTTPURL = %q, want default %q", cfg.Backend.HTTPURL, DefaultHTTPURL)
	}
	if cfg.Connection.ReconnectInterval != DefaultReconnectInterval {
		t.Errorf("Connection.ReconnectInterval = %v, want default %v", cfg.Connection.ReconnectInterval, DefaultReconnectInterval)
	}
	if cfg.Connection.RequestTimeout != DefaultRequestTimeout {
		t.Errorf("Connection.RequestTimeout = %v, want default %v", cfg.Connection.RequestTimeout, DefaultRequestTimeout)
	}
	if cfg.Connection.CorrelationIDs {
		t.Error("Connection.CorrelationIDs defaulted to true")
	}
	if cfg.Poller.Interval != DefaultPollInterval {
		t.Errorf("Poller.Interval = %v, want default %v", cfg.Poller.Interval, DefaultPollInterval)
	}
	if cfg.Journal.Database.Port != DefaultDBPort {
		t.Errorf("Journal.Database.Port = %d, want default %d", cfg.Journal.Database.Port, DefaultDBPort)
	}
	if cfg.Mirror.Broker.Port != DefaultBrokerPort {
		t.Errorf("Mirror.Broker.Port = %d, want default %d", cfg.Mirror.Broker.Port, DefaultBrokerPort)
	}
	if cfg.Logging.Level != DefaultLogLevel {
		t.Errorf("Logging.Level = %q, want default %q", cfg.Logging.Level, DefaultLogLevel)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
}

func TestDefaultTLSBrokerPort(t *testing.T) {
	cfg := &DashboardConfig{Mirror: MirrorConfig{Broker: BrokerConfig{TLS: true}}}
	cfg.applyDefaults()

	if cfg.Mirror.Broker.Port != DefaultBrokerTLSPort {
		t.Errorf("Mirror.Broker.Port = %d, want %d", cfg.Mirror.Broker.Port, DefaultBrokerTLSPort)
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() = %v, want nil", err)
	}
}

func TestLoadAndValidate(t *testing.T) {
	path := writeTempFile(t, "backend:\n  ws_url: http://wrong-scheme\n")

	if _, err := LoadAndValidate(path); err == nil {
		t.Error("LoadAndValidate: expected validation error, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*DashboardConfig)
		wantErr string
	}{
		{
			name:    "defaults",
			mutate:  func(*DashboardConfig) {},
			wantErr: "",
		},
		{
			name:    "wrong ws scheme",
			mutate:  func(c *DashboardConfig) { c.Backend.WSURL = "http://localhost:8080/ws" },
			wantErr: `backend.ws_url must use scheme ws or wss, got "http"`,
		},
		{
			name:    "missing http url",
			mutate:  func(c *DashboardConfig) { c.Backend.HTTPURL = "" },
			wantErr: "backend.http_url is required",
		},
		{
			name:    "negative reconnect interval",
			mutate:  func(c *DashboardConfig) { c.Connection.ReconnectInterval = -time.Second },
			wantErr: "connection.reconnect_interval must be > 0",
		},
		{
			name: "ping timeout below interval",
			mutate: func(c *DashboardConfig) {
				c.Connection.PingInterval = 30 * time.Second
				c.Connection.PingTimeout = 10 * time.Second
			},
			wantErr: "connection.ping_timeout (10s) must be >= ping_interval (30s)",
		},
		{
			name:    "journal without database",
			mutate:  func(c *DashboardConfig) { c.Journal.Enabled = true },
			wantErr: "journal.database.host is required",
		},
		{
			name: "journal missing password",
			mutate: func(c *DashboardConfig) {
				c.Journal.Enabled = true
				c.Journal.Database.Host = "localhost"
				c.Journal.Database.Name = "journal"
				c.Journal.Database.User = "dashboard"
			},
			wantErr: "journal.database.password is required",
		},
		{
			name: "journal min_conns exceeds max_conns",
			mutate: func(c *DashboardConfig) {
				c.Journal.Enabled = true
				c.Journal.Database = DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 2, MinConns: 5}
			},
			wantErr: "journal.database.min_conns (5) cannot exceed max_conns (2)",
		},
		{
			name:    "mirror without broker host",
			mutate:  func(c *DashboardConfig) { c.Mirror.Enabled = true },
			wantErr: "mirror.broker.host is required",
		},
		{
			name: "mirror bad qos",
			mutate: func(c *DashboardConfig) {
				c.Mirror.Enabled = true
				c.Mirror.Broker.Host = "mqtt.local"
				c.Mirror.QoS = 3
			},
			wantErr: "mirror.qos must be 0, 1 or 2, got 3",
		},
		{
			name: "mirror wildcard prefix",
			mutate: func(c *DashboardConfig) {
				c.Mirror.Enabled = true
				c.Mirror.Broker.Host = "mqtt.local"
				c.Mirror.TopicPrefix = "cem/#"
			},
			wantErr: `mirror.topic_prefix must not contain wildcards, got "cem/#"`,
		},
		{
			name:    "bad log level",
			mutate:  func(c *DashboardConfig) { c.Logging.Level = "verbose" },
			wantErr: `logging.level must be one of debug, info, warn, error, got "verbose"`,
		},
		{
			name:    "bad log format",
			mutate:  func(c *DashboardConfig) { c.Logging.Format = "xml" },
			wantErr: `logging.format must be text or json, got "xml"`,
		},
		{
			name: "relative health path",
			mutate: func(c *DashboardConfig) {
				c.Health.Port = 8081
				c.Health.Path = "healthz"
			},
			wantErr: `health.path must be an absolute path without spaces or braces, got "healthz"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestExampleConfig(t *testing.T) {
	t.Setenv("JOURNAL_DB_PASSWORD", "secret")

	cfg, err := LoadAndValidate(filepath.Join("..", "..", "configs", "dashboard.example.yaml"))
	if err != nil {
		t.Fatalf("example config invalid: %v", err)
	}

	if cfg.Journal.Database.Password != "secret" {
		t.Errorf("journal password = %q, want expanded secret", cfg.Journal.Database.Password)
	}
	if cfg.Health.Port != 8081 || cfg.Health.Path != "/healthz" {
		t.Errorf("health = %+v", cfg.Health)
	}
	if cfg.Mirror.TopicPrefix != "cem/dashboard" {
		t.Errorf("topic prefix = %s", cfg.Mirror.TopicPrefix)
	}
}

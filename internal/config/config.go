package config

import "time"

// DashboardConfig is the root configuration for a dashboard client instance.
type DashboardConfig struct {
	Backend    BackendConfig    `yaml:"backend"`
	Connection ConnectionConfig `yaml:"connection"`
	Poller     PollerConfig     `yaml:"poller"`
	Journal    JournalConfig    `yaml:"journal"`
	Mirror     MirrorConfig     `yaml:"mirror"`
	Logging    LoggingConfig    `yaml:"logging"`
	Health     HealthConfig     `yaml:"health"`
}

// BackendConfig locates the dashboard backend.
type BackendConfig struct {
	WSURL   string `yaml:"ws_url"`   // Duplex message channel
	HTTPURL string `yaml:"http_url"` // REST endpoints (device discovery, local SKI)
}

// ConnectionConfig holds the message channel client settings.
type ConnectionConfig struct {
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	PingInterval      time.Duration `yaml:"ping_interval"`
	PingTimeout       time.Duration `yaml:"ping_timeout"`
	CorrelationIDs    bool          `yaml:"correlation_ids"`
}

// PollerConfig holds device discovery polling settings.
type PollerConfig struct {
	Interval   time.Duration `yaml:"interval"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// JournalConfig holds the message journal settings.
type JournalConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Database      DBConfig      `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MirrorConfig holds the MQTT mirror settings.
type MirrorConfig struct {
	Enabled     bool         `yaml:"enabled"`
	Broker      BrokerConfig `yaml:"broker"`
	Username    string       `yaml:"username"`
	Password    string       `yaml:"password"`
	TopicPrefix string       `yaml:"topic_prefix"`
	QoS         byte         `yaml:"qos"`
	BufferSize  int          `yaml:"buffer_size"`
}

// BrokerConfig locates the MQTT broker.
type BrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
	TLS      bool   `yaml:"tls"`
}

// LoggingConfig selects the log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// HealthConfig holds the health endpoint settings. Port 0 disables it.
type HealthConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

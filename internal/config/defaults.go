package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultWSURL             = "ws://localhost:8080/ws"
	DefaultHTTPURL           = "http://localhost:8080"
	DefaultReconnectInterval = 5 * time.Second
	DefaultRequestTimeout    = 5 * time.Second
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultPingInterval      = 30 * time.Second
	DefaultPingTimeout       = 60 * time.Second
	DefaultPollInterval      = 5 * time.Second
	DefaultPollTimeout       = 5 * time.Second
	DefaultPollMaxRetries    = 2
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 4
	DefaultMinConns          = 1
	DefaultBatchSize         = 500
	DefaultFlushInterval     = 1 * time.Second
	DefaultBufferSize        = 10000
	DefaultBrokerPort        = 1883
	DefaultBrokerTLSPort     = 8883
	DefaultClientID          = "cem-dashboard"
	DefaultTopicPrefix       = "cem/dashboard"
	DefaultMirrorBufferSize  = 256
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultHealthPath        = "/healthz"
)

func (c *DashboardConfig) applyDefaults() {
	// Backend defaults
	if c.Backend.WSURL == "" {
		c.Backend.WSURL = DefaultWSURL
	}
	if c.Backend.HTTPURL == "" {
		c.Backend.HTTPURL = DefaultHTTPURL
	}

	// Connection defaults
	if c.Connection.ReconnectInterval == 0 {
		c.Connection.ReconnectInterval = DefaultReconnectInterval
	}
	if c.Connection.RequestTimeout == 0 {
		c.Connection.RequestTimeout = DefaultRequestTimeout
	}
	if c.Connection.HandshakeTimeout == 0 {
		c.Connection.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.PingInterval == 0 {
		c.Connection.PingInterval = DefaultPingInterval
	}
	if c.Connection.PingTimeout == 0 {
		c.Connection.PingTimeout = DefaultPingTimeout
	}

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Poller.Timeout == 0 {
		c.Poller.Timeout = DefaultPollTimeout
	}
	if c.Poller.MaxRetries == 0 {
		c.Poller.MaxRetries = DefaultPollMaxRetries
	}

	// Journal defaults
	applyDBDefaults(&c.Journal.Database)
	if c.Journal.BatchSize == 0 {
		c.Journal.BatchSize = DefaultBatchSize
	}
	if c.Journal.FlushInterval == 0 {
		c.Journal.FlushInterval = DefaultFlushInterval
	}
	if c.Journal.BufferSize == 0 {
		c.Journal.BufferSize = DefaultBufferSize
	}

	// Mirror defaults
	if c.Mirror.Broker.Port == 0 {
		if c.Mirror.Broker.TLS {
			c.Mirror.Broker.Port = DefaultBrokerTLSPort
		} else {
			c.Mirror.Broker.Port = DefaultBrokerPort
		}
	}
	if c.Mirror.Broker.ClientID == "" {
		c.Mirror.Broker.ClientID = DefaultClientID
	}
	if c.Mirror.TopicPrefix == "" {
		c.Mirror.TopicPrefix = DefaultTopicPrefix
	}
	if c.Mirror.BufferSize == 0 {
		c.Mirror.BufferSize = DefaultMirrorBufferSize
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}

	if c.Health.Path == "" {
		c.Health.Path = DefaultHealthPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *DashboardConfig) Validate() error {
	if err := validateURL("backend.ws_url", c.Backend.WSURL, "ws", "wss"); err != nil {
		return err
	}
	if err := validateURL("backend.http_url", c.Backend.HTTPURL, "http", "https"); err != nil {
		return err
	}

	if c.Connection.ReconnectInterval <= 0 {
		return errors.New("connection.reconnect_interval must be > 0")
	}
	if c.Connection.RequestTimeout <= 0 {
		return errors.New("connection.request_timeout must be > 0")
	}
	if c.Connection.PingInterval < 0 {
		return errors.New("connection.ping_interval must be >= 0")
	}
	if c.Connection.PingInterval > 0 && c.Connection.PingTimeout < c.Connection.PingInterval {
		return fmt.Errorf("connection.ping_timeout (%v) must be >= ping_interval (%v)",
			c.Connection.PingTimeout, c.Connection.PingInterval)
	}

	if c.Poller.Interval <= 0 {
		return errors.New("poller.interval must be > 0")
	}
	if c.Poller.MaxRetries < 0 {
		return errors.New("poller.max_retries must be >= 0")
	}

	if c.Journal.Enabled {
		if err := c.Journal.Database.validate("journal.database"); err != nil {
			return err
		}
		if c.Journal.BatchSize < 1 {
			return errors.New("journal.batch_size must be >= 1")
		}
		if c.Journal.BufferSize < 1 {
			return errors.New("journal.buffer_size must be >= 1")
		}
	}

	if c.Mirror.Enabled {
		if c.Mirror.Broker.Host == "" {
			return errors.New("mirror.broker.host is required")
		}
		if c.Mirror.Broker.Port < 1 || c.Mirror.Broker.Port > 65535 {
			return fmt.Errorf("mirror.broker.port must be between 1 and 65535, got %d", c.Mirror.Broker.Port)
		}
		if c.Mirror.QoS > 2 {
			return fmt.Errorf("mirror.qos must be 0, 1 or 2, got %d", c.Mirror.QoS)
		}
		if strings.ContainsAny(c.Mirror.TopicPrefix, "#+") {
			return fmt.Errorf("mirror.topic_prefix must not contain wildcards, got %q", c.Mirror.TopicPrefix)
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.Health.Port < 0 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 0 and 65535, got %d", c.Health.Port)
	}
	if c.Health.Port > 0 && (!strings.HasPrefix(c.Health.Path, "/") || strings.ContainsAny(c.Health.Path, " {}")) {
		return fmt.Errorf("health.path must be an absolute path without spaces or braces, got %q", c.Health.Path)
	}

	return nil
}

func validateURL(field, raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is invalid: %w", field, err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%s must use scheme %s, got %q", field, strings.Join(schemes, " or "), u.Scheme)
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/die-net/sockd/internal/auth"
	"github.com/die-net/sockd/internal/logging"
)

const (
	DefaultBind               = "0.0.0.0"
	DefaultPort               = 1080
	DefaultNegotiationTimeout = 30 * time.Second
	DefaultDialTimeout        = 10 * time.Second
	DefaultTCPKeepAlive       = "45:45:3"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = logging.FormatConsole
)

// Default returns a Config with every default applied and no users.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Bind: DefaultBind,
			Port: DefaultPort,
		},
		NegotiationTimeout: DefaultNegotiationTimeout,
		DialTimeout:        DefaultDialTimeout,
		TCPKeepAlive:       DefaultTCPKeepAlive,
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// ListenAddress returns the bind address joined with the port.
func (c *Config) ListenAddress() string {
	return net.JoinHostPort(c.Server.Bind, strconv.Itoa(c.Server.Port))
}

// AuthUsers converts the configured users for auth.NewStore.
func (c *Config) AuthUsers() []auth.User {
	users := make([]auth.User, 0, len(c.Users))
	for _, u := range c.Users {
		users = append(users, auth.User{Name: u.Name, Password: u.Pwd})
	}
	return users
}

// Validate returns every problem found in cfg.
func Validate(cfg *Config) []error {
	var errs []error

	if cfg.Server.Bind == "" {
		errs = append(errs, &ConfigError{Field: "server.bind", Value: cfg.Server.Bind, Message: "bind address cannot be empty"})
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, &ConfigError{Field: "server.port", Value: cfg.Server.Port, Message: "port must be between 1 and 65535"})
	}

	if cfg.NegotiationTimeout <= 0 {
		errs = append(errs, &ConfigError{Field: "negotiation_timeout", Value: cfg.NegotiationTimeout, Message: "must be > 0"})
	}
	if cfg.DialTimeout <= 0 {
		errs = append(errs, &ConfigError{Field: "dial_timeout", Value: cfg.DialTimeout, Message: "must be > 0"})
	}

	if _, err := ParseTCPKeepAlive(cfg.TCPKeepAlive); err != nil {
		errs = append(errs, &ConfigError{Field: "tcp_keepalive", Value: cfg.TCPKeepAlive, Message: err.Error()})
	}

	if len(cfg.Users) == 0 {
		errs = append(errs, &ConfigError{Field: "users", Value: 0, Message: "no users configured; every client would be rejected"})
	}
	seen := make(map[string]bool, len(cfg.Users))
	for i, u := range cfg.Users {
		field := fmt.Sprintf("users[%d].name", i)
		switch {
		case u.Name == "":
			errs = append(errs, &ConfigError{Field: field, Value: u.Name, Message: "user name cannot be empty"})
		case len(u.Name) > 255:
			errs = append(errs, &ConfigError{Field: field, Value: u.Name, Message: "user name longer than 255 bytes"})
		case seen[u.Name]:
			errs = append(errs, &ConfigError{Field: field, Value: u.Name, Message: "duplicate user name"})
		}
		if len(u.Pwd) > 255 && !auth.IsHash(u.Pwd) {
			errs = append(errs, &ConfigError{Field: fmt.Sprintf("users[%d].pwd", i), Value: "(redacted)", Message: "password longer than 255 bytes"})
		}
		seen[u.Name] = true
	}

	if err := logging.Check(cfg.Log.Level, cfg.Log.Format); err != nil {
		errs = append(errs, &ConfigError{Field: "log", Value: cfg.Log, Message: err.Error()})
	}

	return errs
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string
	Value   any
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

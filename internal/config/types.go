package config

import "time"

// Config is the complete daemon configuration.
type Config struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Users  []UserConfig `mapstructure:"users" yaml:"users"`

	// NegotiationTimeout bounds each read from the client before its tunnel
	// is established.
	NegotiationTimeout time.Duration `mapstructure:"negotiation_timeout" yaml:"negotiation_timeout"`
	DialTimeout        time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`

	// TCPKeepAlive is on, off, or keepidle:keepintvl:keepcnt in seconds.
	TCPKeepAlive string `mapstructure:"tcp_keepalive" yaml:"tcp_keepalive"`

	// DebugListen serves /metrics, /healthz and /debug/pprof. Empty disables.
	DebugListen string `mapstructure:"debug_listen" yaml:"debug_listen"`

	Log LogConfig `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Bind string `mapstructure:"bind" yaml:"bind"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// UserConfig is one account. Pwd is plaintext or a bcrypt hash.
type UserConfig struct {
	Name string `mapstructure:"name" yaml:"name"`
	Pwd  string `mapstructure:"pwd" yaml:"pwd"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

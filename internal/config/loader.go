package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	appName   = "sockd"
	envPrefix = "SOCKD"
)

// flagKeys maps config keys to the command line flags that override them.
var flagKeys = map[string]string{
	"server.bind":         "bind",
	"server.port":         "port",
	"negotiation_timeout": "negotiation-timeout",
	"dial_timeout":        "dial-timeout",
	"tcp_keepalive":       "tcp-keepalive",
	"debug_listen":        "debug-listen",
	"log.level":           "log-level",
	"log.format":          "log-format",
}

// Load merges defaults, the config file, SOCKD_* environment variables and
// any changed flags in flags, in increasing order of precedence.
//
// An empty path searches SearchPaths for sockd.{yaml,json,toml,...}; finding
// nothing there is not an error. An explicit path must exist.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(appName)
		for _, dir := range SearchPaths() {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag --%s: %w", name, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return cfg, nil
}

// SearchPaths returns the directories searched for a config file when none is
// given explicitly.
func SearchPaths() []string {
	paths := []string{".", filepath.Join(xdg.ConfigHome, appName)}
	for _, dir := range xdg.ConfigDirs {
		paths = append(paths, filepath.Join(dir, appName))
	}
	return append(paths, filepath.Join("/etc", appName))
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("server.bind", d.Server.Bind)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("users", []map[string]string{})
	v.SetDefault("negotiation_timeout", d.NegotiationTimeout)
	v.SetDefault("dial_timeout", d.DialTimeout)
	v.SetDefault("tcp_keepalive", d.TCPKeepAlive)
	v.SetDefault("debug_listen", d.DebugListen)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

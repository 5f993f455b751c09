package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Example renders the defaults, plus one placeholder user, as a YAML config
// file.
func Example() ([]byte, error) {
	cfg := Default()
	cfg.Users = []UserConfig{{Name: "user", Pwd: "change-me"}}

	b, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal example config: %w", err)
	}
	return append([]byte("# sockd configuration; pwd may be plaintext or a bcrypt hash from `sockd hash-password`.\n"), b...), nil
}

package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/die-net/sockd/internal/auth"
	"github.com/die-net/sockd/internal/config"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
	)

	root := &cobra.Command{
		Use:   "sockd",
		Short: "SOCKS5 CONNECT proxy with username/password authentication",
		Long: `sockd accepts SOCKS5 clients, requires username/password authentication
against the configured users and relays CONNECT requests to their targets.

Settings are merged from defaults, the config file, SOCKD_* environment
variables and command line flags, in increasing order of precedence.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			if verbose {
				cfg.Log.Level = "debug"
			}
			return run(cmd.Context(), cfg)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	pf := root.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "Config file path; empty searches "+strings.Join(config.SearchPaths(), ", "))

	f := root.Flags()
	f.SortFlags = false
	f.String("bind", config.DefaultBind, "Address to listen on")
	f.Int("port", config.DefaultPort, "Port to listen on")
	f.Duration("negotiation-timeout", config.DefaultNegotiationTimeout, "Idle timeout for each client read before the tunnel is up")
	f.Duration("dial-timeout", config.DefaultDialTimeout, "Timeout for outbound DNS lookup and TCP connect")
	f.String("tcp-keepalive", config.DefaultTCPKeepAlive, "TCP keepalive: on|off|keepidle:keepintvl:keepcnt")
	f.String("debug-listen", "", "Debug HTTP listen address exposing /metrics, /healthz and /debug/pprof (e.g. 127.0.0.1:6060). Empty disables.")
	f.String("log-level", config.DefaultLogLevel, "Log level: debug|info|warn|error")
	f.String("log-format", config.DefaultLogFormat, "Log format: console|json")
	f.BoolVarP(&verbose, "verbose", "v", false, "Log every session, including client disconnects")

	root.AddCommand(newVersionCmd(), newConfigCmd(&configPath), newHashPasswordCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sockd %s\n", version)
		},
	}
}

func newConfigCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration file commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "example",
		Short: "Print an example config file with every default",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := config.Example()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Load and validate the config without starting the proxy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath, nil)
			if err != nil {
				return err
			}
			if _, err := auth.NewStore(cfg.AuthUsers()); err != nil {
				return fmt.Errorf("users: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config ok: listen %s, %d users\n", cfg.ListenAddress(), len(cfg.Users))
			return nil
		},
	})

	return cmd
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash usable as a user's pwd",
		Long: `Print a bcrypt hash of password, or of the first line of stdin when no
argument is given. The hash can replace a plaintext pwd in the config file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				s := bufio.NewScanner(cmd.InOrStdin())
				if !s.Scan() {
					if err := s.Err(); err != nil {
						return fmt.Errorf("read password: %w", err)
					}
					return errors.New("read password: no input")
				}
				password = s.Text()
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

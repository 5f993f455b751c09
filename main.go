package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // Intentionally exposed on debug port.
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/die-net/sockd/internal/auth"
	"github.com/die-net/sockd/internal/config"
	"github.com/die-net/sockd/internal/dialer"
	"github.com/die-net/sockd/internal/logging"
	"github.com/die-net/sockd/internal/metrics"
	"github.com/die-net/sockd/internal/proxy"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads and validates the config for path and flags.
func loadConfig(path string, flags *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(path, flags)
	if err != nil {
		return nil, err
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	users, err := auth.NewStore(cfg.AuthUsers())
	if err != nil {
		return fmt.Errorf("users: %w", err)
	}

	ka, err := config.ParseTCPKeepAlive(cfg.TCPKeepAlive)
	if err != nil {
		return fmt.Errorf("invalid tcp_keepalive: %w", err)
	}

	pcfg := proxy.Config{
		NegotiationTimeout: cfg.NegotiationTimeout,
		Dialer: dialer.NewDirectDialer(dialer.Config{
			DialTimeout: cfg.DialTimeout,
			KeepAlive:   ka,
		}),
	}

	g, ctx := errgroup.WithContext(ctx)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DebugListen != "" {
		debugSrv := &http.Server{Handler: debugMux()} //nolint:gosec // Not concerned about timeouts on debug port.
		debugLn, err := proxy.ListenTCP(ctx, cfg.DebugListen, ka)
		if err != nil {
			return fmt.Errorf("debug listen: %w", err)
		}
		context.AfterFunc(ctx, func() {
			_ = debugSrv.Close()
			_ = debugLn.Close()
		})

		g.Go(func() error {
			if err := debugSrv.Serve(debugLn); err != nil {
				return fmt.Errorf("debug serve: %w", err)
			}
			return nil
		})
		logger.Info("debug listening", zap.Stringer("addr", debugLn.Addr()))
	}

	ln, err := proxy.ListenTCP(ctx, cfg.ListenAddress(), ka)
	if err != nil {
		return fmt.Errorf("socks5 listen: %w", err)
	}
	s5 := proxy.NewSOCKS5Server(ctx, pcfg, users, logger)
	context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})

	g.Go(func() error {
		if err := s5.Serve(ln); err != nil {
			return fmt.Errorf("socks5 serve: %w", err)
		}
		return nil
	})
	logger.Info("socks5 proxy listening",
		zap.Stringer("addr", ln.Addr()),
		zap.Int("users", users.Len()),
		zap.Duration("negotiation_timeout", cfg.NegotiationTimeout),
		zap.Duration("dial_timeout", cfg.DialTimeout),
	)

	err = g.Wait()
	if errors.Is(err, http.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
		err = nil
	}

	logger.Info("shutting down")
	return err
}

func debugMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/debug/", http.DefaultServeMux)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

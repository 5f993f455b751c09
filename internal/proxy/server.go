package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/die-net/sockd/internal/auth"
	"github.com/die-net/sockd/internal/metrics"
	"github.com/die-net/sockd/internal/socks5"
)

// SOCKS5Server serves SOCKS5 CONNECT with mandatory username/password
// authentication.
type SOCKS5Server struct {
	ctx  context.Context
	cfg  Config
	auth auth.Authenticator
	log  *zap.Logger
}

// NewSOCKS5Server returns a server checking credentials against a. Canceling
// ctx tears down live tunnels; the listener passed to Serve must be closed
// separately.
func NewSOCKS5Server(ctx context.Context, cfg Config, a auth.Authenticator, log *zap.Logger) *SOCKS5Server {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SOCKS5Server{ctx: ctx, cfg: cfg, auth: a, log: log}
}

// Serve accepts connections on ln until it is closed, handling each on its
// own goroutine.
func (s *SOCKS5Server) Serve(ln net.Listener) error {
	var backoff time.Duration
	for {
		c, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("accept: %w", err)
			}
			// Typically EMFILE; wait for sessions to release descriptors.
			backoff = min(max(2*backoff, 5*time.Millisecond), time.Second)
			s.log.Error("accept failed", zap.Error(err), zap.Duration("retry_in", backoff))
			time.Sleep(backoff)
			continue
		}
		backoff = 0
		go s.Handle(c)
	}
}

// Handle runs one client connection from greeting through tunnel teardown.
// It returns once both the client and any target connection are closed.
func (s *SOCKS5Server) Handle(conn net.Conn) {
	metrics.ActiveSessions.Inc()
	defer metrics.ActiveSessions.Dec()

	start := time.Now()
	sess := newSession(conn, s.cfg, s.auth)
	err := sess.run(s.ctx)

	outcome := Outcome(err)
	metrics.SessionsTotal.WithLabelValues(outcome).Inc()

	s.logSession(sess, outcome, err, time.Since(start))
}

func (s *SOCKS5Server) logSession(sess *session, outcome string, err error, d time.Duration) {
	lvl := zapcore.InfoLevel
	msg := "tunnel completed"
	switch outcome {
	case metrics.OutcomeClosed:
	case metrics.OutcomeDisconnect:
		lvl, msg = zapcore.DebugLevel, "client disconnected"
	case metrics.OutcomeTimeout:
		msg = "client timed out"
	case metrics.OutcomeTransfer:
		msg = "tunnel failed"
	case metrics.OutcomeProtocol:
		lvl, msg = zapcore.WarnLevel, "protocol violation"
	case metrics.OutcomeAuth:
		lvl, msg = zapcore.WarnLevel, "authentication failed"
	case metrics.OutcomeUpstream:
		lvl, msg = zapcore.WarnLevel, "target unreachable"
	default:
		lvl, msg = zapcore.ErrorLevel, "session error"
	}

	ce := s.log.Check(lvl, msg)
	if ce == nil {
		return
	}

	fields := []zap.Field{
		zap.String("client", sess.remote),
		zap.Stringer("state", sess.endedIn),
		zap.String("outcome", outcome),
		zap.Duration("duration", d),
	}
	if sess.username != "" {
		fields = append(fields, zap.String("user", sess.username))
	}
	if sess.request != nil {
		fields = append(fields, zap.String("target", sess.request.Address()))
	}
	if sess.endedIn == StateTunneling {
		fields = append(fields, zap.Int64("bytes_up", sess.stats.Up), zap.Int64("bytes_down", sess.stats.Down))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	ce.Write(fields...)
}

// Outcome classifies the error a session ended with into one of the
// metrics.Outcome* labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeClosed
	case errors.Is(err, socks5.ErrAuth):
		return metrics.OutcomeAuth
	case errors.Is(err, socks5.ErrUpstream):
		return metrics.OutcomeUpstream
	case errors.Is(err, socks5.ErrTransfer):
		return metrics.OutcomeTransfer
	case errors.Is(err, socks5.ErrProtocol):
		return metrics.OutcomeProtocol
	case errors.Is(err, os.ErrDeadlineExceeded):
		return metrics.OutcomeTimeout
	case socks5.IsDisconnect(err):
		return metrics.OutcomeDisconnect
	default:
		return metrics.OutcomeError
	}
}

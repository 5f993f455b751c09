package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	txsocks5 "github.com/txthinking/socks5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/die-net/sockd/internal/dialer"
	"github.com/die-net/sockd/internal/metrics"
	"github.com/die-net/sockd/internal/socks5"
	"github.com/die-net/sockd/internal/testutil"
)

func startServer(t *testing.T, ctx context.Context) net.Listener {
	t.Helper()

	cfg := Config{
		NegotiationTimeout: 2 * time.Second,
		Dialer: dialer.NewDirectDialer(dialer.Config{
			DialTimeout: 2 * time.Second,
		}),
	}

	ln, err := ListenTCP(ctx, "127.0.0.1:0", net.KeepAliveConfig{Enable: false})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	srv := NewSOCKS5Server(ctx, cfg, testStore(t), zap.NewNop())
	go func() { _ = srv.Serve(ln) }()

	return ln
}

func TestSOCKS5ConnectDirect(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	echo := testutil.StartEchoTCPServer(t, ctx)
	defer echo.Close()

	ln := startServer(t, ctx)

	client, err := txsocks5.NewClient(ln.Addr().String(), "user", "pass", 2, 0)
	if err != nil {
		t.Fatal(err)
	}

	c, err := client.Dial("tcp", echo.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	testutil.AssertEcho(t, c, c, []byte("hello"))
	testutil.AssertEcho(t, c, c, []byte("again"))
}

func TestSOCKS5RejectsClient(t *testing.T) {
	tests := []struct {
		name string
		user string
		pass string
	}{
		{name: "wrong password", user: "user", pass: "wrong"},
		{name: "unknown user", user: "nobody", pass: "pass"},
		{name: "no credentials offered", user: "", pass: ""},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	echo := testutil.StartEchoTCPServer(t, ctx)
	defer echo.Close()

	ln := startServer(t, ctx)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := txsocks5.NewClient(ln.Addr().String(), tt.user, tt.pass, 2, 0)
			if err != nil {
				t.Fatal(err)
			}

			c, err := client.Dial("tcp", echo.Addr().String())
			if err == nil {
				_ = c.Close()
				t.Fatal("expected dial to fail")
			}
		})
	}
}

func TestSOCKS5UnreachableTarget(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ln := startServer(t, ctx)

	client, err := txsocks5.NewClient(ln.Addr().String(), "user", "pass", 2, 0)
	if err != nil {
		t.Fatal(err)
	}

	c, err := client.Dial("tcp", testutil.ClosedTCPAddr(t))
	if err == nil {
		_ = c.Close()
		t.Fatal("expected dial to fail")
	}
}

func TestSOCKS5ContextCancelClosesTunnels(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	echo := testutil.StartEchoTCPServer(t, context.Background())
	defer echo.Close()

	srvCtx, srvCancel := context.WithCancel(ctx)
	ln := startServer(t, srvCtx)

	client, err := txsocks5.NewClient(ln.Addr().String(), "user", "pass", 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	c, err := client.Dial("tcp", echo.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	testutil.AssertEcho(t, c, c, []byte("ping"))

	srvCancel()

	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := c.Read(make([]byte, 1)); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after cancel, got %v", err)
	}
}

func TestServeReturnsWhenListenerCloses(t *testing.T) {
	ln, err := ListenTCP(context.Background(), "127.0.0.1:0", net.KeepAliveConfig{})
	if err != nil {
		t.Fatal(err)
	}

	srv := NewSOCKS5Server(context.Background(), Config{}, testStore(t), zaptest.NewLogger(t))
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	_ = ln.Close()

	select {
	case err := <-errc:
		if !errors.Is(err, net.ErrClosed) {
			t.Fatalf("expected net.ErrClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestHandleLogsAndCountsOutcome(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	srv := NewSOCKS5Server(context.Background(), Config{
		NegotiationTimeout: 2 * time.Second,
		Dialer:             newCountingDialer(),
	}, testStore(t), zap.New(core))

	failures := metrics.SessionsTotal.WithLabelValues(metrics.OutcomeAuth)
	before := promtestutil.ToFloat64(failures)
	rejected := metrics.AuthAttemptsTotal.WithLabelValues("failure")
	rejectedBefore := promtestutil.ToFloat64(rejected)

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	go func() {
		_, _ = clientConn.Write(append([]byte{0x05, 0x01, 0x02}, userPass("user", "bad")...))
	}()
	go func() { _, _ = io.Copy(io.Discard, clientConn) }()

	srv.Handle(serverConn)

	if got := promtestutil.ToFloat64(failures) - before; got != 1 {
		t.Fatalf("expected 1 auth_failure session, got %v", got)
	}
	if got := promtestutil.ToFloat64(rejected) - rejectedBefore; got != 1 {
		t.Fatalf("expected 1 failed auth attempt, got %v", got)
	}

	entries := logs.FilterMessage("authentication failed").AllUntimed()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Level != zapcore.WarnLevel {
		t.Fatalf("unexpected level %v", e.Level)
	}
	fields := e.ContextMap()
	if fields["outcome"] != metrics.OutcomeAuth || fields["user"] != "user" || fields["state"] != "auth" {
		t.Fatalf("unexpected fields %v", fields)
	}
	if _, ok := fields["target"]; ok {
		t.Fatal("target logged before request was read")
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: metrics.OutcomeClosed},
		{name: "auth", err: fmt.Errorf("auth: %w", socks5.ErrAuth), want: metrics.OutcomeAuth},
		{
			name: "dial timeout",
			err:  fmt.Errorf("connect: %w: %w", socks5.ErrUpstream, os.ErrDeadlineExceeded),
			want: metrics.OutcomeUpstream,
		},
		{
			name: "reset mid tunnel",
			err:  fmt.Errorf("tunnel: %w: %w", socks5.ErrTransfer, io.ErrUnexpectedEOF),
			want: metrics.OutcomeTransfer,
		},
		{name: "bad version", err: socks5.ErrBadVersion, want: metrics.OutcomeProtocol},
		{name: "bad command", err: socks5.ErrCommandNotSupported, want: metrics.OutcomeProtocol},
		{name: "idle", err: fmt.Errorf("read version: %w", os.ErrDeadlineExceeded), want: metrics.OutcomeTimeout},
		{name: "disconnect", err: socks5.ErrDisconnect, want: metrics.OutcomeDisconnect},
		{name: "eof", err: io.EOF, want: metrics.OutcomeDisconnect},
		{name: "other", err: errors.New("boom"), want: metrics.OutcomeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Outcome(tt.err); got != tt.want {
				t.Fatalf("Outcome(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

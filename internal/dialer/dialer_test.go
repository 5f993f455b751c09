package dialer

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/die-net/sockd/internal/testutil"
)

func TestDirectDialer(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ln := testutil.StartEchoTCPServer(t, ctx)
	defer ln.Close()

	d := NewDirectDialer(Config{DialTimeout: time.Second})
	c, err := d.DialContext(ctx, "tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	testutil.AssertEcho(t, c, c, []byte("hello"))
}

func TestDirectDialerRefused(t *testing.T) {
	t.Parallel()

	addr := testutil.ClosedTCPAddr(t)

	d := NewDirectDialer(Config{DialTimeout: time.Second})
	_, err := d.DialContext(context.Background(), "tcp", addr)
	if err == nil {
		t.Fatal("expected error")
	}
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected wrapped *net.OpError, got %T: %v", err, err)
	}
}

func TestDirectDialerCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDirectDialer(Config{DialTimeout: time.Second})
	if _, err := d.DialContext(ctx, "tcp", "127.0.0.1:9"); err == nil {
		t.Fatal("expected error from canceled context")
	}
}

func TestFunc(t *testing.T) {
	t.Parallel()

	want := errors.New("nope")
	var d Dialer = Func(func(context.Context, string, string) (net.Conn, error) {
		return nil, want
	})
	if _, err := d.DialContext(context.Background(), "tcp", "x:1"); !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

// The proxy reports the outbound conn's local address to clients, so it has
// to be the address the target sees.
func TestDirectDialerLocalAddr(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	seen := make(chan string, 1)
	ln, wait := testutil.StartSingleAcceptServer(t, ctx, func(c net.Conn) {
		seen <- c.RemoteAddr().String()
	})

	d := NewDirectDialer(Config{DialTimeout: time.Second, KeepAlive: net.KeepAliveConfig{Enable: true}})
	c, err := d.DialContext(ctx, "tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	got := <-seen
	wait()
	if got != c.LocalAddr().String() {
		t.Fatalf("target saw %s, local address is %s", got, c.LocalAddr())
	}
}

package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/die-net/sockd/internal/socks5"
)

// TunnelStats counts bytes relayed in each direction.
type TunnelStats struct {
	Up   int64 // client to target
	Down int64 // target to client
}

// Tunnel relays bytes between client and target until either direction ends,
// then closes both conns and waits for the other direction to drain out.
// Canceling ctx closes both conns as well.
//
// A clean end of stream in either direction is not an error. Any other I/O
// error is returned wrapped in socks5.ErrTransfer.
func Tunnel(ctx context.Context, client, target net.Conn) (TunnelStats, error) {
	var closeOnce sync.Once
	closeBoth := func() {
		closeOnce.Do(func() {
			_ = client.Close()
			_ = target.Close()
		})
	}
	defer closeBoth()

	stop := context.AfterFunc(ctx, closeBoth)
	defer stop()

	var stats TunnelStats
	g := errgroup.Group{}

	g.Go(func() error {
		defer closeBoth()
		n, err := relay(target, client)
		stats.Up = n
		return relayErr("client to target", err)
	})

	g.Go(func() error {
		defer closeBoth()
		n, err := relay(client, target)
		stats.Down = n
		return relayErr("target to client", err)
	})

	err := g.Wait()
	return stats, err
}

func relay(dst io.Writer, src io.Reader) (int64, error) {
	buf := relayBuffers.Get()
	defer relayBuffers.Put(buf)
	return io.CopyBuffer(dst, src, *buf)
}

// relayErr drops the errors our own teardown causes in the slower direction.
func relayErr(dir string, err error) error {
	if err == nil || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", dir, socks5.ErrTransfer, err)
}

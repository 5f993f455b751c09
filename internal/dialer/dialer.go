package dialer

import (
	"context"
	"net"
)

// Dialer mirrors the net.Dialer interface.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Func adapts a function to Dialer.
type Func func(ctx context.Context, network, address string) (net.Conn, error)

func (f Func) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return f(ctx, network, address)
}
